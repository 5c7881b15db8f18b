/**
 * Copyright 2025-present Meghna Commerce, Ltd.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package ledger

import (
	"fmt"
	"time"
)

// WebhookStatus tracks the processing state of an inbound provider
// notification. A PROCESSED event is never reprocessed.
type WebhookStatus string

const (
	WebhookReceived   WebhookStatus = "RECEIVED"
	WebhookProcessing WebhookStatus = "PROCESSING"
	WebhookProcessed  WebhookStatus = "PROCESSED"
	WebhookFailed     WebhookStatus = "FAILED"
)

// WebhookEvent is the dedup record for one inbound provider notification.
// The unique WebhookID is the idempotency key that collapses at-least-once
// provider delivery into at-most-once processing.
type WebhookEvent struct {
	WebhookID   string
	Provider    string
	EventType   string
	Body        []byte
	Headers     map[string]string
	Signature   string
	Status      WebhookStatus
	RetryCount  int
	PaymentID   string
	OrderID     string
	Metadata    map[string]string
	ReceivedAt  time.Time
	ProcessedAt *time.Time
}

// NewWebhookEvent records a freshly received notification.
func NewWebhookEvent(webhookID, provider, eventType string, body []byte, headers map[string]string, signature string, now time.Time) (*WebhookEvent, error) {
	if webhookID == "" {
		return nil, fmt.Errorf("webhook id is required")
	}
	if provider == "" {
		return nil, fmt.Errorf("webhook provider is required")
	}
	return &WebhookEvent{
		WebhookID:  webhookID,
		Provider:   provider,
		EventType:  eventType,
		Body:       body,
		Headers:    headers,
		Signature:  signature,
		Status:     WebhookReceived,
		ReceivedAt: now,
	}, nil
}

// MarkProcessing claims the event for processing. Valid from RECEIVED, or
// from FAILED when a retry is being attempted.
func (e *WebhookEvent) MarkProcessing() error {
	if e.Status != WebhookReceived && e.Status != WebhookFailed {
		return fmt.Errorf("webhook %s has status %s: %w", e.WebhookID, e.Status, ErrInvalidWebhookTransition)
	}
	e.Status = WebhookProcessing
	return nil
}

// MarkProcessed finishes the event permanently.
func (e *WebhookEvent) MarkProcessed(now time.Time) error {
	if e.Status != WebhookProcessing {
		return fmt.Errorf("webhook %s has status %s: %w", e.WebhookID, e.Status, ErrInvalidWebhookTransition)
	}
	e.Status = WebhookProcessed
	e.ProcessedAt = &now
	return nil
}

// MarkFailed records a processing failure and counts the attempt.
func (e *WebhookEvent) MarkFailed() error {
	if e.Status != WebhookProcessing {
		return fmt.Errorf("webhook %s has status %s: %w", e.WebhookID, e.Status, ErrInvalidWebhookTransition)
	}
	e.Status = WebhookFailed
	e.RetryCount++
	return nil
}
