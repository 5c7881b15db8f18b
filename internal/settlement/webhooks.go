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

package settlement

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"settlement-ledger-go/internal/ledger"
	"settlement-ledger-go/internal/store"
)

// ErrRetryExhausted marks a webhook whose retry budget is spent; it needs
// manual review, not another delivery.
var ErrRetryExhausted = errors.New("webhook retry limit exhausted")

// Outcome tells a webhook endpoint whether a delivery did work or was
// absorbed as a duplicate. Both cases should be acknowledged to the
// provider so it stops redelivering.
type Outcome string

const (
	OutcomeNew       Outcome = "NEW"
	OutcomeDuplicate Outcome = "DUPLICATE"
)

// WebhookHandler processes a webhook's payload. It runs at most once per
// successful delivery of a given webhook id.
type WebhookHandler func(ctx context.Context, event *ledger.WebhookEvent) error

// IngestWebhookParams carries one provider delivery.
type IngestWebhookParams struct {
	WebhookID string
	Provider  string
	EventType string
	Body      []byte
	Headers   map[string]string
	Signature string
}

// IngestWebhook deduplicates a delivery by webhook id and, for first-seen
// or retryable events, runs handler. Redeliveries of processed or in-flight
// events return OutcomeDuplicate without invoking handler. A failed event
// is retried until the attempt cap, after which further deliveries return
// ErrRetryExhausted.
func (s *Service) IngestWebhook(ctx context.Context, params IngestWebhookParams, handler WebhookHandler) (Outcome, error) {
	evt, outcome, err := s.claimWebhook(ctx, params)
	if err != nil || evt == nil {
		return outcome, err
	}

	if err := handler(ctx, evt); err != nil {
		if markErr := evt.MarkFailed(); markErr != nil {
			return outcome, markErr
		}
		if saveErr := s.store.SaveWebhookEvent(ctx, evt); saveErr != nil {
			return outcome, saveErr
		}
		zap.L().Warn("Webhook handler failed",
			zap.String("webhook_id", evt.WebhookID),
			zap.Int("retry_count", evt.RetryCount),
			zap.Error(err))
		if evt.RetryCount >= s.cfg.MaxWebhookRetries {
			return outcome, fmt.Errorf("webhook %s failed %d times (last: %v): %w",
				evt.WebhookID, evt.RetryCount, err, ErrRetryExhausted)
		}
		return outcome, err
	}

	if err := evt.MarkProcessed(s.now()); err != nil {
		return outcome, err
	}
	if err := s.store.SaveWebhookEvent(ctx, evt); err != nil {
		return outcome, err
	}
	zap.L().Info("Webhook processed",
		zap.String("webhook_id", evt.WebhookID),
		zap.String("provider", evt.Provider),
		zap.String("event_type", evt.EventType))
	return outcome, nil
}

// claimWebhook resolves a delivery to either a claimed PROCESSING event
// (evt non-nil) or a terminal outcome (evt nil). The unique webhook_id row
// dedupes the insert and a conditional status update is the claim itself,
// so a redelivery racing the window between insert and claim still loses:
// exactly one delivery per webhook id flips the row to PROCESSING.
func (s *Service) claimWebhook(ctx context.Context, params IngestWebhookParams) (*ledger.WebhookEvent, Outcome, error) {
	evt, err := s.store.GetWebhookEvent(ctx, params.WebhookID)
	switch {
	case err == nil:
		switch evt.Status {
		case ledger.WebhookProcessed, ledger.WebhookProcessing:
			return nil, OutcomeDuplicate, nil
		case ledger.WebhookFailed:
			if evt.RetryCount >= s.cfg.MaxWebhookRetries {
				return nil, OutcomeDuplicate, fmt.Errorf("webhook %s: %w", evt.WebhookID, ErrRetryExhausted)
			}
		}
	case errors.Is(err, store.ErrNotFound):
		evt, err = ledger.NewWebhookEvent(params.WebhookID, params.Provider, params.EventType,
			params.Body, params.Headers, params.Signature, s.now())
		if err != nil {
			return nil, OutcomeDuplicate, err
		}
		if err := s.store.CreateWebhookEvent(ctx, evt); err != nil {
			if errors.Is(err, store.ErrDuplicateWebhook) {
				return nil, OutcomeDuplicate, nil
			}
			return nil, OutcomeDuplicate, err
		}
	default:
		return nil, OutcomeDuplicate, err
	}

	claimed, err := s.store.ClaimWebhookEvent(ctx, evt.WebhookID)
	if err != nil {
		return nil, OutcomeDuplicate, err
	}
	if !claimed {
		return nil, OutcomeDuplicate, nil
	}
	if err := evt.MarkProcessing(); err != nil {
		return nil, OutcomeDuplicate, err
	}
	return evt, OutcomeNew, nil
}
