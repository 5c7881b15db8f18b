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

package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"settlement-ledger-go/internal/ledger"
	"settlement-ledger-go/internal/store"
)

// CreateWebhookEvent inserts a new dedup record. The primary key on
// webhook_id makes the losing side of a concurrent duplicate delivery fail
// with ErrDuplicateWebhook, which the orchestrator maps to the DUPLICATE
// outcome.
func (s *Service) CreateWebhookEvent(ctx context.Context, e *ledger.WebhookEvent) error {
	headers, err := encodeMap(e.Headers)
	if err != nil {
		return fmt.Errorf("failed to encode webhook headers: %w", err)
	}
	metadata, err := encodeMap(e.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode webhook metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx, queryInsertWebhookEvent,
		e.WebhookID, e.Provider, e.EventType, e.Body, headers,
		e.Signature, e.Status, e.RetryCount, e.PaymentID, e.OrderID, metadata,
		e.ReceivedAt, nullTime(e.ProcessedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("webhook %s: %w", e.WebhookID, store.ErrDuplicateWebhook)
		}
		return fmt.Errorf("failed to create webhook event: %w", err)
	}
	return nil
}

func (s *Service) GetWebhookEvent(ctx context.Context, webhookID string) (*ledger.WebhookEvent, error) {
	var e ledger.WebhookEvent
	var headers, metadata string
	var processedAt sql.NullTime

	err := s.db.QueryRowContext(ctx, queryGetWebhookEvent, webhookID).Scan(
		&e.WebhookID, &e.Provider, &e.EventType, &e.Body, &headers,
		&e.Signature, &e.Status, &e.RetryCount, &e.PaymentID, &e.OrderID, &metadata,
		&e.ReceivedAt, &processedAt)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan webhook event: %w", err)
	}

	if e.Headers, err = decodeMap(headers); err != nil {
		return nil, fmt.Errorf("failed to decode webhook headers: %w", err)
	}
	if e.Metadata, err = decodeMap(metadata); err != nil {
		return nil, fmt.Errorf("failed to decode webhook metadata: %w", err)
	}
	e.ProcessedAt = timePtr(processedAt)
	return &e, nil
}

// ClaimWebhookEvent atomically flips a RECEIVED or FAILED event to
// PROCESSING. Exactly one of any set of concurrent claimants for the same
// webhook id wins; losers see false and treat the delivery as a duplicate.
func (s *Service) ClaimWebhookEvent(ctx context.Context, webhookID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, queryClaimWebhookEvent, webhookID)
	if err != nil {
		return false, fmt.Errorf("failed to claim webhook event %s: %w", webhookID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check rows affected: %w", err)
	}
	return rows == 1, nil
}

func (s *Service) SaveWebhookEvent(ctx context.Context, e *ledger.WebhookEvent) error {
	metadata, err := encodeMap(e.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode webhook metadata: %w", err)
	}
	result, err := s.db.ExecContext(ctx, queryUpdateWebhookEvent,
		e.Status, e.RetryCount, e.PaymentID, e.OrderID, metadata,
		nullTime(e.ProcessedAt), e.WebhookID)
	if err != nil {
		return fmt.Errorf("failed to update webhook event %s: %w", e.WebhookID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("webhook event %s: %w", e.WebhookID, store.ErrNotFound)
	}
	return nil
}

func encodeMap(m map[string]string) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeMap(s string) (map[string]string, error) {
	if s == "" || s == "{}" {
		return nil, nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, err
	}
	return m, nil
}
