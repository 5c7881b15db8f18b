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

const (
	// Account queries
	queryInsertAccount = `
		INSERT INTO accounts (id, account_type, owner_type, owner_id, currency,
			balance, available, reserved, status, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetAccount = `
		SELECT id, account_type, owner_type, owner_id, currency,
		       balance, available, reserved, status, version, created_at, updated_at
		FROM accounts
		WHERE id = ?`

	queryFindAccount = `
		SELECT id, account_type, owner_type, owner_id, currency,
		       balance, available, reserved, status, version, created_at, updated_at
		FROM accounts
		WHERE account_type = ? AND owner_id = ? AND currency = ?`

	queryUpdateAccount = `
		UPDATE accounts
		SET balance = ?, available = ?, reserved = ?, status = ?,
		    version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`

	// Transaction queries
	queryInsertTransaction = `
		INSERT INTO transactions (id, txn_type, amount, currency, status,
			reference_type, reference_id, created_by, failure_reason, created_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetTransaction = `
		SELECT id, txn_type, amount, currency, status,
		       reference_type, reference_id, created_by, failure_reason, created_at, completed_at
		FROM transactions
		WHERE id = ?`

	queryInsertEntry = `
		INSERT INTO ledger_entries (id, transaction_id, account_id, entry_type, amount,
			currency, reference_type, reference_id, description, position, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetEntriesByTransaction = `
		SELECT id, transaction_id, account_id, entry_type, amount,
		       currency, reference_type, reference_id, description, position, created_at
		FROM ledger_entries
		WHERE transaction_id = ?
		ORDER BY position`

	queryGetEntriesByAccount = `
		SELECT id, transaction_id, account_id, entry_type, amount,
		       currency, reference_type, reference_id, description, position, created_at
		FROM ledger_entries
		WHERE account_id = ?
		ORDER BY created_at DESC, position DESC
		LIMIT ? OFFSET ?`

	querySumEntriesByAccount = `
		SELECT
			COALESCE(SUM(CASE WHEN entry_type = 'DEBIT' THEN amount ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN entry_type = 'CREDIT' THEN amount ELSE 0 END), 0)
		FROM ledger_entries
		WHERE account_id = ?`

	// Payout queries
	queryInsertPayout = `
		INSERT INTO payouts (id, provider_id, amount, currency, method,
			bank_name, bank_branch, bank_account_name, bank_account_number, bank_routing_number,
			wallet_number, wallet_holder, status, reference_number,
			requested_by, approved_by, processed_by, external_transaction_id,
			failure_reason, cancel_reason, version, requested_at, approved_at, processing_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetPayout = `
		SELECT id, provider_id, amount, currency, method,
		       bank_name, bank_branch, bank_account_name, bank_account_number, bank_routing_number,
		       wallet_number, wallet_holder, status, reference_number,
		       requested_by, approved_by, processed_by, external_transaction_id,
		       failure_reason, cancel_reason, version, requested_at, approved_at, processing_at, finished_at
		FROM payouts
		WHERE id = ?`

	queryUpdatePayout = `
		UPDATE payouts
		SET status = ?, approved_by = ?, processed_by = ?, external_transaction_id = ?,
		    failure_reason = ?, cancel_reason = ?, approved_at = ?, processing_at = ?, finished_at = ?,
		    version = version + 1
		WHERE id = ? AND version = ?`

	// Refund queries
	queryInsertRefund = `
		INSERT INTO refunds (id, payment_id, booking_id, amount, currency, status,
			provider_refund_id, reason, failure_reason, reference_number,
			version, created_at, processing_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetRefund = `
		SELECT id, payment_id, booking_id, amount, currency, status,
		       provider_refund_id, reason, failure_reason, reference_number,
		       version, created_at, processing_at, finished_at
		FROM refunds
		WHERE id = ?`

	queryUpdateRefund = `
		UPDATE refunds
		SET status = ?, provider_refund_id = ?, failure_reason = ?,
		    processing_at = ?, finished_at = ?, version = version + 1
		WHERE id = ? AND version = ?`

	// Webhook event queries
	queryInsertWebhookEvent = `
		INSERT INTO webhook_events (webhook_id, provider, event_type, body, headers,
			signature, status, retry_count, payment_id, order_id, metadata,
			received_at, processed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetWebhookEvent = `
		SELECT webhook_id, provider, event_type, body, headers,
		       signature, status, retry_count, payment_id, order_id, metadata,
		       received_at, processed_at
		FROM webhook_events
		WHERE webhook_id = ?`

	queryClaimWebhookEvent = `
		UPDATE webhook_events
		SET status = 'PROCESSING'
		WHERE webhook_id = ? AND status IN ('RECEIVED', 'FAILED')`

	queryUpdateWebhookEvent = `
		UPDATE webhook_events
		SET status = ?, retry_count = ?, payment_id = ?, order_id = ?,
		    metadata = ?, processed_at = ?
		WHERE webhook_id = ?`

	// FX rate queries
	queryUpsertFxRate = `
		INSERT INTO fx_rates (currency, rate_date, rate, source)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(currency, rate_date) DO UPDATE SET rate = excluded.rate, source = excluded.source`

	queryGetFxRate = `
		SELECT currency, rate_date, rate, source
		FROM fx_rates
		WHERE currency = ? AND rate_date = ?`

	queryGetLatestFxRateBefore = `
		SELECT currency, rate_date, rate, source
		FROM fx_rates
		WHERE currency = ? AND rate_date < ? AND rate_date >= ?
		ORDER BY rate_date DESC
		LIMIT 1`
)
