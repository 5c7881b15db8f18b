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

package postgres

const (
	queryInsertAccount = `
		INSERT INTO accounts (id, account_type, owner_type, owner_id, currency,
			balance, available, reserved, status, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	queryGetAccount = `
		SELECT id, account_type, owner_type, owner_id, currency,
		       balance, available, reserved, status, version, created_at, updated_at
		FROM accounts
		WHERE id = $1`

	queryFindAccount = `
		SELECT id, account_type, owner_type, owner_id, currency,
		       balance, available, reserved, status, version, created_at, updated_at
		FROM accounts
		WHERE account_type = $1 AND owner_id = $2 AND currency = $3`

	queryUpdateAccount = `
		UPDATE accounts
		SET balance = $1, available = $2, reserved = $3, status = $4,
		    version = version + 1, updated_at = $5
		WHERE id = $6 AND version = $7`

	queryInsertTransaction = `
		INSERT INTO transactions (id, txn_type, amount, currency, status,
			reference_type, reference_id, created_by, failure_reason, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	queryGetTransaction = `
		SELECT id, txn_type, amount, currency, status,
		       reference_type, reference_id, created_by, failure_reason, created_at, completed_at
		FROM transactions
		WHERE id = $1`

	queryInsertEntry = `
		INSERT INTO ledger_entries (id, transaction_id, account_id, entry_type, amount,
			currency, reference_type, reference_id, description, position, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	queryGetEntriesByTransaction = `
		SELECT id, transaction_id, account_id, entry_type, amount,
		       currency, reference_type, reference_id, description, position, created_at
		FROM ledger_entries
		WHERE transaction_id = $1
		ORDER BY position`

	queryGetEntriesByAccount = `
		SELECT id, transaction_id, account_id, entry_type, amount,
		       currency, reference_type, reference_id, description, position, created_at
		FROM ledger_entries
		WHERE account_id = $1
		ORDER BY created_at DESC, position DESC
		LIMIT $2 OFFSET $3`

	querySumEntriesByAccount = `
		SELECT
			COALESCE(SUM(CASE WHEN entry_type = 'DEBIT' THEN amount ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN entry_type = 'CREDIT' THEN amount ELSE 0 END), 0)
		FROM ledger_entries
		WHERE account_id = $1`

	queryInsertPayout = `
		INSERT INTO payouts (id, provider_id, amount, currency, method,
			bank_name, bank_branch, bank_account_name, bank_account_number, bank_routing_number,
			wallet_number, wallet_holder, status, reference_number,
			requested_by, approved_by, processed_by, external_transaction_id,
			failure_reason, cancel_reason, version, requested_at, approved_at, processing_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25)`

	queryGetPayout = `
		SELECT id, provider_id, amount, currency, method,
		       bank_name, bank_branch, bank_account_name, bank_account_number, bank_routing_number,
		       wallet_number, wallet_holder, status, reference_number,
		       requested_by, approved_by, processed_by, external_transaction_id,
		       failure_reason, cancel_reason, version, requested_at, approved_at, processing_at, finished_at
		FROM payouts
		WHERE id = $1`

	queryUpdatePayout = `
		UPDATE payouts
		SET status = $1, approved_by = $2, processed_by = $3, external_transaction_id = $4,
		    failure_reason = $5, cancel_reason = $6, approved_at = $7, processing_at = $8, finished_at = $9,
		    version = version + 1
		WHERE id = $10 AND version = $11`

	queryInsertRefund = `
		INSERT INTO refunds (id, payment_id, booking_id, amount, currency, status,
			provider_refund_id, reason, failure_reason, reference_number,
			version, created_at, processing_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	queryGetRefund = `
		SELECT id, payment_id, booking_id, amount, currency, status,
		       provider_refund_id, reason, failure_reason, reference_number,
		       version, created_at, processing_at, finished_at
		FROM refunds
		WHERE id = $1`

	queryUpdateRefund = `
		UPDATE refunds
		SET status = $1, provider_refund_id = $2, failure_reason = $3,
		    processing_at = $4, finished_at = $5, version = version + 1
		WHERE id = $6 AND version = $7`

	queryInsertWebhookEvent = `
		INSERT INTO webhook_events (webhook_id, provider, event_type, body, headers,
			signature, status, retry_count, payment_id, order_id, metadata,
			received_at, processed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	queryGetWebhookEvent = `
		SELECT webhook_id, provider, event_type, body, headers,
		       signature, status, retry_count, payment_id, order_id, metadata,
		       received_at, processed_at
		FROM webhook_events
		WHERE webhook_id = $1`

	queryClaimWebhookEvent = `
		UPDATE webhook_events
		SET status = 'PROCESSING'
		WHERE webhook_id = $1 AND status IN ('RECEIVED', 'FAILED')`

	queryUpdateWebhookEvent = `
		UPDATE webhook_events
		SET status = $1, retry_count = $2, payment_id = $3, order_id = $4,
		    metadata = $5, processed_at = $6
		WHERE webhook_id = $7`

	queryUpsertFxRate = `
		INSERT INTO fx_rates (currency, rate_date, rate, source)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (currency, rate_date) DO UPDATE SET rate = EXCLUDED.rate, source = EXCLUDED.source`

	queryGetFxRate = `
		SELECT currency, rate_date, rate, source
		FROM fx_rates
		WHERE currency = $1 AND rate_date = $2`

	queryGetLatestFxRateBefore = `
		SELECT currency, rate_date, rate, source
		FROM fx_rates
		WHERE currency = $1 AND rate_date < $2 AND rate_date >= $3
		ORDER BY rate_date DESC
		LIMIT 1`
)
