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
	"errors"
	"fmt"

	"settlement-ledger-go/internal/models"
	"settlement-ledger-go/internal/store"

	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Compile-time check: *Service must satisfy store.LedgerStore.
var _ store.LedgerStore = (*Service)(nil)

// Service is the SQLite-backed ledger store. Account rows carry an explicit
// version column; every write of an account row is conditional on the version
// it was read at, so two writers racing on the same account cannot both win.
type Service struct {
	db *sql.DB
}

func NewService(ctx context.Context, cfg models.DatabaseConfig) (*Service, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if cfg.MaxOpenConns <= 0 {
		return nil, fmt.Errorf("max open connections must be positive, got %d", cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns < 0 {
		return nil, fmt.Errorf("max idle connections cannot be negative, got %d", cfg.MaxIdleConns)
	}
	if cfg.PingTimeout <= 0 {
		return nil, fmt.Errorf("ping timeout must be positive, got %v", cfg.PingTimeout)
	}

	zap.L().Info("Opening SQLite database", zap.String("file", cfg.Path))
	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, cerr
		}
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	service := &Service{db: db}
	if err := service.InitSchema(); err != nil {
		if cerr := db.Close(); cerr != nil {
			return nil, cerr
		}
		return nil, fmt.Errorf("unable to initialize schema: %w", err)
	}

	zap.L().Info("Ledger database initialized successfully")
	return service, nil
}

func (s *Service) Close() {
	if err := s.db.Close(); err != nil {
		zap.L().Warn("Failed to close database connection", zap.Error(err))
	}
}

func (s *Service) InitSchema() error {
	schema := `
	-- Accounts: one ledger participant per (type, owner, currency)
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		account_type TEXT NOT NULL,
		owner_type TEXT NOT NULL,
		owner_id TEXT NOT NULL,
		currency TEXT NOT NULL,
		balance INTEGER NOT NULL DEFAULT 0,
		available INTEGER NOT NULL DEFAULT 0,
		reserved INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'active',
		version INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		UNIQUE(account_type, owner_id, currency)
	);
	CREATE INDEX IF NOT EXISTS idx_accounts_owner ON accounts(owner_id);

	-- Transactions: balanced posting groups
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		txn_type TEXT NOT NULL,
		amount INTEGER NOT NULL DEFAULT 0,
		currency TEXT NOT NULL,
		status TEXT NOT NULL,
		reference_type TEXT,
		reference_id TEXT,
		created_by TEXT,
		failure_reason TEXT,
		created_at TIMESTAMP NOT NULL,
		completed_at TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_transactions_reference ON transactions(reference_type, reference_id);

	-- Ledger entries: immutable postings, ordered by position within a transaction
	CREATE TABLE IF NOT EXISTS ledger_entries (
		id TEXT PRIMARY KEY,
		transaction_id TEXT NOT NULL REFERENCES transactions(id),
		account_id TEXT NOT NULL REFERENCES accounts(id),
		entry_type TEXT NOT NULL,
		amount INTEGER NOT NULL,
		currency TEXT NOT NULL,
		reference_type TEXT,
		reference_id TEXT,
		description TEXT,
		position INTEGER NOT NULL,
		created_at TIMESTAMP NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_ledger_entries_account ON ledger_entries(account_id);
	CREATE INDEX IF NOT EXISTS idx_ledger_entries_transaction ON ledger_entries(transaction_id);

	-- Payouts: provider withdrawal requests
	CREATE TABLE IF NOT EXISTS payouts (
		id TEXT PRIMARY KEY,
		provider_id TEXT NOT NULL,
		amount INTEGER NOT NULL,
		currency TEXT NOT NULL,
		method TEXT NOT NULL,
		bank_name TEXT,
		bank_branch TEXT,
		bank_account_name TEXT,
		bank_account_number TEXT,
		bank_routing_number TEXT,
		wallet_number TEXT,
		wallet_holder TEXT,
		status TEXT NOT NULL,
		reference_number TEXT NOT NULL UNIQUE,
		requested_by TEXT,
		approved_by TEXT,
		processed_by TEXT,
		external_transaction_id TEXT,
		failure_reason TEXT,
		cancel_reason TEXT,
		version INTEGER NOT NULL DEFAULT 1,
		requested_at TIMESTAMP NOT NULL,
		approved_at TIMESTAMP,
		processing_at TIMESTAMP,
		finished_at TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_payouts_provider ON payouts(provider_id);
	CREATE INDEX IF NOT EXISTS idx_payouts_status ON payouts(status);

	-- Refunds
	CREATE TABLE IF NOT EXISTS refunds (
		id TEXT PRIMARY KEY,
		payment_id TEXT NOT NULL,
		booking_id TEXT,
		amount INTEGER NOT NULL,
		currency TEXT NOT NULL,
		status TEXT NOT NULL,
		provider_refund_id TEXT,
		reason TEXT,
		failure_reason TEXT,
		reference_number TEXT NOT NULL UNIQUE,
		version INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMP NOT NULL,
		processing_at TIMESTAMP,
		finished_at TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_refunds_payment ON refunds(payment_id);

	-- Webhook events: idempotency records for inbound provider notifications
	CREATE TABLE IF NOT EXISTS webhook_events (
		webhook_id TEXT PRIMARY KEY,
		provider TEXT NOT NULL,
		event_type TEXT,
		body BLOB,
		headers TEXT,
		signature TEXT,
		status TEXT NOT NULL,
		retry_count INTEGER NOT NULL DEFAULT 0,
		payment_id TEXT,
		order_id TEXT,
		metadata TEXT,
		received_at TIMESTAMP NOT NULL,
		processed_at TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_webhook_events_status ON webhook_events(status);

	-- FX rates: one row per (currency, date), rate to the base currency
	CREATE TABLE IF NOT EXISTS fx_rates (
		currency TEXT NOT NULL,
		rate_date TEXT NOT NULL,
		rate TEXT NOT NULL,
		source TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (currency, rate_date)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// isUniqueViolation reports whether err is a SQLite unique-constraint error.
func isUniqueViolation(err error) bool {
	var serr sqlite3.Error
	if errors.As(err, &serr) {
		return serr.Code == sqlite3.ErrConstraint
	}
	return false
}
