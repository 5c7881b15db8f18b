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

// Package postgres implements the ledger store on PostgreSQL via pgx. It is
// wire-compatible with the SQLite backend: same tables, same semantics, for
// deployments that outgrow a single-file database.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"settlement-ledger-go/internal/models"
	"settlement-ledger-go/internal/store"
)

type Service struct {
	pool *pgxpool.Pool
}

var _ store.LedgerStore = (*Service)(nil)

func NewService(ctx context.Context, cfg models.PostgresConfig) (*Service, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("postgres url is required")
	}
	if cfg.PingTimeout <= 0 {
		return nil, fmt.Errorf("ping timeout must be positive, got %v", cfg.PingTimeout)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres url: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	s := &Service{pool: pool}
	if err := s.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	zap.L().Info("Connected to PostgreSQL", zap.String("database", poolCfg.ConnConfig.Database))
	return s, nil
}

func (s *Service) Close() {
	s.pool.Close()
}

func (s *Service) initSchema(ctx context.Context) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			id           TEXT PRIMARY KEY,
			account_type TEXT NOT NULL,
			owner_type   TEXT NOT NULL,
			owner_id     TEXT NOT NULL,
			currency     TEXT NOT NULL,
			balance      BIGINT NOT NULL,
			available    BIGINT NOT NULL,
			reserved     BIGINT NOT NULL,
			status       TEXT NOT NULL,
			version      BIGINT NOT NULL,
			created_at   TIMESTAMPTZ NOT NULL,
			updated_at   TIMESTAMPTZ NOT NULL,
			UNIQUE (account_type, owner_id, currency)
		)`,
		`CREATE TABLE IF NOT EXISTS transactions (
			id             TEXT PRIMARY KEY,
			txn_type       TEXT NOT NULL,
			amount         BIGINT NOT NULL,
			currency       TEXT NOT NULL,
			status         TEXT NOT NULL,
			reference_type TEXT NOT NULL,
			reference_id   TEXT NOT NULL,
			created_by     TEXT NOT NULL,
			failure_reason TEXT NOT NULL,
			created_at     TIMESTAMPTZ NOT NULL,
			completed_at   TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS ledger_entries (
			id             TEXT PRIMARY KEY,
			transaction_id TEXT NOT NULL REFERENCES transactions(id),
			account_id     TEXT NOT NULL REFERENCES accounts(id),
			entry_type     TEXT NOT NULL,
			amount         BIGINT NOT NULL,
			currency       TEXT NOT NULL,
			reference_type TEXT NOT NULL,
			reference_id   TEXT NOT NULL,
			description    TEXT NOT NULL,
			position       INTEGER NOT NULL,
			created_at     TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_account ON ledger_entries (account_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS payouts (
			id                      TEXT PRIMARY KEY,
			provider_id             TEXT NOT NULL,
			amount                  BIGINT NOT NULL,
			currency                TEXT NOT NULL,
			method                  TEXT NOT NULL,
			bank_name               TEXT NOT NULL,
			bank_branch             TEXT NOT NULL,
			bank_account_name       TEXT NOT NULL,
			bank_account_number     TEXT NOT NULL,
			bank_routing_number     TEXT NOT NULL,
			wallet_number           TEXT NOT NULL,
			wallet_holder           TEXT NOT NULL,
			status                  TEXT NOT NULL,
			reference_number        TEXT NOT NULL UNIQUE,
			requested_by            TEXT NOT NULL,
			approved_by             TEXT NOT NULL,
			processed_by            TEXT NOT NULL,
			external_transaction_id TEXT NOT NULL,
			failure_reason          TEXT NOT NULL,
			cancel_reason           TEXT NOT NULL,
			version                 BIGINT NOT NULL DEFAULT 1,
			requested_at            TIMESTAMPTZ NOT NULL,
			approved_at             TIMESTAMPTZ,
			processing_at           TIMESTAMPTZ,
			finished_at             TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS refunds (
			id                 TEXT PRIMARY KEY,
			payment_id         TEXT NOT NULL,
			booking_id         TEXT NOT NULL,
			amount             BIGINT NOT NULL,
			currency           TEXT NOT NULL,
			status             TEXT NOT NULL,
			provider_refund_id TEXT NOT NULL,
			reason             TEXT NOT NULL,
			failure_reason     TEXT NOT NULL,
			reference_number   TEXT NOT NULL UNIQUE,
			version            BIGINT NOT NULL DEFAULT 1,
			created_at         TIMESTAMPTZ NOT NULL,
			processing_at      TIMESTAMPTZ,
			finished_at        TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS webhook_events (
			webhook_id   TEXT PRIMARY KEY,
			provider     TEXT NOT NULL,
			event_type   TEXT NOT NULL,
			body         BYTEA NOT NULL,
			headers      TEXT NOT NULL,
			signature    TEXT NOT NULL,
			status       TEXT NOT NULL,
			retry_count  INTEGER NOT NULL,
			payment_id   TEXT NOT NULL,
			order_id     TEXT NOT NULL,
			metadata     TEXT NOT NULL,
			received_at  TIMESTAMPTZ NOT NULL,
			processed_at TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS fx_rates (
			currency  TEXT NOT NULL,
			rate_date TEXT NOT NULL,
			rate      TEXT NOT NULL,
			source    TEXT NOT NULL,
			PRIMARY KEY (currency, rate_date)
		)`,
	}
	for _, stmt := range schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return nil
}

// 23505 is unique_violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
