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

package common

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"settlement-ledger-go/internal/database"
	"settlement-ledger-go/internal/events"
	kafkaevents "settlement-ledger-go/internal/events/kafka"
	"settlement-ledger-go/internal/models"
	"settlement-ledger-go/internal/money"
	"settlement-ledger-go/internal/postgres"
	"settlement-ledger-go/internal/settlement"
	"settlement-ledger-go/internal/store"
)

// init loads environment variables from .env file if it exists
func init() {
	// Environment variables can also be set via shell export, docker, etc.
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
	}
}

type Services struct {
	Store      store.LedgerStore
	Publisher  events.Publisher
	Settlement *settlement.Service
}

func InitializeLogger() (*zap.Logger, func()) {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

// InitializeServices wires the configured backend, event publisher, fx
// converter and orchestrator.
func InitializeServices(ctx context.Context, cfg *models.Config) (*Services, error) {
	ledgerStore, err := initializeStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var publisher events.Publisher = events.NoopPublisher{}
	if len(cfg.Events.Brokers) > 0 {
		publisher = kafkaevents.NewPublisher(cfg.Events.Brokers)
		zap.L().Info("Kafka event publisher enabled", zap.Strings("brokers", cfg.Events.Brokers))
	}

	converter, err := money.NewConverter(settlement.NewStoreRateSource(ledgerStore), money.ConverterConfig{
		BaseCurrency:       cfg.Fx.BaseCurrency,
		FallbackWindowDays: cfg.Fx.FallbackWindowDays,
		StalenessDays:      cfg.Fx.StalenessDays,
	})
	if err != nil {
		ledgerStore.Close()
		return nil, err
	}

	svc := settlement.NewService(ledgerStore, publisher, converter, settlement.Config{
		MaxWebhookRetries: cfg.Webhook.MaxRetries,
	})

	return &Services{
		Store:      ledgerStore,
		Publisher:  publisher,
		Settlement: svc,
	}, nil
}

func initializeStore(ctx context.Context, cfg *models.Config) (store.LedgerStore, error) {
	switch cfg.Backend {
	case "", "sqlite":
		return database.NewService(ctx, cfg.Database)
	case "postgres":
		return postgres.NewService(ctx, cfg.Postgres)
	default:
		return nil, fmt.Errorf("unknown ledger backend %q (want sqlite or postgres)", cfg.Backend)
	}
}

func (cs *Services) Close() {
	if cs.Publisher != nil {
		if err := cs.Publisher.Close(); err != nil {
			zap.L().Warn("Failed to close event publisher", zap.Error(err))
		}
	}
	if cs.Store != nil {
		cs.Store.Close()
	}
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
