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

// Package models holds the configuration structures shared across the
// service.
package models

import "time"

// Config is the root configuration, assembled from environment variables
// by the config package.
type Config struct {
	Database DatabaseConfig
	Postgres PostgresConfig
	Fx       FxConfig
	Webhook  WebhookConfig
	Events   EventsConfig

	// Backend selects the persistence layer: "sqlite" or "postgres".
	Backend string

	LogLevel string
}

// DatabaseConfig configures the embedded SQLite backend.
type DatabaseConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
}

// PostgresConfig configures the server-backed Postgres backend.
type PostgresConfig struct {
	URL         string
	MaxConns    int32
	MinConns    int32
	PingTimeout time.Duration
}

// FxConfig configures the converter against the dated rate table.
type FxConfig struct {
	BaseCurrency       string
	FallbackWindowDays int
	StalenessDays      int
	RatesFile          string
}

// WebhookConfig bounds webhook processing.
type WebhookConfig struct {
	MaxRetries int
}

// EventsConfig configures the Kafka event publisher. Empty brokers means
// events are discarded.
type EventsConfig struct {
	Brokers []string
}
