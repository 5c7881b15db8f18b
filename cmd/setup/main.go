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

// setup initializes the ledger database, seeds the fx rate table from a
// YAML file and creates the platform accounts.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"settlement-ledger-go/internal/common"
	"settlement-ledger-go/internal/config"
	"settlement-ledger-go/internal/ledger"
)

func main() {
	ratesFile := flag.String("rates", "", "YAML file of fx rates to seed (defaults to FX_RATES_FILE)")
	skipRates := flag.Bool("skip-rates", false, "skip fx rate seeding")
	platformCurrency := flag.String("currency", "BDT", "currency of the platform accounts to create")
	flag.Parse()

	logger, cleanup := common.InitializeLogger()
	defer cleanup()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	ctx := context.Background()
	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	common.PrintHeader("Settlement Ledger Setup", common.DefaultWidth)

	if !*skipRates {
		file := *ratesFile
		if file == "" {
			file = cfg.Fx.RatesFile
		}
		if err := seedRates(ctx, services, file); err != nil {
			logger.Error("Failed to seed fx rates", zap.Error(err))
			os.Exit(1)
		}
	}

	for _, typ := range []ledger.AccountType{ledger.AccountPlatform, ledger.AccountReserve} {
		acct, err := services.Settlement.FindOrCreateAccount(ctx, typ, "platform", "platform", *platformCurrency)
		if err != nil {
			logger.Error("Failed to create platform account",
				zap.String("type", string(typ)),
				zap.Error(err))
			os.Exit(1)
		}
		fmt.Printf("  %s account: %s (%s)\n", typ, acct.ID, acct.Currency)
	}

	common.PrintFooter("Setup complete", common.DefaultWidth)
}

func seedRates(ctx context.Context, services *common.Services, file string) error {
	rates, err := common.LoadRatesFile(file)
	if err != nil {
		return err
	}
	for _, rate := range rates {
		if err := services.Settlement.UpsertRate(ctx, rate); err != nil {
			return err
		}
	}
	fmt.Printf("  Seeded %d fx rates from %s\n", len(rates), file)
	return nil
}
