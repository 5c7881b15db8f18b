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

// balances prints an account's balance breakdown and recent ledger
// entries, and optionally reconciles the stored balance against the
// posted entries.
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
	"settlement-ledger-go/internal/money"
)

func main() {
	accountID := flag.String("account", "", "account id to inspect (required)")
	limit := flag.Int("limit", 20, "number of recent entries to show")
	reconcile := flag.Bool("reconcile", false, "verify stored balance against posted entries")
	flag.Parse()

	if *accountID == "" {
		flag.Usage()
		os.Exit(2)
	}

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

	acct, err := services.Settlement.GetAccount(ctx, *accountID)
	if err != nil {
		logger.Fatal("Failed to load account", zap.String("account_id", *accountID), zap.Error(err))
	}

	printAccount(acct)

	entries, err := services.Settlement.GetTransactionHistory(ctx, *accountID, *limit, 0)
	if err != nil {
		logger.Fatal("Failed to load entries", zap.Error(err))
	}
	printEntries(acct.Currency, entries)

	if *reconcile {
		if err := services.Settlement.ReconcileAccount(ctx, *accountID); err != nil {
			fmt.Printf("\nReconciliation: MISMATCH (%v)\n", err)
			os.Exit(1)
		}
		fmt.Println("\nReconciliation: OK")
	}
}

func printAccount(acct *ledger.Account) {
	fmt.Printf("\n┌─ Account: %s\n", acct.ID)
	fmt.Printf("│  Type: %s  Owner: %s/%s  Status: %s\n", acct.Type, acct.OwnerType, acct.OwnerID, acct.Status)
	fmt.Printf("│  Balance:   %s\n", money.FormatMinor(acct.Balance, acct.Currency))
	fmt.Printf("│  Available: %s\n", money.FormatMinor(acct.Available, acct.Currency))
	fmt.Printf("│  Reserved:  %s\n", money.FormatMinor(acct.Reserved, acct.Currency))
	common.PrintBoxSeparator(78)
}

func printEntries(currency string, entries []ledger.LedgerEntry) {
	if len(entries) == 0 {
		fmt.Println("└  no entries")
		return
	}
	for i, e := range entries {
		symbol := common.BoxPrefix(i == len(entries)-1)
		fmt.Printf("%s %-6s %18s  %s  %s\n",
			symbol,
			e.Type,
			money.FormatMinor(e.Amount, currency),
			e.CreatedAt.Format("2006-01-02 15:04:05"),
			e.Description)
	}
}
