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

// payout drives the payout state machine from the command line: request,
// approve, cancel, process, complete, fail.
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
	"settlement-ledger-go/internal/settlement"
)

func main() {
	action := flag.String("action", "", "request|approve|cancel|process|complete|fail")
	payoutID := flag.String("payout", "", "payout id (all actions except request)")
	providerID := flag.String("provider", "", "provider id (request)")
	amount := flag.Int64("amount", 0, "amount in minor units (request)")
	currency := flag.String("currency", "BDT", "currency (request)")
	method := flag.String("method", "", "BANK|BKASH|NAGAD|ROCKET (request)")
	wallet := flag.String("wallet", "", "mobile wallet number (request, mobile methods)")
	holder := flag.String("holder", "", "mobile wallet account holder (request, mobile methods)")
	bankName := flag.String("bank-name", "", "bank name (request, BANK)")
	bankAccountName := flag.String("bank-account-name", "", "bank account holder (request, BANK)")
	bankAccountNumber := flag.String("bank-account-number", "", "bank account number (request, BANK)")
	bankRouting := flag.String("bank-routing", "", "bank routing number (request, BANK)")
	actor := flag.String("actor", "cli", "acting user id")
	reason := flag.String("reason", "", "reason (cancel, fail)")
	externalID := flag.String("external-id", "", "provider transaction id (complete)")
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

	p, err := run(ctx, services.Settlement, action, payoutID, providerID, amount, currency, method,
		wallet, holder, bankName, bankAccountName, bankAccountNumber, bankRouting,
		actor, reason, externalID)
	if err != nil {
		logger.Error("Payout action failed", zap.String("action", *action), zap.Error(err))
		os.Exit(1)
	}
	printPayout(p)
}

func run(ctx context.Context, svc *settlement.Service,
	action, payoutID, providerID *string, amount *int64, currency, method,
	wallet, holder, bankName, bankAccountName, bankAccountNumber, bankRouting,
	actor, reason, externalID *string) (*ledger.Payout, error) {

	switch *action {
	case "request":
		params := settlement.RequestPayoutParams{
			ProviderID:  *providerID,
			Amount:      money.MinorUnits(*amount),
			Currency:    *currency,
			Method:      ledger.PayoutMethod(*method),
			RequestedBy: *actor,
		}
		if params.Method == ledger.PayoutBank {
			params.Bank = &ledger.BankPayload{
				BankName:      *bankName,
				AccountName:   *bankAccountName,
				AccountNumber: *bankAccountNumber,
				RoutingNumber: *bankRouting,
			}
		} else {
			params.Mobile = &ledger.MobilePayload{
				WalletNumber:  *wallet,
				AccountHolder: *holder,
			}
		}
		return svc.RequestPayout(ctx, params)
	case "approve":
		return svc.ApprovePayout(ctx, *payoutID, *actor)
	case "cancel":
		return svc.CancelPayout(ctx, *payoutID, *reason)
	case "process":
		return svc.StartProcessingPayout(ctx, *payoutID, *actor)
	case "complete":
		return svc.CompletePayout(ctx, *payoutID, *externalID)
	case "fail":
		return svc.FailPayout(ctx, *payoutID, *reason)
	default:
		flag.Usage()
		return nil, fmt.Errorf("unknown action %q", *action)
	}
}

func printPayout(p *ledger.Payout) {
	fmt.Printf("\n┌─ Payout: %s (%s)\n", p.ID, p.ReferenceNumber)
	fmt.Printf("│  Provider: %s  Method: %s  Status: %s\n", p.ProviderID, p.Method, p.Status)
	fmt.Printf("│  Amount: %s\n", money.FormatMinor(p.Amount, p.Currency))
	if p.ExternalTransactionID != "" {
		fmt.Printf("│  External txn: %s\n", p.ExternalTransactionID)
	}
	if p.FailureReason != "" {
		fmt.Printf("│  Failure: %s\n", p.FailureReason)
	}
	if p.CancelReason != "" {
		fmt.Printf("│  Cancelled: %s\n", p.CancelReason)
	}
	fmt.Printf("└  Requested %s by %s\n", p.RequestedAt.Format("2006-01-02 15:04:05"), p.RequestedBy)
}
