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

package settlement

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"settlement-ledger-go/internal/events"
	"settlement-ledger-go/internal/ledger"
	"settlement-ledger-go/internal/money"
	"settlement-ledger-go/internal/store"
)

// RequestPayoutParams describes a provider's disbursement request. Exactly
// one of Bank or Mobile must be set, matching Method.
type RequestPayoutParams struct {
	ProviderID  string
	Amount      money.MinorUnits
	Currency    string
	Method      ledger.PayoutMethod
	Bank        *ledger.BankPayload
	Mobile      *ledger.MobilePayload
	RequestedBy string
}

// RequestPayout records a new payout in PENDING. No funds move until
// approval.
func (s *Service) RequestPayout(ctx context.Context, params RequestPayoutParams) (*ledger.Payout, error) {
	p, err := ledger.NewPayout(params.ProviderID, params.Amount, params.Currency,
		params.Method, params.Bank, params.Mobile, params.RequestedBy, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.store.CreatePayout(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// GetPayout returns the current payout state.
func (s *Service) GetPayout(ctx context.Context, payoutID string) (*ledger.Payout, error) {
	return s.store.GetPayout(ctx, payoutID)
}

// ApprovePayout moves a payout to APPROVED and places a hold for its amount
// on the provider's account, atomically. An approval that cannot be covered
// by available funds fails and leaves the payout PENDING.
func (s *Service) ApprovePayout(ctx context.Context, payoutID, approverID string) (*ledger.Payout, error) {
	p, err := s.store.GetPayout(ctx, payoutID)
	if err != nil {
		return nil, err
	}
	acctID, err := s.providerAccountID(ctx, p)
	if err != nil {
		return nil, err
	}

	unlock := s.lockAccounts([]string{acctID})
	defer unlock()

	acct, err := s.store.GetAccount(ctx, acctID)
	if err != nil {
		return nil, err
	}
	if err := p.Approve(approverID, s.now()); err != nil {
		return nil, err
	}
	if err := acct.Reserve(p.Amount); err != nil {
		return nil, err
	}
	if err := s.store.Commit(ctx, store.CommitParams{
		Accounts: []*ledger.Account{acct},
		Payout:   p,
	}); err != nil {
		return nil, err
	}
	zap.L().Info("Payout approved",
		zap.String("payout_id", p.ID),
		zap.String("approved_by", approverID),
		zap.Int64("reserved", p.Amount.Int64()))
	return p, nil
}

// CancelPayout cancels a PENDING or APPROVED payout. Cancelling an approved
// payout releases its hold in the same commit.
func (s *Service) CancelPayout(ctx context.Context, payoutID, reason string) (*ledger.Payout, error) {
	p, err := s.store.GetPayout(ctx, payoutID)
	if err != nil {
		return nil, err
	}
	wasApproved := p.Status == ledger.PayoutApproved

	if !wasApproved {
		if err := p.Cancel(reason, s.now()); err != nil {
			return nil, err
		}
		if err := s.store.SavePayout(ctx, p); err != nil {
			return nil, err
		}
		return p, nil
	}

	acctID, err := s.providerAccountID(ctx, p)
	if err != nil {
		return nil, err
	}
	unlock := s.lockAccounts([]string{acctID})
	defer unlock()

	acct, err := s.store.GetAccount(ctx, acctID)
	if err != nil {
		return nil, err
	}
	if err := p.Cancel(reason, s.now()); err != nil {
		return nil, err
	}
	if err := acct.Release(p.Amount); err != nil {
		return nil, err
	}
	if err := s.store.Commit(ctx, store.CommitParams{
		Accounts: []*ledger.Account{acct},
		Payout:   p,
	}); err != nil {
		return nil, err
	}
	zap.L().Info("Payout cancelled, hold released",
		zap.String("payout_id", p.ID),
		zap.String("reason", reason))
	return p, nil
}

// StartProcessingPayout marks an approved payout as handed to the
// disbursement rail.
func (s *Service) StartProcessingPayout(ctx context.Context, payoutID, processorID string) (*ledger.Payout, error) {
	p, err := s.store.GetPayout(ctx, payoutID)
	if err != nil {
		return nil, err
	}
	if err := p.StartProcessing(processorID, s.now()); err != nil {
		return nil, err
	}
	if err := s.store.SavePayout(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// CompletePayout marks a processing payout PAID and posts the disbursement:
// the provider's hold is captured and the platform clearing account for the
// payout currency is credited, all in one commit.
func (s *Service) CompletePayout(ctx context.Context, payoutID, externalTxnID string) (*ledger.Payout, error) {
	p, err := s.store.GetPayout(ctx, payoutID)
	if err != nil {
		return nil, err
	}
	providerAcctID, err := s.providerAccountID(ctx, p)
	if err != nil {
		return nil, err
	}
	clearing, err := s.FindOrCreateAccount(ctx, ledger.AccountReserve, platformOwnerType, platformOwnerID, p.Currency)
	if err != nil {
		return nil, fmt.Errorf("clearing account: %w", err)
	}

	unlock := s.lockAccounts([]string{providerAcctID, clearing.ID})
	defer unlock()

	provider, err := s.store.GetAccount(ctx, providerAcctID)
	if err != nil {
		return nil, err
	}
	clearing, err = s.store.GetAccount(ctx, clearing.ID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := p.MarkPaid(externalTxnID, now); err != nil {
		return nil, err
	}

	txn, err := ledger.NewTransaction(ledger.TxnProviderPayout, "payout", p.ID, p.Currency, p.ProcessedBy, now)
	if err != nil {
		return nil, err
	}
	if err := txn.AddCaptureEntry(provider, p.Amount, "payout capture "+p.ReferenceNumber, now); err != nil {
		return nil, err
	}
	if err := txn.AddEntry(clearing, ledger.Credit, p.Amount, "payout disbursement "+p.ReferenceNumber, now); err != nil {
		return nil, err
	}
	if err := txn.Complete(now); err != nil {
		return nil, err
	}

	if err := s.store.Commit(ctx, store.CommitParams{
		Transaction: txn,
		Accounts:    []*ledger.Account{provider, clearing},
		Payout:      p,
	}); err != nil {
		return nil, err
	}

	s.publish(ctx, events.TopicPayoutPaid, events.PayoutPaid{
		PayoutID:        p.ID,
		ReferenceNumber: p.ReferenceNumber,
		ProviderID:      p.ProviderID,
		Amount:          p.Amount.Int64(),
		Currency:        p.Currency,
		Method:          string(p.Method),
		ExternalTxnID:   externalTxnID,
		OccurredAt:      now,
	})
	zap.L().Info("Payout paid",
		zap.String("payout_id", p.ID),
		zap.String("external_txn_id", externalTxnID),
		zap.String("transaction_id", txn.ID))
	return p, nil
}

// FailPayout marks a processing payout FAILED and releases the provider's
// hold so the funds become spendable again.
func (s *Service) FailPayout(ctx context.Context, payoutID, reason string) (*ledger.Payout, error) {
	p, err := s.store.GetPayout(ctx, payoutID)
	if err != nil {
		return nil, err
	}
	acctID, err := s.providerAccountID(ctx, p)
	if err != nil {
		return nil, err
	}

	unlock := s.lockAccounts([]string{acctID})
	defer unlock()

	acct, err := s.store.GetAccount(ctx, acctID)
	if err != nil {
		return nil, err
	}
	if err := p.MarkFailed(reason, s.now()); err != nil {
		return nil, err
	}
	if err := acct.Release(p.Amount); err != nil {
		return nil, err
	}
	if err := s.store.Commit(ctx, store.CommitParams{
		Accounts: []*ledger.Account{acct},
		Payout:   p,
	}); err != nil {
		return nil, err
	}
	zap.L().Warn("Payout failed, hold released",
		zap.String("payout_id", p.ID),
		zap.String("reason", reason))
	return p, nil
}

func (s *Service) providerAccountID(ctx context.Context, p *ledger.Payout) (string, error) {
	acct, err := s.store.FindAccount(ctx, ledger.AccountProvider, p.ProviderID, p.Currency)
	if err != nil {
		return "", fmt.Errorf("provider %s has no %s account: %w", p.ProviderID, p.Currency, err)
	}
	return acct.ID, nil
}
