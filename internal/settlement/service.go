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
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"settlement-ledger-go/internal/events"
	"settlement-ledger-go/internal/ledger"
	"settlement-ledger-go/internal/money"
	"settlement-ledger-go/internal/store"
)

// The platform-owned clearing account that absorbs the credit side of payout
// captures, one per currency, created on first need.
const (
	platformOwnerID   = "platform"
	platformOwnerType = "platform"
)

// Config tunes the orchestrator.
type Config struct {
	MaxWebhookRetries int
}

// Service is the settlement orchestrator: the only component external
// callers (booking/payment controllers, webhook handlers) invoke directly.
// It composes accounts, the posting engine, payouts, refunds and the webhook
// idempotency store into use cases, and persists each use case as one atomic
// unit through the store.
//
// A per-account mutex map, acquired in sorted order, serializes concurrent
// use cases that share accounts within this process; the store's version
// check on account rows backstops races across processes.
type Service struct {
	store     store.LedgerStore
	publisher events.Publisher
	fx        *money.Converter
	cfg       Config

	muMap map[string]*sync.Mutex
	mapMu sync.Mutex

	now func() time.Time
}

func NewService(st store.LedgerStore, publisher events.Publisher, fx *money.Converter, cfg Config) *Service {
	if cfg.MaxWebhookRetries <= 0 {
		cfg.MaxWebhookRetries = 3
	}
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &Service{
		store:     st,
		publisher: publisher,
		fx:        fx,
		cfg:       cfg,
		muMap:     make(map[string]*sync.Mutex),
		now:       time.Now,
	}
}

// EntryParams describes one posting of a balanced transaction.
type EntryParams struct {
	AccountID   string
	Type        ledger.EntryType
	Amount      money.MinorUnits
	Description string
}

// PostTransactionParams describes a balanced multi-entry posting.
type PostTransactionParams struct {
	Type          ledger.TransactionType
	Currency      string
	ReferenceType string
	ReferenceID   string
	CreatedBy     string
	Entries       []EntryParams
}

// PostTransaction builds and commits a balanced transaction. Entries apply
// to their accounts in the order given; if any entry's account operation
// fails, or debits do not equal credits, nothing is persisted and every
// account is left exactly as it was.
func (s *Service) PostTransaction(ctx context.Context, params PostTransactionParams) (*ledger.Transaction, error) {
	if len(params.Entries) == 0 {
		return nil, fmt.Errorf("transaction requires at least one entry")
	}

	ids := make([]string, 0, len(params.Entries))
	for _, e := range params.Entries {
		ids = append(ids, e.AccountID)
	}
	unlock := s.lockAccounts(ids)
	defer unlock()

	accounts, err := s.loadAccounts(ctx, ids)
	if err != nil {
		return nil, err
	}

	now := s.now()
	txn, err := ledger.NewTransaction(params.Type, params.ReferenceType, params.ReferenceID,
		params.Currency, params.CreatedBy, now)
	if err != nil {
		return nil, err
	}

	for _, e := range params.Entries {
		if err := txn.AddEntry(accounts[e.AccountID], e.Type, e.Amount, e.Description, now); err != nil {
			return nil, err
		}
	}
	if err := txn.Complete(now); err != nil {
		return nil, err
	}

	if err := s.store.Commit(ctx, store.CommitParams{
		Transaction: txn,
		Accounts:    accountList(accounts, ids),
	}); err != nil {
		return nil, err
	}

	s.publish(ctx, events.TopicTransactionCompleted, events.TransactionCompleted{
		TransactionID: txn.ID,
		Type:          string(txn.Type),
		Amount:        txn.Amount.Int64(),
		Currency:      txn.Currency,
		ReferenceType: txn.ReferenceType,
		ReferenceID:   txn.ReferenceID,
		OccurredAt:    now,
	})
	return txn, nil
}

// FindOrCreateAccount returns the unique account for (type, owner, currency),
// creating it on first need. A concurrent first-create race converges on the
// winner's row.
func (s *Service) FindOrCreateAccount(ctx context.Context, typ ledger.AccountType, ownerType, ownerID, currency string) (*ledger.Account, error) {
	acct, err := s.store.FindAccount(ctx, typ, ownerID, currency)
	if err == nil {
		return acct, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	acct, err = ledger.NewAccount(typ, ownerType, ownerID, currency, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.store.CreateAccount(ctx, acct); err != nil {
		if errors.Is(err, store.ErrAccountExists) {
			return s.store.FindAccount(ctx, typ, ownerID, currency)
		}
		return nil, err
	}
	return acct, nil
}

// ReserveFunds places a hold on an account: available -> reserved.
func (s *Service) ReserveFunds(ctx context.Context, accountID string, amount money.MinorUnits) error {
	return s.mutateAccount(ctx, accountID, func(acct *ledger.Account) error {
		return acct.Reserve(amount)
	})
}

// ReleaseFunds returns held funds to available.
func (s *Service) ReleaseFunds(ctx context.Context, accountID string, amount money.MinorUnits) error {
	return s.mutateAccount(ctx, accountID, func(acct *ledger.Account) error {
		return acct.Release(amount)
	})
}

// CaptureFunds consumes a hold; the funds leave the account entirely.
func (s *Service) CaptureFunds(ctx context.Context, accountID string, amount money.MinorUnits) error {
	return s.mutateAccount(ctx, accountID, func(acct *ledger.Account) error {
		return acct.CaptureReserved(amount)
	})
}

// GetAccount returns the current account state.
func (s *Service) GetAccount(ctx context.Context, accountID string) (*ledger.Account, error) {
	return s.store.GetAccount(ctx, accountID)
}

// GetTransactionHistory returns an account's postings, newest first.
func (s *Service) GetTransactionHistory(ctx context.Context, accountID string, limit, offset int) ([]ledger.LedgerEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.store.GetEntriesByAccount(ctx, accountID, limit, offset)
}

// ReconcileAccount recomputes the balance from posted entries and compares
// it with the stored balance. Exact for accounts whose balance moved only
// through posted transactions; holds released or captured outside a posting
// are not represented in entries.
func (s *Service) ReconcileAccount(ctx context.Context, accountID string) error {
	acct, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}
	debits, credits, err := s.store.SumEntriesByAccount(ctx, accountID)
	if err != nil {
		return err
	}
	calculated := credits.Sub(debits)
	if calculated != acct.Balance {
		zap.L().Error("Balance reconciliation failed",
			zap.String("account_id", accountID),
			zap.Int64("stored_balance", acct.Balance.Int64()),
			zap.Int64("calculated_balance", calculated.Int64()))
		return fmt.Errorf("account %s balance mismatch: stored=%d, calculated=%d",
			accountID, acct.Balance, calculated)
	}
	zap.L().Info("Balance reconciliation successful",
		zap.String("account_id", accountID),
		zap.Int64("balance", acct.Balance.Int64()))
	return nil
}

// ConvertToBase converts a minor-unit amount into the base currency using
// the dated rate table.
func (s *Service) ConvertToBase(ctx context.Context, amount money.MinorUnits, currency string, asOf time.Time) (money.MinorUnits, error) {
	if s.fx == nil {
		return 0, fmt.Errorf("fx converter not configured")
	}
	return s.fx.ToBase(ctx, amount, currency, asOf)
}

// ConvertFromBase converts a base-currency minor-unit amount into currency.
func (s *Service) ConvertFromBase(ctx context.Context, baseAmount money.MinorUnits, currency string, asOf time.Time) (money.MinorUnits, error) {
	if s.fx == nil {
		return 0, fmt.Errorf("fx converter not configured")
	}
	return s.fx.FromBase(ctx, baseAmount, currency, asOf)
}

// mutateAccount runs one read-modify-write cycle on a single account under
// its lock.
func (s *Service) mutateAccount(ctx context.Context, accountID string, op func(*ledger.Account) error) error {
	unlock := s.lockAccounts([]string{accountID})
	defer unlock()

	acct, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}
	if err := op(acct); err != nil {
		return err
	}
	return s.store.SaveAccount(ctx, acct)
}

func (s *Service) loadAccounts(ctx context.Context, ids []string) (map[string]*ledger.Account, error) {
	accounts := make(map[string]*ledger.Account)
	for _, id := range ids {
		if _, ok := accounts[id]; ok {
			continue
		}
		acct, err := s.store.GetAccount(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("account %s: %w", id, err)
		}
		accounts[id] = acct
	}
	return accounts, nil
}

// accountList returns the distinct accounts in first-use order.
func accountList(accounts map[string]*ledger.Account, ids []string) []*ledger.Account {
	seen := make(map[string]bool, len(ids))
	list := make([]*ledger.Account, 0, len(accounts))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		list = append(list, accounts[id])
	}
	return list
}

// lockAccounts acquires the per-account mutexes for the given ids in sorted
// order, so two use cases sharing accounts always acquire in the same order
// and cannot deadlock. The returned func releases in reverse order.
func (s *Service) lockAccounts(ids []string) func() {
	distinct := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			distinct = append(distinct, id)
		}
	}
	sort.Strings(distinct)

	locks := make([]*sync.Mutex, len(distinct))
	for i, id := range distinct {
		locks[i] = s.accountLock(id)
		locks[i].Lock()
	}
	return func() {
		for i := len(locks) - 1; i >= 0; i-- {
			locks[i].Unlock()
		}
	}
}

func (s *Service) accountLock(accountID string) *sync.Mutex {
	s.mapMu.Lock()
	defer s.mapMu.Unlock()
	if _, exists := s.muMap[accountID]; !exists {
		s.muMap[accountID] = &sync.Mutex{}
	}
	return s.muMap[accountID]
}

func (s *Service) publish(ctx context.Context, topic string, event any) {
	if err := s.publisher.Publish(ctx, topic, event); err != nil {
		zap.L().Warn("Failed to publish event", zap.String("topic", topic), zap.Error(err))
	}
}
