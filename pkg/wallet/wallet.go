// Package wallet moves money between wallets: internal transfers, transfers to
// other members, withdrawals and their settlement.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/chris/referral-commission-ledger/pkg/metrics"
	"github.com/chris/referral-commission-ledger/pkg/models"
	"github.com/chris/referral-commission-ledger/pkg/notify"
	"github.com/chris/referral-commission-ledger/pkg/scheduler"
	"github.com/chris/referral-commission-ledger/pkg/storage"
	"github.com/jonboulle/clockwork"
)

// Store is the part of the ledger the wallet service reads and commits to.
type Store interface {
	storage.AccountReader
	storage.WalletReader
	storage.TransactionReader
	storage.Committer
	storage.EventReader
}

// SettingsSource supplies fees and minimums.
type SettingsSource interface {
	Wallet(ctx context.Context) (models.WalletSettings, error)
}

// Service executes wallet operations. Every operation is a single commit.
type Service struct {
	store     Store
	settings  SettingsSource
	scheduler scheduler.Scheduler
	publisher notify.Publisher
	clock     clockwork.Clock
	retry     storage.RetryConfig
	logger    *slog.Logger
}

// NewService creates a new wallet Service.
func NewService(store Store, settings SettingsSource, sched scheduler.Scheduler, clock clockwork.Clock, logger *slog.Logger) *Service {
	return &Service{
		store:     store,
		settings:  settings,
		scheduler: sched,
		publisher: notify.NoOpPublisher{},
		clock:     clock,
		retry:     storage.DefaultRetryConfig(),
		logger:    logger,
	}
}

// WithPublisher sets where wallet updates are published after a commit.
func (s *Service) WithPublisher(p notify.Publisher) *Service {
	s.publisher = p
	return s
}

// WithRetry overrides the conflict retry policy.
func (s *Service) WithRetry(cfg storage.RetryConfig) *Service {
	s.retry = cfg
	return s
}

// WalletView is a wallet with its recent withdrawals and deposits.
type WalletView struct {
	Wallet      models.Wallet        `json:"wallet"`
	Withdrawals []models.Transaction `json:"withdrawals"`
	Deposits    []models.Transaction `json:"deposits"`
}

const viewHistory = 20

// GetWallet returns the balances of accountID with its recent withdrawals and deposits.
func (s *Service) GetWallet(ctx context.Context, accountID string) (*WalletView, error) {
	w, err := s.store.GetWallet(ctx, accountID)
	if err != nil {
		return nil, err
	}
	withdrawals, err := s.store.ListTransactions(ctx, storage.TransactionFilter{AccountID: accountID, Type: models.WITHDRAWAL, Limit: viewHistory})
	if err != nil {
		return nil, fmt.Errorf("failed to list withdrawals: %w", err)
	}
	deposits, err := s.store.ListTransactions(ctx, storage.TransactionFilter{AccountID: accountID, Type: models.DEPOSIT_CREDIT, Limit: viewHistory})
	if err != nil {
		return nil, fmt.Errorf("failed to list deposits: %w", err)
	}
	return &WalletView{Wallet: *w, Withdrawals: withdrawals.Items, Deposits: deposits.Items}, nil
}

// Transaction returns a single ledger row.
func (s *Service) Transaction(ctx context.Context, txID string) (*models.Transaction, error) {
	return s.store.GetTransaction(ctx, txID)
}

// Transactions returns one page of the user feed, or the global feed when
// filter.AccountID is empty.
func (s *Service) Transactions(ctx context.Context, filter storage.TransactionFilter) (*storage.TransactionPage, error) {
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown transaction type %q", storage.ErrValidation, filter.Type)
	}
	filter.Limit = storage.NormalizeLimit(filter.Limit)
	return s.store.ListTransactions(ctx, filter)
}

// Result describes the rows a wallet operation posted.
type Result struct {
	Transactions []models.Transaction `json:"transactions"`
	Replayed     bool                 `json:"replayed"`
}

// scopedEventID scopes a caller-supplied idempotency key to an operation and account.
func scopedEventID(kind, accountID, key string) string {
	if key == "" {
		return ""
	}
	return kind + ":" + accountID + ":" + key
}

// commit runs build under the conflict retry policy, commits its output and
// publishes the resulting wallet updates. A replayed idempotency key yields
// Result{Replayed: true}.
func (s *Service) commit(ctx context.Context, kind, eventID string, build func() (*storage.Commit, []models.Transaction, error)) (*Result, error) {
	result := &Result{}
	var committed *storage.Commit
	err := storage.RetryConflicts(ctx, s.retry, func() error {
		c, txs, err := build()
		if err != nil {
			// A retry that lost to its own duplicate sees the balance already spent.
			if eventID != "" && !storage.IsRetryable(err) && s.processed(ctx, eventID) {
				return storage.ErrDuplicateEvent
			}
			return err
		}
		if err := s.store.Commit(ctx, c); err != nil {
			return err
		}
		committed = c
		result.Transactions = txs
		return nil
	})
	if errors.Is(err, storage.ErrDuplicateEvent) {
		metrics.RecordTransfer(kind, nil)
		return &Result{Replayed: true}, nil
	}
	metrics.RecordTransfer(kind, err)
	if err != nil {
		return nil, err
	}
	notify.PublishCommit(ctx, s.publisher, s.logger, committed)
	return result, nil
}

func (s *Service) processed(ctx context.Context, eventID string) bool {
	_, err := s.store.GetEvent(ctx, eventID)
	return err == nil
}

func (s *Service) resolveRecipient(ctx context.Context, recipient string) (*models.Account, error) {
	recipient = strings.TrimSpace(recipient)
	if recipient == "" {
		return nil, fmt.Errorf("%w: recipient is required", storage.ErrValidation)
	}
	var (
		acc *models.Account
		err error
	)
	if strings.Contains(recipient, "@") {
		acc, err = s.store.GetAccountByEmail(ctx, strings.ToLower(recipient))
	} else {
		acc, err = s.store.GetAccountByReferralCode(ctx, strings.ToUpper(recipient))
	}
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", storage.ErrRecipientNotFound, recipient)
	}
	return acc, err
}
