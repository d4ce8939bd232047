// Package subscription drives the account lifecycle: activation, renewal,
// the grace period and compression.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chris/referral-commission-ledger/pkg/commission"
	"github.com/chris/referral-commission-ledger/pkg/models"
	"github.com/chris/referral-commission-ledger/pkg/money"
	"github.com/chris/referral-commission-ledger/pkg/notify"
	"github.com/chris/referral-commission-ledger/pkg/storage"
	"github.com/jonboulle/clockwork"
)

// Store is the part of the ledger the lifecycle reads and commits to.
type Store interface {
	storage.AccountReader
	storage.WalletReader
	storage.Committer
	storage.EventReader
}

// Distributor runs commission distributions.
type Distributor interface {
	Distribute(ctx context.Context, ev commission.Event, opts commission.Options) (*commission.Result, error)
}

// SettingsSource supplies the subscription pricing.
type SettingsSource interface {
	Subscription(ctx context.Context) (models.SubscriptionSettings, error)
}

// Service implements the subscription state machine.
type Service struct {
	store     Store
	engine    Distributor
	settings  SettingsSource
	clock     clockwork.Clock
	retry     storage.RetryConfig
	publisher notify.Publisher
	logger    *slog.Logger
}

// NewService creates a new subscription Service.
func NewService(store Store, engine Distributor, settings SettingsSource, clock clockwork.Clock, logger *slog.Logger) *Service {
	return &Service{
		store:     store,
		engine:    engine,
		settings:  settings,
		clock:     clock,
		retry:     storage.DefaultRetryConfig(),
		publisher: notify.NoOpPublisher{},
		logger:    logger,
	}
}

// WithPublisher sets where wallet updates are published after a commit.
func (s *Service) WithPublisher(p notify.Publisher) *Service {
	s.publisher = p
	return s
}

// EffectiveStatus returns the status of acc at now under the given pricing.
func EffectiveStatus(acc *models.Account, now time.Time, sub models.SubscriptionSettings) models.AccountStatus {
	return acc.EffectiveStatus(now, sub.GracePeriod())
}

// ActivationEventID is the default idempotency key of an activation.
func ActivationEventID(accountID string) string {
	return "activation:" + accountID
}

// RenewalEventID is the default idempotency key of a renewal. It is bound to
// the expiry being extended so one period cannot be renewed twice.
func RenewalEventID(acc *models.Account) string {
	var expires int64
	if acc.SubscriptionExpires != nil {
		expires = acc.SubscriptionExpires.Unix()
	}
	return fmt.Sprintf("renewal:%s:%d", acc.ID, expires)
}

// CheckActivation activates an inactive account whose deposit wallet covers
// the activation amount, and distributes the payment.
func (s *Service) CheckActivation(ctx context.Context, accountID, eventID string) (*commission.Result, error) {
	sub, err := s.settings.Subscription(ctx)
	if err != nil {
		return nil, err
	}
	acc, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if eventID == "" {
		eventID = ActivationEventID(accountID)
	}
	if s.processed(ctx, eventID) {
		return &commission.Result{EventID: eventID, Replayed: true}, nil
	}

	now := s.clock.Now().UTC()
	if status := EffectiveStatus(acc, now, sub); status != models.INACTIVE {
		return nil, fmt.Errorf("%w: account %s is %s", storage.ErrInvalidState, accountID, status)
	}
	if err := s.requireDeposit(ctx, accountID, sub.ActivationAmount); err != nil {
		return nil, err
	}

	result, err := s.engine.Distribute(ctx, commission.Event{
		ID:        eventID,
		Type:      models.ACTIVATION,
		AccountID: accountID,
		Amount:    sub.ActivationAmount,
	}, commission.Options{
		Description: "Account activation",
		Mutate: func(b *storage.CommitBuilder, payer *models.Account, now time.Time) error {
			if payer.Status != models.INACTIVE {
				return fmt.Errorf("%w: account %s is %s", storage.ErrInvalidState, payer.ID, payer.Status)
			}
			next := *payer
			expires := now.Add(sub.RenewalPeriod())
			next.Status = models.ACTIVE
			next.SubscriptionExpires = &expires
			next.GraceEndsAt = nil
			b.SetAccount(next)
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	if !result.Replayed {
		s.logger.Info("account activated", "account_id", accountID)
	}
	return result, nil
}

// Renew extends an active or grace subscription by one period, releases any
// commission escrowed in the holding wallet and distributes the payment.
// Compressed accounts cannot renew.
func (s *Service) Renew(ctx context.Context, accountID, eventID string) (*commission.Result, error) {
	sub, err := s.settings.Subscription(ctx)
	if err != nil {
		return nil, err
	}
	acc, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if eventID == "" {
		eventID = RenewalEventID(acc)
	}
	if s.processed(ctx, eventID) {
		return &commission.Result{EventID: eventID, Replayed: true}, nil
	}

	now := s.clock.Now().UTC()
	switch status := EffectiveStatus(acc, now, sub); status {
	case models.ACTIVE, models.GRACE:
	default:
		return nil, fmt.Errorf("%w: account %s is %s", storage.ErrInvalidState, accountID, status)
	}
	if err := s.requireDeposit(ctx, accountID, sub.RenewalAmount); err != nil {
		return nil, err
	}

	var released int64
	result, err := s.engine.Distribute(ctx, commission.Event{
		ID:        eventID,
		Type:      models.RENEWAL,
		AccountID: accountID,
		Amount:    sub.RenewalAmount,
	}, commission.Options{
		Description: "Subscription renewal",
		Mutate: func(b *storage.CommitBuilder, payer *models.Account, now time.Time) error {
			switch status := EffectiveStatus(payer, now, sub); status {
			case models.ACTIVE, models.GRACE:
			default:
				return fmt.Errorf("%w: account %s is %s", storage.ErrInvalidState, payer.ID, status)
			}
			next := *payer
			base := now
			if next.SubscriptionExpires != nil && next.SubscriptionExpires.After(now) {
				base = *next.SubscriptionExpires
			}
			expires := base.Add(sub.RenewalPeriod())
			next.Status = models.ACTIVE
			next.SubscriptionExpires = &expires
			next.GraceEndsAt = nil
			b.SetAccount(next)

			released = 0
			w, _ := b.Wallet(payer.ID)
			if w.HoldingBalance > 0 {
				released = w.HoldingBalance
				return releaseHolding(b, payer.ID, released)
			}
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	if !result.Replayed {
		s.logger.Info("subscription renewed", "account_id", accountID, "released", released)
	}
	return result, nil
}

// releaseHolding moves the escrowed commission into the earnings wallet.
func releaseHolding(b *storage.CommitBuilder, accountID string, amount int64) error {
	description := fmt.Sprintf("Grace period commission released (%s)", money.Format(amount))
	if _, err := b.Post(models.Transaction{
		AccountID: accountID, Type: models.GRACE_RELEASE, Wallet: models.HOLDING,
		Amount: amount, Delta: -amount, Description: description,
	}); err != nil {
		return err
	}
	_, err := b.Post(models.Transaction{
		AccountID: accountID, Type: models.GRACE_RELEASE, Wallet: models.EARNINGS,
		Amount: amount, Delta: amount, Description: description,
	})
	return err
}

func (s *Service) processed(ctx context.Context, eventID string) bool {
	_, err := s.store.GetEvent(ctx, eventID)
	return err == nil
}

func (s *Service) requireDeposit(ctx context.Context, accountID string, amount int64) error {
	w, err := s.store.GetWallet(ctx, accountID)
	if err != nil {
		return err
	}
	if w.DepositBalance < amount {
		return fmt.Errorf("%w: deposit wallet holds %s, %s required", storage.ErrInsufficientFunds, money.Format(w.DepositBalance), money.Format(amount))
	}
	return nil
}

// DepositEvent is a confirmed on-chain deposit reported by the payment provider.
type DepositEvent struct {
	EventID   string `json:"event_id"`
	AccountID string `json:"account_id"`
	Amount    int64  `json:"amount"`
	TxHash    string `json:"tx_hash"`
}

// DepositResult describes a credited deposit and the lifecycle step it triggered.
type DepositResult struct {
	Transaction *models.Transaction
	Replayed    bool
	Activation  *commission.Result
	Renewal     *commission.Result
}

// CreditDeposit credits the deposit wallet once per event, then activates an
// inactive account or renews one in grace when the balance allows it.
func (s *Service) CreditDeposit(ctx context.Context, ev DepositEvent) (*DepositResult, error) {
	if ev.EventID == "" && ev.TxHash != "" {
		ev.EventID = "deposit:" + ev.TxHash
	}
	if ev.EventID == "" || ev.AccountID == "" {
		return nil, fmt.Errorf("%w: deposit event id and account are required", storage.ErrValidation)
	}
	if !money.InRange(ev.Amount) {
		return nil, fmt.Errorf("%w: deposit amount must be positive and at most %s", storage.ErrValidation, money.Format(money.MaxAmount))
	}

	result := &DepositResult{}
	err := storage.RetryConflicts(ctx, s.retry, func() error {
		w, err := s.store.GetWallet(ctx, ev.AccountID)
		if err != nil {
			return err
		}
		b := storage.NewCommitBuilder(ev.EventID, string(models.DEPOSIT_CREDIT), ev.AccountID, s.clock.Now().UTC())
		b.Track(w)
		tx, err := b.Post(models.Transaction{
			AccountID:   ev.AccountID,
			Type:        models.DEPOSIT_CREDIT,
			Wallet:      models.DEPOSIT,
			Amount:      ev.Amount,
			Delta:       ev.Amount,
			TxHash:      ev.TxHash,
			Description: "Deposit",
		})
		if err != nil {
			return err
		}
		c, err := b.Build()
		if err != nil {
			return err
		}
		if err := s.store.Commit(ctx, c); err != nil {
			return err
		}
		notify.PublishCommit(ctx, s.publisher, s.logger, c)
		result.Transaction = &tx
		return nil
	})
	switch {
	case errors.Is(err, storage.ErrDuplicateEvent):
		result.Replayed = true
	case err != nil:
		return nil, err
	default:
		s.logger.Info("deposit credited", "account_id", ev.AccountID, "amount", ev.Amount, "tx_hash", ev.TxHash)
	}

	// Follow-ups carry their own idempotency keys, so a replayed deposit
	// retries a step that did not complete the first time.
	if err := s.afterDeposit(ctx, ev.AccountID, result); err != nil {
		s.logger.Warn("deposit follow-up failed", "account_id", ev.AccountID, "error", err)
	}
	return result, nil
}

func (s *Service) afterDeposit(ctx context.Context, accountID string, result *DepositResult) error {
	sub, err := s.settings.Subscription(ctx)
	if err != nil {
		return err
	}
	acc, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}
	w, err := s.store.GetWallet(ctx, accountID)
	if err != nil {
		return err
	}

	switch EffectiveStatus(acc, s.clock.Now().UTC(), sub) {
	case models.INACTIVE:
		if w.DepositBalance >= sub.ActivationAmount {
			result.Activation, err = s.CheckActivation(ctx, accountID, "")
		}
	case models.GRACE:
		if w.DepositBalance >= sub.RenewalAmount {
			result.Renewal, err = s.Renew(ctx, accountID, "")
		}
	}
	return err
}
