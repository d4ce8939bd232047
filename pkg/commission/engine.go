// Package commission splits an activation or renewal payment across the
// payer's upline and the platform-wide override holders.
package commission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chris/referral-commission-ledger/pkg/metrics"
	"github.com/chris/referral-commission-ledger/pkg/models"
	"github.com/chris/referral-commission-ledger/pkg/money"
	"github.com/chris/referral-commission-ledger/pkg/notify"
	"github.com/chris/referral-commission-ledger/pkg/referral"
	"github.com/chris/referral-commission-ledger/pkg/storage"
	"github.com/jonboulle/clockwork"
)

// Ledger is the part of the store the engine reads and commits to.
type Ledger interface {
	storage.AccountReader
	storage.WalletReader
	storage.Committer
	storage.EventReader
}

// Upline resolves the ancestors of an account.
type Upline interface {
	ResolveUpline(ctx context.Context, accountID string, maxDepth int) ([]referral.UplineEntry, error)
}

// Event is a payment that triggers a distribution.
type Event struct {
	// ID is the idempotency key of the run.
	ID        string
	Type      models.TransactionType
	AccountID string
	Amount    int64
}

// Credit is one commission posted by a run.
type Credit struct {
	AccountID     string
	Level         int
	Type          models.TransactionType
	Wallet        models.WalletKind
	Amount        int64
	TransactionID string
}

// Result describes a committed run. Replayed is set when the event had
// already been processed, in which case nothing else is filled in.
type Result struct {
	EventID   string
	Payment   models.Transaction
	Credits   []Credit
	Forfeited int64
	Replayed  bool
}

// Mutator adds the caller's own changes, such as a status transition, to the
// commit that debits the payer. It runs again on every retry with fresh state.
type Mutator func(b *storage.CommitBuilder, payer *models.Account, now time.Time) error

// Options customises a run.
type Options struct {
	Mutate      Mutator
	Description string
}

// Engine distributes commissions.
type Engine struct {
	ledger    Ledger
	upline    Upline
	rules     RulesSource
	clock     clockwork.Clock
	retry     storage.RetryConfig
	publisher notify.Publisher
	logger    *slog.Logger
}

// NewEngine creates a new Engine.
func NewEngine(ledger Ledger, upline Upline, rules RulesSource, clock clockwork.Clock, logger *slog.Logger) *Engine {
	return &Engine{
		ledger:    ledger,
		upline:    upline,
		rules:     rules,
		clock:     clock,
		retry:     storage.DefaultRetryConfig(),
		publisher: notify.NoOpPublisher{},
		logger:    logger,
	}
}

// WithPublisher sets where wallet updates are published after a commit.
func (e *Engine) WithPublisher(p notify.Publisher) *Engine {
	e.publisher = p
	return e
}

// WithRetry overrides the conflict retry policy.
func (e *Engine) WithRetry(cfg storage.RetryConfig) *Engine {
	e.retry = cfg
	return e
}

// Distribute debits the payment from the payer's deposit wallet and credits
// every eligible ancestor and override holder in a single commit keyed by
// ev.ID. Running the same event twice credits nothing the second time.
func (e *Engine) Distribute(ctx context.Context, ev Event, opts Options) (*Result, error) {
	if ev.ID == "" || ev.AccountID == "" {
		return nil, fmt.Errorf("%w: event id and account are required", storage.ErrValidation)
	}
	if ev.Type != models.ACTIVATION && ev.Type != models.RENEWAL {
		return nil, fmt.Errorf("%w: cannot distribute %q", storage.ErrValidation, ev.Type)
	}
	if ev.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", storage.ErrValidation)
	}

	// 1. The rules are read once so every retry sees the same table.
	snap, err := LoadSnapshot(ctx, e.rules)
	if err != nil {
		return nil, fmt.Errorf("failed to load commission rules: %w", err)
	}

	var result *Result
	var committed *storage.Commit
	attempt := 0
	err = storage.RetryConflicts(ctx, e.retry, func() error {
		attempt++
		if attempt > 1 {
			metrics.CommitRetriesTotal.Inc()
		}
		r, c, err := e.run(ctx, ev, opts, snap)
		if err != nil {
			// A run that lost a race against its own duplicate sees the
			// payer already debited or transitioned.
			if !storage.IsRetryable(err) && !errors.Is(err, storage.ErrDuplicateEvent) && e.processed(ctx, ev.ID) {
				return storage.ErrDuplicateEvent
			}
			return err
		}
		result, committed = r, c
		return nil
	})

	switch {
	case errors.Is(err, storage.ErrDuplicateEvent):
		metrics.RecordDistribution(string(ev.Type), "replayed", nil, 0)
		e.logger.Info("distribution already processed", "event_id", ev.ID)
		return &Result{EventID: ev.ID, Replayed: true}, nil
	case err != nil:
		metrics.RecordDistribution(string(ev.Type), "error", nil, 0)
		return nil, err
	}

	credited := map[string]int64{}
	for _, c := range result.Credits {
		credited[string(c.Type)] += c.Amount
	}
	metrics.RecordDistribution(string(ev.Type), "committed", credited, result.Forfeited)
	notify.PublishCommit(ctx, e.publisher, e.logger, committed)
	e.logger.Info("commission distributed",
		"event_id", ev.ID,
		"account_id", ev.AccountID,
		"type", ev.Type,
		"amount", ev.Amount,
		"credits", len(result.Credits),
		"forfeited", result.Forfeited,
	)
	return result, nil
}

func (e *Engine) processed(ctx context.Context, eventID string) bool {
	_, err := e.ledger.GetEvent(ctx, eventID)
	return err == nil
}

func (e *Engine) run(ctx context.Context, ev Event, opts Options, snap *Snapshot) (*Result, *storage.Commit, error) {
	now := e.clock.Now().UTC()

	// 2. Read the payer and its upline.
	payer, err := e.ledger.GetAccount(ctx, ev.AccountID)
	if err != nil {
		return nil, nil, err
	}
	payerWallet, err := e.ledger.GetWallet(ctx, ev.AccountID)
	if err != nil {
		return nil, nil, err
	}
	upline, err := e.upline.ResolveUpline(ctx, ev.AccountID, referral.MaxDepth)
	if err != nil {
		return nil, nil, err
	}

	b := storage.NewCommitBuilder(ev.ID, string(ev.Type), ev.AccountID, now)
	b.Track(payerWallet)
	b.Require(payer)

	// 3. Debit the payer, then let the caller apply its transition.
	description := opts.Description
	if description == "" {
		description = fmt.Sprintf("Subscription %s", ev.Type)
	}
	payment, err := b.Post(models.Transaction{
		AccountID:   ev.AccountID,
		Type:        ev.Type,
		Wallet:      models.DEPOSIT,
		Amount:      ev.Amount,
		Delta:       -ev.Amount,
		Description: description,
	})
	if err != nil {
		return nil, nil, err
	}
	if opts.Mutate != nil {
		if err := opts.Mutate(b, payer, now); err != nil {
			return nil, nil, err
		}
	}

	result := &Result{EventID: ev.ID, Payment: payment}
	var credited int64

	// 4. Level income, nearest ancestor first.
	for _, entry := range upline {
		rule, err := snap.RulesFor(entry.Level)
		if err != nil {
			return nil, nil, err
		}
		ancestor := entry.Account
		if ancestor.DirectReferrals < rule.MinDirectReferrals {
			continue
		}
		amount := money.Percent(ev.Amount, Percentage(rule, ev.Type))
		credit, err := e.credit(ctx, b, &ancestor, now, snap, amount, models.LEVEL_INCOME, entry.Level, ev)
		if err != nil {
			return nil, nil, err
		}
		if credit != nil {
			credited += credit.Amount
			result.Credits = append(result.Credits, *credit)
		}
	}

	// 5. Platform-wide overrides. The payer never earns on its own payment.
	for _, o := range snap.Overrides {
		if o.UserID == ev.AccountID {
			continue
		}
		holder, err := e.ledger.GetAccount(ctx, o.UserID)
		if errors.Is(err, storage.ErrNotFound) {
			e.logger.Warn("override holder no longer exists", "user_id", o.UserID)
			continue
		}
		if err != nil {
			return nil, nil, err
		}
		amount := money.Percent(ev.Amount, OverridePercentage(o, ev.Type))
		credit, err := e.credit(ctx, b, holder, now, snap, amount, models.ADDITIONAL_INCOME, 0, ev)
		if err != nil {
			return nil, nil, err
		}
		if credit != nil {
			credited += credit.Amount
			result.Credits = append(result.Credits, *credit)
		}
	}

	// 6. Never credit more than was paid.
	if credited > ev.Amount {
		return nil, nil, fmt.Errorf("%w: credits %d exceed payment %d for event %s", storage.ErrInternal, credited, ev.Amount, ev.ID)
	}
	result.Forfeited = ev.Amount - credited

	c, err := b.Build()
	if err != nil {
		return nil, nil, err
	}
	if err := e.ledger.Commit(ctx, c); err != nil {
		return nil, nil, err
	}
	return result, c, nil
}

// credit posts one commission. Inactive and compressed recipients forfeit it;
// recipients in grace receive it in their holding wallet.
func (e *Engine) credit(ctx context.Context, b *storage.CommitBuilder, acc *models.Account, now time.Time, snap *Snapshot, amount int64, txType models.TransactionType, level int, ev Event) (*Credit, error) {
	if amount <= 0 {
		return nil, nil
	}
	wallet := models.EARNINGS
	switch acc.EffectiveStatus(now, snap.GracePeriod) {
	case models.INACTIVE, models.COMPRESSED:
		return nil, nil
	case models.GRACE:
		wallet = models.HOLDING
	}

	if _, tracked := b.Wallet(acc.ID); !tracked {
		w, err := e.ledger.GetWallet(ctx, acc.ID)
		if err != nil {
			return nil, err
		}
		b.Track(w)
	}
	b.Require(acc)

	tx := models.Transaction{
		AccountID:            acc.ID,
		Type:                 txType,
		Wallet:               wallet,
		Amount:               amount,
		Delta:                amount,
		CounterpartAccountID: ev.AccountID,
	}
	if level > 0 {
		tx.Level = &level
		tx.Description = fmt.Sprintf("Level %d %s commission", level, ev.Type)
	} else {
		tx.Description = fmt.Sprintf("Additional %s commission", ev.Type)
	}
	posted, err := b.Post(tx)
	if err != nil {
		return nil, err
	}
	return &Credit{
		AccountID:     acc.ID,
		Level:         level,
		Type:          txType,
		Wallet:        wallet,
		Amount:        amount,
		TransactionID: posted.ID,
	}, nil
}
