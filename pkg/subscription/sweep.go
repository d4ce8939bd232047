package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chris/referral-commission-ledger/pkg/metrics"
	"github.com/chris/referral-commission-ledger/pkg/models"
	"github.com/chris/referral-commission-ledger/pkg/notify"
	"github.com/chris/referral-commission-ledger/pkg/storage"
)

// RenewalLeadTime is how long before expiry a sweep renews a funded account.
// It must exceed the interval between sweeps.
const RenewalLeadTime = 24 * time.Hour

// SweepResult counts the transitions applied by one sweep.
type SweepResult struct {
	Renewed        int   `json:"renewed"`
	EnteredGrace   int   `json:"entered_grace"`
	Compressed     int   `json:"compressed"`
	ForfeitedTotal int64 `json:"forfeited_total"`
}

// Sweep applies time-driven transitions. Active accounts within
// RenewalLeadTime of expiry renew automatically when their deposit covers the
// renewal. Expired accounts that cannot renew enter grace. Accounts whose grace has ended forfeit their holding balance and are
// compressed. Failures on one account do not stop the sweep.
func (s *Service) Sweep(ctx context.Context) (*SweepResult, error) {
	sub, err := s.settings.Subscription(ctx)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now().UTC()
	result := &SweepResult{}
	var errs []error

	active, err := s.store.ListAccountsByStatus(ctx, models.ACTIVE)
	if err != nil {
		return nil, fmt.Errorf("failed to list active accounts: %w", err)
	}
	for i := range active {
		acc := &active[i]
		if EffectiveStatus(acc, now, sub) == models.ACTIVE {
			if acc.SubscriptionExpires == nil || acc.SubscriptionExpires.Sub(now) > RenewalLeadTime {
				continue
			}
			if _, err := s.renewIfFunded(ctx, acc.ID, sub, result); err != nil && !errors.Is(err, storage.ErrInsufficientFunds) {
				errs = append(errs, fmt.Errorf("account %s: %w", acc.ID, err))
			}
			continue
		}
		if err := s.expire(ctx, acc, now, sub, result); err != nil {
			errs = append(errs, fmt.Errorf("account %s: %w", acc.ID, err))
		}
	}

	grace, err := s.store.ListAccountsByStatus(ctx, models.GRACE)
	if err != nil {
		return nil, fmt.Errorf("failed to list grace accounts: %w", err)
	}
	for i := range grace {
		acc := &grace[i]
		var err error
		if EffectiveStatus(acc, now, sub) == models.COMPRESSED {
			err = s.compress(ctx, acc.ID, now, sub, result)
		} else {
			_, err = s.renewIfFunded(ctx, acc.ID, sub, result)
		}
		if err != nil && !errors.Is(err, storage.ErrInsufficientFunds) {
			errs = append(errs, fmt.Errorf("account %s: %w", acc.ID, err))
		}
	}

	metrics.SweepTransitionsTotal.WithLabelValues("renewed").Add(float64(result.Renewed))
	metrics.SweepTransitionsTotal.WithLabelValues("grace").Add(float64(result.EnteredGrace))
	metrics.SweepTransitionsTotal.WithLabelValues("compressed").Add(float64(result.Compressed))
	s.logger.Info("sweep finished",
		"renewed", result.Renewed,
		"entered_grace", result.EnteredGrace,
		"compressed", result.Compressed,
		"forfeited_total", result.ForfeitedTotal,
	)
	return result, errors.Join(errs...)
}

// expire handles an active account past its expiry.
func (s *Service) expire(ctx context.Context, acc *models.Account, now time.Time, sub models.SubscriptionSettings, result *SweepResult) error {
	if EffectiveStatus(acc, now, sub) != models.GRACE {
		return s.compress(ctx, acc.ID, now, sub, result)
	}
	renewed, err := s.renewIfFunded(ctx, acc.ID, sub, result)
	if err != nil && !errors.Is(err, storage.ErrInsufficientFunds) {
		return err
	}
	if renewed {
		return nil
	}
	return s.enterGrace(ctx, acc.ID, now, sub, result)
}

// renewIfFunded renews a subscription when the deposit wallet covers the renewal.
func (s *Service) renewIfFunded(ctx context.Context, accountID string, sub models.SubscriptionSettings, result *SweepResult) (bool, error) {
	w, err := s.store.GetWallet(ctx, accountID)
	if err != nil {
		return false, err
	}
	if w.DepositBalance < sub.RenewalAmount {
		return false, nil
	}
	r, err := s.Renew(ctx, accountID, "")
	if err != nil {
		return false, err
	}
	if !r.Replayed {
		result.Renewed++
	}
	return true, nil
}

func (s *Service) enterGrace(ctx context.Context, accountID string, now time.Time, sub models.SubscriptionSettings, result *SweepResult) error {
	err := storage.RetryConflicts(ctx, s.retry, func() error {
		acc, err := s.store.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}
		if acc.Status != models.ACTIVE || EffectiveStatus(acc, now, sub) != models.GRACE {
			return nil
		}
		next := *acc
		graceEnds := acc.SubscriptionExpires.Add(sub.GracePeriod())
		next.Status = models.GRACE
		next.GraceEndsAt = &graceEnds

		eventID := fmt.Sprintf("grace:%s:%d", acc.ID, acc.SubscriptionExpires.Unix())
		b := storage.NewCommitBuilder(eventID, "grace", acc.ID, now)
		b.SetAccount(next)
		c, err := b.Build()
		if err != nil {
			return err
		}
		if err := s.store.Commit(ctx, c); err != nil {
			return err
		}
		result.EnteredGrace++
		s.logger.Info("account entered grace period", "account_id", acc.ID, "grace_ends_at", graceEnds)
		return nil
	})
	if errors.Is(err, storage.ErrDuplicateEvent) {
		return nil
	}
	return err
}

// compress forfeits the holding balance and marks the account compressed.
func (s *Service) compress(ctx context.Context, accountID string, now time.Time, sub models.SubscriptionSettings, result *SweepResult) error {
	err := storage.RetryConflicts(ctx, s.retry, func() error {
		acc, err := s.store.GetAccount(ctx, accountID)
		if err != nil {
			return err
		}
		if acc.Status == models.COMPRESSED || EffectiveStatus(acc, now, sub) != models.COMPRESSED {
			return nil
		}
		w, err := s.store.GetWallet(ctx, accountID)
		if err != nil {
			return err
		}

		next := *acc
		next.Status = models.COMPRESSED
		if next.GraceEndsAt == nil && next.SubscriptionExpires != nil {
			graceEnds := next.SubscriptionExpires.Add(sub.GracePeriod())
			next.GraceEndsAt = &graceEnds
		}

		b := storage.NewCommitBuilder("compress:"+accountID, "compress", accountID, now)
		b.Track(w)
		b.SetAccount(next)
		forfeited := w.HoldingBalance
		if forfeited > 0 {
			if _, err := b.Post(models.Transaction{
				AccountID:   accountID,
				Type:        models.GRACE_FORFEIT,
				Wallet:      models.HOLDING,
				Amount:      forfeited,
				Delta:       -forfeited,
				Description: "Grace period expired, held commission forfeited",
			}); err != nil {
				return err
			}
		}
		c, err := b.Build()
		if err != nil {
			return err
		}
		if err := s.store.Commit(ctx, c); err != nil {
			return err
		}
		notify.PublishCommit(ctx, s.publisher, s.logger, c)
		result.Compressed++
		result.ForfeitedTotal += forfeited
		s.logger.Info("account compressed", "account_id", accountID, "forfeited", forfeited)
		return nil
	})
	if errors.Is(err, storage.ErrDuplicateEvent) {
		return nil
	}
	return err
}
