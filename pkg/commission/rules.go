package commission

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/chris/referral-commission-ledger/pkg/models"
	"github.com/chris/referral-commission-ledger/pkg/storage"
	"github.com/shopspring/decimal"
)

// RulesSource supplies the configuration a distribution run reads.
type RulesSource interface {
	Levels(ctx context.Context) (models.LevelRules, error)
	AdditionalCommissions(ctx context.Context) ([]models.AdditionalCommission, error)
	Subscription(ctx context.Context) (models.SubscriptionSettings, error)
}

// Snapshot is an immutable view of the commission rules taken at the start
// of a distribution run. Admin edits after it was taken do not affect the run.
type Snapshot struct {
	Version     int64
	Levels      [models.MaxLevels]models.LevelRule
	Overrides   []models.AdditionalCommission
	GracePeriod time.Duration
}

// snapshotAttempts bounds how often LoadSnapshot re-reads rules that changed
// while they were being read.
const snapshotAttempts = 3

// LoadSnapshot reads the current rules. The levels and overrides are read a
// second time and the snapshot is only accepted when both are unchanged, so a
// concurrent admin edit never yields a table mixing old and new documents.
func LoadSnapshot(ctx context.Context, src RulesSource) (*Snapshot, error) {
	for attempt := 0; attempt < snapshotAttempts; attempt++ {
		snap, err := readSnapshot(ctx, src)
		if err != nil {
			return nil, err
		}
		stable, err := unchanged(ctx, src, snap)
		if err != nil {
			return nil, err
		}
		if stable {
			if err := checkBudget(snap); err != nil {
				return nil, err
			}
			return snap, nil
		}
	}
	return nil, fmt.Errorf("%w: commission rules changed while being read", storage.ErrBusy)
}

func readSnapshot(ctx context.Context, src RulesSource) (*Snapshot, error) {
	rules, err := src.Levels(ctx)
	if err != nil {
		return nil, err
	}
	if len(rules.Levels) != models.MaxLevels {
		return nil, fmt.Errorf("%w: commission table has %d levels", storage.ErrInternal, len(rules.Levels))
	}
	overrides, err := src.AdditionalCommissions(ctx)
	if err != nil {
		return nil, err
	}
	sub, err := src.Subscription(ctx)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{Version: rules.Version, GracePeriod: sub.GracePeriod()}
	for _, l := range rules.Levels {
		if l.Level < 1 || l.Level > models.MaxLevels {
			return nil, fmt.Errorf("%w: commission table has level %d", storage.ErrInternal, l.Level)
		}
		snap.Levels[l.Level-1] = l
	}
	snap.Overrides = sortedOverrides(overrides)
	return snap, nil
}

// unchanged re-reads the levels and overrides and compares them with snap.
func unchanged(ctx context.Context, src RulesSource, snap *Snapshot) (bool, error) {
	rules, err := src.Levels(ctx)
	if err != nil {
		return false, err
	}
	if rules.Version != snap.Version {
		return false, nil
	}
	overrides, err := src.AdditionalCommissions(ctx)
	if err != nil {
		return false, err
	}
	current := sortedOverrides(overrides)
	if len(current) != len(snap.Overrides) {
		return false, nil
	}
	for i, o := range current {
		prev := snap.Overrides[i]
		if o.UserID != prev.UserID || !o.UpdatedAt.Equal(prev.UpdatedAt) ||
			!o.ActivationPercentage.Equal(prev.ActivationPercentage) || !o.RenewalPercentage.Equal(prev.RenewalPercentage) {
			return false, nil
		}
	}
	return true, nil
}

func sortedOverrides(overrides []models.AdditionalCommission) []models.AdditionalCommission {
	out := make([]models.AdditionalCommission, len(overrides))
	copy(out, overrides)
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// checkBudget rejects a snapshot whose percentages could pay out more than
// the payment for either event type.
func checkBudget(snap *Snapshot) error {
	hundred := decimal.NewFromInt(100)
	for _, t := range []models.TransactionType{models.ACTIVATION, models.RENEWAL} {
		total := decimal.Zero
		for _, l := range snap.Levels {
			total = total.Add(Percentage(l, t))
		}
		for _, o := range snap.Overrides {
			total = total.Add(OverridePercentage(o, t))
		}
		if total.GreaterThan(hundred) {
			return fmt.Errorf("%w: %s percentages add up to %s%%", storage.ErrInternal, t, total.String())
		}
	}
	return nil
}

// RulesFor returns the rule of a level between 1 and MaxLevels.
func (s *Snapshot) RulesFor(level int) (models.LevelRule, error) {
	if level < 1 || level > models.MaxLevels {
		return models.LevelRule{}, fmt.Errorf("%w: level %d", storage.ErrNotFound, level)
	}
	return s.Levels[level-1], nil
}

// OverrideFor returns the additional commission of accountID, if any.
func (s *Snapshot) OverrideFor(accountID string) (models.AdditionalCommission, bool) {
	for _, o := range s.Overrides {
		if o.UserID == accountID {
			return o, true
		}
	}
	return models.AdditionalCommission{}, false
}

// Percentage selects the level percentage for an activation or a renewal.
func Percentage(rule models.LevelRule, eventType models.TransactionType) decimal.Decimal {
	if eventType == models.RENEWAL {
		return rule.RenewalPercentage
	}
	return rule.ActivationPercentage
}

// OverridePercentage selects the override percentage for an activation or a renewal.
func OverridePercentage(o models.AdditionalCommission, eventType models.TransactionType) decimal.Decimal {
	if eventType == models.RENEWAL {
		return o.RenewalPercentage
	}
	return o.ActivationPercentage
}
