package commission

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/chris/referral-commission-ledger/pkg/ledgertest"
	"github.com/chris/referral-commission-ledger/pkg/models"
	"github.com/chris/referral-commission-ledger/pkg/referral"
	"github.com/chris/referral-commission-ledger/pkg/settings"
	"github.com/chris/referral-commission-ledger/pkg/storage"
	"github.com/chris/referral-commission-ledger/pkg/storage/memory"
	"github.com/jonboulle/clockwork"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store    *memory.Store
	clock    *clockwork.FakeClock
	settings *settings.Service
	engine   *Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	clock := ledgertest.NewClock()
	svc := settings.NewService(store, store, clock, ledgertest.Discard)
	graph := referral.NewGraph(store, clock, ledgertest.Discard)
	return &fixture{
		store:    store,
		clock:    clock,
		settings: svc,
		engine:   NewEngine(store, graph, svc, clock, ledgertest.Discard),
	}
}

func (f *fixture) seed(t *testing.T, id, sponsor string, status models.AccountStatus) {
	t.Helper()
	ledgertest.Seed(t, f.store, f.clock.Now(), ledgertest.Member{ID: id, Sponsor: sponsor, Status: status})
}

// flatLevels sets every level to pct with no referral minimum.
func (f *fixture) flatLevels(t *testing.T, pct string) {
	t.Helper()
	levels := settings.DefaultLevels().Levels
	for i := range levels {
		levels[i].ActivationPercentage = decimal.RequireFromString(pct)
		levels[i].RenewalPercentage = decimal.RequireFromString(pct)
		levels[i].MinDirectReferrals = 0
	}
	_, err := f.settings.UpdateLevels(context.Background(), levels)
	require.NoError(t, err)
}

func activation(id string) Event {
	return Event{ID: "activation:" + id, Type: models.ACTIVATION, AccountID: id, Amount: 10000}
}

func TestDistribute(t *testing.T) {
	t.Run("Direct Sponsor Earns Ten Percent", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t, "root", "", models.ACTIVE)
		f.seed(t, "mid", "root", models.ACTIVE)
		f.seed(t, "sponsor", "mid", models.ACTIVE)
		f.seed(t, "payer", "sponsor", models.INACTIVE)
		ledgertest.Fund(t, f.store, f.clock.Now(), "payer", models.DEPOSIT, 10000)

		result, err := f.engine.Distribute(context.Background(), activation("payer"), Options{})

		require.NoError(t, err)
		assert.False(t, result.Replayed)
		// mid and root each have a single direct referral, below the level 2 and 3 minimums
		require.Len(t, result.Credits, 1)
		assert.Equal(t, "sponsor", result.Credits[0].AccountID)
		assert.Equal(t, 1, result.Credits[0].Level)
		assert.Equal(t, int64(1000), result.Credits[0].Amount)
		assert.Equal(t, int64(9000), result.Forfeited)
		assert.Equal(t, models.ACTIVATION, result.Payment.Type)

		assert.Equal(t, int64(1000), ledgertest.Wallet(t, f.store, "sponsor").EarningsBalance)
		assert.Equal(t, int64(0), ledgertest.Wallet(t, f.store, "payer").DepositBalance)
		assert.Equal(t, int64(0), ledgertest.Wallet(t, f.store, "mid").EarningsBalance)
		for _, id := range []string{"payer", "sponsor", "mid", "root"} {
			ledgertest.RequireReconciled(t, f.store, id)
		}
	})

	t.Run("Qualified Ancestor Earns Its Level", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t, "mid", "", models.ACTIVE)
		f.seed(t, "sponsor", "mid", models.ACTIVE)
		f.seed(t, "sibling", "mid", models.ACTIVE)
		f.seed(t, "payer", "sponsor", models.INACTIVE)
		ledgertest.Fund(t, f.store, f.clock.Now(), "payer", models.DEPOSIT, 10000)

		result, err := f.engine.Distribute(context.Background(), activation("payer"), Options{})

		require.NoError(t, err)
		require.Len(t, result.Credits, 2)
		assert.Equal(t, int64(500), ledgertest.Wallet(t, f.store, "mid").EarningsBalance)
		assert.Equal(t, int64(8500), result.Forfeited)
	})

	t.Run("Compressed Ancestor Is Skipped Without Promotion", func(t *testing.T) {
		f := newFixture(t)
		f.flatLevels(t, "5")
		f.seed(t, "root", "", models.ACTIVE)
		f.seed(t, "gone", "root", models.COMPRESSED)
		f.seed(t, "sponsor", "gone", models.ACTIVE)
		f.seed(t, "payer", "sponsor", models.INACTIVE)
		ledgertest.Fund(t, f.store, f.clock.Now(), "payer", models.DEPOSIT, 10000)

		result, err := f.engine.Distribute(context.Background(), activation("payer"), Options{})

		require.NoError(t, err)
		require.Len(t, result.Credits, 2)
		assert.Equal(t, "root", result.Credits[1].AccountID)
		assert.Equal(t, 3, result.Credits[1].Level)
		assert.Equal(t, int64(0), ledgertest.Wallet(t, f.store, "gone").EarningsBalance)
		assert.Equal(t, int64(500), ledgertest.Wallet(t, f.store, "root").EarningsBalance)
		assert.Equal(t, int64(9000), result.Forfeited)
	})

	t.Run("Inactive Ancestor Forfeits", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t, "sponsor", "", models.INACTIVE)
		f.seed(t, "payer", "sponsor", models.INACTIVE)
		ledgertest.Fund(t, f.store, f.clock.Now(), "payer", models.DEPOSIT, 10000)

		result, err := f.engine.Distribute(context.Background(), activation("payer"), Options{})

		require.NoError(t, err)
		assert.Empty(t, result.Credits)
		assert.Equal(t, int64(10000), result.Forfeited)
	})

	t.Run("Grace Ancestor Is Credited To Holding", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t, "sponsor", "", models.GRACE)
		f.seed(t, "payer", "sponsor", models.INACTIVE)
		ledgertest.Fund(t, f.store, f.clock.Now(), "payer", models.DEPOSIT, 10000)

		result, err := f.engine.Distribute(context.Background(), activation("payer"), Options{})

		require.NoError(t, err)
		require.Len(t, result.Credits, 1)
		assert.Equal(t, models.HOLDING, result.Credits[0].Wallet)
		w := ledgertest.Wallet(t, f.store, "sponsor")
		assert.Equal(t, int64(1000), w.HoldingBalance)
		assert.Equal(t, int64(0), w.EarningsBalance)
		ledgertest.RequireReconciled(t, f.store, "sponsor")
	})

	t.Run("Expired Active Ancestor Counts As Grace", func(t *testing.T) {
		f := newFixture(t)
		ledgertest.Seed(t, f.store, f.clock.Now(), ledgertest.Member{ID: "sponsor", Status: models.ACTIVE, Expires: time.Hour})
		f.seed(t, "payer", "sponsor", models.INACTIVE)
		ledgertest.Fund(t, f.store, f.clock.Now(), "payer", models.DEPOSIT, 10000)
		f.clock.Advance(2 * time.Hour)

		_, err := f.engine.Distribute(context.Background(), activation("payer"), Options{})

		require.NoError(t, err)
		assert.Equal(t, int64(1000), ledgertest.Wallet(t, f.store, "sponsor").HoldingBalance)
	})

	t.Run("Override Holders", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t, "vip", "", models.ACTIVE)
		f.seed(t, "payer", "", models.INACTIVE)
		ledgertest.Fund(t, f.store, f.clock.Now(), "payer", models.DEPOSIT, 10000)
		for _, id := range []string{"vip", "payer"} {
			_, err := f.settings.UpsertAdditionalCommission(context.Background(), models.AdditionalCommission{
				UserID: id, ActivationPercentage: decimal.RequireFromString("2.5"), RenewalPercentage: decimal.NewFromInt(1),
			})
			require.NoError(t, err)
		}

		result, err := f.engine.Distribute(context.Background(), activation("payer"), Options{})

		require.NoError(t, err)
		require.Len(t, result.Credits, 1)
		assert.Equal(t, models.ADDITIONAL_INCOME, result.Credits[0].Type)
		assert.Equal(t, int64(250), ledgertest.Wallet(t, f.store, "vip").EarningsBalance)
		assert.Equal(t, int64(0), ledgertest.Wallet(t, f.store, "payer").EarningsBalance)
	})

	t.Run("Renewal Uses Renewal Percentages", func(t *testing.T) {
		f := newFixture(t)
		levels := settings.DefaultLevels().Levels
		levels[0].RenewalPercentage = decimal.NewFromInt(7)
		_, err := f.settings.UpdateLevels(context.Background(), levels)
		require.NoError(t, err)
		f.seed(t, "sponsor", "", models.ACTIVE)
		f.seed(t, "payer", "sponsor", models.ACTIVE)
		ledgertest.Fund(t, f.store, f.clock.Now(), "payer", models.DEPOSIT, 7000)

		result, err := f.engine.Distribute(context.Background(), Event{ID: "renewal:payer:1", Type: models.RENEWAL, AccountID: "payer", Amount: 7000}, Options{})

		require.NoError(t, err)
		assert.Equal(t, int64(490), result.Credits[0].Amount)
	})

	t.Run("Replay Credits Nothing", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t, "sponsor", "", models.ACTIVE)
		f.seed(t, "payer", "sponsor", models.INACTIVE)
		ledgertest.Fund(t, f.store, f.clock.Now(), "payer", models.DEPOSIT, 20000)

		_, err := f.engine.Distribute(context.Background(), activation("payer"), Options{})
		require.NoError(t, err)
		result, err := f.engine.Distribute(context.Background(), activation("payer"), Options{})

		require.NoError(t, err)
		assert.True(t, result.Replayed)
		assert.Equal(t, int64(1000), ledgertest.Wallet(t, f.store, "sponsor").EarningsBalance)
		assert.Equal(t, int64(10000), ledgertest.Wallet(t, f.store, "payer").DepositBalance)
	})

	t.Run("Insufficient Funds Posts Nothing", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t, "sponsor", "", models.ACTIVE)
		f.seed(t, "payer", "sponsor", models.INACTIVE)
		ledgertest.Fund(t, f.store, f.clock.Now(), "payer", models.DEPOSIT, 9999)

		_, err := f.engine.Distribute(context.Background(), activation("payer"), Options{})

		assert.ErrorIs(t, err, storage.ErrInsufficientFunds)
		assert.Equal(t, int64(0), ledgertest.Wallet(t, f.store, "sponsor").EarningsBalance)
		assert.Len(t, ledgertest.Transactions(t, f.store, "payer"), 1)
	})

	t.Run("Mutator Error Aborts", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t, "payer", "", models.INACTIVE)
		ledgertest.Fund(t, f.store, f.clock.Now(), "payer", models.DEPOSIT, 10000)

		_, err := f.engine.Distribute(context.Background(), activation("payer"), Options{
			Mutate: func(b *storage.CommitBuilder, payer *models.Account, now time.Time) error {
				return storage.ErrInvalidState
			},
		})

		assert.ErrorIs(t, err, storage.ErrInvalidState)
		assert.Equal(t, int64(10000), ledgertest.Wallet(t, f.store, "payer").DepositBalance)
	})

	t.Run("Invalid Event", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.engine.Distribute(context.Background(), Event{ID: "x", Type: models.WITHDRAWAL, AccountID: "a", Amount: 1}, Options{})

		assert.ErrorIs(t, err, storage.ErrValidation)
	})
}

func TestDistributeConcurrent(t *testing.T) {
	f := newFixture(t)
	f.engine.WithRetry(storage.RetryConfig{MaxAttempts: 100, BaseBackoff: time.Millisecond, MaxBackoff: 5 * time.Millisecond})
	f.seed(t, "sponsor", "", models.ACTIVE)
	const payers = 8
	for i := 0; i < payers; i++ {
		id := fmt.Sprintf("payer-%d", i)
		f.seed(t, id, "sponsor", models.INACTIVE)
		ledgertest.Fund(t, f.store, f.clock.Now(), id, models.DEPOSIT, 10000)
	}

	var wg sync.WaitGroup
	errs := make(chan error, payers*2)
	for i := 0; i < payers; i++ {
		id := fmt.Sprintf("payer-%d", i)
		// every payment is submitted twice; only one of each may post
		for j := 0; j < 2; j++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := f.engine.Distribute(context.Background(), activation(id), Options{})
				errs <- err
			}()
		}
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int64(payers*1000), ledgertest.Wallet(t, f.store, "sponsor").EarningsBalance)
	ledgertest.RequireReconciled(t, f.store, "sponsor")
}

func TestSnapshot(t *testing.T) {
	f := newFixture(t)
	snap, err := LoadSnapshot(context.Background(), f.settings)
	require.NoError(t, err)

	rule, err := snap.RulesFor(2)
	require.NoError(t, err)
	assert.Equal(t, 2, rule.MinDirectReferrals)

	_, err = snap.RulesFor(11)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, ok := snap.OverrideFor("nobody")
	assert.False(t, ok)
	assert.Equal(t, 48*time.Hour, snap.GracePeriod)
}

// changingRules bumps the level table version on each of the first `changes`
// reads, like an admin editing the table during a distribution.
type changingRules struct {
	levels    models.LevelRules
	overrides []models.AdditionalCommission
	changes   int
	reads     int
}

func (c *changingRules) Levels(ctx context.Context) (models.LevelRules, error) {
	c.reads++
	if c.reads <= c.changes {
		c.levels.Version++
	}
	return c.levels, nil
}

func (c *changingRules) AdditionalCommissions(ctx context.Context) ([]models.AdditionalCommission, error) {
	return c.overrides, nil
}

func (c *changingRules) Subscription(ctx context.Context) (models.SubscriptionSettings, error) {
	return settings.DefaultSubscription(), nil
}

func TestLoadSnapshotConsistency(t *testing.T) {
	t.Run("Rereads Until Stable", func(t *testing.T) {
		// Arrange
		src := &changingRules{levels: settings.DefaultLevels(), changes: 2}

		// Act
		snap, err := LoadSnapshot(context.Background(), src)

		// Assert
		require.NoError(t, err)
		assert.Equal(t, int64(2), snap.Version)
	})

	t.Run("Busy When Rules Keep Changing", func(t *testing.T) {
		src := &changingRules{levels: settings.DefaultLevels(), changes: 100}

		_, err := LoadSnapshot(context.Background(), src)

		assert.ErrorIs(t, err, storage.ErrBusy)
	})

	t.Run("Rejects Mixed Tables Over Budget", func(t *testing.T) {
		// Arrange
		src := &changingRules{
			levels:    settings.DefaultLevels(),
			overrides: []models.AdditionalCommission{{UserID: "whale", ActivationPercentage: decimal.NewFromInt(90)}},
		}

		// Act
		_, err := LoadSnapshot(context.Background(), src)

		// Assert
		assert.ErrorIs(t, err, storage.ErrInternal)
	})
}
