package subscription

import (
	"context"
	"testing"
	"time"

	"github.com/chris/referral-commission-ledger/pkg/commission"
	"github.com/chris/referral-commission-ledger/pkg/ledgertest"
	"github.com/chris/referral-commission-ledger/pkg/models"
	"github.com/chris/referral-commission-ledger/pkg/referral"
	"github.com/chris/referral-commission-ledger/pkg/settings"
	"github.com/chris/referral-commission-ledger/pkg/storage"
	"github.com/chris/referral-commission-ledger/pkg/storage/memory"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const day = 24 * time.Hour

type fixture struct {
	store *memory.Store
	clock *clockwork.FakeClock
	svc   *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	clock := ledgertest.NewClock()
	cfg := settings.NewService(store, store, clock, ledgertest.Discard)
	graph := referral.NewGraph(store, clock, ledgertest.Discard)
	engine := commission.NewEngine(store, graph, cfg, clock, ledgertest.Discard)
	return &fixture{store: store, clock: clock, svc: NewService(store, engine, cfg, clock, ledgertest.Discard)}
}

func (f *fixture) seed(t *testing.T, m ledgertest.Member) {
	t.Helper()
	ledgertest.Seed(t, f.store, f.clock.Now(), m)
}

func (f *fixture) fund(t *testing.T, id string, amount int64) {
	t.Helper()
	ledgertest.Fund(t, f.store, f.clock.Now(), id, models.DEPOSIT, amount)
}

func (f *fixture) account(t *testing.T, id string) *models.Account {
	t.Helper()
	acc, err := f.store.GetAccount(context.Background(), id)
	require.NoError(t, err)
	return acc
}

func TestCheckActivation(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t, ledgertest.Member{ID: "sponsor"})
		f.seed(t, ledgertest.Member{ID: "payer", Sponsor: "sponsor", Status: models.INACTIVE})
		f.fund(t, "payer", 10000)

		result, err := f.svc.CheckActivation(context.Background(), "payer", "")

		require.NoError(t, err)
		assert.Equal(t, "activation:payer", result.EventID)
		acc := f.account(t, "payer")
		assert.Equal(t, models.ACTIVE, acc.Status)
		require.NotNil(t, acc.SubscriptionExpires)
		assert.True(t, acc.SubscriptionExpires.Equal(f.clock.Now().Add(30*day)))
		assert.Equal(t, int64(1000), ledgertest.Wallet(t, f.store, "sponsor").EarningsBalance)
		ledgertest.RequireReconciled(t, f.store, "payer")
	})

	t.Run("Replay", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t, ledgertest.Member{ID: "payer", Status: models.INACTIVE})
		f.fund(t, "payer", 20000)
		_, err := f.svc.CheckActivation(context.Background(), "payer", "")
		require.NoError(t, err)

		result, err := f.svc.CheckActivation(context.Background(), "payer", "")

		require.NoError(t, err)
		assert.True(t, result.Replayed)
		assert.Equal(t, int64(10000), ledgertest.Wallet(t, f.store, "payer").DepositBalance)
	})

	t.Run("Insufficient Deposit", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t, ledgertest.Member{ID: "payer", Status: models.INACTIVE})
		f.fund(t, "payer", 9999)

		_, err := f.svc.CheckActivation(context.Background(), "payer", "")

		assert.ErrorIs(t, err, storage.ErrInsufficientFunds)
		assert.Contains(t, err.Error(), "100.00 required")
		assert.Equal(t, models.INACTIVE, f.account(t, "payer").Status)
	})

	t.Run("Already Active", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t, ledgertest.Member{ID: "payer"})
		f.fund(t, "payer", 10000)

		_, err := f.svc.CheckActivation(context.Background(), "payer", "other-key")

		assert.ErrorIs(t, err, storage.ErrInvalidState)
	})
}

func TestRenew(t *testing.T) {
	t.Run("Extends From Current Expiry", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t, ledgertest.Member{ID: "payer", Expires: 5 * day})
		f.fund(t, "payer", 7000)

		_, err := f.svc.Renew(context.Background(), "payer", "")

		require.NoError(t, err)
		acc := f.account(t, "payer")
		assert.True(t, acc.SubscriptionExpires.Equal(f.clock.Now().Add(35*day)))
	})

	t.Run("Grace Renewal Releases Holding", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t, ledgertest.Member{ID: "sponsor", Status: models.GRACE})
		f.seed(t, ledgertest.Member{ID: "payer", Sponsor: "sponsor", Status: models.INACTIVE})
		f.fund(t, "payer", 10000)
		f.fund(t, "sponsor", 7000)

		_, err := f.svc.CheckActivation(context.Background(), "payer", "")
		require.NoError(t, err)
		require.Equal(t, int64(1000), ledgertest.Wallet(t, f.store, "sponsor").HoldingBalance)

		f.clock.Advance(24 * time.Hour)
		_, err = f.svc.Renew(context.Background(), "sponsor", "")
		require.NoError(t, err)

		w := ledgertest.Wallet(t, f.store, "sponsor")
		assert.Equal(t, int64(0), w.HoldingBalance)
		assert.Equal(t, int64(1000), w.EarningsBalance)
		acc := f.account(t, "sponsor")
		assert.Equal(t, models.ACTIVE, acc.Status)
		assert.Nil(t, acc.GraceEndsAt)
		assert.True(t, acc.SubscriptionExpires.Equal(f.clock.Now().Add(30*day)))
		ledgertest.RequireReconciled(t, f.store, "sponsor")
	})

	t.Run("Compressed Cannot Renew", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t, ledgertest.Member{ID: "payer", Status: models.COMPRESSED})
		f.fund(t, "payer", 7000)

		_, err := f.svc.Renew(context.Background(), "payer", "")

		assert.ErrorIs(t, err, storage.ErrInvalidState)
	})

	t.Run("Inactive Cannot Renew", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t, ledgertest.Member{ID: "payer", Status: models.INACTIVE})
		f.fund(t, "payer", 7000)

		_, err := f.svc.Renew(context.Background(), "payer", "")

		assert.ErrorIs(t, err, storage.ErrInvalidState)
	})
}

func TestGracePeriodLifecycle(t *testing.T) {
	f := newFixture(t)
	f.seed(t, ledgertest.Member{ID: "sponsor", Expires: day})
	f.seed(t, ledgertest.Member{ID: "first", Sponsor: "sponsor", Status: models.INACTIVE})
	f.seed(t, ledgertest.Member{ID: "second", Sponsor: "sponsor", Status: models.INACTIVE})
	f.fund(t, "first", 10000)
	f.fund(t, "second", 10000)

	// 1. The subscription lapses and the sweep opens a 48h grace window.
	f.clock.Advance(day + time.Minute)
	result, err := f.svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.EnteredGrace)
	acc := f.account(t, "sponsor")
	assert.Equal(t, models.GRACE, acc.Status)
	assert.True(t, acc.GraceEndsAt.Equal(acc.SubscriptionExpires.Add(48*time.Hour)))

	// 2. Commission earned during grace is held.
	_, err = f.svc.CheckActivation(context.Background(), "first", "")
	require.NoError(t, err)
	_, err = f.svc.CheckActivation(context.Background(), "second", "")
	require.NoError(t, err)
	assert.Equal(t, int64(2000), ledgertest.Wallet(t, f.store, "sponsor").HoldingBalance)

	// 3. Grace ends without a renewal: held commission is forfeited.
	f.clock.Advance(48 * time.Hour)
	result, err = f.svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Compressed)
	assert.Equal(t, int64(2000), result.ForfeitedTotal)

	w := ledgertest.Wallet(t, f.store, "sponsor")
	assert.Equal(t, int64(0), w.HoldingBalance)
	assert.Equal(t, int64(0), w.EarningsBalance)
	assert.Equal(t, models.COMPRESSED, f.account(t, "sponsor").Status)
	ledgertest.RequireReconciled(t, f.store, "sponsor")

	// 4. Compression is terminal.
	f.fund(t, "sponsor", 7000)
	_, err = f.svc.Renew(context.Background(), "sponsor", "")
	assert.ErrorIs(t, err, storage.ErrInvalidState)

	// 5. A second sweep changes nothing.
	result, err = f.svc.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepResult{}, *result)
}

func TestSweep(t *testing.T) {
	t.Run("Auto Renews Funded Accounts", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t, ledgertest.Member{ID: "payer", Expires: time.Hour})
		f.fund(t, "payer", 7000)
		f.clock.Advance(2 * time.Hour)

		result, err := f.svc.Sweep(context.Background())

		require.NoError(t, err)
		assert.Equal(t, 1, result.Renewed)
		assert.Equal(t, 0, result.EnteredGrace)
		acc := f.account(t, "payer")
		assert.Equal(t, models.ACTIVE, acc.Status)
		assert.True(t, acc.SubscriptionExpires.Equal(f.clock.Now().Add(30*day)))
	})

	t.Run("Renews Ahead Of Expiry", func(t *testing.T) {
		// Arrange
		f := newFixture(t)
		f.seed(t, ledgertest.Member{ID: "payer", Expires: 12 * time.Hour})
		f.fund(t, "payer", 7000)
		expires := *f.account(t, "payer").SubscriptionExpires

		// Act
		result, err := f.svc.Sweep(context.Background())

		// Assert
		require.NoError(t, err)
		assert.Equal(t, 1, result.Renewed)
		acc := f.account(t, "payer")
		assert.Equal(t, models.ACTIVE, acc.Status)
		assert.True(t, acc.SubscriptionExpires.Equal(expires.Add(30*day)))
		assert.Zero(t, ledgertest.Wallet(t, f.store, "payer").DepositBalance)

		// A second sweep in the same window does not renew again.
		again, err := f.svc.Sweep(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 0, again.Renewed)
	})

	t.Run("Unfunded Account Near Expiry Stays Active", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t, ledgertest.Member{ID: "payer", Expires: 12 * time.Hour})

		result, err := f.svc.Sweep(context.Background())

		require.NoError(t, err)
		assert.Equal(t, SweepResult{}, *result)
		assert.Equal(t, models.ACTIVE, f.account(t, "payer").Status)
	})

	t.Run("Compresses Accounts Past Grace", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t, ledgertest.Member{ID: "payer", Expires: time.Hour})
		ledgertest.Fund(t, f.store, f.clock.Now(), "payer", models.HOLDING, 300)
		f.clock.Advance(72 * time.Hour)

		result, err := f.svc.Sweep(context.Background())

		require.NoError(t, err)
		assert.Equal(t, 1, result.Compressed)
		assert.Equal(t, int64(300), result.ForfeitedTotal)
	})

	t.Run("Active Accounts Untouched", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t, ledgertest.Member{ID: "payer"})

		result, err := f.svc.Sweep(context.Background())

		require.NoError(t, err)
		assert.Equal(t, SweepResult{}, *result)
	})
}

func TestCreditDeposit(t *testing.T) {
	t.Run("Activates Inactive Account", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t, ledgertest.Member{ID: "payer", Status: models.INACTIVE})

		result, err := f.svc.CreditDeposit(context.Background(), DepositEvent{AccountID: "payer", Amount: 12000, TxHash: "0xabc"})

		require.NoError(t, err)
		require.NotNil(t, result.Transaction)
		assert.Equal(t, "0xabc", result.Transaction.TxHash)
		require.NotNil(t, result.Activation)
		assert.Equal(t, models.ACTIVE, f.account(t, "payer").Status)
		assert.Equal(t, int64(2000), ledgertest.Wallet(t, f.store, "payer").DepositBalance)
	})

	t.Run("Replay Credits Once", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t, ledgertest.Member{ID: "payer"})
		ev := DepositEvent{EventID: "np-1", AccountID: "payer", Amount: 500}

		_, err := f.svc.CreditDeposit(context.Background(), ev)
		require.NoError(t, err)
		result, err := f.svc.CreditDeposit(context.Background(), ev)

		require.NoError(t, err)
		assert.True(t, result.Replayed)
		assert.Equal(t, int64(500), ledgertest.Wallet(t, f.store, "payer").DepositBalance)
	})

	t.Run("Renews Account In Grace", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t, ledgertest.Member{ID: "payer", Status: models.GRACE})

		result, err := f.svc.CreditDeposit(context.Background(), DepositEvent{EventID: "np-2", AccountID: "payer", Amount: 7000})

		require.NoError(t, err)
		require.NotNil(t, result.Renewal)
		assert.Equal(t, models.ACTIVE, f.account(t, "payer").Status)
	})

	t.Run("Small Deposit Only Credits", func(t *testing.T) {
		f := newFixture(t)
		f.seed(t, ledgertest.Member{ID: "payer", Status: models.INACTIVE})

		result, err := f.svc.CreditDeposit(context.Background(), DepositEvent{EventID: "np-3", AccountID: "payer", Amount: 100})

		require.NoError(t, err)
		assert.Nil(t, result.Activation)
		assert.Equal(t, models.INACTIVE, f.account(t, "payer").Status)
	})

	t.Run("Validation", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.svc.CreditDeposit(context.Background(), DepositEvent{AccountID: "payer", Amount: 100})
		assert.ErrorIs(t, err, storage.ErrValidation)

		_, err = f.svc.CreditDeposit(context.Background(), DepositEvent{EventID: "x", AccountID: "payer", Amount: 0})
		assert.ErrorIs(t, err, storage.ErrValidation)
	})
}
