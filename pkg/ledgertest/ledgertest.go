// Package ledgertest provides fixtures for tests that run services against
// the in-memory store.
package ledgertest

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/chris/referral-commission-ledger/pkg/models"
	"github.com/chris/referral-commission-ledger/pkg/storage"
	"github.com/chris/referral-commission-ledger/pkg/storage/memory"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

// Epoch is the fake clock's starting time.
var Epoch = time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)

// Discard is a logger that drops everything.
var Discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// NewClock returns a fake clock at Epoch.
func NewClock() *clockwork.FakeClock {
	return clockwork.NewFakeClockAt(Epoch)
}

// Member describes an account to seed.
type Member struct {
	ID      string
	Sponsor string
	Status  models.AccountStatus
	// Expires is relative to the clock. Zero means 30 days for active
	// accounts and one hour ago for accounts in grace.
	Expires time.Duration
}

// Seed creates m with its lifecycle fields set relative to now.
func Seed(t *testing.T, store *memory.Store, now time.Time, m Member) *models.Account {
	t.Helper()
	if m.Status == "" {
		m.Status = models.ACTIVE
	}
	acc := &models.Account{
		ID:           m.ID,
		Email:        m.ID + "@example.com",
		ReferralCode: strings.ToUpper("R" + m.ID),
		SponsorID:    m.Sponsor,
		Status:       m.Status,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	switch m.Status {
	case models.ACTIVE:
		if m.Expires == 0 {
			m.Expires = 30 * 24 * time.Hour
		}
		expires := now.Add(m.Expires)
		acc.SubscriptionExpires = &expires
	case models.GRACE:
		if m.Expires == 0 {
			m.Expires = -time.Hour
		}
		expires := now.Add(m.Expires)
		graceEnds := expires.Add(48 * time.Hour)
		acc.SubscriptionExpires = &expires
		acc.GraceEndsAt = &graceEnds
	case models.COMPRESSED:
		expires := now.Add(-72 * time.Hour)
		graceEnds := expires.Add(48 * time.Hour)
		acc.SubscriptionExpires = &expires
		acc.GraceEndsAt = &graceEnds
	}
	created, err := store.CreateAccount(context.Background(), acc)
	require.NoError(t, err)
	return created
}

// Fund posts a deposit credit of amount into the given wallet of id.
func Fund(t *testing.T, store *memory.Store, now time.Time, id string, kind models.WalletKind, amount int64) {
	t.Helper()
	w, err := store.GetWallet(context.Background(), id)
	require.NoError(t, err)
	b := storage.NewCommitBuilder("", "fixture", id, now)
	b.Track(w)
	_, err = b.Post(models.Transaction{AccountID: id, Type: models.DEPOSIT_CREDIT, Wallet: kind, Amount: amount, Delta: amount})
	require.NoError(t, err)
	c, err := b.Build()
	require.NoError(t, err)
	require.NoError(t, store.Commit(context.Background(), c))
}

// Wallet returns the current wallet of id.
func Wallet(t *testing.T, store storage.WalletReader, id string) models.Wallet {
	t.Helper()
	w, err := store.GetWallet(context.Background(), id)
	require.NoError(t, err)
	return *w
}

// Transactions returns every transaction of id, newest first.
func Transactions(t *testing.T, store storage.TransactionReader, id string) []models.Transaction {
	t.Helper()
	var out []models.Transaction
	cursor := ""
	for {
		page, err := store.ListTransactions(context.Background(), storage.TransactionFilter{AccountID: id, Limit: storage.MaxPageSize, Cursor: cursor})
		require.NoError(t, err)
		out = append(out, page.Items...)
		if page.NextCursor == "" {
			return out
		}
		cursor = page.NextCursor
	}
}

// RequireReconciled asserts every balance of id equals the sum of the deltas
// posted against it.
func RequireReconciled(t *testing.T, store storage.Storage, id string) {
	t.Helper()
	sums := map[models.WalletKind]int64{}
	for _, tx := range Transactions(t, store, id) {
		sums[tx.Wallet] += tx.Delta
	}
	w := Wallet(t, store, id)
	for _, kind := range []models.WalletKind{models.EARNINGS, models.DEPOSIT, models.HOLDING} {
		require.Equalf(t, w.Balance(kind), sums[kind], "%s %s balance does not match its transactions", id, kind)
	}
}
