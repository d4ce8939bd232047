package storage

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/chris/referral-commission-ledger/pkg/models"
	"github.com/google/uuid"
)

// MaxCommitItems bounds the number of records one commit may touch.
const MaxCommitItems = 100

// WalletUpdate replaces a wallet's balances if its version is still ExpectedVersion.
type WalletUpdate struct {
	Wallet          models.Wallet
	ExpectedVersion int64
}

// AccountUpdate replaces an account's lifecycle fields if its version is still ExpectedVersion.
type AccountUpdate struct {
	Account         models.Account
	ExpectedVersion int64
}

// AccountCheck asserts an account was not modified since it was read.
type AccountCheck struct {
	AccountID       string
	ExpectedVersion int64
}

// StatusUpdate moves a pending transaction to its final status.
type StatusUpdate struct {
	TransactionID string
	From          models.TransactionStatus
	To            models.TransactionStatus
	TxHash        string
}

// Commit is the unit of atomicity of the ledger: every element is applied or none is.
type Commit struct {
	// EventID is the idempotency key. Empty means no deduplication.
	EventID       string
	EventKind     string
	AccountID     string
	Wallets       []WalletUpdate
	Accounts      []AccountUpdate
	Checks        []AccountCheck
	Transactions  []models.Transaction
	StatusUpdates []StatusUpdate
	CreatedAt     time.Time
}

// Size returns the number of records the commit writes or checks.
func (c *Commit) Size() int {
	n := len(c.Wallets) + len(c.Accounts) + len(c.Checks) + len(c.Transactions) + len(c.StatusUpdates)
	if c.EventID != "" {
		n++
	}
	return n
}

// LockOrder returns the distinct account IDs the commit touches, ascending.
func (c *Commit) LockOrder() []string {
	seen := map[string]struct{}{}
	for _, w := range c.Wallets {
		seen[w.Wallet.AccountID] = struct{}{}
	}
	for _, a := range c.Accounts {
		seen[a.Account.ID] = struct{}{}
	}
	for _, chk := range c.Checks {
		seen[chk.AccountID] = struct{}{}
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Committer applies commits atomically.
type Committer interface {
	// Commit applies c or nothing. It returns ErrDuplicateEvent, ErrConflict,
	// ErrBusy or ErrInsufficientFunds without side effects.
	Commit(ctx context.Context, c *Commit) error
}

// EventReader looks up consumed idempotency keys.
type EventReader interface {
	// GetEvent returns the record of a committed event, or ErrNotFound.
	GetEvent(ctx context.Context, eventID string) (*models.ProcessedEvent, error)
}

// CommitBuilder accumulates postings against wallets read at the start of an
// operation. Balances only move through Post, so every change has a row.
type CommitBuilder struct {
	commit   Commit
	wallets  map[string]*WalletUpdate
	accounts map[string]*AccountUpdate
	checks   map[string]int64
	touched  map[string]bool
}

// NewCommitBuilder starts a commit for the given idempotency key.
func NewCommitBuilder(eventID, kind, accountID string, now time.Time) *CommitBuilder {
	return &CommitBuilder{
		commit: Commit{
			EventID:   eventID,
			EventKind: kind,
			AccountID: accountID,
			CreatedAt: now,
		},
		wallets:  map[string]*WalletUpdate{},
		accounts: map[string]*AccountUpdate{},
		checks:   map[string]int64{},
		touched:  map[string]bool{},
	}
}

// Track registers a wallet as read. Tracking the same account again is a no-op.
func (b *CommitBuilder) Track(w *models.Wallet) {
	if _, ok := b.wallets[w.AccountID]; ok {
		return
	}
	b.wallets[w.AccountID] = &WalletUpdate{Wallet: *w, ExpectedVersion: w.Version}
}

// Wallet returns the working copy of a tracked wallet.
func (b *CommitBuilder) Wallet(accountID string) (models.Wallet, bool) {
	u, ok := b.wallets[accountID]
	if !ok {
		return models.Wallet{}, false
	}
	return u.Wallet, true
}

// Post appends tx and applies its Delta to the tracked wallet.
func (b *CommitBuilder) Post(tx models.Transaction) (models.Transaction, error) {
	u, ok := b.wallets[tx.AccountID]
	if !ok {
		return tx, fmt.Errorf("%w: wallet %s not tracked", ErrInternal, tx.AccountID)
	}
	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}
	if tx.Status == "" {
		tx.Status = models.COMPLETED
	}
	if tx.EventID == "" {
		tx.EventID = b.commit.EventID
	}
	tx.CreatedAt = b.commit.CreatedAt
	tx.UpdatedAt = b.commit.CreatedAt
	tx.GSI1PK = models.TransactionsPartition

	u.Wallet.Add(tx.Wallet, tx.Delta)
	b.touched[tx.AccountID] = true
	u.Wallet.UpdatedAt = b.commit.CreatedAt
	b.commit.Transactions = append(b.commit.Transactions, tx)
	return tx, nil
}

// SetAccount records a new lifecycle state for acc. The expected version is the
// version acc carried the first time it was set.
func (b *CommitBuilder) SetAccount(acc models.Account) {
	if u, ok := b.accounts[acc.ID]; ok {
		u.Account = acc
		return
	}
	b.accounts[acc.ID] = &AccountUpdate{Account: acc, ExpectedVersion: acc.Version}
}

// Require asserts acc is unchanged at commit time.
func (b *CommitBuilder) Require(acc *models.Account) {
	if _, ok := b.checks[acc.ID]; ok {
		return
	}
	b.checks[acc.ID] = acc.Version
}

// UpdateStatus settles a pending transaction within the commit.
func (b *CommitBuilder) UpdateStatus(u StatusUpdate) {
	b.commit.StatusUpdates = append(b.commit.StatusUpdates, u)
}

// Build validates balances and returns the commit with updates in lock order.
func (b *CommitBuilder) Build() (*Commit, error) {
	c := b.commit
	for _, u := range b.wallets {
		if u.Wallet.Negative() {
			return nil, fmt.Errorf("%w: wallet %s", ErrInsufficientFunds, u.Wallet.AccountID)
		}
		if !b.touched[u.Wallet.AccountID] {
			continue
		}
		c.Wallets = append(c.Wallets, *u)
	}
	for _, u := range b.accounts {
		c.Accounts = append(c.Accounts, *u)
	}
	for id, v := range b.checks {
		if _, updated := b.accounts[id]; updated {
			continue
		}
		c.Checks = append(c.Checks, AccountCheck{AccountID: id, ExpectedVersion: v})
	}
	sort.Slice(c.Wallets, func(i, j int) bool { return c.Wallets[i].Wallet.AccountID < c.Wallets[j].Wallet.AccountID })
	sort.Slice(c.Accounts, func(i, j int) bool { return c.Accounts[i].Account.ID < c.Accounts[j].Account.ID })
	sort.Slice(c.Checks, func(i, j int) bool { return c.Checks[i].AccountID < c.Checks[j].AccountID })

	if c.Size() > MaxCommitItems {
		return nil, fmt.Errorf("%w: commit touches %d records, limit is %d", ErrValidation, c.Size(), MaxCommitItems)
	}
	return &c, nil
}
