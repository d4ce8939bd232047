// Package memory is an in-process implementation of storage.Storage used for
// local runs and service tests. It follows the same atomicity and versioning
// rules as the DynamoDB store.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chris/referral-commission-ledger/pkg/models"
	"github.com/chris/referral-commission-ledger/pkg/storage"
)

// DefaultLockTimeout bounds how long a commit waits for a contended account.
const DefaultLockTimeout = 2 * time.Second

type settingDoc struct {
	version int64
	raw     []byte
}

// Store keeps every table in maps guarded by mu. Commits additionally hold
// per-account locks, acquired in ascending account ID order.
type Store struct {
	mu           sync.RWMutex
	accounts     map[string]models.Account
	byCode       map[string]string
	byEmail      map[string]string
	wallets      map[string]models.Wallet
	transactions map[string]models.Transaction
	seq          []string
	events       map[string]models.ProcessedEvent
	settings     map[string]settingDoc
	overrides    map[string]models.AdditionalCommission

	locks       *lockTable
	LockTimeout time.Duration
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		accounts:     map[string]models.Account{},
		byCode:       map[string]string{},
		byEmail:      map[string]string{},
		wallets:      map[string]models.Wallet{},
		transactions: map[string]models.Transaction{},
		events:       map[string]models.ProcessedEvent{},
		settings:     map[string]settingDoc{},
		overrides:    map[string]models.AdditionalCommission{},
		locks:        newLockTable(),
		LockTimeout:  DefaultLockTimeout,
	}
}

// Make sure we conform to the interface
var _ storage.Storage = (*Store)(nil)

// lockTable hands out one single-slot semaphore per account.
type lockTable struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func newLockTable() *lockTable {
	return &lockTable{slots: map[string]chan struct{}{}}
}

func (l *lockTable) slot(id string) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[id]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[id] = ch
	}
	return ch
}

// acquire locks ids in the order given, which callers keep ascending so two
// commits sharing accounts cannot deadlock. It gives up with ErrBusy after timeout.
func (l *lockTable) acquire(ctx context.Context, ids []string, timeout time.Duration) (func(), error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	held := make([]chan struct{}, 0, len(ids))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			<-held[i]
		}
	}

	for _, id := range ids {
		ch := l.slot(id)
		select {
		case ch <- struct{}{}:
			held = append(held, ch)
		case <-timer.C:
			release()
			return nil, fmt.Errorf("%w: account %s locked", storage.ErrBusy, id)
		case <-ctx.Done():
			release()
			return nil, ctx.Err()
		}
	}
	return release, nil
}

func cloneAccount(a models.Account) models.Account {
	if a.SubscriptionExpires != nil {
		t := *a.SubscriptionExpires
		a.SubscriptionExpires = &t
	}
	if a.GraceEndsAt != nil {
		t := *a.GraceEndsAt
		a.GraceEndsAt = &t
	}
	return a
}

func cloneTransaction(tx models.Transaction) models.Transaction {
	if tx.Level != nil {
		l := *tx.Level
		tx.Level = &l
	}
	return tx
}
