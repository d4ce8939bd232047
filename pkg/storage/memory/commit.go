package memory

import (
	"context"
	"fmt"

	"github.com/chris/referral-commission-ledger/pkg/models"
	"github.com/chris/referral-commission-ledger/pkg/storage"
)

// Commit validates every element of c against the current state and then applies
// all of them. Any failed check leaves the store untouched.
func (s *Store) Commit(ctx context.Context, c *storage.Commit) error {
	if c.Size() > storage.MaxCommitItems {
		return fmt.Errorf("%w: commit touches %d records", storage.ErrValidation, c.Size())
	}

	release, err := s.locks.acquire(ctx, c.LockOrder(), s.LockTimeout)
	if err != nil {
		return err
	}
	defer release()

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(c); err != nil {
		return err
	}
	s.apply(c)
	return nil
}

func (s *Store) check(c *storage.Commit) error {
	if c.EventID != "" {
		if _, ok := s.events[c.EventID]; ok {
			return fmt.Errorf("%w: %s", storage.ErrDuplicateEvent, c.EventID)
		}
	}
	for _, u := range c.Wallets {
		current, ok := s.wallets[u.Wallet.AccountID]
		if !ok {
			return fmt.Errorf("%w: wallet for account %s", storage.ErrNotFound, u.Wallet.AccountID)
		}
		if current.Version != u.ExpectedVersion {
			return fmt.Errorf("%w: wallet %s at version %d, expected %d", storage.ErrConflict, u.Wallet.AccountID, current.Version, u.ExpectedVersion)
		}
		if u.Wallet.Negative() {
			return fmt.Errorf("%w: wallet %s", storage.ErrInsufficientFunds, u.Wallet.AccountID)
		}
	}
	for _, u := range c.Accounts {
		if err := s.checkAccountVersion(u.Account.ID, u.ExpectedVersion); err != nil {
			return err
		}
	}
	for _, chk := range c.Checks {
		if err := s.checkAccountVersion(chk.AccountID, chk.ExpectedVersion); err != nil {
			return err
		}
	}
	for _, tx := range c.Transactions {
		if _, ok := s.transactions[tx.ID]; ok {
			return fmt.Errorf("%w: transaction %s already exists", storage.ErrConflict, tx.ID)
		}
	}
	for _, u := range c.StatusUpdates {
		tx, ok := s.transactions[u.TransactionID]
		if !ok {
			return fmt.Errorf("%w: transaction %s", storage.ErrNotFound, u.TransactionID)
		}
		if tx.Status != u.From {
			return fmt.Errorf("%w: transaction %s is %s", storage.ErrConflict, u.TransactionID, tx.Status)
		}
	}
	return nil
}

func (s *Store) checkAccountVersion(id string, expected int64) error {
	current, ok := s.accounts[id]
	if !ok {
		return fmt.Errorf("%w: account %s", storage.ErrNotFound, id)
	}
	if current.Version != expected {
		return fmt.Errorf("%w: account %s at version %d, expected %d", storage.ErrConflict, id, current.Version, expected)
	}
	return nil
}

func (s *Store) apply(c *storage.Commit) {
	for _, u := range c.Wallets {
		w := u.Wallet
		w.Version = u.ExpectedVersion + 1
		w.UpdatedAt = c.CreatedAt
		s.wallets[w.AccountID] = w
	}
	for _, u := range c.Accounts {
		current := s.accounts[u.Account.ID]
		next := cloneAccount(u.Account)
		// Identity, tree position and referral count are owned by CreateAccount.
		next.Email = current.Email
		next.ReferralCode = current.ReferralCode
		next.SponsorID = current.SponsorID
		next.DirectReferrals = current.DirectReferrals
		next.CreatedAt = current.CreatedAt
		next.Version = u.ExpectedVersion + 1
		next.UpdatedAt = c.CreatedAt
		s.accounts[next.ID] = next
	}
	for _, tx := range c.Transactions {
		s.transactions[tx.ID] = cloneTransaction(tx)
		s.seq = append(s.seq, tx.ID)
	}
	for _, u := range c.StatusUpdates {
		tx := s.transactions[u.TransactionID]
		tx.Status = u.To
		if u.TxHash != "" {
			tx.TxHash = u.TxHash
		}
		tx.UpdatedAt = c.CreatedAt
		s.transactions[tx.ID] = tx
	}
	if c.EventID != "" {
		s.events[c.EventID] = models.ProcessedEvent{
			EventID:   c.EventID,
			Kind:      c.EventKind,
			AccountID: c.AccountID,
			CreatedAt: c.CreatedAt,
		}
	}
}

// GetEvent returns the record of a committed event.
func (s *Store) GetEvent(ctx context.Context, eventID string) (*models.ProcessedEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ev, ok := s.events[eventID]
	if !ok {
		return nil, fmt.Errorf("%w: event %s", storage.ErrNotFound, eventID)
	}
	return &ev, nil
}
