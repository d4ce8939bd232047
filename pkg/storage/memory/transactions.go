package memory

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/chris/referral-commission-ledger/pkg/models"
	"github.com/chris/referral-commission-ledger/pkg/storage"
)

// GetTransaction retrieves a transaction by ID.
func (s *Store) GetTransaction(ctx context.Context, txID string) (*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, ok := s.transactions[txID]
	if !ok {
		return nil, fmt.Errorf("%w: transaction %s", storage.ErrNotFound, txID)
	}
	out := cloneTransaction(tx)
	return &out, nil
}

// ListTransactions walks the insertion log backwards, newest first. The cursor
// is the log position to resume from.
func (s *Store) ListTransactions(ctx context.Context, filter storage.TransactionFilter) (*storage.TransactionPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pos := len(s.seq) - 1
	if filter.Cursor != "" {
		n, err := strconv.Atoi(filter.Cursor)
		if err != nil || n < -1 || n >= len(s.seq) {
			return nil, fmt.Errorf("%w: invalid cursor", storage.ErrValidation)
		}
		pos = n
	}

	limit := int(storage.NormalizeLimit(filter.Limit))
	page := &storage.TransactionPage{Items: []models.Transaction{}}
	for ; pos >= 0; pos-- {
		tx := s.transactions[s.seq[pos]]
		if filter.AccountID != "" && tx.AccountID != filter.AccountID {
			continue
		}
		if filter.Type != "" && tx.Type != filter.Type {
			continue
		}
		if len(page.Items) == limit {
			page.NextCursor = strconv.Itoa(pos)
			break
		}
		page.Items = append(page.Items, cloneTransaction(tx))
	}
	return page, nil
}

// GetStuckWithdrawals returns pending withdrawals created before cutoff.
func (s *Store) GetStuckWithdrawals(ctx context.Context, cutoff time.Time) ([]models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.Transaction{}
	for _, id := range s.seq {
		tx := s.transactions[id]
		if tx.Type == models.WITHDRAWAL && tx.Status == models.PENDING && tx.CreatedAt.Before(cutoff) {
			out = append(out, cloneTransaction(tx))
		}
	}
	return out, nil
}
