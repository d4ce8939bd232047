package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/chris/referral-commission-ledger/pkg/models"
	"github.com/chris/referral-commission-ledger/pkg/storage"
)

// GetSettings decodes the document stored under key into dest.
func (s *Store) GetSettings(ctx context.Context, key string, dest any) (int64, error) {
	s.mu.RLock()
	doc, ok := s.settings[key]
	s.mu.RUnlock()
	if !ok {
		return 0, fmt.Errorf("%w: settings %s", storage.ErrNotFound, key)
	}
	if err := json.Unmarshal(doc.raw, dest); err != nil {
		return 0, fmt.Errorf("failed to decode settings %s: %w", key, err)
	}
	return doc.version, nil
}

// PutSettings replaces the document under key if its version is still expectedVersion.
func (s *Store) PutSettings(ctx context.Context, key string, value any, expectedVersion int64) (int64, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return 0, fmt.Errorf("failed to encode settings %s: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if doc := s.settings[key]; doc.version != expectedVersion {
		return 0, fmt.Errorf("%w: settings %s at version %d, expected %d", storage.ErrConflict, key, doc.version, expectedVersion)
	}
	next := settingDoc{version: expectedVersion + 1, raw: raw}
	s.settings[key] = next
	return next.version, nil
}

// ListAdditionalCommissions returns every override ordered by user ID.
func (s *Store) ListAdditionalCommissions(ctx context.Context) ([]models.AdditionalCommission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.AdditionalCommission, 0, len(s.overrides))
	for _, c := range s.overrides {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

// PutAdditionalCommission upserts the override of commission.UserID.
func (s *Store) PutAdditionalCommission(ctx context.Context, commission *models.AdditionalCommission) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.overrides[commission.UserID] = *commission
	return nil
}

// DeleteAdditionalCommission removes the override of userID.
func (s *Store) DeleteAdditionalCommission(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.overrides[userID]; !ok {
		return fmt.Errorf("%w: additional commission for %s", storage.ErrNotFound, userID)
	}
	delete(s.overrides, userID)
	return nil
}
