package storage

import (
	"context"

	"github.com/chris/referral-commission-ledger/pkg/models"
)

// SettingsStore defines the interface for versioned configuration documents and
// the per-user commission overrides.
type SettingsStore interface {
	// GetSettings decodes the document stored under key into dest and returns its version.
	// It returns ErrNotFound when the document was never written.
	GetSettings(ctx context.Context, key string, dest any) (int64, error)

	// PutSettings replaces the document under key. expectedVersion must equal the
	// stored version (0 when absent) or ErrConflict is returned.
	PutSettings(ctx context.Context, key string, value any, expectedVersion int64) (int64, error)

	// ListAdditionalCommissions returns every override.
	ListAdditionalCommissions(ctx context.Context) ([]models.AdditionalCommission, error)

	// PutAdditionalCommission inserts or replaces the override of commission.UserID.
	PutAdditionalCommission(ctx context.Context, commission *models.AdditionalCommission) error

	// DeleteAdditionalCommission removes the override of userID.
	DeleteAdditionalCommission(ctx context.Context, userID string) error
}
