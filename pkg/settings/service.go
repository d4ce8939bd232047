package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/chris/referral-commission-ledger/pkg/models"
	"github.com/chris/referral-commission-ledger/pkg/money"
	"github.com/chris/referral-commission-ledger/pkg/storage"
	"github.com/jonboulle/clockwork"
)

// Service reads and replaces the platform configuration. Every document has
// a default that applies until it is first written.
type Service struct {
	store    storage.SettingsStore
	accounts storage.AccountReader
	clock    clockwork.Clock
	logger   *slog.Logger
}

// NewService creates a new settings Service.
func NewService(store storage.SettingsStore, accounts storage.AccountReader, clock clockwork.Clock, logger *slog.Logger) *Service {
	return &Service{store: store, accounts: accounts, clock: clock, logger: logger}
}

// load decodes the document under key into dest, leaving dest untouched when
// the document was never written.
func (s *Service) load(ctx context.Context, key string, dest any) (int64, error) {
	version, err := s.store.GetSettings(ctx, key, dest)
	if errors.Is(err, storage.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load %s settings: %w", key, err)
	}
	return version, nil
}

// Levels returns the current commission table.
func (s *Service) Levels(ctx context.Context) (models.LevelRules, error) {
	rules := DefaultLevels()
	version, err := s.load(ctx, KeyLevels, &rules)
	if err != nil {
		return models.LevelRules{}, err
	}
	rules.Version = version
	return rules, nil
}

// UpdateLevels replaces the whole commission table.
func (s *Service) UpdateLevels(ctx context.Context, levels []models.LevelRule) (models.LevelRules, error) {
	sorted, err := ValidateLevels(levels)
	if err != nil {
		return models.LevelRules{}, err
	}
	overrides, err := s.store.ListAdditionalCommissions(ctx)
	if err != nil {
		return models.LevelRules{}, fmt.Errorf("failed to list additional commissions: %w", err)
	}
	if err := ValidateBudget(sorted, overrides); err != nil {
		return models.LevelRules{}, err
	}

	current, err := s.Levels(ctx)
	if err != nil {
		return models.LevelRules{}, err
	}
	next := models.LevelRules{Levels: sorted, UpdatedAt: s.clock.Now().UTC()}
	version, err := s.store.PutSettings(ctx, KeyLevels, next, current.Version)
	if err != nil {
		return models.LevelRules{}, err
	}
	next.Version = version
	s.logger.Info("commission levels updated", "version", version)
	return next, nil
}

// AdditionalCommissions returns every override.
func (s *Service) AdditionalCommissions(ctx context.Context) ([]models.AdditionalCommission, error) {
	overrides, err := s.store.ListAdditionalCommissions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list additional commissions: %w", err)
	}
	return overrides, nil
}

// UpsertAdditionalCommission creates or replaces the override of an existing account.
func (s *Service) UpsertAdditionalCommission(ctx context.Context, c models.AdditionalCommission) (models.AdditionalCommission, error) {
	if c.UserID == "" {
		return models.AdditionalCommission{}, invalid("user_id is required")
	}
	if !money.ValidPercentage(c.ActivationPercentage) || !money.ValidPercentage(c.RenewalPercentage) {
		return models.AdditionalCommission{}, invalid("percentage must be between 0 and 100")
	}
	if _, err := s.accounts.GetAccount(ctx, c.UserID); err != nil {
		return models.AdditionalCommission{}, err
	}

	levels, err := s.Levels(ctx)
	if err != nil {
		return models.AdditionalCommission{}, err
	}
	overrides, err := s.AdditionalCommissions(ctx)
	if err != nil {
		return models.AdditionalCommission{}, err
	}
	others := make([]models.AdditionalCommission, 0, len(overrides)+1)
	for _, o := range overrides {
		if o.UserID != c.UserID {
			others = append(others, o)
		}
	}
	if err := ValidateBudget(levels.Levels, append(others, c)); err != nil {
		return models.AdditionalCommission{}, err
	}

	c.UpdatedAt = s.clock.Now().UTC()
	if err := s.store.PutAdditionalCommission(ctx, &c); err != nil {
		return models.AdditionalCommission{}, err
	}
	s.logger.Info("additional commission saved", "user_id", c.UserID)
	return c, nil
}

// DeleteAdditionalCommission removes an override. It returns ErrNotFound when absent.
func (s *Service) DeleteAdditionalCommission(ctx context.Context, userID string) error {
	if err := s.store.DeleteAdditionalCommission(ctx, userID); err != nil {
		return err
	}
	s.logger.Info("additional commission removed", "user_id", userID)
	return nil
}

// Wallet returns the transfer fees and minimums.
func (s *Service) Wallet(ctx context.Context) (models.WalletSettings, error) {
	w := DefaultWallet()
	if _, err := s.load(ctx, KeyWallet, &w); err != nil {
		return models.WalletSettings{}, err
	}
	return w, nil
}

// UpdateWallet replaces the wallet settings.
func (s *Service) UpdateWallet(ctx context.Context, w models.WalletSettings) (models.WalletSettings, error) {
	if err := ValidateWallet(w); err != nil {
		return models.WalletSettings{}, err
	}
	if err := s.replace(ctx, KeyWallet, w); err != nil {
		return models.WalletSettings{}, err
	}
	return w, nil
}

// Subscription returns the activation and renewal pricing.
func (s *Service) Subscription(ctx context.Context) (models.SubscriptionSettings, error) {
	sub := DefaultSubscription()
	if _, err := s.load(ctx, KeySubscription, &sub); err != nil {
		return models.SubscriptionSettings{}, err
	}
	return sub, nil
}

// UpdateSubscription replaces the subscription settings.
func (s *Service) UpdateSubscription(ctx context.Context, sub models.SubscriptionSettings) (models.SubscriptionSettings, error) {
	if err := ValidateSubscription(sub); err != nil {
		return models.SubscriptionSettings{}, err
	}
	if err := s.replace(ctx, KeySubscription, sub); err != nil {
		return models.SubscriptionSettings{}, err
	}
	return sub, nil
}

// SMTP returns the mail settings with the password redacted.
func (s *Service) SMTP(ctx context.Context) (models.SMTPSettings, error) {
	var smtp models.SMTPSettings
	if _, err := s.load(ctx, KeySMTP, &smtp); err != nil {
		return models.SMTPSettings{}, err
	}
	smtp.Password = redact(smtp.Password)
	return smtp, nil
}

// UpdateSMTP replaces the mail settings. An empty or redacted password keeps
// the stored one.
func (s *Service) UpdateSMTP(ctx context.Context, smtp models.SMTPSettings) (models.SMTPSettings, error) {
	if err := ValidateSMTP(smtp); err != nil {
		return models.SMTPSettings{}, err
	}
	var current models.SMTPSettings
	version, err := s.load(ctx, KeySMTP, &current)
	if err != nil {
		return models.SMTPSettings{}, err
	}
	smtp.Password = keepSecret(smtp.Password, current.Password)
	if _, err := s.store.PutSettings(ctx, KeySMTP, smtp, version); err != nil {
		return models.SMTPSettings{}, err
	}
	s.logger.Info("settings updated", "key", KeySMTP)
	smtp.Password = redact(smtp.Password)
	return smtp, nil
}

// PaymentProvider returns the provider settings with secrets redacted.
func (s *Service) PaymentProvider(ctx context.Context) (models.PaymentProviderSettings, error) {
	var p models.PaymentProviderSettings
	if _, err := s.load(ctx, KeyPaymentProvider, &p); err != nil {
		return models.PaymentProviderSettings{}, err
	}
	return redactProvider(p), nil
}

// UpdatePaymentProvider replaces the provider settings. Empty or redacted
// secrets keep the stored ones.
func (s *Service) UpdatePaymentProvider(ctx context.Context, p models.PaymentProviderSettings) (models.PaymentProviderSettings, error) {
	if err := ValidatePaymentProvider(p); err != nil {
		return models.PaymentProviderSettings{}, err
	}
	var current models.PaymentProviderSettings
	version, err := s.load(ctx, KeyPaymentProvider, &current)
	if err != nil {
		return models.PaymentProviderSettings{}, err
	}
	p.APIKey = keepSecret(p.APIKey, current.APIKey)
	p.APISecret = keepSecret(p.APISecret, current.APISecret)
	p.WebhookSecret = keepSecret(p.WebhookSecret, current.WebhookSecret)
	if _, err := s.store.PutSettings(ctx, KeyPaymentProvider, p, version); err != nil {
		return models.PaymentProviderSettings{}, err
	}
	s.logger.Info("settings updated", "key", KeyPaymentProvider)
	return redactProvider(p), nil
}

// replace writes value over the document under key at its current version.
func (s *Service) replace(ctx context.Context, key string, value any) error {
	var stored json.RawMessage
	version, err := s.load(ctx, key, &stored)
	if err != nil {
		return err
	}
	if _, err := s.store.PutSettings(ctx, key, value, version); err != nil {
		return err
	}
	s.logger.Info("settings updated", "key", key)
	return nil
}

func redact(secret string) string {
	if secret == "" {
		return ""
	}
	return Redacted
}

func keepSecret(incoming, stored string) string {
	if incoming == "" || incoming == Redacted {
		return stored
	}
	return incoming
}

func redactProvider(p models.PaymentProviderSettings) models.PaymentProviderSettings {
	p.APIKey = redact(p.APIKey)
	p.APISecret = redact(p.APISecret)
	p.WebhookSecret = redact(p.WebhookSecret)
	return p
}
