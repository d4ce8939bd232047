// Package dashboard assembles the read models behind the member and admin pages.
package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/chris/referral-commission-ledger/pkg/models"
	"github.com/chris/referral-commission-ledger/pkg/referral"
	"github.com/chris/referral-commission-ledger/pkg/storage"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
)

// recentTransactions is the length of the activity list on the dashboard.
const recentTransactions = 10

// Store is the part of the ledger the read models query.
type Store interface {
	storage.AccountReader
	storage.WalletReader
	storage.TransactionReader
}

// TeamSource walks the downline.
type TeamSource interface {
	Team(ctx context.Context, accountID string, maxDepth int) (map[int][]models.Account, error)
}

// SettingsSource supplies the subscription pricing.
type SettingsSource interface {
	Subscription(ctx context.Context) (models.SubscriptionSettings, error)
}

// Service builds read models. It never writes.
type Service struct {
	store    Store
	team     TeamSource
	settings SettingsSource
	clock    clockwork.Clock
	logger   *slog.Logger
}

// NewService creates a new dashboard Service.
func NewService(store Store, team TeamSource, settings SettingsSource, clock clockwork.Clock, logger *slog.Logger) *Service {
	return &Service{store: store, team: team, settings: settings, clock: clock, logger: logger}
}

// Dashboard is the member home page.
type Dashboard struct {
	Account            models.Account              `json:"account"`
	Status             models.AccountStatus        `json:"status"`
	GraceEndsAt        *time.Time                  `json:"grace_ends_at,omitempty"`
	Wallet             models.Wallet               `json:"wallet"`
	DirectReferrals    []models.Account            `json:"direct_referrals"`
	TeamSize           int                         `json:"team_size"`
	RecentTransactions []models.Transaction        `json:"recent_transactions"`
	LevelIncome        map[int]int64               `json:"level_income"`
	Subscription       models.SubscriptionSettings `json:"subscription"`
}

// Dashboard loads everything the member home page shows in one call.
func (s *Service) Dashboard(ctx context.Context, accountID string) (*Dashboard, error) {
	acc, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	sub, err := s.settings.Subscription(ctx)
	if err != nil {
		return nil, err
	}

	d := &Dashboard{Account: *acc, Subscription: sub}
	d.Status, d.GraceEndsAt = lifecycle(acc, s.clock.Now().UTC(), sub)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		w, err := s.store.GetWallet(gctx, accountID)
		if err != nil {
			return fmt.Errorf("failed to load wallet: %w", err)
		}
		d.Wallet = *w
		return nil
	})
	g.Go(func() error {
		directs, err := s.store.ListDirectReferrals(gctx, accountID)
		if err != nil {
			return fmt.Errorf("failed to load direct referrals: %w", err)
		}
		d.DirectReferrals = directs
		return nil
	})
	g.Go(func() error {
		team, err := s.team.Team(gctx, accountID, referral.MaxDepth)
		if err != nil {
			return fmt.Errorf("failed to load team: %w", err)
		}
		for _, members := range team {
			d.TeamSize += len(members)
		}
		return nil
	})
	g.Go(func() error {
		page, err := s.store.ListTransactions(gctx, storage.TransactionFilter{AccountID: accountID, Limit: recentTransactions})
		if err != nil {
			return fmt.Errorf("failed to load transactions: %w", err)
		}
		d.RecentTransactions = page.Items
		return nil
	})
	g.Go(func() error {
		income, err := s.Income(gctx, accountID)
		if err != nil {
			return err
		}
		d.LevelIncome = income.ByLevel
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return d, nil
}

// lifecycle returns the effective status and, while in grace, when grace ends.
func lifecycle(acc *models.Account, now time.Time, sub models.SubscriptionSettings) (models.AccountStatus, *time.Time) {
	status := acc.EffectiveStatus(now, sub.GracePeriod())
	if status != models.GRACE {
		return status, nil
	}
	if acc.GraceEndsAt != nil {
		end := *acc.GraceEndsAt
		return status, &end
	}
	end := acc.SubscriptionExpires.Add(sub.GracePeriod())
	return status, &end
}

// IncomeSummary totals the commission an account has been credited.
type IncomeSummary struct {
	ByLevel map[int]int64                    `json:"by_level"`
	ByType  map[models.TransactionType]int64 `json:"by_type"`
	Total   int64                            `json:"total"`
	// Held is the part of Total credited while in grace and not yet released.
	Held int64 `json:"held"`
}

// Income totals level and additional income by level and by type.
func (s *Service) Income(ctx context.Context, accountID string) (*IncomeSummary, error) {
	summary := &IncomeSummary{ByLevel: map[int]int64{}, ByType: map[models.TransactionType]int64{}}
	for _, typ := range []models.TransactionType{models.LEVEL_INCOME, models.ADDITIONAL_INCOME} {
		rows, err := s.all(ctx, storage.TransactionFilter{AccountID: accountID, Type: typ})
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", typ, err)
		}
		for _, tx := range rows {
			summary.ByType[typ] += tx.Amount
			summary.Total += tx.Amount
			if tx.Level != nil {
				summary.ByLevel[*tx.Level] += tx.Amount
			}
		}
	}
	w, err := s.store.GetWallet(ctx, accountID)
	if err != nil {
		return nil, err
	}
	summary.Held = w.HoldingBalance
	return summary, nil
}

// all drains every page of a feed.
func (s *Service) all(ctx context.Context, filter storage.TransactionFilter) ([]models.Transaction, error) {
	filter.Limit = storage.MaxPageSize
	var out []models.Transaction
	for {
		page, err := s.store.ListTransactions(ctx, filter)
		if err != nil {
			return nil, err
		}
		out = append(out, page.Items...)
		if page.NextCursor == "" {
			return out, nil
		}
		filter.Cursor = page.NextCursor
	}
}

// TeamLevel is one depth of the downline.
type TeamLevel struct {
	Level   int              `json:"level"`
	Count   int              `json:"count"`
	Members []models.Account `json:"members"`
}

// TeamView is the downline grouped by depth, level 1 first.
type TeamView struct {
	Levels []TeamLevel `json:"levels"`
	Total  int         `json:"total"`
}

// Team returns the downline of accountID down to the commission depth.
func (s *Service) Team(ctx context.Context, accountID string) (*TeamView, error) {
	team, err := s.team.Team(ctx, accountID, referral.MaxDepth)
	if err != nil {
		return nil, err
	}
	view := &TeamView{Levels: []TeamLevel{}}
	for level, members := range team {
		view.Levels = append(view.Levels, TeamLevel{Level: level, Count: len(members), Members: members})
		view.Total += len(members)
	}
	sort.Slice(view.Levels, func(i, j int) bool { return view.Levels[i].Level < view.Levels[j].Level })
	return view, nil
}
