package dashboard

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/chris/referral-commission-ledger/pkg/models"
	"github.com/chris/referral-commission-ledger/pkg/storage"
	"golang.org/x/sync/errgroup"
)

// Overview is the admin landing page.
type Overview struct {
	TotalUsers      int   `json:"total_users"`
	InactiveUsers   int   `json:"inactive_users"`
	ActiveUsers     int   `json:"active_users"`
	GraceUsers      int   `json:"grace_users"`
	CompressedUsers int   `json:"compressed_users"`
	TotalEarnings   int64 `json:"total_earnings"`
	TotalDeposit    int64 `json:"total_deposit"`
	TotalHolding    int64 `json:"total_holding"`
}

// Overview counts users by effective status and sums every balance.
func (s *Service) Overview(ctx context.Context) (*Overview, error) {
	sub, err := s.settings.Subscription(ctx)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now().UTC()
	o := &Overview{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		cursor := ""
		for {
			accounts, next, err := s.store.ListAccounts(gctx, storage.MaxPageSize, cursor)
			if err != nil {
				return fmt.Errorf("failed to list accounts: %w", err)
			}
			for i := range accounts {
				o.TotalUsers++
				switch accounts[i].EffectiveStatus(now, sub.GracePeriod()) {
				case models.INACTIVE:
					o.InactiveUsers++
				case models.ACTIVE:
					o.ActiveUsers++
				case models.GRACE:
					o.GraceUsers++
				case models.COMPRESSED:
					o.CompressedUsers++
				}
			}
			if next == "" {
				return nil
			}
			cursor = next
		}
	})
	g.Go(func() error {
		wallets, err := s.store.ListWallets(gctx)
		if err != nil {
			return fmt.Errorf("failed to list wallets: %w", err)
		}
		for _, w := range wallets {
			o.TotalEarnings += w.EarningsBalance
			o.TotalDeposit += w.DepositBalance
			o.TotalHolding += w.HoldingBalance
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return o, nil
}

// UserSummary is one row of the admin user list.
type UserSummary struct {
	Account models.Account       `json:"account"`
	Status  models.AccountStatus `json:"status"`
	Wallet  models.Wallet        `json:"wallet"`
}

// UserPage is one page of the admin user list.
type UserPage struct {
	Items      []UserSummary `json:"items"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

// ListUsers returns a page of accounts with their balances.
func (s *Service) ListUsers(ctx context.Context, limit int32, cursor string) (*UserPage, error) {
	sub, err := s.settings.Subscription(ctx)
	if err != nil {
		return nil, err
	}
	accounts, next, err := s.store.ListAccounts(ctx, storage.NormalizeLimit(limit), cursor)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now().UTC()
	page := &UserPage{Items: make([]UserSummary, 0, len(accounts)), NextCursor: next}
	for i := range accounts {
		w, err := s.store.GetWallet(ctx, accounts[i].ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load wallet of %s: %w", accounts[i].ID, err)
		}
		page.Items = append(page.Items, UserSummary{
			Account: accounts[i],
			Status:  accounts[i].EffectiveStatus(now, sub.GracePeriod()),
			Wallet:  *w,
		})
	}
	return page, nil
}

// UserDetail is the admin view of one account.
type UserDetail struct {
	Account            models.Account       `json:"account"`
	Status             models.AccountStatus `json:"status"`
	GraceEndsAt        *time.Time           `json:"grace_ends_at,omitempty"`
	Wallet             models.Wallet        `json:"wallet"`
	Sponsor            *models.Account      `json:"sponsor,omitempty"`
	DirectReferrals    []models.Account     `json:"direct_referrals"`
	RecentTransactions []models.Transaction `json:"recent_transactions"`
}

// UserDetail loads one account with its sponsor, referrals and latest activity.
func (s *Service) UserDetail(ctx context.Context, accountID string) (*UserDetail, error) {
	acc, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	sub, err := s.settings.Subscription(ctx)
	if err != nil {
		return nil, err
	}
	d := &UserDetail{Account: *acc}
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
	if acc.SponsorID != "" {
		g.Go(func() error {
			sponsor, err := s.store.GetAccount(gctx, acc.SponsorID)
			if err != nil {
				return fmt.Errorf("failed to load sponsor: %w", err)
			}
			d.Sponsor = sponsor
			return nil
		})
	}
	g.Go(func() error {
		directs, err := s.store.ListDirectReferrals(gctx, accountID)
		if err != nil {
			return fmt.Errorf("failed to load direct referrals: %w", err)
		}
		d.DirectReferrals = directs
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
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return d, nil
}

// GraceUser is an account currently in its grace window.
type GraceUser struct {
	Account        models.Account `json:"account"`
	GraceEndsAt    time.Time      `json:"grace_ends_at"`
	HoldingBalance int64          `json:"holding_balance"`
}

// GraceUsers lists accounts in grace, soonest deadline first. Accounts the
// sweep has not reached yet are included by their effective status.
func (s *Service) GraceUsers(ctx context.Context) ([]GraceUser, error) {
	sub, err := s.settings.Subscription(ctx)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now().UTC()

	out := []GraceUser{}
	for _, stored := range []models.AccountStatus{models.GRACE, models.ACTIVE} {
		accounts, err := s.store.ListAccountsByStatus(ctx, stored)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s accounts: %w", stored, err)
		}
		for i := range accounts {
			status, end := lifecycle(&accounts[i], now, sub)
			if status != models.GRACE {
				continue
			}
			w, err := s.store.GetWallet(ctx, accounts[i].ID)
			if err != nil {
				return nil, fmt.Errorf("failed to load wallet of %s: %w", accounts[i].ID, err)
			}
			out = append(out, GraceUser{Account: accounts[i], GraceEndsAt: *end, HoldingBalance: w.HoldingBalance})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GraceEndsAt.Before(out[j].GraceEndsAt) })
	return out, nil
}
