// Package referral resolves sponsor chains and downlines over the account store.
package referral

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/chris/referral-commission-ledger/pkg/models"
	"github.com/chris/referral-commission-ledger/pkg/storage"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// MaxDepth is the deepest level that earns commission.
const MaxDepth = models.MaxLevels

// UplineEntry is one ancestor of an account. Level 1 is the direct sponsor.
type UplineEntry struct {
	Level   int
	Account models.Account
}

// Graph walks the sponsor tree stored as account records.
type Graph struct {
	accounts storage.AccountStore
	clock    clockwork.Clock
	logger   *slog.Logger
}

// NewGraph creates a new Graph.
func NewGraph(accounts storage.AccountStore, clock clockwork.Clock, logger *slog.Logger) *Graph {
	return &Graph{accounts: accounts, clock: clock, logger: logger}
}

// ResolveUpline returns the ancestors of accountID, nearest first, stopping at
// the root or after maxDepth levels. A sponsor chain that loops back on itself
// is cut at the first repeated account.
func (g *Graph) ResolveUpline(ctx context.Context, accountID string, maxDepth int) ([]UplineEntry, error) {
	if maxDepth <= 0 || maxDepth > MaxDepth {
		maxDepth = MaxDepth
	}
	acc, err := g.accounts.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	upline := make([]UplineEntry, 0, maxDepth)
	seen := map[string]bool{acc.ID: true}
	next := acc.SponsorID
	for level := 1; level <= maxDepth && next != ""; level++ {
		if seen[next] {
			g.logger.Error("sponsor cycle detected", "account_id", accountID, "repeated", next)
			break
		}
		sponsor, err := g.accounts.GetAccount(ctx, next)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve level %d sponsor of %s: %w", level, accountID, err)
		}
		seen[sponsor.ID] = true
		upline = append(upline, UplineEntry{Level: level, Account: *sponsor})
		next = sponsor.SponsorID
	}
	return upline, nil
}

// Team returns the downline of accountID grouped by level, breadth first.
func (g *Graph) Team(ctx context.Context, accountID string, maxDepth int) (map[int][]models.Account, error) {
	if maxDepth <= 0 || maxDepth > MaxDepth {
		maxDepth = MaxDepth
	}
	if _, err := g.accounts.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}

	team := map[int][]models.Account{}
	seen := map[string]bool{accountID: true}
	frontier := []string{accountID}
	for level := 1; level <= maxDepth && len(frontier) > 0; level++ {
		var next []string
		for _, id := range frontier {
			children, err := g.accounts.ListDirectReferrals(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("failed to list referrals of %s: %w", id, err)
			}
			for _, child := range children {
				if seen[child.ID] {
					continue
				}
				seen[child.ID] = true
				team[level] = append(team[level], child)
				next = append(next, child.ID)
			}
		}
		frontier = next
	}
	return team, nil
}

// TeamSize counts the downline of accountID up to maxDepth levels.
func (g *Graph) TeamSize(ctx context.Context, accountID string, maxDepth int) (int, error) {
	team, err := g.Team(ctx, accountID, maxDepth)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, members := range team {
		n += len(members)
	}
	return n, nil
}

// RegisterRequest describes a new member.
type RegisterRequest struct {
	Email               string
	SponsorReferralCode string
	DepositAddress      string
}

// Register creates an inactive account under the sponsor owning the referral
// code. An empty code creates a root account.
func (g *Graph) Register(ctx context.Context, req RegisterRequest) (*models.Account, error) {
	addr, err := mail.ParseAddress(req.Email)
	if err != nil || addr.Address != strings.TrimSpace(req.Email) {
		return nil, fmt.Errorf("%w: invalid email %q", storage.ErrValidation, req.Email)
	}

	sponsorID := ""
	if code := strings.TrimSpace(req.SponsorReferralCode); code != "" {
		sponsor, err := g.accounts.GetAccountByReferralCode(ctx, code)
		if err != nil {
			return nil, err
		}
		sponsorID = sponsor.ID
	}

	id := uuid.New()
	now := g.clock.Now().UTC()
	account, err := g.accounts.CreateAccount(ctx, &models.Account{
		ID:             id.String(),
		Email:          strings.ToLower(addr.Address),
		ReferralCode:   ReferralCode(id),
		SponsorID:      sponsorID,
		Status:         models.INACTIVE,
		DepositAddress: req.DepositAddress,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if err != nil {
		return nil, err
	}
	g.logger.Info("account registered", "account_id", account.ID, "sponsor_id", sponsorID)
	return account, nil
}

// ReferralCode derives an 8 character upper-case code from an account id.
func ReferralCode(id uuid.UUID) string {
	return strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:8])
}
