package memory

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/chris/referral-commission-ledger/pkg/models"
	"github.com/chris/referral-commission-ledger/pkg/storage"
)

// CreateAccount stores the account and an empty wallet and bumps the sponsor's referral count.
func (s *Store) CreateAccount(ctx context.Context, account *models.Account) (*models.Account, error) {
	ids := []string{account.ID}
	if account.SponsorID != "" {
		ids = append(ids, account.SponsorID)
		sort.Strings(ids)
	}
	release, err := s.locks.acquire(ctx, ids, s.LockTimeout)
	if err != nil {
		return nil, err
	}
	defer release()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[account.ID]; ok {
		return nil, fmt.Errorf("%w: account %s", storage.ErrAlreadyExists, account.ID)
	}
	email := strings.ToLower(account.Email)
	if _, ok := s.byEmail[email]; ok {
		return nil, fmt.Errorf("%w: email %s", storage.ErrAlreadyExists, account.Email)
	}
	code := strings.ToUpper(account.ReferralCode)
	if _, ok := s.byCode[code]; ok {
		return nil, fmt.Errorf("%w: referral code %s", storage.ErrAlreadyExists, account.ReferralCode)
	}

	if account.SponsorID != "" {
		sponsor, ok := s.accounts[account.SponsorID]
		if !ok {
			return nil, fmt.Errorf("%w: sponsor %s", storage.ErrNotFound, account.SponsorID)
		}
		sponsor.DirectReferrals++
		sponsor.Version++
		sponsor.UpdatedAt = account.CreatedAt
		s.accounts[sponsor.ID] = sponsor
	}

	created := cloneAccount(*account)
	created.Version = 1
	s.accounts[created.ID] = created
	s.byEmail[email] = created.ID
	s.byCode[code] = created.ID
	s.wallets[created.ID] = models.Wallet{AccountID: created.ID, Version: 1, UpdatedAt: created.CreatedAt}

	out := cloneAccount(created)
	return &out, nil
}

// GetAccount retrieves an account by ID.
func (s *Store) GetAccount(ctx context.Context, accountID string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.accounts[accountID]
	if !ok {
		return nil, fmt.Errorf("%w: account %s", storage.ErrNotFound, accountID)
	}
	out := cloneAccount(a)
	return &out, nil
}

// GetAccountByReferralCode resolves a referral code.
func (s *Store) GetAccountByReferralCode(ctx context.Context, code string) (*models.Account, error) {
	s.mu.RLock()
	id, ok := s.byCode[strings.ToUpper(code)]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: referral code %s", storage.ErrNotFound, code)
	}
	return s.GetAccount(ctx, id)
}

// GetAccountByEmail resolves an email address, case-insensitively.
func (s *Store) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	s.mu.RLock()
	id, ok := s.byEmail[strings.ToLower(email)]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: email %s", storage.ErrNotFound, email)
	}
	return s.GetAccount(ctx, id)
}

// ListDirectReferrals returns the accounts whose sponsor is sponsorID, oldest first.
func (s *Store) ListDirectReferrals(ctx context.Context, sponsorID string) ([]models.Account, error) {
	return s.filterAccounts(func(a models.Account) bool { return a.SponsorID == sponsorID }), nil
}

// ListAccountsByStatus returns accounts with the given stored status, oldest first.
func (s *Store) ListAccountsByStatus(ctx context.Context, status models.AccountStatus) ([]models.Account, error) {
	return s.filterAccounts(func(a models.Account) bool { return a.Status == status }), nil
}

// ListAccounts pages through all accounts ordered by creation time.
func (s *Store) ListAccounts(ctx context.Context, limit int32, cursor string) ([]models.Account, string, error) {
	all := s.filterAccounts(func(models.Account) bool { return true })

	offset := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil || n < 0 {
			return nil, "", fmt.Errorf("%w: invalid cursor", storage.ErrValidation)
		}
		offset = n
	}
	if offset >= len(all) {
		return []models.Account{}, "", nil
	}

	end := offset + int(storage.NormalizeLimit(limit))
	next := ""
	if end < len(all) {
		next = strconv.Itoa(end)
	} else {
		end = len(all)
	}
	return all[offset:end], next, nil
}

func (s *Store) filterAccounts(keep func(models.Account) bool) []models.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.Account{}
	for _, a := range s.accounts {
		if keep(a) {
			out = append(out, cloneAccount(a))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// GetWallet retrieves an account's wallet.
func (s *Store) GetWallet(ctx context.Context, accountID string) (*models.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.wallets[accountID]
	if !ok {
		return nil, fmt.Errorf("%w: wallet for account %s", storage.ErrNotFound, accountID)
	}
	return &w, nil
}

// ListWallets returns every wallet.
func (s *Store) ListWallets(ctx context.Context) ([]models.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Wallet, 0, len(s.wallets))
	for _, w := range s.wallets {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountID < out[j].AccountID })
	return out, nil
}
