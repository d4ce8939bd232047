package mapping

import (
	"fmt"
	"strconv"

	"github.com/chris/referral-commission-ledger/pkg/api"
	"github.com/chris/referral-commission-ledger/pkg/commission"
	"github.com/chris/referral-commission-ledger/pkg/dashboard"
	"github.com/chris/referral-commission-ledger/pkg/models"
	"github.com/chris/referral-commission-ledger/pkg/money"
	"github.com/chris/referral-commission-ledger/pkg/storage"
	"github.com/chris/referral-commission-ledger/pkg/subscription"
	"github.com/chris/referral-commission-ledger/pkg/wallet"
	openapi_types "github.com/oapi-codegen/runtime/types"
)

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func value(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// ToDomainAmount parses a decimal wire amount into minor units.
func ToDomainAmount(s string) (int64, error) {
	amount, err := money.Parse(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", storage.ErrValidation, err)
	}
	return amount, nil
}

// ToApiAccount converts a domain Account model to an API Account model.
func ToApiAccount(acc *models.Account) api.Account {
	return api.Account{
		Id:                  acc.ID,
		Email:               openapi_types.Email(acc.Email),
		ReferralCode:        acc.ReferralCode,
		SponsorId:           optional(acc.SponsorID),
		Status:              string(acc.Status),
		SubscriptionExpires: acc.SubscriptionExpires,
		GraceEndsAt:         acc.GraceEndsAt,
		DepositAddress:      optional(acc.DepositAddress),
		DirectReferrals:     acc.DirectReferrals,
		CreatedAt:           acc.CreatedAt,
	}
}

// ToApiAccounts converts a slice of domain accounts.
func ToApiAccounts(accounts []models.Account) []api.Account {
	out := make([]api.Account, len(accounts))
	for i := range accounts {
		out[i] = ToApiAccount(&accounts[i])
	}
	return out
}

// ToApiWallet converts a domain Wallet model to an API Wallet model.
func ToApiWallet(w *models.Wallet) api.Wallet {
	return api.Wallet{
		AccountId: w.AccountID,
		Earnings:  money.Format(w.EarningsBalance),
		Deposit:   money.Format(w.DepositBalance),
		Holding:   money.Format(w.HoldingBalance),
		Version:   w.Version,
		UpdatedAt: w.UpdatedAt,
	}
}

// ToApiTransaction converts a domain Transaction model to an API Transaction model.
func ToApiTransaction(tx *models.Transaction) api.Transaction {
	return api.Transaction{
		Id:                       tx.ID,
		AccountId:                tx.AccountID,
		Type:                     string(tx.Type),
		Wallet:                   string(tx.Wallet),
		Amount:                   money.Format(tx.Amount),
		Fee:                      money.Format(tx.Fee),
		Delta:                    money.Format(tx.Delta),
		Level:                    tx.Level,
		CounterpartAccountId:     optional(tx.CounterpartAccountID),
		CounterpartTransactionId: optional(tx.CounterpartTransactionID),
		Status:                   string(tx.Status),
		Description:              optional(tx.Description),
		Address:                  optional(tx.Address),
		TxHash:                   optional(tx.TxHash),
		CreatedAt:                tx.CreatedAt,
		UpdatedAt:                tx.UpdatedAt,
	}
}

// ToApiTransactions converts a slice of domain transactions.
func ToApiTransactions(txs []models.Transaction) []api.Transaction {
	out := make([]api.Transaction, len(txs))
	for i := range txs {
		out[i] = ToApiTransaction(&txs[i])
	}
	return out
}

// ToApiTransactionPage converts a feed page.
func ToApiTransactionPage(page *storage.TransactionPage) api.TransactionPage {
	return api.TransactionPage{Items: ToApiTransactions(page.Items), NextCursor: optional(page.NextCursor)}
}

// ToDomainTransactionFilter converts feed query parameters.
func ToDomainTransactionFilter(accountID string, params api.ListTransactionsParams) storage.TransactionFilter {
	filter := storage.TransactionFilter{AccountID: accountID, Type: models.TransactionType(value(params.Type)), Cursor: value(params.Cursor)}
	if params.Limit != nil {
		filter.Limit = *params.Limit
	}
	return filter
}

// ToApiDistribution converts the result of a commission run.
func ToApiDistribution(r *commission.Result) *api.Distribution {
	if r == nil {
		return nil
	}
	out := &api.Distribution{
		EventId:   r.EventID,
		Replayed:  r.Replayed,
		Credits:   make([]api.Credit, 0, len(r.Credits)),
		Forfeited: money.Format(r.Forfeited),
	}
	if !r.Replayed {
		payment := ToApiTransaction(&r.Payment)
		out.Payment = &payment
	}
	for _, c := range r.Credits {
		var level *int
		if c.Level > 0 {
			level = &c.Level
		}
		out.Credits = append(out.Credits, api.Credit{
			AccountId: c.AccountID,
			Type:      string(c.Type),
			Level:     level,
			Wallet:    string(c.Wallet),
			Amount:    money.Format(c.Amount),
		})
	}
	return out
}

// ToApiOperationResult converts the result of a wallet operation.
func ToApiOperationResult(r *wallet.Result) api.OperationResult {
	return api.OperationResult{Replayed: r.Replayed, Transactions: ToApiTransactions(r.Transactions)}
}

// ToApiWalletView converts a wallet with its history.
func ToApiWalletView(v *wallet.WalletView) api.WalletView {
	return api.WalletView{
		Wallet:      ToApiWallet(&v.Wallet),
		Withdrawals: ToApiTransactions(v.Withdrawals),
		Deposits:    ToApiTransactions(v.Deposits),
	}
}

// ToDomainInternalTransfer converts an internal transfer request.
func ToDomainInternalTransfer(accountID string, req *api.InternalTransferRequest) (wallet.InternalTransferRequest, error) {
	amount, err := ToDomainAmount(req.Amount)
	if err != nil {
		return wallet.InternalTransferRequest{}, err
	}
	return wallet.InternalTransferRequest{
		AccountID:      accountID,
		Direction:      wallet.Direction(req.Direction),
		Amount:         amount,
		IdempotencyKey: value(req.IdempotencyKey),
	}, nil
}

// ToDomainUserTransfer converts a user transfer request.
func ToDomainUserTransfer(senderID string, req *api.UserTransferRequest) (wallet.UserTransferRequest, error) {
	amount, err := ToDomainAmount(req.Amount)
	if err != nil {
		return wallet.UserTransferRequest{}, err
	}
	return wallet.UserTransferRequest{
		SenderID:       senderID,
		Recipient:      req.Recipient,
		Amount:         amount,
		IdempotencyKey: value(req.IdempotencyKey),
	}, nil
}

// ToDomainWithdrawal converts a withdrawal request.
func ToDomainWithdrawal(accountID string, req *api.WithdrawalRequest) (wallet.WithdrawalRequest, error) {
	amount, err := ToDomainAmount(req.Amount)
	if err != nil {
		return wallet.WithdrawalRequest{}, err
	}
	return wallet.WithdrawalRequest{
		AccountID:      accountID,
		Amount:         amount,
		Address:        req.Address,
		IdempotencyKey: value(req.IdempotencyKey),
	}, nil
}

// ToDomainSettlement converts a settlement callback.
func ToDomainSettlement(transactionID string, req *api.SettlementRequest) wallet.SettlementResult {
	return wallet.SettlementResult{
		TransactionID: transactionID,
		Status:        models.TransactionStatus(req.Status),
		TxHash:        value(req.TxHash),
	}
}

// ToDomainDeposit converts a deposit notification.
func ToDomainDeposit(req *api.DepositRequest) (subscription.DepositEvent, error) {
	amount, err := ToDomainAmount(req.Amount)
	if err != nil {
		return subscription.DepositEvent{}, err
	}
	return subscription.DepositEvent{
		EventID:   value(req.EventId),
		AccountID: req.AccountId,
		Amount:    amount,
		TxHash:    req.TxHash,
	}, nil
}

// ToApiDepositResult converts a credited deposit.
func ToApiDepositResult(r *subscription.DepositResult) api.DepositResult {
	out := api.DepositResult{
		Replayed:   r.Replayed,
		Activation: ToApiDistribution(r.Activation),
		Renewal:    ToApiDistribution(r.Renewal),
	}
	if r.Transaction != nil {
		tx := ToApiTransaction(r.Transaction)
		out.Transaction = &tx
	}
	return out
}

// ToApiSweepResult converts a sweep summary.
func ToApiSweepResult(r *subscription.SweepResult) api.SweepResult {
	return api.SweepResult{
		Renewed:        r.Renewed,
		EnteredGrace:   r.EnteredGrace,
		Compressed:     r.Compressed,
		ForfeitedTotal: money.Format(r.ForfeitedTotal),
	}
}

// ToApiDashboard converts the member home page.
func ToApiDashboard(d *dashboard.Dashboard) api.Dashboard {
	levels := make(map[string]string, len(d.LevelIncome))
	for level, amount := range d.LevelIncome {
		levels[strconv.Itoa(level)] = money.Format(amount)
	}
	return api.Dashboard{
		Account:            ToApiAccount(&d.Account),
		Status:             string(d.Status),
		GraceEndsAt:        d.GraceEndsAt,
		Wallet:             ToApiWallet(&d.Wallet),
		DirectReferrals:    ToApiAccounts(d.DirectReferrals),
		TeamSize:           d.TeamSize,
		RecentTransactions: ToApiTransactions(d.RecentTransactions),
		LevelIncome:        levels,
		ActivationAmount:   money.Format(d.Subscription.ActivationAmount),
		RenewalAmount:      money.Format(d.Subscription.RenewalAmount),
		GracePeriodHours:   d.Subscription.GracePeriodHours,
	}
}

// ToApiIncome converts an income summary.
func ToApiIncome(s *dashboard.IncomeSummary) api.Income {
	out := api.Income{
		ByLevel: make(map[string]string, len(s.ByLevel)),
		ByType:  make(map[string]string, len(s.ByType)),
		Total:   money.Format(s.Total),
		Held:    money.Format(s.Held),
	}
	for level, amount := range s.ByLevel {
		out.ByLevel[strconv.Itoa(level)] = money.Format(amount)
	}
	for typ, amount := range s.ByType {
		out.ByType[string(typ)] = money.Format(amount)
	}
	return out
}

// ToApiTeam converts a downline view.
func ToApiTeam(t *dashboard.TeamView) api.Team {
	out := api.Team{Levels: make([]api.TeamLevel, len(t.Levels)), Total: t.Total}
	for i, l := range t.Levels {
		out.Levels[i] = api.TeamLevel{Level: l.Level, Count: l.Count, Members: ToApiAccounts(l.Members)}
	}
	return out
}

// ToApiOverview converts the admin overview.
func ToApiOverview(o *dashboard.Overview) api.Overview {
	return api.Overview{
		TotalUsers:      o.TotalUsers,
		InactiveUsers:   o.InactiveUsers,
		ActiveUsers:     o.ActiveUsers,
		GraceUsers:      o.GraceUsers,
		CompressedUsers: o.CompressedUsers,
		TotalEarnings:   money.Format(o.TotalEarnings),
		TotalDeposit:    money.Format(o.TotalDeposit),
		TotalHolding:    money.Format(o.TotalHolding),
	}
}

// ToApiUserPage converts a page of the admin user list.
func ToApiUserPage(p *dashboard.UserPage) api.UserPage {
	out := api.UserPage{Items: make([]api.UserSummary, len(p.Items)), NextCursor: optional(p.NextCursor)}
	for i := range p.Items {
		out.Items[i] = api.UserSummary{
			Account: ToApiAccount(&p.Items[i].Account),
			Status:  string(p.Items[i].Status),
			Wallet:  ToApiWallet(&p.Items[i].Wallet),
		}
	}
	return out
}

// ToApiUserDetail converts the admin view of one account.
func ToApiUserDetail(d *dashboard.UserDetail) api.UserDetail {
	out := api.UserDetail{
		Account:            ToApiAccount(&d.Account),
		Status:             string(d.Status),
		GraceEndsAt:        d.GraceEndsAt,
		Wallet:             ToApiWallet(&d.Wallet),
		DirectReferrals:    ToApiAccounts(d.DirectReferrals),
		RecentTransactions: ToApiTransactions(d.RecentTransactions),
	}
	if d.Sponsor != nil {
		sponsor := ToApiAccount(d.Sponsor)
		out.Sponsor = &sponsor
	}
	return out
}

// ToApiGraceUsers converts the accounts in grace.
func ToApiGraceUsers(users []dashboard.GraceUser) []api.GraceUser {
	out := make([]api.GraceUser, len(users))
	for i := range users {
		out[i] = api.GraceUser{
			Account:     ToApiAccount(&users[i].Account),
			GraceEndsAt: users[i].GraceEndsAt,
			Holding:     money.Format(users[i].HoldingBalance),
		}
	}
	return out
}
