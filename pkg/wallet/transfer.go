package wallet

import (
	"context"
	"fmt"

	"github.com/chris/referral-commission-ledger/pkg/models"
	"github.com/chris/referral-commission-ledger/pkg/money"
	"github.com/chris/referral-commission-ledger/pkg/storage"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Direction selects the source and destination of an internal transfer.
type Direction string

const (
	EarningsToDeposit Direction = "earnings_to_deposit"
	DepositToEarnings Direction = "deposit_to_earnings"
)

// wallets returns the source and destination of d.
func (d Direction) wallets() (from, to models.WalletKind, ok bool) {
	switch d {
	case EarningsToDeposit:
		return models.EARNINGS, models.DEPOSIT, true
	case DepositToEarnings:
		return models.DEPOSIT, models.EARNINGS, true
	}
	return "", "", false
}

func (d Direction) fee(settings models.WalletSettings) decimal.Decimal {
	if d == EarningsToDeposit {
		return settings.EarningsToDepositFee
	}
	return settings.DepositToEarningsFee
}

// InternalTransferRequest moves money between two wallets of one account.
type InternalTransferRequest struct {
	AccountID      string    `json:"account_id"`
	Direction      Direction `json:"direction"`
	Amount         int64     `json:"amount"`
	IdempotencyKey string    `json:"idempotency_key,omitempty"`
}

// UserTransferRequest moves money from the sender's deposit wallet to another
// member's deposit wallet. Recipient is an email address or a referral code.
type UserTransferRequest struct {
	SenderID       string `json:"sender_id"`
	Recipient      string `json:"recipient"`
	Amount         int64  `json:"amount"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// checkAmount enforces the shared amount rules and returns the fee and net amount.
func checkAmount(amount, minimum int64, pct decimal.Decimal) (fee, net int64, err error) {
	if !money.InRange(amount) {
		return 0, 0, fmt.Errorf("%w: amount must be positive and at most %s", storage.ErrValidation, money.Format(money.MaxAmount))
	}
	if amount < minimum {
		return 0, 0, fmt.Errorf("%w: minimum transfer is %s", storage.ErrBelowMinimum, money.Format(minimum))
	}
	fee = money.Percent(amount, pct)
	net = amount - fee
	if net <= 0 {
		return 0, 0, fmt.Errorf("%w: amount does not cover the %s fee", storage.ErrValidation, money.Format(fee))
	}
	return fee, net, nil
}

// InternalTransfer debits the full amount from the source wallet and credits
// the amount net of fee to the destination. The fee leaves circulation.
func (s *Service) InternalTransfer(ctx context.Context, req InternalTransferRequest) (*Result, error) {
	from, to, ok := req.Direction.wallets()
	if !ok {
		return nil, fmt.Errorf("%w: unknown direction %q", storage.ErrValidation, req.Direction)
	}
	if req.AccountID == "" {
		return nil, fmt.Errorf("%w: account is required", storage.ErrValidation)
	}
	settings, err := s.settings.Wallet(ctx)
	if err != nil {
		return nil, err
	}
	fee, net, err := checkAmount(req.Amount, settings.MinTransferAmount, req.Direction.fee(settings))
	if err != nil {
		return nil, err
	}

	eventID := scopedEventID("transfer", req.AccountID, req.IdempotencyKey)
	result, err := s.commit(ctx, "internal_transfer", eventID, func() (*storage.Commit, []models.Transaction, error) {
		w, err := s.store.GetWallet(ctx, req.AccountID)
		if err != nil {
			return nil, nil, err
		}
		if w.Balance(from) < req.Amount {
			return nil, nil, fmt.Errorf("%w: %s wallet holds %s", storage.ErrInsufficientFunds, from, money.Format(w.Balance(from)))
		}

		b := storage.NewCommitBuilder(eventID, string(models.INTERNAL_TRANSFER), req.AccountID, s.clock.Now().UTC())
		b.Track(w)
		debitID, creditID := uuid.New().String(), uuid.New().String()
		description := fmt.Sprintf("Transfer %s to %s", from, to)
		debit, err := b.Post(models.Transaction{
			ID: debitID, AccountID: req.AccountID, Type: models.INTERNAL_TRANSFER, Wallet: from,
			Amount: req.Amount, Fee: fee, Delta: -req.Amount,
			CounterpartAccountID: req.AccountID, CounterpartTransactionID: creditID,
			Description: description,
		})
		if err != nil {
			return nil, nil, err
		}
		credit, err := b.Post(models.Transaction{
			ID: creditID, AccountID: req.AccountID, Type: models.INTERNAL_TRANSFER, Wallet: to,
			Amount: net, Delta: net,
			CounterpartAccountID: req.AccountID, CounterpartTransactionID: debitID,
			Description: description,
		})
		if err != nil {
			return nil, nil, err
		}
		c, err := b.Build()
		return c, []models.Transaction{debit, credit}, err
	})
	if err != nil {
		return nil, err
	}
	if !result.Replayed {
		s.logger.Info("internal transfer completed", "account_id", req.AccountID, "direction", req.Direction, "amount", req.Amount, "fee", fee)
	}
	return result, nil
}

// UserTransfer debits the sender's deposit wallet by the amount and credits
// the recipient's deposit wallet with the amount net of fee. The two rows
// reference each other.
func (s *Service) UserTransfer(ctx context.Context, req UserTransferRequest) (*Result, error) {
	if req.SenderID == "" {
		return nil, fmt.Errorf("%w: sender is required", storage.ErrValidation)
	}
	settings, err := s.settings.Wallet(ctx)
	if err != nil {
		return nil, err
	}
	fee, net, err := checkAmount(req.Amount, settings.MinTransferAmount, settings.UserTransferFee)
	if err != nil {
		return nil, err
	}
	recipient, err := s.resolveRecipient(ctx, req.Recipient)
	if err != nil {
		return nil, err
	}
	if recipient.ID == req.SenderID {
		return nil, fmt.Errorf("%w: cannot transfer to yourself", storage.ErrValidation)
	}
	sender, err := s.store.GetAccount(ctx, req.SenderID)
	if err != nil {
		return nil, err
	}

	eventID := scopedEventID("user_transfer", req.SenderID, req.IdempotencyKey)
	result, err := s.commit(ctx, "user_transfer", eventID, func() (*storage.Commit, []models.Transaction, error) {
		sw, err := s.store.GetWallet(ctx, sender.ID)
		if err != nil {
			return nil, nil, err
		}
		if sw.DepositBalance < req.Amount {
			return nil, nil, fmt.Errorf("%w: deposit wallet holds %s", storage.ErrInsufficientFunds, money.Format(sw.DepositBalance))
		}
		rw, err := s.store.GetWallet(ctx, recipient.ID)
		if err != nil {
			return nil, nil, err
		}

		b := storage.NewCommitBuilder(eventID, string(models.USER_TRANSFER_SENT), sender.ID, s.clock.Now().UTC())
		b.Track(sw)
		b.Track(rw)
		sentID, receivedID := uuid.New().String(), uuid.New().String()
		sent, err := b.Post(models.Transaction{
			ID: sentID, AccountID: sender.ID, Type: models.USER_TRANSFER_SENT, Wallet: models.DEPOSIT,
			Amount: req.Amount, Fee: fee, Delta: -req.Amount,
			CounterpartAccountID: recipient.ID, CounterpartTransactionID: receivedID,
			Description: "Transfer to " + recipient.Email,
		})
		if err != nil {
			return nil, nil, err
		}
		received, err := b.Post(models.Transaction{
			ID: receivedID, AccountID: recipient.ID, Type: models.USER_TRANSFER_RECVD, Wallet: models.DEPOSIT,
			Amount: net, Delta: net,
			CounterpartAccountID: sender.ID, CounterpartTransactionID: sentID,
			Description: "Transfer from " + sender.Email,
		})
		if err != nil {
			return nil, nil, err
		}
		c, err := b.Build()
		return c, []models.Transaction{sent, received}, err
	})
	if err != nil {
		return nil, err
	}
	if !result.Replayed {
		s.logger.Info("user transfer completed", "sender_id", sender.ID, "recipient_id", recipient.ID, "amount", req.Amount, "fee", fee)
	}
	return result, nil
}
