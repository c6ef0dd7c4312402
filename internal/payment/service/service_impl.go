package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/aruspay/aruspay/internal/clock"
	ledgerdomain "github.com/aruspay/aruspay/internal/ledger/domain"
	merchantdomain "github.com/aruspay/aruspay/internal/merchant/domain"
	"github.com/aruspay/aruspay/internal/payment/domain"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    domain.Repository
	Adapter domain.Adapter
	Ledger  ledgerdomain.Service
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	clock   clock.Clock
	repo    domain.Repository
	adapter domain.Adapter
	ledger  ledgerdomain.Service
}

func NewService(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("payment.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		adapter: p.Adapter,
		ledger:  p.Ledger,
	}
}

func (s *Service) CreateDeposit(ctx context.Context, in domain.CreateDepositInput) (*domain.DepositResult, error) {
	currency, err := normalizeCurrency(in.Currency)
	if err != nil {
		return nil, err
	}
	if in.Amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	merchant, err := s.activeMerchant(ctx, in.MerchantID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	paymentID := s.genID.Generate()

	intent, err := s.adapter.CreateDepositIntent(ctx, domain.CreateDepositIntentInput{
		TID:          fmt.Sprintf("DP-%s", paymentID),
		UID:          uuid.NewString(),
		MerchantID:   merchant.ID,
		MethodCode:   in.MethodCode,
		Amount:       in.Amount,
		Currency:     currency,
		BankCode:     in.BankCode,
		CustomerName: in.CustomerName,
	})
	if err != nil {
		return nil, err
	}

	payment := &domain.PaymentRequest{
		ID:         paymentID,
		MerchantID: merchant.ID,
		Kind:       domain.PaymentKindDeposit,
		Amount:     in.Amount,
		Currency:   currency,
		Status:     domain.PaymentStatusPending,
		Notes:      in.Notes,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	provider := &domain.ProviderPayment{
		ID:                 s.genID.Generate(),
		PaymentRequestID:   paymentID,
		Provider:           s.adapter.Provider(),
		ProviderPaymentID:  intent.ProviderPaymentID,
		RawStatus:          intent.RawStatus,
		RawPayload:         intent.RawPayload,
		DestinationAccount: intent.DestinationAccount,
		Instructions:       intent.Instructions,
		ExpiresAt:          intent.ExpiresAt,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.InsertPaymentRequest(ctx, tx, payment); err != nil {
			return err
		}
		return s.repo.InsertProviderPayment(ctx, tx, provider)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("deposit created",
		zap.String("payment_id", paymentID.String()),
		zap.String("merchant_id", merchant.ID.String()),
		zap.String("provider", provider.Provider),
		zap.String("provider_payment_id", provider.ProviderPaymentID),
		zap.Int64("amount", in.Amount),
	)
	return &domain.DepositResult{Payment: payment, Provider: provider}, nil
}

func (s *Service) CreateWithdrawal(ctx context.Context, in domain.CreateWithdrawalInput) (*domain.WithdrawalResult, error) {
	currency, err := normalizeCurrency(in.Currency)
	if err != nil {
		return nil, err
	}
	if in.Amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}
	merchant, err := s.activeMerchant(ctx, in.MerchantID)
	if err != nil {
		return nil, err
	}
	// Soft guard only. The authoritative balance check happens under the
	// row lock when the ledger engine approves the withdrawal.
	if merchant.Balance < in.Amount {
		return nil, ledgerdomain.ErrInsufficientFunds
	}

	account, err := s.resolveBankAccount(ctx, merchant.ID, in)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	paymentID := s.genID.Generate()

	receipt, err := s.adapter.CreateDisbursement(ctx, domain.CreateDisbursementInput{
		TID:        fmt.Sprintf("WD-%s", paymentID),
		UID:        uuid.NewString(),
		MerchantID: merchant.ID,
		Amount:     in.Amount,
		Currency:   currency,
		BankCode:   account.BankCode,
		AccountNo:  account.AccountNo,
		HolderName: account.HolderName,
	})
	if err != nil {
		return nil, err
	}

	accountID := account.ID
	payment := &domain.PaymentRequest{
		ID:            paymentID,
		MerchantID:    merchant.ID,
		BankAccountID: &accountID,
		Kind:          domain.PaymentKindWithdrawal,
		Amount:        in.Amount,
		Currency:      currency,
		Status:        domain.PaymentStatusSubmitted,
		Notes:         in.Notes,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	disbursement := &domain.ProviderDisbursement{
		ID:               s.genID.Generate(),
		PaymentRequestID: paymentID,
		Provider:         s.adapter.Provider(),
		ProviderPayoutID: receipt.ProviderPayoutID,
		RawStatus:        receipt.RawStatus,
		RawPayload:       receipt.RawPayload,
		BankCode:         account.BankCode,
		AccountNo:        account.AccountNo,
		HolderName:       account.HolderName,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.repo.InsertPaymentRequest(ctx, tx, payment); err != nil {
			return err
		}
		return s.repo.InsertProviderDisbursement(ctx, tx, disbursement)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("withdrawal created",
		zap.String("payment_id", paymentID.String()),
		zap.String("merchant_id", merchant.ID.String()),
		zap.String("provider", disbursement.Provider),
		zap.String("provider_payout_id", disbursement.ProviderPayoutID),
		zap.Int64("amount", in.Amount),
	)
	return &domain.WithdrawalResult{Payment: payment, Disbursement: disbursement}, nil
}

// resolveBankAccount loads a stored destination or validates and stores a
// new one through the provider's bank account inquiry.
func (s *Service) resolveBankAccount(ctx context.Context, merchantID snowflake.ID, in domain.CreateWithdrawalInput) (*merchantdomain.BankAccount, error) {
	if in.BankAccountID != 0 {
		account, err := s.repo.FindBankAccount(ctx, s.db, in.BankAccountID)
		if err != nil {
			return nil, err
		}
		if account == nil || account.MerchantID != merchantID {
			return nil, merchantdomain.ErrBankAccountNotFound
		}
		if account.Verified {
			return account, nil
		}
		validation, err := s.adapter.ValidateBankAccount(ctx, account.BankCode, account.AccountNo, account.HolderName)
		if err != nil {
			return nil, err
		}
		if !validation.OK {
			return nil, domain.ErrBankAccountReject
		}
		if validation.HolderName != "" {
			account.HolderName = validation.HolderName
		}
		account.Verified = true
		if err := s.repo.MarkBankAccountVerified(ctx, s.db, account.ID, account.HolderName, s.clock.Now()); err != nil {
			return nil, err
		}
		return account, nil
	}

	if strings.TrimSpace(in.BankCode) == "" || strings.TrimSpace(in.AccountNo) == "" {
		return nil, merchantdomain.ErrBankAccountNotFound
	}
	validation, err := s.adapter.ValidateBankAccount(ctx, in.BankCode, in.AccountNo, in.HolderName)
	if err != nil {
		return nil, err
	}
	if !validation.OK {
		return nil, domain.ErrBankAccountReject
	}

	now := s.clock.Now()
	holder := validation.HolderName
	if holder == "" {
		holder = in.HolderName
	}
	account := &merchantdomain.BankAccount{
		ID:         s.genID.Generate(),
		MerchantID: merchantID,
		BankCode:   in.BankCode,
		AccountNo:  in.AccountNo,
		HolderName: holder,
		Verified:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.InsertBankAccount(ctx, s.db, account); err != nil {
		return nil, err
	}
	return account, nil
}

func (s *Service) GetPayment(ctx context.Context, id snowflake.ID) (*domain.PaymentDetail, error) {
	payment, err := s.repo.FindPaymentRequest(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, ledgerdomain.ErrPaymentNotFound
	}

	detail := &domain.PaymentDetail{Payment: payment}
	switch payment.Kind {
	case domain.PaymentKindDeposit:
		detail.Provider, err = s.repo.FindProviderPaymentByRequest(ctx, s.db, id)
	case domain.PaymentKindWithdrawal:
		detail.Disbursement, err = s.repo.FindProviderDisbursementByRequest(ctx, s.db, id)
	}
	if err != nil {
		return nil, err
	}
	return detail, nil
}

func (s *Service) PollOnce(ctx context.Context, id snowflake.ID) (bool, error) {
	payment, err := s.repo.FindPaymentRequest(ctx, s.db, id)
	if err != nil {
		return false, err
	}
	if payment == nil {
		return false, ledgerdomain.ErrPaymentNotFound
	}
	if payment.Status.Terminal() {
		return true, nil
	}

	switch payment.Kind {
	case domain.PaymentKindDeposit:
		record, err := s.repo.FindProviderPaymentByRequest(ctx, s.db, id)
		if err != nil {
			return false, err
		}
		if record == nil {
			return false, domain.ErrRecordNotFound
		}
		snapshot, err := s.adapter.GetDepositStatus(ctx, record.ProviderPaymentID)
		if err != nil {
			return false, err
		}
		if err := s.repo.UpdateProviderPaymentSnapshot(ctx, s.db, record.ID, snapshot.RawStatus, snapshot.RawPayload, s.clock.Now()); err != nil {
			return false, err
		}
		return s.applyStatus(ctx, payment, snapshot.RawStatus, "reconcile:poll")
	case domain.PaymentKindWithdrawal:
		record, err := s.repo.FindProviderDisbursementByRequest(ctx, s.db, id)
		if err != nil {
			return false, err
		}
		if record == nil {
			return false, domain.ErrRecordNotFound
		}
		snapshot, err := s.adapter.GetDisbursementStatus(ctx, record.ProviderPayoutID)
		if err != nil {
			return false, err
		}
		if err := s.repo.UpdateProviderDisbursementSnapshot(ctx, s.db, record.ID, snapshot.RawStatus, snapshot.RawPayload, s.clock.Now()); err != nil {
			return false, err
		}
		return s.applyStatus(ctx, payment, snapshot.RawStatus, "reconcile:poll")
	default:
		return false, domain.ErrInvalidKind
	}
}

func (s *Service) ApplyProviderStatus(ctx context.Context, kind domain.OperationKind, provider, providerObjectID, rawStatus string, rawPayload []byte, actor string) (bool, error) {
	var paymentID snowflake.ID
	switch kind {
	case domain.OperationAccept:
		record, err := s.repo.FindProviderPayment(ctx, s.db, provider, providerObjectID)
		if err != nil {
			return false, err
		}
		if record == nil {
			return false, domain.ErrRecordNotFound
		}
		if err := s.repo.UpdateProviderPaymentSnapshot(ctx, s.db, record.ID, rawStatus, rawPayload, s.clock.Now()); err != nil {
			return false, err
		}
		paymentID = record.PaymentRequestID
	case domain.OperationSend:
		record, err := s.repo.FindProviderDisbursement(ctx, s.db, provider, providerObjectID)
		if err != nil {
			return false, err
		}
		if record == nil {
			return false, domain.ErrRecordNotFound
		}
		if err := s.repo.UpdateProviderDisbursementSnapshot(ctx, s.db, record.ID, rawStatus, rawPayload, s.clock.Now()); err != nil {
			return false, err
		}
		paymentID = record.PaymentRequestID
	default:
		return false, domain.ErrInvalidKind
	}

	payment, err := s.repo.FindPaymentRequest(ctx, s.db, paymentID)
	if err != nil {
		return false, err
	}
	if payment == nil {
		return false, ledgerdomain.ErrPaymentNotFound
	}
	if payment.Status.Terminal() {
		return true, nil
	}
	return s.applyStatus(ctx, payment, rawStatus, actor)
}

// applyStatus normalizes one raw provider status and, when decisive, runs
// the terminal transition through the ledger engine. A losing race against
// another decision is treated as settled.
func (s *Service) applyStatus(ctx context.Context, payment *domain.PaymentRequest, rawStatus, actor string) (bool, error) {
	var (
		target domain.PaymentStatus
		cause  string
		ok     bool
	)
	switch payment.Kind {
	case domain.PaymentKindDeposit:
		target, cause, ok = domain.NormalizeAcceptStatus(rawStatus).Decision()
	case domain.PaymentKindWithdrawal:
		target, cause, ok = domain.NormalizeSendStatus(rawStatus).Decision()
	default:
		return false, domain.ErrInvalidKind
	}
	if !ok {
		return false, nil
	}

	_, err := s.ledger.ApplyDecision(ctx, ledgerdomain.ApplyDecisionInput{
		PaymentID:      payment.ID,
		Target:         target,
		Kind:           payment.Kind,
		Actor:          actor,
		RejectionCause: cause,
	})
	if err != nil {
		if errors.Is(err, ledgerdomain.ErrInvalidState) {
			return true, nil
		}
		return false, err
	}
	return true, nil
}

func (s *Service) ListUnsettled(ctx context.Context, limit int) ([]domain.UnsettledRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.repo.ListUnsettled(ctx, s.db, limit)
}

func (s *Service) activeMerchant(ctx context.Context, id snowflake.ID) (*merchantdomain.Merchant, error) {
	merchant, err := s.repo.FindMerchant(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if merchant == nil {
		return nil, merchantdomain.ErrMerchantNotFound
	}
	if merchant.Status != merchantdomain.MerchantStatusActive {
		return nil, merchantdomain.ErrMerchantSuspended
	}
	return merchant, nil
}

func normalizeCurrency(raw string) (string, error) {
	currency := strings.ToUpper(strings.TrimSpace(raw))
	if len(currency) != 3 {
		return "", domain.ErrInvalidCurrency
	}
	for _, r := range currency {
		if r < 'A' || r > 'Z' {
			return "", domain.ErrInvalidCurrency
		}
	}
	return currency, nil
}
