package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

// CreateDepositInput opens an accept-side payment for a merchant.
type CreateDepositInput struct {
	MerchantID   snowflake.ID
	Amount       int64
	Currency     string
	MethodCode   string
	BankCode     string
	CustomerName string
	Notes        string
}

// CreateWithdrawalInput opens a send-side payout for a merchant. Either
// BankAccountID references a stored destination, or the inline bank fields
// describe a new one that is validated at the provider first.
type CreateWithdrawalInput struct {
	MerchantID    snowflake.ID
	Amount        int64
	Currency      string
	BankAccountID snowflake.ID
	BankCode      string
	AccountNo     string
	HolderName    string
	Notes         string
}

// DepositResult pairs the local payment with its provider-side intent.
type DepositResult struct {
	Payment  *PaymentRequest
	Provider *ProviderPayment
}

// WithdrawalResult pairs the local payment with its provider-side payout.
type WithdrawalResult struct {
	Payment      *PaymentRequest
	Disbursement *ProviderDisbursement
}

// PaymentDetail is the read model for one payment request.
type PaymentDetail struct {
	Payment      *PaymentRequest       `json:"payment"`
	Provider     *ProviderPayment      `json:"provider,omitempty"`
	Disbursement *ProviderDisbursement `json:"disbursement,omitempty"`
}

// Service orchestrates intake, provider calls, and status application for
// payment requests. Terminal transitions always go through the ledger
// engine; this service never mutates balances directly.
type Service interface {
	CreateDeposit(ctx context.Context, in CreateDepositInput) (*DepositResult, error)
	CreateWithdrawal(ctx context.Context, in CreateWithdrawalInput) (*WithdrawalResult, error)
	GetPayment(ctx context.Context, id snowflake.ID) (*PaymentDetail, error)

	// PollOnce fetches the provider status for one payment and applies the
	// outcome if it is decisive. It reports whether the payment is terminal
	// afterwards.
	PollOnce(ctx context.Context, id snowflake.ID) (bool, error)

	// ApplyProviderStatus applies a raw provider status pushed for a provider
	// object. Used by the webhook ingestor.
	ApplyProviderStatus(ctx context.Context, kind OperationKind, provider, providerObjectID, rawStatus string, rawPayload []byte, actor string) (bool, error)

	ListUnsettled(ctx context.Context, limit int) ([]UnsettledRecord, error)
}
