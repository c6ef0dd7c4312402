package domain

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
)

// AdapterConfig carries provider credentials from configuration into an
// adapter instance.
type AdapterConfig struct {
	Provider string
	Live     bool
	Config   map[string]any
}

// CreateDepositIntentInput opens an accept-side intent at the provider.
type CreateDepositIntentInput struct {
	TID          string
	UID          string
	MerchantID   snowflake.ID
	MethodCode   string
	Amount       int64
	Currency     string
	BankCode     string
	CustomerName string
}

// DepositIntent is the provider's answer to an intent creation.
type DepositIntent struct {
	ProviderPaymentID  string
	ExpiresAt          *time.Time
	Instructions       string
	DestinationAccount string
	RawStatus          string
	RawPayload         []byte
}

// StatusSnapshot is a raw provider status fetch. RawStatus is returned
// unmodified; only the normalizer interprets it.
type StatusSnapshot struct {
	RawStatus  string
	RawPayload []byte
}

// BankValidation is the result of a payout destination inquiry.
type BankValidation struct {
	OK         bool
	HolderName string
	RawPayload []byte
}

// CreateDisbursementInput opens a send-side payout at the provider.
type CreateDisbursementInput struct {
	TID        string
	UID        string
	MerchantID snowflake.ID
	Amount     int64
	Currency   string
	BankCode   string
	AccountNo  string
	HolderName string
}

// DisbursementReceipt is the provider's answer to a payout creation.
type DisbursementReceipt struct {
	ProviderPayoutID string
	RawStatus        string
	RawPayload       []byte
}

// WebhookEvent is a parsed provider push notification.
type WebhookEvent struct {
	Kind             OperationKind
	Topic            string
	ProviderObjectID string
	RawStatus        string
}

// Adapter is the capability interface each external provider implements.
// Implementations never fabricate success and always hand back the
// provider's raw status string untouched.
type Adapter interface {
	Provider() string
	Live() bool

	CreateDepositIntent(ctx context.Context, in CreateDepositIntentInput) (*DepositIntent, error)
	GetDepositStatus(ctx context.Context, providerPaymentID string) (*StatusSnapshot, error)
	ValidateBankAccount(ctx context.Context, bankCode, accountNo, name string) (*BankValidation, error)
	CreateDisbursement(ctx context.Context, in CreateDisbursementInput) (*DisbursementReceipt, error)
	GetDisbursementStatus(ctx context.Context, providerPayoutID string) (*StatusSnapshot, error)

	VerifyWebhook(payload []byte, headers http.Header) error
	ParseWebhook(payload []byte) (*WebhookEvent, error)
}

// AdapterFactory builds an Adapter from configuration.
type AdapterFactory interface {
	Provider() string
	NewAdapter(cfg AdapterConfig) (Adapter, error)
}
