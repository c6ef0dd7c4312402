package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	merchantdomain "github.com/aruspay/aruspay/internal/merchant/domain"
	"gorm.io/gorm"
)

// UnsettledRecord identifies a non-terminal payment that has a provider
// object to poll.
type UnsettledRecord struct {
	PaymentID snowflake.ID `gorm:"column:payment_id"`
	Kind      PaymentKind  `gorm:"column:kind"`
}

// Repository is the persistence surface of the payment feature. Callers
// pass the handle so reads and writes can join an outer transaction.
type Repository interface {
	FindMerchant(ctx context.Context, db *gorm.DB, id snowflake.ID) (*merchantdomain.Merchant, error)
	FindBankAccount(ctx context.Context, db *gorm.DB, id snowflake.ID) (*merchantdomain.BankAccount, error)
	InsertBankAccount(ctx context.Context, db *gorm.DB, account *merchantdomain.BankAccount) error
	MarkBankAccountVerified(ctx context.Context, db *gorm.DB, id snowflake.ID, holderName string, at time.Time) error

	FindPaymentRequest(ctx context.Context, db *gorm.DB, id snowflake.ID) (*PaymentRequest, error)
	InsertPaymentRequest(ctx context.Context, db *gorm.DB, payment *PaymentRequest) error

	FindProviderPayment(ctx context.Context, db *gorm.DB, provider, providerPaymentID string) (*ProviderPayment, error)
	FindProviderPaymentByRequest(ctx context.Context, db *gorm.DB, paymentRequestID snowflake.ID) (*ProviderPayment, error)
	InsertProviderPayment(ctx context.Context, db *gorm.DB, payment *ProviderPayment) error
	UpdateProviderPaymentSnapshot(ctx context.Context, db *gorm.DB, id snowflake.ID, rawStatus string, rawPayload []byte, at time.Time) error

	FindProviderDisbursement(ctx context.Context, db *gorm.DB, provider, providerPayoutID string) (*ProviderDisbursement, error)
	FindProviderDisbursementByRequest(ctx context.Context, db *gorm.DB, paymentRequestID snowflake.ID) (*ProviderDisbursement, error)
	InsertProviderDisbursement(ctx context.Context, db *gorm.DB, disbursement *ProviderDisbursement) error
	UpdateProviderDisbursementSnapshot(ctx context.Context, db *gorm.DB, id snowflake.ID, rawStatus string, rawPayload []byte, at time.Time) error

	ListUnsettled(ctx context.Context, db *gorm.DB, limit int) ([]UnsettledRecord, error)

	InsertWebhookLog(ctx context.Context, db *gorm.DB, log *WebhookLog) error
}
