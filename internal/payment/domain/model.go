package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// PaymentKind is the direction of a funds movement.
type PaymentKind string

const (
	PaymentKindDeposit    PaymentKind = "deposit"
	PaymentKindWithdrawal PaymentKind = "withdrawal"
)

// PaymentStatus is the canonical local state of a payment request.
// Approved and rejected are terminal; no further transition is applied.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusSubmitted PaymentStatus = "submitted"
	PaymentStatusApproved  PaymentStatus = "approved"
	PaymentStatusRejected  PaymentStatus = "rejected"
)

func (s PaymentStatus) Terminal() bool {
	return s == PaymentStatusApproved || s == PaymentStatusRejected
}

var (
	ErrInvalidKind       = errors.New("invalid_payment_kind")
	ErrInvalidCurrency   = errors.New("invalid_currency")
	ErrInvalidAmount     = errors.New("invalid_amount")
	ErrProviderNotFound  = errors.New("provider_not_found")
	ErrInvalidSignature  = errors.New("invalid_signature")
	ErrInvalidPayload    = errors.New("invalid_payload")
	ErrEventIgnored      = errors.New("event_ignored")
	ErrInvalidConfig     = errors.New("invalid_provider_config")
	ErrProviderRejected  = errors.New("provider_rejected")
	ErrRecordNotFound    = errors.New("provider_record_not_found")
	ErrBankAccountReject = errors.New("bank_account_rejected")
)

// PaymentRequest is one funds-movement intent. It is created pending by the
// intake flow and mutated only by the ledger engine once submitted.
type PaymentRequest struct {
	ID             snowflake.ID  `json:"id" gorm:"primaryKey"`
	MerchantID     snowflake.ID  `json:"merchant_id" gorm:"not null;index"`
	BankAccountID  *snowflake.ID `json:"bank_account_id"`
	Kind           PaymentKind   `json:"kind" gorm:"type:text;not null"`
	Amount         int64         `json:"amount" gorm:"not null"`
	Currency       string        `json:"currency" gorm:"type:text;not null"`
	Status         PaymentStatus `json:"status" gorm:"type:text;not null;index"`
	RejectedReason *string       `json:"rejected_reason"`
	Notes          string        `json:"notes" gorm:"type:text"`
	ProcessedAt    *time.Time    `json:"processed_at"`
	ProcessedBy    *string       `json:"processed_by"`
	CreatedAt      time.Time     `json:"created_at" gorm:"not null"`
	UpdatedAt      time.Time     `json:"updated_at" gorm:"not null"`
}

func (PaymentRequest) TableName() string { return "payment_requests" }

// ProviderPayment tracks the accept-side provider object for a deposit.
// Snapshot fields are diagnostic; they are never authoritative for balance.
type ProviderPayment struct {
	ID                 snowflake.ID   `json:"id" gorm:"primaryKey"`
	PaymentRequestID   snowflake.ID   `json:"payment_request_id" gorm:"not null;uniqueIndex"`
	Provider           string         `json:"provider" gorm:"type:text;not null;uniqueIndex:ux_provider_payments_provider_ref,priority:1"`
	ProviderPaymentID  string         `json:"provider_payment_id" gorm:"type:text;not null;uniqueIndex:ux_provider_payments_provider_ref,priority:2"`
	RawStatus          string         `json:"raw_status" gorm:"type:text"`
	RawPayload         datatypes.JSON `json:"raw_payload" gorm:"type:jsonb"`
	DestinationAccount string         `json:"destination_account" gorm:"type:text"`
	Instructions       string         `json:"instructions" gorm:"type:text"`
	ExpiresAt          *time.Time     `json:"expires_at"`
	CreatedAt          time.Time      `json:"created_at" gorm:"not null"`
	UpdatedAt          time.Time      `json:"updated_at" gorm:"not null"`
}

func (ProviderPayment) TableName() string { return "provider_payments" }

// ProviderDisbursement tracks the send-side provider object for a withdrawal.
type ProviderDisbursement struct {
	ID               snowflake.ID   `json:"id" gorm:"primaryKey"`
	PaymentRequestID snowflake.ID   `json:"payment_request_id" gorm:"not null;uniqueIndex"`
	Provider         string         `json:"provider" gorm:"type:text;not null;uniqueIndex:ux_provider_disbursements_provider_ref,priority:1"`
	ProviderPayoutID string         `json:"provider_payout_id" gorm:"type:text;not null;uniqueIndex:ux_provider_disbursements_provider_ref,priority:2"`
	RawStatus        string         `json:"raw_status" gorm:"type:text"`
	RawPayload       datatypes.JSON `json:"raw_payload" gorm:"type:jsonb"`
	BankCode         string         `json:"bank_code" gorm:"type:text"`
	AccountNo        string         `json:"account_no" gorm:"type:text"`
	HolderName       string         `json:"holder_name" gorm:"type:text"`
	CreatedAt        time.Time      `json:"created_at" gorm:"not null"`
	UpdatedAt        time.Time      `json:"updated_at" gorm:"not null"`
}

func (ProviderDisbursement) TableName() string { return "provider_disbursements" }

// WebhookLog is the append-only record of every inbound provider webhook.
// Rows are written even when verification fails, for audit and replay.
type WebhookLog struct {
	ID          snowflake.ID   `json:"id" gorm:"primaryKey"`
	Provider    string         `json:"provider" gorm:"type:text;not null;index"`
	Topic       string         `json:"topic" gorm:"type:text"`
	Signature   string         `json:"signature" gorm:"type:text"`
	Headers     datatypes.JSON `json:"headers" gorm:"type:jsonb"`
	Payload     datatypes.JSON `json:"payload" gorm:"type:jsonb"`
	Verified    bool           `json:"verified" gorm:"not null"`
	VerifyError string         `json:"verify_error" gorm:"type:text"`
	ReceivedAt  time.Time      `json:"received_at" gorm:"not null"`
}

func (WebhookLog) TableName() string { return "provider_webhook_logs" }
