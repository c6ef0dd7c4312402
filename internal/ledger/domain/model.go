package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrPaymentNotFound   = errors.New("payment_not_found")
	ErrInvalidState      = errors.New("invalid_state")
	ErrInvalidAmount     = errors.New("invalid_amount")
	ErrInsufficientFunds = errors.New("insufficient_funds")
)

// LedgerEntry is the signed monetary record backing a merchant's balance.
// At most one entry exists per payment request: positive for deposits,
// negative for withdrawals. The sum of a merchant's entries must always
// equal the merchant's current balance.
type LedgerEntry struct {
	ID               snowflake.ID  `json:"id" gorm:"primaryKey"`
	MerchantID       snowflake.ID  `json:"merchant_id" gorm:"not null;index"`
	Amount           int64         `json:"amount" gorm:"not null"`
	Reason           string        `json:"reason" gorm:"type:text"`
	PaymentRequestID *snowflake.ID `json:"payment_request_id" gorm:"uniqueIndex"`
	CreatedAt        time.Time     `json:"created_at" gorm:"not null"`
	UpdatedAt        time.Time     `json:"updated_at" gorm:"not null"`
}

func (LedgerEntry) TableName() string { return "ledger_entries" }
