package domain

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type MerchantStatus string

const (
	MerchantStatusActive    MerchantStatus = "active"
	MerchantStatusSuspended MerchantStatus = "suspended"
	MerchantStatusClosed    MerchantStatus = "closed"
)

var (
	ErrMerchantNotFound  = errors.New("merchant_not_found")
	ErrMerchantSuspended = errors.New("merchant_suspended")
)

// Merchant owns a balance in integer minor units. The balance is mutated
// only inside the ledger engine's decision transaction, together with the
// corresponding ledger entry write.
type Merchant struct {
	ID        snowflake.ID   `json:"id" gorm:"primaryKey"`
	Name      string         `json:"name" gorm:"type:text;not null"`
	Status    MerchantStatus `json:"status" gorm:"type:text;not null;default:active"`
	Balance   int64          `json:"balance" gorm:"not null;default:0"`
	CreatedAt time.Time      `json:"created_at" gorm:"not null"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"not null"`
}

func (Merchant) TableName() string { return "merchants" }

// BankAccount is a verified payout destination owned by a merchant.
type BankAccount struct {
	ID         snowflake.ID `json:"id" gorm:"primaryKey"`
	MerchantID snowflake.ID `json:"merchant_id" gorm:"not null;index"`
	BankCode   string       `json:"bank_code" gorm:"type:text;not null"`
	AccountNo  string       `json:"account_no" gorm:"type:text;not null"`
	HolderName string       `json:"holder_name" gorm:"type:text;not null"`
	Verified   bool         `json:"verified" gorm:"not null;default:false"`
	CreatedAt  time.Time    `json:"created_at" gorm:"not null"`
	UpdatedAt  time.Time    `json:"updated_at" gorm:"not null"`
}

func (BankAccount) TableName() string { return "bank_accounts" }

var ErrBankAccountNotFound = errors.New("bank_account_not_found")
