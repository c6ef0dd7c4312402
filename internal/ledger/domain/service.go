package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	paymentdomain "github.com/aruspay/aruspay/internal/payment/domain"
)

// ApplyDecisionInput requests a terminal transition on one payment request.
type ApplyDecisionInput struct {
	PaymentID snowflake.ID
	// Target must be approved or rejected.
	Target paymentdomain.PaymentStatus
	// Kind, when set, guards the operation against a direction mismatch.
	Kind paymentdomain.PaymentKind
	// Actor identifies who decided (admin id, "provider:xenpay", ...).
	Actor string
	// AmountOverride, when set, replaces the requested amount. Must be a
	// positive integer in minor units.
	AmountOverride *int64
	// Comment is appended to the payment's notes.
	Comment string
	// RejectionCause tags why a rejection happened (failed, canceled,
	// expired, or a free-form admin reason).
	RejectionCause string
}

// DecisionResult is the refreshed payment plus the signed delta actually
// applied to the merchant balance.
type DecisionResult struct {
	Payment      *paymentdomain.PaymentRequest
	BalanceDelta int64
}

// Service is the ledger and balance engine. ApplyDecision runs inside one
// atomic transaction serialized per payment row; a refused call leaves all
// persisted state untouched. Rejecting an approved payment reverses the
// approval: the ledger entry is deleted and its balance effect undone.
type Service interface {
	ApplyDecision(ctx context.Context, in ApplyDecisionInput) (*DecisionResult, error)
	MerchantBalance(ctx context.Context, merchantID snowflake.ID) (int64, error)
	LedgerSum(ctx context.Context, merchantID snowflake.ID) (int64, error)
}
