package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/aruspay/aruspay/internal/clock"
	ledgerdomain "github.com/aruspay/aruspay/internal/ledger/domain"
	merchantdomain "github.com/aruspay/aruspay/internal/merchant/domain"
	obsmetrics "github.com/aruspay/aruspay/internal/observability/metrics"
	paymentdomain "github.com/aruspay/aruspay/internal/payment/domain"
	dbpkg "github.com/aruspay/aruspay/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) ledgerdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("ledger.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		obsMetrics: p.ObsMetrics,
	}
}

// ApplyDecision moves one payment request into a terminal state and applies
// the corresponding signed delta to the merchant balance. The whole
// read-modify-write runs in a single transaction with the payment row
// locked, so racing decisions on the same payment serialize and the loser
// observes the terminal status.
func (s *Service) ApplyDecision(ctx context.Context, in ledgerdomain.ApplyDecisionInput) (*ledgerdomain.DecisionResult, error) {
	if in.Target != paymentdomain.PaymentStatusApproved && in.Target != paymentdomain.PaymentStatusRejected {
		return nil, ledgerdomain.ErrInvalidState
	}
	if in.AmountOverride != nil && *in.AmountOverride <= 0 {
		return nil, ledgerdomain.ErrInvalidAmount
	}

	start := time.Now()
	var result *ledgerdomain.DecisionResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		result, err = s.applyDecisionTx(ctx, tx, in)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.obsMetrics.RecordDecision(string(result.Payment.Kind), string(in.Target), time.Since(start))
	s.log.Info("decision applied",
		zap.String("payment_id", in.PaymentID.String()),
		zap.String("target", string(in.Target)),
		zap.String("actor", in.Actor),
		zap.Int64("balance_delta", result.BalanceDelta),
	)
	return result, nil
}

func (s *Service) applyDecisionTx(ctx context.Context, tx *gorm.DB, in ledgerdomain.ApplyDecisionInput) (*ledgerdomain.DecisionResult, error) {
	payment, err := s.lockPayment(ctx, tx, in.PaymentID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, ledgerdomain.ErrPaymentNotFound
	}
	if in.Kind != "" && payment.Kind != in.Kind {
		return nil, ledgerdomain.ErrInvalidState
	}
	if payment.Status.Terminal() {
		// The one transition allowed out of a terminal state is reversing
		// an approval. Same-target repeats and anything after a rejection
		// stay no-ops so duplicate signals cannot double-apply.
		reversal := payment.Status == paymentdomain.PaymentStatusApproved &&
			in.Target == paymentdomain.PaymentStatusRejected
		if !reversal {
			return nil, ledgerdomain.ErrInvalidState
		}
	}

	amount := payment.Amount
	if in.AmountOverride != nil {
		amount = *in.AmountOverride
	}
	if amount <= 0 {
		return nil, ledgerdomain.ErrInvalidAmount
	}

	merchant, err := s.lockMerchant(ctx, tx, payment.MerchantID)
	if err != nil {
		return nil, err
	}
	if merchant == nil {
		return nil, merchantdomain.ErrMerchantNotFound
	}

	entry, err := s.findEntry(ctx, tx, payment.ID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	var delta int64

	switch in.Target {
	case paymentdomain.PaymentStatusApproved:
		signed := amount
		if payment.Kind == paymentdomain.PaymentKindWithdrawal {
			signed = -amount
		}
		var previous int64
		if entry != nil {
			previous = entry.Amount
		}
		delta = signed - previous
		if merchant.Balance+delta < 0 {
			return nil, ledgerdomain.ErrInsufficientFunds
		}
		if err := s.upsertEntry(ctx, tx, entry, merchant.ID, payment.ID, signed, ledgerReason(payment.Kind), now); err != nil {
			return nil, err
		}
		payment.RejectedReason = nil

	case paymentdomain.PaymentStatusRejected:
		if entry != nil {
			delta = -entry.Amount
			if merchant.Balance+delta < 0 {
				return nil, ledgerdomain.ErrInsufficientFunds
			}
			if err := tx.WithContext(ctx).Exec(
				`DELETE FROM ledger_entries WHERE id = ?`, entry.ID,
			).Error; err != nil {
				return nil, err
			}
		}
		reason := strings.TrimSpace(in.RejectionCause)
		if reason == "" {
			reason = strings.TrimSpace(in.Comment)
		}
		if reason == "" {
			reason = "rejected"
		}
		payment.RejectedReason = &reason
	}

	if delta != 0 {
		if err := tx.WithContext(ctx).Exec(
			`UPDATE merchants SET balance = balance + ?, updated_at = ? WHERE id = ?`,
			delta, now, merchant.ID,
		).Error; err != nil {
			return nil, err
		}
	}

	payment.Status = in.Target
	payment.Amount = amount
	payment.ProcessedAt = &now
	if actor := strings.TrimSpace(in.Actor); actor != "" {
		payment.ProcessedBy = &actor
	}
	if comment := strings.TrimSpace(in.Comment); comment != "" {
		if payment.Notes != "" {
			payment.Notes += "\n"
		}
		payment.Notes += comment
	}
	payment.UpdatedAt = now

	if err := tx.WithContext(ctx).Exec(
		`UPDATE payment_requests
		 SET status = ?, amount = ?, rejected_reason = ?, notes = ?, processed_at = ?, processed_by = ?, updated_at = ?
		 WHERE id = ?`,
		payment.Status,
		payment.Amount,
		payment.RejectedReason,
		payment.Notes,
		payment.ProcessedAt,
		payment.ProcessedBy,
		payment.UpdatedAt,
		payment.ID,
	).Error; err != nil {
		return nil, err
	}

	return &ledgerdomain.DecisionResult{Payment: payment, BalanceDelta: delta}, nil
}

func (s *Service) lockPayment(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*paymentdomain.PaymentRequest, error) {
	var payment paymentdomain.PaymentRequest
	err := tx.WithContext(ctx).Raw(
		`SELECT id, merchant_id, bank_account_id, kind, amount, currency, status,
			rejected_reason, notes, processed_at, processed_by, created_at, updated_at
		 FROM payment_requests
		 WHERE id = ?`+dbpkg.ForUpdate(tx),
		id,
	).Scan(&payment).Error
	if err != nil {
		return nil, err
	}
	if payment.ID == 0 {
		return nil, nil
	}
	return &payment, nil
}

func (s *Service) lockMerchant(ctx context.Context, tx *gorm.DB, id snowflake.ID) (*merchantdomain.Merchant, error) {
	var merchant merchantdomain.Merchant
	err := tx.WithContext(ctx).Raw(
		`SELECT id, name, status, balance, created_at, updated_at
		 FROM merchants
		 WHERE id = ?`+dbpkg.ForUpdate(tx),
		id,
	).Scan(&merchant).Error
	if err != nil {
		return nil, err
	}
	if merchant.ID == 0 {
		return nil, nil
	}
	return &merchant, nil
}

func (s *Service) findEntry(ctx context.Context, tx *gorm.DB, paymentID snowflake.ID) (*ledgerdomain.LedgerEntry, error) {
	var entry ledgerdomain.LedgerEntry
	err := tx.WithContext(ctx).Raw(
		`SELECT id, merchant_id, amount, reason, payment_request_id, created_at, updated_at
		 FROM ledger_entries
		 WHERE payment_request_id = ?`+dbpkg.ForUpdate(tx),
		paymentID,
	).Scan(&entry).Error
	if err != nil {
		return nil, err
	}
	if entry.ID == 0 {
		return nil, nil
	}
	return &entry, nil
}

func (s *Service) upsertEntry(ctx context.Context, tx *gorm.DB, existing *ledgerdomain.LedgerEntry, merchantID, paymentID snowflake.ID, amount int64, reason string, now time.Time) error {
	if existing != nil {
		return tx.WithContext(ctx).Exec(
			`UPDATE ledger_entries SET amount = ?, reason = ?, updated_at = ? WHERE id = ?`,
			amount, reason, now, existing.ID,
		).Error
	}
	return tx.WithContext(ctx).Exec(
		`INSERT INTO ledger_entries (id, merchant_id, amount, reason, payment_request_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.genID.Generate(), merchantID, amount, reason, paymentID, now, now,
	).Error
}

func ledgerReason(kind paymentdomain.PaymentKind) string {
	if kind == paymentdomain.PaymentKindWithdrawal {
		return "withdrawal approved"
	}
	return "deposit approved"
}

// MerchantBalance returns the merchant's current balance column.
func (s *Service) MerchantBalance(ctx context.Context, merchantID snowflake.ID) (int64, error) {
	var balance int64
	err := s.db.WithContext(ctx).Raw(
		`SELECT balance FROM merchants WHERE id = ?`,
		merchantID,
	).Scan(&balance).Error
	if err != nil {
		return 0, err
	}
	return balance, nil
}

// LedgerSum returns the sum of the merchant's signed ledger entries. By the
// balance conservation property it must always equal MerchantBalance.
func (s *Service) LedgerSum(ctx context.Context, merchantID snowflake.ID) (int64, error) {
	var sum int64
	err := s.db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(amount), 0) FROM ledger_entries WHERE merchant_id = ?`,
		merchantID,
	).Scan(&sum).Error
	if err != nil {
		return 0, err
	}
	return sum, nil
}
