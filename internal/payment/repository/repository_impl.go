package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	merchantdomain "github.com/aruspay/aruspay/internal/merchant/domain"
	"github.com/aruspay/aruspay/internal/payment/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindMerchant(ctx context.Context, db *gorm.DB, id snowflake.ID) (*merchantdomain.Merchant, error) {
	var item merchantdomain.Merchant
	err := db.WithContext(ctx).Raw(
		`SELECT id, name, status, balance, created_at, updated_at
		 FROM merchants
		 WHERE id = ?
		 LIMIT 1`,
		id,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindBankAccount(ctx context.Context, db *gorm.DB, id snowflake.ID) (*merchantdomain.BankAccount, error) {
	var item merchantdomain.BankAccount
	err := db.WithContext(ctx).Raw(
		`SELECT id, merchant_id, bank_code, account_no, holder_name, verified, created_at, updated_at
		 FROM bank_accounts
		 WHERE id = ?
		 LIMIT 1`,
		id,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) InsertBankAccount(ctx context.Context, db *gorm.DB, account *merchantdomain.BankAccount) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO bank_accounts (
			id, merchant_id, bank_code, account_no, holder_name, verified, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		account.ID,
		account.MerchantID,
		account.BankCode,
		account.AccountNo,
		account.HolderName,
		account.Verified,
		account.CreatedAt,
		account.UpdatedAt,
	).Error
}

func (r *repo) MarkBankAccountVerified(ctx context.Context, db *gorm.DB, id snowflake.ID, holderName string, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE bank_accounts
		 SET verified = ?, holder_name = ?, updated_at = ?
		 WHERE id = ?`,
		true,
		holderName,
		at,
		id,
	).Error
}

func (r *repo) FindPaymentRequest(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.PaymentRequest, error) {
	var item domain.PaymentRequest
	err := db.WithContext(ctx).Raw(
		`SELECT id, merchant_id, bank_account_id, kind, amount, currency, status,
			rejected_reason, notes, processed_at, processed_by, created_at, updated_at
		 FROM payment_requests
		 WHERE id = ?
		 LIMIT 1`,
		id,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) InsertPaymentRequest(ctx context.Context, db *gorm.DB, payment *domain.PaymentRequest) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO payment_requests (
			id, merchant_id, bank_account_id, kind, amount, currency, status,
			rejected_reason, notes, processed_at, processed_by, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		payment.ID,
		payment.MerchantID,
		payment.BankAccountID,
		payment.Kind,
		payment.Amount,
		payment.Currency,
		payment.Status,
		payment.RejectedReason,
		payment.Notes,
		payment.ProcessedAt,
		payment.ProcessedBy,
		payment.CreatedAt,
		payment.UpdatedAt,
	).Error
}

func (r *repo) FindProviderPayment(ctx context.Context, db *gorm.DB, provider, providerPaymentID string) (*domain.ProviderPayment, error) {
	var item domain.ProviderPayment
	err := db.WithContext(ctx).Raw(
		`SELECT id, payment_request_id, provider, provider_payment_id, raw_status,
			raw_payload, destination_account, instructions, expires_at, created_at, updated_at
		 FROM provider_payments
		 WHERE provider = ? AND provider_payment_id = ?
		 LIMIT 1`,
		provider,
		providerPaymentID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindProviderPaymentByRequest(ctx context.Context, db *gorm.DB, paymentRequestID snowflake.ID) (*domain.ProviderPayment, error) {
	var item domain.ProviderPayment
	err := db.WithContext(ctx).Raw(
		`SELECT id, payment_request_id, provider, provider_payment_id, raw_status,
			raw_payload, destination_account, instructions, expires_at, created_at, updated_at
		 FROM provider_payments
		 WHERE payment_request_id = ?
		 LIMIT 1`,
		paymentRequestID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) InsertProviderPayment(ctx context.Context, db *gorm.DB, payment *domain.ProviderPayment) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO provider_payments (
			id, payment_request_id, provider, provider_payment_id, raw_status,
			raw_payload, destination_account, instructions, expires_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		payment.ID,
		payment.PaymentRequestID,
		payment.Provider,
		payment.ProviderPaymentID,
		payment.RawStatus,
		payment.RawPayload,
		payment.DestinationAccount,
		payment.Instructions,
		payment.ExpiresAt,
		payment.CreatedAt,
		payment.UpdatedAt,
	).Error
}

func (r *repo) UpdateProviderPaymentSnapshot(ctx context.Context, db *gorm.DB, id snowflake.ID, rawStatus string, rawPayload []byte, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE provider_payments
		 SET raw_status = ?, raw_payload = ?, updated_at = ?
		 WHERE id = ?`,
		rawStatus,
		rawPayload,
		at,
		id,
	).Error
}

func (r *repo) FindProviderDisbursement(ctx context.Context, db *gorm.DB, provider, providerPayoutID string) (*domain.ProviderDisbursement, error) {
	var item domain.ProviderDisbursement
	err := db.WithContext(ctx).Raw(
		`SELECT id, payment_request_id, provider, provider_payout_id, raw_status,
			raw_payload, bank_code, account_no, holder_name, created_at, updated_at
		 FROM provider_disbursements
		 WHERE provider = ? AND provider_payout_id = ?
		 LIMIT 1`,
		provider,
		providerPayoutID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) FindProviderDisbursementByRequest(ctx context.Context, db *gorm.DB, paymentRequestID snowflake.ID) (*domain.ProviderDisbursement, error) {
	var item domain.ProviderDisbursement
	err := db.WithContext(ctx).Raw(
		`SELECT id, payment_request_id, provider, provider_payout_id, raw_status,
			raw_payload, bank_code, account_no, holder_name, created_at, updated_at
		 FROM provider_disbursements
		 WHERE payment_request_id = ?
		 LIMIT 1`,
		paymentRequestID,
	).Scan(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) InsertProviderDisbursement(ctx context.Context, db *gorm.DB, disbursement *domain.ProviderDisbursement) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO provider_disbursements (
			id, payment_request_id, provider, provider_payout_id, raw_status,
			raw_payload, bank_code, account_no, holder_name, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		disbursement.ID,
		disbursement.PaymentRequestID,
		disbursement.Provider,
		disbursement.ProviderPayoutID,
		disbursement.RawStatus,
		disbursement.RawPayload,
		disbursement.BankCode,
		disbursement.AccountNo,
		disbursement.HolderName,
		disbursement.CreatedAt,
		disbursement.UpdatedAt,
	).Error
}

func (r *repo) UpdateProviderDisbursementSnapshot(ctx context.Context, db *gorm.DB, id snowflake.ID, rawStatus string, rawPayload []byte, at time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE provider_disbursements
		 SET raw_status = ?, raw_payload = ?, updated_at = ?
		 WHERE id = ?`,
		rawStatus,
		rawPayload,
		at,
		id,
	).Error
}

func (r *repo) ListUnsettled(ctx context.Context, db *gorm.DB, limit int) ([]domain.UnsettledRecord, error) {
	var items []domain.UnsettledRecord
	err := db.WithContext(ctx).Raw(
		`SELECT pr.id AS payment_id, pr.kind AS kind
		 FROM payment_requests pr
		 WHERE pr.status IN (?, ?)
		   AND (
			EXISTS (SELECT 1 FROM provider_payments pp WHERE pp.payment_request_id = pr.id)
			OR EXISTS (SELECT 1 FROM provider_disbursements pd WHERE pd.payment_request_id = pr.id)
		   )
		 ORDER BY pr.created_at ASC
		 LIMIT ?`,
		domain.PaymentStatusPending,
		domain.PaymentStatusSubmitted,
		limit,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) InsertWebhookLog(ctx context.Context, db *gorm.DB, log *domain.WebhookLog) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO provider_webhook_logs (
			id, provider, topic, signature, headers, payload, verified, verify_error, received_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		log.ID,
		log.Provider,
		log.Topic,
		log.Signature,
		log.Headers,
		log.Payload,
		log.Verified,
		log.VerifyError,
		log.ReceivedAt,
	).Error
}
