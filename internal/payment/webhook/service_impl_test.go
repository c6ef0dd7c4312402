package webhook_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/aruspay/aruspay/internal/clock"
	ledgerdomain "github.com/aruspay/aruspay/internal/ledger/domain"
	ledgerservice "github.com/aruspay/aruspay/internal/ledger/service"
	merchantdomain "github.com/aruspay/aruspay/internal/merchant/domain"
	"github.com/aruspay/aruspay/internal/payment/adapters/sandbox"
	paymentdomain "github.com/aruspay/aruspay/internal/payment/domain"
	paymentrepo "github.com/aruspay/aruspay/internal/payment/repository"
	paymentservice "github.com/aruspay/aruspay/internal/payment/service"
	paymentwebhook "github.com/aruspay/aruspay/internal/payment/webhook"
)

const webhookSecret = "sandbox_secret"

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}

	schema := []string{
		`CREATE TABLE merchants (
			id BIGINT PRIMARY KEY,
			name TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'active',
			balance BIGINT NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE bank_accounts (
			id BIGINT PRIMARY KEY,
			merchant_id BIGINT NOT NULL,
			bank_code TEXT NOT NULL,
			account_no TEXT NOT NULL,
			holder_name TEXT NOT NULL,
			verified BOOLEAN NOT NULL DEFAULT FALSE,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE payment_requests (
			id BIGINT PRIMARY KEY,
			merchant_id BIGINT NOT NULL,
			bank_account_id BIGINT,
			kind TEXT NOT NULL,
			amount BIGINT NOT NULL,
			currency TEXT NOT NULL,
			status TEXT NOT NULL,
			rejected_reason TEXT,
			notes TEXT,
			processed_at DATETIME,
			processed_by TEXT,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE provider_payments (
			id BIGINT PRIMARY KEY,
			payment_request_id BIGINT NOT NULL UNIQUE,
			provider TEXT NOT NULL,
			provider_payment_id TEXT NOT NULL,
			raw_status TEXT,
			raw_payload TEXT,
			destination_account TEXT,
			instructions TEXT,
			expires_at DATETIME,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE UNIQUE INDEX ux_provider_payments_provider_ref ON provider_payments(provider, provider_payment_id)`,
		`CREATE TABLE provider_disbursements (
			id BIGINT PRIMARY KEY,
			payment_request_id BIGINT NOT NULL UNIQUE,
			provider TEXT NOT NULL,
			provider_payout_id TEXT NOT NULL,
			raw_status TEXT,
			raw_payload TEXT,
			bank_code TEXT,
			account_no TEXT,
			holder_name TEXT,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
		`CREATE TABLE provider_webhook_logs (
			id BIGINT PRIMARY KEY,
			provider TEXT NOT NULL,
			topic TEXT,
			signature TEXT,
			headers TEXT,
			payload TEXT,
			verified BOOLEAN NOT NULL,
			verify_error TEXT,
			received_at DATETIME NOT NULL
		)`,
		`CREATE TABLE ledger_entries (
			id BIGINT PRIMARY KEY,
			merchant_id BIGINT NOT NULL,
			amount BIGINT NOT NULL,
			reason TEXT,
			payment_request_id BIGINT UNIQUE,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		)`,
	}
	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("create schema: %v", err)
		}
	}
	return db
}

type fixture struct {
	db       *gorm.DB
	node     *snowflake.Node
	ledger   ledgerdomain.Service
	payments paymentdomain.Service
	webhooks paymentwebhook.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := setupTestDB(t)

	node, err := snowflake.NewNode(12)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}

	adapter, err := sandbox.NewFactory().NewAdapter(paymentdomain.AdapterConfig{
		Provider: "sandbox",
		Config: map[string]any{
			"webhook_secret": webhookSecret,
		},
	})
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}

	repo := paymentrepo.Provide()
	ledgerSvc := ledgerservice.NewService(ledgerservice.Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.NewSystemClock(),
	})
	paymentSvc := paymentservice.NewService(paymentservice.Params{
		DB:      db,
		Log:     zap.NewNop(),
		GenID:   node,
		Clock:   clock.NewSystemClock(),
		Repo:    repo,
		Adapter: adapter,
		Ledger:  ledgerSvc,
	})
	webhookSvc := paymentwebhook.NewService(paymentwebhook.Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    node,
		Clock:    clock.NewSystemClock(),
		Repo:     repo,
		Adapter:  adapter,
		Payments: paymentSvc,
	})

	return &fixture{db: db, node: node, ledger: ledgerSvc, payments: paymentSvc, webhooks: webhookSvc}
}

func (f *fixture) seedMerchant(t *testing.T, balance int64) snowflake.ID {
	t.Helper()
	id := f.node.Generate()
	now := time.Now().UTC()
	err := f.db.Exec(
		`INSERT INTO merchants (id, name, status, balance, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, "Test Merchant", merchantdomain.MerchantStatusActive, balance, now, now,
	).Error
	if err != nil {
		t.Fatalf("seed merchant: %v", err)
	}
	return id
}

func (f *fixture) createDeposit(t *testing.T, merchantID snowflake.ID, amount int64) *paymentdomain.DepositResult {
	t.Helper()
	result, err := f.payments.CreateDeposit(context.Background(), paymentdomain.CreateDepositInput{
		MerchantID: merchantID,
		Amount:     amount,
		Currency:   "IDR",
		BankCode:   "BCA",
	})
	if err != nil {
		t.Fatalf("CreateDeposit: %v", err)
	}
	return result
}

func signedHeaders(payload []byte) http.Header {
	headers := http.Header{}
	headers.Set("Sandbox-Signature", sandbox.Sign(webhookSecret, payload))
	return headers
}

func paidPayload(providerPaymentID string) []byte {
	return []byte(fmt.Sprintf(`{"event":"payment.paid","object_id":"%s","status":"PAID"}`, providerPaymentID))
}

func (f *fixture) assertCount(t *testing.T, query string, want int64, args ...any) {
	t.Helper()
	var got int64
	if err := f.db.Raw(query, args...).Scan(&got).Error; err != nil {
		t.Fatalf("count query: %v", err)
	}
	if got != want {
		t.Fatalf("expected count %d, got %d (query %s)", want, got, query)
	}
}

func TestIngestVerifiedWebhookApprovesDeposit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	merchantID := f.seedMerchant(t, 0)
	deposit := f.createDeposit(t, merchantID, 250000)

	payload := paidPayload(deposit.Provider.ProviderPaymentID)
	result, err := f.webhooks.Ingest(ctx, "sandbox", payload, signedHeaders(payload))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if !result.Verified || !result.Terminal || result.Ignored {
		t.Fatalf("unexpected result %+v", result)
	}

	balance, err := f.ledger.MerchantBalance(ctx, merchantID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 250000 {
		t.Fatalf("expected balance 250000, got %d", balance)
	}
	f.assertCount(t, `SELECT COUNT(*) FROM provider_webhook_logs WHERE verified = ?`, 1, true)
}

func TestIngestBadSignatureIsLoggedAndRejected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	merchantID := f.seedMerchant(t, 0)
	deposit := f.createDeposit(t, merchantID, 250000)

	payload := paidPayload(deposit.Provider.ProviderPaymentID)
	headers := http.Header{}
	headers.Set("Sandbox-Signature", sandbox.Sign("wrong_secret", payload))

	_, err := f.webhooks.Ingest(ctx, "sandbox", payload, headers)
	if !errors.Is(err, paymentdomain.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}

	// The delivery is still recorded, but nothing was routed.
	f.assertCount(t, `SELECT COUNT(*) FROM provider_webhook_logs WHERE verified = ?`, 1, false)
	f.assertCount(t, `SELECT COUNT(*) FROM ledger_entries`, 0)

	balance, err := f.ledger.MerchantBalance(ctx, merchantID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 0 {
		t.Fatalf("expected balance 0, got %d", balance)
	}
}

func TestDuplicateWebhookDoesNotDoubleCredit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	merchantID := f.seedMerchant(t, 0)
	deposit := f.createDeposit(t, merchantID, 250000)

	payload := paidPayload(deposit.Provider.ProviderPaymentID)
	if _, err := f.webhooks.Ingest(ctx, "sandbox", payload, signedHeaders(payload)); err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	result, err := f.webhooks.Ingest(ctx, "sandbox", payload, signedHeaders(payload))
	if err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	if !result.Terminal {
		t.Fatal("expected second delivery to report terminal")
	}

	balance, err := f.ledger.MerchantBalance(ctx, merchantID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 250000 {
		t.Fatalf("expected balance 250000, got %d", balance)
	}
	f.assertCount(t, `SELECT COUNT(*) FROM ledger_entries`, 1)
	f.assertCount(t, `SELECT COUNT(*) FROM provider_webhook_logs`, 2)
}

func TestUnmatchedWebhookIsIgnored(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.seedMerchant(t, 0)

	payload := paidPayload("sbx_pay_unknown")
	result, err := f.webhooks.Ingest(ctx, "sandbox", payload, signedHeaders(payload))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if !result.Ignored {
		t.Fatalf("expected ignored result, got %+v", result)
	}
	f.assertCount(t, `SELECT COUNT(*) FROM provider_webhook_logs`, 1)
}

func TestIgnoredTopicIsAcknowledged(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	payload := []byte(`{"event":"account.updated","object_id":"acc_1","status":"ok"}`)
	result, err := f.webhooks.Ingest(ctx, "sandbox", payload, signedHeaders(payload))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if !result.Ignored {
		t.Fatalf("expected ignored result, got %+v", result)
	}
}

func TestUnknownProviderIsRefused(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.webhooks.Ingest(ctx, "stripe", []byte(`{}`), http.Header{})
	if !errors.Is(err, paymentdomain.ErrProviderNotFound) {
		t.Fatalf("expected ErrProviderNotFound, got %v", err)
	}
}
