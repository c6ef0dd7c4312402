package xenpay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aruspay/aruspay/internal/payment/domain"
)

func newTestAdapter(t *testing.T, baseURL string) *Adapter {
	t.Helper()
	adapter, err := NewFactory().NewAdapter(domain.AdapterConfig{
		Provider: "xenpay",
		Config: map[string]any{
			"api_key":        "sk_test_123",
			"webhook_secret": "whsec_test",
			"base_url":       baseURL,
		},
	})
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}
	return adapter.(*Adapter)
}

func TestCreateDepositIntent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/virtual_accounts" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk_test_123" {
			t.Fatalf("unexpected authorization header %q", got)
		}

		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if body["external_id"] != "TX-1" {
			t.Fatalf("unexpected external_id %v", body["external_id"])
		}

		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":             "va_123",
			"status":         "PENDING",
			"account_number": "8800123456",
			"bank_code":      "BCA",
			"expires_at":     "2026-01-02T15:04:05Z",
		})
	}))
	defer server.Close()

	adapter := newTestAdapter(t, server.URL)
	intent, err := adapter.CreateDepositIntent(context.Background(), domain.CreateDepositIntentInput{
		TID:      "TX-1",
		UID:      "U-1",
		Amount:   250000,
		Currency: "IDR",
		BankCode: "BCA",
	})
	if err != nil {
		t.Fatalf("CreateDepositIntent: %v", err)
	}
	if intent.ProviderPaymentID != "va_123" {
		t.Fatalf("expected provider payment id va_123, got %s", intent.ProviderPaymentID)
	}
	if intent.RawStatus != "PENDING" {
		t.Fatalf("expected raw status PENDING, got %s", intent.RawStatus)
	}
	if intent.ExpiresAt == nil {
		t.Fatal("expected expiry to be parsed")
	}
	if intent.DestinationAccount != "8800123456" {
		t.Fatalf("unexpected destination account %s", intent.DestinationAccount)
	}
}

func TestClientErrorWrapsProviderRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"code": "invalid_bank", "message": "bank code not supported"},
		})
	}))
	defer server.Close()

	adapter := newTestAdapter(t, server.URL)
	_, err := adapter.CreateDisbursement(context.Background(), domain.CreateDisbursementInput{
		TID:      "TX-2",
		Amount:   10000,
		Currency: "IDR",
		BankCode: "ZZZ",
	})
	if !errors.Is(err, domain.ErrProviderRejected) {
		t.Fatalf("expected ErrProviderRejected, got %v", err)
	}
}

func TestVerifyWebhook(t *testing.T) {
	adapter := newTestAdapter(t, "http://unused")
	payload := []byte(`{"event":"payment.paid","data":{"id":"va_123","status":"PAID"}}`)
	timestamp := "1756600000"

	headers := http.Header{}
	headers.Set("Xenpay-Timestamp", timestamp)
	headers.Set("Xenpay-Signature", Sign("whsec_test", timestamp, payload))
	if err := adapter.VerifyWebhook(payload, headers); err != nil {
		t.Fatalf("expected valid signature, got %v", err)
	}

	headers.Set("Xenpay-Signature", Sign("wrong_secret", timestamp, payload))
	if err := adapter.VerifyWebhook(payload, headers); !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}

	headers.Del("Xenpay-Timestamp")
	if err := adapter.VerifyWebhook(payload, headers); !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature for missing timestamp, got %v", err)
	}
}

func TestParseWebhook(t *testing.T) {
	adapter := newTestAdapter(t, "http://unused")

	event, err := adapter.ParseWebhook([]byte(`{"event":"disbursement.completed","data":{"id":"dis_9","status":"COMPLETED"}}`))
	if err != nil {
		t.Fatalf("ParseWebhook: %v", err)
	}
	if event.Kind != domain.OperationSend {
		t.Fatalf("expected send operation, got %s", event.Kind)
	}
	if event.ProviderObjectID != "dis_9" || event.RawStatus != "COMPLETED" {
		t.Fatalf("unexpected event %+v", event)
	}

	if _, err := adapter.ParseWebhook([]byte(`{"event":"account.updated","data":{"id":"acc_1"}}`)); !errors.Is(err, domain.ErrEventIgnored) {
		t.Fatalf("expected ErrEventIgnored, got %v", err)
	}
	if _, err := adapter.ParseWebhook([]byte(`not json`)); !errors.Is(err, domain.ErrInvalidPayload) {
		t.Fatalf("expected ErrInvalidPayload, got %v", err)
	}
}
