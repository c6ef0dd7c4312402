package sandbox

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/aruspay/aruspay/internal/payment/domain"
	"github.com/google/uuid"
)

// Factory builds the in-process sandbox provider used in development and
// tests. It never reports live, so the periodic sweep stays disabled.
type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Provider() string {
	return "sandbox"
}

func (f *Factory) NewAdapter(cfg domain.AdapterConfig) (domain.Adapter, error) {
	secret, _ := cfg.Config["webhook_secret"].(string)
	settleAfter := 2
	if raw, ok := cfg.Config["settle_after"].(int); ok && raw > 0 {
		settleAfter = raw
	}
	return &Adapter{
		secret:      strings.TrimSpace(secret),
		settleAfter: settleAfter,
		payments:    map[string]*object{},
		payouts:     map[string]*object{},
	}, nil
}

type object struct {
	polls  int
	status string
	amount int64
}

// Adapter keeps provider objects in memory and settles them after a fixed
// number of status fetches.
type Adapter struct {
	mu          sync.Mutex
	secret      string
	settleAfter int
	payments    map[string]*object
	payouts     map[string]*object
}

func (a *Adapter) Provider() string { return "sandbox" }
func (a *Adapter) Live() bool       { return false }

func (a *Adapter) CreateDepositIntent(ctx context.Context, in domain.CreateDepositIntentInput) (*domain.DepositIntent, error) {
	if in.Amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	id := "sbx_pay_" + uuid.NewString()
	a.payments[id] = &object{status: "PENDING", amount: in.Amount}

	account := fmt.Sprintf("%s-%08d", strings.ToUpper(in.BankCode), len(a.payments))
	expires := time.Now().UTC().Add(24 * time.Hour)
	payload, _ := json.Marshal(map[string]any{
		"id":     id,
		"status": "PENDING",
		"amount": in.Amount,
	})

	return &domain.DepositIntent{
		ProviderPaymentID:  id,
		ExpiresAt:          &expires,
		Instructions:       "transfer to the virtual account before expiry",
		DestinationAccount: account,
		RawStatus:          "PENDING",
		RawPayload:         payload,
	}, nil
}

func (a *Adapter) GetDepositStatus(ctx context.Context, providerPaymentID string) (*domain.StatusSnapshot, error) {
	return a.fetch(a.payments, providerPaymentID, "PAID")
}

func (a *Adapter) ValidateBankAccount(ctx context.Context, bankCode, accountNo, name string) (*domain.BankValidation, error) {
	ok := len(accountNo) >= 6 && strings.IndexFunc(accountNo, func(r rune) bool { return r < '0' || r > '9' }) < 0
	holder := strings.ToUpper(strings.TrimSpace(name))
	if holder == "" {
		holder = "SANDBOX HOLDER"
	}
	payload, _ := json.Marshal(map[string]any{
		"bank_code":  bankCode,
		"account_no": accountNo,
		"valid":      ok,
	})
	return &domain.BankValidation{OK: ok, HolderName: holder, RawPayload: payload}, nil
}

func (a *Adapter) CreateDisbursement(ctx context.Context, in domain.CreateDisbursementInput) (*domain.DisbursementReceipt, error) {
	if in.Amount <= 0 {
		return nil, domain.ErrInvalidAmount
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	id := "sbx_dis_" + uuid.NewString()
	a.payouts[id] = &object{status: "queued", amount: in.Amount}
	payload, _ := json.Marshal(map[string]any{
		"id":     id,
		"status": "queued",
		"amount": in.Amount,
	})
	return &domain.DisbursementReceipt{
		ProviderPayoutID: id,
		RawStatus:        "queued",
		RawPayload:       payload,
	}, nil
}

func (a *Adapter) GetDisbursementStatus(ctx context.Context, providerPayoutID string) (*domain.StatusSnapshot, error) {
	return a.fetch(a.payouts, providerPayoutID, "completed")
}

func (a *Adapter) fetch(objects map[string]*object, id string, settled string) (*domain.StatusSnapshot, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	obj, ok := objects[id]
	if !ok {
		return nil, fmt.Errorf("sandbox: unknown object %s", id)
	}
	obj.polls++
	if obj.polls >= a.settleAfter {
		obj.status = settled
	}
	payload, _ := json.Marshal(map[string]any{
		"id":     id,
		"status": obj.status,
		"amount": obj.amount,
	})
	return &domain.StatusSnapshot{RawStatus: obj.status, RawPayload: payload}, nil
}

func (a *Adapter) VerifyWebhook(payload []byte, headers http.Header) error {
	if a.secret == "" {
		return domain.ErrInvalidSignature
	}
	signature := strings.TrimSpace(headers.Get("Sandbox-Signature"))
	if signature == "" {
		return domain.ErrInvalidSignature
	}
	mac := hmac.New(sha256.New, []byte(a.secret))
	_, _ = mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return domain.ErrInvalidSignature
	}
	return nil
}

func (a *Adapter) ParseWebhook(payload []byte) (*domain.WebhookEvent, error) {
	var event struct {
		Event    string `json:"event"`
		ObjectID string `json:"object_id"`
		Status   string `json:"status"`
	}
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, domain.ErrInvalidPayload
	}
	if strings.TrimSpace(event.ObjectID) == "" {
		return nil, domain.ErrInvalidPayload
	}

	var kind domain.OperationKind
	switch {
	case strings.HasPrefix(event.Event, "payment."):
		kind = domain.OperationAccept
	case strings.HasPrefix(event.Event, "disbursement."):
		kind = domain.OperationSend
	default:
		return nil, domain.ErrEventIgnored
	}

	return &domain.WebhookEvent{
		Kind:             kind,
		Topic:            event.Event,
		ProviderObjectID: event.ObjectID,
		RawStatus:        event.Status,
	}, nil
}

// Sign computes the webhook signature for a payload. Exposed for dev
// tooling and tests that emit sandbox webhooks.
func Sign(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
