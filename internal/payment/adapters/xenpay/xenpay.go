package xenpay

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aruspay/aruspay/internal/payment/domain"
)

const defaultBaseURL = "https://api.xenpay.co"

// Factory builds Xenpay adapters from credentials in configuration.
type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

func (f *Factory) Provider() string {
	return "xenpay"
}

func (f *Factory) NewAdapter(cfg domain.AdapterConfig) (domain.Adapter, error) {
	apiKey, _ := cfg.Config["api_key"].(string)
	if strings.TrimSpace(apiKey) == "" {
		return nil, domain.ErrInvalidConfig
	}
	secret, _ := cfg.Config["webhook_secret"].(string)
	baseURL, _ := cfg.Config["base_url"].(string)
	if strings.TrimSpace(baseURL) == "" {
		baseURL = defaultBaseURL
	}
	return &Adapter{
		apiKey:  strings.TrimSpace(apiKey),
		secret:  strings.TrimSpace(secret),
		baseURL: strings.TrimRight(baseURL, "/"),
		live:    cfg.Live,
		client:  &http.Client{Timeout: 15 * time.Second},
	}, nil
}

// Adapter talks to the Xenpay REST API. Raw provider statuses are passed
// through untouched; interpretation happens in the normalizer.
type Adapter struct {
	apiKey  string
	secret  string
	baseURL string
	live    bool
	client  *http.Client
}

func (a *Adapter) Provider() string { return "xenpay" }
func (a *Adapter) Live() bool       { return a.live }

type virtualAccountResponse struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	AccountNumber string `json:"account_number"`
	BankCode      string `json:"bank_code"`
	Instructions  string `json:"instructions"`
	ExpiresAt     string `json:"expires_at"`
}

func (a *Adapter) CreateDepositIntent(ctx context.Context, in domain.CreateDepositIntentInput) (*domain.DepositIntent, error) {
	body := map[string]any{
		"external_id":   in.TID,
		"reference_id":  in.UID,
		"amount":        in.Amount,
		"currency":      in.Currency,
		"bank_code":     in.BankCode,
		"customer_name": in.CustomerName,
		"method":        in.MethodCode,
	}
	raw, err := a.do(ctx, http.MethodPost, "/v1/virtual_accounts", body)
	if err != nil {
		return nil, err
	}

	var resp virtualAccountResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("xenpay: decode virtual account: %w", err)
	}
	if resp.ID == "" {
		return nil, fmt.Errorf("xenpay: virtual account response missing id")
	}

	intent := &domain.DepositIntent{
		ProviderPaymentID:  resp.ID,
		Instructions:       resp.Instructions,
		DestinationAccount: resp.AccountNumber,
		RawStatus:          resp.Status,
		RawPayload:         raw,
	}
	if resp.ExpiresAt != "" {
		if expires, err := time.Parse(time.RFC3339, resp.ExpiresAt); err == nil {
			intent.ExpiresAt = &expires
		}
	}
	return intent, nil
}

func (a *Adapter) GetDepositStatus(ctx context.Context, providerPaymentID string) (*domain.StatusSnapshot, error) {
	return a.snapshot(ctx, "/v1/payments/"+providerPaymentID)
}

func (a *Adapter) ValidateBankAccount(ctx context.Context, bankCode, accountNo, name string) (*domain.BankValidation, error) {
	body := map[string]any{
		"bank_code":      bankCode,
		"account_number": accountNo,
		"account_name":   name,
	}
	raw, err := a.do(ctx, http.MethodPost, "/v1/bank_account_inquiry", body)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Valid      bool   `json:"valid"`
		HolderName string `json:"holder_name"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("xenpay: decode inquiry: %w", err)
	}
	return &domain.BankValidation{OK: resp.Valid, HolderName: resp.HolderName, RawPayload: raw}, nil
}

func (a *Adapter) CreateDisbursement(ctx context.Context, in domain.CreateDisbursementInput) (*domain.DisbursementReceipt, error) {
	body := map[string]any{
		"external_id":    in.TID,
		"reference_id":   in.UID,
		"amount":         in.Amount,
		"currency":       in.Currency,
		"bank_code":      in.BankCode,
		"account_number": in.AccountNo,
		"account_name":   in.HolderName,
	}
	raw, err := a.do(ctx, http.MethodPost, "/v1/disbursements", body)
	if err != nil {
		return nil, err
	}

	var resp struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("xenpay: decode disbursement: %w", err)
	}
	if resp.ID == "" {
		return nil, fmt.Errorf("xenpay: disbursement response missing id")
	}
	return &domain.DisbursementReceipt{
		ProviderPayoutID: resp.ID,
		RawStatus:        resp.Status,
		RawPayload:       raw,
	}, nil
}

func (a *Adapter) GetDisbursementStatus(ctx context.Context, providerPayoutID string) (*domain.StatusSnapshot, error) {
	return a.snapshot(ctx, "/v1/disbursements/"+providerPayoutID)
}

func (a *Adapter) snapshot(ctx context.Context, path string) (*domain.StatusSnapshot, error) {
	raw, err := a.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	var resp struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("xenpay: decode status: %w", err)
	}
	return &domain.StatusSnapshot{RawStatus: resp.Status, RawPayload: raw}, nil
}

func (a *Adapter) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+a.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		return raw, nil
	}

	var apiErr struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	_ = json.Unmarshal(raw, &apiErr)
	message := apiErr.Error.Message
	if message == "" {
		message = strings.TrimSpace(string(raw))
	}
	if resp.StatusCode >= http.StatusBadRequest && resp.StatusCode < http.StatusInternalServerError {
		return nil, fmt.Errorf("xenpay: %s %s: %s: %w", method, path, message, domain.ErrProviderRejected)
	}
	return nil, fmt.Errorf("xenpay: %s %s: status %d: %s", method, path, resp.StatusCode, message)
}

// VerifyWebhook checks the HMAC-SHA256 signature Xenpay sends over the
// raw request body. The signed string is "<timestamp>.<body>".
func (a *Adapter) VerifyWebhook(payload []byte, headers http.Header) error {
	if a.secret == "" {
		return domain.ErrInvalidSignature
	}
	signature := strings.TrimSpace(headers.Get("Xenpay-Signature"))
	timestamp := strings.TrimSpace(headers.Get("Xenpay-Timestamp"))
	if signature == "" || timestamp == "" {
		return domain.ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, []byte(a.secret))
	_, _ = mac.Write([]byte(timestamp))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write(payload)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(signature), []byte(expected)) {
		return domain.ErrInvalidSignature
	}
	return nil
}

func (a *Adapter) ParseWebhook(payload []byte) (*domain.WebhookEvent, error) {
	var event struct {
		Event string `json:"event"`
		Data  struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, domain.ErrInvalidPayload
	}
	if event.Data.ID == "" {
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
		ProviderObjectID: event.Data.ID,
		RawStatus:        event.Data.Status,
	}, nil
}

// Sign computes the webhook signature for a timestamp and payload.
// Exposed for tests that emit Xenpay-shaped webhooks.
func Sign(secret, timestamp string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(timestamp))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
