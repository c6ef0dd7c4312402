package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/aruspay/aruspay/internal/clock"
	obsmetrics "github.com/aruspay/aruspay/internal/observability/metrics"
	"github.com/aruspay/aruspay/internal/payment/domain"
)

// Result reports what happened to one inbound webhook. The log row is
// written in every case, including signature failures.
type Result struct {
	LogID    snowflake.ID `json:"log_id"`
	Verified bool         `json:"verified"`
	Ignored  bool         `json:"ignored"`
	Terminal bool         `json:"terminal"`
}

type Service interface {
	Ingest(ctx context.Context, provider string, payload []byte, headers http.Header) (*Result, error)
}

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       domain.Repository
	Adapter    domain.Adapter
	Payments   domain.Service
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

type service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       domain.Repository
	adapter    domain.Adapter
	payments   domain.Service
	obsMetrics *obsmetrics.Metrics
}

func NewService(p Params) Service {
	return &service{
		db:         p.DB,
		log:        p.Log.Named("payment.webhook"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		adapter:    p.Adapter,
		payments:   p.Payments,
		obsMetrics: p.ObsMetrics,
	}
}

// Ingest verifies the webhook signature, persists the delivery log, and
// only then routes the event. The order is load-bearing: the log row is
// written even when verification or parsing fails.
func (s *service) Ingest(ctx context.Context, provider string, payload []byte, headers http.Header) (*Result, error) {
	if provider != s.adapter.Provider() {
		return nil, domain.ErrProviderNotFound
	}

	verifyErr := s.adapter.VerifyWebhook(payload, headers)
	event, parseErr := s.adapter.ParseWebhook(payload)

	topic := ""
	if event != nil {
		topic = event.Topic
	}
	logID, err := s.persistLog(ctx, provider, topic, payload, headers, verifyErr)
	if err != nil {
		return nil, err
	}

	if verifyErr != nil {
		s.obsMetrics.RecordWebhook(provider, "invalid_signature")
		s.log.Warn("webhook rejected",
			zap.String("provider", provider),
			zap.String("log_id", logID.String()),
			zap.Error(verifyErr),
		)
		return nil, domain.ErrInvalidSignature
	}
	if parseErr != nil {
		if errors.Is(parseErr, domain.ErrEventIgnored) {
			s.obsMetrics.RecordWebhook(provider, "ignored")
			return &Result{LogID: logID, Verified: true, Ignored: true}, nil
		}
		s.obsMetrics.RecordWebhook(provider, "invalid_payload")
		return nil, parseErr
	}

	terminal, err := s.payments.ApplyProviderStatus(ctx, event.Kind, provider, event.ProviderObjectID, event.RawStatus, payload, "webhook:"+provider)
	if err != nil {
		// A webhook for an object this system never created is logged
		// and acknowledged, not retried by the provider forever.
		if errors.Is(err, domain.ErrRecordNotFound) {
			s.obsMetrics.RecordWebhook(provider, "unmatched")
			s.log.Warn("webhook unmatched",
				zap.String("provider", provider),
				zap.String("topic", event.Topic),
				zap.String("provider_object_id", event.ProviderObjectID),
			)
			return &Result{LogID: logID, Verified: true, Ignored: true}, nil
		}
		s.obsMetrics.RecordWebhook(provider, "error")
		return nil, err
	}

	s.obsMetrics.RecordWebhook(provider, "routed")
	return &Result{LogID: logID, Verified: true, Terminal: terminal}, nil
}

func (s *service) persistLog(ctx context.Context, provider, topic string, payload []byte, headers http.Header, verifyErr error) (snowflake.ID, error) {
	headerJSON, _ := json.Marshal(flattenHeaders(headers))

	body := payload
	if !json.Valid(body) {
		body, _ = json.Marshal(string(payload))
	}

	verifyError := ""
	if verifyErr != nil {
		verifyError = verifyErr.Error()
	}

	signature := headers.Get("Xenpay-Signature")
	if signature == "" {
		signature = headers.Get("Sandbox-Signature")
	}

	record := &domain.WebhookLog{
		ID:          s.genID.Generate(),
		Provider:    provider,
		Topic:       topic,
		Signature:   signature,
		Headers:     headerJSON,
		Payload:     body,
		Verified:    verifyErr == nil,
		VerifyError: verifyError,
		ReceivedAt:  s.clock.Now(),
	}
	if err := s.repo.InsertWebhookLog(ctx, s.db, record); err != nil {
		return 0, err
	}
	return record.ID, nil
}

func flattenHeaders(headers http.Header) map[string]string {
	flat := make(map[string]string, len(headers))
	for key := range headers {
		flat[key] = headers.Get(key)
	}
	return flat
}
