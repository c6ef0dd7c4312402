package payment

import (
	"go.uber.org/fx"

	"github.com/aruspay/aruspay/internal/config"
	"github.com/aruspay/aruspay/internal/payment/adapters"
	"github.com/aruspay/aruspay/internal/payment/adapters/sandbox"
	"github.com/aruspay/aruspay/internal/payment/adapters/xenpay"
	"github.com/aruspay/aruspay/internal/payment/domain"
	"github.com/aruspay/aruspay/internal/payment/repository"
	"github.com/aruspay/aruspay/internal/payment/service"
	"github.com/aruspay/aruspay/internal/payment/webhook"
)

var Module = fx.Module("payment",
	fx.Provide(
		repository.Provide,
		NewRegistry,
		NewActiveAdapter,
		service.NewService,
		webhook.NewService,
	),
)

func NewRegistry() *adapters.Registry {
	return adapters.NewRegistry(
		sandbox.NewFactory(),
		xenpay.NewFactory(),
	)
}

// NewActiveAdapter builds the adapter named by PAYMENT_PROVIDER. One
// provider is active per deployment.
func NewActiveAdapter(cfg config.Config, registry *adapters.Registry) (domain.Adapter, error) {
	adapterCfg := domain.AdapterConfig{
		Provider: cfg.Provider,
		Live:     cfg.ProviderLive,
	}
	switch cfg.Provider {
	case "xenpay":
		adapterCfg.Config = map[string]any{
			"base_url":       cfg.Xenpay.BaseURL,
			"api_key":        cfg.Xenpay.APIKey,
			"webhook_secret": cfg.Xenpay.WebhookSecret,
		}
	default:
		adapterCfg.Config = map[string]any{
			"webhook_secret": cfg.SandboxWebhookSecret,
		}
	}
	return registry.NewAdapter(cfg.Provider, adapterCfg)
}
