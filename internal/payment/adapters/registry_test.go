package adapters

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aruspay/aruspay/internal/payment/adapters/sandbox"
	"github.com/aruspay/aruspay/internal/payment/adapters/xenpay"
	"github.com/aruspay/aruspay/internal/payment/domain"
)

func TestRegistryResolvesProviders(t *testing.T) {
	registry := NewRegistry(sandbox.NewFactory(), xenpay.NewFactory())

	assert.True(t, registry.ProviderExists("sandbox"))
	assert.True(t, registry.ProviderExists("  Xenpay  "))
	assert.False(t, registry.ProviderExists("stripe"))

	adapter, err := registry.NewAdapter("sandbox", domain.AdapterConfig{
		Provider: "sandbox",
		Config:   map[string]any{"webhook_secret": "secret"},
	})
	require.NoError(t, err)
	assert.Equal(t, "sandbox", adapter.Provider())
	assert.False(t, adapter.Live())
}

func TestRegistryUnknownProvider(t *testing.T) {
	registry := NewRegistry(sandbox.NewFactory())

	_, err := registry.NewAdapter("stripe", domain.AdapterConfig{})
	assert.ErrorIs(t, err, domain.ErrProviderNotFound)
}

func TestXenpayFactoryRequiresAPIKey(t *testing.T) {
	registry := NewRegistry(xenpay.NewFactory())

	_, err := registry.NewAdapter("xenpay", domain.AdapterConfig{
		Provider: "xenpay",
		Config:   map[string]any{"webhook_secret": "whsec"},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}
