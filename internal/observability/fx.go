package observability

import (
	"github.com/aruspay/aruspay/internal/observability/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

// Module provides the prometheus metrics for the payment core.
var Module = fx.Module("observability",
	fx.Provide(func() *metrics.Metrics {
		return metrics.New(prometheus.DefaultRegisterer)
	}),
)
