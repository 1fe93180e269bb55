package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "kursd"

// Metrics holds the rate engine's metric instruments.
type Metrics struct {
	FetchAttempts    metric.Int64Counter
	FetchFailures    metric.Int64Counter
	ProviderSwitches metric.Int64Counter
	Fallbacks        metric.Int64Counter
	Notifications    metric.Int64Counter
	FetchDuration    metric.Float64Histogram
}

// NewMetrics creates all metric instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.FetchAttempts, err = meter.Int64Counter("kursd.fetch.attempts",
		metric.WithDescription("Number of provider fetch attempts"))
	if err != nil {
		return nil, err
	}

	m.FetchFailures, err = meter.Int64Counter("kursd.fetch.failures",
		metric.WithDescription("Number of failed provider fetch attempts"))
	if err != nil {
		return nil, err
	}

	m.ProviderSwitches, err = meter.Int64Counter("kursd.provider.switches",
		metric.WithDescription("Number of provider failovers"))
	if err != nil {
		return nil, err
	}

	m.Fallbacks, err = meter.Int64Counter("kursd.rate.fallbacks",
		metric.WithDescription("Number of refreshes served from cached history"))
	if err != nil {
		return nil, err
	}

	m.Notifications, err = meter.Int64Counter("kursd.notifications",
		metric.WithDescription("Number of notifications dispatched"))
	if err != nil {
		return nil, err
	}

	m.FetchDuration, err = meter.Float64Histogram("kursd.fetch.duration_seconds",
		metric.WithDescription("Provider fetch duration in seconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
