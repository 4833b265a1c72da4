// Package telemetry records dictation episode metrics with OpenTelemetry.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

const meterName = "dictakey"

// Provider owns the process MeterProvider. Metrics are pulled through a
// manual reader and summarized at shutdown; nothing is exported over the network.
type Provider struct {
	provider *sdkmetric.MeterProvider
	reader   *sdkmetric.ManualReader
}

// Setup installs a MeterProvider as the global otel provider.
func Setup() *Provider {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)
	return &Provider{provider: provider, reader: reader}
}

// MeterProvider exposes the underlying provider.
func (p *Provider) MeterProvider() metric.MeterProvider {
	return p.provider
}

// Totals collects every int64 sum and returns its total per instrument name.
func (p *Provider) Totals(ctx context.Context) (map[string]int64, error) {
	var rm metricdata.ResourceMetrics
	if err := p.reader.Collect(ctx, &rm); err != nil {
		return nil, fmt.Errorf("collect metrics: %w", err)
	}

	totals := make(map[string]int64)
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, point := range sum.DataPoints {
				totals[m.Name] += point.Value
			}
		}
	}
	return totals, nil
}

// Shutdown logs a summary of the collected totals and stops the provider.
func (p *Provider) Shutdown(ctx context.Context, logger *slog.Logger) error {
	var errs []error
	totals, err := p.Totals(ctx)
	if err != nil {
		errs = append(errs, err)
	} else if logger != nil {
		names := make([]string, 0, len(totals))
		for name := range totals {
			names = append(names, name)
		}
		sort.Strings(names)
		attrs := make([]any, 0, len(names))
		for _, name := range names {
			attrs = append(attrs, slog.Int64(name, totals[name]))
		}
		logger.Info("session metrics", attrs...)
	}
	if err := p.provider.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Metrics holds the dictation instruments.
type Metrics struct {
	episodes metric.Int64Counter
	outcomes metric.Int64Counter
	ignored  metric.Int64Counter
	latency  metric.Float64Histogram
}

// NewMetrics creates the instruments on mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	meter := mp.Meter(meterName)

	episodes, err := meter.Int64Counter("dictation.episodes",
		metric.WithDescription("Recording episodes started"))
	if err != nil {
		return nil, err
	}
	outcomes, err := meter.Int64Counter("dictation.outcomes",
		metric.WithDescription("Episodes finished, by outcome"))
	if err != nil {
		return nil, err
	}
	ignored, err := meter.Int64Counter("dictation.ignored_presses",
		metric.WithDescription("Hotkey presses ignored while transcribing"))
	if err != nil {
		return nil, err
	}
	latency, err := meter.Float64Histogram("dictation.transcription.duration",
		metric.WithDescription("Time spent awaiting transcription"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return &Metrics{episodes: episodes, outcomes: outcomes, ignored: ignored, latency: latency}, nil
}

func (m *Metrics) EpisodeStarted(ctx context.Context) {
	m.episodes.Add(ctx, 1)
}

func (m *Metrics) EpisodeFinished(ctx context.Context, outcome string) {
	m.outcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *Metrics) TranscriptionLatency(ctx context.Context, d time.Duration, failed bool) {
	m.latency.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.Bool("failed", failed)))
}

func (m *Metrics) PressIgnored(ctx context.Context) {
	m.ignored.Add(ctx, 1)
}
