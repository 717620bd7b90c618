package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	"jagriti-backend/lib/configutil"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

type OtlpConnConfig struct {
	GrpcEndpoint string            `json:"grpc_endpoint"`
	HttpEndpoint string            `json:"http_endpoint"`
	Headers      map[string]string `json:"headers"`
}

func (c OtlpConnConfig) enabled() bool {
	return c.GrpcEndpoint != "" || c.HttpEndpoint != ""
}

type OtlpConfig struct {
	Traces  OtlpConnConfig `json:"traces"`
	Metrics OtlpConnConfig `json:"metrics"`
}

type Config struct {
	Otlp OtlpConfig `json:"otlp"`
	// Environment is recorded as deployment.environment on every signal.
	Environment string `json:"environment"`
	// SampleRatio is the fraction of root spans kept, zero keeps all of them.
	SampleRatio float64 `json:"sample_ratio"`
	// MetricInterval is how often metrics are exported, 15s when zero.
	MetricInterval configutil.Duration `json:"metric_interval"`
}

// Enabled reports whether any signal has an export endpoint.
func (c Config) Enabled() bool {
	return c.Otlp.Traces.enabled() || c.Otlp.Metrics.enabled()
}

var (
	shutdownLock  sync.Mutex
	shutdownFuncs []func(context.Context) error
)

// Tracer returns a tracer from the global provider, spans started before
// Setup is called are dropped.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// Meter returns a meter from the global provider.
func Meter(name string) metric.Meter {
	return otel.Meter(name)
}

// Setup installs the global tracer and meter providers, signals without a
// configured endpoint stay on the no-op provider.
func Setup(ctx context.Context, serviceName string, config Config) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*15)
	defer cancel()

	r, err := newResource(serviceName, config.Environment)
	if err != nil {
		return err
	}

	if config.Otlp.Traces.enabled() {
		tracerProvider, err := newTraceProvider(ctx, r, config)
		if err != nil {
			return err
		}
		otel.SetTracerProvider(tracerProvider)
		addShutdown(tracerProvider.Shutdown)
	} else {
		slog.Debug("no trace endpoint configured, tracing disabled")
	}

	if config.Otlp.Metrics.enabled() {
		meterProvider, err := newMetricProvider(ctx, r, config)
		if err != nil {
			return err
		}
		otel.SetMeterProvider(meterProvider)
		addShutdown(meterProvider.Shutdown)
	} else {
		slog.Debug("no metric endpoint configured, otlp metrics disabled")
	}

	return nil
}

// searches up the filesystem from the cwd to find a file
// called telemetry.json5, once found it will then use it
// as a config to setup telemetry. a missing file leaves
// telemetry disabled.
func SetupFromEnv(ctx context.Context, serviceName string) error {
	config, err := configutil.ReadRecursively[Config]("telemetry.json5")
	if errors.Is(err, os.ErrNotExist) {
		slog.Debug("no telemetry.json5 found, telemetry disabled")
		return nil
	}
	if err != nil {
		return err
	}
	return Setup(ctx, serviceName, config)
}

var setupTestEnvironments = map[string]bool{}

// sets up telemetry in a testing environment, ensuring that it isn't
// set up more than once
func SetupForTesting(serviceName string) func() {
	shutdownLock.Lock()
	setupAlready := setupTestEnvironments[serviceName]
	setupTestEnvironments[serviceName] = true
	shutdownLock.Unlock()
	if setupAlready {
		return func() {}
	}

	InitSlog(true)
	err := SetupFromEnv(context.Background(), serviceName)
	if err != nil {
		panic(err)
	}

	return func() {
		err = Shutdown(context.Background())
		if err != nil {
			panic(err)
		}
	}
}

func addShutdown(fn func(context.Context) error) {
	shutdownLock.Lock()
	defer shutdownLock.Unlock()
	shutdownFuncs = append(shutdownFuncs, fn)
}

// Shutdown flushes and stops every provider installed by Setup.
func Shutdown(ctx context.Context) error {
	shutdownLock.Lock()
	funcs := shutdownFuncs
	shutdownFuncs = nil
	shutdownLock.Unlock()

	var errlist []error
	for _, fn := range funcs {
		err := fn(ctx)
		if err != nil {
			errlist = append(errlist, err)
		}
	}
	return errors.Join(errlist...)
}
