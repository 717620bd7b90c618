package main

import (
	"context"
	"log/slog"

	"jagriti-backend/lib/restyutil"
	"jagriti-backend/lib/serviceutil"
	"jagriti-backend/lib/telemetry"
)

// InitTelemetry sets up logging and the otel providers, with verbose every
// portal exchange is also dumped under dev/.state/resty/jagriti.
func InitTelemetry(ctx context.Context, verbose bool, config telemetry.Config) restyutil.InstrumentOutput {
	telemetry.InitSlog(verbose)

	if verbose {
		slog.DebugContext(ctx, "verbose logging enabled")
	}

	var err error
	if config.Enabled() {
		err = telemetry.Setup(ctx, "jagriti-server", config)
	} else {
		err = telemetry.SetupFromEnv(ctx, "jagriti-server")
	}
	if err != nil {
		serviceutil.Fatal("setup telemetry", err)
	}
	go func() {
		<-ctx.Done()
		telemetry.Shutdown(context.Background())
	}()
	telemetry.InstrumentPerfStats(ctx)

	if !verbose {
		return nil
	}
	output, err := restyutil.NewFilesystemOutput("<dev_state>/resty/jagriti")
	if err != nil {
		slog.WarnContext(ctx, "failed to create resty dump directory", "err", err)
		return nil
	}
	return output
}
