package main

import (
	"context"
	"flag"
	"os"
	"time"

	"jagriti-backend/lib/scrapers/jagriti"
	"jagriti-backend/lib/serviceutil"
	"jagriti-backend/lib/telemetry"
	"jagriti-backend/services/casesearch"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var version = "dev"

func main() {
	verbose := flag.Bool("v", false, "Enable verbose logging/instrumentation.")
	configPath := flag.String("config", "config.json5", "Path to the config file.")
	flag.Parse()

	ctx, cancel := serviceutil.SignalContext()
	defer cancel()

	cfg, err := LoadConfig(*configPath, os.Getenv)
	if err != nil {
		telemetry.InitSlog(*verbose)
		serviceutil.Fatal("read config", err)
	}

	dump := InitTelemetry(ctx, *verbose, cfg.Telemetry)
	tel := telemetry.SlogAPI{}

	notifier, err := newNotifier(cfg.Alerts, tel)
	if err != nil {
		serviceutil.Fatal("init alerts", err)
	}

	portal, err := jagriti.New(cfg.Portal, jagriti.ClientOptions{
		Telemetry:  tel,
		DumpOutput: dump,
		OnCaptcha:  captchaHook(notifier),
	})
	if err != nil {
		serviceutil.Fatal("init portal", err)
	}

	if cfg.Server.WarmOnStart {
		warmCtx, cancelWarm := context.WithTimeout(ctx, 5*time.Minute)
		stats, err := portal.Warm(warmCtx, 4)
		cancelWarm()
		if err != nil {
			tel.ReportWarning("server.warm", err)
		} else {
			tel.ReportDebug("identifier cache warmed", stats.States, stats.Commissions, stats.Failed)
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	service := casesearch.NewService(portal, casesearch.Options{
		Version:        version,
		AdminToken:     cfg.Server.AdminToken,
		RequestTimeout: cfg.Server.RequestTimeout.Std(),
		Registry:       registry,
	}, tel)

	err = serviceutil.StartHttpServer(ctx, cfg.Server.Port, service.Handler(), cfg.Server.ShutdownGrace.Std())
	if err != nil {
		serviceutil.Fatal("serve", err)
	}
}
