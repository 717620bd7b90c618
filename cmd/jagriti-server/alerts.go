package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"jagriti-backend/lib/alert"
	"jagriti-backend/lib/scrapers/jagriti"
	"jagriti-backend/lib/telemetry"
)

const alertTimeout = 30 * time.Second

func newNotifier(config AlertsConfig, tel telemetry.API) (alert.Notifier, error) {
	var inner alert.Notifier = alert.NewLogNotifier(tel)
	if config.Email.Enabled() {
		mailer, err := alert.NewEmailNotifier(config.Email)
		if err != nil {
			return nil, err
		}
		inner = mailer
	} else {
		slog.Info("no alert email configured, alerts go to the log")
	}
	return alert.NewThrottle(inner, config.Cooldown.Std(), tel), nil
}

func captchaAlert(err *jagriti.Error) alert.Alert {
	var body strings.Builder
	fmt.Fprintf(&body, "The e-Jagriti portal answered with a captcha challenge.\n\n")
	fmt.Fprintf(&body, "incident: %s\n", err.IncidentID)
	if err.Status != 0 {
		fmt.Fprintf(&body, "status: %d\n", err.Status)
	}
	if err.Message != "" {
		fmt.Fprintf(&body, "detail: %s\n", err.Message)
	}
	if err.Snippet != "" {
		fmt.Fprintf(&body, "\n%s\n", err.Snippet)
	}
	return alert.Alert{
		Key:     "captcha",
		Subject: fmt.Sprintf("[jagriti] captcha detected (%s)", err.IncidentID),
		Body:    body.String(),
	}
}

// captchaHook sends an alert for every detected captcha without holding up
// the request that ran into it.
func captchaHook(notifier alert.Notifier) func(ctx context.Context, err *jagriti.Error) {
	return func(ctx context.Context, err *jagriti.Error) {
		a := captchaAlert(err)
		go func() {
			ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), alertTimeout)
			defer cancel()
			notifyErr := notifier.Notify(ctx, a)
			if notifyErr != nil {
				slog.WarnContext(ctx, "failed to send captcha alert", "incident", err.IncidentID, "err", notifyErr)
			}
		}()
	}
}
