package alert

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"
	"sync"
	"time"

	"jagriti-backend/lib/telemetry"

	"github.com/jordan-wright/email"
	"go.opentelemetry.io/otel/codes"
)

var tracer = telemetry.Tracer("jagriti.lib.alert")

const (
	report_alert_send     = "alert.send"
	report_alert_throttle = "alert.throttle"
)

// Alert is a message for whoever operates the service. Key groups alerts
// about the same condition for throttling.
type Alert struct {
	Key     string
	Subject string
	Body    string
}

// Notifier delivers alerts.
//
// note: fault injection point
type Notifier interface {
	Notify(ctx context.Context, a Alert) error
}

type SmtpConfig struct {
	Server       string `json:"server"`
	Port         int    `json:"port"`
	EmailAddress string `json:"email_address"`
	Password     string `json:"password"`
}

type EmailConfig struct {
	Smtp SmtpConfig `json:"smtp"`
	// To lists the recipients of every alert.
	To []string `json:"to"`
	// SenderName is shown in front of the sending address.
	SenderName string `json:"sender_name"`
}

func (c EmailConfig) Enabled() bool {
	return c.Smtp.Server != "" && len(c.To) > 0
}

type sendFunc func(mail *email.Email, addr string, auth smtp.Auth) error

func sendMail(mail *email.Email, addr string, auth smtp.Auth) error {
	return mail.Send(addr, auth)
}

// EmailNotifier sends alerts over SMTP.
type EmailNotifier struct {
	config EmailConfig
	send   sendFunc
}

func NewEmailNotifier(config EmailConfig) (*EmailNotifier, error) {
	if !config.Enabled() {
		return nil, errors.New("email alerts need an smtp server and at least one recipient")
	}
	if config.Smtp.Port == 0 {
		config.Smtp.Port = 587
	}
	if config.SenderName == "" {
		config.SenderName = "Jagriti Search"
	}
	return &EmailNotifier{config: config, send: sendMail}, nil
}

func (n *EmailNotifier) Notify(ctx context.Context, a Alert) error {
	_, span := tracer.Start(ctx, "email:Notify")
	defer span.End()

	mail := email.NewEmail()
	mail.From = fmt.Sprintf("%s <%s>", n.config.SenderName, n.config.Smtp.EmailAddress)
	mail.To = n.config.To
	mail.Subject = a.Subject
	mail.Text = []byte(a.Body)

	addr := fmt.Sprintf("%s:%d", n.config.Smtp.Server, n.config.Smtp.Port)
	err := n.send(
		mail,
		addr,
		smtp.PlainAuth("", n.config.Smtp.EmailAddress, n.config.Smtp.Password, n.config.Smtp.Server),
	)
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = n.send(mail, addr, nil)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to send email")
		return err
	}
	return nil
}

// LogNotifier writes alerts to telemetry, used when no mail server is
// configured.
type LogNotifier struct {
	tel telemetry.API
}

func NewLogNotifier(tel telemetry.API) LogNotifier {
	return LogNotifier{tel: telemetry.NewScopedAPI("alert", tel)}
}

func (n LogNotifier) Notify(ctx context.Context, a Alert) error {
	n.tel.ReportBroken(report_alert_send, a.Key, a.Subject, a.Body)
	return nil
}

// Throttle passes on at most one alert per key every cooldown, the rest are
// dropped and counted.
type Throttle struct {
	inner    Notifier
	cooldown time.Duration
	now      func() time.Time
	tel      telemetry.API

	mu         sync.Mutex
	last       map[string]time.Time
	suppressed map[string]int64
}

func NewThrottle(inner Notifier, cooldown time.Duration, tel telemetry.API) *Throttle {
	return &Throttle{
		inner:      inner,
		cooldown:   cooldown,
		now:        time.Now,
		tel:        telemetry.NewScopedAPI("alert", tel),
		last:       map[string]time.Time{},
		suppressed: map[string]int64{},
	}
}

func (t *Throttle) Notify(ctx context.Context, a Alert) error {
	t.mu.Lock()
	now := t.now()
	sent, ok := t.last[a.Key]
	if ok && now.Sub(sent) < t.cooldown {
		t.suppressed[a.Key]++
		count := t.suppressed[a.Key]
		t.mu.Unlock()
		t.tel.ReportCount(report_alert_throttle, count)
		return nil
	}
	t.last[a.Key] = now
	dropped := t.suppressed[a.Key]
	t.suppressed[a.Key] = 0
	t.mu.Unlock()

	if dropped > 0 {
		a.Body = fmt.Sprintf("%s\n\n(%d similar alerts were suppressed since the last one)", a.Body, dropped)
	}
	err := t.inner.Notify(ctx, a)
	if err != nil {
		t.tel.ReportBroken(report_alert_send, a.Key, err)
		// let the next alert for this key try again
		t.mu.Lock()
		if t.last[a.Key].Equal(now) {
			delete(t.last, a.Key)
		}
		t.mu.Unlock()
		return err
	}
	return nil
}
