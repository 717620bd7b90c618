package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"jagriti-backend/lib/alert"
	"jagriti-backend/lib/configutil"
	"jagriti-backend/lib/scrapers/jagriti"
	"jagriti-backend/lib/telemetry"
)

type ServerConfig struct {
	Port           int                 `json:"port"`
	AdminToken     string              `json:"admin_token"`
	RequestTimeout configutil.Duration `json:"request_timeout"`
	ShutdownGrace  configutil.Duration `json:"shutdown_grace"`
	// WarmOnStart loads every state's commissions before serving.
	WarmOnStart bool `json:"warm_on_start"`
}

type AlertsConfig struct {
	Email alert.EmailConfig `json:"email"`
	// Cooldown is the minimum time between two alerts of the same kind.
	Cooldown configutil.Duration `json:"cooldown"`
}

type Config struct {
	Server    ServerConfig     `json:"server"`
	Portal    jagriti.Config   `json:"portal"`
	Alerts    AlertsConfig     `json:"alerts"`
	Telemetry telemetry.Config `json:"telemetry"`
}

func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Port:           8000,
			RequestTimeout: configutil.Duration(2 * time.Minute),
			ShutdownGrace:  configutil.Duration(15 * time.Second),
		},
		Portal: jagriti.DefaultConfig(),
		Alerts: AlertsConfig{
			Cooldown: configutil.Duration(30 * time.Minute),
		},
	}
}

// LoadConfig reads path (and its .local variant) over DefaultConfig, a
// missing file leaves the defaults. getenv supplies the environment
// overrides.
func LoadConfig(path string, getenv func(string) string) (Config, error) {
	cfg, err := configutil.ReadConfigWithDefaults(path, DefaultConfig())
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, err
	}

	if base := getenv("JAGRITI_BASE_URL"); base != "" {
		cfg.Portal.Transport.BaseURL = base
	}
	if token := getenv("JAGRITI_ADMIN_TOKEN"); token != "" {
		cfg.Server.AdminToken = token
	}
	if port := getenv("PORT"); port != "" {
		n, err := strconv.Atoi(port)
		if err != nil || n <= 0 || n > 65535 {
			return Config{}, fmt.Errorf("invalid PORT %q", port)
		}
		cfg.Server.Port = n
	}
	return cfg, nil
}
