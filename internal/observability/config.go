package observability

import (
	"strings"

	"github.com/smallbiznis/crm/internal/config"
)

// Config is the observability view of one running role. Every role of the
// platform reports under its own service name, e.g. crm-invoices.
type Config struct {
	ServiceName string
	Role        string
	Environment string
	Version     string

	LogLevel  string
	LogFormat string

	Export       bool
	OTLPEndpoint string
	OTLPProtocol string
	SampleRatio  float64
}

func LoadConfig(cfg config.Config) Config {
	role := strings.TrimSpace(cfg.Role)
	return Config{
		ServiceName:  serviceName(cfg.AppName, role),
		Role:         role,
		Environment:  strings.TrimSpace(cfg.Environment),
		Version:      strings.TrimSpace(cfg.AppVersion),
		LogLevel:     cfg.Telemetry.LogLevel,
		LogFormat:    cfg.Telemetry.LogFormat,
		Export:       cfg.Telemetry.Export,
		OTLPEndpoint: strings.TrimSpace(cfg.OTLPEndpoint),
		OTLPProtocol: cfg.Telemetry.OTLPProtocol,
		SampleRatio:  cfg.Telemetry.SampleRatio,
	}
}

func serviceName(app, role string) string {
	app = strings.TrimSpace(app)
	if app == "" {
		app = "crm"
	}
	if role == "" || role == "all" {
		return app
	}
	return app + "-" + role
}

// Debug turns on verbose logging, SQL tracing and gin debug mode.
func (c Config) Debug() bool {
	if strings.EqualFold(strings.TrimSpace(c.LogLevel), "debug") {
		return true
	}
	switch strings.ToLower(strings.TrimSpace(c.Environment)) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}
