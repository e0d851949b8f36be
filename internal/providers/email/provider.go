// Package email delivers HTML mail for the notification service.
package email

import (
	"context"

	"github.com/smallbiznis/crm/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("providers.email",
	fx.Provide(NewFromConfig),
)

type Provider interface {
	Send(ctx context.Context, to []string, subject string, htmlBody string) error
}

// NewFromConfig returns an SMTP provider, or a logging no-op when no SMTP
// host is configured.
func NewFromConfig(cfg config.Config, log *zap.Logger) Provider {
	if cfg.Email.SMTPHost == "" {
		log.Info("smtp host not configured, outgoing mail is logged only")
		return &NoOpProvider{log: log.Named("email.noop")}
	}
	return NewSMTP(Config{
		Host:     cfg.Email.SMTPHost,
		Port:     cfg.Email.SMTPPort,
		Username: cfg.Email.SMTPUsername,
		Password: cfg.Email.SMTPPassword,
		From:     cfg.Email.SMTPFrom,
	})
}

type NoOpProvider struct {
	log *zap.Logger
}

func (p *NoOpProvider) Send(ctx context.Context, to []string, subject string, htmlBody string) error {
	if p.log != nil {
		p.log.Debug("mail not sent", zap.Strings("to", to), zap.String("subject", subject))
	}
	return nil
}
