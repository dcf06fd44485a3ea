package notify

import (
	"context"
	"fmt"

	"github.com/go-gomail/gomail"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPNotifier sends HTML mail through an SMTP relay.
type SMTPNotifier struct {
	cfg    SMTPConfig
	dialer *gomail.Dialer
}

func NewSMTPNotifier(cfg SMTPConfig) *SMTPNotifier {
	if cfg.From == "" {
		cfg.From = cfg.Username
	}
	return &SMTPNotifier{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

func (n *SMTPNotifier) message(msg Message) *gomail.Message {
	m := gomail.NewMessage()
	m.SetHeader("From", n.cfg.From)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/html", msg.Body)
	return m
}

func (n *SMTPNotifier) Notify(ctx context.Context, msg Message) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- n.dialer.DialAndSend(n.message(msg))
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("send mail to %s: %w", msg.To, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("send mail to %s: %w", msg.To, ctx.Err())
	}
}
