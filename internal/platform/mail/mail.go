package mail

import (
	"go.uber.org/fx"
	"gopkg.in/gomail.v2"

	"github.com/fatflowers/paywall/pkg/config"
)

// Sender delivers transactional mail over SMTP.
type Sender struct {
	cfg *config.Config
}

func New(cfg *config.Config) *Sender {
	return &Sender{cfg: cfg}
}

func (s *Sender) Send(to, subject, htmlBody string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.SMTP.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetBody("text/html", htmlBody)

	d := gomail.NewDialer(s.cfg.SMTP.Host, s.cfg.SMTP.Port, s.cfg.SMTP.User, s.cfg.SMTP.Password)
	return d.DialAndSend(m)
}

var Module = fx.Options(
	fx.Provide(New),
)
