package email

import (
	"errors"
	"fmt"
	"log"
	"net/smtp"
	"strings"
)

var ErrNotConfigured = errors.New("SMTP settings missing")

// SMTPConfig holds the outgoing mail server settings. From defaults to User.
type SMTPConfig struct {
	Host string
	Port string
	User string
	Pass string
	From string
}

type Mailer struct {
	cfg  SMTPConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewMailer(cfg SMTPConfig) *Mailer {
	if cfg.From == "" {
		cfg.From = cfg.User
	}
	return &Mailer{cfg: cfg, send: smtp.SendMail}
}

// Enabled reports whether every SMTP setting is present.
func (m *Mailer) Enabled() bool {
	c := m.cfg
	return c.Host != "" && c.Port != "" && c.User != "" && c.Pass != "" && c.From != ""
}

func (m *Mailer) deliver(to, subject, body string) error {
	if !m.Enabled() {
		return ErrNotConfigured
	}
	addr := fmt.Sprintf("%s:%s", m.cfg.Host, m.cfg.Port)
	auth := smtp.PlainAuth("", m.cfg.User, m.cfg.Pass, m.cfg.Host)
	return m.send(addr, auth, m.cfg.From, []string{to}, message(m.cfg.From, to, subject, body))
}

func message(from, to, subject, body string) []byte {
	// header values must not carry line breaks
	clean := strings.NewReplacer("\r", "", "\n", " ")
	return []byte(fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s",
		clean.Replace(from), clean.Replace(to), clean.Replace(subject), body))
}

// SendReportReady tells a patient that a generated report can be viewed in
// the app.
func (m *Mailer) SendReportReady(to, firstName, reportID string) error {
	name := firstName
	if name == "" {
		name = "there"
	}
	subject := "Your maternal health report is ready"
	body := fmt.Sprintf(`Hello %s,

Your personalized maternal health report (%s) has been generated.
Open the app to read it and share it with your healthcare provider.

This report is informational and does not replace professional medical advice.`, name, reportID)
	if err := m.deliver(to, subject, body); err != nil {
		return err
	}
	log.Printf("[email] report ready sent to=%s report_id=%s", to, reportID)
	return nil
}
