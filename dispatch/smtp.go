package dispatch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"text/template"
	"time"
)

// DefaultSubject is used when SMTPConfig.Subject is empty.
const DefaultSubject = "Your verification code"

// DefaultTemplate is the default plain-text body.
const DefaultTemplate = `Hi {{.Email}},

Use this code to verify your email address on {{.SiteName}}:

{{.Code}}

The code expires in {{printf "%.f" .Expiration.Minutes}} minutes.

If you did not request a code, you can ignore this email.


Regards,

{{.SenderName}}
`

// Message is the data passed to the body template.
type Message struct {
	Email      string
	SiteName   string
	Code       string
	Expiration time.Duration
	SenderName string
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string

	// From is the envelope and header sender address.
	From     string
	FromName string
	SiteName string
	Subject  string

	// CodeTTL is rendered into the body. It does not affect expiry.
	CodeTTL  time.Duration
	Template string
}

// SendFunc matches smtp.SendMail.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTP submits codes to an SMTP relay.
type SMTP struct {
	cfg  SMTPConfig
	tmpl *template.Template
	auth smtp.Auth
	send SendFunc
	now  func() time.Time
}

type SMTPOption func(*SMTP)

// WithSendFunc replaces smtp.SendMail.
func WithSendFunc(fn SendFunc) SMTPOption {
	return func(s *SMTP) {
		if fn != nil {
			s.send = fn
		}
	}
}

func WithSMTPClock(now func() time.Time) SMTPOption {
	return func(s *SMTP) {
		if now != nil {
			s.now = now
		}
	}
}

func NewSMTP(cfg SMTPConfig, opts ...SMTPOption) (*SMTP, error) {
	cfg.Host = strings.TrimSpace(cfg.Host)
	if cfg.Host == "" {
		return nil, errors.New("dispatch: smtp host required")
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.Port < 0 || cfg.Port > 65535 {
		return nil, errors.New("dispatch: smtp port out of range")
	}
	if _, err := mail.ParseAddress(cfg.From); err != nil {
		return nil, fmt.Errorf("dispatch: invalid from address: %w", err)
	}
	if cfg.Subject == "" {
		cfg.Subject = DefaultSubject
	}
	if cfg.SenderName() == "" {
		cfg.FromName = cfg.SiteName
	}
	if cfg.Template == "" {
		cfg.Template = DefaultTemplate
	}
	tmpl, err := template.New("code").Parse(cfg.Template)
	if err != nil {
		return nil, fmt.Errorf("dispatch: invalid template: %w", err)
	}

	s := &SMTP{
		cfg:  cfg,
		tmpl: tmpl,
		send: smtp.SendMail,
		now:  time.Now,
	}
	if cfg.Username != "" {
		s.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// SenderName is the display name used in the From header and the body.
func (c SMTPConfig) SenderName() string {
	return strings.TrimSpace(c.FromName)
}

func (s *SMTP) SendCode(ctx context.Context, email, code string) error {
	if s == nil {
		return ErrNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	msg, err := s.Render(email, code)
	if err != nil {
		return err
	}
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	return s.send(addr, s.auth, s.cfg.From, []string{email}, msg)
}

// Render builds the full RFC 5322 message for email.
func (s *SMTP) Render(email, code string) ([]byte, error) {
	var body bytes.Buffer
	err := s.tmpl.Execute(&body, Message{
		Email:      email,
		SiteName:   s.cfg.SiteName,
		Code:       code,
		Expiration: s.cfg.CodeTTL,
		SenderName: s.cfg.SenderName(),
	})
	if err != nil {
		return nil, fmt.Errorf("dispatch: render template: %w", err)
	}

	from := (&mail.Address{Name: s.cfg.SenderName(), Address: s.cfg.From}).String()
	to := (&mail.Address{Address: email}).String()

	var msg bytes.Buffer
	writeHeader(&msg, "From", from)
	writeHeader(&msg, "To", to)
	writeHeader(&msg, "Subject", mime.QEncoding.Encode("utf-8", s.cfg.Subject))
	writeHeader(&msg, "Date", s.now().Format(time.RFC1123Z))
	writeHeader(&msg, "MIME-Version", "1.0")
	writeHeader(&msg, "Content-Type", `text/plain; charset="utf-8"`)
	writeHeader(&msg, "Content-Transfer-Encoding", "8bit")
	msg.WriteString("\r\n")
	msg.WriteString(strings.ReplaceAll(strings.ReplaceAll(body.String(), "\r\n", "\n"), "\n", "\r\n"))
	return msg.Bytes(), nil
}

func writeHeader(b *bytes.Buffer, key, value string) {
	value = strings.NewReplacer("\r", "", "\n", "").Replace(value)
	b.WriteString(key)
	b.WriteString(": ")
	b.WriteString(value)
	b.WriteString("\r\n")
}
