package email

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/smtp"
	"strings"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

var ErrNoRecipients = errors.New("email_no_recipients")

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type SMTPProvider struct {
	cfg  Config
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTP(cfg Config) *SMTPProvider {
	return &SMTPProvider{cfg: cfg, send: smtp.SendMail}
}

func (p *SMTPProvider) Send(ctx context.Context, to []string, subject string, htmlBody string) error {
	if len(to) == 0 {
		return ErrNoRecipients
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if p.cfg.Username != "" {
		auth = smtp.PlainAuth("", p.cfg.Username, p.cfg.Password, p.cfg.Host)
	}
	addr := fmt.Sprintf("%s:%d", p.cfg.Host, p.cfg.Port)

	headers := []string{
		"From: " + p.cfg.From,
		"To: " + strings.Join(to, ", "),
		"Subject: " + subject,
		"MIME-Version: 1.0",
		`Content-Type: text/html; charset="UTF-8"`,
	}
	msg := []byte(strings.Join(headers, "\r\n") + "\r\n\r\n" + htmlBody)

	return p.send(addr, auth, p.cfg.From, to, msg)
}

// SendTemplate renders templates/<name>.html. The subject comes from the
// "subject" key when data is a map, or the template's own subject block.
func (p *SMTPProvider) SendTemplate(ctx context.Context, to []string, templateName string, data any) error {
	body, subject, err := Render(templateName, data)
	if err != nil {
		return err
	}
	if m, ok := data.(map[string]any); ok {
		if s, ok := m["subject"].(string); ok && s != "" {
			subject = s
		}
	}
	return p.Send(ctx, to, subject, body)
}

// Render executes the named template and its "<name>_subject" companion.
func Render(templateName string, data any) (body string, subject string, err error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, templateName+".html", data); err != nil {
		return "", "", fmt.Errorf("render %s: %w", templateName, err)
	}
	subject = "Billflow notification"
	if t := templates.Lookup(templateName + "_subject"); t != nil {
		var sb bytes.Buffer
		if err := t.Execute(&sb, data); err == nil {
			subject = strings.TrimSpace(sb.String())
		}
	}
	return buf.String(), subject, nil
}
