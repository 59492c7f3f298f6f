package goLinkAuth

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

type messageTemplates struct {
	html *htmltemplate.Template
	text *texttemplate.Template
}

type messageData struct {
	AppName   string
	URL       string
	Code      string
	ExpiresIn string
}

func newTemplates() (*messageTemplates, error) {
	html, err := htmltemplate.ParseFS(templateFS, "templates/*.html.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse html templates: %w", err)
	}
	text, err := texttemplate.ParseFS(templateFS, "templates/*.txt.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parse text templates: %w", err)
	}
	return &messageTemplates{html: html, text: text}, nil
}

func (t *messageTemplates) render(kind MessageKind, cfg EmailConfig, to string, data messageData) (Message, error) {
	var (
		name    string
		subject string
	)
	switch kind {
	case MessageMagicLink:
		name = "magic_link"
		subject = "Sign in to " + cfg.AppName
	case MessageOTP:
		name = "otp"
		subject = "Your " + cfg.AppName + " sign-in code"
	default:
		return Message{}, fmt.Errorf("unknown message kind %d", kind)
	}
	data.AppName = cfg.AppName

	var html, text bytes.Buffer
	if err := t.html.ExecuteTemplate(&html, name+".html.tmpl", data); err != nil {
		return Message{}, err
	}
	if err := t.text.ExecuteTemplate(&text, name+".txt.tmpl", data); err != nil {
		return Message{}, err
	}

	return Message{
		Kind:    kind,
		From:    cfg.From,
		To:      to,
		Subject: subject,
		HTML:    html.String(),
		Text:    text.String(),
	}, nil
}

// humanDuration renders ttl the way the emails phrase it: "10 minutes", "24 hours".
func humanDuration(ttl time.Duration) string {
	switch {
	case ttl >= time.Hour && ttl%time.Hour == 0:
		return plural(int(ttl/time.Hour), "hour")
	case ttl >= time.Minute && ttl%time.Minute == 0:
		return plural(int(ttl/time.Minute), "minute")
	default:
		return strings.TrimSpace(ttl.Round(time.Second).String())
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
