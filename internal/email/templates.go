package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

type baseEmailData struct {
	Title      string
	Heading    string
	Subheading string
	CTALabel   string
	CTAURL     string
}

type notificationEmailData struct {
	baseEmailData
	Body string
}

func renderEmailTemplate(name string, data any) (string, error) {
	templates := []string{"templates/base.html", "templates/" + name}
	tmpl, err := template.New("base.html").ParseFS(templateFS, templates...)
	if err != nil {
		return "", fmt.Errorf("parse email template %s: %w", name, err)
	}

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "email", data); err != nil {
		return "", fmt.Errorf("execute email template %s: %w", name, err)
	}
	return buf.String(), nil
}

func renderNotification(msg Message) (string, error) {
	return renderEmailTemplate("notification.html", notificationEmailData{
		baseEmailData: baseEmailData{
			Title:    msg.Subject,
			Heading:  msg.Heading,
			CTALabel: msg.CTALabel,
			CTAURL:   msg.CTAURL,
		},
		Body: msg.Body,
	})
}

// FormatCurrency renders an amount in cents for message text.
func FormatCurrency(cents int64) string {
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}
