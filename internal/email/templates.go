package email

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"time"
)

// TemplateHeader names the template a message was rendered from.
const TemplateHeader = "X-Template"

// Template names. They match the bid lifecycle events that trigger them.
const (
	TemplateBidReceived      = "bid_received"
	TemplateBidAccepted      = "bid_accepted"
	TemplateBidRejected      = "bid_rejected"
	TemplatePaymentConfirmed = "payment_confirmed"
)

// TemplateData is available to every template.
type TemplateData struct {
	AppName          string
	RecipientName    string
	CounterpartyName string
	TripTitle        string
	Destination      string
	Price            float64
}

type messageTemplate struct {
	subject *template.Template
	body    *template.Template
}

func mustTemplate(name, subject, body string) messageTemplate {
	return messageTemplate{
		subject: template.Must(template.New(name + "_subject").Parse(subject)),
		body:    template.Must(template.New(name + "_body").Parse(body)),
	}
}

var templates = map[string]messageTemplate{
	TemplateBidReceived: mustTemplate(TemplateBidReceived,
		`New bid on "{{.TripTitle}}"`,
		`Hi {{.RecipientName}},

{{.CounterpartyName}} has bid {{printf "%.2f" .Price}} on your trip "{{.TripTitle}}" to {{.Destination}}.
Sign in to {{.AppName}} to compare offers.
`),
	TemplateBidAccepted: mustTemplate(TemplateBidAccepted,
		`Your bid on "{{.TripTitle}}" was accepted`,
		`Hi {{.RecipientName}},

{{.CounterpartyName}} accepted your bid of {{printf "%.2f" .Price}} for "{{.TripTitle}}" to {{.Destination}}.
The trip is now booked.
`),
	TemplateBidRejected: mustTemplate(TemplateBidRejected,
		`Update on your bid for "{{.TripTitle}}"`,
		`Hi {{.RecipientName}},

Your bid of {{printf "%.2f" .Price}} for "{{.TripTitle}}" to {{.Destination}} was not selected.
Thanks for bidding on {{.AppName}}.
`),
	TemplatePaymentConfirmed: mustTemplate(TemplatePaymentConfirmed,
		`Payment received for "{{.TripTitle}}"`,
		`Hi {{.RecipientName}},

{{.CounterpartyName}} paid {{printf "%.2f" .Price}} for "{{.TripTitle}}" to {{.Destination}}.
`),
}

// Render returns the subject and body of the named template.
func Render(name string, data TemplateData) (string, string, error) {
	tmpl, ok := templates[name]
	if !ok {
		return "", "", fmt.Errorf("unknown email template %q", name)
	}
	var subject, body bytes.Buffer
	if err := tmpl.subject.Execute(&subject, data); err != nil {
		return "", "", fmt.Errorf("failed to render subject of %s: %w", name, err)
	}
	if err := tmpl.body.Execute(&body, data); err != nil {
		return "", "", fmt.Errorf("failed to render body of %s: %w", name, err)
	}
	return strings.TrimSpace(subject.String()), body.String(), nil
}

// KnownTemplate reports whether name is a template Render can produce.
func KnownTemplate(name string) bool {
	_, ok := templates[name]
	return ok
}

// BuildMessage assembles a plain-text RFC 5322 message.
func BuildMessage(from, to, subject, templateName, body string, now time.Time) []byte {
	var sb strings.Builder
	fmt.Fprintf(&sb, "To: %s\r\n", to)
	fmt.Fprintf(&sb, "From: %s\r\n", from)
	fmt.Fprintf(&sb, "Subject: %s\r\n", subject)
	fmt.Fprintf(&sb, "Date: %s\r\n", now.Format(time.RFC1123Z))
	fmt.Fprintf(&sb, "%s: %s\r\n", TemplateHeader, templateName)
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(strings.ReplaceAll(strings.TrimRight(body, "\n"), "\n", "\r\n"))
	sb.WriteString("\r\n")
	return []byte(sb.String())
}
