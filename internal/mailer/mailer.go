package mailer

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"text/template"
	"time"

	"github.com/go-mail/mail/v2"
)

//go:embed "templates"
var templateFS embed.FS

// Mailer sends templated messages through an SMTP server.
type Mailer struct {
	dialer *mail.Dialer
	sender string
}

func New(host string, port int, username, password, sender string) Mailer {
	dialer := mail.NewDialer(host, port, username, password)
	dialer.Timeout = 5 * time.Second

	return Mailer{
		dialer: dialer,
		sender: sender,
	}
}

// message is a rendered template: subject, plain text and HTML bodies.
type message struct {
	subject   string
	plainBody string
	htmlBody  string
}

// render executes the "subject", "plainBody" and "htmlBody" blocks of
// templateFile with data. Only the HTML body is escaped.
func render(templateFile string, data any) (*message, error) {
	pattern := "templates/" + templateFile

	textTmpl, err := template.New("email").ParseFS(templateFS, pattern)
	if err != nil {
		return nil, err
	}

	htmlTmpl, err := htmltemplate.New("email").ParseFS(templateFS, pattern)
	if err != nil {
		return nil, err
	}

	var msg message
	for _, block := range []struct {
		name string
		exec func(*bytes.Buffer) error
		dst  *string
	}{
		{"subject", func(b *bytes.Buffer) error { return textTmpl.ExecuteTemplate(b, "subject", data) }, &msg.subject},
		{"plainBody", func(b *bytes.Buffer) error { return textTmpl.ExecuteTemplate(b, "plainBody", data) }, &msg.plainBody},
		{"htmlBody", func(b *bytes.Buffer) error { return htmlTmpl.ExecuteTemplate(b, "htmlBody", data) }, &msg.htmlBody},
	} {
		buf := new(bytes.Buffer)
		if err := block.exec(buf); err != nil {
			return nil, fmt.Errorf("render %s/%s: %w", templateFile, block.name, err)
		}
		*block.dst = buf.String()
	}
	return &msg, nil
}

// Send renders templateFile with data and delivers it to recipient. Delivery
// is retried up to three times.
func (m Mailer) Send(recipient, templateFile string, data any) error {
	rendered, err := render(templateFile, data)
	if err != nil {
		return err
	}

	msg := mail.NewMessage()
	msg.SetHeader("To", recipient)
	msg.SetHeader("From", m.sender)
	msg.SetHeader("Subject", rendered.subject)
	msg.SetBody("text/plain", rendered.plainBody)
	msg.AddAlternative("text/html", rendered.htmlBody)

	for i := 1; i <= 3; i++ {
		err = m.dialer.DialAndSend(msg)
		if err == nil {
			return nil
		}
		time.Sleep(500 * time.Millisecond)
	}
	return err
}
