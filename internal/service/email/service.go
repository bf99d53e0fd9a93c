// internal/service/email/service.go
package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"
)

// Mailer sends one plain-text message.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// EmailSender handles outgoing emails via SMTP.
type EmailSender struct {
	smtpHost string
	smtpPort string
	username string
	password string
	fromName string
	secure   bool
	timeout  time.Duration
}

// NewEmailSender creates a new SMTP email sender.
func NewEmailSender(host, port, user, pass, fromName string, secure bool) *EmailSender {
	return &EmailSender{
		smtpHost: host,
		smtpPort: port,
		username: user,
		password: pass,
		fromName: fromName,
		secure:   secure,
		timeout:  15 * time.Second,
	}
}

// Send delivers a plain-text message.
func (e *EmailSender) Send(ctx context.Context, to, subject, body string) error {
	if strings.ContainsAny(to, "\r\n") || strings.ContainsAny(subject, "\r\n") {
		return fmt.Errorf("header values must not contain line breaks")
	}

	msg := buildMessage(fmt.Sprintf("%s <%s>", e.fromName, e.username), to, subject, body)
	serverAddr := net.JoinHostPort(e.smtpHost, e.smtpPort)

	dialCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	var (
		conn net.Conn
		err  error
	)
	if e.secure {
		// Port 465 - implicit TLS
		d := &tls.Dialer{Config: &tls.Config{ServerName: e.smtpHost}}
		conn, err = d.DialContext(dialCtx, "tcp", serverAddr)
	} else {
		var d net.Dialer
		conn, err = d.DialContext(dialCtx, "tcp", serverAddr)
	}
	if err != nil {
		return fmt.Errorf("dial smtp: %w", err)
	}
	defer conn.Close()

	if deadline, ok := dialCtx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, e.smtpHost)
	if err != nil {
		return fmt.Errorf("smtp client failed: %w", err)
	}
	defer client.Quit()

	if !e.secure {
		// Port 587 - STARTTLS
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(&tls.Config{ServerName: e.smtpHost}); err != nil {
				return fmt.Errorf("starttls failed: %w", err)
			}
		}
	}

	if e.password != "" {
		if err := client.Auth(smtp.PlainAuth("", e.username, e.password, e.smtpHost)); err != nil {
			return fmt.Errorf("auth failed: %w", err)
		}
	}

	return e.sendMail(client, to, msg)
}

func (e *EmailSender) sendMail(client *smtp.Client, to string, msg []byte) error {
	if err := client.Mail(e.username); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("RCPT TO failed: %w", err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATA failed: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("write failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close failed: %w", err)
	}
	return nil
}

func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(strings.TrimSpace(body), "\n", "\r\n"))
	b.WriteString("\r\n")
	return []byte(b.String())
}
