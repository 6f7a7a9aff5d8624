package mail

import (
	"fmt"
	"log"
	"net/smtp"

	"github.com/vkarlsson/vardera/internal/pkg/env"
)

// SendMail sends an HTML email via SMTP
func SendMail(to string, subject string, body string) error {
	host := env.GetEnv("SMTP_HOST", "")
	port := env.GetEnv("SMTP_PORT", "")
	username := env.GetEnv("SMTP_USERNAME", "")
	password := env.GetEnv("SMTP_PASSWORD", "")
	sender := env.GetEnv("SMTP_SENDER", "")

	if sender == "" {
		sender = fmt.Sprintf("no-reply@%s", "localhost")
		log.Printf("SMTP_SENDER not set, using default sender: %s", sender)
	}

	var auth smtp.Auth
	if username != "" && password != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}

	addr := fmt.Sprintf("%s:%s", host, port)

	msg := []byte(
		fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n", sender, to, subject) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=UTF-8\r\n\r\n" +
			body,
	)

	err := smtp.SendMail(addr, auth, sender, []string{to}, msg)
	if err != nil {
		log.Printf("SMTP send error: %v", err)
	} else {
		log.Printf("Email sent to %s via %s", to, addr)
	}
	return err
}

// SendActivationMail delivers the account activation link.
func SendActivationMail(to, name, token string) error {
	appURL := env.GetEnv("PUBLIC_DOMAIN", "http://localhost:3000")
	link := fmt.Sprintf("%s/activate?token=%s", appURL, token)
	body := fmt.Sprintf(
		"<p>Hi %s,</p><p>welcome to Vardera. Confirm your email address to start appraising:</p><p><a href=\"%s\">Activate account</a></p>",
		name, link,
	)
	return SendMail(to, "Activate your Vardera account", body)
}

// SendPasswordResetMail delivers the password reset link.
func SendPasswordResetMail(to, token string) error {
	appURL := env.GetEnv("PUBLIC_DOMAIN", "http://localhost:3000")
	link := fmt.Sprintf("%s/reset-password?token=%s", appURL, token)
	body := fmt.Sprintf(
		"<p>You requested a password reset.</p><p><a href=\"%s\">Choose a new password</a></p><p>The link is valid for two hours. If you did not request this, ignore this email.</p>",
		link,
	)
	return SendMail(to, "Reset your Vardera password", body)
}
