package mailer

import (
	"fmt"

	"gopkg.in/gomail.v2"
)

type Mailer struct {
	Host     string
	Port     int
	Username string
	Password string
}

// Send отправляет письмо со ссылкой: plain-text тело и HTML-вариант.
func (m *Mailer) Send(to, subject, text, html string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("To", to)
	msg.SetHeader("From", m.Username)
	msg.SetHeader("Subject", subject)

	msg.SetBody("text/plain", text)
	if html != "" {
		msg.AddAlternative("text/html", html)
	}

	dialer := gomail.NewDialer(m.Host, m.Port, m.Username, m.Password)
	return dialer.DialAndSend(msg)
}

// Compose собирает тему и тексты письма по назначению ссылки.
func Compose(purpose, link string) (subject, text, html string) {
	switch purpose {
	case "password_reset":
		subject = "Password Reset Request"
		text = fmt.Sprintf("To reset your password, visit the following link: %s\n\n"+
			"If you did not make this request then simply ignore this email and no changes will be made.", link)
		html = fmt.Sprintf(`<html>To reset your password, visit: <a href=%q>%s</a></html>`, link, link)
	default:
		subject = "Registration confirmation."
		text = fmt.Sprintf("Please click link to confirm your registration %s", link)
		html = fmt.Sprintf(`<html>Please click link to confirm your registration: <a href=%q>%s</a></html>`, link, link)
	}

	return subject, text, html
}
