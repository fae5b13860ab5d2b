package notification

import (
	"fmt"
	"net/smtp"

	"github.com/raykavin/trailstop/core"
	log "github.com/sirupsen/logrus"
)

// Mail handles email notifications
type Mail struct {
	auth              smtp.Auth
	smtpServerPort    int
	smtpServerAddress string
	to                string
	from              string
}

// NewMail creates a new Mail instance from the email settings
func NewMail(settings core.EmailSettings) Mail {
	return Mail{
		from:              settings.From,
		to:                settings.To,
		smtpServerPort:    settings.Port,
		smtpServerAddress: settings.Server,
		auth: smtp.PlainAuth(
			"",
			settings.From,
			settings.Password,
			settings.Server,
		),
	}
}

// Notify sends an email notification with the given text
func (m Mail) Notify(text string) {
	m.send(fmt.Sprintf("Subject: Trailing Stop Loss\n\n%s", text))
}

// OnError sends an error notification
func (m Mail) OnError(err error) {
	m.send(fmt.Sprintf("Subject: 🛑 Trailing Stop Loss ERROR\n\n%s", err))
}

func (m Mail) send(body string) {
	serverAddress := fmt.Sprintf("%s:%d", m.smtpServerAddress, m.smtpServerPort)

	message := fmt.Sprintf(
		`To: "User" <%s>
From: "TrailStop" <%s>
%s`,
		m.to,
		m.from,
		body,
	)

	err := smtp.SendMail(
		serverAddress,
		m.auth,
		m.from,
		[]string{m.to},
		[]byte(message),
	)

	if err != nil {
		log.WithError(err).Error("notification/mail: failed to send email")
	}
}
