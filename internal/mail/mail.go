// internal/mail/mail.go
//
// Mail relay for account-lifecycle notifications.
//
// Context
// -------
// Welcome and membership emails go out through one authenticated SMTP relay
// with STARTTLS.  Mail failures are never fatal to the operation that sent
// them: the orchestrators log and continue, because a provisioned account
// is valid whether or not its notification arrived.
package mail

import (
	"fmt"
	"net/smtp"
	"strings"
)

// Sender delivers one message.  The SMTP implementation is Relay; tests
// inject fakes.
type Sender interface {
	Send(toName, toAddr, subject, body string) error
}

// Relay is an authenticated SMTP STARTTLS relay.
type Relay struct {
	Host         string
	Port         int
	Username     string
	Password     string
	FriendlyName string

	// sendFn defaults to smtp.SendMail and is injectable for tests.
	sendFn func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewRelay(host string, port int, username, password, friendlyName string) *Relay {
	return &Relay{
		Host:         host,
		Port:         port,
		Username:     username,
		Password:     password,
		FriendlyName: friendlyName,
		sendFn:       smtp.SendMail,
	}
}

// Send delivers one plain-text message with friendly-name headers.
func (r *Relay) Send(toName, toAddr, subject, body string) error {
	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s <%s>\r\n", r.FriendlyName, r.Username)
	fmt.Fprintf(&msg, "To: %s <%s>\r\n", toName, toAddr)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	msg.WriteString(body)

	auth := smtp.PlainAuth("", r.Username, r.Password, r.Host)
	addr := fmt.Sprintf("%s:%d", r.Host, r.Port)
	if err := r.sendFn(addr, auth, r.Username, []string{toAddr}, []byte(msg.String())); err != nil {
		return fmt.Errorf("send mail to %s: %w", toAddr, err)
	}
	return nil
}
