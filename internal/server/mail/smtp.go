package mail

import (
	"context"

	"github.com/samber/oops"
	"gopkg.in/gomail.v2"
)

// dialAndSend is a seam for tests.
var dialAndSend = func(d *gomail.Dialer, m ...*gomail.Message) error {
	return d.DialAndSend(m...)
}

type SMTPSender struct {
	host     string
	port     int
	user     string
	password string
	from     string
}

func NewSMTPSender(host string, port int, user, password, from string) *SMTPSender {
	return &SMTPSender{host: host, port: port, user: user, password: password, from: from}
}

// Send opens a fresh connection per message. ctx is checked before dialing
// only, since gomail has no cancellation support.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d := gomail.NewPlainDialer(s.host, s.port, s.user, s.password)

	if err := dialAndSend(d, render(s.from, msg)); err != nil {
		return oops.Code("SMTP_SEND_FAILED").With("host", s.host).With("to", msg.To).Wrap(err)
	}
	return nil
}
