package mail

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	gomail "github.com/wneessen/go-mail"
)

// SMTPOptions holds the transport parameters of the SMTP sender.
type SMTPOptions struct {
	// Host is the SMTP relay hostname.
	Host string
	// Port is the SMTP relay port.
	Port int
	// From is the envelope and header sender address.
	From string
	// Username enables SMTP authentication when non-empty.
	Username string
	// Password authenticates against the relay.
	Password string
}

// SMTPSender delivers rendered messages over SMTP. A fresh connection
// is dialed per message; reminder volume is low and a failed relay must
// not poison later sends through a broken cached session.
type SMTPSender struct {
	opts SMTPOptions
}

// NewSMTPSender creates a sender for the given relay.
func NewSMTPSender(opts SMTPOptions) *SMTPSender {
	return &SMTPSender{opts: opts}
}

// Send transmits one rendered notification.
func (s *SMTPSender) Send(ctx context.Context, message *Message) error {
	msg := gomail.NewMsg()

	if err := msg.From(s.opts.From); err != nil {
		return fmt.Errorf("set sender address: %w", err)
	}

	if err := msg.To(message.Recipient); err != nil {
		return fmt.Errorf("set recipient address: %w", err)
	}

	msg.Subject(message.Subject)
	msg.SetMessageIDWithValue(uuid.NewString())
	msg.SetBodyString(gomail.TypeTextPlain, message.Body)

	client, err := s.client()
	if err != nil {
		return fmt.Errorf("create SMTP client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send notification to %s: %w", message.Recipient, err)
	}

	return nil
}

// client builds a go-mail client from the options.
func (s *SMTPSender) client() (*gomail.Client, error) {
	clientOpts := []gomail.Option{
		gomail.WithPort(s.opts.Port),
		gomail.WithTLSPolicy(gomail.TLSOpportunistic),
	}

	if s.opts.Username != "" {
		clientOpts = append(clientOpts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(s.opts.Username),
			gomail.WithPassword(s.opts.Password))
	}

	return gomail.NewClient(s.opts.Host, clientOpts...)
}
