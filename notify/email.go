package notify

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/gomail.v2"
)

// EmailChannel alerts the seller and the marketplace operator by SMTP.
type EmailChannel struct {
	dialer   *gomail.Dialer
	from     string
	operator string
}

func NewEmailChannelFromEnv() *EmailChannel {
	port, err := strconv.Atoi(os.Getenv("SMTP_PORT"))
	if err != nil {
		port = 465
	}
	dialer := gomail.NewDialer(
		os.Getenv("SMTP_HOST"),
		port,
		os.Getenv("SMTP_USER"),
		os.Getenv("SMTP_PASS"),
	)
	return &EmailChannel{
		dialer:   dialer,
		from:     os.Getenv("SMTP_SENDER"),
		operator: os.Getenv("OPERATOR_EMAIL"),
	}
}

func (c *EmailChannel) Name() string { return "email" }

func (c *EmailChannel) Send(ctx context.Context, event Event) error {
	recipients := make([]string, 0, 2)
	if event.BusinessEmail != "" {
		recipients = append(recipients, event.BusinessEmail)
	}
	if c.operator != "" {
		recipients = append(recipients, c.operator)
	}
	if len(recipients) == 0 {
		return fmt.Errorf("order %s has no seller or operator recipient", event.OrderReference)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", c.from)
	m.SetHeader("To", recipients...)
	m.SetHeader("Subject", event.Title)
	body := event.Summary
	if body == "" {
		body = event.Body
	}
	if event.Link != "" {
		body = fmt.Sprintf("%s\n\n%s", body, event.Link)
	}
	m.SetBody("text/plain", body)

	return c.dialer.DialAndSend(m)
}
