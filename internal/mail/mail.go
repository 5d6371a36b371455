// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PhotoStream Contributors

// Package mail sends account lifecycle emails over SMTP.
package mail

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	netmail "net/mail"
	"net/url"

	"github.com/dajohi/goemail"
	"github.com/samber/oops"
)

// Mailer delivers account lifecycle emails. Implementations must be
// safe for concurrent use; handlers send fire-and-forget.
type Mailer interface {
	// IsEnabled reports whether a mail server is configured.
	IsEnabled() bool

	// SendVerificationEmail sends the address confirmation link.
	SendVerificationEmail(recipient, baseURL, token string) error

	// SendResetEmail sends the password reset link.
	SendResetEmail(recipient, baseURL, token string) error
}

// Options configures the SMTP client. Leaving Host empty disables
// sending entirely; every send becomes a logged no-op.
type Options struct {
	Host       string // host:port
	User       string
	Password   string
	From       string // sender address, e.g. "PhotoStream <no-reply@example.com>"
	SkipVerify bool   // skip TLS certificate verification
}

// Client implements Mailer on goemail's SMTP transport.
type Client struct {
	smtp     *goemail.SMTP
	fromName string
	fromAddr string
	disabled bool
	logger   *slog.Logger
}

// NewClient creates a Client. Missing credentials disable sending
// rather than failing: local development runs without a mail server.
func NewClient(opts Options, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if opts.Host == "" || opts.User == "" || opts.Password == "" {
		logger.Info("mail delivery disabled, no SMTP server configured")
		return &Client{disabled: true, logger: logger}, nil
	}

	h := fmt.Sprintf("smtps://%v:%v@%v", opts.User, opts.Password, opts.Host)
	u, err := url.Parse(h)
	if err != nil {
		return nil, oops.Code("MAIL_CONFIG_INVALID").
			With("operation", "parse smtp url").
			Wrap(err)
	}

	from, err := netmail.ParseAddress(opts.From)
	if err != nil {
		return nil, oops.Code("MAIL_CONFIG_INVALID").
			With("operation", "parse from address").
			With("from", opts.From).
			Wrap(err)
	}

	smtp, err := goemail.NewSMTP(u.String(), &tls.Config{
		InsecureSkipVerify: opts.SkipVerify, //nolint:gosec // operator opt-in for self-signed relays
	})
	if err != nil {
		return nil, oops.Code("MAIL_CONNECT_FAILED").
			With("host", opts.Host).
			Wrap(err)
	}

	logger.Info("mail delivery enabled",
		slog.String("host", opts.Host),
		slog.String("from", from.Address))

	return &Client{
		smtp:     smtp,
		fromName: from.Name,
		fromAddr: from.Address,
		logger:   logger,
	}, nil
}

// IsEnabled reports whether a mail server is configured.
func (c *Client) IsEnabled() bool {
	return !c.disabled
}

// SendVerificationEmail sends the address confirmation link.
func (c *Client) SendVerificationEmail(recipient, baseURL, token string) error {
	link := fmt.Sprintf("%s/api/auth/confirmed_email/%s", baseURL, token)
	body := fmt.Sprintf(
		"Welcome to PhotoStream!\n\n"+
			"Confirm your email address by opening the link below:\n\n%s\n\n"+
			"The link is valid for 7 days. If you did not sign up, ignore this email.\n",
		link)
	return c.send(recipient, "Confirm your PhotoStream account", body)
}

// SendResetEmail sends the password reset link.
func (c *Client) SendResetEmail(recipient, baseURL, token string) error {
	link := fmt.Sprintf("%s/api/auth/reset_password/%s", baseURL, token)
	body := fmt.Sprintf(
		"A password reset was requested for your PhotoStream account.\n\n"+
			"Open the link below to choose a new password:\n\n%s\n\n"+
			"The link is valid for 7 days. If you did not request a reset, ignore this email.\n",
		link)
	return c.send(recipient, "Reset your PhotoStream password", body)
}

func (c *Client) send(recipient, subject, body string) error {
	if c.disabled {
		c.logger.Info("mail disabled, skipping send",
			slog.String("recipient", recipient),
			slog.String("subject", subject))
		return nil
	}

	msg := goemail.NewMessage(c.fromAddr, subject, body)
	msg.SetName(c.fromName)
	msg.AddTo(recipient)

	if err := c.smtp.Send(msg); err != nil {
		return oops.Code("MAIL_SEND_FAILED").
			With("recipient", recipient).
			With("subject", subject).
			Wrap(err)
	}
	return nil
}

// Compile-time interface check.
var _ Mailer = (*Client)(nil)
