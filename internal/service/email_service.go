package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/resend/resend-go/v2"
	"go.uber.org/zap"
)

// NewsletterMailer sends the newsletter transactional mails.
type NewsletterMailer interface {
	SendVerificationEmail(ctx context.Context, toEmail, token string) error
	SendVoucherEmail(ctx context.Context, toEmail, voucherCode string) error
	SendConfirmationEmail(ctx context.Context, toEmail string) error
}

// MailerOptions are shared by every mailer implementation.
type MailerOptions struct {
	From      string
	ShopName  string
	VerifyURL string
}

// VerificationLink appends the token to the public confirmation endpoint.
func VerificationLink(base, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid verify url: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// NoopMailer is used when email dispatch is disabled. It only logs.
type NoopMailer struct {
	opts MailerOptions
	log  *zap.Logger
}

func NewNoopMailer(opts MailerOptions, log *zap.Logger) *NoopMailer {
	return &NoopMailer{opts: opts, log: log}
}

func (m *NoopMailer) SendVerificationEmail(ctx context.Context, toEmail, token string) error {
	link, err := VerificationLink(m.opts.VerifyURL, token)
	if err != nil {
		return err
	}
	m.log.Info("noop mailer: verification email", zap.String("to", toEmail), zap.String("link", link))
	return nil
}

func (m *NoopMailer) SendVoucherEmail(ctx context.Context, toEmail, voucherCode string) error {
	m.log.Info("noop mailer: voucher email", zap.String("to", toEmail), zap.String("voucher", voucherCode))
	return nil
}

func (m *NoopMailer) SendConfirmationEmail(ctx context.Context, toEmail string) error {
	m.log.Info("noop mailer: confirmation email", zap.String("to", toEmail))
	return nil
}

// ResendMailer sends emails via Resend REST API.
type ResendMailer struct {
	opts      MailerOptions
	client    *resend.Client
	templates *MailTemplates
	log       *zap.Logger
}

func NewResendMailer(apiKey string, opts MailerOptions, templates *MailTemplates, log *zap.Logger) (*ResendMailer, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("resend api key is required")
	}
	if opts.From == "" {
		return nil, fmt.Errorf("email from is required")
	}
	if templates == nil {
		return nil, fmt.Errorf("mail templates are required")
	}
	return &ResendMailer{
		opts:      opts,
		client:    resend.NewClient(apiKey),
		templates: templates,
		log:       log,
	}, nil
}

func (m *ResendMailer) SendVerificationEmail(ctx context.Context, toEmail, token string) error {
	link, err := VerificationLink(m.opts.VerifyURL, token)
	if err != nil {
		return err
	}
	// the token is stable per pending identity, so it doubles as idempotency key
	return m.send(ctx, toEmail, TemplateVerification, map[string]interface{}{"verif_url": link}, "verif-"+token)
}

func (m *ResendMailer) SendVoucherEmail(ctx context.Context, toEmail, voucherCode string) error {
	return m.send(ctx, toEmail, TemplateVoucher, map[string]interface{}{"discount": voucherCode}, "")
}

func (m *ResendMailer) SendConfirmationEmail(ctx context.Context, toEmail string) error {
	return m.send(ctx, toEmail, TemplateConfirmation, map[string]interface{}{}, "")
}

func (m *ResendMailer) send(ctx context.Context, toEmail, template string, bindings map[string]interface{}, idempotencyKey string) error {
	if toEmail == "" {
		return fmt.Errorf("toEmail is required")
	}
	bindings["shop_name"] = m.opts.ShopName

	mail, err := m.templates.Render(template, bindings)
	if err != nil {
		return err
	}

	params := &resend.SendEmailRequest{
		From:    m.opts.From,
		To:      []string{toEmail},
		Subject: mail.Subject,
		Text:    mail.Text,
		Html:    mail.HTML,
	}

	options := &resend.SendEmailOptions{}
	if strings.TrimSpace(idempotencyKey) != "" {
		options.IdempotencyKey = strings.TrimSpace(idempotencyKey)
	}

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		_, err := m.client.Emails.SendWithOptions(ctx, params, options)
		if err == nil {
			m.log.Debug("mail sent", zap.String("template", template), zap.String("to", toEmail))
			return nil
		}
		lastErr = err

		if wait, ok := resendRetryDelay(err, attempt); ok {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
				continue
			}
		}

		return fmt.Errorf("resend send failed: %w", err)
	}

	return fmt.Errorf("resend send failed after retries: %w", lastErr)
}

func resendRetryDelay(err error, attempt int) (time.Duration, bool) {
	var rateLimitErr *resend.RateLimitError
	if errors.As(err, &rateLimitErr) {
		if seconds, convErr := strconv.Atoi(strings.TrimSpace(rateLimitErr.RetryAfter)); convErr == nil && seconds > 0 {
			if seconds > 30 {
				seconds = 30
			}
			return time.Duration(seconds) * time.Second, true
		}
		return time.Duration(attempt+1) * time.Second, true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return time.Duration(attempt+1) * 500 * time.Millisecond, true
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "timeout") || strings.Contains(msg, "temporar") {
		return time.Duration(attempt+1) * 500 * time.Millisecond, true
	}

	return 0, false
}
