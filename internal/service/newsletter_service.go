package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/thirtybees/blocknewsletter/internal/captcha"
	"github.com/thirtybees/blocknewsletter/internal/domain/entity"
	"github.com/thirtybees/blocknewsletter/internal/domain/repository"
	apperrors "github.com/thirtybees/blocknewsletter/internal/pkg/errors"
)

// ModuleName identifies the newsletter block towards captcha providers.
const ModuleName = "blocknewsletter"

// Action is what the visitor asked the newsletter block to do.
type Action string

const (
	ActionSubscribe   Action = "subscribe"
	ActionUnsubscribe Action = "unsubscribe"
)

// ParseAction accepts the action names and the legacy form codes "0" and "1".
func ParseAction(raw string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "subscribe", "0":
		return ActionSubscribe, nil
	case "unsubscribe", "1":
		return ActionUnsubscribe, nil
	default:
		return "", ErrUnknownAction
	}
}

// SubscriptionRequest is one submission of the newsletter block.
type SubscriptionRequest struct {
	Email    string
	Action   Action
	Scope    entity.ShopScope
	RemoteIP string
	Referer  string
	Captcha  map[string]string
}

// SubscriptionResult is reported back to the visitor.
type SubscriptionResult struct {
	Message string                    `json:"message"`
	Status  entity.RegistrationStatus `json:"status"`
	Pending bool                      `json:"pending"`
}

// CaptchaGate validates captcha submissions.
type CaptchaGate interface {
	Validate(ctx context.Context, req captcha.Request) captcha.Outcome
}

// SettingsReader returns the current module settings.
type SettingsReader interface {
	Get(ctx context.Context) (*Settings, error)
}

// NewsletterService drives the subscription state machine.
//
// There is no transaction around reading the status and writing the new state:
// two concurrent subscribes of the same email can both see "not registered" and
// create two pending rows. Confirming either of them prunes the other.
type NewsletterService struct {
	captcha     CaptchaGate
	resolver    *IdentityResolver
	tokens      *TokenService
	settings    SettingsReader
	subscribers repository.SubscriberRepository
	customers   repository.CustomerRepository
	mailer      NewsletterMailer
	validate    *validator.Validate
	log         *zap.Logger
	now         func() time.Time
}

func NewNewsletterService(
	captchaGate CaptchaGate,
	resolver *IdentityResolver,
	tokens *TokenService,
	settings SettingsReader,
	subscribers repository.SubscriberRepository,
	customers repository.CustomerRepository,
	mailer NewsletterMailer,
	log *zap.Logger,
) *NewsletterService {
	return &NewsletterService{
		captcha:     captchaGate,
		resolver:    resolver,
		tokens:      tokens,
		settings:    settings,
		subscribers: subscribers,
		customers:   customers,
		mailer:      mailer,
		validate:    validator.New(),
		log:         log,
		now:         time.Now,
	}
}

// ValidEmail reports whether email is syntactically valid.
func (s *NewsletterService) ValidEmail(email string) bool {
	return s.validate.Var(email, "required,email") == nil
}

// Register is the public entry point of the newsletter block: captcha gate,
// email check, action check, then the requested transition. Action may hold
// any raw value accepted by ParseAction.
func (s *NewsletterService) Register(ctx context.Context, req SubscriptionRequest) (*SubscriptionResult, error) {
	outcome := s.captcha.Validate(ctx, captcha.Request{
		Module:   ModuleName,
		RemoteIP: req.RemoteIP,
		Values:   req.Captcha,
	})
	if !outcome.Passed {
		return nil, &CaptchaError{Message: outcome.Message}
	}

	req.Email = strings.TrimSpace(req.Email)
	if !s.ValidEmail(req.Email) {
		return nil, ErrInvalidEmail
	}

	action, err := ParseAction(string(req.Action))
	if err != nil {
		return nil, err
	}
	req.Action = action

	if action == ActionUnsubscribe {
		return s.Unsubscribe(ctx, req)
	}
	return s.Subscribe(ctx, req)
}

// Subscribe moves a not-registered email to pending (double opt-in) or registered.
func (s *NewsletterService) Subscribe(ctx context.Context, req SubscriptionRequest) (*SubscriptionResult, error) {
	resolution, err := s.resolver.StatusOf(ctx, req.Email, req.Scope)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSubscriptionFailed, err)
	}
	if resolution.Status.IsRegistered() {
		return nil, ErrAlreadyRegistered
	}

	settings, err := s.settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSubscriptionFailed, err)
	}

	if settings.VerificationEmail {
		return s.startVerification(ctx, req, resolution)
	}

	status, err := s.register(ctx, req, resolution)
	if err != nil {
		return nil, err
	}
	s.afterRegistration(ctx, req.Email, settings)
	return &SubscriptionResult{Message: MsgSubscribed, Status: status}, nil
}

func (s *NewsletterService) startVerification(ctx context.Context, req SubscriptionRequest, resolution *Resolution) (*SubscriptionResult, error) {
	// the token is recomputed from the stored email on confirmation
	var ref time.Time
	tokenEmail := req.Email
	switch resolution.Status {
	case entity.GuestNotRegistered:
		subscriber := s.newGuestRow(req, false)
		if err := s.subscribers.Create(ctx, subscriber); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSubscriptionFailed, err)
		}
		ref = subscriber.SubscribedAt
	case entity.CustomerNotRegistered:
		ref = resolution.Customer.CreatedAt
		tokenEmail = resolution.Customer.Email
	default:
		return nil, ErrAlreadyRegistered
	}

	token, err := s.tokens.Issue(ctx, tokenEmail, ref)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSubscriptionFailed, err)
	}

	if err := s.mailer.SendVerificationEmail(ctx, req.Email, token); err != nil {
		s.log.Error("failed to send verification email", zap.String("email", req.Email), zap.Error(err))
	}
	s.log.Info("newsletter subscription pending verification",
		zap.String("email", req.Email),
		zap.Stringer("status", resolution.Status),
		zap.Uint("shop_id", req.Scope.ShopID))

	return &SubscriptionResult{Message: MsgVerificationSent, Status: resolution.Status, Pending: true}, nil
}

func (s *NewsletterService) register(ctx context.Context, req SubscriptionRequest, resolution *Resolution) (entity.RegistrationStatus, error) {
	switch resolution.Status {
	case entity.GuestNotRegistered:
		if err := s.subscribers.Create(ctx, s.newGuestRow(req, true)); err != nil {
			return resolution.Status, fmt.Errorf("%w: %w", ErrSubscriptionFailed, err)
		}
		return entity.GuestRegistered, nil
	case entity.CustomerNotRegistered:
		if err := s.customers.Subscribe(ctx, resolution.Customer.ID, req.RemoteIP, s.now()); err != nil {
			return resolution.Status, fmt.Errorf("%w: %w", ErrSubscriptionFailed, err)
		}
		return entity.CustomerRegistered, nil
	default:
		return resolution.Status, ErrAlreadyRegistered
	}
}

// newGuestRow stamps the row with second precision so the token reference
// survives the round trip through the database.
func (s *NewsletterService) newGuestRow(req SubscriptionRequest, active bool) *entity.NewsletterSubscriber {
	subscriber := &entity.NewsletterSubscriber{
		ShopID:         req.Scope.ShopID,
		ShopGroupID:    req.Scope.ShopGroupID,
		Email:          req.Email,
		SubscribedAt:   s.now().UTC().Truncate(time.Second),
		RegistrationIP: req.RemoteIP,
		Active:         active,
	}
	if referer := sanitizeReferer(req.Referer); referer != "" {
		subscriber.HTTPReferer = &referer
	}
	return subscriber
}

// maxRefererLength is the width of the http_referer column in characters.
const maxRefererLength = 255

// sanitizeReferer drops invalid UTF-8 and cuts the value on a rune boundary.
func sanitizeReferer(raw string) string {
	referer := strings.ToValidUTF8(raw, "")
	if utf8.RuneCountInString(referer) <= maxRefererLength {
		return referer
	}
	runes := []rune(referer)
	return string(runes[:maxRefererLength])
}

// Unsubscribe removes a registered email from the list in whichever space it is registered.
func (s *NewsletterService) Unsubscribe(ctx context.Context, req SubscriptionRequest) (*SubscriptionResult, error) {
	resolution, err := s.resolver.StatusOf(ctx, req.Email, req.Scope)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsubscriptionFailed, err)
	}
	if !resolution.Status.IsRegistered() {
		return nil, ErrNotRegistered
	}

	var next entity.RegistrationStatus
	switch resolution.Status {
	case entity.GuestRegistered:
		if _, err := s.subscribers.DeleteByEmail(ctx, req.Scope.ShopID, req.Email); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnsubscriptionFailed, err)
		}
		next = entity.GuestNotRegistered
	case entity.CustomerRegistered:
		if err := s.customers.Unsubscribe(ctx, resolution.Customer.ID); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUnsubscriptionFailed, err)
		}
		next = entity.CustomerNotRegistered
	}

	s.log.Info("newsletter unsubscription",
		zap.String("email", req.Email),
		zap.Stringer("from", resolution.Status),
		zap.Uint("shop_id", req.Scope.ShopID))
	return &SubscriptionResult{Message: MsgUnsubscribed, Status: next}, nil
}

// ConfirmEmail finishes a double opt-in. The token is looked up among pending
// guests first, then among unsubscribed accounts.
func (s *NewsletterService) ConfirmEmail(ctx context.Context, token, remoteIP string) (*SubscriptionResult, error) {
	match, err := s.tokens.Resolve(ctx, token)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, ErrInvalidConfirmationToken
		}
		return nil, fmt.Errorf("%w: %w", ErrSubscriptionFailed, err)
	}

	var status entity.RegistrationStatus
	switch match.Space {
	case SpaceGuest:
		if _, err := s.subscribers.Activate(ctx, match.ID); err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return nil, ErrInvalidConfirmationToken
			}
			return nil, fmt.Errorf("%w: %w", ErrSubscriptionFailed, err)
		}
		status = entity.GuestRegistered
	case SpaceCustomer:
		if err := s.customers.Subscribe(ctx, match.ID, remoteIP, s.now()); err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return nil, ErrInvalidConfirmationToken
			}
			return nil, fmt.Errorf("%w: %w", ErrSubscriptionFailed, err)
		}
		status = entity.CustomerRegistered
	}

	s.log.Info("newsletter email confirmed", zap.String("email", match.Email), zap.Stringer("status", status))

	settings, err := s.settings.Get(ctx)
	if err != nil {
		// the subscription is committed, only the follow-up mails are lost
		s.log.Error("failed to load settings after confirmation", zap.Error(err))
	} else {
		s.afterRegistration(ctx, match.Email, settings)
	}
	return &SubscriptionResult{Message: MsgConfirmationSuccessful, Status: status}, nil
}

// afterRegistration sends the follow-up mails. Failures are logged and never undo the registration.
func (s *NewsletterService) afterRegistration(ctx context.Context, email string, settings *Settings) {
	if settings.VoucherCode != "" {
		if err := s.mailer.SendVoucherEmail(ctx, email, settings.VoucherCode); err != nil {
			s.log.Error("failed to send voucher email", zap.String("email", email), zap.Error(err))
		}
	}
	if settings.ConfirmationEmail {
		if err := s.mailer.SendConfirmationEmail(ctx, email); err != nil {
			s.log.Error("failed to send confirmation email", zap.String("email", email), zap.Error(err))
		}
	}
}

// HandleCustomerCreated removes guest rows shadowed by a freshly created account.
func (s *NewsletterService) HandleCustomerCreated(ctx context.Context, shopID uint, email string) (int64, error) {
	email = strings.TrimSpace(email)
	if !s.ValidEmail(email) {
		return 0, nil
	}
	deleted, err := s.subscribers.DeleteByEmail(ctx, shopID, email)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		s.log.Info("removed guest subscriptions shadowed by a new account",
			zap.String("email", email),
			zap.Uint("shop_id", shopID),
			zap.Int64("rows", deleted))
	}
	return deleted, nil
}

// ConfirmSubscription sends the follow-up mails of a subscription made outside
// the newsletter block, e.g. the opt-in box of the account signup form.
func (s *NewsletterService) ConfirmSubscription(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if !s.ValidEmail(email) {
		return ErrInvalidEmail
	}
	settings, err := s.settings.Get(ctx)
	if err != nil {
		return err
	}
	s.afterRegistration(ctx, email, settings)
	return nil
}

// ToggleMergedSubscriber is the admin action of the merged list. Guest rows are
// deactivated; account rows have their newsletter flag flipped. It returns the new flag.
func (s *NewsletterService) ToggleMergedSubscriber(ctx context.Context, id entity.MergedID) (bool, error) {
	if id.Guest {
		if err := s.subscribers.Deactivate(ctx, id.ID); err != nil {
			return false, err
		}
		s.log.Info("guest subscriber deactivated by admin", zap.String("id", id.String()))
		return false, nil
	}

	customer, err := s.customers.GetByID(ctx, id.ID)
	if err != nil {
		return false, err
	}
	if customer.Newsletter {
		err = s.customers.Unsubscribe(ctx, customer.ID)
	} else {
		// the registration IP belongs to the visitor, the admin action keeps it
		err = s.customers.Subscribe(ctx, customer.ID, customer.RegistrationIP, s.now())
	}
	if err != nil {
		return false, err
	}
	s.log.Info("customer newsletter flag toggled by admin",
		zap.String("id", id.String()),
		zap.Bool("newsletter", !customer.Newsletter))
	return !customer.Newsletter, nil
}
