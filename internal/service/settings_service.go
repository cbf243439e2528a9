package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/thirtybees/blocknewsletter/internal/config"
	"github.com/thirtybees/blocknewsletter/internal/domain/entity"
	"github.com/thirtybees/blocknewsletter/internal/domain/repository"
	apperrors "github.com/thirtybees/blocknewsletter/internal/pkg/errors"
)

const (
	settingsCacheKey = "newsletter:settings"
	saltLength       = 16
	saltAlphabet     = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

// voucherCodePattern rejects the characters the shop forbids in cart rule codes.
var voucherCodePattern = regexp.MustCompile(`^[^!<>,;?=+()@"°{}_$%:]{3,32}$`)

// Settings is the editable configuration of the newsletter module.
type Settings struct {
	VerificationEmail bool   `json:"verification_email"`
	ConfirmationEmail bool   `json:"confirmation_email"`
	VoucherCode       string `json:"voucher_code"`
	CaptchaProvider   string `json:"captcha_provider"`
}

// UpdateSettingsInput carries a partial update. Nil fields stay unchanged.
type UpdateSettingsInput struct {
	VerificationEmail *bool   `json:"verification_email"`
	ConfirmationEmail *bool   `json:"confirmation_email"`
	VoucherCode       *string `json:"voucher_code"`
	CaptchaProvider   *string `json:"captcha_provider"`
}

// ValidateVoucherCode accepts an empty code (voucher disabled) or a valid cart rule code.
func ValidateVoucherCode(code string) error {
	if code == "" || voucherCodePattern.MatchString(code) {
		return nil
	}
	return ErrInvalidVoucherCode
}

// SettingsService reads and writes module settings. Reads go through a short
// lived redis cache which is dropped on every update.
type SettingsService struct {
	repo     repository.SettingRepository
	cache    repository.CacheRepository
	defaults config.NewsletterConfig
	ttl      time.Duration
	log      *zap.Logger

	saltMu sync.Mutex
	salt   string
}

func NewSettingsService(
	repo repository.SettingRepository,
	cache repository.CacheRepository,
	defaults config.NewsletterConfig,
	log *zap.Logger,
) *SettingsService {
	ttl := defaults.SettingsTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &SettingsService{
		repo:     repo,
		cache:    cache,
		defaults: defaults,
		ttl:      ttl,
		log:      log,
	}
}

// Seed stores the configured defaults for keys that were never saved, and the salt.
func (s *SettingsService) Seed(ctx context.Context) error {
	if err := ValidateVoucherCode(s.defaults.VoucherCode); err != nil {
		return fmt.Errorf("configured voucher code: %w", err)
	}
	seed := map[string]string{
		entity.SettingVerificationEmail: formatBool(s.defaults.VerificationEmail),
		entity.SettingConfirmationEmail: formatBool(s.defaults.ConfirmationEmail),
		entity.SettingVoucherCode:       s.defaults.VoucherCode,
		entity.SettingCaptchaProvider:   s.defaults.CaptchaProvider,
	}
	for key, value := range seed {
		created, err := s.repo.CreateIfAbsent(ctx, key, value)
		if err != nil {
			return err
		}
		if created {
			s.log.Info("seeded newsletter setting", zap.String("key", key))
		}
	}
	if _, err := s.SecretSalt(ctx); err != nil {
		return err
	}
	return s.invalidate(ctx)
}

// Get returns the current settings.
func (s *SettingsService) Get(ctx context.Context) (*Settings, error) {
	var cached Settings
	err := s.cache.GetJSON(ctx, settingsCacheKey, &cached)
	if err == nil {
		return &cached, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		s.log.Warn("settings cache read failed", zap.Error(err))
	}

	values, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	settings := s.fromValues(values)

	if err := s.cache.SetJSON(ctx, settingsCacheKey, settings, s.ttl); err != nil {
		s.log.Warn("settings cache write failed", zap.Error(err))
	}
	return settings, nil
}

func (s *SettingsService) fromValues(values map[string]string) *Settings {
	settings := &Settings{
		VerificationEmail: s.defaults.VerificationEmail,
		ConfirmationEmail: s.defaults.ConfirmationEmail,
		VoucherCode:       s.defaults.VoucherCode,
		CaptchaProvider:   s.defaults.CaptchaProvider,
	}
	if v, ok := values[entity.SettingVerificationEmail]; ok {
		settings.VerificationEmail = parseBool(v)
	}
	if v, ok := values[entity.SettingConfirmationEmail]; ok {
		settings.ConfirmationEmail = parseBool(v)
	}
	if v, ok := values[entity.SettingVoucherCode]; ok {
		settings.VoucherCode = v
	}
	if v, ok := values[entity.SettingCaptchaProvider]; ok {
		settings.CaptchaProvider = v
	}
	return settings
}

// Update applies a partial update and returns the resulting settings.
func (s *SettingsService) Update(ctx context.Context, input UpdateSettingsInput) (*Settings, error) {
	updates := make(map[string]string, 4)
	if input.VerificationEmail != nil {
		updates[entity.SettingVerificationEmail] = formatBool(*input.VerificationEmail)
	}
	if input.ConfirmationEmail != nil {
		updates[entity.SettingConfirmationEmail] = formatBool(*input.ConfirmationEmail)
	}
	if input.VoucherCode != nil {
		code := strings.TrimSpace(*input.VoucherCode)
		if err := ValidateVoucherCode(code); err != nil {
			return nil, err
		}
		updates[entity.SettingVoucherCode] = code
	}
	if input.CaptchaProvider != nil {
		updates[entity.SettingCaptchaProvider] = strings.TrimSpace(*input.CaptchaProvider)
	}

	for key, value := range updates {
		if err := s.repo.Set(ctx, key, value); err != nil {
			return nil, err
		}
	}
	if err := s.invalidate(ctx); err != nil {
		s.log.Warn("settings cache invalidation failed", zap.Error(err))
	}
	return s.Get(ctx)
}

// CaptchaProvider returns the selected captcha provider id.
func (s *SettingsService) CaptchaProvider(ctx context.Context) (string, error) {
	settings, err := s.Get(ctx)
	if err != nil {
		return "", err
	}
	return settings.CaptchaProvider, nil
}

// SecretSalt returns the token salt, generating and storing it on first use.
// Once loaded it never changes for the lifetime of the process.
func (s *SettingsService) SecretSalt(ctx context.Context) (string, error) {
	s.saltMu.Lock()
	defer s.saltMu.Unlock()
	if s.salt != "" {
		return s.salt, nil
	}

	salt, err := s.repo.Get(ctx, entity.SettingSecretSalt)
	if errors.Is(err, apperrors.ErrNotFound) || (err == nil && salt == "") {
		salt, err = s.createSalt(ctx)
	}
	if err != nil {
		return "", fmt.Errorf("failed to load secret salt: %w", err)
	}
	s.salt = salt
	return salt, nil
}

func (s *SettingsService) createSalt(ctx context.Context) (string, error) {
	generated, err := randomSalt()
	if err != nil {
		return "", err
	}
	created, err := s.repo.CreateIfAbsent(ctx, entity.SettingSecretSalt, generated)
	if err != nil {
		return "", err
	}
	if created {
		s.log.Info("generated newsletter secret salt")
		return generated, nil
	}
	// another instance won the race
	return s.repo.Get(ctx, entity.SettingSecretSalt)
}

func (s *SettingsService) invalidate(ctx context.Context) error {
	return s.cache.Delete(ctx, settingsCacheKey)
}

func randomSalt() (string, error) {
	buf := make([]byte, saltLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}
	for i, b := range buf {
		buf[i] = saltAlphabet[int(b)%len(saltAlphabet)]
	}
	return string(buf), nil
}

func formatBool(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
