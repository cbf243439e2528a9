package entity

import "time"

// Setting is one process-wide configuration value of the newsletter module.
type Setting struct {
	Key       string    `gorm:"primaryKey;size:64" json:"key"`
	Value     string    `gorm:"type:text;not null;default:''" json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Setting) TableName() string {
	return "newsletter_settings"
}

// Setting keys.
const (
	SettingVerificationEmail = "newsletter.verification_email"
	SettingConfirmationEmail = "newsletter.confirmation_email"
	SettingVoucherCode       = "newsletter.voucher_code"
	SettingCaptchaProvider   = "newsletter.captcha_provider"
	SettingSecretSalt        = "newsletter.secret_salt"
)
