package entity

import "time"

// NewsletterSubscriber is a guest signup made through the newsletter block.
// Email is not unique: a pending row and its replacements can coexist.
type NewsletterSubscriber struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ShopID         uint      `gorm:"not null;default:1;index:idx_newsletter_shop_email" json:"shop_id"`
	ShopGroupID    uint      `gorm:"not null;default:1" json:"shop_group_id"`
	Email          string    `gorm:"size:255;not null;index:idx_newsletter_shop_email" json:"email"`
	SubscribedAt   time.Time `gorm:"column:newsletter_date_add;not null" json:"subscribed_at"`
	RegistrationIP string    `gorm:"column:ip_registration_newsletter;size:45;not null;default:''" json:"-"`
	HTTPReferer    *string   `gorm:"column:http_referer;size:255" json:"http_referer,omitempty"`
	Active         bool      `gorm:"not null;default:false" json:"active"`
}

// TableName определяет имя таблицы для GORM
func (NewsletterSubscriber) TableName() string {
	return "newsletter_subscribers"
}
