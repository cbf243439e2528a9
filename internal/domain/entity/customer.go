package entity

import "time"

// Customer is the host platform's account record. The newsletter module
// only writes Newsletter, NewsletterDateAdd and RegistrationIP.
type Customer struct {
	ID                uint       `gorm:"primaryKey" json:"id"`
	ShopID            uint       `gorm:"not null;default:1;index" json:"shop_id"`
	ShopGroupID       uint       `gorm:"not null;default:1" json:"shop_group_id"`
	GenderID          *uint      `json:"gender_id,omitempty"`
	FirstName         string     `gorm:"size:255;not null;default:''" json:"first_name"`
	LastName          string     `gorm:"size:255;not null;default:''" json:"last_name"`
	Email             string     `gorm:"size:255;not null;index" json:"email"`
	Newsletter        bool       `gorm:"not null;default:false" json:"newsletter"`
	NewsletterDateAdd *time.Time `gorm:"column:newsletter_date_add" json:"newsletter_date_add,omitempty"`
	RegistrationIP    string     `gorm:"column:ip_registration_newsletter;size:45;not null;default:''" json:"-"`
	Optin             bool       `gorm:"not null;default:false" json:"optin"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func (Customer) TableName() string {
	return "customers"
}

// Shop is a storefront. Subscriptions are always scoped to one shop.
type Shop struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	ShopGroupID uint   `gorm:"not null;default:1" json:"shop_group_id"`
	Name        string `gorm:"size:64;not null" json:"name"`
}

func (Shop) TableName() string {
	return "shops"
}

// Scope returns the shop scope used by subscription queries.
func (s *Shop) Scope() ShopScope {
	return ShopScope{ShopID: s.ID, ShopGroupID: s.ShopGroupID}
}

// Gender is only read to label exported rows.
type Gender struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"size:20;not null" json:"name"`
}

func (Gender) TableName() string {
	return "genders"
}

// ShopScope identifies the shop a request runs in.
type ShopScope struct {
	ShopID      uint
	ShopGroupID uint
}
