package dto

import "time"

// SubscribeRequest is the body of the newsletter block form
type SubscribeRequest struct {
	Email   string            `json:"email" binding:"required"`
	Action  string            `json:"action" binding:"required"`
	Captcha map[string]string `json:"captcha"`
}

// SubscriptionResponse is returned for subscribe, unsubscribe and confirm
type SubscriptionResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"`
	Pending bool   `json:"pending"`
}

// CaptchaResponse carries the markup of the selected captcha provider
type CaptchaResponse struct {
	Provider string `json:"provider,omitempty"`
	HTML     string `json:"html"`
}

// CustomerCreatedRequest is sent by the shop when an account is created
type CustomerCreatedRequest struct {
	ShopID uint   `json:"shop_id" binding:"required"`
	Email  string `json:"email" binding:"required"`

	// Newsletter is set when the customer ticked the newsletter box on signup
	Newsletter bool `json:"newsletter"`
}

// CustomerCreatedResponse reports how many guest rows were removed
type CustomerCreatedResponse struct {
	Removed int64 `json:"removed"`
}

// AdminLoginRequest is the back-office login form
type AdminLoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AdminLoginResponse carries the bearer token
type AdminLoginResponse struct {
	AccessToken string    `json:"accessToken"`
	TokenType   string    `json:"tokenType"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// ToggleSubscriberResponse reports the state after an admin toggle
type ToggleSubscriberResponse struct {
	ID         string `json:"id"`
	Subscribed bool   `json:"subscribed"`
}
