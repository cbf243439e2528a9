package service

import "errors"

// Newsletter flow errors. Handlers map them to a status code and a stable error_type.
var (
	ErrInvalidEmail         = errors.New("Invalid email address.")
	ErrInvalidVoucherCode   = errors.New("The voucher code is invalid.")
	ErrUnknownAction        = errors.New("Unknown newsletter action.")
	ErrAlreadyRegistered    = errors.New("This email address is already registered.")
	ErrNotRegistered        = errors.New("This email address is not registered.")
	ErrSubscriptionFailed   = errors.New("An error occurred while attempting to subscribe.")
	ErrUnsubscriptionFailed = errors.New("An error occurred while attempting to unsubscribe.")
	// ErrInvalidConfirmationToken covers both unknown tokens and emails confirmed in the meantime.
	ErrInvalidConfirmationToken = errors.New("This email is already registered and/or invalid.")
	ErrNoExportRecords          = errors.New("No customers found with these filters!")
)

// CaptchaError is returned when the captcha gate rejects a submission.
// Message is either the generic text or the provider's own.
type CaptchaError struct {
	Message string
}

func (e *CaptchaError) Error() string {
	return e.Message
}

// Success messages shown to the visitor.
const (
	MsgVerificationSent       = "A verification email has been sent. Please check your inbox."
	MsgSubscribed             = "You have successfully subscribed to this newsletter."
	MsgUnsubscribed           = "Unsubscription successful."
	MsgConfirmationSuccessful = "Thank you for subscribing to our newsletter."
)
