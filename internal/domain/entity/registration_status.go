package entity

// RegistrationStatus is the derived subscription state of an email within a shop.
type RegistrationStatus int

const (
	// GuestNotRegistered: no account and no active guest row.
	GuestNotRegistered RegistrationStatus = -1
	// CustomerNotRegistered: an account exists with the newsletter flag off.
	CustomerNotRegistered RegistrationStatus = 0
	// GuestRegistered: an active guest row exists. It wins over any account flag.
	GuestRegistered RegistrationStatus = 1
	// CustomerRegistered: the account newsletter flag is on.
	CustomerRegistered RegistrationStatus = 2
)

// IsRegistered возвращает true для подтверждённых подписок
func (s RegistrationStatus) IsRegistered() bool {
	return s > 0
}

// IsGuest reports whether the status belongs to the guest identity space.
func (s RegistrationStatus) IsGuest() bool {
	return s == GuestNotRegistered || s == GuestRegistered
}

func (s RegistrationStatus) String() string {
	switch s {
	case GuestNotRegistered:
		return "guest-not-registered"
	case CustomerNotRegistered:
		return "customer-not-registered"
	case GuestRegistered:
		return "guest-registered"
	case CustomerRegistered:
		return "customer-registered"
	default:
		return "unknown"
	}
}
