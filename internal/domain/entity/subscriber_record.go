package entity

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// guestIDPrefix tags guest identities so they never collide with account ids.
const guestIDPrefix = "N"

// SubscriberRecord is one row of the merged subscriber list and of the export.
// Guest rows carry no gender or names.
type SubscriberRecord struct {
	ID           string     `json:"id"`
	ShopName     string     `json:"shop_name"`
	Gender       string     `json:"gender"`
	LastName     string     `json:"lastname"`
	FirstName    string     `json:"firstname"`
	Email        string     `json:"email"`
	Subscribed   bool       `json:"subscribed"`
	SubscribedOn *time.Time `json:"subscribed_on,omitempty"`
}

// MergedID identifies a row of the merged list and routes actions to its store.
type MergedID struct {
	Guest bool
	ID    uint
}

// GuestRecordID formats a guest identity for the merged list.
func GuestRecordID(id uint) string {
	return guestIDPrefix + strconv.FormatUint(uint64(id), 10)
}

// CustomerRecordID formats an account identity for the merged list.
func CustomerRecordID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

// ParseMergedID parses "N12" (guest) or "12" (account).
func ParseMergedID(raw string) (MergedID, error) {
	raw = strings.TrimSpace(raw)
	guest := strings.HasPrefix(raw, guestIDPrefix)
	if guest {
		raw = strings.TrimPrefix(raw, guestIDPrefix)
	}
	id, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || id == 0 {
		return MergedID{}, fmt.Errorf("invalid subscriber id %q", raw)
	}
	return MergedID{Guest: guest, ID: uint(id)}, nil
}

func (m MergedID) String() string {
	if m.Guest {
		return GuestRecordID(m.ID)
	}
	return CustomerRecordID(m.ID)
}
