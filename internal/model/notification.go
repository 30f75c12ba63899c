package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Channel is a delivery medium for a notification. Each channel has its own
// broker queue and its own sender client.
type Channel string

const (
	ChannelEmail Channel = "EMAIL"
	ChannelSMS   Channel = "SMS"
	ChannelPush  Channel = "PUSH"
)

// Channels returns all supported delivery channels.
func Channels() []Channel {
	return []Channel{ChannelEmail, ChannelSMS, ChannelPush}
}

// ParseChannel converts a string into a Channel, case-insensitively.
func ParseChannel(s string) (Channel, error) {
	switch Channel(strings.ToUpper(strings.TrimSpace(s))) {
	case ChannelEmail:
		return ChannelEmail, nil
	case ChannelSMS:
		return ChannelSMS, nil
	case ChannelPush:
		return ChannelPush, nil
	default:
		return "", fmt.Errorf("unknown channel %q", s)
	}
}

// Status is the delivery state of a notification. A record starts as PENDING
// and moves to exactly one of SENT or FAILED; terminal states never change.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusSent    Status = "SENT"
	StatusFailed  Status = "FAILED"
)

// Statuses returns all delivery statuses.
func Statuses() []Status {
	return []Status{StatusPending, StatusSent, StatusFailed}
}

// Terminal reports whether no further status transition is possible.
func (s Status) Terminal() bool {
	return s == StatusSent || s == StatusFailed
}

// ParseStatus converts a string into a Status, case-insensitively.
func ParseStatus(s string) (Status, error) {
	switch Status(strings.ToUpper(strings.TrimSpace(s))) {
	case StatusPending:
		return StatusPending, nil
	case StatusSent:
		return StatusSent, nil
	case StatusFailed:
		return StatusFailed, nil
	default:
		return "", fmt.Errorf("unknown status %q", s)
	}
}

// Notification represents a single per-channel delivery record. One client
// request fans out into one Notification per requested channel, each with an
// independent lifecycle.
type Notification struct {
	ID               uuid.UUID  `json:"id"`                         // unique identifier, assigned on insert
	RecipientID      string     `json:"recipientId"`                // opaque recipient identifier
	Channel          Channel    `json:"channel"`                    // delivery medium
	Payload          string     `json:"payload"`                    // opaque message body
	Status           Status     `json:"status"`                     // PENDING, SENT or FAILED
	CreatedAt        time.Time  `json:"createdAt"`                  // set at creation
	SentAt           *time.Time `json:"sentAt"`                     // set only on transition to SENT
	ErrorDescription string     `json:"errorDescription,omitempty"` // set only on transition to FAILED
	IsRead           bool       `json:"isRead"`                     // read flag, independent of delivery
	Archived         bool       `json:"archived"`                   // set by the archival sweep only
}
