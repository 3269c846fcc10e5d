package domain

import (
	"strings"
	"time"
)

// PendingAttendee is an event guest whose email matched no contact. It
// carries enough of the originating event to create the contact and a
// mirrored call record later. JSON tags let the CLI persist the pending
// list between the sync and resolve steps.
type PendingAttendee struct {
	Email           string    `json:"email"`
	DisplayName     string    `json:"display_name,omitempty"`
	ExternalEventID string    `json:"external_event_id"`
	Title           string    `json:"title"`
	StartsAt        time.Time `json:"starts_at"`
	EndsAt          time.Time `json:"ends_at"`
	Location        string    `json:"location,omitempty"`
	Notes           string    `json:"notes,omitempty"`
}

// NormalizeEmail lowercases and trims an attendee email for matching.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
