// Package application defines the provider-neutral calendar client
// contract consumed by the sync and availability layers.
package application

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/relaycrm/calsync/internal/identity/application/oauth"
)

// ErrInvalidWindow is returned when a query window is empty or inverted.
var ErrInvalidWindow = errors.New("window end must be after start")

// Window is a half-open [Start, End) time range.
type Window struct {
	Start time.Time
	End   time.Time
}

// NewWindow validates and builds a query window.
func NewWindow(start, end time.Time) (Window, error) {
	if !end.After(start) {
		return Window{}, ErrInvalidWindow
	}
	return Window{Start: start, End: end}, nil
}

// StatusCancelled marks events the provider reports as cancelled.
const StatusCancelled = "cancelled"

// Attendee is one participant of a provider event.
type Attendee struct {
	Email       string
	DisplayName string
	Self        bool
	Organizer   bool
}

// Event is a provider calendar event with concrete start and end times.
// All-day entries are excluded at the client level.
type Event struct {
	ID          string
	Title       string
	Description string
	Location    string
	Status      string
	Start       time.Time
	End         time.Time
	Attendees   []Attendee
}

// IsCancelled reports whether the provider cancelled the event.
func (e Event) IsCancelled() bool {
	return e.Status == StatusCancelled
}

// Guests returns the attendees other than the calendar owner.
func (e Event) Guests() []Attendee {
	var guests []Attendee
	for _, a := range e.Attendees {
		if a.Self || strings.TrimSpace(a.Email) == "" {
			continue
		}
		guests = append(guests, a)
	}
	return guests
}

// EventBody is the payload for creating or updating a provider event.
type EventBody struct {
	Title         string
	Description   string
	Location      string
	Start         time.Time
	End           time.Time
	AttendeeEmail string
	Notify        bool
}

// Client talks to one calendar provider on behalf of one credential.
// Implementations validate inputs before any network call and never
// retry authorization failures.
type Client interface {
	// ListEvents returns the events overlapping the window, expanded to
	// single instances and ordered by start time.
	ListEvents(ctx context.Context, cred *oauth.Credential, calendarID string, window Window) ([]Event, error)
	// CreateEvent creates an event and returns its provider ID.
	CreateEvent(ctx context.Context, cred *oauth.Credential, calendarID string, body EventBody) (string, error)
	// UpdateEvent rewrites an existing event.
	UpdateEvent(ctx context.Context, cred *oauth.Credential, calendarID, eventID string, body EventBody) error
	// DeleteEvent removes an event. Deleting an event the provider no
	// longer has is not an error.
	DeleteEvent(ctx context.Context, cred *oauth.Credential, calendarID, eventID string) error
}
