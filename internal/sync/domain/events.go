package domain

import (
	"time"

	"github.com/google/uuid"

	sharedDomain "github.com/relaycrm/calsync/internal/shared/domain"
)

const aggregateTypeCallRecord = "call_record"

// CallRecordCreatedEvent is raised when a new call record is created.
type CallRecordCreatedEvent struct {
	sharedDomain.BaseEvent
	UserID   uuid.UUID `json:"user_id"`
	Title    string    `json:"title"`
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`
}

// NewCallRecordCreatedEvent creates a CallRecordCreatedEvent.
func NewCallRecordCreatedEvent(record *CallRecord) *CallRecordCreatedEvent {
	return &CallRecordCreatedEvent{
		BaseEvent: sharedDomain.NewBaseEvent(record.ID(), aggregateTypeCallRecord, "calsync.callrecord.created"),
		UserID:    record.UserID(),
		Title:     record.Title(),
		StartsAt:  record.StartsAt(),
		EndsAt:    record.EndsAt(),
	}
}

// CallRecordMirroredEvent is raised when a record is created from a
// provider event during a sync pass.
type CallRecordMirroredEvent struct {
	sharedDomain.BaseEvent
	UserID          uuid.UUID `json:"user_id"`
	Provider        string    `json:"provider"`
	ExternalEventID string    `json:"external_event_id"`
}

// NewCallRecordMirroredEvent creates a CallRecordMirroredEvent.
func NewCallRecordMirroredEvent(record *CallRecord) *CallRecordMirroredEvent {
	return &CallRecordMirroredEvent{
		BaseEvent:       sharedDomain.NewBaseEvent(record.ID(), aggregateTypeCallRecord, "calsync.callrecord.mirrored"),
		UserID:          record.UserID(),
		Provider:        record.Provider(),
		ExternalEventID: record.ExternalEventID(),
	}
}

// CallRecordPushedEvent is raised when a record is propagated to the
// provider calendar.
type CallRecordPushedEvent struct {
	sharedDomain.BaseEvent
	UserID          uuid.UUID `json:"user_id"`
	Provider        string    `json:"provider"`
	ExternalEventID string    `json:"external_event_id"`
}

// NewCallRecordPushedEvent creates a CallRecordPushedEvent.
func NewCallRecordPushedEvent(record *CallRecord) *CallRecordPushedEvent {
	return &CallRecordPushedEvent{
		BaseEvent:       sharedDomain.NewBaseEvent(record.ID(), aggregateTypeCallRecord, "calsync.callrecord.pushed"),
		UserID:          record.UserID(),
		Provider:        record.Provider(),
		ExternalEventID: record.ExternalEventID(),
	}
}

// CallRecordReleasedEvent is raised when a record is detached from its
// provider event.
type CallRecordReleasedEvent struct {
	sharedDomain.BaseEvent
	UserID uuid.UUID `json:"user_id"`
}

// NewCallRecordReleasedEvent creates a CallRecordReleasedEvent.
func NewCallRecordReleasedEvent(record *CallRecord) *CallRecordReleasedEvent {
	return &CallRecordReleasedEvent{
		BaseEvent: sharedDomain.NewBaseEvent(record.ID(), aggregateTypeCallRecord, "calsync.callrecord.released"),
		UserID:    record.UserID(),
	}
}
