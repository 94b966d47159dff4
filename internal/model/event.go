package model

import (
	"strings"
	"time"
)

// EventType represents different types of events
type EventType string

// Common event type constants (with versioning)
const (
	// Inbound, consumed from CONTACT_EVENTS. The owner id is appended as the last token.
	V1ContactsSave   EventType = "v1.contacts.save"
	V1ContactsUpdate EventType = "v1.contacts.update"

	// Outbound, published by the reminder job.
	V1FollowupsDue EventType = "v1.followups.due"
)

// Event sources recorded in Contact.LastEvent.
const (
	EventSourceHTTP = "http"
	EventSourceNATS = "nats"
)

// MapToBaseEventType attempts to map an input string (potentially with extra identifiers)
// back to a known base EventType constant.
// It returns the mapped EventType and true if successful, or an empty EventType ("")
// and false if no mapping is found.
func MapToBaseEventType(input string) (EventType, bool) {
	if isKnownEventType(EventType(input)) {
		return EventType(input), true
	}

	lastDotIndex := strings.LastIndex(input, ".")
	if lastDotIndex <= 0 {
		return "", false
	}

	base := EventType(input[:lastDotIndex])
	if isKnownEventType(base) {
		return base, true
	}
	return "", false
}

func isKnownEventType(e EventType) bool {
	switch e {
	case V1ContactsSave, V1ContactsUpdate, V1FollowupsDue:
		return true
	}
	return false
}

// OwnerFromSubject returns the trailing owner token of a subject such as
// "v1.contacts.save.<owner>". ok is false when the subject has no owner token.
func OwnerFromSubject(subject string) (string, bool) {
	base, found := MapToBaseEventType(subject)
	if !found || string(base) == subject {
		return "", false
	}
	owner := subject[len(base)+1:]
	if owner == "" {
		return "", false
	}
	return owner, true
}

// Subject builds the owner-scoped subject for an event type.
func (e EventType) Subject(ownerID string) string {
	return string(e) + "." + ownerID
}

// MessageMetadata is what a handler learns about the delivery of one message.
type MessageMetadata struct {
	ConsumerSequence uint64
	StreamSequence   uint64
	NumDelivered     uint64
	NumPending       uint64
	Timestamp        time.Time
	Stream           string
	Consumer         string
	Domain           string
	MessageID        string
	MessageSubject   string
	OwnerID          string
	RequestID        string
}

// ToLastEvent converts MessageMetadata to the LastEvent stored on a contact.
func (e MessageMetadata) ToLastEvent() *LastEvent {
	return &LastEvent{
		Source:         EventSourceNATS,
		RequestID:      e.RequestID,
		Stream:         e.Stream,
		Subject:        e.MessageSubject,
		StreamSequence: e.StreamSequence,
		MessageID:      e.MessageID,
		ReceivedAt:     e.Timestamp,
	}
}

// LastEvent records which transport delivered the latest write of a contact.
type LastEvent struct {
	Source         string    `json:"source"`
	RequestID      string    `json:"request_id,omitempty"`
	Stream         string    `json:"stream,omitempty"`
	Subject        string    `json:"subject,omitempty"`
	StreamSequence uint64    `json:"stream_sequence,omitempty"`
	MessageID      string    `json:"message_id,omitempty"`
	ReceivedAt     time.Time `json:"received_at"`
}
