package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// EventTimeLayout is the wire format of producer-supplied timestamps.
const EventTimeLayout = time.RFC3339

// FollowupDateLayout is the wire format of a follow-up calendar date.
const FollowupDateLayout = "2006-01-02"

// --- Save Contact Payload --- //
// SaveContactPayload is one observation pushed by the browser extension.
type SaveContactPayload struct {
	Name        string `json:"name" validate:"required"`
	LinkedinURL string `json:"linkedin_url" validate:"required"`
	Status      string `json:"status,omitempty"`

	Company      *string `json:"company,omitempty"`
	Role         *string `json:"role,omitempty"`
	Location     *string `json:"location,omitempty"`
	ProfileImage *string `json:"profile_image,omitempty"`
	Email        *string `json:"email,omitempty"`
	Phone        *string `json:"phone,omitempty"`

	ConnectionSentAt *string `json:"connection_sent_at,omitempty" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	ConnectedAt      *string `json:"connected_at,omitempty" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	LastMessagedAt   *string `json:"last_messaged_at,omitempty" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	LastRepliedAt    *string `json:"last_replied_at,omitempty" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	ViewedProfileAt  *string `json:"viewed_profile_at,omitempty" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

// Normalize trims every field in place and drops blank optional values, so
// an empty string from the producer counts as "not supplied".
func (p *SaveContactPayload) Normalize() {
	p.Name = strings.TrimSpace(p.Name)
	p.LinkedinURL = strings.TrimSpace(p.LinkedinURL)
	p.Status = strings.TrimSpace(p.Status)

	for _, f := range []**string{
		&p.Company, &p.Role, &p.Location, &p.ProfileImage, &p.Email, &p.Phone,
		&p.ConnectionSentAt, &p.ConnectedAt, &p.LastMessagedAt, &p.LastRepliedAt, &p.ViewedProfileAt,
	} {
		*f = blankToNil(*f)
	}
}

func blankToNil(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// IncomingStatus returns the requested status, Pending when none was sent.
func (p *SaveContactPayload) IncomingStatus() ContactStatus {
	if p.Status == "" {
		return StatusPending
	}
	return ContactStatus(p.Status)
}

// ParseEventTime converts an optional wire timestamp. Nil and blank values
// yield nil.
func ParseEventTime(raw *string) (*time.Time, error) {
	if raw == nil {
		return nil, nil
	}
	s := strings.TrimSpace(*raw)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(EventTimeLayout, s)
	if err != nil {
		return nil, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	t = t.UTC()
	return &t, nil
}

// --- Update Contact Payload --- //
// UpdateContactPayload is a manual edit from the dashboard. Every field but
// ID distinguishes absent from null.
type UpdateContactPayload struct {
	ID string `json:"id"`

	Status           Optional[string]    `json:"status"`
	Notes            Optional[string]    `json:"notes"`
	NextFollowup     Optional[string]    `json:"next_followup"`
	Email            Optional[string]    `json:"email"`
	Phone            Optional[string]    `json:"phone"`
	Company          Optional[string]    `json:"company"`
	Role             Optional[string]    `json:"role"`
	ConnectedAt      Optional[time.Time] `json:"connected_at"`
	LastMessagedAt   Optional[time.Time] `json:"last_messaged_at"`
	LastRepliedAt    Optional[time.Time] `json:"last_replied_at"`
	ViewedProfileAt  Optional[time.Time] `json:"viewed_profile_at"`
	AutoFollowupDays Optional[int]       `json:"auto_followup_days"`
}

// IsEmpty reports whether no field besides ID was supplied.
func (p *UpdateContactPayload) IsEmpty() bool {
	return !p.Status.Set && !p.Notes.Set && !p.NextFollowup.Set &&
		!p.Email.Set && !p.Phone.Set && !p.Company.Set && !p.Role.Set &&
		!p.ConnectedAt.Set && !p.LastMessagedAt.Set && !p.LastRepliedAt.Set &&
		!p.ViewedProfileAt.Set && !p.AutoFollowupDays.Set
}

// ParseFollowupDate accepts either a calendar date or a full RFC 3339 timestamp.
func ParseFollowupDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(FollowupDateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid follow-up date %q", s)
	}
	return t, nil
}

// --- Follow-up Reminder Payload --- //
// FollowupDigest is published once per owner by the reminder job.
type FollowupDigest struct {
	OwnerID  string               `json:"owner_id"`
	Date     string               `json:"date"`
	Contacts []FollowupDigestItem `json:"contacts"`
}

// FollowupDigestItem is the subset of a contact a reminder needs.
type FollowupDigestItem struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	LinkedinURL  string        `json:"linkedin_url"`
	Status       ContactStatus `json:"status"`
	NextFollowup string        `json:"next_followup"`
}

// --- DLQ Payload --- //
// DLQPayload represents the structure of messages sent to the Dead Letter Queue.
type DLQPayload struct {
	SourceSubject   string          `json:"source_subject"`          // The original subject the message was published to
	Owner           string          `json:"owner"`                   // Verified owner the original event was accepted for
	OriginalPayload json.RawMessage `json:"original_payload"`        // The raw JSON payload of the original message
	Error           string          `json:"error"`                   // The full error message encountered during processing
	ErrorType       string          `json:"error_type"`              // Type of error ('fatal', 'retryable', 'unknown')
	RetryCount      uint64          `json:"retry_count"`             // How many times delivery was attempted (NumDelivered from NATS metadata)
	MaxRetry        int             `json:"max_retry"`               // The configured maximum delivery attempts for the consumer
	NextRetryAt     *time.Time      `json:"next_retry_at,omitempty"` // Timestamp for the next scheduled retry attempt (set by DLQ worker)
	Timestamp       time.Time       `json:"ts"`                      // Timestamp when the message was sent to the DLQ
}
