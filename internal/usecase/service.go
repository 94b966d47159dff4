package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/linkedin-followup-tracker/followup-tracker/internal/apperrors"
	"github.com/linkedin-followup-tracker/followup-tracker/internal/owner"
	"github.com/linkedin-followup-tracker/followup-tracker/internal/storage"
	"github.com/linkedin-followup-tracker/followup-tracker/pkg/utils"
)

// DefaultFollowupDelayDays is used when neither the contact nor the
// service configuration supplies a positive delay.
const DefaultFollowupDelayDays = 2

// nameMatchLimit caps the fallback lookup. Two rows are enough to tell
// "exactly one" from "several".
const nameMatchLimit = 2

// Clock supplies the current instant. Tests inject a fixed one.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock in UTC.
var SystemClock Clock = ClockFunc(utils.Now)

// ContactService reconciles inbound saves and applies manual edits.
type ContactService struct {
	contactRepo        storage.ContactRepo
	exhaustedEventRepo storage.ExhaustedEventRepo
	clock              Clock
	defaultDelayDays   int
	location           *time.Location
}

// Option configures a ContactService.
type Option func(*ContactService)

// WithClock overrides the wall clock.
func WithClock(c Clock) Option {
	return func(s *ContactService) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithDefaultDelayDays sets the follow-up delay used when a contact has none.
func WithDefaultDelayDays(days int) Option {
	return func(s *ContactService) {
		if days > 0 {
			s.defaultDelayDays = days
		}
	}
}

// WithLocation sets the time zone that decides what "today" is.
func WithLocation(loc *time.Location) Option {
	return func(s *ContactService) {
		if loc != nil {
			s.location = loc
		}
	}
}

// NewContactService creates a new contact service
func NewContactService(
	contactRepo storage.ContactRepo,
	exhaustedEventRepo storage.ExhaustedEventRepo,
	opts ...Option,
) *ContactService {
	s := &ContactService{
		contactRepo:        contactRepo,
		exhaustedEventRepo: exhaustedEventRepo,
		clock:              SystemClock,
		defaultDelayDays:   DefaultFollowupDelayDays,
		location:           time.UTC,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// requireOwner returns the verified owner or an unauthenticated error.
func requireOwner(ctx context.Context) (string, error) {
	ownerID, err := owner.FromContext(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %w", apperrors.ErrUnauthenticated, err)
	}
	return ownerID, nil
}

// today is the current calendar day in the configured zone.
func (s *ContactService) today() time.Time {
	return s.clock.Now().In(s.location)
}

// followupDelay picks the contact's own delay when positive.
func (s *ContactService) followupDelay(existing int) int {
	if existing > 0 {
		return existing
	}
	return s.defaultDelayDays
}
