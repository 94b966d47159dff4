package usecase

import (
	"time"

	"gorm.io/datatypes"

	"github.com/linkedin-followup-tracker/followup-tracker/internal/model"
)

// MergeStatus decides the status written by a save.
//
// Ranked statuses never move backwards. An existing Lost stays Lost, an
// incoming Lost always applies, and an incoming value outside the
// enumeration never beats a stored one. hasExisting is false for a new
// contact, in which case anything but a member of the enumeration becomes
// Pending.
func MergeStatus(existing model.ContactStatus, hasExisting bool, incoming model.ContactStatus) model.ContactStatus {
	if incoming == "" {
		incoming = model.StatusPending
	}
	if !hasExisting {
		if incoming.IsValid() {
			return incoming
		}
		return model.StatusPending
	}

	switch {
	case existing == model.StatusLost:
		return model.StatusLost
	case incoming == model.StatusLost:
		return model.StatusLost
	case !incoming.IsRanked():
		return existing
	case existing.IsRanked() && existing.Rank() > incoming.Rank():
		return existing
	default:
		return incoming
	}
}

// sameContent reports whether a and b differ only in bookkeeping columns
// (updated_at, last_event). A save that changes nothing else keeps the
// stored last_event.
func sameContent(a, b *model.Contact) bool {
	return a.Name == b.Name &&
		a.LinkedinURL == b.LinkedinURL &&
		a.Status == b.Status &&
		a.AutoFollowupDays == b.AutoFollowupDays &&
		equalPtr(a.Company, b.Company) &&
		equalPtr(a.Role, b.Role) &&
		equalPtr(a.Location, b.Location) &&
		equalPtr(a.ProfileImage, b.ProfileImage) &&
		equalPtr(a.Email, b.Email) &&
		equalPtr(a.Phone, b.Phone) &&
		equalPtr(a.Notes, b.Notes) &&
		equalTime(a.ConnectionSentAt, b.ConnectionSentAt) &&
		equalTime(a.ConnectedAt, b.ConnectedAt) &&
		equalTime(a.LastMessagedAt, b.LastMessagedAt) &&
		equalTime(a.LastRepliedAt, b.LastRepliedAt) &&
		equalTime(a.ViewedProfileAt, b.ViewedProfileAt) &&
		equalDate(a.NextFollowup, b.NextFollowup)
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func equalDate(a, b *datatypes.Date) bool {
	if a == nil || b == nil {
		return a == b
	}
	return time.Time(*a).Equal(time.Time(*b))
}

// coalesce returns incoming when it carries a value, else existing.
func coalesce[T any](incoming, existing *T) *T {
	if incoming != nil {
		return incoming
	}
	return existing
}

// saveInput is a normalized, parsed save payload.
type saveInput struct {
	name        string
	linkedinURL string
	rawStatus   string
	status      model.ContactStatus

	company, role, location, profileImage, email, phone *string

	connectionSentAt, connectedAt, lastMessagedAt, lastRepliedAt, viewedProfileAt *time.Time
}

// mergeContact builds the row handed to the upsert. existing may be nil.
func mergeContact(existing *model.Contact, in saveInput, ownerID, newID string, now time.Time, followupDay func(delay int) *datatypes.Date, defaultDelay int) (*model.Contact, bool) {
	out := &model.Contact{
		ID:               newID,
		OwnerID:          ownerID,
		LinkedinURL:      in.linkedinURL,
		Name:             in.name,
		AutoFollowupDays: defaultDelay,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	var prev model.Contact
	if existing != nil {
		prev = *existing
		out.ID = prev.ID
		out.LinkedinURL = prev.LinkedinURL
		out.Notes = prev.Notes
		out.AutoFollowupDays = prev.AutoFollowupDays
		out.CreatedAt = prev.CreatedAt
	}

	out.Status = MergeStatus(prev.Status, existing != nil, in.status)
	downgradeBlocked := existing != nil && in.status.IsValid() && out.Status != in.status

	out.Company = coalesce(in.company, prev.Company)
	out.Role = coalesce(in.role, prev.Role)
	out.Location = coalesce(in.location, prev.Location)
	out.ProfileImage = coalesce(in.profileImage, prev.ProfileImage)
	out.Email = coalesce(in.email, prev.Email)
	out.Phone = coalesce(in.phone, prev.Phone)

	out.ConnectionSentAt = coalesce(in.connectionSentAt, prev.ConnectionSentAt)
	out.ConnectedAt = coalesce(in.connectedAt, prev.ConnectedAt)
	out.LastMessagedAt = coalesce(in.lastMessagedAt, prev.LastMessagedAt)
	out.LastRepliedAt = coalesce(in.lastRepliedAt, prev.LastRepliedAt)
	out.ViewedProfileAt = coalesce(in.viewedProfileAt, prev.ViewedProfileAt)

	// The follow-up gate looks at the raw request, not the merged status.
	out.NextFollowup = prev.NextFollowup
	if in.rawStatus == string(model.StatusMessaged) && prev.NextFollowup == nil {
		out.NextFollowup = followupDay(out.AutoFollowupDays)
	}

	return out, downgradeBlocked
}
