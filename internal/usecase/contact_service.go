package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/linkedin-followup-tracker/followup-tracker/internal/apperrors"
	"github.com/linkedin-followup-tracker/followup-tracker/internal/model"
	"github.com/linkedin-followup-tracker/followup-tracker/internal/observer"
	"github.com/linkedin-followup-tracker/followup-tracker/internal/validator"
	"github.com/linkedin-followup-tracker/followup-tracker/pkg/logger"
)

// SaveContact reconciles one observation from the browser extension into the
// owner's contact book and returns the stored row. It reads at most three
// times and writes exactly once.
func (s *ContactService) SaveContact(ctx context.Context, payload model.SaveContactPayload, lastEvent *model.LastEvent) (*model.Contact, error) {
	log := logger.FromContext(ctx)
	start := time.Now()

	ownerID, err := requireOwner(ctx)
	if err != nil {
		observer.IncContactSave("unauthenticated", "none")
		return nil, err
	}

	payload.Normalize()
	if err := validator.Validate(payload); err != nil {
		log.Warn("Save payload rejected", zap.Error(err))
		observer.IncContactSave("validation", "none")
		return nil, err
	}

	in, err := parseSaveInput(&payload)
	if err != nil {
		observer.IncContactSave("validation", "none")
		return nil, err
	}
	if in.email != nil && validator.ValidateVar(*in.email, "email") != nil {
		log.Warn("Dropping malformed email from save", zap.String("linkedin_url", payload.LinkedinURL))
		in.email = nil
	}
	if in.rawStatus != "" && !in.status.IsValid() {
		log.Warn("Unknown status on save", zap.String("status", in.rawStatus))
	}

	existing, match, err := s.resolveExisting(ctx, ownerID, &payload)
	if err != nil {
		observer.IncContactSave(apperrors.Kind(err), "none")
		if apperrors.IsInternalError(err) {
			log.Error("Contact lookup failed", zap.String("linkedin_url", payload.LinkedinURL), zap.Error(err))
		}
		return nil, err
	}

	now := s.clock.Now().UTC()
	followupDay := func(delay int) *datatypes.Date {
		return model.FollowupDate(s.today().AddDate(0, 0, s.followupDelay(delay)))
	}
	contact, downgradeBlocked := mergeContact(existing, in, ownerID, uuid.NewString(), now, followupDay, s.defaultDelayDays)
	if existing != nil && sameContent(existing, contact) {
		contact.LastEvent = existing.LastEvent
	} else {
		contact.LastEvent = encodeLastEvent(lastEvent, now)
	}

	if err := s.contactRepo.Upsert(ctx, contact); err != nil {
		log.Error("Contact upsert failed",
			zap.String("linkedin_url", contact.LinkedinURL),
			zap.String("match", string(match)),
			zap.Error(err),
		)
		observer.IncContactSave("internal", string(match))
		return nil, apperrors.Internal(err, "contact upsert")
	}

	outcome := "created"
	if existing != nil {
		outcome = "merged"
	}
	observer.IncContactSave(outcome, string(match))
	if downgradeBlocked {
		observer.IncStatusDowngradeBlocked()
	}
	if in.rawStatus == string(model.StatusMessaged) && (existing == nil || existing.NextFollowup == nil) {
		observer.IncFollowupScheduled("save")
	}

	log.Info("Contact saved",
		zap.String("contact_id", contact.ID),
		zap.String("status", string(contact.Status)),
		zap.String("match", string(match)),
		zap.Duration("duration", time.Since(start)),
	)
	return contact, nil
}

// parseSaveInput converts the validated wire payload into merge input.
func parseSaveInput(p *model.SaveContactPayload) (saveInput, error) {
	in := saveInput{
		name:         p.Name,
		linkedinURL:  p.LinkedinURL,
		rawStatus:    p.Status,
		status:       p.IncomingStatus(),
		company:      p.Company,
		role:         p.Role,
		location:     p.Location,
		profileImage: p.ProfileImage,
		email:        p.Email,
		phone:        p.Phone,
	}

	targets := []struct {
		name string
		raw  *string
		dst  **time.Time
	}{
		{"connection_sent_at", p.ConnectionSentAt, &in.connectionSentAt},
		{"connected_at", p.ConnectedAt, &in.connectedAt},
		{"last_messaged_at", p.LastMessagedAt, &in.lastMessagedAt},
		{"last_replied_at", p.LastRepliedAt, &in.lastRepliedAt},
		{"viewed_profile_at", p.ViewedProfileAt, &in.viewedProfileAt},
	}
	for _, t := range targets {
		parsed, err := model.ParseEventTime(t.raw)
		if err != nil {
			return saveInput{}, fmt.Errorf("%w: field '%s': %w", apperrors.ErrValidation, t.name, err)
		}
		*t.dst = parsed
	}
	return in, nil
}

// encodeLastEvent stores the transport metadata of the write. A missing
// descriptor is recorded as an HTTP write.
func encodeLastEvent(ev *model.LastEvent, now time.Time) datatypes.JSON {
	record := model.LastEvent{Source: model.EventSourceHTTP}
	if ev != nil {
		record = *ev
	}
	if record.ReceivedAt.IsZero() {
		record.ReceivedAt = now
	}
	data, err := json.Marshal(record)
	if err != nil {
		return nil
	}
	return datatypes.JSON(data)
}
