package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/linkedin-followup-tracker/followup-tracker/internal/apperrors"
	"github.com/linkedin-followup-tracker/followup-tracker/internal/model"
	"github.com/linkedin-followup-tracker/followup-tracker/internal/observer"
	"github.com/linkedin-followup-tracker/followup-tracker/internal/validator"
	"github.com/linkedin-followup-tracker/followup-tracker/pkg/logger"
)

// statusTimestampColumn is the timestamp stamped when a manual edit moves a
// contact into the status.
var statusTimestampColumn = map[model.ContactStatus]string{
	model.StatusConnected: "connected_at",
	model.StatusMessaged:  "last_messaged_at",
	model.StatusReplied:   "last_replied_at",
}

// UpdateContact applies a manual edit from the dashboard. Manual edits are
// authoritative: there is no downgrade protection.
func (s *ContactService) UpdateContact(ctx context.Context, payload model.UpdateContactPayload) (*model.Contact, error) {
	log := logger.FromContext(ctx)

	ownerID, err := requireOwner(ctx)
	if err != nil {
		observer.IncContactUpdate("unauthenticated")
		return nil, err
	}

	id := strings.TrimSpace(payload.ID)
	if id == "" {
		observer.IncContactUpdate("validation")
		return nil, fmt.Errorf("%w: contact id is required", apperrors.ErrValidation)
	}

	if payload.IsEmpty() {
		current, err := s.contactRepo.FindByIDAndOwner(ctx, id, ownerID)
		if err != nil {
			return nil, s.updateError(ctx, id, err)
		}
		observer.IncContactUpdate("noop")
		return current, nil
	}

	fields, scheduled, err := s.buildUpdateFields(ctx, id, ownerID, &payload)
	if err != nil {
		if apperrors.IsValidationError(err) {
			observer.IncContactUpdate("validation")
			return nil, err
		}
		return nil, s.updateError(ctx, id, err)
	}

	updated, err := s.contactRepo.UpdateFields(ctx, id, ownerID, fields)
	if err != nil {
		return nil, s.updateError(ctx, id, err)
	}

	if scheduled {
		observer.IncFollowupScheduled("manual")
	}
	observer.IncContactUpdate("updated")
	log.Info("Contact updated", zap.String("contact_id", id), zap.Int("fields", len(fields)))
	return updated, nil
}

// updateError maps repository failures onto the caller-facing categories.
func (s *ContactService) updateError(ctx context.Context, id string, err error) error {
	if apperrors.IsNotFoundError(err) {
		observer.IncContactUpdate("not_found")
		return fmt.Errorf("%w: contact %s", apperrors.ErrNotFound, id)
	}
	logger.FromContext(ctx).Error("Contact update failed", zap.String("contact_id", id), zap.Error(err))
	observer.IncContactUpdate("internal")
	return apperrors.Internal(err, "contact update")
}

// buildUpdateFields turns the tri-state payload into a column map. scheduled
// reports whether the edit set a follow-up on its own.
func (s *ContactService) buildUpdateFields(ctx context.Context, id, ownerID string, p *model.UpdateContactPayload) (map[string]interface{}, bool, error) {
	now := s.clock.Now().UTC()
	fields := map[string]interface{}{"updated_at": now}
	scheduled := false

	if p.Status.Set {
		status := model.ContactStatus(strings.TrimSpace(p.Status.Value))
		if p.Status.Null || status == "" {
			return nil, false, fmt.Errorf("%w: field 'status' must not be empty", apperrors.ErrValidation)
		}
		if err := validator.ValidateVar(string(status), "contact_status"); err != nil {
			return nil, false, fmt.Errorf("%w: field 'status' has unknown value %q", apperrors.ErrValidation, status)
		}
		fields["status"] = status

		if column, ok := statusTimestampColumn[status]; ok && !timestampField(p, column).Set {
			fields[column] = now
		}

		if status == model.StatusMessaged && !p.NextFollowup.Set {
			current, err := s.contactRepo.FindByIDAndOwner(ctx, id, ownerID)
			if err != nil {
				return nil, false, err
			}
			if current.NextFollowup == nil {
				delay := current.AutoFollowupDays
				if p.AutoFollowupDays.HasValue() {
					delay = p.AutoFollowupDays.Value
				}
				fields["next_followup"] = model.FollowupDate(s.today().AddDate(0, 0, s.followupDelay(delay)))
				scheduled = true
			}
		}
	}

	if p.Notes.Set {
		fields["notes"] = p.Notes.Ptr()
	}

	if p.NextFollowup.Set {
		if p.NextFollowup.Null || strings.TrimSpace(p.NextFollowup.Value) == "" {
			fields["next_followup"] = nil
		} else {
			day, err := model.ParseFollowupDate(p.NextFollowup.Value)
			if err != nil {
				return nil, false, fmt.Errorf("%w: field 'next_followup': %w", apperrors.ErrValidation, err)
			}
			fields["next_followup"] = model.FollowupDate(day)
		}
	}

	if p.Email.Set {
		email := trimmedPtr(p.Email)
		if email != nil {
			if err := validator.ValidateVar(*email, "email"); err != nil {
				return nil, false, fmt.Errorf("%w: field 'email' must be a valid email address", apperrors.ErrValidation)
			}
		}
		fields["email"] = email
	}
	if p.Phone.Set {
		fields["phone"] = trimmedPtr(p.Phone)
	}
	if p.Company.Set {
		fields["company"] = trimmedPtr(p.Company)
	}
	if p.Role.Set {
		fields["role"] = trimmedPtr(p.Role)
	}

	for _, column := range []string{"connected_at", "last_messaged_at", "last_replied_at", "viewed_profile_at"} {
		opt := timestampField(p, column)
		if !opt.Set {
			continue
		}
		if opt.Null {
			fields[column] = nil
			continue
		}
		fields[column] = opt.Value.UTC()
	}

	if p.AutoFollowupDays.Set {
		if p.AutoFollowupDays.Null || p.AutoFollowupDays.Value < 1 {
			return nil, false, fmt.Errorf("%w: field 'auto_followup_days' must be a positive number of days", apperrors.ErrValidation)
		}
		fields["auto_followup_days"] = p.AutoFollowupDays.Value
	}

	return fields, scheduled, nil
}

func timestampField(p *model.UpdateContactPayload, column string) model.Optional[time.Time] {
	switch column {
	case "connected_at":
		return p.ConnectedAt
	case "last_messaged_at":
		return p.LastMessagedAt
	case "last_replied_at":
		return p.LastRepliedAt
	case "viewed_profile_at":
		return p.ViewedProfileAt
	}
	return model.Optional[time.Time]{}
}

// trimmedPtr treats a blank string like null.
func trimmedPtr(o model.Optional[string]) *string {
	if !o.HasValue() {
		return nil
	}
	v := strings.TrimSpace(o.Value)
	if v == "" {
		return nil
	}
	return &v
}
