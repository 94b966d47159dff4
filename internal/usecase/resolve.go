package usecase

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/linkedin-followup-tracker/followup-tracker/internal/apperrors"
	"github.com/linkedin-followup-tracker/followup-tracker/internal/model"
	"github.com/linkedin-followup-tracker/followup-tracker/pkg/logger"
)

// MatchKind records how a save was tied to an existing record.
type MatchKind string

const (
	MatchNone  MatchKind = "new"
	MatchExact MatchKind = "exact"
	MatchName  MatchKind = "name_fallback"
)

// NameKey returns the first two whitespace-separated tokens of name joined
// by a single space.
func NameKey(name string) string {
	fields := strings.Fields(name)
	if len(fields) > 2 {
		fields = fields[:2]
	}
	return strings.Join(fields, " ")
}

// resolveExisting runs the claim check, the exact URL lookup and the name
// fallback, in that order. A nil contact with MatchNone means the save
// creates a new record.
func (s *ContactService) resolveExisting(ctx context.Context, ownerID string, payload *model.SaveContactPayload) (*model.Contact, MatchKind, error) {
	log := logger.FromContext(ctx)

	claimed, err := s.contactRepo.FindClaimedByOtherOwner(ctx, payload.LinkedinURL, ownerID)
	switch {
	case err == nil && claimed != nil:
		log.Info("Profile is tracked by another owner", zap.String("linkedin_url", payload.LinkedinURL))
		return nil, MatchNone, apperrors.ErrAlreadyClaimed
	case err != nil && !apperrors.IsNotFoundError(err):
		return nil, MatchNone, apperrors.Internal(err, "claim check")
	}

	existing, err := s.contactRepo.FindByOwnerAndURL(ctx, ownerID, payload.LinkedinURL)
	switch {
	case err == nil && existing != nil:
		return existing, MatchExact, nil
	case err != nil && !apperrors.IsNotFoundError(err):
		return nil, MatchNone, apperrors.Internal(err, "exact match lookup")
	}

	key := NameKey(payload.Name)
	if key == "" {
		return nil, MatchNone, nil
	}
	candidates, err := s.contactRepo.FindByNamePrefix(ctx, ownerID, key, nameMatchLimit)
	if err != nil {
		return nil, MatchNone, apperrors.Internal(err, "name fallback lookup")
	}
	if len(candidates) != 1 {
		if len(candidates) > 1 {
			log.Debug("Name fallback is ambiguous, creating a new contact", zap.String("name_key", key))
		}
		return nil, MatchNone, nil
	}

	match := candidates[0]
	log.Debug("Matched contact by name",
		zap.String("contact_id", match.ID),
		zap.String("incoming_url", payload.LinkedinURL),
		zap.String("canonical_url", match.LinkedinURL),
	)
	return &match, MatchName, nil
}
