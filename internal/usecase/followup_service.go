package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/linkedin-followup-tracker/followup-tracker/internal/apperrors"
	"github.com/linkedin-followup-tracker/followup-tracker/internal/model"
	"github.com/linkedin-followup-tracker/followup-tracker/pkg/logger"
)

// DueFollowups returns the caller's contacts whose follow-up date is today or
// earlier, oldest first.
func (s *ContactService) DueFollowups(ctx context.Context) ([]model.Contact, error) {
	ownerID, err := requireOwner(ctx)
	if err != nil {
		return nil, err
	}

	contacts, err := s.contactRepo.FindDueFollowups(ctx, ownerID, s.todayDate())
	if err != nil {
		logger.FromContext(ctx).Error("Failed to load due follow-ups", zap.Error(err))
		return nil, apperrors.Internal(err, "due follow-ups")
	}
	if contacts == nil {
		contacts = []model.Contact{}
	}
	return contacts, nil
}

// DueFollowupDigests groups every owner's due contacts into one digest per
// owner. It never writes.
func (s *ContactService) DueFollowupDigests(ctx context.Context) ([]model.FollowupDigest, error) {
	day := s.todayDate()
	contacts, err := s.contactRepo.FindAllDueFollowups(ctx, day)
	if err != nil {
		return nil, apperrors.Internal(err, "due follow-ups across owners")
	}

	var digests []model.FollowupDigest
	index := make(map[string]int)
	for _, c := range contacts {
		i, ok := index[c.OwnerID]
		if !ok {
			digests = append(digests, model.FollowupDigest{
				OwnerID: c.OwnerID,
				Date:    day.Format(model.FollowupDateLayout),
			})
			i = len(digests) - 1
			index[c.OwnerID] = i
		}
		item := model.FollowupDigestItem{
			ID:          c.ID,
			Name:        c.Name,
			LinkedinURL: c.LinkedinURL,
			Status:      c.Status,
		}
		if c.NextFollowup != nil {
			item.NextFollowup = time.Time(*c.NextFollowup).Format(model.FollowupDateLayout)
		}
		digests[i].Contacts = append(digests[i].Contacts, item)
	}
	return digests, nil
}

// todayDate is today's calendar day as a UTC midnight instant.
func (s *ContactService) todayDate() time.Time {
	return time.Time(*model.FollowupDate(s.today()))
}
