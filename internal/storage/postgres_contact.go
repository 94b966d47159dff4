package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm/clause"

	"github.com/linkedin-followup-tracker/followup-tracker/internal/apperrors"
	"github.com/linkedin-followup-tracker/followup-tracker/internal/model"
	"github.com/linkedin-followup-tracker/followup-tracker/internal/observer"
	"github.com/linkedin-followup-tracker/followup-tracker/pkg/logger"
	"github.com/linkedin-followup-tracker/followup-tracker/pkg/utils"
)

// likeEscaper escapes LIKE metacharacters. Backslash is Postgres' default escape.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// FindContactClaimedByOtherOwner returns any contact with this exact URL that
// belongs to someone other than ownerID, or ErrNotFound.
func (r *PostgresRepo) FindContactClaimedByOtherOwner(ctx context.Context, linkedinURL, ownerID string) (*model.Contact, error) {
	var contact model.Contact
	startTime := utils.Now()
	err := r.db.WithContext(ctx).
		Where("linkedin_url = ? AND owner_id <> ?", linkedinURL, ownerID).
		First(&contact).Error
	observer.ObserveDbOperationDuration("find_claimed", "contact", time.Since(startTime), ignoreNotFound(err))
	if err != nil {
		return nil, checkConstraintViolation(err)
	}
	return &contact, nil
}

// FindContactByOwnerAndURL returns the owner's contact with exactly this URL, or ErrNotFound.
func (r *PostgresRepo) FindContactByOwnerAndURL(ctx context.Context, ownerID, linkedinURL string) (*model.Contact, error) {
	var contact model.Contact
	startTime := utils.Now()
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND linkedin_url = ?", ownerID, linkedinURL).
		First(&contact).Error
	observer.ObserveDbOperationDuration("find_by_url", "contact", time.Since(startTime), ignoreNotFound(err))
	if err != nil {
		return nil, checkConstraintViolation(err)
	}
	return &contact, nil
}

// FindContactsByNamePrefix returns up to limit of the owner's contacts whose
// name starts with prefix, compared case-insensitively. The prefix is matched
// literally.
func (r *PostgresRepo) FindContactsByNamePrefix(ctx context.Context, ownerID, prefix string, limit int) ([]model.Contact, error) {
	var contacts []model.Contact
	startTime := utils.Now()
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND name ILIKE ?", ownerID, likeEscaper.Replace(prefix)+"%").
		Limit(limit).
		Find(&contacts).Error
	observer.ObserveDbOperationDuration("find_by_name_prefix", "contact", time.Since(startTime), err)
	if err != nil {
		return nil, checkConstraintViolation(err)
	}
	return contacts, nil
}

// FindContactByIDAndOwner returns the contact only if ownerID owns it, or ErrNotFound.
func (r *PostgresRepo) FindContactByIDAndOwner(ctx context.Context, id, ownerID string) (*model.Contact, error) {
	var contact model.Contact
	startTime := utils.Now()
	err := r.db.WithContext(ctx).
		Where("id = ? AND owner_id = ?", id, ownerID).
		First(&contact).Error
	observer.ObserveDbOperationDuration("find_by_id", "contact", time.Since(startTime), ignoreNotFound(err))
	if err != nil {
		return nil, checkConstraintViolation(err)
	}
	return &contact, nil
}

// UpsertContact inserts the contact or, when (owner_id, linkedin_url) already
// exists, overwrites the merge-managed columns of that row. The stored row is
// scanned back into contact, so a conflicting insert returns the existing id.
func (r *PostgresRepo) UpsertContact(ctx context.Context, contact *model.Contact) error {
	startTime := utils.Now()
	err := r.db.WithContext(ctx).
		Clauses(
			clause.OnConflict{
				Columns:   []clause.Column{{Name: "owner_id"}, {Name: "linkedin_url"}},
				DoUpdates: clause.AssignmentColumns(model.ContactUpsertColumns()),
			},
			clause.Returning{},
		).
		Create(contact).Error
	observer.ObserveDbOperationDuration("upsert", "contact", time.Since(startTime), err)
	if err != nil {
		logger.FromContext(ctx).Error("Failed to upsert contact",
			zap.String("linkedin_url", contact.LinkedinURL),
			zap.Error(err))
		return checkConstraintViolation(err)
	}
	return nil
}

// UpdateContactFields applies a column map to one owned contact and returns
// the updated row. ErrNotFound means no row matched id and owner.
func (r *PostgresRepo) UpdateContactFields(ctx context.Context, id, ownerID string, fields map[string]interface{}) (*model.Contact, error) {
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: no fields to update", apperrors.ErrBadRequest)
	}

	var updated []model.Contact
	startTime := utils.Now()
	result := r.db.WithContext(ctx).
		Model(&updated).
		Clauses(clause.Returning{}).
		Where("id = ? AND owner_id = ?", id, ownerID).
		Updates(fields)
	observer.ObserveDbOperationDuration("update_fields", "contact", time.Since(startTime), result.Error)
	if result.Error != nil {
		logger.FromContext(ctx).Error("Failed to update contact fields", zap.String("contact_id", id), zap.Error(result.Error))
		return nil, checkConstraintViolation(result.Error)
	}
	if result.RowsAffected == 0 || len(updated) == 0 {
		return nil, fmt.Errorf("%w: contact %s", apperrors.ErrNotFound, id)
	}
	return &updated[0], nil
}

// FindDueFollowups returns the owner's contacts whose follow-up date is on or
// before day, earliest first.
func (r *PostgresRepo) FindDueFollowups(ctx context.Context, ownerID string, day time.Time) ([]model.Contact, error) {
	var contacts []model.Contact
	startTime := utils.Now()
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND next_followup IS NOT NULL AND next_followup <= ?", ownerID, model.FollowupDate(day)).
		Order("next_followup ASC").
		Find(&contacts).Error
	observer.ObserveDbOperationDuration("find_due", "contact", time.Since(startTime), err)
	if err != nil {
		return nil, checkConstraintViolation(err)
	}
	return contacts, nil
}

// FindAllDueFollowups is FindDueFollowups across every owner, grouped by owner.
func (r *PostgresRepo) FindAllDueFollowups(ctx context.Context, day time.Time) ([]model.Contact, error) {
	var contacts []model.Contact
	startTime := utils.Now()
	err := r.db.WithContext(ctx).
		Where("next_followup IS NOT NULL AND next_followup <= ?", model.FollowupDate(day)).
		Order("owner_id ASC, next_followup ASC").
		Find(&contacts).Error
	observer.ObserveDbOperationDuration("find_all_due", "contact", time.Since(startTime), err)
	if err != nil {
		return nil, checkConstraintViolation(err)
	}
	return contacts, nil
}
