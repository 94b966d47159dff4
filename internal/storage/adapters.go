package storage

import (
	"context"
	"time"

	"github.com/linkedin-followup-tracker/followup-tracker/internal/model"
)

// ContactRepoAdapter adapts the PostgresRepo to the ContactRepo interface
type ContactRepoAdapter struct {
	postgres *PostgresRepo
}

// NewContactRepoAdapter creates a new contact repository adapter
func NewContactRepoAdapter(postgres *PostgresRepo) ContactRepo {
	return &ContactRepoAdapter{postgres: postgres}
}

func (a *ContactRepoAdapter) FindClaimedByOtherOwner(ctx context.Context, linkedinURL, ownerID string) (*model.Contact, error) {
	return a.postgres.FindContactClaimedByOtherOwner(ctx, linkedinURL, ownerID)
}

func (a *ContactRepoAdapter) FindByOwnerAndURL(ctx context.Context, ownerID, linkedinURL string) (*model.Contact, error) {
	return a.postgres.FindContactByOwnerAndURL(ctx, ownerID, linkedinURL)
}

func (a *ContactRepoAdapter) FindByNamePrefix(ctx context.Context, ownerID, prefix string, limit int) ([]model.Contact, error) {
	return a.postgres.FindContactsByNamePrefix(ctx, ownerID, prefix, limit)
}

func (a *ContactRepoAdapter) FindByIDAndOwner(ctx context.Context, id, ownerID string) (*model.Contact, error) {
	return a.postgres.FindContactByIDAndOwner(ctx, id, ownerID)
}

// Upsert performs the single save write
func (a *ContactRepoAdapter) Upsert(ctx context.Context, contact *model.Contact) error {
	return a.postgres.UpsertContact(ctx, contact)
}

func (a *ContactRepoAdapter) UpdateFields(ctx context.Context, id, ownerID string, fields map[string]interface{}) (*model.Contact, error) {
	return a.postgres.UpdateContactFields(ctx, id, ownerID, fields)
}

func (a *ContactRepoAdapter) FindDueFollowups(ctx context.Context, ownerID string, day time.Time) ([]model.Contact, error) {
	return a.postgres.FindDueFollowups(ctx, ownerID, day)
}

func (a *ContactRepoAdapter) FindAllDueFollowups(ctx context.Context, day time.Time) ([]model.Contact, error) {
	return a.postgres.FindAllDueFollowups(ctx, day)
}

func (a *ContactRepoAdapter) Close(ctx context.Context) error {
	return a.postgres.Close(ctx)
}

// ExhaustedEventRepoAdapter adapts the PostgresRepo to the ExhaustedEventRepo interface
type ExhaustedEventRepoAdapter struct {
	postgres *PostgresRepo
}

// NewExhaustedEventRepoAdapter creates a new exhausted event repository adapter
func NewExhaustedEventRepoAdapter(postgres *PostgresRepo) ExhaustedEventRepo {
	return &ExhaustedEventRepoAdapter{postgres: postgres}
}

// Save saves an exhausted event
func (a *ExhaustedEventRepoAdapter) Save(ctx context.Context, event model.ExhaustedEvent) error {
	return a.postgres.SaveExhaustedEvent(ctx, event)
}

func (a *ExhaustedEventRepoAdapter) Close(ctx context.Context) error {
	return a.postgres.Close(ctx)
}
