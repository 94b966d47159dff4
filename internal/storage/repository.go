package storage

import (
	"context"
	"time"

	"github.com/linkedin-followup-tracker/followup-tracker/internal/model"
)

// ContactRepo defines contact storage operations. Every lookup is scoped by
// owner except the cross-owner claim check.
type ContactRepo interface {
	FindClaimedByOtherOwner(ctx context.Context, linkedinURL, ownerID string) (*model.Contact, error)
	FindByOwnerAndURL(ctx context.Context, ownerID, linkedinURL string) (*model.Contact, error)
	FindByNamePrefix(ctx context.Context, ownerID, prefix string, limit int) ([]model.Contact, error)
	FindByIDAndOwner(ctx context.Context, id, ownerID string) (*model.Contact, error)
	Upsert(ctx context.Context, contact *model.Contact) error
	UpdateFields(ctx context.Context, id, ownerID string, fields map[string]interface{}) (*model.Contact, error)
	FindDueFollowups(ctx context.Context, ownerID string, day time.Time) ([]model.Contact, error)
	FindAllDueFollowups(ctx context.Context, day time.Time) ([]model.Contact, error)
	Close(ctx context.Context) error
}

// ExhaustedEventRepo defines exhausted event storage operations
type ExhaustedEventRepo interface {
	Save(ctx context.Context, event model.ExhaustedEvent) error
	Close(ctx context.Context) error
}

// HealthChecker reports whether the store is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}
