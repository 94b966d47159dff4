package mock

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/linkedin-followup-tracker/followup-tracker/internal/model"
)

// --- ContactRepo Mock ---

// ContactRepoMock mocks the ContactRepo interface
type ContactRepoMock struct {
	mock.Mock
}

func (m *ContactRepoMock) FindClaimedByOtherOwner(ctx context.Context, linkedinURL, ownerID string) (*model.Contact, error) {
	args := m.Called(ctx, linkedinURL, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Contact), args.Error(1)
}

func (m *ContactRepoMock) FindByOwnerAndURL(ctx context.Context, ownerID, linkedinURL string) (*model.Contact, error) {
	args := m.Called(ctx, ownerID, linkedinURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Contact), args.Error(1)
}

func (m *ContactRepoMock) FindByNamePrefix(ctx context.Context, ownerID, prefix string, limit int) ([]model.Contact, error) {
	args := m.Called(ctx, ownerID, prefix, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Contact), args.Error(1)
}

func (m *ContactRepoMock) FindByIDAndOwner(ctx context.Context, id, ownerID string) (*model.Contact, error) {
	args := m.Called(ctx, id, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Contact), args.Error(1)
}

// Upsert mocks the Upsert method
func (m *ContactRepoMock) Upsert(ctx context.Context, contact *model.Contact) error {
	args := m.Called(ctx, contact)
	return args.Error(0)
}

func (m *ContactRepoMock) UpdateFields(ctx context.Context, id, ownerID string, fields map[string]interface{}) (*model.Contact, error) {
	args := m.Called(ctx, id, ownerID, fields)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Contact), args.Error(1)
}

func (m *ContactRepoMock) FindDueFollowups(ctx context.Context, ownerID string, day time.Time) ([]model.Contact, error) {
	args := m.Called(ctx, ownerID, day)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Contact), args.Error(1)
}

func (m *ContactRepoMock) FindAllDueFollowups(ctx context.Context, day time.Time) ([]model.Contact, error) {
	args := m.Called(ctx, day)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Contact), args.Error(1)
}

// Close mocks the Close method
func (m *ContactRepoMock) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// --- ExhaustedEventRepo Mock ---

// ExhaustedEventRepoMock mocks the ExhaustedEventRepo interface
type ExhaustedEventRepoMock struct {
	mock.Mock
}

// Save mocks the Save method for ExhaustedEventRepo
func (m *ExhaustedEventRepoMock) Save(ctx context.Context, event model.ExhaustedEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// Close mocks the Close method for ExhaustedEventRepo
func (m *ExhaustedEventRepoMock) Close(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}
