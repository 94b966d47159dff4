package mock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/linkedin-followup-tracker/followup-tracker/internal/ingestion/handler"
	"github.com/linkedin-followup-tracker/followup-tracker/internal/model"
)

// MockContactService is a mock for the handler.ContactService interface
type MockContactService struct {
	mock.Mock
}

var _ handler.ContactService = (*MockContactService)(nil)

// SaveContact mocks the SaveContact method
func (m *MockContactService) SaveContact(ctx context.Context, payload model.SaveContactPayload, lastEvent *model.LastEvent) (*model.Contact, error) {
	args := m.Called(ctx, payload, lastEvent)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Contact), args.Error(1)
}

// UpdateContact mocks the UpdateContact method
func (m *MockContactService) UpdateContact(ctx context.Context, payload model.UpdateContactPayload) (*model.Contact, error) {
	args := m.Called(ctx, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Contact), args.Error(1)
}
