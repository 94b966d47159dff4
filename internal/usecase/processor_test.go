package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/linkedin-followup-tracker/followup-tracker/internal/ingestion"
	"github.com/linkedin-followup-tracker/followup-tracker/internal/ingestion/handler"
	handlermock "github.com/linkedin-followup-tracker/followup-tracker/internal/ingestion/handler/mock"
	ingestionmock "github.com/linkedin-followup-tracker/followup-tracker/internal/ingestion/mock"
	"github.com/linkedin-followup-tracker/followup-tracker/internal/model"
	"github.com/linkedin-followup-tracker/followup-tracker/pkg/logger"
)

func mockProcessorDependencies(t *testing.T) (*ingestionmock.RouterMock, *ingestionmock.ConsumerMock) {
	logger.Log = zaptest.NewLogger(t)
	return new(ingestionmock.RouterMock), new(ingestionmock.ConsumerMock)
}

func TestProcessor_SetupRegistersContactHandlers(t *testing.T) {
	router, consumer := mockProcessorDependencies(t)
	p := newProcessor(router, consumer, handler.NewContactHandler(new(handlermock.MockContactService)))

	router.On("Register", model.V1ContactsSave, mock.AnythingOfType("ingestion.EventHandler")).Once()
	router.On("Register", model.V1ContactsUpdate, mock.AnythingOfType("ingestion.EventHandler")).Once()
	router.On("RegisterDefault", mock.AnythingOfType("ingestion.EventHandler")).Once()
	consumer.On("Setup").Return(nil).Once()

	require.NoError(t, p.Setup())
	assert.Same(t, router, p.Router())

	router.AssertExpectations(t)
	consumer.AssertExpectations(t)
}

func TestProcessor_SetupConsumerError(t *testing.T) {
	router, consumer := mockProcessorDependencies(t)
	p := newProcessor(router, consumer, handler.NewContactHandler(new(handlermock.MockContactService)))

	router.On("Register", mock.Anything, mock.Anything)
	router.On("RegisterDefault", mock.Anything)
	consumer.On("Setup").Return(errors.New("stream exists with different config")).Once()

	err := p.Setup()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to setup contact consumer")
	consumer.AssertNotCalled(t, "Start")
}

func TestProcessor_StartAndStop(t *testing.T) {
	router, consumer := mockProcessorDependencies(t)
	p := newProcessor(router, consumer, handler.NewContactHandler(new(handlermock.MockContactService)))

	consumer.On("Start").Return(nil).Once()
	consumer.On("Stop").Return().Once()

	require.NoError(t, p.Start())
	p.Stop()
	consumer.AssertExpectations(t)
}

func TestProcessor_StartError(t *testing.T) {
	router, consumer := mockProcessorDependencies(t)
	p := newProcessor(router, consumer, handler.NewContactHandler(new(handlermock.MockContactService)))

	consumer.On("Start").Return(errors.New("no responders")).Once()

	err := p.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start contact consumer")
}

func TestProcessor_StartRecoversPanic(t *testing.T) {
	router, consumer := mockProcessorDependencies(t)
	p := newProcessor(router, consumer, handler.NewContactHandler(new(handlermock.MockContactService)))

	consumer.On("Start").Run(func(mock.Arguments) { panic("boom") }).Return(nil).Once()

	err := p.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

// The real router sends save events to the contact service with the owner
// bound to the context, and unknown types to the default handler.
func TestProcessor_RoutesThroughRealRouter(t *testing.T) {
	logger.Log = zaptest.NewLogger(t)
	_, consumer := mockProcessorDependencies(t)
	service := new(handlermock.MockContactService)
	router := ingestion.NewRouter()
	p := newProcessor(router, consumer, handler.NewContactHandler(service))

	consumer.On("Setup").Return(nil).Once()
	require.NoError(t, p.Setup())

	service.On("SaveContact", mock.Anything, mock.MatchedBy(func(pl model.SaveContactPayload) bool {
		return pl.Name == "Jane Doe"
	}), mock.Anything).Return(&model.Contact{ID: "c-1"}, nil).Once()

	err := router.Route(context.Background(), &model.MessageMetadata{
		MessageSubject: model.V1ContactsSave.Subject("owner-1"),
		OwnerID:        "owner-1",
	}, []byte(`{"name":"Jane Doe","linkedin_url":"https://www.linkedin.com/in/jane-doe"}`))
	require.NoError(t, err)
	service.AssertExpectations(t)

	err = router.Route(context.Background(), &model.MessageMetadata{
		MessageSubject: "v1.contacts.archive.owner-1",
		OwnerID:        "owner-1",
	}, []byte(`{}`))
	assert.NoError(t, err)
}
