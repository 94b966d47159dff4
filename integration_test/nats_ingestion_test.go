//go:build integration

package integration_test

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	natsgo "github.com/nats-io/nats.go"

	"github.com/linkedin-followup-tracker/followup-tracker/internal/auth"
	"github.com/linkedin-followup-tracker/followup-tracker/internal/config"
	"github.com/linkedin-followup-tracker/followup-tracker/internal/ingestion"
	"github.com/linkedin-followup-tracker/followup-tracker/internal/ingestion/handler"
	"github.com/linkedin-followup-tracker/followup-tracker/internal/jetstream"
	"github.com/linkedin-followup-tracker/followup-tracker/internal/model"
	"github.com/linkedin-followup-tracker/followup-tracker/internal/storage"
)

const (
	dlqBaseSubject = "v1.dlq"
	waitFor        = 10 * time.Second
	pollEvery      = 100 * time.Millisecond
)

// NATSIngestionSuite runs the contact consumer against a real JetStream
// server and Postgres.
type NATSIngestionSuite struct {
	BaseIntegrationSuite
	client   *jetstream.Client
	consumer *ingestion.ContactConsumer
	authCfg  config.AuthConfig
	dlq      *natsgo.Subscription
	rawConn  *natsgo.Conn
}

func (s *NATSIngestionSuite) SetupSuite() {
	s.BaseIntegrationSuite.SetupSuite()

	var err error
	s.client, err = jetstream.NewClient(s.NATSURL, "integration-consumer")
	s.Require().NoError(err)

	s.authCfg = config.AuthConfig{JWTSecret: "integration-secret", Issuer: "tracker"}
	verifier, err := auth.NewSessionVerifier(s.authCfg)
	s.Require().NoError(err)

	router := ingestion.NewRouter()
	h := handler.NewContactHandler(s.Service)
	router.Register(model.V1ContactsSave, h.HandleEvent)
	router.Register(model.V1ContactsUpdate, h.HandleEvent)

	s.Require().NoError(s.client.SetupStream(s.Ctx, &natsgo.StreamConfig{
		Name:     "DLQ_STREAM",
		Subjects: []string{dlqBaseSubject + ".>"},
		Storage:  natsgo.MemoryStorage,
	}))

	s.consumer = ingestion.NewContactConsumer(s.client, router, verifier, config.ConsumerNatsConfig{
		MaxAge:       1,
		Stream:       "CONTACT_EVENTS",
		Consumer:     "contacts_integration",
		QueueGroup:   "contacts_integration",
		SubjectList:  []string{string(model.V1ContactsSave), string(model.V1ContactsUpdate)},
		MaxDeliver:   3,
		NakBaseDelay: 100 * time.Millisecond,
		NakMaxDelay:  time.Second,
		AckWait:      5 * time.Second,
	}, dlqBaseSubject)
	s.Require().NoError(s.consumer.Setup())
	s.Require().NoError(s.consumer.Start())

	s.rawConn, err = natsgo.Connect(s.NATSURL)
	s.Require().NoError(err)
	s.dlq, err = s.rawConn.SubscribeSync(dlqBaseSubject + ".>")
	s.Require().NoError(err)
}

func (s *NATSIngestionSuite) TearDownSuite() {
	if s.consumer != nil {
		s.consumer.Stop()
	}
	if s.rawConn != nil {
		s.rawConn.Close()
	}
	if s.client != nil {
		s.client.Close()
	}
	s.BaseIntegrationSuite.TearDownSuite()
}

func (s *NATSIngestionSuite) publishSave(ownerID, tokenOwner string, payload model.SaveContactPayload) {
	token, err := auth.IssueToken(s.authCfg, tokenOwner, time.Hour)
	s.Require().NoError(err)
	data, err := json.Marshal(payload)
	s.Require().NoError(err)

	s.Require().NoError(s.client.Publish(model.V1ContactsSave.Subject(ownerID), data, map[string]string{
		ingestion.HeaderAuthorization: "Bearer " + token,
		ingestion.HeaderRequestID:     uuid.NewString(),
		ingestion.HeaderMsgID:         uuid.NewString(),
	}))
}

func (s *NATSIngestionSuite) findContact(ownerID, url string) *model.Contact {
	c, err := storage.NewContactRepoAdapter(s.Repo).FindByOwnerAndURL(s.Ctx, ownerID, url)
	if err != nil {
		return nil
	}
	return c
}

func (s *NATSIngestionSuite) TestSaveEventPersistsContact() {
	url := "https://www.linkedin.com/in/nats-jane"
	s.publishSave("owner-1", "owner-1", model.SaveContactPayload{Name: "Nats Jane", LinkedinURL: url, Status: "Messaged"})

	s.Require().Eventually(func() bool {
		return s.findContact("owner-1", url) != nil
	}, waitFor, pollEvery)

	c := s.findContact("owner-1", url)
	s.Equal(model.StatusMessaged, c.Status)
	s.NotNil(c.NextFollowup)

	var last model.LastEvent
	s.Require().NoError(json.Unmarshal(c.LastEvent, &last))
	s.Equal(model.EventSourceNATS, last.Source)
	s.Equal("CONTACT_EVENTS", last.Stream)
}

func (s *NATSIngestionSuite) TestTokenForAnotherOwnerIsDropped() {
	url := "https://www.linkedin.com/in/nats-mallory"
	s.publishSave("owner-1", "owner-2", model.SaveContactPayload{Name: "Nats Mallory", LinkedinURL: url})

	s.Never(func() bool {
		return s.findContact("owner-1", url) != nil
	}, 2*time.Second, pollEvery)

	_, err := s.dlq.NextMsg(500 * time.Millisecond)
	s.ErrorIs(err, natsgo.ErrTimeout, "unauthenticated events are not dead-lettered")
}

func (s *NATSIngestionSuite) TestInvalidPayloadGoesToDLQ() {
	s.publishSave("owner-3", "owner-3", model.SaveContactPayload{LinkedinURL: "https://www.linkedin.com/in/no-name"})

	msg, err := s.dlq.NextMsg(waitFor)
	s.Require().NoError(err)
	s.Equal(dlqBaseSubject+".owner-3", msg.Subject)
	s.True(strings.HasPrefix(msg.Header.Get(ingestion.HeaderAuthorization), "Bearer "), "dead letters keep the publisher token")

	var payload model.DLQPayload
	s.Require().NoError(json.Unmarshal(msg.Data, &payload))
	s.Equal("owner-3", payload.Owner)
	s.Equal(model.V1ContactsSave.Subject("owner-3"), payload.SourceSubject)
	s.NotEmpty(payload.Error)
}
