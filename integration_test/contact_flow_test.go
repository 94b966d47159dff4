//go:build integration

package integration_test

import (
	"context"
	"time"

	"gorm.io/datatypes"

	"github.com/linkedin-followup-tracker/followup-tracker/internal/apperrors"
	"github.com/linkedin-followup-tracker/followup-tracker/internal/model"
)

// ContactFlowSuite drives ContactService against a real Postgres.
type ContactFlowSuite struct {
	BaseIntegrationSuite
}

func strPtr(s string) *string { return &s }

func followupDay(c *model.Contact) string {
	if c.NextFollowup == nil {
		return ""
	}
	return time.Time(*c.NextFollowup).Format(model.FollowupDateLayout)
}

func (s *ContactFlowSuite) save(ctx context.Context, p model.SaveContactPayload) (*model.Contact, error) {
	return s.Service.SaveContact(ctx, p, &model.LastEvent{Source: model.EventSourceHTTP, ReceivedAt: fixedNow})
}

func (s *ContactFlowSuite) TestMessagedSaveSchedulesFollowup() {
	ctx := s.OwnerCtx("owner-1")

	c, err := s.save(ctx, model.SaveContactPayload{
		Name:        "Jane Doe",
		LinkedinURL: "https://www.linkedin.com/in/jane-doe",
		Status:      "Messaged",
		Company:     strPtr("Acme"),
	})
	s.Require().NoError(err)

	s.Equal(model.StatusMessaged, c.Status)
	s.Equal("2025-03-12", followupDay(c))
	s.Require().NotNil(c.Company)
	s.Equal("Acme", *c.Company)
}

func (s *ContactFlowSuite) TestStatusNeverDowngradesAndFieldsMerge() {
	ctx := s.OwnerCtx("owner-1")
	url := "https://www.linkedin.com/in/sam-lee"

	first, err := s.save(ctx, model.SaveContactPayload{Name: "Sam Lee", LinkedinURL: url, Status: "Replied", Company: strPtr("Initech")})
	s.Require().NoError(err)

	second, err := s.save(ctx, model.SaveContactPayload{Name: "Sam Lee", LinkedinURL: url, Status: "Connected", Role: strPtr("CTO")})
	s.Require().NoError(err)

	s.Equal(first.ID, second.ID)
	s.Equal(model.StatusReplied, second.Status)
	s.Require().NotNil(second.Company)
	s.Equal("Initech", *second.Company)
	s.Require().NotNil(second.Role)
	s.Equal("CTO", *second.Role)
}

func (s *ContactFlowSuite) TestClaimedProfileRejected() {
	url := "https://www.linkedin.com/in/claimed-person"

	_, err := s.save(s.OwnerCtx("owner-1"), model.SaveContactPayload{Name: "Claimed Person", LinkedinURL: url})
	s.Require().NoError(err)

	_, err = s.save(s.OwnerCtx("owner-2"), model.SaveContactPayload{Name: "Claimed Person", LinkedinURL: url, Status: "Messaged"})
	s.True(apperrors.IsAlreadyClaimedError(err), "got %v", err)
}

func (s *ContactFlowSuite) TestNameFallbackKeepsCanonicalURL() {
	ctx := s.OwnerCtx("owner-1")
	canonical := "https://www.linkedin.com/in/alex-morgan"

	first, err := s.save(ctx, model.SaveContactPayload{Name: "Alex Morgan", LinkedinURL: canonical, Status: "Connected"})
	s.Require().NoError(err)

	second, err := s.save(ctx, model.SaveContactPayload{
		Name:        "Alex Morgan PhD",
		LinkedinURL: "https://www.linkedin.com/in/ACoAAB1234567890abcdef",
		Status:      "Messaged",
	})
	s.Require().NoError(err)

	s.Equal(first.ID, second.ID)
	s.Equal(canonical, second.LinkedinURL)
	s.Equal(model.StatusMessaged, second.Status)
}

func (s *ContactFlowSuite) TestAmbiguousNameCreatesNewContact() {
	ctx := s.OwnerCtx("owner-1")

	first, err := s.save(ctx, model.SaveContactPayload{Name: "Chris Park", LinkedinURL: "https://www.linkedin.com/in/chris-park"})
	s.Require().NoError(err)
	second, err := s.save(ctx, model.SaveContactPayload{Name: "Chris Parker", LinkedinURL: "https://www.linkedin.com/in/chris-parker"})
	s.Require().NoError(err)
	s.NotEqual(first.ID, second.ID)

	third, err := s.save(ctx, model.SaveContactPayload{Name: "Chris Park", LinkedinURL: "https://www.linkedin.com/in/ACoAAchris"})
	s.Require().NoError(err)
	s.Equal("https://www.linkedin.com/in/ACoAAchris", third.LinkedinURL)
	s.NotEqual(first.ID, third.ID)
	s.NotEqual(second.ID, third.ID)
}

func (s *ContactFlowSuite) TestUpdateAndDueFollowups() {
	ctx := s.OwnerCtx("owner-1")

	c, err := s.save(ctx, model.SaveContactPayload{Name: "Robin Diaz", LinkedinURL: "https://www.linkedin.com/in/robin-diaz"})
	s.Require().NoError(err)

	updated, err := s.Service.UpdateContact(ctx, model.UpdateContactPayload{
		ID:           c.ID,
		Notes:        model.Some("met at meetup"),
		NextFollowup: model.Some("2025-03-09"),
	})
	s.Require().NoError(err)
	s.Require().NotNil(updated.Notes)
	s.Equal("met at meetup", *updated.Notes)

	due, err := s.Service.DueFollowups(ctx)
	s.Require().NoError(err)
	s.Require().Len(due, 1)
	s.Equal(c.ID, due[0].ID)

	others, err := s.Service.DueFollowups(s.OwnerCtx("owner-2"))
	s.Require().NoError(err)
	s.Empty(others)

	digests, err := s.Service.DueFollowupDigests(s.Ctx)
	s.Require().NoError(err)
	s.Require().Len(digests, 1)
	s.Equal("owner-1", digests[0].OwnerID)
	s.Equal("2025-03-10", digests[0].Date)
}

func (s *ContactFlowSuite) TestUpdateOtherOwnersContactNotFound() {
	c, err := s.save(s.OwnerCtx("owner-1"), model.SaveContactPayload{Name: "Kim Ng", LinkedinURL: "https://www.linkedin.com/in/kim-ng"})
	s.Require().NoError(err)

	_, err = s.Service.UpdateContact(s.OwnerCtx("owner-2"), model.UpdateContactPayload{ID: c.ID, Notes: model.Some("hijack")})
	s.True(apperrors.IsNotFoundError(err), "got %v", err)
}

func (s *ContactFlowSuite) TestSaveExhaustedEvent() {
	err := s.Service.SaveExhaustedEvent(s.Ctx, model.ExhaustedEvent{
		OwnerID:        "owner-1",
		SourceSubject:  "v1.contacts.save.owner-1",
		LastError:      "internal error: upsert contact: connection reset",
		RetryCount:     6,
		EventTimestamp: fixedNow,
		DLQPayload:     datatypes.JSON(`{"owner":"owner-1"}`),
	})
	s.NoError(err)
}
