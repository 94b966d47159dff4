package model

import (
	"encoding/json"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/datatypes"

	"github.com/linkedin-followup-tracker/followup-tracker/pkg/utils"
)

// RandomJSONBMap generates JSON data from a map for testing.
func RandomJSONBMap(data map[string]interface{}) datatypes.JSON {
	bytes, _ := json.Marshal(data)
	return datatypes.JSON(bytes)
}

// init ensures gofakeit is seeded.
func init() {
	gofakeit.Seed(time.Now().UnixNano())
}

// FakeLinkedinURL returns a readable-slug profile URL.
func FakeLinkedinURL() string {
	return "https://www.linkedin.com/in/" + gofakeit.Username() + "-" + gofakeit.DigitN(4)
}

// FakeEncodedLinkedinURL returns an encoded-id profile URL, the form the messaging page captures.
func FakeEncodedLinkedinURL() string {
	return "https://www.linkedin.com/in/ACoAA" + gofakeit.LetterN(20)
}

func fakeStr(s string) *string {
	return &s
}

// NewContact creates a new Contact instance with default fake data.
// Pointer fields on the override replace the defaults only when non-nil.
func NewContact(overrideDefaults ...*Contact) *Contact {
	created := utils.Now().Add(-time.Duration(gofakeit.Number(24, 240)) * time.Hour)
	sent := created.Add(time.Hour)
	base := &Contact{
		ID:               gofakeit.UUID(),
		OwnerID:          gofakeit.UUID(),
		LinkedinURL:      FakeLinkedinURL(),
		Name:             gofakeit.Name(),
		Status:           StatusPending,
		Company:          fakeStr(gofakeit.Company()),
		Role:             fakeStr(gofakeit.JobTitle()),
		Location:         fakeStr(gofakeit.City()),
		ProfileImage:     fakeStr(gofakeit.URL()),
		ConnectionSentAt: &sent,
		AutoFollowupDays: 2,
		LastEvent:        RandomJSONBMap(map[string]interface{}{"source": EventSourceHTTP, "request_id": gofakeit.UUID()}),
		CreatedAt:        created,
		UpdatedAt:        created,
	}

	if len(overrideDefaults) > 0 && overrideDefaults[0] != nil {
		ovr := overrideDefaults[0]
		if ovr.ID != "" {
			base.ID = ovr.ID
		}
		if ovr.OwnerID != "" {
			base.OwnerID = ovr.OwnerID
		}
		if ovr.LinkedinURL != "" {
			base.LinkedinURL = ovr.LinkedinURL
		}
		if ovr.Name != "" {
			base.Name = ovr.Name
		}
		if ovr.Status != "" {
			base.Status = ovr.Status
		}
		if ovr.Company != nil {
			base.Company = ovr.Company
		}
		if ovr.Role != nil {
			base.Role = ovr.Role
		}
		if ovr.Location != nil {
			base.Location = ovr.Location
		}
		if ovr.ProfileImage != nil {
			base.ProfileImage = ovr.ProfileImage
		}
		if ovr.Email != nil {
			base.Email = ovr.Email
		}
		if ovr.Phone != nil {
			base.Phone = ovr.Phone
		}
		if ovr.ConnectionSentAt != nil {
			base.ConnectionSentAt = ovr.ConnectionSentAt
		}
		base.ConnectedAt = ovr.ConnectedAt
		base.LastMessagedAt = ovr.LastMessagedAt
		base.LastRepliedAt = ovr.LastRepliedAt
		base.ViewedProfileAt = ovr.ViewedProfileAt
		base.NextFollowup = ovr.NextFollowup
		base.Notes = ovr.Notes
		if ovr.AutoFollowupDays != 0 {
			base.AutoFollowupDays = ovr.AutoFollowupDays
		}
		if ovr.LastEvent != nil {
			base.LastEvent = ovr.LastEvent
		}
		if !ovr.CreatedAt.IsZero() {
			base.CreatedAt = ovr.CreatedAt
		}
		if !ovr.UpdatedAt.IsZero() {
			base.UpdatedAt = ovr.UpdatedAt
		}
	}
	return base
}

// NewSaveContactPayload creates a SaveContactPayload with default fake data.
// Status is left empty unless overridden so the Pending default applies.
func NewSaveContactPayload(overrideDefaults ...*SaveContactPayload) *SaveContactPayload {
	sent := utils.Now().Add(-time.Duration(gofakeit.Number(1, 72)) * time.Hour).Format(EventTimeLayout)
	base := &SaveContactPayload{
		Name:             gofakeit.Name(),
		LinkedinURL:      FakeLinkedinURL(),
		Company:          fakeStr(gofakeit.Company()),
		Role:             fakeStr(gofakeit.JobTitle()),
		Location:         fakeStr(gofakeit.City()),
		ProfileImage:     fakeStr(gofakeit.URL()),
		ConnectionSentAt: &sent,
	}

	if len(overrideDefaults) > 0 && overrideDefaults[0] != nil {
		ovr := overrideDefaults[0]
		if ovr.Name != "" {
			base.Name = ovr.Name
		}
		if ovr.LinkedinURL != "" {
			base.LinkedinURL = ovr.LinkedinURL
		}
		base.Status = ovr.Status
		if ovr.Company != nil {
			base.Company = ovr.Company
		}
		if ovr.Role != nil {
			base.Role = ovr.Role
		}
		if ovr.Location != nil {
			base.Location = ovr.Location
		}
		if ovr.ProfileImage != nil {
			base.ProfileImage = ovr.ProfileImage
		}
		base.Email = ovr.Email
		base.Phone = ovr.Phone
		if ovr.ConnectionSentAt != nil {
			base.ConnectionSentAt = ovr.ConnectionSentAt
		}
		base.ConnectedAt = ovr.ConnectedAt
		base.LastMessagedAt = ovr.LastMessagedAt
		base.LastRepliedAt = ovr.LastRepliedAt
		base.ViewedProfileAt = ovr.ViewedProfileAt
	}
	return base
}

// NewExhaustedEvent creates a new ExhaustedEvent instance with default fake data.
func NewExhaustedEvent(overrideDefaults ...*ExhaustedEvent) *ExhaustedEvent {
	ownerID := gofakeit.UUID()
	original := RandomJSONBMap(map[string]interface{}{
		"name":         gofakeit.Name(),
		"linkedin_url": FakeLinkedinURL(),
	})
	base := &ExhaustedEvent{
		OwnerID:         ownerID,
		SourceSubject:   V1ContactsSave.Subject(ownerID),
		LastError:       gofakeit.Sentence(6),
		RetryCount:      gofakeit.Number(5, 10),
		EventTimestamp:  utils.Now().Add(-time.Duration(gofakeit.Number(1, 60)) * time.Minute),
		DLQPayload:      RandomJSONBMap(map[string]interface{}{"owner": ownerID, "original_payload": json.RawMessage(original)}),
		OriginalPayload: original,
	}

	if len(overrideDefaults) > 0 && overrideDefaults[0] != nil {
		ovr := overrideDefaults[0]
		if ovr.OwnerID != "" {
			base.OwnerID = ovr.OwnerID
		}
		if ovr.SourceSubject != "" {
			base.SourceSubject = ovr.SourceSubject
		}
		if ovr.LastError != "" {
			base.LastError = ovr.LastError
		}
		if ovr.RetryCount != 0 {
			base.RetryCount = ovr.RetryCount
		}
		if !ovr.EventTimestamp.IsZero() {
			base.EventTimestamp = ovr.EventTimestamp
		}
		if ovr.DLQPayload != nil {
			base.DLQPayload = ovr.DLQPayload
		}
		if ovr.OriginalPayload != nil {
			base.OriginalPayload = ovr.OriginalPayload
		}
	}
	return base
}
