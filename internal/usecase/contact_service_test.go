package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/linkedin-followup-tracker/followup-tracker/internal/apperrors"
	"github.com/linkedin-followup-tracker/followup-tracker/internal/model"
	"github.com/linkedin-followup-tracker/followup-tracker/internal/owner"
	storagemock "github.com/linkedin-followup-tracker/followup-tracker/internal/storage/mock"
	"github.com/linkedin-followup-tracker/followup-tracker/pkg/logger"
)

const (
	ownerA = "owner-a"
	ownerB = "owner-b"
)

var fixedNow = time.Date(2025, time.March, 10, 15, 4, 5, 0, time.UTC)

func init() {
	logger.Log = zap.NewNop().Named("test")
}

func newTestService(repo *memoryContactRepo, opts ...Option) *ContactService {
	opts = append([]Option{WithClock(ClockFunc(func() time.Time { return fixedNow }))}, opts...)
	return NewContactService(repo, new(storagemock.ExhaustedEventRepoMock), opts...)
}

func ownerCtx(t *testing.T, ownerID string) context.Context {
	ctx := logger.WithLogger(context.Background(), zaptest.NewLogger(t))
	return owner.WithOwnerID(ctx, ownerID)
}

func strPtr(s string) *string { return &s }

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func followupOf(c *model.Contact) *time.Time {
	if c.NextFollowup == nil {
		return nil
	}
	t := time.Time(*c.NextFollowup)
	return &t
}

func TestSaveContact_AlexChenScenario(t *testing.T) {
	repo := newMemoryContactRepo()
	svc := newTestService(repo)
	ctx := ownerCtx(t, ownerA)

	first, err := svc.SaveContact(ctx, model.SaveContactPayload{Name: "Alex Chen", LinkedinURL: "u/alexc", Status: "Pending"}, nil)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, first.Status)
	assert.Nil(t, first.NextFollowup)

	second, err := svc.SaveContact(ctx, model.SaveContactPayload{Name: "Alex Chen", LinkedinURL: "u/alexc", Status: "Messaged"}, nil)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, model.StatusMessaged, second.Status)
	require.NotNil(t, second.NextFollowup)
	assert.Equal(t, day(2025, time.March, 12), *followupOf(second))

	third, err := svc.SaveContact(ctx, model.SaveContactPayload{Name: "Alex Chen", LinkedinURL: "u/alexc", Status: "Pending"}, nil)
	require.NoError(t, err)
	assert.Equal(t, model.StatusMessaged, third.Status, "no downgrade")
	assert.Equal(t, day(2025, time.March, 12), *followupOf(third))

	assert.Equal(t, 1, repo.countFor(ownerA))
	assert.Equal(t, 3, repo.upserts, "one write per save")
}

func TestSaveContact_RankedMergeTable(t *testing.T) {
	ranked := []model.ContactStatus{
		model.StatusPending, model.StatusConnected, model.StatusMessaged,
		model.StatusReplied, model.StatusMeetingBooked, model.StatusClosed,
	}
	for _, existing := range ranked {
		for _, incoming := range ranked {
			existing, incoming := existing, incoming
			t.Run(string(existing)+"->"+string(incoming), func(t *testing.T) {
				seed := *model.NewContact(&model.Contact{ID: "c-1", OwnerID: ownerA, LinkedinURL: "u/x", Name: "Sam Lee", Status: existing})
				repo := newMemoryContactRepo(seed)
				svc := newTestService(repo)

				got, err := svc.SaveContact(ownerCtx(t, ownerA), model.SaveContactPayload{Name: "Sam Lee", LinkedinURL: "u/x", Status: string(incoming)}, nil)
				require.NoError(t, err)

				want := incoming
				if existing.Rank() > incoming.Rank() {
					want = existing
				}
				assert.Equal(t, want, got.Status)
			})
		}
	}
}

func TestMergeStatus(t *testing.T) {
	testCases := []struct {
		name        string
		existing    model.ContactStatus
		hasExisting bool
		incoming    model.ContactStatus
		want        model.ContactStatus
	}{
		{"new defaults to pending", "", false, "", model.StatusPending},
		{"new takes incoming", "", false, model.StatusReplied, model.StatusReplied},
		{"new unknown becomes pending", "", false, "Ghosted", model.StatusPending},
		{"new lost", "", false, model.StatusLost, model.StatusLost},
		{"lost is sticky", model.StatusLost, true, model.StatusClosed, model.StatusLost},
		{"lost stays lost on pending", model.StatusLost, true, model.StatusPending, model.StatusLost},
		{"incoming lost applies", model.StatusMeetingBooked, true, model.StatusLost, model.StatusLost},
		{"unknown never wins", model.StatusPending, true, "Ghosted", model.StatusPending},
		{"empty incoming is pending", model.StatusConnected, true, "", model.StatusConnected},
		{"equal rank keeps value", model.StatusReplied, true, model.StatusReplied, model.StatusReplied},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, MergeStatus(tc.existing, tc.hasExisting, tc.incoming))
		})
	}
}

func TestSaveContact_Idempotent(t *testing.T) {
	repo := newMemoryContactRepo()
	svc := newTestService(repo)
	ctx := ownerCtx(t, ownerA)
	payload := *model.NewSaveContactPayload(&model.SaveContactPayload{Status: "Connected", Email: strPtr("sam@example.com")})

	first, err := svc.SaveContact(ctx, payload, &model.LastEvent{Source: model.EventSourceHTTP, RequestID: "req-1", ReceivedAt: fixedNow})
	require.NoError(t, err)

	later := fixedNow.Add(10 * time.Minute)
	resend := newTestService(repo, WithClock(ClockFunc(func() time.Time { return later })))
	second, err := resend.SaveContact(ctx, payload, &model.LastEvent{Source: model.EventSourceHTTP, RequestID: "req-2", ReceivedAt: later})
	require.NoError(t, err)

	assert.Equal(t, later, second.UpdatedAt)
	assert.JSONEq(t, string(first.LastEvent), string(second.LastEvent), "a repeat that changes nothing keeps last_event")

	first.UpdatedAt, second.UpdatedAt = time.Time{}, time.Time{}
	assert.Equal(t, first, second)
	assert.Equal(t, 1, repo.countFor(ownerA))
	assert.Equal(t, 2, repo.upserts, "the repeat still writes once")
}

func TestSaveContact_LastEventFollowsChanges(t *testing.T) {
	repo := newMemoryContactRepo()
	svc := newTestService(repo)
	ctx := ownerCtx(t, ownerA)

	_, err := svc.SaveContact(ctx, model.SaveContactPayload{Name: "A B", LinkedinURL: "u/ab"}, &model.LastEvent{Source: model.EventSourceHTTP, RequestID: "req-1"})
	require.NoError(t, err)
	got, err := svc.SaveContact(ctx, model.SaveContactPayload{Name: "A B", LinkedinURL: "u/ab", Status: "Connected"}, &model.LastEvent{Source: model.EventSourceHTTP, RequestID: "req-2"})
	require.NoError(t, err)
	assert.Contains(t, string(got.LastEvent), `"request_id":"req-2"`)
}

func TestSaveContact_TimestampsNeverReset(t *testing.T) {
	sent := fixedNow.Add(-72 * time.Hour)
	connected := fixedNow.Add(-48 * time.Hour)
	seed := *model.NewContact(&model.Contact{
		ID: "c-1", OwnerID: ownerA, LinkedinURL: "u/x", Name: "Sam Lee", Status: model.StatusConnected,
		ConnectionSentAt: &sent, ConnectedAt: &connected, Company: strPtr("Acme"),
	})
	repo := newMemoryContactRepo(seed)
	svc := newTestService(repo)

	replied := fixedNow.Add(-time.Hour).Format(time.RFC3339)
	got, err := svc.SaveContact(ownerCtx(t, ownerA), model.SaveContactPayload{
		Name: "Sam Lee", LinkedinURL: "u/x", Status: "Replied",
		Company: strPtr("   "), LastRepliedAt: &replied,
	}, nil)
	require.NoError(t, err)

	require.NotNil(t, got.ConnectionSentAt)
	assert.True(t, sent.Equal(*got.ConnectionSentAt))
	require.NotNil(t, got.ConnectedAt)
	assert.True(t, connected.Equal(*got.ConnectedAt))
	require.NotNil(t, got.LastRepliedAt)
	assert.Equal(t, fixedNow.Add(-time.Hour), *got.LastRepliedAt)
	require.NotNil(t, got.Company)
	assert.Equal(t, "Acme", *got.Company, "blank incoming value keeps the stored one")
}

func TestSaveContact_CrossOwnerClaim(t *testing.T) {
	seed := *model.NewContact(&model.Contact{ID: "c-a", OwnerID: ownerA, LinkedinURL: "u/alexc", Name: "Alex Chen"})
	repo := newMemoryContactRepo(seed)
	svc := newTestService(repo)

	_, err := svc.SaveContact(ownerCtx(t, ownerB), model.SaveContactPayload{Name: "Alex Chen", LinkedinURL: "u/alexc"}, nil)
	assert.True(t, apperrors.IsAlreadyClaimedError(err))
	assert.Equal(t, 0, repo.countFor(ownerB))
	assert.Equal(t, 0, repo.upserts)
}

func TestSaveContact_NameFallback(t *testing.T) {
	seed := *model.NewContact(&model.Contact{
		ID: "c-jane", OwnerID: ownerA, LinkedinURL: "https://x/in/ABC123", Name: "Jane Doe", Status: model.StatusConnected,
		Notes: strPtr("met at meetup"),
	})

	t.Run("single hit updates the existing record", func(t *testing.T) {
		repo := newMemoryContactRepo(seed)
		svc := newTestService(repo)

		got, err := svc.SaveContact(ownerCtx(t, ownerA), model.SaveContactPayload{
			Name: "jane doe", LinkedinURL: model.FakeEncodedLinkedinURL(), Status: "Messaged",
		}, nil)
		require.NoError(t, err)
		assert.Equal(t, "c-jane", got.ID)
		assert.Equal(t, "https://x/in/ABC123", got.LinkedinURL)
		assert.Equal(t, model.StatusMessaged, got.Status)
		require.NotNil(t, got.Notes)
		assert.Equal(t, "met at meetup", *got.Notes)
		assert.Equal(t, 1, repo.countFor(ownerA))
	})

	t.Run("longer name shares the two-token key", func(t *testing.T) {
		repo := newMemoryContactRepo(seed)
		svc := newTestService(repo)

		got, err := svc.SaveContact(ownerCtx(t, ownerA), model.SaveContactPayload{
			Name: "Jane  Doe  PhD", LinkedinURL: "https://x/in/jane-doe-9",
		}, nil)
		require.NoError(t, err)
		assert.Equal(t, "c-jane", got.ID)
	})

	t.Run("ambiguous hits create a new record", func(t *testing.T) {
		other := *model.NewContact(&model.Contact{ID: "c-jane-2", OwnerID: ownerA, LinkedinURL: "https://x/in/XYZ", Name: "Jane Doering"})
		repo := newMemoryContactRepo(seed, other)
		svc := newTestService(repo)

		got, err := svc.SaveContact(ownerCtx(t, ownerA), model.SaveContactPayload{
			Name: "Jane Doe", LinkedinURL: "https://x/in/jane-doe-9",
		}, nil)
		require.NoError(t, err)
		assert.NotContains(t, []string{"c-jane", "c-jane-2"}, got.ID)
		assert.Equal(t, "https://x/in/jane-doe-9", got.LinkedinURL)
		assert.Equal(t, 3, repo.countFor(ownerA))
	})

	t.Run("other owners are never candidates", func(t *testing.T) {
		repo := newMemoryContactRepo(seed)
		svc := newTestService(repo)

		got, err := svc.SaveContact(ownerCtx(t, ownerB), model.SaveContactPayload{
			Name: "Jane Doe", LinkedinURL: "https://x/in/jane-doe-9",
		}, nil)
		require.NoError(t, err)
		assert.Equal(t, ownerB, got.OwnerID)
		assert.NotEqual(t, "c-jane", got.ID)
	})
}

func TestSaveContact_FollowupScheduling(t *testing.T) {
	t.Run("repeat messaged keeps the first date", func(t *testing.T) {
		repo := newMemoryContactRepo()
		svc := newTestService(repo)
		ctx := ownerCtx(t, ownerA)
		payload := model.SaveContactPayload{Name: "Kim Park", LinkedinURL: "u/kim", Status: "Messaged"}

		first, err := svc.SaveContact(ctx, payload, nil)
		require.NoError(t, err)
		assert.Equal(t, day(2025, time.March, 12), *followupOf(first))

		later := newTestService(repo, WithClock(ClockFunc(func() time.Time { return fixedNow.AddDate(0, 0, 5) })))
		second, err := later.SaveContact(ctx, payload, nil)
		require.NoError(t, err)
		assert.Equal(t, day(2025, time.March, 12), *followupOf(second))
	})

	t.Run("contact delay overrides the default", func(t *testing.T) {
		seed := *model.NewContact(&model.Contact{ID: "c-1", OwnerID: ownerA, LinkedinURL: "u/kim", Name: "Kim Park", AutoFollowupDays: 5})
		repo := newMemoryContactRepo(seed)
		svc := newTestService(repo)

		got, err := svc.SaveContact(ownerCtx(t, ownerA), model.SaveContactPayload{Name: "Kim Park", LinkedinURL: "u/kim", Status: "Messaged"}, nil)
		require.NoError(t, err)
		assert.Equal(t, day(2025, time.March, 15), *followupOf(got))
		assert.Equal(t, 5, got.AutoFollowupDays)
	})

	t.Run("gate ignores the merged status", func(t *testing.T) {
		seed := *model.NewContact(&model.Contact{ID: "c-1", OwnerID: ownerA, LinkedinURL: "u/kim", Name: "Kim Park", Status: model.StatusReplied})
		repo := newMemoryContactRepo(seed)
		svc := newTestService(repo)

		got, err := svc.SaveContact(ownerCtx(t, ownerA), model.SaveContactPayload{Name: "Kim Park", LinkedinURL: "u/kim", Status: "Messaged"}, nil)
		require.NoError(t, err)
		assert.Equal(t, model.StatusReplied, got.Status)
		assert.Equal(t, day(2025, time.March, 12), *followupOf(got))
	})

	t.Run("other statuses never schedule", func(t *testing.T) {
		repo := newMemoryContactRepo()
		svc := newTestService(repo)

		got, err := svc.SaveContact(ownerCtx(t, ownerA), model.SaveContactPayload{Name: "Kim Park", LinkedinURL: "u/kim", Status: "Connected"}, nil)
		require.NoError(t, err)
		assert.Nil(t, got.NextFollowup)
	})

	t.Run("today follows the configured zone", func(t *testing.T) {
		tokyo := time.FixedZone("JST", 9*60*60)
		repo := newMemoryContactRepo()
		late := ClockFunc(func() time.Time { return time.Date(2025, time.March, 10, 20, 0, 0, 0, time.UTC) })
		svc := newTestService(repo, WithClock(late), WithLocation(tokyo))

		got, err := svc.SaveContact(ownerCtx(t, ownerA), model.SaveContactPayload{Name: "Kim Park", LinkedinURL: "u/kim", Status: "Messaged"}, nil)
		require.NoError(t, err)
		assert.Equal(t, day(2025, time.March, 13), *followupOf(got))
	})
}

func TestSaveContact_Rejections(t *testing.T) {
	t.Run("no owner", func(t *testing.T) {
		repo := newMemoryContactRepo()
		svc := newTestService(repo)
		_, err := svc.SaveContact(context.Background(), model.SaveContactPayload{Name: "A B", LinkedinURL: "u/ab"}, nil)
		assert.True(t, apperrors.IsUnauthenticatedError(err))
		assert.Equal(t, 0, repo.upserts)
	})

	testCases := []struct {
		name    string
		payload model.SaveContactPayload
	}{
		{"blank name", model.SaveContactPayload{Name: "   ", LinkedinURL: "u/ab"}},
		{"blank url", model.SaveContactPayload{Name: "A B", LinkedinURL: " "}},
		{"bad timestamp", model.SaveContactPayload{Name: "A B", LinkedinURL: "u/ab", ConnectedAt: strPtr("yesterday")}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			repo := newMemoryContactRepo()
			svc := newTestService(repo)
			_, err := svc.SaveContact(ownerCtx(t, ownerA), tc.payload, nil)
			assert.True(t, apperrors.IsValidationError(err), "got %v", err)
			assert.Equal(t, 0, repo.upserts)
		})
	}
}

// Saves from the extension are best effort: a status outside the enumeration
// goes through the merge and a malformed email is dropped, while the rest of
// the event still lands.
func TestSaveContact_LenientFields(t *testing.T) {
	t.Run("unknown status keeps the stored one", func(t *testing.T) {
		seed := *model.NewContact(&model.Contact{ID: "c-1", OwnerID: ownerA, LinkedinURL: "u/sam", Name: "Sam Lee", Status: model.StatusConnected})
		repo := newMemoryContactRepo(seed)
		svc := newTestService(repo)

		got, err := svc.SaveContact(ownerCtx(t, ownerA), model.SaveContactPayload{
			Name: "Sam Lee", LinkedinURL: "u/sam", Status: "Following", Company: strPtr("Acme"),
		}, nil)
		require.NoError(t, err)
		assert.Equal(t, model.StatusConnected, got.Status)
		require.NotNil(t, got.Company)
		assert.Equal(t, "Acme", *got.Company)
		assert.Equal(t, 1, repo.upserts)
	})

	t.Run("unknown status on a new contact is pending", func(t *testing.T) {
		repo := newMemoryContactRepo()
		svc := newTestService(repo)

		got, err := svc.SaveContact(ownerCtx(t, ownerA), model.SaveContactPayload{Name: "Kim Park", LinkedinURL: "u/kim", Status: "Following"}, nil)
		require.NoError(t, err)
		assert.Equal(t, model.StatusPending, got.Status)
		assert.Equal(t, 1, repo.upserts)
	})

	t.Run("malformed email is dropped", func(t *testing.T) {
		seed := *model.NewContact(&model.Contact{ID: "c-1", OwnerID: ownerA, LinkedinURL: "u/sam", Name: "Sam Lee", Status: model.StatusMessaged, Email: strPtr("sam@acme.io")})
		repo := newMemoryContactRepo(seed)
		svc := newTestService(repo)

		got, err := svc.SaveContact(ownerCtx(t, ownerA), model.SaveContactPayload{
			Name: "Sam Lee", LinkedinURL: "u/sam", Status: "Replied", Email: strPtr("sam at acme"),
		}, nil)
		require.NoError(t, err)
		assert.Equal(t, model.StatusReplied, got.Status)
		require.NotNil(t, got.Email)
		assert.Equal(t, "sam@acme.io", *got.Email, "the stored email survives")
	})

	t.Run("malformed email on a new contact", func(t *testing.T) {
		repo := newMemoryContactRepo()
		svc := newTestService(repo)

		got, err := svc.SaveContact(ownerCtx(t, ownerA), model.SaveContactPayload{
			Name: "Sam Lee", LinkedinURL: "u/sam", Status: "Replied", Email: strPtr("sam at acme"),
		}, nil)
		require.NoError(t, err)
		assert.Nil(t, got.Email)
		assert.Equal(t, model.StatusReplied, got.Status)
	})
}

func TestSaveContact_StoreErrorsAreInternal(t *testing.T) {
	dbErr := errors.New("connection reset by peer")
	payload := model.SaveContactPayload{Name: "Alex Chen", LinkedinURL: "u/alexc"}
	notFoundErr := notFound("none")

	testCases := []struct {
		name  string
		setup func(m *storagemock.ContactRepoMock)
	}{
		{"claim check", func(m *storagemock.ContactRepoMock) {
			m.On("FindClaimedByOtherOwner", mock.Anything, "u/alexc", ownerA).Return(nil, dbErr)
		}},
		{"exact lookup", func(m *storagemock.ContactRepoMock) {
			m.On("FindClaimedByOtherOwner", mock.Anything, "u/alexc", ownerA).Return(nil, notFoundErr)
			m.On("FindByOwnerAndURL", mock.Anything, ownerA, "u/alexc").Return(nil, dbErr)
		}},
		{"name fallback", func(m *storagemock.ContactRepoMock) {
			m.On("FindClaimedByOtherOwner", mock.Anything, "u/alexc", ownerA).Return(nil, notFoundErr)
			m.On("FindByOwnerAndURL", mock.Anything, ownerA, "u/alexc").Return(nil, notFoundErr)
			m.On("FindByNamePrefix", mock.Anything, ownerA, "Alex Chen", 2).Return(nil, dbErr)
		}},
		{"upsert", func(m *storagemock.ContactRepoMock) {
			m.On("FindClaimedByOtherOwner", mock.Anything, "u/alexc", ownerA).Return(nil, notFoundErr)
			m.On("FindByOwnerAndURL", mock.Anything, ownerA, "u/alexc").Return(nil, notFoundErr)
			m.On("FindByNamePrefix", mock.Anything, ownerA, "Alex Chen", 2).Return([]model.Contact{}, nil)
			m.On("Upsert", mock.Anything, mock.AnythingOfType("*model.Contact")).Return(dbErr)
		}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			repoMock := new(storagemock.ContactRepoMock)
			tc.setup(repoMock)
			svc := NewContactService(repoMock, new(storagemock.ExhaustedEventRepoMock))

			observedCore, logs := observer.New(zap.ErrorLevel)
			ctx := owner.WithOwnerID(logger.WithLogger(context.Background(), zap.New(observedCore)), ownerA)

			_, err := svc.SaveContact(ctx, payload, nil)
			assert.True(t, apperrors.IsInternalError(err))
			assert.ErrorIs(t, err, dbErr)
			assert.Equal(t, 1, logs.Len())
			repoMock.AssertExpectations(t)
		})
	}
}

func TestSaveContact_RecordsLastEvent(t *testing.T) {
	repo := newMemoryContactRepo()
	svc := newTestService(repo)

	meta := model.MessageMetadata{Stream: "CONTACT_EVENTS", MessageSubject: "v1.contacts.save.owner-a", StreamSequence: 42, Timestamp: fixedNow}
	got, err := svc.SaveContact(ownerCtx(t, ownerA), model.SaveContactPayload{Name: "A B", LinkedinURL: "u/ab"}, meta.ToLastEvent())
	require.NoError(t, err)
	assert.Contains(t, string(got.LastEvent), `"source":"nats"`)
	assert.Contains(t, string(got.LastEvent), `"stream_sequence":42`)

	got, err = svc.SaveContact(ownerCtx(t, ownerA), model.SaveContactPayload{Name: "A B", LinkedinURL: "u/ab"}, nil)
	require.NoError(t, err)
	assert.Contains(t, string(got.LastEvent), `"source":"http"`)
}

func TestNameKey(t *testing.T) {
	assert.Equal(t, "Jane Doe", NameKey("  Jane   Doe  Smith "))
	assert.Equal(t, "Cher", NameKey("Cher"))
	assert.Equal(t, "", NameKey("   "))
}
