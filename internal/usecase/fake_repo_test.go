package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"gorm.io/datatypes"

	"github.com/linkedin-followup-tracker/followup-tracker/internal/apperrors"
	"github.com/linkedin-followup-tracker/followup-tracker/internal/model"
)

// memoryContactRepo keeps contacts in a slice and mimics the Postgres
// upsert: a conflicting (owner, url) row keeps id, created_at, notes and
// auto_followup_days.
type memoryContactRepo struct {
	mu      sync.Mutex
	rows    []model.Contact
	upserts int
}

func newMemoryContactRepo(seed ...model.Contact) *memoryContactRepo {
	return &memoryContactRepo{rows: append([]model.Contact(nil), seed...)}
}

func notFound(what string) error {
	return fmt.Errorf("%w: %s", apperrors.ErrNotFound, what)
}

func (r *memoryContactRepo) FindClaimedByOtherOwner(_ context.Context, linkedinURL, ownerID string) (*model.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.rows {
		if c.LinkedinURL == linkedinURL && c.OwnerID != ownerID {
			cp := c
			return &cp, nil
		}
	}
	return nil, notFound("claim")
}

func (r *memoryContactRepo) FindByOwnerAndURL(_ context.Context, ownerID, linkedinURL string) (*model.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.rows {
		if c.OwnerID == ownerID && c.LinkedinURL == linkedinURL {
			cp := c
			return &cp, nil
		}
	}
	return nil, notFound("contact")
}

func (r *memoryContactRepo) FindByNamePrefix(_ context.Context, ownerID, prefix string, limit int) ([]model.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Contact
	for _, c := range r.rows {
		if c.OwnerID == ownerID && strings.HasPrefix(strings.ToLower(c.Name), strings.ToLower(prefix)) {
			out = append(out, c)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (r *memoryContactRepo) FindByIDAndOwner(_ context.Context, id, ownerID string) (*model.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.rows {
		if c.ID == id && c.OwnerID == ownerID {
			cp := c
			return &cp, nil
		}
	}
	return nil, notFound(id)
}

func (r *memoryContactRepo) Upsert(_ context.Context, contact *model.Contact) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upserts++
	for i, c := range r.rows {
		if c.OwnerID == contact.OwnerID && c.LinkedinURL == contact.LinkedinURL {
			merged := *contact
			merged.ID = c.ID
			merged.CreatedAt = c.CreatedAt
			merged.Notes = c.Notes
			merged.AutoFollowupDays = c.AutoFollowupDays
			r.rows[i] = merged
			*contact = merged
			return nil
		}
	}
	r.rows = append(r.rows, *contact)
	return nil
}

func (r *memoryContactRepo) UpdateFields(_ context.Context, id, ownerID string, fields map[string]interface{}) (*model.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.rows {
		c := &r.rows[i]
		if c.ID != id || c.OwnerID != ownerID {
			continue
		}
		for k, v := range fields {
			switch k {
			case "status":
				c.Status = v.(model.ContactStatus)
			case "notes":
				c.Notes = v.(*string)
			case "email":
				c.Email = v.(*string)
			case "phone":
				c.Phone = v.(*string)
			case "company":
				c.Company = v.(*string)
			case "role":
				c.Role = v.(*string)
			case "next_followup":
				if v == nil {
					c.NextFollowup = nil
				} else {
					c.NextFollowup = v.(*datatypes.Date)
				}
			case "connected_at":
				c.ConnectedAt = timeOrNil(v)
			case "last_messaged_at":
				c.LastMessagedAt = timeOrNil(v)
			case "last_replied_at":
				c.LastRepliedAt = timeOrNil(v)
			case "viewed_profile_at":
				c.ViewedProfileAt = timeOrNil(v)
			case "auto_followup_days":
				c.AutoFollowupDays = v.(int)
			case "updated_at":
				c.UpdatedAt = v.(time.Time)
			default:
				return nil, fmt.Errorf("unexpected column %q", k)
			}
		}
		cp := *c
		return &cp, nil
	}
	return nil, notFound(id)
}

func timeOrNil(v interface{}) *time.Time {
	if v == nil {
		return nil
	}
	t := v.(time.Time)
	return &t
}

func (r *memoryContactRepo) FindDueFollowups(_ context.Context, ownerID string, day time.Time) ([]model.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Contact
	for _, c := range r.rows {
		if c.OwnerID == ownerID && c.NextFollowup != nil && !time.Time(*c.NextFollowup).After(day) {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return time.Time(*out[i].NextFollowup).Before(time.Time(*out[j].NextFollowup))
	})
	return out, nil
}

func (r *memoryContactRepo) FindAllDueFollowups(_ context.Context, day time.Time) ([]model.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Contact
	for _, c := range r.rows {
		if c.NextFollowup != nil && !time.Time(*c.NextFollowup).After(day) {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].OwnerID != out[j].OwnerID {
			return out[i].OwnerID < out[j].OwnerID
		}
		return time.Time(*out[i].NextFollowup).Before(time.Time(*out[j].NextFollowup))
	})
	return out, nil
}

func (r *memoryContactRepo) Close(context.Context) error { return nil }

func (r *memoryContactRepo) countFor(ownerID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.rows {
		if c.OwnerID == ownerID {
			n++
		}
	}
	return n
}
