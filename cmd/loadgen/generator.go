package main

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"

	"github.com/linkedin-followup-tracker/followup-tracker/internal/auth"
	"github.com/linkedin-followup-tracker/followup-tracker/internal/config"
	"github.com/linkedin-followup-tracker/followup-tracker/internal/ingestion"
	"github.com/linkedin-followup-tracker/followup-tracker/internal/jetstream"
	"github.com/linkedin-followup-tracker/followup-tracker/internal/model"
	"github.com/linkedin-followup-tracker/followup-tracker/pkg/utils"
)

// statusWeights skews the mix toward early pipeline stages, the way real
// outreach looks.
var statusWeights = []struct {
	status model.ContactStatus
	weight int
}{
	{"", 20},
	{model.StatusPending, 20},
	{model.StatusConnected, 25},
	{model.StatusMessaged, 20},
	{model.StatusReplied, 10},
	{model.StatusMeetingBooked, 3},
	{model.StatusLost, 2},
}

type profile struct {
	name string
	url  string
}

// task is one save event for one owner.
type task struct {
	ownerID string
	payload *model.SaveContactPayload
}

// generator builds save events over a fixed pool of profiles per owner so
// repeated saves hit the merge path.
type generator struct {
	js     jetstream.ClientInterface
	owners []string
	tokens map[string]string

	mu       sync.Mutex
	profiles map[string][]profile
	counter  int
}

func newGenerator(js jetstream.ClientInterface, authCfg config.AuthConfig, owners []string, profilesPerOwner int, tokenTTL time.Duration) (*generator, error) {
	if len(owners) == 0 {
		return nil, fmt.Errorf("no owners provided")
	}
	if profilesPerOwner <= 0 {
		profilesPerOwner = 1
	}

	g := &generator{
		js:       js,
		owners:   owners,
		tokens:   make(map[string]string, len(owners)),
		profiles: make(map[string][]profile, len(owners)),
	}
	for _, ownerID := range owners {
		token, err := auth.IssueToken(authCfg, ownerID, tokenTTL)
		if err != nil {
			return nil, fmt.Errorf("failed to mint token for %s: %w", ownerID, err)
		}
		g.tokens[ownerID] = token

		pool := make([]profile, profilesPerOwner)
		for i := range pool {
			pool[i] = profile{name: gofakeit.Name(), url: model.FakeLinkedinURL()}
		}
		g.profiles[ownerID] = pool
	}
	return g, nil
}

// next returns the following task, cycling through owners.
func (g *generator) next() task {
	g.mu.Lock()
	ownerID := g.owners[g.counter%len(g.owners)]
	g.counter++
	pool := g.profiles[ownerID]
	p := pool[gofakeit.Number(0, len(pool)-1)]
	g.mu.Unlock()

	status := pickStatus()
	override := &model.SaveContactPayload{
		Name:        p.name,
		LinkedinURL: p.url,
		Status:      string(status),
	}
	if status == model.StatusMessaged {
		at := utils.Now().Format(model.EventTimeLayout)
		override.LastMessagedAt = &at
	}
	return task{ownerID: ownerID, payload: model.NewSaveContactPayload(override)}
}

// publish sends the task as an authenticated save event.
func (g *generator) publish(t task) (string, error) {
	subject := model.V1ContactsSave.Subject(t.ownerID)
	data, err := json.Marshal(t.payload)
	if err != nil {
		return subject, fmt.Errorf("marshal payload: %w", err)
	}
	headers := map[string]string{
		ingestion.HeaderAuthorization: "Bearer " + g.tokens[t.ownerID],
		ingestion.HeaderRequestID:     uuid.NewString(),
		ingestion.HeaderMsgID:         uuid.NewString(),
	}
	return subject, g.js.Publish(subject, data, headers)
}

func pickStatus() model.ContactStatus {
	total := 0
	for _, w := range statusWeights {
		total += w.weight
	}
	n := gofakeit.Number(0, total-1)
	for _, w := range statusWeights {
		if n < w.weight {
			return w.status
		}
		n -= w.weight
	}
	return ""
}
