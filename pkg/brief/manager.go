package brief

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/estatechat/chatsync/pkg/api"
)

// Service is the slice of the request client the brief manager needs.
type Service interface {
	GetBrief(ctx context.Context, briefID string) (*api.Brief, error)
	UpdateBrief(ctx context.Context, briefID string, update api.BriefUpdate) (*api.Brief, error)
	SubmitBrief(ctx context.Context, briefID string) (*api.Brief, error)
}

// ErrNoBrief is returned by operations that need a loaded brief.
var ErrNoBrief = errors.New("no brief loaded")

// IncompleteError reports a submission refused because required fields are
// missing. The caller can surface Missing as guidance for the next turn.
type IncompleteError struct {
	Missing []string
}

func (e *IncompleteError) Error() string {
	return "brief is incomplete: " + strings.Join(e.Missing, "; ")
}

// Manager tracks the brief attached to the active conversation and keeps
// the local copy in step with the service's record after every patch.
type Manager struct {
	svc Service

	mu      sync.Mutex
	current *api.Brief
}

func NewManager(svc Service) *Manager {
	return &Manager{svc: svc}
}

// Current returns the tracked brief, or nil when none is loaded.
func (m *Manager) Current() *api.Brief {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil
	}
	b := *m.current
	return &b
}

// Load fetches the brief and starts tracking it.
func (m *Manager) Load(ctx context.Context, briefID string) (*api.Brief, error) {
	b, err := m.svc.GetBrief(ctx, briefID)
	if err != nil {
		return nil, errors.Wrap(err, "load brief")
	}
	m.store(b)
	return m.Current(), nil
}

// Update patches the tracked brief. Empty patches short-circuit without a
// request.
func (m *Manager) Update(ctx context.Context, update api.BriefUpdate) (*api.Brief, error) {
	current := m.Current()
	if current == nil {
		return nil, ErrNoBrief
	}
	if Empty(update) {
		return current, nil
	}

	b, err := m.svc.UpdateBrief(ctx, current.ID, update)
	if err != nil {
		return nil, errors.Wrap(err, "update brief")
	}
	m.store(b)

	log.Debug().
		Str("brief_id", b.ID).
		Float64("completeness", b.CompletenessScore).
		Msg("brief updated")

	return m.Current(), nil
}

// ApplyEntities decodes entities extracted from a reply and patches the
// tracked brief with them. A payload with nothing mappable is a no-op.
func (m *Manager) ApplyEntities(ctx context.Context, raw json.RawMessage) (*api.Brief, error) {
	if len(raw) == 0 {
		return m.Current(), nil
	}

	var entities map[string]any
	if err := json.Unmarshal(raw, &entities); err != nil {
		return nil, errors.Wrap(err, "decode entities")
	}
	if len(entities) == 0 {
		return m.Current(), nil
	}

	return m.Update(ctx, UpdateFromEntities(entities))
}

// Submit validates the tracked brief locally and submits it. Validation
// failures never reach the network.
func (m *Manager) Submit(ctx context.Context) (*api.Brief, error) {
	current := m.Current()
	if current == nil {
		return nil, ErrNoBrief
	}

	if missing := Validate(current); len(missing) > 0 {
		return nil, &IncompleteError{Missing: missing}
	}

	b, err := m.svc.SubmitBrief(ctx, current.ID)
	if err != nil {
		return nil, errors.Wrap(err, "submit brief")
	}
	m.store(b)

	log.Info().
		Str("brief_id", b.ID).
		Float64("lead_score", LeadScore(b)).
		Msg("brief submitted")

	return m.Current(), nil
}

// Reset drops the tracked brief, for when the conversation ends.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = nil
}

func (m *Manager) store(b *api.Brief) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = b
}
