package brief

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/estatechat/chatsync/pkg/api"
)

type fakeBriefService struct {
	mu sync.Mutex

	brief       *api.Brief
	updateCalls int
	submitCalls int
}

func (f *fakeBriefService) GetBrief(ctx context.Context, briefID string) (*api.Brief, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.brief == nil || f.brief.ID != briefID {
		return nil, &api.Error{Status: 404, Code: api.CodeBriefNotFound, Message: "not found"}
	}
	b := *f.brief
	return &b, nil
}

func (f *fakeBriefService) UpdateBrief(ctx context.Context, briefID string, update api.BriefUpdate) (*api.Brief, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updateCalls++
	if f.brief == nil || f.brief.ID != briefID {
		return nil, &api.Error{Status: 404, Code: api.CodeBriefNotFound, Message: "not found"}
	}

	if update.Location != nil {
		f.brief.Location = *update.Location
	}
	if update.BudgetMin != nil {
		f.brief.BudgetMin = update.BudgetMin
	}
	if update.BudgetMax != nil {
		f.brief.BudgetMax = update.BudgetMax
	}
	if update.Rooms != nil {
		f.brief.Rooms = *update.Rooms
	}
	if update.AreaMin != nil {
		f.brief.AreaMin = update.AreaMin
	}
	f.brief.CompletenessScore = Completeness(f.brief)

	b := *f.brief
	return &b, nil
}

func (f *fakeBriefService) SubmitBrief(ctx context.Context, briefID string) (*api.Brief, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitCalls++
	if f.brief == nil || f.brief.ID != briefID {
		return nil, &api.Error{Status: 404, Code: api.CodeBriefNotFound, Message: "not found"}
	}
	f.brief.Status = api.BriefSubmitted
	b := *f.brief
	return &b, nil
}

func newBriefFixture(t *testing.T) (*fakeBriefService, *Manager) {
	t.Helper()

	svc := &fakeBriefService{
		brief: &api.Brief{
			ID:           "brief-1",
			SessionID:    "session-1",
			PropertyType: api.PropertyBuy,
			Status:       api.BriefDraft,
		},
	}
	mgr := NewManager(svc)
	_, err := mgr.Load(context.Background(), "brief-1")
	require.NoError(t, err)
	return svc, mgr
}

func TestManagerLoadUnknownBrief(t *testing.T) {
	mgr := NewManager(&fakeBriefService{})

	_, err := mgr.Load(context.Background(), "brief-1")
	require.Error(t, err)
	var apiErr *api.Error
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, api.CodeBriefNotFound, apiErr.Code)
	require.Nil(t, mgr.Current())
}

func TestManagerOperationsWithoutBrief(t *testing.T) {
	mgr := NewManager(&fakeBriefService{})

	_, err := mgr.Update(context.Background(), api.BriefUpdate{})
	require.ErrorIs(t, err, ErrNoBrief)

	_, err = mgr.Submit(context.Background())
	require.ErrorIs(t, err, ErrNoBrief)
}

func TestManagerApplyEntitiesPatchesBrief(t *testing.T) {
	svc, mgr := newBriefFixture(t)

	raw := json.RawMessage(`{"location":"Setagaya","budget":60000000,"rooms":"2LDK"}`)
	b, err := mgr.ApplyEntities(context.Background(), raw)
	require.NoError(t, err)

	require.Equal(t, "Setagaya", b.Location)
	require.NotNil(t, b.BudgetMax)
	require.Equal(t, 60_000_000, *b.BudgetMax)
	require.Equal(t, "2LDK", b.Rooms)
	require.Equal(t, 75.0, b.CompletenessScore)
	require.Equal(t, 1, svc.updateCalls)
}

func TestManagerApplyEntitiesEmptyPayloadIsNoOp(t *testing.T) {
	svc, mgr := newBriefFixture(t)

	_, err := mgr.ApplyEntities(context.Background(), nil)
	require.NoError(t, err)
	_, err = mgr.ApplyEntities(context.Background(), json.RawMessage(`{}`))
	require.NoError(t, err)

	require.Equal(t, 0, svc.updateCalls)
}

func TestManagerSubmitIncompleteNeverReachesNetwork(t *testing.T) {
	svc, mgr := newBriefFixture(t)

	_, err := mgr.Submit(context.Background())
	require.Error(t, err)

	var incomplete *IncompleteError
	require.True(t, errors.As(err, &incomplete))
	require.Len(t, incomplete.Missing, 3)
	require.Equal(t, 0, svc.submitCalls)
}

func TestManagerSubmitCompleteBrief(t *testing.T) {
	svc, mgr := newBriefFixture(t)

	raw := json.RawMessage(`{"location":"Setagaya","budget":60000000,"rooms":"2LDK"}`)
	_, err := mgr.ApplyEntities(context.Background(), raw)
	require.NoError(t, err)

	b, err := mgr.Submit(context.Background())
	require.NoError(t, err)
	require.Equal(t, api.BriefSubmitted, b.Status)
	require.Equal(t, 1, svc.submitCalls)
}

func TestManagerReset(t *testing.T) {
	_, mgr := newBriefFixture(t)

	require.NotNil(t, mgr.Current())
	mgr.Reset()
	require.Nil(t, mgr.Current())
}
