package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/abhi-theCoder/AgentSuit-Duplicate/internal/entity"
)

// MockLeadRepository
type MockLeadRepository struct {
	mock.Mock
}

func (m *MockLeadRepository) Upsert(ctx context.Context, lead *entity.Lead) (bool, error) {
	args := m.Called(ctx, lead)
	return args.Bool(0), args.Error(1)
}

func (m *MockLeadRepository) FindByID(ctx context.Context, id string) (*entity.Lead, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Lead), args.Error(1)
}

func (m *MockLeadRepository) ListPending(ctx context.Context) ([]entity.Lead, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Lead), args.Error(1)
}

func (m *MockLeadRepository) UpdateProgress(ctx context.Context, id string, stage int, nextSMSAt *time.Time) error {
	args := m.Called(ctx, id, stage, nextSMSAt)
	return args.Error(0)
}

func (m *MockLeadRepository) ClearSchedule(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// fakeTimerRegistry answers Armed from a fixed set and records what the
// sweep re-arms.
type fakeTimerRegistry struct {
	armed     map[string]bool
	scheduled map[string]time.Time
	fires     map[string]func()
}

func newFakeTimerRegistry(armed ...string) *fakeTimerRegistry {
	f := &fakeTimerRegistry{
		armed:     make(map[string]bool),
		scheduled: make(map[string]time.Time),
		fires:     make(map[string]func()),
	}
	for _, id := range armed {
		f.armed[id] = true
	}
	return f
}

func (f *fakeTimerRegistry) Armed(leadID string) bool { return f.armed[leadID] }

func (f *fakeTimerRegistry) Schedule(leadID string, fireAt time.Time, fire func()) bool {
	f.scheduled[leadID] = fireAt
	f.fires[leadID] = fire
	return true
}

// fakeStageFirer records fires and answers Halted from a fixed set.
type fakeStageFirer struct {
	fired  []string
	halted map[string]bool
}

func newFakeStageFirer(halted ...string) *fakeStageFirer {
	f := &fakeStageFirer{halted: make(map[string]bool)}
	for _, id := range halted {
		f.halted[id] = true
	}
	return f
}

func (f *fakeStageFirer) Fire(leadID string)        { f.fired = append(f.fired, leadID) }
func (f *fakeStageFirer) Halted(leadID string) bool { return f.halted[leadID] }

func pendingAt(id string, at time.Time) entity.Lead {
	return entity.Lead{
		ID:           id,
		Name:         "Asha",
		Phone:        "9876543210",
		CampaignType: entity.CampaignSeller,
		SMSStage:     1,
		NextSMSAt:    &at,
	}
}

func TestSweepReArmsDueLeadWithoutTimer(t *testing.T) {
	due := time.Now().Add(-10 * time.Minute)

	repo := new(MockLeadRepository)
	repo.On("ListPending", mock.Anything).Return([]entity.Lead{pendingAt("lead-1", due)}, nil)

	timers := newFakeTimerRegistry()
	firer := newFakeStageFirer()

	w := NewDripReconcileWorker(repo, timers, firer)
	w.sweep(context.Background())

	assert.Equal(t, due, timers.scheduled["lead-1"])

	// The re-armed callback dispatches through the firer.
	timers.fires["lead-1"]()
	assert.Equal(t, []string{"lead-1"}, firer.fired)
}

func TestSweepSkipsLeadWithAnArmedTimer(t *testing.T) {
	due := time.Now().Add(-10 * time.Minute)

	repo := new(MockLeadRepository)
	repo.On("ListPending", mock.Anything).Return([]entity.Lead{pendingAt("lead-1", due)}, nil)

	timers := newFakeTimerRegistry("lead-1")
	firer := newFakeStageFirer()

	w := NewDripReconcileWorker(repo, timers, firer)
	w.sweep(context.Background())

	assert.Empty(t, timers.scheduled)
	assert.Empty(t, firer.fired)
}

func TestSweepLeavesFutureLeadsAlone(t *testing.T) {
	future := time.Now().Add(48 * time.Hour)

	repo := new(MockLeadRepository)
	repo.On("ListPending", mock.Anything).Return([]entity.Lead{pendingAt("lead-1", future)}, nil)

	timers := newFakeTimerRegistry()
	firer := newFakeStageFirer()

	w := NewDripReconcileWorker(repo, timers, firer)
	w.sweep(context.Background())

	assert.Empty(t, timers.scheduled)
}

// A lead whose last send failed keeps its overdue row; the sweep must not
// turn that into a retry every tick.
func TestSweepSkipsHaltedLead(t *testing.T) {
	due := time.Now().Add(-10 * time.Minute)

	repo := new(MockLeadRepository)
	repo.On("ListPending", mock.Anything).Return([]entity.Lead{
		pendingAt("lead-1", due),
		pendingAt("lead-2", due),
	}, nil)

	timers := newFakeTimerRegistry()
	firer := newFakeStageFirer("lead-1")

	w := NewDripReconcileWorker(repo, timers, firer)
	w.sweep(context.Background())

	assert.NotContains(t, timers.scheduled, "lead-1")
	assert.Contains(t, timers.scheduled, "lead-2")
}

func TestSweepSurvivesAStoreFailure(t *testing.T) {
	repo := new(MockLeadRepository)
	repo.On("ListPending", mock.Anything).Return(nil, errors.New("connection refused"))

	timers := newFakeTimerRegistry()
	firer := newFakeStageFirer()

	w := NewDripReconcileWorker(repo, timers, firer)
	w.sweep(context.Background())

	assert.Empty(t, timers.scheduled)
}
