package usecase

import (
	"context"
	"sync"
	"time"

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

// MockTransport
type MockTransport struct {
	mock.Mock
}

func (m *MockTransport) Send(ctx context.Context, to, body string) (string, error) {
	args := m.Called(ctx, to, body)
	return args.String(0), args.Error(1)
}

// FakeScheduler records schedule/cancel calls without real timers, so the
// tests can fire callbacks by hand.
type FakeScheduler struct {
	mu          sync.Mutex
	ScheduledAt map[string]time.Time
	Fires       map[string]func()
	Cancelled   []string
	Guarded     []string

	// Reject makes Schedule behave as if the lead was cancelled mid-dispatch.
	Reject bool
}

func NewFakeScheduler() *FakeScheduler {
	return &FakeScheduler{
		ScheduledAt: make(map[string]time.Time),
		Fires:       make(map[string]func()),
	}
}

func (f *FakeScheduler) Schedule(leadID string, fireAt time.Time, fire func()) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Reject {
		return false
	}
	f.ScheduledAt[leadID] = fireAt
	f.Fires[leadID] = fire
	return true
}

func (f *FakeScheduler) Cancel(leadID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Cancelled = append(f.Cancelled, leadID)
	delete(f.ScheduledAt, leadID)
	delete(f.Fires, leadID)
}

func (f *FakeScheduler) Guard(leadID string, fn func()) {
	f.mu.Lock()
	f.Guarded = append(f.Guarded, leadID)
	f.mu.Unlock()
	fn()
}

// fireNow pops the lead's armed callback the way a real fire would.
func (f *FakeScheduler) fireNow(leadID string) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	fire := f.Fires[leadID]
	delete(f.Fires, leadID)
	delete(f.ScheduledAt, leadID)
	return fire
}

func (f *FakeScheduler) armedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ScheduledAt)
}

// sellerCatalog is the two-stage fixture most tests share: stage 1 waits 3
// days, stage 2 is the last one.
func sellerCatalog() *entity.StageCatalog {
	return entity.NewStageCatalog(map[entity.CampaignType][]entity.StageTemplate{
		entity.CampaignSeller: {
			{Stage: 1, Text: "thinking of selling in {city}? We can help.", NextDelay: 3 * 24 * time.Hour},
			{Stage: 2, Text: "homes in {city} are moving fast right now.", NextDelay: 5 * 24 * time.Hour},
		},
		entity.CampaignBuyer: {
			{Stage: 1, Text: "ready to find your place in {city}?", NextDelay: 2 * 24 * time.Hour},
			{Stage: 2, Text: "new listings just landed in {city}.", NextDelay: 4 * 24 * time.Hour},
		},
	})
}

func sellerLead() entity.Lead {
	return entity.Lead{
		ID:                "lead-1",
		Name:              "Asha",
		Phone:             "9876543210",
		PreferredLocation: "Pune",
		CampaignType:      entity.CampaignSeller,
		SMSStage:          0,
	}
}
