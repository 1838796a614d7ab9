package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/abhi-theCoder/AgentSuit-Duplicate/internal/entity"
	"github.com/abhi-theCoder/AgentSuit-Duplicate/internal/infra/queue"
)

func newEnroller(repo *MockLeadRepository, transport *MockTransport, sched *FakeScheduler) *EnrollLeadUseCase {
	dispatcher := NewDispatchStageUseCase(repo, sellerCatalog(), transport, sched, 0)
	dispatcher.Now = fixedNow
	return NewEnrollLeadUseCase(repo, dispatcher)
}

// TestEnrollSendsStageOneImmediately - enrollment is the only undelayed
// send; stage 2 ends up armed for two days later (the buyer stage 1 delay).
func TestEnrollSendsStageOneImmediately(t *testing.T) {
	repo := new(MockLeadRepository)
	transport := new(MockTransport)
	sched := NewFakeScheduler()
	uc := newEnroller(repo, transport, sched)

	repo.On("Upsert", mock.Anything, mock.AnythingOfType("*entity.Lead")).Return(true, nil)
	transport.On("Send", mock.Anything, "9123456780", "Hey Ravi, ready to find your place in Mumbai?").
		Return("SM1", nil)
	repo.On("UpdateProgress", mock.Anything, mock.Anything, 1, mock.MatchedBy(func(ts *time.Time) bool {
		return ts != nil && ts.Equal(fixedNow().Add(2*24*time.Hour))
	})).Return(nil)

	lead, err := uc.Execute(context.Background(), EnrollLeadInput{
		Name:              "Ravi",
		Phone:             "9123456780",
		PreferredLocation: "Mumbai",
		CampaignType:      "buyer",
	})

	require.NoError(t, err)
	require.NotNil(t, lead)
	assert.NotEmpty(t, lead.ID)
	assert.Equal(t, entity.CampaignBuyer, lead.CampaignType)
	assert.Equal(t, 1, sched.armedCount())
	assert.Equal(t, []string{lead.ID}, sched.Guarded, "the synchronous stage-1 dispatch must run under the scheduler's guard")
	transport.AssertExpectations(t)
	repo.AssertExpectations(t)
}

// TestEnrollRejectsDuplicatePhone - re-capturing a known phone must not
// restart a drip that is already running.
func TestEnrollRejectsDuplicatePhone(t *testing.T) {
	repo := new(MockLeadRepository)
	transport := new(MockTransport)
	sched := NewFakeScheduler()
	uc := newEnroller(repo, transport, sched)

	repo.On("Upsert", mock.Anything, mock.AnythingOfType("*entity.Lead")).Return(false, nil)

	lead, err := uc.Execute(context.Background(), EnrollLeadInput{
		Name:         "Ravi",
		Phone:        "9123456780",
		CampaignType: "buyer",
	})

	require.Error(t, err)
	assert.True(t, IsDomainError(err))
	assert.Nil(t, lead)
	transport.AssertNotCalled(t, "Send", mock.Anything, mock.Anything, mock.Anything)
}

// TestEnrollValidatesInput
func TestEnrollValidatesInput(t *testing.T) {
	repo := new(MockLeadRepository)
	transport := new(MockTransport)
	sched := NewFakeScheduler()
	uc := newEnroller(repo, transport, sched)

	cases := []EnrollLeadInput{
		{Name: "", Phone: "9123456780", CampaignType: "buyer"},
		{Name: "Ravi", Phone: "", CampaignType: "buyer"},
		{Name: "Ravi", Phone: "9123456780", CampaignType: "investor"},
	}

	for _, input := range cases {
		lead, err := uc.Execute(context.Background(), input)
		require.Error(t, err)
		assert.True(t, IsDomainError(err))
		assert.Nil(t, lead)
	}

	repo.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
}

// TestEnrollSurvivesStageOneSendFailure - the lead is persisted either
// way; a failed first send just leaves it at stage 0 with nothing armed,
// exactly like any other halted send.
func TestEnrollSurvivesStageOneSendFailure(t *testing.T) {
	repo := new(MockLeadRepository)
	transport := new(MockTransport)
	sched := NewFakeScheduler()
	uc := newEnroller(repo, transport, sched)

	repo.On("Upsert", mock.Anything, mock.AnythingOfType("*entity.Lead")).Return(true, nil)
	transport.On("Send", mock.Anything, mock.Anything, mock.Anything).
		Return("", errors.New("provider down"))

	lead, err := uc.Execute(context.Background(), EnrollLeadInput{
		Name:         "Ravi",
		Phone:        "9123456780",
		CampaignType: "buyer",
	})

	require.NoError(t, err)
	require.NotNil(t, lead)
	assert.Equal(t, 0, lead.SMSStage)
	assert.Zero(t, sched.armedCount())
	repo.AssertNotCalled(t, "UpdateProgress", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// TestEnrollFromQueueDropsUnfixablePayloads - domain rejections must ack,
// not loop through the DLQ forever.
func TestEnrollFromQueueDropsUnfixablePayloads(t *testing.T) {
	repo := new(MockLeadRepository)
	transport := new(MockTransport)
	sched := NewFakeScheduler()
	uc := newEnroller(repo, transport, sched)

	err := uc.Enroll(context.Background(), queue.EnrollmentPayload{
		Name:         "Ravi",
		Phone:        "9123456780",
		CampaignType: "investor",
	})

	assert.NoError(t, err)
}
