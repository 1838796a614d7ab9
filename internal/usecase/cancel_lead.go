package usecase

import (
	"context"
	"fmt"
	"log"

	"github.com/abhi-theCoder/AgentSuit-Duplicate/internal/entity"
)

// CancelLeadUseCase stops a lead's drip: drop the armed timer, null the
// persisted fire time. Safe to call any number of times.
type CancelLeadUseCase struct {
	Leads     entity.LeadRepositoryInterface
	Scheduler StageScheduler
}

func NewCancelLeadUseCase(leads entity.LeadRepositoryInterface, scheduler StageScheduler) *CancelLeadUseCase {
	return &CancelLeadUseCase{Leads: leads, Scheduler: scheduler}
}

func (uc *CancelLeadUseCase) Execute(ctx context.Context, leadID string) error {
	// Timer first: once Cancel returns, no new timer can be armed for this
	// lead, even by a dispatch that is still running. The store update that
	// follows can then never be raced back to a pending state.
	uc.Scheduler.Cancel(leadID)

	if err := uc.Leads.ClearSchedule(ctx, leadID); err != nil {
		return fmt.Errorf("could not clear schedule for lead %s: %w", leadID, err)
	}

	log.Printf("🛑 Drip: lead %s cancelled, no further stages will be sent", leadID)
	return nil
}
