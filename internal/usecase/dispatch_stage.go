package usecase

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/abhi-theCoder/AgentSuit-Duplicate/internal/entity"
	"github.com/abhi-theCoder/AgentSuit-Duplicate/internal/infra/http/middleware"
)

const (
	persistAttempts = 3
	persistBackoff  = 200 * time.Millisecond
)

// DispatchStageUseCase performs one stage of a lead's drip sequence: look
// the template up, send it, then advance the persisted stage and arm the
// timer for the stage after it.
type DispatchStageUseCase struct {
	Leads     entity.LeadRepositoryInterface
	Catalog   *entity.StageCatalog
	Transport Transport
	Scheduler StageScheduler

	// SendRetries is how many times a failed provider send is re-attempted
	// before the lead's progression is halted. 0 keeps the halt-on-first-error
	// behavior.
	SendRetries int

	// Now is swappable for tests.
	Now func() time.Time

	haltedMu sync.Mutex
	halted   map[string]bool
}

func NewDispatchStageUseCase(
	leads entity.LeadRepositoryInterface,
	catalog *entity.StageCatalog,
	transport Transport,
	scheduler StageScheduler,
	sendRetries int,
) *DispatchStageUseCase {
	return &DispatchStageUseCase{
		Leads:       leads,
		Catalog:     catalog,
		Transport:   transport,
		Scheduler:   scheduler,
		SendRetries: sendRetries,
		Now:         time.Now,
		halted:      make(map[string]bool),
	}
}

// Execute sends the given stage to the lead. The advanced stage and the
// next fire time are persisted BEFORE the next timer is armed: if the
// process dies in between, recovery re-sends at most this one stage, it
// never skips one. At-least-once beats at-most-once here.
func (uc *DispatchStageUseCase) Execute(ctx context.Context, lead entity.Lead, stage int) error {
	tmpl, ok := uc.Catalog.Lookup(lead.CampaignType, stage)
	if !ok {
		// No template for this stage: the sequence is over for this lead.
		log.Printf("🏁 Drip: no stage %d for %s leads, sequence finished for lead %s", stage, lead.CampaignType, lead.ID)
		return nil
	}

	body := tmpl.Render(lead.Name, lead.PreferredLocation)

	messageID, err := uc.send(ctx, lead.Phone, body)
	if err != nil {
		// The lead is NOT advanced. Without a retry budget its drip simply
		// stalls here until something re-enrolls it.
		uc.markHalted(lead.ID)
		middleware.RecordDripSendFailure(string(lead.CampaignType))
		log.Printf("❌ Drip: stage %d send failed for lead %s: %v", stage, lead.ID, err)
		return &TechnicalError{
			Code:    "SEND_FAILED",
			Message: fmt.Sprintf("stage %d send failed for lead %s", stage, lead.ID),
			Cause:   err,
		}
	}

	uc.clearHalted(lead.ID)
	middleware.RecordDripSend(string(lead.CampaignType))
	log.Printf("✅ Drip: stage %d sent to lead %s (message %s)", stage, lead.ID, messageID)

	// The delay on stage N's template is the wait between N and N+1,
	// counted from now. The lookahead only decides whether N+1 exists.
	var nextSMSAt *time.Time
	_, hasNext := uc.Catalog.Lookup(lead.CampaignType, stage+1)
	if hasNext {
		t := uc.Now().Add(tmpl.NextDelay)
		nextSMSAt = &t
	}

	if err := uc.persistProgress(ctx, lead.ID, stage, nextSMSAt); err != nil {
		// The message went out but the row still says it didn't. Loud log:
		// recovery will re-send this stage, which is the accepted worst case.
		log.Printf("🚨 Drip: sent stage %d to lead %s but could not persist progress: %v", stage, lead.ID, err)
		return &TechnicalError{
			Code:    "PERSIST_FAILED",
			Message: fmt.Sprintf("stage %d sent but not persisted for lead %s", stage, lead.ID),
			Cause:   err,
		}
	}

	if !hasNext {
		log.Printf("🏁 Drip: lead %s completed the %s sequence at stage %d", lead.ID, lead.CampaignType, stage)
		middleware.RecordDripCompleted(string(lead.CampaignType))
		return nil
	}

	if uc.Scheduler.Schedule(lead.ID, *nextSMSAt, uc.fire(lead.ID)) {
		log.Printf("🕒 Drip: stage %d for lead %s scheduled at %s", stage+1, lead.ID, nextSMSAt.Format(time.RFC3339))
		return nil
	}

	// Cancelled while this dispatch was in flight: the dispatch was allowed
	// to finish, but nothing may be re-armed. Undo the pending fire time so
	// the row agrees with the (empty) timer table.
	log.Printf("🛑 Drip: lead %s cancelled mid-dispatch, stage %d will not be scheduled", lead.ID, stage+1)
	if err := uc.Leads.ClearSchedule(ctx, lead.ID); err != nil {
		log.Printf("🚨 Drip: could not clear schedule for cancelled lead %s: %v", lead.ID, err)
	}
	return nil
}

// Fire is the timer callback: reload the lead and dispatch whatever its
// next stage is by then. Reloading keeps a stale closure from resending an
// old stage after a cancel or an external edit.
func (uc *DispatchStageUseCase) Fire(leadID string) {
	ctx := context.Background()

	lead, err := uc.Leads.FindByID(ctx, leadID)
	if err != nil {
		log.Printf("❌ Drip: timer fired but lead %s could not be loaded: %v", leadID, err)
		return
	}
	if lead.NextSMSAt == nil {
		// Cancelled (or finished) while the timer was armed.
		return
	}

	_ = uc.Execute(ctx, *lead, lead.SMSStage+1)
}

func (uc *DispatchStageUseCase) fire(leadID string) func() {
	return func() { uc.Fire(leadID) }
}

// Halted reports whether the lead's last dispatch died at the transport in
// this process lifetime. The reconcile sweep leaves such leads alone so the
// halt-on-send-failure default is not undone one tick at a time; a restart
// forgets the marks, and recovery retries exactly once, as it always did.
func (uc *DispatchStageUseCase) Halted(leadID string) bool {
	uc.haltedMu.Lock()
	defer uc.haltedMu.Unlock()
	return uc.halted[leadID]
}

func (uc *DispatchStageUseCase) markHalted(leadID string) {
	uc.haltedMu.Lock()
	uc.halted[leadID] = true
	uc.haltedMu.Unlock()
}

func (uc *DispatchStageUseCase) clearHalted(leadID string) {
	uc.haltedMu.Lock()
	delete(uc.halted, leadID)
	uc.haltedMu.Unlock()
}

func (uc *DispatchStageUseCase) send(ctx context.Context, to, body string) (string, error) {
	attempts := uc.SendRetries + 1

	var messageID string
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		messageID, err = uc.Transport.Send(ctx, to, body)
		if err == nil {
			return messageID, nil
		}
		if attempt < attempts {
			log.Printf("⚠️ Drip: send attempt %d/%d failed: %v", attempt, attempts, err)
		}
	}
	return "", err
}

func (uc *DispatchStageUseCase) persistProgress(ctx context.Context, leadID string, stage int, nextSMSAt *time.Time) error {
	var err error
	for attempt := 1; attempt <= persistAttempts; attempt++ {
		if err = uc.Leads.UpdateProgress(ctx, leadID, stage, nextSMSAt); err == nil {
			return nil
		}
		log.Printf("⚠️ Drip: persist attempt %d/%d failed for lead %s: %v", attempt, persistAttempts, leadID, err)
		if attempt < persistAttempts {
			time.Sleep(persistBackoff)
		}
	}
	return err
}
