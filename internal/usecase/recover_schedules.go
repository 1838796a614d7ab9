package usecase

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/abhi-theCoder/AgentSuit-Duplicate/internal/entity"
	"github.com/abhi-theCoder/AgentSuit-Duplicate/internal/infra/http/middleware"
)

// RecoverSchedulesUseCase re-arms the in-memory timers after a restart.
// Timers do not survive the process; the persisted NextSMSAt is the source
// of truth, and this runs to completion before the service takes traffic.
type RecoverSchedulesUseCase struct {
	Leads      entity.LeadRepositoryInterface
	Catalog    *entity.StageCatalog
	Scheduler  StageScheduler
	Dispatcher *DispatchStageUseCase
}

func NewRecoverSchedulesUseCase(
	leads entity.LeadRepositoryInterface,
	catalog *entity.StageCatalog,
	scheduler StageScheduler,
	dispatcher *DispatchStageUseCase,
) *RecoverSchedulesUseCase {
	return &RecoverSchedulesUseCase{
		Leads:      leads,
		Catalog:    catalog,
		Scheduler:  scheduler,
		Dispatcher: dispatcher,
	}
}

// Execute re-arms every pending lead. Overdue fire times go out immediately
// through the scheduler's own overdue path. Rows pointing at a stage with
// no template are skipped and logged; they never abort the rest. The
// returned error, if any, names every lead that was not re-armed.
func (uc *RecoverSchedulesUseCase) Execute(ctx context.Context) error {
	leads, err := uc.Leads.ListPending(ctx)
	if err != nil {
		return fmt.Errorf("could not list pending leads: %w", err)
	}

	var notArmed []string
	armed := 0
	for _, lead := range leads {
		nextStage := lead.SMSStage + 1

		if _, ok := uc.Catalog.Lookup(lead.CampaignType, nextStage); !ok {
			// Inconsistent row: a fire time pointing past the end of the
			// sequence. Someone edited the stage tables or the lead row.
			log.Printf("⚠️ Recovery: lead %s waits for %s stage %d which has no template, skipping", lead.ID, lead.CampaignType, nextStage)
			continue
		}

		leadID := lead.ID
		if !uc.Scheduler.Schedule(leadID, *lead.NextSMSAt, func() { uc.Dispatcher.Fire(leadID) }) {
			notArmed = append(notArmed, leadID)
			continue
		}

		middleware.RecordScheduleRecovered()
		armed++
	}

	log.Printf("🔁 Recovery: %d schedule(s) re-armed from %d pending lead(s)", armed, len(leads))

	if len(notArmed) > 0 {
		return fmt.Errorf("recovery incomplete, leads not re-armed: %s", strings.Join(notArmed, ", "))
	}
	return nil
}
