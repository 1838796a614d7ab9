package worker

import (
	"context"
	"log"
	"time"

	"github.com/abhi-theCoder/AgentSuit-Duplicate/internal/entity"
)

// timerRegistry is the slice of the scheduler this worker needs.
type timerRegistry interface {
	Armed(leadID string) bool
	Schedule(leadID string, fireAt time.Time, fire func()) bool
}

// stageFirer dispatches a lead's next stage; the dispatch usecase provides it.
type stageFirer interface {
	Fire(leadID string)
	Halted(leadID string) bool
}

// DripReconcileWorker is the safety net under the precise timers: every
// tick it looks for leads whose fire time has passed but that hold no
// armed timer (a crashed schedule, a bug, a manual DB edit) and re-arms
// them. The primary path stays timer-driven; this only catches strays.
type DripReconcileWorker struct {
	leads        entity.LeadRepositoryInterface
	timers       timerRegistry
	dispatcher   stageFirer
	tickInterval time.Duration
}

func NewDripReconcileWorker(leads entity.LeadRepositoryInterface, timers timerRegistry, dispatcher stageFirer) *DripReconcileWorker {
	return &DripReconcileWorker{
		leads:        leads,
		timers:       timers,
		dispatcher:   dispatcher,
		tickInterval: 5 * time.Minute,
	}
}

func (w *DripReconcileWorker) Start(ctx context.Context) {
	log.Printf("🕒 Drip reconcile worker started (every %s)", w.tickInterval)

	ticker := time.NewTicker(w.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("⚠️ Drip reconcile worker stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *DripReconcileWorker) sweep(ctx context.Context) {
	leads, err := w.leads.ListPending(ctx)
	if err != nil {
		log.Printf("❌ Reconcile: could not list pending leads: %v", err)
		return
	}

	now := time.Now()
	rearmed := 0
	for _, lead := range leads {
		if lead.NextSMSAt.After(now) {
			continue
		}
		if w.timers.Armed(lead.ID) {
			continue
		}
		if w.dispatcher.Halted(lead.ID) {
			// The last send for this lead failed on its own timer. Whether
			// it gets another attempt is the retry budget's call, not the
			// sweep's; re-arming here would retry it every tick forever.
			continue
		}

		log.Printf("⏱️ Reconcile: lead %s was due at %s with no timer, re-arming", lead.ID, lead.NextSMSAt.Format(time.RFC3339))
		leadID := lead.ID
		if w.timers.Schedule(leadID, *lead.NextSMSAt, func() { w.dispatcher.Fire(leadID) }) {
			rearmed++
		}
	}

	if rearmed > 0 {
		log.Printf("✅ Reconcile: %d stray schedule(s) re-armed", rearmed)
	}
}
