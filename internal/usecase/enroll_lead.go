package usecase

import (
	"context"
	"log"
	"strings"

	"github.com/abhi-theCoder/AgentSuit-Duplicate/internal/entity"
	"github.com/abhi-theCoder/AgentSuit-Duplicate/internal/infra/http/middleware"
	"github.com/abhi-theCoder/AgentSuit-Duplicate/internal/infra/queue"
)

type EnrollLeadInput struct {
	Name              string `json:"name"`
	Phone             string `json:"phone"`
	PreferredLocation string `json:"preferred_location"`
	CampaignType      string `json:"campaign_type"`
}

// EnrollLeadUseCase registers a new lead and fires stage 1 synchronously;
// the first message carries no delay.
type EnrollLeadUseCase struct {
	Leads      entity.LeadRepositoryInterface
	Dispatcher *DispatchStageUseCase
}

func NewEnrollLeadUseCase(leads entity.LeadRepositoryInterface, dispatcher *DispatchStageUseCase) *EnrollLeadUseCase {
	return &EnrollLeadUseCase{Leads: leads, Dispatcher: dispatcher}
}

func (uc *EnrollLeadUseCase) Execute(ctx context.Context, input EnrollLeadInput) (*entity.Lead, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, NewDomainError("INVALID_INPUT", "name is required")
	}
	if strings.TrimSpace(input.Phone) == "" {
		return nil, NewDomainError("INVALID_INPUT", "phone is required")
	}
	campaignType, err := entity.ParseCampaignType(input.CampaignType)
	if err != nil {
		return nil, NewDomainError("INVALID_INPUT", err.Error())
	}

	lead := entity.NewLead(input.Name, input.Phone, input.PreferredLocation, campaignType)

	created, err := uc.Leads.Upsert(ctx, lead)
	if err != nil {
		return nil, &TechnicalError{Code: "DB_ERROR", Message: "could not save lead", Cause: err}
	}
	if !created {
		// Same phone again: the running drip keeps its place, nothing restarts.
		log.Printf("⚠️ Enroll: phone %s is already enrolled, skipping", input.Phone)
		return nil, NewDomainError("ALREADY_ENROLLED", "phone is already enrolled")
	}

	middleware.RecordLeadEnrolled(string(campaignType))
	log.Printf("📋 Enroll: lead %s (%s) enrolled in the %s sequence", lead.ID, lead.Name, campaignType)

	// Stage 1 goes out right now, under the scheduler's dispatch guard: a
	// cancel racing this send leaves the usual tombstone instead of slipping
	// between the send and the stage-2 timer. A failed send is logged and
	// counted by the dispatcher; the enrollment itself stands either way.
	uc.Dispatcher.Scheduler.Guard(lead.ID, func() {
		if err := uc.Dispatcher.Execute(ctx, *lead, 1); err != nil {
			log.Printf("⚠️ Enroll: stage 1 did not go out for lead %s, drip halted until re-enrollment", lead.ID)
		}
	})

	return lead, nil
}

// Enroll adapts an intake-queue payload; it exists so the queue worker can
// stay free of usecase imports.
func (uc *EnrollLeadUseCase) Enroll(ctx context.Context, payload queue.EnrollmentPayload) error {
	_, err := uc.Execute(ctx, EnrollLeadInput{
		Name:              payload.Name,
		Phone:             payload.Phone,
		PreferredLocation: payload.PreferredLocation,
		CampaignType:      payload.CampaignType,
	})
	if IsDomainError(err) {
		// Bad or duplicate payloads are dead on arrival; retrying them
		// through the DLQ would never succeed.
		log.Printf("⚠️ Enroll: dropping queue payload for %s: %v", payload.Phone, err)
		return nil
	}
	return err
}
