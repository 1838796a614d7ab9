package entity

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	// IMPORTANT: no usecase or infra imports here!
)

// CampaignType selects which drip sequence applies to a lead.
type CampaignType string

const (
	CampaignBuyer  CampaignType = "buyer"
	CampaignSeller CampaignType = "seller"
)

func ParseCampaignType(s string) (CampaignType, error) {
	switch CampaignType(s) {
	case CampaignBuyer:
		return CampaignBuyer, nil
	case CampaignSeller:
		return CampaignSeller, nil
	}
	return "", fmt.Errorf("unknown campaign type %q", s)
}

type Lead struct {
	ID                string       `json:"id"`
	Name              string       `json:"name"`
	Phone             string       `json:"phone"`
	PreferredLocation string       `json:"preferred_location,omitempty"`
	CampaignType      CampaignType `json:"campaign_type"`

	// SMSStage is the last stage successfully sent; 0 means nothing was sent yet.
	SMSStage int `json:"sms_stage"`

	// NextSMSAt is non-nil only while a send is pending for SMSStage+1.
	// nil means the drip is dormant or finished for this lead.
	NextSMSAt *time.Time `json:"next_sms_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Factory
func NewLead(name, phone, preferredLocation string, campaignType CampaignType) *Lead {
	now := time.Now()
	return &Lead{
		ID:                uuid.New().String(),
		Name:              name,
		Phone:             phone,
		PreferredLocation: preferredLocation,
		CampaignType:      campaignType,
		SMSStage:          0,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

type LeadRepositoryInterface interface {
	// Upsert inserts the lead, keyed by phone. When the phone is already
	// enrolled the existing row wins and created comes back false.
	Upsert(ctx context.Context, lead *Lead) (created bool, err error)

	FindByID(ctx context.Context, id string) (*Lead, error)

	// ListPending returns every lead with a non-null NextSMSAt.
	ListPending(ctx context.Context) ([]Lead, error)

	// UpdateProgress sets the stage/next-send pair in a single statement,
	// so the pair can never be observed half-written.
	UpdateProgress(ctx context.Context, id string, stage int, nextSMSAt *time.Time) error

	// ClearSchedule nulls NextSMSAt; clearing a lead with nothing pending is a no-op.
	ClearSchedule(ctx context.Context, id string) error
}
