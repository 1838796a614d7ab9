package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/abhi-theCoder/AgentSuit-Duplicate/internal/entity"
)

type LeadRepository struct {
	DB *sql.DB
}

func NewLeadRepository(db *sql.DB) *LeadRepository {
	return &LeadRepository{DB: db}
}

// Upsert inserts the lead keyed by phone. On conflict the existing row is
// left untouched (a lead mid-drip must not be restarted) and created comes
// back false.
func (r *LeadRepository) Upsert(ctx context.Context, lead *entity.Lead) (bool, error) {
	query := `
		INSERT INTO leads (id, name, phone, preferred_location, campaign_type, sms_stage, next_sms_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NULL, NOW(), NOW())
		ON CONFLICT (phone) DO NOTHING
		RETURNING created_at, updated_at
	`

	err := r.DB.QueryRowContext(
		ctx,
		query,
		lead.ID,
		lead.Name,
		lead.Phone,
		nullString(lead.PreferredLocation),
		string(lead.CampaignType),
		lead.SMSStage,
	).Scan(
		&lead.CreatedAt,
		&lead.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		// Conflict path: DO NOTHING returns no row.
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *LeadRepository) FindByID(ctx context.Context, id string) (*entity.Lead, error) {
	query := `
		SELECT id, name, phone, COALESCE(preferred_location, ''), campaign_type, sms_stage, next_sms_at, created_at, updated_at
		FROM leads
		WHERE id = $1
	`

	var lead entity.Lead
	var campaignType string
	var nextSMSAt sql.NullTime

	err := r.DB.QueryRowContext(ctx, query, id).Scan(
		&lead.ID,
		&lead.Name,
		&lead.Phone,
		&lead.PreferredLocation,
		&campaignType,
		&lead.SMSStage,
		&nextSMSAt,
		&lead.CreatedAt,
		&lead.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	lead.CampaignType = entity.CampaignType(campaignType)
	if nextSMSAt.Valid {
		t := nextSMSAt.Time
		lead.NextSMSAt = &t
	}
	return &lead, nil
}

// ListPending returns every lead still waiting on a send, oldest deadline
// first. This is the recovery working set.
func (r *LeadRepository) ListPending(ctx context.Context) ([]entity.Lead, error) {
	query := `
		SELECT id, name, phone, COALESCE(preferred_location, ''), campaign_type, sms_stage, next_sms_at, created_at, updated_at
		FROM leads
		WHERE next_sms_at IS NOT NULL
		ORDER BY next_sms_at
	`

	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var leads []entity.Lead
	for rows.Next() {
		var lead entity.Lead
		var campaignType string
		var nextSMSAt time.Time

		if err := rows.Scan(
			&lead.ID,
			&lead.Name,
			&lead.Phone,
			&lead.PreferredLocation,
			&campaignType,
			&lead.SMSStage,
			&nextSMSAt,
			&lead.CreatedAt,
			&lead.UpdatedAt,
		); err != nil {
			return nil, err
		}

		lead.CampaignType = entity.CampaignType(campaignType)
		t := nextSMSAt
		lead.NextSMSAt = &t
		leads = append(leads, lead)
	}
	return leads, rows.Err()
}

// UpdateProgress advances the stage/next-send pair in one statement; a nil
// nextSMSAt marks the lead terminal.
func (r *LeadRepository) UpdateProgress(ctx context.Context, id string, stage int, nextSMSAt *time.Time) error {
	query := `
		UPDATE leads
		SET sms_stage = $2, next_sms_at = $3, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.DB.ExecContext(ctx, query, id, stage, nextSMSAt)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("lead %s not found", id)
	}
	return nil
}

// ClearSchedule nulls the pending fire time. A lead with nothing pending
// (or no row at all) is left as-is, which makes cancel idempotent.
func (r *LeadRepository) ClearSchedule(ctx context.Context, id string) error {
	query := `
		UPDATE leads
		SET next_sms_at = NULL, updated_at = NOW()
		WHERE id = $1 AND next_sms_at IS NOT NULL
	`

	_, err := r.DB.ExecContext(ctx, query, id)
	return err
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
