package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/abhi-theCoder/AgentSuit-Duplicate/internal/entity"
)

// One table per campaign type, as the CRM schema lays them out.
var stageTables = map[entity.CampaignType]string{
	entity.CampaignBuyer:  "buyer_sms",
	entity.CampaignSeller: "seller_sms",
}

type StageRepository struct {
	DB *sql.DB
}

func NewStageRepository(db *sql.DB) *StageRepository {
	return &StageRepository{DB: db}
}

// LoadCatalog reads every stage row into the in-memory catalog. Runs once
// at boot; stage texts are edited outside this service, a restart picks
// them up.
func (r *StageRepository) LoadCatalog(ctx context.Context) (*entity.StageCatalog, error) {
	stages := make(map[entity.CampaignType][]entity.StageTemplate)

	for campaignType, table := range stageTables {
		templates, err := r.loadTable(ctx, table)
		if err != nil {
			return nil, fmt.Errorf("could not load %s: %w", table, err)
		}
		stages[campaignType] = templates
		log.Printf("📚 Catalog: %d %s stage(s) loaded", len(templates), campaignType)
	}

	return entity.NewStageCatalog(stages), nil
}

func (r *StageRepository) loadTable(ctx context.Context, table string) ([]entity.StageTemplate, error) {
	// table comes from the fixed map above, never from input.
	query := fmt.Sprintf(`SELECT stage, text, next_sms_delay FROM %s ORDER BY stage`, table)

	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var templates []entity.StageTemplate
	for rows.Next() {
		var stage, delayDays int
		var text string
		if err := rows.Scan(&stage, &text, &delayDays); err != nil {
			return nil, err
		}
		templates = append(templates, entity.StageTemplate{
			Stage: stage,
			Text:  text,
			// next_sms_delay is stored in days.
			NextDelay: time.Duration(delayDays) * 24 * time.Hour,
		})
	}
	return templates, rows.Err()
}
