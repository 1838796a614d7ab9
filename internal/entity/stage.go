package entity

import (
	"fmt"
	"strings"
	"time"
)

// CityPlaceholder is the substitution marker the stage texts carry.
const CityPlaceholder = "{city}"

// DefaultCity is used when a lead never told us where they are looking.
const DefaultCity = "your city"

// StageTemplate is one step of a drip sequence: the text to send and how
// long to wait before the step after it.
type StageTemplate struct {
	Stage int
	Text  string

	// NextDelay is counted from the successful send of this stage.
	NextDelay time.Duration
}

// Render produces the final message body for a lead.
func (t StageTemplate) Render(name, city string) string {
	if city == "" {
		city = DefaultCity
	}
	text := strings.ReplaceAll(t.Text, CityPlaceholder, city)
	return fmt.Sprintf("Hey %s, %s", name, text)
}

// StageCatalog is the read-only stage lookup, one partition per campaign
// type. It is built once at boot and never mutated, so concurrent lookups
// from in-flight dispatches need no locking.
type StageCatalog struct {
	stages map[CampaignType]map[int]StageTemplate
}

func NewStageCatalog(stages map[CampaignType][]StageTemplate) *StageCatalog {
	c := &StageCatalog{stages: make(map[CampaignType]map[int]StageTemplate)}
	for campaignType, templates := range stages {
		byStage := make(map[int]StageTemplate, len(templates))
		for _, t := range templates {
			byStage[t.Stage] = t
		}
		c.stages[campaignType] = byStage
	}
	return c
}

// Lookup returns the template for (campaignType, stage). A miss is not an
// error: it is how a sequence ends.
func (c *StageCatalog) Lookup(campaignType CampaignType, stage int) (StageTemplate, bool) {
	t, ok := c.stages[campaignType][stage]
	return t, ok
}
