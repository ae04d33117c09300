package models

import "time"

// FusionConflict dokumentiert zwei widersprüchliche CAS-Kandidaten für denselben
// Orphan. Der Waterfall entscheidet trotzdem automatisch; der Konflikt wird nur
// für die manuelle Durchsicht festgehalten.
type FusionConflict struct {
	ID        uint      `json:"-" gorm:"primaryKey"`
	CreatedAt time.Time `json:"-"`

	RunID         uint   `json:"-" gorm:"index"`
	Name          string `json:"name" gorm:"index"`
	CASFromAPI    string `json:"cas_api" gorm:"column:cas_api"`
	CASFromLLM    string `json:"cas_llm" gorm:"column:cas_llm"`
	LLMConfidence string `json:"llm_confidence" gorm:"column:llm_confidence"`
	Decision      string `json:"decision"`
}

// TableName gibt explizit den Tabellennamen an.
func (FusionConflict) TableName() string {
	return "fusion_conflicts"
}
