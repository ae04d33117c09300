package models

import (
	"time"

	"gorm.io/datatypes"
)

// PipelineRun speichert die Kennzahlen eines kompletten Pipeline-Durchlaufs.
type PipelineRun struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`

	StartedAt  time.Time `json:"started_at"`
	DurationMS int64     `json:"duration_ms"`

	FilesProcessed int `json:"files_processed"`
	InputRecords   int `json:"input_records"`
	OutputRecords  int `json:"output_records"`
	DroppedRecords int `json:"dropped_records"`

	CASFilled      int `json:"cas_filled"`
	NamesFilled    int `json:"names_filled"`
	OrphansCurated int `json:"orphans_curated"`
	Conflicts      int `json:"conflicts"`
	Compounds      int `json:"compounds"`
	TransitionRows int `json:"transition_rows"`

	ReportS3Link string `json:"report_s3_link,omitempty"`

	// Detailliste der verworfenen Datensätze (Datei, Index, Grund, Snippet).
	DroppedDetail datatypes.JSON `json:"dropped_detail,omitempty" gorm:"type:jsonb"`
}

// TableName gibt explizit den Tabellennamen an.
func (PipelineRun) TableName() string {
	return "pipeline_runs"
}
