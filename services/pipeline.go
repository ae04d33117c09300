package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"compound-hand/config"
	"compound-hand/models"
	"compound-hand/providers"
	"compound-hand/providers/llmtable"
	"compound-hand/storage"
)

// PipelineService orchestriert den kompletten Kurationslauf: Normalisierung,
// Identitätsgraph, Vervollständigung, Anreicherung, Fusion, Rückfluss und
// Master-Tabelle. Ergebnisse landen im Ausgabeordner, in der Datenbank und
// (best effort) im S3.
type PipelineService struct {
	Config    *config.Config
	DB        *gorm.DB
	S3Client  *s3.Client
	Logger    *zap.Logger
	Providers []providers.Provider
	LLMTable  *llmtable.Table
}

// NewPipelineService erstellt einen neuen PipelineService.
func NewPipelineService(cfg *config.Config, db *gorm.DB, s3Client *s3.Client, logger *zap.Logger, provs []providers.Provider, llmTable *llmtable.Table) *PipelineService {
	return &PipelineService{
		Config:    cfg,
		DB:        db,
		S3Client:  s3Client,
		Logger:    logger,
		Providers: provs,
		LLMTable:  llmTable,
	}
}

// Run führt einen kompletten Kurationslauf aus.
func (s *PipelineService) Run(ctx context.Context) (*models.PipelineRun, error) {
	started := time.Now()
	log := s.Logger.With(zap.Time("run_started", started))
	log.Info("Starte Kurationslauf")

	// Stufe 1: Normalisierung.
	normalizer := NewRecordNormalizer(s.Logger)
	rawRecords, stats, err := normalizer.LoadFolder(s.Config.InputFolder)
	if err != nil {
		return nil, err
	}
	if len(rawRecords) == 0 {
		return nil, fmt.Errorf("keine verwertbaren datensätze in %s", s.Config.InputFolder)
	}

	records, err := decodeDetections(rawRecords)
	if err != nil {
		return nil, err
	}

	// Stufe 2 und 3: Identitätsgraph und Vervollständigung.
	graph := BuildIdentityGraph(records, s.Logger)
	casFilled, namesFilled := graph.Complete(records)
	compounds := graph.Compounds()

	// Stufe 4: Anreicherung der Orphans über die konfigurierten Quellen.
	structured, secondary := s.enrichOrphans(ctx, compounds)

	// Stufe 5: Fusion.
	fusion := FuseCompounds(compounds, structured, secondary, s.Logger)

	// Stufe 6: Rückfluss der kuratierten Identitäten in die Detections.
	backCAS, backNames := BackfillDetections(records, compounds, s.Logger)

	// Stufe 7: Master-Tabelle.
	rows := Flatten(records, s.Logger)

	run := &models.PipelineRun{
		StartedAt:      started,
		FilesProcessed: stats.TotalFiles,
		InputRecords:   stats.TotalInputRecords,
		OutputRecords:  stats.TotalOutputRecords,
		DroppedRecords: len(stats.Dropped),
		CASFilled:      casFilled + backCAS,
		NamesFilled:    namesFilled + backNames,
		OrphansCurated: fusion.Curated,
		Conflicts:      len(fusion.Conflicts),
		Compounds:      len(compounds),
		TransitionRows: len(rows),
	}
	if len(stats.Dropped) > 0 {
		if detail, err := json.Marshal(stats.Dropped); err == nil {
			run.DroppedDetail = detail
		}
	}

	report := RenderReport(&ReportData{
		StartedAt:    started,
		Duration:     time.Since(started),
		CleanStats:   stats,
		CASFilled:    casFilled,
		NamesFilled:  namesFilled,
		BackfillCAS:  backCAS,
		BackfillName: backNames,
		Compounds:    compounds,
		Conflicts:    fusion.Conflicts,
		InputRecords: len(records),
		OutputRows:   len(rows),
	})

	if err := s.writeArtifacts(records, compounds, fusion.Conflicts, rows, structured, report); err != nil {
		return nil, err
	}

	// S3-Upload ist best effort: ein Fehler bricht den Lauf nicht ab.
	if s.S3Client != nil {
		runPrefix := started.Format("20060102-150405")
		if link, err := storage.UploadArtifact(ctx, s.S3Client, s.Config, runPrefix, "report.md", []byte(report)); err != nil {
			log.Warn("Report-Upload ins S3 fehlgeschlagen", zap.Error(err))
		} else {
			run.ReportS3Link = link
		}
		var csvBuf bytes.Buffer
		if err := WriteMasterCSV(rows, &csvBuf); err == nil {
			if _, err := storage.UploadArtifact(ctx, s.S3Client, s.Config, runPrefix, "master.csv", csvBuf.Bytes()); err != nil {
				log.Warn("Master-CSV-Upload ins S3 fehlgeschlagen", zap.Error(err))
			}
		}
	}

	run.DurationMS = time.Since(started).Milliseconds()

	if err := s.persist(compounds, fusion.Conflicts, run); err != nil {
		return nil, err
	}

	log.Info("Kurationslauf abgeschlossen",
		zap.Int("compounds", len(compounds)),
		zap.Int("curated", fusion.Curated),
		zap.Int("conflicts", len(fusion.Conflicts)),
		zap.Int("transition_rows", len(rows)),
		zap.Duration("duration", time.Since(started)))
	return run, nil
}

// enrichOrphans fragt für jeden Orphan die konfigurierten Quellen ab. Fehler
// einzelner Abfragen degradieren den Lauf nicht: der Orphan bleibt dann einfach
// unaufgelöst.
func (s *PipelineService) enrichOrphans(ctx context.Context, compounds []*models.Compound) (map[string]*models.EnrichmentCandidate, map[string]*models.SecondaryCandidate) {
	structured := make(map[string]*models.EnrichmentCandidate)
	secondary := make(map[string]*models.SecondaryCandidate)

	orphans := 0
	for _, c := range compounds {
		if c.Status != models.StatusOrphan {
			continue
		}
		orphans++

		for _, p := range s.Providers {
			cand, err := p.Lookup(ctx, c.PreferredName)
			if err != nil {
				s.Logger.Warn("Anreicherungs-Abfrage fehlgeschlagen",
					zap.String("provider", p.Name()),
					zap.String("compound", c.PreferredName),
					zap.Error(err))
			}
			if cand != nil {
				structured[c.PreferredName] = cand
				if cand.Status == models.LookupSuccess {
					break
				}
			}
		}

		if s.LLMTable != nil {
			if cand := s.LLMTable.Get(c.PreferredName); cand != nil {
				secondary[c.PreferredName] = cand
			}
		}
	}

	s.Logger.Info("Anreicherung abgeschlossen",
		zap.Int("orphans", orphans),
		zap.Int("structured_candidates", len(structured)),
		zap.Int("secondary_candidates", len(secondary)))
	return structured, secondary
}

// writeArtifacts schreibt alle Lauf-Artefakte in den Ausgabeordner.
func (s *PipelineService) writeArtifacts(
	records []models.Detection,
	compounds []*models.Compound,
	conflicts []models.FusionConflict,
	rows []models.TransitionRow,
	structured map[string]*models.EnrichmentCandidate,
	report string,
) error {
	out := s.Config.OutputFolder
	if err := os.MkdirAll(out, 0o755); err != nil {
		return fmt.Errorf("ausgabeordner %s nicht anlegbar: %w", out, err)
	}

	if err := writeJSON(filepath.Join(out, "compounds.json"), compounds); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(out, "detections_final.json"), records); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(out, "master.json"), rows); err != nil {
		return err
	}
	if len(structured) > 0 {
		if err := writeJSON(filepath.Join(out, "enrichment_results.json"), structured); err != nil {
			return err
		}
	}

	var csvBuf bytes.Buffer
	if err := WriteMasterCSV(rows, &csvBuf); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(out, "master.csv"), csvBuf.Bytes(), 0o644); err != nil {
		return err
	}

	if err := writeConflictsCSV(filepath.Join(out, "conflicts.csv"), conflicts); err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(out, "report.md"), []byte(report), 0o644)
}

// persist schreibt Register, Konflikte und Lauf-Kennzahlen in die Datenbank.
// Verbindungen werden über ihren Identitätsschlüssel upserted, damit wiederholte
// Läufe das Register fortschreiben statt es zu duplizieren.
func (s *PipelineService) persist(compounds []*models.Compound, conflicts []models.FusionConflict, run *models.PipelineRun) error {
	if s.DB == nil {
		return nil
	}

	return s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(run).Error; err != nil {
			return err
		}

		for _, c := range compounds {
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "key"}},
				UpdateAll: true,
			}).Create(c).Error; err != nil {
				return err
			}
		}

		for i := range conflicts {
			conflicts[i].RunID = run.ID
		}
		if len(conflicts) > 0 {
			if err := tx.Create(&conflicts).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// decodeDetections überführt die normalisierten Roh-Maps in das typisierte
// Schema. Der Umweg über JSON hält die getaggte Kollisionsenergie-Dekodierung
// an einer einzigen Stelle.
func decodeDetections(raw []map[string]any) ([]models.Detection, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var records []models.Detection
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("datensätze entsprechen nicht dem extraktions-schema: %w", err)
	}
	return records, nil
}

// writeJSON schreibt einen Wert eingerückt als JSON-Datei.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// writeConflictsCSV schreibt das Konflikt-Protokoll tabellarisch. Namen mit
// Kommas ("2,4-D") sind in dieser Domäne normal, daher echter CSV-Writer statt
// naiver Verkettung.
func writeConflictsCSV(path string, conflicts []models.FusionConflict) error {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)
	if err := cw.Write([]string{"name", "cas_api", "cas_llm", "llm_confidence", "decision"}); err != nil {
		return err
	}
	for _, c := range conflicts {
		if err := cw.Write([]string{c.Name, c.CASFromAPI, c.CASFromLLM, c.LLMConfidence, c.Decision}); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
