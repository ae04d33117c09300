package main

import (
	"context"
	"log"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"compound-hand/config"
	"compound-hand/models"
	"compound-hand/providers"
	"compound-hand/providers/llmtable"
	"compound-hand/providers/pubchem"
	"compound-hand/services"
	"compound-hand/storage"
)

// CurateOptions steuert den Batch-Modus: Datenbank und S3 sind hier optional,
// damit der Lauf auch lokal rein dateibasiert funktioniert.
type CurateOptions struct {
	SkipDB bool `envconfig:"CURATE_SKIP_DB" default:"false"`
	SkipS3 bool `envconfig:"CURATE_SKIP_S3" default:"false"`
}

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	var opts CurateOptions
	if err := envconfig.Process("", &opts); err != nil {
		logging.Fatal("Fehler beim Laden der Batch-Optionen", zap.Error(err))
	}

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Fehler beim Laden der Konfiguration", zap.Error(err))
	}

	var db *gorm.DB
	if !opts.SkipDB {
		db, err = gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		if err != nil {
			logging.Fatal("Datenbankverbindung fehlgeschlagen", zap.Error(err))
		}
		db.AutoMigrate(&models.Compound{}, &models.FusionConflict{}, &models.PipelineRun{})
	}

	var s3Client *s3.Client
	if !opts.SkipS3 {
		client, err := storage.NewS3Client(cfg)
		if err != nil {
			logging.Fatal("S3-Client konnte nicht erstellt werden", zap.Error(err))
		}
		s3Client = client
	}

	var enabledProviders []providers.Provider
	for _, name := range strings.Split(cfg.EnabledProviders, ",") {
		switch strings.TrimSpace(name) {
		case "pubchem":
			enabledProviders = append(enabledProviders, pubchem.NewFetcher(cfg, logging))
		case "":
		default:
			logging.Warn("Unbekannter Provider in der Konfiguration", zap.String("provider_name", name))
		}
	}

	llmTable, err := llmtable.Load(cfg.LLMCandidatesCSV, logging)
	if err != nil {
		logging.Fatal("Kandidaten-Tabelle konnte nicht geladen werden", zap.Error(err))
	}

	pipelineService := services.NewPipelineService(cfg, db, s3Client, logging, enabledProviders, llmTable)

	run, err := pipelineService.Run(context.Background())
	if err != nil {
		logging.Fatal("Kurationslauf fehlgeschlagen", zap.Error(err))
	}

	logging.Info("Kurationslauf erfolgreich abgeschlossen",
		zap.Int("files", run.FilesProcessed),
		zap.Int("records", run.OutputRecords),
		zap.Int("compounds", run.Compounds),
		zap.Int("curated", run.OrphansCurated),
		zap.Int("conflicts", run.Conflicts),
		zap.Int("transition_rows", run.TransitionRows),
		zap.Int64("duration_ms", run.DurationMS))
}
