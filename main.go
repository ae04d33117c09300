package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"compound-hand/config"
	"compound-hand/models"
	"compound-hand/providers"
	"compound-hand/providers/llmtable"
	"compound-hand/providers/pubchem"
	"compound-hand/services"
	"compound-hand/storage"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	pipelineRunsCounter    prometheus.Counter
	droppedRecordsCounter  prometheus.Counter
	casFilledCounter       prometheus.Counter
	curatedOrphansCounter  prometheus.Counter
	fusionConflictsCounter prometheus.Counter
	transitionRowsCounter  prometheus.Counter
)

func init() {
	pipelineRunsCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "curation_pipeline_runs_total",
			Help: "Total number of completed curation pipeline runs.",
		},
	)
	droppedRecordsCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "curation_records_dropped_total",
			Help: "Total number of input records dropped for missing transition data.",
		},
	)
	casFilledCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "curation_cas_filled_total",
			Help: "Total number of CAS numbers filled by completion and backfill.",
		},
	)
	curatedOrphansCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "curation_orphans_curated_total",
			Help: "Total number of orphan compounds resolved via enrichment.",
		},
	)
	fusionConflictsCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "curation_fusion_conflicts_total",
			Help: "Total number of source conflicts recorded during fusion.",
		},
	)
	transitionRowsCounter = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "curation_transition_rows_total",
			Help: "Total number of transition rows emitted into the master table.",
		},
	)
	prometheus.MustRegister(pipelineRunsCounter, droppedRecordsCounter, casFilledCounter,
		curatedOrphansCounter, fusionConflictsCounter, transitionRowsCounter)
}

// recordRunMetrics überträgt die Kennzahlen eines Laufs auf die Counter.
func recordRunMetrics(run *models.PipelineRun) {
	pipelineRunsCounter.Inc()
	droppedRecordsCounter.Add(float64(run.DroppedRecords))
	casFilledCounter.Add(float64(run.CASFilled))
	curatedOrphansCounter.Add(float64(run.OrphansCurated))
	fusionConflictsCounter.Add(float64(run.Conflicts))
	transitionRowsCounter.Add(float64(run.TransitionRows))
}

func apiKeyAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.APISecretKey == "" {
			c.Next()
			return
		}
		apiKey := c.GetHeader("X-API-KEY")
		if apiKey != cfg.APISecretKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid API Key"})
			return
		}
		c.Next()
	}
}

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	// Setup Database Connection
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		logging.Fatal("Failed to connect to database", zap.Error(err))
	}
	logging.Info("Successfully connected to curation database.")

	logging.Info("Running database auto-migration...")
	db.AutoMigrate(&models.Compound{}, &models.FusionConflict{}, &models.PipelineRun{})

	// Setup Providers
	enabledProviderNames := strings.Split(cfg.EnabledProviders, ",")
	var enabledProviders []providers.Provider
	for _, name := range enabledProviderNames {
		switch strings.TrimSpace(name) {
		case "pubchem":
			enabledProviders = append(enabledProviders, pubchem.NewFetcher(cfg, logging))
		default:
			logging.Warn("Unknown provider in config", zap.String("provider_name", name))
		}
	}
	logging.Info("Active providers loaded", zap.Strings("providers", enabledProviderNames))

	llmTable, err := llmtable.Load(cfg.LLMCandidatesCSV, logging)
	if err != nil {
		logging.Fatal("LLM candidate table load failed", zap.Error(err))
	}

	// Setup Services
	s3Client, err := storage.NewS3Client(cfg)
	if err != nil {
		logging.Fatal("S3 client creation failed", zap.Error(err))
	}
	pipelineService := services.NewPipelineService(cfg, db, s3Client, logging, enabledProviders, llmTable)

	// Setup Router
	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(apiKeyAuthMiddleware(cfg))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Setup Routes
	setupCompoundRoutes(router, db, logging)
	setupConflictRoutes(router, db, logging)
	setupRunRoutes(router, db, logging)
	setupPipelineRoutes(router, pipelineService, logging)
	setupArtifactRoutes(router, cfg, logging)

	// Setup Cron
	cronScheduler := cron.New()
	cronScheduler.AddFunc(cfg.CronSchedule, func() {
		runScheduledCuration(pipelineService, logging)
	})
	cronScheduler.Start()

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logging.Fatal("Failed to run server", zap.Error(err))
	}
}

func setupCompoundRoutes(router *gin.Engine, db *gorm.DB, log *zap.Logger) {
	rg := router.Group("/compounds")

	// Einfacher GET-Endpunkt für das komplette Register
	rg.GET("/", func(c *gin.Context) {
		var compounds []models.Compound
		if err := db.Find(&compounds).Error; err != nil {
			log.Error("Database query for all compounds failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, compounds)
	})

	// Body-gesteuerter Endpunkt für gefilterte Abfragen
	rg.POST("/query", func(c *gin.Context) {
		type CompoundQuery struct {
			Status    string `json:"status"`
			CASSource string `json:"cas_source"`
			Name      string `json:"name"`
			CAS       string `json:"cas"`
			Limit     int    `json:"limit"`
		}

		var req CompoundQuery
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		query := db.Model(&models.Compound{})

		if req.Status != "" {
			query = query.Where("status = ?", req.Status)
		}
		if req.CASSource != "" {
			query = query.Where("cas_source = ?", req.CASSource)
		}
		if req.Name != "" {
			query = query.Where("LOWER(preferred_name) LIKE ?", "%"+strings.ToLower(req.Name)+"%")
		}
		if req.CAS != "" {
			query = query.Where("cas_number = ?", req.CAS)
		}
		if req.Limit > 0 {
			query = query.Limit(req.Limit)
		}

		var compounds []models.Compound
		if err := query.Order("preferred_name asc").Find(&compounds).Error; err != nil {
			log.Error("Database query for compounds failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}

		c.JSON(http.StatusOK, compounds)
	})

	rg.GET("/:id", func(c *gin.Context) {
		id := c.Param("id")
		var compound models.Compound
		if err := db.First(&compound, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "compound not found"})
				return
			}
			log.Error("DB error fetching compound", zap.String("id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, compound)
	})
}

func setupConflictRoutes(router *gin.Engine, db *gorm.DB, log *zap.Logger) {
	router.GET("/conflicts", func(c *gin.Context) {
		var conflicts []models.FusionConflict
		if err := db.Order("created_at desc").Find(&conflicts).Error; err != nil {
			log.Error("Database query for conflicts failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, conflicts)
	})
}

func setupRunRoutes(router *gin.Engine, db *gorm.DB, log *zap.Logger) {
	router.GET("/runs", func(c *gin.Context) {
		var runs []models.PipelineRun
		if err := db.Order("started_at desc").Limit(50).Find(&runs).Error; err != nil {
			log.Error("Database query for runs failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, runs)
	})
}

// pipelineMu verhindert überlappende Läufe: der Eingabeordner und die
// Ausgabedateien sind nicht für parallele Läufe ausgelegt. Gilt für manuelle
// und geplante Läufe gleichermaßen.
var pipelineMu sync.Mutex

// runScheduledCuration führt den geplanten Lauf aus. Läuft bereits ein
// anderer (manuell oder vom vorherigen Tick), wird dieser Tick übersprungen.
// Rückgabewert false bedeutet übersprungen.
func runScheduledCuration(pipelineService *services.PipelineService, log *zap.Logger) bool {
	if !pipelineMu.TryLock() {
		log.Warn("Skipping scheduled curation job, another run is in progress")
		return false
	}
	defer pipelineMu.Unlock()

	log.Info("Running scheduled curation job...")
	run, err := pipelineService.Run(context.Background())
	if err != nil {
		log.Error("Cron job failed", zap.Error(err))
		return true
	}
	log.Info("Cron job completed",
		zap.Int("compounds", run.Compounds),
		zap.Int("curated", run.OrphansCurated))
	recordRunMetrics(run)
	return true
}

func setupPipelineRoutes(router *gin.Engine, pipelineService *services.PipelineService, log *zap.Logger) {
	router.POST("/pipeline/run", func(c *gin.Context) {
		if !pipelineMu.TryLock() {
			c.JSON(http.StatusConflict, gin.H{"error": "pipeline run already in progress"})
			return
		}

		go func() {
			defer pipelineMu.Unlock()
			run, err := pipelineService.Run(context.Background())
			if err != nil {
				log.Error("Manual pipeline run failed", zap.Error(err))
				return
			}
			recordRunMetrics(run)
		}()

		c.JSON(http.StatusAccepted, gin.H{"status": "pipeline run started"})
	})
}

func setupArtifactRoutes(router *gin.Engine, cfg *config.Config, log *zap.Logger) {
	serveFile := func(name, contentType string) gin.HandlerFunc {
		return func(c *gin.Context) {
			path := filepath.Join(cfg.OutputFolder, name)
			data, err := os.ReadFile(path)
			if err != nil {
				if os.IsNotExist(err) {
					c.JSON(http.StatusNotFound, gin.H{"error": "no pipeline run artifacts yet"})
					return
				}
				log.Error("Artifact read failed", zap.String("file", name), zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "artifact read error"})
				return
			}
			c.Data(http.StatusOK, contentType, data)
		}
	}

	router.GET("/report/latest", serveFile("report.md", "text/markdown; charset=utf-8"))
	router.GET("/transitions", serveFile("master.json", "application/json"))
	router.GET("/transitions/csv", serveFile("master.csv", "text/csv; charset=utf-8"))
}
