package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config enthält alle Konfigurationsparameter aus Umgebungsvariablen.
type Config struct {
	DBHost     string `envconfig:"DB_HOST" required:"true"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" required:"true"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" required:"true"`

	HTTPPort     string `envconfig:"HTTP_PORT" default:"4243"`
	APISecretKey string `envconfig:"API_SECRET_KEY"`

	// Eingabe: Ordner mit den rohen Extraktions-JSONs (ein File pro Quelldokument)
	InputFolder string `envconfig:"INPUT_FOLDER" default:"./data/raw"`
	// Ausgabe: kuratiertes Register, aufgelöste Detections, Master-Tabelle, Report
	OutputFolder string `envconfig:"OUTPUT_FOLDER" default:"./data/out"`

	// PubChem PUG REST (strukturierte Anreicherungsquelle)
	PubChemBaseURL    string        `envconfig:"PUBCHEM_BASE_URL" default:"https://pubchem.ncbi.nlm.nih.gov/rest/pug"`
	PubChemMaxRetries int           `envconfig:"PUBCHEM_MAX_RETRIES" default:"3"`
	PubChemRetryDelay time.Duration `envconfig:"PUBCHEM_RETRY_DELAY" default:"2s"`
	// Mindestabstand zwischen zwei API-Aufrufen (PubChem erlaubt max. 5 Requests/s)
	PubChemCallDelay time.Duration `envconfig:"PUBCHEM_CALL_DELAY" default:"300ms"`
	PubChemTimeout   time.Duration `envconfig:"PUBCHEM_TIMEOUT" default:"15s"`

	// Sekundäre Anreicherungsquelle: vorab berechnete Kandidaten-Tabelle (CSV)
	LLMCandidatesCSV string `envconfig:"LLM_CANDIDATES_CSV" default:"./data/orphan_candidates_llm.csv"`

	CronSchedule string `envconfig:"CRON_SCHEDULE" default:"0 3 * * 0"`

	StratoS3Key    string `envconfig:"STRATO_S3_KEY" required:"true"`
	StratoS3Secret string `envconfig:"STRATO_S3_SECRET" required:"true"`
	StratoS3URL    string `envconfig:"STRATO_S3_URL" required:"true"`
	StratoS3Region string `envconfig:"STRATO_S3_REGION" required:"true"`
	StratoS3Bucket string `envconfig:"STRATO_S3_BUCKET" required:"true"`

	// Provider-Konfiguration
	EnabledProviders string `envconfig:"ENABLED_PROVIDERS" default:"pubchem"`
}

// DSN gibt den Data Source Name für die PostgreSQL-Verbindung zurück.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

// Load lädt die Konfiguration aus den Umgebungsvariablen.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	err := envconfig.Process("", &c)
	return &c, err
}
