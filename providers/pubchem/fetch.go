package pubchem

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"sync"
	"time"

	"go.uber.org/zap"

	"compound-hand/config"
	"compound-hand/models"
)

// casRegex erkennt CAS-Nummern unter den PubChem-Synonymen: 2-7 Ziffern,
// 2 Ziffern, Prüfziffer.
var casRegex = regexp.MustCompile(`^\d{2,7}-\d{2}-\d$`)

// Fetcher implementiert das Provider-Interface für die PubChem PUG REST API.
// Die Auflösung läuft zweistufig: Name → CID + IUPAC-Name, dann CID →
// Synonymliste, aus der die erste CAS-förmige Zeichenkette gewählt wird.
type Fetcher struct {
	Config *config.Config
	Logger *zap.Logger

	client *http.Client

	mu       sync.Mutex
	lastCall time.Time
}

// NewFetcher erstellt einen neuen PubChem Fetcher.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{
		Config: cfg,
		Logger: logger,
		client: &http.Client{Timeout: cfg.PubChemTimeout},
	}
}

// Name gibt den Namen des Providers zurück.
func (f *Fetcher) Name() string {
	return "pubchem"
}

// Lookup löst einen Verbindungsnamen über PubChem auf. Negative Ergebnisse
// (Name unbekannt, keine CAS unter den Synonymen) sind reguläre Kandidaten mit
// entsprechendem Status; nur Transport-Versagen nach allen Versuchen ist ein
// Fehler.
func (f *Fetcher) Lookup(ctx context.Context, name string) (*models.EnrichmentCandidate, error) {
	log := f.Logger.With(zap.String("compound", name))
	candidate := &models.EnrichmentCandidate{OriginalName: name}

	// Schritt 1: Name → CID + IUPAC-Name.
	propURL := fmt.Sprintf("%s/compound/name/%s/property/IUPACName/JSON",
		f.Config.PubChemBaseURL, url.PathEscape(name))

	var props PropertyResponse
	status, err := f.getJSON(ctx, propURL, &props)
	if err != nil {
		candidate.Status = models.LookupError
		candidate.Notes = err.Error()
		return candidate, err
	}
	if status == http.StatusNotFound {
		log.Debug("Verbindung bei PubChem unbekannt")
		candidate.Status = models.LookupNotFound
		return candidate, nil
	}
	if status < 200 || status >= 300 {
		candidate.Status = models.LookupError
		candidate.Notes = fmt.Sprintf("pubchem property lookup: http %d", status)
		return candidate, nil
	}
	if len(props.PropertyTable.Properties) == 0 {
		candidate.Status = models.LookupNotFound
		return candidate, nil
	}

	prop := props.PropertyTable.Properties[0]
	candidate.CID = prop.CID
	candidate.IUPACName = prop.IUPACName

	// Schritt 2: CID → Synonymliste, erste CAS-förmige Zeichenkette gewinnt.
	synURL := fmt.Sprintf("%s/compound/cid/%d/synonyms/JSON", f.Config.PubChemBaseURL, prop.CID)

	var syns SynonymResponse
	status, err = f.getJSON(ctx, synURL, &syns)
	if err != nil {
		candidate.Status = models.LookupError
		candidate.Notes = err.Error()
		return candidate, err
	}
	if status < 200 || status >= 300 {
		candidate.Status = models.LookupCASNotFound
		candidate.Notes = fmt.Sprintf("pubchem synonym lookup: http %d", status)
		return candidate, nil
	}

	for _, info := range syns.InformationList.Information {
		for _, syn := range info.Synonym {
			if casRegex.MatchString(syn) {
				candidate.Status = models.LookupSuccess
				candidate.CASNumber = syn
				log.Info("CAS-Nummer über PubChem aufgelöst",
					zap.String("cas", syn), zap.Int64("cid", prop.CID))
				return candidate, nil
			}
		}
	}

	log.Debug("CID gefunden, aber keine CAS unter den Synonymen", zap.Int64("cid", prop.CID))
	candidate.Status = models.LookupCASNotFound
	return candidate, nil
}

// getJSON führt einen GET-Aufruf mit Pacing und Transport-Retries aus.
// HTTP-Fehlerstatus wird nicht wiederholt, sondern an den Aufrufer gemeldet.
func (f *Fetcher) getJSON(ctx context.Context, rawURL string, out any) (int, error) {
	var lastErr error

	for attempt := 1; attempt <= f.Config.PubChemMaxRetries; attempt++ {
		if err := f.pace(ctx); err != nil {
			return 0, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return 0, err
		}

		resp, err := f.client.Do(req)
		if err != nil {
			lastErr = err
			if err := f.waitRetry(ctx, attempt, err); err != nil {
				return 0, err
			}
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			// Abgebrochene Antwortkörper sind Transport-Fehler und warten
			// genauso vor dem nächsten Versuch.
			lastErr = readErr
			if err := f.waitRetry(ctx, attempt, readErr); err != nil {
				return 0, err
			}
			continue
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			if err := json.Unmarshal(body, out); err != nil {
				return resp.StatusCode, fmt.Errorf("pubchem-antwort nicht dekodierbar: %w", err)
			}
		}
		return resp.StatusCode, nil
	}

	return 0, fmt.Errorf("pubchem nach %d versuchen nicht erreichbar: %w",
		f.Config.PubChemMaxRetries, lastErr)
}

// waitRetry loggt einen Transport-Fehlversuch und wartet die Retry-Pause ab.
func (f *Fetcher) waitRetry(ctx context.Context, attempt int, cause error) error {
	f.Logger.Warn("PubChem-Aufruf fehlgeschlagen, versuche erneut",
		zap.Int("attempt", attempt), zap.Error(cause))
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(f.Config.PubChemRetryDelay):
		return nil
	}
}

// pace erzwingt den Mindestabstand zwischen zwei API-Aufrufen.
func (f *Fetcher) pace(ctx context.Context) error {
	f.mu.Lock()
	wait := f.Config.PubChemCallDelay - time.Since(f.lastCall)
	f.lastCall = time.Now().Add(wait)
	f.mu.Unlock()

	if wait <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(wait):
		return nil
	}
}
