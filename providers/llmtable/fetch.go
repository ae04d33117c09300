package llmtable

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"compound-hand/models"
)

// Table ist die vorab berechnete Kandidaten-Tabelle der sekundären Quelle.
// Sie wird einmal beim Laden vollständig eingelesen; während des Laufs finden
// keine externen Aufrufe statt. Schlüssel ist der kleingeschriebene
// Originalname.
type Table struct {
	Logger *zap.Logger

	byName map[string]*models.SecondaryCandidate
}

// Name gibt den Namen der Quelle zurück.
func (t *Table) Name() string {
	return "llmtable"
}

// Load liest die Kandidaten-Tabelle aus einer CSV-Datei. Eine fehlende Datei
// ist kein Fehler: die sekundäre Quelle ist optional.
func Load(path string, logger *zap.Logger) (*Table, error) {
	t := &Table{Logger: logger, byName: make(map[string]*models.SecondaryCandidate)}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Info("Keine Kandidaten-Tabelle vorhanden, sekundäre Quelle inaktiv",
				zap.String("path", path))
			return t, nil
		}
		return nil, err
	}
	defer f.Close()

	if err := t.parse(f); err != nil {
		return nil, fmt.Errorf("kandidaten-tabelle %s: %w", path, err)
	}

	logger.Info("Kandidaten-Tabelle geladen",
		zap.String("path", path), zap.Int("candidates", len(t.byName)))
	return t, nil
}

// parse dekodiert die CSV-Spalten anhand der Kopfzeile, sodass die
// Spaltenreihenfolge keine Rolle spielt.
func (t *Table) parse(r io.Reader) error {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return err
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	if _, ok := col["original_name"]; !ok {
		return fmt.Errorf("spalte original_name fehlt")
	}

	field := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		name := field(row, "original_name")
		if name == "" {
			continue
		}

		cand := &models.SecondaryCandidate{
			OriginalName:     name,
			SuggestedCAS:     field(row, "suggested_cas"),
			Confidence:       field(row, "confidence"),
			MolecularFormula: field(row, "molecular_formula"),
			SMILES:           field(row, "smiles"),
		}
		if mw := field(row, "molecular_weight"); mw != "" {
			if v, err := strconv.ParseFloat(mw, 64); err == nil {
				cand.MolecularWeight = &v
			}
		}

		t.byName[strings.ToLower(name)] = cand
	}
	return nil
}

// Get gibt den Kandidaten für einen Verbindungsnamen zurück (nil wenn keiner
// vorliegt). Der Abgleich ist case-insensitiv.
func (t *Table) Get(name string) *models.SecondaryCandidate {
	return t.byName[strings.ToLower(strings.TrimSpace(name))]
}

// All gibt alle Kandidaten als Map (Kleinschreibung → Kandidat) zurück.
func (t *Table) All() map[string]*models.SecondaryCandidate {
	return t.byName
}
