package services

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// CleanStats ist der explizite Audit-Akkumulator der Normalisierung. Er wird
// durch alle rekursiven Aufrufe gereicht statt als globaler Zustand geführt und
// landet am Ende im Cleaning-Report.
type CleanStats struct {
	TotalFiles         int `json:"total_files"`
	TotalInputRecords  int `json:"total_input_records"`
	TotalOutputRecords int `json:"total_output_records"`

	UnicodeFixes    int `json:"unicode_fixes"`
	HyphenFixes     int `json:"hyphen_fixes"`
	InvisibleFixes  int `json:"invisible_char_fixes"`
	WhitespaceFixes int `json:"whitespace_fixes"`
	NullsConverted  int `json:"nulls_converted"`

	StructureFixes []string        `json:"structure_fixes,omitempty"`
	Dropped        []DroppedRecord `json:"dropped_records,omitempty"`
	FileErrors     []FileError     `json:"file_errors,omitempty"`
}

// DroppedRecord dokumentiert einen verworfenen Datensatz für das Audit-Log.
type DroppedRecord struct {
	File    string `json:"file"`
	Index   int    `json:"index"`
	Reason  string `json:"reason"`
	Snippet string `json:"snippet"`
}

// FileError dokumentiert eine nicht lesbare/dekodierbare Eingabedatei.
// Der Batch läuft über solche Dateien hinweg weiter.
type FileError struct {
	File  string `json:"file"`
	Error string `json:"error"`
}

var (
	// Wort- \n Wort → WortWort. Bewusst eng gefasst: legitime Bindestriche
	// ohne angrenzenden Zeilenumbruch (LC-MS, 3-Acetyl-DON) bleiben stehen.
	dehyphenRegex = regexp.MustCompile(`(\w)-\s*[\n\r]+\s*(\w)`)

	// Nicht-Standard-Leerzeichen: NBSP wird zu Space, Zero-Width verschwindet.
	invisibleReplacer = strings.NewReplacer(" ", " ", "​", "")
)

// RecordNormalizer bereinigt rohe Extraktions-Datensätze strukturell und
// lexikalisch. Kernlogik von Stufe 1 der Pipeline.
type RecordNormalizer struct {
	logger *zap.Logger
}

// NewRecordNormalizer erstellt eine neue Instanz des Normalizers.
func NewRecordNormalizer(logger *zap.Logger) *RecordNormalizer {
	return &RecordNormalizer{logger: logger}
}

// NormalizeTree normalisiert rekursiv jedes String-Blatt eines beliebig
// verschachtelten Baums aus Maps, Listen und Skalaren. Die Baumform bleibt
// erhalten; textuelle Null-Token werden zu echter Abwesenheit (nil).
// Fixpunkt-Eigenschaft: ein bereits normalisierter Baum bleibt unverändert.
func (rn *RecordNormalizer) NormalizeTree(v any, stats *CleanStats) any {
	switch t := v.(type) {
	case string:
		return rn.normalizeString(t, stats)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = rn.NormalizeTree(item, stats)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = rn.NormalizeTree(val, stats)
		}
		return out
	default:
		// Zahlen, Bools, json.Number, nil: unverändert durchreichen.
		return v
	}
}

// normalizeString führt die fünfstufige String-Bereinigung durch und zählt
// jede Fix-Kategorie einzeln.
func (rn *RecordNormalizer) normalizeString(s string, stats *CleanStats) any {
	current := s

	// 1. Unicode-Kompatibilitätsnormalisierung (NFKC): Vollbreite- und
	//    Kompatibilitätszeichen auf Standardform falten (Ａ → A).
	t := transform.Chain(norm.NFKC)
	folded, _, _ := transform.String(t, current)
	if folded != current {
		stats.UnicodeFixes++
	}
	current = folded

	// 2. Zeilenumbruch-Trennstriche zusammenziehen (Meth- \n ode → Methode).
	dehyphened := dehyphenRegex.ReplaceAllString(current, "$1$2")
	if dehyphened != current {
		stats.HyphenFixes++
	}
	current = dehyphened

	// 3. Unsichtbare Zeichen und Nicht-Standard-Leerzeichen bereinigen.
	cleaned := invisibleReplacer.Replace(current)
	if cleaned != current {
		stats.InvisibleFixes++
	}
	current = cleaned

	// 4. Alle Whitespace-Läufe auf ein Leerzeichen kollabieren, Ränder trimmen.
	collapsed := strings.Join(strings.Fields(current), " ")
	if collapsed != current {
		stats.WhitespaceFixes++
	}
	current = collapsed

	// 5. Textuelle Nulls werden zu echter Abwesenheit.
	switch strings.ToLower(current) {
	case "", "none", "null":
		stats.NullsConverted++
		return nil
	}

	return current
}

// LoadFolder liest alle JSON-Dateien eines Ordners, repariert strukturelle
// Abweichungen (Liste vs. Objekt vs. {"detections": [...]}), verwirft
// Datensätze ohne Transitionsdaten (mit Audit-Eintrag) und normalisiert die
// Überlebenden. Jeder Datensatz wird mit seiner Quelldatei annotiert.
func (rn *RecordNormalizer) LoadFolder(dir string) ([]map[string]any, *CleanStats, error) {
	stats := &CleanStats{}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, stats, fmt.Errorf("eingabeordner %s nicht lesbar: %w", dir, err)
	}

	var records []map[string]any

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(strings.ToLower(entry.Name()), ".json") {
			continue
		}
		filename := entry.Name()
		stats.TotalFiles++

		batch, err := rn.loadFile(filepath.Join(dir, filename), filename, stats)
		if err != nil {
			// Datei-Fehler sind nicht fatal: loggen und mit der nächsten weitermachen.
			rn.logger.Warn("Eingabedatei übersprungen",
				zap.String("file", filename), zap.Error(err))
			stats.FileErrors = append(stats.FileErrors, FileError{File: filename, Error: err.Error()})
			continue
		}

		stats.TotalInputRecords += len(batch)

		for idx, rec := range batch {
			if !hasTransitions(rec) {
				name := "Unknown"
				if n, ok := rec["compound_english_name"].(string); ok && n != "" {
					name = n
				}
				stats.Dropped = append(stats.Dropped, DroppedRecord{
					File:    filename,
					Index:   idx,
					Reason:  "Empty/Missing MS Params",
					Snippet: snippet(fmt.Sprintf("Compound: %s", name)),
				})
				continue
			}

			cleaned, ok := rn.NormalizeTree(rec, stats).(map[string]any)
			if !ok {
				continue
			}
			cleaned["_source_file"] = filename
			records = append(records, cleaned)
		}
	}

	stats.TotalOutputRecords = len(records)
	rn.logger.Info("Normalisierung abgeschlossen",
		zap.Int("files", stats.TotalFiles),
		zap.Int("input_records", stats.TotalInputRecords),
		zap.Int("output_records", stats.TotalOutputRecords),
		zap.Int("dropped", len(stats.Dropped)))

	return records, stats, nil
}

// loadFile dekodiert eine Datei und normalisiert ihre Struktur zu einer Liste
// von Datensätzen.
func (rn *RecordNormalizer) loadFile(path, filename string, stats *CleanStats) ([]map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// UseNumber, damit Zahlen beim Re-Serialisieren nicht umformatiert werden.
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("json nicht dekodierbar: %w", err)
	}

	var batch []any
	switch t := raw.(type) {
	case []any:
		batch = t
	case map[string]any:
		if det, ok := t["detections"].([]any); ok {
			stats.StructureFixes = append(stats.StructureFixes,
				fmt.Sprintf("File %s unwrapped from `detections` envelope.", filename))
			batch = det
		} else {
			stats.StructureFixes = append(stats.StructureFixes,
				fmt.Sprintf("File %s converted from `Dict` to `List`.", filename))
			batch = []any{t}
		}
	default:
		return nil, fmt.Errorf("unerwartete top-level-struktur %T", raw)
	}

	out := make([]map[string]any, 0, len(batch))
	for _, item := range batch {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out, nil
}

// hasTransitions prüft, ob ein Datensatz mindestens ein Ionenpaar trägt.
func hasTransitions(rec map[string]any) bool {
	ms, ok := rec["mass_spec_params"]
	if !ok || ms == nil {
		return false
	}
	if list, ok := ms.([]any); ok {
		return len(list) > 0
	}
	return true
}

// snippet kürzt Audit-Inhalte auf die ersten 100 Zeichen.
func snippet(s string) string {
	runes := []rune(s)
	if len(runes) > 100 {
		runes = runes[:100]
	}
	return string(runes) + "..."
}
