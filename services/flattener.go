package services

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"compound-hand/models"
)

// PromotionRule bindet eine kanonische Master-Spalte an die beobachteten
// Schreibweisen des Parameternamens. Der Abgleich ist case-insensitiv und exakt
// (keine Teilstring-Treffer).
type PromotionRule struct {
	Column   string
	Synonyms []string
}

// PromotionRules ist die feste Synonym-Tabelle der Parameter-Beförderung.
var PromotionRules = []PromotionRule{
	{"RT_min", []string{"rt", "retention time", "relative_retention_time", "r.t."}},
	{"LOQ", []string{"loq", "limit of quantification", "lod", "detection_sensitivity", "concentration"}},
	{"Matrix_Tag", []string{"context", "matrix", "solvent", "group", "source"}},
	{"DP_V", []string{"dp", "declustering potential", "cone voltage"}},
	{"EP_V", []string{"ep", "entrance potential"}},
	{"CXP_V", []string{"cxp", "collision cell exit potential"}},
	{"FV_V", []string{"fv", "fragmentor voltage", "in-source fragmentation voltage", "source fragmentation voltage"}},
}

// KeywordRule ist eine geordnete Containment-Regel für Vokabular-Normalisierung.
type KeywordRule struct {
	Keyword string
	Value   string
}

// Die Eingabedokumente sind teils chinesisch, daher tauchen 定量/定性 und 正/负
// als Vokabeln auf.
var (
	polarityRules = []KeywordRule{
		{"positive", "Pos"}, {"pos", "Pos"}, {"esi+", "Pos"}, {"+", "Pos"}, {"正", "Pos"},
		{"negative", "Neg"}, {"neg", "Neg"}, {"esi-", "Neg"}, {"-", "Neg"}, {"负", "Neg"},
	}
	typeRules = []KeywordRule{
		{"quantification", "Quant"}, {"quant", "Quant"}, {"定量", "Quant"},
		{"confirmation", "Qual"}, {"qual", "Qual"}, {"定性", "Qual"},
	}
)

// Flatten explodiert jeden Datensatz in eine Zeile pro Ionenpaar. Die pro
// Datensatz beförderten Parameter wiederholen sich in allen Zeilen des
// Datensatzes; Datensätze ohne Transitionen liefern stillschweigend null Zeilen.
// Zeilen-Gesetz: Σ len(mass_spec_params) == Anzahl der Ausgabezeilen.
func Flatten(records []models.Detection, logger *zap.Logger) []models.TransitionRow {
	var rows []models.TransitionRow

	for i := range records {
		rec := &records[i]

		promoted := make(map[string]any)
		var other map[string]string

		for _, p := range rec.PerformanceParameters {
			name := strings.ToLower(strings.TrimSpace(p.ParameterName))
			column := promotionColumn(name)
			if column != "" {
				// Pro Datensatz gewinnt der erste Treffer einer Spalte;
				// spätere Synonyme derselben Spalte werden ignoriert.
				if _, exists := promoted[column]; !exists {
					promoted[column] = p.Value
				}
				continue
			}

			// Nicht beförderte Parameter verlustfrei erhalten.
			if other == nil {
				other = make(map[string]string)
			}
			other[p.ParameterName] = formatParamValue(p.Value, p.Unit)
		}

		var matrixCanonical []string
		if mt, ok := promoted["Matrix_Tag"].(string); ok {
			matrixCanonical = CanonicalMatrixTags(mt)
		}

		for _, ms := range rec.MassSpecParams {
			ceValue, ceUnit := ms.CollisionEnergy.ColumnValues()

			row := models.TransitionRow{
				MethodID:   rec.MethodID,
				RunID:      rec.RunConfigID,
				Compound:   rec.CompoundEnglishName,
				CAS:        rec.CASNumber,
				SourceFile: rec.SourceFile,

				PrecursorMZ: ms.PrecursorMZ,
				ProductMZ:   ms.ProductMZ,
				Polarity:    resolvePolarity(deref(ms.Polarity)),
				Type:        resolveType(coalesce(ms.ParameterType, ms.SourceIonLabel)),
				CEValue:     ceValue,
				CEUnit:      ceUnit,

				RTMin:     promoted["RT_min"],
				LOQ:       promoted["LOQ"],
				MatrixTag: promoted["Matrix_Tag"],
				DPV:       promoted["DP_V"],
				EPV:       promoted["EP_V"],
				CXPV:      promoted["CXP_V"],
				FVV:       promoted["FV_V"],

				MatrixCanonical: matrixCanonical,
				OtherParams:     other,
			}
			rows = append(rows, row)
		}
	}

	logger.Info("Master-Tabelle erzeugt",
		zap.Int("input_records", len(records)),
		zap.Int("output_rows", len(rows)))
	return rows
}

// promotionColumn gibt die Zielspalte eines Parameternamens zurück ("" wenn
// der Name nicht in der Synonym-Tabelle steht).
func promotionColumn(lowerName string) string {
	for _, rule := range PromotionRules {
		for _, syn := range rule.Synonyms {
			if lowerName == syn {
				return rule.Column
			}
		}
	}
	return ""
}

// resolvePolarity normalisiert Polaritätstext auf Pos/Neg; unbekannter oder
// fehlender Text bleibt unaufgelöst (nil).
func resolvePolarity(raw string) *string {
	lower := strings.ToLower(strings.TrimSpace(raw))
	if lower == "" {
		return nil
	}
	for _, rule := range polarityRules {
		if strings.Contains(lower, rule.Keyword) {
			v := rule.Value
			return &v
		}
	}
	return nil
}

// resolveType normalisiert den Transitionstyp auf Quant/Qual, Default Quant.
func resolveType(raw string) string {
	lower := strings.ToLower(strings.TrimSpace(raw))
	for _, rule := range typeRules {
		if strings.Contains(lower, rule.Keyword) {
			return rule.Value
		}
	}
	return "Quant"
}

// formatParamValue verbindet Wert und Einheit für die Residual-Map.
func formatParamValue(val any, unit *string) string {
	s := ""
	if val != nil {
		s = fmt.Sprint(val)
	}
	if unit != nil && *unit != "" {
		return strings.TrimSpace(s + " " + *unit)
	}
	return s
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// coalesce gibt den ersten nicht-leeren Wert zurück (parameter_type hat
// Vorrang vor source_ion_label).
func coalesce(ptrs ...*string) string {
	for _, p := range ptrs {
		if p != nil && strings.TrimSpace(*p) != "" {
			return *p
		}
	}
	return ""
}

// masterColumns ist die Spaltenreihenfolge der CSV-Ausgabe; Kernspalten zuerst.
var masterColumns = []string{
	"Method_ID", "Run_ID", "Compound", "CAS",
	"Precursor_mz", "Product_mz", "Polarity", "Type", "CE_Value", "CE_Unit",
	"RT_min", "LOQ", "Matrix_Tag", "Matrix_Canonical",
	"DP_V", "EP_V", "CXP_V", "FV_V",
	"Source_File", "Other_Params",
}

// WriteMasterCSV schreibt die Master-Tabelle in tabellarischer Form.
func WriteMasterCSV(rows []models.TransitionRow, w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(masterColumns); err != nil {
		return err
	}

	for _, row := range rows {
		otherJSON := ""
		if len(row.OtherParams) > 0 {
			b, err := json.Marshal(row.OtherParams)
			if err != nil {
				return err
			}
			otherJSON = string(b)
		}

		record := []string{
			cell(strPtrVal(row.MethodID)),
			cell(strPtrVal(row.RunID)),
			cell(strPtrVal(row.Compound)),
			cell(strPtrVal(row.CAS)),
			cell(row.PrecursorMZ),
			cell(row.ProductMZ),
			cell(strPtrVal(row.Polarity)),
			row.Type,
			cell(row.CEValue),
			row.CEUnit,
			cell(row.RTMin),
			cell(row.LOQ),
			cell(row.MatrixTag),
			strings.Join(row.MatrixCanonical, ";"),
			cell(row.DPV),
			cell(row.EPV),
			cell(row.CXPV),
			cell(row.FVV),
			row.SourceFile,
			otherJSON,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// cell formatiert einen beliebigen Zellwert; nil wird zur leeren Zelle.
func cell(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case *float64:
		if t == nil {
			return ""
		}
		return fmt.Sprint(*t)
	default:
		return fmt.Sprint(v)
	}
}

func strPtrVal(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}
