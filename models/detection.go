package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Detection repräsentiert einen extrahierten Nachweis-Datensatz (eine Verbindung
// in einer Methode/Messung). Die Feldnamen sind bit-genau die des
// Extraktions-Schemas und dürfen nicht umbenannt werden.
type Detection struct {
	MethodID              *string                `json:"method_id"`
	RunConfigID           *string                `json:"run_config_id"`
	CASNumber             *string                `json:"CAS_number"`
	CompoundEnglishName   *string                `json:"compound_english_name"`
	MassSpecParams        []MassSpecParam        `json:"mass_spec_params"`
	PerformanceParameters []PerformanceParameter `json:"performance_parameters"`
	SourceFile            string                 `json:"_source_file,omitempty"`
}

// MassSpecParam repräsentiert eine einzelne Transition (Ionenpaar).
type MassSpecParam struct {
	PrecursorMZ     *float64        `json:"precursor_mz"`
	ProductMZ       *float64        `json:"product_mz"`
	Polarity        *string         `json:"polarity"`
	ParameterType   *string         `json:"parameter_type"`
	SourceIonLabel  *string         `json:"source_ion_label,omitempty"`
	CollisionEnergy CollisionEnergy `json:"collision_energy"`
}

// PerformanceParameter ist ein lose benannter Leistungsparameter (RT, LOQ, ...).
type PerformanceParameter struct {
	ParameterName string  `json:"parameter_name"`
	Value         any     `json:"value"`
	Unit          *string `json:"unit"`
}

// CAS gibt die CAS-Nummer als bereinigten String zurück ("" wenn abwesend).
func (d *Detection) CAS() string {
	return textValue(d.CASNumber)
}

// Name gibt den englischen Verbindungsnamen zurück ("" wenn abwesend).
func (d *Detection) Name() string {
	return textValue(d.CompoundEnglishName)
}

// textValue behandelt textuelle Null-Token defensiv, falls ein Datensatz den
// Normalizer umgangen hat.
func textValue(p *string) string {
	if p == nil {
		return ""
	}
	s := strings.TrimSpace(*p)
	switch strings.ToLower(s) {
	case "", "none", "null":
		return ""
	}
	return s
}

// CEKind unterscheidet die drei beobachteten Formen der Kollisionsenergie.
type CEKind int

const (
	// CEAbsent: Feld fehlt oder ist null.
	CEAbsent CEKind = iota
	// CENumeric: numerischer Wert mit Spannungs-Einheit.
	CENumeric
	// CELevel: qualitative Stufe ("l"/"m"/"h").
	CELevel
	// CEText: nicht interpretierbarer Rohwert, unverändert erhalten.
	CEText
)

// CollisionEnergy ist die getaggte Variante für das
// Objekt-oder-Skalar-oder-Null-Feld `collision_energy`.
type CollisionEnergy struct {
	Kind  CEKind
	Value float64
	Unit  string
	Level string
	Text  string
}

// ceWire ist die Objekt-Form auf dem Draht: {"value": ..., "unit": ...}.
type ceWire struct {
	Value any `json:"value"`
	Unit  any `json:"unit"`
}

// UnmarshalJSON akzeptiert Objekt, nackten Skalar oder null.
func (ce *CollisionEnergy) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		*ce = CollisionEnergy{Kind: CEAbsent}
		return nil
	}

	if strings.HasPrefix(trimmed, "{") {
		var w ceWire
		if err := json.Unmarshal(data, &w); err != nil {
			return err
		}
		unit := ""
		if w.Unit != nil {
			unit = strings.TrimSpace(fmt.Sprint(w.Unit))
		}
		*ce = classifyCE(w.Value, unit)
		return nil
	}

	var scalar any
	if err := json.Unmarshal(data, &scalar); err != nil {
		return err
	}
	*ce = classifyCE(scalar, "")
	return nil
}

// MarshalJSON schreibt immer die kanonische Objekt-Form (bzw. null).
func (ce CollisionEnergy) MarshalJSON() ([]byte, error) {
	switch ce.Kind {
	case CENumeric:
		return json.Marshal(ceWire{Value: ce.Value, Unit: ce.Unit})
	case CELevel:
		return json.Marshal(ceWire{Value: ce.Level, Unit: "Category"})
	case CEText:
		var unit any
		if ce.Unit != "" {
			unit = ce.Unit
		}
		return json.Marshal(ceWire{Value: ce.Text, Unit: unit})
	default:
		return []byte("null"), nil
	}
}

// ColumnValues gibt das (CE_Value, CE_Unit)-Paar für die Master-Tabelle zurück.
func (ce CollisionEnergy) ColumnValues() (any, string) {
	switch ce.Kind {
	case CENumeric:
		return ce.Value, ce.Unit
	case CELevel:
		return ce.Level, "Category"
	case CEText:
		return ce.Text, ce.Unit
	default:
		return nil, ""
	}
}

// classifyCE ordnet einen Rohwert der getaggten Variante zu. Qualitative Stufen
// (l/m/h) bleiben Kategorien; erkennbare Spannungs-Token werden auf "V"
// normalisiert; alles andere bleibt als opaker Text erhalten.
func classifyCE(val any, unit string) CollisionEnergy {
	if val == nil {
		return CollisionEnergy{Kind: CEAbsent}
	}

	s := strings.TrimSpace(fmt.Sprint(val))
	if s == "" {
		return CollisionEnergy{Kind: CEAbsent}
	}

	lower := strings.ToLower(s)
	switch lower {
	case "l", "m", "h":
		return CollisionEnergy{Kind: CELevel, Level: lower}
	}

	// "25", "25 eV", "25V" → 25.0 mit Einheit "V"
	numericPart := strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(lower, "ev", ""), "v", ""))
	if f, err := strconv.ParseFloat(numericPart, 64); err == nil {
		resolvedUnit := unit
		if unit == "" || strings.Contains(strings.ToLower(unit), "v") {
			resolvedUnit = "V"
		}
		return CollisionEnergy{Kind: CENumeric, Value: f, Unit: resolvedUnit}
	}

	return CollisionEnergy{Kind: CEText, Text: s, Unit: unit}
}
