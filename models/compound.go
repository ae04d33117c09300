package models

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

// Status-Werte für Verbindungen im Register.
const (
	StatusVerified = "Verified" // CAS aus den Dokumenten selbst belegt
	StatusOrphan   = "Orphan"   // nur ein Name beobachtet, keine CAS
	StatusCurated  = "Curated"  // CAS nachträglich über externe Quellen aufgelöst
)

// Quellen-Tags für die CAS-Herkunft.
const (
	SourceDocument   = "Document"
	SourceAPIPubChem = "API_PubChem"
	SourceNone       = "None"
)

// Provenance hält die CAS-Vorschläge aller Quellen, unabhängig davon, welcher
// gewonnen hat. Wird nie von der Waterfall-Entscheidung überschrieben.
type Provenance struct {
	CASFromDoc *string `json:"cas_from_doc" gorm:"column:cas_from_doc"`
	CASFromAPI *string `json:"cas_from_api" gorm:"column:cas_from_api"`
	CASFromLLM *string `json:"cas_from_llm" gorm:"column:cas_from_llm"`
}

// ChemicalProperties sind optionale Stoffeigenschaften der Gewinner-Quelle.
type ChemicalProperties struct {
	MolecularFormula *string  `json:"molecular_formula"`
	MolecularWeight  *float64 `json:"molecular_weight"`
	SMILES           *string  `json:"smiles" gorm:"column:smiles"`
	PubChemCID       *int64   `json:"pubchem_cid"`
	SuggestedIUPAC   *string  `json:"suggested_iupac,omitempty"`
}

// Compound ist die kanonische Entität für einen Stoff im kuratierten Register.
// Invariante: Status Verified/Curated genau dann, wenn cas_number gesetzt ist.
type Compound struct {
	ID        uint      `json:"-" gorm:"primaryKey"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`

	CASNumber     *string                     `json:"cas_number" gorm:"column:cas_number;index"`
	PreferredName string                      `json:"preferred_name" gorm:"index;not null"`
	Synonyms      datatypes.JSONSlice[string] `json:"synonyms"`
	Status        string                      `json:"status" gorm:"index"`
	CASSource     string                      `json:"cas_source,omitempty" gorm:"column:cas_source"`

	Provenance         Provenance         `json:"provenance" gorm:"embedded;embeddedPrefix:prov_"`
	ChemicalProperties ChemicalProperties `json:"chemical_properties" gorm:"embedded;embeddedPrefix:chem_"`

	// Eindeutiger Identitätsschlüssel: CAS falls vorhanden, sonst Name (lowercase).
	Key string `json:"-" gorm:"uniqueIndex;size:512"`
}

// TableName gibt explizit den Tabellennamen an.
func (Compound) TableName() string {
	return "compounds"
}

// CAS gibt die CAS-Nummer zurück ("" wenn keine vorhanden).
func (c *Compound) CAS() string {
	return textValue(c.CASNumber)
}

// IdentityKey berechnet den Identitätsschlüssel aus dem aktuellen Zustand.
func (c *Compound) IdentityKey() string {
	if cas := c.CAS(); cas != "" {
		return cas
	}
	return strings.ToLower(strings.TrimSpace(c.PreferredName))
}

// CheckStatusInvariant prüft Status ∈ {Verified, Curated} ⟺ CAS vorhanden.
func (c *Compound) CheckStatusInvariant() bool {
	hasCAS := c.CAS() != ""
	switch c.Status {
	case StatusVerified, StatusCurated:
		return hasCAS
	default:
		return !hasCAS
	}
}

// StrPtr gibt einen Pointer auf einen String zurück (nil für "").
func StrPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
