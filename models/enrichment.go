package models

// Status-Werte einer strukturierten Anreicherungs-Abfrage.
const (
	LookupSuccess     = "Success"
	LookupNotFound    = "NotFound"
	LookupCASNotFound = "CASNotFound"
	LookupError       = "Error"
)

// EnrichmentCandidate ist der Vorschlag einer externen Quelle zur Auflösung
// eines Orphans. Kurzlebig: wird genau einmal während der Fusion konsumiert.
type EnrichmentCandidate struct {
	OriginalName string `json:"original_name"`
	Status       string `json:"status"`
	CASNumber    string `json:"cas_number,omitempty"`
	IUPACName    string `json:"iupac_name,omitempty"`
	CID          int64  `json:"cid,omitempty"`
	Notes        string `json:"notes,omitempty"`
}

// SecondaryCandidate ist eine Zeile der vorab berechneten Kandidaten-Tabelle
// der sekundären Quelle (statisches CSV, keine Live-Aufrufe).
type SecondaryCandidate struct {
	OriginalName     string
	SuggestedCAS     string
	Confidence       string
	MolecularFormula string
	MolecularWeight  *float64
	SMILES           string
}
