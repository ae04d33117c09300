package services

import (
	"strings"

	"go.uber.org/zap"

	"compound-hand/models"
)

// FusionResult bündelt das Ergebnis der Anreicherungs-Fusion.
type FusionResult struct {
	Curated    int
	Unresolved int
	Conflicts  []models.FusionConflict
}

// FuseCompounds löst Orphans über die priorisierte Kandidaten-Kaskade auf:
//  1. Strukturierte Quelle (PubChem) mit brauchbarer CAS gewinnt immer.
//  2. Sonst sekundäre Quelle; deren Confidence bleibt im Quellen-Tag erhalten.
//  3. Sonst bleibt der Orphan unaufgelöst (cas_source "None").
//
// Widersprechen sich beide Quellen, wird ein FusionConflict protokolliert —
// das ändert die automatische Entscheidung nie, es macht sie nur sichtbar.
// Provenance wird für alle Quellen festgehalten, unabhängig vom Gewinner;
// Stoffeigenschaften werden nur vom Gewinner übernommen.
func FuseCompounds(
	compounds []*models.Compound,
	structured map[string]*models.EnrichmentCandidate,
	secondary map[string]*models.SecondaryCandidate,
	logger *zap.Logger,
) *FusionResult {
	result := &FusionResult{}

	for _, c := range compounds {
		originalCAS := c.CAS()
		c.Provenance.CASFromDoc = models.StrPtr(originalCAS)

		// Verified-Verbindungen tragen ihre CAS aus den Dokumenten selbst;
		// die Kaskade fasst sie nicht an.
		if c.Status == models.StatusVerified && originalCAS != "" {
			c.CASSource = models.SourceDocument
			continue
		}

		api := structured[c.PreferredName]
		llm := secondary[c.PreferredName]

		casAPI := ""
		if api != nil {
			casAPI = cleanCAS(api.CASNumber)
		}
		casLLM := ""
		if llm != nil {
			casLLM = cleanCAS(llm.SuggestedCAS)
		}

		c.Provenance.CASFromAPI = models.StrPtr(casAPI)
		c.Provenance.CASFromLLM = models.StrPtr(casLLM)

		// Konflikt festhalten, bevor die Kaskade entscheidet.
		if casAPI != "" && casLLM != "" && casAPI != casLLM {
			confidence := ""
			if llm != nil {
				confidence = llm.Confidence
			}
			result.Conflicts = append(result.Conflicts, models.FusionConflict{
				Name:          c.PreferredName,
				CASFromAPI:    casAPI,
				CASFromLLM:    casLLM,
				LLMConfidence: confidence,
				Decision:      "Auto-selected API",
			})
			logger.Warn("Widersprüchliche CAS-Kandidaten",
				zap.String("name", c.PreferredName),
				zap.String("cas_api", casAPI),
				zap.String("cas_llm", casLLM))
		}

		switch {
		case casAPI != "":
			c.CASNumber = models.StrPtr(casAPI)
			c.CASSource = models.SourceAPIPubChem
			c.Status = models.StatusCurated
			if api.CID != 0 {
				cid := api.CID
				c.ChemicalProperties.PubChemCID = &cid
			}
			c.ChemicalProperties.SuggestedIUPAC = models.StrPtr(api.IUPACName)
			result.Curated++

		case casLLM != "":
			confidence := llm.Confidence
			if confidence == "" {
				confidence = "Unknown"
			}
			c.CASNumber = models.StrPtr(casLLM)
			c.CASSource = "LLM_" + confidence
			c.Status = models.StatusCurated
			c.ChemicalProperties.MolecularFormula = models.StrPtr(llm.MolecularFormula)
			c.ChemicalProperties.MolecularWeight = llm.MolecularWeight
			c.ChemicalProperties.SMILES = models.StrPtr(llm.SMILES)
			result.Curated++

		default:
			c.CASSource = models.SourceNone
			result.Unresolved++
		}

		c.Key = c.IdentityKey()
	}

	logger.Info("Fusion abgeschlossen",
		zap.Int("curated", result.Curated),
		zap.Int("unresolved", result.Unresolved),
		zap.Int("conflicts", len(result.Conflicts)))
	return result
}

// cleanCAS normalisiert einen CAS-Kandidaten; nicht brauchbare Werte werden "".
func cleanCAS(val string) string {
	s := strings.TrimSpace(val)
	switch strings.ToLower(s) {
	case "", "none", "nan", "null", "not_found":
		return ""
	}
	return s
}
