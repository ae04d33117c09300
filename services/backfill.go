package services

import (
	"strings"

	"go.uber.org/zap"

	"compound-hand/models"
)

// BackfillDetections spielt das nach der Fusion vollständigere Register auf den
// gesamten Detections-Bestand zurück. Es gilt dieselbe Regel wie bei der
// Vervollständigung: nur eindeutige Auflösungen werden eingetragen, und ein
// bereits vorhandener Wert wird nie überschrieben — auch dann nicht, wenn das
// Register inzwischen etwas anderes sagt (keine stille Korrektur alter Daten).
// Wiederholte Anwendung ändert nichts.
func BackfillDetections(records []models.Detection, compounds []*models.Compound, logger *zap.Logger) (casFilled, namesFilled int) {
	// Name (lowercase, inkl. Synonyme) → Menge der CAS-Nummern.
	nameToCAS := make(map[string]map[string]bool)
	// CAS → bevorzugter Name.
	casToName := make(map[string]string)

	addName := func(name, cas string) {
		lower := strings.ToLower(strings.TrimSpace(name))
		if lower == "" || cas == "" {
			return
		}
		if nameToCAS[lower] == nil {
			nameToCAS[lower] = make(map[string]bool)
		}
		nameToCAS[lower][cas] = true
	}

	for _, c := range compounds {
		cas := c.CAS()
		if cas == "" {
			continue
		}
		addName(c.PreferredName, cas)
		for _, syn := range c.Synonyms {
			addName(syn, cas)
		}
		if _, ok := casToName[cas]; !ok && c.PreferredName != "" {
			casToName[cas] = c.PreferredName
		}
	}

	logger.Info("Backfill-Indizes aufgebaut",
		zap.Int("name_mappings", len(nameToCAS)),
		zap.Int("cas_mappings", len(casToName)))

	for i := range records {
		rec := &records[i]

		if rec.CAS() == "" && rec.Name() != "" {
			set := nameToCAS[strings.ToLower(rec.Name())]
			// Mehrdeutige Namen bleiben offen.
			if len(set) == 1 {
				for cas := range set {
					rec.CASNumber = models.StrPtr(cas)
					casFilled++
				}
			}
		}

		if rec.Name() == "" && rec.CAS() != "" {
			if name, ok := casToName[rec.CAS()]; ok {
				rec.CompoundEnglishName = models.StrPtr(name)
				namesFilled++
			}
		}
	}

	logger.Info("Backfill abgeschlossen",
		zap.Int("cas_filled", casFilled),
		zap.Int("names_filled", namesFilled))
	return casFilled, namesFilled
}
