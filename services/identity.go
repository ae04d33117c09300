package services

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"compound-hand/models"
)

// IdentityGraph ist der bipartite CAS↔Name-Graph über alle normalisierten
// Datensätze. Er trägt die Kanten-Indizes für die Vervollständigung und
// erzeugt daraus das Verified/Orphan-Register.
type IdentityGraph struct {
	logger *zap.Logger

	// CAS → beobachtete Namen, in Reihenfolge des ersten Auftretens.
	casToNames map[string][]string
	casSeen    map[string]map[string]bool

	// Name (lowercase) → Menge der beobachteten CAS-Nummern.
	nameToCAS map[string]map[string]bool

	// Reihenfolgen für deterministische Ausgabe.
	casOrder      []string
	casOnlyOrder  []string
	casOnlySeen   map[string]bool
	nameOnlyOrder []string
	// lowercase → Originalschreibweise des ersten Auftretens
	nameOnlyFirst map[string]string
}

// BuildIdentityGraph macht einen einzigen Durchlauf über alle Datensätze und
// partitioniert sie in beide-vorhanden, nur-CAS und nur-Name.
func BuildIdentityGraph(records []models.Detection, logger *zap.Logger) *IdentityGraph {
	g := &IdentityGraph{
		logger:        logger,
		casToNames:    make(map[string][]string),
		casSeen:       make(map[string]map[string]bool),
		nameToCAS:     make(map[string]map[string]bool),
		casOnlySeen:   make(map[string]bool),
		nameOnlyFirst: make(map[string]string),
	}

	for i := range records {
		cas := records[i].CAS()
		name := records[i].Name()

		switch {
		case cas != "" && name != "":
			g.addEdge(cas, name)
		case cas != "":
			if !g.casOnlySeen[cas] {
				g.casOnlySeen[cas] = true
				g.casOnlyOrder = append(g.casOnlyOrder, cas)
			}
		case name != "":
			lower := strings.ToLower(name)
			if _, ok := g.nameOnlyFirst[lower]; !ok {
				g.nameOnlyFirst[lower] = name
				g.nameOnlyOrder = append(g.nameOnlyOrder, lower)
			}
		}
	}

	logger.Info("Identitätsgraph aufgebaut",
		zap.Int("gold_cas", len(g.casToNames)),
		zap.Int("cas_only", len(g.casOnlyOrder)),
		zap.Int("name_only", len(g.nameOnlyOrder)))
	return g
}

func (g *IdentityGraph) addEdge(cas, name string) {
	if g.casSeen[cas] == nil {
		g.casSeen[cas] = make(map[string]bool)
		g.casOrder = append(g.casOrder, cas)
	}
	if !g.casSeen[cas][name] {
		g.casSeen[cas][name] = true
		g.casToNames[cas] = append(g.casToNames[cas], name)
	}

	lower := strings.ToLower(name)
	if g.nameToCAS[lower] == nil {
		g.nameToCAS[lower] = make(map[string]bool)
	}
	g.nameToCAS[lower][cas] = true
}

// ResolveCAS löst einen Namen auf genau eine CAS-Nummer auf. Zweiter
// Rückgabewert false, wenn der Name unbekannt oder mehrdeutig ist.
func (g *IdentityGraph) ResolveCAS(name string) (string, bool) {
	set := g.nameToCAS[strings.ToLower(strings.TrimSpace(name))]
	if len(set) != 1 {
		return "", false
	}
	for cas := range set {
		return cas, true
	}
	return "", false
}

// PreferredName gibt den kürzesten beobachteten Namen einer CAS zurück
// (bei Gleichstand der zuerst gesehene).
func (g *IdentityGraph) PreferredName(cas string) (string, bool) {
	names, ok := g.casToNames[cas]
	if !ok || len(names) == 0 {
		return "", false
	}
	return shortestFirst(names), true
}

// Compounds erzeugt das kanonische Register aus dem Graphen:
//   - Jede CAS mit mindestens einer Namens-Kante wird Verified.
//   - Nur-CAS-Datensätze werden als Verified mit Platzhalternamen rekonstruiert.
//   - Nur-Name-Datensätze werden Orphans, außer der Name gehört bereits
//     (case-insensitiv) zu einer Verified-Verbindung.
//
// Das Ergebnis ist eindeutig über (CAS bzw. lowercase-Name) geschlüsselt.
func (g *IdentityGraph) Compounds() []*models.Compound {
	var compounds []*models.Compound

	verifiedNamesLower := make(map[string]bool)
	processedCAS := make(map[string]bool)

	for _, cas := range g.casOrder {
		names := g.casToNames[cas]
		preferred := shortestFirst(names)
		var synonyms []string
		for _, n := range names {
			if n != preferred {
				synonyms = append(synonyms, n)
			}
		}
		c := &models.Compound{
			CASNumber:     models.StrPtr(cas),
			PreferredName: preferred,
			Synonyms:      datatypes.JSONSlice[string](synonyms),
			Status:        models.StatusVerified,
		}
		c.Key = c.IdentityKey()
		compounds = append(compounds, c)
		processedCAS[cas] = true
		for _, n := range names {
			verifiedNamesLower[strings.ToLower(n)] = true
		}
	}

	for _, cas := range g.casOnlyOrder {
		if processedCAS[cas] {
			continue
		}
		c := &models.Compound{
			CASNumber:     models.StrPtr(cas),
			PreferredName: fmt.Sprintf("Unknown Compound (%s)", cas),
			Status:        models.StatusVerified,
		}
		c.Key = c.IdentityKey()
		compounds = append(compounds, c)
		processedCAS[cas] = true
		g.logger.Debug("Nur-CAS-Datensatz rekonstruiert", zap.String("cas", cas))
	}

	orphans := 0
	for _, lower := range g.nameOnlyOrder {
		if verifiedNamesLower[lower] {
			// Name hat bereits eine Identität im Register, kein Orphan.
			continue
		}
		c := &models.Compound{
			PreferredName: g.nameOnlyFirst[lower],
			Status:        models.StatusOrphan,
		}
		c.Key = c.IdentityKey()
		compounds = append(compounds, c)
		orphans++
	}

	g.logger.Info("Register erzeugt",
		zap.Int("compounds", len(compounds)),
		zap.Int("verified", len(processedCAS)),
		zap.Int("orphans", orphans))
	return compounds
}

// Complete füllt fehlende CAS-Nummern bzw. Namen einzelner Datensätze, aber
// nur bei eindeutiger Auflösung. Mehrdeutige Kandidaten bleiben unangetastet —
// es wird nie geraten. Wiederholte Anwendung ändert nichts (idempotent).
func (g *IdentityGraph) Complete(records []models.Detection) (casFilled, namesFilled int) {
	for i := range records {
		rec := &records[i]

		if rec.CAS() == "" && rec.Name() != "" {
			if cas, ok := g.ResolveCAS(rec.Name()); ok {
				rec.CASNumber = models.StrPtr(cas)
				casFilled++
			}
		}

		if rec.Name() == "" && rec.CAS() != "" {
			if name, ok := g.PreferredName(rec.CAS()); ok {
				rec.CompoundEnglishName = models.StrPtr(name)
				namesFilled++
			}
		}
	}
	return casFilled, namesFilled
}

// shortestFirst wählt den kürzesten Namen; bei Gleichstand gewinnt der zuerst
// beobachtete.
func shortestFirst(names []string) string {
	best := names[0]
	for _, n := range names[1:] {
		if len(n) < len(best) {
			best = n
		}
	}
	return best
}
