package providers

import (
	"context"

	"compound-hand/models"
)

// Provider ist das Interface, das jede Anreicherungsquelle (z.B. PubChem,
// LLM-Kandidatentabelle) implementieren muss.
type Provider interface {
	// Lookup versucht, für einen Verbindungsnamen eine CAS-Nummer samt
	// Zusatzdaten zu beschaffen. Ein negatives Ergebnis (Name unbekannt) ist
	// kein Fehler, sondern ein Kandidat mit entsprechendem Status.
	Lookup(ctx context.Context, name string) (*models.EnrichmentCandidate, error)

	// Name gibt den eindeutigen Namen des Providers zurück (z.B. "pubchem").
	Name() string
}
