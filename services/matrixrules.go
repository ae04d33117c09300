package services

import "strings"

// MatrixRule ist eine einzelne Keyword-Containment-Regel: enthält der Text das
// Schlüsselwort, bekommt er den kanonischen Matrix-Tag. Die Regeln sind bewusst
// als deklarative, geordnete Tabelle getrennt vom Kontrollfluss gehalten, damit
// sie unabhängig erweitert und getestet werden können.
type MatrixRule struct {
	Keyword string
	Tag     string
}

// MatrixRules ordnet Probenmatrix-Vokabular kanonischen Tags zu. Die Liste ist
// unscharf per Konstruktion; Reihenfolge bestimmt die Tag-Reihenfolge im Ergebnis.
var MatrixRules = []MatrixRule{
	{"milk", "Milk"},
	{"dairy", "Dairy"},
	{"yogurt", "Dairy"},
	{"cheese", "Dairy"},
	{"egg", "Egg"},
	{"poultry", "Poultry"},
	{"chicken", "Poultry"},
	{"meat", "Meat"},
	{"beef", "Meat"},
	{"pork", "Meat"},
	{"bovine", "Meat"},
	{"porcine", "Meat"},
	{"muscle", "Muscle"},
	{"liver", "Liver"},
	{"kidney", "Kidney"},
	{"fat", "Fat"},
	{"fish", "Fish"},
	{"catfish", "Fish"},
	{"siluriformes", "Fish"},
	{"seafood", "Seafood"},
	{"cereal", "Cereal"},
	{"grain", "Cereal"},
	{"rice", "Cereal"},
	{"wheat", "Cereal"},
	{"corn", "Cereal"},
	{"maize", "Cereal"},
	{"fruit", "Fruit"},
	{"orange", "Fruit"},
	{"apple", "Fruit"},
	{"vegetable", "Vegetable"},
	{"cabbage", "Vegetable"},
	{"feed", "Feed"},
	{"silage", "Feed"},
	{"honey", "Honey"},
	{"tea", "Tea"},
}

// CanonicalMatrixTags klassifiziert freien Matrix-Text über die Regel-Tabelle.
// Mehrfachtreffer sind erlaubt (dedupliziert); kein Treffer ergibt nil.
func CanonicalMatrixTags(text string) []string {
	lower := strings.ToLower(text)
	if strings.TrimSpace(lower) == "" {
		return nil
	}

	var tags []string
	seen := make(map[string]bool)
	for _, rule := range MatrixRules {
		if strings.Contains(lower, rule.Keyword) && !seen[rule.Tag] {
			seen[rule.Tag] = true
			tags = append(tags, rule.Tag)
		}
	}
	return tags
}
