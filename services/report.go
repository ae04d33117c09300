package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"compound-hand/models"
)

// ReportData bündelt alle Kennzahlen eines Pipeline-Laufs für den
// Markdown-Bericht.
type ReportData struct {
	StartedAt    time.Time
	Duration     time.Duration
	CleanStats   *CleanStats
	CASFilled    int
	NamesFilled  int
	BackfillCAS  int
	BackfillName int
	Compounds    []*models.Compound
	Conflicts    []models.FusionConflict
	InputRecords int
	OutputRows   int
}

// RenderReport erzeugt den Markdown-Kurationsbericht eines Laufs.
func RenderReport(d *ReportData) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Kurationsbericht %s\n\n", d.StartedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Dauer: %s\n\n", d.Duration.Round(time.Millisecond))

	b.WriteString("## Bereinigung\n\n")
	summary := table.NewWriter()
	summary.AppendHeader(table.Row{"Kennzahl", "Wert"})
	summary.AppendRows([]table.Row{
		{"Dateien gelesen", d.CleanStats.TotalFiles},
		{"Datensätze gelesen", d.CleanStats.TotalInputRecords},
		{"Datensätze behalten", d.CleanStats.TotalOutputRecords},
		{"Datensätze verworfen", len(d.CleanStats.Dropped)},
		{"Struktur-Reparaturen", len(d.CleanStats.StructureFixes)},
		{"Datei-Fehler", len(d.CleanStats.FileErrors)},
		{"Unicode-Fixes", d.CleanStats.UnicodeFixes},
		{"Trennstrich-Fixes", d.CleanStats.HyphenFixes},
		{"Null-Token ersetzt", d.CleanStats.NullsConverted},
	})
	b.WriteString(summary.RenderMarkdown())
	b.WriteString("\n\n")

	if len(d.CleanStats.Dropped) > 0 {
		b.WriteString("### Verworfene Datensätze\n\n")
		dropped := table.NewWriter()
		dropped.AppendHeader(table.Row{"Datei", "Index", "Grund", "Auszug"})
		for _, dr := range d.CleanStats.Dropped {
			dropped.AppendRow(table.Row{dr.File, dr.Index, dr.Reason, dr.Snippet})
		}
		b.WriteString(dropped.RenderMarkdown())
		b.WriteString("\n\n")
	}

	if len(d.CleanStats.FileErrors) > 0 {
		b.WriteString("### Nicht lesbare Dateien\n\n")
		files := table.NewWriter()
		files.AppendHeader(table.Row{"Datei", "Fehler"})
		for _, fe := range d.CleanStats.FileErrors {
			files.AppendRow(table.Row{fe.File, fe.Error})
		}
		b.WriteString(files.RenderMarkdown())
		b.WriteString("\n\n")
	}

	b.WriteString("## Identität & Vervollständigung\n\n")
	fmt.Fprintf(&b, "- CAS-Nummern ergänzt: %d\n", d.CASFilled)
	fmt.Fprintf(&b, "- Namen ergänzt: %d\n", d.NamesFilled)
	fmt.Fprintf(&b, "- Rückfluss nach Anreicherung: %d CAS, %d Namen\n\n", d.BackfillCAS, d.BackfillName)

	b.WriteString("## Verbindungsregister\n\n")
	byStatus := map[string]int{}
	for _, c := range d.Compounds {
		byStatus[c.Status]++
	}
	register := table.NewWriter()
	register.AppendHeader(table.Row{"Status", "Anzahl"})
	for _, status := range []string{models.StatusVerified, models.StatusCurated, models.StatusOrphan} {
		register.AppendRow(table.Row{status, byStatus[status]})
	}
	register.AppendFooter(table.Row{"Gesamt", len(d.Compounds)})
	b.WriteString(register.RenderMarkdown())
	b.WriteString("\n\n")

	b.WriteString("## Fusions-Konflikte\n\n")
	if len(d.Conflicts) == 0 {
		b.WriteString("Keine Konflikte.\n\n")
	} else {
		conflicts := table.NewWriter()
		conflicts.AppendHeader(table.Row{"Name", "CAS (API)", "CAS (LLM)", "Konfidenz", "Entscheidung"})
		for _, c := range d.Conflicts {
			conflicts.AppendRow(table.Row{c.Name, c.CASFromAPI, c.CASFromLLM, c.LLMConfidence, c.Decision})
		}
		b.WriteString(conflicts.RenderMarkdown())
		b.WriteString("\n\n")
	}

	b.WriteString("## Master-Tabelle\n\n")
	fmt.Fprintf(&b, "- Eingabedatensätze: %d\n", d.InputRecords)
	fmt.Fprintf(&b, "- Ausgabezeilen: %d\n", d.OutputRows)
	if d.InputRecords > 0 {
		fmt.Fprintf(&b, "- Explosionsfaktor: %.2f\n", float64(d.OutputRows)/float64(d.InputRecords))
	}

	return b.String()
}
