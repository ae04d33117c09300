package services

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"compound-hand/config"
	"compound-hand/models"
)

func TestPipelineRunEndToEnd(t *testing.T) {
	inputDir := t.TempDir()
	outputDir := t.TempDir()

	write(t, inputDir, "doc1.json", `[
		{"method_id": "GB 23200.113", "compound_english_name": "Atrazine", "CAS_number": "1912-24-9",
		 "mass_spec_params": [
			{"precursor_mz": 216.1, "product_mz": 174.1, "polarity": "Positive",
			 "parameter_type": "quantification", "collision_energy": {"value": 25, "unit": "V"}},
			{"precursor_mz": 216.1, "product_mz": 104.1, "polarity": "Positive",
			 "parameter_type": "confirmation", "collision_energy": 30}
		 ],
		 "performance_parameters": [{"parameter_name": "RT", "value": 5.82}]},
		{"method_id": "GB 23200.113", "compound_english_name": "Atrazine", "CAS_number": null,
		 "mass_spec_params": [{"precursor_mz": 216.1, "product_mz": 96.1}]}
	]`)
	write(t, inputDir, "doc2.json", `{"detections": [
		{"compound_english_name": "Mystery Pesticide",
		 "mass_spec_params": [{"precursor_mz": 331.0, "product_mz": 127.0}]}
	]}`)

	cfg := &config.Config{
		InputFolder:  inputDir,
		OutputFolder: outputDir,
	}
	svc := NewPipelineService(cfg, nil, nil, zap.NewNop(), nil, nil)

	run, err := svc.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, run.FilesProcessed)
	assert.Equal(t, 3, run.InputRecords)
	assert.Equal(t, 3, run.OutputRecords)
	// Die Lücke im zweiten Atrazine-Datensatz wird aus dem Graphen geschlossen.
	assert.Equal(t, 1, run.CASFilled)
	assert.Equal(t, 2, run.Compounds)
	assert.Equal(t, 4, run.TransitionRows)
	assert.Zero(t, run.OrphansCurated)

	// Alle Artefakte müssen existieren.
	for _, name := range []string{"compounds.json", "detections_final.json", "master.json", "master.csv", "conflicts.csv", "report.md"} {
		_, err := os.Stat(filepath.Join(outputDir, name))
		assert.NoError(t, err, name)
	}

	// Register: eine Verified-Verbindung und ein unaufgelöster Orphan.
	data, err := os.ReadFile(filepath.Join(outputDir, "compounds.json"))
	require.NoError(t, err)
	var compounds []models.Compound
	require.NoError(t, json.Unmarshal(data, &compounds))
	require.Len(t, compounds, 2)
	assert.Equal(t, models.StatusVerified, compounds[0].Status)
	assert.Equal(t, "Atrazine", compounds[0].PreferredName)
	assert.Equal(t, models.StatusOrphan, compounds[1].Status)
	assert.Equal(t, models.SourceNone, compounds[1].CASSource)

	// Master-Tabelle: Zeilen-Gesetz und aufgelöste Polarität.
	data, err = os.ReadFile(filepath.Join(outputDir, "master.json"))
	require.NoError(t, err)
	var rows []models.TransitionRow
	require.NoError(t, json.Unmarshal(data, &rows))
	require.Len(t, rows, 4)
	require.NotNil(t, rows[0].Polarity)
	assert.Equal(t, "Pos", *rows[0].Polarity)
	assert.Equal(t, "Quant", rows[0].Type)
	assert.Equal(t, "Qual", rows[1].Type)
	assert.Equal(t, 5.82, rows[0].RTMin)
}

func TestPipelineRunFailsOnEmptyInput(t *testing.T) {
	cfg := &config.Config{
		InputFolder:  t.TempDir(),
		OutputFolder: t.TempDir(),
	}
	svc := NewPipelineService(cfg, nil, nil, zap.NewNop(), nil, nil)

	_, err := svc.Run(context.Background())
	require.Error(t, err)
}

func TestWriteConflictsCSVQuotesSpecialNames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conflicts.csv")
	conflicts := []models.FusionConflict{
		{Name: "2,4-Dichlorophenoxyacetic acid", CASFromAPI: "94-75-7", CASFromLLM: "999-99-9", LLMConfidence: "High", Decision: "Auto-selected API"},
		{Name: `Methyl "super" ester`, CASFromAPI: "50-00-0", CASFromLLM: "64-17-5", Decision: "Auto-selected API"},
	}

	require.NoError(t, writeConflictsCSV(path, conflicts))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	parsed, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, parsed, 3)

	// Kommas und Anführungszeichen im Namen dürfen die Spalten nicht zerreißen.
	assert.Len(t, parsed[1], 5)
	assert.Equal(t, "2,4-Dichlorophenoxyacetic acid", parsed[1][0])
	assert.Equal(t, "94-75-7", parsed[1][1])
	assert.Equal(t, `Methyl "super" ester`, parsed[2][0])
}

func TestRenderReportSections(t *testing.T) {
	report := RenderReport(&ReportData{
		CleanStats: &CleanStats{
			TotalFiles:         2,
			TotalInputRecords:  3,
			TotalOutputRecords: 3,
			Dropped: []DroppedRecord{
				{File: "doc1.json", Index: 1, Reason: "Empty/Missing MS Params", Snippet: "Compound: Ghost..."},
			},
		},
		Compounds: []*models.Compound{
			{PreferredName: "Atrazine", Status: models.StatusVerified},
			{PreferredName: "Mystery", Status: models.StatusOrphan},
		},
		Conflicts: []models.FusionConflict{
			{Name: "Mystery", CASFromAPI: "121-75-5", CASFromLLM: "999-99-9", Decision: "Auto-selected API"},
		},
		InputRecords: 3,
		OutputRows:   4,
	})

	assert.Contains(t, report, "# Kurationsbericht")
	assert.Contains(t, report, "## Bereinigung")
	assert.Contains(t, report, "Verworfene Datensätze")
	assert.Contains(t, report, "doc1.json")
	assert.Contains(t, report, "## Fusions-Konflikte")
	assert.Contains(t, report, "Auto-selected API")
	assert.Contains(t, report, "Explosionsfaktor: 1.33")
}
