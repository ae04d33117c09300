package services

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"compound-hand/models"
)

func mz(v float64) *float64 { return &v }

func TestFlattenRowCountLaw(t *testing.T) {
	records := []models.Detection{
		{
			CompoundEnglishName: models.StrPtr("Atrazine"),
			MassSpecParams: []models.MassSpecParam{
				{PrecursorMZ: mz(216.1), ProductMZ: mz(174.1)},
				{PrecursorMZ: mz(216.1), ProductMZ: mz(104.1)},
				{PrecursorMZ: mz(216.1), ProductMZ: mz(96.1)},
			},
		},
		{
			CompoundEnglishName: models.StrPtr("Simazine"),
			MassSpecParams: []models.MassSpecParam{
				{PrecursorMZ: mz(202.1), ProductMZ: mz(132.1)},
			},
		},
		{
			CompoundEnglishName: models.StrPtr("No Transitions"),
		},
	}

	rows := Flatten(records, zap.NewNop())
	assert.Len(t, rows, 4)
}

func TestFlattenPromotesParameters(t *testing.T) {
	unit := "min"
	records := []models.Detection{
		{
			MethodID:            models.StrPtr("GB 23200.113"),
			CompoundEnglishName: models.StrPtr("Atrazine"),
			CASNumber:           models.StrPtr("1912-24-9"),
			PerformanceParameters: []models.PerformanceParameter{
				{ParameterName: "Retention Time", Value: 5.82, Unit: &unit},
				{ParameterName: "LOQ", Value: "0.01 mg/kg"},
				{ParameterName: "Matrix", Value: "raw cow milk"},
				{ParameterName: "Declustering Potential", Value: 60.0},
				{ParameterName: "Column Temperature", Value: 40.0},
			},
			MassSpecParams: []models.MassSpecParam{
				{PrecursorMZ: mz(216.1), ProductMZ: mz(174.1)},
				{PrecursorMZ: mz(216.1), ProductMZ: mz(104.1)},
			},
		},
	}

	rows := Flatten(records, zap.NewNop())
	require.Len(t, rows, 2)

	// Beförderte Parameter wiederholen sich in jeder Zeile des Datensatzes.
	for _, row := range rows {
		assert.Equal(t, 5.82, row.RTMin)
		assert.Equal(t, "0.01 mg/kg", row.LOQ)
		assert.Equal(t, "raw cow milk", row.MatrixTag)
		assert.Equal(t, 60.0, row.DPV)
		assert.Equal(t, []string{"Milk"}, row.MatrixCanonical)
		// Nicht beförderte Parameter landen verlustfrei im Residual.
		assert.Equal(t, "40", row.OtherParams["Column Temperature"])
	}
}

func TestFlattenFirstSynonymMatchWinsPerRecord(t *testing.T) {
	records := []models.Detection{
		{
			CompoundEnglishName: models.StrPtr("Atrazine"),
			PerformanceParameters: []models.PerformanceParameter{
				{ParameterName: "RT", Value: 5.82},
				{ParameterName: "Retention Time", Value: 9.99},
			},
			MassSpecParams: []models.MassSpecParam{{PrecursorMZ: mz(216.1)}},
		},
	}

	rows := Flatten(records, zap.NewNop())
	require.Len(t, rows, 1)
	assert.Equal(t, 5.82, rows[0].RTMin)
	assert.Empty(t, rows[0].OtherParams)
}

func TestFlattenPolarityResolution(t *testing.T) {
	tests := []struct {
		raw  string
		want *string
	}{
		{"Positive", models.StrPtr("Pos")},
		{"ESI+", models.StrPtr("Pos")},
		{"negative mode", models.StrPtr("Neg")},
		{"正离子", models.StrPtr("Pos")},
		{"", nil},
		{"unknown text", nil},
	}

	for _, tt := range tests {
		got := resolvePolarity(tt.raw)
		if tt.want == nil {
			assert.Nil(t, got, "raw %q", tt.raw)
		} else {
			require.NotNil(t, got, "raw %q", tt.raw)
			assert.Equal(t, *tt.want, *got)
		}
	}
}

func TestFlattenTypeResolution(t *testing.T) {
	assert.Equal(t, "Quant", resolveType("quantification ion"))
	assert.Equal(t, "Qual", resolveType("Confirmation"))
	assert.Equal(t, "Qual", resolveType("定性离子对"))
	// Default ist Quant, auch bei leerem oder unbekanntem Text.
	assert.Equal(t, "Quant", resolveType(""))
	assert.Equal(t, "Quant", resolveType("something else"))
}

func TestFlattenTypeFallsBackToSourceIonLabel(t *testing.T) {
	records := []models.Detection{
		{
			CompoundEnglishName: models.StrPtr("Atrazine"),
			MassSpecParams: []models.MassSpecParam{
				{PrecursorMZ: mz(216.1), SourceIonLabel: models.StrPtr("qualifier")},
			},
		},
	}

	rows := Flatten(records, zap.NewNop())
	require.Len(t, rows, 1)
	assert.Equal(t, "Qual", rows[0].Type)
}

func TestFlattenCollisionEnergyColumns(t *testing.T) {
	records := []models.Detection{
		{
			CompoundEnglishName: models.StrPtr("Atrazine"),
			MassSpecParams: []models.MassSpecParam{
				{PrecursorMZ: mz(216.1), CollisionEnergy: models.CollisionEnergy{Kind: models.CENumeric, Value: 25, Unit: "V"}},
				{PrecursorMZ: mz(216.1), CollisionEnergy: models.CollisionEnergy{Kind: models.CELevel, Level: "m"}},
				{PrecursorMZ: mz(216.1)},
			},
		},
	}

	rows := Flatten(records, zap.NewNop())
	require.Len(t, rows, 3)

	assert.Equal(t, 25.0, rows[0].CEValue)
	assert.Equal(t, "V", rows[0].CEUnit)
	assert.Equal(t, "m", rows[1].CEValue)
	assert.Equal(t, "Category", rows[1].CEUnit)
	assert.Nil(t, rows[2].CEValue)
	assert.Empty(t, rows[2].CEUnit)
}

func TestWriteMasterCSV(t *testing.T) {
	rows := []models.TransitionRow{
		{
			MethodID:    models.StrPtr("GB 23200.113"),
			Compound:    models.StrPtr("Atrazine"),
			CAS:         models.StrPtr("1912-24-9"),
			PrecursorMZ: mz(216.1),
			ProductMZ:   mz(174.1),
			Polarity:    models.StrPtr("Pos"),
			Type:        "Quant",
			CEValue:     25.0,
			CEUnit:      "V",
			RTMin:       5.82,
			SourceFile:  "gb23200.json",
			OtherParams: map[string]string{"Column Temperature": "40"},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteMasterCSV(rows, &buf))

	parsed, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, parsed, 2)

	assert.Equal(t, masterColumns, parsed[0])
	assert.Equal(t, "Method_ID", parsed[0][0])

	record := parsed[1]
	assert.Equal(t, "GB 23200.113", record[0])
	assert.Equal(t, "Atrazine", record[2])
	assert.Equal(t, "216.1", record[4])
	assert.Equal(t, "Pos", record[6])
	assert.Equal(t, "25", record[8])
	assert.Contains(t, record[19], "Column Temperature")
}
