package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"compound-hand/models"
)

func TestBackfillFillsFromCuratedRegister(t *testing.T) {
	records := []models.Detection{
		det("", "Mystery Pesticide"),
		det("121-75-5", ""),
	}
	curated := &models.Compound{
		CASNumber:     models.StrPtr("121-75-5"),
		PreferredName: "Mystery Pesticide",
		Status:        models.StatusCurated,
	}

	casFilled, namesFilled := BackfillDetections(records, []*models.Compound{curated}, zap.NewNop())

	assert.Equal(t, 1, casFilled)
	assert.Equal(t, 1, namesFilled)
	assert.Equal(t, "121-75-5", records[0].CAS())
	assert.Equal(t, "Mystery Pesticide", records[1].Name())
}

func TestBackfillMatchesSynonymsCaseInsensitively(t *testing.T) {
	records := []models.Detection{
		det("", "ATRAZINE TECHNICAL GRADE"),
	}
	c := &models.Compound{
		CASNumber:     models.StrPtr("1912-24-9"),
		PreferredName: "Atrazine",
		Synonyms:      datatypes.JSONSlice[string]{"Atrazine technical grade"},
		Status:        models.StatusVerified,
	}

	casFilled, _ := BackfillDetections(records, []*models.Compound{c}, zap.NewNop())

	assert.Equal(t, 1, casFilled)
	assert.Equal(t, "1912-24-9", records[0].CAS())
}

func TestBackfillNeverOverwrites(t *testing.T) {
	records := []models.Detection{
		det("50-29-3", "DDT"),
	}
	// Das Register behauptet inzwischen eine andere CAS für DDT.
	c := &models.Compound{
		CASNumber:     models.StrPtr("53-19-0"),
		PreferredName: "DDT",
		Status:        models.StatusCurated,
	}

	casFilled, namesFilled := BackfillDetections(records, []*models.Compound{c}, zap.NewNop())

	assert.Zero(t, casFilled)
	assert.Zero(t, namesFilled)
	assert.Equal(t, "50-29-3", records[0].CAS())
}

func TestBackfillSkipsAmbiguousNames(t *testing.T) {
	records := []models.Detection{
		det("", "Cypermethrin"),
	}
	// Zwei Register-Einträge teilen sich denselben Namen als Synonym.
	a := &models.Compound{
		CASNumber:     models.StrPtr("52315-07-8"),
		PreferredName: "Cypermethrin",
		Status:        models.StatusVerified,
	}
	b := &models.Compound{
		CASNumber:     models.StrPtr("65731-84-2"),
		PreferredName: "alpha-Cypermethrin",
		Synonyms:      datatypes.JSONSlice[string]{"Cypermethrin"},
		Status:        models.StatusVerified,
	}

	casFilled, _ := BackfillDetections(records, []*models.Compound{a, b}, zap.NewNop())

	assert.Zero(t, casFilled)
	assert.Equal(t, "", records[0].CAS())
}

func TestBackfillIsIdempotent(t *testing.T) {
	records := []models.Detection{
		det("", "Mystery Pesticide"),
	}
	c := &models.Compound{
		CASNumber:     models.StrPtr("121-75-5"),
		PreferredName: "Mystery Pesticide",
		Status:        models.StatusCurated,
	}
	compounds := []*models.Compound{c}

	first, _ := BackfillDetections(records, compounds, zap.NewNop())
	second, _ := BackfillDetections(records, compounds, zap.NewNop())

	assert.Equal(t, 1, first)
	assert.Zero(t, second)
}

func TestBackfillIgnoresCompoundsWithoutCAS(t *testing.T) {
	records := []models.Detection{
		det("", "Mystery Pesticide"),
	}
	c := &models.Compound{
		PreferredName: "Mystery Pesticide",
		Status:        models.StatusOrphan,
	}

	casFilled, namesFilled := BackfillDetections(records, []*models.Compound{c}, zap.NewNop())

	assert.Zero(t, casFilled)
	assert.Zero(t, namesFilled)
}
