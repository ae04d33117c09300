package llmtable

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "candidates.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAndGet(t *testing.T) {
	path := writeCSV(t, `original_name,suggested_cas,confidence,molecular_formula,molecular_weight,smiles
Mystery Pesticide,121-75-5,High,C10H19O6PS2,330.36,CCOC(=O)CC(SP(=S)(OC)OC)C(=O)OCC
Another One,50-00-0,Medium,,,
`)

	table, err := Load(path, zap.NewNop())
	require.NoError(t, err)
	assert.Len(t, table.All(), 2)

	cand := table.Get("mystery pesticide")
	require.NotNil(t, cand)
	assert.Equal(t, "Mystery Pesticide", cand.OriginalName)
	assert.Equal(t, "121-75-5", cand.SuggestedCAS)
	assert.Equal(t, "High", cand.Confidence)
	assert.Equal(t, "C10H19O6PS2", cand.MolecularFormula)
	require.NotNil(t, cand.MolecularWeight)
	assert.Equal(t, 330.36, *cand.MolecularWeight)

	sparse := table.Get("Another One")
	require.NotNil(t, sparse)
	assert.Nil(t, sparse.MolecularWeight)
	assert.Empty(t, sparse.SMILES)

	assert.Nil(t, table.Get("unknown name"))
}

func TestLoadToleratesColumnOrder(t *testing.T) {
	path := writeCSV(t, `confidence,original_name,suggested_cas
Low,Reordered Compound,64-17-5
`)

	table, err := Load(path, zap.NewNop())
	require.NoError(t, err)

	cand := table.Get("Reordered Compound")
	require.NotNil(t, cand)
	assert.Equal(t, "64-17-5", cand.SuggestedCAS)
	assert.Equal(t, "Low", cand.Confidence)
}

func TestLoadMissingFileIsEmptyTable(t *testing.T) {
	table, err := Load(filepath.Join(t.TempDir(), "nope.csv"), zap.NewNop())
	require.NoError(t, err)
	assert.Empty(t, table.All())
	assert.Nil(t, table.Get("anything"))
}

func TestLoadRejectsMissingNameColumn(t *testing.T) {
	path := writeCSV(t, `suggested_cas,confidence
121-75-5,High
`)

	_, err := Load(path, zap.NewNop())
	require.Error(t, err)
}
