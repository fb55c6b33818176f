package profiles

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"preventcoach/internal/model"
)

const samplePatients = `
patients:
  - user_id: PRV-1001
    name: Jordan Reyes
    age: 52
    diabetes_risk: high
    risk_score_numeric: 72
    biomarkers:
      a1c: 6.2
      fbs: 6.4
  - user_id: PRV-1002
    name: Sam Whitfield
    age: 39
    diabetes_risk: moderate
  - name: no-id-is-skipped
`

func writePatients(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "patients.yaml")
	require.NoError(t, os.WriteFile(path, []byte(samplePatients), 0644))
	return path
}

func TestLoadAndFindByID(t *testing.T) {
	dir, err := LoadYAMLDirectory(writePatients(t))
	require.NoError(t, err)
	assert.Equal(t, 2, dir.Count())

	p, ok := dir.FindByID("PRV-1001")
	require.True(t, ok)
	assert.Equal(t, "Jordan Reyes", p.Name)
	assert.Equal(t, model.RiskHigh, p.DiabetesRisk)
	assert.InDelta(t, 6.2, p.Biomarkers.A1C, 0.001)

	_, ok = dir.FindByID("PRV-9999")
	assert.False(t, ok)
}

func TestFindByNameCaseInsensitive(t *testing.T) {
	dir, err := LoadYAMLDirectory(writePatients(t))
	require.NoError(t, err)

	p, ok := dir.FindByName("jordan reyes")
	require.True(t, ok)
	assert.Equal(t, "PRV-1001", p.UserID)

	_, ok = dir.FindByName("")
	assert.False(t, ok)
	_, ok = dir.FindByName("Jordan")
	assert.False(t, ok, "prefix is not an exact match")
}

func TestLookupsReturnCopies(t *testing.T) {
	dir, err := LoadYAMLDirectory(writePatients(t))
	require.NoError(t, err)

	p, _ := dir.FindByID("PRV-1002")
	p.Name = "mutated"

	again, _ := dir.FindByID("PRV-1002")
	assert.Equal(t, "Sam Whitfield", again.Name)
}

func TestMissingFileYieldsEmptyDirectory(t *testing.T) {
	dir, err := LoadYAMLDirectory(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Zero(t, dir.Count())

	_, ok := dir.FindByID("anyone")
	assert.False(t, ok)
}

func TestMalformedFileIsAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "patients.yaml")
	require.NoError(t, os.WriteFile(path, []byte("patients: [not: {closed"), 0644))

	_, err := LoadYAMLDirectory(path)
	assert.Error(t, err)
}

func TestDefaultProfile(t *testing.T) {
	p := DefaultProfile("u-1")
	assert.Equal(t, "u-1", p.UserID)
	assert.Empty(t, p.Name)
	assert.Equal(t, model.RiskModerate, p.DiabetesRisk)
	assert.InDelta(t, 5.7, p.Biomarkers.A1C, 0.001)
	assert.Equal(t, 120, p.Biomarkers.SystolicBP)
	assert.Equal(t, 80, p.Biomarkers.DiastolicBP)
}
