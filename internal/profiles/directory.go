package profiles

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"preventcoach/internal/logger"
	"preventcoach/internal/model"
)

// Directory looks up known patient profiles. It exposes no
// personally-identifying fields beyond what PatientProfile defines (no
// contact info).
type Directory interface {
	FindByID(userID string) (*model.PatientProfile, bool)
	FindByName(name string) (*model.PatientProfile, bool)
}

// YAMLDirectory loads patient profiles from a YAML file once and serves
// them from an in-memory cache. Lookups return copies so callers can mutate
// freely.
type YAMLDirectory struct {
	mu    sync.RWMutex
	byID  map[string]model.PatientProfile
	count int
}

type directoryFile struct {
	Patients []model.PatientProfile `yaml:"patients"`
}

// LoadYAMLDirectory reads the patient file. A missing file yields an empty
// directory with a warning, not an error: unknown users get the default
// profile anyway.
func LoadYAMLDirectory(path string) (*YAMLDirectory, error) {
	dir := &YAMLDirectory{byID: make(map[string]model.PatientProfile)}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warn().Str("path", path).Msg("Patient file not found, directory is empty")
			return dir, nil
		}
		return nil, fmt.Errorf("error reading patient file: %w", err)
	}

	var file directoryFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("error parsing patient file: %w", err)
	}

	for _, p := range file.Patients {
		if p.UserID == "" {
			continue
		}
		dir.byID[p.UserID] = p
	}
	dir.count = len(dir.byID)

	logger.Info().Int("patients", dir.count).Str("path", path).Msg("Patient directory loaded")
	return dir, nil
}

func (d *YAMLDirectory) FindByID(userID string) (*model.PatientProfile, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	p, ok := d.byID[userID]
	if !ok {
		return nil, false
	}
	copied := p
	return &copied, true
}

// FindByName performs a case-insensitive exact match on the patient name.
func (d *YAMLDirectory) FindByName(name string) (*model.PatientProfile, bool) {
	target := strings.ToLower(strings.TrimSpace(name))
	if target == "" {
		return nil, false
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, p := range d.byID {
		if strings.ToLower(p.Name) == target {
			copied := p
			return &copied, true
		}
	}
	return nil, false
}

// Count returns the number of loaded profiles.
func (d *YAMLDirectory) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.count
}

// DefaultProfile is the documented fallback for users absent from the
// directory: name unknown, moderate risk, population-typical biomarkers.
func DefaultProfile(userID string) model.PatientProfile {
	return model.PatientProfile{
		UserID:           userID,
		Name:             "",
		Age:              0,
		DiabetesRisk:     model.RiskModerate,
		RiskScoreNumeric: 45,
		Biomarkers: model.Biomarkers{
			A1C:              5.7,
			FBS:              5.5,
			SystolicBP:       120,
			DiastolicBP:      80,
			LDL:              3.0,
			HDL:              1.2,
			TotalCholesterol: 4.5,
			Weight:           70,
			Height:           170,
		},
	}
}
