package ensemble

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"

	"github.com/gokaycavdar/go-loginguard/pkg/models"
)

// Artifact file names inside the model directory.
const (
	ScalerFile          = "scaler.json"
	IsolationForestFile = "isolation_forest.json"
	AutoencoderFile     = "autoencoder.json"
	IFStatsFile         = "if_stats.json"
	AEStatsFile         = "ae_stats.json"
)

// Artifacts is the JSON export of the offline training pipeline. It
// implements Model.
type Artifacts struct {
	Scaler      *Scaler
	Forest      *IsolationForest
	Autoencoder *Autoencoder
	IFStats     Stats
	AEStats     Stats
}

type ifStatsFile struct {
	Mean float64  `json:"if_mean"`
	Std  *float64 `json:"if_std"`
}

type aeStatsFile struct {
	Mean float64  `json:"ae_mean"`
	Std  *float64 `json:"ae_std"`
}

// LoadArtifacts reads and validates every artifact in dir. Any problem is
// reported as models.ErrModelUnavailable.
func LoadArtifacts(dir string) (*Artifacts, error) {
	a := &Artifacts{}
	dim := len(models.FeatureNames)

	a.Scaler = &Scaler{}
	if err := readArtifact(dir, ScalerFile, a.Scaler); err != nil {
		return nil, err
	}
	if err := a.Scaler.validate(dim); err != nil {
		return nil, unavailable(ScalerFile, err)
	}

	a.Forest = &IsolationForest{}
	if err := readArtifact(dir, IsolationForestFile, a.Forest); err != nil {
		return nil, err
	}
	if err := a.Forest.validate(dim); err != nil {
		return nil, unavailable(IsolationForestFile, err)
	}

	a.Autoencoder = &Autoencoder{}
	if err := readArtifact(dir, AutoencoderFile, a.Autoencoder); err != nil {
		return nil, err
	}
	if err := a.Autoencoder.validate(dim); err != nil {
		return nil, unavailable(AutoencoderFile, err)
	}

	var ifs ifStatsFile
	if err := readArtifact(dir, IFStatsFile, &ifs); err != nil {
		return nil, err
	}
	a.IFStats = Stats{Mean: ifs.Mean, Std: orOne(ifs.Std)}

	var aes aeStatsFile
	if err := readArtifact(dir, AEStatsFile, &aes); err != nil {
		return nil, err
	}
	a.AEStats = Stats{Mean: aes.Mean, Std: orOne(aes.Std)}

	return a, nil
}

func (a *Artifacts) Standardize(features []float64) ([]float64, error) {
	return a.Scaler.Transform(features)
}

func (a *Artifacts) AnomalyScore(standardized []float64) float64 {
	return a.Forest.Score(standardized)
}

func (a *Artifacts) ReconstructionError(standardized []float64) float64 {
	return a.Autoencoder.ReconstructionError(standardized)
}

func readArtifact(dir, name string, v any) error {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return unavailable(name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return unavailable(name, err)
	}
	return nil
}

func unavailable(name string, err error) error {
	return fmt.Errorf("%w: %s: %v", models.ErrModelUnavailable, name, err)
}

// A missing std defaults to 1, matching the training export.
func orOne(v *float64) float64 {
	if v == nil {
		return 1
	}
	return *v
}
