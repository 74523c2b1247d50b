package ensemble

import (
	"fmt"
	"slices"

	"github.com/gokaycavdar/go-loginguard/pkg/models"
)

// Scaler is a fitted standard scaler: (x - mean) / scale per feature.
type Scaler struct {
	Features []string  `json:"features"`
	Mean     []float64 `json:"mean"`
	Scale    []float64 `json:"scale"`
}

func (s *Scaler) validate(dim int) error {
	if len(s.Mean) != dim || len(s.Scale) != dim {
		return fmt.Errorf("expected %d features, got mean=%d scale=%d", dim, len(s.Mean), len(s.Scale))
	}
	if len(s.Features) > 0 && !slices.Equal(s.Features, models.FeatureNames) {
		return fmt.Errorf("feature order %v does not match %v", s.Features, models.FeatureNames)
	}
	return nil
}

// Transform standardizes x. A zero scale is treated as 1.
func (s *Scaler) Transform(x []float64) ([]float64, error) {
	if len(x) != len(s.Mean) {
		return nil, fmt.Errorf("expected %d features, got %d", len(s.Mean), len(x))
	}
	out := make([]float64, len(x))
	for i, v := range x {
		scale := s.Scale[i]
		if scale == 0 {
			scale = 1
		}
		out[i] = (v - s.Mean[i]) / scale
	}
	return out, nil
}
