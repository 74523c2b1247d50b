package ensemble

import (
	"fmt"
	"math"

	"github.com/gokaycavdar/go-loginguard/internal/metrics"
	"github.com/gokaycavdar/go-loginguard/pkg/models"
)

// Weights of the linear blend. The result stays in [0,100] only when they
// are non-negative and sum to 1.
type Weights struct {
	Rule float64
	IF   float64
	AE   float64
}

func DefaultWeights() Weights {
	return Weights{Rule: 0.5, IF: 0.3, AE: 0.2}
}

const weightTolerance = 1e-6

// Validate returns models.ErrInvalidWeights for negative weights or a sum
// other than 1.
func (w Weights) Validate() error {
	if w.Rule < 0 || w.IF < 0 || w.AE < 0 {
		return fmt.Errorf("%w: %+v", models.ErrInvalidWeights, w)
	}
	if sum := w.Rule + w.IF + w.AE; math.Abs(sum-1) > weightTolerance {
		return fmt.Errorf("%w: sum is %.6f", models.ErrInvalidWeights, sum)
	}
	return nil
}

// Combine blends a 0-100 rule score with two normalized anomaly scores into
// a 0-100 value.
func Combine(ruleScore, ifNorm, aeNorm float64, w Weights) float64 {
	r := ruleScore / 100.0
	return (w.Rule*r + w.IF*ifNorm + w.AE*aeNorm) * 100.0
}

// Combiner scores feature vectors with a Model and blends the result.
type Combiner struct {
	model   Model
	ifStats Stats
	aeStats Stats
	weights Weights
}

func NewCombiner(model Model, ifStats, aeStats Stats, weights Weights) (*Combiner, error) {
	if model == nil {
		return nil, fmt.Errorf("%w: no model", models.ErrModelUnavailable)
	}
	if err := weights.Validate(); err != nil {
		return nil, err
	}
	return &Combiner{model: model, ifStats: ifStats, aeStats: aeStats, weights: weights}, nil
}

// NewCombinerFromArtifacts wires a combiner to artifacts loaded from disk.
func NewCombinerFromArtifacts(a *Artifacts, weights Weights) (*Combiner, error) {
	return NewCombiner(a, a.IFStats, a.AEStats, weights)
}

// Score standardizes fv and returns both raw and normalized model outputs.
func (c *Combiner) Score(fv models.FeatureVector) (models.EnsembleScore, error) {
	xs, err := c.model.Standardize(fv.Slice())
	if err != nil {
		return models.EnsembleScore{}, fmt.Errorf("standardize features: %w", err)
	}

	ifRaw := c.model.AnomalyScore(xs)
	aeErr := c.model.ReconstructionError(xs)
	return models.EnsembleScore{
		IFRaw:  ifRaw,
		IFNorm: c.ifStats.Normalize(ifRaw),
		AEErr:  aeErr,
		AENorm: c.aeStats.Normalize(aeErr),
	}, nil
}

// Combine blends with the combiner's weights.
func (c *Combiner) Combine(ruleScore int, s models.EnsembleScore) float64 {
	combined := Combine(float64(ruleScore), s.IFNorm, s.AENorm, c.weights)
	metrics.EnsembleScore.Observe(combined)
	return combined
}

// Assess scores fv and blends it with ruleScore in one step.
func (c *Combiner) Assess(ruleScore int, fv models.FeatureVector) (*models.EnsembleView, error) {
	s, err := c.Score(fv)
	if err != nil {
		return nil, err
	}
	return &models.EnsembleView{Score: s, CombinedScore: c.Combine(ruleScore, s)}, nil
}
