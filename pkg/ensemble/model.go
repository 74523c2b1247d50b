// Package ensemble blends the rule score with two externally trained anomaly
// detectors: an isolation-forest outlier score and an autoencoder
// reconstruction error.
//
// The detectors are consumed through the Model capability so the training
// technology can change without touching the combiner.
package ensemble

import "math"

// Model is a fitted scaler plus the two anomaly detectors.
type Model interface {
	// Standardize applies the fitted per-feature scaling.
	Standardize(features []float64) ([]float64, error)
	// AnomalyScore is the raw outlier score of a standardized vector; higher
	// means more anomalous.
	AnomalyScore(standardized []float64) float64
	// ReconstructionError is the autoencoder mean squared error of a
	// standardized vector.
	ReconstructionError(standardized []float64) float64
}

// Stats are the training mean and standard deviation of a raw score.
type Stats struct {
	Mean float64
	Std  float64
}

const stdEpsilon = 1e-9

// Normalize z-scores raw against s and squashes it into [0,1].
func (s Stats) Normalize(raw float64) float64 {
	return Logistic((raw - s.Mean) / (s.Std + stdEpsilon))
}

// Logistic is 1/(1+e^-z).
func Logistic(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}
