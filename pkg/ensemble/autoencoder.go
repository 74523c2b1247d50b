package ensemble

import (
	"errors"
	"fmt"
)

// Autoencoder is a stack of dense layers exported from training.
type Autoencoder struct {
	Layers []DenseLayer `json:"layers"`
}

// DenseLayer computes activation(W·x + b). Weights has one row per output.
type DenseLayer struct {
	Weights    [][]float64 `json:"weights"`
	Bias       []float64   `json:"bias"`
	Activation string      `json:"activation"`
}

func (a *Autoencoder) validate(dim int) error {
	if len(a.Layers) == 0 {
		return errors.New("autoencoder has no layers")
	}
	in := dim
	for i, l := range a.Layers {
		if len(l.Weights) == 0 || len(l.Weights) != len(l.Bias) {
			return fmt.Errorf("layer %d: %d weight rows, %d biases", i, len(l.Weights), len(l.Bias))
		}
		for _, row := range l.Weights {
			if len(row) != in {
				return fmt.Errorf("layer %d: expected %d inputs, got %d", i, in, len(row))
			}
		}
		switch l.Activation {
		case "", "linear", "relu":
		default:
			return fmt.Errorf("layer %d: unsupported activation %q", i, l.Activation)
		}
		in = len(l.Weights)
	}
	if in != dim {
		return fmt.Errorf("output width %d does not match input width %d", in, dim)
	}
	return nil
}

// Reconstruct runs x through every layer.
func (a *Autoencoder) Reconstruct(x []float64) []float64 {
	out := x
	for _, l := range a.Layers {
		out = l.forward(out)
	}
	return out
}

// ReconstructionError is the mean squared error between x and its
// reconstruction.
func (a *Autoencoder) ReconstructionError(x []float64) float64 {
	rec := a.Reconstruct(x)
	sum := 0.0
	for i := range x {
		d := x[i] - rec[i]
		sum += d * d
	}
	return sum / float64(len(x))
}

func (l DenseLayer) forward(x []float64) []float64 {
	out := make([]float64, len(l.Weights))
	for i, row := range l.Weights {
		v := l.Bias[i]
		for j, w := range row {
			v += w * x[j]
		}
		if l.Activation == "relu" && v < 0 {
			v = 0
		}
		out[i] = v
	}
	return out
}
