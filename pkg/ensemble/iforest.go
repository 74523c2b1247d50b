package ensemble

import (
	"errors"
	"fmt"
	"math"
)

const eulerGamma = 0.5772156649

// IsolationForest is an exported isolation forest. Leaves have Feature -1.
// Internal nodes send x to Left when x[Feature] <= Threshold.
type IsolationForest struct {
	MaxSamples int             `json:"max_samples"`
	Trees      []IsolationTree `json:"trees"`
}

type IsolationTree struct {
	Nodes []TreeNode `json:"nodes"`
}

type TreeNode struct {
	Feature   int     `json:"feature"`
	Threshold float64 `json:"threshold"`
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	NSamples  int     `json:"n_samples"`
}

func (f *IsolationForest) validate(dim int) error {
	if len(f.Trees) == 0 {
		return errors.New("forest has no trees")
	}
	if f.MaxSamples < 1 {
		return fmt.Errorf("max_samples must be positive, got %d", f.MaxSamples)
	}
	for ti, tree := range f.Trees {
		if len(tree.Nodes) == 0 {
			return fmt.Errorf("tree %d has no nodes", ti)
		}
		for ni, n := range tree.Nodes {
			if n.Feature < 0 {
				continue
			}
			if n.Feature >= dim {
				return fmt.Errorf("tree %d node %d: feature %d out of range", ti, ni, n.Feature)
			}
			// Children must come after their parent, which also rules out cycles.
			if n.Left <= ni || n.Right <= ni || n.Left >= len(tree.Nodes) || n.Right >= len(tree.Nodes) {
				return fmt.Errorf("tree %d node %d: invalid children %d/%d", ti, ni, n.Left, n.Right)
			}
		}
	}
	return nil
}

// Score returns 2^(-E[h(x)]/c(psi)), in (0,1]. Values near 1 are anomalous.
func (f *IsolationForest) Score(x []float64) float64 {
	total := 0.0
	for i := range f.Trees {
		total += f.Trees[i].pathLength(x)
	}
	mean := total / float64(len(f.Trees))

	norm := averagePathLength(f.MaxSamples)
	if norm == 0 {
		return 1
	}
	return math.Pow(2, -mean/norm)
}

func (t *IsolationTree) pathLength(x []float64) float64 {
	depth := 0
	idx := 0
	for {
		n := t.Nodes[idx]
		if n.Feature < 0 {
			return float64(depth) + averagePathLength(n.NSamples)
		}
		if x[n.Feature] <= n.Threshold {
			idx = n.Left
		} else {
			idx = n.Right
		}
		depth++
	}
}

// averagePathLength is c(n), the mean path length of an unsuccessful search
// in a binary search tree of n points.
func averagePathLength(n int) float64 {
	switch {
	case n <= 1:
		return 0
	case n == 2:
		return 1
	}
	nf := float64(n)
	return 2*(math.Log(nf-1)+eulerGamma) - 2*(nf-1)/nf
}
