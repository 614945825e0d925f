package transform

import (
	"fmt"

	"github.com/codemarsyu/Adaptive-Graph-Convolutional-Network/dataset"
)

// Clipping saturates values of the targeted array outside [-max, max].
// Clipping destroys information, so it has no inverse.
type Clipping struct {
	target Target
	max    float64
}

// NewClipping builds a clipping transform for features or labels.
func NewClipping(target Target, max float64) (*Clipping, error) {
	if err := checkTarget(target); err != nil {
		return nil, err
	}
	if target == TargetW {
		return nil, fmt.Errorf("clipping cannot target w")
	}
	if max <= 0 {
		return nil, fmt.Errorf("clipping bound must be positive, got %v", max)
	}
	return &Clipping{target: target, max: max}, nil
}

// Affects reports the targeted array.
func (c *Clipping) Affects() Target { return c.target }

// Transform clips the targeted array over the whole dataset, writing the
// result to dir.
func (c *Clipping) Transform(ds *dataset.DiskDataset, dir string) (*dataset.DiskDataset, error) {
	return applyShardwise(c, ds, dir)
}

// TransformArrays clips the targeted array.
func (c *Clipping) TransformArrays(X, Y, W [][]float64) ([][]float64, [][]float64, [][]float64, error) {
	clip := func(m [][]float64) [][]float64 {
		out := make([][]float64, len(m))
		for i, row := range m {
			r := make([]float64, len(row))
			for j, v := range row {
				switch {
				case v > c.max:
					r[j] = c.max
				case v < -c.max:
					r[j] = -c.max
				default:
					r[j] = v
				}
			}
			out[i] = r
		}
		return out
	}
	if c.target == TargetX {
		X = clip(X)
	} else {
		Y = clip(Y)
	}
	return X, Y, W, nil
}

// Untransform always fails: clipped values cannot be recovered.
func (c *Clipping) Untransform(z [][]float64) ([][]float64, error) {
	return nil, ErrNotInvertible
}
