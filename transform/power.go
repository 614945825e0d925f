package transform

import (
	"fmt"
	"math"

	"github.com/codemarsyu/Adaptive-Graph-Convolutional-Network/dataset"
)

// Power horizontally concatenates v^p for each configured power p, expanding
// the targeted array's column count by the number of powers. The reverse
// keeps the first 1/len(powers) fraction of columns and raises them to
// 1/powers[0]; that is exact only for a single-power list and a documented
// approximation otherwise.
type Power struct {
	target Target
	powers []float64
}

// NewPower builds a power-expansion transform for features or labels.
func NewPower(target Target, powers []float64) (*Power, error) {
	if err := checkTarget(target); err != nil {
		return nil, err
	}
	if target == TargetW {
		return nil, fmt.Errorf("power transform cannot target w")
	}
	if len(powers) == 0 {
		return nil, fmt.Errorf("power transform needs at least one power")
	}
	return &Power{target: target, powers: powers}, nil
}

// Affects reports the targeted array.
func (p *Power) Affects() Target { return p.target }

// Transform expands the targeted array over the whole dataset, writing the
// result to dir.
func (p *Power) Transform(ds *dataset.DiskDataset, dir string) (*dataset.DiskDataset, error) {
	return applyShardwise(p, ds, dir)
}

func (p *Power) expand(m [][]float64) [][]float64 {
	out := make([][]float64, len(m))
	for i, row := range m {
		r := make([]float64, 0, len(row)*len(p.powers))
		for _, pw := range p.powers {
			for _, v := range row {
				r = append(r, math.Pow(v, pw))
			}
		}
		out[i] = r
	}
	return out
}

// TransformArrays expands the targeted array column-wise.
func (p *Power) TransformArrays(X, Y, W [][]float64) ([][]float64, [][]float64, [][]float64, error) {
	if p.target == TargetX {
		X = p.expand(X)
	} else {
		Y = p.expand(Y)
	}
	return X, Y, W, nil
}

// Untransform keeps the leading original-width columns of z and raises them
// to 1/powers[0]. Exact only for single-power lists.
func (p *Power) Untransform(z [][]float64) ([][]float64, error) {
	out := make([][]float64, len(z))
	for i, row := range z {
		origLen := len(row) / len(p.powers)
		r := make([]float64, origLen)
		for j := 0; j < origLen; j++ {
			r[j] = math.Pow(row[j], 1/p.powers[0])
		}
		out[i] = r
	}
	return out, nil
}
