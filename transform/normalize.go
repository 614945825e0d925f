package transform

import (
	"fmt"
	"math"

	"github.com/codemarsyu/Adaptive-Graph-Convolutional-Network/dataset"
)

// Normalization z-scores features per column or labels per task, using mean
// and standard deviation computed once from a reference dataset. The forward
// direction replaces non-finite results with zero; the reverse multiplies by
// the stored deviation and adds the stored mean back.
type Normalization struct {
	target Target
	means  []float64
	stds   []float64

	// Gradient statistics for physics datasets whose first task is an
	// energy and whose remaining tasks are its gradient.
	gradStats  bool
	ydelyMeans []float64
}

// NormalizationOption configures optional Normalization behavior.
type NormalizationOption func(*Normalization)

// WithGradientStats additionally computes the energy/gradient covariance
// statistic needed by UntransformGrad.
func WithGradientStats() NormalizationOption {
	return func(n *Normalization) { n.gradStats = true }
}

// NewNormalization computes normalization statistics from ds for the targeted
// array. Only features and labels can be normalized. Zero label deviations
// are clamped to 1 so constant tasks pass through unscaled.
func NewNormalization(target Target, ds *dataset.DiskDataset, opts ...NormalizationOption) (*Normalization, error) {
	if err := checkTarget(target); err != nil {
		return nil, err
	}
	if target == TargetW {
		return nil, fmt.Errorf("normalization cannot target w")
	}
	n := &Normalization{target: target}
	for _, opt := range opts {
		opt(n)
	}

	var err error
	n.means, n.stds, err = columnStats(ds, target)
	if err != nil {
		return nil, err
	}
	if target == TargetY {
		for i, s := range n.stds {
			if s == 0 {
				n.stds[i] = 1
			}
		}
	}
	if n.gradStats {
		n.ydelyMeans, err = gradStatistics(ds)
		if err != nil {
			return nil, err
		}
	}
	return n, nil
}

// columnStats streams through ds accumulating per-column mean and population
// standard deviation of the targeted array.
func columnStats(ds *dataset.DiskDataset, target Target) (means, stds []float64, err error) {
	var sum, sumSq []float64
	rows := 0
	it := ds.IterShards()
	for {
		sh, ok, err := it.Next()
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			break
		}
		m := sh.X
		if target == TargetY {
			m = sh.Y
			if m == nil {
				return nil, nil, fmt.Errorf("cannot compute label statistics: dataset has no labels")
			}
		}
		for _, row := range m {
			if sum == nil {
				sum = make([]float64, len(row))
				sumSq = make([]float64, len(row))
			}
			for j, v := range row {
				sum[j] += v
				sumSq[j] += v * v
			}
			rows++
		}
	}
	if rows == 0 {
		return nil, nil, dataset.ErrEmptyDataset
	}
	means = make([]float64, len(sum))
	stds = make([]float64, len(sum))
	for j := range sum {
		means[j] = sum[j] / float64(rows)
		variance := sumSq[j]/float64(rows) - means[j]*means[j]
		if variance < 0 {
			variance = 0
		}
		stds[j] = math.Sqrt(variance)
	}
	return means, stds, nil
}

// gradStatistics assumes the first task holds an energy and the remaining
// tasks its gradient; it returns the mean of energy-scaled gradients per
// gradient task.
func gradStatistics(ds *dataset.DiskDataset) ([]float64, error) {
	Y, err := ds.Y()
	if err != nil {
		return nil, err
	}
	if len(Y) == 0 {
		return nil, dataset.ErrEmptyDataset
	}
	if len(Y[0]) < 2 {
		return nil, fmt.Errorf("gradient statistics need an energy task plus gradient tasks, got %d tasks", len(Y[0]))
	}
	nGrad := len(Y[0]) - 1
	sums := make([]float64, nGrad)
	for _, row := range Y {
		energy := row[0]
		for j := 0; j < nGrad; j++ {
			sums[j] += row[j+1] * energy
		}
	}
	for j := range sums {
		sums[j] /= float64(len(Y))
	}
	return sums, nil
}

// Affects reports the targeted array.
func (n *Normalization) Affects() Target { return n.target }

// Transform z-scores the targeted array over the whole dataset, writing the
// result to dir.
func (n *Normalization) Transform(ds *dataset.DiskDataset, dir string) (*dataset.DiskDataset, error) {
	return applyShardwise(n, ds, dir)
}

// TransformArrays z-scores the targeted array; non-finite results become 0.
func (n *Normalization) TransformArrays(X, Y, W [][]float64) ([][]float64, [][]float64, [][]float64, error) {
	normalize := func(m [][]float64) [][]float64 {
		out := make([][]float64, len(m))
		for i, row := range m {
			r := make([]float64, len(row))
			for j, v := range row {
				z := (v - n.means[j]) / n.stds[j]
				if !isFinite(z) {
					z = 0
				}
				r[j] = z
			}
			out[i] = r
		}
		return out
	}
	if n.target == TargetX {
		X = normalize(X)
	} else {
		Y = normalize(Y)
	}
	return X, Y, W, nil
}

// Untransform restores the original scale of z.
func (n *Normalization) Untransform(z [][]float64) ([][]float64, error) {
	out := make([][]float64, len(z))
	for i, row := range z {
		r := make([]float64, len(row))
		for j, v := range row {
			r[j] = v*n.stds[j] + n.means[j]
		}
		out[i] = r
	}
	return out, nil
}

// UntransformGrad reconstructs the de-normalized gradient from normalized
// model output. grad holds one flattened gradient per sample; tasks holds the
// normalized model output, whose first column is the energy.
func (n *Normalization) UntransformGrad(grad, tasks [][]float64) ([][]float64, error) {
	if n.target != TargetY {
		return nil, fmt.Errorf("gradient untransform requires a label normalization")
	}
	if n.ydelyMeans == nil {
		return nil, fmt.Errorf("normalization was built without gradient statistics")
	}
	energyVar := n.stds[0]
	gradMeans := n.means[1:]
	gradVar := make([]float64, len(gradMeans))
	for j := range gradVar {
		gradVar[j] = (n.ydelyMeans[j] - n.means[0]*gradMeans[j]) / energyVar
	}

	out := make([][]float64, len(grad))
	for i, g := range grad {
		energy := tasks[i][0]
		r := make([]float64, len(g))
		for j, v := range g {
			r[j] = energy*gradVar[j] + energyVar*v + gradMeans[j]
		}
		out[i] = r
	}
	return out, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
