package transform

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/codemarsyu/Adaptive-Graph-Convolutional-Network/dataset"
)

// CoulombFit encodes per-sample square matrices (Coulomb matrices, stored
// row-flattened) into a randomization-robust, smoothly-binarized feature
// vector. At construction it runs several randomized realizations of the
// reference features to track a per-feature maximum, then fixes z-score
// statistics from one realization's expansion.
//
// CoulombFit is a fit-time transform: it is re-applied fresh to every batch
// through XTransform and never persisted as a dataset transform. It is
// explicitly one-way.
type CoulombFit struct {
	numAtoms int
	step     float64
	noise    float64
	rng      *rand.Rand

	triu  []bool    // upper-triangle mask over the flattened matrix
	max   []float64 // per-feature running maximum across realizations
	nbOut int       // expanded feature count
	mean  []float64
	std   float64
}

// CoulombFitOption configures optional CoulombFit behavior.
type CoulombFitOption func(*CoulombFit)

// WithCoulombSeed fixes the seed of the randomized row/column reordering.
func WithCoulombSeed(seed int64) CoulombFitOption {
	return func(c *CoulombFit) { c.rng = rand.New(rand.NewSource(seed)) }
}

// NewCoulombFit fits the transform on ds, whose feature rows must each hold a
// row-flattened numAtoms x numAtoms matrix.
func NewCoulombFit(ds *dataset.DiskDataset, numAtoms int, opts ...CoulombFitOption) (*CoulombFit, error) {
	if numAtoms <= 0 {
		return nil, fmt.Errorf("invalid atom count %d", numAtoms)
	}
	c := &CoulombFit{
		numAtoms: numAtoms,
		step:     1.0,
		noise:    1.0,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(c)
	}

	X, err := ds.X()
	if err != nil {
		return nil, err
	}
	if len(X) == 0 {
		return nil, dataset.ErrEmptyDataset
	}
	if len(X[0]) != numAtoms*numAtoms {
		return nil, fmt.Errorf("feature rows have %d entries, expected %d for %d atoms", len(X[0]), numAtoms*numAtoms, numAtoms)
	}

	c.triu = make([]bool, numAtoms*numAtoms)
	for i := 0; i < numAtoms; i++ {
		for j := 0; j < numAtoms; j++ {
			c.triu[i*numAtoms+j] = i <= j
		}
	}

	nFeat := numAtoms * (numAtoms + 1) / 2
	c.max = make([]float64, nFeat)
	for trial := 0; trial < 10; trial++ {
		realized := c.realize(X)
		for _, row := range realized {
			for j, v := range row {
				if v > c.max[j] {
					c.max[j] = v
				}
			}
		}
	}

	expanded := c.expand(c.realize(X))
	c.nbOut = len(expanded[0])
	c.mean = make([]float64, c.nbOut)
	for _, row := range expanded {
		for j, v := range row {
			c.mean[j] += v
		}
	}
	for j := range c.mean {
		c.mean[j] /= float64(len(expanded))
	}
	var sumSq float64
	for _, row := range expanded {
		for j, v := range row {
			d := v - c.mean[j]
			sumSq += d * d
		}
	}
	c.std = math.Sqrt(sumSq / float64(len(expanded)*c.nbOut))
	if c.std == 0 {
		c.std = 1
	}
	return c, nil
}

// NumExpandedFeatures returns the feature count produced by XTransform.
func (c *CoulombFit) NumExpandedFeatures() int {
	return c.nbOut
}

// realize randomizes each sample's row/column order by a noisy norm-based
// sort key and flattens the upper triangle.
func (c *CoulombFit) realize(X [][]float64) [][]float64 {
	a := c.numAtoms
	out := make([][]float64, len(X))
	for s, flat := range X {
		// Column norms of the a x a matrix, perturbed with gaussian noise;
		// rows and columns are reordered by descending perturbed norm.
		keys := make([]float64, a)
		for j := 0; j < a; j++ {
			var sq float64
			for i := 0; i < a; i++ {
				v := flat[i*a+j]
				sq += v * v
			}
			keys[j] = -math.Sqrt(sq) + c.rng.NormFloat64()*c.noise
		}
		inds := identity(a)
		sortByKeys(inds, keys)

		row := make([]float64, 0, a*(a+1)/2)
		for i := 0; i < a; i++ {
			for j := 0; j < a; j++ {
				if c.triu[i*a+j] {
					row = append(row, flat[inds[i]*a+inds[j]])
				}
			}
		}
		out[s] = row
	}
	return out
}

// expand smoothly binarizes every feature with tanh((v-k)/step) across a
// swept range of thresholds k up to the tracked per-feature maximum.
func (c *CoulombFit) expand(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i := range out {
		out[i] = make([]float64, 0, len(c.max)*2)
	}
	for j := range c.max {
		for k := 0.0; k < c.max[j]+c.step; k += c.step {
			for i, row := range X {
				out[i] = append(out[i], math.Tanh((row[j]-k)/c.step))
			}
		}
	}
	return out
}

// normalize z-scores the expanded features with the fitted statistics.
func (c *CoulombFit) normalize(X [][]float64) [][]float64 {
	out := make([][]float64, len(X))
	for i, row := range X {
		r := make([]float64, len(row))
		for j, v := range row {
			r[j] = (v - c.mean[j]) / c.std
		}
		out[i] = r
	}
	return out
}

// XTransform applies a fresh randomized realization, the binarizing
// expansion and the fitted normalization to a batch of features.
func (c *CoulombFit) XTransform(X [][]float64) [][]float64 {
	return c.normalize(c.expand(c.realize(X)))
}

// Affects reports that the encoding rewrites features.
func (c *CoulombFit) Affects() Target { return TargetX }

// Transform fails: a fit transform is re-applied per batch, never persisted.
func (c *CoulombFit) Transform(ds *dataset.DiskDataset, dir string) (*dataset.DiskDataset, error) {
	return nil, fmt.Errorf("cannot transform a dataset with a fit transform; use XTransform per batch")
}

// TransformArrays fails for the same reason as Transform.
func (c *CoulombFit) TransformArrays(X, Y, W [][]float64) ([][]float64, [][]float64, [][]float64, error) {
	return nil, nil, nil, fmt.Errorf("cannot transform a dataset with a fit transform; use XTransform per batch")
}

// Untransform always fails: the encoding is one-way.
func (c *CoulombFit) Untransform(z [][]float64) ([][]float64, error) {
	return nil, ErrNotInvertible
}

func identity(n int) []int {
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	return p
}

// sortByKeys orders inds ascending by their key values.
func sortByKeys(inds []int, keys []float64) {
	for i := 1; i < len(inds); i++ {
		for j := i; j > 0 && keys[inds[j]] < keys[inds[j-1]]; j-- {
			inds[j], inds[j-1] = inds[j-1], inds[j]
		}
	}
}
