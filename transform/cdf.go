package transform

import (
	"fmt"
	"math"
	"sort"

	"github.com/codemarsyu/Adaptive-Graph-Convolutional-Network/dataset"
)

// CDF replaces each column's values with a rank-derived quantile position:
// rank r (ascending) becomes floor(r/(n/bins))/bins, or /(bins-1) when bins
// is odd, scattered back to the original row order. The result is a roughly
// uniform discretization that preserves each column's sort order exactly.
//
// Ranks span whole columns, so the forward direction materializes the entire
// dataset rather than mapping shard by shard.
type CDF struct {
	target Target
	bins   int

	// origY backs the lossy label reverse: undoing a label CDF returns the
	// labels stored at construction, not a true inverse.
	origY [][]float64
}

// NewCDF builds a quantile-binning transform for features or labels over the
// reference dataset ds.
func NewCDF(target Target, ds *dataset.DiskDataset, bins int) (*CDF, error) {
	if err := checkTarget(target); err != nil {
		return nil, err
	}
	if target == TargetW {
		return nil, fmt.Errorf("cdf transform cannot target w")
	}
	if bins < 2 {
		return nil, fmt.Errorf("cdf transform needs at least 2 bins, got %d", bins)
	}
	c := &CDF{target: target, bins: bins}
	if target == TargetY {
		Y, err := ds.Y()
		if err != nil {
			return nil, err
		}
		c.origY = Y
	}
	return c, nil
}

// Affects reports the targeted array.
func (c *CDF) Affects() Target { return c.target }

// Transform bins the targeted array over the whole dataset at once, writing a
// new single-shard dataset to dir.
func (c *CDF) Transform(ds *dataset.DiskDataset, dir string) (*dataset.DiskDataset, error) {
	if err := checkTransformable(c.target, ds); err != nil {
		return nil, err
	}
	X, err := ds.X()
	if err != nil {
		return nil, err
	}
	Y, err := ds.Y()
	if err != nil {
		return nil, err
	}
	W, err := ds.W()
	if err != nil {
		return nil, err
	}
	ids, err := ds.IDs()
	if err != nil {
		return nil, err
	}
	X, Y, W, err = c.TransformArrays(X, Y, W)
	if err != nil {
		return nil, err
	}
	return dataset.FromArrays(X, Y, W, ids, ds.GetTaskNames(), dir)
}

// TransformArrays bins the targeted array. Ranks are computed over the rows
// given here, so callers must pass the full dataset for global quantiles.
func (c *CDF) TransformArrays(X, Y, W [][]float64) ([][]float64, [][]float64, [][]float64, error) {
	if c.target == TargetX {
		X = cdfValues(X, c.bins)
	} else {
		Y = cdfValues(Y, c.bins)
	}
	return X, Y, W, nil
}

// cdfValues maps every column of m onto rescaled quantile positions.
func cdfValues(m [][]float64, bins int) [][]float64 {
	n := len(m)
	if n == 0 {
		return nil
	}
	cols := len(m[0])
	div := bins
	if bins%2 == 1 {
		div = bins - 1
	}
	parts := float64(n) / float64(bins)
	hist := make([]float64, n)
	for r := range hist {
		hist[r] = math.Floor(float64(r)/parts) / float64(div)
	}

	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, cols)
	}
	order := make([]int, n)
	for col := 0; col < cols; col++ {
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(a, b int) bool {
			return m[order[a]][col] < m[order[b]][col]
		})
		for r, idx := range order {
			out[idx][col] = hist[r]
		}
	}
	return out
}

// Untransform returns the labels stored at construction for a label CDF; this
// is a lossy passthrough rather than a true inverse. A feature CDF has no
// reverse at all.
func (c *CDF) Untransform(z [][]float64) ([][]float64, error) {
	if c.target == TargetY {
		return c.origY, nil
	}
	return nil, ErrNotInvertible
}
