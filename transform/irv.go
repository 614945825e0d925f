package transform

import (
	"fmt"
	"sort"

	"github.com/codemarsyu/Adaptive-Graph-Convolutional-Network/dataset"
)

// irvBlockSize is the row/column tile size for the similarity matrix
// multiplication and for slicing target datasets, bounding peak memory.
const irvBlockSize = 5000

// IRV (influence-relevance voting) expands every target row into per-task
// nearest-neighbor features against a reference dataset: for each task, the K
// highest Tanimoto similarities among nonzero-weight reference rows together
// with those neighbors' labels. An exact self-match (similarity 1) is dropped
// in favor of the next neighbor so a row never votes for itself. One-way.
type IRV struct {
	k      int
	nTasks int
	refX   [][]float64
	refY   [][]float64
	refW   [][]float64
}

// NewIRV fits the transform on the reference dataset ds, whose features must
// be binary fingerprints.
func NewIRV(k, nTasks int, ds *dataset.DiskDataset) (*IRV, error) {
	if k <= 0 {
		return nil, fmt.Errorf("invalid neighbor count %d", k)
	}
	refX, err := ds.X()
	if err != nil {
		return nil, err
	}
	refY, err := ds.Y()
	if err != nil {
		return nil, err
	}
	refW, err := ds.W()
	if err != nil {
		return nil, err
	}
	if len(refX) < k+1 {
		return nil, fmt.Errorf("reference dataset has %d rows, need at least %d for K=%d", len(refX), k+1, k)
	}
	if refY == nil {
		return nil, fmt.Errorf("irv transform needs a labeled reference dataset")
	}
	if nTasks <= 0 || nTasks > len(refY[0]) {
		return nil, fmt.Errorf("invalid task count %d for reference with %d tasks", nTasks, len(refY[0]))
	}
	return &IRV{k: k, nTasks: nTasks, refX: refX, refY: refY, refW: refW}, nil
}

// Affects reports that the expansion rewrites features.
func (t *IRV) Affects() Target { return TargetX }

// similarity computes the Tanimoto-like similarity between every target row
// and every reference row: intersection count over union count of the binary
// fingerprints.
func (t *IRV) similarity(target [][]float64) [][]float64 {
	nFeat := float64(len(t.refX[0]))
	inter := tiledMatMulT(target, t.refX, irvBlockSize)

	// complement overlap: rows of ones-minus-fingerprint dotted together
	compTarget := complement(target)
	compRef := complement(t.refX)
	nonUnion := tiledMatMulT(compTarget, compRef, irvBlockSize)

	sim := make([][]float64, len(inter))
	for i := range inter {
		row := make([]float64, len(inter[i]))
		for j := range row {
			row[j] = inter[i][j] / (nFeat - nonUnion[i][j])
		}
		sim[i] = row
	}
	return sim
}

// realize builds, for a single task, the [K similarities, K neighbor labels]
// feature rows from the similarity matrix, restricted to reference rows with
// nonzero task weight.
func (t *IRV) realize(sim [][]float64, taskY, taskW []float64) [][]float64 {
	features := make([][]float64, len(sim))
	order := make([]int, len(taskY))
	for i, simRow := range sim {
		masked := make([]float64, len(simRow))
		for j, s := range simRow {
			masked[j] = s * sign(taskW[j])
		}
		for j := range order {
			order[j] = j
		}
		sort.SliceStable(order, func(a, b int) bool {
			return masked[order[a]] > masked[order[b]]
		})
		top := order[:t.k+1]

		row := make([]float64, 0, 2*t.k)
		// A perfect match means the target row is in the reference set;
		// skip it and use the following K neighbors.
		start := 0
		if masked[top[0]] == 1 {
			start = 1
		}
		for _, n := range top[start : start+t.k] {
			row = append(row, masked[n])
		}
		for _, n := range top[start : start+t.k] {
			row = append(row, taskY[n])
		}
		features[i] = row
	}
	return features
}

// XTransform expands a batch of target fingerprints into concatenated
// per-task neighbor features of width 2*K*nTasks.
func (t *IRV) XTransform(target [][]float64) [][]float64 {
	sim := t.similarity(target)
	out := make([][]float64, len(target))
	for i := range out {
		out[i] = make([]float64, 0, 2*t.k*t.nTasks)
	}
	taskY := make([]float64, len(t.refY))
	taskW := make([]float64, len(t.refY))
	for task := 0; task < t.nTasks; task++ {
		for j := range t.refY {
			taskY[j] = t.refY[j][task]
			taskW[j] = t.refW[j][task]
		}
		feats := t.realize(sim, taskY, taskW)
		for i := range out {
			out[i] = append(out[i], feats[i]...)
		}
	}
	return out
}

// Transform expands the whole target dataset, processing it in fixed-size
// row slices, and writes the result to dir with the original labels and
// weights.
func (t *IRV) Transform(ds *dataset.DiskDataset, dir string) (*dataset.DiskDataset, error) {
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
	var expanded [][]float64
	for lo := 0; lo < len(X); lo += irvBlockSize {
		hi := lo + irvBlockSize
		if hi > len(X) {
			hi = len(X)
		}
		expanded = append(expanded, t.XTransform(X[lo:hi])...)
	}
	return dataset.FromArrays(expanded, Y, W, nil, ds.GetTaskNames(), dir)
}

// TransformArrays expands the feature array; labels and weights pass through.
func (t *IRV) TransformArrays(X, Y, W [][]float64) ([][]float64, [][]float64, [][]float64, error) {
	return t.XTransform(X), Y, W, nil
}

// Untransform always fails: the expansion is one-way.
func (t *IRV) Untransform(z [][]float64) ([][]float64, error) {
	return nil, ErrNotInvertible
}

// tiledMatMulT computes A x Bᵀ, slicing both operands into blocks of at most
// block rows so only one tile pair of the product is resident at a time.
func tiledMatMulT(A, B [][]float64, block int) [][]float64 {
	out := make([][]float64, len(A))
	for i := range out {
		out[i] = make([]float64, len(B))
	}
	for alo := 0; alo < len(A); alo += block {
		ahi := alo + block
		if ahi > len(A) {
			ahi = len(A)
		}
		for blo := 0; blo < len(B); blo += block {
			bhi := blo + block
			if bhi > len(B) {
				bhi = len(B)
			}
			for i := alo; i < ahi; i++ {
				for j := blo; j < bhi; j++ {
					var dot float64
					for d, v := range A[i] {
						dot += v * B[j][d]
					}
					out[i][j] = dot
				}
			}
		}
	}
	return out
}

// complement maps a binary matrix v to 1-v.
func complement(m [][]float64) [][]float64 {
	out := make([][]float64, len(m))
	for i, row := range m {
		r := make([]float64, len(row))
		for j, v := range row {
			r[j] = 1 - v
		}
		out[i] = r
	}
	return out
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
