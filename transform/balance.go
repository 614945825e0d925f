package transform

import (
	"fmt"

	"github.com/codemarsyu/Adaptive-Graph-Convolutional-Network/dataset"
)

// Balancing reweights a strictly binary-labeled dataset so each task's
// positive and negative classes contribute equally: the positive class weight
// is the ratio of nonzero-weight negatives to nonzero-weight positives and
// the negative class weight is fixed at 1. Samples whose original weight is
// zero represent missing labels and stay at zero. There is no meaningful
// reverse.
type Balancing struct {
	negWeights []float64
	posWeights []float64
}

// NewBalancing computes per-task class weights from the reference dataset.
// The reference labels must be exactly 0 or 1, with both classes present
// somewhere in the dataset.
func NewBalancing(ds *dataset.DiskDataset) (*Balancing, error) {
	Y, err := ds.Y()
	if err != nil {
		return nil, err
	}
	W, err := ds.W()
	if err != nil {
		return nil, err
	}
	if len(Y) == 0 {
		return nil, fmt.Errorf("balancing: %w", dataset.ErrEmptyDataset)
	}

	sawZero, sawOne := false, false
	for _, row := range Y {
		for _, v := range row {
			switch v {
			case 0:
				sawZero = true
			case 1:
				sawOne = true
			default:
				return nil, fmt.Errorf("balancing requires binary labels, found %v", v)
			}
		}
	}
	if !sawZero || !sawOne {
		return nil, fmt.Errorf("balancing requires both label classes to be present")
	}

	nTasks := len(Y[0])
	b := &Balancing{
		negWeights: make([]float64, nTasks),
		posWeights: make([]float64, nTasks),
	}
	for task := 0; task < nTasks; task++ {
		positives, negatives := 0, 0
		for i, row := range Y {
			if W[i][task] == 0 {
				continue
			}
			if row[task] != 0 {
				positives++
			} else {
				negatives++
			}
		}
		b.negWeights[task] = 1
		if positives > 0 {
			b.posWeights[task] = float64(negatives) / float64(positives)
		} else {
			b.posWeights[task] = 1
		}
	}
	return b, nil
}

// Affects reports that balancing rewrites weights.
func (b *Balancing) Affects() Target { return TargetW }

// Transform reweights the whole dataset, writing the result to dir.
func (b *Balancing) Transform(ds *dataset.DiskDataset, dir string) (*dataset.DiskDataset, error) {
	return applyShardwise(b, ds, dir)
}

// TransformArrays assigns the per-task class weights to every sample whose
// original weight is nonzero.
func (b *Balancing) TransformArrays(X, Y, W [][]float64) ([][]float64, [][]float64, [][]float64, error) {
	out := make([][]float64, len(W))
	for i := range W {
		row := make([]float64, len(W[i]))
		for task := range W[i] {
			if W[i][task] == 0 {
				continue
			}
			if Y[i][task] == 1 {
				row[task] = b.posWeights[task]
			} else {
				row[task] = b.negWeights[task]
			}
		}
		out[i] = row
	}
	return X, Y, out, nil
}

// Untransform always fails: the original weights are not recoverable.
func (b *Balancing) Untransform(z [][]float64) ([][]float64, error) {
	return nil, ErrNotInvertible
}
