// Package transform provides statistics-driven dataset transformations:
// normalization, clipping, log scaling, class balancing, CDF binning, power
// expansion, Coulomb-matrix fit encoding and IRV nearest-neighbor similarity
// expansion. Parameters are computed once from a reference dataset at
// construction time; transformers are then applied forward over a whole
// dataset and, where an inverse exists, backward over in-memory prediction
// batches.
package transform

import (
	"errors"
	"fmt"
	"math/bits"

	"github.com/codemarsyu/Adaptive-Graph-Convolutional-Network/dataset"
)

// ErrNotInvertible is returned by Untransform for transformers that have no
// defined inverse. Callers branch on it instead of treating it as a failure.
var ErrNotInvertible = errors.New("transform has no inverse")

// Target selects which of the three shard arrays a transformer affects.
// Concrete transformers affect exactly one.
type Target uint8

const (
	TargetX Target = 1 << iota
	TargetY
	TargetW
)

func (t Target) String() string {
	switch t {
	case TargetX:
		return "X"
	case TargetY:
		return "y"
	case TargetW:
		return "w"
	}
	return fmt.Sprintf("Target(%d)", uint8(t))
}

// checkTarget rejects construction with zero or multiple targets. Getting the
// target wrong is a contract violation, not a runtime data error, so it is
// caught at construction.
func checkTarget(t Target) error {
	if bits.OnesCount8(uint8(t)) != 1 || t > TargetW {
		return fmt.Errorf("exactly one of X, y, w must be targeted, got %v", t)
	}
	return nil
}

// Transformer is a statistics-driven mapping over one of the dataset arrays.
type Transformer interface {
	// Affects reports which array the transformer rewrites.
	Affects() Target

	// Transform applies the mapping forward over a whole dataset,
	// producing a new dataset in dir.
	Transform(ds *dataset.DiskDataset, dir string) (*dataset.DiskDataset, error)

	// TransformArrays applies the mapping forward to raw (X, y, w) arrays.
	TransformArrays(X, Y, W [][]float64) ([][]float64, [][]float64, [][]float64, error)

	// Untransform reverses the mapping on an in-memory array, typically
	// model output. Transformers without an inverse return
	// ErrNotInvertible.
	Untransform(z [][]float64) ([][]float64, error)
}

// applyShardwise is the common forward path for transformers whose mapping is
// local to each row: it validates that the targeted array exists, then maps
// the dataset shard by shard.
func applyShardwise(t Transformer, ds *dataset.DiskDataset, dir string) (*dataset.DiskDataset, error) {
	if err := checkTransformable(t.Affects(), ds); err != nil {
		return nil, err
	}
	return ds.Transform(t.TransformArrays, dir)
}

// checkTransformable fails when the dataset genuinely lacks the targeted
// array.
func checkTransformable(target Target, ds *dataset.DiskDataset) error {
	if target != TargetY && target != TargetW {
		return nil
	}
	if ds.NumShards() == 0 {
		return fmt.Errorf("cannot transform %v: %w", target, dataset.ErrEmptyDataset)
	}
	sh, err := ds.GetShard(0)
	if err != nil {
		return err
	}
	if target == TargetY && sh.Y == nil {
		return fmt.Errorf("cannot transform y: dataset has no labels")
	}
	if target == TargetW && sh.W == nil {
		return fmt.Errorf("cannot transform w: dataset has no weights")
	}
	return nil
}

// UndoTransforms reverses every label-affecting transformer of a pipeline on
// y, in reverse application order: later transformers saw the output of
// earlier ones, so they must be undone first. Raw model output goes through
// this before being scored against untransformed ground truth.
func UndoTransforms(y [][]float64, transformers []Transformer) ([][]float64, error) {
	var err error
	for i := len(transformers) - 1; i >= 0; i-- {
		t := transformers[i]
		if t.Affects() != TargetY {
			continue
		}
		y, err = t.Untransform(y)
		if err != nil {
			return nil, err
		}
	}
	return y, nil
}

// GradUntransformer is implemented by transformers that can additionally
// reconstruct a de-normalized gradient from model output.
type GradUntransformer interface {
	UntransformGrad(grad, tasks [][]float64) ([][]float64, error)
}

// UndoGradTransforms reverses every label-affecting, gradient-capable
// transformer of a pipeline on grad, in reverse application order.
func UndoGradTransforms(grad, tasks [][]float64, transformers []Transformer) ([][]float64, error) {
	var err error
	for i := len(transformers) - 1; i >= 0; i-- {
		t, ok := transformers[i].(GradUntransformer)
		if !ok || transformers[i].Affects() != TargetY {
			continue
		}
		grad, err = t.UntransformGrad(grad, tasks)
		if err != nil {
			return nil, err
		}
	}
	return grad, nil
}
