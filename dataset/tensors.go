package dataset

import (
	"io"

	"github.com/gomlx/gomlx/pkg/core/tensors"
)

// Conversion of batches into gomlx tensors for consumption by training loops.
// Batches stay plain float64 matrices inside this package; the tensor types
// only appear at this edge, converted with tensors.FromAnyValue.

// ToGomlxTensors converts the batch's features and labels to gomlx tensors.
// The label tensor is nil for unlabeled batches.
func (b *Batch) ToGomlxTensors() (features, labels *tensors.Tensor, err error) {
	features = tensors.FromAnyValue(toFloat32(b.X))
	if b.Y != nil {
		labels = tensors.FromAnyValue(toFloat32(b.Y))
	}
	return features, labels, nil
}

func toFloat32(m [][]float64) [][]float32 {
	out := make([][]float32, len(m))
	for i, row := range m {
		r := make([]float32, len(row))
		for j, v := range row {
			r[j] = float32(v)
		}
		out[i] = r
	}
	return out
}

// TensorBatches wraps a BatchIterator so it can be driven directly by a gomlx
// training loop: Yield returns the next minibatch as tensors and io.EOF once
// the epoch is complete, Restart begins a fresh pass.
type TensorBatches struct {
	ds            *DiskDataset
	batchSize     int
	deterministic bool
	padBatches    bool
	it            *BatchIterator
}

// TensorBatches returns a gomlx-facing batch stream over the dataset.
func (d *DiskDataset) TensorBatches(batchSize int, deterministic, padBatches bool) *TensorBatches {
	return &TensorBatches{
		ds:            d,
		batchSize:     batchSize,
		deterministic: deterministic,
		padBatches:    padBatches,
		it:            d.IterBatches(batchSize, deterministic, padBatches),
	}
}

// Name identifies the dataset stream in training logs.
func (t *TensorBatches) Name() string {
	return "DiskDataset(" + t.ds.Dir() + ")"
}

// Yield returns the next batch of data as gomlx tensors. It returns io.EOF
// when the current pass over the dataset is exhausted.
func (t *TensorBatches) Yield() (spec any, inputs []*tensors.Tensor, labels []*tensors.Tensor, err error) {
	b, ok, err := t.it.Next()
	if err != nil {
		return nil, nil, nil, err
	}
	if !ok {
		return nil, nil, nil, io.EOF
	}
	in, lab, err := b.ToGomlxTensors()
	if err != nil {
		return nil, nil, nil, err
	}
	inputs = []*tensors.Tensor{in}
	if lab != nil {
		labels = []*tensors.Tensor{lab}
	}
	return nil, inputs, labels, nil
}

// Restart resets the stream for a new epoch. Randomized streams draw fresh
// shard and sample permutations.
func (t *TensorBatches) Restart() error {
	t.it = t.ds.IterBatches(t.batchSize, t.deterministic, t.padBatches)
	return nil
}
