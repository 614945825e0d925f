package transform

import (
	"errors"
	"math"
	"path/filepath"
	"testing"

	"github.com/codemarsyu/Adaptive-Graph-Convolutional-Network/dataset"
)

// makeDataset persists a labeled dataset for transform tests.
func makeDataset(t *testing.T, X, Y, W [][]float64) *dataset.DiskDataset {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "ds")
	ds, err := dataset.FromArrays(X, Y, W, nil, nil, dir)
	if err != nil {
		t.Fatalf("FromArrays failed: %v", err)
	}
	return ds
}

func outDir(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "out")
}

func matClose(t *testing.T, what string, got, want [][]float64, tol float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s: got %d rows, want %d", what, len(got), len(want))
	}
	for i := range want {
		if len(got[i]) != len(want[i]) {
			t.Fatalf("%s: row %d has %d cols, want %d", what, i, len(got[i]), len(want[i]))
		}
		for j := range want[i] {
			if math.Abs(got[i][j]-want[i][j]) > tol {
				t.Fatalf("%s: [%d][%d] = %v, want %v", what, i, j, got[i][j], want[i][j])
			}
		}
	}
}

func TestTargetValidation(t *testing.T) {
	if _, err := NewClipping(TargetX|TargetY, 5); err == nil {
		t.Fatalf("expected error for multiple targets")
	}
	if _, err := NewClipping(0, 5); err == nil {
		t.Fatalf("expected error for no target")
	}
	if _, err := NewClipping(TargetW, 5); err == nil {
		t.Fatalf("expected error for clipping weights")
	}
	if _, err := NewLog(TargetW, nil); err == nil {
		t.Fatalf("expected error for log on weights")
	}
}

func TestTransformY_FailsWithoutLabels(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "unlabeled")
	ds, err := dataset.Create(dataset.SliceSource(dataset.RawShard{X: [][]float64{{1}, {2}}}), dir, nil)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	clip, err := NewClipping(TargetY, 5)
	if err != nil {
		t.Fatalf("NewClipping failed: %v", err)
	}
	if _, err := clip.Transform(ds, outDir(t)); err == nil {
		t.Fatalf("expected error transforming labels of an unlabeled dataset")
	}
}

// A label pipeline is undone in reverse order: the normalization saw
// log-scaled labels, so it must be removed before the log is.
func TestUndoTransforms_ReverseOrder(t *testing.T) {
	X := [][]float64{{1}, {2}, {3}, {4}}
	Y := [][]float64{{0}, {3}, {10}, {50}}
	ds := makeDataset(t, X, Y, nil)
	origY, err := ds.Y()
	if err != nil {
		t.Fatalf("Y failed: %v", err)
	}

	logT, err := NewLog(TargetY, nil)
	if err != nil {
		t.Fatalf("NewLog failed: %v", err)
	}
	ds1, err := logT.Transform(ds, outDir(t))
	if err != nil {
		t.Fatalf("log Transform failed: %v", err)
	}
	normT, err := NewNormalization(TargetY, ds1)
	if err != nil {
		t.Fatalf("NewNormalization failed: %v", err)
	}
	ds2, err := normT.Transform(ds1, outDir(t))
	if err != nil {
		t.Fatalf("normalization Transform failed: %v", err)
	}

	pred, err := ds2.Y()
	if err != nil {
		t.Fatalf("Y failed: %v", err)
	}
	undone, err := UndoTransforms(pred, []Transformer{logT, normT})
	if err != nil {
		t.Fatalf("UndoTransforms failed: %v", err)
	}
	matClose(t, "undone labels", undone, origY, 1e-9)
}

func TestUndoTransforms_SkipsNonLabelTransforms(t *testing.T) {
	Y := [][]float64{{1}, {0}}
	ds := makeDataset(t, [][]float64{{1}, {2}}, Y, nil)

	bal, err := NewBalancing(ds)
	if err != nil {
		t.Fatalf("NewBalancing failed: %v", err)
	}
	// Balancing affects weights only, so the pipeline is a no-op on labels.
	undone, err := UndoTransforms(Y, []Transformer{bal})
	if err != nil {
		t.Fatalf("UndoTransforms failed: %v", err)
	}
	matClose(t, "labels", undone, Y, 0)
}

func TestUndoTransforms_PropagatesNotInvertible(t *testing.T) {
	clip, err := NewClipping(TargetY, 5)
	if err != nil {
		t.Fatalf("NewClipping failed: %v", err)
	}
	if _, err := UndoTransforms([][]float64{{1}}, []Transformer{clip}); !errors.Is(err, ErrNotInvertible) {
		t.Fatalf("got %v, want ErrNotInvertible", err)
	}
}
