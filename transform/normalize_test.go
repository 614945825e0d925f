package transform

import (
	"math"
	"testing"

	"github.com/codemarsyu/Adaptive-Graph-Convolutional-Network/dataset"
)

func TestNormalization_LabelStats(t *testing.T) {
	// Labels per task: {1,3} has mean 2 std 1; {5,5} is constant.
	Y := [][]float64{{1, 5}, {3, 5}}
	ds := makeDataset(t, [][]float64{{0}, {0}}, Y, nil)

	n, err := NewNormalization(TargetY, ds)
	if err != nil {
		t.Fatalf("NewNormalization failed: %v", err)
	}
	out, err := n.Transform(ds, outDir(t))
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}
	gotY, err := out.Y()
	if err != nil {
		t.Fatalf("Y failed: %v", err)
	}
	// The constant task has its zero deviation clamped to 1, so it centers
	// to 0 instead of dividing by 0.
	matClose(t, "normalized labels", gotY, [][]float64{{-1, 0}, {1, 0}}, 1e-12)

	back, err := n.Untransform(gotY)
	if err != nil {
		t.Fatalf("Untransform failed: %v", err)
	}
	matClose(t, "restored labels", back, Y, 1e-12)
}

func TestNormalization_FeatureZeroVariance(t *testing.T) {
	// A constant feature column divides by a zero deviation; the non-finite
	// result is replaced with 0 rather than clamped.
	X := [][]float64{{2, 1}, {2, 3}}
	ds := makeDataset(t, X, [][]float64{{0}, {0}}, nil)

	n, err := NewNormalization(TargetX, ds)
	if err != nil {
		t.Fatalf("NewNormalization failed: %v", err)
	}
	gotX, _, _, err := n.TransformArrays(X, nil, nil)
	if err != nil {
		t.Fatalf("TransformArrays failed: %v", err)
	}
	matClose(t, "normalized features", gotX, [][]float64{{0, -1}, {0, 1}}, 1e-12)
}

func TestNormalization_RejectsWeights(t *testing.T) {
	ds := makeDataset(t, [][]float64{{1}}, [][]float64{{1}}, nil)
	if _, err := NewNormalization(TargetW, ds); err == nil {
		t.Fatalf("expected error normalizing weights")
	}
}

func TestNormalization_EmptyDataset(t *testing.T) {
	dir := outDir(t)
	ds, err := dataset.Create(dataset.SliceSource(), dir, nil)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := NewNormalization(TargetX, ds); err == nil {
		t.Fatalf("expected error on empty dataset")
	}
}

func TestNormalization_GradientUntransform(t *testing.T) {
	// Task 0 is the energy, task 1 its single gradient component.
	Y := [][]float64{{1, 2}, {3, 6}}
	ds := makeDataset(t, [][]float64{{0}, {0}}, Y, nil)

	n, err := NewNormalization(TargetY, ds, WithGradientStats())
	if err != nil {
		t.Fatalf("NewNormalization failed: %v", err)
	}

	// Hand-computed: energy mean 2 std 1, grad mean 4, E[y*dy] = (2+18)/2 = 10.
	// gradVar = (10 - 2*4)/1 = 2.
	grad := [][]float64{{0.5}}
	tasks := [][]float64{{1, 0}} // normalized energy 1, so raw energy 3
	got, err := n.UntransformGrad(grad, tasks)
	if err != nil {
		t.Fatalf("UntransformGrad failed: %v", err)
	}
	want := 1*2.0 + 1*0.5 + 4
	if math.Abs(got[0][0]-want) > 1e-12 {
		t.Fatalf("gradient = %v, want %v", got[0][0], want)
	}
}

func TestNormalization_GradientStatsRequired(t *testing.T) {
	Y := [][]float64{{1, 2}, {3, 6}}
	ds := makeDataset(t, [][]float64{{0}, {0}}, Y, nil)
	n, err := NewNormalization(TargetY, ds)
	if err != nil {
		t.Fatalf("NewNormalization failed: %v", err)
	}
	if _, err := n.UntransformGrad([][]float64{{0}}, [][]float64{{0, 0}}); err == nil {
		t.Fatalf("expected error without gradient statistics")
	}
}
