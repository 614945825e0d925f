package transform

import (
	"errors"
	"testing"
)

func TestClipping(t *testing.T) {
	X := [][]float64{{-10, -2, 0, 2, 10}}
	clip, err := NewClipping(TargetX, 3)
	if err != nil {
		t.Fatalf("NewClipping failed: %v", err)
	}
	got, _, _, err := clip.TransformArrays(X, nil, nil)
	if err != nil {
		t.Fatalf("TransformArrays failed: %v", err)
	}
	matClose(t, "clipped", got, [][]float64{{-3, -2, 0, 2, 3}}, 0)

	if _, err := clip.Untransform(got); !errors.Is(err, ErrNotInvertible) {
		t.Fatalf("got %v, want ErrNotInvertible", err)
	}
	if _, err := NewClipping(TargetX, 0); err == nil {
		t.Fatalf("expected error for non-positive bound")
	}
}

func TestClipping_Dataset(t *testing.T) {
	ds := makeDataset(t, [][]float64{{100}, {1}}, [][]float64{{7}, {7}}, nil)
	clip, err := NewClipping(TargetX, 5)
	if err != nil {
		t.Fatalf("NewClipping failed: %v", err)
	}
	out, err := clip.Transform(ds, outDir(t))
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}
	gotX, err := out.X()
	if err != nil {
		t.Fatalf("X failed: %v", err)
	}
	matClose(t, "clipped features", gotX, [][]float64{{5}, {1}}, 0)
	gotY, err := out.Y()
	if err != nil {
		t.Fatalf("Y failed: %v", err)
	}
	matClose(t, "untouched labels", gotY, [][]float64{{7}, {7}}, 0)
}

func TestLog_Roundtrip(t *testing.T) {
	X := [][]float64{{0, 3}, {1, 7}}
	l, err := NewLog(TargetX, nil)
	if err != nil {
		t.Fatalf("NewLog failed: %v", err)
	}
	fwd, _, _, err := l.TransformArrays(X, nil, nil)
	if err != nil {
		t.Fatalf("TransformArrays failed: %v", err)
	}
	if fwd[0][0] != 0 {
		t.Fatalf("log(0+1) = %v, want 0", fwd[0][0])
	}
	back, err := l.Untransform(fwd)
	if err != nil {
		t.Fatalf("Untransform failed: %v", err)
	}
	matClose(t, "roundtrip", back, X, 1e-12)
}

func TestLog_SelectedColumns(t *testing.T) {
	Y := [][]float64{{3, 3}}
	l, err := NewLog(TargetY, []int{1})
	if err != nil {
		t.Fatalf("NewLog failed: %v", err)
	}
	_, fwd, _, err := l.TransformArrays(nil, Y, nil)
	if err != nil {
		t.Fatalf("TransformArrays failed: %v", err)
	}
	if fwd[0][0] != 3 {
		t.Fatalf("unselected column changed: %v", fwd[0][0])
	}
	if fwd[0][1] == 3 {
		t.Fatalf("selected column unchanged")
	}
	back, err := l.Untransform(fwd)
	if err != nil {
		t.Fatalf("Untransform failed: %v", err)
	}
	matClose(t, "roundtrip", back, Y, 1e-12)
}

func TestPower_ExpandAndInvert(t *testing.T) {
	X := [][]float64{{2, 3}}
	p, err := NewPower(TargetX, []float64{1, 2})
	if err != nil {
		t.Fatalf("NewPower failed: %v", err)
	}
	got, _, _, err := p.TransformArrays(X, nil, nil)
	if err != nil {
		t.Fatalf("TransformArrays failed: %v", err)
	}
	matClose(t, "expanded", got, [][]float64{{2, 3, 4, 9}}, 1e-12)

	back, err := p.Untransform(got)
	if err != nil {
		t.Fatalf("Untransform failed: %v", err)
	}
	matClose(t, "inverted", back, X, 1e-12)
}

func TestPower_SinglePowerInverse(t *testing.T) {
	Y := [][]float64{{4}, {9}}
	p, err := NewPower(TargetY, []float64{2})
	if err != nil {
		t.Fatalf("NewPower failed: %v", err)
	}
	_, fwd, _, err := p.TransformArrays(nil, Y, nil)
	if err != nil {
		t.Fatalf("TransformArrays failed: %v", err)
	}
	matClose(t, "squared", fwd, [][]float64{{16}, {81}}, 1e-12)
	back, err := p.Untransform(fwd)
	if err != nil {
		t.Fatalf("Untransform failed: %v", err)
	}
	matClose(t, "roundtrip", back, Y, 1e-12)
}

func TestPower_NeedsPowers(t *testing.T) {
	if _, err := NewPower(TargetX, nil); err == nil {
		t.Fatalf("expected error for empty power list")
	}
}
