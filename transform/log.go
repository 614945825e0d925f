package transform

import (
	"fmt"
	"math"

	"github.com/codemarsyu/Adaptive-Graph-Convolutional-Network/dataset"
)

// Log applies log(v+1) to selected columns of the targeted array, or to every
// column when none are selected. The reverse applies exp(v)-1 to the same
// columns; unselected columns pass through unchanged in both directions.
type Log struct {
	target  Target
	columns map[int]bool // nil means all columns
}

// NewLog builds a log transform for features or labels. columns selects which
// columns to rescale; nil or empty selects all of them.
func NewLog(target Target, columns []int) (*Log, error) {
	if err := checkTarget(target); err != nil {
		return nil, err
	}
	if target == TargetW {
		return nil, fmt.Errorf("log transform cannot target w")
	}
	l := &Log{target: target}
	if len(columns) > 0 {
		l.columns = make(map[int]bool, len(columns))
		for _, c := range columns {
			l.columns[c] = true
		}
	}
	return l, nil
}

// Affects reports the targeted array.
func (l *Log) Affects() Target { return l.target }

// Transform log-scales the targeted array over the whole dataset, writing the
// result to dir.
func (l *Log) Transform(ds *dataset.DiskDataset, dir string) (*dataset.DiskDataset, error) {
	return applyShardwise(l, ds, dir)
}

func (l *Log) mapColumns(m [][]float64, fn func(float64) float64) [][]float64 {
	out := make([][]float64, len(m))
	for i, row := range m {
		r := make([]float64, len(row))
		for j, v := range row {
			if l.columns == nil || l.columns[j] {
				r[j] = fn(v)
			} else {
				r[j] = v
			}
		}
		out[i] = r
	}
	return out
}

// TransformArrays applies log(v+1) to the selected columns of the targeted
// array.
func (l *Log) TransformArrays(X, Y, W [][]float64) ([][]float64, [][]float64, [][]float64, error) {
	forward := func(v float64) float64 { return math.Log(v + 1) }
	if l.target == TargetX {
		X = l.mapColumns(X, forward)
	} else {
		Y = l.mapColumns(Y, forward)
	}
	return X, Y, W, nil
}

// Untransform applies exp(v)-1 to the selected columns of z.
func (l *Log) Untransform(z [][]float64) ([][]float64, error) {
	return l.mapColumns(z, func(v float64) float64 { return math.Exp(v) - 1 }), nil
}
