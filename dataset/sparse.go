package dataset

import "fmt"

// sparseRow is a sparse representation of one 1-D feature vector: the indices
// of its nonzero entries and their values.
type sparseRow struct {
	indices []int
	values  []float64
}

func sparsify(row []float64) sparseRow {
	var sr sparseRow
	for i, v := range row {
		if v != 0 {
			sr.indices = append(sr.indices, i)
			sr.values = append(sr.values, v)
		}
	}
	return sr
}

func (sr sparseRow) densify(dim int) []float64 {
	row := make([]float64, dim)
	for i, idx := range sr.indices {
		row[idx] = sr.values[i]
	}
	return row
}

// SparseShuffle performs a true cross-shard shuffle for datasets whose
// feature rows are 1-D and highly sparse. Every shard's features are
// sparsified and concatenated with the dense labels, weights and ids into one
// in-memory view, a single global permutation is applied, and the rows are
// sliced back into the original shard boundaries and rewritten in place.
//
// The whole dataset's sparse features plus its dense labels, weights and ids
// must fit in memory at once; this is not safe for dense high-dimensional
// features, where ShuffleEachShard is the fallback.
func (d *DiskDataset) SparseShuffle() error {
	if d.NumShards() == 0 {
		return nil
	}

	var (
		rowsPerShard []int
		sparseX      []sparseRow
		ys, ws       [][]float64
		ids          []string
		hasY, hasW   bool
		hasIDs       bool
		numFeatures  = -1
	)
	it := d.IterShards()
	for {
		sh, ok, err := it.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		rowsPerShard = append(rowsPerShard, sh.Rows())
		for _, row := range sh.X {
			if numFeatures == -1 {
				numFeatures = len(row)
			}
			sparseX = append(sparseX, sparsify(row))
		}
		if sh.Y != nil {
			ys, hasY = append(ys, sh.Y...), true
		}
		if sh.W != nil {
			ws, hasW = append(ws, sh.W...), true
		}
		if sh.IDs != nil {
			ids, hasIDs = append(ids, sh.IDs...), true
		}
	}
	total := len(sparseX)
	if (hasY && len(ys) != total) || (hasW && len(ws) != total) || (hasIDs && len(ids) != total) {
		return fmt.Errorf("sparse shuffle: ragged arrays across shards")
	}

	perm := d.rng.Perm(total)
	start := 0
	for i, rows := range rowsPerShard {
		X := make([][]float64, rows)
		var Y, W [][]float64
		var shardIDs []string
		if hasY {
			Y = make([][]float64, rows)
		}
		if hasW {
			W = make([][]float64, rows)
		}
		if hasIDs {
			shardIDs = make([]string, rows)
		}
		for j := 0; j < rows; j++ {
			p := perm[start+j]
			X[j] = sparseX[p].densify(numFeatures)
			if hasY {
				Y[j] = ys[p]
			}
			if hasW {
				W[j] = ws[p]
			}
			if hasIDs {
				shardIDs[j] = ids[p]
			}
		}
		if err := d.SetShard(i, X, Y, W, shardIDs); err != nil {
			return err
		}
		start += rows
	}
	return nil
}
