package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Reshard rewrites the dataset with the given target shard size. Rows are
// streamed through fixed-size buffers, so peak memory stays at O(shard size)
// regardless of dataset size; total row count and relative row order are
// unchanged, only shard boundaries move.
//
// The replacement is built in a sibling temp directory and swapped in by
// removing the old directory and renaming the new one. A crash between those
// two steps leaves the dataset directory missing.
func (d *DiskDataset) Reshard(shardSize int) error {
	if shardSize <= 0 {
		return fmt.Errorf("invalid shard size %d", shardSize)
	}
	tmpDir, err := os.MkdirTemp(filepath.Dir(d.dir), ".reshard-*")
	if err != nil {
		return fmt.Errorf("create reshard dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	var (
		bufX, bufY, bufW   [][]float64
		bufIDs             []string
		hasY, hasW, hasIDs bool
		shards             = d.IterShards()
		done               bool
		flushedTail        bool
	)
	source := func() (*RawShard, error) {
		for !done && len(bufX) <= shardSize {
			sh, ok, err := shards.Next()
			if err != nil {
				return nil, err
			}
			if !ok {
				done = true
				break
			}
			bufX = append(bufX, sh.X...)
			if sh.Y != nil {
				bufY, hasY = append(bufY, sh.Y...), true
			}
			if sh.W != nil {
				bufW, hasW = append(bufW, sh.W...), true
			}
			if sh.IDs != nil {
				bufIDs, hasIDs = append(bufIDs, sh.IDs...), true
			}
		}
		if len(bufX) > shardSize {
			raw := &RawShard{X: bufX[:shardSize]}
			bufX = bufX[shardSize:]
			if hasY {
				raw.Y, bufY = bufY[:shardSize], bufY[shardSize:]
			}
			if hasW {
				raw.W, bufW = bufW[:shardSize], bufW[shardSize:]
			}
			if hasIDs {
				raw.IDs, bufIDs = bufIDs[:shardSize], bufIDs[shardSize:]
			}
			return raw, nil
		}
		// Spillover shard; may be smaller than shardSize or even empty.
		if !flushedTail {
			flushedTail = true
			raw := &RawShard{X: bufX}
			if hasY {
				raw.Y = bufY
			}
			if hasW {
				raw.W = bufW
			}
			if hasIDs {
				raw.IDs = bufIDs
			}
			return raw, nil
		}
		return nil, nil
	}

	resharded, err := Create(source, tmpDir, d.tasks)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(d.dir); err != nil {
		return fmt.Errorf("remove old dataset dir: %w", err)
	}
	if err := os.Rename(tmpDir, d.dir); err != nil {
		return fmt.Errorf("swap resharded dir into place: %w", err)
	}
	d.meta = resharded.meta
	return nil
}

// Select builds a new dataset in dir containing the rows at the given global
// indices. Indices are sorted before translation; an empty index set
// short-circuits to an empty dataset. Shards are walked once with a running
// row offset and the walk stops as soon as every index has been consumed.
func (d *DiskDataset) Select(indices []int, dir string) (*DiskDataset, error) {
	if len(indices) == 0 {
		return Create(SliceSource(), dir, d.tasks)
	}
	sorted := append([]int(nil), indices...)
	sort.Ints(sorted)

	var (
		shards   = d.IterShards()
		offset   = 0
		consumed = 0
	)
	source := func() (*RawShard, error) {
		for consumed < len(sorted) {
			sh, ok, err := shards.Next()
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, fmt.Errorf("index %d beyond dataset length %d", sorted[consumed], offset)
			}
			shardLen := sh.Rows()
			// Maximal run of requested indices that land in this shard.
			take := 0
			for consumed+take < len(sorted) && sorted[consumed+take] < offset+shardLen {
				take++
			}
			if take == 0 {
				offset += shardLen
				continue
			}
			raw := &RawShard{}
			for _, gi := range sorted[consumed : consumed+take] {
				li := gi - offset
				raw.X = append(raw.X, sh.X[li])
				if sh.Y != nil {
					raw.Y = append(raw.Y, sh.Y[li])
				}
				if sh.W != nil {
					raw.W = append(raw.W, sh.W[li])
				}
				if sh.IDs != nil {
					raw.IDs = append(raw.IDs, sh.IDs[li])
				}
			}
			consumed += take
			offset += shardLen
			return raw, nil
		}
		return nil, nil
	}
	return Create(source, dir, d.tasks)
}

// Subset builds a new dataset in dir keeping only the listed shards, content
// unchanged, in original index order.
func (d *DiskDataset) Subset(shardNums []int, dir string) (*DiskDataset, error) {
	keep := make(map[int]bool, len(shardNums))
	for _, n := range shardNums {
		keep[n] = true
	}
	next := 0
	source := func() (*RawShard, error) {
		for ; next < d.NumShards(); next++ {
			if !keep[next] {
				continue
			}
			sh, err := d.GetShard(next)
			if err != nil {
				return nil, err
			}
			next++
			return &RawShard{X: sh.X, Y: sh.Y, W: sh.W, IDs: sh.IDs}, nil
		}
		return nil, nil
	}
	return Create(source, dir, d.tasks)
}

// Merge concatenates the given datasets into a new one in dir, one shard per
// source dataset in list order. Each source is fully materialized in memory
// while it is copied.
func Merge(datasets []*DiskDataset, dir string) (*DiskDataset, error) {
	if len(datasets) == 0 {
		return nil, fmt.Errorf("no datasets to merge")
	}
	next := 0
	source := func() (*RawShard, error) {
		if next >= len(datasets) {
			return nil, nil
		}
		src := datasets[next]
		next++
		X, err := src.X()
		if err != nil {
			return nil, err
		}
		Y, err := src.Y()
		if err != nil {
			return nil, err
		}
		W, err := src.W()
		if err != nil {
			return nil, err
		}
		ids, err := src.IDs()
		if err != nil {
			return nil, err
		}
		return &RawShard{X: X, Y: Y, W: W, IDs: ids}, nil
	}
	return Create(source, dir, datasets[0].tasks)
}

// ShuffleShards randomly permutes the shard order recorded in the metadata
// index and persists it. Shard contents are untouched; only traversal order
// changes.
func (d *DiskDataset) ShuffleShards() error {
	d.rng.Shuffle(len(d.meta.Shards), func(i, j int) {
		d.meta.Shards[i], d.meta.Shards[j] = d.meta.Shards[j], d.meta.Shards[i]
	})
	return saveMetadata(d.dir, d.meta)
}

// ShuffleEachShard independently permutes the rows within every shard and
// rewrites it in place. Per-shard row counts are preserved.
func (d *DiskDataset) ShuffleEachShard() error {
	for i, ref := range d.meta.Shards {
		sh, err := d.GetShard(i)
		if err != nil {
			return err
		}
		perm := d.rng.Perm(sh.Rows())
		shuffled := &Shard{}
		for _, p := range perm {
			shuffled.X = append(shuffled.X, sh.X[p])
			if sh.Y != nil {
				shuffled.Y = append(shuffled.Y, sh.Y[p])
			}
			if sh.W != nil {
				shuffled.W = append(shuffled.W, sh.W[p])
			}
			if sh.IDs != nil {
				shuffled.IDs = append(shuffled.IDs, sh.IDs[p])
			}
		}
		if _, err := writeShard(d.dir, ref.Basename, d.tasks, shuffled.X, shuffled.Y, shuffled.W, shuffled.IDs); err != nil {
			return err
		}
	}
	return nil
}

// Transform builds a new dataset in dir by applying fn shard-by-shard to the
// (X, y, w) arrays; ids pass through untouched and the task list is shared.
func (d *DiskDataset) Transform(fn func(X, Y, W [][]float64) ([][]float64, [][]float64, [][]float64, error), dir string) (*DiskDataset, error) {
	shards := d.IterShards()
	source := func() (*RawShard, error) {
		sh, ok, err := shards.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
		newX, newY, newW, err := fn(sh.X, sh.Y, sh.W)
		if err != nil {
			return nil, err
		}
		return &RawShard{X: newX, Y: newY, W: newW, IDs: sh.IDs}, nil
	}
	return Create(source, dir, d.tasks)
}
