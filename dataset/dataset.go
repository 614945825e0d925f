// Package dataset implements an out-of-core dataset store. A dataset is a
// directory of shards - independently stored chunks of rows, each holding
// parallel feature, label, weight and id arrays - plus an ordered metadata
// index that defines shard traversal order.
//
// Datasets that do not fit in memory are streamed shard by shard; only the
// explicitly whole-dataset operations (Merge, SparseShuffle, the bulk
// X/Y/W/IDs accessors) materialize everything at once.
package dataset

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"time"
)

// ErrEmptyDataset is returned by queries that cannot be serviced on a dataset
// with no rows, such as shape or shard-size lookups.
var ErrEmptyDataset = errors.New("dataset is empty")

// RawShard is one unpersisted shard produced by a featurization stage. Y, W
// and IDs may be nil.
type RawShard struct {
	X   [][]float64
	Y   [][]float64
	W   [][]float64
	IDs []string
}

// ShardSource produces raw shards one at a time. It returns nil when the
// source is exhausted. Sources are finite; Create consumes one to the end.
type ShardSource func() (*RawShard, error)

// SliceSource adapts a fixed slice of raw shards into a ShardSource.
func SliceSource(shards ...RawShard) ShardSource {
	i := 0
	return func() (*RawShard, error) {
		if i >= len(shards) {
			return nil, nil
		}
		s := shards[i]
		i++
		return &s, nil
	}
}

// DiskDataset is a dataset stored as a set of shard files on disk. It owns
// its directory exclusively while open; there is no support for concurrent
// writers.
type DiskDataset struct {
	dir   string
	tasks []string
	meta  Metadata
	rng   *rand.Rand
}

// Create builds a new dataset in dir by consuming source to exhaustion,
// persisting one shard per produced tuple in arrival order, then writing the
// metadata index. An immediately-exhausted source yields a legal zero-shard
// dataset.
func Create(source ShardSource, dir string, tasks []string) (*DiskDataset, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create dataset dir %s: %w", dir, err)
	}

	meta := Metadata{Tasks: tasks}
	for shardNum := 0; ; shardNum++ {
		raw, err := source()
		if err != nil {
			return nil, fmt.Errorf("shard source: %w", err)
		}
		if raw == nil {
			break
		}
		basename := fmt.Sprintf("shard-%d", shardNum)
		ref, err := writeShard(dir, basename, tasks, raw.X, raw.Y, raw.W, raw.IDs)
		if err != nil {
			return nil, err
		}
		meta.Shards = append(meta.Shards, ref)
	}
	if err := saveMetadata(dir, meta); err != nil {
		return nil, err
	}
	return &DiskDataset{
		dir:   dir,
		tasks: tasks,
		meta:  meta,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// Open loads an existing dataset from dir. It fails when no metadata index is
// present.
func Open(dir string) (*DiskDataset, error) {
	meta, err := loadMetadata(dir)
	if err != nil {
		return nil, err
	}
	return &DiskDataset{
		dir:   dir,
		tasks: meta.Tasks,
		meta:  meta,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// FromArrays builds a single-shard dataset from in-memory arrays. Missing
// weights default to all ones, missing ids to the row numbers, and missing
// task names to the task indices.
func FromArrays(X, Y, W [][]float64, ids []string, tasks []string, dir string) (*DiskDataset, error) {
	if Y != nil && W == nil {
		W = onesLike(Y)
	}
	if ids == nil {
		ids = make([]string, len(X))
		for i := range ids {
			ids[i] = strconv.Itoa(i)
		}
	}
	if tasks == nil && Y != nil && len(Y) > 0 {
		tasks = make([]string, len(Y[0]))
		for i := range tasks {
			tasks[i] = strconv.Itoa(i)
		}
	}
	return Create(SliceSource(RawShard{X: X, Y: Y, W: W, IDs: ids}), dir, tasks)
}

// Seed reseeds the random generator used for shuffling and randomized batch
// iteration.
func (d *DiskDataset) Seed(seed int64) {
	d.rng = rand.New(rand.NewSource(seed))
}

// Dir returns the directory this dataset lives in.
func (d *DiskDataset) Dir() string {
	return d.dir
}

// GetTaskNames returns the ordered learning tasks of this dataset.
func (d *DiskDataset) GetTaskNames() []string {
	return d.tasks
}

// Metadata returns a copy of the shard index, in traversal order.
func (d *DiskDataset) Metadata() Metadata {
	meta := Metadata{Tasks: append([]string(nil), d.meta.Tasks...)}
	meta.Shards = append(meta.Shards, d.meta.Shards...)
	return meta
}

// NumShards returns the number of shards in the dataset.
func (d *DiskDataset) NumShards() int {
	return len(d.meta.Shards)
}

// Len returns the total number of rows across all shards.
func (d *DiskDataset) Len() int {
	total := 0
	for _, ref := range d.meta.Shards {
		total += ref.Rows
	}
	return total
}

// GetShard reads the i-th shard from disk.
func (d *DiskDataset) GetShard(i int) (*Shard, error) {
	if i < 0 || i >= len(d.meta.Shards) {
		return nil, fmt.Errorf("shard index %d out of range [0, %d)", i, len(d.meta.Shards))
	}
	return readShard(d.dir, d.meta.Shards[i])
}

// AddShard appends a new shard to the dataset and re-persists the index.
func (d *DiskDataset) AddShard(X, Y, W [][]float64, ids []string) error {
	basename := fmt.Sprintf("shard-%d", len(d.meta.Shards))
	ref, err := writeShard(d.dir, basename, d.tasks, X, Y, W, ids)
	if err != nil {
		return err
	}
	d.meta.Shards = append(d.meta.Shards, ref)
	return saveMetadata(d.dir, d.meta)
}

// SetShard overwrites the i-th shard in place and re-persists the index.
func (d *DiskDataset) SetShard(i int, X, Y, W [][]float64, ids []string) error {
	if i < 0 || i >= len(d.meta.Shards) {
		return fmt.Errorf("shard index %d out of range [0, %d)", i, len(d.meta.Shards))
	}
	ref, err := writeShard(d.dir, d.meta.Shards[i].Basename, d.tasks, X, Y, W, ids)
	if err != nil {
		return err
	}
	d.meta.Shards[i] = ref
	return saveMetadata(d.dir, d.meta)
}

// GetDataShape returns the feature dimension of a single row.
func (d *DiskDataset) GetDataShape() (int, error) {
	if len(d.meta.Shards) == 0 {
		return 0, ErrEmptyDataset
	}
	sh, err := d.GetShard(0)
	if err != nil {
		return 0, err
	}
	if len(sh.X) == 0 {
		return 0, ErrEmptyDataset
	}
	return len(sh.X[0]), nil
}

// GetShape returns the overall dimensions of the dataset arrays: total row
// count, feature width, and the task width of labels and weights. tasks is 0
// for unlabeled datasets.
func (d *DiskDataset) GetShape() (rows, features, tasks int, err error) {
	features, err = d.GetDataShape()
	if err != nil {
		return 0, 0, 0, err
	}
	sh, err := d.GetShard(0)
	if err != nil {
		return 0, 0, 0, err
	}
	if sh.Y != nil && len(sh.Y) > 0 {
		tasks = len(sh.Y[0])
	}
	return d.Len(), features, tasks, nil
}

// GetShardSize returns the row count of the first shard, which is the nominal
// shard size of the dataset.
func (d *DiskDataset) GetShardSize() (int, error) {
	if len(d.meta.Shards) == 0 {
		return 0, ErrEmptyDataset
	}
	return d.meta.Shards[0].Rows, nil
}

// X materializes the whole feature matrix in memory.
func (d *DiskDataset) X() ([][]float64, error) {
	var out [][]float64
	it := d.IterShards()
	for {
		sh, ok, err := it.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		out = append(out, sh.X...)
	}
	return out, nil
}

// Y materializes the whole label matrix in memory.
func (d *DiskDataset) Y() ([][]float64, error) {
	var out [][]float64
	it := d.IterShards()
	for {
		sh, ok, err := it.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		out = append(out, sh.Y...)
	}
	return out, nil
}

// W materializes the whole weight matrix in memory.
func (d *DiskDataset) W() ([][]float64, error) {
	var out [][]float64
	it := d.IterShards()
	for {
		sh, ok, err := it.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		out = append(out, sh.W...)
	}
	return out, nil
}

// IDs materializes all sample identifiers in memory.
func (d *DiskDataset) IDs() ([]string, error) {
	var out []string
	it := d.IterShards()
	for {
		sh, ok, err := it.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		out = append(out, sh.IDs...)
	}
	return out, nil
}

// Move relocates the dataset directory.
func (d *DiskDataset) Move(newDir string) error {
	if err := os.Rename(d.dir, newDir); err != nil {
		return fmt.Errorf("move dataset to %s: %w", newDir, err)
	}
	d.dir = newDir
	return nil
}
