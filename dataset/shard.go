package dataset

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// shardFileVersion is incremented when the on-disk shard array format changes.
const shardFileVersion = 1

// Shard holds one independently-stored chunk of a dataset as four parallel
// arrays. Y and W are nil for unlabeled shards; IDs may be nil as well. All
// present arrays share the same leading dimension.
type Shard struct {
	// X holds one feature vector per row.
	X [][]float64

	// Y holds one label per task per row (nil when the shard is unlabeled).
	Y [][]float64

	// W holds one weight per task per row (nil when the shard carries no
	// weights at all; see readShard for the missing-weights recovery).
	W [][]float64

	// IDs carries the external sample identifier of each row.
	IDs []string
}

// Rows returns the number of samples in the shard.
func (s *Shard) Rows() int {
	return len(s.X)
}

// arrayFile is the gob payload written for each float array of a shard.
type arrayFile struct {
	Version int
	Rows    [][]float64
}

// idListFile is the gob payload written for the id array of a shard.
type idListFile struct {
	Version int
	IDs     []string
}

// writeCompressed gob-encodes payload into path via a zstd writer. It writes
// to a temp file in the same directory and renames it into place so a partial
// write never leaves a truncated shard file behind.
func writeCompressed(path string, payload any) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp shard file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		tmp.Close()
		_ = os.Remove(tmpName)
	}()

	zw, err := zstd.NewWriter(tmp)
	if err != nil {
		return fmt.Errorf("create zstd writer: %w", err)
	}
	if err := gob.NewEncoder(zw).Encode(payload); err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("flush zstd stream: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp shard file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp shard file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename temp shard file: %w", err)
	}
	return nil
}

// readCompressed decodes a gob payload written by writeCompressed.
func readCompressed(path string, payload any) error {
	fh, err := os.Open(path)
	if err != nil {
		return err
	}
	defer fh.Close()

	zr, err := zstd.NewReader(fh)
	if err != nil {
		return fmt.Errorf("open zstd stream %s: %w", path, err)
	}
	defer zr.Close()

	if err := gob.NewDecoder(zr).Decode(payload); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func writeArray(dir, name string, rows [][]float64) error {
	return writeCompressed(filepath.Join(dir, name), &arrayFile{Version: shardFileVersion, Rows: rows})
}

func readArray(dir, name string) ([][]float64, error) {
	var af arrayFile
	if err := readCompressed(filepath.Join(dir, name), &af); err != nil {
		return nil, err
	}
	if af.Version != shardFileVersion {
		return nil, fmt.Errorf("shard file %s: version mismatch: file=%d expected=%d", name, af.Version, shardFileVersion)
	}
	return af.Rows, nil
}

func writeIDs(dir, name string, ids []string) error {
	return writeCompressed(filepath.Join(dir, name), &idListFile{Version: shardFileVersion, IDs: ids})
}

func readIDs(dir, name string) ([]string, error) {
	var f idListFile
	if err := readCompressed(filepath.Join(dir, name), &f); err != nil {
		return nil, err
	}
	if f.Version != shardFileVersion {
		return nil, fmt.Errorf("shard file %s: version mismatch: file=%d expected=%d", name, f.Version, shardFileVersion)
	}
	return f.IDs, nil
}

// checkParallel verifies that all present arrays share one leading dimension
// and returns it.
func checkParallel(X, Y, W [][]float64, ids []string) (int, error) {
	n := -1
	claim := func(what string, m int) error {
		if n == -1 {
			n = m
			return nil
		}
		if m != n {
			return fmt.Errorf("%s has %d rows, expected %d", what, m, n)
		}
		return nil
	}
	if X != nil {
		if err := claim("X", len(X)); err != nil {
			return 0, err
		}
	}
	if Y != nil {
		if err := claim("y", len(Y)); err != nil {
			return 0, err
		}
	}
	if W != nil {
		if err := claim("w", len(W)); err != nil {
			return 0, err
		}
	}
	if ids != nil {
		if err := claim("ids", len(ids)); err != nil {
			return 0, err
		}
	}
	if n == -1 {
		n = 0
	}
	return n, nil
}

// writeShard persists the present arrays of one shard as independent files
// under dir and returns the descriptor to record in the metadata index.
// Absent arrays are skipped and leave an empty file reference.
func writeShard(dir, basename string, tasks []string, X, Y, W [][]float64, ids []string) (ShardRef, error) {
	rows, err := checkParallel(X, Y, W, ids)
	if err != nil {
		return ShardRef{}, fmt.Errorf("shard %s: %w", basename, err)
	}

	ref := ShardRef{Basename: basename, TaskNames: tasks, Rows: rows}
	if X != nil {
		ref.XFile = basename + "-X.bin.zst"
		if err := writeArray(dir, ref.XFile, X); err != nil {
			return ShardRef{}, err
		}
	}
	if Y != nil {
		ref.YFile = basename + "-y.bin.zst"
		if err := writeArray(dir, ref.YFile, Y); err != nil {
			return ShardRef{}, err
		}
	}
	if W != nil {
		ref.WFile = basename + "-w.bin.zst"
		if err := writeArray(dir, ref.WFile, W); err != nil {
			return ShardRef{}, err
		}
	}
	if ids != nil {
		ref.IDsFile = basename + "-ids.bin.zst"
		if err := writeIDs(dir, ref.IDsFile, ids); err != nil {
			return ShardRef{}, err
		}
	}
	return ref, nil
}

// readShard loads the shard described by ref. A missing labels reference
// yields nil labels. A missing weights reference (or a recorded weights file
// that has since disappeared) while labels are present recovers as an
// all-ones weight array of the label shape; this is the only recovery policy
// for absent files.
func readShard(dir string, ref ShardRef) (*Shard, error) {
	sh := &Shard{}
	var err error

	if ref.XFile != "" {
		sh.X, err = readArray(dir, ref.XFile)
		if err != nil {
			return nil, fmt.Errorf("shard %s: read X: %w", ref.Basename, err)
		}
	}
	if ref.YFile != "" {
		sh.Y, err = readArray(dir, ref.YFile)
		if err != nil {
			return nil, fmt.Errorf("shard %s: read y: %w", ref.Basename, err)
		}
	}
	if ref.WFile != "" {
		sh.W, err = readArray(dir, ref.WFile)
		if err != nil {
			if os.IsNotExist(err) && sh.Y != nil {
				sh.W = onesLike(sh.Y)
			} else {
				return nil, fmt.Errorf("shard %s: read w: %w", ref.Basename, err)
			}
		}
	} else if sh.Y != nil {
		sh.W = onesLike(sh.Y)
	}
	if ref.IDsFile != "" {
		sh.IDs, err = readIDs(dir, ref.IDsFile)
		if err != nil {
			return nil, fmt.Errorf("shard %s: read ids: %w", ref.Basename, err)
		}
	}
	return sh, nil
}

// onesLike builds an all-ones matrix with the shape of m.
func onesLike(m [][]float64) [][]float64 {
	out := make([][]float64, len(m))
	for i := range m {
		row := make([]float64, len(m[i]))
		for j := range row {
			row[j] = 1
		}
		out[i] = row
	}
	return out
}
