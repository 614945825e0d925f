package dataset

import (
	"path/filepath"
	"testing"
)

func collectBatches(t *testing.T, it *BatchIterator) []*Batch {
	t.Helper()
	var batches []*Batch
	for {
		b, ok, err := it.Next()
		if err != nil {
			t.Fatalf("batch iteration failed: %v", err)
		}
		if !ok {
			return batches
		}
		batches = append(batches, b)
	}
}

func TestIterShards_Restartable(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ds")
	ds := makeDataset(t, dir, 2, 3)

	for pass := 0; pass < 2; pass++ {
		it := ds.IterShards()
		var rows int
		for {
			sh, ok, err := it.Next()
			if err != nil {
				t.Fatalf("pass %d: %v", pass, err)
			}
			if !ok {
				break
			}
			rows += sh.Rows()
		}
		if rows != 5 {
			t.Fatalf("pass %d saw %d rows, want 5", pass, rows)
		}
	}
}

func TestIterSamples_RowOrderAndValues(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ds")
	ds := makeDataset(t, dir, 2, 2)

	it := ds.IterSamples()
	for want := 0; want < 4; want++ {
		s, ok, err := it.Next()
		if err != nil {
			t.Fatalf("Next failed: %v", err)
		}
		if !ok {
			t.Fatalf("iterator exhausted after %d samples, want 4", want)
		}
		if s.X[0] != float64(want) || s.Y[0] != float64(want) || s.W[0] != 1 {
			t.Fatalf("sample %d = %+v", want, s)
		}
		if !s.HasID || s.ID != allIDs(t, ds)[want] {
			t.Fatalf("sample %d id = %q", want, s.ID)
		}
	}
	if _, ok, _ := it.Next(); ok {
		t.Fatalf("iterator yielded more than 4 samples")
	}
}

func TestIterSamples_AbsentFieldsAreNil(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ds")
	ds, err := Create(SliceSource(RawShard{X: [][]float64{{1}, {2}}}), dir, nil)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	it := ds.IterSamples()
	s, ok, err := it.Next()
	if err != nil || !ok {
		t.Fatalf("Next: ok=%v err=%v", ok, err)
	}
	if s.Y != nil || s.W != nil || s.HasID {
		t.Fatalf("expected absent fields, got %+v", s)
	}
}

func TestIterBatches_NoPadCoversEveryRowOnce(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ds")
	ds := makeDataset(t, dir, 5, 3)
	ds.Seed(7)

	for _, batchSize := range []int{1, 2, 3, 5, 8, 100} {
		for _, deterministic := range []bool{true, false} {
			seen := map[string]int{}
			total := 0
			for _, b := range collectBatches(t, ds.IterBatches(batchSize, deterministic, false)) {
				if b.Rows() > batchSize {
					t.Fatalf("b=%d: batch has %d rows", batchSize, b.Rows())
				}
				for _, id := range b.IDs {
					seen[id]++
				}
				total += b.Rows()
			}
			if total != 8 {
				t.Fatalf("b=%d det=%v: yielded %d rows, want 8", batchSize, deterministic, total)
			}
			for id, n := range seen {
				if n != 1 {
					t.Fatalf("b=%d det=%v: row %s yielded %d times", batchSize, deterministic, id, n)
				}
			}
		}
	}
}

func TestIterBatches_PadYieldsFixedSizeBatches(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ds")
	ds := makeDataset(t, dir, 5, 3)
	ds.Seed(11)

	const batchSize = 4
	seen := map[string]bool{}
	for _, b := range collectBatches(t, ds.IterBatches(batchSize, false, true)) {
		if b.Rows() != batchSize {
			t.Fatalf("padded batch has %d rows, want %d", b.Rows(), batchSize)
		}
		for _, id := range b.IDs {
			seen[id] = true
		}
	}
	if len(seen) != 8 {
		t.Fatalf("padding dropped rows: saw %d distinct rows, want 8", len(seen))
	}
}

// Five rows with batch size three and padding: the pass must produce exactly
// two batches, the first all original rows, the second two original rows plus
// one wrap-around repeat.
func TestIterBatches_PadConcreteScenario(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ds")
	ds := makeDataset(t, dir, 5)

	batches := collectBatches(t, ds.IterBatches(3, true, true))
	if len(batches) != 2 {
		t.Fatalf("got %d batches, want 2", len(batches))
	}
	idsEqual(t, batches[0].IDs, []string{"0", "1", "2"})
	idsEqual(t, batches[1].IDs, []string{"3", "4", "3"})
}

func TestIterBatches_SkipsEmptyShard(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ds")
	shards := []RawShard{rangeShard(0, 2), {}, rangeShard(2, 2)}
	ds, err := Create(SliceSource(shards...), dir, []string{"t0"})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	batches := collectBatches(t, ds.IterBatches(2, true, false))
	if len(batches) != 2 {
		t.Fatalf("got %d batches, want 2", len(batches))
	}
	idsEqual(t, batches[0].IDs, []string{"0", "1"})
	idsEqual(t, batches[1].IDs, []string{"2", "3"})
}

func TestIterBatches_DeterministicPreservesOrder(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ds")
	ds := makeDataset(t, dir, 3, 3)

	var got []string
	for _, b := range collectBatches(t, ds.IterBatches(2, true, false)) {
		got = append(got, b.IDs...)
	}
	idsEqual(t, got, []string{"0", "1", "2", "3", "4", "5"})
}
