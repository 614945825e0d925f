package dataset

// Iteration over shards, samples and minibatches. Each Iter* method is a
// factory: every call returns a fresh, finite iterator bound to the current
// persisted state of the dataset, so consumers can run as many independent
// passes as they like.

// ShardIterator walks the shards of a dataset in metadata-index order.
type ShardIterator struct {
	ds  *DiskDataset
	pos int
}

// IterShards returns a fresh iterator over all shards in index order.
func (d *DiskDataset) IterShards() *ShardIterator {
	return &ShardIterator{ds: d}
}

// Next returns the next shard. ok is false once the iterator is exhausted.
func (it *ShardIterator) Next() (sh *Shard, ok bool, err error) {
	if it.pos >= len(it.ds.meta.Shards) {
		return nil, false, nil
	}
	sh, err = it.ds.GetShard(it.pos)
	if err != nil {
		return nil, false, err
	}
	it.pos++
	return sh, true, nil
}

// Sample is a single dataset row. Y, W and ID are absent (nil slice, HasID
// false) when the underlying shard does not carry them.
type Sample struct {
	X     []float64
	Y     []float64
	W     []float64
	ID    string
	HasID bool
}

// SampleIterator flattens shard iteration into one row at a time.
type SampleIterator struct {
	shards *ShardIterator
	cur    *Shard
	pos    int
}

// IterSamples returns a fresh iterator over every row of the dataset.
func (d *DiskDataset) IterSamples() *SampleIterator {
	return &SampleIterator{shards: d.IterShards()}
}

// Next returns the next sample. ok is false once the iterator is exhausted.
func (it *SampleIterator) Next() (s Sample, ok bool, err error) {
	for it.cur == nil || it.pos >= it.cur.Rows() {
		sh, more, err := it.shards.Next()
		if err != nil {
			return Sample{}, false, err
		}
		if !more {
			return Sample{}, false, nil
		}
		it.cur, it.pos = sh, 0
	}
	s.X = it.cur.X[it.pos]
	if it.cur.Y != nil {
		s.Y = it.cur.Y[it.pos]
	}
	if it.cur.W != nil {
		s.W = it.cur.W[it.pos]
	}
	if it.cur.IDs != nil {
		s.ID = it.cur.IDs[it.pos]
		s.HasID = true
	}
	it.pos++
	return s, true, nil
}

// Batch is an ephemeral view over a contiguous sample range within one shard,
// optionally padded to a fixed size by wrap-around repetition of its rows.
// Y, W and IDs are nil when the dataset does not carry them.
type Batch struct {
	X   [][]float64
	Y   [][]float64
	W   [][]float64
	IDs []string
}

// Rows returns the number of rows in the batch, padding included.
func (b *Batch) Rows() int {
	return len(b.X)
}

// BatchIterator yields minibatches derived from shard-level iteration. With
// deterministic=false both the shard order and the intra-shard sample order
// are randomized; otherwise both are the identity.
type BatchIterator struct {
	ds            *DiskDataset
	batchSize     int
	deterministic bool
	padBatches    bool

	shardPerm []int // traversal order over shards, fixed at construction

	shardIdx   int   // next entry of shardPerm to load
	cur        *Shard
	samplePerm []int // intra-shard sample order for cur
	intervals  []int // linear partition of [0, rows(cur)]
	rangeIdx   int   // next interval of cur to emit
}

// IterBatches returns a fresh minibatch iterator. batchSize <= 0 means one
// batch per shard. When padBatches is set every batch has exactly batchSize
// rows, the shortfall filled by repeating rows of the same batch; real rows
// are never dropped.
func (d *DiskDataset) IterBatches(batchSize int, deterministic, padBatches bool) *BatchIterator {
	it := &BatchIterator{
		ds:            d,
		batchSize:     batchSize,
		deterministic: deterministic,
		padBatches:    padBatches,
	}
	n := d.NumShards()
	if deterministic {
		it.shardPerm = identityPerm(n)
	} else {
		it.shardPerm = d.rng.Perm(n)
	}
	return it
}

// Next returns the next minibatch. ok is false once the pass is complete.
// Every row of the dataset appears in exactly one batch per pass; shards with
// zero rows are skipped.
func (it *BatchIterator) Next() (b *Batch, ok bool, err error) {
	for {
		if it.cur == nil || it.rangeIdx >= len(it.intervals)-1 {
			if err := it.loadNextShard(); err != nil {
				return nil, false, err
			}
			if it.cur == nil {
				return nil, false, nil
			}
			continue
		}
		break
	}

	lo, hi := it.intervals[it.rangeIdx], it.intervals[it.rangeIdx+1]
	it.rangeIdx++

	b = &Batch{X: make([][]float64, 0, hi-lo)}
	if it.cur.Y != nil {
		b.Y = make([][]float64, 0, hi-lo)
	}
	if it.cur.W != nil {
		b.W = make([][]float64, 0, hi-lo)
	}
	if it.cur.IDs != nil {
		b.IDs = make([]string, 0, hi-lo)
	}
	for _, i := range it.samplePerm[lo:hi] {
		b.X = append(b.X, it.cur.X[i])
		if it.cur.Y != nil {
			b.Y = append(b.Y, it.cur.Y[i])
		}
		if it.cur.W != nil {
			b.W = append(b.W, it.cur.W[i])
		}
		if it.cur.IDs != nil {
			b.IDs = append(b.IDs, it.cur.IDs[i])
		}
	}

	if it.padBatches && it.batchSize > 0 {
		padBatch(b, it.batchSize)
	}
	return b, true, nil
}

// loadNextShard advances to the next non-empty shard in traversal order,
// computing its sample permutation and interval partition. It leaves it.cur
// nil when the pass is over.
func (it *BatchIterator) loadNextShard() error {
	for it.shardIdx < len(it.shardPerm) {
		sh, err := it.ds.GetShard(it.shardPerm[it.shardIdx])
		if err != nil {
			return err
		}
		it.shardIdx++

		n := sh.Rows()
		if n == 0 {
			continue
		}
		if it.deterministic {
			it.samplePerm = identityPerm(n)
		} else {
			it.samplePerm = it.ds.rng.Perm(n)
		}
		size := it.batchSize
		if size <= 0 {
			size = n
		}
		it.intervals = intervalPoints(n, size)
		it.cur = sh
		it.rangeIdx = 0
		return nil
	}
	it.cur = nil
	return nil
}

// padBatch grows b to exactly size rows by repeating its rows cyclically from
// the beginning. Batches already at size are untouched.
func padBatch(b *Batch, size int) {
	n := len(b.X)
	if n == 0 || n >= size {
		return
	}
	for i := n; i < size; i++ {
		src := (i - n) % n
		b.X = append(b.X, b.X[src])
		if b.Y != nil {
			b.Y = append(b.Y, b.Y[src])
		}
		if b.W != nil {
			b.W = append(b.W, b.W[src])
		}
		if b.IDs != nil {
			b.IDs = append(b.IDs, b.IDs[src])
		}
	}
}

// intervalPoints partitions [0, n] into ceil(n/size) contiguous ranges of
// size rows each; only the final range may be smaller.
func intervalPoints(n, size int) []int {
	parts := ceilDiv(n, size)
	pts := make([]int, parts+1)
	for i := range pts {
		pts[i] = i * size
		if pts[i] > n {
			pts[i] = n
		}
	}
	return pts
}

func identityPerm(n int) []int {
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	return p
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
