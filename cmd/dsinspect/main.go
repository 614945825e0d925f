// Command dsinspect inspects and maintains an on-disk sharded dataset
// directory: it prints a shard/row/task summary, optionally reshards or
// shuffles the dataset in place, and can render per-task label histograms to
// a PNG.
//
// Usage:
//
//	dsinspect -dir path/to/dataset [-plot labels.png] [-reshard 4096]
//	          [-shuffle-shards] [-shuffle-rows] [-sparse-shuffle] [-seed 1]
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/codemarsyu/Adaptive-Graph-Convolutional-Network/dataset"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

func main() {
	var (
		dir           = flag.String("dir", "", "dataset directory (required)")
		plotPath      = flag.String("plot", "", "write per-task label histograms to this PNG")
		reshardSize   = flag.Int("reshard", 0, "rewrite the dataset with this shard size")
		shuffleShards = flag.Bool("shuffle-shards", false, "shuffle shard traversal order")
		shuffleRows   = flag.Bool("shuffle-rows", false, "shuffle rows within each shard")
		sparseShuffle = flag.Bool("sparse-shuffle", false, "globally shuffle rows across shards (sparse features only)")
		seed          = flag.Int64("seed", 0, "seed for shuffle operations (0 = time-based)")
	)
	flag.Parse()
	if *dir == "" {
		log.Fatal("missing required -dir flag")
	}

	ds, err := dataset.Open(*dir)
	if err != nil {
		log.Fatalf("open dataset: %v", err)
	}
	if *seed != 0 {
		ds.Seed(*seed)
	}

	printSummary(ds)

	if *reshardSize > 0 {
		start := time.Now()
		if err := ds.Reshard(*reshardSize); err != nil {
			log.Fatalf("reshard: %v", err)
		}
		log.Printf("TIMING: reshard to %d rows/shard took %.3fs", *reshardSize, time.Since(start).Seconds())
	}
	if *shuffleShards {
		if err := ds.ShuffleShards(); err != nil {
			log.Fatalf("shuffle shards: %v", err)
		}
		log.Printf("shuffled shard order")
	}
	if *shuffleRows {
		start := time.Now()
		if err := ds.ShuffleEachShard(); err != nil {
			log.Fatalf("shuffle rows: %v", err)
		}
		log.Printf("TIMING: per-shard row shuffle took %.3fs", time.Since(start).Seconds())
	}
	if *sparseShuffle {
		start := time.Now()
		if err := ds.SparseShuffle(); err != nil {
			log.Fatalf("sparse shuffle: %v", err)
		}
		log.Printf("TIMING: sparse shuffle took %.3fs", time.Since(start).Seconds())
	}

	if *plotPath != "" {
		if err := plotLabels(ds, *plotPath); err != nil {
			log.Fatalf("plot labels: %v", err)
		}
		log.Printf("wrote label histograms to %s", *plotPath)
	}
}

func printSummary(ds *dataset.DiskDataset) {
	fmt.Printf("dataset:  %s\n", ds.Dir())
	fmt.Printf("shards:   %d\n", ds.NumShards())
	fmt.Printf("rows:     %d\n", ds.Len())
	fmt.Printf("tasks:    %v\n", ds.GetTaskNames())
	if dim, err := ds.GetDataShape(); err == nil {
		fmt.Printf("features: %d per row\n", dim)
	}
	if size, err := ds.GetShardSize(); err == nil {
		fmt.Printf("shard 0:  %d rows\n", size)
	}
}

// plotLabels renders one histogram per task over the labels whose weight is
// nonzero, all on a single canvas with a legend.
func plotLabels(ds *dataset.DiskDataset, path string) error {
	tasks := ds.GetTaskNames()
	if len(tasks) == 0 {
		return fmt.Errorf("dataset has no tasks to plot")
	}

	// One streaming pass; only the label values are kept in memory.
	values := make([]plotter.Values, len(tasks))
	it := ds.IterShards()
	for {
		sh, ok, err := it.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		if sh.Y == nil {
			return fmt.Errorf("dataset is unlabeled")
		}
		for i, row := range sh.Y {
			for task := range tasks {
				if sh.W[i][task] == 0 {
					continue
				}
				values[task] = append(values[task], row[task])
			}
		}
	}

	p := plot.New()
	p.Title.Text = "Label distribution per task"
	p.X.Label.Text = "label value"
	p.Y.Label.Text = "count"
	for task, name := range tasks {
		if len(values[task]) == 0 {
			continue
		}
		h, err := plotter.NewHist(values[task], 16)
		if err != nil {
			return fmt.Errorf("histogram for task %s: %w", name, err)
		}
		p.Add(h)
		p.Legend.Add(name, h)
	}
	if err := p.Save(8*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("save plot: %w", err)
	}
	return nil
}
