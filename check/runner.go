package check

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/holmes/blobstore"
	"github.com/grailbio/holmes/fingerprint"
	"github.com/grailbio/holmes/relate"
	"golang.org/x/sync/errgroup"
)

// Runner runs a set of tasks and returns their shards in task order. It fails
// if any task fails.
type Runner interface {
	RunAll(ctx context.Context, tasks []Task) ([]relate.Shard, error)
}

// LocalRunner runs tasks as concurrent in-process workers.
type LocalRunner struct {
	Store  blobstore.Store
	Engine Relater
	// ScratchDir is the parent of the per-task scratch directories.
	ScratchDir string
	// Parallelism bounds concurrent tasks. Zero means DefaultParallelism.
	Parallelism int
	// Start is the first sample sequence number of each worker.
	Start    int
	Resolver fingerprint.MetadataResolver
	// OutputDir, if set, receives one ShardPath file per task.
	OutputDir string
}

// ShardPath returns the name of the shard file for the task with the given
// index.
func ShardPath(dir string, index int) string {
	return filepath.Join(dir, fmt.Sprintf("shard-%05d.json.gz", index))
}

// RunAll implements Runner.
func (r *LocalRunner) RunAll(ctx context.Context, tasks []Task) ([]relate.Shard, error) {
	parallelism := r.Parallelism
	if parallelism <= 0 {
		parallelism = DefaultParallelism
	}
	shards := make([]relate.Shard, len(tasks))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for i := range tasks {
		i := i
		g.Go(func() error {
			task := tasks[i]
			w := Worker{
				Store:      r.Store,
				Engine:     r.Engine,
				ScratchDir: filepath.Join(r.ScratchDir, fmt.Sprintf("batch-%05d", task.Index)),
				Start:      r.Start,
				Resolver:   r.Resolver,
			}
			log.Debug.Printf("batch %d: %d queries, %d candidates", task.Index, len(task.Queries), len(task.Candidates))
			shard, err := w.Run(ctx, task)
			if err != nil {
				return err
			}
			if r.OutputDir != "" {
				if err := relate.WriteShard(ctx, ShardPath(r.OutputDir, task.Index), shard); err != nil {
					return err
				}
			}
			shards[i] = shard
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.E(err, "run batches")
	}
	return shards, nil
}
