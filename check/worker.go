package check

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/holmes/batch"
	"github.com/grailbio/holmes/blobstore"
	"github.com/grailbio/holmes/fingerprint"
	"github.com/grailbio/holmes/relate"
	"github.com/grailbio/holmes/somalier"
)

// Task is the input of one worker. It is self-contained so that it can be
// shipped to a remote worker as JSON.
type Task struct {
	batch.Batch
	// Folder is the fingerprint folder the keys belong to.
	Folder string `json:"folder"`
	Opts   Opts   `json:"opts"`
}

// Relater compares the fingerprints in a directory.
type Relater interface {
	Relate(ctx context.Context, dir string) (*somalier.Output, error)
}

// Worker runs one task: it corrects the task's fingerprints into ScratchDir,
// relates them and classifies the result.
type Worker struct {
	Store  blobstore.Store
	Engine Relater
	// ScratchDir must not be shared with a concurrent worker. Fingerprints and
	// reports in it are removed before and after each run.
	ScratchDir string
	// Start is the first sample sequence number.
	Start int
	// Resolver fills in fingerprint metadata. May be nil.
	Resolver fingerprint.MetadataResolver
}

// Run runs task. Every query of the task appears in the returned shard.
func (w *Worker) Run(ctx context.Context, task Task) (shard relate.Shard, err error) {
	opts, exclude, err := task.Opts.compile()
	if err != nil {
		return nil, err
	}
	if err = os.MkdirAll(w.ScratchDir, 0755); err != nil {
		return nil, errors.E(err, "create scratch directory", w.ScratchDir)
	}
	if err = somalier.Clean(w.ScratchDir); err != nil {
		return nil, err
	}
	defer func() {
		if cerr := somalier.Clean(w.ScratchDir); cerr != nil {
			log.Error.Printf("batch %d: %v", task.Index, cerr)
		}
	}()

	var (
		counter   = fingerprint.NewCounter(w.Start)
		corrector = fingerprint.Corrector{Store: w.Store, Dir: w.ScratchDir, Resolver: w.Resolver}
		queries   = make(map[string]string, len(task.Queries))
		others    = make(map[string]string, len(task.Candidates))
		isQuery   = make(map[string]bool, len(task.Queries))
	)
	for _, key := range task.Queries {
		display, err := fingerprint.DecodeKey(task.Folder, key)
		if err != nil {
			return nil, err
		}
		c, err := corrector.Correct(ctx, key, display, counter.Next())
		if err != nil {
			return nil, err
		}
		queries[c.SampleID] = display
		isQuery[key] = true
	}
	for _, key := range task.Candidates {
		if strings.HasSuffix(key, "/") {
			continue
		}
		display, err := fingerprint.DecodeKey(task.Folder, key)
		if err != nil {
			return nil, err
		}
		if exclude != nil && !isQuery[key] && exclude.MatchString(display) {
			log.Debug.Printf("batch %d: excluding %s", task.Index, display)
			continue
		}
		c, err := corrector.Correct(ctx, key, display, counter.Next())
		if err != nil {
			return nil, err
		}
		others[c.SampleID] = display
	}

	if len(queries)+len(others) < 2 {
		log.Printf("batch %d: %d fingerprints, nothing to relate", task.Index, len(queries)+len(others))
		shard = relate.Shard{}
		for _, display := range queries {
			shard[display] = []relate.Result{}
		}
		return shard, nil
	}
	out, err := w.Engine.Relate(ctx, w.ScratchDir)
	if err != nil {
		return nil, errors.E(err, fmt.Sprintf("batch %d", task.Index))
	}
	return relate.Classify(out.Pairs, queries, others, opts)
}
