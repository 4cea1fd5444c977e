package check

import (
	"context"
	"regexp"
	"time"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/holmes/batch"
	"github.com/grailbio/holmes/blobstore"
	"github.com/grailbio/holmes/fingerprint"
	"github.com/grailbio/holmes/relate"
)

// Request describes a check.
type Request struct {
	// Folder is the slash-terminated fingerprint folder.
	Folder string
	// Indexes are reads file URLs to check.
	Indexes []string
	// Regexes select further queries; see fingerprint.Select.
	Regexes []*regexp.Regexp
	// Location renders created dates for Regexes.
	Location *time.Location
	Opts     Opts
	// BatchSize is the number of candidates per worker.
	BatchSize int
	// MaxQueries limits the number of queries. Zero means no limit.
	MaxQueries int
	// ListParallelism bounds metadata requests while selecting queries.
	ListParallelism int
}

// Result is the outcome of a check.
type Result struct {
	Relations map[string]*relate.Aggregate `json:"relations"`
	// Truncated is set when queries beyond Request.MaxQueries were dropped.
	Truncated bool `json:"truncated,omitempty"`
}

// Check compares the requested queries against every fingerprint in the
// folder. Every query appears in the result.
func Check(ctx context.Context, store blobstore.Store, runner Runner, req Request) (*Result, error) {
	if req.BatchSize <= 0 {
		req.BatchSize = DefaultBatchSize
	}
	if _, _, err := req.Opts.compile(); err != nil {
		return nil, err
	}
	queries, err := queryKeys(ctx, store, req)
	if err != nil {
		return nil, err
	}
	if len(queries) == 0 {
		return nil, errors.E(errors.Invalid, "no fingerprints to check")
	}

	// One candidate per URL. A fingerprint stored under both key generations
	// would otherwise be compared twice, and a query would see itself twice.
	// Queries are left to the plan, which adds them under their own keys.
	kept := queries
	if req.MaxQueries > 0 && len(kept) > req.MaxQueries {
		kept = kept[:req.MaxQueries]
	}
	seen := map[string]bool{}
	for _, key := range kept {
		display, err := fingerprint.DecodeKey(req.Folder, key)
		if err != nil {
			return nil, err
		}
		seen[display] = true
	}
	var candidates []string
	l := fingerprint.List(ctx, store, req.Folder, fingerprint.ListOpts{SkipMetadata: true, SkipMalformed: true})
	for l.Scan() {
		fp := l.Fingerprint()
		if seen[fp.URL] {
			continue
		}
		seen[fp.URL] = true
		candidates = append(candidates, fp.Key)
	}
	if err = l.Err(); err != nil {
		return nil, err
	}

	plan, err := batch.NewPlan(queries, candidates, req.BatchSize, req.MaxQueries)
	if err != nil {
		return nil, err
	}
	if plan.Truncated {
		log.Printf("checking the first %d of %d queries", len(plan.Queries), len(queries))
	}
	tasks := make([]Task, len(plan.Batches))
	for i, b := range plan.Batches {
		tasks[i] = Task{Batch: b, Folder: req.Folder, Opts: req.Opts}
	}
	log.Printf("checking %d queries against %d fingerprints in %d batches", len(plan.Queries), len(candidates)+len(plan.Queries), len(tasks))
	start := time.Now()
	shards, err := runner.RunAll(ctx, tasks)
	if err != nil {
		return nil, err
	}
	relations, err := relate.Merge(shards...)
	if err != nil {
		return nil, err
	}
	for _, key := range plan.Queries {
		display, err := fingerprint.DecodeKey(req.Folder, key)
		if err != nil {
			return nil, err
		}
		if _, ok := relations[display]; !ok {
			return nil, errors.E(errors.Precondition, "no results for query", display)
		}
	}
	log.Printf("check of %d queries took %s", len(plan.Queries), time.Since(start))
	return &Result{Relations: relations, Truncated: plan.Truncated}, nil
}

// queryKeys resolves the requested queries to fingerprint keys, explicit
// indexes first. There is one key per URL; when a URL is stored under both key
// generations the current one is kept.
func queryKeys(ctx context.Context, store blobstore.Store, req Request) ([]string, error) {
	var keys []string
	pos := map[string]int{}
	add := func(u, key string) error {
		i, ok := pos[u]
		if !ok {
			pos[u] = len(keys)
			keys = append(keys, key)
			return nil
		}
		current, err := fingerprint.EncodeKey(req.Folder, u)
		if err != nil {
			return err
		}
		if key == current {
			keys[i] = key
		}
		return nil
	}
	for _, u := range req.Indexes {
		key, err := fingerprint.EncodeKey(req.Folder, u)
		if err != nil {
			return nil, err
		}
		if _, err := store.Head(ctx, key); err != nil {
			if errors.Is(errors.NotExist, err) {
				if c := closest(ctx, store, req.Folder, u); c != "" {
					return nil, errors.E(err, "no fingerprint for", u, "(closest is", c+")")
				}
			}
			return nil, errors.E(err, "no fingerprint for", u)
		}
		if err := add(u, key); err != nil {
			return nil, err
		}
	}
	if len(req.Regexes) == 0 {
		return keys, nil
	}
	var exclude *regexp.Regexp
	if req.Opts.Exclude != "" {
		exclude = regexp.MustCompile(req.Opts.Exclude)
	}
	fps, err := fingerprint.Select(ctx, store, req.Folder, fingerprint.SelectOpts{
		ListOpts: fingerprint.ListOpts{Parallelism: req.ListParallelism, SkipMalformed: true},
		Regexes:  req.Regexes,
		Exclude:  exclude,
		Location: req.Location,
	})
	if err != nil {
		return nil, err
	}
	for _, fp := range fps {
		if err := add(fp.URL, fp.Key); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

// closest returns the stored URL nearest to u, for error messages. Listing
// errors are ignored.
func closest(ctx context.Context, store blobstore.Store, folder, u string) string {
	fps, err := fingerprint.ListAll(ctx, store, folder, fingerprint.ListOpts{SkipMetadata: true, SkipMalformed: true})
	if err != nil {
		log.Debug.Printf("list %s: %v", folder, err)
		return ""
	}
	urls := make([]string, len(fps))
	for i, fp := range fps {
		urls[i] = fp.URL
	}
	return fingerprint.Closest(u, urls)
}
