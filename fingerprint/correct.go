package fingerprint

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/holmes/blobstore"
)

// Counter hands out sample sequence numbers for one run. Two fingerprints
// corrected with the same Counter never share a number.
type Counter struct {
	mu   sync.Mutex
	next int
}

// NewCounter returns a counter whose first number is start.
func NewCounter(start int) *Counter {
	return &Counter{next: start}
}

// Next returns the next sequence number.
func (c *Counter) Next() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.next
	c.next++
	return n
}

// Corrected is a fingerprint copied to local scratch space with a run-local
// sample id.
type Corrected struct {
	// Key is the storage key the fingerprint was read from.
	Key string
	// Display is the name reported for this fingerprint, normally the reads
	// file URL.
	Display string
	// SampleID is the id written into the local copy.
	SampleID string
	// Path is the local copy.
	Path string
	Metadata
}

// Corrector copies fingerprints from Store into Dir, replacing each embedded
// sample id so that the relate engine output can be mapped back to sources.
type Corrector struct {
	Store blobstore.Store
	Dir   string
	// Resolver fills in Metadata. May be nil.
	Resolver MetadataResolver
}

// Correct fetches the fingerprint at key, rewrites its sample id to seq
// zero-padded to the width of the id field, and writes it to
// Dir/<sampleid>.somalier.
func (c *Corrector) Correct(ctx context.Context, key, display string, seq int) (Corrected, error) {
	data, attrs, err := c.Store.Get(ctx, key)
	if err != nil {
		return Corrected{}, err
	}
	blob := Blob(data)
	if err = blob.Validate(); err != nil {
		return Corrected{}, errors.E(err, "fingerprint", key)
	}
	id, err := SequenceID(seq, blob.SampleIDLength())
	if err != nil {
		return Corrected{}, errors.E(err, "fingerprint", key)
	}
	old := blob.SampleID()
	if err = blob.SetSampleID(id); err != nil {
		return Corrected{}, errors.E(err, "fingerprint", key)
	}
	path := filepath.Join(c.Dir, id+KeySuffix)
	if err = writeFile(ctx, path, blob); err != nil {
		return Corrected{}, err
	}
	log.Debug.Printf("corrected %s: sample %q -> %q at %s", display, old, id, path)

	out := Corrected{Key: key, Display: display, SampleID: id, Path: path}
	if c.Resolver != nil {
		c.Resolver.Resolve(key, attrs, &out.Metadata)
	}
	return out, nil
}

func writeFile(ctx context.Context, path string, data []byte) (err error) {
	out, err := file.Create(ctx, path)
	if err != nil {
		return errors.E(err, "create", path)
	}
	defer file.CloseAndReport(ctx, out, &err)
	if _, err = out.Writer(ctx).Write(data); err != nil {
		return errors.E(err, "write", path)
	}
	return nil
}
