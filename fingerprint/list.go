package fingerprint

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/traverse"
	"github.com/grailbio/holmes/blobstore"
)

// DefaultParallelism bounds concurrent metadata requests while listing.
const DefaultParallelism = 64

// Fingerprint describes one stored fingerprint.
type Fingerprint struct {
	Key          string
	URL          string
	LastModified time.Time
	Size         int64
	Metadata
}

// ListOpts control List.
type ListOpts struct {
	// Parallelism bounds concurrent metadata requests. Zero means
	// DefaultParallelism.
	Parallelism int
	// SkipMetadata lists keys only, leaving Metadata empty.
	SkipMetadata bool
	// SkipMalformed drops keys that do not decode to a URL. Otherwise such a
	// key stops the listing with an errors.Invalid error.
	SkipMalformed bool
	// Resolver fills in Metadata. Defaults to DefaultResolver(folder).
	Resolver MetadataResolver
}

// Lister enumerates the fingerprints in a folder. Pages are fetched
// sequentially as the caller scans; metadata for the entries of one page is
// fetched in parallel.
//
//	l := fingerprint.List(ctx, store, folder, fingerprint.ListOpts{})
//	for l.Scan() {
//		fp := l.Fingerprint()
//		...
//	}
//	if err := l.Err(); err != nil { ... }
type Lister struct {
	ctx    context.Context
	store  blobstore.Store
	folder string
	opts   ListOpts

	token string
	done  bool
	buf   []Fingerprint
	cur   Fingerprint
	err   error
}

// List returns a Lister over folder. Each call starts from the beginning.
func List(ctx context.Context, store blobstore.Store, folder string, opts ListOpts) *Lister {
	if opts.Parallelism <= 0 {
		opts.Parallelism = DefaultParallelism
	}
	if opts.Resolver == nil {
		opts.Resolver = DefaultResolver(folder)
	}
	return &Lister{ctx: ctx, store: store, folder: folder, opts: opts}
}

// Scan advances to the next fingerprint. It returns false at the end of the
// listing or on error.
func (l *Lister) Scan() bool {
	for len(l.buf) == 0 {
		if l.done || l.err != nil {
			return false
		}
		l.err = l.fill()
	}
	l.cur, l.buf = l.buf[0], l.buf[1:]
	return true
}

// Fingerprint returns the current fingerprint.
func (l *Lister) Fingerprint() Fingerprint { return l.cur }

// Err returns the error that stopped the listing, if any.
func (l *Lister) Err() error { return l.err }

func (l *Lister) fill() error {
	page, err := l.store.List(l.ctx, l.folder, l.token)
	if err != nil {
		return errors.E(err, "list fingerprints in", l.folder)
	}
	l.token = page.Next
	l.done = page.Next == ""

	fps := make([]Fingerprint, 0, len(page.Entries))
	for _, e := range page.Entries {
		if e.Key == l.folder || strings.HasSuffix(e.Key, "/") {
			continue
		}
		id, err := DecodeKey(l.folder, e.Key)
		if err != nil {
			if l.opts.SkipMalformed {
				log.Printf("skipping %s: %v", e.Key, err)
				continue
			}
			return err
		}
		fps = append(fps, Fingerprint{Key: e.Key, URL: id, LastModified: e.LastModified, Size: e.Size})
	}
	if !l.opts.SkipMetadata {
		err = traverse.Limit(l.opts.Parallelism).Each(len(fps), func(i int) error {
			attrs, err := l.store.Head(l.ctx, fps[i].Key)
			if err != nil {
				return err
			}
			l.opts.Resolver.Resolve(fps[i].Key, attrs, &fps[i].Metadata)
			return nil
		})
		if err != nil {
			return errors.E(err, "fetch fingerprint metadata in", l.folder)
		}
	}
	l.buf = fps
	return nil
}

// ListAll collects a full listing.
func ListAll(ctx context.Context, store blobstore.Store, folder string, opts ListOpts) ([]Fingerprint, error) {
	var fps []Fingerprint
	l := List(ctx, store, folder, opts)
	for l.Scan() {
		fps = append(fps, l.Fingerprint())
	}
	return fps, l.Err()
}

// SelectOpts choose fingerprints from a listing.
type SelectOpts struct {
	ListOpts
	// Indexes are reads file URLs that are always selected. Every one must
	// exist in the folder.
	Indexes []string
	// Regexes select any fingerprint whose URL, created date, subject or
	// library matches at least one of them.
	Regexes []*regexp.Regexp
	// Exclude drops fingerprints whose URL matches before regex selection.
	// Explicit indexes are never excluded.
	Exclude *regexp.Regexp
	// Location is the time zone created dates are rendered in for matching.
	// Defaults to UTC.
	Location *time.Location
}

// CreatedLayout is how created dates are rendered for matching and reports.
const CreatedLayout = "2006-01-02 15:04:05 MST"

// Select lists folder and returns the fingerprints chosen by opts, in key
// order.
func Select(ctx context.Context, store blobstore.Store, folder string, opts SelectOpts) ([]Fingerprint, error) {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	want := make(map[string]bool, len(opts.Indexes))
	for _, u := range opts.Indexes {
		want[u] = false
	}
	var selected []Fingerprint
	l := List(ctx, store, folder, opts.ListOpts)
	for l.Scan() {
		fp := l.Fingerprint()
		if _, ok := want[fp.URL]; ok {
			want[fp.URL] = true
			selected = append(selected, fp)
			continue
		}
		if opts.Exclude != nil && opts.Exclude.MatchString(fp.URL) {
			continue
		}
		if matchAny(opts.Regexes, fp, loc) {
			selected = append(selected, fp)
		}
	}
	if err := l.Err(); err != nil {
		return nil, err
	}
	for _, u := range opts.Indexes {
		if !want[u] {
			return nil, errors.E(errors.NotExist, "no fingerprint for", u, "in", folder)
		}
	}
	return selected, nil
}

func matchAny(res []*regexp.Regexp, fp Fingerprint, loc *time.Location) bool {
	var created string
	if !fp.Created.IsZero() {
		created = fp.Created.In(loc).Format(CreatedLayout)
	}
	for _, re := range res {
		if re.MatchString(fp.URL) {
			return true
		}
		if created != "" && re.MatchString(created) {
			return true
		}
		if fp.Subject != "" && re.MatchString(fp.Subject) {
			return true
		}
		if fp.Library != "" && re.MatchString(fp.Library) {
			return true
		}
	}
	return false
}
