package blobstore

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/grailbio/base/errors"
)

type memObject struct {
	data     []byte
	modified time.Time
	metadata map[string]string
}

// Mem is an in-memory Store, mainly for tests. Listings are in key order and
// return at most PageSize entries per page.
type Mem struct {
	// PageSize bounds the number of entries returned by List. Zero means 1000,
	// the S3 default.
	PageSize int
	// Now is the clock used to stamp objects on Put. Defaults to time.Now.
	Now func() time.Time

	mu      sync.Mutex
	objects map[string]memObject
	lists   int
}

// NewMem creates an empty in-memory store.
func NewMem() *Mem {
	return &Mem{objects: map[string]memObject{}}
}

// Get implements Store. The returned slice is a copy.
func (m *Mem) Get(ctx context.Context, key string) ([]byte, Attrs, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.objects[key]
	if !ok {
		return nil, Attrs{}, errors.E(errors.NotExist, "get "+key)
	}
	return append([]byte(nil), o.data...), m.attrs(key, o), nil
}

// Head implements Store.
func (m *Mem) Head(ctx context.Context, key string) (Attrs, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.objects[key]
	if !ok {
		return Attrs{}, errors.E(errors.NotExist, "head "+key)
	}
	return m.attrs(key, o), nil
}

// Put implements Store.
func (m *Mem) Put(ctx context.Context, key string, data []byte, metadata map[string]string) error {
	now := time.Now
	if m.Now != nil {
		now = m.Now
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = memObject{
		data:     append([]byte(nil), data...),
		modified: now().UTC(),
		metadata: lowerKeys(metadata),
	}
	return nil
}

// List implements Store. The continuation token is the index of the next
// entry in the sorted key list.
func (m *Mem) List(ctx context.Context, prefix, token string) (Page, error) {
	pageSize := m.PageSize
	if pageSize <= 0 {
		pageSize = 1000
	}
	start := 0
	if token != "" {
		var err error
		if start, err = strconv.Atoi(token); err != nil || start < 0 {
			return Page{}, errors.E(errors.Invalid, "bad continuation token", token)
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists++
	var keys []string
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	if start > len(keys) {
		start = len(keys)
	}
	end := start + pageSize
	if end > len(keys) {
		end = len(keys)
	}
	page := Page{Entries: make([]Entry, 0, end-start)}
	for _, k := range keys[start:end] {
		o := m.objects[k]
		page.Entries = append(page.Entries, Entry{Key: k, LastModified: o.modified, Size: int64(len(o.data))})
	}
	if end < len(keys) {
		page.Next = strconv.Itoa(end)
	}
	return page, nil
}

// ListCalls returns the number of List requests served so far.
func (m *Mem) ListCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lists
}

func (m *Mem) attrs(key string, o memObject) Attrs {
	md := make(map[string]string, len(o.metadata))
	for k, v := range o.metadata {
		md[k] = v
	}
	return Attrs{Key: key, LastModified: o.modified, Size: int64(len(o.data)), Metadata: md}
}
