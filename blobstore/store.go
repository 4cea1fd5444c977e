// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package blobstore defines the object store that holds fingerprints, and
// implementations backed by S3 and by memory.
//
// Keys are opaque strings. Metadata keys are always lower case regardless of
// how the backing store canonicalizes them.
package blobstore

import (
	"context"
	"strings"
	"time"
)

// Attrs describes a stored object.
type Attrs struct {
	Key          string
	LastModified time.Time
	Size         int64
	// Metadata holds user metadata, with lower cased keys.
	Metadata map[string]string
}

// Entry is one element of a listing page.
type Entry struct {
	Key          string
	LastModified time.Time
	Size         int64
}

// Page is one page of a listing. Next is the continuation token for the
// following page; it is empty on the last page.
type Page struct {
	Entries []Entry
	Next    string
}

// Store is the subset of an object store the fingerprint engine needs.
//
// Get and Head return an error of kind errors.NotExist when the key does not
// exist.
type Store interface {
	// Get reads the full contents of key, along with its attributes.
	Get(ctx context.Context, key string) ([]byte, Attrs, error)
	// Head returns the attributes of key without reading its contents.
	Head(ctx context.Context, key string) (Attrs, error)
	// Put stores data under key, replacing any existing object.
	Put(ctx context.Context, key string, data []byte, metadata map[string]string) error
	// List returns one page of the keys that start with prefix. An empty token
	// starts a new listing.
	List(ctx context.Context, prefix, token string) (Page, error)
}

func lowerKeys(m map[string]string) map[string]string {
	r := make(map[string]string, len(m))
	for k, v := range m {
		r[strings.ToLower(k)] = v
	}
	return r
}
