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

// Package batch splits a comparison into independent units of work.
package batch

import (
	"fmt"

	"github.com/grailbio/base/errors"
)

// Chunk splits items into consecutive chunks of at most size elements. An
// empty input yields no chunks.
func Chunk[T any](items []T, size int) ([][]T, error) {
	if size <= 0 {
		return nil, errors.E(errors.Invalid, fmt.Sprintf("chunk size %d must be positive", size))
	}
	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[start:end:end])
	}
	return chunks, nil
}

// Batch is the work of one worker: every query compared against one chunk of
// candidates.
type Batch struct {
	Index      int      `json:"index"`
	Queries    []string `json:"queries"`
	Candidates []string `json:"candidates"`
}

// Plan divides candidates between batches.
type Plan struct {
	Queries []string
	Batches []Batch
	// Truncated is set when queries beyond the limit were dropped.
	Truncated bool
}

// NewPlan builds a plan comparing queries against candidates, size candidates
// per batch. If maxQueries is positive only the first maxQueries queries are
// kept.
//
// Duplicate candidates are dropped. A query that is not among the candidates
// is added to the end, so that every query is a candidate in exactly one
// batch and is reported as Self exactly once. Duplicate queries are an
// errors.Precondition error.
func NewPlan(queries, candidates []string, size, maxQueries int) (*Plan, error) {
	p := &Plan{}
	if maxQueries > 0 && len(queries) > maxQueries {
		queries = queries[:maxQueries]
		p.Truncated = true
	}
	seen := make(map[string]bool, len(queries))
	for _, q := range queries {
		if seen[q] {
			return nil, errors.E(errors.Precondition, "query", q, "appears more than once")
		}
		seen[q] = true
	}
	p.Queries = append([]string(nil), queries...)

	all := make([]string, 0, len(candidates)+len(queries))
	inPlan := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		if !inPlan[c] {
			inPlan[c] = true
			all = append(all, c)
		}
	}
	for _, q := range queries {
		if !inPlan[q] {
			inPlan[q] = true
			all = append(all, q)
		}
	}
	chunks, err := Chunk(all, size)
	if err != nil {
		return nil, err
	}
	p.Batches = make([]Batch, len(chunks))
	for i, c := range chunks {
		p.Batches[i] = Batch{Index: i, Queries: p.Queries, Candidates: c}
	}
	return p, nil
}
