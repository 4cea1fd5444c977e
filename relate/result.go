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

// Package relate classifies somalier pair reports against expectations and
// merges the classifications computed by independent workers.
package relate

import (
	"github.com/grailbio/base/errors"
	"github.com/grailbio/holmes/somalier"
)

// Kind classifies a query/candidate pair.
type Kind int

const (
	// Self is a query compared with its own fingerprint.
	Self Kind = iota
	// ExpectedRelated pairs are named as related and are related.
	ExpectedRelated
	// UnexpectedRelated pairs are related but are not named as related.
	UnexpectedRelated
	// UnexpectedUnrelated pairs are named as related but are not related.
	UnexpectedUnrelated
)

var kindNames = [...]string{"Self", "ExpectedRelated", "UnexpectedRelated", "UnexpectedUnrelated"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "Unknown"
	}
	return kindNames[k]
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if k < 0 || int(k) >= len(kindNames) {
		return nil, errors.E(errors.Invalid, "unknown result kind", k.String())
	}
	return []byte(kindNames[k]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(b []byte) error {
	for i, name := range kindNames {
		if name == string(b) {
			*k = Kind(i)
			return nil
		}
	}
	return errors.E(errors.Invalid, "unknown result kind", string(b))
}

// Result is the classification of one candidate against a query.
type Result struct {
	Kind Kind `json:"type"`
	// File is the candidate's display name.
	File string `json:"file"`
	// Regex records the capture groups of the expect-related pattern on both
	// sides, as JSON: {"index":[...],"sample":[...]}.
	Regex string `json:"regexJson"`
	somalier.Stats
}

// Shard is the output of one worker: results per query display name.
type Shard map[string][]Result

// Aggregate gathers the results for one query across all shards.
type Aggregate struct {
	Self                *Result  `json:"self"`
	ExpectedRelated     []Result `json:"expectedRelated"`
	UnexpectedRelated   []Result `json:"unexpectedRelated"`
	UnexpectedUnrelated []Result `json:"unexpectedUnrelated"`
}
