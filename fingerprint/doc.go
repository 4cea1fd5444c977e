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

// Package fingerprint handles somalier fingerprints kept in a blob store:
// the mapping between reads file URLs and storage keys, the binary header of
// the fingerprint itself, and copying fingerprints to local scratch space with
// run-local sample ids so that relate output can be traced back to sources.
//
// A fingerprint for s3://bucket/sample.bam in folder "fingerprints/" is stored
// at
//
//	fingerprints/s3%3A%2F%2Fbucket%2Fsample.bam.somalier
//
// Fingerprints written by early versions of the extractor used the hex
// encoding of the URL with no suffix; DecodeKey accepts both.
package fingerprint
