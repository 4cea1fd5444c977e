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

package somalier

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"v.io/x/lib/lookpath"
)

// Report files written by "somalier relate" into its working directory.
const (
	PairsFile   = "somalier.pairs.tsv"
	SamplesFile = "somalier.samples.tsv"
	GroupsFile  = "somalier.groups.tsv"
	HTMLFile    = "somalier.html"
)

// waitDelay bounds how long output is drained after the process is killed.
const waitDelay = 5 * time.Second

// Output holds the reports of one relate run.
type Output struct {
	Pairs   []Pair
	Samples []Sample
	// PairsTSV and SamplesTSV are the reports as written.
	PairsTSV, SamplesTSV []byte
}

// Engine runs the somalier binary.
type Engine struct {
	// Binary is the path of the somalier executable.
	Binary string
	// Env is added to the process environment.
	Env []string
	// Timeout bounds one run. Zero means no limit beyond the context.
	Timeout time.Duration
}

// NewEngine locates binary, either a path or a name looked up on $PATH.
func NewEngine(binary string) (*Engine, error) {
	if binary == "" {
		binary = "somalier"
	}
	if strings.ContainsRune(binary, filepath.Separator) {
		return &Engine{Binary: binary}, nil
	}
	path, err := lookpath.Look(map[string]string{"PATH": os.Getenv("PATH")}, binary)
	if err != nil {
		return nil, errors.E(errors.NotExist, err, "find", binary)
	}
	return &Engine{Binary: path}, nil
}

// Relate runs "somalier relate" over every *.somalier file in dir, with dir as
// the working directory, and reads the pairs and samples reports. All pairs
// are reported whatever their relatedness. A failed or timed out run is an
// error; nothing is salvaged from it.
func (e *Engine) Relate(ctx context.Context, dir string) (*Output, error) {
	inputs, err := filepath.Glob(filepath.Join(dir, "*.somalier"))
	if err != nil {
		return nil, errors.E(errors.Invalid, err, "glob fingerprints in", dir)
	}
	if len(inputs) == 0 {
		return nil, errors.E(errors.Precondition, "no fingerprints to relate in", dir)
	}
	sort.Strings(inputs)
	args := []string{"relate"}
	for _, in := range inputs {
		args = append(args, filepath.Base(in))
	}
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.Binary, args...)
	cmd.Dir = dir
	cmd.Env = append(append(os.Environ(), "SOMALIER_REPORT_ALL_PAIRS=1"), e.Env...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay
	start := time.Now()
	err = cmd.Run()
	logLines("stdout", &stdout)
	logLines("stderr", &stderr)
	if ctxErr := ctx.Err(); ctxErr != nil {
		if ctxErr == context.DeadlineExceeded {
			return nil, errors.E(errors.Timeout, ctxErr, "somalier relate in", dir)
		}
		return nil, errors.E(errors.Canceled, ctxErr, "somalier relate in", dir)
	}
	if err != nil {
		return nil, errors.E(errors.Unavailable, err, "somalier relate in", dir, strings.TrimSpace(stderr.String()))
	}
	log.Printf("somalier relate of %d fingerprints in %s took %s", len(inputs), dir, time.Since(start))

	out := &Output{}
	if out.PairsTSV, err = readReport(ctx, filepath.Join(dir, PairsFile)); err != nil {
		return nil, err
	}
	if out.SamplesTSV, err = readReport(ctx, filepath.Join(dir, SamplesFile)); err != nil {
		return nil, err
	}
	if out.Pairs, err = ReadPairs(bytes.NewReader(out.PairsTSV)); err != nil {
		return nil, err
	}
	if out.Samples, err = ReadSamples(bytes.NewReader(out.SamplesTSV)); err != nil {
		return nil, err
	}
	return out, nil
}

func readReport(ctx context.Context, path string) (data []byte, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(errors.Unavailable, err, "somalier did not write", path)
	}
	defer file.CloseAndReport(ctx, in, &err)
	var buf bytes.Buffer
	if _, err = buf.ReadFrom(in.Reader(ctx)); err != nil {
		return nil, errors.E(errors.Unavailable, err, "read", path)
	}
	return buf.Bytes(), nil
}

func logLines(name string, b *bytes.Buffer) {
	if !log.At(log.Debug) {
		return
	}
	s := bufio.NewScanner(bytes.NewReader(b.Bytes()))
	for s.Scan() {
		log.Debug.Printf("somalier %s: %s", name, s.Text())
	}
}
