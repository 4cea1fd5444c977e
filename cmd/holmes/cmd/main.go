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

package cmd

import (
	"context"
	"flag"
	"io"
	"io/ioutil"
	"os"
	"strings"
	"time"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/holmes/blobstore"
	"github.com/grailbio/holmes/check"
	"github.com/grailbio/holmes/somalier"
	"github.com/pkg/errors"
	"v.io/x/lib/cmdline"
)

// Environment variables that supply defaults.
const (
	envSomalier     = "SOMALIER"
	envScratch      = "SOMALIERTMP"
	envBucket       = "FINGERPRINT_BUCKET_NAME"
	envConfigFolder = "FINGERPRINT_CONFIG_FOLDER"
)

// settings are the flags shared by every command that touches the store.
// They override the config file, which overrides the environment.
type settings struct {
	config       string
	bucket       string
	root         string
	folder       string
	configFolder string
	somalier     string
	scratch      string
	timezone     string
	timeout      time.Duration
}

func addSettings(fs *flag.FlagSet) *settings {
	s := &settings{}
	fs.StringVar(&s.config, "config", "", "Local YAML settings file")
	fs.StringVar(&s.bucket, "bucket", "", "S3 bucket holding fingerprints. Defaults to $"+envBucket)
	fs.StringVar(&s.root, "root", "", "Directory used as the fingerprint store instead of -bucket")
	fs.StringVar(&s.folder, "folder", "", `Slash-terminated fingerprint folder (default "fingerprints/")`)
	fs.StringVar(&s.configFolder, "config-folder", "", "Slash-terminated folder of control fingerprints. Defaults to $"+envConfigFolder)
	fs.StringVar(&s.somalier, "somalier", "", "somalier binary, a path or a name on $PATH. Defaults to $"+envSomalier)
	fs.StringVar(&s.scratch, "scratch", "", "Scratch directory for corrected fingerprints. Defaults to $"+envScratch+" or a temporary directory")
	fs.StringVar(&s.timezone, "timezone", "", `Time zone for created dates (default "UTC")`)
	fs.DurationVar(&s.timeout, "timeout", 0, "Limit on one somalier run; 0 means none")
	return s
}

// optsFlags are the classification flags.
type optsFlags struct {
	threshold       float64
	minimumN        int
	expectRelated   string
	exclude         string
	allowQueryPairs bool
}

func addOptsFlags(fs *flag.FlagSet) *optsFlags {
	o := &optsFlags{}
	fs.Float64Var(&o.threshold, "threshold", check.DefaultRelatednessThreshold, "Relatedness at or above which two fingerprints are related")
	fs.IntVar(&o.minimumN, "minimum-n", check.DefaultMinimumN, "Sites needed for a related call to be trusted")
	fs.StringVar(&o.expectRelated, "expect-related", check.DefaultExpectRelated,
		"Pattern over URLs; two URLs whose capture groups agree are expected to be related")
	fs.StringVar(&o.exclude, "exclude", "", "Pattern over URLs of fingerprints to leave out")
	fs.BoolVar(&o.allowQueryPairs, "allow-query-pairs", false, "Also classify pairs of two queries")
	return o
}

// load builds the effective config: defaults, then environment, then the
// config file, then flags that were set on the command line.
func (s *settings) load(ctx context.Context, fs *flag.FlagSet, o *optsFlags) (check.Config, error) {
	cfg := check.DefaultConfig()
	cfg.Bucket = os.Getenv(envBucket)
	cfg.ConfigFolder = os.Getenv(envConfigFolder)
	cfg.Somalier = os.Getenv(envSomalier)
	cfg.Scratch = os.Getenv(envScratch)
	if s.config != "" {
		fileCfg, err := check.LoadConfig(ctx, s.config)
		if err != nil {
			return cfg, errors.Wrap(err, "load settings")
		}
		// Empty file values keep the environment.
		if fileCfg.Bucket == "" {
			fileCfg.Bucket = cfg.Bucket
		}
		if fileCfg.ConfigFolder == "" {
			fileCfg.ConfigFolder = cfg.ConfigFolder
		}
		if fileCfg.Somalier == "" {
			fileCfg.Somalier = cfg.Somalier
		}
		if fileCfg.Scratch == "" {
			fileCfg.Scratch = cfg.Scratch
		}
		cfg = fileCfg
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "bucket":
			cfg.Bucket = s.bucket
		case "root":
			cfg.Root = s.root
		case "folder":
			cfg.Folder = s.folder
		case "config-folder":
			cfg.ConfigFolder = s.configFolder
		case "somalier":
			cfg.Somalier = s.somalier
		case "scratch":
			cfg.Scratch = s.scratch
		case "timezone":
			cfg.Timezone = s.timezone
		case "timeout":
			cfg.EngineTimeout = s.timeout
		}
		if o == nil {
			return
		}
		switch f.Name {
		case "threshold":
			cfg.RelatednessThreshold = o.threshold
		case "minimum-n":
			cfg.MinimumN = o.minimumN
		case "expect-related":
			cfg.ExpectRelated = o.expectRelated
		case "exclude":
			cfg.Exclude = o.exclude
		case "allow-query-pairs":
			cfg.AllowQueryPairs = o.allowQueryPairs
		}
	})
	if !strings.HasSuffix(cfg.Folder, "/") {
		return cfg, errors.Errorf("folder %q must end with a slash", cfg.Folder)
	}
	return cfg, nil
}

func openStore(cfg check.Config) (blobstore.Store, error) {
	if cfg.Root != "" {
		if strings.Contains(cfg.Root, "://") {
			return nil, errors.Errorf("-root %s must be a local directory; use -bucket for S3", cfg.Root)
		}
		return blobstore.NewFile(cfg.Root), nil
	}
	if cfg.Bucket == "" {
		return nil, errors.Errorf("no fingerprint store: set -bucket, -root or $%s", envBucket)
	}
	return blobstore.NewS3(cfg.Bucket)
}

func openEngine(cfg check.Config) (*somalier.Engine, error) {
	engine, err := somalier.NewEngine(cfg.Somalier)
	if err != nil {
		return nil, err
	}
	engine.Timeout = cfg.EngineTimeout
	return engine, nil
}

// scratchDir returns the configured scratch directory, or a new temporary
// one that cleanup removes.
func scratchDir(cfg check.Config) (dir string, cleanup func(), err error) {
	if cfg.Scratch != "" {
		return cfg.Scratch, func() {}, os.MkdirAll(cfg.Scratch, 0755)
	}
	dir, err = ioutil.TempDir("", "holmes")
	if err != nil {
		return "", nil, err
	}
	return dir, func() {
		if err := os.RemoveAll(dir); err != nil {
			log.Error.Printf("remove %s: %v", dir, err)
		}
	}, nil
}

// writeOutput writes to path, or to stdout when path is "-".
func writeOutput(ctx context.Context, path string, write func(io.Writer) error) (err error) {
	if path == "-" {
		return write(os.Stdout)
	}
	out, err := file.Create(ctx, path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer file.CloseAndReport(ctx, out, &err)
	return write(out.Writer(ctx))
}

// listFlag collects a flag that may be repeated. With split set, each value
// is also split at commas.
type listFlag struct {
	values []string
	split  bool
}

func (l *listFlag) String() string { return strings.Join(l.values, ",") }

func (l *listFlag) Set(v string) error {
	if !l.split {
		l.values = append(l.values, v)
		return nil
	}
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			l.values = append(l.values, s)
		}
	}
	return nil
}

func newCmdRoot() *cmdline.Command {
	return &cmdline.Command{
		Name:  "holmes",
		Short: "Check somalier fingerprints for sample swaps and contamination",
		Long: `
Holmes compares somalier fingerprints kept in an S3 bucket, or a directory,
against each other. Every fingerprint is stored under a key derived from the
URL of the reads file it was extracted from.`,
		LookPath: false,
		Children: []*cmdline.Command{
			newCmdCheck(),
			newCmdList(),
			newCmdRelate(),
			newCmdControl(),
			newCmdWorker(),
			newCmdMerge(),
		},
	}
}

// Run runs the holmes command line and exits.
func Run() {
	shutdown := grail.Init()
	cmdline.HideGlobalFlagsExcept()
	env := cmdline.EnvFromOS()
	err := cmdline.ParseAndRun(newCmdRoot(), env, os.Args[1:])
	shutdown()
	os.Exit(cmdline.ExitCode(err, env.Stderr))
}
