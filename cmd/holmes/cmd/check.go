package cmd

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"regexp"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/log"
	"github.com/grailbio/holmes/check"
	"github.com/grailbio/holmes/fingerprint"
	"github.com/grailbio/holmes/relate"
	"github.com/pkg/errors"
	"v.io/x/lib/cmdline"
)

func newCmdCheck() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:  "check",
		Short: "Compare fingerprints against every fingerprint in the folder",
		Long: `
Check compares each selected fingerprint (an index) against every fingerprint
in the folder and classifies each comparison: the index itself, expected
related, unexpected related and unexpected unrelated. Two fingerprints are
expected to be related when the capture groups of -expect-related agree on
their URLs.

Indexes are given with -index, as reads file URLs, or chosen with -regex,
which matches URLs, created dates, subject and library identifiers.`,
	}
	s := addSettings(&cmd.Flags)
	o := addOptsFlags(&cmd.Flags)
	indexes := &listFlag{split: true}
	regexes := &listFlag{}
	cmd.Flags.Var(indexes, "index", "Reads file URL to check. May be repeated or comma separated")
	cmd.Flags.Var(regexes, "regex", "Pattern selecting fingerprints to check. May be repeated")
	batchSize := cmd.Flags.Int("batch-size", 0, "Fingerprints per somalier run (default 50)")
	maxQueries := cmd.Flags.Int("max-queries", 0, "Most indexes checked in one run (default 100)")
	parallelism := cmd.Flags.Int("parallelism", 0, "Concurrent somalier runs (default 8)")
	out := cmd.Flags.String("out", "", "Write the results as JSON to this path; - is stdout")
	report := cmd.Flags.String("report", "-", "Write the text report to this path; empty to skip")
	shardDir := cmd.Flags.String("shard-dir", "", "Keep each batch's classifications in this directory")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 0 {
			return env.UsageErrorf("check takes no arguments, but got %v", argv)
		}
		ctx := context.Background()
		cfg, err := s.load(ctx, &cmd.Flags, o)
		if err != nil {
			return err
		}
		if *batchSize > 0 {
			cfg.BatchSize = *batchSize
		}
		if *maxQueries > 0 {
			cfg.MaxQueries = *maxQueries
		}
		if *parallelism > 0 {
			cfg.Parallelism = *parallelism
		}
		if len(indexes.values) == 0 && len(regexes.values) == 0 {
			return env.UsageErrorf("check needs -index or -regex")
		}
		req := check.Request{
			Folder:     cfg.Folder,
			Indexes:    indexes.values,
			Opts:       cfg.Opts,
			BatchSize:  cfg.BatchSize,
			MaxQueries: cfg.MaxQueries,
		}
		for _, r := range regexes.values {
			re, err := regexp.Compile(r)
			if err != nil {
				return errors.Wrapf(err, "-regex %q", r)
			}
			req.Regexes = append(req.Regexes, re)
		}
		if req.Location, err = cfg.Location(); err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		engine, err := openEngine(cfg)
		if err != nil {
			return err
		}
		scratch, cleanup, err := scratchDir(cfg)
		if err != nil {
			return errors.Wrap(err, "scratch directory")
		}
		defer cleanup()
		if *shardDir != "" {
			if err := os.MkdirAll(*shardDir, 0755); err != nil {
				return err
			}
		}
		runner := &check.LocalRunner{
			Store:       store,
			Engine:      engine,
			ScratchDir:  scratch,
			Parallelism: cfg.Parallelism,
			Resolver:    fingerprint.DefaultResolver(cfg.Folder),
			OutputDir:   *shardDir,
		}
		res, err := check.Check(ctx, store, runner, req)
		if err != nil {
			return err
		}
		if res.Truncated {
			log.Printf("only the first %d indexes were checked", cfg.MaxQueries)
		}
		if *out != "" {
			err := writeOutput(ctx, *out, func(w io.Writer) error {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			})
			if err != nil {
				return err
			}
		}
		if *report != "" {
			return writeOutput(ctx, *report, func(w io.Writer) error {
				return relate.WriteCheckReport(w, res.Relations)
			})
		}
		return nil
	})
	return cmd
}
