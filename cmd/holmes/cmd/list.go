package cmd

import (
	"context"
	"encoding/json"
	"io"
	"regexp"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/holmes/fingerprint"
	"github.com/grailbio/holmes/relate"
	"github.com/pkg/errors"
	"v.io/x/lib/cmdline"
)

func newCmdList() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:  "list",
		Short: "List fingerprints with their metadata",
		Long: `
List shows the fingerprints in the folder, or only those named by -index or
matched by -regex, with their created date, subject and library identifiers.`,
	}
	s := addSettings(&cmd.Flags)
	indexes := &listFlag{split: true}
	regexes := &listFlag{}
	cmd.Flags.Var(indexes, "index", "Reads file URL to show. May be repeated or comma separated")
	cmd.Flags.Var(regexes, "regex", "Pattern selecting fingerprints to show. May be repeated")
	exclude := cmd.Flags.String("exclude", "", "Pattern over URLs of fingerprints to leave out")
	parallelism := cmd.Flags.Int("parallelism", fingerprint.DefaultParallelism, "Concurrent metadata requests")
	asJSON := cmd.Flags.Bool("json", false, "Write JSON instead of a table")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 0 {
			return env.UsageErrorf("list takes no arguments, but got %v", argv)
		}
		ctx := context.Background()
		cfg, err := s.load(ctx, &cmd.Flags, nil)
		if err != nil {
			return err
		}
		loc, err := cfg.Location()
		if err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		opts := fingerprint.SelectOpts{
			ListOpts: fingerprint.ListOpts{Parallelism: *parallelism, SkipMalformed: true},
			Indexes:  indexes.values,
			Location: loc,
		}
		for _, r := range regexes.values {
			re, err := regexp.Compile(r)
			if err != nil {
				return errors.Wrapf(err, "-regex %q", r)
			}
			opts.Regexes = append(opts.Regexes, re)
		}
		if *exclude != "" {
			if opts.Exclude, err = regexp.Compile(*exclude); err != nil {
				return errors.Wrapf(err, "-exclude %q", *exclude)
			}
		}
		var fps []fingerprint.Fingerprint
		if len(opts.Indexes) == 0 && len(opts.Regexes) == 0 {
			l := fingerprint.List(ctx, store, cfg.Folder, opts.ListOpts)
			for l.Scan() {
				if fp := l.Fingerprint(); opts.Exclude == nil || !opts.Exclude.MatchString(fp.URL) {
					fps = append(fps, fp)
				}
			}
			err = l.Err()
		} else {
			fps, err = fingerprint.Select(ctx, store, cfg.Folder, opts)
		}
		if err != nil {
			return err
		}
		return writeOutput(ctx, "-", func(w io.Writer) error {
			if *asJSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(fps)
			}
			return relate.WriteListReport(w, fps, loc)
		})
	})
	return cmd
}
