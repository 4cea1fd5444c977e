package cmd

import (
	"context"
	"io"
	"path/filepath"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/log"
	"github.com/grailbio/holmes/blobstore"
	"github.com/grailbio/holmes/check"
	"github.com/grailbio/holmes/fingerprint"
	"github.com/grailbio/holmes/relate"
	"github.com/grailbio/holmes/somalier"
	"github.com/pkg/errors"
	"v.io/x/lib/cmdline"
)

// source is a fingerprint to relate and the name it is reported under.
type source struct {
	key, display string
}

// relateSources corrects sources into a scratch directory, numbering them from
// 1, and relates them. It returns the engine output and the display name of
// each sample id.
func relateSources(ctx context.Context, cfg check.Config, store blobstore.Store, sources []source) (*somalier.Output, map[string]string, error) {
	engine, err := openEngine(cfg)
	if err != nil {
		return nil, nil, err
	}
	dir, cleanup, err := scratchDir(cfg)
	if err != nil {
		return nil, nil, errors.Wrap(err, "scratch directory")
	}
	defer cleanup()
	if err = somalier.Clean(dir); err != nil {
		return nil, nil, err
	}
	defer func() {
		if err := somalier.Clean(dir); err != nil {
			log.Error.Printf("clean %s: %v", dir, err)
		}
	}()

	var (
		counter   = fingerprint.NewCounter(1)
		corrector = fingerprint.Corrector{Store: store, Dir: dir}
		ids       = make(map[string]string, len(sources))
	)
	for _, src := range sources {
		c, err := corrector.Correct(ctx, src.key, src.display, counter.Next())
		if err != nil {
			return nil, nil, err
		}
		ids[c.SampleID] = src.display
	}
	out, err := engine.Relate(ctx, dir)
	if err != nil {
		return nil, nil, err
	}
	return out, ids, nil
}

func newCmdRelate() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "relate",
		Short:    "Relate fingerprints with each other",
		ArgsName: "url...",
		Long: `
Relate runs somalier relate on the fingerprints of the given reads file URLs
and writes its pairs and samples reports with sample ids replaced by URLs.`,
	}
	s := addSettings(&cmd.Flags)
	outDir := cmd.Flags.String("out", "", "Write "+somalier.PairsFile+" and "+somalier.SamplesFile+
		" into this directory instead of printing the pairs report")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) < 2 {
			return env.UsageErrorf("relate takes at least two URLs, but got %v", argv)
		}
		ctx := context.Background()
		cfg, err := s.load(ctx, &cmd.Flags, nil)
		if err != nil {
			return err
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		sources := make([]source, len(argv))
		for i, u := range argv {
			key, err := fingerprint.EncodeKey(cfg.Folder, u)
			if err != nil {
				return err
			}
			sources[i] = source{key: key, display: u}
		}
		out, ids, err := relateSources(ctx, cfg, store, sources)
		if err != nil {
			return err
		}
		pairs, err := somalier.CorrectIDs(out.PairsTSV, ids, somalier.PairsIDColumns)
		if err != nil {
			return err
		}
		if *outDir == "" {
			return writeOutput(ctx, "-", func(w io.Writer) error {
				_, err := w.Write(pairs)
				return err
			})
		}
		samples, err := somalier.CorrectIDs(out.SamplesTSV, ids, somalier.SamplesIDColumns)
		if err != nil {
			return err
		}
		for name, data := range map[string][]byte{somalier.PairsFile: pairs, somalier.SamplesFile: samples} {
			data := data
			err := writeOutput(ctx, filepath.Join(*outDir, name), func(w io.Writer) error {
				_, err := w.Write(data)
				return err
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	return cmd
}

func newCmdControl() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "control",
		Short:    "Relate a fingerprint with the control fingerprints",
		ArgsName: "url",
		Long: `
Control relates the fingerprint of one reads file URL with every control
fingerprint in the config folder, and shows how related it is to each.`,
	}
	s := addSettings(&cmd.Flags)
	o := addOptsFlags(&cmd.Flags)
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 1 {
			return env.UsageErrorf("control takes one URL, but got %v", argv)
		}
		ctx := context.Background()
		cfg, err := s.load(ctx, &cmd.Flags, o)
		if err != nil {
			return err
		}
		if cfg.ConfigFolder == "" {
			return env.UsageErrorf("control needs -config-folder or $%s", envConfigFolder)
		}
		store, err := openStore(cfg)
		if err != nil {
			return err
		}
		key, err := fingerprint.EncodeKey(cfg.Folder, argv[0])
		if err != nil {
			return err
		}
		controls, err := fingerprint.Controls(ctx, store, cfg.ConfigFolder)
		if err != nil {
			return err
		}
		if len(controls) == 0 {
			return errors.Errorf("no control fingerprints in %s", cfg.ConfigFolder)
		}
		sources := []source{{key: key, display: argv[0]}}
		for _, c := range controls {
			sources = append(sources, source{key: c.Key, display: c.Name})
		}
		out, ids, err := relateSources(ctx, cfg, store, sources)
		if err != nil {
			return err
		}
		pairs := make([]somalier.Pair, 0, len(out.Pairs))
		for _, p := range out.Pairs {
			a, okA := ids[p.SampleA]
			b, okB := ids[p.SampleB]
			if !okA || !okB {
				return errors.Errorf("somalier reported unknown samples %s, %s", p.SampleA, p.SampleB)
			}
			p.SampleA, p.SampleB = a, b
			pairs = append(pairs, p)
		}
		opts := relate.Opts{RelatednessThreshold: cfg.RelatednessThreshold, MinimumN: cfg.MinimumN}
		return writeOutput(ctx, "-", func(w io.Writer) error {
			return relate.WriteControlReport(w, argv[0], pairs, opts)
		})
	})
	return cmd
}
