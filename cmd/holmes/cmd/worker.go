package cmd

import (
	"context"
	"encoding/json"
	"io"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/file"
	"github.com/grailbio/holmes/check"
	"github.com/grailbio/holmes/fingerprint"
	"github.com/grailbio/holmes/relate"
	"github.com/pkg/errors"
	"v.io/x/lib/cmdline"
)

func newCmdWorker() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "worker",
		Short:    "Run one batch of a check",
		ArgsName: "task.json shard.json.gz",
		Long: `
Worker runs one batch of a check on this machine. The task file is the JSON
encoding of a batch: its queries, its candidate keys, the folder and the
classification settings. The classifications are written gzipped to the local
shard path; merge combines shards.`,
	}
	s := addSettings(&cmd.Flags)
	start := cmd.Flags.Int("start", 0, "First sample sequence number")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 2 {
			return env.UsageErrorf("worker takes a task path and a shard path, but got %v", argv)
		}
		ctx := context.Background()
		cfg, err := s.load(ctx, &cmd.Flags, nil)
		if err != nil {
			return err
		}
		data, err := file.ReadFile(ctx, argv[0])
		if err != nil {
			return errors.Wrapf(err, "read task %s", argv[0])
		}
		var task check.Task
		if err = json.Unmarshal(data, &task); err != nil {
			return errors.Wrapf(err, "parse task %s", argv[0])
		}
		if task.Folder == "" {
			task.Folder = cfg.Folder
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
		w := check.Worker{
			Store:      store,
			Engine:     engine,
			ScratchDir: scratch,
			Start:      *start,
			Resolver:   fingerprint.DefaultResolver(task.Folder),
		}
		shard, err := w.Run(ctx, task)
		if err != nil {
			return err
		}
		return relate.WriteShard(ctx, argv[1], shard)
	})
	return cmd
}

func newCmdMerge() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "merge",
		Short:    "Merge the shards written by workers",
		ArgsName: "shard.json.gz...",
		Long: `
Merge combines the classifications of several batches into one result per
query and reports it. Every shard must come from the same check.`,
	}
	out := cmd.Flags.String("out", "", "Write the merged results as JSON to this path; - is stdout")
	report := cmd.Flags.String("report", "-", "Write the text report to this path; empty to skip")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) == 0 {
			return env.UsageErrorf("merge takes at least one shard")
		}
		ctx := context.Background()
		shards, err := relate.ReadShards(ctx, argv)
		if err != nil {
			return err
		}
		relations, err := relate.Merge(shards...)
		if err != nil {
			return err
		}
		res := check.Result{Relations: relations}
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
				return relate.WriteCheckReport(w, relations)
			})
		}
		return nil
	})
	return cmd
}
