package relate

import (
	"context"
	"encoding/json"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/klauspost/compress/gzip"
)

// WriteShard stores shard at path as gzipped JSON. Path may be any location
// understood by grailbio/base/file.
func WriteShard(ctx context.Context, path string, shard Shard) (err error) {
	out, err := file.Create(ctx, path)
	if err != nil {
		return errors.E(err, "create shard", path)
	}
	defer file.CloseAndReport(ctx, out, &err)
	gz := gzip.NewWriter(out.Writer(ctx))
	if err = json.NewEncoder(gz).Encode(shard); err != nil {
		gz.Close() // nolint: errcheck
		return errors.E(err, "encode shard", path)
	}
	if err = gz.Close(); err != nil {
		return errors.E(err, "compress shard", path)
	}
	return nil
}

// ReadShard reads a shard written by WriteShard.
func ReadShard(ctx context.Context, path string) (shard Shard, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, "open shard", path)
	}
	defer file.CloseAndReport(ctx, in, &err)
	gz, err := gzip.NewReader(in.Reader(ctx))
	if err != nil {
		return nil, errors.E(errors.Invalid, err, "decompress shard", path)
	}
	defer gz.Close() // nolint: errcheck
	if err = json.NewDecoder(gz).Decode(&shard); err != nil {
		return nil, errors.E(errors.Invalid, err, "decode shard", path)
	}
	return shard, nil
}

// ReadShards reads every shard in paths.
func ReadShards(ctx context.Context, paths []string) ([]Shard, error) {
	shards := make([]Shard, len(paths))
	for i, path := range paths {
		var err error
		if shards[i], err = ReadShard(ctx, path); err != nil {
			return nil, err
		}
	}
	return shards, nil
}
