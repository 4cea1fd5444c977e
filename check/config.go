// Package check runs a fingerprint check: queries are compared against every
// fingerprint in a folder by independent batch workers, and the workers'
// classifications are merged per query.
package check

import (
	"bytes"
	"context"
	"regexp"
	"time"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/holmes/relate"
	"gopkg.in/yaml.v3"
)

// Defaults.
const (
	DefaultRelatednessThreshold = 0.8
	DefaultMinimumN             = 50
	DefaultExpectRelated        = `^.*(SBJ\d{5}).*$`
	DefaultBatchSize            = 50
	DefaultMaxQueries           = 100
	DefaultParallelism          = 8
)

// Opts are the classification settings shipped to every worker.
type Opts struct {
	RelatednessThreshold float64 `json:"relatednessThreshold" yaml:"relatedness_threshold"`
	MinimumN             int     `json:"minimumN" yaml:"minimum_n"`
	// ExpectRelated is a regular expression over reads file URLs; see
	// relate.Opts.
	ExpectRelated string `json:"expectRelated,omitempty" yaml:"expect_related"`
	// Exclude is a regular expression; candidates whose URL matches are not
	// compared.
	Exclude         string `json:"exclude,omitempty" yaml:"exclude"`
	AllowQueryPairs bool   `json:"allowQueryPairs,omitempty" yaml:"allow_query_pairs"`
}

// DefaultOpts returns the standard classification settings.
func DefaultOpts() Opts {
	return Opts{
		RelatednessThreshold: DefaultRelatednessThreshold,
		MinimumN:             DefaultMinimumN,
		ExpectRelated:        DefaultExpectRelated,
	}
}

func (o Opts) compile() (relate.Opts, *regexp.Regexp, error) {
	ro := relate.Opts{
		RelatednessThreshold: o.RelatednessThreshold,
		MinimumN:             o.MinimumN,
		AllowQueryPairs:      o.AllowQueryPairs,
	}
	var (
		exclude *regexp.Regexp
		err     error
	)
	if o.ExpectRelated != "" {
		if ro.ExpectRelated, err = regexp.Compile(o.ExpectRelated); err != nil {
			return ro, nil, errors.E(errors.Invalid, err, "expect related pattern")
		}
	}
	if o.Exclude != "" {
		if exclude, err = regexp.Compile(o.Exclude); err != nil {
			return ro, nil, errors.E(errors.Invalid, err, "exclude pattern")
		}
	}
	return ro, exclude, nil
}

// Config is the settings file read by the holmes command. Flags override it.
type Config struct {
	// Bucket holds the fingerprints.
	Bucket string `yaml:"bucket"`
	// Root, if set, is a directory used as the store instead of Bucket. Keys
	// are paths relative to it.
	Root string `yaml:"root"`
	// Folder is the slash-terminated fingerprint folder in Bucket.
	Folder string `yaml:"folder"`
	// ConfigFolder holds control fingerprints.
	ConfigFolder string `yaml:"config_folder"`
	// Somalier is the somalier binary, a path or a name on $PATH.
	Somalier string `yaml:"somalier"`
	// Scratch is where corrected fingerprints are written.
	Scratch       string        `yaml:"scratch"`
	EngineTimeout time.Duration `yaml:"engine_timeout"`
	BatchSize     int           `yaml:"batch_size"`
	MaxQueries    int           `yaml:"max_queries"`
	Parallelism   int           `yaml:"parallelism"`
	// Timezone is used to render and match created dates.
	Timezone string `yaml:"timezone"`
	Opts     `yaml:",inline"`
}

// DefaultConfig returns a Config with every default filled in.
func DefaultConfig() Config {
	return Config{
		Folder:      "fingerprints/",
		BatchSize:   DefaultBatchSize,
		MaxQueries:  DefaultMaxQueries,
		Parallelism: DefaultParallelism,
		Timezone:    "UTC",
		Opts:        DefaultOpts(),
	}
}

// LoadConfig reads a YAML config from a local path.
// Settings missing from the file keep their defaults.
func LoadConfig(ctx context.Context, path string) (cfg Config, err error) {
	cfg = DefaultConfig()
	in, err := file.Open(ctx, path)
	if err != nil {
		return cfg, errors.E(err, "open config", path)
	}
	defer file.CloseAndReport(ctx, in, &err)
	var buf bytes.Buffer
	if _, err = buf.ReadFrom(in.Reader(ctx)); err != nil {
		return cfg, errors.E(err, "read config", path)
	}
	if err = yaml.Unmarshal(buf.Bytes(), &cfg); err != nil {
		return cfg, errors.E(errors.Invalid, err, "parse config", path)
	}
	return cfg, nil
}

// Location returns the configured time zone.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, errors.E(errors.Invalid, err, "timezone", c.Timezone)
	}
	return loc, nil
}
