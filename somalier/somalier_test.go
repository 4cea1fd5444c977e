package somalier_test

import (
	"bytes"
	"context"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/holmes/somalier"
	"github.com/grailbio/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	shutdown := grail.Init()
	status := m.Run()
	shutdown()
	os.Exit(status)
}

func readTestdata(t *testing.T, name string) []byte {
	data, err := ioutil.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return data
}

func TestReadPairs(t *testing.T) {
	pairs, err := somalier.ReadPairs(bytes.NewReader(readTestdata(t, somalier.PairsFile)))
	require.NoError(t, err)
	require.Len(t, pairs, 6)
	assert.Equal(t, somalier.Pair{
		SampleA: "0000000",
		SampleB: "0000001",
		Stats: somalier.Stats{
			Relatedness:         -0.008,
			IBS0:                1364,
			IBS2:                7328,
			HomConcordance:      0,
			HetsA:               6583,
			HetsB:               6433,
			HetsAB:              12893,
			SharedHets:          2678,
			HomAltsA:            5376,
			HomAltsB:            5507,
			SharedHomAlts:       2727,
			N:                   16229,
			XIBS0:               59,
			XIBS2:               144,
			ExpectedRelatedness: -1,
		},
	}, pairs[0])
	assert.Equal(t, "0000002", pairs[5].SampleA)
	assert.Equal(t, "0000003", pairs[5].SampleB)
}

func TestReadPairsMalformed(t *testing.T) {
	for _, body := range []string{
		"a\tb\t0.5\t1\n",
		"a\tb\tnotanumber\t1364\t7328\t-0.000\t6583\t6433\t12893\t2678\t5376\t5507\t2727\t16229\t59\t144\t-1.0\n",
		// One column short, then one too many.
		"a\tb\t0.5\t1364\t7328\t-0.000\t6583\t6433\t12893\t2678\t5376\t5507\t2727\t16229\t59\t144\n",
		"a\tb\t0.5\t1364\t7328\t-0.000\t6583\t6433\t12893\t2678\t5376\t5507\t2727\t16229\t59\t144\t-1.0\textra\n",
	} {
		_, err := somalier.ReadPairs(strings.NewReader("#sample_a\tsample_b\n" + body))
		assert.True(t, errors.Is(errors.Unavailable, err), "error: %v", err)
	}
}

func TestReadSamplesShortRow(t *testing.T) {
	_, err := somalier.ReadSamples(strings.NewReader("#family_id\tsample_id\nfam\ts1\t-9\n"))
	assert.True(t, errors.Is(errors.Unavailable, err), "error: %v", err)
}

func TestPairSwap(t *testing.T) {
	p := somalier.Pair{SampleA: "a", SampleB: "b", Stats: somalier.Stats{
		Relatedness: -0.2, HetsA: 1, HetsB: 2, HomAltsA: 3, HomAltsB: 4, HetsAB: 5, SharedHets: 6, N: 7,
	}}
	p.Swap()
	assert.Equal(t, somalier.Pair{SampleA: "b", SampleB: "a", Stats: somalier.Stats{
		Relatedness: -0.2, HetsA: 2, HetsB: 1, HomAltsA: 4, HomAltsB: 3, HetsAB: 5, SharedHets: 6, N: 7,
	}}, p)
}

func TestReadSamples(t *testing.T) {
	samples, err := somalier.ReadSamples(bytes.NewReader(readTestdata(t, somalier.SamplesFile)))
	require.NoError(t, err)
	require.Len(t, samples, 4)
	s := samples[1]
	assert.Equal(t, "0000001", s.SampleID)
	assert.Equal(t, "-9", s.Sex)
	assert.Equal(t, 35.1, s.GTDepthMean)
	assert.Equal(t, 6433, s.NHet)
	assert.Equal(t, 333, s.XN)
	assert.Equal(t, 0, s.YN)
}

func TestCorrectIDs(t *testing.T) {
	ids := map[string]string{
		"0000000": "s3://b/a.bam",
		"0000001": "s3://b/b.bam",
		"0000002": "s3://b/c.bam",
		"0000003": "s3://b/d.bam",
	}
	out, err := somalier.CorrectIDs(readTestdata(t, somalier.PairsFile), ids, somalier.PairsIDColumns)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 7)
	assert.True(t, strings.HasPrefix(lines[0], "#sample_a\tsample_b\trelatedness"))
	assert.Equal(t, "s3://b/a.bam\ts3://b/b.bam\t-0.008\t1364", strings.Join(strings.Split(lines[1], "\t")[:4], "\t"))

	out, err = somalier.CorrectIDs(readTestdata(t, somalier.SamplesFile), ids, somalier.SamplesIDColumns)
	require.NoError(t, err)
	lines = strings.Split(strings.TrimSpace(string(out)), "\n")
	assert.Equal(t, []string{"0000003", "s3://b/d.bam", "-9"}, strings.Split(lines[4], "\t")[:3])

	delete(ids, "0000002")
	_, err = somalier.CorrectIDs(readTestdata(t, somalier.PairsFile), ids, somalier.PairsIDColumns)
	assert.True(t, errors.Is(errors.Unavailable, err))
}

func TestClean(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	for _, name := range []string{"00.somalier", "01.somalier", somalier.PairsFile, somalier.SamplesFile,
		somalier.GroupsFile, somalier.HTMLFile, "keep.txt", "sites.vcf.gz"} {
		require.NoError(t, ioutil.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}
	require.NoError(t, somalier.Clean(dir))
	infos, err := ioutil.ReadDir(dir)
	require.NoError(t, err)
	var left []string
	for _, info := range infos {
		left = append(left, info.Name())
	}
	assert.Equal(t, []string{"keep.txt", "sites.vcf.gz"}, left)

	assert.NoError(t, somalier.Clean(filepath.Join(dir, "missing")))
}

// fakeSomalier writes a script that behaves like "somalier relate": it
// records its arguments and copies the testdata reports into its working
// directory.
func fakeSomalier(t *testing.T, dir, body string) string {
	testdata, err := filepath.Abs("testdata")
	require.NoError(t, err)
	path := filepath.Join(dir, "fake-somalier")
	script := fmt.Sprintf(`#!/bin/sh
TESTDATA=%s
echo "[somalier] starting read of $(($# - 1)) samples" >&2
%s
`, testdata, body)
	require.NoError(t, ioutil.WriteFile(path, []byte(script), 0755))
	return path
}

const relateOK = `[ "$SOMALIER_REPORT_ALL_PAIRS" = 1 ] || exit 3
echo "$@" > args.txt
cp "$TESTDATA/somalier.pairs.tsv" "$TESTDATA/somalier.samples.tsv" .`

func TestEngineRelate(t *testing.T) {
	ctx := context.Background()
	bin, cleanupBin := testutil.TempDir(t, "", "")
	defer cleanupBin()
	work, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	for _, name := range []string{"0000001.somalier", "0000000.somalier"} {
		require.NoError(t, ioutil.WriteFile(filepath.Join(work, name), []byte{2, 7}, 0644))
	}

	engine, err := somalier.NewEngine(fakeSomalier(t, bin, relateOK))
	require.NoError(t, err)
	out, err := engine.Relate(ctx, work)
	require.NoError(t, err)
	assert.Len(t, out.Pairs, 6)
	assert.Len(t, out.Samples, 4)
	assert.Equal(t, readTestdata(t, somalier.PairsFile), out.PairsTSV)

	args, err := ioutil.ReadFile(filepath.Join(work, "args.txt"))
	require.NoError(t, err)
	assert.Equal(t, "relate 0000000.somalier 0000001.somalier\n", string(args))
}

func TestEngineFailures(t *testing.T) {
	ctx := context.Background()
	bin, cleanupBin := testutil.TempDir(t, "", "")
	defer cleanupBin()
	work, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	engine := &somalier.Engine{Binary: fakeSomalier(t, bin, relateOK)}
	_, err := engine.Relate(ctx, work)
	assert.True(t, errors.Is(errors.Precondition, err), "no inputs: %v", err)

	require.NoError(t, ioutil.WriteFile(filepath.Join(work, "00.somalier"), []byte{2, 2}, 0644))

	engine = &somalier.Engine{Binary: fakeSomalier(t, bin, "exit 1")}
	_, err = engine.Relate(ctx, work)
	assert.True(t, errors.Is(errors.Unavailable, err), "exit status: %v", err)

	engine = &somalier.Engine{Binary: fakeSomalier(t, bin, "echo garbage > somalier.pairs.tsv; touch somalier.samples.tsv")}
	_, err = engine.Relate(ctx, work)
	assert.True(t, errors.Is(errors.Unavailable, err), "bad report: %v", err)

	engine = &somalier.Engine{Binary: fakeSomalier(t, bin, "exec sleep 10"), Timeout: 100 * time.Millisecond}
	_, err = engine.Relate(ctx, work)
	assert.True(t, errors.Is(errors.Timeout, err), "timeout: %v", err)
}
