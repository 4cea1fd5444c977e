package fingerprint_test

import (
	"context"
	"encoding/hex"
	"regexp"
	"testing"
	"time"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/holmes/fingerprint"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

func urls(fps []fingerprint.Fingerprint) []string {
	var u []string
	for _, fp := range fps {
		u = append(u, fp.URL)
	}
	return u
}

func TestListPages(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	store.PageSize = 2
	put(t, store, "s3://b/SBJ00001_L2100001.bam", newBlob(2, 4, "abcd"), nil)
	put(t, store, "s3://b/SBJ00002_L2100002.bam", newBlob(2, 4, "abcd"), map[string]string{fingerprint.SubjectKey: "SBJ00009"})
	put(t, store, "s3://b/SBJ00003.bam", newBlob(2, 4, "abcd"), nil)
	assert.NoError(t, store.Put(ctx, folder, nil, nil))
	assert.NoError(t, store.Put(ctx, folder+"sub/", nil, nil))
	legacy := "s3://b/legacy.bam"
	assert.NoError(t, store.Put(ctx, folder+hex.EncodeToString([]byte(legacy)), newBlob(2, 4, "abcd"), nil))

	fps, err := fingerprint.ListAll(ctx, store, folder, fingerprint.ListOpts{Parallelism: 2})
	assert.NoError(t, err)
	expect.EQ(t, urls(fps), []string{
		legacy,
		"s3://b/SBJ00001_L2100001.bam",
		"s3://b/SBJ00002_L2100002.bam",
		"s3://b/SBJ00003.bam",
	})
	expect.EQ(t, fps[1].Subject, "SBJ00001")
	expect.EQ(t, fps[1].Library, "L2100001")
	expect.EQ(t, fps[2].Subject, "SBJ00009")
	expect.EQ(t, fps[3].Library, "")
	expect.EQ(t, fps[3].Created, stamp)
	calls := store.ListCalls()
	expect.EQ(t, calls, 3)

	// A new listing starts over.
	again, err := fingerprint.ListAll(ctx, store, folder, fingerprint.ListOpts{SkipMetadata: true})
	assert.NoError(t, err)
	expect.EQ(t, urls(again), urls(fps))
	expect.EQ(t, again[1].Subject, "")
}

func TestListMalformed(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	put(t, store, "s3://b/a.bam", newBlob(2, 4, "abcd"), nil)
	assert.NoError(t, store.Put(ctx, folder+"README.txt", []byte("hello"), nil))

	_, err := fingerprint.ListAll(ctx, store, folder, fingerprint.ListOpts{})
	expect.True(t, errors.Is(errors.Invalid, err))

	fps, err := fingerprint.ListAll(ctx, store, folder, fingerprint.ListOpts{SkipMalformed: true})
	assert.NoError(t, err)
	expect.EQ(t, urls(fps), []string{"s3://b/a.bam"})
}

func TestSelect(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	put(t, store, "s3://b/run1/SBJ00001_L2100001.bam", newBlob(2, 4, "abcd"), nil)
	put(t, store, "s3://b/run1/SBJ00002_L2100002.bam", newBlob(2, 4, "abcd"), nil)
	put(t, store, "s3://b/run2/x.bam", newBlob(2, 4, "abcd"), map[string]string{
		fingerprint.LibraryKey: "L2100099",
		fingerprint.CreatedKey: "2024-11-25T04:00:07Z",
	})
	put(t, store, "s3://b/run2/topup.bam", newBlob(2, 4, "abcd"), nil)

	fps, err := fingerprint.Select(ctx, store, folder, fingerprint.SelectOpts{
		Regexes: []*regexp.Regexp{regexp.MustCompile(`SBJ00002`), regexp.MustCompile(`^L210009\d$`)},
	})
	assert.NoError(t, err)
	expect.EQ(t, urls(fps), []string{"s3://b/run1/SBJ00002_L2100002.bam", "s3://b/run2/x.bam"})

	melbourne := time.FixedZone("AEDT", 11*60*60)
	fps, err = fingerprint.Select(ctx, store, folder, fingerprint.SelectOpts{
		Regexes:  []*regexp.Regexp{regexp.MustCompile(`^2024-11-25 15:`)},
		Location: melbourne,
	})
	assert.NoError(t, err)
	expect.EQ(t, urls(fps), []string{"s3://b/run2/x.bam"})

	fps, err = fingerprint.Select(ctx, store, folder, fingerprint.SelectOpts{
		Indexes: []string{"s3://b/run2/topup.bam"},
		Regexes: []*regexp.Regexp{regexp.MustCompile(`run2`)},
		Exclude: regexp.MustCompile(`topup`),
	})
	assert.NoError(t, err)
	expect.EQ(t, urls(fps), []string{"s3://b/run2/topup.bam", "s3://b/run2/x.bam"})

	_, err = fingerprint.Select(ctx, store, folder, fingerprint.SelectOpts{Indexes: []string{"s3://b/nope.bam"}})
	expect.True(t, errors.Is(errors.NotExist, err))
}

func TestControls(t *testing.T) {
	ctx := context.Background()
	store := newStore()
	config := "config/"
	assert.NoError(t, store.Put(ctx, fingerprint.ControlKey(config, "NA24385"), newBlob(2, 4, "abcd"), nil))
	assert.NoError(t, store.Put(ctx, fingerprint.ControlKey(config, "NA12878"), newBlob(2, 4, "abcd"), nil))
	assert.NoError(t, store.Put(ctx, config+"control.notes.txt", nil, nil))
	assert.NoError(t, store.Put(ctx, config+"sites.vcf.gz", nil, nil))

	controls, err := fingerprint.Controls(ctx, store, config)
	assert.NoError(t, err)
	expect.EQ(t, controls, []fingerprint.Control{
		{Key: "config/control.NA12878.bam.somalier", Name: "NA12878"},
		{Key: "config/control.NA24385.bam.somalier", Name: "NA24385"},
	})
}
