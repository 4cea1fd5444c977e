package fingerprint_test

import (
	"testing"

	"github.com/grailbio/holmes/fingerprint"
	"github.com/grailbio/testutil/expect"
)

func TestClosest(t *testing.T) {
	urls := []string{
		"s3://b/SBJ00001/L2100001.bam",
		"s3://b/SBJ00002/L2100002.bam",
		"s3://b/SBJ00002/L2100003.bam",
	}
	expect.EQ(t, fingerprint.Closest("s3://b/SBJ00002/L2100002.cram", urls), urls[1])
	expect.EQ(t, fingerprint.Closest("s3://b/SBJ00001/L2100001.bam", urls), urls[0])
	// Equally close to the last two; the first wins.
	expect.EQ(t, fingerprint.Closest("s3://b/SBJ00002/L2100009.bam", urls), urls[1])
	expect.EQ(t, fingerprint.Closest("s3://b/x.bam", nil), "")
}
