package blobstore

import (
	"bytes"
	"context"
	"io/ioutil"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/grailbio/base/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 serves a fixed set of objects, two keys per listing page.
type fakeS3 struct {
	s3iface.S3API
	objects  map[string][]byte
	metadata map[string]map[string]*string
	keys     []string
	puts     []*s3.PutObjectInput
}

var modified = time.Date(2022, 12, 20, 5, 34, 7, 0, time.UTC)

func (f *fakeS3) GetObjectWithContext(ctx aws.Context, in *s3.GetObjectInput, _ ...request.Option) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[aws.StringValue(in.Key)]
	if !ok {
		return nil, awserr.New(s3.ErrCodeNoSuchKey, "no such key", nil)
	}
	return &s3.GetObjectOutput{
		Body:         ioutil.NopCloser(bytes.NewReader(data)),
		LastModified: aws.Time(modified),
		Metadata:     f.metadata[aws.StringValue(in.Key)],
	}, nil
}

func (f *fakeS3) HeadObjectWithContext(ctx aws.Context, in *s3.HeadObjectInput, _ ...request.Option) (*s3.HeadObjectOutput, error) {
	data, ok := f.objects[aws.StringValue(in.Key)]
	if !ok {
		return nil, awserr.New("NotFound", "not found", nil)
	}
	return &s3.HeadObjectOutput{
		ContentLength: aws.Int64(int64(len(data))),
		LastModified:  aws.Time(modified),
		Metadata:      f.metadata[aws.StringValue(in.Key)],
	}, nil
}

func (f *fakeS3) PutObjectWithContext(ctx aws.Context, in *s3.PutObjectInput, _ ...request.Option) (*s3.PutObjectOutput, error) {
	f.puts = append(f.puts, in)
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2WithContext(ctx aws.Context, in *s3.ListObjectsV2Input, _ ...request.Option) (*s3.ListObjectsV2Output, error) {
	start := 0
	if in.ContinuationToken != nil {
		start = int(aws.StringValue(in.ContinuationToken)[0] - '0')
	}
	end := start + 2
	if end > len(f.keys) {
		end = len(f.keys)
	}
	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(end < len(f.keys))}
	for _, k := range f.keys[start:end] {
		out.Contents = append(out.Contents, &s3.Object{
			Key:          aws.String(k),
			LastModified: aws.Time(modified),
			Size:         aws.Int64(int64(len(f.objects[k]))),
		})
	}
	if end < len(f.keys) {
		out.NextContinuationToken = aws.String(string(rune('0' + end)))
	}
	return out, nil
}

func newFakeS3() *fakeS3 {
	return &fakeS3{
		objects: map[string][]byte{
			"fingerprints/a": []byte("aa"),
			"fingerprints/b": []byte("bbb"),
			"fingerprints/c": []byte("c"),
		},
		metadata: map[string]map[string]*string{
			"fingerprints/a": {"Subject-Identifier": aws.String("SBJ00001")},
		},
		keys: []string{"fingerprints/a", "fingerprints/b", "fingerprints/c"},
	}
}

func TestS3Get(t *testing.T) {
	ctx := context.Background()
	s := NewS3WithClient("bucket", newFakeS3())

	data, attrs, err := s.Get(ctx, "fingerprints/a")
	require.NoError(t, err)
	assert.Equal(t, []byte("aa"), data)
	assert.Equal(t, modified, attrs.LastModified)
	assert.Equal(t, "SBJ00001", attrs.Metadata["subject-identifier"])

	_, _, err = s.Get(ctx, "fingerprints/missing")
	require.Error(t, err)
	assert.True(t, errors.Is(errors.NotExist, err))

	_, err = s.Head(ctx, "fingerprints/missing")
	assert.True(t, errors.Is(errors.NotExist, err))
}

func TestS3ListPages(t *testing.T) {
	ctx := context.Background()
	s := NewS3WithClient("bucket", newFakeS3())

	var keys []string
	token := ""
	pages := 0
	for {
		page, err := s.List(ctx, "fingerprints/", token)
		require.NoError(t, err)
		pages++
		for _, e := range page.Entries {
			keys = append(keys, e.Key)
		}
		if page.Next == "" {
			break
		}
		token = page.Next
	}
	assert.Equal(t, 2, pages)
	assert.Equal(t, []string{"fingerprints/a", "fingerprints/b", "fingerprints/c"}, keys)
}

func TestS3Put(t *testing.T) {
	fake := newFakeS3()
	s := NewS3WithClient("bucket", fake)
	require.NoError(t, s.Put(context.Background(), "fingerprints/d", []byte("d"),
		map[string]string{"library-identifier": "L2200417"}))
	require.Len(t, fake.puts, 1)
	assert.Equal(t, "bucket", aws.StringValue(fake.puts[0].Bucket))
	assert.Equal(t, "L2200417", aws.StringValue(fake.puts[0].Metadata["library-identifier"]))
}
