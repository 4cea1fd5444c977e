package blobstore

import (
	"bytes"
	"context"
	"io/ioutil"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/grailbio/base/errors"
)

// S3 is a Store backed by a single S3 bucket.
type S3 struct {
	bucket string
	client s3iface.S3API
}

// NewS3 creates a store for bucket using the default AWS credential chain.
func NewS3(bucket string) (*S3, error) {
	sess, err := session.NewSessionWithOptions(session.Options{
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return nil, errors.E(err, "create AWS session")
	}
	return NewS3WithClient(bucket, s3.New(sess)), nil
}

// NewS3WithClient creates a store for bucket using the given client.
func NewS3WithClient(bucket string, client s3iface.S3API) *S3 {
	return &S3{bucket: bucket, client: client}
}

// Bucket returns the name of the bucket.
func (s *S3) Bucket() string { return s.bucket }

// Get implements Store.
func (s *S3) Get(ctx context.Context, key string) ([]byte, Attrs, error) {
	out, err := s.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, Attrs{}, s.error(err, "get", key)
	}
	defer out.Body.Close() // nolint: errcheck
	data, err := ioutil.ReadAll(out.Body)
	if err != nil {
		return nil, Attrs{}, errors.E(errors.Unavailable, err, "read s3://"+s.bucket+"/"+key)
	}
	return data, Attrs{
		Key:          key,
		LastModified: aws.TimeValue(out.LastModified),
		Size:         int64(len(data)),
		Metadata:     lowerKeys(aws.StringValueMap(out.Metadata)),
	}, nil
}

// Head implements Store.
func (s *S3) Head(ctx context.Context, key string) (Attrs, error) {
	out, err := s.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return Attrs{}, s.error(err, "head", key)
	}
	return Attrs{
		Key:          key,
		LastModified: aws.TimeValue(out.LastModified),
		Size:         aws.Int64Value(out.ContentLength),
		Metadata:     lowerKeys(aws.StringValueMap(out.Metadata)),
	}, nil
}

// Put implements Store.
func (s *S3) Put(ctx context.Context, key string, data []byte, metadata map[string]string) error {
	_, err := s.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(key),
		Body:     bytes.NewReader(data),
		Metadata: aws.StringMap(metadata),
	})
	if err != nil {
		return s.error(err, "put", key)
	}
	return nil
}

// List implements Store. It issues exactly one ListObjectsV2 request.
func (s *S3) List(ctx context.Context, prefix, token string) (Page, error) {
	in := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	}
	if token != "" {
		in.ContinuationToken = aws.String(token)
	}
	out, err := s.client.ListObjectsV2WithContext(ctx, in)
	if err != nil {
		return Page{}, s.error(err, "list", prefix)
	}
	page := Page{Entries: make([]Entry, 0, len(out.Contents))}
	for _, o := range out.Contents {
		page.Entries = append(page.Entries, Entry{
			Key:          aws.StringValue(o.Key),
			LastModified: aws.TimeValue(o.LastModified),
			Size:         aws.Int64Value(o.Size),
		})
	}
	if aws.BoolValue(out.IsTruncated) {
		page.Next = aws.StringValue(out.NextContinuationToken)
	}
	return page, nil
}

func (s *S3) error(err error, op, key string) error {
	msg := op + " s3://" + s.bucket + "/" + key
	if aerr, ok := err.(awserr.Error); ok {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchKey, "NotFound":
			return errors.E(errors.NotExist, err, msg)
		case s3.ErrCodeNoSuchBucket:
			return errors.E(errors.NotExist, err, msg)
		case "AccessDenied", "Forbidden":
			return errors.E(errors.NotAllowed, err, msg)
		case request.CanceledErrorCode:
			return errors.E(errors.Canceled, err, msg)
		}
	}
	return errors.E(errors.Unavailable, err, msg)
}
