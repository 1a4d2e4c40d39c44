package snapshot

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/rotisserie/eris"
)

// S3 is the object-storage backend. Object puts are atomic, which gives the
// same no-partial-reads guarantee the local backend gets from rename.
type S3 struct {
	client s3iface.S3API
	bucket string
	prefix string
}

// OpenS3 parses an s3://bucket/prefix root and builds the backend.
func OpenS3(root, region string) (*S3, error) {
	trimmed := strings.TrimPrefix(root, "s3://")
	bucket, prefix, _ := strings.Cut(trimmed, "/")
	if bucket == "" {
		return nil, eris.Errorf("snapshot: invalid s3 root %q", root)
	}

	sess, err := session.NewSession(&aws.Config{Region: aws.String(region)})
	if err != nil {
		return nil, eris.Wrap(err, "snapshot: create aws session")
	}

	return &S3{client: s3.New(sess), bucket: bucket, prefix: strings.Trim(prefix, "/")}, nil
}

// NewS3WithClient builds the backend around an existing client. Used by tests.
func NewS3WithClient(client s3iface.S3API, bucket, prefix string) *S3 {
	return &S3{client: client, bucket: bucket, prefix: strings.Trim(prefix, "/")}
}

func (b *S3) objectKey(key string) string {
	if b.prefix == "" {
		return key
	}
	return b.prefix + "/" + key
}

// Write stores data at key.
func (b *S3) Write(ctx context.Context, key string, data []byte) error {
	_, err := b.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.objectKey(key)),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return eris.Wrapf(err, "s3: put %s", key)
	}
	return nil
}

// Read returns the object at key.
func (b *S3) Read(ctx context.Context, key string) ([]byte, error) {
	out, err := b.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucket),
		Key:    aws.String(b.objectKey(key)),
	})
	if err != nil {
		return nil, eris.Wrapf(err, "s3: get %s", key)
	}
	defer out.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, eris.Wrapf(err, "s3: read %s", key)
	}
	return data, nil
}

// List returns all keys under prefix, sorted.
func (b *S3) List(ctx context.Context, prefix string) ([]string, error) {
	full := b.objectKey(prefix)
	var keys []string

	err := b.client.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(b.bucket),
		Prefix: aws.String(full),
	}, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, obj := range page.Contents {
			key := aws.StringValue(obj.Key)
			if b.prefix != "" {
				key = strings.TrimPrefix(key, b.prefix+"/")
			}
			keys = append(keys, key)
		}
		return true
	})
	if err != nil {
		return nil, eris.Wrapf(err, "s3: list %s", prefix)
	}
	sort.Strings(keys)
	return keys, nil
}
