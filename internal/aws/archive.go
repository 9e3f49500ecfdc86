package aws

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Archive writes rendered receipts to an S3 bucket.
type Archive struct {
	S3     S3API
	Bucket string
}

// NewArchive returns an Archive bound to a bucket.
func NewArchive(s3Client S3API, bucket string) *Archive {
	return &Archive{
		S3:     s3Client,
		Bucket: bucket,
	}
}

// Put stores body under key, replacing any previous object with the same key.
func (a *Archive) Put(ctx context.Context, key string, body []byte, contentType string) error {
	size := int64(len(body))
	_, err := a.S3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        &a.Bucket,
		Key:           &key,
		Body:          bytes.NewReader(body),
		ContentLength: &size,
		ContentType:   &contentType,
	})
	if err != nil {
		return fmt.Errorf("put object %s/%s: %w", a.Bucket, key, err)
	}
	return nil
}
