package storage

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3 handles S3 uploads for narration audio.
type S3 struct {
	client     *s3.Client
	bucket     string
	cdnBaseURL string // e.g. "https://audio.echojam.app"
}

// NewS3 creates an S3 uploader. Objects are served from cdnBaseURL, or from
// the bucket's virtual-hosted endpoint when it is empty.
func NewS3(client *s3.Client, bucket, region, cdnBaseURL string) *S3 {
	if cdnBaseURL == "" {
		cdnBaseURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", bucket, region)
	}
	return &S3{client: client, bucket: bucket, cdnBaseURL: cdnBaseURL}
}

func (s *S3) Name() string { return "s3" }

// Upload puts an MP3 object and returns its public URL.
func (s *S3) Upload(ctx context.Context, data []byte, routeID, persona, stopID string) (string, error) {
	key := ObjectKey(routeID, persona, stopID)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        &s.bucket,
		Key:           &key,
		Body:          bytes.NewReader(data),
		ContentType:   aws.String("audio/mpeg"),
		ContentLength: aws.Int64(int64(len(data))),
		CacheControl:  aws.String("public, max-age=300"),
	})
	if err != nil {
		return "", fmt.Errorf("upload to s3: %w", err)
	}
	return publicURL(s.cdnBaseURL, key), nil
}
