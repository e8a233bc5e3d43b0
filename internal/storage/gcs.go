package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"

	gcs "cloud.google.com/go/storage"
)

// GCS handles Google Cloud Storage uploads for narration audio.
type GCS struct {
	client     *gcs.Client
	bucket     string
	cdnBaseURL string
}

// NewGCS creates a GCS uploader. Objects are served from cdnBaseURL, or from
// storage.googleapis.com when it is empty.
func NewGCS(client *gcs.Client, bucket, cdnBaseURL string) *GCS {
	if cdnBaseURL == "" {
		cdnBaseURL = "https://storage.googleapis.com/" + bucket
	}
	return &GCS{client: client, bucket: bucket, cdnBaseURL: cdnBaseURL}
}

func (g *GCS) Name() string { return "gcs" }

// Upload writes an MP3 object and returns its public URL.
func (g *GCS) Upload(ctx context.Context, data []byte, routeID, persona, stopID string) (string, error) {
	key := ObjectKey(routeID, persona, stopID)
	w := g.client.Bucket(g.bucket).Object(key).NewWriter(ctx)
	w.ContentType = "audio/mpeg"
	w.CacheControl = "public, max-age=300"
	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("failed to write data to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to close GCS writer: %w", err)
	}
	return publicURL(g.cdnBaseURL, key), nil
}

func (g *GCS) Close() error { return g.client.Close() }
