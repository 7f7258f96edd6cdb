// Package objectstore adapts Google Cloud Storage to the profile service.
package objectstore

import (
	"context"
	"io"

	"cloud.google.com/go/storage"

	"github.com/oksasatya/ngo-backoffice/pkg/helpers"
)

type GCS struct {
	client *storage.Client
	bucket string
}

// NewGCS returns nil when no client or bucket is configured.
func NewGCS(client *storage.Client, bucket string) *GCS {
	if client == nil || bucket == "" {
		return nil
	}
	return &GCS{client: client, bucket: bucket}
}

func (g *GCS) Upload(ctx context.Context, objectPath, contentType string, r io.Reader) (string, error) {
	return helpers.UploadObject(ctx, g.client, g.bucket, objectPath, contentType, r)
}
