package artifact

import (
	"context"
	"fmt"

	"cloud.google.com/go/storage"
)

// Sink receives a copy of the written artifact.
type Sink interface {
	Put(ctx context.Context, data []byte) error
}

// GCSSink mirrors the artifact bytes to one object in a Cloud Storage bucket.
type GCSSink struct {
	Client *storage.Client
	Bucket string
	Object string
}

// NewGCSSink creates a client using Application Default Credentials.
func NewGCSSink(ctx context.Context, bucket, object string) (*GCSSink, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create GCS client: %w", err)
	}
	return &GCSSink{Client: client, Bucket: bucket, Object: object}, nil
}

// Put uploads data, replacing the object.
func (g *GCSSink) Put(ctx context.Context, data []byte) error {
	wc := g.Client.Bucket(g.Bucket).Object(g.Object).NewWriter(ctx)
	wc.ContentType = "application/json; charset=utf-8"
	if _, err := wc.Write(data); err != nil {
		_ = wc.Close()
		return fmt.Errorf("write gs://%s/%s: %w", g.Bucket, g.Object, err)
	}
	// Close finalizes the upload
	if err := wc.Close(); err != nil {
		return fmt.Errorf("close gs://%s/%s: %w", g.Bucket, g.Object, err)
	}
	return nil
}

// Close releases the client.
func (g *GCSSink) Close() error {
	if g.Client == nil {
		return nil
	}
	return g.Client.Close()
}
