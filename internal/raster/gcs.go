package raster

import (
	"context"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
)

const gcsPrefix = "gs://"

func isGCSPath(path string) bool {
	return strings.HasPrefix(path, gcsPrefix)
}

// readGCSObject fetches gs://bucket/object into memory. Credentials come from
// the ambient application-default environment.
func readGCSObject(path string) ([]byte, error) {
	bucket, object, ok := strings.Cut(strings.TrimPrefix(path, gcsPrefix), "/")
	if !ok || bucket == "" || object == "" {
		return nil, fmt.Errorf("invalid GCS path %q, want gs://bucket/object", path)
	}

	ctx := context.Background()
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	defer client.Close()

	rc, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}
