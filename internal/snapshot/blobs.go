package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

// ErrNotFound is returned when an object or a table's snapshot does not exist.
var ErrNotFound = errors.New("snapshot: not found")

// Blobs is the object storage surface snapshots are kept in.
type Blobs interface {
	Bucket() string
	Put(ctx context.Context, object string, data []byte) error
	Get(ctx context.Context, object string) ([]byte, error)
	// List returns the names of the objects under prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

// GCSBlobs stores objects in a Google Cloud Storage bucket.
// It assumes Application Default Credentials are configured.
type GCSBlobs struct {
	client *storage.Client
	bucket string
}

// NewGCSBlobs creates a storage client for bucket.
func NewGCSBlobs(ctx context.Context, bucket string) (*GCSBlobs, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCSBlobs{client: client, bucket: bucket}, nil
}

// Close releases the storage client.
func (g *GCSBlobs) Close() error {
	return g.client.Close()
}

func (g *GCSBlobs) Bucket() string { return g.bucket }

// Put writes data to object, replacing it.
func (g *GCSBlobs) Put(ctx context.Context, object string, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := g.client.Bucket(g.bucket).Object(object).NewWriter(ctx)
	w.ContentType = "application/json"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("write object %s/%s: %w", g.bucket, object, err)
	}
	// Close finalizes the upload.
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize object %s/%s: %w", g.bucket, object, err)
	}
	return nil
}

// Get reads object.
func (g *GCSBlobs) Get(ctx context.Context, object string) ([]byte, error) {
	r, err := g.client.Bucket(g.bucket).Object(object).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, g.bucket, object)
	}
	if err != nil {
		return nil, fmt.Errorf("open object reader %s/%s: %w", g.bucket, object, err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read object %s/%s: %w", g.bucket, object, err)
	}
	return data, nil
}

// List returns the names of the objects under prefix.
func (g *GCSBlobs) List(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	it := g.client.Bucket(g.bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list objects %s/%s: %w", g.bucket, prefix, err)
		}
		names = append(names, attrs.Name)
	}
	return names, nil
}

// ParseURI splits a gs://bucket/object URI.
func ParseURI(uri string) (bucket, object string, err error) {
	if !strings.HasPrefix(uri, "gs://") {
		return "", "", fmt.Errorf("invalid GCS URI: %s", uri)
	}
	parts := strings.SplitN(strings.TrimPrefix(uri, "gs://"), "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid GCS URI (no object path): %s", uri)
	}
	return parts[0], parts[1], nil
}

// URI builds the gs:// URI of object in bucket.
func URI(bucket, object string) string {
	return "gs://" + path.Join(bucket, object)
}
