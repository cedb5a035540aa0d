// Package source lists the objects whose creation events are replayed.
package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"golang.org/x/sync/errgroup"

	"github.com/getpup/pupsourcing-replay"
	"github.com/getpup/pupsourcing/es"
)

// DefaultParallelism bounds the prefixes listed concurrently by ListAll.
const DefaultParallelism = 4

// API is the subset of *minio.Client used by Lister.
type API interface {
	ListObjects(ctx context.Context, bucket string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
	ListBuckets(ctx context.Context) ([]minio.BucketInfo, error)
}

var _ API = (*minio.Client)(nil)

// ClientConfig configures the S3-compatible client.
type ClientConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
}

// NewClient creates a client for an S3-compatible endpoint.
func NewClient(cfg ClientConfig) (*minio.Client, error) {
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 client: %w", err)
	}
	return mc, nil
}

// Config configures a Lister.
type Config struct {
	// Parallelism bounds concurrent prefix listings in ListAll (default: 4).
	Parallelism int

	// Logger is for observability (optional).
	Logger es.Logger
}

// Lister enumerates buckets, prefixes and objects.
type Lister struct {
	api    API
	config Config
}

// New creates a Lister over api.
func New(api API, cfg Config) *Lister {
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = DefaultParallelism
	}

	return &Lister{
		api:    api,
		config: cfg,
	}
}

// ListBuckets returns the names of all buckets visible to the credentials.
func (l *Lister) ListBuckets(ctx context.Context) ([]string, error) {
	buckets, err := l.api.ListBuckets(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list buckets: %w", err)
	}

	names := make([]string, 0, len(buckets))
	for _, b := range buckets {
		names = append(names, b.Name)
	}
	return names, nil
}

// ListPrefixes returns the common prefixes one level below prefix.
func (l *Lister) ListPrefixes(ctx context.Context, bucket, prefix string) ([]string, error) {
	prefixes := make([]string, 0)

	for obj := range l.api.ListObjects(ctx, bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: false}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list prefixes of %s/%s: %w", bucket, prefix, obj.Err)
		}
		if strings.HasSuffix(obj.Key, "/") {
			prefixes = append(prefixes, obj.Key)
		}
	}

	return prefixes, nil
}

// ListObjects returns every object under prefix, following all pages.
func (l *Lister) ListObjects(ctx context.Context, bucket, prefix string) ([]replay.ObjectRef, error) {
	objects := make([]replay.ObjectRef, 0)

	for obj := range l.api.ListObjects(ctx, bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("failed to list objects of %s/%s: %w", bucket, prefix, obj.Err)
		}

		objects = append(objects, replay.ObjectRef{
			Bucket: bucket,
			Key:    obj.Key,
			Size:   obj.Size,
		})

		if l.config.Logger != nil && len(objects)%1000 == 0 {
			l.config.Logger.Debug(ctx, "listing objects", "bucket", bucket, "prefix", prefix, "found", len(objects))
		}
	}

	if l.config.Logger != nil {
		l.config.Logger.Info(ctx, "objects listed", "bucket", bucket, "prefix", prefix, "count", len(objects))
	}

	return objects, nil
}

// ListAll lists every prefix and concatenates the results in prefix order.
// Prefixes are listed concurrently, bounded by Config.Parallelism.
func (l *Lister) ListAll(ctx context.Context, bucket string, prefixes []string) ([]replay.ObjectRef, error) {
	results := make([][]replay.ObjectRef, len(prefixes))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.config.Parallelism)

	for i, prefix := range prefixes {
		g.Go(func() error {
			objects, err := l.ListObjects(gctx, bucket, prefix)
			if err != nil {
				return err
			}
			results[i] = objects
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, r := range results {
		total += len(r)
	}

	all := make([]replay.ObjectRef, 0, total)
	for _, r := range results {
		all = append(all, r...)
	}

	if l.config.Logger != nil {
		l.config.Logger.Info(ctx, "all objects listed", "bucket", bucket, "prefixes", len(prefixes), "count", total)
	}

	return all, nil
}

// ExpandRange returns the choices between two selected bounds, inclusive.
// The bounds may be given in any order.
func ExpandRange(choices []string, first, last string) []string {
	lo, hi := first, last
	if lo > hi {
		lo, hi = hi, lo
	}

	selected := make([]string, 0)
	for _, c := range choices {
		if c >= lo && c <= hi {
			selected = append(selected, c)
		}
	}
	return selected
}
