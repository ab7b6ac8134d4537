// Package source opens a corpus from a local file, an S3 object or a
// PostgreSQL query and exposes it as an ingestion.RecordReader.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/Adithya-Monish-Kumar-K/approxsearch/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/approxsearch/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/approxsearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/approxsearch/pkg/objstore"
	"github.com/Adithya-Monish-Kumar-K/approxsearch/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/approxsearch/pkg/resilience"
)

const pingTimeout = 5 * time.Second

// Corpus is an open record stream together with the resources behind it.
type Corpus struct {
	Name    string
	reader  ingestion.RecordReader
	closers []io.Closer
}

func (c *Corpus) Next() (ingestion.Record, error) {
	return c.reader.Next()
}

// Close releases resources in reverse order of acquisition.
func (c *Corpus) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

// Open dispatches on cfg.Corpus.Source.
func Open(ctx context.Context, cfg *config.Config) (*Corpus, error) {
	logger := slog.Default().With("component", "corpus-source")
	var (
		corpus *Corpus
		err    error
	)
	switch cfg.Corpus.Source {
	case config.SourceFile:
		corpus, err = OpenFile(cfg.Corpus.Path)
	case config.SourceS3:
		var store *objstore.Client
		store, err = objstore.New(cfg.ObjectStore)
		if err == nil {
			corpus, err = OpenObject(ctx, store, cfg.Corpus.Bucket, cfg.Corpus.Key)
		}
	case config.SourcePostgres:
		corpus, err = openPostgres(ctx, cfg)
	default:
		err = fmt.Errorf("corpus source %q: %w", cfg.Corpus.Source, apperrors.ErrInvalidInput)
	}
	if err != nil {
		return nil, err
	}
	logger.Info("corpus opened", "source", cfg.Corpus.Source, "name", corpus.Name)
	return corpus, nil
}

// OpenFile opens a TSV corpus on disk, decompressing by file suffix.
func OpenFile(path string) (*Corpus, error) {
	if path == "" {
		return nil, fmt.Errorf("corpus path is empty: %w", apperrors.ErrInvalidInput)
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("corpus %s: %w", path, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("opening corpus %s: %w", path, err)
	}
	return fromStream(path, f)
}

// OpenObject streams a TSV corpus out of object storage. The bucket check
// is retried because the store is often still starting when the service
// is. The object itself is read under ctx, so ctx must outlive the build.
func OpenObject(ctx context.Context, store *objstore.Client, bucket, key string) (*Corpus, error) {
	if bucket == "" || key == "" {
		return nil, fmt.Errorf("corpus bucket and key are required: %w", apperrors.ErrInvalidInput)
	}
	retry := resilience.RetryConfig{
		MaxAttempts: 3,
		RetryIf: func(err error) bool {
			return !errors.Is(err, apperrors.ErrNotFound)
		},
	}
	err := resilience.Retry(ctx, "corpus-bucket-check", retry, func() error {
		return resilience.WithTimeout(ctx, pingTimeout, "corpus-bucket-check", func(ctx context.Context) error {
			return store.Ping(ctx, bucket)
		})
	})
	if err != nil {
		return nil, err
	}
	body, _, err := store.Open(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	return fromStream("s3://"+bucket+"/"+key, body)
}

func fromStream(name string, rc io.ReadCloser) (*Corpus, error) {
	dec, err := NewDecompressor(rc, DetectCompression(name))
	if err != nil {
		rc.Close()
		return nil, fmt.Errorf("corpus %s: %w", name, err)
	}
	return &Corpus{
		Name:    name,
		reader:  NewLineReader(dec),
		closers: []io.Closer{rc, dec},
	}, nil
}

func openPostgres(ctx context.Context, cfg *config.Config) (*Corpus, error) {
	client, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		return nil, err
	}
	rows, err := client.DB.QueryContext(ctx, cfg.Corpus.Query)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("querying corpus: %w", err)
	}
	return &Corpus{
		Name:    "postgres:" + cfg.Postgres.Database,
		reader:  NewRowReader(rows),
		closers: []io.Closer{client, rows},
	}, nil
}
