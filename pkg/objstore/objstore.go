// Package objstore reads and writes corpus objects in S3-compatible
// storage through minio-go.
package objstore

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/approxsearch/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/approxsearch/pkg/errors"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type Client struct {
	mc     *minio.Client
	logger *slog.Logger
}

// New creates a client for the configured endpoint. No request is made
// until the first call.
func New(cfg config.ObjectStoreConfig) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("object store endpoint is empty: %w", apperrors.ErrInvalidInput)
	}
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("creating object store client: %w", err)
	}
	return &Client{
		mc:     mc,
		logger: slog.Default().With("component", "objstore", "endpoint", cfg.Endpoint),
	}, nil
}

// Open streams an object. The size is -1 when the store does not report
// one. A missing object yields ErrNotFound.
func (c *Client) Open(ctx context.Context, bucket, key string) (io.ReadCloser, int64, error) {
	info, err := c.mc.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return nil, 0, fmt.Errorf("object s3://%s/%s: %w", bucket, key, apperrors.ErrNotFound)
		}
		return nil, 0, fmt.Errorf("stat s3://%s/%s: %w", bucket, key, err)
	}
	obj, err := c.mc.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, 0, fmt.Errorf("get s3://%s/%s: %w", bucket, key, err)
	}
	c.logger.Info("object opened", "bucket", bucket, "key", key, "size", info.Size)
	return obj, info.Size, nil
}

// Put uploads r as key, creating bucket first if it does not exist. A
// negative size streams the upload in parts.
func (c *Client) Put(ctx context.Context, bucket, key string, r io.Reader, size int64) error {
	if err := c.EnsureBucket(ctx, bucket); err != nil {
		return err
	}
	info, err := c.mc.PutObject(ctx, bucket, key, r, size, minio.PutObjectOptions{
		ContentType: "text/tab-separated-values",
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", bucket, key, err)
	}
	c.logger.Info("object uploaded", "bucket", bucket, "key", key, "size", info.Size)
	return nil
}

func (c *Client) EnsureBucket(ctx context.Context, bucket string) error {
	exists, err := c.mc.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("checking bucket %s: %w", bucket, err)
	}
	if exists {
		return nil
	}
	if err := c.mc.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("creating bucket %s: %w", bucket, err)
	}
	return nil
}

// Ping checks that the store answers and bucket exists.
func (c *Client) Ping(ctx context.Context, bucket string) error {
	exists, err := c.mc.BucketExists(ctx, bucket)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("bucket %s: %w", bucket, apperrors.ErrNotFound)
	}
	return nil
}

func isNotFound(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NotFound" || code == "NoSuchBucket"
}
