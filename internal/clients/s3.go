package clients

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type S3Config struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UseSSL          bool
	Region          string
	Prefix          string
	URLTTL          time.Duration
}

// S3Client stores export files in an S3 compatible bucket and hands out
// presigned download links.
type S3Client struct {
	raw    *minio.Client
	bucket string
	prefix string
	urlTTL time.Duration
}

func NewS3Client(cfg S3Config) (*S3Client, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 client: %w", err)
	}

	ttl := cfg.URLTTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &S3Client{raw: client, bucket: cfg.Bucket, prefix: cfg.Prefix, urlTTL: ttl}, nil
}

func contentType(fileName string) string {
	switch filepath.Ext(fileName) {
	case ".csv":
		return "text/csv"
	case ".xlsx":
		return xlsxContentType
	default:
		return "application/octet-stream"
	}
}

// Save uploads data and returns the object key.
func (c *S3Client) Save(ctx context.Context, fileName string, data []byte) (string, error) {
	key := c.prefix + uniqueName(fileName)
	_, err := c.raw.PutObject(ctx, c.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:        contentType(fileName),
		ContentDisposition: fmt.Sprintf("attachment; filename=%q", DisplayName(key)),
	})
	if err != nil {
		return "", fmt.Errorf("put object %q failed: %w", key, err)
	}
	return key, nil
}

// URL returns a presigned download link valid for the configured TTL.
func (c *S3Client) URL(ctx context.Context, key string) (string, error) {
	u, err := c.raw.PresignedGetObject(ctx, c.bucket, key, c.urlTTL, nil)
	if err != nil {
		return "", fmt.Errorf("presign get object %q failed: %w", key, err)
	}
	return u.String(), nil
}

// CleanupOlderThan removes exported objects under the prefix last modified more than d ago.
func (c *S3Client) CleanupOlderThan(ctx context.Context, d time.Duration) (int, error) {
	cutoff := time.Now().Add(-d)
	removed := 0
	for obj := range c.raw.ListObjects(ctx, c.bucket, minio.ListObjectsOptions{Prefix: c.prefix, Recursive: true}) {
		if obj.Err != nil {
			return removed, fmt.Errorf("list objects: %w", obj.Err)
		}
		if obj.LastModified.After(cutoff) {
			continue
		}
		if err := c.raw.RemoveObject(ctx, c.bucket, obj.Key, minio.RemoveObjectOptions{}); err != nil {
			return removed, fmt.Errorf("remove object %q: %w", obj.Key, err)
		}
		removed++
	}
	return removed, nil
}
