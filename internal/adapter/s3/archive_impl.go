package s3

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/minio/minio-go/v7/pkg/encrypt"
	"github.com/user/strain-pipeline/internal/entity"
	"github.com/user/strain-pipeline/internal/repository"
	"github.com/user/strain-pipeline/pkg/metrics"
	"go.uber.org/zap"
)

// Options configures the S3-compatible archive.
type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// ArchiveRepoImpl stores pages and sidecars in an S3-compatible bucket.
// Every put carries SSE-S3.
type ArchiveRepoImpl struct {
	client *minio.Client
	bucket string
	sse    encrypt.ServerSide
	logger *zap.Logger
}

// NewArchiveRepo connects to the object store and ensures the bucket exists.
func NewArchiveRepo(ctx context.Context, opts Options, logger *zap.Logger) (*ArchiveRepoImpl, error) {
	metrics.Init()
	cli, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create object store client: %w", err)
	}

	exists, err := cli.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", opts.Bucket, err)
	}
	if !exists {
		if err := cli.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{Region: opts.Region}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", opts.Bucket, err)
		}
		logger.Info("created archive bucket", zap.String("bucket", opts.Bucket))
	}

	return &ArchiveRepoImpl{
		client: cli,
		bucket: opts.Bucket,
		sse:    encrypt.NewSSE(),
		logger: logger.Named("archive"),
	}, nil
}

// PutHTML stores page bytes under key.
func (a *ArchiveRepoImpl) PutHTML(ctx context.Context, key string, html []byte) error {
	return a.put(ctx, key, html, "text/html; charset=utf-8")
}

// PutMetadata stores the sidecar JSON of meta.URLHash.
func (a *ArchiveRepoImpl) PutMetadata(ctx context.Context, meta *entity.ArchiveMetadata) error {
	raw, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal sidecar %s: %w", meta.URLHash, err)
	}
	return a.put(ctx, entity.MetadataKey(meta.URLHash), raw, "application/json")
}

func (a *ArchiveRepoImpl) put(ctx context.Context, key string, body []byte, contentType string) error {
	_, err := a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(body), int64(len(body)), minio.PutObjectOptions{
		ContentType:          contentType,
		ServerSideEncryption: a.sse,
	})
	observe("put", err)
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

// GetHTML returns the object stored under key.
func (a *ArchiveRepoImpl) GetHTML(ctx context.Context, key string) ([]byte, error) {
	obj, err := a.client.GetObject(ctx, a.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		observe("get", err)
		return nil, a.wrap(key, err)
	}
	defer obj.Close()

	body, err := io.ReadAll(obj)
	observe("get", err)
	if err != nil {
		return nil, a.wrap(key, err)
	}
	return body, nil
}

// GetMetadata returns the sidecar of urlHash.
func (a *ArchiveRepoImpl) GetMetadata(ctx context.Context, urlHash string) (*entity.ArchiveMetadata, error) {
	raw, err := a.GetHTML(ctx, entity.MetadataKey(urlHash))
	if err != nil {
		return nil, err
	}
	var meta entity.ArchiveMetadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, fmt.Errorf("decode sidecar %s: %w", urlHash, err)
	}
	return &meta, nil
}

// Exists stats key.
func (a *ArchiveRepoImpl) Exists(ctx context.Context, key string) (bool, error) {
	_, err := a.client.StatObject(ctx, a.bucket, key, minio.StatObjectOptions{})
	if err == nil {
		observe("stat", nil)
		return true, nil
	}
	if isNotFound(err) {
		observe("stat", nil)
		return false, nil
	}
	observe("stat", err)
	return false, fmt.Errorf("stat %s: %w", key, err)
}

// ListKeys lists every key under prefix.
func (a *ArchiveRepoImpl) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	for obj := range a.client.ListObjects(ctx, a.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			observe("list", obj.Err)
			return nil, fmt.Errorf("list %s: %w", prefix, obj.Err)
		}
		keys = append(keys, obj.Key)
	}
	observe("list", nil)
	return keys, nil
}

// PresignGet issues a time-limited GET link for key.
func (a *ArchiveRepoImpl) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	u, err := a.client.PresignedGetObject(ctx, a.bucket, key, expiry, nil)
	observe("presign", err)
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return u.String(), nil
}

func (a *ArchiveRepoImpl) wrap(key string, err error) error {
	if isNotFound(err) {
		return fmt.Errorf("%s: %w", key, repository.ErrNotFound)
	}
	return fmt.Errorf("get %s: %w", key, err)
}

func isNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound {
		return true
	}
	return errors.Is(err, repository.ErrNotFound)
}

func observe(op string, err error) {
	status := "success"
	if err != nil && !isNotFound(err) {
		status = "failure"
	}
	metrics.ArchiveOperationsTotal.WithLabelValues(op, status).Inc()
}
