package cache

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/gigapi/draftpipe/model"
	"github.com/gigapi/draftpipe/table"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type S3Options struct {
	Endpoint  string
	Bucket    string
	Prefix    string
	Region    string
	AccessKey string
	SecretKey string
	Secure    bool
}

// s3Store keeps entries at <bucket>/<prefix>/<dataset>/<key>.parquet. A put
// is atomic, so no temporary objects are needed.
type s3Store struct {
	client *minio.Client
	bucket string
	prefix string
	log    *slog.Logger
}

func NewS3Store(opts S3Options, log *slog.Logger) (Store, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.Secure,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 client: %w", err)
	}
	return &s3Store{
		client: client,
		bucket: opts.Bucket,
		prefix: strings.Trim(opts.Prefix, "/"),
		log:    log,
	}, nil
}

func (s *s3Store) scope(dataset string) string {
	return path.Join(s.prefix, dataset) + "/"
}

func (s *s3Store) object(dataset, key string) string {
	return s.scope(dataset) + key + extension
}

func isNotFound(err error) bool {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchBucket", "NotFound":
		return true
	}
	return false
}

func (s *s3Store) Exists(ctx context.Context, dataset, key string) (bool, error) {
	if err := checkDataset(dataset); err != nil {
		return false, err
	}
	_, err := s.client.StatObject(ctx, s.bucket, s.object(dataset, key), minio.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *s3Store) Read(ctx context.Context, dataset, key string) (*table.Table, error) {
	if err := checkDataset(dataset); err != nil {
		return nil, err
	}
	obj, err := s.client.GetObject(ctx, s.bucket, s.object(dataset, key), minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to download cache entry: %w", err)
	}
	return table.ReadParquet(ctx, bytes.NewReader(data))
}

func (s *s3Store) Write(ctx context.Context, dataset, key string, t *table.Table) error {
	if err := checkDataset(dataset); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := t.WriteParquet(&buf); err != nil {
		return err
	}
	_, err := s.client.PutObject(ctx, s.bucket, s.object(dataset, key), &buf, int64(buf.Len()),
		minio.PutObjectOptions{ContentType: "application/octet-stream"})
	if err != nil {
		return fmt.Errorf("failed to upload cache entry: %w", err)
	}
	s.log.Debug("cache entry uploaded", "bucket", s.bucket, "dataset", dataset, "key", key)
	return nil
}

// list returns the object keys of the dataset scope.
func (s *s3Store) list(ctx context.Context, dataset string) ([]string, error) {
	if err := checkDataset(dataset); err != nil {
		return nil, err
	}
	scope := s.scope(dataset)
	var keys []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: scope, Recursive: true}) {
		if obj.Err != nil {
			if isNotFound(obj.Err) {
				return nil, nil
			}
			return nil, obj.Err
		}
		name := strings.TrimPrefix(obj.Key, scope)
		if strings.Contains(name, "/") || !strings.HasSuffix(name, extension) {
			return nil, fmt.Errorf("%w: unexpected object %s in %s", model.ErrCacheCorruption, obj.Key, scope)
		}
		keys = append(keys, obj.Key)
	}
	return keys, nil
}

func (s *s3Store) Check(ctx context.Context, dataset string) error {
	_, err := s.list(ctx, dataset)
	return err
}

func (s *s3Store) Clear(ctx context.Context, dataset string) (int, error) {
	keys, err := s.list(ctx, dataset)
	if err != nil {
		return 0, err
	}
	for i, k := range keys {
		if err := s.client.RemoveObject(ctx, s.bucket, k, minio.RemoveObjectOptions{}); err != nil {
			return i, err
		}
	}
	s.log.Debug("cache scope cleared", "bucket", s.bucket, "dataset", dataset, "entries", len(keys))
	return len(keys), nil
}
