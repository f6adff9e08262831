package backup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/MirasRuslanJR/PyShark/config"
	"github.com/MirasRuslanJR/PyShark/internal/domain/shared"
)

// ErrDisabled is returned when no backup endpoint is configured.
var ErrDisabled = errors.New("backup: object store not configured")

// ObjectInfo describes a stored backup.
type ObjectInfo struct {
	Name         string    `json:"name"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified"`
}

// ObjectSink stores export documents in an S3-compatible bucket.
type ObjectSink struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewObjectSink creates a MinIO client for cfg. No request is made.
func NewObjectSink(cfg config.BackupConfig) (*ObjectSink, error) {
	if !cfg.Enabled() {
		return nil, ErrDisabled
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("backup: create client: %w", err)
	}
	return &ObjectSink{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

// Prefix returns the key prefix for new objects.
func (s *ObjectSink) Prefix() string { return s.prefix }

// EnsureBucket creates the bucket if it does not exist.
func (s *ObjectSink) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return shared.StorageUnavailable(domainName, "EnsureBucket", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return shared.StorageUnavailable(domainName, "EnsureBucket", err)
	}
	return nil
}

// Put uploads data under name.
func (s *ObjectSink) Put(ctx context.Context, name string, data []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, name, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return shared.StorageUnavailable(domainName, "Put", err)
	}
	return nil
}

// Get downloads the object. A missing object is shared.ErrNotFound.
func (s *ObjectSink) Get(ctx context.Context, name string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, s.mapError("Get", name, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, s.mapError("Get", name, err)
	}
	return data, nil
}

// List returns the backups under the prefix, newest first.
func (s *ObjectSink) List(ctx context.Context) ([]ObjectInfo, error) {
	var out []ObjectInfo
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: s.prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, shared.StorageUnavailable(domainName, "List", obj.Err)
		}
		if !strings.HasSuffix(obj.Key, ".json") {
			continue
		}
		out = append(out, ObjectInfo{Name: obj.Key, Size: obj.Size, LastModified: obj.LastModified})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name > out[j].Name })
	return out, nil
}

func (s *ObjectSink) mapError(op, name string, err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return shared.WrapError(domainName, op, shared.ErrNotFound, "no backup "+name, err)
	}
	return shared.StorageUnavailable(domainName, op, err)
}
