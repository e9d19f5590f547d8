package objstore

import (
	"context"
	"io"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"
)

// S3Config carries the connection settings for an S3-compatible endpoint.
// Endpoint may include a scheme; https implies TLS unless the scheme says
// otherwise. Empty AccessKey/SecretKey falls back to the AWS env variables.
type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
}

type minioBucket struct {
	client *minio.Client
	bucket string
}

// NewS3Bucket connects to an S3-compatible store and returns a Bucket bound
// to cfg.Bucket.
func NewS3Bucket(cfg S3Config) (Bucket, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("objstore: bucket name is required")
	}

	endpoint := cfg.Endpoint
	secure := true
	if endpoint == "" {
		endpoint = "s3.amazonaws.com"
	} else if strings.Contains(endpoint, "://") {
		u, err := url.Parse(endpoint)
		if err != nil {
			return nil, errors.Wrapf(err, "objstore: parse endpoint %q", cfg.Endpoint)
		}
		secure = u.Scheme != "http"
		endpoint = u.Host
	}

	creds := credentials.NewEnvAWS()
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		creds = credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, "")
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  creds,
		Region: cfg.Region,
		Secure: secure,
	})
	if err != nil {
		return nil, errors.Wrap(err, "objstore: create client")
	}
	return &minioBucket{client: client, bucket: cfg.Bucket}, nil
}

func (m *minioBucket) List(ctx context.Context, prefix string, max int) ([]ObjectInfo, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var out []ObjectInfo
	for obj := range m.client.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, errors.Wrapf(obj.Err, "objstore: list %q", prefix)
		}
		out = append(out, ObjectInfo{Key: obj.Key, Size: obj.Size})
		if max > 0 && len(out) >= max {
			break
		}
	}
	return out, nil
}

func (m *minioBucket) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, errors.Wrapf(err, "objstore: get %q", key)
	}
	// GetObject is lazy; surface missing keys now rather than on first read.
	if _, err := obj.Stat(); err != nil {
		_ = obj.Close()
		return nil, errors.Wrapf(err, "objstore: stat %q", key)
	}
	return obj, nil
}

func (m *minioBucket) Put(ctx context.Context, key string, r io.Reader, size int64) error {
	_, err := m.client.PutObject(ctx, m.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	return errors.Wrapf(err, "objstore: put %q", key)
}

func (m *minioBucket) Remove(ctx context.Context, key string) error {
	err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{})
	return errors.Wrapf(err, "objstore: remove %q", key)
}
