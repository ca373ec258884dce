package cdn

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Config holds settings for an S3-compatible bucket.
type S3Config struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
}

// S3 stores objects in an S3-compatible bucket through minio-go.
type S3 struct {
	client *minio.Client
	bucket string
}

// NewS3 returns an S3 backend.
func NewS3(cfg S3Config) (*S3, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" || cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("%w: endpoint, bucket, access key and secret key are required", ErrMissingCredentials)
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}
	return &S3{client: client, bucket: cfg.Bucket}, nil
}

// Target implements Storage.
func (s *S3) Target() string {
	return "s3:" + s.bucket
}

// Put implements Storage.
func (s *S3) Put(ctx context.Context, key, contentType string, body io.Reader, size int64) error {
	opts := minio.PutObjectOptions{ContentType: contentType, DisableMultipart: size < 64<<20}
	if _, err := s.client.PutObject(ctx, s.bucket, key, body, size, opts); err != nil {
		resp := minio.ToErrorResponse(err)
		return &UploadError{Key: key, Status: resp.StatusCode, Body: resp.Message, Err: err}
	}
	return nil
}

// Clean removes every object under prefix.
func (s *S3) Clean(ctx context.Context, prefix string) error {
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	objects := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})
	for errResp := range s.client.RemoveObjects(ctx, s.bucket, objects, minio.RemoveObjectsOptions{}) {
		if errResp.Err != nil {
			return fmt.Errorf("remove %s: %w", errResp.ObjectName, errResp.Err)
		}
	}
	return nil
}
