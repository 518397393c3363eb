package artifact

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type S3Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

func (c S3Config) validate() error {
	switch {
	case strings.TrimSpace(c.Endpoint) == "":
		return fmt.Errorf("s3 endpoint is required")
	case strings.TrimSpace(c.AccessKey) == "" || strings.TrimSpace(c.SecretKey) == "":
		return fmt.Errorf("s3 access key and secret key are required")
	case strings.TrimSpace(c.Bucket) == "":
		return fmt.Errorf("s3 bucket is required")
	}
	return nil
}

// S3Store keeps run artifacts in an S3-compatible bucket, one object per
// artifact under "<runID>/<name>". The bucket is created on first use.
type S3Store struct {
	client *minio.Client
	bucket string
	region string

	initOnce sync.Once
	initErr  error
}

func NewS3Store(cfg S3Config) (*S3Store, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(strings.TrimSpace(cfg.Endpoint), &minio.Options{
		Creds:  credentials.NewStaticV4(strings.TrimSpace(cfg.AccessKey), strings.TrimSpace(cfg.SecretKey), ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}

	return &S3Store{
		client: client,
		bucket: strings.TrimSpace(cfg.Bucket),
		region: region,
	}, nil
}

// ready validates the run id and makes sure the bucket exists before the
// first object operation.
func (s *S3Store) ready(ctx context.Context, runID string) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("store is nil")
	}
	if strings.TrimSpace(runID) == "" {
		return fmt.Errorf("run_id is required")
	}
	s.initOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err != nil {
			s.initErr = err
			return
		}
		if !exists {
			s.initErr = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region})
		}
	})
	if s.initErr != nil {
		return fmt.Errorf("ensure bucket: %w", s.initErr)
	}
	return nil
}

func (s *S3Store) Put(ctx context.Context, runID, name string, content []byte) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("name is required")
	}
	if err := s.ready(ctx, runID); err != nil {
		return err
	}
	if content == nil {
		content = []byte{}
	}
	_, err := s.client.PutObject(ctx, s.bucket, objectKey(runID, name),
		bytes.NewReader(content), int64(len(content)),
		minio.PutObjectOptions{ContentType: "application/octet-stream"})
	return err
}

func (s *S3Store) Get(ctx context.Context, runID, name string) ([]byte, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("name is required")
	}
	if err := s.ready(ctx, runID); err != nil {
		return nil, err
	}

	obj, err := s.client.GetObject(ctx, s.bucket, objectKey(runID, name), minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		// minio reports missing keys on read, not on open.
		code := minio.ToErrorResponse(err).Code
		if code == "NoSuchKey" || code == "NoSuchBucket" {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

func (s *S3Store) List(ctx context.Context, runID string) ([]string, error) {
	if err := s.ready(ctx, runID); err != nil {
		return nil, err
	}

	prefix := strings.TrimSuffix(strings.TrimSpace(runID), "/") + "/"
	names := make([]string, 0, 32)
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		if obj.Key == "" {
			continue
		}
		names = append(names, strings.TrimPrefix(obj.Key, prefix))
	}
	sort.Strings(names)
	return names, nil
}

func objectKey(runID, name string) string {
	normalized := strings.TrimLeft(strings.TrimSpace(name), "/")
	return strings.TrimSpace(runID) + "/" + normalized
}
