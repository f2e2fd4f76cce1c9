// Package miniostore issues presigned POST policies and deletes objects on any
// S3-compatible server through minio-go.
package miniostore

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kirillkom/gapdrill/internal/core/domain"
)

var tracer = otel.Tracer("github.com/kirillkom/gapdrill/internal/infrastructure/objectstore/miniostore")

// api is the subset of *minio.Client the store uses.
type api interface {
	PresignedPostPolicy(ctx context.Context, p *minio.PostPolicy) (*url.URL, map[string]string, error)
	RemoveObject(ctx context.Context, bucket, object string, opts minio.RemoveObjectOptions) error
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
}

type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

type Store struct {
	client  api
	bucket  string
	region  string
	locator *domain.Locator
	now     func() time.Time
}

func New(opts Options, locator *domain.Locator) (*Store, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return newStore(client, opts.Bucket, opts.Region, locator), nil
}

func newStore(client api, bucket, region string, locator *domain.Locator) *Store {
	return &Store{
		client:  client,
		bucket:  bucket,
		region:  region,
		locator: locator,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// EnsureBucket creates the bucket when it does not exist yet.
func (s *Store) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	slog.Info("bucket_created", "bucket", s.bucket)
	return nil
}

// IssueUploadGrant returns a browser-form POST policy limited to one key, one
// content type and the allowed size range.
func (s *Store) IssueUploadGrant(ctx context.Context, grant domain.ObjectGrant) (*domain.UploadGrant, error) {
	ctx, span := tracer.Start(ctx, "minio.presign_post")
	defer span.End()
	span.SetAttributes(attribute.String("object.key", grant.Key), attribute.String("object.content_type", grant.ContentType))

	expiresAt := s.now().Add(grant.Expiry)
	policy := minio.NewPostPolicy()
	for _, set := range []func() error{
		func() error { return policy.SetBucket(s.bucket) },
		func() error { return policy.SetKey(grant.Key) },
		func() error { return policy.SetExpires(expiresAt) },
		func() error { return policy.SetContentType(grant.ContentType) },
		func() error { return policy.SetContentLengthRange(1, grant.MaxSizeBytes) },
	} {
		if err := set(); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("build post policy: %w", err)
		}
	}

	u, fields, err := s.client.PresignedPostPolicy(ctx, policy)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("presign post policy: %w", err)
	}
	return &domain.UploadGrant{
		Method:    "POST",
		UploadURL: u.String(),
		Fields:    fields,
		ExpiresAt: expiresAt,
	}, nil
}

func (s *Store) DeleteByReference(ctx context.Context, imageRef string) error {
	key, err := s.locator.ObjectKey(imageRef)
	if err != nil {
		return fmt.Errorf("resolve object key: %w", err)
	}

	ctx, span := tracer.Start(ctx, "minio.remove_object")
	defer span.End()
	span.SetAttributes(attribute.String("object.key", key))

	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		span.RecordError(err)
		return fmt.Errorf("remove object %s: %w", key, err)
	}
	return nil
}
