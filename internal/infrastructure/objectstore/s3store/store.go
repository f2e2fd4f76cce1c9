// Package s3store issues presigned PUT grants and deletes objects through the
// AWS SDK, for deployments backed by S3 or an S3-compatible endpoint.
package s3store

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/kirillkom/gapdrill/internal/core/domain"
)

var tracer = otel.Tracer("github.com/kirillkom/gapdrill/internal/infrastructure/objectstore/s3store")

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}

	presignPutObject = func(pc *s3.PresignClient, ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
		return pc.PresignPutObject(ctx, in, optFns...)
	}

	deleteObject = func(c *s3.Client, ctx context.Context, in *s3.DeleteObjectInput) error {
		_, err := c.DeleteObject(ctx, in)
		return err
	}
)

type Options struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	PathStyle bool
}

type Store struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	locator *domain.Locator
	now     func() time.Time
}

func New(ctx context.Context, opts Options, locator *domain.Locator) (*Store, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(opts.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.PathStyle
	})
	return &Store{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  opts.Bucket,
		locator: locator,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// IssueUploadGrant presigns a single PUT; the client must send the signed headers verbatim.
func (s *Store) IssueUploadGrant(ctx context.Context, grant domain.ObjectGrant) (*domain.UploadGrant, error) {
	ctx, span := tracer.Start(ctx, "s3.presign_put")
	defer span.End()
	span.SetAttributes(attribute.String("object.key", grant.Key))

	req, err := presignPutObject(s.presign, ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(grant.Key),
		ContentType: aws.String(grant.ContentType),
	}, s3.WithPresignExpires(grant.Expiry))
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("presign put object: %w", err)
	}

	return &domain.UploadGrant{
		Method:    req.Method,
		UploadURL: req.URL,
		Headers:   clientHeaders(req.SignedHeader),
		ExpiresAt: s.now().Add(grant.Expiry),
	}, nil
}

func (s *Store) DeleteByReference(ctx context.Context, imageRef string) error {
	key, err := s.locator.ObjectKey(imageRef)
	if err != nil {
		return fmt.Errorf("resolve object key: %w", err)
	}

	ctx, span := tracer.Start(ctx, "s3.delete_object")
	defer span.End()
	span.SetAttributes(attribute.String("object.key", key))

	if err := deleteObject(s.client, ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}); err != nil {
		span.RecordError(err)
		return fmt.Errorf("delete object %s: %w", key, err)
	}
	return nil
}

// clientHeaders drops headers the browser sets itself.
func clientHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for name, values := range h {
		if http.CanonicalHeaderKey(name) == "Host" || len(values) == 0 {
			continue
		}
		out[http.CanonicalHeaderKey(name)] = values[0]
	}
	return out
}
