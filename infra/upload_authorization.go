package infra

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go/middleware"
	smithyhttp "github.com/aws/smithy-go/transport/http"
	"github.com/minio/minio-go/v7"
	minioCredentials "github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/tnqbao/gau-compute-dispatcher/config"
	"github.com/tnqbao/gau-compute-dispatcher/entity"
)

const (
	DefaultUploadTTL = 120 * time.Second

	maxObjectKeyLen = 1024
)

// UploadAuthorizer issues time-limited grants for a single direct PUT into
// the artifact store.
type UploadAuthorizer interface {
	Authorize(ctx context.Context, objectKey, contentType string) (entity.UploadGrant, error)
}

func InitUploadAuthorizer(cfg *config.EnvConfig) UploadAuthorizer {
	ttl := cfg.Storage.UploadTTL
	if ttl <= 0 {
		ttl = DefaultUploadTTL
	}

	switch cfg.Storage.Driver {
	case "minio":
		if cfg.Minio.Endpoint == "" || cfg.Minio.RootUser == "" || cfg.Minio.RootPassword == "" {
			panic("MinIO endpoint and credentials are not configured")
		}
		client, err := minio.New(cfg.Minio.Endpoint, &minio.Options{
			Creds:  minioCredentials.NewStaticV4(cfg.Minio.RootUser, cfg.Minio.RootPassword, ""),
			Secure: cfg.Minio.UseSSL,
			Region: cfg.Storage.Region,
		})
		if err != nil {
			panic(fmt.Sprintf("Failed to initialize MinIO client: %v", err))
		}
		return NewMinioPresigner(client, cfg.Storage.Bucket, ttl)
	case "s3", "":
		awsCfg, err := LoadAWSConfig(context.Background(), cfg, cfg.Storage.Region)
		if err != nil {
			panic(fmt.Sprintf("Failed to initialize S3 client: %v", err))
		}
		return NewS3Presigner(s3.NewFromConfig(awsCfg), cfg.Storage.Bucket, ttl)
	default:
		panic("Unsupported storage driver: " + cfg.Storage.Driver)
	}
}

func validateUploadRequest(objectKey, contentType string) error {
	switch {
	case strings.TrimSpace(objectKey) == "":
		return fmt.Errorf("%w: fileName cannot be empty", entity.ErrInvalidRequest)
	case strings.TrimSpace(contentType) == "":
		return fmt.Errorf("%w: fileType cannot be empty", entity.ErrInvalidRequest)
	case len(objectKey) > maxObjectKeyLen:
		return fmt.Errorf("%w: fileName is longer than %d bytes", entity.ErrInvalidRequest, maxObjectKeyLen)
	case strings.HasPrefix(objectKey, "/") || strings.Contains(objectKey, ".."):
		return fmt.Errorf("%w: invalid fileName", entity.ErrInvalidRequest)
	}
	return nil
}

// S3Presigner signs PUT URLs against an AWS S3 bucket.
type S3Presigner struct {
	presign *s3.PresignClient
	bucket  string
	ttl     time.Duration
	now     func() time.Time
}

func NewS3Presigner(client *s3.Client, bucket string, ttl time.Duration) *S3Presigner {
	return &S3Presigner{
		presign: s3.NewPresignClient(client),
		bucket:  bucket,
		ttl:     ttl,
		now:     time.Now,
	}
}

func (p *S3Presigner) Authorize(ctx context.Context, objectKey, contentType string) (entity.UploadGrant, error) {
	if err := validateUploadRequest(objectKey, contentType); err != nil {
		return entity.UploadGrant{}, err
	}

	issued := p.now()
	req, err := p.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(objectKey),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(p.ttl), signContentType(contentType))
	if err != nil {
		return entity.UploadGrant{}, fmt.Errorf("failed to presign upload: %w", err)
	}

	return entity.UploadGrant{
		WriteURL:     req.URL,
		StoreLocator: p.bucket,
		ObjectKey:    objectKey,
		ContentType:  contentType,
		ExpiresAt:    issued.Add(p.ttl).UTC(),
	}, nil
}

// signContentType puts Content-Type back on the request right before it is
// presigned. The s3 presign client strips it during the build step, which
// would leave the URL valid for a PUT of any content type.
func signContentType(contentType string) func(*s3.PresignOptions) {
	return func(o *s3.PresignOptions) {
		o.ClientOptions = append(o.ClientOptions, func(opts *s3.Options) {
			opts.APIOptions = append(opts.APIOptions, func(stack *middleware.Stack) error {
				return stack.Finalize.Add(contentTypeHeader(contentType), middleware.Before)
			})
		})
	}
}

type contentTypeHeader string

func (contentTypeHeader) ID() string { return "SignedContentType" }

func (h contentTypeHeader) HandleFinalize(ctx context.Context, in middleware.FinalizeInput, next middleware.FinalizeHandler) (middleware.FinalizeOutput, middleware.Metadata, error) {
	if req, ok := in.Request.(*smithyhttp.Request); ok {
		req.Header.Set("Content-Type", string(h))
	}
	return next.HandleFinalize(ctx, in)
}

// MinioPresigner signs PUT URLs against a MinIO (or other S3-compatible) endpoint.
type MinioPresigner struct {
	client *minio.Client
	bucket string
	ttl    time.Duration
	now    func() time.Time
}

func NewMinioPresigner(client *minio.Client, bucket string, ttl time.Duration) *MinioPresigner {
	return &MinioPresigner{client: client, bucket: bucket, ttl: ttl, now: time.Now}
}

func (p *MinioPresigner) Authorize(ctx context.Context, objectKey, contentType string) (entity.UploadGrant, error) {
	if err := validateUploadRequest(objectKey, contentType); err != nil {
		return entity.UploadGrant{}, err
	}

	issued := p.now()
	headers := http.Header{}
	headers.Set("Content-Type", contentType)

	u, err := p.client.PresignHeader(ctx, http.MethodPut, p.bucket, objectKey, p.ttl, url.Values{}, headers)
	if err != nil {
		return entity.UploadGrant{}, fmt.Errorf("failed to presign upload: %w", err)
	}

	return entity.UploadGrant{
		WriteURL:     u.String(),
		StoreLocator: p.bucket,
		ObjectKey:    objectKey,
		ContentType:  contentType,
		ExpiresAt:    issued.Add(p.ttl).UTC(),
	}, nil
}
