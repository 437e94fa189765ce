package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
)

// Config represents the settings required to talk to S3 or an S3-compatible
// API such as MinIO.
type Config struct {
	Bucket         string
	Region         string
	Endpoint       string
	AccessKey      string
	SecretKey      string
	KeyPrefix      string
	ForcePathStyle bool
}

// NewStore wires an S3 client if the configuration is complete, otherwise a
// disabled store so the app can still boot without object storage.
func NewStore(ctx context.Context, cfg Config) (Store, error) {
	if cfg.Bucket == "" || cfg.Endpoint == "" || cfg.AccessKey == "" || cfg.SecretKey == "" {
		return Disabled(), nil
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws sdk config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		o.UsePathStyle = cfg.ForcePathStyle
	})

	return &s3Store{
		client: client,
		bucket: cfg.Bucket,
		region: cfg.Region,
		prefix: strings.Trim(cfg.KeyPrefix, "/"),
	}, nil
}

type s3Store struct {
	client *s3.Client
	bucket string
	region string
	prefix string
}

// EnsureBucket creates the bucket if it does not exist yet. Intended for
// startup against MinIO; failures are reported but non-fatal for the caller.
func (s *s3Store) EnsureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err == nil {
		return nil
	}

	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(s.bucket)})
	if err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &owned) {
			return nil
		}
		return fmt.Errorf("create bucket %s: %w", s.bucket, err)
	}
	return nil
}

// Put stores the blob under a generated key scoped by the input prefix.
func (s *s3Store) Put(ctx context.Context, input PutInput) (PutResult, error) {
	if input.Body == nil {
		return PutResult{}, errors.New("put body is required")
	}

	key := s.buildKey(input.KeyPrefix, input.ContentType)

	putInput := &s3.PutObjectInput{
		Bucket:       aws.String(s.bucket),
		Key:          aws.String(key),
		Body:         input.Body,
		CacheControl: aws.String("public, max-age=31536000, immutable"),
	}
	if input.ContentType != "" {
		putInput.ContentType = aws.String(input.ContentType)
	}
	if input.Size > 0 {
		putInput.ContentLength = aws.Int64(input.Size)
	}

	if _, err := s.client.PutObject(ctx, putInput); err != nil {
		return PutResult{}, fmt.Errorf("put object: %w", err)
	}

	return PutResult{Key: key}, nil
}

// Open streams the stored blob for the given key.
func (s *s3Store) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get object: %w", err)
	}
	return out.Body, nil
}

func (s *s3Store) buildKey(purposePrefix, contentType string) string {
	name := uuid.NewString() + "." + ExtForMIME(contentType)

	key := name
	if purposePrefix != "" {
		key = path.Join(strings.Trim(purposePrefix, "/"), name)
	}
	if s.prefix != "" {
		key = path.Join(s.prefix, key)
	}
	return key
}
