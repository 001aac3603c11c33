// Package s3 stores statement files in an S3 bucket.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/fr0stylo/ledgerlink/internal/app/ports"
)

// DefaultBucket is used when no bucket is configured.
const DefaultBucket = "plaid-bank-statements"

// Config locates the bucket.
type Config struct {
	Bucket   string
	Region   string
	Endpoint string
}

type objectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

type presignAPI interface {
	PresignGetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// Store is a ports.BlobStore backed by S3.
type Store struct {
	client  objectAPI
	presign presignAPI
	bucket  string
	log     *slog.Logger
}

// New loads the default AWS credential chain and builds a bucket store.
func New(ctx context.Context, cfg Config, log *slog.Logger) (*Store, error) {
	options := make([]func(*awsconfig.LoadOptions) error, 0, 1)
	if region := strings.TrimSpace(cfg.Region); region != "" {
		options = append(options, awsconfig.WithRegion(region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, options...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	endpoint := strings.TrimSpace(cfg.Endpoint)
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	return newStore(client, s3.NewPresignClient(client), cfg.Bucket, log), nil
}

func newStore(client objectAPI, presign presignAPI, bucket string, log *slog.Logger) *Store {
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		bucket = DefaultBucket
	}
	if log == nil {
		log = slog.Default()
	}
	return &Store{client: client, presign: presign, bucket: bucket, log: log}
}

// Bucket returns the configured bucket name.
func (s *Store) Bucket() string {
	return s.bucket
}

// Put uploads one object privately.
func (s *Store) Put(ctx context.Context, key, contentType string, data []byte) error {
	if strings.TrimSpace(key) == "" {
		return errors.New("s3: object key is required")
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
		ACL:           types.ObjectCannedACLPrivate,
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", s.bucket, key, err)
	}
	return nil
}

// PresignGet returns a time-limited download URL for key.
func (s *Store) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if expiry <= 0 {
		return "", errors.New("s3: presign expiry must be positive")
	}
	request, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("presign s3://%s/%s: %w", s.bucket, key, err)
	}
	return request.URL, nil
}

// Check logs whether the bucket is reachable. Failures never stop startup.
func (s *Store) Check(ctx context.Context) bool {
	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		s.log.WarnContext(ctx, "Statement bucket unreachable", "bucket", s.bucket, "error", err)
		return false
	}
	s.log.InfoContext(ctx, "Statement bucket reachable", "bucket", s.bucket)
	return true
}

var _ ports.BlobStore = (*Store)(nil)
