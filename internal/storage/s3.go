// Package storage implements the archive sinks, the account fallback
// snapshots, and the tenant store.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gabriel-vasile/mimetype"

	"github.com/quillsync/quillsync/internal/service"
)

// linkExpiry bounds how long a retrieval URL stays valid.
const linkExpiry = time.Hour

// S3Store stores one tenant's backup archive as an S3 object and hands out
// presigned retrieval links.
type S3Store struct {
	client  *s3.Client
	presign *s3.PresignClient
	logger  *slog.Logger
	bucket  string
	key     string
}

// NewS3Store creates an archive store bound to one tenant's object. AWS
// credentials come from the default chain.
func NewS3Store(ctx context.Context, bucket, tenantID string) (*S3Store, error) {
	if bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}
	if tenantID == "" {
		return nil, fmt.Errorf("tenant id is required")
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}

	client := s3.NewFromConfig(cfg)
	return &S3Store{
		client:  client,
		presign: s3.NewPresignClient(client),
		logger:  slog.Default().With("component", "storage"),
		bucket:  bucket,
		key:     tenantID + ".zip",
	}, nil
}

// Put uploads the finished archive, detecting its content type from the
// leading bytes.
func (s *S3Store) Put(ctx context.Context, data io.Reader) error {
	payload, err := io.ReadAll(data)
	if err != nil {
		return fmt.Errorf("failed to read archive: %w", err)
	}
	contentType := mimetype.Detect(payload).String()

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload archive: %w", err)
	}

	s.logger.Info("Stored backup archive",
		"bucket", s.bucket,
		"key", s.key,
		"bytes", len(payload))
	return nil
}

// Link returns a time-limited presigned GET URL for the archive.
func (s *S3Store) Link(ctx context.Context) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	}, s3.WithPresignExpires(linkExpiry))
	if err != nil {
		return "", fmt.Errorf("failed to presign archive link: %w", err)
	}
	return req.URL, nil
}

// Meta reports when the archive was last stored.
func (s *S3Store) Meta(ctx context.Context) (service.ArchiveMeta, error) {
	head, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		// A missing object just means no backup exists yet.
		return service.ArchiveMeta{}, nil
	}

	meta := service.ArchiveMeta{}
	if head.LastModified != nil {
		meta.LastModified = *head.LastModified
	}
	return meta, nil
}

// Ensure S3Store implements the archive sink contract.
var _ service.ArchiveStore = (*S3Store)(nil)
