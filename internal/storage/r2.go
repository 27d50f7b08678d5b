package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// R2Config holds configuration for the R2 store.
type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string // public bucket URL prefix
}

// R2 publishes artifacts to a Cloudflare R2 bucket through the S3 API.
type R2 struct {
	s3Client   *s3.Client
	bucketName string
	publicURL  string
}

// NewR2 creates an R2 store.
func NewR2(ctx context.Context, cfg *R2Config) (*R2, error) {
	if cfg.AccountID == "" || cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" || cfg.BucketName == "" {
		return nil, fmt.Errorf("incomplete R2 configuration")
	}

	endpoint := fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
		awsconfig.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = true
	})

	slog.Info("R2 store initialized", "bucket", cfg.BucketName, "endpoint", endpoint)

	return &R2{
		s3Client:   s3Client,
		bucketName: cfg.BucketName,
		publicURL:  strings.TrimSuffix(cfg.PublicURL, "/"),
	}, nil
}

// Publish uploads the artifact under its base name and returns its
// public URL.
func (r *R2) Publish(ctx context.Context, filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat file: %w", err)
	}

	key := filepath.Base(filePath)

	_, err = r.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(r.bucketName),
		Key:           aws.String(key),
		Body:          file,
		ContentType:   aws.String(contentType(filePath)),
		ContentLength: aws.Int64(info.Size()),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to R2: %w", err)
	}

	slog.Info("artifact uploaded to R2", "key", key, "size", info.Size())

	if r.publicURL != "" {
		return r.publicURL + "/" + key, nil
	}
	return "/" + key, nil
}

// Delete removes an object from the bucket.
func (r *R2) Delete(ctx context.Context, key string) error {
	_, err := r.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(r.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete from R2: %w", err)
	}
	return nil
}

// DeleteOlderThan deletes objects whose last modification is older
// than age. Returns the number of deleted objects.
func (r *R2) DeleteOlderThan(ctx context.Context, age time.Duration) (int, error) {
	output, err := r.s3Client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(r.bucketName),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to list objects: %w", err)
	}

	threshold := time.Now().Add(-age)
	deleted := 0
	for _, obj := range output.Contents {
		if obj.Key == nil || obj.LastModified == nil || !obj.LastModified.Before(threshold) {
			continue
		}
		if err := r.Delete(ctx, *obj.Key); err != nil {
			slog.Warn("failed to delete old artifact", "key", *obj.Key, "error", err)
			continue
		}
		deleted++
	}

	if deleted > 0 {
		slog.Info("deleted old artifacts from R2", "count", deleted, "age", age)
	}
	return deleted, nil
}
