package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// LogStore archives the session log of one launcher run.
type LogStore interface {
	// Store saves the log and returns a reference path/URL.
	Store(ctx context.Context, runID string, logs []byte) (string, error)
	// Retrieve fetches a previously stored log by reference.
	Retrieve(ctx context.Context, reference string) ([]byte, error)
}

// FileLogStore writes session logs under a local directory. This is
// the default backend.
type FileLogStore struct {
	dir string
}

func NewFileLogStore(dir string) (*FileLogStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	return &FileLogStore{dir: dir}, nil
}

func (f *FileLogStore) Store(_ context.Context, runID string, logs []byte) (string, error) {
	path := filepath.Join(f.dir, runID+".log")
	if err := os.WriteFile(path, logs, 0644); err != nil {
		return "", fmt.Errorf("failed to write session log: %w", err)
	}
	return path, nil
}

func (f *FileLogStore) Retrieve(_ context.Context, reference string) ([]byte, error) {
	return os.ReadFile(reference)
}

// S3LogStore ships session logs to S3-compatible storage (including
// MinIO via a custom endpoint).
type S3LogStore struct {
	client *s3.Client
	bucket string
	prefix string
}

// S3LogStoreConfig holds S3 configuration.
type S3LogStoreConfig struct {
	Bucket          string
	Prefix          string // e.g. "logs/sessions/"
	Region          string
	Endpoint        string // for MinIO/local S3
	AccessKeyID     string
	SecretAccessKey string
}

func NewS3LogStore(ctx context.Context, cfg S3LogStoreConfig) (*S3LogStore, error) {
	optFns := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		optFns = append(optFns, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	clientOpts := []func(*s3.Options){}
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true // required for MinIO
		})
	}

	return &S3LogStore{
		client: s3.NewFromConfig(awsCfg, clientOpts...),
		bucket: cfg.Bucket,
		prefix: cfg.Prefix,
	}, nil
}

func (s *S3LogStore) Store(ctx context.Context, runID string, logs []byte) (string, error) {
	key := s.prefix + runID + ".log"
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(logs),
		ContentType: aws.String("text/plain"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload session log: %w", err)
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}

func (s *S3LogStore) Retrieve(ctx context.Context, reference string) ([]byte, error) {
	key, err := s.keyFromReference(reference)
	if err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch session log: %w", err)
	}
	defer out.Body.Close()
	return io.ReadAll(out.Body)
}

func (s *S3LogStore) keyFromReference(reference string) (string, error) {
	wantPrefix := fmt.Sprintf("s3://%s/", s.bucket)
	if len(reference) <= len(wantPrefix) || reference[:len(wantPrefix)] != wantPrefix {
		return "", fmt.Errorf("reference %q does not belong to bucket %s", reference, s.bucket)
	}
	return reference[len(wantPrefix):], nil
}
