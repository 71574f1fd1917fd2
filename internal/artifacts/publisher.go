package artifacts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"path/filepath"
	"sort"
	"sync"
	"time"

	miniosdk "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"songdub/internal/config"
	"songdub/internal/logging"
)

// defaultRegion avoids a bucket-location round trip when presigning.
const defaultRegion = "us-east-1"

// Publisher uploads finished artifacts and returns shareable URLs keyed by
// artifact name.
type Publisher interface {
	Publish(ctx context.Context, jobID string, files map[string]string) (map[string]string, error)
}

// Store publishes to an S3-compatible bucket via MinIO and hands out
// presigned GET URLs.
type Store struct {
	client    *miniosdk.Client
	presigner *miniosdk.Client
	bucket    string
	expiry    time.Duration
	logger    *slog.Logger

	mu           sync.Mutex
	bucketExists bool
}

// NewStore builds a Store from the storage configuration. No network call
// is made until Publish.
func NewStore(cfg config.Storage, logger *slog.Logger) (*Store, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, errors.New("storage: endpoint and bucket are required")
	}
	newClient := func(endpoint string) (*miniosdk.Client, error) {
		return miniosdk.New(endpoint, &miniosdk.Options{
			Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
			Secure: cfg.UseSSL,
			Region: defaultRegion,
		})
	}
	client, err := newClient(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("storage: create client: %w", err)
	}
	presigner := client
	if cfg.PublicEndpoint != "" && cfg.PublicEndpoint != cfg.Endpoint {
		if presigner, err = newClient(cfg.PublicEndpoint); err != nil {
			return nil, fmt.Errorf("storage: create public client: %w", err)
		}
	}
	return &Store{
		client:    client,
		presigner: presigner,
		bucket:    cfg.Bucket,
		expiry:    time.Duration(cfg.PresignExpiryMinutes) * time.Minute,
		logger:    logging.NewComponentLogger(logger, "artifacts"),
	}, nil
}

// ObjectKey is the bucket key for an artifact of job id.
func ObjectKey(id, name string) string {
	return "jobs/" + id + "/" + name
}

// Publish uploads each file and returns presigned URLs. Files are uploaded in
// name order and the first failure aborts the rest.
func (s *Store) Publish(ctx context.Context, jobID string, files map[string]string) (map[string]string, error) {
	if err := s.makeBucket(ctx); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	urls := make(map[string]string, len(files))
	for _, name := range names {
		key := ObjectKey(jobID, name)
		info, err := s.client.FPutObject(ctx, s.bucket, key, files[name], miniosdk.PutObjectOptions{
			ContentType: contentType(name),
		})
		if err != nil {
			return urls, fmt.Errorf("upload %s: %w", name, err)
		}
		signed, err := s.Presign(ctx, key)
		if err != nil {
			return urls, err
		}
		urls[name] = signed
		s.logger.Debug("artifact published", logging.Args(
			logging.String("key", key),
			logging.Int64("bytes", info.Size),
		)...)
	}
	return urls, nil
}

// Presign returns a time-limited GET URL for key.
func (s *Store) Presign(ctx context.Context, key string) (string, error) {
	signed, err := s.presigner.PresignedGetObject(ctx, s.bucket, key, s.expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}
	return signed.String(), nil
}

func (s *Store) makeBucket(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bucketExists {
		return nil
	}
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, miniosdk.MakeBucketOptions{Region: defaultRegion}); err != nil {
			return fmt.Errorf("create bucket: %w", err)
		}
	}
	s.bucketExists = true
	return nil
}

func contentType(name string) string {
	if filepath.Ext(name) == ".wav" {
		return "audio/wav"
	}
	return "application/octet-stream"
}
