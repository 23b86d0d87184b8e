package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/damymess/keroxio-image/config"
	"github.com/damymess/keroxio-image/utils"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"
)

// Storage persists image bytes under a key and returns a public URL.
type Storage interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
	Download(ctx context.Context, key string) ([]byte, error)
}

// NewStorage picks the configured storage backend. An S3 configuration that
// fails to initialize falls back to local disk so the service still boots.
func NewStorage(cfg *config.StorageConfig) Storage {
	if cfg.Backend == "s3" {
		s3, err := NewS3Storage(cfg)
		if err == nil {
			return s3
		}
		utils.Logger.Warn("s3 storage unavailable, using local disk", zap.Error(err))
	}
	return NewLocalStorage(cfg.LocalPath, cfg.PublicURL)
}

// LocalStorage keeps files on disk under a base path, served statically.
type LocalStorage struct {
	basePath  string
	publicURL string
}

func NewLocalStorage(basePath, publicURL string) *LocalStorage {
	return &LocalStorage{basePath: basePath, publicURL: strings.TrimRight(publicURL, "/")}
}

func (s *LocalStorage) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	fullPath := filepath.Join(s.basePath, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("create storage dir: %w", err)
	}
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", key, err)
	}
	return s.publicURL + "/" + key, nil
}

func (s *LocalStorage) Delete(ctx context.Context, key string) error {
	err := os.Remove(filepath.Join(s.basePath, filepath.FromSlash(key)))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *LocalStorage) Download(ctx context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Join(s.basePath, filepath.FromSlash(key)))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}

// BasePath exposes the storage root for the static file mount.
func (s *LocalStorage) BasePath() string {
	return s.basePath
}

// CleanupAged removes processed files older than maxAge. Uploads keyed by
// owner are left alone; only the processed/ prefix is bounded.
func (s *LocalStorage) CleanupAged(maxAge time.Duration) {
	root := filepath.Join(s.basePath, "processed")
	cutoff := time.Now().Add(-maxAge)
	removed := 0

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.ModTime().Before(cutoff) {
			if rmErr := os.Remove(path); rmErr == nil {
				removed++
			}
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		utils.Logger.Warn("storage cleanup walk failed", zap.Error(err))
		return
	}
	if removed > 0 {
		utils.Logger.Info("storage cleanup",
			zap.Int("removed", removed),
			zap.Duration("max_age", maxAge))
	}
}

// S3Storage talks to any S3-compatible endpoint (Cloudflare R2 in production).
type S3Storage struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

func NewS3Storage(cfg *config.StorageConfig) (*S3Storage, error) {
	client, err := minio.New(cfg.S3Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.S3AccessKey, cfg.S3SecretKey, ""),
		Secure: true,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}
	return &S3Storage{
		client:    client,
		bucket:    cfg.S3Bucket,
		publicURL: strings.TrimRight(cfg.S3PublicURL, "/"),
	}, nil
}

func (s *S3Storage) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return "", fmt.Errorf("put %s: %w", key, err)
	}
	if s.publicURL != "" {
		return s.publicURL + "/" + key, nil
	}
	return fmt.Sprintf("https://%s/%s/%s", s.client.EndpointURL().Host, s.bucket, key), nil
}

func (s *S3Storage) Delete(ctx context.Context, key string) error {
	return s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
}

func (s *S3Storage) Download(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	defer func() {
		_ = obj.Close()
	}()
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return data, nil
}
