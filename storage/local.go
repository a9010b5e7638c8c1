package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"nexus_go/config"
	"nexus_go/services"

	"github.com/sirupsen/logrus"
)

// LocalStore keeps uploaded files under a directory served at baseURL.
type LocalStore struct {
	root    string
	baseURL string
}

func NewLocalStore(root, baseURL string) *LocalStore {
	return &LocalStore{root: root, baseURL: strings.TrimRight(baseURL, "/")}
}

// New picks S3 when a bucket is configured, local disk otherwise.
func New(ctx context.Context, cfg *config.Config) (services.BlobStore, error) {
	if cfg.UseS3() {
		return NewS3Store(ctx, cfg)
	}
	logrus.WithField("dir", cfg.UploadDir).Info("Using local file storage")
	return NewLocalStore(cfg.UploadDir, cfg.PublicBaseURL+"/uploads"), nil
}

func (l *LocalStore) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error) {
	dst, err := l.resolve(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload directory: %w", err)
	}

	f, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		os.Remove(dst)
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(dst)
		return "", err
	}
	return l.baseURL + "/" + path.Clean(key), nil
}

// Delete removes the file. A file that is already gone is not an error.
func (l *LocalStore) Delete(ctx context.Context, key string) error {
	dst, err := l.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(dst); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// resolve maps a key to a path inside root, rejecting keys that escape it.
func (l *LocalStore) resolve(key string) (string, error) {
	clean := path.Clean("/" + key)
	if clean == "/" || strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid storage key %q", key)
	}
	return filepath.Join(l.root, filepath.FromSlash(clean)), nil
}

// ContentTypeFor guesses a MIME type from the file extension.
func ContentTypeFor(name string) string {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(name), ".")) {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	case "pdf":
		return "application/pdf"
	case "txt", "csv":
		return "text/plain"
	case "doc":
		return "application/msword"
	case "docx":
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	case "xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case "zip":
		return "application/zip"
	default:
		return "application/octet-stream"
	}
}
