package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"vidstream/domain/ports"
	"vidstream/pkg/logger"
)

// localBackend keeps objects under a directory served as static files
type localBackend struct {
	basePath string
	baseURL  string
}

type LocalStorageConfig struct {
	BasePath string // ./uploads
	BaseURL  string // http://localhost:8080/files
}

func NewLocalStorage(config LocalStorageConfig) (ports.ObjectStorePort, error) {
	if err := os.MkdirAll(config.BasePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	logger.Info("Local storage initialized", "base_path", config.BasePath)

	return newGateway(&localBackend{
		basePath: config.BasePath,
		baseURL:  strings.TrimSuffix(config.BaseURL, "/"),
	}), nil
}

func (l *localBackend) putFile(ctx context.Context, key, localPath, _ string) error {
	dst := filepath.Join(l.basePath, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}

	src, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer src.Close()

	// write next to the target and rename so readers never see a half file
	tmp := dst + ".part"
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}

func (l *localBackend) remove(_ context.Context, key string) error {
	err := os.Remove(filepath.Join(l.basePath, filepath.FromSlash(key)))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (l *localBackend) publicURL(key string) string {
	return l.baseURL + "/" + key
}

func (l *localBackend) name() string {
	return "local"
}
