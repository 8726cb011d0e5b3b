package storage

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"vidstream/domain/ports"
	"vidstream/pkg/logger"
)

// blobBackend is the provider-specific half of the gateway
type blobBackend interface {
	putFile(ctx context.Context, key, localPath, contentType string) error
	remove(ctx context.Context, key string) error
	publicURL(key string) string
	name() string
}

// Gateway implements ports.ObjectStorePort on top of a provider backend.
// Key placement, content types and local-file ownership live here so every
// provider behaves the same.
type Gateway struct {
	backend blobBackend
}

var _ ports.ObjectStorePort = (*Gateway)(nil)

func newGateway(backend blobBackend) *Gateway {
	return &Gateway{backend: backend}
}

func (g *Gateway) Upload(ctx context.Context, localPath string, opts ports.UploadOptions) (string, error) {
	filename := opts.Filename
	if filename == "" {
		filename = uuid.New().String() + strings.ToLower(filepath.Ext(localPath))
	}
	key := normalizeKey(path.Join(opts.Folder, filename))

	contentType := opts.ContentType
	if contentType == "" {
		contentType = ContentTypeFor(filename)
	}

	if err := g.put(ctx, localPath, key, contentType); err != nil {
		return "", err
	}

	if !opts.KeepLocal {
		if err := os.Remove(localPath); err != nil && !os.IsNotExist(err) {
			logger.WarnContext(ctx, "Uploaded but failed to remove local file", "path", localPath, "error", err)
		}
	}

	return key, nil
}

func (g *Gateway) UploadFromPath(ctx context.Context, localPath, key, contentType string) (string, error) {
	key = normalizeKey(key)
	if contentType == "" {
		contentType = ContentTypeFor(key)
	}
	if err := g.put(ctx, localPath, key, contentType); err != nil {
		return "", err
	}
	return key, nil
}

func (g *Gateway) put(ctx context.Context, localPath, key, contentType string) error {
	if key == "" {
		return fmt.Errorf("empty object key for %s", localPath)
	}
	info, err := os.Stat(localPath)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", localPath, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", localPath)
	}

	if err := g.backend.putFile(ctx, key, localPath, contentType); err != nil {
		return fmt.Errorf("failed to upload %s to %s: %w", key, g.backend.name(), err)
	}

	logger.DebugContext(ctx, "Object uploaded",
		"provider", g.backend.name(),
		"key", key,
		"size", info.Size(),
		"content_type", contentType,
	)
	return nil
}

func (g *Gateway) Delete(ctx context.Context, key string) error {
	key = normalizeKey(key)
	if err := g.backend.remove(ctx, key); err != nil {
		return fmt.Errorf("failed to delete %s from %s: %w", key, g.backend.name(), err)
	}
	return nil
}

func (g *Gateway) GetPublicURL(key string) string {
	return g.backend.publicURL(normalizeKey(key))
}

func (g *Gateway) GetProviderName() string {
	return g.backend.name()
}

func normalizeKey(key string) string {
	key = strings.ReplaceAll(key, "\\", "/")
	key = path.Clean("/" + key)
	return strings.TrimPrefix(key, "/")
}

// ContentTypeFor maps the artifact extensions the pipeline produces
func ContentTypeFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".m3u8":
		return "application/vnd.apple.mpegurl"
	case ".ts":
		return "video/MP2T"
	case ".mp4":
		return "video/mp4"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
