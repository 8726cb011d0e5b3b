package ports

import "context"

// UploadOptions controls where Upload places a local file
type UploadOptions struct {
	Folder      string // key prefix, e.g. "videos/{id}"
	Filename    string // generated from a uuid plus the local extension when empty
	ContentType string // derived from the extension when empty
	KeepLocal   bool   // keep the local file after a successful upload
}

// ObjectStorePort is the durable artifact store (S3, R2, local disk).
type ObjectStorePort interface {
	// Upload copies localPath into the store under Folder/Filename and returns
	// the object key. The local file is removed on success unless KeepLocal.
	Upload(ctx context.Context, localPath string, opts UploadOptions) (string, error)

	// UploadFromPath stores a file produced on this host (not a web upload)
	// under an exact key. The local file is never removed.
	UploadFromPath(ctx context.Context, localPath, key, contentType string) (string, error)

	Delete(ctx context.Context, key string) error

	// GetPublicURL resolves a key to the URL clients fetch
	GetPublicURL(key string) string

	GetProviderName() string
}
