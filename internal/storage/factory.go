package storage

import (
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"github.com/timmy/threatforge/internal/config"
)

// NewStorage creates an ObjectStorage instance based on the configuration.
// Parameters:
//   - cfg: storage section of the application config.
//
// Returns:
//   - ObjectStorage: initialized storage implementation.
//   - error: non-nil if the backend cannot be created.
func NewStorage(cfg config.StorageConfig) (ObjectStorage, error) {
	switch StorageType(strings.ToLower(cfg.Type)) {
	case StorageTypeLocal:
		if cfg.LocalPath == "" {
			return nil, fmt.Errorf("storage: local_path is required for local storage")
		}
		return NewFSStorage(afero.NewBasePathFs(afero.NewOsFs(), cfg.LocalPath), cfg.PublicURL), nil
	case StorageTypeMemory:
		return NewFSStorage(afero.NewMemMapFs(), cfg.PublicURL), nil
	case StorageTypeS3, StorageTypeR2, StorageTypeS3Compatible, "":
		s3cfg := &S3Config{
			Type:      StorageType(cfg.Type),
			Endpoint:  cfg.Endpoint,
			AccessKey: cfg.AccessKey,
			SecretKey: cfg.SecretKey,
			UseSSL:    cfg.UseSSL,
			Bucket:    cfg.Bucket,
			Region:    cfg.Region,
			PublicURL: cfg.PublicURL,
		}
		if s3cfg.Type == "" {
			s3cfg.Type = detectStorageType(cfg.Endpoint)
		}
		return NewS3Storage(s3cfg)
	default:
		return nil, fmt.Errorf("storage: unsupported type %q", cfg.Type)
	}
}

// detectStorageType attempts to detect the storage type from the endpoint
func detectStorageType(endpoint string) StorageType {
	endpoint = strings.ToLower(endpoint)

	switch {
	case strings.Contains(endpoint, "r2.cloudflarestorage.com"):
		return StorageTypeR2
	case endpoint == "" || strings.Contains(endpoint, "amazonaws.com"):
		return StorageTypeS3
	default:
		return StorageTypeS3Compatible
	}
}
