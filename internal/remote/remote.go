package remote

import (
	"context"
	"fmt"

	"github.com/torfstack/sideload/internal/auth"
	"github.com/torfstack/sideload/internal/config"
)

const (
	StatusExists = "exists"
	StatusCopied = "copied"
)

// Request describes one instant upload attempt. SHA1 is lower case hex and
// empty when the caller has not hashed the file yet.
type Request struct {
	Path     string
	Name     string
	Size     int64
	SHA1     string
	FolderID string
}

// Result of an instant upload attempt. A non-empty Status means the provider
// accepted the file; otherwise FileSHA1 carries the hash that was computed so
// the caller can pass it on the next attempt.
type Result struct {
	Status   string
	FileSHA1 string
	RemoteID string
}

func (r Result) OK() bool {
	return r.Status != ""
}

// Client performs hash based instant uploads. It never transfers file content.
type Client interface {
	InitUpload(ctx context.Context, req Request) (Result, error)
}

// Factory creates a fresh Client; it is called again after a client error.
type Factory func(ctx context.Context) (Client, error)

// NewFactory returns the factory for the backend selected in cfg.
func NewFactory(cfg config.Config, store auth.TokenStore) (Factory, error) {
	switch cfg.Backend {
	case config.BackendDrive:
		return func(ctx context.Context) (Client, error) {
			drv, err := auth.DriveService(ctx, cfg.Drive.CredentialsFile, store, false)
			if err != nil {
				return nil, fmt.Errorf("could not create drive client: %w", err)
			}
			return NewDriveClient(drv), nil
		}, nil
	case config.BackendS3:
		return func(ctx context.Context) (Client, error) {
			return NewS3ClientFromConfig(ctx, cfg.S3)
		}, nil
	default:
		return nil, fmt.Errorf("unknown backend '%s'", cfg.Backend)
	}
}
