// Package blob is the entry point for blob storage. Callers depend on the
// Store interface; only this package imports the infra drivers.
package blob

import (
	"context"
	"fmt"
	"os"

	"grimoire/internal/blob/core"
	"grimoire/internal/infra/blob/fs"
	"grimoire/internal/infra/blob/memory"
	"grimoire/internal/infra/blob/s3"
)

type (
	// Driver identifies a blob backend driver.
	Driver = core.Driver
	// PutOptions configures a blob write.
	PutOptions = core.PutOptions
	// SignedURLOptions configures URL pre-signing.
	SignedURLOptions = core.SignedURLOptions
	// Info describes stored blob metadata.
	Info = core.Info
	// Store is the interface for blob storage backends.
	Store = core.Store
	// S3Config configures the S3 driver.
	S3Config = s3.Config
)

const (
	DriverFilesystem = core.DriverFilesystem
	DriverS3         = core.DriverS3
	DriverMemory     = core.DriverMemory
)

var (
	ErrUnsupported = core.ErrUnsupported
	ErrExists      = core.ErrExists
	ErrNotFound    = core.ErrNotFound
)

// NewFilesystem constructs a filesystem-backed Store rooted at root.
func NewFilesystem(root string) (Store, error) { return fs.New(root) }

// NewMemory returns an in-memory Store suitable for tests.
func NewMemory() Store { return memory.New() }

// NewS3 constructs an S3-backed Store.
func NewS3(ctx context.Context, cfg S3Config) (Store, error) { return s3.New(ctx, cfg) }

// Open selects a Store implementation using environment variables.
//
//	GRIMOIRE_BLOB_DRIVER: fs|s3|memory (default fs)
//	GRIMOIRE_BLOB_FS_ROOT: directory root when driver=fs (default ./blobdata)
//	GRIMOIRE_BLOB_S3_*: see s3.OpenFromEnv
func Open(ctx context.Context) (Store, error) {
	driver := os.Getenv("GRIMOIRE_BLOB_DRIVER")
	if driver == "" {
		driver = string(DriverFilesystem)
	}
	switch Driver(driver) {
	case DriverFilesystem:
		return NewFilesystem(os.Getenv("GRIMOIRE_BLOB_FS_ROOT"))
	case DriverS3:
		return s3.OpenFromEnv(ctx)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %s", driver)
	}
}

// NewMockS3ForTests returns an S3 Store backed by an in-process fake bucket.
func NewMockS3ForTests() Store { return s3.NewMockForTests() }
