// Package blob is the single entry point to blob storage. Callers depend on
// Store and obtain concrete drivers through Open or the constructors below;
// the infra driver packages are not imported anywhere else.
package blob

import (
	"context"
	"fmt"

	"tendertriage/internal/blob/core"
	fsstore "tendertriage/internal/infra/blob/fs"
	memstore "tendertriage/internal/infra/blob/memory"
	s3store "tendertriage/internal/infra/blob/s3"
)

type (
	Store      = core.Store
	Driver     = core.Driver
	Info       = core.Info
	PutOptions = core.PutOptions
)

const (
	DriverFilesystem = core.DriverFilesystem
	DriverS3         = core.DriverS3
	DriverMemory     = core.DriverMemory
)

var (
	ErrNotFound = core.ErrNotFound
	ErrExists   = core.ErrExists
)

// S3Config selects the bucket backing the s3 driver.
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string
	PathStyle bool
}

// Config selects and parameterises a driver.
type Config struct {
	Driver Driver
	FSRoot string
	S3     S3Config
}

// Open constructs the Store named by cfg.Driver (default fs).
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", DriverFilesystem:
		return NewFilesystem(cfg.FSRoot)
	case DriverS3:
		return NewS3(ctx, cfg.S3)
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %q", cfg.Driver)
	}
}

// NewFilesystem returns a Store rooted at a local directory.
func NewFilesystem(root string) (Store, error) {
	return fsstore.New(root)
}

// NewMemory returns an empty in-process Store.
func NewMemory() Store {
	return memstore.New()
}

// NewS3 returns a Store over an S3-compatible bucket.
func NewS3(ctx context.Context, cfg S3Config) (Store, error) {
	return s3store.New(ctx, s3store.Config{Bucket: cfg.Bucket, Region: cfg.Region, Endpoint: cfg.Endpoint, PathStyle: cfg.PathStyle})
}

// NewS3Mock returns an S3 Store whose HTTP transport is faked in process.
func NewS3Mock() Store {
	return s3store.NewMockForTests()
}
