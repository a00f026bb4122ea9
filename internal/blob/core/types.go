// Package core holds the storage contract shared by the blob drivers that
// back tender dataset snapshots and triage exports.
package core

import (
	"context"
	"errors"
	"io"
	"time"
)

// Driver names a blob backend.
type Driver string

const (
	DriverFilesystem Driver = "fs"
	DriverS3         Driver = "s3"
	DriverMemory     Driver = "memory"
)

// PutOptions carries optional attributes recorded with a blob.
type PutOptions struct {
	ContentType string
	Metadata    map[string]string
}

// Info describes a stored blob.
type Info struct {
	Key          string            `json:"key"`
	Size         int64             `json:"size_bytes"`
	ContentType  string            `json:"content_type,omitempty"`
	ETag         string            `json:"etag,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	LastModified time.Time         `json:"last_modified"`
}

// Store reads dataset snapshots and writes export artifacts. Put never
// overwrites: writing an existing key fails with ErrExists.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, opts PutOptions) (Info, error)
	Get(ctx context.Context, key string) (Info, io.ReadCloser, error)
	Head(ctx context.Context, key string) (Info, error)
	List(ctx context.Context, prefix string) ([]Info, error)
	Driver() Driver
}

var (
	// ErrNotFound reports a key with no stored blob.
	ErrNotFound = errors.New("blob: not found")
	// ErrExists reports a Put against a key that is already taken.
	ErrExists = errors.New("blob: already exists")
)
