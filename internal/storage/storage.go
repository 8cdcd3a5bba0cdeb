// Package storage persists rendered QR images in object storage.
package storage

import (
	"context"
	"errors"
)

var (
	ErrInvalidConfig      = errors.New("invalid storage configuration")
	ErrFailedToLoadConfig = errors.New("failed to load AWS config")
	ErrUploadFailed       = errors.New("failed to upload object")
	ErrDeleteFailed       = errors.New("failed to delete object")
	ErrEmptyKey           = errors.New("object key cannot be empty")
)

// ImageStore stores QR images under a key and returns their public URL.
type ImageStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
	Enabled() bool
}

// NopStore is used when no bucket is configured: nothing is stored.
type NopStore struct{}

func (NopStore) Put(context.Context, string, []byte, string) (string, error) { return "", nil }

func (NopStore) Delete(context.Context, string) error { return nil }

func (NopStore) Enabled() bool { return false }
