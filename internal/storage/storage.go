// Package storage publishes sample images once they are written to the
// task's target directory. It defines the Publisher interface (port) and
// implementations for local disk and S3.
package storage

import (
	"context"
	"errors"
)

// ErrPublish is returned when a written sample cannot be published.
var ErrPublish = errors.New("publish failed")

// Publisher makes a written sample available to consumers.
type Publisher interface {
	// Publish publishes the file at path and returns where it can be found.
	Publish(ctx context.Context, path string) (location string, err error)
}
