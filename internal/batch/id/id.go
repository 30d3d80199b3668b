// Package id provides unique identifier generation for batches.
package id

import "github.com/google/uuid"

// Generate creates a new unique batch ID.
// Format: batch-<uuid>
// Example: batch-3f0c5e0a-8f59-4a3e-9d5b-1c7f2b9e4a10
func Generate() string {
	return "batch-" + uuid.NewString()
}
