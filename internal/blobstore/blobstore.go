// Package blobstore provides content-addressed, write-once storage for
// document bytes (§6's bytes-reference contract). Keys are derived from the
// sha256 of the content itself, so identical bytes always resolve to the
// same key regardless of upload path — the same fingerprinting idea as the
// teacher's internal/fileid, applied to content instead of a file path.
package blobstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
)

// BlobStore persists document bytes under a content-derived key and
// retrieves them later. Keys are stable: the same content always
// produces the same key (Put is idempotent), and a written blob is never
// mutated in place.
type BlobStore interface {
	// Put stores content and returns its key. Calling Put again with the
	// same bytes returns the same key without rewriting anything.
	Put(ctx context.Context, content []byte) (key string, err error)
	// Get retrieves the bytes for key.
	Get(ctx context.Context, key string) ([]byte, error)
	// Exists reports whether key is already stored.
	Exists(ctx context.Context, key string) (bool, error)
}

// KeyFor computes the content-addressed key for content: "sha256/<hex>".
func KeyFor(content []byte) string {
	sum := sha256.Sum256(content)
	return "sha256/" + hex.EncodeToString(sum[:])
}
