// Package id generates the identifiers used by the tree models: local ids for
// entities created on this device and correlation ids for backend requests.
package id

import (
	"fmt"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Generate creates a prefixed unique ID using NanoID
// Format: prefix-nanoid (e.g., "tag-V1StGXR8_Z5jdHi6B-myT")
//
// Returns an error if the system has insufficient entropy for secure random generation.
func Generate(prefix string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}

// MustGenerate is like Generate but panics if ID generation fails.
func MustGenerate(prefix string) string {
	id, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return id
}

// NewLocalID returns a fresh local id for an entity of the given kind.
// Local ids are never reused within an account.
func NewLocalID(kind string) string {
	return MustGenerate(kind)
}

// NewRequestID returns a fresh correlation id for an outgoing backend request.
func NewRequestID() string {
	return uuid.NewString()
}
