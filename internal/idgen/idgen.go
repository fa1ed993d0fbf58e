// Package idgen generates short, URL-safe identifiers for finalization
// reports, backed by nanoid.
package idgen

import (
	"fmt"

	nanoid "github.com/matoous/go-nanoid/v2"
)

const (
	// Prefix marks plenum-issued identifiers.
	Prefix = "pl-"

	alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	length   = 10
)

// Generate returns a fresh Prefix-ed identifier with ten random alphanumeric
// characters.
func Generate() (string, error) {
	id, err := nanoid.Generate(alphabet, length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return Prefix + id, nil
}
