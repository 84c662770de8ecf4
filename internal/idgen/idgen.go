// Package idgen provides short, URL-safe unique ID generation backed by nanoid.
package idgen

import (
	"fmt"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// Prefixes for the entities of a requirement graph.
const (
	NodePrefix    = "nd-"
	EdgePrefix    = "ed-"
	ProjectPrefix = "pj-"
)

// Alphabet defines the character set used for the random portion of the ID.
var Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Length is the number of random characters generated (excluding the prefix).
var Length = 12

// GenerateWithPrefix returns a new unique ID with the given prefix.
func GenerateWithPrefix(prefix string) (string, error) {
	id, err := nanoid.Generate(Alphabet, Length)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return prefix + id, nil
}

// MustGenerateWithPrefix is like GenerateWithPrefix but panics on error.
// Generation only fails when Alphabet or Length are misconfigured.
func MustGenerateWithPrefix(prefix string) string {
	id, err := GenerateWithPrefix(prefix)
	if err != nil {
		panic(err)
	}
	return id
}

// NodeID returns a fresh node identifier.
func NodeID() string { return MustGenerateWithPrefix(NodePrefix) }

// EdgeID returns a fresh edge identifier.
func EdgeID() string { return MustGenerateWithPrefix(EdgePrefix) }

// ProjectID returns a fresh project identifier.
func ProjectID() string { return MustGenerateWithPrefix(ProjectPrefix) }
