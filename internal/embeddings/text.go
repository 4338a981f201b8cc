package embeddings

import (
	"fmt"
	"strings"

	"github.com/verigraph/verigraph/internal/entity"
)

// GenerateEmbeddingText generates natural language text from an entity
// profile for embedding. This text is used to create semantic embeddings that
// capture what the entity is and where it sits in each hierarchy.
func GenerateEmbeddingText(profile *entity.Profile) string {
	if profile == nil {
		return ""
	}

	var parts []string

	parts = append(parts, profile.Entity.Label)

	if profile.Entity.Description != "" {
		parts = append(parts, profile.Entity.Description)
	}

	for _, pos := range profile.Positions {
		parts = append(parts, fmt.Sprintf("%s: %s", pos.Dimension, strings.Join(pos.Path, " ")))
	}

	for _, key := range profile.SortedPropertyKeys() {
		parts = append(parts, fmt.Sprintf("%s %s", key, profile.Properties[key]))
	}

	return strings.Join(parts, ". ")
}

// GenerateProfileText generates a shorter text representation for a profile.
// Used for quick indexing and search.
func GenerateProfileText(profile *entity.Profile) string {
	if profile == nil {
		return ""
	}

	parts := []string{profile.Entity.Label}
	if profile.Entity.Description != "" {
		parts = append(parts, profile.Entity.Description)
	}
	return strings.Join(parts, " ")
}
