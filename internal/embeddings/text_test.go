package embeddings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verigraph/verigraph/internal/entity"
)

func TestGenerateEmbeddingText(t *testing.T) {
	t.Parallel()

	t.Run("NilProfile", func(t *testing.T) {
		assert.Empty(t, GenerateEmbeddingText(nil))
	})

	t.Run("LabelOnly", func(t *testing.T) {
		p := &entity.Profile{Entity: entity.Entity{ID: "Q90", Label: "Paris"}}
		assert.Equal(t, "Paris", GenerateEmbeddingText(p))
	})

	t.Run("FullProfile", func(t *testing.T) {
		pos, err := entity.NewDimensionPosition(entity.DimSpatial, 1, 2, []string{"Earth", "Europe", "France"}, "Earth")
		require.NoError(t, err)

		p := &entity.Profile{
			Entity: entity.Entity{
				ID:          "Q142",
				Label:       "France",
				Description: "country in Western Europe",
			},
			Positions:  []entity.DimensionPosition{pos},
			Properties: map[string]string{"capital": "Paris", "currency": "Euro"},
		}

		text := GenerateEmbeddingText(p)
		assert.Contains(t, text, "France")
		assert.Contains(t, text, "country in Western Europe")
		assert.Contains(t, text, "SPATIAL: Earth Europe France")
		assert.Contains(t, text, "capital Paris")
		assert.Contains(t, text, "currency Euro")
	})
}

func TestGenerateProfileText(t *testing.T) {
	t.Parallel()

	t.Run("NilProfile", func(t *testing.T) {
		assert.Empty(t, GenerateProfileText(nil))
	})

	t.Run("LabelAndDescription", func(t *testing.T) {
		p := &entity.Profile{
			Entity: entity.Entity{Label: "Paris", Description: "capital of France"},
		}
		assert.Equal(t, "Paris capital of France", GenerateProfileText(p))
	})
}
