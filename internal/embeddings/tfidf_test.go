package embeddings

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verigraph/verigraph/internal/entity"
)

func TestTFIDFEmbedder(t *testing.T) {
	t.Parallel()

	t.Run("BuildVocabulary", func(t *testing.T) {
		embedder := NewTFIDFEmbedder()
		docs := []string{
			"Paris capital of France",
			"France country in Europe",
			"Eiffel Tower landmark in Paris",
		}

		embedder.BuildVocabulary(docs)

		assert.Greater(t, len(embedder.vocab), 0)
		assert.Equal(t, len(docs), embedder.docCount)
	})

	t.Run("ComputeIDF", func(t *testing.T) {
		embedder := NewTFIDFEmbedder()
		docs := []string{
			"paris capital france",
			"paris landmark tower",
			"london capital england",
		}

		embedder.BuildVocabulary(docs)
		embedder.ComputeIDF(docs)

		// "paris" appears in 2/3 docs, "tower" in 1/3.
		assert.Greater(t, embedder.idf["paris"], float64(0))
		assert.Greater(t, embedder.idf["tower"], embedder.idf["paris"])
		assert.Greater(t, embedder.idf["england"], embedder.idf["capital"])
	})

	t.Run("EmbedIsNormalized", func(t *testing.T) {
		embedder := NewTFIDFEmbedder()
		docs := []string{
			"paris capital of france",
			"berlin capital of germany",
			"telephone invented by bell",
		}

		embedder.BuildVocabulary(docs)
		embedder.ComputeIDF(docs)

		embedding := embedder.Embed("paris capital of france")
		require.Len(t, embedding, EmbeddingDimension)

		norm := 0.0
		for _, v := range embedding {
			norm += float64(v) * float64(v)
		}
		assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)
	})

	t.Run("SimilarDocsCloserThanDissimilar", func(t *testing.T) {
		embedder := NewTFIDFEmbedder()
		docs := []string{
			"paris capital city of france",
			"lyon city in france",
			"telephone invented by alexander bell",
		}

		embedder.BuildVocabulary(docs)
		embedder.ComputeIDF(docs)

		a := embedder.Embed("paris capital city of france")
		b := embedder.Embed("lyon city in france")
		c := embedder.Embed("telephone invented by alexander bell")

		assert.Greater(t, dot(a, b), dot(a, c))
	})

	t.Run("EmptyDocument", func(t *testing.T) {
		embedder := NewTFIDFEmbedder()
		embedder.BuildVocabulary([]string{"some text"})
		embedder.ComputeIDF([]string{"some text"})

		embedding := embedder.Embed("")
		require.Len(t, embedding, EmbeddingDimension)
		for _, v := range embedding {
			assert.Zero(t, v)
		}
	})
}

func TestEmbedProfiles(t *testing.T) {
	t.Parallel()

	profiles := []*entity.Profile{
		{Entity: entity.Entity{ID: "Q90", Label: "Paris", Description: "capital of France"}},
		{Entity: entity.Entity{ID: "Q142", Label: "France", Description: "country in Europe"}},
	}

	embedder := NewTFIDFEmbedder()
	embeddings := embedder.EmbedProfiles(profiles)

	require.Len(t, embeddings, 2)
	for _, emb := range embeddings {
		assert.Len(t, emb, EmbeddingDimension)
	}
	// Both mention France, so the vectors must overlap.
	assert.Greater(t, dot(embeddings[0], embeddings[1]), 0.0)
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
