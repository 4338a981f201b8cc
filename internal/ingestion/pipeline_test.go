package ingestion

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verigraph/verigraph/internal/embeddings"
	"github.com/verigraph/verigraph/internal/store"
)

const testDataset = `{
	"zero_states": [
		{"dimension": "SPATIAL", "zero_node": "Earth"}
	],
	"entities": [
		{"id": "Q90", "label": "Paris", "description": "Capital of France", "vital_level": 3, "pagerank": 0.9},
		{"id": "Q142", "label": "France", "description": "Country in Europe", "vital_level": 2, "pagerank": 0.95}
	],
	"positions": [
		{"entity_id": "Q90", "dimension": "SPATIAL", "sign": 1, "depth": 3, "path": ["Earth", "Europe", "France", "Paris"], "zero_state": "Earth"}
	],
	"epa_values": [
		{"entity_id": "Q90", "evaluation": 1, "potency": 0, "activity": 0, "confidence": 0.8}
	],
	"properties": [
		{"entity_id": "Q90", "key": "country", "value": "France"}
	],
	"links": [
		{"source_id": "Q90", "target_id": "Q142", "relation": "atlocation", "weight": 0.9}
	],
	"anchors": [
		{"anchor_id": 1, "label": "france", "category": "GEOGRAPHY"}
	],
	"entity_anchors": [
		{"entity_id": "Q90", "anchor_id": 1, "weight": 0.9}
	]
}`

func writeTestDataset(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dataset.json")
	require.NoError(t, os.WriteFile(path, []byte(testDataset), 0o644))
	return path
}

func newTestBackend(t *testing.T) store.Backend {
	t.Helper()
	backend := store.NewMemoryBackend()
	require.NoError(t, backend.Initialize("", false))
	t.Cleanup(func() { backend.Close() })
	return backend
}

func TestRunPipeline(t *testing.T) {
	t.Parallel()

	t.Run("LoadsDataset", func(t *testing.T) {
		t.Parallel()
		path := writeTestDataset(t)
		backend := newTestBackend(t)

		result, err := RunPipeline(context.Background(), path, backend, false, nil)
		require.NoError(t, err)
		assert.Equal(t, 2, result.Entities)
		assert.Equal(t, 1, result.Links)
		assert.Equal(t, 1, result.Anchors)
		assert.Equal(t, 0, result.Embeddings)

		profile, err := backend.Get(context.Background(), "Q90")
		require.NoError(t, err)
		require.NotNil(t, profile)
		assert.Equal(t, "Paris", profile.Entity.Label)
	})

	t.Run("BuildsEmbeddings", func(t *testing.T) {
		t.Parallel()
		path := writeTestDataset(t)
		backend := newTestBackend(t)

		result, err := RunPipeline(context.Background(), path, backend, true, nil)
		require.NoError(t, err)
		assert.Equal(t, 2, result.Embeddings)

		query := make([]float32, embeddings.EmbeddingDimension)
		for i := range query {
			query[i] = 1
		}
		matches, err := backend.VectorSearch(context.Background(), query, 10)
		require.NoError(t, err)
		assert.NotEmpty(t, matches)
	})

	t.Run("ReportsProgress", func(t *testing.T) {
		t.Parallel()
		path := writeTestDataset(t)
		backend := newTestBackend(t)

		phases := map[string]bool{}
		_, err := RunPipeline(context.Background(), path, backend, true, func(phase string, progress float64) {
			phases[phase] = true
		})
		require.NoError(t, err)
		assert.True(t, phases["Loading dataset"])
		assert.True(t, phases["Loading entities"])
		assert.True(t, phases["Building embeddings"])
	})

	t.Run("MissingFile", func(t *testing.T) {
		t.Parallel()
		backend := newTestBackend(t)

		_, err := RunPipeline(context.Background(), filepath.Join(t.TempDir(), "missing.json"), backend, false, nil)
		require.Error(t, err)
	})

	t.Run("InvalidDataset", func(t *testing.T) {
		t.Parallel()
		backend := newTestBackend(t)
		path := filepath.Join(t.TempDir(), "bad.json")
		bad := `{"entities": [{"id": "Q1", "label": "A"}, {"id": "Q1", "label": "B"}]}`
		require.NoError(t, os.WriteFile(path, []byte(bad), 0o644))

		_, err := RunPipeline(context.Background(), path, backend, false, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate id")
	})

	t.Run("ReimportReplaces", func(t *testing.T) {
		t.Parallel()
		path := writeTestDataset(t)
		backend := newTestBackend(t)

		_, err := RunPipeline(context.Background(), path, backend, false, nil)
		require.NoError(t, err)

		smaller := `{"entities": [{"id": "Q1", "label": "Universe"}]}`
		require.NoError(t, os.WriteFile(path, []byte(smaller), 0o644))

		result, err := RunPipeline(context.Background(), path, backend, false, nil)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Entities)

		assert.Equal(t, 1, backend.EntityCount())
	})
}
