package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDataset = `{
	"zero_states": [
		{"dimension": "SPATIAL", "zero_node": "Earth"}
	],
	"entities": [
		{"id": "Q90", "label": "Paris", "description": "Capital of France", "vital_level": 3, "pagerank": 0.9},
		{"id": "Q142", "label": "France", "description": "Country in Western Europe", "vital_level": 2, "pagerank": 0.95},
		{"id": "Q243", "label": "Eiffel Tower", "description": "Landmark in Paris", "vital_level": 4, "pagerank": 0.5}
	],
	"positions": [
		{"entity_id": "Q90", "dimension": "SPATIAL", "sign": 1, "depth": 3, "path": ["Earth", "Europe", "France", "Paris"], "zero_state": "Earth"},
		{"entity_id": "Q243", "dimension": "SPATIAL", "sign": 1, "depth": 4, "path": ["Earth", "Europe", "France", "Paris", "Eiffel Tower"], "zero_state": "Earth"}
	],
	"links": [
		{"source_id": "Q90", "target_id": "Q142", "relation": "located_in", "weight": 0.9},
		{"source_id": "Q243", "target_id": "Q90", "relation": "located_in", "weight": 0.9}
	],
	"anchors": [
		{"anchor_id": 1, "label": "france", "category": "GEOGRAPHY"}
	],
	"entity_anchors": [
		{"entity_id": "Q90", "anchor_id": 1, "weight": 0.9},
		{"entity_id": "Q142", "anchor_id": 1, "weight": 0.7}
	]
}`

// setupStore imports the test dataset into a fresh working directory.
func setupStore(t *testing.T, backend string) {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)

	datasetPath := filepath.Join(dir, "dataset.json")
	require.NoError(t, os.WriteFile(datasetPath, []byte(testDataset), 0o644))

	importCmd := &ImportCmd{Dataset: datasetPath, Backend: backend}
	require.NoError(t, importCmd.Run())
}

func TestImportAndStatus(t *testing.T) {
	setupStore(t, "badger")

	metaBytes, err := os.ReadFile(filepath.Join(dataDirName, "meta.json"))
	require.NoError(t, err)

	var meta storeMeta
	require.NoError(t, json.Unmarshal(metaBytes, &meta))
	assert.Equal(t, "badger", meta.Backend)
	require.NotNil(t, meta.Stats)
	assert.Equal(t, 3, meta.Stats.Entities)
	assert.Equal(t, 2, meta.Stats.Links)
	assert.Equal(t, 3, meta.Stats.Embeddings)

	statusCmd := &StatusCmd{}
	require.NoError(t, statusCmd.Run())
}

func TestImportSQLite(t *testing.T) {
	setupStore(t, "sqlite")

	assert.FileExists(t, filepath.Join(dataDirName, "graph.db"))

	lookupCmd := &LookupCmd{Entity: "Paris"}
	require.NoError(t, lookupCmd.Run())
}

func TestImportMissingDataset(t *testing.T) {
	t.Chdir(t.TempDir())
	importCmd := &ImportCmd{Dataset: "missing.json", Backend: "badger"}
	require.Error(t, importCmd.Run())
}

func TestCommandsWithoutStore(t *testing.T) {
	t.Chdir(t.TempDir())

	require.Error(t, (&VerifyCmd{Claims: []string{"Paris is in France"}}).Run())
	require.Error(t, (&LookupCmd{Entity: "Paris"}).Run())
	require.Error(t, (&StatusCmd{}).Run())
	require.Error(t, (&CleanCmd{Force: true}).Run())
}

func TestVerifyCmd(t *testing.T) {
	setupStore(t, "badger")

	verifyCmd := &VerifyCmd{Claims: []string{
		"The Eiffel Tower is in Paris",
		"Paris is located in France",
	}}
	require.NoError(t, verifyCmd.Run())

	jsonCmd := &VerifyCmd{Claims: []string{"Paris is located in France"}, JSON: true}
	require.NoError(t, jsonCmd.Run())

	batchPath := filepath.Join(t.TempDir(), "claims.txt")
	require.NoError(t, os.WriteFile(batchPath, []byte("Paris is located in France\n\nThe Eiffel Tower is in Paris\n"), 0o644))
	require.NoError(t, (&VerifyCmd{Batch: batchPath}).Run())

	require.Error(t, (&VerifyCmd{}).Run())
}

func TestReadCommands(t *testing.T) {
	setupStore(t, "badger")

	require.NoError(t, (&LookupCmd{Entity: "Q90"}).Run())
	require.NoError(t, (&LookupCmd{Entity: "Eiffel Tower"}).Run())
	require.NoError(t, (&LookupCmd{Entity: "Zorblax"}).Run())
	require.NoError(t, (&SearchCmd{Query: "paris", Limit: 10}).Run())
	require.NoError(t, (&SearchCmd{Query: "France", Limit: 10, Exact: true}).Run())
	require.NoError(t, (&RelatedCmd{Entity: "Paris", Direction: "both", Limit: 10}).Run())
	require.NoError(t, (&SpreadCmd{Entities: []string{"Paris"}, Threshold: 0.15, Depth: 2, Limit: 50}).Run())
	require.NoError(t, (&GroundCmd{Mentions: []string{"Paris"}, Context: []string{"France"}}).Run())
}

func TestCleanCmd(t *testing.T) {
	setupStore(t, "badger")

	cleanCmd := &CleanCmd{Force: true}
	require.NoError(t, cleanCmd.Run())
	assert.NoDirExists(t, dataDirName)

	require.Error(t, cleanCmd.Run())
}

func TestSetupCmd(t *testing.T) {
	t.Chdir(t.TempDir())

	setupCmd := &SetupCmd{Claude: true, Local: true}
	require.NoError(t, setupCmd.Run())

	configBytes, err := os.ReadFile(filepath.Join(".claude", "mcp.json"))
	require.NoError(t, err)

	var config map[string]any
	require.NoError(t, json.Unmarshal(configBytes, &config))
	servers := config["mcpServers"].(map[string]any)
	assert.Contains(t, servers, "verigraph")
}

func TestOpenBackendUnknown(t *testing.T) {
	t.Parallel()
	_, err := openBackend("bogus", t.TempDir(), false)
	require.Error(t, err)
}
