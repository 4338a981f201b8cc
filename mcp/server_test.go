package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verigraph/verigraph/internal/store"
)

func testBackend(t *testing.T) *store.MemoryBackend {
	t.Helper()
	backend := store.NewMemoryBackend()
	require.NoError(t, backend.Initialize("", false))
	t.Cleanup(func() { backend.Close() })

	ds := &store.Dataset{
		ZeroStates: []store.ZeroStateRecord{
			{Dimension: "SPATIAL", ZeroNode: "Earth"},
		},
		Entities: []store.EntityRecord{
			{ID: "Q90", Label: "Paris", Description: "Capital of France", VitalLevel: 3, PageRank: 0.9},
			{ID: "Q142", Label: "France", Description: "Country in Western Europe", VitalLevel: 2, PageRank: 0.95},
			{ID: "Q243", Label: "Eiffel Tower", Description: "Landmark in Paris", VitalLevel: 4, PageRank: 0.5},
		},
		Positions: []store.PositionRecord{
			{EntityID: "Q90", Dimension: "SPATIAL", Sign: 1, Depth: 3, Path: []string{"Earth", "Europe", "France", "Paris"}, ZeroState: "Earth"},
			{EntityID: "Q243", Dimension: "SPATIAL", Sign: 1, Depth: 4, Path: []string{"Earth", "Europe", "France", "Paris", "Eiffel Tower"}, ZeroState: "Earth"},
		},
		Properties: []store.PropertyRecord{
			{EntityID: "Q90", Key: "country", Value: "France"},
		},
		Links: []store.LinkRecord{
			{SourceID: "Q90", TargetID: "Q142", Relation: "located_in", Weight: 0.9},
			{SourceID: "Q243", TargetID: "Q90", Relation: "located_in", Weight: 0.9},
		},
		Anchors: []store.AnchorRecord{
			{AnchorID: 1, Label: "france", Category: "GEOGRAPHY"},
		},
		EntityAnchors: []store.EntityAnchorRecord{
			{EntityID: "Q90", AnchorID: 1, Weight: 0.9},
			{EntityID: "Q142", AnchorID: 1, Weight: 0.7},
		},
	}
	require.NoError(t, backend.BulkLoad(context.Background(), ds))
	return backend
}

func TestListTools(t *testing.T) {
	t.Parallel()
	server := NewServer(testBackend(t))

	tools := server.ListTools()
	require.Len(t, tools, 5)

	names := make([]string, len(tools))
	for i, tool := range tools {
		names[i] = tool.Name
		assert.NotEmpty(t, tool.Description)
		require.NotNil(t, tool.InputSchema)
		assert.Equal(t, "object", tool.InputSchema.Type)
	}
	assert.Equal(t, []string{"verify_claim", "lookup_entity", "search_entities", "related_entities", "spread_activation"}, names)
}

func TestListResources(t *testing.T) {
	t.Parallel()
	server := NewServer(testBackend(t))

	resources := server.ListResources()
	require.Len(t, resources, 2)
	assert.Equal(t, "verigraph://overview", resources[0].URI)
	assert.Equal(t, "verigraph://schema", resources[1].URI)
}

func TestCallTool(t *testing.T) {
	t.Parallel()
	server := NewServer(testBackend(t))
	ctx := context.Background()

	t.Run("VerifyClaim", func(t *testing.T) {
		t.Parallel()
		out, err := server.CallTool(ctx, "verify_claim", map[string]any{
			"claim": "The Eiffel Tower is in Paris",
		})
		require.NoError(t, err)
		assert.Contains(t, out, "Status: supported")
		assert.Contains(t, out, "Confidence: 0.95")
	})

	t.Run("VerifyClaimMissing", func(t *testing.T) {
		t.Parallel()
		out, err := server.CallTool(ctx, "verify_claim", map[string]any{})
		require.NoError(t, err)
		assert.Equal(t, "No claim provided", out)
	})

	t.Run("LookupByID", func(t *testing.T) {
		t.Parallel()
		out, err := server.CallTool(ctx, "lookup_entity", map[string]any{"entity": "Q90"})
		require.NoError(t, err)
		assert.Contains(t, out, "Paris (Q90)")
		assert.Contains(t, out, "Earth > Europe > France > Paris")
		assert.Contains(t, out, "country: France")
		assert.Contains(t, out, "france (GEOGRAPHY")
	})

	t.Run("LookupByName", func(t *testing.T) {
		t.Parallel()
		out, err := server.CallTool(ctx, "lookup_entity", map[string]any{"entity": "Eiffel Tower"})
		require.NoError(t, err)
		assert.Contains(t, out, "Eiffel Tower (Q243)")
	})

	t.Run("LookupUnknown", func(t *testing.T) {
		t.Parallel()
		out, err := server.CallTool(ctx, "lookup_entity", map[string]any{"entity": "Zorblax"})
		require.NoError(t, err)
		assert.Contains(t, out, "not found")
	})

	t.Run("Search", func(t *testing.T) {
		t.Parallel()
		out, err := server.CallTool(ctx, "search_entities", map[string]any{"query": "capital france"})
		require.NoError(t, err)
		assert.Contains(t, out, "Paris")
	})

	t.Run("Related", func(t *testing.T) {
		t.Parallel()
		out, err := server.CallTool(ctx, "related_entities", map[string]any{"entity": "Paris"})
		require.NoError(t, err)
		assert.Contains(t, out, "located_in")
		assert.Contains(t, out, "France")
		assert.Contains(t, out, "inverse_located_in")
	})

	t.Run("Spread", func(t *testing.T) {
		t.Parallel()
		out, err := server.CallTool(ctx, "spread_activation", map[string]any{"entity": "Paris"})
		require.NoError(t, err)
		assert.Contains(t, out, "Spreading activation from Paris")
		assert.Contains(t, out, "France")
		assert.Contains(t, out, "Semantic Banks")
	})

	t.Run("UnknownTool", func(t *testing.T) {
		t.Parallel()
		_, err := server.CallTool(ctx, "bogus_tool", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown tool")
	})
}

func TestReadResource(t *testing.T) {
	t.Parallel()
	server := NewServer(testBackend(t))
	ctx := context.Background()

	t.Run("Overview", func(t *testing.T) {
		t.Parallel()
		out, err := server.ReadResource(ctx, "verigraph://overview")
		require.NoError(t, err)
		assert.Contains(t, out, "**Entities:** 3")
		assert.Contains(t, out, "**Links:** 2")
	})

	t.Run("Schema", func(t *testing.T) {
		t.Parallel()
		out, err := server.ReadResource(ctx, "verigraph://schema")
		require.NoError(t, err)
		assert.Contains(t, out, "Dimension Position")
		assert.Contains(t, out, "inverse_<relation>")
	})

	t.Run("Unknown", func(t *testing.T) {
		t.Parallel()
		_, err := server.ReadResource(ctx, "verigraph://bogus")
		require.Error(t, err)
	})
}

func TestRunStdio(t *testing.T) {
	t.Parallel()
	server := NewServer(testBackend(t))

	input := strings.Join([]string{
		`{"jsonrpc":"2.0","id":1,"method":"initialize"}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
		`{"jsonrpc":"2.0","id":3,"method":"tools/call","params":{"name":"lookup_entity","arguments":{"entity":"Q90"}}}`,
		`{"jsonrpc":"2.0","id":4,"method":"nope"}`,
	}, "\n") + "\n"

	var out bytes.Buffer
	err := server.Run(context.Background(), strings.NewReader(input), &out)
	require.NoError(t, err)

	scanner := bufio.NewScanner(&out)
	var responses []map[string]any
	for scanner.Scan() {
		var resp map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &resp))
		responses = append(responses, resp)
	}
	require.Len(t, responses, 4)

	init := responses[0]["result"].(map[string]any)
	assert.Equal(t, "2024-11-05", init["protocolVersion"])

	tools := responses[1]["result"].(map[string]any)["tools"].([]any)
	assert.Len(t, tools, 5)

	call := responses[2]["result"].(map[string]any)["content"].([]any)[0].(map[string]any)
	assert.Contains(t, call["text"], "Paris (Q90)")

	assert.NotNil(t, responses[3]["error"])
}

func TestRunNilStreams(t *testing.T) {
	t.Parallel()
	server := NewServer(testBackend(t))
	require.Error(t, server.Run(context.Background(), nil, nil))
}
