package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixtureDataset builds a small geography dataset shared by backend tests.
func fixtureDataset() *Dataset {
	return &Dataset{
		ZeroStates: []ZeroStateRecord{
			{Dimension: "SPATIAL", ZeroNode: "Earth"},
			{Dimension: "TAXONOMIC", ZeroNode: "Entity"},
		},
		Entities: []EntityRecord{
			{ID: "Q90", Title: "Paris", Label: "Paris", Description: "capital of France", VitalLevel: 3, PageRank: 0.9},
			{ID: "Q142", Title: "France", Label: "France", Description: "country in Europe", VitalLevel: 2, PageRank: 0.95},
			{ID: "Q243", Title: "Eiffel Tower", Label: "Eiffel Tower", Description: "tower in Paris", VitalLevel: 4, PageRank: 0.5},
			{ID: "Q830149", Title: "Paris, Texas", Label: "Paris", Description: "city in Texas", PageRank: 0.1},
		},
		Positions: []PositionRecord{
			{EntityID: "Q90", Dimension: "SPATIAL", Sign: 1, Depth: 3, Path: []string{"Earth", "Europe", "France", "Paris"}, ZeroState: "Earth"},
			{EntityID: "Q142", Dimension: "SPATIAL", Sign: 1, Depth: 2, Path: []string{"Earth", "Europe", "France"}, ZeroState: "Earth"},
		},
		EPA: []EPARecord{
			{EntityID: "Q90", Evaluation: 1, Potency: 0, Activity: 0, Confidence: 0.8},
		},
		Properties: []PropertyRecord{
			{EntityID: "Q90", Key: "country", Value: "France"},
		},
		Links: []LinkRecord{
			{SourceID: "Q90", TargetID: "Q142", Relation: "atlocation", Weight: 0.9},
			{SourceID: "Q243", TargetID: "Q90", Relation: "atlocation"},
		},
		Anchors: []AnchorRecord{
			{AnchorID: 1, Label: "france", Category: "GEOGRAPHY"},
			{AnchorID: 2, Label: "landmarks", Category: "KNOWN_FOR"},
		},
		EntityAnchors: []EntityAnchorRecord{
			{EntityID: "Q90", AnchorID: 1, Weight: 0.9},
			{EntityID: "Q142", AnchorID: 1, Weight: 0.7},
			{EntityID: "Q243", AnchorID: 2, Weight: 0.8},
			{EntityID: "Q243", AnchorID: 1, Weight: 0.3},
		},
	}
}

func loadedMemoryBackend(t *testing.T) *MemoryBackend {
	t.Helper()
	b := NewMemoryBackend()
	require.NoError(t, b.Initialize("", false))
	require.NoError(t, b.BulkLoad(context.Background(), fixtureDataset()))
	return b
}

func TestMemoryBackendGet(t *testing.T) {
	t.Parallel()
	b := loadedMemoryBackend(t)
	ctx := context.Background()

	t.Run("ExistingEntity", func(t *testing.T) {
		p, err := b.Get(ctx, "Q90")
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.Equal(t, "Paris", p.Entity.Label)
		assert.Equal(t, "France", p.Properties["country"])
		require.NotNil(t, p.Position("SPATIAL"))
		assert.Equal(t, 3, p.Position("SPATIAL").Depth)
		assert.EqualValues(t, 1, p.EPA.Evaluation)
	})

	t.Run("MissingEntity", func(t *testing.T) {
		p, err := b.Get(ctx, "Q999")
		require.NoError(t, err)
		assert.Nil(t, p)
	})

	t.Run("DefaultEPA", func(t *testing.T) {
		p, err := b.Get(ctx, "Q142")
		require.NoError(t, err)
		require.NotNil(t, p)
		assert.EqualValues(t, 0, p.EPA.Evaluation)
		assert.Zero(t, p.EPA.Confidence)
	})
}

func TestMemoryBackendSearch(t *testing.T) {
	t.Parallel()
	b := loadedMemoryBackend(t)
	ctx := context.Background()

	t.Run("SubstringMatch", func(t *testing.T) {
		results, err := b.Search(ctx, "pari", 10, 0)
		require.NoError(t, err)
		require.Len(t, results, 2)
		// Higher pagerank first.
		assert.Equal(t, "Q90", results[0].Entity.ID)
		assert.Equal(t, "Q830149", results[1].Entity.ID)
	})

	t.Run("VitalFilterExcludesUnranked", func(t *testing.T) {
		results, err := b.Search(ctx, "paris", 10, 3)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "Q90", results[0].Entity.ID)
	})

	t.Run("ExactMatch", func(t *testing.T) {
		results, err := b.SearchExact(ctx, "paris", 10)
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, "Q90", results[0].Entity.ID)
	})

	t.Run("ExactDoesNotMatchSubstring", func(t *testing.T) {
		results, err := b.SearchExact(ctx, "eiffel", 10)
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("LimitApplied", func(t *testing.T) {
		results, err := b.Search(ctx, "paris", 1, 0)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "Q90", results[0].Entity.ID)
	})
}

func TestMemoryBackendGetRelated(t *testing.T) {
	t.Parallel()
	b := loadedMemoryBackend(t)
	ctx := context.Background()

	t.Run("Outgoing", func(t *testing.T) {
		results, err := b.GetRelated(ctx, "Q90", "", DirectionOutgoing, 10)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "Q142", results[0].Profile.Entity.ID)
		assert.Equal(t, "atlocation", results[0].Relation)
		assert.Equal(t, 0.9, results[0].Weight)
	})

	t.Run("IncomingSurfacedAsInverse", func(t *testing.T) {
		results, err := b.GetRelated(ctx, "Q90", "", DirectionIncoming, 10)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "Q243", results[0].Profile.Entity.ID)
		assert.Equal(t, "inverse_atlocation", results[0].Relation)
		// Omitted weight defaults to 1.0.
		assert.Equal(t, 1.0, results[0].Weight)
	})

	t.Run("BothDirections", func(t *testing.T) {
		results, err := b.GetRelated(ctx, "Q90", "", DirectionBoth, 10)
		require.NoError(t, err)
		assert.Len(t, results, 2)
	})

	t.Run("RelationFilter", func(t *testing.T) {
		results, err := b.GetRelated(ctx, "Q90", "partof", DirectionBoth, 10)
		require.NoError(t, err)
		assert.Empty(t, results)
	})
}

func TestMemoryBackendAnchors(t *testing.T) {
	t.Parallel()
	b := loadedMemoryBackend(t)
	ctx := context.Background()

	t.Run("EdgesStrongestFirst", func(t *testing.T) {
		edges, err := b.GetAnchors(ctx, "Q243")
		require.NoError(t, err)
		require.Len(t, edges, 2)
		assert.Equal(t, "landmarks", edges[0].Anchor.Label)
		assert.Equal(t, "france", edges[1].Anchor.Label)
	})

	t.Run("MembersStrongestFirst", func(t *testing.T) {
		members, err := b.GetAnchorMembers(ctx, 1, 10)
		require.NoError(t, err)
		require.Len(t, members, 3)
		assert.Equal(t, "Q90", members[0].EntityID)
		assert.Equal(t, "Q142", members[1].EntityID)
		assert.Equal(t, "Q243", members[2].EntityID)
	})

	t.Run("MemberLimit", func(t *testing.T) {
		members, err := b.GetAnchorMembers(ctx, 1, 1)
		require.NoError(t, err)
		require.Len(t, members, 1)
		assert.Equal(t, "Q90", members[0].EntityID)
	})

	t.Run("NoAnchors", func(t *testing.T) {
		edges, err := b.GetAnchors(ctx, "Q999")
		require.NoError(t, err)
		assert.Empty(t, edges)
	})
}

func TestMemoryBackendFTSSearch(t *testing.T) {
	t.Parallel()
	b := loadedMemoryBackend(t)
	ctx := context.Background()

	results, err := b.FTSSearch(ctx, "tower paris", 10)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	// Eiffel Tower matches both tokens via label and description.
	assert.Equal(t, "Q243", results[0].EntityID)
	assert.Equal(t, 2.0, results[0].Score)
}

func TestMemoryBackendVectorSearch(t *testing.T) {
	t.Parallel()
	b := loadedMemoryBackend(t)
	ctx := context.Background()

	err := b.StoreEmbeddings(ctx, []EntityEmbedding{
		{EntityID: "Q90", Embedding: []float32{1, 0, 0}},
		{EntityID: "Q142", Embedding: []float32{0.5, 0.5, 0}},
		{EntityID: "Q84", Embedding: []float32{0, 0, 1}},
	})
	require.NoError(t, err)

	results, err := b.VectorSearch(ctx, []float32{1, 0, 0}, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "Q90", results[0].EntityID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
	assert.Equal(t, "Q142", results[1].EntityID)
}

func TestMemoryBackendCounts(t *testing.T) {
	t.Parallel()
	b := loadedMemoryBackend(t)

	assert.Equal(t, 4, b.EntityCount())
	assert.Equal(t, 2, b.LinkCount())
}

func TestMemoryBackendReloadReplaces(t *testing.T) {
	t.Parallel()
	b := loadedMemoryBackend(t)
	ctx := context.Background()

	ds := &Dataset{
		Entities: []EntityRecord{{ID: "Q1", Label: "Universe"}},
	}
	require.NoError(t, b.BulkLoad(ctx, ds))

	assert.Equal(t, 1, b.EntityCount())
	p, err := b.Get(ctx, "Q90")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestMemoryBackendBulkLoadSkipsOrphanRecords(t *testing.T) {
	t.Parallel()
	b := NewMemoryBackend()
	require.NoError(t, b.Initialize("", false))
	ctx := context.Background()

	// Positions, EPA, and properties referencing unknown entities are
	// dropped instead of crashing the load.
	ds := &Dataset{
		Entities: []EntityRecord{{ID: "Q90", Label: "Paris"}},
		Positions: []PositionRecord{
			{EntityID: "Q404", Dimension: "SPATIAL", Sign: 1, Depth: 1, Path: []string{"Earth", "Nowhere"}, ZeroState: "Earth"},
		},
		EPA:        []EPARecord{{EntityID: "Q404", Evaluation: 1}},
		Properties: []PropertyRecord{{EntityID: "Q404", Key: "country", Value: "France"}},
	}
	require.NoError(t, b.BulkLoad(ctx, ds))

	assert.Equal(t, 1, b.EntityCount())
	p, err := b.Get(ctx, "Q90")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Empty(t, p.Positions)
}
