package spreading

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verigraph/verigraph/internal/entity"
	"github.com/verigraph/verigraph/internal/store"
)

// fixtureStore builds a small graph:
//
//	Q1 --located_in--> Q2 --part_of--> Q3 --part_of--> Q5
//	Q1 --related_to--> Q4
//	Q1 --related_to(0.3)--> Q6   (too weak to activate)
//	Q1 and Q10 share the GEOGRAPHY anchor "france"
func fixtureStore(t *testing.T) *store.MemoryBackend {
	t.Helper()

	ds := &store.Dataset{
		Entities: []store.EntityRecord{
			{ID: "Q1", Label: "Alpha"},
			{ID: "Q2", Label: "Beta"},
			{ID: "Q3", Label: "Gamma"},
			{ID: "Q4", Label: "Delta"},
			{ID: "Q5", Label: "Epsilon"},
			{ID: "Q6", Label: "Zeta"},
			{ID: "Q10", Label: "Chi"},
		},
		Links: []store.LinkRecord{
			{SourceID: "Q1", TargetID: "Q2", Relation: "located_in"},
			{SourceID: "Q2", TargetID: "Q3", Relation: "part_of"},
			{SourceID: "Q3", TargetID: "Q5", Relation: "part_of"},
			{SourceID: "Q1", TargetID: "Q4", Relation: "related_to"},
			{SourceID: "Q1", TargetID: "Q6", Relation: "related_to", Weight: 0.3},
		},
		Anchors: []store.AnchorRecord{
			{AnchorID: 1, Label: "france", Category: "GEOGRAPHY"},
		},
		EntityAnchors: []store.EntityAnchorRecord{
			{EntityID: "Q1", AnchorID: 1, Weight: 0.9},
			{EntityID: "Q10", AnchorID: 1, Weight: 0.8},
		},
	}

	b := store.NewMemoryBackend()
	require.NoError(t, b.Initialize("", false))
	require.NoError(t, b.BulkLoad(context.Background(), ds))
	return b
}

func resultByID(results []Result, id string) *Result {
	for i := range results {
		if results[i].Profile.Entity.ID == id {
			return &results[i]
		}
	}
	return nil
}

func TestSpread(t *testing.T) {
	t.Parallel()
	engine := NewDefault(fixtureStore(t))
	ctx := context.Background()

	results, err := engine.Spread(ctx, "Q1", 1.0)
	require.NoError(t, err)

	t.Run("SourceExcluded", func(t *testing.T) {
		assert.Nil(t, resultByID(results, "Q1"))
	})

	t.Run("DirectNeighborActivation", func(t *testing.T) {
		r := resultByID(results, "Q2")
		require.NotNil(t, r)
		// 1.0 * decay 0.7 * located_in 0.8 * edge 1.0
		assert.InDelta(t, 0.56, r.Activation, 1e-9)
		assert.Equal(t, []string{"Q1", "Q2"}, r.Path)
		assert.Equal(t, []string{"located_in"}, r.Relations)
	})

	t.Run("TwoHopActivation", func(t *testing.T) {
		r := resultByID(results, "Q3")
		require.NotNil(t, r)
		// 0.56 * decay 0.7 * part_of 0.9
		assert.InDelta(t, 0.3528, r.Activation, 1e-9)
		assert.Equal(t, []string{"Q1", "Q2", "Q3"}, r.Path)
	})

	t.Run("DepthLimitStopsExpansion", func(t *testing.T) {
		assert.Nil(t, resultByID(results, "Q5"))
	})

	t.Run("ThresholdPrunesWeakEdges", func(t *testing.T) {
		// 0.7 * related_to 0.5 * edge 0.3 = 0.105 < 0.15
		assert.Nil(t, resultByID(results, "Q6"))
	})

	t.Run("UnlistedRelationUsesDefaultWeight", func(t *testing.T) {
		r := resultByID(results, "Q4")
		require.NotNil(t, r)
		// 0.7 * related_to 0.5
		assert.InDelta(t, 0.35, r.Activation, 1e-9)
	})

	t.Run("AnchorLayerActivation", func(t *testing.T) {
		r := resultByID(results, "Q10")
		require.NotNil(t, r)
		// 1.0 * anchor decay 0.4 * anchor weight 0.9 * member weight 0.8
		assert.InDelta(t, 0.288, r.Activation, 1e-9)
		assert.Equal(t, []string{"anchor:france"}, r.Relations)
		assert.InDelta(t, 0.288, r.BankActivations[BankSpatial], 1e-9)
		assert.Zero(t, r.BankActivations[BankTemporal])
	})

	t.Run("SortedByActivation", func(t *testing.T) {
		for i := 1; i < len(results); i++ {
			assert.GreaterOrEqual(t, results[i-1].Activation, results[i].Activation)
		}
	})
}

func TestSpreadFollowsOutgoingOnly(t *testing.T) {
	t.Parallel()
	engine := NewDefault(fixtureStore(t))

	// Q2's only inbound edge is Q1 --located_in--> Q2. Activation flows
	// with the link direction, so spreading from Q2 reaches Q3 but never
	// walks back to Q1.
	results, err := engine.Spread(context.Background(), "Q2", 1.0)
	require.NoError(t, err)

	assert.Nil(t, resultByID(results, "Q1"))
	r := resultByID(results, "Q3")
	require.NotNil(t, r)
	assert.InDelta(t, 0.63, r.Activation, 1e-9)
}

func TestSpreadAnchorsDisabled(t *testing.T) {
	t.Parallel()
	cfg := DefaultConfig()
	cfg.UseAnchors = false
	engine := New(fixtureStore(t), cfg)

	results, err := engine.Spread(context.Background(), "Q1", 1.0)
	require.NoError(t, err)
	assert.Nil(t, resultByID(results, "Q10"))
	assert.NotNil(t, resultByID(results, "Q2"))
}

func TestSpreadDeterministic(t *testing.T) {
	t.Parallel()
	engine := NewDefault(fixtureStore(t))
	ctx := context.Background()

	first, err := engine.Spread(ctx, "Q1", 1.0)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := engine.Spread(ctx, "Q1", 1.0)
		require.NoError(t, err)
		require.Equal(t, len(first), len(again))
		for j := range first {
			assert.Equal(t, first[j].Profile.Entity.ID, again[j].Profile.Entity.ID)
			assert.Equal(t, first[j].Path, again[j].Path)
		}
	}
}

func TestSpreadMultiple(t *testing.T) {
	t.Parallel()
	engine := NewDefault(fixtureStore(t))

	results, err := engine.SpreadMultiple(context.Background(), map[string]float64{
		"Q1": 1.0,
		"Q3": 1.0,
	})
	require.NoError(t, err)

	assert.Nil(t, resultByID(results, "Q1"))
	assert.Nil(t, resultByID(results, "Q3"))

	// Q3 only links outward to Q5, so Q2 activates solely through the
	// Q1 path: 1.0 * 0.7 * located_in 0.8 = 0.56.
	r := resultByID(results, "Q2")
	require.NotNil(t, r)
	assert.InDelta(t, 0.56, r.Activation, 1e-9)
	assert.Equal(t, []string{"Q1", "Q2"}, r.Path)
}

func TestContextEntities(t *testing.T) {
	t.Parallel()
	engine := NewDefault(fixtureStore(t))

	profiles, err := engine.ContextEntities(context.Background(), []string{"Q1"}, 0.3)
	require.NoError(t, err)

	ids := make([]string, len(profiles))
	for i, p := range profiles {
		ids[i] = p.Entity.ID
	}
	// Q10 activates at 0.288, below the 0.3 threshold.
	assert.Equal(t, []string{"Q2", "Q3", "Q4"}, ids)
}

func TestAnchorNeighbors(t *testing.T) {
	t.Parallel()
	engine := NewDefault(fixtureStore(t))
	ctx := context.Background()

	t.Run("SharedAnchor", func(t *testing.T) {
		neighbors, err := engine.AnchorNeighbors(ctx, "Q1", "", 10)
		require.NoError(t, err)
		require.Len(t, neighbors, 1)
		assert.Equal(t, "Q10", neighbors[0].Profile.Entity.ID)
		assert.Equal(t, "france", neighbors[0].AnchorLabel)
		// anchor weight 0.9 * member weight 0.8
		assert.InDelta(t, 0.72, neighbors[0].Activation, 1e-9)
	})

	t.Run("CategoryFilter", func(t *testing.T) {
		neighbors, err := engine.AnchorNeighbors(ctx, "Q1", entity.AnchorHistory, 10)
		require.NoError(t, err)
		assert.Empty(t, neighbors)
	})

	t.Run("NoAnchors", func(t *testing.T) {
		neighbors, err := engine.AnchorNeighbors(ctx, "Q2", "", 10)
		require.NoError(t, err)
		assert.Empty(t, neighbors)
	})
}
