// Package store provides the knowledge-store backends for Verigraph.
//
// It defines the Backend interface that all storage implementations must
// satisfy, along with common types used across backends. The knowledge base
// is read-only once loaded: the only write paths are BulkLoad (dataset
// import) and StoreEmbeddings (import-time vector generation).
package store

import (
	"context"

	"github.com/verigraph/verigraph/internal/entity"
)

// Direction selects which link direction a relation query follows.
type Direction string

const (
	DirectionOutgoing Direction = "outgoing"
	DirectionIncoming Direction = "incoming"
	DirectionBoth     Direction = "both"
)

// Related is one typed relation edge resolved to a full profile.
//
// For incoming edges the relation label is surfaced as "inverse_<relation>";
// no symmetric edge is stored.
type Related struct {
	// Profile is the entity on the far end of the edge.
	Profile *entity.Profile

	// Relation is the relation label.
	Relation string

	// Weight is the edge weight (>= 0).
	Weight float64
}

// AnchorMember is one entity attached to an anchor.
type AnchorMember struct {
	// EntityID is the attached entity.
	EntityID string

	// Weight is the entity-anchor edge weight (>= 0).
	Weight float64
}

// SearchResult represents a ranked search hit from FTS or vector search.
type SearchResult struct {
	// EntityID is the ID of the matching entity.
	EntityID string

	// Score is the relevance score (higher is better).
	Score float64

	// Label is the entity label.
	Label string

	// Description is the entity description, when present.
	Description string
}

// HybridSearchResult represents a hit from RRF-fused hybrid search.
type HybridSearchResult struct {
	// EntityID is the ID of the matching entity.
	EntityID string

	// Score is the RRF fused score (higher is better).
	Score float64

	// Label is the entity label.
	Label string

	// Description is the entity description, when present.
	Description string
}

// EntityEmbedding represents a vector embedding for an entity.
type EntityEmbedding struct {
	// EntityID is the ID of the entity.
	EntityID string

	// Embedding is the vector embedding.
	Embedding []float32
}

// Backend defines the interface for knowledge-store implementations.
//
// Implementations must be safe for concurrent readers. Lookup methods return
// nil (not an error) when an entity is absent; the only fatal condition is a
// backing store that cannot be opened at Initialize time.
type Backend interface {
	// Lifecycle

	// Initialize opens or creates the store at the given path.
	// If readOnly is true, the backend is opened in read-only mode and an
	// absent store is an error.
	Initialize(path string, readOnly bool) error

	// Close releases all resources held by the backend.
	Close() error

	// Import

	// BulkLoad replaces the entire store with the contents of the dataset.
	BulkLoad(ctx context.Context, ds *Dataset) error

	// StoreEmbeddings persists entity embeddings.
	StoreEmbeddings(ctx context.Context, embeddings []EntityEmbedding) error

	// Lookups

	// Get returns the full profile for an entity ID, or nil if not found.
	Get(ctx context.Context, id string) (*entity.Profile, error)

	// Search finds entities whose label contains text (case-insensitive),
	// ranked by importance. minVital > 0 restricts results to entities with
	// a vital level at or above that importance (numerically <= minVital).
	Search(ctx context.Context, text string, limit, minVital int) ([]*entity.Profile, error)

	// SearchExact finds entities whose label equals text case-insensitively,
	// ranked by importance.
	SearchExact(ctx context.Context, text string, limit int) ([]*entity.Profile, error)

	// Relations

	// GetRelated returns entities linked to the given one. relation filters
	// by relation label when non-empty.
	GetRelated(ctx context.Context, id, relation string, dir Direction, limit int) ([]Related, error)

	// Anchor layer

	// GetAnchors returns the anchors attached to an entity, strongest first.
	GetAnchors(ctx context.Context, id string) ([]entity.AnchorEdge, error)

	// GetAnchorMembers returns the entities attached to an anchor,
	// strongest first.
	GetAnchorMembers(ctx context.Context, anchorID int64, limit int) ([]AnchorMember, error)

	// Search indexes

	// FTSSearch performs token-overlap full-text search over labels and
	// descriptions.
	FTSSearch(ctx context.Context, query string, limit int) ([]SearchResult, error)

	// VectorSearch finds entities closest to the given vector.
	VectorSearch(ctx context.Context, vector []float32, limit int) ([]SearchResult, error)

	// HybridSearch combines FTS and vector search using RRF.
	HybridSearch(ctx context.Context, query string, queryVector []float32, limit int) ([]HybridSearchResult, error)

	// Stats

	// EntityCount returns the number of entities in the store.
	EntityCount() int

	// LinkCount returns the number of entity links in the store.
	LinkCount() int
}
