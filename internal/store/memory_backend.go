package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/verigraph/verigraph/internal/entity"
)

// MemoryBackend is an in-memory implementation of Backend, used for tests
// and small ad hoc datasets.
type MemoryBackend struct {
	mu          sync.RWMutex
	profiles    map[string]*entity.Profile
	outgoing    map[string][]entity.Link
	incoming    map[string][]entity.Link
	anchors     map[int64]entity.Anchor
	byEntity    map[string][]entity.AnchorEdge
	byAnchor    map[int64][]AnchorMember
	embeddings  map[string][]float32
	linkCount   int
	initialized bool
}

// NewMemoryBackend creates a new in-memory store backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		profiles:   make(map[string]*entity.Profile),
		outgoing:   make(map[string][]entity.Link),
		incoming:   make(map[string][]entity.Link),
		anchors:    make(map[int64]entity.Anchor),
		byEntity:   make(map[string][]entity.AnchorEdge),
		byAnchor:   make(map[int64][]AnchorMember),
		embeddings: make(map[string][]float32),
	}
}

// Initialize implements Backend. The path is ignored.
func (m *MemoryBackend) Initialize(path string, readOnly bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initialized = true
	return nil
}

// Close implements Backend.
func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles = nil
	m.outgoing = nil
	m.incoming = nil
	m.anchors = nil
	m.byEntity = nil
	m.byAnchor = nil
	m.embeddings = nil
	m.initialized = false
	return nil
}

// BulkLoad implements Backend.
func (m *MemoryBackend) BulkLoad(ctx context.Context, ds *Dataset) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.profiles = make(map[string]*entity.Profile, len(ds.Entities))
	m.outgoing = make(map[string][]entity.Link)
	m.incoming = make(map[string][]entity.Link)
	m.anchors = make(map[int64]entity.Anchor, len(ds.Anchors))
	m.byEntity = make(map[string][]entity.AnchorEdge)
	m.byAnchor = make(map[int64][]AnchorMember)
	m.linkCount = 0

	for _, rec := range ds.Entities {
		m.profiles[rec.ID] = &entity.Profile{
			Entity: entity.Entity{
				ID:          rec.ID,
				Title:       rec.Title,
				Label:       rec.Label,
				Description: rec.Description,
				VitalLevel:  rec.VitalLevel,
				PageRank:    rec.PageRank,
			},
			EPA:        entity.NeutralEPA(),
			Properties: make(map[string]string),
		}
	}

	for _, rec := range ds.Positions {
		pos, err := rec.Position()
		if err != nil {
			return fmt.Errorf("loading position for %s: %w", rec.EntityID, err)
		}
		p := m.profiles[rec.EntityID]
		if p == nil {
			continue
		}
		p.Positions = append(p.Positions, pos)
	}

	for _, rec := range ds.EPA {
		p := m.profiles[rec.EntityID]
		if p == nil {
			continue
		}
		p.EPA = entity.EPAValues{
			Evaluation: entity.Ternary(rec.Evaluation),
			Potency:    entity.Ternary(rec.Potency),
			Activity:   entity.Ternary(rec.Activity),
			Confidence: rec.Confidence,
		}
	}

	for _, rec := range ds.Properties {
		if p := m.profiles[rec.EntityID]; p != nil {
			p.Properties[rec.Key] = rec.Value
		}
	}

	for _, rec := range ds.Links {
		link := entity.Link{
			SourceID: rec.SourceID,
			TargetID: rec.TargetID,
			Relation: rec.Relation,
			Weight:   defaultWeight(rec.Weight),
		}
		m.outgoing[link.SourceID] = append(m.outgoing[link.SourceID], link)
		m.incoming[link.TargetID] = append(m.incoming[link.TargetID], link)
		m.linkCount++
	}

	for _, rec := range ds.Anchors {
		m.anchors[rec.AnchorID] = entity.Anchor{
			ID:       rec.AnchorID,
			Label:    rec.Label,
			Category: entity.AnchorCategory(rec.Category),
		}
	}

	for _, rec := range ds.EntityAnchors {
		anchor, ok := m.anchors[rec.AnchorID]
		if !ok {
			continue
		}
		weight := defaultWeight(rec.Weight)
		m.byEntity[rec.EntityID] = append(m.byEntity[rec.EntityID], entity.AnchorEdge{
			Anchor: anchor,
			Weight: weight,
		})
		m.byAnchor[rec.AnchorID] = append(m.byAnchor[rec.AnchorID], AnchorMember{
			EntityID: rec.EntityID,
			Weight:   weight,
		})
	}

	// Strongest-first ordering, stable across runs.
	for id := range m.byEntity {
		edges := m.byEntity[id]
		sort.SliceStable(edges, func(i, j int) bool {
			if edges[i].Weight != edges[j].Weight {
				return edges[i].Weight > edges[j].Weight
			}
			return edges[i].Anchor.Label < edges[j].Anchor.Label
		})
	}
	for id := range m.byAnchor {
		members := m.byAnchor[id]
		sort.SliceStable(members, func(i, j int) bool {
			if members[i].Weight != members[j].Weight {
				return members[i].Weight > members[j].Weight
			}
			return members[i].EntityID < members[j].EntityID
		})
	}

	m.initialized = true
	return nil
}

// StoreEmbeddings implements Backend.
func (m *MemoryBackend) StoreEmbeddings(ctx context.Context, embeddings []EntityEmbedding) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, emb := range embeddings {
		m.embeddings[emb.EntityID] = emb.Embedding
	}
	return nil
}

// Get implements Backend.
func (m *MemoryBackend) Get(ctx context.Context, id string) (*entity.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.profiles[id], nil
}

// Search implements Backend.
func (m *MemoryBackend) Search(ctx context.Context, text string, limit, minVital int) ([]*entity.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	needle := strings.ToLower(text)
	var matches []*entity.Profile
	for _, p := range m.profiles {
		if !strings.Contains(strings.ToLower(p.Entity.Label), needle) {
			continue
		}
		if minVital > 0 && (p.Entity.VitalLevel == 0 || p.Entity.VitalLevel > minVital) {
			continue
		}
		matches = append(matches, p)
	}

	sortByImportance(matches)
	return truncateProfiles(matches, limit), nil
}

// SearchExact implements Backend.
func (m *MemoryBackend) SearchExact(ctx context.Context, text string, limit int) ([]*entity.Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matches []*entity.Profile
	for _, p := range m.profiles {
		if strings.EqualFold(p.Entity.Label, text) {
			matches = append(matches, p)
		}
	}

	sortByImportance(matches)
	return truncateProfiles(matches, limit), nil
}

// GetRelated implements Backend.
func (m *MemoryBackend) GetRelated(ctx context.Context, id, relation string, dir Direction, limit int) ([]Related, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var results []Related

	if dir == DirectionOutgoing || dir == DirectionBoth {
		for _, link := range m.outgoing[id] {
			if relation != "" && link.Relation != relation {
				continue
			}
			if p := m.profiles[link.TargetID]; p != nil {
				results = append(results, Related{Profile: p, Relation: link.Relation, Weight: link.Weight})
			}
		}
	}

	if dir == DirectionIncoming || dir == DirectionBoth {
		for _, link := range m.incoming[id] {
			if relation != "" && link.Relation != relation {
				continue
			}
			if p := m.profiles[link.SourceID]; p != nil {
				results = append(results, Related{Profile: p, Relation: "inverse_" + link.Relation, Weight: link.Weight})
			}
		}
	}

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// GetAnchors implements Backend.
func (m *MemoryBackend) GetAnchors(ctx context.Context, id string) ([]entity.AnchorEdge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	edges := m.byEntity[id]
	out := make([]entity.AnchorEdge, len(edges))
	copy(out, edges)
	return out, nil
}

// GetAnchorMembers implements Backend.
func (m *MemoryBackend) GetAnchorMembers(ctx context.Context, anchorID int64, limit int) ([]AnchorMember, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	members := m.byAnchor[anchorID]
	if limit > 0 && len(members) > limit {
		members = members[:limit]
	}
	out := make([]AnchorMember, len(members))
	copy(out, members)
	return out, nil
}

// FTSSearch implements Backend.
func (m *MemoryBackend) FTSSearch(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	queryTokens := tokenizeLabel(query)
	if len(queryTokens) == 0 {
		return []SearchResult{}, nil
	}

	var results []SearchResult
	for _, p := range m.profiles {
		tokens := make(map[string]bool)
		for _, t := range tokenizeLabel(p.Entity.Label + " " + p.Entity.Description) {
			tokens[t] = true
		}

		score := 0
		for _, t := range queryTokens {
			if tokens[t] {
				score++
			}
		}
		if score == 0 {
			continue
		}

		results = append(results, SearchResult{
			EntityID:    p.Entity.ID,
			Score:       float64(score),
			Label:       p.Entity.Label,
			Description: p.Entity.Description,
		})
	}

	sortSearchResults(results)
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// VectorSearch implements Backend.
func (m *MemoryBackend) VectorSearch(ctx context.Context, vector []float32, limit int) ([]SearchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var results []SearchResult
	for id, emb := range m.embeddings {
		sim := CosineSimilarity(vector, emb)
		if sim <= 0 {
			continue
		}
		p := m.profiles[id]
		if p == nil {
			continue
		}
		results = append(results, SearchResult{
			EntityID:    id,
			Score:       sim,
			Label:       p.Entity.Label,
			Description: p.Entity.Description,
		})
	}

	sortSearchResults(results)
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// HybridSearch implements Backend.
func (m *MemoryBackend) HybridSearch(ctx context.Context, query string, queryVector []float32, limit int) ([]HybridSearchResult, error) {
	return FuseSearch(ctx, m, query, queryVector, limit, rrfConstant)
}

// EntityCount implements Backend.
func (m *MemoryBackend) EntityCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.profiles)
}

// LinkCount implements Backend.
func (m *MemoryBackend) LinkCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.linkCount
}

// sortByImportance orders profiles by pagerank descending, then vital level,
// then ID for a stable order.
func sortByImportance(profiles []*entity.Profile) {
	sort.SliceStable(profiles, func(i, j int) bool {
		a, b := profiles[i].Entity, profiles[j].Entity
		if a.PageRank != b.PageRank {
			return a.PageRank > b.PageRank
		}
		av, bv := vitalRank(a.VitalLevel), vitalRank(b.VitalLevel)
		if av != bv {
			return av < bv
		}
		return a.ID < b.ID
	})
}

// vitalRank maps vital levels so that unranked entities sort last.
func vitalRank(level int) int {
	if level == 0 {
		return 1 << 30
	}
	return level
}

func sortSearchResults(results []SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].EntityID < results[j].EntityID
	})
}

func truncateProfiles(profiles []*entity.Profile, limit int) []*entity.Profile {
	if limit > 0 && len(profiles) > limit {
		return profiles[:limit]
	}
	return profiles
}

// defaultWeight normalizes an omitted edge weight to 1.0.
func defaultWeight(w float64) float64 {
	if w == 0 {
		return 1.0
	}
	return w
}

// tokenizeLabel splits text into lowercase searchable tokens.
func tokenizeLabel(text string) []string {
	text = strings.ToLower(text)
	tokens := strings.FieldsFunc(text, func(r rune) bool {
		return !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'))
	})
	result := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if len(t) >= 2 {
			result = append(result, t)
		}
	}
	return result
}
