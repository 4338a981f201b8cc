package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/verigraph/verigraph/internal/entity"
)

// Key prefixes for different data types
const (
	prefixProfile   = "e:"     // full entity profile
	prefixLinkOut   = "l:out:" // outgoing links, keyed by source
	prefixLinkIn    = "l:in:"  // incoming links, keyed by target
	prefixAnchorEnt = "a:ent:" // anchor edges, keyed by entity
	prefixAnchorMem = "a:mem:" // anchor members, keyed by anchor
	prefixEmbedding = "emb:"   // embedding data
)

// BadgerBackend is a BadgerDB-backed knowledge-store implementation.
type BadgerBackend struct {
	db          *badger.DB
	initialized bool
	mu          sync.RWMutex
	entityCount int
	linkCount   int
	ftsIndex    map[string][]string // token -> []entityID
}

// NewBadgerBackend creates a new BadgerDB backend.
func NewBadgerBackend() *BadgerBackend {
	return &BadgerBackend{}
}

// Initialize opens or creates the BadgerDB database at the given path.
func (b *BadgerBackend) Initialize(path string, readOnly bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	opts := badger.DefaultOptions(path).
		WithNumCompactors(2).
		WithNumMemtables(5).
		WithLoggingLevel(badger.ERROR) // Suppress INFO/WARNING logs

	if readOnly {
		opts = opts.WithReadOnly(true)
	}

	var err error
	b.db, err = badger.Open(opts)
	if err != nil {
		return fmt.Errorf("opening badger DB: %w", err)
	}

	b.initialized = true

	b.rebuildFTSIndexFromDB()

	return nil
}

// rebuildFTSIndexFromDB rebuilds the label token index from the database.
func (b *BadgerBackend) rebuildFTSIndexFromDB() {
	b.ftsIndex = make(map[string][]string)
	b.entityCount = 0
	b.linkCount = 0

	txn := b.db.NewTransaction(false)
	defer txn.Discard()

	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefixProfile)
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		item := it.Item()
		var profile entity.Profile
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &profile)
		}); err != nil {
			continue
		}
		b.entityCount++
		b.indexProfileForFTS(&profile)
	}

	// Count outgoing links (each stored link appears once under each prefix)
	opts.Prefix = []byte(prefixLinkOut)
	it2 := txn.NewIterator(opts)
	defer it2.Close()

	for it2.Rewind(); it2.Valid(); it2.Next() {
		b.linkCount++
	}
}

// Close releases all resources held by the backend.
func (b *BadgerBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.db == nil {
		return nil
	}

	err := b.db.Close()
	b.db = nil
	b.initialized = false
	return err
}

// BulkLoad replaces the entire store with the contents of the dataset.
func (b *BadgerBackend) BulkLoad(ctx context.Context, ds *Dataset) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.db.DropAll(); err != nil {
		return fmt.Errorf("clearing store: %w", err)
	}

	b.entityCount = 0
	b.linkCount = 0
	b.ftsIndex = make(map[string][]string)

	profiles, err := assembleProfiles(ds)
	if err != nil {
		return err
	}

	anchors := make(map[int64]entity.Anchor, len(ds.Anchors))
	for _, rec := range ds.Anchors {
		anchors[rec.AnchorID] = entity.Anchor{
			ID:       rec.AnchorID,
			Label:    rec.Label,
			Category: entity.AnchorCategory(rec.Category),
		}
	}

	wb := b.db.NewWriteBatch()
	defer wb.Cancel()

	for _, profile := range profiles {
		data, err := json.Marshal(profile)
		if err != nil {
			return fmt.Errorf("marshaling profile: %w", err)
		}
		if err := wb.Set(b.profileKey(profile.Entity.ID), data); err != nil {
			return fmt.Errorf("setting profile: %w", err)
		}
		b.entityCount++
		b.indexProfileForFTS(profile)
	}

	for i, rec := range ds.Links {
		link := entity.Link{
			SourceID: rec.SourceID,
			TargetID: rec.TargetID,
			Relation: rec.Relation,
			Weight:   defaultWeight(rec.Weight),
		}
		data, err := json.Marshal(link)
		if err != nil {
			return fmt.Errorf("marshaling link: %w", err)
		}

		outKey := fmt.Sprintf("%s%s:%d", prefixLinkOut, link.SourceID, i)
		if err := wb.Set([]byte(outKey), data); err != nil {
			return fmt.Errorf("setting outgoing link: %w", err)
		}
		inKey := fmt.Sprintf("%s%s:%d", prefixLinkIn, link.TargetID, i)
		if err := wb.Set([]byte(inKey), data); err != nil {
			return fmt.Errorf("setting incoming link: %w", err)
		}
		b.linkCount++
	}

	for _, rec := range ds.EntityAnchors {
		anchor, ok := anchors[rec.AnchorID]
		if !ok {
			continue
		}
		weight := defaultWeight(rec.Weight)

		edge := entity.AnchorEdge{Anchor: anchor, Weight: weight}
		edgeData, err := json.Marshal(edge)
		if err != nil {
			return fmt.Errorf("marshaling anchor edge: %w", err)
		}
		entKey := fmt.Sprintf("%s%s:%020d", prefixAnchorEnt, rec.EntityID, rec.AnchorID)
		if err := wb.Set([]byte(entKey), edgeData); err != nil {
			return fmt.Errorf("setting anchor edge: %w", err)
		}

		member := AnchorMember{EntityID: rec.EntityID, Weight: weight}
		memberData, err := json.Marshal(member)
		if err != nil {
			return fmt.Errorf("marshaling anchor member: %w", err)
		}
		memKey := fmt.Sprintf("%s%020d:%s", prefixAnchorMem, rec.AnchorID, rec.EntityID)
		if err := wb.Set([]byte(memKey), memberData); err != nil {
			return fmt.Errorf("setting anchor member: %w", err)
		}
	}

	if err := wb.Flush(); err != nil {
		return err
	}

	return nil
}

// assembleProfiles folds a dataset's relational sections into profiles.
func assembleProfiles(ds *Dataset) (map[string]*entity.Profile, error) {
	profiles := make(map[string]*entity.Profile, len(ds.Entities))

	for _, rec := range ds.Entities {
		profiles[rec.ID] = &entity.Profile{
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
			return nil, fmt.Errorf("loading position for %s: %w", rec.EntityID, err)
		}
		if p := profiles[rec.EntityID]; p != nil {
			p.Positions = append(p.Positions, pos)
		}
	}

	for _, rec := range ds.EPA {
		if p := profiles[rec.EntityID]; p != nil {
			p.EPA = entity.EPAValues{
				Evaluation: entity.Ternary(rec.Evaluation),
				Potency:    entity.Ternary(rec.Potency),
				Activity:   entity.Ternary(rec.Activity),
				Confidence: rec.Confidence,
			}
		}
	}

	for _, rec := range ds.Properties {
		if p := profiles[rec.EntityID]; p != nil {
			p.Properties[rec.Key] = rec.Value
		}
	}

	return profiles, nil
}

// indexProfileForFTS adds a profile's label and description to the token index.
func (b *BadgerBackend) indexProfileForFTS(profile *entity.Profile) {
	tokens := tokenizeLabel(profile.Entity.Label + " " + profile.Entity.Description)
	seen := make(map[string]bool, len(tokens))
	for _, token := range tokens {
		if seen[token] {
			continue
		}
		seen[token] = true
		b.ftsIndex[token] = append(b.ftsIndex[token], profile.Entity.ID)
	}
}

// StoreEmbeddings persists entity embeddings.
func (b *BadgerBackend) StoreEmbeddings(ctx context.Context, embeddings []EntityEmbedding) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	txn := b.db.NewTransaction(true)
	defer txn.Discard()

	for _, emb := range embeddings {
		data, err := json.Marshal(emb.Embedding)
		if err != nil {
			return fmt.Errorf("marshaling embedding: %w", err)
		}

		key := []byte(prefixEmbedding + emb.EntityID)
		if err := txn.Set(key, data); err != nil {
			return fmt.Errorf("setting embedding: %w", err)
		}
	}

	return txn.Commit()
}

// Get returns the full profile for an entity ID, or nil if not found.
func (b *BadgerBackend) Get(ctx context.Context, id string) (*entity.Profile, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.getProfile(id)
}

// getProfile reads a profile without locking (caller must hold lock).
func (b *BadgerBackend) getProfile(id string) (*entity.Profile, error) {
	txn := b.db.NewTransaction(false)
	defer txn.Discard()

	item, err := txn.Get(b.profileKey(id))
	if err == badger.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting profile: %w", err)
	}

	var profile entity.Profile
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &profile)
	}); err != nil {
		return nil, fmt.Errorf("unmarshaling profile: %w", err)
	}

	return &profile, nil
}

// Search finds entities whose label contains text, ranked by importance.
func (b *BadgerBackend) Search(ctx context.Context, text string, limit, minVital int) ([]*entity.Profile, error) {
	return b.scanLabels(text, limit, minVital, false)
}

// SearchExact finds entities whose label equals text case-insensitively.
func (b *BadgerBackend) SearchExact(ctx context.Context, text string, limit int) ([]*entity.Profile, error) {
	return b.scanLabels(text, limit, 0, true)
}

// scanLabels walks all profiles matching labels against text.
func (b *BadgerBackend) scanLabels(text string, limit, minVital int, exact bool) ([]*entity.Profile, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	txn := b.db.NewTransaction(false)
	defer txn.Discard()

	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefixProfile)
	it := txn.NewIterator(opts)
	defer it.Close()

	var matches []*entity.Profile
	for it.Rewind(); it.Valid(); it.Next() {
		item := it.Item()
		var profile entity.Profile
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &profile)
		}); err != nil {
			continue
		}

		if !labelMatches(profile.Entity.Label, text, exact) {
			continue
		}
		if minVital > 0 && (profile.Entity.VitalLevel == 0 || profile.Entity.VitalLevel > minVital) {
			continue
		}
		p := profile
		matches = append(matches, &p)
	}

	sortByImportance(matches)
	return truncateProfiles(matches, limit), nil
}

// GetRelated returns entities linked to the given one.
func (b *BadgerBackend) GetRelated(ctx context.Context, id, relation string, dir Direction, limit int) ([]Related, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var results []Related

	if dir == DirectionOutgoing || dir == DirectionBoth {
		links, err := b.scanLinks(prefixLinkOut + id + ":")
		if err != nil {
			return nil, err
		}
		for _, link := range links {
			if relation != "" && link.Relation != relation {
				continue
			}
			profile, err := b.getProfile(link.TargetID)
			if err != nil || profile == nil {
				continue
			}
			results = append(results, Related{Profile: profile, Relation: link.Relation, Weight: link.Weight})
		}
	}

	if dir == DirectionIncoming || dir == DirectionBoth {
		links, err := b.scanLinks(prefixLinkIn + id + ":")
		if err != nil {
			return nil, err
		}
		for _, link := range links {
			if relation != "" && link.Relation != relation {
				continue
			}
			profile, err := b.getProfile(link.SourceID)
			if err != nil || profile == nil {
				continue
			}
			results = append(results, Related{Profile: profile, Relation: "inverse_" + link.Relation, Weight: link.Weight})
		}
	}

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// scanLinks collects all links under a key prefix.
func (b *BadgerBackend) scanLinks(prefix string) ([]entity.Link, error) {
	txn := b.db.NewTransaction(false)
	defer txn.Discard()

	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefix)
	it := txn.NewIterator(opts)
	defer it.Close()

	var links []entity.Link
	for it.Rewind(); it.Valid(); it.Next() {
		item := it.Item()
		var link entity.Link
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &link)
		}); err != nil {
			continue
		}
		links = append(links, link)
	}

	return links, nil
}

// GetAnchors returns the anchors attached to an entity, strongest first.
func (b *BadgerBackend) GetAnchors(ctx context.Context, id string) ([]entity.AnchorEdge, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	txn := b.db.NewTransaction(false)
	defer txn.Discard()

	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefixAnchorEnt + id + ":")
	it := txn.NewIterator(opts)
	defer it.Close()

	var edges []entity.AnchorEdge
	for it.Rewind(); it.Valid(); it.Next() {
		item := it.Item()
		var edge entity.AnchorEdge
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &edge)
		}); err != nil {
			continue
		}
		edges = append(edges, edge)
	}

	sort.SliceStable(edges, func(i, j int) bool {
		if edges[i].Weight != edges[j].Weight {
			return edges[i].Weight > edges[j].Weight
		}
		return edges[i].Anchor.Label < edges[j].Anchor.Label
	})

	return edges, nil
}

// GetAnchorMembers returns the entities attached to an anchor, strongest first.
func (b *BadgerBackend) GetAnchorMembers(ctx context.Context, anchorID int64, limit int) ([]AnchorMember, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	txn := b.db.NewTransaction(false)
	defer txn.Discard()

	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(fmt.Sprintf("%s%020d:", prefixAnchorMem, anchorID))
	it := txn.NewIterator(opts)
	defer it.Close()

	var members []AnchorMember
	for it.Rewind(); it.Valid(); it.Next() {
		item := it.Item()
		var member AnchorMember
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &member)
		}); err != nil {
			continue
		}
		members = append(members, member)
	}

	sort.SliceStable(members, func(i, j int) bool {
		if members[i].Weight != members[j].Weight {
			return members[i].Weight > members[j].Weight
		}
		return members[i].EntityID < members[j].EntityID
	})

	if limit > 0 && len(members) > limit {
		members = members[:limit]
	}
	return members, nil
}

// FTSSearch performs token-overlap search using the in-memory label index.
func (b *BadgerBackend) FTSSearch(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.ftsIndex == nil {
		return []SearchResult{}, nil
	}

	queryTokens := tokenizeLabel(query)
	if len(queryTokens) == 0 {
		return []SearchResult{}, nil
	}

	idScores := make(map[string]int)
	for _, token := range queryTokens {
		for _, id := range b.ftsIndex[token] {
			idScores[id]++
		}
	}

	if len(idScores) == 0 {
		return []SearchResult{}, nil
	}

	results := make([]SearchResult, 0, len(idScores))
	for id, score := range idScores {
		profile, err := b.getProfile(id)
		if err != nil || profile == nil {
			continue
		}
		results = append(results, SearchResult{
			EntityID:    id,
			Score:       float64(score),
			Label:       profile.Entity.Label,
			Description: profile.Entity.Description,
		})
	}

	sortSearchResults(results)
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// VectorSearch finds entities closest to the given vector using cosine similarity.
func (b *BadgerBackend) VectorSearch(ctx context.Context, vector []float32, limit int) ([]SearchResult, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	txn := b.db.NewTransaction(false)
	defer txn.Discard()

	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefixEmbedding)
	it := txn.NewIterator(opts)
	defer it.Close()

	var results []SearchResult
	for it.Rewind(); it.Valid(); it.Next() {
		item := it.Item()
		var embedding []float32
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &embedding)
		}); err != nil {
			continue
		}

		id := string(item.Key())[len(prefixEmbedding):]

		sim := CosineSimilarity(vector, embedding)
		if sim <= 0 {
			continue
		}

		profile, err := b.getProfile(id)
		if err != nil || profile == nil {
			continue
		}

		results = append(results, SearchResult{
			EntityID:    id,
			Score:       sim,
			Label:       profile.Entity.Label,
			Description: profile.Entity.Description,
		})
	}

	sortSearchResults(results)
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// HybridSearch combines FTS and vector search using RRF.
func (b *BadgerBackend) HybridSearch(ctx context.Context, query string, queryVector []float32, limit int) ([]HybridSearchResult, error) {
	return FuseSearch(ctx, b, query, queryVector, limit, rrfConstant)
}

// EntityCount returns the entity count.
func (b *BadgerBackend) EntityCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.entityCount
}

// LinkCount returns the link count.
func (b *BadgerBackend) LinkCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.linkCount
}

// labelMatches applies exact or substring case-insensitive matching.
func labelMatches(label, text string, exact bool) bool {
	if exact {
		return strings.EqualFold(label, text)
	}
	return strings.Contains(strings.ToLower(label), strings.ToLower(text))
}

// profileKey returns the BadgerDB key for an entity profile.
func (b *BadgerBackend) profileKey(id string) []byte {
	return []byte(prefixProfile + id)
}
