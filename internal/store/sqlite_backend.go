package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/verigraph/verigraph/internal/entity"
)

// sqliteSchema mirrors the relational layout a dataset is flattened into.
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS zero_states (
	dimension TEXT PRIMARY KEY,
	zero_label TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS entities (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	label TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	vital_level INTEGER NOT NULL DEFAULT 0,
	pagerank REAL NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS dimension_positions (
	entity_id TEXT NOT NULL REFERENCES entities(id),
	dimension TEXT NOT NULL,
	sign INTEGER NOT NULL,
	depth INTEGER NOT NULL,
	path TEXT NOT NULL,
	zero_state TEXT NOT NULL,
	PRIMARY KEY (entity_id, dimension)
);
CREATE TABLE IF NOT EXISTS epa_values (
	entity_id TEXT PRIMARY KEY REFERENCES entities(id),
	evaluation INTEGER NOT NULL,
	potency INTEGER NOT NULL,
	activity INTEGER NOT NULL,
	confidence REAL NOT NULL
);
CREATE TABLE IF NOT EXISTS properties (
	entity_id TEXT NOT NULL REFERENCES entities(id),
	key TEXT NOT NULL,
	value TEXT NOT NULL,
	PRIMARY KEY (entity_id, key)
);
CREATE TABLE IF NOT EXISTS entity_links (
	source_id TEXT NOT NULL REFERENCES entities(id),
	target_id TEXT NOT NULL REFERENCES entities(id),
	relation TEXT NOT NULL,
	weight REAL NOT NULL DEFAULT 1.0
);
CREATE TABLE IF NOT EXISTS anchor_dictionary (
	anchor_id INTEGER PRIMARY KEY,
	label TEXT NOT NULL,
	category TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS entity_anchors (
	entity_id TEXT NOT NULL REFERENCES entities(id),
	anchor_id INTEGER NOT NULL REFERENCES anchor_dictionary(anchor_id),
	weight REAL NOT NULL DEFAULT 1.0,
	PRIMARY KEY (entity_id, anchor_id)
);
CREATE TABLE IF NOT EXISTS embeddings (
	entity_id TEXT PRIMARY KEY REFERENCES entities(id),
	vector TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_entities_label ON entities(label COLLATE NOCASE);
CREATE INDEX IF NOT EXISTS idx_links_source ON entity_links(source_id);
CREATE INDEX IF NOT EXISTS idx_links_target ON entity_links(target_id);
CREATE INDEX IF NOT EXISTS idx_entity_anchors_anchor ON entity_anchors(anchor_id);
`

// SQLiteBackend stores the knowledge graph in a single SQLite file.
type SQLiteBackend struct {
	db          *sql.DB
	mu          sync.RWMutex
	entityCount int
	linkCount   int
}

// NewSQLiteBackend creates a new SQLite backend.
func NewSQLiteBackend() *SQLiteBackend {
	return &SQLiteBackend{}
}

// Initialize opens or creates the SQLite database at the given path.
// In read-only mode the file must already exist.
func (s *SQLiteBackend) Initialize(path string, readOnly bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dsn := path
	if readOnly {
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("opening sqlite DB read-only: %w", err)
		}
		dsn = "file:" + path + "?mode=ro"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("opening sqlite DB: %w", err)
	}
	// modernc's driver serializes writes; a single connection avoids
	// SQLITE_BUSY under concurrent access.
	db.SetMaxOpenConns(1)

	if !readOnly {
		if _, err := db.Exec(sqliteSchema); err != nil {
			db.Close()
			return fmt.Errorf("creating schema: %w", err)
		}
	}

	s.db = db
	s.refreshCounts()
	return nil
}

func (s *SQLiteBackend) refreshCounts() {
	s.entityCount = 0
	s.linkCount = 0
	_ = s.db.QueryRow(`SELECT COUNT(*) FROM entities`).Scan(&s.entityCount)
	_ = s.db.QueryRow(`SELECT COUNT(*) FROM entity_links`).Scan(&s.linkCount)
}

// Close releases the database handle.
func (s *SQLiteBackend) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// BulkLoad replaces the entire store with the contents of the dataset.
func (s *SQLiteBackend) BulkLoad(ctx context.Context, ds *Dataset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{
		"entity_anchors", "anchor_dictionary", "entity_links",
		"properties", "epa_values", "dimension_positions",
		"embeddings", "entities", "zero_states",
	} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}

	for _, rec := range ds.ZeroStates {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO zero_states (dimension, zero_label) VALUES (?, ?)`,
			rec.Dimension, rec.ZeroNode); err != nil {
			return fmt.Errorf("inserting zero state: %w", err)
		}
	}

	for _, rec := range ds.Entities {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO entities (id, title, label, description, vital_level, pagerank)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			rec.ID, rec.Title, rec.Label, rec.Description, rec.VitalLevel, rec.PageRank); err != nil {
			return fmt.Errorf("inserting entity %s: %w", rec.ID, err)
		}
	}

	for _, rec := range ds.Positions {
		pathJSON, err := json.Marshal(rec.Path)
		if err != nil {
			return fmt.Errorf("marshaling path: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO dimension_positions (entity_id, dimension, sign, depth, path, zero_state)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			rec.EntityID, rec.Dimension, rec.Sign, rec.Depth, string(pathJSON), rec.ZeroState); err != nil {
			return fmt.Errorf("inserting position for %s: %w", rec.EntityID, err)
		}
	}

	for _, rec := range ds.EPA {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO epa_values (entity_id, evaluation, potency, activity, confidence)
			 VALUES (?, ?, ?, ?, ?)`,
			rec.EntityID, rec.Evaluation, rec.Potency, rec.Activity, rec.Confidence); err != nil {
			return fmt.Errorf("inserting EPA for %s: %w", rec.EntityID, err)
		}
	}

	for _, rec := range ds.Properties {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO properties (entity_id, key, value) VALUES (?, ?, ?)`,
			rec.EntityID, rec.Key, rec.Value); err != nil {
			return fmt.Errorf("inserting property for %s: %w", rec.EntityID, err)
		}
	}

	for _, rec := range ds.Links {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO entity_links (source_id, target_id, relation, weight)
			 VALUES (?, ?, ?, ?)`,
			rec.SourceID, rec.TargetID, rec.Relation, defaultWeight(rec.Weight)); err != nil {
			return fmt.Errorf("inserting link: %w", err)
		}
	}

	for _, rec := range ds.Anchors {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO anchor_dictionary (anchor_id, label, category) VALUES (?, ?, ?)`,
			rec.AnchorID, rec.Label, rec.Category); err != nil {
			return fmt.Errorf("inserting anchor %d: %w", rec.AnchorID, err)
		}
	}

	for _, rec := range ds.EntityAnchors {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO entity_anchors (entity_id, anchor_id, weight) VALUES (?, ?, ?)`,
			rec.EntityID, rec.AnchorID, defaultWeight(rec.Weight)); err != nil {
			return fmt.Errorf("inserting entity anchor: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing bulk load: %w", err)
	}

	s.refreshCounts()
	return nil
}

// StoreEmbeddings persists entity embeddings as JSON vectors.
func (s *SQLiteBackend) StoreEmbeddings(ctx context.Context, embeddings []EntityEmbedding) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, emb := range embeddings {
		data, err := json.Marshal(emb.Embedding)
		if err != nil {
			return fmt.Errorf("marshaling embedding: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO embeddings (entity_id, vector) VALUES (?, ?)
			 ON CONFLICT(entity_id) DO UPDATE SET vector = excluded.vector`,
			emb.EntityID, string(data)); err != nil {
			return fmt.Errorf("storing embedding for %s: %w", emb.EntityID, err)
		}
	}

	return tx.Commit()
}

// Get returns the full profile for an entity ID, or nil if not found.
func (s *SQLiteBackend) Get(ctx context.Context, id string) (*entity.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getProfile(ctx, id)
}

func (s *SQLiteBackend) getProfile(ctx context.Context, id string) (*entity.Profile, error) {
	profile := &entity.Profile{
		EPA:        entity.NeutralEPA(),
		Properties: make(map[string]string),
	}

	err := s.db.QueryRowContext(ctx,
		`SELECT id, title, label, description, vital_level, pagerank FROM entities WHERE id = ?`, id).
		Scan(&profile.Entity.ID, &profile.Entity.Title, &profile.Entity.Label,
			&profile.Entity.Description, &profile.Entity.VitalLevel, &profile.Entity.PageRank)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying entity %s: %w", id, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT dimension, sign, depth, path, zero_state FROM dimension_positions WHERE entity_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("querying positions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var rec PositionRecord
		var pathJSON string
		if err := rows.Scan(&rec.Dimension, &rec.Sign, &rec.Depth, &pathJSON, &rec.ZeroState); err != nil {
			return nil, fmt.Errorf("scanning position: %w", err)
		}
		if err := json.Unmarshal([]byte(pathJSON), &rec.Path); err != nil {
			return nil, fmt.Errorf("decoding position path: %w", err)
		}
		pos, err := rec.Position()
		if err != nil {
			return nil, fmt.Errorf("loading position for %s: %w", id, err)
		}
		profile.Positions = append(profile.Positions, pos)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var e, p, a int
	var conf float64
	err = s.db.QueryRowContext(ctx,
		`SELECT evaluation, potency, activity, confidence FROM epa_values WHERE entity_id = ?`, id).
		Scan(&e, &p, &a, &conf)
	if err == nil {
		profile.EPA = entity.EPAValues{
			Evaluation: entity.Ternary(e),
			Potency:    entity.Ternary(p),
			Activity:   entity.Ternary(a),
			Confidence: conf,
		}
	} else if err != sql.ErrNoRows {
		return nil, fmt.Errorf("querying EPA: %w", err)
	}

	propRows, err := s.db.QueryContext(ctx,
		`SELECT key, value FROM properties WHERE entity_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("querying properties: %w", err)
	}
	defer propRows.Close()
	for propRows.Next() {
		var k, v string
		if err := propRows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scanning property: %w", err)
		}
		profile.Properties[k] = v
	}
	return profile, propRows.Err()
}

// Search finds entities whose label contains text, ranked by importance.
func (s *SQLiteBackend) Search(ctx context.Context, text string, limit, minVital int) ([]*entity.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id FROM entities WHERE LOWER(label) LIKE ?`
	args := []any{"%" + strings.ToLower(text) + "%"}
	if minVital > 0 {
		query += ` AND vital_level > 0 AND vital_level <= ?`
		args = append(args, minVital)
	}
	query += ` ORDER BY pagerank DESC, CASE WHEN vital_level = 0 THEN 1000000 ELSE vital_level END ASC, id ASC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	return s.profilesForQuery(ctx, query, args...)
}

// SearchExact finds entities whose label equals text case-insensitively.
func (s *SQLiteBackend) SearchExact(ctx context.Context, text string, limit int) ([]*entity.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id FROM entities WHERE LOWER(label) = LOWER(?)
	          ORDER BY pagerank DESC, CASE WHEN vital_level = 0 THEN 1000000 ELSE vital_level END ASC, id ASC`
	args := []any{text}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	return s.profilesForQuery(ctx, query, args...)
}

func (s *SQLiteBackend) profilesForQuery(ctx context.Context, query string, args ...any) ([]*entity.Profile, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("searching entities: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning search row: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	profiles := make([]*entity.Profile, 0, len(ids))
	for _, id := range ids {
		profile, err := s.getProfile(ctx, id)
		if err != nil {
			return nil, err
		}
		if profile != nil {
			profiles = append(profiles, profile)
		}
	}
	return profiles, nil
}

// GetRelated returns entities linked to the given one.
func (s *SQLiteBackend) GetRelated(ctx context.Context, id, relation string, dir Direction, limit int) ([]Related, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []Related

	collect := func(query, relPrefix string, args ...any) error {
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("querying links: %w", err)
		}
		defer rows.Close()

		type edge struct {
			otherID  string
			relation string
			weight   float64
		}
		var edges []edge
		for rows.Next() {
			var e edge
			if err := rows.Scan(&e.otherID, &e.relation, &e.weight); err != nil {
				return fmt.Errorf("scanning link: %w", err)
			}
			edges = append(edges, e)
		}
		if err := rows.Err(); err != nil {
			return err
		}

		for _, e := range edges {
			profile, err := s.getProfile(ctx, e.otherID)
			if err != nil || profile == nil {
				continue
			}
			results = append(results, Related{
				Profile:  profile,
				Relation: relPrefix + e.relation,
				Weight:   e.weight,
			})
		}
		return nil
	}

	relFilter := ""
	if relation != "" {
		relFilter = " AND relation = ?"
	}

	if dir == DirectionOutgoing || dir == DirectionBoth {
		query := `SELECT target_id, relation, weight FROM entity_links WHERE source_id = ?` + relFilter
		args := []any{id}
		if relation != "" {
			args = append(args, relation)
		}
		if err := collect(query, "", args...); err != nil {
			return nil, err
		}
	}
	if dir == DirectionIncoming || dir == DirectionBoth {
		query := `SELECT source_id, relation, weight FROM entity_links WHERE target_id = ?` + relFilter
		args := []any{id}
		if relation != "" {
			args = append(args, relation)
		}
		if err := collect(query, "inverse_", args...); err != nil {
			return nil, err
		}
	}

	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// GetAnchors returns the anchors attached to an entity, strongest first.
func (s *SQLiteBackend) GetAnchors(ctx context.Context, id string) ([]entity.AnchorEdge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT d.anchor_id, d.label, d.category, ea.weight
		 FROM entity_anchors ea JOIN anchor_dictionary d ON d.anchor_id = ea.anchor_id
		 WHERE ea.entity_id = ?
		 ORDER BY ea.weight DESC, d.label ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("querying anchors: %w", err)
	}
	defer rows.Close()

	var edges []entity.AnchorEdge
	for rows.Next() {
		var edge entity.AnchorEdge
		var category string
		if err := rows.Scan(&edge.Anchor.ID, &edge.Anchor.Label, &category, &edge.Weight); err != nil {
			return nil, fmt.Errorf("scanning anchor: %w", err)
		}
		edge.Anchor.Category = entity.AnchorCategory(category)
		edges = append(edges, edge)
	}
	return edges, rows.Err()
}

// GetAnchorMembers returns the entities attached to an anchor, strongest first.
func (s *SQLiteBackend) GetAnchorMembers(ctx context.Context, anchorID int64, limit int) ([]AnchorMember, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT entity_id, weight FROM entity_anchors WHERE anchor_id = ?
	          ORDER BY weight DESC, entity_id ASC`
	args := []any{anchorID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying anchor members: %w", err)
	}
	defer rows.Close()

	var members []AnchorMember
	for rows.Next() {
		var m AnchorMember
		if err := rows.Scan(&m.EntityID, &m.Weight); err != nil {
			return nil, fmt.Errorf("scanning anchor member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// FTSSearch scores entities by query-token overlap on label and description.
func (s *SQLiteBackend) FTSSearch(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	queryTokens := tokenizeLabel(query)
	if len(queryTokens) == 0 {
		return []SearchResult{}, nil
	}

	idScores := make(map[string]int)
	meta := make(map[string][2]string)

	for _, token := range queryTokens {
		rows, err := s.db.QueryContext(ctx,
			`SELECT id, label, description FROM entities
			 WHERE LOWER(label) LIKE ? OR LOWER(description) LIKE ?`,
			"%"+token+"%", "%"+token+"%")
		if err != nil {
			return nil, fmt.Errorf("token search: %w", err)
		}
		for rows.Next() {
			var id, label, desc string
			if err := rows.Scan(&id, &label, &desc); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scanning token match: %w", err)
			}
			idScores[id]++
			meta[id] = [2]string{label, desc}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}

	results := make([]SearchResult, 0, len(idScores))
	for id, score := range idScores {
		results = append(results, SearchResult{
			EntityID:    id,
			Score:       float64(score),
			Label:       meta[id][0],
			Description: meta[id][1],
		})
	}

	sortSearchResults(results)
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// VectorSearch finds entities closest to the given vector using cosine similarity.
func (s *SQLiteBackend) VectorSearch(ctx context.Context, vector []float32, limit int) ([]SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT e.id, e.label, e.description, emb.vector
		 FROM embeddings emb JOIN entities e ON e.id = emb.entity_id`)
	if err != nil {
		return nil, fmt.Errorf("querying embeddings: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var id, label, desc, vecJSON string
		if err := rows.Scan(&id, &label, &desc, &vecJSON); err != nil {
			return nil, fmt.Errorf("scanning embedding: %w", err)
		}
		var embedding []float32
		if err := json.Unmarshal([]byte(vecJSON), &embedding); err != nil {
			continue
		}
		sim := CosineSimilarity(vector, embedding)
		if sim <= 0 {
			continue
		}
		results = append(results, SearchResult{EntityID: id, Score: sim, Label: label, Description: desc})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].EntityID < results[j].EntityID
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// HybridSearch combines FTS and vector search using RRF.
func (s *SQLiteBackend) HybridSearch(ctx context.Context, query string, queryVector []float32, limit int) ([]HybridSearchResult, error) {
	return FuseSearch(ctx, s, query, queryVector, limit, rrfConstant)
}

// EntityCount returns the entity count.
func (s *SQLiteBackend) EntityCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entityCount
}

// LinkCount returns the link count.
func (s *SQLiteBackend) LinkCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.linkCount
}
