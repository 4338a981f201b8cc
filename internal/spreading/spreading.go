// Package spreading implements two-layer spreading activation over the
// knowledge graph: a relation layer that follows typed entity links, and an
// anchor layer that connects entities sharing semantic anchors even when no
// direct link exists. Activation decays per hop and traversal is best-first.
package spreading

import (
	"container/heap"
	"context"
	"fmt"
	"sort"

	"github.com/verigraph/verigraph/internal/entity"
	"github.com/verigraph/verigraph/internal/store"
)

// SemanticBank is an accumulator channel for anchor-driven activation.
// Each anchor category feeds one bank, so callers can see whether an entity
// was reached through spatial, temporal, or conceptual context.
type SemanticBank string

const (
	BankSpatial      SemanticBank = "SPATIAL"
	BankTemporal     SemanticBank = "TEMPORAL"
	BankMental       SemanticBank = "MENTAL"
	BankSubstantives SemanticBank = "SUBSTANTIVES"
)

// Banks lists all semantic banks.
var Banks = []SemanticBank{BankSpatial, BankTemporal, BankMental, BankSubstantives}

// anchorToBank maps anchor categories to the bank their activation lands in.
// Unknown categories default to the mental bank.
var anchorToBank = map[entity.AnchorCategory]SemanticBank{
	entity.AnchorScope:     BankMental,
	entity.AnchorHistory:   BankTemporal,
	entity.AnchorKnownFor:  BankMental,
	entity.AnchorGeography: BankSpatial,
}

// neighborLimit bounds how many linked neighbors are fetched per entity.
const neighborLimit = 20

// Config controls decay, pruning, and the anchor layer.
type Config struct {
	// Decay is the per-hop activation multiplier on the relation layer.
	Decay float64

	// Threshold prunes entities whose activation falls below it.
	Threshold float64

	// MaxDepth is the maximum number of hops from any source.
	MaxDepth int

	// MaxResults caps the number of activated entities returned.
	MaxResults int

	// UseAnchors enables the anchor layer.
	UseAnchors bool

	// AnchorDecay is the per-hop multiplier on the anchor layer. It is lower
	// than Decay so anchor-derived context stays weaker than direct links.
	AnchorDecay float64

	// AnchorLimit bounds entities activated per anchor.
	AnchorLimit int

	// MaxAnchors bounds anchors processed per entity.
	MaxAnchors int

	// RelationWeights maps relation names to transfer weights. Relations not
	// listed transfer at defaultRelationWeight.
	RelationWeights map[string]float64
}

const defaultRelationWeight = 0.5

// DefaultConfig returns the standard traversal configuration.
func DefaultConfig() Config {
	return Config{
		Decay:       0.7,
		Threshold:   0.15,
		MaxDepth:    2,
		MaxResults:  50,
		UseAnchors:  true,
		AnchorDecay: 0.4,
		AnchorLimit: 5,
		MaxAnchors:  10,
		RelationWeights: map[string]float64{
			"same_as":     1.0,
			"part_of":     0.9,
			"located_in":  0.8,
			"instance_of": 0.8,
			"subclass_of": 0.7,
			"capital_of":  0.8,
			"created":     0.8,
			"developed":   0.8,
			"discovered":  0.8,
			"invented":    0.8,
			"wrote":       0.8,
			"born_in":     0.7,
			"worked_at":   0.7,
			"awarded":     0.7,
			"related_to":  0.5,
		},
	}
}

// Weight returns the transfer weight for a relation.
func (c Config) Weight(relation string) float64 {
	if w, ok := c.RelationWeights[relation]; ok {
		return w
	}
	return defaultRelationWeight
}

// Store is the graph access the engine needs. *store.MemoryBackend and the
// other store backends satisfy it.
type Store interface {
	Get(ctx context.Context, id string) (*entity.Profile, error)
	GetRelated(ctx context.Context, id, relation string, dir store.Direction, limit int) ([]store.Related, error)
	GetAnchors(ctx context.Context, id string) ([]entity.AnchorEdge, error)
	GetAnchorMembers(ctx context.Context, anchorID int64, limit int) ([]store.AnchorMember, error)
}

// Result is one activated entity with the path that reached it.
type Result struct {
	Profile    *entity.Profile
	Activation float64

	// Path holds entity IDs from a source to this entity, inclusive.
	Path []string

	// Relations holds the relation traversed at each hop. Anchor hops are
	// recorded as "anchor:<label>".
	Relations []string

	// BankActivations accumulates anchor-layer activation per semantic bank.
	BankActivations map[SemanticBank]float64
}

// Engine runs spreading activation against a Store.
type Engine struct {
	store  Store
	config Config
}

// New creates an engine with the given configuration.
func New(s Store, config Config) *Engine {
	return &Engine{store: s, config: config}
}

// NewDefault creates an engine with DefaultConfig.
func NewDefault(s Store) *Engine {
	return New(s, DefaultConfig())
}

// state tracks the best activation found for one entity.
type state struct {
	activation float64
	path       []string
	relations  []string
	banks      map[SemanticBank]float64
}

// item is a priority-queue entry. seq makes equal-activation pops
// deterministic in insertion order.
type item struct {
	activation float64
	depth      int
	id         string
	path       []string
	relations  []string
	banks      map[SemanticBank]float64
	seq        int
}

type queue []*item

func (q queue) Len() int { return len(q) }
func (q queue) Less(i, j int) bool {
	if q[i].activation != q[j].activation {
		return q[i].activation > q[j].activation
	}
	return q[i].seq < q[j].seq
}
func (q queue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *queue) Push(x any) { *q = append(*q, x.(*item)) }
func (q *queue) Pop() any {
	old := *q
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return it
}

// Spread runs activation from a single source entity.
func (e *Engine) Spread(ctx context.Context, sourceID string, initialActivation float64) ([]Result, error) {
	return e.SpreadMultiple(ctx, map[string]float64{sourceID: initialActivation})
}

// SpreadMultiple runs activation from several sources at once. Sources
// themselves are excluded from the results.
func (e *Engine) SpreadMultiple(ctx context.Context, sources map[string]float64) ([]Result, error) {
	cfg := e.config

	states := make(map[string]*state, len(sources))
	visited := make(map[string]bool)

	q := &queue{}
	heap.Init(q)
	seq := 0

	sourceIDs := make([]string, 0, len(sources))
	for id := range sources {
		sourceIDs = append(sourceIDs, id)
	}
	sort.Strings(sourceIDs)

	for _, id := range sourceIDs {
		banks := emptyBanks()
		st := &state{
			activation: sources[id],
			path:       []string{id},
			banks:      banks,
		}
		states[id] = st
		heap.Push(q, &item{
			activation: st.activation,
			id:         id,
			path:       st.path,
			banks:      banks,
			seq:        seq,
		})
		seq++
	}

	// Once popped an entity is finalized; a later, stronger path through a
	// cheaper route cannot reopen it. Best-first order makes that rare and
	// keeps the traversal single-pass.
	for q.Len() > 0 && len(visited) < cfg.MaxResults*2 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		cur := heap.Pop(q).(*item)
		if visited[cur.id] {
			continue
		}
		visited[cur.id] = true

		if cur.depth >= cfg.MaxDepth {
			continue
		}
		if cur.activation < cfg.Threshold {
			continue
		}

		if err := e.spreadLinks(ctx, cfg, cur, states, visited, q, &seq); err != nil {
			return nil, err
		}
		if cfg.UseAnchors {
			if err := e.spreadAnchors(ctx, cfg, cur, states, visited, q, &seq); err != nil {
				return nil, err
			}
		}
	}

	results := make([]Result, 0, len(states))
	for id, st := range states {
		if _, isSource := sources[id]; isSource {
			continue
		}
		profile, err := e.store.Get(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("loading activated entity %s: %w", id, err)
		}
		if profile == nil {
			continue
		}
		results = append(results, Result{
			Profile:         profile,
			Activation:      st.activation,
			Path:            st.path,
			Relations:       st.relations,
			BankActivations: st.banks,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Activation != results[j].Activation {
			return results[i].Activation > results[j].Activation
		}
		return results[i].Profile.Entity.ID < results[j].Profile.Entity.ID
	})
	if len(results) > cfg.MaxResults {
		results = results[:cfg.MaxResults]
	}
	return results, nil
}

// spreadLinks propagates activation along direct entity links.
func (e *Engine) spreadLinks(ctx context.Context, cfg Config, cur *item, states map[string]*state, visited map[string]bool, q *queue, seq *int) error {
	related, err := e.store.GetRelated(ctx, cur.id, "", store.DirectionOutgoing, neighborLimit)
	if err != nil {
		return fmt.Errorf("expanding %s: %w", cur.id, err)
	}

	for _, rel := range related {
		neighborID := rel.Profile.Entity.ID

		newActivation := cur.activation * cfg.Decay * cfg.Weight(rel.Relation) * rel.Weight
		if newActivation < cfg.Threshold {
			continue
		}

		current := states[neighborID]
		if current != nil && newActivation <= current.activation {
			continue
		}

		st := &state{
			activation: newActivation,
			path:       appendCopy(cur.path, neighborID),
			relations:  appendCopy(cur.relations, rel.Relation),
			banks:      copyBanks(cur.banks),
		}
		states[neighborID] = st

		if !visited[neighborID] {
			heap.Push(q, &item{
				activation: newActivation,
				depth:      cur.depth + 1,
				id:         neighborID,
				path:       st.path,
				relations:  st.relations,
				banks:      st.banks,
				seq:        *seq,
			})
			*seq++
		}
	}
	return nil
}

// spreadAnchors propagates activation through shared semantic anchors.
func (e *Engine) spreadAnchors(ctx context.Context, cfg Config, cur *item, states map[string]*state, visited map[string]bool, q *queue, seq *int) error {
	anchors, err := e.store.GetAnchors(ctx, cur.id)
	if err != nil {
		return fmt.Errorf("loading anchors for %s: %w", cur.id, err)
	}
	if len(anchors) > cfg.MaxAnchors {
		anchors = anchors[:cfg.MaxAnchors]
	}

	for _, edge := range anchors {
		members, err := e.store.GetAnchorMembers(ctx, edge.Anchor.ID, cfg.AnchorLimit)
		if err != nil {
			return fmt.Errorf("loading anchor members for %d: %w", edge.Anchor.ID, err)
		}

		bank, ok := anchorToBank[edge.Anchor.Category]
		if !ok {
			bank = BankMental
		}

		for _, member := range members {
			if member.EntityID == cur.id {
				continue
			}

			anchorActivation := cur.activation * cfg.AnchorDecay * edge.Weight * member.Weight
			if anchorActivation < cfg.Threshold {
				continue
			}

			current := states[member.EntityID]
			if current != nil && anchorActivation <= current.activation {
				continue
			}

			banks := copyBanks(cur.banks)
			banks[bank] += anchorActivation

			st := &state{
				activation: anchorActivation,
				path:       appendCopy(cur.path, member.EntityID),
				relations:  appendCopy(cur.relations, "anchor:"+edge.Anchor.Label),
				banks:      banks,
			}
			states[member.EntityID] = st

			if !visited[member.EntityID] {
				heap.Push(q, &item{
					activation: anchorActivation,
					depth:      cur.depth + 1,
					id:         member.EntityID,
					path:       st.path,
					relations:  st.relations,
					banks:      st.banks,
					seq:        *seq,
				})
				*seq++
			}
		}
	}
	return nil
}

// ContextEntities spreads from a set of entities and returns those whose
// activation clears the threshold, strongest first. Useful for pulling in
// the wider context around the entities a claim mentions.
func (e *Engine) ContextEntities(ctx context.Context, entityIDs []string, threshold float64) ([]*entity.Profile, error) {
	sources := make(map[string]float64, len(entityIDs))
	for _, id := range entityIDs {
		sources[id] = 1.0
	}

	results, err := e.SpreadMultiple(ctx, sources)
	if err != nil {
		return nil, err
	}

	var profiles []*entity.Profile
	for _, r := range results {
		if r.Activation >= threshold {
			profiles = append(profiles, r.Profile)
		}
	}
	return profiles, nil
}

// AnchorNeighbor is an entity reached through a shared anchor.
type AnchorNeighbor struct {
	Profile     *entity.Profile
	AnchorLabel string
	Activation  float64
}

// AnchorNeighbors returns entities connected to the given one through shared
// anchors, without running a full spread. An empty category matches all
// anchor categories.
func (e *Engine) AnchorNeighbors(ctx context.Context, entityID string, category entity.AnchorCategory, limit int) ([]AnchorNeighbor, error) {
	anchors, err := e.store.GetAnchors(ctx, entityID)
	if err != nil {
		return nil, fmt.Errorf("loading anchors for %s: %w", entityID, err)
	}

	var neighbors []AnchorNeighbor
	seen := map[string]bool{entityID: true}

	for _, edge := range anchors {
		if category != "" && edge.Anchor.Category != category {
			continue
		}

		members, err := e.store.GetAnchorMembers(ctx, edge.Anchor.ID, 10)
		if err != nil {
			return nil, fmt.Errorf("loading anchor members for %d: %w", edge.Anchor.ID, err)
		}

		for _, member := range members {
			if seen[member.EntityID] {
				continue
			}
			seen[member.EntityID] = true

			profile, err := e.store.Get(ctx, member.EntityID)
			if err != nil {
				return nil, fmt.Errorf("loading anchor neighbor %s: %w", member.EntityID, err)
			}
			if profile == nil {
				continue
			}

			neighbors = append(neighbors, AnchorNeighbor{
				Profile:     profile,
				AnchorLabel: edge.Anchor.Label,
				Activation:  edge.Weight * member.Weight,
			})
		}
	}

	sort.SliceStable(neighbors, func(i, j int) bool {
		if neighbors[i].Activation != neighbors[j].Activation {
			return neighbors[i].Activation > neighbors[j].Activation
		}
		return neighbors[i].Profile.Entity.ID < neighbors[j].Profile.Entity.ID
	})
	if limit > 0 && len(neighbors) > limit {
		neighbors = neighbors[:limit]
	}
	return neighbors, nil
}

func emptyBanks() map[SemanticBank]float64 {
	banks := make(map[SemanticBank]float64, len(Banks))
	for _, b := range Banks {
		banks[b] = 0
	}
	return banks
}

func copyBanks(src map[SemanticBank]float64) map[SemanticBank]float64 {
	dst := make(map[SemanticBank]float64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func appendCopy(src []string, extra string) []string {
	out := make([]string, 0, len(src)+1)
	out = append(out, src...)
	return append(out, extra)
}
