package store

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/verigraph/verigraph/internal/entity"
)

// Dataset is the interchange document a knowledge base is imported from.
// Its sections mirror the relational layout of the backing store.
type Dataset struct {
	ZeroStates    []ZeroStateRecord    `json:"zero_states"`
	Entities      []EntityRecord       `json:"entities"`
	Positions     []PositionRecord     `json:"positions"`
	EPA           []EPARecord          `json:"epa_values"`
	Properties    []PropertyRecord     `json:"properties"`
	Links         []LinkRecord         `json:"links"`
	Anchors       []AnchorRecord       `json:"anchors"`
	EntityAnchors []EntityAnchorRecord `json:"entity_anchors"`
}

// ZeroStateRecord names the root node of one dimension tree.
type ZeroStateRecord struct {
	Dimension string `json:"dimension"`
	ZeroNode  string `json:"zero_node"`
}

// EntityRecord is one entity row.
type EntityRecord struct {
	ID          string  `json:"id"`
	Title       string  `json:"title,omitempty"`
	Label       string  `json:"label"`
	Description string  `json:"description,omitempty"`
	VitalLevel  int     `json:"vital_level,omitempty"`
	PageRank    float64 `json:"pagerank,omitempty"`
}

// PositionRecord is one dimension-position row.
type PositionRecord struct {
	EntityID  string   `json:"entity_id"`
	Dimension string   `json:"dimension"`
	Sign      int      `json:"sign"`
	Depth     int      `json:"depth"`
	Path      []string `json:"path"`
	ZeroState string   `json:"zero_state"`
}

// EPARecord is one EPA row.
type EPARecord struct {
	EntityID   string  `json:"entity_id"`
	Evaluation int     `json:"evaluation"`
	Potency    int     `json:"potency"`
	Activity   int     `json:"activity"`
	Confidence float64 `json:"confidence"`
}

// PropertyRecord is one free-form key/value row.
type PropertyRecord struct {
	EntityID string `json:"entity_id"`
	Key      string `json:"key"`
	Value    string `json:"value"`
}

// LinkRecord is one directed entity link row.
type LinkRecord struct {
	SourceID string  `json:"source_id"`
	TargetID string  `json:"target_id"`
	Relation string  `json:"relation"`
	Weight   float64 `json:"weight,omitempty"`
}

// AnchorRecord is one anchor-dictionary row.
type AnchorRecord struct {
	AnchorID int64  `json:"anchor_id"`
	Label    string `json:"label"`
	Category string `json:"category"`
}

// EntityAnchorRecord attaches an entity to an anchor.
type EntityAnchorRecord struct {
	EntityID string  `json:"entity_id"`
	AnchorID int64   `json:"anchor_id"`
	Weight   float64 `json:"weight,omitempty"`
}

// LoadDataset reads and validates a dataset JSON document.
func LoadDataset(path string) (*Dataset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading dataset: %w", err)
	}

	var ds Dataset
	if err := json.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("parsing dataset: %w", err)
	}

	if err := ds.Validate(); err != nil {
		return nil, fmt.Errorf("validating dataset: %w", err)
	}

	return &ds, nil
}

// Validate checks referential integrity and field constraints.
func (ds *Dataset) Validate() error {
	entityIDs := make(map[string]bool, len(ds.Entities))
	for i, e := range ds.Entities {
		if e.ID == "" {
			return fmt.Errorf("entity %d: missing id", i)
		}
		if e.Label == "" {
			return fmt.Errorf("entity %s: missing label", e.ID)
		}
		if entityIDs[e.ID] {
			return fmt.Errorf("entity %s: duplicate id", e.ID)
		}
		entityIDs[e.ID] = true
	}

	for _, p := range ds.Positions {
		if !entityIDs[p.EntityID] {
			return fmt.Errorf("position references unknown entity %s", p.EntityID)
		}
		if !entity.Dimension(p.Dimension).Valid() {
			return fmt.Errorf("position for %s: unknown dimension %q", p.EntityID, p.Dimension)
		}
		if len(p.Path) == 0 {
			return fmt.Errorf("position for %s: empty path", p.EntityID)
		}
	}

	for _, l := range ds.Links {
		if !entityIDs[l.SourceID] {
			return fmt.Errorf("link references unknown source %s", l.SourceID)
		}
		if !entityIDs[l.TargetID] {
			return fmt.Errorf("link references unknown target %s", l.TargetID)
		}
		if l.Relation == "" {
			return fmt.Errorf("link %s->%s: missing relation", l.SourceID, l.TargetID)
		}
		if l.Weight < 0 {
			return fmt.Errorf("link %s->%s: negative weight", l.SourceID, l.TargetID)
		}
	}

	anchorIDs := make(map[int64]bool, len(ds.Anchors))
	for _, a := range ds.Anchors {
		if a.Label == "" {
			return fmt.Errorf("anchor %d: missing label", a.AnchorID)
		}
		if !entity.AnchorCategory(a.Category).Valid() {
			return fmt.Errorf("anchor %q: unknown category %q", a.Label, a.Category)
		}
		anchorIDs[a.AnchorID] = true
	}

	for _, ea := range ds.EntityAnchors {
		if !entityIDs[ea.EntityID] {
			return fmt.Errorf("entity anchor references unknown entity %s", ea.EntityID)
		}
		if !anchorIDs[ea.AnchorID] {
			return fmt.Errorf("entity anchor for %s references unknown anchor %d", ea.EntityID, ea.AnchorID)
		}
		if ea.Weight < 0 {
			return fmt.Errorf("entity anchor for %s: negative weight", ea.EntityID)
		}
	}

	return nil
}

// Position converts a record into a validated DimensionPosition.
func (p PositionRecord) Position() (entity.DimensionPosition, error) {
	return entity.NewDimensionPosition(
		entity.Dimension(p.Dimension), p.Sign, p.Depth, p.Path, p.ZeroState)
}
