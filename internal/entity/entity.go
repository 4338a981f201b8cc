// Package entity provides the knowledge-base data model for Verigraph.
//
// It defines the core entity types — entities, their positions in the five
// hierarchical grounding dimensions, EPA affective coordinates, anchors, and
// typed links between entities — along with the aggregate Profile that the
// store hands out to callers.
package entity

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Dimension identifies one of the five hierarchical grounding axes.
type Dimension string

const (
	DimSpatial   Dimension = "SPATIAL"   // Earth -> continents -> countries -> cities
	DimTemporal  Dimension = "TEMPORAL"  // Present -> centuries -> decades -> years
	DimTaxonomic Dimension = "TAXONOMIC" // Thing -> Person/Place/Event -> subtypes
	DimScale     Dimension = "SCALE"     // Regional -> Local/National/Global
	DimDomain    Dimension = "DOMAIN"    // Knowledge -> fields -> subfields
)

// Dimensions lists every grounding dimension in canonical order.
var Dimensions = []Dimension{DimSpatial, DimTemporal, DimTaxonomic, DimScale, DimDomain}

// Valid reports whether d is one of the five known dimensions.
func (d Dimension) Valid() bool {
	switch d {
	case DimSpatial, DimTemporal, DimTaxonomic, DimScale, DimDomain:
		return true
	}
	return false
}

// Ternary is a balanced ternary value in {-1, 0, +1}.
type Ternary int

const (
	Negative Ternary = -1
	Neutral  Ternary = 0
	Positive Ternary = 1
)

// EPAValues holds Evaluation-Potency-Activity coordinates (Osgood 1957).
//
// Three orthogonal dimensions of affective meaning: good/bad, weak/strong,
// passive/active. EPA is carried on every profile but is independent of
// factual verification.
type EPAValues struct {
	Evaluation Ternary
	Potency    Ternary
	Activity   Ternary
	Confidence float64
}

// NeutralEPA returns the default EPA profile: all neutral, full confidence.
func NeutralEPA() EPAValues {
	return EPAValues{Confidence: 1.0}
}

// Distance returns the Euclidean distance between two EPA profiles.
func (e EPAValues) Distance(other EPAValues) float64 {
	de := float64(e.Evaluation - other.Evaluation)
	dp := float64(e.Potency - other.Potency)
	da := float64(e.Activity - other.Activity)
	return math.Sqrt(de*de + dp*dp + da*da)
}

// Entity is a knowledge-base entity. Immutable once loaded.
type Entity struct {
	// ID is the opaque entity identifier (e.g. a Wikidata Q-number like "Q90").
	ID string

	// Title is the canonical article title.
	Title string

	// Label is the human-readable name; may be ambiguous.
	Label string

	// Description is a short disambiguating description.
	Description string

	// VitalLevel is an importance rank, 1-5 (1 = most important, 0 = unranked).
	VitalLevel int

	// PageRank is an importance score from the link graph.
	PageRank float64
}

// AnchorCategory identifies the semantic bank an anchor belongs to.
type AnchorCategory string

const (
	AnchorScope     AnchorCategory = "SCOPE"
	AnchorHistory   AnchorCategory = "HISTORY"
	AnchorKnownFor  AnchorCategory = "KNOWN_FOR"
	AnchorGeography AnchorCategory = "GEOGRAPHY"
)

// Valid reports whether c is a known anchor category.
func (c AnchorCategory) Valid() bool {
	switch c {
	case AnchorScope, AnchorHistory, AnchorKnownFor, AnchorGeography:
		return true
	}
	return false
}

// Anchor is a typed shared concept label. Entities attached to the same
// anchor activate each other even without a direct link.
type Anchor struct {
	ID       int64
	Label    string
	Category AnchorCategory
}

// AnchorEdge attaches an anchor to an entity with a weight.
type AnchorEdge struct {
	Anchor Anchor
	Weight float64
}

// Link is a directed, typed, weighted edge between two entities.
// Links are not necessarily symmetric; inverse traversal is surfaced as an
// "inverse_<relation>" pseudo-relation rather than a stored edge.
type Link struct {
	SourceID string
	TargetID string
	Relation string
	Weight   float64
}

// Profile aggregates everything known about one entity.
type Profile struct {
	Entity     Entity
	Positions  []DimensionPosition
	EPA        EPAValues
	Properties map[string]string
}

// Position returns the profile's position in the given dimension, or nil.
// A profile carries at most one position per dimension.
func (p *Profile) Position(dim Dimension) *DimensionPosition {
	for i := range p.Positions {
		if p.Positions[i].Dimension == dim {
			return &p.Positions[i]
		}
	}
	return nil
}

// IsDescendantOf reports whether the profile sits below the given label in
// the named dimension hierarchy.
func (p *Profile) IsDescendantOf(label string, dim Dimension) bool {
	pos := p.Position(dim)
	if pos == nil {
		return false
	}
	return pos.IsDescendantOf(label)
}

// NavigateFromZero returns the root-to-leaf path in the given dimension,
// or nil when the profile has no position there.
func (p *Profile) NavigateFromZero(dim Dimension) []string {
	pos := p.Position(dim)
	if pos == nil {
		return nil
	}
	return pos.NavigateFromZero()
}

// Summary returns a one-line human-readable description of the profile.
func (p *Profile) Summary() string {
	epa := fmt.Sprintf("E=%+d P=%+d A=%+d", p.EPA.Evaluation, p.EPA.Potency, p.EPA.Activity)

	dims := make([]string, 0, 3)
	for i := range p.Positions {
		if i >= 3 {
			break
		}
		dims = append(dims, p.Positions[i].Formatted())
	}

	return fmt.Sprintf("%s (%s): %s | %s", p.Entity.Label, p.Entity.ID, epa, strings.Join(dims, ", "))
}

// SortedPropertyKeys returns the profile's property keys in lexical order.
func (p *Profile) SortedPropertyKeys() []string {
	keys := make([]string, 0, len(p.Properties))
	for k := range p.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
