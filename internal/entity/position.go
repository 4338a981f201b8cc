package entity

import (
	"fmt"
	"strings"
)

// DimensionPosition locates an entity in one dimension hierarchy.
//
// The path runs root to leaf; the root label always equals Path[0] and is the
// dimension's zero state (e.g. "Earth" for SPATIAL). Sign is +1 when the
// entity is more specific than the zero state, -1 when it is more abstract,
// and 0 when the entity is the zero state itself.
//
// Formatted example for Paris in SPATIAL: +3:SPATIAL/Earth/Europe/France/Paris
type DimensionPosition struct {
	Dimension Dimension
	Sign      int
	Depth     int
	Path      []string
	ZeroState string
}

// NewDimensionPosition constructs a validated position. The sign is derived
// from depth when depth is positive; callers supply -1 explicitly for
// positions more abstract than the zero state.
func NewDimensionPosition(dim Dimension, sign, depth int, path []string, zeroState string) (DimensionPosition, error) {
	if !dim.Valid() {
		return DimensionPosition{}, fmt.Errorf("unknown dimension: %q", dim)
	}
	if len(path) == 0 {
		return DimensionPosition{}, fmt.Errorf("dimension position path must not be empty")
	}
	if zeroState == "" {
		zeroState = path[0]
	}
	if !strings.EqualFold(path[0], zeroState) {
		return DimensionPosition{}, fmt.Errorf("path root %q does not match zero state %q", path[0], zeroState)
	}
	if depth < 0 {
		return DimensionPosition{}, fmt.Errorf("depth must be non-negative, got %d", depth)
	}
	if depth > 0 && sign == 0 {
		sign = 1
	}
	if depth == 0 && sign != 0 {
		return DimensionPosition{}, fmt.Errorf("sign %d inconsistent with zero depth", sign)
	}

	return DimensionPosition{
		Dimension: dim,
		Sign:      sign,
		Depth:     depth,
		Path:      path,
		ZeroState: zeroState,
	}, nil
}

// Formatted renders the position in human-readable path notation,
// e.g. "+3:SPATIAL/Earth/Europe/France/Paris".
func (p DimensionPosition) Formatted() string {
	sign := ""
	if p.Sign > 0 {
		sign = "+"
	} else if p.Sign < 0 {
		sign = "-"
	}
	return fmt.Sprintf("%s%d:%s/%s", sign, p.Depth, p.Dimension, strings.Join(p.Path, "/"))
}

// IsDescendantOf reports whether label occurs in the path at any position
// before the final (leaf) element. The comparison is case-insensitive.
func (p DimensionPosition) IsDescendantOf(label string) bool {
	if len(p.Path) < 2 {
		return false
	}
	for _, node := range p.Path[:len(p.Path)-1] {
		if strings.EqualFold(node, label) {
			return true
		}
	}
	return false
}

// SharedAncestor returns the deepest common ancestor of two positions: the
// last node of the longest case-insensitive common prefix of their paths.
// When the paths diverge immediately, the zero state is returned.
func (p DimensionPosition) SharedAncestor(other DimensionPosition) string {
	n := commonPrefixLen(p.Path, other.Path)
	if n == 0 {
		return p.ZeroState
	}
	return p.Path[n-1]
}

// HierarchicalDistance returns the tree distance between two positions along
// the shared hierarchy: depth(a) + depth(b) - 2*len(common prefix). It is
// symmetric and zero for identical positions.
func (p DimensionPosition) HierarchicalDistance(other DimensionPosition) int {
	n := commonPrefixLen(p.Path, other.Path)
	d := p.Depth + other.Depth - 2*(n-1)
	if d < 0 {
		// Depths inconsistent with path lengths; clamp rather than report a
		// negative distance.
		return 0
	}
	return d
}

// NavigateTowardZero returns the generalization sequence: the path reversed,
// leaf first, ending at the zero state.
func (p DimensionPosition) NavigateTowardZero() []string {
	out := make([]string, len(p.Path))
	for i, node := range p.Path {
		out[len(p.Path)-1-i] = node
	}
	return out
}

// NavigateFromZero returns a copy of the root-to-leaf path.
func (p DimensionPosition) NavigateFromZero() []string {
	out := make([]string, len(p.Path))
	copy(out, p.Path)
	return out
}

// commonPrefixLen returns the length of the case-insensitive common prefix
// of two paths.
func commonPrefixLen(a, b []string) int {
	n := 0
	for n < len(a) && n < len(b) && strings.EqualFold(a[n], b[n]) {
		n++
	}
	return n
}
