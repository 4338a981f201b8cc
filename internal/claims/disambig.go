package claims

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/verigraph/verigraph/internal/entity"
)

// ContextGrounder disambiguates ambiguous mentions by comparing the semantic
// neighborhood of each candidate against the neighborhood of entities already
// grounded from the surrounding text. Neighborhoods are decomposed layer by
// layer (anchors, then anchors of anchors), and the similarity trajectory
// across layers decides: candidates that keep converging with the context win
// over more popular candidates that diverge.
type ContextGrounder struct {
	store           Store
	maxDepth        int
	anchorsPerLayer int
	trajectoryBase  float64
}

// NewContextGrounder creates a grounder with the standard decomposition
// depth of 2 and 15 anchors per layer.
func NewContextGrounder(s Store) *ContextGrounder {
	return &ContextGrounder{
		store:           s,
		maxDepth:        2,
		anchorsPerLayer: 15,
		trajectoryBase:  0.3,
	}
}

// Context is a multi-layer anchor decomposition of already-grounded
// entities.
type Context struct {
	EntityIDs    map[string]bool
	AnchorLayers []map[string]bool
}

// Candidate is one scored disambiguation candidate.
type Candidate struct {
	Profile    *entity.Profile
	Score      float64
	Trajectory []float64
}

// Disambiguation is the outcome of resolving one mention.
type Disambiguation struct {
	Mention    string
	BestMatch  *entity.Profile
	Confidence float64

	// Trajectory holds the context similarity at each decomposition layer.
	Trajectory []float64

	// TrajectoryDelta is the net similarity change across layers; positive
	// means the candidate converges with the context at depth.
	TrajectoryDelta float64

	Candidates []Candidate
}

// BuildContext resolves terms (or pre-resolved entity IDs) and decomposes
// their anchors into layers.
func (g *ContextGrounder) BuildContext(ctx context.Context, terms []string, entityIDs []string) (*Context, error) {
	ids := make(map[string]bool)
	if len(entityIDs) > 0 {
		for _, id := range entityIDs {
			ids[id] = true
		}
	} else {
		for _, term := range terms {
			results, err := g.store.SearchExact(ctx, term, 1)
			if err != nil {
				return nil, err
			}
			if len(results) == 0 {
				results, err = g.store.Search(ctx, term, 1, 0)
				if err != nil {
					return nil, err
				}
			}
			if len(results) > 0 {
				ids[results[0].Entity.ID] = true
			}
		}
	}

	layer0 := make(map[string]bool)
	for _, id := range sortedKeys(ids) {
		anchors, err := g.store.GetAnchors(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("loading anchors for %s: %w", id, err)
		}
		if len(anchors) > g.anchorsPerLayer {
			anchors = anchors[:g.anchorsPerLayer]
		}
		for _, edge := range anchors {
			layer0[strings.ToLower(edge.Anchor.Label)] = true
		}
	}

	layers := []map[string]bool{layer0}
	for depth := 0; depth < g.maxDepth; depth++ {
		next, err := g.decomposeLayer(ctx, layers[len(layers)-1], g.anchorsPerLayer*2, g.anchorsPerLayer)
		if err != nil {
			return nil, err
		}
		layers = append(layers, next)
	}

	return &Context{EntityIDs: ids, AnchorLayers: layers}, nil
}

// decomposeLayer expands a set of anchor labels into the anchors of the
// entities those labels name.
func (g *ContextGrounder) decomposeLayer(ctx context.Context, prev map[string]bool, labelLimit, subAnchorLimit int) (map[string]bool, error) {
	next := make(map[string]bool)

	labels := sortedKeys(prev)
	if len(labels) > labelLimit {
		labels = labels[:labelLimit]
	}

	for _, label := range labels {
		results, err := g.store.SearchExact(ctx, label, 1)
		if err != nil {
			return nil, err
		}
		if len(results) == 0 {
			continue
		}
		sub, err := g.store.GetAnchors(ctx, results[0].Entity.ID)
		if err != nil {
			return nil, fmt.Errorf("decomposing anchor %q: %w", label, err)
		}
		if len(sub) > subAnchorLimit {
			sub = sub[:subAnchorLimit]
		}
		for _, edge := range sub {
			next[strings.ToLower(edge.Anchor.Label)] = true
		}
	}
	return next, nil
}

// Disambiguate resolves a mention against the context. minConfidence gates
// whether a best match is returned at all.
func (g *ContextGrounder) Disambiguate(ctx context.Context, mention string, gctx *Context, maxCandidates int, minConfidence float64) (*Disambiguation, error) {
	results, err := g.store.SearchExact(ctx, mention, maxCandidates)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		results, err = g.store.Search(ctx, mention, maxCandidates, 0)
		if err != nil {
			return nil, err
		}
	}
	if len(results) == 0 {
		return &Disambiguation{Mention: mention}, nil
	}

	candidates := make([]Candidate, 0, len(results))
	for _, profile := range results {
		baseScore := g.baseScore(mention, profile)
		trajectory, err := g.trajectory(ctx, profile, gctx)
		if err != nil {
			return nil, err
		}
		trajectoryScore, _ := scoreTrajectory(trajectory)

		descScore := 0.0
		if desc := strings.ToLower(profile.Entity.Description); desc != "" {
			for layerIdx, layer := range gctx.AnchorLayers {
				matches := 0
				for anchor := range layer {
					if strings.Contains(desc, anchor) {
						matches++
					}
				}
				descScore += float64(matches) * 0.15 * (1 + float64(layerIdx)*0.2)
			}
		}

		// The less certain the label match, the more the trajectory counts.
		uncertainty := 1.0 - min(baseScore, 1.0)
		influence := g.trajectoryBase + uncertainty*0.7

		total := baseScore*(1.0-influence*0.5) + trajectoryScore*0.4*influence + descScore
		candidates = append(candidates, Candidate{Profile: profile, Score: total, Trajectory: trajectory})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Profile.Entity.ID < candidates[j].Profile.Entity.ID
	})

	out := &Disambiguation{Mention: mention, Candidates: candidates}
	best := candidates[0]
	if best.Score >= minConfidence {
		out.BestMatch = best.Profile
		out.Confidence = min(best.Score, 1.0)
		out.Trajectory = best.Trajectory
		_, out.TrajectoryDelta = scoreTrajectory(best.Trajectory)
	}
	return out, nil
}

// GroundWithContext grounds mentions progressively: unambiguous mentions are
// resolved first and seed the context used to settle the ambiguous rest.
func (g *ContextGrounder) GroundWithContext(ctx context.Context, mentions []string, initialContext []string) (map[string]*Disambiguation, error) {
	results := make(map[string]*Disambiguation, len(mentions))
	grounded := make(map[string]bool)

	if len(initialContext) > 0 {
		c, err := g.BuildContext(ctx, initialContext, nil)
		if err != nil {
			return nil, err
		}
		for id := range c.EntityIDs {
			grounded[id] = true
		}
	}

	var ambiguous []string
	for _, mention := range mentions {
		matches, err := g.store.SearchExact(ctx, mention, 5)
		if err != nil {
			return nil, err
		}
		if len(matches) == 0 {
			matches, err = g.store.Search(ctx, mention, 5, 0)
			if err != nil {
				return nil, err
			}
		}

		switch {
		case len(matches) == 0:
			results[mention] = &Disambiguation{Mention: mention}
		case len(matches) == 1:
			results[mention] = resolved(mention, matches[0])
			grounded[matches[0].Entity.ID] = true
		default:
			exact := exactLabelMatches(mention, matches)
			if len(exact) == 1 {
				results[mention] = resolved(mention, exact[0])
				grounded[exact[0].Entity.ID] = true
			} else {
				ambiguous = append(ambiguous, mention)
			}
		}
	}

	if len(ambiguous) == 0 {
		return results, nil
	}

	if len(grounded) > 0 {
		c, err := g.BuildContext(ctx, nil, sortedKeys(grounded))
		if err != nil {
			return nil, err
		}
		for _, mention := range ambiguous {
			d, err := g.Disambiguate(ctx, mention, c, 20, 0.3)
			if err != nil {
				return nil, err
			}
			results[mention] = d
			if d.BestMatch != nil {
				grounded[d.BestMatch.Entity.ID] = true
			}
		}
		return results, nil
	}

	// No context at all: fall back to the store's importance ranking.
	for _, mention := range ambiguous {
		matches, err := g.store.Search(ctx, mention, 10, 0)
		if err != nil {
			return nil, err
		}
		if len(matches) == 0 {
			results[mention] = &Disambiguation{Mention: mention}
			continue
		}
		d := &Disambiguation{
			Mention:    mention,
			BestMatch:  matches[0],
			Confidence: 0.5,
		}
		for _, m := range matches {
			score := m.Entity.PageRank
			if score == 0 {
				score = 0.5
			}
			d.Candidates = append(d.Candidates, Candidate{Profile: m, Score: score})
		}
		results[mention] = d
	}
	return results, nil
}

// baseScore scores label fit plus an importance boost.
func (g *ContextGrounder) baseScore(mention string, profile *entity.Profile) float64 {
	score := 0.0
	mentionLower := strings.ToLower(mention)
	labelLower := strings.ToLower(profile.Entity.Label)

	switch {
	case labelLower == mentionLower:
		score += 0.5
	case containsWord(labelLower, mentionLower):
		score += 0.4
	case strings.Contains(labelLower, mentionLower):
		score += 0.3
	default:
		score += 0.1
	}

	if profile.Entity.VitalLevel > 0 {
		score += max(0, 1-float64(profile.Entity.VitalLevel)/10) * 0.1
	}
	if profile.Entity.PageRank > 0 {
		score += min(profile.Entity.PageRank*0.5, 0.1)
	}
	return score
}

// trajectory measures context overlap at each decomposition layer.
func (g *ContextGrounder) trajectory(ctx context.Context, profile *entity.Profile, gctx *Context) ([]float64, error) {
	anchors, err := g.store.GetAnchors(ctx, profile.Entity.ID)
	if err != nil {
		return nil, fmt.Errorf("loading anchors for %s: %w", profile.Entity.ID, err)
	}
	if len(anchors) > g.anchorsPerLayer {
		anchors = anchors[:g.anchorsPerLayer]
	}
	layer0 := make(map[string]bool, len(anchors))
	for _, edge := range anchors {
		layer0[strings.ToLower(edge.Anchor.Label)] = true
	}

	candidateLayers := []map[string]bool{layer0}
	for depth := 0; depth < g.maxDepth; depth++ {
		next, err := g.decomposeLayer(ctx, candidateLayers[len(candidateLayers)-1], g.anchorsPerLayer, g.anchorsPerLayer/2)
		if err != nil {
			return nil, err
		}
		candidateLayers = append(candidateLayers, next)
	}

	n := len(gctx.AnchorLayers)
	if len(candidateLayers) < n {
		n = len(candidateLayers)
	}

	var trajectory []float64
	for i := 0; i < n; i++ {
		trajectory = append(trajectory, jaccard(gctx.AnchorLayers[i], candidateLayers[i], trajectory))
	}
	return trajectory, nil
}

// jaccard is set similarity; an empty layer carries the previous value
// forward so a thin deep layer does not read as divergence.
func jaccard(a, b map[string]bool, prev []float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		if len(prev) > 0 {
			return prev[len(prev)-1]
		}
		return 0
	}
	overlap, union := 0, len(b)
	for k := range a {
		if b[k] {
			overlap++
		} else {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(overlap) / float64(union)
}

// scoreTrajectory rewards convergence: later layers weigh more, so a
// candidate whose overlap grows with depth beats one whose overlap fades.
func scoreTrajectory(trajectory []float64) (score, delta float64) {
	if len(trajectory) < 2 {
		if len(trajectory) == 1 {
			return trajectory[0] * 2.0, 0
		}
		return -0.5, 0
	}

	for i := 1; i < len(trajectory); i++ {
		d := trajectory[i] - trajectory[i-1]
		score += d * (1.0 + float64(i)*0.5)
		delta += d
	}
	for i, sim := range trajectory {
		score += sim * (1.0 + float64(i)*0.3)
	}
	return score, delta
}

func resolved(mention string, profile *entity.Profile) *Disambiguation {
	return &Disambiguation{
		Mention:    mention,
		BestMatch:  profile,
		Confidence: 0.9,
		Trajectory: []float64{1.0},
		Candidates: []Candidate{{Profile: profile, Score: 0.9, Trajectory: []float64{1.0}}},
	}
}

func exactLabelMatches(mention string, profiles []*entity.Profile) []*entity.Profile {
	var exact []*entity.Profile
	for _, p := range profiles {
		if strings.EqualFold(p.Entity.Label, mention) {
			exact = append(exact, p)
		}
	}
	return exact
}

func containsWord(haystack, word string) bool {
	for _, w := range strings.Fields(haystack) {
		if w == word {
			return true
		}
	}
	return false
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
