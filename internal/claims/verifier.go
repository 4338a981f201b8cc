package claims

import (
	"context"
	"fmt"
	"strings"

	"github.com/verigraph/verigraph/internal/entity"
	"github.com/verigraph/verigraph/internal/spreading"
	"github.com/verigraph/verigraph/internal/store"
)

// Status is the outcome of verifying a claim.
type Status string

const (
	// StatusSupported means the claim matches stored knowledge.
	StatusSupported Status = "supported"

	// StatusContradicted means the claim conflicts with stored knowledge.
	StatusContradicted Status = "contradicted"

	// StatusUnverifiable means the store holds too little to judge.
	StatusUnverifiable Status = "unverifiable"

	// StatusPlausible means the claim is consistent with the store but not
	// directly supported.
	StatusPlausible Status = "plausible"
)

// ConfidenceThreshold is the minimum confidence for a supported or
// contradicted verdict to stand. Below it the effective status degrades to
// unverifiable, trading recall for zero false positives.
const ConfidenceThreshold = 0.6

// Result is the outcome of verifying one claim.
type Result struct {
	Claim      string
	Status     Status
	Type       ClaimType
	Confidence float64

	Subject *entity.Profile
	Object  *entity.Profile

	Supporting    []string
	Contradicting []string

	// Correction states the stored fact when the claim is contradicted.
	Correction string
}

// Confident reports whether the confidence clears ConfidenceThreshold.
func (r *Result) Confident() bool {
	return r.Confidence >= ConfidenceThreshold
}

// EffectiveStatus demotes under-confident supported/contradicted verdicts to
// unverifiable.
func (r *Result) EffectiveStatus() Status {
	if (r.Status == StatusSupported || r.Status == StatusContradicted) && !r.Confident() {
		return StatusUnverifiable
	}
	return r.Status
}

var statusMarks = map[Status]string{
	StatusSupported:    "✓",
	StatusContradicted: "✗",
	StatusUnverifiable: "?",
	StatusPlausible:    "~",
}

func (r *Result) String() string {
	s := fmt.Sprintf("[%s] %s", statusMarks[r.EffectiveStatus()], r.Claim)
	if !r.Confident() {
		s += fmt.Sprintf(" (conf=%.2f)", r.Confidence)
	}
	return s
}

// claimToRelations maps claim verbs to the graph relations that can carry
// them, including ConceptNet-style CamelCase names.
var claimToRelations = map[string][]string{
	"created":    {"creator_of", "created", "invented", "RelatedTo"},
	"wrote":      {"author_of", "wrote", "RelatedTo"},
	"invented":   {"inventor_of", "invented", "created", "RelatedTo"},
	"discovered": {"discoverer_of", "discovered", "RelatedTo"},
	"founded":    {"founder_of", "founded", "RelatedTo"},
	"built":      {"builder_of", "built", "constructed", "RelatedTo"},
	"capital":    {"capital_of", "AtLocation", "PartOf"},
	"located":    {"located_in", "part_of", "AtLocation", "PartOf"},
}

// locationRelations are the normalized relation names that express
// containment.
var locationRelations = map[string]bool{
	"atlocation": true,
	"partof":     true,
	"locatedin":  true,
	"isin":       true,
	"part_of":    true,
	"located_in": true,
	"in":         true,
}

// Verifier checks claims against the knowledge graph.
type Verifier struct {
	store    Store
	grounder *Grounder
	spreader *spreading.Engine
}

// NewVerifier creates a verifier backed by the given store.
func NewVerifier(s Store) *Verifier {
	return &Verifier{
		store:    s,
		grounder: NewGrounder(s),
		spreader: spreading.NewDefault(s),
	}
}

// Verify checks a natural language claim and returns a verdict with evidence.
func (v *Verifier) Verify(ctx context.Context, claim string) (*Result, error) {
	parsed, ok := Parse(claim)
	if !ok {
		return &Result{Claim: claim, Status: StatusUnverifiable}, nil
	}

	subject, err := v.grounder.Ground(ctx, parsed.Subject)
	if err != nil {
		return nil, fmt.Errorf("grounding subject: %w", err)
	}

	var object *entity.Profile
	if parsed.Object != "" {
		object, err = v.grounder.Ground(ctx, parsed.Object)
		if err != nil {
			return nil, fmt.Errorf("grounding object: %w", err)
		}
	}

	if subject == nil {
		return &Result{
			Claim:      claim,
			Status:     StatusUnverifiable,
			Type:       parsed.Type,
			Confidence: 0.3,
		}, nil
	}

	switch parsed.Type {
	case ClaimAttribution:
		return v.verifyAttribution(ctx, claim, parsed, subject, object)
	case ClaimLocation:
		return v.verifyLocation(ctx, claim, parsed, subject, object)
	case ClaimProperty:
		return v.verifyProperty(ctx, claim, parsed, subject)
	default:
		return v.verifyGeneric(ctx, claim, parsed, subject, object)
	}
}

// VerifyBatch checks several claims in order.
func (v *Verifier) VerifyBatch(ctx context.Context, claims []string) ([]*Result, error) {
	results := make([]*Result, 0, len(claims))
	for _, claim := range claims {
		r, err := v.Verify(ctx, claim)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, nil
}

// relationMatcher matches graph relations against a claim verb's relation
// synonyms.
type relationMatcher struct {
	types      []string
	normalized map[string]bool
}

func newRelationMatcher(verb string) relationMatcher {
	types, ok := claimToRelations[strings.ToLower(verb)]
	if !ok {
		types = []string{strings.ToLower(verb)}
	}
	normalized := make(map[string]bool, len(types))
	for _, t := range types {
		normalized[NormalizeRelation(t)] = true
	}
	return relationMatcher{types: types, normalized: normalized}
}

// matches reports whether a stored relation expresses the claim verb.
// The substring check lets "inverse_invented" match "invented".
func (m relationMatcher) matches(rel string, allowGeneric bool) bool {
	norm := NormalizeRelation(rel)
	if m.normalized[norm] {
		return true
	}
	lower := strings.ToLower(rel)
	for _, t := range m.types {
		if strings.Contains(lower, strings.ToLower(t)) {
			return true
		}
	}
	return allowGeneric && norm == "relatedto"
}

func (v *Verifier) verifyAttribution(ctx context.Context, claim string, parsed Parsed, subject, object *entity.Profile) (*Result, error) {
	matcher := newRelationMatcher(parsed.Relation)

	related, err := v.store.GetRelated(ctx, subject.Entity.ID, "", store.DirectionOutgoing, 100)
	if err != nil {
		return nil, fmt.Errorf("loading relations for %s: %w", subject.Entity.ID, err)
	}

	var supporting []string
	for _, rel := range related {
		if !matcher.matches(rel.Relation, true) {
			continue
		}
		objectMatches := (object != nil && rel.Profile.Entity.ID == object.Entity.ID) ||
			strings.Contains(strings.ToLower(rel.Profile.Entity.Label), strings.ToLower(parsed.Object))
		if objectMatches {
			supporting = append(supporting, fmt.Sprintf("%s: %s", rel.Relation, rel.Profile.Entity.Label))
		}
	}

	if len(supporting) > 0 {
		return &Result{
			Claim:      claim,
			Status:     StatusSupported,
			Type:       ClaimAttribution,
			Confidence: 0.9,
			Subject:    subject,
			Object:     object,
			Supporting: supporting,
		}, nil
	}

	// The object may have a different actor on record.
	if object != nil {
		incoming, err := v.store.GetRelated(ctx, object.Entity.ID, "", store.DirectionIncoming, 50)
		if err != nil {
			return nil, fmt.Errorf("loading relations for %s: %w", object.Entity.ID, err)
		}
		for _, rel := range incoming {
			if !matcher.matches(rel.Relation, false) {
				continue
			}
			if rel.Profile.Entity.ID == subject.Entity.ID {
				continue
			}
			return &Result{
				Claim:         claim,
				Status:        StatusContradicted,
				Type:          ClaimAttribution,
				Confidence:    0.85,
				Subject:       subject,
				Object:        object,
				Contradicting: []string{fmt.Sprintf("%s: %s", rel.Relation, rel.Profile.Entity.Label)},
				Correction:    fmt.Sprintf("%s was %s by %s", parsed.Object, parsed.Relation, rel.Profile.Entity.Label),
			}, nil
		}
	}

	return &Result{
		Claim:      claim,
		Status:     StatusUnverifiable,
		Type:       ClaimAttribution,
		Confidence: 0.4,
		Subject:    subject,
		Object:     object,
	}, nil
}

func (v *Verifier) verifyLocation(ctx context.Context, claim string, parsed Parsed, subject, object *entity.Profile) (*Result, error) {
	// The spatial hierarchy is authoritative when it covers the claim.
	if subject.IsDescendantOf(parsed.Object, entity.DimSpatial) {
		var supporting []string
		if pos := subject.Position(entity.DimSpatial); pos != nil {
			supporting = []string{
				fmt.Sprintf("%s hierarchy: %s", entity.DimSpatial, strings.Join(subject.NavigateFromZero(entity.DimSpatial), " > ")),
			}
		}
		return &Result{
			Claim:      claim,
			Status:     StatusSupported,
			Type:       ClaimLocation,
			Confidence: 0.95,
			Subject:    subject,
			Object:     object,
			Supporting: supporting,
		}, nil
	}

	// A spatial position that omits the claimed place is a contradiction.
	if pos := subject.Position(entity.DimSpatial); pos != nil {
		tail := pos.Path
		if len(tail) > 3 {
			tail = tail[len(tail)-3:]
		}
		return &Result{
			Claim:         claim,
			Status:        StatusContradicted,
			Type:          ClaimLocation,
			Confidence:    0.8,
			Subject:       subject,
			Object:        object,
			Contradicting: []string{fmt.Sprintf("%s hierarchy: %s", entity.DimSpatial, strings.Join(pos.Path, " > "))},
			Correction:    fmt.Sprintf("%s is located in %s", subject.Entity.Label, strings.Join(tail, " > ")),
		}, nil
	}

	// No position: fall back to containment relations.
	related, err := v.store.GetRelated(ctx, subject.Entity.ID, "", store.DirectionOutgoing, 50)
	if err != nil {
		return nil, fmt.Errorf("loading relations for %s: %w", subject.Entity.ID, err)
	}
	for _, rel := range related {
		if !locationRelations[NormalizeRelation(rel.Relation)] {
			continue
		}
		if strings.Contains(strings.ToLower(rel.Profile.Entity.Label), strings.ToLower(parsed.Object)) {
			return &Result{
				Claim:      claim,
				Status:     StatusSupported,
				Type:       ClaimLocation,
				Confidence: 0.75,
				Subject:    subject,
				Object:     object,
				Supporting: []string{fmt.Sprintf("%s: %s", rel.Relation, rel.Profile.Entity.Label)},
			}, nil
		}
		if object != nil && rel.Profile.Entity.ID == object.Entity.ID {
			return &Result{
				Claim:      claim,
				Status:     StatusSupported,
				Type:       ClaimLocation,
				Confidence: 0.85,
				Subject:    subject,
				Object:     object,
				Supporting: []string{fmt.Sprintf("%s: %s (exact match)", rel.Relation, rel.Profile.Entity.Label)},
			}, nil
		}
	}

	// Geographic anchors are weak evidence; plausible at best.
	anchors, err := v.store.GetAnchors(ctx, subject.Entity.ID)
	if err != nil {
		return nil, fmt.Errorf("loading anchors for %s: %w", subject.Entity.ID, err)
	}
	for _, edge := range anchors {
		if edge.Anchor.Category != entity.AnchorGeography {
			continue
		}
		if strings.Contains(strings.ToLower(edge.Anchor.Label), strings.ToLower(parsed.Object)) {
			return &Result{
				Claim:      claim,
				Status:     StatusPlausible,
				Type:       ClaimLocation,
				Confidence: 0.6,
				Subject:    subject,
				Object:     object,
				Supporting: []string{fmt.Sprintf("Geographic anchor: %s", edge.Anchor.Label)},
			}, nil
		}
	}

	return &Result{
		Claim:      claim,
		Status:     StatusUnverifiable,
		Type:       ClaimLocation,
		Confidence: 0.3,
		Subject:    subject,
		Object:     object,
	}, nil
}

func (v *Verifier) verifyProperty(ctx context.Context, claim string, parsed Parsed, subject *entity.Profile) (*Result, error) {
	property := parsed.Object

	if subject.IsDescendantOf(property, entity.DimTaxonomic) {
		return &Result{
			Claim:      claim,
			Status:     StatusSupported,
			Type:       ClaimProperty,
			Confidence: 0.9,
			Subject:    subject,
			Supporting: []string{
				fmt.Sprintf("%s hierarchy: %s", entity.DimTaxonomic, strings.Join(subject.NavigateFromZero(entity.DimTaxonomic), " > ")),
			},
		}, nil
	}

	if subject.IsDescendantOf(property, entity.DimDomain) {
		return &Result{
			Claim:      claim,
			Status:     StatusSupported,
			Type:       ClaimProperty,
			Confidence: 0.85,
			Subject:    subject,
			Supporting: []string{
				fmt.Sprintf("%s hierarchy: %s", entity.DimDomain, strings.Join(subject.NavigateFromZero(entity.DimDomain), " > ")),
			},
		}, nil
	}

	if desc := subject.Entity.Description; desc != "" &&
		strings.Contains(strings.ToLower(desc), strings.ToLower(property)) {
		return &Result{
			Claim:      claim,
			Status:     StatusSupported,
			Type:       ClaimProperty,
			Confidence: 0.8,
			Subject:    subject,
			Supporting: []string{fmt.Sprintf("Description: %s", desc)},
		}, nil
	}

	for _, key := range subject.SortedPropertyKeys() {
		value := subject.Properties[key]
		if strings.Contains(strings.ToLower(value), strings.ToLower(property)) {
			return &Result{
				Claim:      claim,
				Status:     StatusSupported,
				Type:       ClaimProperty,
				Confidence: 0.75,
				Subject:    subject,
				Supporting: []string{fmt.Sprintf("%s: %s", key, value)},
			}, nil
		}
	}

	anchors, err := v.store.GetAnchors(ctx, subject.Entity.ID)
	if err != nil {
		return nil, fmt.Errorf("loading anchors for %s: %w", subject.Entity.ID, err)
	}
	for _, edge := range anchors {
		if edge.Anchor.Category != entity.AnchorKnownFor {
			continue
		}
		if strings.Contains(strings.ToLower(edge.Anchor.Label), strings.ToLower(property)) {
			return &Result{
				Claim:      claim,
				Status:     StatusPlausible,
				Type:       ClaimProperty,
				Confidence: 0.65,
				Subject:    subject,
				Supporting: []string{fmt.Sprintf("Known for: %s", edge.Anchor.Label)},
			}, nil
		}
	}

	return &Result{
		Claim:      claim,
		Status:     StatusUnverifiable,
		Type:       ClaimProperty,
		Confidence: 0.3,
		Subject:    subject,
	}, nil
}

func (v *Verifier) verifyGeneric(ctx context.Context, claim string, parsed Parsed, subject, object *entity.Profile) (*Result, error) {
	if object == nil {
		return &Result{
			Claim:      claim,
			Status:     StatusUnverifiable,
			Type:       parsed.Type,
			Confidence: 0.2,
			Subject:    subject,
		}, nil
	}

	results, err := v.spreader.Spread(ctx, subject.Entity.ID, 1.0)
	if err != nil {
		return nil, fmt.Errorf("spreading from %s: %w", subject.Entity.ID, err)
	}

	for _, r := range results {
		if r.Profile.Entity.ID == object.Entity.ID {
			return &Result{
				Claim:      claim,
				Status:     StatusPlausible,
				Type:       parsed.Type,
				Confidence: r.Activation,
				Subject:    subject,
				Object:     object,
				Supporting: []string{fmt.Sprintf("Activation path: %s", strings.Join(r.Path, " -> "))},
			}, nil
		}
	}

	return &Result{
		Claim:      claim,
		Status:     StatusUnverifiable,
		Type:       parsed.Type,
		Confidence: 0.3,
		Subject:    subject,
		Object:     object,
	}, nil
}
