package claims

import (
	"context"
	"strings"

	"github.com/verigraph/verigraph/internal/entity"
	"github.com/verigraph/verigraph/internal/store"
)

// Store is the graph access claim handling needs. All store backends
// satisfy it.
type Store interface {
	Get(ctx context.Context, id string) (*entity.Profile, error)
	Search(ctx context.Context, text string, limit, minVital int) ([]*entity.Profile, error)
	SearchExact(ctx context.Context, text string, limit int) ([]*entity.Profile, error)
	GetRelated(ctx context.Context, id, relation string, dir store.Direction, limit int) ([]store.Related, error)
	GetAnchors(ctx context.Context, id string) ([]entity.AnchorEdge, error)
	GetAnchorMembers(ctx context.Context, anchorID int64, limit int) ([]store.AnchorMember, error)
}

// Grounder resolves text mentions to entities. Exact label matches are
// preferred over fuzzy ones; within each, the store's importance ranking
// decides.
type Grounder struct {
	store Store
}

// NewGrounder creates a grounder backed by the given store.
func NewGrounder(s Store) *Grounder {
	return &Grounder{store: s}
}

// articles are stripped from the front of a mention before lookup.
var articles = []string{"the ", "a ", "an ", "The ", "A ", "An "}

// Ground resolves a mention to its best entity, or nil when nothing in the
// store matches.
func (g *Grounder) Ground(ctx context.Context, mention string) (*entity.Profile, error) {
	normalized := strings.TrimSpace(mention)
	for _, article := range articles {
		if strings.HasPrefix(normalized, article) {
			normalized = normalized[len(article):]
			break
		}
	}

	variants := []string{mention, normalized, titleCase(normalized)}
	if mention != normalized {
		variants = []string{normalized, titleCase(normalized), mention}
	}

	for _, variant := range variants {
		results, err := g.store.SearchExact(ctx, variant, 5)
		if err != nil {
			return nil, err
		}
		if len(results) > 0 {
			return results[0], nil
		}

		results, err = g.store.Search(ctx, variant, 5, 0)
		if err != nil {
			return nil, err
		}
		if len(results) > 0 {
			return results[0], nil
		}
	}
	return nil, nil
}

// titleCase uppercases the first letter of each space-separated word.
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
