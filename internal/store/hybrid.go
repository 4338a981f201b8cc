package store

import (
	"context"
	"math"
	"sort"
)

// rrfConstant is the standard Reciprocal Rank Fusion constant.
const rrfConstant = 60

// FuseSearch combines FTS and vector search using Reciprocal Rank Fusion.
// k is the RRF constant (typically 60). Either leg may fail or be empty; the
// other still contributes.
func FuseSearch(ctx context.Context, backend Backend, query string, queryVector []float32, limit, k int) ([]HybridSearchResult, error) {
	ftsResults, err := backend.FTSSearch(ctx, query, limit*2)
	if err != nil {
		ftsResults = []SearchResult{}
	}

	var vectorResults []SearchResult
	if len(queryVector) > 0 {
		vectorResults, err = backend.VectorSearch(ctx, queryVector, limit*2)
		if err != nil {
			vectorResults = []SearchResult{}
		}
	}

	rrfScores := make(map[string]float64)
	metadata := make(map[string]SearchResult)

	for i, result := range ftsResults {
		rrfScores[result.EntityID] += 1.0 / float64(k+i)
		if _, exists := metadata[result.EntityID]; !exists {
			metadata[result.EntityID] = result
		}
	}

	for i, result := range vectorResults {
		rrfScores[result.EntityID] += 1.0 / float64(k+i)
		if _, exists := metadata[result.EntityID]; !exists {
			metadata[result.EntityID] = result
		}
	}

	results := make([]HybridSearchResult, 0, len(rrfScores))
	for id, score := range rrfScores {
		meta := metadata[id]
		results = append(results, HybridSearchResult{
			EntityID:    id,
			Score:       score,
			Label:       meta.Label,
			Description: meta.Description,
		})
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

// CosineSimilarity computes the cosine similarity between two vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i] * b[i])
		normA += float64(a[i] * a[i])
		normB += float64(b[i] * b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
