// Package ingestion loads knowledge datasets into a store backend.
package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/verigraph/verigraph/internal/embeddings"
	"github.com/verigraph/verigraph/internal/entity"
	"github.com/verigraph/verigraph/internal/store"
)

// PipelineResult summarizes a pipeline run.
type PipelineResult struct {
	Entities     int
	Links        int
	Anchors      int
	Embeddings   int
	DurationSecs float64
}

// ProgressCallback is called with phase name and progress (0.0-1.0).
type ProgressCallback func(phase string, progress float64)

// RunPipeline loads the dataset at datasetPath into the backend, replacing
// its previous contents, and optionally builds TF-IDF embeddings for every
// entity.
func RunPipeline(
	ctx context.Context,
	datasetPath string,
	backend store.Backend,
	buildEmbeddings bool,
	progress ProgressCallback,
) (*PipelineResult, error) {
	start := time.Now()
	result := &PipelineResult{}

	// Phase 1: Load and validate
	if progress != nil {
		progress("Loading dataset", 0.0)
	}
	ds, err := store.LoadDataset(datasetPath)
	if err != nil {
		return nil, err
	}
	result.Entities = len(ds.Entities)
	result.Links = len(ds.Links)
	result.Anchors = len(ds.Anchors)
	if progress != nil {
		progress("Loading dataset", 1.0)
	}

	// Phase 2: Bulk load
	if progress != nil {
		progress("Loading entities", 0.0)
	}
	if err := backend.BulkLoad(ctx, ds); err != nil {
		return nil, fmt.Errorf("loading dataset into store: %w", err)
	}
	if progress != nil {
		progress("Loading entities", 1.0)
	}

	// Phase 3: Embeddings
	if buildEmbeddings {
		if progress != nil {
			progress("Building embeddings", 0.0)
		}
		count, err := buildEntityEmbeddings(ctx, ds, backend, progress)
		if err != nil {
			return nil, err
		}
		result.Embeddings = count
		if progress != nil {
			progress("Building embeddings", 1.0)
		}
	}

	result.DurationSecs = time.Since(start).Seconds()
	return result, nil
}

// buildEntityEmbeddings embeds every entity in the dataset and stores the
// vectors.
func buildEntityEmbeddings(ctx context.Context, ds *store.Dataset, backend store.Backend, progress ProgressCallback) (int, error) {
	profiles := make([]*entity.Profile, 0, len(ds.Entities))
	for _, rec := range ds.Entities {
		profile, err := backend.Get(ctx, rec.ID)
		if err != nil {
			return 0, fmt.Errorf("loading profile %s: %w", rec.ID, err)
		}
		if profile != nil {
			profiles = append(profiles, profile)
		}
	}
	if len(profiles) == 0 {
		return 0, nil
	}

	embedder := embeddings.NewTFIDFEmbedder()
	vectors := embedder.EmbedProfiles(profiles)

	batch := make([]store.EntityEmbedding, len(profiles))
	for i, profile := range profiles {
		batch[i] = store.EntityEmbedding{
			EntityID:  profile.Entity.ID,
			Embedding: vectors[i],
		}
	}

	if err := backend.StoreEmbeddings(ctx, batch); err != nil {
		return 0, fmt.Errorf("storing embeddings: %w", err)
	}
	return len(batch), nil
}
