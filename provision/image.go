package provision

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/tnqbao/gau-compute-dispatcher/entity"
)

// ImageCatalog lists the images visible to the caller that match every field of criteria.
type ImageCatalog interface {
	DescribeImages(ctx context.Context, criteria entity.ImageCriteria) ([]entity.CatalogImage, error)
}

type Resolver struct {
	catalog ImageCatalog
}

func NewResolver(catalog ImageCatalog) *Resolver {
	return &Resolver{catalog: catalog}
}

// Resolve returns the newest dated image matching criteria. Candidates are
// fetched on every call. Equal timestamps resolve to the smallest image id.
func (r *Resolver) Resolve(ctx context.Context, criteria entity.ImageCriteria) (entity.ImageCandidate, error) {
	images, err := r.catalog.DescribeImages(ctx, criteria)
	if err != nil {
		return entity.ImageCandidate{}, fmt.Errorf("failed to describe images: %w", err)
	}
	return SelectNewest(images)
}

// SelectNewest applies the resolution rule to an already-fetched image set.
func SelectNewest(images []entity.CatalogImage) (entity.ImageCandidate, error) {
	if len(images) == 0 {
		return entity.ImageCandidate{}, entity.ErrNoMatchingImage
	}

	dated := make([]entity.ImageCandidate, 0, len(images))
	for _, img := range images {
		created, ok := parseCreationDate(img.CreationDate)
		if !ok || img.ID == "" {
			continue
		}
		dated = append(dated, entity.ImageCandidate{ID: img.ID, CreatedAt: created})
	}
	if len(dated) == 0 {
		return entity.ImageCandidate{}, entity.ErrNoDatedImage
	}

	sort.Slice(dated, func(i, j int) bool {
		if !dated[i].CreatedAt.Equal(dated[j].CreatedAt) {
			return dated[i].CreatedAt.After(dated[j].CreatedAt)
		}
		return dated[i].ID < dated[j].ID
	})
	return dated[0], nil
}

// parseCreationDate treats empty and unparseable dates as undated.
func parseCreationDate(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
