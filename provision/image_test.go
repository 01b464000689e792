package provision

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tnqbao/gau-compute-dispatcher/entity"
)

type fakeCatalog struct {
	mu       sync.Mutex
	images   []entity.CatalogImage
	err      error
	calls    int
	criteria []entity.ImageCriteria
}

func (f *fakeCatalog) DescribeImages(_ context.Context, criteria entity.ImageCriteria) ([]entity.CatalogImage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.criteria = append(f.criteria, criteria)
	return f.images, f.err
}

func TestSelectNewestPicksLatestTimestamp(t *testing.T) {
	images := []entity.CatalogImage{
		{ID: "ami-old", CreationDate: "2023-01-10T08:00:00.000Z"},
		{ID: "ami-new", CreationDate: "2024-06-01T12:30:00.000Z"},
		{ID: "ami-mid", CreationDate: "2023-11-20T00:00:00.000Z"},
	}

	got, err := SelectNewest(images)
	require.NoError(t, err)
	assert.Equal(t, "ami-new", got.ID)
	assert.Equal(t, 2024, got.CreatedAt.Year())
}

func TestSelectNewestIgnoresUndated(t *testing.T) {
	images := []entity.CatalogImage{
		{ID: "ami-undated", CreationDate: ""},
		{ID: "ami-garbage", CreationDate: "yesterday"},
		{ID: "ami-dated", CreationDate: "2022-02-02T02:02:02Z"},
	}

	got, err := SelectNewest(images)
	require.NoError(t, err)
	assert.Equal(t, "ami-dated", got.ID)
}

func TestSelectNewestTieBreaksOnSmallestID(t *testing.T) {
	ts := "2024-03-03T03:03:03.000Z"
	orders := [][]entity.CatalogImage{
		{{ID: "ami-b", CreationDate: ts}, {ID: "ami-a", CreationDate: ts}, {ID: "ami-c", CreationDate: ts}},
		{{ID: "ami-c", CreationDate: ts}, {ID: "ami-b", CreationDate: ts}, {ID: "ami-a", CreationDate: ts}},
		{{ID: "ami-a", CreationDate: ts}, {ID: "ami-c", CreationDate: ts}, {ID: "ami-b", CreationDate: ts}},
	}
	for _, images := range orders {
		got, err := SelectNewest(images)
		require.NoError(t, err)
		assert.Equal(t, "ami-a", got.ID)
	}
}

func TestSelectNewestErrors(t *testing.T) {
	_, err := SelectNewest(nil)
	assert.ErrorIs(t, err, entity.ErrNoMatchingImage)

	_, err = SelectNewest([]entity.CatalogImage{{ID: "ami-1"}, {ID: "ami-2", CreationDate: "not a date"}})
	assert.ErrorIs(t, err, entity.ErrNoDatedImage)
}

func TestResolverQueriesCatalogEveryCall(t *testing.T) {
	catalog := &fakeCatalog{images: []entity.CatalogImage{{ID: "ami-1", CreationDate: "2024-01-01T00:00:00Z"}}}
	criteria := entity.ImageCriteria{NamePattern: "ubuntu/*", Architecture: "x86_64", PublisherID: "099720109477"}
	r := NewResolver(catalog)

	for i := 0; i < 2; i++ {
		got, err := r.Resolve(context.Background(), criteria)
		require.NoError(t, err)
		assert.Equal(t, "ami-1", got.ID)
	}
	assert.Equal(t, 2, catalog.calls)
	assert.Equal(t, criteria, catalog.criteria[0])
}

func TestResolverWrapsCatalogError(t *testing.T) {
	boom := errors.New("throttled")
	r := NewResolver(&fakeCatalog{err: boom})

	_, err := r.Resolve(context.Background(), entity.ImageCriteria{})
	assert.ErrorIs(t, err, boom)
}
