package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/wikipath-crawler/internal/crawler"
)

const wiki = "https://en.wikipedia.org/wiki/"

func ref(name string) crawler.ArticleRef {
	return crawler.NewArticleRef(wiki + name)
}

func TestPathStoreLifecycle(t *testing.T) {
	t.Parallel()

	store := NewPathStore("Seeded")
	ctx := crawler.WithJobID(context.Background(), "job-1")

	id, err := store.Store(ctx, crawler.PathOf(ref("Physics"), ref("Natural_science")), crawler.DeadEnd(1))
	require.NoError(t, err)
	assert.Equal(t, "1", id)

	id2, err := store.Store(context.Background(), crawler.PathOf(ref("Physics"), ref("Philosophy")), crawler.Completed(1))
	require.NoError(t, err)
	assert.Equal(t, "2", id2)
	assert.Equal(t, 2, store.Len())

	got, ok := store.Get("1")
	require.True(t, ok)
	assert.Equal(t, "job-1", got.JobID)
	assert.Equal(t, crawler.OutcomeDeadEnd, got.Outcome.Kind)
	assert.Equal(t, []string{"Physics", "Natural science"}, got.Path.Titles())

	_, ok = store.Get("missing")
	assert.False(t, ok)

	titles, err := store.LoadExistingTitles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"Seeded", "Physics", "Natural science", "Philosophy"}, titles)

	paths := store.Paths()
	paths[0].ID = "modified"
	assert.Equal(t, "1", store.Paths()[0].ID)
}

func TestPathStoreRejectsEmptyPath(t *testing.T) {
	t.Parallel()

	_, err := NewPathStore().Store(context.Background(), crawler.Path{}, crawler.DeadEnd(0))
	require.Error(t, err)
}

func TestPathStoreSizeGrows(t *testing.T) {
	t.Parallel()

	store := NewPathStore()
	size, err := store.CurrentSizeGB(context.Background())
	require.NoError(t, err)
	assert.Zero(t, size)

	_, err = store.Store(context.Background(), crawler.PathOf(ref("A"), ref("B")), crawler.DeadEnd(1))
	require.NoError(t, err)
	first, err := store.CurrentSizeGB(context.Background())
	require.NoError(t, err)
	assert.Positive(t, first)

	_, err = store.Store(context.Background(), crawler.PathOf(ref("C")), crawler.DeadEnd(0))
	require.NoError(t, err)
	second, err := store.CurrentSizeGB(context.Background())
	require.NoError(t, err)
	assert.Greater(t, second, first)
}

func TestPathStoreConcurrentStores(t *testing.T) {
	t.Parallel()

	store := NewPathStore()
	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Store(context.Background(), crawler.PathOf(ref("A")), crawler.DeadEnd(0))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, store.Len())

	titles, err := store.LoadExistingTitles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, titles)
}
