package writeas

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leonardcser/writeas-mcp/internal/logger"
	"github.com/leonardcser/writeas-mcp/internal/metrics"
)

func TestMain(m *testing.M) {
	logger.SetOutput(io.Discard)
	os.Exit(m.Run())
}

// fakeFetcher serves an in-memory collection split into API-sized pages.
type fakeFetcher struct {
	mu        sync.Mutex
	posts     map[string][]Post // alias -> posts, newest first
	failPages map[int]bool
	pageCalls []int
	slugCalls int
	idCalls   int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{posts: map[string][]Post{}, failPages: map[int]bool{}}
}

func (f *fakeFetcher) FetchPage(ctx context.Context, alias string, page int) (*CollectionPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pageCalls = append(f.pageCalls, page)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.failPages[page] {
		return nil, fmt.Errorf("status 500")
	}
	all, ok := f.posts[alias]
	if !ok {
		return nil, ErrNotFound
	}
	start := (page - 1) * PageSize
	end := min(start+PageSize, len(all))
	cp := &CollectionPage{Alias: alias, TotalPosts: len(all)}
	if start < len(all) {
		cp.Posts = append([]Post(nil), all[start:end]...)
	}
	return cp, nil
}

func (f *fakeFetcher) FetchPostBySlug(ctx context.Context, alias, slug string) (*Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.slugCalls++
	for _, p := range f.posts[alias] {
		if p.Slug == slug {
			return &p, nil
		}
	}
	return nil, ErrNotFound
}

func (f *fakeFetcher) FetchPostByID(ctx context.Context, id string) (*Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.idCalls++
	for _, posts := range f.posts {
		for _, p := range posts {
			if p.ID == id {
				return &p, nil
			}
		}
	}
	return nil, ErrNotFound
}

func (f *fakeFetcher) calls() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.pageCalls...)
}

// makePosts returns n posts newest first, like the API.
func makePosts(alias string, n int) []Post {
	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	posts := make([]Post, n)
	for i := range posts {
		posts[i] = Post{
			ID:      fmt.Sprintf("%s-id-%02d", alias, i),
			Slug:    fmt.Sprintf("post-%02d", i),
			Title:   fmt.Sprintf("Post %02d", i),
			Body:    "Some body text",
			Created: base.Add(-time.Duration(i) * 24 * time.Hour),
		}
	}
	return posts
}

func TestGetAllPosts_AggregatesPagesInOrder(t *testing.T) {
	f := newFakeFetcher()
	f.posts["alice"] = makePosts("alice", 25)
	c := NewClient(f, Options{})
	defer c.Close()

	posts, err := c.GetAllPosts(context.Background(), "alice", Descending)
	require.NoError(t, err)
	require.Len(t, posts, 25)
	assert.Equal(t, []int{1, 2, 3}, f.calls())
	assert.Equal(t, f.posts["alice"], posts)
}

func TestGetAllPosts_SinglePageNoExtraFetch(t *testing.T) {
	f := newFakeFetcher()
	f.posts["bob"] = makePosts("bob", 7)
	c := NewClient(f, Options{})
	defer c.Close()

	posts, err := c.GetAllPosts(context.Background(), "bob", Descending)
	require.NoError(t, err)
	assert.Len(t, posts, 7)
	assert.Equal(t, []int{1}, f.calls())
}

func TestGetAllPosts_EmptyCollection(t *testing.T) {
	f := newFakeFetcher()
	f.posts["empty"] = nil
	c := NewClient(f, Options{})
	defer c.Close()

	posts, err := c.GetAllPosts(context.Background(), "empty", Descending)
	require.NoError(t, err)
	assert.Empty(t, posts)
	assert.Equal(t, []int{1}, f.calls())
}

func TestGetAllPosts_CachedAcrossSortOrders(t *testing.T) {
	f := newFakeFetcher()
	f.posts["alice"] = makePosts("alice", 12)
	c := NewClient(f, Options{})
	defer c.Close()
	ctx := context.Background()

	desc, err := c.GetAllPosts(ctx, "alice", Descending)
	require.NoError(t, err)
	asc, err := c.GetAllPosts(ctx, "alice", Ascending)
	require.NoError(t, err)
	desc2, err := c.GetAllPosts(ctx, "alice", Descending)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2}, f.calls())
	assert.Equal(t, desc, desc2)
	require.Len(t, asc, 12)
	for i := 1; i < len(asc); i++ {
		assert.False(t, asc[i].Created.Before(asc[i-1].Created))
	}
	assert.Equal(t, desc[0], asc[len(asc)-1])
}

func TestGetAllPosts_FailedPageDegradesSilently(t *testing.T) {
	f := newFakeFetcher()
	f.posts["alice"] = makePosts("alice", 25)
	f.failPages[2] = true
	c := NewClient(f, Options{})
	defer c.Close()
	ctx := context.Background()

	posts, err := c.GetAllPosts(ctx, "alice", Descending)
	require.NoError(t, err)
	require.Len(t, posts, 15)
	assert.Equal(t, f.posts["alice"][:10], posts[:10])
	assert.Equal(t, f.posts["alice"][20:], posts[10:])

	// the partial aggregate is cached
	again, err := c.GetAllPosts(ctx, "alice", Descending)
	require.NoError(t, err)
	assert.Len(t, again, 15)
	assert.Equal(t, []int{1, 2, 3}, f.calls())
}

func TestGetAllPosts_FirstPageFailureCachesEmptyResult(t *testing.T) {
	f := newFakeFetcher()
	c := NewClient(f, Options{})
	defer c.Close()
	ctx := context.Background()

	posts, err := c.GetAllPosts(ctx, "ghost", Descending)
	require.NoError(t, err)
	assert.Empty(t, posts)

	f.posts["ghost"] = makePosts("ghost", 3)
	posts, err = c.GetAllPosts(ctx, "ghost", Descending)
	require.NoError(t, err)
	assert.Empty(t, posts)
	assert.Equal(t, []int{1}, f.calls())
}

func TestGetAllPosts_FirstPageFailureStrict(t *testing.T) {
	f := newFakeFetcher()
	c := NewClient(f, Options{StrictPaging: true})
	defer c.Close()
	ctx := context.Background()

	_, err := c.GetAllPosts(ctx, "ghost", Descending)
	var pageErr *PageError
	require.ErrorAs(t, err, &pageErr)
	assert.Equal(t, 1, pageErr.Page)

	f.posts["ghost"] = makePosts("ghost", 3)
	posts, err := c.GetAllPosts(ctx, "ghost", Descending)
	require.NoError(t, err)
	assert.Len(t, posts, 3)
}

// inflatedFetcher reports a total far beyond what the collection holds.
type inflatedFetcher struct {
	*fakeFetcher
	total int
}

func (f *inflatedFetcher) FetchPage(ctx context.Context, alias string, page int) (*CollectionPage, error) {
	cp, err := f.fakeFetcher.FetchPage(ctx, alias, page)
	if cp != nil {
		cp.TotalPosts = f.total
	}
	return cp, err
}

func TestGetAllPosts_HugeReportedTotalIsCapped(t *testing.T) {
	for _, concurrency := range []int{1, 8} {
		f := &inflatedFetcher{fakeFetcher: newFakeFetcher(), total: 1 << 50}
		f.posts["alice"] = makePosts("alice", 10)
		c := NewClient(f, Options{PageConcurrency: concurrency})

		var posts []Post
		require.NotPanics(t, func() {
			var err error
			posts, err = c.GetAllPosts(context.Background(), "alice", Descending)
			require.NoError(t, err)
		})
		assert.Len(t, posts, 10)
		assert.Len(t, f.calls(), MaxPages, "concurrency=%d", concurrency)
		require.NoError(t, c.Close())
	}
}

func TestGetAllPosts_StrictPaging(t *testing.T) {
	f := newFakeFetcher()
	f.posts["alice"] = makePosts("alice", 25)
	f.failPages[3] = true
	c := NewClient(f, Options{StrictPaging: true})
	defer c.Close()

	posts, err := c.GetAllPosts(context.Background(), "alice", Descending)
	assert.Nil(t, posts)
	var pe *PageError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "alice", pe.Alias)
	assert.Equal(t, 3, pe.Page)

	// nothing cached: the next call fetches again
	f.failPages[3] = false
	posts, err = c.GetAllPosts(context.Background(), "alice", Descending)
	require.NoError(t, err)
	assert.Len(t, posts, 25)
}

func TestGetAllPosts_ConcurrentPagingKeepsPageOrder(t *testing.T) {
	f := newFakeFetcher()
	f.posts["big"] = makePosts("big", 95)
	c := NewClient(f, Options{PageConcurrency: 4})
	defer c.Close()

	posts, err := c.GetAllPosts(context.Background(), "big", Descending)
	require.NoError(t, err)
	assert.Equal(t, f.posts["big"], posts)
	assert.ElementsMatch(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, f.calls())
}

func TestGetAllPosts_ConcurrentStrictPaging(t *testing.T) {
	f := newFakeFetcher()
	f.posts["big"] = makePosts("big", 45)
	f.failPages[4] = true
	c := NewClient(f, Options{PageConcurrency: 3, StrictPaging: true})
	defer c.Close()

	_, err := c.GetAllPosts(context.Background(), "big", Descending)
	var pe *PageError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 4, pe.Page)
}

func TestGetAllPosts_CanceledContext(t *testing.T) {
	f := newFakeFetcher()
	f.posts["alice"] = makePosts("alice", 5)
	c := NewClient(f, Options{})
	defer c.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.GetAllPosts(ctx, "alice", Descending)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGetPostsByPageNumber_ConditionalCacheWrite(t *testing.T) {
	f := newFakeFetcher()
	f.posts["alice"] = makePosts("alice", 25)
	c := NewClient(f, Options{})
	defer c.Close()
	ctx := context.Background()

	_, err := c.GetPostsByPageNumber(ctx, "alice", 2, Descending, false)
	require.NoError(t, err)
	_, err = c.GetPostsByPageNumber(ctx, "alice", 2, Descending, false)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2}, f.calls())

	page, err := c.GetPostsByPageNumber(ctx, "alice", 2, Descending, true)
	require.NoError(t, err)
	again, err := c.GetPostsByPageNumber(ctx, "alice", 2, Descending, true)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2, 2}, f.calls())
	assert.Equal(t, page, again)
	assert.Equal(t, f.posts["alice"][10:20], page)
}

func TestGetPostsByPageNumber_SavedPageReusedByAggregation(t *testing.T) {
	f := newFakeFetcher()
	f.posts["alice"] = makePosts("alice", 25)
	c := NewClient(f, Options{})
	defer c.Close()
	ctx := context.Background()

	_, err := c.GetPostsByPageNumber(ctx, "alice", 2, Descending, true)
	require.NoError(t, err)
	posts, err := c.GetAllPosts(ctx, "alice", Descending)
	require.NoError(t, err)
	assert.Len(t, posts, 25)
	assert.Equal(t, []int{2, 1, 3}, f.calls())
}

func TestGetPostsByPageNumber_SortAndFailure(t *testing.T) {
	f := newFakeFetcher()
	f.posts["alice"] = makePosts("alice", 10)
	f.failPages[5] = true
	c := NewClient(f, Options{})
	defer c.Close()
	ctx := context.Background()

	asc, err := c.GetPostsByPageNumber(ctx, "alice", 1, Ascending, false)
	require.NoError(t, err)
	assert.Equal(t, f.posts["alice"][9], asc[0])

	failed, err := c.GetPostsByPageNumber(ctx, "alice", 5, Descending, true)
	require.NoError(t, err)
	assert.NotNil(t, failed)
	assert.Empty(t, failed)
}

func TestGetPostBySlug_CachesByKey(t *testing.T) {
	f := newFakeFetcher()
	f.posts["alice"] = makePosts("alice", 3)
	c := NewClient(f, Options{})
	defer c.Close()
	ctx := context.Background()

	p1, err := c.GetPostBySlug(ctx, "alice", "post-01")
	require.NoError(t, err)
	require.NotNil(t, p1)
	p2, err := c.GetPostBySlug(ctx, "alice", "post-01")
	require.NoError(t, err)

	assert.Equal(t, p1, p2)
	assert.Equal(t, 1, f.slugCalls)
	assert.Equal(t, "GetPostBySlug:alice:post-01", slugKey("alice", "post-01"))
}

func TestGetPostBySlug_NotFoundIsAbsent(t *testing.T) {
	f := newFakeFetcher()
	f.posts["alice"] = makePosts("alice", 3)
	c := NewClient(f, Options{})
	defer c.Close()

	p, err := c.GetPostBySlug(context.Background(), "alice", "nope")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestGetPostByID(t *testing.T) {
	f := newFakeFetcher()
	f.posts["alice"] = makePosts("alice", 3)
	c := NewClient(f, Options{})
	defer c.Close()
	ctx := context.Background()

	p, err := c.GetPostByID(ctx, "alice-id-02")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "post-02", p.Slug)

	_, err = c.GetPostByID(ctx, "alice-id-02")
	require.NoError(t, err)
	assert.Equal(t, 1, f.idCalls)

	missing, err := c.GetPostByID(ctx, "nonexistent")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

type erroringFetcher struct{ fakeFetcher }

func (e *erroringFetcher) FetchPostByID(ctx context.Context, id string) (*Post, error) {
	return nil, errors.New("connection reset")
}

func TestGetPostByID_TransportFailureIsAbsent(t *testing.T) {
	rec := metrics.New()
	c := NewClient(&erroringFetcher{}, Options{Metrics: rec})
	defer c.Close()

	p, err := c.GetPostByID(context.Background(), "abc")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestCachedValuesAreIsolatedFromCallers(t *testing.T) {
	f := newFakeFetcher()
	f.posts["alice"] = makePosts("alice", 3)
	c := NewClient(f, Options{})
	defer c.Close()
	ctx := context.Background()

	posts, err := c.GetAllPosts(ctx, "alice", Descending)
	require.NoError(t, err)
	posts[0].Title = "mutated"

	again, err := c.GetAllPosts(ctx, "alice", Descending)
	require.NoError(t, err)
	assert.Equal(t, "Post 00", again[0].Title)
}

func TestCacheCapacityEvictsOldestResult(t *testing.T) {
	f := newFakeFetcher()
	for _, a := range []string{"a", "b", "c"} {
		f.posts[a] = makePosts(a, 2)
	}
	c := NewClient(f, Options{CacheSize: 2})
	defer c.Close()
	ctx := context.Background()

	for _, a := range []string{"a", "b", "c", "a"} {
		_, err := c.GetAllPosts(ctx, a, Descending)
		require.NoError(t, err)
	}
	// "a" was evicted by "c" and had to be fetched again
	assert.Equal(t, []int{1, 1, 1, 1}, f.calls())
}

func TestSearch(t *testing.T) {
	f := newFakeFetcher()
	posts := makePosts("demo", 4)
	posts[0].Body = "Hello World"
	posts[1].Title = "Launch day"
	posts[2].Title = ""
	posts[2].Body = "nothing to see"
	posts[3].Body = "we will LAUNCH soon"
	f.posts["demo"] = posts
	c := NewClient(f, Options{})
	defer c.Close()
	ctx := context.Background()

	hello, err := c.Search(ctx, "demo", "hello", Descending)
	require.NoError(t, err)
	require.Len(t, hello, 1)
	assert.Equal(t, "post-00", hello[0].Slug)

	launch, err := c.Search(ctx, "demo", "launch", Descending)
	require.NoError(t, err)
	require.Len(t, launch, 2)
	assert.Equal(t, "post-01", launch[0].Slug)
	assert.Equal(t, "post-03", launch[1].Slug)

	asc, err := c.Search(ctx, "demo", "launch", Ascending)
	require.NoError(t, err)
	require.Len(t, asc, 2)
	assert.Equal(t, "post-03", asc[0].Slug)

	none, err := c.Search(ctx, "demo", "zebra", Descending)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	assert.Equal(t, []int{1}, f.calls())
}

func TestEndToEndDemo(t *testing.T) {
	f := newFakeFetcher()
	posts := makePosts("demo", 12)
	posts[3].Title = "Product Launch"
	posts[11].Body = "post-launch notes"
	f.posts["demo"] = posts
	rec := metrics.New()
	c := NewClient(f, Options{Metrics: rec})
	defer c.Close()
	ctx := context.Background()

	all, err := c.GetAllPosts(ctx, "demo", Descending)
	require.NoError(t, err)
	assert.Equal(t, posts, all)
	assert.Equal(t, []int{1, 2}, f.calls())

	_, ok := c.cache.Get(allPostsKey("demo"))
	assert.True(t, ok)

	found, err := c.Search(ctx, "demo", "launch", Descending)
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "post-03", found[0].Slug)
	assert.Equal(t, "post-11", found[1].Slug)
	assert.Equal(t, []int{1, 2}, f.calls())
}

func TestClose_Idempotent(t *testing.T) {
	c := NewClient(newFakeFetcher(), Options{})
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}
