package writeas

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/leonardcser/writeas-mcp/internal/cache"
	"github.com/leonardcser/writeas-mcp/internal/logger"
	"github.com/leonardcser/writeas-mcp/internal/metrics"
)

// Options configures a Client. Zero values select the defaults.
type Options struct {
	// CacheExpiration is the sliding expiration of cached results (default 300s).
	CacheExpiration time.Duration
	// CacheSize is the number of results kept in the cache (default 4).
	CacheSize int
	// PageConcurrency bounds concurrent page fetches while aggregating an alias.
	// Values below 2 fetch pages one after another.
	PageConcurrency int
	// StrictPaging makes GetAllPosts fail with a *PageError instead of
	// skipping pages that could not be fetched.
	StrictPaging bool
	// Metrics receives cache and fetch counters. May be nil.
	Metrics *metrics.Recorder
}

// Client retrieves posts through a Fetcher and keeps recent results in a
// bounded cache owned by the client. Close releases the cache.
type Client struct {
	fetcher     Fetcher
	cache       cache.Store
	metrics     *metrics.Recorder
	concurrency int
	strict      bool
}

// NewClient returns a Client that fetches through f.
func NewClient(f Fetcher, opts Options) *Client {
	rec := opts.Metrics
	store := cache.NewBounded(cache.Options{
		Capacity:          opts.CacheSize,
		SlidingExpiration: opts.CacheExpiration,
		OnEvict: func(key string) {
			rec.Eviction()
			logger.Debugf("cache evict: key=%s", key)
		},
	})
	concurrency := opts.PageConcurrency
	if concurrency < 1 {
		concurrency = 1
	}
	return &Client{
		fetcher:     f,
		cache:       store,
		metrics:     rec,
		concurrency: concurrency,
		strict:      opts.StrictPaging,
	}
}

// Close releases every cached entry. It is safe to call more than once.
func (c *Client) Close() error { return c.cache.Close() }

// GetAllPosts returns every post of alias. The aggregate is cached in API order
// and sorted on every call, so changing order never refetches.
//
// Pages that fail to load contribute nothing unless StrictPaging is set. The
// returned error is otherwise only the context's.
func (c *Client) GetAllPosts(ctx context.Context, alias string, order SortOrder) ([]Post, error) {
	key := allPostsKey(alias)
	if posts, ok := c.cachedPosts(opGetAllPosts, key); ok {
		return sortPosts(order, posts), nil
	}

	posts, err := c.aggregate(ctx, alias)
	if err != nil {
		return nil, err
	}
	c.store(opGetAllPosts, key, posts)
	logger.Infof("aggregated %d posts for %s", len(posts), alias)
	return sortPosts(order, posts), nil
}

// GetPostsByPageNumber returns a single page of alias. The cache is always
// consulted; the result is only written back when saveToCache is set.
func (c *Client) GetPostsByPageNumber(ctx context.Context, alias string, page int, order SortOrder, saveToCache bool) ([]Post, error) {
	posts, err := c.page(ctx, alias, page, saveToCache)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		posts = []Post{}
	}
	return sortPosts(order, posts), nil
}

// GetPostBySlug returns the post, or nil when it cannot be found.
func (c *Client) GetPostBySlug(ctx context.Context, alias, slug string) (*Post, error) {
	return c.lookup(ctx, opGetPostBySlug, slugKey(alias, slug), func() (*Post, error) {
		return c.fetcher.FetchPostBySlug(ctx, alias, slug)
	})
}

// GetPostByID returns the post, or nil when it cannot be found.
func (c *Client) GetPostByID(ctx context.Context, id string) (*Post, error) {
	return c.lookup(ctx, opGetPostByID, idKey(id), func() (*Post, error) {
		return c.fetcher.FetchPostByID(ctx, id)
	})
}

// Search returns the posts of alias whose title or body contains key,
// ignoring case. It always goes through GetAllPosts and its cache.
func (c *Client) Search(ctx context.Context, alias, key string, order SortOrder) ([]Post, error) {
	posts, err := c.GetAllPosts(ctx, alias, order)
	if err != nil {
		return nil, err
	}
	results := make([]Post, 0, len(posts))
	for _, p := range posts {
		if matches(p, key) {
			results = append(results, p)
		}
	}
	logger.Infof("search %q in %s: %d of %d posts match", key, alias, len(results), len(posts))
	return results, nil
}

// aggregate fetches page 1, then pages 2..N in page order. The page count
// derived from the reported total is capped at MaxPages.
func (c *Client) aggregate(ctx context.Context, alias string) ([]Post, error) {
	c.metrics.CacheMiss(opGetAllPosts)
	c.metrics.PageFetch()
	first, err := c.fetcher.FetchPage(ctx, alias, 1)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.fetchFailed(opGetAllPosts, alias, 1, err)
		if c.strict {
			return nil, &PageError{Alias: alias, Page: 1, Err: err}
		}
		return []Post{}, nil
	}

	posts := append([]Post{}, first.Posts...)
	if first.TotalPosts <= len(first.Posts) {
		return posts, nil
	}

	pages := totalPages(first.TotalPosts)
	if pages > MaxPages {
		logger.Warnf("%s reports %d posts, fetching only the first %d pages", alias, first.TotalPosts, MaxPages)
		pages = MaxPages
	}
	var rest [][]Post
	if c.concurrency > 1 {
		rest, err = c.fetchConcurrently(ctx, alias, pages)
	} else {
		rest, err = c.fetchSequentially(ctx, alias, pages)
	}
	if err != nil {
		return nil, err
	}
	for _, p := range rest {
		posts = append(posts, p...)
	}
	return posts, nil
}

// fetchSequentially loads pages 2..pages; page n+1 is requested only after
// page n has been collected.
func (c *Client) fetchSequentially(ctx context.Context, alias string, pages int) ([][]Post, error) {
	var rest [][]Post
	for next := 2; next <= pages; next++ {
		posts, err := c.subPage(ctx, alias, next)
		if err != nil {
			return nil, err
		}
		rest = append(rest, posts)
	}
	return rest, nil
}

// fetchConcurrently loads pages 2..pages with at most c.concurrency requests in
// flight. Results are slotted by page index so the order matches the sequential path.
func (c *Client) fetchConcurrently(ctx context.Context, alias string, pages int) ([][]Post, error) {
	rest := make([][]Post, max(pages-1, 0))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for next := 2; next <= pages; next++ {
		g.Go(func() error {
			posts, err := c.subPage(gctx, alias, next)
			if err != nil {
				return err
			}
			rest[next-2] = posts
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	return rest, nil
}

// subPage loads one page during aggregation without caching it. A failed page
// yields no posts unless paging is strict.
func (c *Client) subPage(ctx context.Context, alias string, n int) ([]Post, error) {
	posts, err := c.page(ctx, alias, n, false)
	if err == nil {
		return posts, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if c.strict {
		return nil, err
	}
	return nil, nil
}

// page returns one page of alias, from the cache when present. Fetch failures
// are returned as *PageError.
func (c *Client) page(ctx context.Context, alias string, n int, save bool) ([]Post, error) {
	key := pageKey(alias, n)
	if posts, ok := c.cachedPosts(opGetPostsByPageNumber, key); ok {
		return posts, nil
	}
	c.metrics.CacheMiss(opGetPostsByPageNumber)
	c.metrics.PageFetch()
	p, err := c.fetcher.FetchPage(ctx, alias, n)
	if err != nil {
		if ctx.Err() == nil {
			c.fetchFailed(opGetPostsByPageNumber, alias, n, err)
		}
		return nil, &PageError{Alias: alias, Page: n, Err: err}
	}
	posts := p.Posts
	if posts == nil {
		posts = []Post{}
	}
	if save {
		c.store(opGetPostsByPageNumber, key, posts)
	}
	return posts, nil
}

func (c *Client) lookup(ctx context.Context, op, key string, fetch func() (*Post, error)) (*Post, error) {
	if b, ok := c.cache.Get(key); ok {
		var p Post
		if err := json.Unmarshal(b, &p); err == nil {
			c.metrics.CacheHit(op)
			logger.Infof("cache hit: key=%s", key)
			return &p, nil
		}
	}
	c.metrics.CacheMiss(op)
	logger.Infof("cache miss: key=%s", key)

	p, err := fetch()
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, ErrNotFound) {
			logger.Infof("%s: %s not found", op, key)
		} else {
			c.metrics.FetchFailure(op)
			logger.Warnf("%s: fetch %s failed: %v", op, key, err)
		}
		return nil, nil
	}
	if p == nil {
		return nil, nil
	}
	c.store(op, key, p)
	return p, nil
}

// cachedPosts decodes a cached post list. Every call yields a fresh copy so
// callers cannot alter what is cached.
func (c *Client) cachedPosts(op, key string) ([]Post, bool) {
	b, ok := c.cache.Get(key)
	if !ok {
		logger.Infof("cache miss: key=%s", key)
		return nil, false
	}
	var posts []Post
	if err := json.Unmarshal(b, &posts); err != nil {
		logger.Warnf("cache decode failed: key=%s err=%v", key, err)
		return nil, false
	}
	c.metrics.CacheHit(op)
	logger.Infof("cache hit: key=%s", key)
	return posts, true
}

func (c *Client) store(op, key string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		logger.Warnf("cache encode failed: key=%s err=%v", key, err)
		return
	}
	c.cache.Put(key, b)
	c.metrics.CacheStore(op)
	logger.Infof("cache set: key=%s size=%d", key, len(b))
}

func (c *Client) fetchFailed(op, alias string, page int, err error) {
	c.metrics.FetchFailure(op)
	logger.Warnf("%s: page %d of %s returned no data: %v", op, page, alias, err)
}
