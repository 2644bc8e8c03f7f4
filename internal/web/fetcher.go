package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/leonardcser/writeas-mcp/internal/writeas"
)

const (
	RequestTimeout  = 20 * time.Second
	MaxResponseSize = 8 * 1024 * 1024 // 8MB
)

// Options configures a Fetcher.
type Options struct {
	// BaseURL is the API root, e.g. https://write.as/.
	BaseURL string
	// APIKey, if set, is sent as "Authorization: Token <key>".
	APIKey string
	// Timeout bounds each request; RequestTimeout when zero.
	Timeout time.Duration
	// Parallelism caps concurrent requests to the API host; 1 when zero.
	Parallelism int
	// Delay is the pause between requests to the API host.
	Delay time.Duration
	// UserAgent overrides the default user agent.
	UserAgent string
}

// Fetcher implements writeas.Fetcher over the write.as REST API.
type Fetcher struct {
	c      *colly.Collector
	base   *url.URL
	apiKey string
}

var _ writeas.Fetcher = (*Fetcher)(nil)

// envelope is the API's response wrapper.
type envelope[T any] struct {
	Code     int    `json:"code"`
	ErrorMsg string `json:"error_msg"`
	Data     *T     `json:"data"`
}

func NewFetcher(opts Options) (*Fetcher, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, errors.New("base url must start with http:// or https://")
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	c := colly.NewCollector(
		colly.AllowURLRevisit(),
		colly.Async(false),
		colly.MaxBodySize(MaxResponseSize),
		colly.UserAgent(ua),
	)
	parallelism := opts.Parallelism
	if parallelism < 1 {
		parallelism = 1
	}
	if err := c.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: parallelism,
		Delay:       opts.Delay,
	}); err != nil {
		return nil, err
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = RequestTimeout
	}
	c.SetRequestTimeout(timeout)
	return &Fetcher{c: c, base: base, apiKey: opts.APIKey}, nil
}

// FetchPage gets api/collections/{alias}/posts?page={page}.
func (f *Fetcher) FetchPage(ctx context.Context, alias string, page int) (*writeas.CollectionPage, error) {
	u := f.endpoint(url.Values{"page": {strconv.Itoa(page)}}, "api", "collections", alias, "posts")
	return fetchData[writeas.CollectionPage](ctx, f, u)
}

// FetchPostBySlug gets api/collections/{alias}/posts/{slug}.
func (f *Fetcher) FetchPostBySlug(ctx context.Context, alias, slug string) (*writeas.Post, error) {
	u := f.endpoint(nil, "api", "collections", alias, "posts", slug)
	return fetchData[writeas.Post](ctx, f, u)
}

// FetchPostByID gets api/posts/{id}.
func (f *Fetcher) FetchPostByID(ctx context.Context, id string) (*writeas.Post, error) {
	u := f.endpoint(nil, "api", "posts", id)
	return fetchData[writeas.Post](ctx, f, u)
}

func (f *Fetcher) endpoint(query url.Values, segments ...string) string {
	u := f.base.JoinPath(segments...)
	u.RawQuery = query.Encode()
	return u.String()
}

func fetchData[T any](ctx context.Context, f *Fetcher, rawURL string) (*T, error) {
	body, err := f.get(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	var env envelope[T]
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode %s: %w", rawURL, err)
	}
	if env.Data == nil {
		if env.Code == http.StatusNotFound {
			return nil, writeas.ErrNotFound
		}
		return nil, fmt.Errorf("%s: no data in response (code %d %s)", rawURL, env.Code, env.ErrorMsg)
	}
	return env.Data, nil
}

// get performs one GET on a clone of the base collector so that callbacks
// never accumulate across calls and concurrent calls stay independent.
func (f *Fetcher) get(ctx context.Context, rawURL string) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	c := f.c.Clone()
	c.Context = ctx

	var body []byte
	var status int
	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "application/json")
		if f.apiKey != "" {
			r.Headers.Set("Authorization", "Token "+f.apiKey)
		}
	})
	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = append([]byte(nil), r.Body...)
	})
	c.OnError(func(r *colly.Response, _ error) {
		if r != nil {
			status = r.StatusCode
		}
	})

	if err := c.Visit(rawURL); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if status == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", writeas.ErrNotFound, rawURL)
		}
		return nil, fmt.Errorf("GET %s: status %d: %w", rawURL, status, err)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("GET %s: empty response body", rawURL)
	}
	return body, nil
}
