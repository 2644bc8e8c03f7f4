package web

import (
	"github.com/leonardcser/writeas-mcp/internal/config"
	"github.com/leonardcser/writeas-mcp/internal/metrics"
	"github.com/leonardcser/writeas-mcp/internal/writeas"
)

// DefaultUserAgent identifies this client to the API.
const DefaultUserAgent = "writeas-mcp/" + config.Version

// NewClient wires a colly Fetcher and a session-owned cache from cfg.
// rec may be nil.
func NewClient(cfg *config.Config, rec *metrics.Recorder) (*writeas.Client, error) {
	f, err := NewFetcher(Options{
		BaseURL:     cfg.APIURL,
		APIKey:      cfg.APIKey,
		Timeout:     cfg.RequestTimeout,
		Parallelism: cfg.PageConcurrency,
	})
	if err != nil {
		return nil, err
	}
	return writeas.NewClient(f, writeas.Options{
		CacheExpiration: cfg.CacheExpiration,
		CacheSize:       cfg.CacheSize,
		PageConcurrency: cfg.PageConcurrency,
		StrictPaging:    cfg.StrictPaging,
		Metrics:         rec,
	}), nil
}
