package main

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/leonardcser/writeas-mcp/internal/config"
	"github.com/leonardcser/writeas-mcp/internal/logger"
	"github.com/leonardcser/writeas-mcp/internal/metrics"
	tools "github.com/leonardcser/writeas-mcp/internal/tools"
	web "github.com/leonardcser/writeas-mcp/internal/web"
)

func main() {
	if err := logger.InitFromEnv(); err != nil {
		panic(err)
	}
	defer logger.Close()

	logger.Infof("Starting Write.as MCP server")

	cfg, err := config.Load()
	if err != nil {
		logger.Errorf("Failed to load config: %v", err)
		panic(err)
	}

	rec := metrics.New()
	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr, rec)
	}

	client, err := web.NewClient(cfg, rec)
	if err != nil {
		logger.Errorf("Failed to create write.as client: %v", err)
		panic(err)
	}
	defer client.Close()
	logger.Infof("Initialized write.as client for %s (cache size %d, expiration %s)",
		cfg.APIURL, cfg.CacheSize, cfg.CacheExpiration)

	s := server.NewMCPServer(
		"Write.as MCP",
		config.Version,
		server.WithRecovery(),
		server.WithToolCapabilities(false),
	)
	logger.Infof("Created MCP server instance")

	sortOption := mcp.WithString("sort",
		mcp.Enum("descending", "ascending"),
		mcp.DefaultString("descending"),
		mcp.Description("Order by creation date"),
	)
	aliasOption := mcp.WithString("alias", mcp.Required(), mcp.Description("The collection (blog) alias"))

	toolAll := mcp.NewTool("writeas-get-all-posts",
		mcp.WithDescription(multiline(
			"Lists every post of a write.as collection",
			"\nFunctionality:",
			"- Walks all pages of the collection and returns one line per post",
			"- Each line shows the creation date, title and slug",
			"\nUsage notes:",
			"- Results are cached, so changing the sort order does not refetch",
			"- Pages that cannot be loaded are skipped",
		)),
		aliasOption,
		sortOption,
	)
	s.AddTool(toolAll, tools.GetAllPostsHandler(client))
	logger.Infof("Registered writeas-get-all-posts tool")

	toolPage := mcp.NewTool("writeas-get-posts-page",
		mcp.WithDescription(multiline(
			"Lists one page (up to 10 posts) of a write.as collection",
			"\nUsage notes:",
			"- Page numbers start at 1",
			"- Set save_to_cache to keep the page for later calls",
		)),
		aliasOption,
		mcp.WithNumber("page", mcp.Min(1), mcp.DefaultNumber(1), mcp.Description("The page number")),
		sortOption,
		mcp.WithBoolean("save_to_cache", mcp.DefaultBool(false), mcp.Description("Store the page in the cache")),
	)
	s.AddTool(toolPage, tools.GetPostsPageHandler(client))
	logger.Infof("Registered writeas-get-posts-page tool")

	toolPost := mcp.NewTool("writeas-get-post",
		mcp.WithDescription("Returns a single post of a collection as markdown, looked up by slug"),
		aliasOption,
		mcp.WithString("slug", mcp.Required(), mcp.Description("The post slug")),
	)
	s.AddTool(toolPost, tools.GetPostHandler(client))
	logger.Infof("Registered writeas-get-post tool")

	toolPostID := mcp.NewTool("writeas-get-post-by-id",
		mcp.WithDescription("Returns a single post as markdown, looked up by its ID"),
		mcp.WithString("id", mcp.Required(), mcp.Description("The post ID")),
	)
	s.AddTool(toolPostID, tools.GetPostByIDHandler(client))
	logger.Infof("Registered writeas-get-post-by-id tool")

	toolSearch := mcp.NewTool("writeas-search",
		mcp.WithDescription(multiline(
			"Searches the posts of a write.as collection",
			"\nUsage notes:",
			"- Matches post titles and bodies, ignoring case",
			"- Uses the same cached listing as writeas-get-all-posts",
		)),
		aliasOption,
		mcp.WithString("query", mcp.Required(), mcp.Description("The text to search for")),
		sortOption,
	)
	s.AddTool(toolSearch, tools.SearchHandler(client))
	logger.Infof("Registered writeas-search tool")

	logger.Infof("Starting MCP server on stdio")
	if err := server.ServeStdio(s); err != nil {
		logger.Errorf("server error: %v", err)
	}
}

// multiline joins lines with newlines for tool descriptions.
func multiline(lines ...string) string { return strings.Join(lines, "\n") }

func serveMetrics(addr string, rec *metrics.Recorder) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", rec.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	logger.Infof("Serving metrics on %s/metrics", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Errorf("metrics server: %v", err)
	}
}
