package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/leonardcser/writeas-mcp/internal/render"
	"github.com/leonardcser/writeas-mcp/internal/writeas"
)

// PostSource is the retrieval surface the tools expose. *writeas.Client implements it.
type PostSource interface {
	GetAllPosts(ctx context.Context, alias string, order writeas.SortOrder) ([]writeas.Post, error)
	GetPostsByPageNumber(ctx context.Context, alias string, page int, order writeas.SortOrder, saveToCache bool) ([]writeas.Post, error)
	GetPostBySlug(ctx context.Context, alias, slug string) (*writeas.Post, error)
	GetPostByID(ctx context.Context, id string) (*writeas.Post, error)
	Search(ctx context.Context, alias, key string, order writeas.SortOrder) ([]writeas.Post, error)
}

type handler = func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)

// GetAllPostsHandler returns the handler for the "writeas-get-all-posts" tool.
func GetAllPostsHandler(src PostSource) handler {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		alias, err := req.RequireString("alias")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		posts, err := src.GetAllPosts(ctx, alias, sortArg(req))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(formatPostList(posts)), nil
	}
}

// GetPostsPageHandler returns the handler for the "writeas-get-posts-page" tool.
func GetPostsPageHandler(src PostSource) handler {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		alias, err := req.RequireString("alias")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		page := req.GetInt("page", 1)
		if page < 1 {
			page = 1
		}
		posts, err := src.GetPostsByPageNumber(ctx, alias, page, sortArg(req), req.GetBool("save_to_cache", false))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(formatPostList(posts)), nil
	}
}

// GetPostHandler returns the handler for the "writeas-get-post" tool.
func GetPostHandler(src PostSource) handler {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		alias, err := req.RequireString("alias")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		slug, err := req.RequireString("slug")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		p, err := src.GetPostBySlug(ctx, alias, slug)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if p == nil {
			return mcp.NewToolResultText(fmt.Sprintf("Cannot find post with slug %s", slug)), nil
		}
		return mcp.NewToolResultText(formatPost(p)), nil
	}
}

// GetPostByIDHandler returns the handler for the "writeas-get-post-by-id" tool.
func GetPostByIDHandler(src PostSource) handler {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		p, err := src.GetPostByID(ctx, id)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if p == nil {
			return mcp.NewToolResultText(fmt.Sprintf("Cannot find post with ID %s", id)), nil
		}
		return mcp.NewToolResultText(formatPost(p)), nil
	}
}

func sortArg(req mcp.CallToolRequest) writeas.SortOrder {
	return writeas.ParseSortOrder(req.GetString("sort", "descending"))
}

// formatPostList renders one numbered "date: title (slug)" line per post.
func formatPostList(posts []writeas.Post) string {
	if len(posts) == 0 {
		return "No posts."
	}
	var sb strings.Builder
	for i, p := range posts {
		fmt.Fprintf(&sb, "%d. %s: %s (%s)", i+1, p.Created.Format(time.DateOnly), p.DisplayTitle(), p.Slug)
		if i < len(posts)-1 {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func formatPost(p *writeas.Post) string {
	var sb strings.Builder
	sb.WriteString("# ")
	sb.WriteString(p.DisplayTitle())
	sb.WriteString("\n\n")
	fmt.Fprintf(&sb, "- ID: %s\n- Slug: %s\n- Published: %s\n", p.ID, p.Slug, p.Created.Format(time.DateOnly))
	if !p.Updated.IsZero() && !p.Updated.Equal(p.Created) {
		fmt.Fprintf(&sb, "- Updated: %s\n", p.Updated.Format(time.DateOnly))
	}
	if len(p.Tags) > 0 {
		fmt.Fprintf(&sb, "- Tags: %s\n", strings.Join(p.Tags, ", "))
	}
	fmt.Fprintf(&sb, "- Views: %d\n\n", p.Views)
	sb.WriteString(render.Markdown(p.Body))
	return sb.String()
}
