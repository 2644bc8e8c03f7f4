package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// SearchHandler returns the MCP tool handler for the "writeas-search" tool.
func SearchHandler(src PostSource) handler {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		alias, err := req.RequireString("alias")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		q, err := req.RequireString("query")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		results, err := src.Search(ctx, alias, q, sortArg(req))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if len(results) == 0 {
			return mcp.NewToolResultText("Could not find any post with searchKey " + q), nil
		}
		return mcp.NewToolResultText(formatPostList(results)), nil
	}
}
