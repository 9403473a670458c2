package mcp

import "github.com/mark3labs/mcp-go/mcp"

// searchDocumentsTool defines the search_documents MCP tool.
var searchDocumentsTool = mcp.NewTool("search_documents",
	mcp.WithDescription("Search the rider policy handbook semantically. Returns ranked sections with their heading paths."),
	mcp.WithString("query",
		mcp.Required(),
		mcp.Description("Natural language search query"),
	),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of results to return (default 2)"),
	),
)

// getChallengesTool defines the get_active_challenges MCP tool.
var getChallengesTool = mcp.NewTool("get_active_challenges",
	mcp.WithDescription("List a rider's active challenges and bonuses with reward tiers and progress."),
	mcp.WithNumber("rider_id",
		mcp.Required(),
		mcp.Description("ID of the rider"),
	),
)

// getLocationTool defines the get_rider_location MCP tool.
var getLocationTool = mcp.NewTool("get_rider_location",
	mcp.WithDescription("Get a rider's most recent GPS position."),
	mcp.WithNumber("rider_id",
		mcp.Required(),
		mcp.Description("ID of the rider"),
	),
)
