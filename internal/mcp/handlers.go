package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/odslabs/ridebot/internal/retrieval"
	"github.com/odslabs/ridebot/internal/riders"
)

// handleSearchDocuments performs semantic search over the policy corpus.
func (s *Server) handleSearchDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: query"), nil
	}

	limit := request.GetInt("limit", 2)
	if limit <= 0 {
		limit = 2
	}

	ix, err := s.indexes.Get(s.corpus, s.loader)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("loading corpus %q: %v. Run `ridebot ingest` to build it.", s.corpus, err)), nil
	}

	fragments, err := ix.Search(ctx, query, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	return mcp.NewToolResultText(retrieval.FormatFragments(query, fragments)), nil
}

// handleGetChallenges lists a rider's active challenges.
func (s *Server) handleGetChallenges(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	riderID := int64(request.GetInt("rider_id", 0))
	if err := riders.ValidateRiderID(riderID); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res := s.source.ActiveChallenges(ctx, riderID)
	switch res.Status {
	case riders.StatusError:
		return mcp.NewToolResultError(fmt.Sprintf("challenge lookup failed: %v", res.Err)), nil
	case riders.StatusNotFound:
		return mcp.NewToolResultText("There are no active challenges at the moment."), nil
	}
	if len(res.Value) == 0 {
		return mcp.NewToolResultText("There are no active challenges at the moment."), nil
	}

	var out string
	for i, c := range res.Value {
		out += fmt.Sprintf("%d. %s (%s): %d trips completed, $%.2f earned\n", i+1, c.Name, c.TypeName, c.TripsCompleted, c.EarnedSoFar)
	}
	return mcp.NewToolResultText(out), nil
}

// handleGetLocation returns a rider's most recent GPS fix.
func (s *Server) handleGetLocation(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	riderID := int64(request.GetInt("rider_id", 0))
	if err := riders.ValidateRiderID(riderID); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res := s.source.Location(ctx, riderID)
	switch res.Status {
	case riders.StatusError:
		return mcp.NewToolResultError(fmt.Sprintf("location lookup failed: %v", res.Err)), nil
	case riders.StatusNotFound:
		return mcp.NewToolResultText("The rider's location is not available right now."), nil
	}

	loc := res.Value
	return mcp.NewToolResultText(fmt.Sprintf("lat %.6f, lng %.6f (accuracy %.0f m, reported %s)",
		loc.Latitude, loc.Longitude, loc.Accuracy, loc.Timestamp.Format("15:04:05"))), nil
}
