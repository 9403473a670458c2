// Package mcp exposes the agent's read-only tool surface over the Model
// Context Protocol, so external agent runtimes can call document search and
// rider lookups without going through a conversation turn.
package mcp

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/odslabs/ridebot/internal/retrieval"
	"github.com/odslabs/ridebot/internal/riders"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Server wraps an MCP server that exposes rider support tools.
type Server struct {
	source  riders.ContextSource
	indexes *retrieval.Cache
	loader  retrieval.Loader
	corpus  string
	mcp     *server.MCPServer
}

// NewServer creates a new MCP server with the given dependencies.
func NewServer(source riders.ContextSource, indexes *retrieval.Cache, loader retrieval.Loader, corpus string) *Server {
	s := &Server{
		source:  source,
		indexes: indexes,
		loader:  loader,
		corpus:  corpus,
	}

	s.mcp = server.NewMCPServer(
		"ridebot",
		Version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()

	return s
}

// registerTools adds all tool definitions and their handlers to the MCP server.
func (s *Server) registerTools() {
	s.mcp.AddTool(searchDocumentsTool, s.handleSearchDocuments)
	s.mcp.AddTool(getChallengesTool, s.handleGetChallenges)
	s.mcp.AddTool(getLocationTool, s.handleGetLocation)
}

// Serve starts the MCP server on stdio. Stdout is used for MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
