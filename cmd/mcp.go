package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	mcpserver "github.com/odslabs/ridebot/internal/mcp"
	"github.com/odslabs/ridebot/internal/retrieval"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server for AI agent integration",
	Long: `Starts a Model Context Protocol (MCP) server on stdio, exposing the
read-only rider tools (document search, challenges, location) for external
agent runtimes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		embedder, err := createEmbedderFromConfig(cfg)
		if err != nil {
			return fmt.Errorf("creating embedder: %w", err)
		}

		indexes := retrieval.NewCache(cfg.RetrievalCacheSize)
		loader := func(corpus string) (*retrieval.Index, error) {
			return retrieval.OpenIndex(cfg.DataDir, corpus, embedder)
		}

		source, _, closeSource, err := createSourceFromConfig(cfg)
		if err != nil {
			return err
		}
		defer closeSource()

		mcpserver.Version = Version

		fmt.Fprintf(os.Stderr, "ridebot MCP server started on stdio (corpus=%s, source=%s)\n",
			cfg.Corpus, cfg.SourceMode)

		srv := mcpserver.NewServer(source, indexes, loader, cfg.Corpus)
		return srv.Serve()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
