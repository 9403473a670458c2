package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"github.com/odslabs/ridebot/internal/progress"
	"github.com/odslabs/ridebot/internal/retrieval"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [glob...]",
	Short: "Build a searchable corpus index from markdown documents",
	Long: `Reads markdown files matching the given glob patterns (default
docs/**/*.md), splits them into heading-scoped sections, embeds each section
and writes the corpus index under the data directory. Patterns support **.`,
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().String("corpus", "", "corpus id to build (default: the configured corpus)")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	corpus, _ := cmd.Flags().GetString("corpus")
	if corpus == "" {
		corpus = cfg.Corpus
	}

	patterns := args
	if len(patterns) == 0 {
		patterns = []string{"docs/**/*.md"}
	}

	var files []string
	seen := map[string]bool{}
	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			return fmt.Errorf("bad pattern %q: %w", pattern, err)
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}
	if len(files) == 0 {
		return fmt.Errorf("no markdown files match %v", patterns)
	}

	embedder, err := createEmbedderFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("creating embedder: %w", err)
	}

	reporter := progress.NewReporter()
	reporter.Start(len(files))

	var sections []retrieval.Section
	for i, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}
		secs := retrieval.SplitMarkdown(data)
		sections = append(sections, secs...)
		reporter.Document(i+1, path, len(secs))
	}
	reporter.Finish(len(sections))

	if len(sections) == 0 {
		return fmt.Errorf("no sections found in %d files", len(files))
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	fmt.Printf("Embedding %d sections from %d files into corpus %q...\n", len(sections), len(files), corpus)
	ix, err := retrieval.BuildIndex(context.Background(), cfg.DataDir, corpus, sections, embedder)
	if err != nil {
		return fmt.Errorf("building index: %w", err)
	}

	fmt.Printf("Corpus %q ready: %d sections indexed.\n", corpus, ix.Count())
	return nil
}
