// Package embeddings turns policy text into vectors for semantic search over
// the rider handbook.
package embeddings

import (
	"context"

	chromem "github.com/philippgille/chromem-go"
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed embeds one or more texts, returning one vector per input.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions is the width of the vectors this embedder produces.
	Dimensions() int

	// Name identifies the embedding model, for logging.
	Name() string
}

// ToChromemFunc adapts an Embedder to the single-text function chromem-go
// calls during ingestion and querying.
func ToChromemFunc(e Embedder) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		vectors, err := e.Embed(ctx, []string{text})
		if err != nil {
			return nil, err
		}
		if len(vectors) == 0 {
			return nil, nil
		}
		return vectors[0], nil
	}
}
