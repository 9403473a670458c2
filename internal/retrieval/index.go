package retrieval

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	chromem "github.com/philippgille/chromem-go"

	"github.com/odslabs/ridebot/internal/embeddings"
)

const collectionName = "fragments"

// Fragment is one ranked piece of a policy document, carrying the corpus it
// came from and the heading path captured at ingestion time.
type Fragment struct {
	Corpus     string  `json:"corpus"`
	Content    string  `json:"content"`
	H1         string  `json:"h1,omitempty"`
	H2         string  `json:"h2,omitempty"`
	H3         string  `json:"h3,omitempty"`
	Similarity float32 `json:"similarity"`
}

// Index is a loaded, queryable semantic index over one corpus. Handles are
// shared between the cache (which may evict them) and in-flight searches:
// eviction only affects future lookups, a checked-out handle keeps working.
type Index struct {
	corpus     string
	db         *chromem.DB
	collection *chromem.Collection
}

// indexPath returns the on-disk location of a persisted corpus.
func indexPath(dir, corpus string) string {
	return filepath.Join(dir, "chromem_"+corpus+".gob.gz")
}

// OpenIndex loads a persisted corpus index from dir. A missing or corrupt
// corpus surfaces as an error; it is fatal only to the search that wanted it.
func OpenIndex(dir, corpus string, embedder embeddings.Embedder) (*Index, error) {
	path := indexPath(dir, corpus)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("corpus %q not found at %s: %w", corpus, path, err)
	}

	db := chromem.NewDB()
	if err := db.ImportFromFile(path, ""); err != nil {
		return nil, fmt.Errorf("loading corpus %q: %w", corpus, err)
	}

	col := db.GetCollection(collectionName, embeddings.ToChromemFunc(embedder))
	if col == nil {
		return nil, fmt.Errorf("corpus %q has no %q collection", corpus, collectionName)
	}

	return &Index{corpus: corpus, db: db, collection: col}, nil
}

// BuildIndex embeds the given sections and persists them as a new corpus
// index under dir, replacing any previous index for the same corpus.
func BuildIndex(ctx context.Context, dir, corpus string, sections []Section, embedder embeddings.Embedder) (*Index, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	db := chromem.NewDB()
	col, err := db.GetOrCreateCollection(collectionName, nil, embeddings.ToChromemFunc(embedder))
	if err != nil {
		return nil, fmt.Errorf("creating collection: %w", err)
	}

	docs := make([]chromem.Document, len(sections))
	for i, sec := range sections {
		docs[i] = chromem.Document{
			ID:      fmt.Sprintf("%s:%d", corpus, i),
			Content: sec.Content,
			Metadata: map[string]string{
				"corpus": corpus,
				"h1":     sec.H1,
				"h2":     sec.H2,
				"h3":     sec.H3,
			},
		}
	}
	if len(docs) > 0 {
		if err := col.AddDocuments(ctx, docs, 1); err != nil {
			return nil, fmt.Errorf("adding documents: %w", err)
		}
	}

	if err := db.ExportToFile(indexPath(dir, corpus), true, ""); err != nil {
		return nil, fmt.Errorf("persisting corpus %q: %w", corpus, err)
	}

	return &Index{corpus: corpus, db: db, collection: col}, nil
}

// Corpus returns the corpus identifier this index serves.
func (ix *Index) Corpus() string {
	return ix.corpus
}

// Count returns the number of fragments in the index.
func (ix *Index) Count() int {
	return ix.collection.Count()
}

// Search returns up to k fragments ranked best-first. An empty result set is
// a normal answer, not an error: nothing cleared the similarity threshold or
// the corpus is empty.
func (ix *Index) Search(ctx context.Context, query string, k int) ([]Fragment, error) {
	if k <= 0 {
		k = 2
	}

	// chromem-go rejects nResults above the collection size.
	count := ix.collection.Count()
	if count == 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}

	results, err := ix.collection.Query(ctx, query, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("querying corpus %q: %w", ix.corpus, err)
	}

	fragments := make([]Fragment, len(results))
	for i, r := range results {
		fragments[i] = Fragment{
			Corpus:     ix.corpus,
			Content:    r.Content,
			H1:         r.Metadata["h1"],
			H2:         r.Metadata["h2"],
			H3:         r.Metadata["h3"],
			Similarity: r.Similarity,
		}
	}
	return fragments, nil
}
