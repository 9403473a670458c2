package retrieval

import (
	"fmt"
	"strings"
)

// FormatFragments renders search results as text the decision model can read.
// An empty result set gets an explanatory response rather than an error.
func FormatFragments(query string, fragments []Fragment) string {
	if len(fragments) == 0 {
		return fmt.Sprintf("No relevant documentation found for %q. Try rephrasing with more specific terms.", query)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Found %d relevant section(s) for %q:\n\n", len(fragments), query))

	for i, f := range fragments {
		sb.WriteString(fmt.Sprintf("--- Result %d/%d (corpus: %s, similarity: %.4f) ---\n", i+1, len(fragments), f.Corpus, f.Similarity))
		if path := f.HeadingPath(); path != "" {
			sb.WriteString(fmt.Sprintf("Section: %s\n", path))
		}
		sb.WriteString("\n")
		sb.WriteString(f.Content)
		sb.WriteString("\n\n")
	}

	return strings.TrimRight(sb.String(), "\n")
}

// HeadingPath joins the fragment's heading hierarchy into a single
// breadcrumb like "Payments > Bank account > Updating your account".
func (f Fragment) HeadingPath() string {
	var parts []string
	for _, h := range []string{f.H1, f.H2, f.H3} {
		if h != "" {
			parts = append(parts, h)
		}
	}
	return strings.Join(parts, " > ")
}
