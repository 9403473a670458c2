package retrieval

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Section is one heading-delimited slice of a markdown document. H1-H3 hold
// the hierarchical heading path under which the content appeared.
type Section struct {
	H1      string
	H2      string
	H3      string
	Content string
}

// SplitMarkdown splits a markdown document into sections at heading levels
// 1-3. Each section carries its full heading path; deeper headings stay
// inside the surrounding section's content. Sections with no body text are
// dropped.
func SplitMarkdown(source []byte) []Section {
	md := goldmark.New()
	doc := md.Parser().Parse(text.NewReader(source))

	var sections []Section
	var current Section
	var body strings.Builder

	flush := func() {
		content := strings.TrimSpace(body.String())
		if content != "" {
			current.Content = content
			sections = append(sections, current)
		}
		body.Reset()
	}

	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if h, ok := n.(*ast.Heading); ok && h.Level <= 3 {
			flush()
			title := nodeText(h, source)
			switch h.Level {
			case 1:
				current = Section{H1: title}
			case 2:
				current = Section{H1: current.H1, H2: title}
			case 3:
				current = Section{H1: current.H1, H2: current.H2, H3: title}
			}
			continue
		}
		if body.Len() > 0 {
			body.WriteString("\n\n")
		}
		body.WriteString(nodeText(n, source))
	}
	flush()

	return sections
}

// nodeText extracts the plain text of a node, including code block contents.
func nodeText(n ast.Node, source []byte) string {
	var sb strings.Builder
	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := node.(type) {
		case *ast.Text:
			sb.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				sb.WriteByte('\n')
			}
		case *ast.FencedCodeBlock:
			writeLines(&sb, node, source)
			return ast.WalkSkipChildren, nil
		case *ast.CodeBlock:
			writeLines(&sb, node, source)
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}

func writeLines(sb *strings.Builder, n ast.Node, source []byte) {
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		sb.Write(seg.Value(source))
	}
}
