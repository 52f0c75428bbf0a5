package storage

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

var markdownParser = goldmark.New(
	goldmark.WithExtensions(extension.Table),
)

// PlainText flattens markdown content into plain text using the goldmark
// AST: one paragraph per block, headings kept as their text, markup
// dropped. Context budgets then measure prose rather than syntax.
func PlainText(content string) string {
	if content == "" {
		return ""
	}

	src := []byte(content)
	doc := markdownParser.Parser().Parse(text.NewReader(src))

	var blocks []string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch v := n.(type) {
		case *ast.Heading, *ast.Paragraph, *ast.Blockquote:
			block := extractText(n, src)
			if block != "" {
				blocks = append(blocks, block)
			}
			return ast.WalkSkipChildren, nil
		case *ast.ListItem:
			item := extractText(n, src)
			if item != "" {
				blocks = append(blocks, "- "+item)
			}
			return ast.WalkSkipChildren, nil
		case *ast.FencedCodeBlock:
			var code strings.Builder
			lines := v.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				code.Write(seg.Value(src))
			}
			if block := strings.TrimRight(code.String(), "\n"); block != "" {
				blocks = append(blocks, block)
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	return strings.Join(blocks, "\n\n")
}

// extractText collects the raw text segments under a node.
func extractText(n ast.Node, src []byte) string {
	var b strings.Builder

	_ = ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch v := node.(type) {
		case *ast.Text:
			b.Write(v.Segment.Value(src))
			if v.SoftLineBreak() || v.HardLineBreak() {
				b.WriteByte(' ')
			}
		case *ast.String:
			b.Write(v.Value)
		}
		return ast.WalkContinue, nil
	})

	return strings.TrimSpace(b.String())
}
