package reply

import (
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// ExtractJSONBlocks returns the contents of the fenced code blocks of a
// markdown string that are tagged json, or untagged and starting with '{'.
func ExtractJSONBlocks(markdownText string) []string {
	var results []string
	source := []byte(markdownText)
	doc := goldmark.DefaultParser().Parse(text.NewReader(source))

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		cb, ok := n.(*ast.FencedCodeBlock)
		if !ok || cb.Lines().Len() == 0 {
			return ast.WalkContinue, nil
		}
		start := cb.Lines().At(0).Start
		stop := cb.Lines().At(cb.Lines().Len() - 1).Stop
		code := strings.TrimSpace(string(source[start:stop]))

		switch strings.ToLower(string(cb.Language(source))) {
		case "json", "jsonc":
			results = append(results, code)
		case "":
			if strings.HasPrefix(code, "{") {
				results = append(results, code)
			}
		}
		return ast.WalkSkipChildren, nil
	})
	return results
}
