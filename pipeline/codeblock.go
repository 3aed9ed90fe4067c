// ABOUTME: Extracts generated source code from model output that may wrap it in markdown fences.
// ABOUTME: Parses the text as markdown and pulls the first python (or any) fenced block; bare code passes through.

package pipeline

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// ExtractCodeBlock returns the code carried by text-generation output.
// Preference order: the first fenced block labeled python, then the first
// fenced block of any language, then the trimmed input unchanged.
func ExtractCodeBlock(output string) string {
	src := []byte(output)
	doc := goldmark.DefaultParser().Parse(text.NewReader(src))

	var firstFence, pythonFence string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		fence, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}

		code := fenceContent(fence, src)
		if firstFence == "" {
			firstFence = code
		}
		if pythonFence == "" && strings.EqualFold(fenceLanguage(fence, src), "python") {
			pythonFence = code
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})

	switch {
	case pythonFence != "":
		return strings.TrimSpace(pythonFence)
	case firstFence != "":
		return strings.TrimSpace(firstFence)
	default:
		return strings.TrimSpace(output)
	}
}

func fenceLanguage(fence *ast.FencedCodeBlock, src []byte) string {
	if fence.Info == nil {
		return ""
	}
	info := string(fence.Info.Segment.Value(src))
	if i := strings.IndexByte(info, ' '); i >= 0 {
		info = info[:i]
	}
	return info
}

func fenceContent(fence *ast.FencedCodeBlock, src []byte) string {
	var buf bytes.Buffer
	lines := fence.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		buf.Write(seg.Value(src))
	}
	return buf.String()
}
