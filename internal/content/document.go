// Package content converts generated markdown replies into the structured
// rich-text document the conversation backend stores beside plain text.
package content

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	extast "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"

	"github.com/crystaldolphin/hermes/internal/shared/stringutils"
)

// Node is one node of the document tree. Block nodes carry Content;
// text nodes carry Text and optional Marks.
type Node struct {
	Type    string         `json:"type"`
	Attrs   map[string]any `json:"attrs,omitempty"`
	Content []*Node        `json:"content,omitempty"`
	Text    string         `json:"text,omitempty"`
	Marks   []Mark         `json:"marks,omitempty"`
}

// Mark is an inline style applied to a text node.
type Mark struct {
	Type  string         `json:"type"`
	Attrs map[string]any `json:"attrs,omitempty"`
}

var (
	parserOnce sync.Once
	parser     goldmark.Markdown
)

func markdownParser() goldmark.Markdown {
	parserOnce.Do(func() {
		parser = goldmark.New(goldmark.WithExtensions(extension.Strikethrough, extension.Linkify))
	})
	return parser
}

// FromMarkdown parses md into a document tree rooted at a "doc" node.
func FromMarkdown(md string) *Node {
	source := []byte(md)
	document := markdownParser().Parser().Parse(text.NewReader(source))

	b := &builder{source: source, stack: []*Node{{Type: "doc"}}}
	_ = ast.Walk(document, b.walk)
	return b.stack[0]
}

// Structured renders reply text as the JSON document persisted with a
// message. Model reasoning blocks are dropped.
func Structured(reply string) (json.RawMessage, error) {
	doc := FromMarkdown(strings.TrimSpace(stringutils.StripThink(reply)))
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	return raw, nil
}

// builder walks a goldmark AST keeping a stack of open block nodes and
// the marks active for text under the cursor.
type builder struct {
	source []byte
	stack  []*Node
	marks  []Mark
}

func (b *builder) top() *Node { return b.stack[len(b.stack)-1] }

func (b *builder) push(n *Node) {
	b.top().Content = append(b.top().Content, n)
	b.stack = append(b.stack, n)
}

func (b *builder) pop() { b.stack = b.stack[:len(b.stack)-1] }

func (b *builder) appendNode(n *Node) {
	b.top().Content = append(b.top().Content, n)
}

// appendText adds a text node, merging it into the previous sibling when
// both carry the same marks.
func (b *builder) appendText(s string, extra ...Mark) {
	if s == "" {
		return
	}
	marks := append(slices.Clone(b.marks), extra...)
	parent := b.top()
	if n := len(parent.Content); n > 0 {
		last := parent.Content[n-1]
		if last.Type == "text" && sameMarks(last.Marks, marks) {
			last.Text += s
			return
		}
	}
	var nodeMarks []Mark
	if len(marks) > 0 {
		nodeMarks = marks
	}
	parent.Content = append(parent.Content, &Node{Type: "text", Text: s, Marks: nodeMarks})
}

func (b *builder) walk(n ast.Node, entering bool) (ast.WalkStatus, error) {
	switch node := n.(type) {
	case *ast.Document:
	case *ast.Paragraph, *ast.TextBlock:
		b.block(entering, &Node{Type: "paragraph"})
	case *ast.Heading:
		b.block(entering, &Node{Type: "heading", Attrs: map[string]any{"level": node.Level}})
	case *ast.Blockquote:
		b.block(entering, &Node{Type: "blockquote"})
	case *ast.List:
		list := &Node{Type: "bulletList"}
		if node.IsOrdered() {
			list = &Node{Type: "orderedList", Attrs: map[string]any{"start": node.Start}}
		}
		b.block(entering, list)
	case *ast.ListItem:
		b.block(entering, &Node{Type: "listItem"})
	case *ast.FencedCodeBlock:
		if entering {
			attrs := map[string]any{}
			if lang := node.Language(b.source); len(lang) > 0 {
				attrs["language"] = string(lang)
			}
			b.codeBlock(node.Lines(), attrs)
		}
		return ast.WalkSkipChildren, nil
	case *ast.CodeBlock:
		if entering {
			b.codeBlock(node.Lines(), nil)
		}
		return ast.WalkSkipChildren, nil
	case *ast.HTMLBlock:
		if entering {
			p := &Node{Type: "paragraph"}
			b.push(p)
			b.appendText(strings.TrimRight(string(linesText(node.Lines(), b.source)), "\n"))
			b.pop()
		}
		return ast.WalkSkipChildren, nil
	case *ast.ThematicBreak:
		if entering {
			b.appendNode(&Node{Type: "horizontalRule"})
		}
		return ast.WalkSkipChildren, nil
	case *ast.Emphasis:
		markType := "italic"
		if node.Level >= 2 {
			markType = "bold"
		}
		b.mark(entering, Mark{Type: markType})
	case *extast.Strikethrough:
		b.mark(entering, Mark{Type: "strike"})
	case *ast.Link:
		b.mark(entering, Mark{Type: "link", Attrs: map[string]any{"href": string(node.Destination)}})
	case *ast.AutoLink:
		if entering {
			url := string(node.URL(b.source))
			b.appendText(string(node.Label(b.source)), Mark{Type: "link", Attrs: map[string]any{"href": url}})
		}
		return ast.WalkSkipChildren, nil
	case *ast.CodeSpan:
		if entering {
			var sb strings.Builder
			for c := node.FirstChild(); c != nil; c = c.NextSibling() {
				if t, ok := c.(*ast.Text); ok {
					sb.Write(t.Segment.Value(b.source))
				}
			}
			b.appendText(sb.String(), Mark{Type: "code"})
		}
		return ast.WalkSkipChildren, nil
	case *ast.Text:
		if !entering {
			return ast.WalkContinue, nil
		}
		b.appendText(string(node.Segment.Value(b.source)))
		switch {
		case node.HardLineBreak():
			b.appendNode(&Node{Type: "hardBreak"})
		case node.SoftLineBreak():
			b.appendText(" ")
		}
	case *ast.String:
		if entering {
			b.appendText(string(node.Value))
		}
	case *ast.RawHTML:
		if entering {
			for i := 0; i < node.Segments.Len(); i++ {
				seg := node.Segments.At(i)
				b.appendText(string(seg.Value(b.source)))
			}
		}
		return ast.WalkSkipChildren, nil
	}
	return ast.WalkContinue, nil
}

func (b *builder) block(entering bool, n *Node) {
	if entering {
		b.push(n)
		return
	}
	b.pop()
}

func (b *builder) mark(entering bool, m Mark) {
	if entering {
		b.marks = append(b.marks, m)
		return
	}
	b.marks = b.marks[:len(b.marks)-1]
}

func (b *builder) codeBlock(lines *text.Segments, attrs map[string]any) {
	code := &Node{Type: "codeBlock"}
	if len(attrs) > 0 {
		code.Attrs = attrs
	}
	if body := strings.TrimSuffix(string(linesText(lines, b.source)), "\n"); body != "" {
		code.Content = []*Node{{Type: "text", Text: body}}
	}
	b.appendNode(code)
}

func linesText(lines *text.Segments, source []byte) []byte {
	var out []byte
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		out = append(out, seg.Value(source)...)
	}
	return out
}

func sameMarks(a, b []Mark) bool {
	return slices.EqualFunc(a, b, func(x, y Mark) bool {
		return x.Type == y.Type && maps.Equal(x.Attrs, y.Attrs)
	})
}
