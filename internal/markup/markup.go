// Package markup parses rich-text field values into an explicit node tree,
// exposes the translatable text nodes and image captions in document order,
// and serializes the mutated tree back to markup.
package markup

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Tree is a parsed markup fragment. TextNodes and AltNodes are stable,
// document-ordered references into the tree, so index-based fragment ids
// survive between extraction and reconstruction.
type Tree struct {
	body      *html.Node
	textNodes []*html.Node
	altNodes  []*html.Node
}

// Parse builds a Tree from a markup fragment string.
func Parse(fragment string) (*Tree, error) {
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(fragment), body)
	if err != nil {
		return nil, fmt.Errorf("parse markup: %w", err)
	}
	for _, n := range nodes {
		body.AppendChild(n)
	}
	t := &Tree{body: body}
	t.collect(body)
	return t, nil
}

func (t *Tree) collect(n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			if c.DataAtom == atom.Script || c.DataAtom == atom.Style {
				continue
			}
			if alt := attrValue(c, "alt"); strings.TrimSpace(alt) != "" {
				t.altNodes = append(t.altNodes, c)
			}
			t.collect(c)
			continue
		}
		if c.Type == html.TextNode && strings.TrimSpace(c.Data) != "" {
			t.textNodes = append(t.textNodes, c)
		}
	}
}

// Texts returns the trimmed values of every translatable text node in order.
func (t *Tree) Texts() []string {
	out := make([]string, len(t.textNodes))
	for i, n := range t.textNodes {
		out[i] = strings.TrimSpace(n.Data)
	}
	return out
}

// Alts returns the trimmed caption value of every captioned element in order.
func (t *Tree) Alts() []string {
	out := make([]string, len(t.altNodes))
	for i, n := range t.altNodes {
		out[i] = strings.TrimSpace(attrValue(n, "alt"))
	}
	return out
}

// SetText overwrites the i-th text node.
func (t *Tree) SetText(i int, text string) error {
	if i < 0 || i >= len(t.textNodes) {
		return fmt.Errorf("text node index %d out of range (%d nodes)", i, len(t.textNodes))
	}
	t.textNodes[i].Data = text
	return nil
}

// SetAlt overwrites the caption attribute of the i-th captioned element.
func (t *Tree) SetAlt(i int, text string) error {
	if i < 0 || i >= len(t.altNodes) {
		return fmt.Errorf("alt node index %d out of range (%d nodes)", i, len(t.altNodes))
	}
	n := t.altNodes[i]
	for idx := range n.Attr {
		if n.Attr[idx].Key == "alt" {
			n.Attr[idx].Val = text
			return nil
		}
	}
	return fmt.Errorf("alt attribute vanished from node %d", i)
}

// Render serializes the tree back into a markup fragment string.
func (t *Tree) Render() (string, error) {
	var sb strings.Builder
	for c := t.body.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&sb, c); err != nil {
			return "", fmt.Errorf("render markup: %w", err)
		}
	}
	return sb.String(), nil
}

func attrValue(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
