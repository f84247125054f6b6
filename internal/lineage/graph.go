// Package lineage keeps the strain -> parents graph. Real-world lineage
// data contains cycles, so nodes live in an arena addressed by slug and
// every walk is bounded.
package lineage

import (
	"strings"

	"github.com/user/strain-pipeline/internal/extract"
)

// MaxDepth is the deepest ancestry materialized (parents, grandparents).
const MaxDepth = 2

type node struct {
	name    string
	parents []int
}

// Graph is an arena of strain nodes with slug-keyed edges.
type Graph struct {
	nodes []node
	index map[string]int
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{index: map[string]int{}}
}

// Slug is the identity of a strain name in the graph.
func Slug(name string) string {
	return extract.SimilarSpellingKey(extract.NormalizedName(name))
}

func (g *Graph) id(name string) int {
	slug := Slug(name)
	if i, ok := g.index[slug]; ok {
		return i
	}
	g.nodes = append(g.nodes, node{name: strings.TrimSpace(name)})
	g.index[slug] = len(g.nodes) - 1
	return len(g.nodes) - 1
}

// Add records name with its parents. The first non-empty parent list of a
// strain wins; later ones are ignored. Blank names are skipped.
func (g *Graph) Add(name string, parents ...string) {
	if Slug(name) == "" {
		return
	}
	i := g.id(name)
	if len(g.nodes[i].parents) > 0 {
		return
	}
	var ids []int
	for _, p := range parents {
		if Slug(p) == "" {
			continue
		}
		ids = append(ids, g.id(p))
	}
	g.nodes[i].parents = ids
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Parents returns the recorded parent names of name.
func (g *Graph) Parents(name string) []string {
	i, ok := g.index[Slug(name)]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(g.nodes[i].parents))
	for _, p := range g.nodes[i].parents {
		out = append(out, g.nodes[p].name)
	}
	return out
}

// Grandparents returns the parents of name's parents, in order and without
// repeats. parents overrides the recorded parent list of name. cycle
// reports that a walk returned to name or to one of its parents; those
// nodes are left out rather than followed.
func (g *Graph) Grandparents(name string, parents ...string) (out []string, cycle bool) {
	self := -1
	if i, ok := g.index[Slug(name)]; ok {
		self = i
	}
	var ids []int
	if len(parents) == 0 {
		if self < 0 {
			return nil, false
		}
		ids = g.nodes[self].parents
	}
	for _, p := range parents {
		if i, ok := g.index[Slug(p)]; ok {
			ids = append(ids, i)
		}
	}

	direct := map[int]bool{}
	for _, p := range ids {
		direct[p] = true
	}
	seen := map[int]bool{}
	for _, p := range ids {
		if p == self {
			cycle = true
			continue
		}
		for _, gp := range g.nodes[p].parents {
			if gp == self || gp == p || direct[gp] {
				cycle = true
				continue
			}
			if seen[gp] {
				continue
			}
			seen[gp] = true
			out = append(out, g.nodes[gp].name)
		}
	}
	return out, cycle
}

// ParseCross splits "A x B" into its top-level parents. Parenthesized
// sub-crosses stay whole, without their outer parentheses.
func ParseCross(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	var parts []string
	depth, start := 0, 0
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		switch runes[i] {
		case '(', '[':
			depth++
		case ')', ']':
			if depth > 0 {
				depth--
			}
		case 'x', 'X', '×':
			if depth == 0 && i > 0 && i+1 < len(runes) && runes[i-1] == ' ' && runes[i+1] == ' ' {
				parts = append(parts, string(runes[start:i]))
				start = i + 1
			}
		}
	}
	parts = append(parts, string(runes[start:]))

	out := parts[:0]
	for _, p := range parts {
		p = strings.TrimSpace(p)
		p = unwrap(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) < 2 {
		return nil
	}
	return out
}

func unwrap(s string) string {
	for len(s) >= 2 && enclosed(s) {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	return s
}

// enclosed reports whether the bracket opening s closes at its last byte.
func enclosed(s string) bool {
	if !(s[0] == '(' && s[len(s)-1] == ')' || s[0] == '[' && s[len(s)-1] == ']') {
		return false
	}
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '[':
			depth++
		case ')', ']':
			depth--
			if depth == 0 && i < len(s)-1 {
				return false
			}
		}
	}
	return depth == 0
}
