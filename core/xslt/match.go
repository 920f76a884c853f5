package xslt

import (
	"fmt"
	"strings"

	"github.com/antchfx/xmlquery"
)

// Match patterns are the subset the entry stylesheets need: "/", element
// names, parent/child chains ("FORM/HDORTH"), "*", "text()", "node()" and
// alternatives joined with "|". Matching walks the pattern right to left
// against the node's ancestors.

// checkPattern validates a match pattern at compile time.
func checkPattern(pattern string) error {
	for _, alt := range strings.Split(pattern, "|") {
		alt = strings.TrimSpace(alt)
		if alt == "" {
			return fmt.Errorf("empty alternative in pattern %q", pattern)
		}
		if alt == "/" {
			continue
		}
		rest := strings.TrimPrefix(alt, "/")
		for _, seg := range strings.Split(rest, "/") {
			if seg == "" {
				return fmt.Errorf("empty step in pattern %q", pattern)
			}
		}
	}
	return nil
}

// matchRank reports how specifically pattern matches node. Negative means
// no match; longer chains and anchored patterns rank higher so the most
// specific template wins.
func matchRank(node *xmlquery.Node, pattern string) float64 {
	best := -1.0
	for _, alt := range strings.Split(pattern, "|") {
		if r := altRank(node, strings.TrimSpace(alt)); r > best {
			best = r
		}
	}
	return best
}

func altRank(node *xmlquery.Node, alt string) float64 {
	if alt == "/" {
		if node.Type == xmlquery.DocumentNode {
			return 0
		}
		return -1
	}

	anchored := strings.HasPrefix(alt, "/")
	segs := strings.Split(strings.TrimPrefix(alt, "/"), "/")

	rank := 0.0
	curr := node
	for i := len(segs) - 1; i >= 0; i-- {
		if curr == nil || !stepMatches(curr, segs[i]) {
			return -1
		}
		if segs[i] == "*" || segs[i] == "node()" {
			rank += 0.5
		} else {
			rank++
		}
		curr = curr.Parent
	}
	if anchored {
		if curr == nil || curr.Type != xmlquery.DocumentNode {
			return -1
		}
		rank += 10
	}
	return rank
}

func stepMatches(n *xmlquery.Node, step string) bool {
	switch step {
	case "*":
		return n.Type == xmlquery.ElementNode
	case "text()":
		return n.Type == xmlquery.TextNode || n.Type == xmlquery.CharDataNode
	case "node()":
		return n.Type != xmlquery.DocumentNode
	default:
		return n.Type == xmlquery.ElementNode && n.Data == step
	}
}
