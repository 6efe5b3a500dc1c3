// Package thread turns a flat, filtered, time-ordered list of comment views
// for one post into a nested reply forest.
package thread

import (
	"github.com/example/discussion-platform/services/discussion/internal/domain"
)

// Node is a comment with its direct replies in creation order.
type Node struct {
	domain.CommentView
	Replies []*Node `json:"replies"`
}

// Assemble builds the forest for comments, which must already be sorted by
// creation time. Each node gets a fresh replies slice; input elements are
// copied, never aliased. A comment whose parent is not in the input is
// promoted to a root rather than dropped. Assemble has no side effects and
// returns equal forests for equal inputs.
func Assemble(comments []domain.CommentView) []*Node {
	nodes := make(map[string]*Node, len(comments))
	ordered := make([]*Node, 0, len(comments))
	for _, c := range comments {
		if _, dup := nodes[c.ID]; dup {
			continue
		}
		n := &Node{CommentView: c, Replies: []*Node{}}
		if c.ParentID != nil {
			pid := *c.ParentID
			n.ParentID = &pid
		}
		nodes[c.ID] = n
		ordered = append(ordered, n)
	}

	cyclic := cycleMembers(ordered, nodes)
	roots := make([]*Node, 0, len(ordered))
	for _, n := range ordered {
		if n.ParentID == nil {
			roots = append(roots, n)
			continue
		}
		parent, ok := nodes[*n.ParentID]
		if !ok || cyclic[n] {
			roots = append(roots, n)
			continue
		}
		parent.Replies = append(parent.Replies, n)
	}
	return roots
}

// cycleMembers returns the nodes whose parent links lead back to themselves.
// Each node has at most one parent, so one walk per unvisited node with
// on-path marks finds every cycle and visits each node once. Stored parents
// never change after creation; this only guards against hand-edited
// documents.
func cycleMembers(ordered []*Node, nodes map[string]*Node) map[*Node]bool {
	const (
		unseen = iota
		onPath
		done
	)
	state := make(map[*Node]int, len(ordered))
	var cyclic map[*Node]bool
	var path []*Node
	for _, start := range ordered {
		path = path[:0]
		cur := start
		for cur != nil && state[cur] == unseen {
			state[cur] = onPath
			path = append(path, cur)
			if cur.ParentID == nil {
				cur = nil
				break
			}
			cur = nodes[*cur.ParentID]
		}
		if cur != nil && state[cur] == onPath {
			if cyclic == nil {
				cyclic = make(map[*Node]bool)
			}
			for i := len(path) - 1; i >= 0; i-- {
				cyclic[path[i]] = true
				if path[i] == cur {
					break
				}
			}
		}
		for _, n := range path {
			state[n] = done
		}
	}
	return cyclic
}

// Walk visits every node depth-first in display order. Returning false from
// fn stops the walk.
func Walk(forest []*Node, fn func(n *Node, depth int) bool) {
	var visit func(nodes []*Node, depth int) bool
	visit = func(nodes []*Node, depth int) bool {
		for _, n := range nodes {
			if !fn(n, depth) {
				return false
			}
			if !visit(n.Replies, depth+1) {
				return false
			}
		}
		return true
	}
	visit(forest, 0)
}

// Count returns the number of nodes in forest, nested replies included.
func Count(forest []*Node) int {
	total := 0
	Walk(forest, func(*Node, int) bool {
		total++
		return true
	})
	return total
}
