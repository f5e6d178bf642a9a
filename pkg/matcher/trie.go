package matcher

import (
	"fmt"
	"strings"

	"github.com/wayfind-dev/wayfind/pkg/pattern"
)

// Specificity weight of one consumed segment, by edge type. Static must
// outweigh param and param must outweigh wildcard at every depth, so the
// weights only need a strict ordering, not any particular magnitude.
const (
	staticWeight   = 3
	paramWeight    = 2
	wildcardWeight = 1
)

// trieNode is one node of a segment trie.
//
// Invariants: static edge keys are unique per node; at most one param
// child and one wildcard child exist per node.
type trieNode struct {
	parent *trieNode

	// edgeKey is this node's key in parent.static; empty for param and
	// wildcard children, which hang off dedicated slots.
	edgeKey string

	static   map[string]*trieNode
	param    *trieNode
	wildcard *trieNode

	// paramName is the capture name of a param or wildcard node. Every
	// route through the node shares it; checkCaptures enforces the
	// agreement at registration.
	paramName string

	// record marks a terminal node.
	record *RouteRecord

	// weight is the cached specificity contribution of the edge leading
	// to this node.
	weight int
}

func (n *trieNode) isLeaf() bool {
	return len(n.static) == 0 && n.param == nil && n.wildcard == nil
}

// trie is one independently addressable route set.
type trie struct {
	root *trieNode

	// terminals maps record ids to their terminal nodes for O(depth)
	// removal.
	terminals map[RecordID]*trieNode
}

func newTrie() *trie {
	return &trie{
		root:      &trieNode{},
		terminals: make(map[RecordID]*trieNode),
	}
}

func (t *trie) len() int {
	return len(t.terminals)
}

// insert walks or creates the node path for the compiled segments and
// marks the terminal with rec. If the terminal already held a record it
// is replaced and returned so the owner can retire it.
func (t *trie) insert(segs []pattern.Segment, rec *RouteRecord) *RouteRecord {
	n := t.root
	for _, seg := range segs {
		switch seg.Kind {
		case pattern.KindStatic:
			if n.static == nil {
				n.static = make(map[string]*trieNode)
			}
			child, ok := n.static[seg.Text]
			if !ok {
				child = &trieNode{parent: n, edgeKey: seg.Text, weight: staticWeight}
				n.static[seg.Text] = child
			}
			n = child

		case pattern.KindParam:
			if n.param == nil {
				n.param = &trieNode{parent: n, paramName: seg.Name, weight: paramWeight}
			}
			n = n.param

		case pattern.KindWildcard:
			if n.wildcard == nil {
				n.wildcard = &trieNode{parent: n, paramName: seg.Name, weight: wildcardWeight}
			}
			n = n.wildcard
		}
	}

	prev := n.record
	n.record = rec
	if prev != nil {
		delete(t.terminals, prev.ID)
	}
	t.terminals[rec.ID] = n
	return prev
}

// checkCaptures rejects a pattern whose param or wildcard name differs
// from the name already registered at the same position. Capture names
// live on the shared node, so every route through it must agree. The
// walk follows existing edges only and never mutates the trie.
func (t *trie) checkCaptures(segs []pattern.Segment) error {
	n := t.root
	for _, seg := range segs {
		switch seg.Kind {
		case pattern.KindStatic:
			child, ok := n.static[seg.Text]
			if !ok {
				return nil
			}
			n = child

		case pattern.KindParam:
			if n.param == nil {
				return nil
			}
			if n.param.paramName != seg.Name {
				return fmt.Errorf("%w: :%s, position already captures :%s",
					ErrParamNameConflict, seg.Name, n.param.paramName)
			}
			n = n.param

		case pattern.KindWildcard:
			if n.wildcard == nil {
				return nil
			}
			if n.wildcard.paramName != seg.Name {
				return fmt.Errorf("%w: *%s, position already captures *%s",
					ErrParamNameConflict, seg.Name, n.wildcard.paramName)
			}
			n = n.wildcard
		}
	}
	return nil
}

// remove clears the terminal marker for id and prunes now-childless,
// non-terminal nodes up toward the root. It reports whether the id was
// present.
func (t *trie) remove(id RecordID) bool {
	n, ok := t.terminals[id]
	if !ok {
		return false
	}
	delete(t.terminals, id)
	n.record = nil

	for n != t.root && n.record == nil && n.isLeaf() {
		p := n.parent
		switch {
		case p.param == n:
			p.param = nil
		case p.wildcard == n:
			p.wildcard = nil
		default:
			delete(p.static, n.edgeKey)
		}
		n.parent = nil
		n = p
	}
	return true
}

// capture is one trial parameter binding on the DFS stack. Captures are
// kept as a slice instead of a map so backtracking is a slice truncation
// and nested matches never share mutable state.
type capture struct {
	name, value string
}

// trieMatch is one complete walk to a terminal node.
type trieMatch struct {
	record   *RouteRecord
	captures []capture
	score    int
}

// match runs a backtracking depth-first walk over the trie. At each node
// the static edge is tried first, then the param edge, then the wildcard
// edge, which consumes all remaining segments. All complete walks are
// scored and the highest cumulative specificity wins; ties go to the
// earlier-registered record.
func (t *trie) match(segments []string) (*trieMatch, bool) {
	var best *trieMatch

	consider := func(n *trieNode, score int, captures []capture) {
		if n.record == nil {
			return
		}
		if best != nil {
			if score < best.score {
				return
			}
			if score == best.score && n.record.order >= best.record.order {
				return
			}
		}
		best = &trieMatch{
			record:   n.record,
			captures: append([]capture(nil), captures...),
			score:    score,
		}
	}

	var walk func(n *trieNode, idx, score int, captures []capture)
	walk = func(n *trieNode, idx, score int, captures []capture) {
		if idx == len(segments) {
			consider(n, score, captures)
			// A final optional param may match zero segments. Whether
			// the tail is optional is the terminal record's own
			// property, not the shared node's.
			if n.param != nil && n.param.record != nil && n.param.record.optionalTail() {
				consider(n.param, score, captures)
			}
			// A wildcard consumes all remaining segments, including
			// none of them.
			if n.wildcard != nil {
				consider(n.wildcard, score+wildcardWeight,
					append(captures, capture{n.wildcard.paramName, ""}))
			}
			return
		}

		seg := segments[idx]
		if child, ok := n.static[seg]; ok {
			walk(child, idx+1, score+staticWeight, captures)
		}
		if n.param != nil {
			walk(n.param, idx+1, score+paramWeight,
				append(captures, capture{n.param.paramName, seg}))
		}
		if n.wildcard != nil {
			consider(n.wildcard, score+wildcardWeight,
				append(captures, capture{n.wildcard.paramName, strings.Join(segments[idx:], "/")}))
		}
	}

	walk(t.root, 0, 0, nil)

	if best == nil {
		return nil, false
	}
	return best, true
}

// params materializes the trial captures into a map.
func (m *trieMatch) params() map[string]string {
	out := make(map[string]string, len(m.captures))
	for _, c := range m.captures {
		out[c.name] = c.value
	}
	return out
}
