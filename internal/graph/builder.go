package graph

import (
	"github.com/emarren/vaultflow/pkg/schema"
)

// Graph is the executable form of a workflow definition: nodes indexed by ID
// with successor resolution. Declaration order is preserved because a node
// without an explicit next falls through to the node declared after it.
type Graph struct {
	nodes map[string]*schema.Node
	order []string
}

// Build validates a node list and produces a Graph.
//
// Build fails on a missing or duplicate node ID, an unknown node type, or a
// successor reference that names neither a node nor the end sentinel. An
// empty node list builds an empty graph; running it completes immediately.
func Build(def *schema.WorkflowDefinition) (*Graph, error) {
	g := &Graph{
		nodes: make(map[string]*schema.Node, len(def.Nodes)),
		order: make([]string, 0, len(def.Nodes)),
	}

	for i := range def.Nodes {
		node := &def.Nodes[i]
		if node.ID == "" {
			return nil, schema.NewErrorf(schema.ErrCodeValidation,
				"node at position %d has no id", i)
		}
		if node.ID == schema.EndSentinel {
			return nil, schema.NewErrorf(schema.ErrCodeValidation,
				"node id %q is reserved", schema.EndSentinel).WithNode(node.ID)
		}
		if _, exists := g.nodes[node.ID]; exists {
			return nil, schema.NewErrorf(schema.ErrCodeDuplicateNodeID,
				"duplicate node id %q", node.ID).WithNode(node.ID)
		}
		if !schema.KnownNodeTypes[node.Type] {
			return nil, schema.NewErrorf(schema.ErrCodeUnknownNodeType,
				"unknown node type %q", node.Type).WithNode(node.ID)
		}
		g.nodes[node.ID] = node
		g.order = append(g.order, node.ID)
	}

	for _, id := range g.order {
		node := g.nodes[id]
		for _, ref := range []string{node.Next, node.TrueNext, node.FalseNext} {
			if ref == "" || ref == schema.EndSentinel {
				continue
			}
			if _, ok := g.nodes[ref]; !ok {
				return nil, schema.NewErrorf(schema.ErrCodeValidation,
					"successor %q of node %q does not exist", ref, id).WithNode(id)
			}
		}
	}

	return g, nil
}

// Node returns the node with the given ID.
func (g *Graph) Node(id string) (*schema.Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Start returns the first node in declaration order, or the end sentinel for
// an empty graph.
func (g *Graph) Start() string {
	if len(g.order) == 0 {
		return schema.EndSentinel
	}
	return g.order[0]
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.order)
}

// Order returns node IDs in declaration order.
func (g *Graph) Order() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// DefaultNext resolves the default successor of a node: its explicit next if
// set, otherwise the node declared after it, otherwise the end sentinel.
func (g *Graph) DefaultNext(id string) string {
	node, ok := g.nodes[id]
	if !ok {
		return schema.EndSentinel
	}
	if node.Next != "" {
		return node.Next
	}
	for i, nid := range g.order {
		if nid == id {
			if i+1 < len(g.order) {
				return g.order[i+1]
			}
			break
		}
	}
	return schema.EndSentinel
}

// BranchNext resolves the successor of a branch node for the given condition
// outcome. A missing trueNext or falseNext falls back to the default
// successor, so an if node without a falseNext simply continues.
func (g *Graph) BranchNext(id string, outcome bool) string {
	node, ok := g.nodes[id]
	if !ok {
		return schema.EndSentinel
	}
	target := node.FalseNext
	if outcome {
		target = node.TrueNext
	}
	if target != "" {
		return target
	}
	return g.DefaultNext(id)
}
