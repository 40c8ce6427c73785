package dag

import "fmt"

// Node is a task in the graph together with its edges.
type Node struct {
	ID       string
	HumanKey string
	// BlockedBy lists the declared blockers, unknown ids included.
	BlockedBy []string
	// Blocks lists the known tasks that declare this one as a blocker.
	Blocks []string
}

// Label renders the node as "<key> (<id>)".
func (n *Node) Label() string {
	return fmt.Sprintf("%s (%s)", n.HumanKey, n.ID)
}

// Graph is a dependency graph with stable insertion order.
type Graph struct {
	nodes   map[string]*Node
	order   []string
	RootIDs []string
}

// Node returns the node for id.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Has reports whether id is a task in the graph.
func (g *Graph) Has(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// IDs returns task ids in insertion order.
func (g *Graph) IDs() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// Nodes returns nodes in insertion order.
func (g *Graph) Nodes() []*Node {
	out := make([]*Node, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id])
	}
	return out
}

// Len returns the number of tasks.
func (g *Graph) Len() int { return len(g.order) }

// Build constructs a Graph from task records. It never fails: a blocker id
// that names no task is reported in the returned errors and gets no reverse
// edge, and a repeated task id is reported and the later record ignored.
func Build(tasks []TaskRecord) (*Graph, []string) {
	g := &Graph{nodes: make(map[string]*Node, len(tasks))}
	var errs []string

	for _, t := range tasks {
		if _, exists := g.nodes[t.ID]; exists {
			errs = append(errs, fmt.Sprintf("duplicate task ID: %s", t.ID))
			continue
		}
		g.nodes[t.ID] = &Node{
			ID:        t.ID,
			HumanKey:  t.Key(),
			BlockedBy: dedupe(t.DeclaredBlockers),
		}
		g.order = append(g.order, t.ID)
	}

	for _, id := range g.order {
		n := g.nodes[id]
		for _, blockerID := range n.BlockedBy {
			blocker, ok := g.nodes[blockerID]
			if !ok {
				errs = append(errs, fmt.Sprintf("%s references unknown blocker ID: %s", n.Label(), blockerID))
				continue
			}
			blocker.Blocks = append(blocker.Blocks, id)
		}
		if len(n.BlockedBy) == 0 {
			g.RootIDs = append(g.RootIDs, id)
		}
	}

	return g, errs
}

// ExecutionLevels groups tasks by dependency depth with Kahn's algorithm:
// level 0 holds tasks with no known blockers, level n tasks whose blockers
// all sit in earlier levels. Order within a level follows insertion order.
// Unknown blocker ids are ignored. Returns an error if a cycle is detected.
func ExecutionLevels(g *Graph) ([][]string, error) {
	inDegree := make(map[string]int, len(g.order))
	for _, id := range g.order {
		for _, b := range g.nodes[id].BlockedBy {
			if g.Has(b) {
				inDegree[id]++
			}
		}
	}

	var queue []string
	for _, id := range g.order {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	var levels [][]string
	visited := 0
	for len(queue) > 0 {
		levels = append(levels, queue)
		visited += len(queue)

		ready := make(map[string]bool)
		for _, id := range queue {
			for _, dep := range g.nodes[id].Blocks {
				inDegree[dep]--
				if inDegree[dep] == 0 {
					ready[dep] = true
				}
			}
		}
		var next []string
		for _, id := range g.order {
			if ready[id] {
				next = append(next, id)
			}
		}
		queue = next
	}

	if visited != len(g.order) {
		return nil, fmt.Errorf("dag: cycle detected, processed %d of %d nodes", visited, len(g.order))
	}
	return levels, nil
}
