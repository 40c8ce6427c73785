package dag

import (
	"fmt"
	"slices"
	"strings"
)

type color int

const (
	white color = iota // unvisited
	gray               // on the current DFS path
	black              // fully explored
)

// CycleResult is the outcome of cycle detection.
type CycleResult struct {
	HasCycles bool
	// CyclePath lists the ids on the first cycle found, blocker first.
	CyclePath []string
}

// DetectCycles searches the graph for a cycle along BlockedBy edges with a
// three-color depth-first search started from each task in insertion order.
// A task that lists itself as a blocker is a one-node cycle. Unknown
// blocker ids are skipped.
func DetectCycles(g *Graph) CycleResult {
	d := &cycleDetector{
		g:      g,
		colors: make(map[string]color, g.Len()),
		parent: make(map[string]string, g.Len()),
	}
	for _, id := range g.order {
		if d.colors[id] != white {
			continue
		}
		if path := d.visit(id); path != nil {
			return CycleResult{HasCycles: true, CyclePath: path}
		}
	}
	return CycleResult{}
}

type cycleDetector struct {
	g      *Graph
	colors map[string]color
	parent map[string]string
}

func (d *cycleDetector) visit(id string) []string {
	d.colors[id] = gray
	for _, blocker := range d.g.nodes[id].BlockedBy {
		if !d.g.Has(blocker) {
			continue
		}
		switch d.colors[blocker] {
		case gray:
			return d.unwind(id, blocker)
		case white:
			d.parent[blocker] = id
			if path := d.visit(blocker); path != nil {
				return path
			}
		}
	}
	d.colors[id] = black
	return nil
}

// unwind follows parent pointers from the current node back to the gray
// node that closed the cycle, then reverses so the path reads blocker first.
func (d *cycleDetector) unwind(from, to string) []string {
	path := []string{from}
	for cur := from; cur != to; {
		cur = d.parent[cur]
		path = append(path, cur)
	}
	slices.Reverse(path)
	return path
}

// FormatCyclePath renders a cycle path closed on itself, "a → b → a".
func FormatCyclePath(path []string) string {
	if len(path) == 0 {
		return ""
	}
	return strings.Join(append(slices.Clone(path), path[0]), " → ")
}

// ValidationResult is the outcome of ValidateDependencies.
type ValidationResult struct {
	Valid     bool
	Errors    []string
	CyclePath []string
}

// ValidateDependencies checks a task list without building a scheduler:
// reference errors first, then an explicit message for each task that
// blocks itself, then full cycle detection.
func ValidateDependencies(tasks []TaskRecord) ValidationResult {
	g, errs := Build(tasks)

	for _, n := range g.Nodes() {
		if slices.Contains(n.BlockedBy, n.ID) {
			errs = append(errs, fmt.Sprintf("%s cannot block itself", n.Label()))
		}
	}

	res := DetectCycles(g)
	if res.HasCycles {
		errs = append(errs, "circular dependency detected: "+FormatCyclePath(res.CyclePath))
	}

	return ValidationResult{
		Valid:     len(errs) == 0,
		Errors:    errs,
		CyclePath: res.CyclePath,
	}
}
