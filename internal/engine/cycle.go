package engine

import "github.com/orbyt/workflow-engine/internal/domain/workflow"

type color int

const (
	white color = iota
	gray
	black
)

// DetectCycle runs a three-color DFS over the graph. On the first back-edge
// (a GRAY neighbor), it walks the parent-pointer chain from the current node
// back to the reopened node to produce the cycle path, last element equal to
// the first (spec 4.3).
func DetectCycle(g *Graph) ([]string, error) {
	colors := make(map[string]color, len(g.Nodes))
	parent := make(map[string]string, len(g.Nodes))
	for id := range g.Nodes {
		colors[id] = white
	}

	var cyclePath []string
	var visit func(id string) bool
	visit = func(id string) bool {
		colors[id] = gray
		for _, next := range g.Nodes[id].Dependents {
			switch colors[next] {
			case white:
				parent[next] = id
				if visit(next) {
					return true
				}
			case gray:
				cyclePath = buildCyclePath(parent, id, next)
				return true
			}
		}
		colors[id] = black
		return false
	}

	ids := sortedIDs(g)
	for _, id := range ids {
		if colors[id] == white {
			if visit(id) {
				return cyclePath, workflow.New(workflow.KindValidationCircularDep, "circular dependency detected").
					WithContext(map[string]interface{}{"cycle": cyclePath})
			}
		}
	}
	return nil, nil
}

func buildCyclePath(parent map[string]string, from, target string) []string {
	path := []string{from}
	cur := from
	for cur != target {
		next, ok := parent[cur]
		if !ok {
			break
		}
		path = append(path, next)
		cur = next
	}
	reverse(path)
	path = append(path, target)
	return path
}

func reverse(s []string) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

func sortedIDs(g *Graph) []string {
	ids := make([]string, 0, len(g.Nodes))
	for id := range g.Nodes {
		ids = append(ids, id)
	}
	// deterministic traversal order without importing sort twice across
	// files; simple insertion sort is fine at workflow step-count scale.
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && ids[j-1] > ids[j]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
	return ids
}

// tarjanState tracks per-node bookkeeping for Tarjan's SCC algorithm.
type tarjanState struct {
	index   map[string]int
	lowlink map[string]int
	onStack map[string]bool
	stack   []string
	counter int
	sccs    [][]string
}

// FindStronglyConnectedComponents returns every strongly connected component
// of size > 1, used only by the explanation generator for richer cycle
// diagnostics than the single path DetectCycle reports (spec 4.3).
func FindStronglyConnectedComponents(g *Graph) [][]string {
	st := &tarjanState{
		index:   make(map[string]int),
		lowlink: make(map[string]int),
		onStack: make(map[string]bool),
	}

	var strongconnect func(id string)
	strongconnect = func(id string) {
		st.index[id] = st.counter
		st.lowlink[id] = st.counter
		st.counter++
		st.stack = append(st.stack, id)
		st.onStack[id] = true

		for _, next := range g.Nodes[id].Dependents {
			if _, visited := st.index[next]; !visited {
				strongconnect(next)
				if st.lowlink[next] < st.lowlink[id] {
					st.lowlink[id] = st.lowlink[next]
				}
			} else if st.onStack[next] {
				if st.index[next] < st.lowlink[id] {
					st.lowlink[id] = st.index[next]
				}
			}
		}

		if st.lowlink[id] == st.index[id] {
			var component []string
			for {
				n := len(st.stack) - 1
				top := st.stack[n]
				st.stack = st.stack[:n]
				st.onStack[top] = false
				component = append(component, top)
				if top == id {
					break
				}
			}
			if len(component) > 1 {
				st.sccs = append(st.sccs, component)
			}
		}
	}

	for _, id := range sortedIDs(g) {
		if _, visited := st.index[id]; !visited {
			strongconnect(id)
		}
	}

	return st.sccs
}
