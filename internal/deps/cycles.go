package deps

import (
	"sort"

	"github.com/CLIAIBRAIN/internal/types"
)

// findCycles runs Tarjan's SCC over the resolved-dep edges. A task is in
// a cycle iff its component has size two or more, or it depends on
// itself. Unresolved refs never contribute edges so they can never put a
// task in a cycle.
func findCycles(tasks []types.Entry, edges [][]int) ([][]string, []bool) {
	n := len(tasks)
	inCycle := make([]bool, n)
	var cycles [][]string

	const unvisited = -1
	index := make([]int, n)
	lowlink := make([]int, n)
	onStack := make([]bool, n)
	for i := range index {
		index[i] = unvisited
	}

	var stack []int
	counter := 0

	// iterative Tarjan; recursion would overflow on deep chains
	type frame struct {
		node int
		edge int
	}

	for start := 0; start < n; start++ {
		if index[start] != unvisited {
			continue
		}

		callStack := []frame{{node: start}}
		index[start] = counter
		lowlink[start] = counter
		counter++
		stack = append(stack, start)
		onStack[start] = true

		for len(callStack) > 0 {
			f := &callStack[len(callStack)-1]
			v := f.node

			if f.edge < len(edges[v]) {
				w := edges[v][f.edge]
				f.edge++
				if index[w] == unvisited {
					index[w] = counter
					lowlink[w] = counter
					counter++
					stack = append(stack, w)
					onStack[w] = true
					callStack = append(callStack, frame{node: w})
				} else if onStack[w] {
					if lowlink[v] > index[w] {
						lowlink[v] = index[w]
					}
				}
				continue
			}

			callStack = callStack[:len(callStack)-1]
			if len(callStack) > 0 {
				parent := callStack[len(callStack)-1].node
				if lowlink[parent] > lowlink[v] {
					lowlink[parent] = lowlink[v]
				}
			}

			if lowlink[v] != index[v] {
				continue
			}

			// v is an SCC root; pop the component
			var comp []int
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				comp = append(comp, w)
				if w == v {
					break
				}
			}

			if len(comp) > 1 || selfLoop(edges, comp[0]) {
				ids := make([]string, 0, len(comp))
				for _, w := range comp {
					inCycle[w] = true
					ids = append(ids, tasks[w].ID)
				}
				sort.Strings(ids)
				cycles = append(cycles, ids)
			}
		}
	}

	sort.Slice(cycles, func(i, j int) bool { return cycles[i][0] < cycles[j][0] })
	return cycles, inCycle
}

func selfLoop(edges [][]int, v int) bool {
	for _, w := range edges[v] {
		if w == v {
			return true
		}
	}
	return false
}
