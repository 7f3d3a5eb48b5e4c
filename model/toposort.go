package model

import "github.com/vishalbelsare/causact/dag"

// topoSort orders node indices so that parents precede children. Ties break
// by declaration order: each pass collects every node whose parents are all
// placed, in declaration order, so independent nodes keep the order the
// analyst declared them in. Returns a CyclicGraphError when no progress can
// be made.
func topoSort(labels []string, parents map[string][]string) ([]string, error) {
	indeg := make(map[string]int, len(labels))
	for _, l := range labels {
		indeg[l] = len(parents[l])
	}
	children := make(map[string][]string, len(labels))
	for _, l := range labels {
		for _, p := range parents[l] {
			children[p] = append(children[p], l)
		}
	}

	order := make([]string, 0, len(labels))
	remaining := append([]string(nil), labels...)
	for len(remaining) > 0 {
		var layer, rest []string
		for _, l := range remaining {
			if indeg[l] == 0 {
				layer = append(layer, l)
			} else {
				rest = append(rest, l)
			}
		}
		if len(layer) == 0 {
			return nil, &dag.CyclicGraphError{Cycle: extractCycle(remaining, parents)}
		}
		for _, l := range layer {
			order = append(order, l)
			for _, c := range children[l] {
				indeg[c]--
			}
		}
		remaining = rest
	}
	return order, nil
}

// extractCycle walks parent links within the stuck set until a node
// repeats, then returns the loop in parent-to-child direction with the
// first node repeated at the end.
func extractCycle(stuck []string, parents map[string][]string) []string {
	inStuck := make(map[string]bool, len(stuck))
	for _, l := range stuck {
		inStuck[l] = true
	}
	seen := make(map[string]int)
	var path []string
	cur := stuck[0]
	for {
		if at, ok := seen[cur]; ok {
			loop := append([]string(nil), path[at:]...)
			// path follows child -> parent links; flip to read as edges.
			for i, j := 0, len(loop)-1; i < j; i, j = i+1, j-1 {
				loop[i], loop[j] = loop[j], loop[i]
			}
			return append(loop, loop[0])
		}
		seen[cur] = len(path)
		path = append(path, cur)
		next := ""
		for _, p := range parents[cur] {
			if inStuck[p] {
				next = p
				break
			}
		}
		if next == "" {
			return []string{cur, cur}
		}
		cur = next
	}
}
