package model

import "fmt"

// layoutColumns expands each prior into its posterior columns: one column
// per scalar, the cartesian product of the node's plate levels with the
// first plate varying slowest. That matches the row-major flattening
// backends apply when they dump draws.
func layoutColumns(m *Model, opts Options) ([]Column, error) {
	var cols []Column
	for _, st := range m.stmts {
		if st.Kind != StmtPrior {
			continue
		}
		if len(st.Scope) == 0 {
			cols = append(cols, Column{Name: st.Node, Node: st.Node})
			continue
		}
		levelSets := make([][]string, len(st.Scope))
		for i, pl := range st.Scope {
			p, ok := m.Plate(pl)
			if !ok {
				return nil, fmt.Errorf("node %q scoped to unknown plate %q", st.Node, pl)
			}
			levelSets[i] = p.Levels
		}
		odo := make([]int, len(levelSets))
		for {
			levels := make([]string, len(odo))
			name := st.Node
			for i, j := range odo {
				levels[i] = levelSets[i][j]
				name += "_" + abbrev(levelSets[i][j], opts.AbbrevLabels)
			}
			cols = append(cols, Column{Name: name, Node: st.Node, Levels: levels})
			if !advance(odo, levelSets) {
				break
			}
		}
	}
	seen := make(map[string]string, len(cols))
	for _, c := range cols {
		if prev, ok := seen[c.Name]; ok {
			if opts.AbbrevLabels > 0 {
				return nil, fmt.Errorf("column name %q is ambiguous between %q and %q; raise AbbrevLabels", c.Name, prev, c.Node)
			}
			return nil, fmt.Errorf("column name %q is ambiguous between %q and %q", c.Name, prev, c.Node)
		}
		seen[c.Name] = c.Node
	}
	return cols, nil
}

// advance steps the mixed-radix counter, rightmost digit fastest. Returns
// false after the last combination.
func advance(odo []int, sets [][]string) bool {
	for i := len(odo) - 1; i >= 0; i-- {
		odo[i]++
		if odo[i] < len(sets[i]) {
			return true
		}
		odo[i] = 0
	}
	return false
}

func abbrev(level string, n int) string {
	if n <= 0 {
		return level
	}
	runes := []rune(level)
	if len(runes) <= n {
		return level
	}
	return string(runes[:n])
}
