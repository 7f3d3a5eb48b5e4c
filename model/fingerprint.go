package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

type fpPlate struct {
	Label    string   `json:"label"`
	Descr    string   `json:"descr,omitempty"`
	Levels   []string `json:"levels"`
	Inferred bool     `json:"inferred,omitempty"`
	DataNode string   `json:"data_node,omitempty"`
}

type fpStmt struct {
	Kind    StatementKind `json:"kind"`
	Node    string        `json:"node"`
	Descr   string        `json:"descr,omitempty"`
	RHS     string        `json:"rhs,omitempty"`
	Scope   []string      `json:"scope,omitempty"`
	Obs     []float64     `json:"obs,omitempty"`
	IndexOf string        `json:"index_of,omitempty"`
}

// fingerprint hashes the canonical JSON form of the compiled model. Models
// with equal fingerprints emit identical backend source, so the digest is
// safe to use as a cache key for draws.
func fingerprint(m *Model) string {
	doc := struct {
		Plates  []fpPlate `json:"plates"`
		Stmts   []fpStmt  `json:"statements"`
		Columns []string  `json:"columns"`
	}{
		Plates:  make([]fpPlate, 0, len(m.plates)),
		Stmts:   make([]fpStmt, 0, len(m.stmts)),
		Columns: m.ColumnNames(),
	}
	for _, p := range m.plates {
		doc.Plates = append(doc.Plates, fpPlate{
			Label:    p.Label,
			Descr:    p.Descr,
			Levels:   p.Levels,
			Inferred: p.Inferred,
			DataNode: p.DataNode,
		})
	}
	for _, st := range m.stmts {
		fs := fpStmt{
			Kind:    st.Kind,
			Node:    st.Node,
			Descr:   st.Descr,
			Scope:   st.Scope,
			Obs:     st.Observations,
			IndexOf: st.IndexOf,
		}
		if st.RHS != nil {
			fs.RHS = st.RHS.String()
		}
		doc.Stmts = append(doc.Stmts, fs)
	}
	// Observations are validated finite at compile time, so this cannot fail.
	raw, _ := json.Marshal(doc)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
