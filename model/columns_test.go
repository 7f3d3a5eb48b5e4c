package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vishalbelsare/causact/dag"
)

func carThetaGraph(levels []string) *dag.Graph {
	obs := make([]float64, len(levels))
	return dag.New().
		Node(dag.NodeSpec{Label: "y", RHS: dag.Bernoulli(dag.Ref("theta")), Data: obs}).
		Node(dag.NodeSpec{Label: "theta", RHS: dag.Uniform(dag.Lit(0), dag.Lit(1)), Children: []string{"y"}}).
		Plate(dag.PlateSpec{Label: "x", Members: []string{"theta"}, Data: levels, AddDataNode: true})
}

func TestColumns_Abbreviation(t *testing.T) {
	t.Parallel()

	t.Run("Truncates", func(t *testing.T) {
		t.Parallel()
		g := carThetaGraph([]string{"Toyota Corolla", "Kia Forte", "Jeep Wrangler"})
		m, err := CompileWithOptions(g, Options{AbbrevLabels: 4})
		require.NoError(t, err)
		assert.Equal(t, []string{"theta_Toyo", "theta_Kia ", "theta_Jeep"}, m.ColumnNames())
	})

	t.Run("KeepsShortLevels", func(t *testing.T) {
		t.Parallel()
		g := carThetaGraph([]string{"ab", "cd"})
		m, err := CompileWithOptions(g, Options{AbbrevLabels: 4})
		require.NoError(t, err)
		assert.Equal(t, []string{"theta_ab", "theta_cd"}, m.ColumnNames())
	})

	t.Run("CollisionFails", func(t *testing.T) {
		t.Parallel()
		g := carThetaGraph([]string{"alpha one", "alpha two"})
		_, err := CompileWithOptions(g, Options{AbbrevLabels: 5})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ambiguous")
		assert.Contains(t, err.Error(), "AbbrevLabels")
	})

	t.Run("ZeroKeepsFullNames", func(t *testing.T) {
		t.Parallel()
		g := carThetaGraph([]string{"Toyota Corolla", "Kia Forte"})
		m, err := Compile(g)
		require.NoError(t, err)
		assert.Equal(t, []string{"theta_Toyota Corolla", "theta_Kia Forte"}, m.ColumnNames())
	})
}

func TestColumns_AmbiguousWithoutAbbreviation(t *testing.T) {
	t.Parallel()

	// A scalar named theta_a collides with the plated theta's "a" column.
	g := dag.New().
		Node(dag.NodeSpec{Label: "theta_a", RHS: dag.Normal(dag.Lit(0), dag.Lit(1))}).
		Node(dag.NodeSpec{Label: "theta", RHS: dag.Normal(dag.Lit(0), dag.Lit(1))}).
		Plate(dag.PlateSpec{Label: "x", Members: []string{"theta"}, Data: []string{"a", "b"}})
	_, err := Compile(g)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ambiguous")
}

func TestColumns_CarryOrigins(t *testing.T) {
	t.Parallel()

	g := carThetaGraph([]string{"m1", "m2"})
	m, err := Compile(g)
	require.NoError(t, err)

	cols := m.Columns()
	require.Len(t, cols, 2)
	assert.Equal(t, Column{Name: "theta_m1", Node: "theta", Levels: []string{"m1"}}, cols[0])
	assert.Equal(t, Column{Name: "theta_m2", Node: "theta", Levels: []string{"m2"}}, cols[1])

	origins := m.ColumnOrigins()
	require.Len(t, origins, 2)
	assert.Equal(t, cols[0], origins["theta_m1"])
	assert.Equal(t, cols[1], origins["theta_m2"])
}
