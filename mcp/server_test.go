package mcp

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vishalbelsare/causact/backend"
	"github.com/vishalbelsare/causact/draws"
	"github.com/vishalbelsare/causact/model"
)

// fakeBackend returns a single constant draw for every posterior column.
type fakeBackend struct {
	calls int
	err   error
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) CompileAndSample(ctx context.Context, m *model.Model, opts backend.Options) (*draws.Table, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	tbl, err := draws.NewTable(m.ColumnNames())
	if err != nil {
		return nil, err
	}
	row := make([]float64, len(m.ColumnNames()))
	for i := range row {
		row[i] = 0.5
	}
	if err := tbl.AppendRow(row); err != nil {
		return nil, err
	}
	return tbl, nil
}

func cardsGraphArgs() map[string]any {
	return map[string]any{
		"graph": map[string]any{
			"nodes": []any{
				map[string]any{
					"descr": "Get Card",
					"label": "y",
					"rhs":   "bernoulli(theta)",
					"data":  []any{1.0, 0.0, 1.0, 1.0},
				},
				map[string]any{
					"descr":    "Card Probability",
					"label":    "theta",
					"rhs":      "uniform(0, 1)",
					"children": []any{"y"},
				},
			},
		},
	}
}

func TestNewServer(t *testing.T) {
	t.Parallel()

	t.Run("CreatesServer", func(t *testing.T) {
		t.Parallel()

		server := NewServer(&fakeBackend{})

		require.NotNil(t, server)
		assert.NotNil(t, server.server)
	})

	t.Run("AllowsNilSampler", func(t *testing.T) {
		t.Parallel()

		server := NewServer(nil)

		require.NotNil(t, server)
	})
}

func TestServer_ListTools(t *testing.T) {
	t.Parallel()

	server := NewServer(&fakeBackend{})
	tools := server.ListTools()

	require.Len(t, tools, 5)

	names := make([]string, len(tools))
	for i, tool := range tools {
		names[i] = tool.Name
		assert.NotEmpty(t, tool.Description, "tool %s has no description", tool.Name)
		assert.NotNil(t, tool.InputSchema, "tool %s has no input schema", tool.Name)
	}

	assert.Contains(t, names, "causact_build")
	assert.Contains(t, names, "causact_emit")
	assert.Contains(t, names, "causact_render")
	assert.Contains(t, names, "causact_sample")
	assert.Contains(t, names, "causact_examples")
}

func TestServer_ListResources(t *testing.T) {
	t.Parallel()

	server := NewServer(&fakeBackend{})
	resources := server.ListResources()

	require.Len(t, resources, 2)

	uris := make([]string, len(resources))
	for i, res := range resources {
		uris[i] = res.URI
		assert.NotEmpty(t, res.Description)
		assert.Equal(t, "text/plain", res.MimeType)
	}

	assert.Contains(t, uris, "causact://schema")
	assert.Contains(t, uris, "causact://examples")
}

func TestServer_CallTool(t *testing.T) {
	t.Parallel()

	t.Run("Examples", func(t *testing.T) {
		t.Parallel()

		server := NewServer(&fakeBackend{})
		out, err := server.CallTool(context.Background(), "causact_examples", nil)

		require.NoError(t, err)
		assert.Contains(t, out, "cards")
		assert.Contains(t, out, "gym")
	})

	t.Run("Build", func(t *testing.T) {
		t.Parallel()

		server := NewServer(&fakeBackend{})
		out, err := server.CallTool(context.Background(), "causact_build", cardsGraphArgs())

		require.NoError(t, err)
		assert.Contains(t, out, "Compiled model")
		assert.Contains(t, out, "theta")
	})

	t.Run("BuildThenEmitSession", func(t *testing.T) {
		t.Parallel()

		server := NewServer(&fakeBackend{})
		_, err := server.CallTool(context.Background(), "causact_build", cardsGraphArgs())
		require.NoError(t, err)

		out, err := server.CallTool(context.Background(), "causact_emit", map[string]any{})

		require.NoError(t, err)
		assert.Contains(t, out, "import numpyro")
		assert.Contains(t, out, "numpyro.sample")
	})

	t.Run("EmitWithoutSession", func(t *testing.T) {
		t.Parallel()

		server := NewServer(&fakeBackend{})
		_, err := server.CallTool(context.Background(), "causact_emit", map[string]any{})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "no model in session")
	})

	t.Run("BuildUndefinedParent", func(t *testing.T) {
		t.Parallel()

		args := map[string]any{
			"graph": map[string]any{
				"nodes": []any{
					map[string]any{"label": "y", "rhs": "bernoulli(zeta)", "data": []any{1.0}},
				},
			},
		}

		server := NewServer(&fakeBackend{})
		_, err := server.CallTool(context.Background(), "causact_build", args)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "zeta")
	})

	t.Run("BuildEmptyGraph", func(t *testing.T) {
		t.Parallel()

		server := NewServer(&fakeBackend{})
		_, err := server.CallTool(context.Background(), "causact_build", map[string]any{
			"graph": map[string]any{"nodes": []any{}},
		})

		require.Error(t, err)
	})

	t.Run("EmitExample", func(t *testing.T) {
		t.Parallel()

		server := NewServer(&fakeBackend{})
		out, err := server.CallTool(context.Background(), "causact_emit", map[string]any{
			"example": "cards",
		})

		require.NoError(t, err)
		assert.Contains(t, out, "import numpyro")
		assert.Contains(t, out, "theta")
	})

	t.Run("EmitUnknownExample", func(t *testing.T) {
		t.Parallel()

		server := NewServer(&fakeBackend{})
		_, err := server.CallTool(context.Background(), "causact_emit", map[string]any{
			"example": "nope",
		})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown example")
	})

	t.Run("RenderExample", func(t *testing.T) {
		t.Parallel()

		server := NewServer(&fakeBackend{})
		out, err := server.CallTool(context.Background(), "causact_render", map[string]any{
			"example": "cards_plated",
		})

		require.NoError(t, err)
		assert.Contains(t, out, "digraph causact")
		assert.Contains(t, out, "cluster_0")
	})

	t.Run("SampleExample", func(t *testing.T) {
		t.Parallel()

		fake := &fakeBackend{}
		server := NewServer(fake)
		out, err := server.CallTool(context.Background(), "causact_sample", map[string]any{
			"example": "cards",
			"draws":   float64(100),
		})

		require.NoError(t, err)
		assert.Equal(t, 1, fake.calls)
		assert.Contains(t, out, "theta")
		assert.Contains(t, out, "mean")
	})

	t.Run("SampleBackendError", func(t *testing.T) {
		t.Parallel()

		server := NewServer(&fakeBackend{err: errors.New("kernel died")})
		_, err := server.CallTool(context.Background(), "causact_sample", map[string]any{
			"example": "cards",
		})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "kernel died")
	})

	t.Run("SampleWithoutBackend", func(t *testing.T) {
		t.Parallel()

		server := NewServer(nil)
		_, err := server.CallTool(context.Background(), "causact_sample", map[string]any{
			"example": "cards",
		})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "no sampling backend")
	})

	t.Run("UnknownTool", func(t *testing.T) {
		t.Parallel()

		server := NewServer(&fakeBackend{})
		_, err := server.CallTool(context.Background(), "causact_bogus", nil)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown tool")
	})
}

func TestServer_ReadResource(t *testing.T) {
	t.Parallel()

	t.Run("Schema", func(t *testing.T) {
		t.Parallel()

		server := NewServer(&fakeBackend{})
		out, err := server.ReadResource(context.Background(), "causact://schema")

		require.NoError(t, err)
		assert.Contains(t, out, "nodes")
		assert.Contains(t, out, "plates")
	})

	t.Run("Examples", func(t *testing.T) {
		t.Parallel()

		server := NewServer(&fakeBackend{})
		out, err := server.ReadResource(context.Background(), "causact://examples")

		require.NoError(t, err)
		assert.Contains(t, out, "cards")
	})

	t.Run("UnknownURI", func(t *testing.T) {
		t.Parallel()

		server := NewServer(&fakeBackend{})
		_, err := server.ReadResource(context.Background(), "causact://nope")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown resource")
	})
}

func TestServer_Run(t *testing.T) {
	t.Parallel()

	t.Run("NilStreams", func(t *testing.T) {
		t.Parallel()

		server := NewServer(&fakeBackend{})
		err := server.Run(context.Background(), nil, nil)

		require.Error(t, err)
	})

	t.Run("InitializeAndList", func(t *testing.T) {
		t.Parallel()

		input := `{"jsonrpc":"2.0","id":1,"method":"initialize"}` + "\n" +
			`{"jsonrpc":"2.0","id":2,"method":"tools/list"}` + "\n" +
			`{"jsonrpc":"2.0","id":3,"method":"resources/list"}` + "\n"

		var out bytes.Buffer
		server := NewServer(&fakeBackend{})
		err := server.Run(context.Background(), strings.NewReader(input), &out)

		require.NoError(t, err)
		assert.Contains(t, out.String(), "protocolVersion")
		assert.Contains(t, out.String(), "causact_build")
		assert.Contains(t, out.String(), "causact://schema")
	})

	t.Run("ToolCall", func(t *testing.T) {
		t.Parallel()

		input := `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"causact_examples","arguments":{}}}` + "\n"

		var out bytes.Buffer
		server := NewServer(&fakeBackend{})
		err := server.Run(context.Background(), strings.NewReader(input), &out)

		require.NoError(t, err)
		assert.Contains(t, out.String(), "cards")
	})

	t.Run("MethodNotFound", func(t *testing.T) {
		t.Parallel()

		input := `{"jsonrpc":"2.0","id":1,"method":"bogus/method"}` + "\n"

		var out bytes.Buffer
		server := NewServer(&fakeBackend{})
		err := server.Run(context.Background(), strings.NewReader(input), &out)

		require.NoError(t, err)
		assert.Contains(t, out.String(), "Method not found")
	})
}

func TestBuildGraph(t *testing.T) {
	t.Parallel()

	t.Run("EdgesConnectNodes", func(t *testing.T) {
		t.Parallel()

		doc := graphDoc{
			Nodes: []nodeDoc{
				{Label: "y", RHS: "normal(mu, 1)", Data: []float64{1, 2, 3}},
				{Label: "mu", RHS: "normal(0, 10)"},
			},
			Edges: [][]string{{"mu", "y"}},
		}

		g, err := buildGraph(doc)

		require.NoError(t, err)
		m, err := model.Compile(g)
		require.NoError(t, err)
		assert.Contains(t, m.ColumnNames(), "mu")
	})

	t.Run("BadEdgePair", func(t *testing.T) {
		t.Parallel()

		doc := graphDoc{
			Nodes: []nodeDoc{{Label: "y", RHS: "normal(0, 1)"}},
			Edges: [][]string{{"y"}},
		}

		_, err := buildGraph(doc)

		require.Error(t, err)
	})

	t.Run("PlateMembership", func(t *testing.T) {
		t.Parallel()

		doc := graphDoc{
			Nodes: []nodeDoc{
				{Label: "y", RHS: "bernoulli(theta)", Data: []float64{1, 0, 1, 0}},
				{Label: "theta", RHS: "uniform(0, 1)", Children: []string{"y"}},
			},
			Plates: []plateDoc{
				{Label: "g", Descr: "Group", Members: []string{"theta"}, Data: []string{"a", "b", "a", "b"}, AddDataNode: true},
			},
		}

		g, err := buildGraph(doc)

		require.NoError(t, err)
		m, err := model.Compile(g)
		require.NoError(t, err)
		assert.Contains(t, m.ColumnNames(), "theta_a")
		assert.Contains(t, m.ColumnNames(), "theta_b")
	})
}
