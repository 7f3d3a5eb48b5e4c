// Package mcp provides the MCP (Model Context Protocol) server for causact.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/vishalbelsare/causact/backend"
	"github.com/vishalbelsare/causact/backend/numpyro"
	"github.com/vishalbelsare/causact/dag"
	"github.com/vishalbelsare/causact/draws"
	"github.com/vishalbelsare/causact/internal/demo"
	"github.com/vishalbelsare/causact/model"
	"github.com/vishalbelsare/causact/render"
)

// Server represents the MCP server. It keeps the last successfully built
// model as session state, so emit, render and sample can refer back to it.
type Server struct {
	sampler backend.Backend
	server  *mcp.Server

	mu    sync.Mutex
	graph *dag.Graph
	model *model.Model
}

// Tool represents an MCP tool.
type Tool struct {
	Name        string
	Description string
	InputSchema *jsonschema.Schema
}

// Resource represents an MCP resource.
type Resource struct {
	URI         string
	Name        string
	Description string
	MimeType    string
}

// NewServer creates a new MCP server. The sampler serves causact_sample
// calls and is typically the cache-wrapped python backend.
func NewServer(sampler backend.Backend) *Server {
	s := &Server{
		sampler: sampler,
	}

	// Create MCP server
	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    "causact",
		Version: "0.1.0",
	}, nil)

	return s
}

// samplerSchema holds the MCMC option properties shared by emit and sample.
func samplerSchema() map[string]*jsonschema.Schema {
	return map[string]*jsonschema.Schema{
		"draws":  {Type: "integer", Description: "Posterior draws to keep per chain (default 4000)"},
		"warmup": {Type: "integer", Description: "Warmup iterations to discard (default 1000)"},
		"chains": {Type: "integer", Description: "Number of MCMC chains (default 1)"},
		"seed":   {Type: "integer", Description: "PRNG seed for the sampler"},
	}
}

// graphSchema describes the JSON graph document causact_build accepts.
func graphSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type: "object",
		Properties: map[string]*jsonschema.Schema{
			"nodes": {
				Type:        "array",
				Description: "Model nodes in declaration order",
				Items: &jsonschema.Schema{
					Type: "object",
					Properties: map[string]*jsonschema.Schema{
						"descr": {Type: "string", Description: "Human description shown on diagrams"},
						"label": {Type: "string", Description: "Unique identifier other formulas reference"},
						"rhs": {Type: "string", Description: "Distribution or formula, e.g. normal(mu, sigma). Distributions: " +
							strings.Join(dag.Distributions(), ", ")},
						"data":     {Type: "array", Items: &jsonschema.Schema{Type: "number"}, Description: "Observed values; omit for latent nodes"},
						"children": {Type: "array", Items: &jsonschema.Schema{Type: "string"}, Description: "Labels of child nodes"},
					},
					Required: []string{"label"},
				},
			},
			"edges": {
				Type:        "array",
				Description: "Extra [parent, child] label pairs",
				Items:       &jsonschema.Schema{Type: "array", Items: &jsonschema.Schema{Type: "string"}},
			},
			"plates": {
				Type:        "array",
				Description: "Plates replicating their member nodes",
				Items: &jsonschema.Schema{
					Type: "object",
					Properties: map[string]*jsonschema.Schema{
						"descr":         {Type: "string", Description: "Human description shown on diagrams"},
						"label":         {Type: "string", Description: "Unique plate identifier"},
						"members":       {Type: "array", Items: &jsonschema.Schema{Type: "string"}, Description: "Labels of nodes inside the plate"},
						"data":          {Type: "array", Items: &jsonschema.Schema{Type: "string"}, Description: "Per-observation index values; distinct values become the plate's levels"},
						"add_data_node": {Type: "boolean", Description: "Synthesize an observed index node named after the plate"},
					},
					Required: []string{"label", "members"},
				},
			},
		},
		Required: []string{"nodes"},
	}
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []Tool {
	return []Tool{
		{
			Name:        "causact_build",
			Description: "Build and compile a Bayesian DAG from a JSON graph description. The compiled model becomes the session model that emit, render and sample default to.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"graph": graphSchema(),
				},
				Required: []string{"graph"},
			},
		},
		{
			Name:        "causact_emit",
			Description: "Generate NumPyro python source for the session model or a named example.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: mergeSchemas(map[string]*jsonschema.Schema{
					"example": {Type: "string", Description: "Built-in example name; omit to use the session model"},
				}, samplerSchema()),
			},
		},
		{
			Name:        "causact_render",
			Description: "Render the session model or a named example as Graphviz DOT.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: map[string]*jsonschema.Schema{
					"example":     {Type: "string", Description: "Built-in example name; omit to use the session model"},
					"short_label": {Type: "boolean", Description: "Caption nodes with bare labels instead of descriptions"},
				},
			},
		},
		{
			Name:        "causact_sample",
			Description: "Sample the posterior of the session model or a named example and return summary statistics. Repeated calls with the same model and options hit the draws cache.",
			InputSchema: &jsonschema.Schema{
				Type: "object",
				Properties: mergeSchemas(map[string]*jsonschema.Schema{
					"example": {Type: "string", Description: "Built-in example name; omit to use the session model"},
				}, samplerSchema()),
			},
		},
		{
			Name:        "causact_examples",
			Description: "List the built-in example models with their node and plate inventories.",
			InputSchema: &jsonschema.Schema{
				Type:       "object",
				Properties: map[string]*jsonschema.Schema{},
			},
		},
	}
}

func mergeSchemas(dst, src map[string]*jsonschema.Schema) map[string]*jsonschema.Schema {
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// ListResources returns all registered resources.
func (s *Server) ListResources() []Resource {
	return []Resource{
		{
			URI:         "causact://schema",
			Name:        "Graph Description Schema",
			Description: "JSON schema of the graph document causact_build accepts",
			MimeType:    "text/plain",
		},
		{
			URI:         "causact://examples",
			Name:        "Built-in Examples",
			Description: "Inventory of the bundled example models",
			MimeType:    "text/plain",
		},
	}
}

// CallTool executes a tool with the given arguments.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	switch name {
	case "causact_build":
		return s.handleBuild(args)
	case "causact_emit":
		return s.handleEmit(args)
	case "causact_render":
		return s.handleRender(args)
	case "causact_sample":
		return s.handleSample(ctx, args)
	case "causact_examples":
		return examplesInventory(), nil
	default:
		return "", fmt.Errorf("unknown tool: %s", name)
	}
}

// ReadResource reads a resource by URI.
func (s *Server) ReadResource(ctx context.Context, uri string) (string, error) {
	switch uri {
	case "causact://schema":
		return schemaDocument()
	case "causact://examples":
		return examplesInventory(), nil
	default:
		return "", fmt.Errorf("unknown resource: %s", uri)
	}
}

// Run starts the MCP server with stdio transport.
func (s *Server) Run(ctx context.Context, stdin io.Reader, stdout io.Writer) error {
	if stdin == nil || stdout == nil {
		return fmt.Errorf("stdin and stdout must not be nil")
	}

	reader := bufio.NewReader(stdin)
	encoder := json.NewEncoder(stdout)
	// Note: Do NOT use SetIndent - MCP protocol requires compact JSON (one line per message)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := reader.ReadBytes('\n')
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		// Parse JSON-RPC request
		var req map[string]any
		if err := json.Unmarshal(line, &req); err != nil {
			continue
		}

		// Handle request
		resp := s.handleRequest(ctx, req)
		if err := encoder.Encode(resp); err != nil {
			return err
		}
	}
}

func (s *Server) handleRequest(ctx context.Context, req map[string]any) map[string]any {
	method, _ := req["method"].(string)
	id := req["id"]

	switch method {
	case "initialize":
		return s.handleInitialize(id)
	case "tools/list":
		return s.handleToolsList(id)
	case "tools/call":
		return s.handleToolsCall(ctx, id, req)
	case "resources/list":
		return s.handleResourcesList(id)
	case "resources/read":
		return s.handleResourcesRead(ctx, id, req)
	default:
		return errorResponse(id, -32601, "Method not found: "+method)
	}
}

func (s *Server) handleInitialize(id any) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"protocolVersion": "2024-11-05",
			"serverInfo": map[string]any{
				"name":    "causact",
				"version": "0.1.0",
			},
			"capabilities": map[string]any{
				"tools": map[string]any{
					"listChanged": false,
				},
				"resources": map[string]any{
					"listChanged": false,
				},
			},
		},
	}
}

func (s *Server) handleToolsList(id any) map[string]any {
	tools := s.ListTools()
	toolList := make([]map[string]any, len(tools))
	for i, tool := range tools {
		schema, _ := json.Marshal(tool.InputSchema)
		var schemaMap map[string]any
		json.Unmarshal(schema, &schemaMap)

		toolList[i] = map[string]any{
			"name":        tool.Name,
			"description": tool.Description,
			"inputSchema": schemaMap,
		}
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"tools": toolList,
		},
	}
}

func (s *Server) handleToolsCall(ctx context.Context, id any, req map[string]any) map[string]any {
	params, _ := req["params"].(map[string]any)
	if params == nil {
		return errorResponse(id, -32602, "Invalid params")
	}

	name, _ := params["name"].(string)
	args, _ := params["arguments"].(map[string]any)

	result, err := s.CallTool(ctx, name, args)
	if err != nil {
		return errorResponse(id, -32000, err.Error())
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"content": []map[string]any{
				{
					"type": "text",
					"text": result,
				},
			},
		},
	}
}

func (s *Server) handleResourcesList(id any) map[string]any {
	resources := s.ListResources()
	resourceList := make([]map[string]any, len(resources))
	for i, res := range resources {
		resourceList[i] = map[string]any{
			"uri":         res.URI,
			"name":        res.Name,
			"description": res.Description,
			"mimeType":    res.MimeType,
		}
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"resources": resourceList,
		},
	}
}

func (s *Server) handleResourcesRead(ctx context.Context, id any, req map[string]any) map[string]any {
	params, _ := req["params"].(map[string]any)
	if params == nil {
		return errorResponse(id, -32602, "Invalid params")
	}

	uri, _ := params["uri"].(string)

	content, err := s.ReadResource(ctx, uri)
	if err != nil {
		return errorResponse(id, -32000, err.Error())
	}

	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result": map[string]any{
			"contents": []map[string]any{
				{
					"uri":      uri,
					"mimeType": "text/plain",
					"text":     content,
				},
			},
		},
	}
}

// Tool handlers

// graphDoc is the JSON graph description causact_build accepts.
type graphDoc struct {
	Nodes  []nodeDoc  `json:"nodes"`
	Edges  [][]string `json:"edges"`
	Plates []plateDoc `json:"plates"`
}

type nodeDoc struct {
	Descr    string    `json:"descr"`
	Label    string    `json:"label"`
	RHS      string    `json:"rhs"`
	Data     []float64 `json:"data"`
	Children []string  `json:"children"`
}

type plateDoc struct {
	Descr       string   `json:"descr"`
	Label       string   `json:"label"`
	Members     []string `json:"members"`
	Data        []string `json:"data"`
	AddDataNode bool     `json:"add_data_node"`
}

func (s *Server) handleBuild(args map[string]any) (string, error) {
	raw, ok := args["graph"]
	if !ok {
		return "", fmt.Errorf("missing graph description")
	}

	// Round-trip through JSON to decode the loosely-typed arguments into
	// the document struct.
	data, err := json.Marshal(raw)
	if err != nil {
		return "", fmt.Errorf("reading graph description: %w", err)
	}
	var doc graphDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return "", fmt.Errorf("invalid graph description: %w", err)
	}

	g, err := buildGraph(doc)
	if err != nil {
		return "", err
	}
	m, err := model.Compile(g)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	s.graph, s.model = g, m
	s.mu.Unlock()

	return formatModel(m), nil
}

// buildGraph assembles a dag.Graph from the decoded document. RHS strings
// go through the formula parser.
func buildGraph(doc graphDoc) (*dag.Graph, error) {
	if len(doc.Nodes) == 0 {
		return nil, fmt.Errorf("graph has no nodes")
	}

	g := dag.New()
	for _, n := range doc.Nodes {
		spec := dag.NodeSpec{
			Descr:    n.Descr,
			Label:    n.Label,
			Data:     n.Data,
			Children: n.Children,
		}
		if n.RHS != "" {
			rhs, err := dag.Parse(n.RHS)
			if err != nil {
				return nil, fmt.Errorf("node %q: %w", n.Label, err)
			}
			spec.RHS = rhs
		}
		g.Node(spec)
	}
	for _, e := range doc.Edges {
		if len(e) != 2 {
			return nil, fmt.Errorf("edge %v: want a [parent, child] pair", e)
		}
		g.Edge(e[0], e[1])
	}
	for _, p := range doc.Plates {
		g.Plate(dag.PlateSpec{
			Descr:       p.Descr,
			Label:       p.Label,
			Members:     p.Members,
			Data:        p.Data,
			AddDataNode: p.AddDataNode,
		})
	}
	if err := g.Err(); err != nil {
		return nil, err
	}
	return g, nil
}

func (s *Server) handleEmit(args map[string]any) (string, error) {
	example, _ := args["example"].(string)
	_, m, err := s.modelFor(example)
	if err != nil {
		return "", err
	}
	return numpyro.GenerateSource(m, optionsFromArgs(args))
}

func (s *Server) handleRender(args map[string]any) (string, error) {
	example, _ := args["example"].(string)
	short, _ := args["short_label"].(bool)

	g, _, err := s.modelFor(example)
	if err != nil {
		return "", err
	}
	return render.DOT(g, render.Options{ShortLabel: short})
}

func (s *Server) handleSample(ctx context.Context, args map[string]any) (string, error) {
	example, _ := args["example"].(string)
	_, m, err := s.modelFor(example)
	if err != nil {
		return "", err
	}
	if s.sampler == nil {
		return "", fmt.Errorf("no sampling backend configured")
	}

	tbl, err := s.sampler.CompileAndSample(ctx, m, optionsFromArgs(args))
	if err != nil {
		return "", err
	}
	return formatSummaries(m, tbl), nil
}

// modelFor resolves the tool target: a named example, or the session model
// left by the last causact_build.
func (s *Server) modelFor(example string) (*dag.Graph, *model.Model, error) {
	if example != "" {
		e, ok := demo.Find(example)
		if !ok {
			return nil, nil, fmt.Errorf("unknown example %q. Available: %s", example, strings.Join(demo.Names(), ", "))
		}
		g := e.Build()
		m, err := model.Compile(g)
		if err != nil {
			return nil, nil, err
		}
		return g, m, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.model == nil {
		return nil, nil, fmt.Errorf("no model in session. Call causact_build first or pass an example name")
	}
	return s.graph, s.model, nil
}

func optionsFromArgs(args map[string]any) backend.Options {
	var opts backend.Options
	if v, ok := args["draws"].(float64); ok {
		opts.Draws = int(v)
	}
	if v, ok := args["warmup"].(float64); ok {
		opts.Warmup = int(v)
	}
	if v, ok := args["chains"].(float64); ok {
		opts.Chains = int(v)
	}
	if v, ok := args["seed"].(float64); ok {
		opts.Seed = int64(v)
	}
	return opts
}

// formatModel renders the compile diagnostics returned by causact_build.
func formatModel(m *model.Model) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Compiled model %s\n\n", m.Fingerprint()[:12]))

	if plates := m.Plates(); len(plates) > 0 {
		sb.WriteString("Plates:\n")
		for _, p := range plates {
			src := "explicit levels"
			if p.Inferred {
				src = "size inferred from observations"
			}
			sb.WriteString(fmt.Sprintf("- %s [%s]: %d (%s)\n", p.Descr, p.Label, p.Size, src))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("Statements in emission order:\n")
	for i, st := range m.Statements() {
		sb.WriteString(fmt.Sprintf("%2d. %-13s %s", i+1, st.Kind, st.Node))
		switch st.Kind {
		case model.StmtPrior, model.StmtLikelihood:
			sb.WriteString(" ~ " + st.RHS.String())
		case model.StmtDeterministic:
			sb.WriteString(" = " + st.RHS.String())
		}
		if len(st.Scope) > 0 {
			sb.WriteString(" on " + strings.Join(st.Scope, " x "))
		}
		if st.Observations != nil {
			sb.WriteString(fmt.Sprintf(" (%d observations)", len(st.Observations)))
		}
		sb.WriteString("\n")
	}

	names := m.ColumnNames()
	sb.WriteString(fmt.Sprintf("\nPosterior columns (%d): %s\n", len(names), strings.Join(names, ", ")))
	sb.WriteString("\nNext: Use `causact_emit` for the NumPyro source or `causact_sample` to draw from the posterior.")
	return sb.String()
}

// formatSummaries renders the posterior summary table as markdown-ish text.
func formatSummaries(m *model.Model, tbl *draws.Table) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Sampled %d draws of model %s:\n\n", tbl.Rows(), m.Fingerprint()[:12]))
	sb.WriteString(fmt.Sprintf("%-24s %10s %10s %10s %10s %10s\n", "parameter", "mean", "sd", "5%", "50%", "95%"))
	for _, s := range draws.Summarize(tbl) {
		sb.WriteString(fmt.Sprintf("%-24s %10.3f %10.3f %10.3f %10.3f %10.3f\n",
			s.Name, s.Mean, s.SD, s.Q5, s.Median, s.Q95))
	}
	return sb.String()
}

// examplesInventory lists the built-in examples; the causact_examples tool
// and the causact://examples resource both serve it.
func examplesInventory() string {
	var sb strings.Builder
	sb.WriteString("Built-in examples:\n\n")
	for i, e := range demo.Examples() {
		g := e.Build()
		sb.WriteString(fmt.Sprintf("%d. **%s** - %s\n", i+1, e.Name, e.Descr))
		sb.WriteString(fmt.Sprintf("   Nodes: %d, Plates: %d\n", len(g.Nodes()), len(g.Plates())))
		cols := append(append([]string(nil), e.NumericCols...), e.LabelCols...)
		sb.WriteString(fmt.Sprintf("   Data columns: %s\n\n", strings.Join(cols, ", ")))
	}
	sb.WriteString("Next: Pass an example name to `causact_emit`, `causact_render` or `causact_sample`.")
	return sb.String()
}

// schemaDocument renders the graph-description schema as indented JSON.
func schemaDocument() (string, error) {
	b, err := json.MarshalIndent(graphSchema(), "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling schema: %w", err)
	}
	return string(b), nil
}

func errorResponse(id any, code int, message string) map[string]any {
	return map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	}
}
