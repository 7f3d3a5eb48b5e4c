// Package cmd provides CLI command implementations for causact.
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/fatih/color"

	"github.com/vishalbelsare/causact/backend"
	"github.com/vishalbelsare/causact/backend/numpyro"
	"github.com/vishalbelsare/causact/dag"
	"github.com/vishalbelsare/causact/draws"
	"github.com/vishalbelsare/causact/internal/dataio"
	"github.com/vishalbelsare/causact/internal/demo"
	"github.com/vishalbelsare/causact/internal/store"
	"github.com/vishalbelsare/causact/mcp"
	"github.com/vishalbelsare/causact/model"
	"github.com/vishalbelsare/causact/render"
)

// Version is set at build time via ldflags.
var Version = "dev"

// SamplerFlags carries the MCMC options shared by emit, sample, watch and
// serve.
type SamplerFlags struct {
	Draws  int   `default:"4000" help:"Posterior draws to keep per chain"`
	Warmup int   `default:"1000" help:"Warmup iterations to discard"`
	Chains int   `default:"1" help:"Number of MCMC chains"`
	Seed   int64 `default:"0" help:"PRNG seed for the sampler"`
}

func (f SamplerFlags) options() backend.Options {
	return backend.Options{Draws: f.Draws, Warmup: f.Warmup, Chains: f.Chains, Seed: f.Seed}
}

// CacheFlags select the draws cache location, or bypass it.
type CacheFlags struct {
	CacheDir string `default:".causact" help:"Draws cache directory"`
	NoCache  bool   `help:"Bypass the draws cache"`
}

// sampler wraps the python backend in the draws cache unless it is
// bypassed. The returned func releases the cache.
func (f CacheFlags) sampler(python string) (backend.Backend, func(), error) {
	nb := numpyro.New()
	nb.Python = python
	if f.NoCache {
		return nb, func() {}, nil
	}
	st, err := openStore(f.CacheDir, false)
	if err != nil {
		return nil, nil, err
	}
	return st.Sampler(nb), func() { _ = st.Close() }, nil
}

// ExamplesCmd lists the built-in example models.
type ExamplesCmd struct{}

// Run executes the examples command.
func (c *ExamplesCmd) Run() error {
	for _, e := range demo.Examples() {
		g := e.Build()
		m, err := model.Compile(g)
		if err != nil {
			return fmt.Errorf("compiling %s: %w", e.Name, err)
		}
		cols := append(append([]string(nil), e.NumericCols...), e.LabelCols...)
		fmt.Printf("%s\n", e.Name)
		fmt.Printf("  %s\n", e.Descr)
		fmt.Printf("  Nodes: %d  Plates: %d  Posterior columns: %d\n",
			len(g.Nodes()), len(g.Plates()), len(m.Columns()))
		fmt.Printf("  Data columns: %s\n\n", strings.Join(cols, ", "))
	}
	return nil
}

// EmitCmd prints the generated NumPyro source for a model.
type EmitCmd struct {
	Example string `arg:"" help:"Example model to emit"`
	Data    string `type:"existingfile" help:"CSV file replacing the bundled dataset"`
	Abbrev  int    `help:"Shorten level suffixes in column names to N runes"`
	SamplerFlags
}

// Run executes the emit command.
func (c *EmitCmd) Run() error {
	_, g, err := loadExample(c.Example, c.Data)
	if err != nil {
		return err
	}
	m, err := model.CompileWithOptions(g, model.Options{AbbrevLabels: c.Abbrev})
	if err != nil {
		return err
	}
	src, err := numpyro.GenerateSource(m, c.options())
	if err != nil {
		return err
	}
	fmt.Print(src)
	return nil
}

// RenderCmd prints Graphviz DOT for a model.
type RenderCmd struct {
	Example    string `arg:"" help:"Example model to render"`
	Data       string `type:"existingfile" help:"CSV file replacing the bundled dataset"`
	Output     string `short:"o" help:"Write DOT to a file instead of stdout"`
	ShortLabel bool   `help:"Caption nodes with bare labels instead of descriptions"`
}

// Run executes the render command.
func (c *RenderCmd) Run() error {
	_, g, err := loadExample(c.Example, c.Data)
	if err != nil {
		return err
	}
	dot, err := render.DOT(g, render.Options{ShortLabel: c.ShortLabel})
	if err != nil {
		return err
	}
	if c.Output == "" {
		fmt.Print(dot)
		return nil
	}
	if err := os.WriteFile(c.Output, []byte(dot), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", c.Output, err)
	}
	color.Green("Wrote %s", c.Output)
	return nil
}

// SampleCmd samples a model's posterior and prints summaries.
type SampleCmd struct {
	Example string `arg:"" help:"Example model to sample"`
	Data    string `type:"existingfile" help:"CSV file replacing the bundled dataset"`
	Abbrev  int    `help:"Shorten level suffixes in column names to N runes"`
	Python  string `default:"python3" help:"Python interpreter running the sampler"`
	SamplerFlags
	CacheFlags
}

// Run executes the sample command.
func (c *SampleCmd) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-osSignalChannel()
		cancel()
	}()

	e, g, err := loadExample(c.Example, c.Data)
	if err != nil {
		return err
	}
	m, err := model.CompileWithOptions(g, model.Options{AbbrevLabels: c.Abbrev})
	if err != nil {
		return err
	}

	sampler, closeStore, err := c.sampler(c.Python)
	if err != nil {
		return err
	}
	defer closeStore()

	opts := c.options()
	color.Green("Sampling %s (%d draws, %d chains)", e.Name, opts.Draws, opts.Chains)

	tbl, err := sampler.CompileAndSample(ctx, m, opts)
	if err != nil {
		return fmt.Errorf("sampling: %w", err)
	}

	if !c.NoCache {
		if err := writeMeta(c.CacheDir, e.Name, m, tbl); err != nil {
			return err
		}
	}

	color.Green("\n✓ Sampling complete")
	fmt.Printf("  Model:        %s\n", e.Name)
	fmt.Printf("  Fingerprint:  %s\n", m.Fingerprint()[:12])
	fmt.Printf("  Draws:        %d\n\n", tbl.Rows())
	printSummaries(tbl)
	return nil
}

// WatchCmd re-samples a model whenever its data file changes.
type WatchCmd struct {
	Example string `arg:"" help:"Example model to keep sampled"`
	Data    string `type:"existingfile" required:"" help:"CSV data file to watch"`
	Python  string `default:"python3" help:"Python interpreter running the sampler"`
	SamplerFlags
	CacheFlags
}

// Run executes the watch command.
func (c *WatchCmd) Run() error {
	fmt.Println("## Watch Mode")
	fmt.Printf("Watching %s for changes (Ctrl+C to stop)\n\n", c.Data)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle Ctrl+C
	go func() {
		<-osSignalChannel()
		fmt.Println("\nStopping watch mode...")
		cancel()
	}()

	sampler, closeStore, err := c.sampler(c.Python)
	if err != nil {
		return err
	}
	defer closeStore()

	resample := func() {
		_, g, err := loadExample(c.Example, c.Data)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Rebuild error: %v\n", err)
			return
		}
		m, err := model.Compile(g)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Compile error: %v\n", err)
			return
		}
		tbl, err := sampler.CompileAndSample(ctx, m, c.options())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Sampling error: %v\n", err)
			return
		}
		color.Green("✓ Sampled %s", c.Example)
		printSummaries(tbl)
		fmt.Println()
	}
	resample()

	err = dataio.Watch(ctx, []string{c.Data}, func(changed []string) {
		fmt.Printf("Change detected: %s\n", strings.Join(changed, ", "))
		resample()
	})
	if err != nil && err != context.Canceled {
		return fmt.Errorf("watch error: %w", err)
	}

	fmt.Println("Watch mode stopped.")
	return nil
}

// MCPCmd starts the MCP server.
type MCPCmd struct {
	Python string `default:"python3" help:"Python interpreter running the sampler"`
	CacheFlags
}

// Run executes the mcp command.
func (c *MCPCmd) Run() error {
	ctx := context.Background()
	sampler, closeStore, err := c.sampler(c.Python)
	if err != nil {
		return err
	}
	defer closeStore()

	server := mcp.NewServer(sampler)

	// Note: No output to stderr - MCP server uses stdio for JSON-RPC only
	return server.Run(ctx, os.Stdin, os.Stdout)
}

// ServeCmd starts the MCP server with optional cache warming.
type ServeCmd struct {
	Watch   bool   `short:"w" help:"Re-sample a watched example when its data changes"`
	Example string `default:"cards" help:"Example model kept warm in watch mode"`
	Data    string `type:"existingfile" help:"CSV data file to watch"`
	Python  string `default:"python3" help:"Python interpreter running the sampler"`
	SamplerFlags
	CacheFlags
}

// Run executes the serve command.
func (c *ServeCmd) Run() error {
	ctx := context.Background()
	sampler, closeStore, err := c.sampler(c.Python)
	if err != nil {
		return err
	}
	defer closeStore()

	server := mcp.NewServer(sampler)

	if c.Watch {
		if c.Data == "" {
			return fmt.Errorf("--watch needs --data to know which file to watch")
		}
		fmt.Fprintln(os.Stderr, "Starting MCP server with watch mode...")

		watchCtx, cancel := context.WithCancel(ctx)
		defer cancel()

		warm := func() {
			if err := warmCache(watchCtx, sampler, c.Example, c.Data, c.options()); err != nil {
				fmt.Fprintf(os.Stderr, "Warm error: %v\n", err)
			}
		}

		// Keep the cache warm in the background so tool calls hit it.
		go func() {
			warm()
			err := dataio.Watch(watchCtx, []string{c.Data}, func([]string) { warm() })
			if err != nil && err != context.Canceled {
				fmt.Fprintf(os.Stderr, "Watch error: %v\n", err)
			}
		}()

		fmt.Fprintln(os.Stderr, "File watching enabled")
	} else {
		fmt.Fprintln(os.Stderr, "Starting MCP server...")
	}

	return server.Run(ctx, os.Stdin, os.Stdout)
}

// StatusCmd shows draws cache statistics.
type StatusCmd struct {
	CacheDir string `default:".causact" help:"Draws cache directory"`
}

// Run executes the status command.
func (c *StatusCmd) Run() error {
	metaPath := filepath.Join(c.CacheDir, "meta.json")
	metaBytes, err := os.ReadFile(metaPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("no draws cache at %s. Run 'causact sample' first", c.CacheDir)
		}
		return fmt.Errorf("reading meta.json: %w", err)
	}

	var meta map[string]any
	if err := json.Unmarshal(metaBytes, &meta); err != nil {
		return fmt.Errorf("parsing meta.json: %w", err)
	}

	fmt.Printf("Draws cache at %s\n", c.CacheDir)
	if version, ok := meta["version"].(string); ok {
		fmt.Printf("  Version:       %s\n", version)
	}
	if name, ok := meta["model"].(string); ok {
		fmt.Printf("  Last model:    %s\n", name)
	}
	if fp, ok := meta["fingerprint"].(string); ok {
		fmt.Printf("  Fingerprint:   %s\n", fp)
	}
	if n, ok := meta["draws"].(float64); ok {
		fmt.Printf("  Draws:         %.0f\n", n)
	}
	if at, ok := meta["sampled_at"].(string); ok {
		fmt.Printf("  Sampled at:    %s\n", at)
	}

	st, err := openStore(c.CacheDir, true)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()
	fmt.Printf("  Cached runs:   %d\n", st.EntryCount())

	return nil
}

// CleanCmd deletes the draws cache.
type CleanCmd struct {
	CacheDir string `default:".causact" help:"Draws cache directory"`
	Force    bool   `short:"f" help:"Skip confirmation"`
}

// Run executes the clean command.
func (c *CleanCmd) Run() error {
	if _, err := os.Stat(c.CacheDir); os.IsNotExist(err) {
		return fmt.Errorf("no cache found at %s. Nothing to clean", c.CacheDir)
	}

	if !c.Force {
		fmt.Printf("Delete draws cache at %s? [y/N] ", c.CacheDir)
		var response string
		_, _ = fmt.Scanln(&response)
		if response != "y" && response != "Y" {
			fmt.Println("Aborted")
			return nil
		}
	}

	if err := os.RemoveAll(c.CacheDir); err != nil {
		return fmt.Errorf("deleting cache: %w", err)
	}

	color.Green("Deleted %s", c.CacheDir)
	return nil
}

// Helper functions

// osSignalChannel returns a channel that receives OS signals for graceful shutdown.
func osSignalChannel() <-chan os.Signal {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	return sigChan
}

// loadExample resolves an example by name and builds its graph, swapping in
// the CSV dataset when one is given.
func loadExample(name, dataPath string) (*demo.Example, *dag.Graph, error) {
	e, ok := demo.Find(name)
	if !ok {
		return nil, nil, fmt.Errorf("unknown example %q. Available: %s", name, strings.Join(demo.Names(), ", "))
	}
	if dataPath == "" {
		return e, e.Build(), nil
	}

	f, err := dataio.Load(dataPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading %s: %w", dataPath, err)
	}
	d := demo.Data{
		Numeric: make(map[string][]float64, len(e.NumericCols)),
		Labels:  make(map[string][]string, len(e.LabelCols)),
	}
	for _, col := range e.NumericCols {
		vals, err := f.Floats(col)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", dataPath, err)
		}
		d.Numeric[col] = vals
	}
	for _, col := range e.LabelCols {
		vals, err := f.Strings(col)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: %w", dataPath, err)
		}
		d.Labels[col] = vals
	}

	g, err := e.BuildFrom(d)
	if err != nil {
		return nil, nil, err
	}
	return e, g, nil
}

// openStore opens the badger-backed draws cache under cacheDir.
func openStore(cacheDir string, readOnly bool) (*store.Store, error) {
	dbPath := filepath.Join(cacheDir, "badger")
	if readOnly {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("no draws cache at %s. Run 'causact sample' first", cacheDir)
		}
	} else if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	s, err := store.Open(dbPath, readOnly)
	if err != nil {
		return nil, fmt.Errorf("opening draws cache: %w", err)
	}
	return s, nil
}

// warmCache samples the example so later calls with the same model and
// options hit the cache.
func warmCache(ctx context.Context, sampler backend.Backend, example, dataPath string, opts backend.Options) error {
	_, g, err := loadExample(example, dataPath)
	if err != nil {
		return err
	}
	m, err := model.Compile(g)
	if err != nil {
		return err
	}
	_, err = sampler.CompileAndSample(ctx, m, opts)
	return err
}

// writeMeta records the last sampling run beside the cache so status can
// report it without opening badger.
func writeMeta(cacheDir, name string, m *model.Model, tbl *draws.Table) error {
	meta := map[string]any{
		"version":     Version,
		"model":       name,
		"fingerprint": m.Fingerprint(),
		"columns":     len(tbl.Names()),
		"draws":       tbl.Rows(),
		"sampled_at":  time.Now().UTC().Format(time.RFC3339),
	}

	metaJSON, _ := json.MarshalIndent(meta, "", "  ")
	metaJSON = append(metaJSON, '\n')
	if err := os.WriteFile(filepath.Join(cacheDir, "meta.json"), metaJSON, 0o644); err != nil {
		return fmt.Errorf("writing meta.json: %w", err)
	}
	return nil
}

// printSummaries writes the posterior summary table to stdout.
func printSummaries(tbl *draws.Table) {
	sums := draws.Summarize(tbl)
	if len(sums) == 0 {
		fmt.Println("  (no draws)")
		return
	}
	fmt.Printf("  %-24s %10s %10s %10s %10s %10s %10s %10s\n",
		"parameter", "mean", "sd", "5%", "50%", "95%", "hdi90_lo", "hdi90_hi")
	for _, s := range sums {
		fmt.Printf("  %-24s %10.3f %10.3f %10.3f %10.3f %10.3f %10.3f %10.3f\n",
			s.Name, s.Mean, s.SD, s.Q5, s.Median, s.Q95, s.HDILow, s.HDIHigh)
	}
}

// CLI is the root Kong command structure.
type CLI struct {
	Version kong.VersionFlag `help:"Show version information"`

	// Commands
	Examples ExamplesCmd `cmd:"" help:"List the built-in example models"`
	Emit     EmitCmd     `cmd:"" help:"Print generated NumPyro source for a model"`
	Render   RenderCmd   `cmd:"" help:"Print Graphviz DOT for a model"`
	Sample   SampleCmd   `cmd:"" help:"Sample a model's posterior and print summaries"`
	Watch    WatchCmd    `cmd:"" help:"Re-sample a model whenever its data file changes"`
	MCP      MCPCmd      `cmd:"" help:"Start MCP server (stdio transport)"`
	Serve    ServeCmd    `cmd:"" help:"Start MCP server with optional cache warming"`
	Status   StatusCmd   `cmd:"" help:"Show draws cache statistics"`
	Clean    CleanCmd    `cmd:"" help:"Delete the draws cache"`
}

// NewCLI creates a new CLI instance.
func NewCLI() *CLI {
	return &CLI{}
}

// Execute parses command-line arguments and executes the selected command.
func (c *CLI) Execute(args []string) error {
	parser, err := kong.New(c,
		kong.Name("causact"),
		kong.Description("Bayesian DAG builder and NumPyro model compiler"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{
			"version": Version,
		},
	)
	if err != nil {
		return err
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		return err
	}
	return kctx.Run()
}
