package numpyro

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/vishalbelsare/causact/backend"
	"github.com/vishalbelsare/causact/draws"
	"github.com/vishalbelsare/causact/model"
)

// Backend samples compiled models by generating a NumPyro script and
// running it under a Python interpreter with numpyro installed.
type Backend struct {
	// Python is the interpreter to invoke. Empty means "python3".
	Python string
}

// New returns a backend using the default python3 interpreter.
func New() *Backend { return &Backend{} }

// Name implements backend.Backend.
func (b *Backend) Name() string { return "numpyro" }

func (b *Backend) python() string {
	if b.Python != "" {
		return b.Python
	}
	return "python3"
}

// CompileAndSample implements backend.Backend. The generated script is
// written to a temporary file, executed, and its stdout parsed as CSV
// draws. Sampler failures surface with the interpreter's stderr attached.
func (b *Backend) CompileAndSample(ctx context.Context, m *model.Model, opts backend.Options) (*draws.Table, error) {
	src, err := GenerateSource(m, opts)
	if err != nil {
		return nil, err
	}

	f, err := os.CreateTemp("", "causact-*.py")
	if err != nil {
		return nil, fmt.Errorf("write model script: %w", err)
	}
	defer os.Remove(f.Name())
	if _, err := f.WriteString(src); err != nil {
		f.Close()
		return nil, fmt.Errorf("write model script: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("write model script: %w", err)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, b.python(), f.Name())
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("sampling interrupted: %w", ctx.Err())
		}
		return nil, fmt.Errorf("numpyro sampling failed: %w\n%s", err, tail(stderr.String(), 4096))
	}

	t, err := draws.ReadCSV(&stdout)
	if err != nil {
		return nil, fmt.Errorf("parse sampler output: %w", err)
	}
	want := m.ColumnNames()
	got := t.Names()
	if len(want) != len(got) {
		return nil, fmt.Errorf("sampler returned %d columns, model has %d", len(got), len(want))
	}
	for i := range want {
		if want[i] != got[i] {
			return nil, fmt.Errorf("sampler returned column %q where model expects %q", got[i], want[i])
		}
	}
	return t, nil
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return "..." + s[len(s)-n:]
}
