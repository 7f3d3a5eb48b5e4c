package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePython writes a stand-in sampler script that ignores the generated
// model and prints fixed draws for a single theta column.
func fakePython(t *testing.T) string {
	t.Helper()
	script := filepath.Join(t.TempDir(), "python3")
	content := "#!/bin/sh\necho theta\necho 0.5\necho 0.25\necho 0.75\n"
	require.NoError(t, os.WriteFile(script, []byte(content), 0o755))
	return script
}

func TestExamplesCmd_Run(t *testing.T) {
	t.Parallel()

	cmd := &ExamplesCmd{}
	assert.NoError(t, cmd.Run())
}

func TestEmitCmd_Run(t *testing.T) {
	t.Parallel()

	t.Run("KnownExample", func(t *testing.T) {
		t.Parallel()

		cmd := &EmitCmd{Example: "cards"}
		assert.NoError(t, cmd.Run())
	})

	t.Run("UnknownExample", func(t *testing.T) {
		t.Parallel()

		cmd := &EmitCmd{Example: "lighthouse"}
		err := cmd.Run()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown example")
	})

	t.Run("SubstituteData", func(t *testing.T) {
		t.Parallel()

		dataPath := filepath.Join(t.TempDir(), "cards.csv")
		require.NoError(t, os.WriteFile(dataPath, []byte("getCard\n1\n0\n1\n"), 0o644))

		cmd := &EmitCmd{Example: "cards", Data: dataPath}
		assert.NoError(t, cmd.Run())
	})

	t.Run("DataMissingColumn", func(t *testing.T) {
		t.Parallel()

		dataPath := filepath.Join(t.TempDir(), "bad.csv")
		require.NoError(t, os.WriteFile(dataPath, []byte("wrong\n1\n"), 0o644))

		cmd := &EmitCmd{Example: "cards", Data: dataPath}
		assert.Error(t, cmd.Run())
	})
}

func TestRenderCmd_Run(t *testing.T) {
	t.Parallel()

	t.Run("WriteFile", func(t *testing.T) {
		t.Parallel()

		outPath := filepath.Join(t.TempDir(), "cards.dot")
		cmd := &RenderCmd{Example: "cards_plated", Output: outPath}
		require.NoError(t, cmd.Run())

		content, err := os.ReadFile(outPath)
		require.NoError(t, err)
		assert.Contains(t, string(content), "digraph causact")
		assert.Contains(t, string(content), "cluster_0")
	})

	t.Run("Stdout", func(t *testing.T) {
		t.Parallel()

		cmd := &RenderCmd{Example: "chili"}
		assert.NoError(t, cmd.Run())
	})
}

func TestSampleCmd_Run(t *testing.T) {
	t.Parallel()

	t.Run("CachedRun", func(t *testing.T) {
		t.Parallel()

		cacheDir := filepath.Join(t.TempDir(), ".causact")
		cmd := &SampleCmd{
			Example:      "cards",
			Python:       fakePython(t),
			SamplerFlags: SamplerFlags{Draws: 3, Warmup: 1, Chains: 1},
			CacheFlags:   CacheFlags{CacheDir: cacheDir},
		}
		require.NoError(t, cmd.Run())

		// meta.json and the badger cache land beside each other.
		_, err := os.Stat(filepath.Join(cacheDir, "meta.json"))
		assert.NoError(t, err)
		_, err = os.Stat(filepath.Join(cacheDir, "badger"))
		assert.NoError(t, err)

		status := &StatusCmd{CacheDir: cacheDir}
		assert.NoError(t, status.Run())

		clean := &CleanCmd{CacheDir: cacheDir, Force: true}
		require.NoError(t, clean.Run())
		_, err = os.Stat(cacheDir)
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("NoCache", func(t *testing.T) {
		t.Parallel()

		cacheDir := filepath.Join(t.TempDir(), ".causact")
		cmd := &SampleCmd{
			Example:      "cards",
			Python:       fakePython(t),
			SamplerFlags: SamplerFlags{Draws: 3, Warmup: 1, Chains: 1},
			CacheFlags:   CacheFlags{CacheDir: cacheDir, NoCache: true},
		}
		require.NoError(t, cmd.Run())

		// Bypassing the cache leaves nothing on disk.
		_, err := os.Stat(cacheDir)
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("FailingSampler", func(t *testing.T) {
		t.Parallel()

		script := filepath.Join(t.TempDir(), "python3")
		content := "#!/bin/sh\necho 'boom' >&2\nexit 3\n"
		require.NoError(t, os.WriteFile(script, []byte(content), 0o755))

		cmd := &SampleCmd{
			Example:      "cards",
			Python:       script,
			SamplerFlags: SamplerFlags{Draws: 3, Warmup: 1, Chains: 1},
			CacheFlags:   CacheFlags{CacheDir: filepath.Join(t.TempDir(), ".causact")},
		}
		err := cmd.Run()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "boom")
	})
}

func TestStatusCmd_Run(t *testing.T) {
	t.Parallel()

	t.Run("NoCache", func(t *testing.T) {
		t.Parallel()

		cmd := &StatusCmd{CacheDir: filepath.Join(t.TempDir(), ".causact")}
		err := cmd.Run()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no draws cache")
	})
}

func TestCleanCmd_Run(t *testing.T) {
	t.Parallel()

	t.Run("NothingToClean", func(t *testing.T) {
		t.Parallel()

		cmd := &CleanCmd{CacheDir: filepath.Join(t.TempDir(), ".causact"), Force: true}
		err := cmd.Run()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Nothing to clean")
	})
}

func TestLoadExample(t *testing.T) {
	t.Parallel()

	t.Run("BundledData", func(t *testing.T) {
		t.Parallel()

		e, g, err := loadExample("gym", "")
		require.NoError(t, err)
		assert.Equal(t, "gym", e.Name)
		assert.NoError(t, g.Err())
	})

	t.Run("UserData", func(t *testing.T) {
		t.Parallel()

		csv := "getCard,carModel\n1,Kia Forte\n0,Kia Forte\n1,Jeep Wrangler\n"
		dataPath := filepath.Join(t.TempDir(), "cards.csv")
		require.NoError(t, os.WriteFile(dataPath, []byte(csv), 0o644))

		_, g, err := loadExample("cards_plated", dataPath)
		require.NoError(t, err)
		require.NoError(t, g.Err())

		n, ok := g.NodeByLabel("y")
		require.True(t, ok)
		assert.Equal(t, []float64{1, 0, 1}, n.Data)
	})
}

func TestCLI_Execute(t *testing.T) {
	t.Parallel()

	t.Run("Examples", func(t *testing.T) {
		t.Parallel()

		cli := NewCLI()
		assert.NoError(t, cli.Execute([]string{"examples"}))
	})

	t.Run("UnknownCommand", func(t *testing.T) {
		t.Parallel()

		cli := NewCLI()
		assert.Error(t, cli.Execute([]string{"frobnicate"}))
	})

	t.Run("MissingArgument", func(t *testing.T) {
		t.Parallel()

		cli := NewCLI()
		assert.Error(t, cli.Execute([]string{"emit"}))
	})
}
