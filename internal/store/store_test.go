package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vishalbelsare/causact/backend"
	"github.com/vishalbelsare/causact/dag"
	"github.com/vishalbelsare/causact/draws"
	"github.com/vishalbelsare/causact/model"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "badger")
	s, err := Open(dbPath, false)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testTable(t *testing.T) *draws.Table {
	t.Helper()

	tbl, err := draws.NewTable([]string{"theta"})
	require.NoError(t, err)
	require.NoError(t, tbl.AppendRow([]float64{0.5}))
	require.NoError(t, tbl.AppendRow([]float64{0.25}))
	return tbl
}

func testModel(t *testing.T) *model.Model {
	t.Helper()

	g := dag.New().
		Node(dag.NodeSpec{Label: "theta", RHS: dag.Uniform(dag.Lit(0), dag.Lit(1))}).
		Node(dag.NodeSpec{Label: "y", RHS: dag.Bernoulli(dag.Ref("theta")), Data: []float64{1, 0, 1}})
	m, err := model.Compile(g)
	require.NoError(t, err)
	return m
}

func TestOpen_ReadOnly(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "badger")

	s1, err := Open(dbPath, false)
	require.NoError(t, err)
	_, err = s1.Put("fp", "numpyro", backend.Options{}, testTable(t))
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(dbPath, true)
	require.NoError(t, err)
	defer s2.Close()

	e, err := s2.Get("fp", "numpyro", backend.Options{})
	require.NoError(t, err)
	require.NotNil(t, e)
	assert.Equal(t, []string{"theta"}, e.Draws.Names())
}

func TestStore_GetPut(t *testing.T) {
	t.Parallel()
	s := setupTestStore(t)

	e, err := s.Get("fp", "numpyro", backend.Options{})
	require.NoError(t, err)
	assert.Nil(t, e, "miss returns nil entry")

	put, err := s.Put("fp", "numpyro", backend.Options{Seed: 7}, testTable(t))
	require.NoError(t, err)
	assert.NotEmpty(t, put.RunID)
	assert.Equal(t, "numpyro", put.Backend)
	assert.False(t, put.SampledAt.IsZero())
	assert.Equal(t, 4000, put.Options.Draws, "stored options carry defaults")

	got, err := s.Get("fp", "numpyro", backend.Options{Seed: 7})
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, put.RunID, got.RunID)
	assert.Equal(t, 2, got.Draws.Rows())
	col, ok := got.Draws.Column("theta")
	require.True(t, ok)
	assert.Equal(t, []float64{0.5, 0.25}, col)
}

func TestStore_KeySeparation(t *testing.T) {
	t.Parallel()
	s := setupTestStore(t)

	_, err := s.Put("fp", "numpyro", backend.Options{Seed: 1}, testTable(t))
	require.NoError(t, err)

	for name, probe := range map[string]func() (*Entry, error){
		"OtherFingerprint": func() (*Entry, error) { return s.Get("fp2", "numpyro", backend.Options{Seed: 1}) },
		"OtherBackend":     func() (*Entry, error) { return s.Get("fp", "stan", backend.Options{Seed: 1}) },
		"OtherOptions":     func() (*Entry, error) { return s.Get("fp", "numpyro", backend.Options{Seed: 2}) },
	} {
		t.Run(name, func(t *testing.T) {
			e, err := probe()
			require.NoError(t, err)
			assert.Nil(t, e)
		})
	}
}

func TestStore_EntryCountAndClear(t *testing.T) {
	t.Parallel()
	s := setupTestStore(t)

	assert.Equal(t, 0, s.EntryCount())

	_, err := s.Put("fp1", "numpyro", backend.Options{}, testTable(t))
	require.NoError(t, err)
	_, err = s.Put("fp2", "numpyro", backend.Options{}, testTable(t))
	require.NoError(t, err)
	assert.Equal(t, 2, s.EntryCount())

	removed, err := s.Clear()
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Equal(t, 0, s.EntryCount())

	e, err := s.Get("fp1", "numpyro", backend.Options{})
	require.NoError(t, err)
	assert.Nil(t, e)
}

// countingBackend returns canned draws and counts invocations.
type countingBackend struct {
	calls int
	err   error
}

func (c *countingBackend) Name() string { return "fake" }

func (c *countingBackend) CompileAndSample(ctx context.Context, m *model.Model, opts backend.Options) (*draws.Table, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	t, err := draws.NewTable(m.ColumnNames())
	if err != nil {
		return nil, err
	}
	if err := t.AppendRow(make([]float64, len(m.ColumnNames()))); err != nil {
		return nil, err
	}
	return t, nil
}

func TestSampler_ReadThrough(t *testing.T) {
	t.Parallel()
	s := setupTestStore(t)
	m := testModel(t)

	fake := &countingBackend{}
	sampler := s.Sampler(fake)
	assert.Equal(t, "fake", sampler.Name())

	first, err := sampler.CompileAndSample(context.Background(), m, backend.Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, fake.calls)

	second, err := sampler.CompileAndSample(context.Background(), m, backend.Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, fake.calls, "second call is served from cache")
	assert.Equal(t, first.Names(), second.Names())
	assert.Equal(t, 1, s.EntryCount())
}

func TestSampler_DistinctOptionsSampleAgain(t *testing.T) {
	t.Parallel()
	s := setupTestStore(t)
	m := testModel(t)

	fake := &countingBackend{}
	sampler := s.Sampler(fake)

	_, err := sampler.CompileAndSample(context.Background(), m, backend.Options{Seed: 1})
	require.NoError(t, err)
	_, err = sampler.CompileAndSample(context.Background(), m, backend.Options{Seed: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, fake.calls)
	assert.Equal(t, 2, s.EntryCount())
}

func TestSampler_BackendErrorNotCached(t *testing.T) {
	t.Parallel()
	s := setupTestStore(t)
	m := testModel(t)

	fake := &countingBackend{err: errors.New("sampler exploded")}
	sampler := s.Sampler(fake)

	_, err := sampler.CompileAndSample(context.Background(), m, backend.Options{})
	assert.ErrorContains(t, err, "sampler exploded")
	assert.Equal(t, 0, s.EntryCount())

	fake.err = nil
	_, err = sampler.CompileAndSample(context.Background(), m, backend.Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, fake.calls)
}
