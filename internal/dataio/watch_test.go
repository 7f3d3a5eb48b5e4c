package dataio

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatch(t *testing.T) {
	t.Parallel()

	t.Run("ReportsChangedFile", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		data := filepath.Join(dir, "data.csv")
		other := filepath.Join(dir, "other.csv")
		require.NoError(t, os.WriteFile(data, []byte("y\n1\n"), 0o644))
		require.NoError(t, os.WriteFile(other, []byte("y\n2\n"), 0o644))

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		got := make(chan []string, 1)
		done := make(chan error, 1)
		go func() {
			done <- Watch(ctx, []string{data}, func(changed []string) {
				select {
				case got <- changed:
				default:
				}
				cancel()
			})
		}()

		// Give the watcher a moment to register, then touch both files;
		// only the watched one should be reported.
		time.Sleep(200 * time.Millisecond)
		require.NoError(t, os.WriteFile(other, []byte("y\n3\n"), 0o644))
		require.NoError(t, os.WriteFile(data, []byte("y\n4\n"), 0o644))

		select {
		case changed := <-got:
			assert.Equal(t, []string{data}, changed)
		case <-ctx.Done():
			t.Fatal("no change reported before timeout")
		}
		assert.ErrorIs(t, <-done, context.Canceled)
	})

	t.Run("NoFiles", func(t *testing.T) {
		t.Parallel()
		err := Watch(context.Background(), nil, func([]string) {})
		assert.Error(t, err)
	})

	t.Run("MissingFile", func(t *testing.T) {
		t.Parallel()
		err := Watch(context.Background(), []string{filepath.Join(t.TempDir(), "absent.csv")}, func([]string) {})
		assert.Error(t, err)
	})

	t.Run("CancelBeforeChange", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		data := filepath.Join(dir, "data.csv")
		require.NoError(t, os.WriteFile(data, []byte("y\n1\n"), 0o644))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := Watch(ctx, []string{data}, func([]string) {
			t.Error("onChange fired without a change")
		})
		assert.ErrorIs(t, err, context.Canceled)
	})
}
