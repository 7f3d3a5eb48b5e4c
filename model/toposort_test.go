package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vishalbelsare/causact/dag"
)

func TestTopoSort(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		labels  []string
		parents map[string][]string
		want    []string
	}{
		{
			name:    "Chain",
			labels:  []string{"c", "b", "a"},
			parents: map[string][]string{"b": {"a"}, "c": {"b"}},
			want:    []string{"a", "b", "c"},
		},
		{
			name:    "Diamond",
			labels:  []string{"a", "b", "c", "d"},
			parents: map[string][]string{"b": {"a"}, "c": {"a"}, "d": {"b", "c"}},
			want:    []string{"a", "b", "c", "d"},
		},
		{
			name:   "IndependentKeepDeclarationOrder",
			labels: []string{"z", "m", "a"},
			want:   []string{"z", "m", "a"},
		},
		{
			name:   "LayersCollectAllReadyNodes",
			labels: []string{"y", "mu", "sigma", "tau"},
			parents: map[string][]string{
				"y":  {"mu", "sigma"},
				"mu": {"tau"},
			},
			want: []string{"sigma", "tau", "mu", "y"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if tt.parents == nil {
				tt.parents = map[string][]string{}
			}
			got, err := topoSort(tt.labels, tt.parents)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTopoSort_Cycles(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		labels  []string
		parents map[string][]string
		want    []string
	}{
		{
			name:    "TwoNode",
			labels:  []string{"a", "b"},
			parents: map[string][]string{"a": {"b"}, "b": {"a"}},
			want:    []string{"b", "a", "b"},
		},
		{
			name:    "SelfLoop",
			labels:  []string{"a"},
			parents: map[string][]string{"a": {"a"}},
			want:    []string{"a", "a"},
		},
		{
			name:   "CycleBehindPrefix",
			labels: []string{"root", "p", "q", "r"},
			parents: map[string][]string{
				"p": {"root", "r"},
				"q": {"p"},
				"r": {"q"},
			},
			want: []string{"q", "r", "p", "q"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := topoSort(tt.labels, tt.parents)
			var cyc *dag.CyclicGraphError
			require.ErrorAs(t, err, &cyc)
			assert.Equal(t, tt.want, cyc.Cycle)
		})
	}
}
