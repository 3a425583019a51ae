package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avereen/kinsim/internal/dae"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	s := New(t.TempDir())
	require.NoError(t, s.Init())

	times := []float64{0, 0.5, 1.0}
	states := [][]float64{{1, 0}, {0.6, 0.4}, {0.36, 0.64}}
	meta := RunMetadata{
		Model: "chain",
		Rtol:  1e-6,
		Atol:  1e-10,
		T0:    0,
		Tf:    1.0,
		Stats: dae.Stats{Steps: 42, ResidEvals: 120},
	}

	id, err := s.Save(meta, times, states)
	require.NoError(t, err)
	assert.Contains(t, id, "chain_")

	run, err := s.Load(id)
	require.NoError(t, err)
	assert.Equal(t, "chain", run.Meta.Model)
	assert.Equal(t, 42, run.Meta.Stats.Steps)
	assert.Equal(t, times, run.Times)
	assert.Equal(t, states, run.States)
}

func TestSaveMismatchedLengths(t *testing.T) {
	s := New(t.TempDir())
	require.NoError(t, s.Init())

	_, err := s.Save(RunMetadata{Model: "decay"}, []float64{0, 1}, [][]float64{{1}})
	assert.Error(t, err)
}

func TestListNewestFirst(t *testing.T) {
	s := New(t.TempDir())
	require.NoError(t, s.Init())

	_, err := s.Save(RunMetadata{Model: "a"}, []float64{0}, [][]float64{{1}})
	require.NoError(t, err)
	_, err = s.Save(RunMetadata{Model: "b"}, []float64{0}, [][]float64{{1}})
	require.NoError(t, err)

	metas, err := s.List()
	require.NoError(t, err)
	require.Len(t, metas, 2)
	assert.Equal(t, "b", metas[0].Model)
	assert.Equal(t, "a", metas[1].Model)
}

func TestListEmptyStore(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "never-created"))
	metas, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, metas)
}

func TestLoadUnknownRun(t *testing.T) {
	s := New(t.TempDir())
	require.NoError(t, s.Init())
	_, err := s.Load("missing_123")
	assert.Error(t, err)
}

func TestExportJSON(t *testing.T) {
	dir := t.TempDir()
	s := New(dir)
	require.NoError(t, s.Init())

	id, err := s.Save(RunMetadata{Model: "decay"}, []float64{0, 1}, [][]float64{{1}, {0.37}})
	require.NoError(t, err)

	out := filepath.Join(dir, "out.json")
	require.NoError(t, s.ExportJSON(id, out))
	assert.FileExists(t, out)
}
