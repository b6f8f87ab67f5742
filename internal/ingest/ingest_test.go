package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/l3aro/go-undead/internal/log"
	"github.com/l3aro/go-undead/pkg/dirty"
	"github.com/l3aro/go-undead/pkg/model"
	"github.com/l3aro/go-undead/pkg/store"
)

type fixture struct {
	root    string
	vm      string
	bm      string
	store   *store.Store
	tracker *dirty.Tracker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	f := &fixture{
		root: filepath.Join(dir, "src"),
		vm:   filepath.Join(dir, "vm.yaml"),
		bm:   filepath.Join(dir, "bm.yaml"),
	}
	st, err := store.Open(store.Config{InMemory: true, Logger: log.Discard()})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	f.store = st
	f.tracker = dirty.New(dirty.WithDir(filepath.Join(dir, "state")))

	f.write(t, f.vm, "variables:\n  - name: CONFIG_A\n")
	f.write(t, f.bm, "files:\n  - path: a.c\n    pc: CONFIG_A\n")
	f.write(t, filepath.Join(f.root, "a.c"), "#ifdef CONFIG_A\nint a;\n#endif\n")
	f.write(t, filepath.Join(f.root, "b.c"), "int b;\n")
	return f
}

func (f *fixture) write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func (f *fixture) run(t *testing.T, in Inputs) *Result {
	t.Helper()
	if in.SourceDir == "" {
		in.SourceDir = f.root
	}
	in.VariabilityModel, in.BuildModel, in.Workers = f.vm, f.bm, 2
	res, err := Run(context.Background(), f.store, f.tracker, in, log.Discard())
	require.NoError(t, err)
	return res
}

func TestRun_Incremental(t *testing.T) {
	f := newFixture(t)

	res := f.run(t, Inputs{})
	require.False(t, res.UpToDate())
	assert.Equal(t, uint64(1), res.Transition.Revision)
	assert.Equal(t, []string{"a.c", "b.c"}, res.Changed)
	assert.True(t, res.VariabilityModelChanged)
	assert.True(t, res.BuildModelChanged)
	assert.True(t, res.Transition.Files["a.c"].Has(model.Addition))

	res = f.run(t, Inputs{})
	assert.True(t, res.UpToDate())
	head, err := f.store.Head()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), head)

	f.write(t, filepath.Join(f.root, "a.c"), "#ifndef CONFIG_A\nint a;\n#endif\n")
	require.NoError(t, os.Remove(filepath.Join(f.root, "b.c")))
	res = f.run(t, Inputs{})
	require.False(t, res.UpToDate())
	assert.Equal(t, []string{"a.c"}, res.Changed)
	assert.Equal(t, []string{"b.c"}, res.Removed)
	assert.False(t, res.VariabilityModelChanged)
	assert.False(t, res.BuildModelChanged)
	assert.Equal(t, model.NewFlagSet(model.ExtractionChange, model.Modification), res.Transition.Files["a.c"])
	assert.Equal(t, model.NewFlagSet(model.Deletion), res.Transition.Files["b.c"])
	assert.False(t, res.Transition.VariabilityModel.Any())

	files, err := f.store.ReadCurrentCodeModel()
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "!CONFIG_A", files[0].Element(0).Condition.String())
}

func TestRun_ModelOnlyChange(t *testing.T) {
	f := newFixture(t)
	f.run(t, Inputs{})

	f.write(t, f.bm, "files:\n  - path: a.c\n    pc: \"!CONFIG_A\"\n")
	res := f.run(t, Inputs{})
	require.False(t, res.UpToDate())
	assert.Empty(t, res.Changed)
	assert.True(t, res.BuildModelChanged)
	assert.True(t, res.Transition.BuildModel.Has(model.Modification))
	assert.False(t, res.Transition.VariabilityModel.Any())
}

func TestRun_Force(t *testing.T) {
	f := newFixture(t)
	f.run(t, Inputs{})

	res := f.run(t, Inputs{Force: true})
	require.False(t, res.UpToDate())
	assert.Equal(t, []string{"a.c", "b.c"}, res.Changed)
	assert.Equal(t, model.NewFlagSet(model.ExtractionChange), res.Transition.Files["a.c"])
	assert.False(t, res.Transition.VariabilityModel.Material())
}

func TestRun_TrackerPersisted(t *testing.T) {
	f := newFixture(t)
	f.run(t, Inputs{})

	reopened, err := dirty.Open(filepath.Join(filepath.Dir(f.root), "state"))
	require.NoError(t, err)
	assert.Equal(t, 4, reopened.Len())

	changed, _, err := reopened.Check(variabilityKey, f.vm)
	require.NoError(t, err)
	assert.False(t, changed)

	cs, err := reopened.Changes(f.root, sourceScope, []string{"a.c", "b.c"})
	require.NoError(t, err)
	assert.True(t, cs.Empty())
}

func TestRun_FirstRevisionNeedsModels(t *testing.T) {
	f := newFixture(t)
	_, err := Run(context.Background(), f.store, f.tracker, Inputs{SourceDir: f.root, Workers: 1}, log.Discard())
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, 0, f.tracker.Len(), "a failed run must not record hashes")
}

func TestRun_BadModel(t *testing.T) {
	f := newFixture(t)
	f.write(t, f.vm, "constraints:\n  - \"CONFIG_A ||\"\n")
	_, err := Run(context.Background(), f.store, f.tracker, Inputs{VariabilityModel: f.vm, BuildModel: f.bm}, log.Discard())
	assert.Error(t, err)
}
