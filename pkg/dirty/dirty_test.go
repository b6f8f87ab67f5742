package dirty

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestTracker_Changes(t *testing.T) {
	root := t.TempDir()
	write(t, root, "a.c", "int a;")
	write(t, root, "net/b.c", "int b;")

	tracker := New(WithDir(t.TempDir()))

	cs, err := tracker.Changes(root, "src:", []string{"net/b.c", "a.c"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.c", "net/b.c"}, cs.Changed)
	assert.Empty(t, cs.Removed)
	assert.Equal(t, 0, tracker.Len(), "Changes must not modify the tracker")

	tracker.Apply(cs)
	assert.Equal(t, 2, tracker.Len())

	cs, err = tracker.Changes(root, "src:", []string{"a.c", "net/b.c"})
	require.NoError(t, err)
	assert.True(t, cs.Empty())

	write(t, root, "a.c", "int a2;")
	cs, err = tracker.Changes(root, "src:", []string{"a.c"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.c"}, cs.Changed)
	assert.Equal(t, []string{"net/b.c"}, cs.Removed)

	tracker.Apply(cs)
	assert.Equal(t, 1, tracker.Len())
	cs, err = tracker.Changes(root, "src:", []string{"a.c"})
	require.NoError(t, err)
	assert.True(t, cs.Empty(), "net/b.c is forgotten after removal")
}

func TestTracker_ScopesAreIndependent(t *testing.T) {
	root := t.TempDir()
	write(t, root, "vm.yaml", "variables: []")
	write(t, root, "a.c", "int a;")

	tracker := New()
	changed, hash, err := tracker.Check("model:vm", filepath.Join(root, "vm.yaml"))
	require.NoError(t, err)
	assert.True(t, changed)
	tracker.Record("model:vm", hash)

	cs, err := tracker.Changes(root, "src:", []string{"a.c"})
	require.NoError(t, err)
	assert.Empty(t, cs.Removed)

	changed, _, err = tracker.Check("model:vm", filepath.Join(root, "vm.yaml"))
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestTracker_MissingInput(t *testing.T) {
	tracker := New()
	_, err := tracker.Changes(t.TempDir(), "src:", []string{"missing.c"})
	assert.Error(t, err)
}

func TestTracker_SaveLoad(t *testing.T) {
	root := t.TempDir()
	write(t, root, "a.c", "int a;")
	dir := filepath.Join(t.TempDir(), "state")

	tracker := New(WithDir(dir))
	cs, err := tracker.Changes(root, "src:", []string{"a.c"})
	require.NoError(t, err)
	tracker.Apply(cs)
	require.NoError(t, tracker.Save())
	assert.FileExists(t, filepath.Join(dir, DefaultFile))

	loaded, err := Open(dir)
	require.NoError(t, err)
	require.Equal(t, 1, loaded.Len())
	changed, _, err := loaded.Check("src:a.c", filepath.Join(root, "a.c"))
	require.NoError(t, err)
	assert.False(t, changed)

	fresh, err := Open(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 0, fresh.Len())
}

func TestTracker_SaveToLoadFrom(t *testing.T) {
	tracker := New()
	tracker.Record("b", "2")
	tracker.Record("a", "1")

	var buf bytes.Buffer
	require.NoError(t, tracker.SaveTo(&buf))
	assert.Less(t, bytes.Index(buf.Bytes(), []byte(`"a"`)), bytes.Index(buf.Bytes(), []byte(`"b"`)))

	other := New()
	require.NoError(t, other.LoadFrom(&buf))
	assert.Equal(t, 2, other.Len())

	other.Clear()
	assert.Equal(t, 0, other.Len())

	assert.Error(t, other.LoadFrom(bytes.NewBufferString("{not json")))
}
