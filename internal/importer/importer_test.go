package importer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/postnome/postnome/internal/tree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_LoadAndGet(t *testing.T) {
	r := NewRegistry(t.TempDir())

	_, err := r.Get(".pdb")
	assert.Error(t, err)

	require.NoError(t, r.Load(".pdb"))
	require.NoError(t, r.Load(".pdb"))
	imp, err := r.Get(".pdb")
	require.NoError(t, err)
	assert.IsType(t, &FileImporter{}, imp)

	assert.Error(t, r.Load(".exe"))
	assert.Equal(t, []string{".pdb"}, r.Loaded())
}

func TestRegistry_ImportWritesFile(t *testing.T) {
	dir := t.TempDir()
	r := NewRegistry(dir)

	path, err := r.Import(context.Background(), Item{Name: "aspirin", Type: ".sdf", Content: "MOLDATA"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "aspirin.sdf"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "MOLDATA", string(data))

	_, err = os.Stat(path + RemarksSuffix)
	assert.True(t, os.IsNotExist(err))
}

func TestRegistry_ImportWithMetadata(t *testing.T) {
	dir := t.TempDir()
	r := NewRegistry(dir)

	meta := `{"status": "ok", "record": {"id": 1, "props": {"mw": "180.16", "formula": "C9H8O4", "iupac": "x"}}}`
	path, err := r.Import(context.Background(), Item{Name: "../escape", Type: ".pdb", Content: "ATOM", Metadata: meta})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "escape.pdb"), path)

	data, err := os.ReadFile(path + RemarksSuffix)
	require.NoError(t, err)
	assert.JSONEq(t, `{"mw": "180.16", "formula": "C9H8O4", "iupac": "x"}`, string(data))
}

func TestRegistry_BadMetadataStillImports(t *testing.T) {
	dir := t.TempDir()
	r := NewRegistry(dir)

	path, err := r.Import(context.Background(), Item{Name: "m", Type: ".mol", Content: "x", Metadata: "not json"})
	require.NoError(t, err)
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestRegistry_Discard(t *testing.T) {
	dir := t.TempDir()
	r := NewRegistry(dir)

	path, err := r.Import(context.Background(), Item{Name: "x", Type: Discard, Content: "x"})
	require.NoError(t, err)
	assert.Empty(t, path)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

type recording struct{ items []Item }

func (r *recording) Import(_ context.Context, item Item) (string, error) {
	r.items = append(r.items, item)
	return "memory", nil
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry(t.TempDir())
	rec := &recording{}
	r.Register(".json", rec)

	loc, err := r.Import(context.Background(), Item{Name: "doc", Type: ".json", Content: "{}"})
	require.NoError(t, err)
	assert.Equal(t, "memory", loc)
	require.Len(t, rec.items, 1)
}

func TestRemarks(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"flat", `{"a": 1}`, `{"a": 1}`},
		{"first child", `{"x": {"a": 1}, "y": 2}`, `{"a": 1}`},
		{"larger later child", `{"x": {"a": 1}, "y": {"b": 1, "c": 2}}`, `{"b": 1, "c": 2}`},
		{"nested", `{"outer": {"inner": {"k": "v"}}}`, `{"k": "v"}`},
		{"sibling sizes compared before descending", `{"x": {"inner": {"a": 1, "b": 2, "c": 3}}, "y": {"p": 1, "q": 2}}`, `{"p": 1, "q": 2}`},
		{"scalar", `"text"`, `"text"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := tree.Parse([]byte(tt.input))
			require.NoError(t, err)
			want, err := tree.Parse([]byte(tt.expected))
			require.NoError(t, err)
			got := Remarks(in)
			assert.True(t, want.Equal(got), got.Text())
		})
	}
}
