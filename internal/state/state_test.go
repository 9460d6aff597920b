package state

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/postnome/postnome/internal/ir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDocument() *ir.Document {
	doc := ir.NewDocument()
	doc.Variables["v1"] = [2]string{"host", "example.org"}
	doc.Variables["v2"] = [2]string{"id", ""}
	doc.VariableNames["host"] = "v1"
	doc.VariableNames["id"] = "v2"
	doc.VariableValues["example.org"] = []string{"v1"}
	doc.VariableValues[""] = []string{"v2"}
	doc.Resources["r1"] = &ir.Resource{
		ID:             "r1",
		Name:           "Lookup",
		URL:            "https://{{host}}/items/{{id}}",
		Method:         "get",
		HeaderIDs:      []string{"h1"},
		Headers:        map[string]ir.Header{"h1": ir.NewHeader("Content-Type", "text/plain")},
		InputVariables: []string{"v1", "v2"},
		References:     map[string]int{"q1": 1},
	}
	doc.ResourceIDs = []string{"r1"}
	doc.Requests["q1"] = &ir.Request{
		ID:        "q1",
		Name:      "Fetch item",
		Steps:     []*ir.Step{{Name: "Step 1", ResourceID: "r1"}},
		StepNames: map[string]bool{"Step 1": true},
	}
	doc.RequestIDs = []string{"q1"}
	return doc
}

func TestManager_ReadWrite(t *testing.T) {
	for _, name := range []string{"settings.json", "settings.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)
			mgr := NewManager(path, "")
			ctx := context.Background()

			// Missing file reads as an empty document
			doc, err := mgr.Read(ctx)
			require.NoError(t, err)
			assert.Empty(t, doc.Variables)
			assert.Empty(t, doc.ResourceIDs)

			require.NoError(t, mgr.Write(ctx, sampleDocument()))
			_, err = os.Stat(path)
			require.NoError(t, err)
			_, err = os.Stat(path + ".tmp")
			assert.True(t, os.IsNotExist(err))

			got, err := mgr.Read(ctx)
			require.NoError(t, err)
			assert.Equal(t, sampleDocument(), got)
		})
	}
}

func TestManager_YAMLIsHumanReadable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yml")
	mgr := NewManager(path, "")
	require.NoError(t, mgr.Write(context.Background(), sampleDocument()))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "name: Lookup")
	assert.Contains(t, string(content), "resource_ids:")
}

func TestManager_Encrypted(t *testing.T) {
	t.Setenv(EncryptionKeyEnvVar, "test-key")
	path := filepath.Join(t.TempDir(), "settings.json")
	mgr := NewManager(path, "")
	ctx := context.Background()

	require.NoError(t, mgr.Write(ctx, sampleDocument()))
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, IsEncrypted(content))

	got, err := mgr.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Lookup", got.Resources["r1"].Name)
}

func TestManager_ReadRejectsInvalidDocument(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not json", "{"},
		{"wrong type", `{"variables": [], "variable_names": {}, "variable_values": {}, "resources": {}, "resource_ids": [], "requests": {}, "request_ids": []}`},
		{"missing section", `{"variables": {}}`},
		{"variable not a pair", `{"variables": {"v1": "host"}, "variable_names": {}, "variable_values": {}, "resources": {}, "resource_ids": [], "requests": {}, "request_ids": []}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "settings.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0644))

			_, err := NewManager(path, "").Read(context.Background())
			assert.Error(t, err)
		})
	}
}

func TestManager_LockUnlock(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	mgr := NewManager(path, "")

	require.NoError(t, mgr.Lock())
	err := NewManager(path, "").Lock()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLocked)

	require.NoError(t, mgr.Unlock())
	require.NoError(t, mgr.Unlock())
	require.NoError(t, mgr.Lock())
	require.NoError(t, mgr.Unlock())
}

func TestManager_StaleLockIsTakenOver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	mgr := NewManager(path, "")
	require.NoError(t, os.WriteFile(mgr.lockPath(), []byte("pid=1\n"), 0644))

	old := time.Now().Add(-2 * StaleLockAge)
	require.NoError(t, os.Chtimes(mgr.lockPath(), old, old))

	require.NoError(t, mgr.Lock())
	require.NoError(t, mgr.Unlock())
}

func TestFormatFromPath(t *testing.T) {
	assert.Equal(t, FormatYAML, FormatFromPath("a/settings.YAML"))
	assert.Equal(t, FormatYAML, FormatFromPath("settings.yml"))
	assert.Equal(t, FormatJSON, FormatFromPath("settings.json"))
	assert.Equal(t, FormatJSON, FormatFromPath("settings"))
}

func TestGenerateSchema(t *testing.T) {
	data, err := GenerateSchema()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"resource_ids"`)
	assert.Contains(t, string(data), `"Resource"`)

	encoded, err := Marshal(sampleDocument(), FormatJSON)
	require.NoError(t, err)
	assert.NoError(t, Validate(encoded))
}
