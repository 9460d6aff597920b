package workspace

import (
	"testing"

	"github.com/postnome/postnome/internal/tree"
	"github.com/postnome/postnome/internal/variable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var jsonHeaders = map[string]string{"Content-Type": "application/json"}

func TestOutput_FirstMolScenario(t *testing.T) {
	w := New()
	res, err := w.AddResource("r", "http://example.com", "get", "", nil, "")
	require.NoError(t, err)

	require.NoError(t, w.Capture(res.ID, `{"mol":"A"}`, jsonHeaders, false))
	id, err := w.SetOutput(res.ID, "", "first_mol", []string{"mol"}, nil)
	require.NoError(t, err)

	out, ok := w.OutputAt(res.ID, 0)
	require.True(t, ok)
	assert.Equal(t, id, out.VariableID)
	assert.Equal(t, "first_mol", out.Name)
	assert.Equal(t, "A", out.Value.Str())

	byID, ok := w.Output(res.ID, id)
	require.True(t, ok)
	assert.Equal(t, out, byID)

	_, ok = w.OutputAt(res.ID, 1)
	assert.False(t, ok)
}

func TestOutput_MissingPathIsNone(t *testing.T) {
	w := New()
	res, err := w.AddResource("r", "", "get", "", nil, "")
	require.NoError(t, err)
	id, err := w.SetOutput(res.ID, "", "deep", []string{"a", "b", "c"}, nil)
	require.NoError(t, err)

	_, ok := w.Output(res.ID, id)
	assert.False(t, ok, "nothing captured yet")

	require.NoError(t, w.Capture(res.ID, `{"a": {"x": 1}}`, jsonHeaders, false))
	_, ok = w.Output(res.ID, id)
	assert.False(t, ok)

	outputs, err := w.Outputs(res.ID)
	require.NoError(t, err)
	require.Len(t, outputs, 1)
	assert.Equal(t, "deep", outputs[0].Name)
	assert.True(t, outputs[0].Value.IsNull())
}

func TestOutput_SequenceIndex(t *testing.T) {
	w := New()
	res, err := w.AddResource("r", "", "get", "", nil, "")
	require.NoError(t, err)
	require.NoError(t, w.Capture(res.ID, `{"hits": [{"id": "x"}, {"id": "y"}]}`, jsonHeaders, false))

	id, err := w.SetOutput(res.ID, "", "second", []string{"hits", "1", "id"}, nil)
	require.NoError(t, err)
	out, ok := w.Output(res.ID, id)
	require.True(t, ok)
	assert.Equal(t, "y", out.Value.Str())
}

func TestCapture_UpdatesOutputVariables(t *testing.T) {
	w := New()
	res, err := w.AddResource("r", "", "get", "", nil, "")
	require.NoError(t, err)
	id, err := w.SetOutput(res.ID, "", "mol", []string{"mol"}, nil)
	require.NoError(t, err)

	require.NoError(t, w.Capture(res.ID, `{"mol": "A", "n": 3}`, jsonHeaders, false))
	v, _ := w.Variables().Value(id)
	assert.Equal(t, "A", v)

	// without overwrite the stored response is kept but values come from the new one
	require.NoError(t, w.Capture(res.ID, `{"mol": "B"}`, jsonHeaders, false))
	v, _ = w.Variables().Value(id)
	assert.Equal(t, "B", v)
	got, _ := w.Resource(res.ID)
	assert.Equal(t, `{"mol": "A", "n": 3}`, got.Output)

	require.NoError(t, w.Capture(res.ID, `{"mol": "C"}`, jsonHeaders, true))
	v, _ = w.Variables().Value(id)
	assert.Equal(t, "C", v)
	got, _ = w.Resource(res.ID)
	assert.Equal(t, `{"mol": "C"}`, got.Output)
}

func TestCaptureResponse_ReturnsFreshOutputs(t *testing.T) {
	w := New()
	res, err := w.AddResource("r", "", "get", "", nil, "")
	require.NoError(t, err)
	missing, err := w.SetOutput(res.ID, "", "missing", []string{"nope"}, nil)
	require.NoError(t, err)
	mol, err := w.SetOutput(res.ID, "", "mol", []string{"mol"}, nil)
	require.NoError(t, err)

	require.NoError(t, w.Capture(res.ID, `{"mol": "A"}`, jsonHeaders, false))
	outputs, err := w.CaptureResponse(res.ID, `{"mol": "B"}`, jsonHeaders, false)
	require.NoError(t, err)
	require.Len(t, outputs, 1)
	assert.Equal(t, mol, outputs[0].VariableID)
	assert.Equal(t, "mol", outputs[0].Name)
	assert.Equal(t, "B", outputs[0].Value.Str())

	_, ok := w.Variables().Value(missing)
	assert.True(t, ok)

	// stored response still answers OutputAt
	out, ok := w.Output(res.ID, mol)
	require.True(t, ok)
	assert.Equal(t, "A", out.Value.Str())
}

func TestCaptureResponse_DecodesWithFreshHeaders(t *testing.T) {
	w := New()
	res, err := w.AddResource("r", "", "get", "", nil, "")
	require.NoError(t, err)
	id, err := w.SetOutput(res.ID, "", "v", []string{"v"}, nil)
	require.NoError(t, err)

	require.NoError(t, w.Capture(res.ID, "plain", map[string]string{"Content-Type": "text/plain"}, false))
	outputs, err := w.CaptureResponse(res.ID, `{"v": "x"}`, jsonHeaders, false)
	require.NoError(t, err)
	require.Len(t, outputs, 1)
	v, _ := w.Variables().Value(id)
	assert.Equal(t, "x", v)
}

func TestCapture_ContainerOutputsStoredAsJSON(t *testing.T) {
	w := New()
	res, err := w.AddResource("r", "", "get", "", nil, "")
	require.NoError(t, err)
	id, err := w.SetOutput(res.ID, "", "obj", []string{"a"}, nil)
	require.NoError(t, err)

	require.NoError(t, w.Capture(res.ID, `{"a": {"b": [1, 2]}}`, jsonHeaders, true))
	v, _ := w.Variables().Value(id)
	assert.Equal(t, `{"b":[1,2]}`, v)
}

func TestCapture_UndecodableIsNotFatal(t *testing.T) {
	w := New()
	res, err := w.AddResource("r", "", "get", "", nil, "")
	require.NoError(t, err)
	id, err := w.SetOutput(res.ID, "", "x", []string{"x"}, strp("kept"))
	require.NoError(t, err)

	require.NoError(t, w.Capture(res.ID, `not json`, jsonHeaders, true))
	v, _ := w.Variables().Value(id)
	assert.Equal(t, "kept", v)

	got, _ := w.Resource(res.ID)
	assert.Equal(t, "not json", got.Output)
	assert.Empty(t, got.OutputTemplate)
}

func TestCapture_BuildsTemplate(t *testing.T) {
	w := New()
	_, err := w.Variables().Set(variable.Update{Name: strp("query"), Value: strp("aspirin")})
	require.NoError(t, err)

	res, err := w.AddResource("r", "http://x/search?q={{query}}", "get", "", nil, "")
	require.NoError(t, err)
	_, err = w.SetOutput(res.ID, "", "cid", []string{"result", "cid"}, nil)
	require.NoError(t, err)

	require.NoError(t, w.Capture(res.ID, `{"query": "aspirin", "result": {"cid": 2244}}`, jsonHeaders, true))

	tmpl, err := w.OutputTemplate(res.ID)
	require.NoError(t, err)
	expected, err := tree.Parse([]byte(`{"query": "{{query}}", "result": {"{{cid}}": 2244}}`))
	require.NoError(t, err)
	assert.True(t, tmpl.Equal(expected), tmpl.Text())

	cid, _ := w.Variables().Lookup("cid")
	assert.Equal(t, "2244", cid)
}

func TestCapture_TemplateTieBreakIsFirstInserted(t *testing.T) {
	w := New()
	_, err := w.Variables().Set(variable.Update{Name: strp("first"), Value: strp("same")})
	require.NoError(t, err)
	_, err = w.Variables().Set(variable.Update{Name: strp("second"), Value: strp("same")})
	require.NoError(t, err)

	res, err := w.AddResource("r", "http://x/{{second}}/{{first}}", "get", "", nil, "")
	require.NoError(t, err)
	require.NoError(t, w.Capture(res.ID, `{"v": "same"}`, jsonHeaders, true))

	tmpl, err := w.OutputTemplate(res.ID)
	require.NoError(t, err)
	v, ok := tmpl.Get("v")
	require.True(t, ok)
	assert.Equal(t, "{{first}}", v.Str())
}

func TestUnbindOutput(t *testing.T) {
	w := New()
	res, err := w.AddResource("r", "http://x/{{id}}", "get", "", nil, "")
	require.NoError(t, err)
	id, err := w.SetOutput(res.ID, "", "id", []string{"id"}, nil)
	require.NoError(t, err)
	assert.Empty(t, inputNames(t, w, res.ID))

	require.NoError(t, w.UnbindOutput(res.ID, id))
	assert.Equal(t, []string{"id"}, inputNames(t, w, res.ID))
	assert.Error(t, w.UnbindOutput(res.ID, id))
}

func TestClearOutput(t *testing.T) {
	w := New()
	res, err := w.AddResource("r", "", "get", "", nil, "")
	require.NoError(t, err)
	id, err := w.SetOutput(res.ID, "", "a", []string{"a"}, nil)
	require.NoError(t, err)
	require.NoError(t, w.Capture(res.ID, `{"a": 1}`, jsonHeaders, false))

	require.NoError(t, w.ClearOutput(res.ID))
	got, _ := w.Resource(res.ID)
	assert.Empty(t, got.Output)
	assert.Empty(t, got.OutputHeaders)
	assert.True(t, got.IsOutput(id))
}

func TestCapture_TextResponse(t *testing.T) {
	w := New()
	res, err := w.AddResource("r", "", "get", "", nil, "")
	require.NoError(t, err)
	id, err := w.SetOutput(res.ID, "", "body", []string{"root"}, nil)
	require.NoError(t, err)

	require.NoError(t, w.Capture(res.ID, "hello there", map[string]string{"content-type": "text/plain"}, true))
	v, _ := w.Variables().Value(id)
	assert.Equal(t, "hello there", v)
}
