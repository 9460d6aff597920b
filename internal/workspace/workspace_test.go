package workspace

import (
	"errors"
	"sync"
	"testing"

	"github.com/postnome/postnome/internal/ir"
	"github.com/postnome/postnome/internal/variable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strp(s string) *string { return &s }

func inputNames(t *testing.T, w *Workspace, resourceID string) []string {
	t.Helper()
	inputs, err := w.Inputs(resourceID)
	require.NoError(t, err)
	var names []string
	for _, v := range inputs {
		names = append(names, v.Name)
	}
	return names
}

func TestAddResource_Defaults(t *testing.T) {
	w := New()

	res, err := w.AddResource("", "http://{{host}}/api", "", "", nil, "")
	require.NoError(t, err)

	assert.Equal(t, "Resource 1", res.Name)
	assert.Equal(t, MethodGet, res.Method)
	require.Len(t, res.HeaderIDs, 1)
	assert.Equal(t, ir.NewHeader("Content-Type", "text/plain"), res.Headers[res.HeaderIDs[0]])
	assert.Equal(t, []string{"host"}, inputNames(t, w, res.ID))

	second, err := w.AddResource("", "", "POST", "", []ir.Header{}, "")
	require.NoError(t, err)
	assert.Equal(t, "Resource 2", second.Name)
	assert.Equal(t, MethodPost, second.Method)
	assert.Empty(t, second.HeaderIDs)
	assert.NotEqual(t, res.ID, second.ID)
}

func TestAddResource_RejectsBadInput(t *testing.T) {
	w := New()
	_, err := w.AddResource("r", "", "delete", "", nil, "")
	assert.Error(t, err)

	_, err = w.AddResource("r", "", "get", "", []ir.Header{ir.NewHeader("A", "1"), ir.NewHeader("A", "2")}, "")
	assert.True(t, errors.Is(err, ir.ErrDuplicateHeader))
	assert.Empty(t, w.Resources())
}

func TestChangeResource_RecomputesInputs(t *testing.T) {
	w := New()
	res, err := w.AddResource("r", "http://{{host}}/{{path}}", "post", ".pdb", []ir.Header{ir.NewHeader("X-{{hname}}", "{{token}}")}, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"host", "path", "hname", "token"}, inputNames(t, w, res.ID))

	require.NoError(t, w.ChangeResource(res.ID, Change{
		URL:           strp("http://{{host}}/fixed"),
		Data:          strp(`{"q": "{{query}}", "again": "{{host}}"}`),
		ImportName:    strp("{{mol}}"),
		ImportContent: strp("{{content}}"),
	}))
	assert.Equal(t, []string{"host", "query", "mol", "content", "hname", "token"}, inputNames(t, w, res.ID))

	got, ok := w.Resource(res.ID)
	require.True(t, ok)
	assert.Equal(t, "{{mol}}", got.ImportName)
}

func TestChangeResource_ExcludesOutputs(t *testing.T) {
	w := New()
	res, err := w.AddResource("r", "http://x/{{id}}", "get", "", nil, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"id"}, inputNames(t, w, res.ID))

	_, err = w.SetOutput(res.ID, "", "id", []string{"id"}, nil)
	require.NoError(t, err)
	assert.Empty(t, inputNames(t, w, res.ID))

	require.NoError(t, w.ChangeResource(res.ID, Change{URL: strp("http://x/{{id}}/{{other}}")}))
	assert.Equal(t, []string{"other"}, inputNames(t, w, res.ID))
}

func TestHeaders(t *testing.T) {
	w := New()
	res, err := w.AddResource("r", "", "get", "", []ir.Header{}, "")
	require.NoError(t, err)

	auth, err := w.AddHeader(res.ID, "Authorization", "Bearer {{token}}")
	require.NoError(t, err)
	_, err = w.AddHeader(res.ID, "Authorization", "again")
	assert.True(t, errors.Is(err, ir.ErrDuplicateHeader))
	assert.True(t, errors.Is(err, ir.ErrDuplicateName))

	accept, err := w.AddHeader(res.ID, "Accept", "application/json")
	require.NoError(t, err)
	assert.Equal(t, []string{"token"}, inputNames(t, w, res.ID))

	err = w.SetHeader(res.ID, accept, "Authorization", "x")
	assert.True(t, errors.Is(err, ir.ErrDuplicateHeader))

	require.NoError(t, w.SetHeader(res.ID, auth, "Authorization", "Basic {{creds}}"))
	assert.Equal(t, []string{"creds"}, inputNames(t, w, res.ID))

	hid, err := w.FindHeader(res.ID, "Accept")
	require.NoError(t, err)
	assert.Equal(t, accept, hid)

	require.NoError(t, w.DeleteHeader(res.ID, auth))
	assert.Empty(t, inputNames(t, w, res.ID))
	assert.True(t, errors.Is(w.DeleteHeader(res.ID, auth), ir.ErrNotFound))
	assert.True(t, errors.Is(w.SetHeader(res.ID, "missing", "a", "b"), ir.ErrNotFound))

	got, _ := w.Resource(res.ID)
	assert.Equal(t, []string{accept}, got.HeaderIDs)
}

func TestHeaders_SwapNames(t *testing.T) {
	w := New()
	res, err := w.AddResource("r", "", "get", "", []ir.Header{ir.NewHeader("A", "1"), ir.NewHeader("B", "2")}, "")
	require.NoError(t, err)

	a, b := res.HeaderIDs[0], res.HeaderIDs[1]
	require.NoError(t, w.ChangeResource(res.ID, Change{Headers: map[string]ir.Header{
		a: ir.NewHeader("B", "1"),
		b: ir.NewHeader("A", "2"),
	}}))

	got, _ := w.Resource(res.ID)
	assert.Equal(t, "B", got.Headers[a].Name())
	assert.Equal(t, "A", got.Headers[b].Name())
}

func TestSetMethod_ClearsOutput(t *testing.T) {
	w := New()
	res, err := w.AddResource("r", "", "get", "", nil, "")
	require.NoError(t, err)
	require.NoError(t, w.Capture(res.ID, `{"a": 1}`, map[string]string{"Content-Type": "application/json"}, true))

	require.NoError(t, w.SetMethod(res.ID, "get"))
	got, _ := w.Resource(res.ID)
	assert.NotEmpty(t, got.Output)

	require.NoError(t, w.SetMethod(res.ID, "POST"))
	got, _ = w.Resource(res.ID)
	assert.Equal(t, MethodPost, got.Method)
	assert.Empty(t, got.Output)
	assert.Empty(t, got.OutputTemplate)

	assert.Error(t, w.SetMethod(res.ID, "patch"))
}

func TestAccessorsReturnCopies(t *testing.T) {
	w := New()
	res, err := w.AddResource("r", "u", "get", "", nil, "")
	require.NoError(t, err)

	res.Name = "mutated"
	got, _ := w.Resource(res.ID)
	assert.Equal(t, "r", got.Name)
}

func TestFindResource(t *testing.T) {
	w := New()
	res, err := w.AddResource("search", "", "get", "", nil, "")
	require.NoError(t, err)

	byName, err := w.FindResource("search")
	require.NoError(t, err)
	assert.Equal(t, res.ID, byName.ID)

	byID, err := w.FindResource(res.ID)
	require.NoError(t, err)
	assert.Equal(t, "search", byID.Name)

	_, err = w.FindResource("nope")
	assert.True(t, errors.Is(err, ir.ErrNotFound))

	at, ok := w.ResourceAt(0)
	require.True(t, ok)
	assert.Equal(t, res.ID, at.ID)
	_, ok = w.ResourceAt(1)
	assert.False(t, ok)
}

func TestDeleteVariable_InUse(t *testing.T) {
	w := New()
	res, err := w.AddResource("r", "http://{{host}}", "get", "", nil, "")
	require.NoError(t, err)
	hostID, ok := w.Variables().IDOf("host")
	require.True(t, ok)

	assert.True(t, errors.Is(w.DeleteVariable(hostID), ir.ErrVariableInUse))

	require.NoError(t, w.ChangeResource(res.ID, Change{URL: strp("http://fixed")}))
	require.NoError(t, w.DeleteVariable(hostID))
	_, ok = w.Variables().IDOf("host")
	assert.False(t, ok)
	require.NoError(t, w.Variables().Check())
}

func TestDeleteVariable_ConcurrentReferenceIsNeverLost(t *testing.T) {
	for i := 0; i < 200; i++ {
		w := New()
		id := w.Variables().Touch("host")
		res, err := w.AddResource("r", "http://fixed", "get", "", nil, "")
		require.NoError(t, err)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = w.DeleteVariable(id)
		}()
		go func() {
			defer wg.Done()
			_ = w.ChangeResource(res.ID, Change{URL: strp("http://{{host}}")})
		}()
		wg.Wait()

		got, ok := w.Resource(res.ID)
		require.True(t, ok)
		require.Len(t, got.InputVariables, 1)
		_, ok = w.Variables().Get(got.InputVariables[0])
		require.True(t, ok, "input %s missing from the store", got.InputVariables[0])
		require.NoError(t, w.Variables().Check())
	}
}

func TestDeleteVariable_UsedAsOutputOrMetadata(t *testing.T) {
	w := New()
	res, err := w.AddResource("r", "", "get", "", nil, "")
	require.NoError(t, err)
	out, err := w.SetOutput(res.ID, "", "out", []string{"a"}, nil)
	require.NoError(t, err)
	assert.True(t, errors.Is(w.DeleteVariable(out), ir.ErrVariableInUse))

	meta := w.Variables().Touch("meta")
	req, err := w.AddRequest("q")
	require.NoError(t, err)
	_, err = w.AddStep(req.ID, "s", res.ID, "meta", false)
	require.NoError(t, err)
	assert.True(t, errors.Is(w.DeleteVariable(meta), ir.ErrVariableInUse))
}

func TestRenameVariable_RewritesTemplates(t *testing.T) {
	w := New()
	res, err := w.AddResource("r", "http://{{host}}/{{host}}/{{other}}", "get", "", []ir.Header{ir.NewHeader("X-Host", "{{host}}")}, "{{host}}")
	require.NoError(t, err)
	req, err := w.AddRequest("q")
	require.NoError(t, err)
	_, err = w.AddStep(req.ID, "s", res.ID, "host", false)
	require.NoError(t, err)

	hostID, _ := w.Variables().IDOf("host")
	require.NoError(t, w.RenameVariable(hostID, "server"))

	got, _ := w.Resource(res.ID)
	assert.Equal(t, "http://{{server}}/{{server}}/{{other}}", got.URL)
	assert.Equal(t, "{{server}}", got.Data)
	assert.Equal(t, "{{server}}", got.Headers[got.HeaderIDs[0]].Value())
	assert.Equal(t, []string{"server", "other"}, inputNames(t, w, res.ID))

	gotReq, _ := w.Request(req.ID)
	assert.Equal(t, "server", gotReq.Steps[0].MetadataSource)

	otherID, _ := w.Variables().IDOf("other")
	assert.True(t, errors.Is(w.RenameVariable(otherID, "server"), ir.ErrDuplicateName))
}

func TestVariableStoreIsShared(t *testing.T) {
	w := New()
	_, err := w.Variables().Set(variable.Update{Name: strp("host"), Value: strp("example.com")})
	require.NoError(t, err)

	res, err := w.AddResource("r", "http://{{host}}", "get", "", nil, "")
	require.NoError(t, err)
	inputs, err := w.Inputs(res.ID)
	require.NoError(t, err)
	require.Len(t, inputs, 1)
	assert.Equal(t, "example.com", inputs[0].Value)
}
