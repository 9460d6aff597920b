package engine

import (
	"testing"

	"github.com/postnome/postnome/internal/ir"
	"github.com/postnome/postnome/internal/variable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreatePlan(t *testing.T) {
	ws, req := twoStepWorkspace(t)
	_, err := ws.Variables().Set(variable.Update{Name: strp("query"), Value: strp("aspirin")})
	require.NoError(t, err)

	plan, err := NewEngine(ws, &fakeTransport{}, nil, Options{}).CreatePlan(req.ID)
	require.NoError(t, err)

	assert.Equal(t, "lookup", plan.RequestName)
	require.Len(t, plan.Steps, 2)

	find := plan.Steps[0]
	assert.Equal(t, "search", find.ResourceName)
	assert.Equal(t, []string{"cid"}, find.Outputs)
	require.Len(t, find.Inputs, 1)
	assert.Equal(t, "query", find.Inputs[0].Name)
	assert.Equal(t, ir.SourceStored, find.Inputs[0].Source)

	get := plan.Steps[1]
	assert.Equal(t, ".sdf", get.ImportType)
	sources := map[string]*ir.PlanInput{}
	for _, in := range get.Inputs {
		sources[in.Name] = in
	}
	require.Contains(t, sources, "cid")
	assert.Equal(t, ir.SourceStep, sources["cid"].Source)
	assert.Equal(t, "find", sources["cid"].FromStep)
	require.Contains(t, sources, "step1")
	assert.Equal(t, ir.SourceStep, sources["step1"].Source)
	assert.Equal(t, "find", sources["step1"].FromStep)

	assert.Equal(t, []string{"query", "cid", "step1"}, plan.Fields)
}

func TestCreatePlan_FieldSource(t *testing.T) {
	ws, req := twoStepWorkspace(t)
	plan, err := NewEngine(ws, &fakeTransport{}, nil, Options{}).CreatePlan(req.ID)
	require.NoError(t, err)
	assert.Equal(t, ir.SourceField, plan.Steps[0].Inputs[0].Source)
}

func TestResultIndex(t *testing.T) {
	assert.Equal(t, 0, resultIndex("step1", 1))
	assert.Equal(t, -1, resultIndex("step1", 0))
	assert.Equal(t, -1, resultIndex("step3", 2))
	assert.Equal(t, -1, resultIndex("stepx", 2))
	assert.Equal(t, -1, resultIndex("other", 2))
}
