package variable

import (
	"errors"
	"fmt"
	"testing"

	"github.com/postnome/postnome/internal/ir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strp(s string) *string { return &s }

func TestTouch(t *testing.T) {
	s := New()

	id := s.Touch("host")
	require.NotEmpty(t, id)
	assert.Equal(t, id, s.Touch("host"))

	v, ok := s.Value(id)
	require.True(t, ok)
	assert.Equal(t, "", v)
	assert.Equal(t, []string{id}, s.ByValue(""))
	require.NoError(t, s.Check())
}

func TestSet_MovesValueBuckets(t *testing.T) {
	s := New()

	id, err := s.Set(Update{Name: strp("x"), Value: strp("1")})
	require.NoError(t, err)

	got, err := s.Set(Update{ID: id, Value: strp("2")})
	require.NoError(t, err)
	assert.Equal(t, id, got)

	v, _ := s.Value(id)
	assert.Equal(t, "2", v)
	assert.Empty(t, s.ByValue("1"))
	assert.Empty(t, s.ByValue(""))
	assert.Equal(t, []string{id}, s.ByValue("2"))

	snap := ir.NewDocument()
	s.Snapshot(snap)
	_, has := snap.VariableValues["1"]
	assert.False(t, has, "emptied bucket must be removed")
	require.NoError(t, s.Check())
}

func TestSet_RequiresIDOrName(t *testing.T) {
	s := New()
	_, err := s.Set(Update{Value: strp("1")})
	assert.Error(t, err)

	_, err = s.Set(Update{ID: "nope", Value: strp("1")})
	assert.True(t, errors.Is(err, ir.ErrNotFound))
}

func TestSet_Rename(t *testing.T) {
	s := New()
	a, err := s.Set(Update{Name: strp("a"), Value: strp("v")})
	require.NoError(t, err)
	b := s.Touch("b")

	_, err = s.Set(Update{ID: a, Name: strp("b")})
	assert.True(t, errors.Is(err, ir.ErrDuplicateName))

	_, err = s.Set(Update{ID: a, Name: strp("renamed")})
	require.NoError(t, err)

	id, ok := s.IDOf("renamed")
	require.True(t, ok)
	assert.Equal(t, a, id)
	_, ok = s.IDOf("a")
	assert.False(t, ok)

	name, _ := s.Name(b)
	assert.Equal(t, "b", name)
	require.NoError(t, s.Check())
}

func TestSet_RegistersUnknownIDWithName(t *testing.T) {
	s := New()
	id, err := s.Set(Update{ID: "fixed-id", Name: strp("n"), Value: strp("1")})
	require.NoError(t, err)
	assert.Equal(t, "fixed-id", id)

	v, ok := s.Lookup("n")
	require.True(t, ok)
	assert.Equal(t, "1", v)
}

func TestSharedValues_KeepInsertionOrder(t *testing.T) {
	s := New()
	first, err := s.Set(Update{Name: strp("first"), Value: strp("same")})
	require.NoError(t, err)
	second, err := s.Set(Update{Name: strp("second"), Value: strp("same")})
	require.NoError(t, err)

	assert.Equal(t, []string{first, second}, s.ByValue("same"))
}

func TestLookupVersusGetOrCreate(t *testing.T) {
	s := New()

	_, ok := s.Lookup("ghost")
	assert.False(t, ok)
	assert.Equal(t, 0, s.Len())

	assert.Equal(t, "", s.GetOrCreate("ghost"))
	assert.Equal(t, 1, s.Len())
	_, ok = s.IDOf("ghost")
	assert.True(t, ok)
}

func TestDelete(t *testing.T) {
	s := New()
	id, err := s.Set(Update{Name: strp("x"), Value: strp("1")})
	require.NoError(t, err)

	require.NoError(t, s.Delete(id))
	_, ok := s.Get(id)
	assert.False(t, ok)
	_, ok = s.IDOf("x")
	assert.False(t, ok)
	assert.Empty(t, s.ByValue("1"))
	require.NoError(t, s.Check())

	assert.True(t, errors.Is(s.Delete(id), ir.ErrNotFound))
}

func TestRemove_SkipsGuard(t *testing.T) {
	s := New()
	id := s.Touch("busy")
	s.SetGuard(func(string) bool { return true })

	require.NoError(t, s.Remove(id))
	_, ok := s.Get(id)
	assert.False(t, ok)
	require.NoError(t, s.Check())
	assert.True(t, errors.Is(s.Remove(id), ir.ErrNotFound))
}

func TestDelete_GuardBlocks(t *testing.T) {
	s := New()
	id := s.Touch("busy")
	s.SetGuard(func(candidate string) bool { return candidate == id })

	err := s.Delete(id)
	assert.True(t, errors.Is(err, ir.ErrVariableInUse))
	_, ok := s.Get(id)
	assert.True(t, ok)
	require.NoError(t, s.Check())
}

func TestInvariantsAfterMixedOperations(t *testing.T) {
	s := New()
	var ids []string
	for i := 0; i < 20; i++ {
		id, err := s.Set(Update{Name: strp(fmt.Sprintf("v%d", i)), Value: strp(fmt.Sprintf("%d", i%3))})
		require.NoError(t, err)
		ids = append(ids, id)
	}
	for i, id := range ids {
		switch i % 4 {
		case 0:
			require.NoError(t, s.Delete(id))
		case 1:
			_, err := s.Set(Update{ID: id, Value: strp("moved")})
			require.NoError(t, err)
			v, _ := s.Value(id)
			assert.Equal(t, "moved", v)
		case 2:
			s.Touch(fmt.Sprintf("extra%d", i))
		}
		require.NoError(t, s.Check())
	}
}

func TestSnapshotRestore(t *testing.T) {
	s := New()
	a, err := s.Set(Update{Name: strp("a"), Value: strp("1")})
	require.NoError(t, err)
	b, err := s.Set(Update{Name: strp("b"), Value: strp("1")})
	require.NoError(t, err)

	doc := ir.NewDocument()
	s.Snapshot(doc)
	assert.Equal(t, [2]string{"a", "1"}, doc.Variables[a])
	assert.Equal(t, b, doc.VariableNames["b"])
	assert.Equal(t, []string{a, b}, doc.VariableValues["1"])

	restored := New()
	require.NoError(t, restored.Restore(doc))
	assert.Equal(t, s.All(), restored.All())
	assert.Equal(t, []string{a, b}, restored.ByValue("1"))
}

func TestRestore_RejectsInconsistentDocument(t *testing.T) {
	doc := ir.NewDocument()
	doc.Variables["id1"] = [2]string{"a", "1"}
	doc.VariableNames["a"] = "id1"
	doc.VariableValues["2"] = []string{"id1"}

	s := New()
	assert.Error(t, s.Restore(doc))
	assert.Equal(t, 0, s.Len())
}

func TestAll_SortedByName(t *testing.T) {
	s := New()
	s.Touch("zeta")
	s.Touch("alpha")
	s.Touch("mid")

	var names []string
	for _, v := range s.All() {
		names = append(names, v.Name)
	}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, names)
}
