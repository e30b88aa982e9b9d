package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveUnregisteredKind(t *testing.T) {
	r := NewResolver([]Registration{{KindInt, newIntFilter}})

	_, err := r.Resolve(Field{Entity: "Zoo", Name: "name", Kind: KindText})
	require.Error(t, err)
	assert.Equal(t, ErrNoFilterForKind, KindOf(err))

	fe := err.(*Error)
	assert.False(t, fe.UserError(), "missing registration is a configuration error")
}

func TestResolverRegistrationOverride(t *testing.T) {
	regs := append(DefaultRegistrations(), Registration{KindText, newUUIDFilter})
	r := NewResolver(regs)

	ff, err := r.Resolve(Field{Entity: "Zoo", Name: "name", Kind: KindText})
	require.NoError(t, err)

	// The override's qualifier set applies: text normally allows isnull.
	err = ff.CheckQualifier(QIsNull)
	assert.Equal(t, ErrUnsupportedQualifier, KindOf(err))
}

func TestArrayElementFilterCachedUntilReset(t *testing.T) {
	r := NewDefaultResolver()
	ff, err := r.Resolve(Field{Entity: "Zoo", Name: "tags", Kind: KindArray, Elem: KindText})
	require.NoError(t, err)

	af := ff.(*arrayFilter)
	require.Nil(t, af.elem)

	_, err = af.CleanValue(QContains, "a,b")
	require.NoError(t, err)
	first := af.elem
	require.NotNil(t, first)

	_, err = af.CleanValue(QContains, "c")
	require.NoError(t, err)
	assert.Same(t, first.(*baseFilter), af.elem.(*baseFilter))

	af.Reset()
	assert.Nil(t, af.elem)
}

func TestArrayElementKindUnregistered(t *testing.T) {
	r := NewResolver([]Registration{{KindArray, newArrayFilter}})
	ff, err := r.Resolve(Field{Entity: "Zoo", Name: "tags", Kind: KindArray, Elem: KindText})
	require.NoError(t, err)

	_, err = ff.CleanValue(QContains, "a")
	assert.Equal(t, ErrNoFilterForKind, KindOf(err))
}
