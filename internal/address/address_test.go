package address

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable_ReservedAddresses(t *testing.T) {
	tbl := New()

	k, ok := tbl.Lookup(AllItems)
	require.True(t, ok)
	assert.Equal(t, KeyAllItems, k.Type)

	_, ok = tbl.Lookup(None)
	assert.False(t, ok)

	first := tbl.AddressOf(EntityKey("t1"))
	assert.Greater(t, first, AllItems)
}

func TestTable_AllocatesOnce(t *testing.T) {
	tbl := New()

	a := tbl.AddressOf(EntityKey("t1"))
	b := tbl.AddressOf(EntityKey("t1"))
	c := tbl.AddressOf(StackKey("t1", ""))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c, "keys of different types never alias")

	k, ok := tbl.Lookup(c)
	require.True(t, ok)
	assert.Equal(t, StackKey("t1", ""), k)
}

func TestTable_ReleasedAddressesAreNotRecycled(t *testing.T) {
	tbl := New()
	a := tbl.AddressOf(EntityKey("t1"))

	tbl.Release(EntityKey("t1"))
	_, ok := tbl.Lookup(a)
	assert.False(t, ok)

	again := tbl.AddressOf(EntityKey("t1"))
	other := tbl.AddressOf(EntityKey("t2"))
	assert.NotEqual(t, a, again)
	assert.NotEqual(t, a, other)
}

func TestTable_ReleaseAllItemsIsIgnored(t *testing.T) {
	tbl := New()
	tbl.Release(Key{Type: KeyAllItems})

	_, ok := tbl.Lookup(AllItems)
	assert.True(t, ok)
}

func TestTable_Rekey(t *testing.T) {
	tbl := New()
	a := tbl.AddressOf(StackKey("Old", ""))

	require.True(t, tbl.Rekey(StackKey("Old", ""), StackKey("New", "")))

	got, ok := tbl.Find(StackKey("New", ""))
	require.True(t, ok)
	assert.Equal(t, a, got)
	_, ok = tbl.Find(StackKey("Old", ""))
	assert.False(t, ok)

	tbl.AddressOf(StackKey("Other", ""))
	assert.False(t, tbl.Rekey(StackKey("New", ""), StackKey("Other", "")))
	assert.False(t, tbl.Rekey(StackKey("Missing", ""), StackKey("X", "")))
}

func TestKey_String(t *testing.T) {
	assert.Equal(t, "entity:t1", EntityKey("t1").String())
	assert.Equal(t, "stack:ln/S", StackKey("S", "ln").String())
	assert.Equal(t, "linked-notebook:ln", LinkedNotebookKey("ln").String())
}
