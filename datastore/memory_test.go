package datastore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemDatastorePutGet(t *testing.T) {
	d := NewMemDatastore()
	require.NoError(t, d.Put(Record{Key: []byte("k1"), Value: []byte("v1"), Time: 1}))
	r, err := d.Get([]byte("k1"))
	require.NoError(t, err)
	require.Equal(t, []byte("v1"), r.Value)

	_, err = d.Get([]byte("missing"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemDatastoreCursorOrder(t *testing.T) {
	d := NewMemDatastore()
	for i, k := range []string{"a", "b", "c"} {
		require.NoError(t, d.Put(Record{Key: []byte(k), Value: []byte{byte(i)}, Time: int64(i)}))
	}
	c := d.Cursor()
	first, err := c.First()
	require.NoError(t, err)
	require.Equal(t, []byte("a"), first.Key)

	second, err := c.Next()
	require.NoError(t, err)
	require.Equal(t, []byte("b"), second.Key)

	last, err := c.Last()
	require.NoError(t, err)
	require.Equal(t, []byte("c"), last.Key)

	prev, err := c.Previous()
	require.NoError(t, err)
	require.Equal(t, []byte("b"), prev.Key)
}

func TestMemDatastoreCursorEmpty(t *testing.T) {
	d := NewMemDatastore()
	c := d.Cursor()
	_, err := c.First()
	require.ErrorIs(t, err, ErrNotFound)
}
