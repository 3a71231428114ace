package block

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewRoundTrip(t *testing.T) {
	b, err := New(0x55, []byte("hello"))
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), b.RawData())

	again, err := FromCID(b.Cid(), []byte("hello"))
	require.NoError(t, err)
	require.Equal(t, b.Cid(), again.Cid())
}

func TestFromCIDMismatch(t *testing.T) {
	b, err := New(0x55, []byte("hello"))
	require.NoError(t, err)

	_, err = FromCID(b.Cid(), []byte("tampered"))
	require.Error(t, err)
}

func TestMemStore(t *testing.T) {
	m := NewMemStore()
	b, err := New(0x55, []byte("payload"))
	require.NoError(t, err)

	n, err := m.Put(b)
	require.NoError(t, err)
	require.Equal(t, len("payload"), n)

	has, err := m.Has(b.Cid())
	require.NoError(t, err)
	require.True(t, has)

	got, err := m.Get(b.Cid())
	require.NoError(t, err)
	require.Equal(t, b.RawData(), got.RawData())
}

func TestMemStoreNotFound(t *testing.T) {
	m := NewMemStore()
	b, err := New(0x55, []byte("payload"))
	require.NoError(t, err)

	_, err = m.Get(b.Cid())
	require.ErrorIs(t, err, ErrNotFound)
}
