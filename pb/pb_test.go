package pb

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMessageRoundTrip(t *testing.T) {
	m := &Message{
		Type:         GetProviders,
		ClusterLevel: 3,
		Key:          []byte("hello-key"),
		Record: &Record{
			Key:       []byte("k"),
			Value:     []byte("v"),
			Author:    []byte("author"),
			Signature: []byte("sig"),
			Time:      1234,
		},
		CloserPeers: []Peer{
			{ID: []byte("peerA"), Addrs: [][]byte{[]byte("/ip4/127.0.0.1/tcp/4001")}, Connection: Connected},
		},
		ProviderPeers: []Peer{
			{ID: []byte("peerB"), Addrs: [][]byte{[]byte("/ip4/127.0.0.1/tcp/4002")}, Connection: NotConnected},
		},
	}
	got, err := UnmarshalMessage(m.Marshal())
	require.NoError(t, err)
	require.Equal(t, m.Type, got.Type)
	require.Equal(t, m.ClusterLevel, got.ClusterLevel)
	require.Equal(t, m.Key, got.Key)
	require.Equal(t, m.Record, got.Record)
	require.Equal(t, m.CloserPeers, got.CloserPeers)
	require.Equal(t, m.ProviderPeers, got.ProviderPeers)
}

func TestMessageUnknownFieldSkipped(t *testing.T) {
	w := &Writer{}
	w.WriteVarintField(1, uint64(Ping))
	w.WriteStringField(99, "unknown-future-field")
	w.WriteBytesField(2, []byte("k"))
	got, err := UnmarshalMessage(w.Bytes())
	require.NoError(t, err)
	require.Equal(t, Ping, got.Type)
	require.Equal(t, []byte("k"), got.Key)
}

func TestJournalMessageRoundTrip(t *testing.T) {
	j := &JournalMessage{
		StartEpoch:   100,
		EndEpoch:     200,
		CurrentEpoch: 250,
		Entries: []JournalEntry{
			{Timestamp: 101, Hash: []byte("h1"), Pin: true},
			{Timestamp: 102, Hash: []byte("h2"), Pin: false},
		},
	}
	got, err := UnmarshalJournalMessage(j.Marshal())
	require.NoError(t, err)
	require.Equal(t, j, got)
}

func TestProposeExchangeRoundTrip(t *testing.T) {
	p := &Propose{
		Rand:      bytes.Repeat([]byte{7}, 16),
		PublicKey: []byte("pubkey-der-bytes"),
		Exchanges: "P-256,P-384,P-521",
		Ciphers:   "AES-256,AES-128,Blowfish",
		Hashes:    "SHA256,SHA512",
	}
	gotP, err := UnmarshalPropose(p.Marshal())
	require.NoError(t, err)
	require.Equal(t, p, gotP)

	e := &Exchange{EphemeralPublicKey: []byte("ephemeral"), Signature: []byte("sig")}
	gotE, err := UnmarshalExchange(e.Marshal())
	require.NoError(t, err)
	require.Equal(t, e, gotE)
}

func TestDelimitedRoundTrip(t *testing.T) {
	m := &Message{Type: Ping}
	var buf bytes.Buffer
	require.NoError(t, WriteDelimited(&buf, m.Marshal()))
	require.NoError(t, WriteDelimited(&buf, m.Marshal()))

	first, err := ReadDelimited(&buf)
	require.NoError(t, err)
	second, err := ReadDelimited(&buf)
	require.NoError(t, err)
	require.Equal(t, m.Marshal(), first)
	require.Equal(t, m.Marshal(), second)
}
