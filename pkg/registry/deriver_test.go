package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalDeriver_Deterministic(t *testing.T) {
	d := NewLocalDeriver()
	key := keyOf(0x5A)

	nid1, err := d.NetworkID(key)
	require.NoError(t, err)
	nid2, err := d.NetworkID(key)
	require.NoError(t, err)
	assert.Equal(t, nid1, nid2)
	assert.LessOrEqual(t, nid1, uint8(0x7F))

	aid, err := d.ApplicationID(key)
	require.NoError(t, err)
	assert.LessOrEqual(t, aid, uint8(0x3F))
}

func TestLocalDeriver_DomainSeparation(t *testing.T) {
	d := NewLocalDeriver()

	// NID and AID come from different info strings; their full-width
	// bytes must differ for at least one of a handful of keys.
	differ := false
	for b := byte(0); b < 8; b++ {
		nid, err := d.NetworkID(keyOf(b))
		require.NoError(t, err)
		aid, err := d.ApplicationID(keyOf(b))
		require.NoError(t, err)
		if nid&0x3F != aid&0x3F {
			differ = true
		}
	}
	assert.True(t, differ)
}

func TestLocalDeriver_RandomKey(t *testing.T) {
	d := NewLocalDeriver()

	a, err := d.RandomKey()
	require.NoError(t, err)
	b, err := d.RandomKey()
	require.NoError(t, err)
	assert.False(t, a.Equal(b))
	assert.False(t, a.IsZero())
}
