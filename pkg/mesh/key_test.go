package mesh

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyEqualAndZero(t *testing.T) {
	var zero Key
	assert.True(t, zero.IsZero())
	assert.True(t, zero.Equal(Key{}))

	k := Key{0xAA, 0xBB}
	assert.False(t, k.IsZero())
	assert.False(t, k.Equal(zero))
	assert.True(t, k.Equal(Key{0xAA, 0xBB}))
}

func TestKeyString_Redacted(t *testing.T) {
	k := Key{0xAA, 0xBB, 0xCC, 0xDD, 0xEE, 0xFF}
	s := k.String()
	assert.Equal(t, "key(aabb..)", s)
	assert.NotContains(t, s, "cc", "only the first two bytes may leak")
}

func TestKeyIndexValid(t *testing.T) {
	assert.True(t, KeyPrimary.Valid())
	assert.True(t, KeyIndex(0x0FFF).Valid())
	assert.False(t, KeyIndexMax.Valid())
	assert.False(t, IndexAuto.Valid())
}

func TestKeyIndexString(t *testing.T) {
	assert.Equal(t, "0x000", KeyPrimary.String())
	assert.Equal(t, "0x123", KeyIndex(0x123).String())
	assert.Equal(t, "auto", IndexAuto.String())
}
