package mesh

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddressClassification(t *testing.T) {
	tests := []struct {
		addr    Address
		unicast bool
		virtual bool
		group   bool
	}{
		{AddrUnassigned, false, false, false},
		{0x0001, true, false, false},
		{0x7FFF, true, false, false},
		{0x8000, false, true, false},
		{0xBFFF, false, true, false},
		{0xC000, false, false, true},
		{AddrAllNodes, false, false, true},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.unicast, tt.addr.IsUnicast(), "IsUnicast %s", tt.addr)
		assert.Equal(t, tt.virtual, tt.addr.IsVirtual(), "IsVirtual %s", tt.addr)
		assert.Equal(t, tt.group, tt.addr.IsGroup(), "IsGroup %s", tt.addr)
	}
}

func TestAddressString(t *testing.T) {
	assert.Equal(t, "0x0005", Address(5).String())
	assert.Equal(t, "0xffff", AddrAllNodes.String())
}

func TestBDAddrEqual(t *testing.T) {
	a := BDAddr{Val: [6]byte{1, 2, 3, 4, 5, 6}, Type: AddrTypePublic}
	b := a
	assert.True(t, a.Equal(b))

	b.Type = AddrTypeRandom
	assert.False(t, a.Equal(b), "same value, different type")

	b = a
	b.Val[5] = 7
	assert.False(t, a.Equal(b))
}

func TestBDAddrString(t *testing.T) {
	a := BDAddr{Val: [6]byte{0xDE, 0xAD, 0xBE, 0xEF, 0x00, 0x01}}
	assert.Equal(t, "de:ad:be:ef:00:01", a.String())
}
