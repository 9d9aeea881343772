package mesh

import "fmt"

// Address is a 16-bit mesh network address.
type Address uint16

// Well-known addresses and range boundaries.
const (
	// AddrUnassigned is the unassigned address.
	AddrUnassigned Address = 0x0000

	// AddrAllNodes is the fixed group address that reaches every node.
	AddrAllNodes Address = 0xFFFF

	unicastMax Address = 0x7FFF
	virtualMin Address = 0x8000
	virtualMax Address = 0xBFFF
	groupMin   Address = 0xC000
)

// IsUnicast reports whether a is a unicast address (0x0001-0x7FFF).
func (a Address) IsUnicast() bool {
	return a != AddrUnassigned && a <= unicastMax
}

// IsVirtual reports whether a is a virtual address.
func (a Address) IsVirtual() bool {
	return a >= virtualMin && a <= virtualMax
}

// IsGroup reports whether a is a group address.
func (a Address) IsGroup() bool {
	return a >= groupMin
}

// String returns the address in 0xXXXX form.
func (a Address) String() string {
	return fmt.Sprintf("0x%04x", uint16(a))
}

// AddrType distinguishes the two link-layer address kinds.
type AddrType uint8

const (
	// AddrTypePublic is a fixed, globally registered link-layer address.
	AddrTypePublic AddrType = 0
	// AddrTypeRandom is a randomly generated link-layer address.
	AddrTypeRandom AddrType = 1
)

// BDAddrLen is the length of a link-layer address in bytes.
const BDAddrLen = 6

// BDAddr is a link-layer device address with its type tag.
type BDAddr struct {
	Val  [BDAddrLen]byte
	Type AddrType
}

// Equal reports whether two link-layer addresses match in both value and type.
func (b BDAddr) Equal(other BDAddr) bool {
	return b.Val == other.Val && b.Type == other.Type
}

// String returns the address as colon-separated hex bytes.
func (b BDAddr) String() string {
	v := b.Val
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x",
		v[0], v[1], v[2], v[3], v[4], v[5])
}
