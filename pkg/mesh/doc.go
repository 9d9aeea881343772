// Package mesh provides the shared primitives of the provisioner core:
// network addresses, key indices, raw key material and device identity.
//
// # Addresses
//
// Mesh addresses are 16-bit values partitioned into unassigned, unicast,
// virtual and group ranges. Every element of a node occupies one unicast
// address; a node with N elements owns the contiguous half-open range
// [PrimaryAddr, PrimaryAddr+N).
//
// # Key indices
//
// Network and application keys each live in an independent 12-bit index
// namespace (0x0000-0x0FFF). The reserved value 0xFFFF doubles as the
// "unused" marker in model binding slots and as the auto-allocate /
// wildcard request in store operations.
package mesh
