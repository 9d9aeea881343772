// Package registry is the credential and node registry of the mesh
// provisioner. It durably tracks every device admitted to the network and
// owns allocation, rotation state and cascade deletion of the network-wide
// and application-level symmetric keys.
//
// # Store
//
// All state lives in a [Store]: a fixed-capacity node table split into a
// self-provisioned and an externally-registered partition, a fixed-capacity
// subnet (network key) table, a fixed-capacity application key table and the
// model binding state of the local element/model directory. One mutex
// serializes every operation, including multi-table cascades, so no caller
// ever observes an intermediate cascade state.
//
// # Collaborators
//
// The store consumes a [KeyDeriver] for identifier derivation and random
// key generation, a [Sink] for write-through persistence notifications, and
// optionally a [MessageCache] and [ReplayList] whose per-node entries are
// purged on node reset. None of these may block for long: they are invoked
// inside the store's critical section.
//
// # Key generations
//
// Subnets and application keys each carry two key-material generations to
// support key refresh. The active generation is selected by the refresh
// flag; ActiveKeys is the single accessor for it.
package registry
