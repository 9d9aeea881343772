package registry

import (
	"github.com/meshprov/meshprov-go/pkg/composition"
	"github.com/meshprov/meshprov-go/pkg/mesh"
)

// Sink receives write-through notifications after every committing mutation.
// Notifications are fire-and-forget: the store never consults the sink for
// reads and never surfaces sink failures to its callers. Implementations
// log their own failures.
//
// Sink methods run inside the store's critical section and must not block
// indefinitely.
type Sink interface {
	// OnNodeUpsert fires after a node is admitted or renamed.
	OnNodeUpsert(index int, node Node, selfProvisioned bool)

	// OnNodeErase fires when a node slot is freed.
	OnNodeErase(unicast mesh.Address, selfProvisioned bool)

	// OnSubnetUpsert fires after a subnet row is created or updated.
	OnSubnetUpsert(sub Subnet)

	// OnSubnetErase fires when a subnet row is freed.
	OnSubnetErase(netIdx mesh.KeyIndex)

	// OnAppKeyUpsert fires after an application key row is created.
	OnAppKeyUpsert(key AppKey)

	// OnAppKeyErase fires when an application key row is freed.
	OnAppKeyErase(netIdx, appIdx mesh.KeyIndex)

	// OnModelBindingChanged fires after a model's binding slots or
	// publication state changed.
	OnModelBindingChanged(elemAddr mesh.Address, model composition.Model)

	// OnIndexCursorChanged fires when either auto-allocation cursor moves.
	OnIndexCursorChanged(netIdxNext, appIdxNext mesh.KeyIndex)

	// OnReplayErase fires for each replay-protection entry cleared during
	// a node reset.
	OnReplayErase(src mesh.Address)

	// OnIVChanged fires when the IV index or IV update flag changes.
	OnIVChanged(ivIndex uint32, ivUpdate bool)
}

// NoopSink discards all notifications. Used when persistence is disabled.
// NoopSink is usable as a zero value.
type NoopSink struct{}

func (NoopSink) OnNodeUpsert(int, Node, bool)                              {}
func (NoopSink) OnNodeErase(mesh.Address, bool)                            {}
func (NoopSink) OnSubnetUpsert(Subnet)                                     {}
func (NoopSink) OnSubnetErase(mesh.KeyIndex)                               {}
func (NoopSink) OnAppKeyUpsert(AppKey)                                     {}
func (NoopSink) OnAppKeyErase(mesh.KeyIndex, mesh.KeyIndex)                {}
func (NoopSink) OnModelBindingChanged(mesh.Address, composition.Model)     {}
func (NoopSink) OnIndexCursorChanged(mesh.KeyIndex, mesh.KeyIndex)         {}
func (NoopSink) OnReplayErase(mesh.Address)                                {}
func (NoopSink) OnIVChanged(uint32, bool)                                  {}

// Compile-time interface satisfaction check.
var _ Sink = NoopSink{}

// MessageCache is the network-layer duplicate-message cache. The store
// invalidates a node's entries when the node is reset.
type MessageCache interface {
	// Invalidate drops cached entries for the address range
	// [start, start+count).
	Invalidate(start mesh.Address, count uint8)
}

// ReplayList is the replay-protection list. The store purges a node's
// entries when the node is reset.
type ReplayList interface {
	// ClearRange removes entries whose source address falls inside
	// [start, start+count) and returns the removed source addresses.
	ClearRange(start mesh.Address, count uint8) []mesh.Address
}
