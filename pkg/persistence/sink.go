package persistence

import (
	"log/slog"
	"sync"

	"github.com/meshprov/meshprov-go/pkg/composition"
	"github.com/meshprov/meshprov-go/pkg/mesh"
	"github.com/meshprov/meshprov-go/pkg/registry"
)

// SinkAdapter implements registry.Sink by mirroring every notification into
// an in-memory snapshot and rewriting the snapshot file. Each committing
// registry mutation therefore reaches disk before the operation returns.
//
// Write failures are logged and swallowed; the registry never sees them.
type SinkAdapter struct {
	mu     sync.Mutex
	store  *SnapshotStore
	logger *slog.Logger

	nodes    map[int]NodeState
	subnets  map[uint16]SubnetState
	appKeys  map[uint16]AppKeyState
	bindings map[bindingKey]BindingState

	netIdxNext uint16
	appIdxNext uint16
	ivIndex    uint32
	ivUpdate   bool
}

type bindingKey struct {
	elemAddr uint16
	company  uint16
	modelID  uint16
}

// NewSinkAdapter creates a sink writing through store. A nil logger
// defaults to slog.Default().
func NewSinkAdapter(store *SnapshotStore, logger *slog.Logger) *SinkAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &SinkAdapter{
		store:    store,
		logger:   logger,
		nodes:    make(map[int]NodeState),
		subnets:  make(map[uint16]SubnetState),
		appKeys:  make(map[uint16]AppKeyState),
		bindings: make(map[bindingKey]BindingState),
	}
}

// Seed initializes the mirror from a previously loaded snapshot so that the
// first write-through does not drop restored state.
func (a *SinkAdapter) Seed(snap *Snapshot) {
	if snap == nil {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for _, ns := range snap.Nodes {
		a.nodes[ns.Index] = ns
	}
	for _, ss := range snap.Subnets {
		a.subnets[ss.NetIdx] = ss
	}
	for _, as := range snap.AppKeys {
		a.appKeys[as.AppIdx] = as
	}
	for _, bs := range snap.Bindings {
		a.bindings[bindingKey{bs.ElemAddr, bs.Company, bs.ModelID}] = bs
	}
	a.netIdxNext = snap.NetIdxNext
	a.appIdxNext = snap.AppIdxNext
	a.ivIndex = snap.IVIndex
	a.ivUpdate = snap.IVUpdate
}

// OnNodeUpsert mirrors a node admission or rename.
func (a *SinkAdapter) OnNodeUpsert(index int, node registry.Node, selfProvisioned bool) {
	a.mu.Lock()
	a.nodes[index] = NodeState{
		Index:        index,
		Addr:         node.Addr.Val,
		AddrType:     uint8(node.Addr.Type),
		UUID:         [16]byte(node.UUID),
		OOBInfo:      node.OOBInfo,
		Unicast:      uint16(node.UnicastAddr),
		ElementCount: node.ElementCount,
		NetIdx:       uint16(node.NetIdx),
		Flags:        node.Flags,
		IVIndex:      node.IVIndex,
		DevKey:       [16]byte(node.DevKey),
		Name:         node.Name,
		SelfProv:     selfProvisioned,
	}
	a.mu.Unlock()
	a.flush()
}

// OnNodeErase mirrors a node reset.
func (a *SinkAdapter) OnNodeErase(unicast mesh.Address, _ bool) {
	a.mu.Lock()
	for index, ns := range a.nodes {
		if ns.Unicast == uint16(unicast) {
			delete(a.nodes, index)
		}
	}
	a.mu.Unlock()
	a.flush()
}

// OnSubnetUpsert mirrors a subnet row write.
func (a *SinkAdapter) OnSubnetUpsert(sub registry.Subnet) {
	a.mu.Lock()
	a.subnets[uint16(sub.NetIdx)] = SubnetState{
		NetIdx:  uint16(sub.NetIdx),
		Key0:    [16]byte(sub.Keys[registry.GenPrimary].Net),
		NID0:    sub.Keys[registry.GenPrimary].NID,
		Key1:    [16]byte(sub.Keys[registry.GenSecondary].Net),
		NID1:    sub.Keys[registry.GenSecondary].NID,
		KRFlag:  sub.KRFlag,
		KRPhase: uint8(sub.KRPhase),
		NodeID:  uint8(sub.NodeID),
	}
	a.mu.Unlock()
	a.flush()
}

// OnSubnetErase mirrors a subnet deletion.
func (a *SinkAdapter) OnSubnetErase(netIdx mesh.KeyIndex) {
	a.mu.Lock()
	delete(a.subnets, uint16(netIdx))
	a.mu.Unlock()
	a.flush()
}

// OnAppKeyUpsert mirrors an application key row write.
func (a *SinkAdapter) OnAppKeyUpsert(key registry.AppKey) {
	a.mu.Lock()
	a.appKeys[uint16(key.AppIdx)] = AppKeyState{
		NetIdx:  uint16(key.NetIdx),
		AppIdx:  uint16(key.AppIdx),
		Key0:    [16]byte(key.Keys[registry.GenPrimary].Val),
		AID0:    key.Keys[registry.GenPrimary].AID,
		Key1:    [16]byte(key.Keys[registry.GenSecondary].Val),
		AID1:    key.Keys[registry.GenSecondary].AID,
		Updated: key.Updated,
	}
	a.mu.Unlock()
	a.flush()
}

// OnAppKeyErase mirrors an application key deletion.
func (a *SinkAdapter) OnAppKeyErase(_, appIdx mesh.KeyIndex) {
	a.mu.Lock()
	delete(a.appKeys, uint16(appIdx))
	a.mu.Unlock()
	a.flush()
}

// OnModelBindingChanged mirrors a model's binding slot array.
func (a *SinkAdapter) OnModelBindingChanged(elemAddr mesh.Address, model composition.Model) {
	key := bindingKey{uint16(elemAddr), model.Company, model.ID}

	var keys [composition.ModelKeySlots]uint16
	allUnused := true
	for i, k := range model.Keys {
		keys[i] = uint16(k)
		if k != mesh.KeyUnused {
			allUnused = false
		}
	}

	a.mu.Lock()
	if allUnused {
		delete(a.bindings, key)
	} else {
		a.bindings[key] = BindingState{
			ElemAddr: uint16(elemAddr),
			Company:  model.Company,
			ModelID:  model.ID,
			Keys:     keys,
		}
	}
	a.mu.Unlock()
	a.flush()
}

// OnIndexCursorChanged mirrors the auto-allocation cursors.
func (a *SinkAdapter) OnIndexCursorChanged(netIdxNext, appIdxNext mesh.KeyIndex) {
	a.mu.Lock()
	a.netIdxNext = uint16(netIdxNext)
	a.appIdxNext = uint16(appIdxNext)
	a.mu.Unlock()
	a.flush()
}

// OnReplayErase is a no-op: the replay-protection list owns its durable
// state; the registry only forwards the erase signal.
func (a *SinkAdapter) OnReplayErase(mesh.Address) {}

// OnIVChanged mirrors the IV state.
func (a *SinkAdapter) OnIVChanged(ivIndex uint32, ivUpdate bool) {
	a.mu.Lock()
	a.ivIndex = ivIndex
	a.ivUpdate = ivUpdate
	a.mu.Unlock()
	a.flush()
}

// flush rewrites the snapshot file from the mirror.
func (a *SinkAdapter) flush() {
	a.mu.Lock()
	snap := a.snapshotLocked()
	a.mu.Unlock()

	if err := a.store.Save(snap); err != nil {
		a.logger.Warn("registry snapshot write failed", "error", err)
	}
}

func (a *SinkAdapter) snapshotLocked() *Snapshot {
	snap := &Snapshot{
		NetIdxNext: a.netIdxNext,
		AppIdxNext: a.appIdxNext,
		IVIndex:    a.ivIndex,
		IVUpdate:   a.ivUpdate,
	}
	for _, ns := range a.nodes {
		snap.Nodes = append(snap.Nodes, ns)
	}
	for _, ss := range a.subnets {
		snap.Subnets = append(snap.Subnets, ss)
	}
	for _, as := range a.appKeys {
		snap.AppKeys = append(snap.AppKeys, as)
	}
	for _, bs := range a.bindings {
		snap.Bindings = append(snap.Bindings, bs)
	}
	return snap
}

// Compile-time interface satisfaction check.
var _ registry.Sink = (*SinkAdapter)(nil)
