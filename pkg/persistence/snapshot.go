package persistence

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/meshprov/meshprov-go/pkg/composition"
	"github.com/meshprov/meshprov-go/pkg/mesh"
	"github.com/meshprov/meshprov-go/pkg/registry"
)

// SnapshotVersion is the current version of the snapshot file format.
const SnapshotVersion = 1

// Snapshot is the complete durable state of a registry store.
type Snapshot struct {
	// Version is the snapshot file format version.
	Version int `cbor:"1,keyasint"`

	// SavedAt is when the snapshot was last written.
	SavedAt time.Time `cbor:"2,keyasint"`

	// Nodes holds every live node with its table index.
	Nodes []NodeState `cbor:"3,keyasint,omitempty"`

	// Subnets holds every live network key row.
	Subnets []SubnetState `cbor:"4,keyasint,omitempty"`

	// AppKeys holds every live application key row.
	AppKeys []AppKeyState `cbor:"5,keyasint,omitempty"`

	// Bindings holds the model binding slots that differ from all-unused.
	Bindings []BindingState `cbor:"6,keyasint,omitempty"`

	// NetIdxNext and AppIdxNext are the auto-allocation cursors.
	NetIdxNext uint16 `cbor:"7,keyasint"`
	AppIdxNext uint16 `cbor:"8,keyasint"`

	// IVIndex and IVUpdate mirror the network's IV state.
	IVIndex  uint32 `cbor:"9,keyasint"`
	IVUpdate bool   `cbor:"10,keyasint,omitempty"`
}

// NodeState is one persisted node record.
type NodeState struct {
	Index        int      `cbor:"1,keyasint"`
	Addr         [6]byte  `cbor:"2,keyasint"`
	AddrType     uint8    `cbor:"3,keyasint"`
	UUID         [16]byte `cbor:"4,keyasint"`
	OOBInfo      uint16   `cbor:"5,keyasint,omitempty"`
	Unicast      uint16   `cbor:"6,keyasint"`
	ElementCount uint8    `cbor:"7,keyasint"`
	NetIdx       uint16   `cbor:"8,keyasint"`
	Flags        uint8    `cbor:"9,keyasint,omitempty"`
	IVIndex      uint32   `cbor:"10,keyasint,omitempty"`
	DevKey       [16]byte `cbor:"11,keyasint"`
	Name         string   `cbor:"12,keyasint,omitempty"`
	SelfProv     bool     `cbor:"13,keyasint,omitempty"`
}

// SubnetState is one persisted network key row.
type SubnetState struct {
	NetIdx  uint16   `cbor:"1,keyasint"`
	Key0    [16]byte `cbor:"2,keyasint"`
	NID0    uint8    `cbor:"3,keyasint"`
	Key1    [16]byte `cbor:"4,keyasint"`
	NID1    uint8    `cbor:"5,keyasint"`
	KRFlag  bool     `cbor:"6,keyasint,omitempty"`
	KRPhase uint8    `cbor:"7,keyasint,omitempty"`
	NodeID  uint8    `cbor:"8,keyasint,omitempty"`
}

// AppKeyState is one persisted application key row.
type AppKeyState struct {
	NetIdx  uint16   `cbor:"1,keyasint"`
	AppIdx  uint16   `cbor:"2,keyasint"`
	Key0    [16]byte `cbor:"3,keyasint"`
	AID0    uint8    `cbor:"4,keyasint"`
	Key1    [16]byte `cbor:"5,keyasint"`
	AID1    uint8    `cbor:"6,keyasint"`
	Updated bool     `cbor:"7,keyasint,omitempty"`
}

// BindingState is the persisted binding slot array of one model.
type BindingState struct {
	ElemAddr uint16                            `cbor:"1,keyasint"`
	Company  uint16                            `cbor:"2,keyasint"`
	ModelID  uint16                            `cbor:"3,keyasint"`
	Keys     [composition.ModelKeySlots]uint16 `cbor:"4,keyasint"`
}

// snapEncMode is the CBOR encoder mode for snapshots: canonical and with
// RFC3339 timestamps, so snapshot files are byte-stable for identical state.
var snapEncMode cbor.EncMode

var snapDecMode cbor.DecMode

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
	}
	snapEncMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create snapshot CBOR encoder mode: %v", err))
	}

	decOpts := cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyQuiet,
		IndefLength: cbor.IndefLengthAllowed,
	}
	snapDecMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create snapshot CBOR decoder mode: %v", err))
	}
}

// SnapshotStore manages persistence of registry state to a CBOR file.
type SnapshotStore struct {
	mu   sync.Mutex
	path string
}

// NewSnapshotStore creates a snapshot store backed by the given path.
func NewSnapshotStore(path string) *SnapshotStore {
	return &SnapshotStore{path: path}
}

// Save persists the snapshot to disk.
func (s *SnapshotStore) Save(snap *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	snap.Version = SnapshotVersion
	if snap.SavedAt.IsZero() {
		snap.SavedAt = time.Now()
	}

	data, err := snapEncMode.Marshal(snap)
	if err != nil {
		return err
	}

	return os.WriteFile(s.path, data, 0600)
}

// Load reads the snapshot from disk.
// Returns nil, nil if the file doesn't exist (empty state).
func (s *SnapshotStore) Load() (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{}
	if err := snapDecMode.Unmarshal(data, snap); err != nil {
		return nil, err
	}

	return snap, nil
}

// Clear removes the snapshot file.
func (s *SnapshotStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Restore replays a loaded snapshot into a freshly created store. Call it
// before attaching a SinkAdapter and before any regular operation.
func Restore(store *registry.Store, snap *Snapshot) error {
	if snap == nil {
		return nil
	}

	for _, ns := range snap.Nodes {
		rec := registry.Node{
			Addr:         mesh.BDAddr{Val: ns.Addr, Type: mesh.AddrType(ns.AddrType)},
			UUID:         mesh.DeviceUUID(ns.UUID),
			OOBInfo:      ns.OOBInfo,
			UnicastAddr:  mesh.Address(ns.Unicast),
			ElementCount: ns.ElementCount,
			NetIdx:       mesh.KeyIndex(ns.NetIdx),
			Flags:        ns.Flags,
			IVIndex:      ns.IVIndex,
			DevKey:       mesh.Key(ns.DevKey),
			Name:         ns.Name,
		}
		if err := store.RestoreNode(ns.Index, rec); err != nil {
			return fmt.Errorf("restore node %d: %w", ns.Index, err)
		}
	}

	for _, ss := range snap.Subnets {
		sub := registry.Subnet{
			NetIdx:  mesh.KeyIndex(ss.NetIdx),
			KRFlag:  ss.KRFlag,
			KRPhase: registry.KeyRefreshPhase(ss.KRPhase),
			NodeID:  registry.NodeIdentity(ss.NodeID),
		}
		sub.Keys[registry.GenPrimary] = registry.SubnetKeys{Net: mesh.Key(ss.Key0), NID: ss.NID0}
		sub.Keys[registry.GenSecondary] = registry.SubnetKeys{Net: mesh.Key(ss.Key1), NID: ss.NID1}
		if err := store.RestoreSubnet(sub); err != nil {
			return fmt.Errorf("restore subnet %#x: %w", ss.NetIdx, err)
		}
	}

	for _, as := range snap.AppKeys {
		key := registry.AppKey{
			NetIdx:  mesh.KeyIndex(as.NetIdx),
			AppIdx:  mesh.KeyIndex(as.AppIdx),
			Updated: as.Updated,
		}
		key.Keys[registry.GenPrimary] = registry.AppKeys{Val: mesh.Key(as.Key0), AID: as.AID0}
		key.Keys[registry.GenSecondary] = registry.AppKeys{Val: mesh.Key(as.Key1), AID: as.AID1}
		if err := store.RestoreAppKey(key); err != nil {
			return fmt.Errorf("restore app key %#x: %w", as.AppIdx, err)
		}
	}

	for _, bs := range snap.Bindings {
		var keys [composition.ModelKeySlots]mesh.KeyIndex
		for i, k := range bs.Keys {
			keys[i] = mesh.KeyIndex(k)
		}
		err := store.RestoreModelBinding(mesh.Address(bs.ElemAddr), bs.Company, bs.ModelID, keys)
		if err != nil {
			return fmt.Errorf("restore binding model %#x: %w", bs.ModelID, err)
		}
	}

	store.RestoreCursors(mesh.KeyIndex(snap.NetIdxNext), mesh.KeyIndex(snap.AppIdxNext))
	store.RestoreIV(snap.IVIndex, snap.IVUpdate)
	return nil
}
