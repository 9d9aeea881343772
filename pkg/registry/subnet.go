package registry

import (
	"fmt"

	"github.com/meshprov/meshprov-go/pkg/log"
	"github.com/meshprov/meshprov-go/pkg/mesh"
)

// Generation selects one of a key's two material slots.
type Generation int

const (
	// GenPrimary is the pre-refresh key generation (slot 0).
	GenPrimary Generation = 0
	// GenSecondary is the refreshed key generation (slot 1).
	GenSecondary Generation = 1
)

// KeyRefreshPhase is the key refresh procedure phase of a subnet.
type KeyRefreshPhase uint8

const (
	// KRNormal means no key refresh is in progress.
	KRNormal KeyRefreshPhase = 0
	// KRPhase1 means the new key is distributed but not yet in use.
	KRPhase1 KeyRefreshPhase = 1
	// KRPhase2 means the new key is in use for transmission.
	KRPhase2 KeyRefreshPhase = 2
	// KRPhase3 means the old key is being revoked.
	KRPhase3 KeyRefreshPhase = 3
)

// NodeIdentity is a subnet's node identity advertising state.
type NodeIdentity uint8

const (
	// NodeIdentityStopped means advertising is supported but stopped.
	NodeIdentityStopped NodeIdentity = 0
	// NodeIdentityRunning means advertising is in progress.
	NodeIdentityRunning NodeIdentity = 1
	// NodeIdentityNotSupported means the subnet does not advertise.
	NodeIdentityNotSupported NodeIdentity = 2
)

// SubnetKeys is one network key generation: the raw material plus its
// derived NID.
type SubnetKeys struct {
	Net mesh.Key
	NID uint8
}

// Subnet is one network key row.
type Subnet struct {
	// NetIdx is the subnet's key index.
	NetIdx mesh.KeyIndex

	// Keys holds the two key generations, indexed by Generation.
	Keys [2]SubnetKeys

	// KRFlag selects the active generation: GenSecondary when set.
	KRFlag bool

	// KRPhase is the key refresh procedure phase.
	KRPhase KeyRefreshPhase

	// NodeID is the node identity advertising state.
	NodeID NodeIdentity
}

// ActiveGeneration returns the generation selected by the key refresh flag.
func (sub *Subnet) ActiveGeneration() Generation {
	if sub.KRFlag {
		return GenSecondary
	}
	return GenPrimary
}

// ActiveKeys returns the active key generation. This is the one accessor
// every key-selection site goes through.
func (sub *Subnet) ActiveKeys() SubnetKeys {
	return sub.Keys[sub.ActiveGeneration()]
}

// hasKey reports whether either generation carries the given material.
func (sub *Subnet) hasKey(key mesh.Key) bool {
	return sub.Keys[GenPrimary].Net.Equal(key) || sub.Keys[GenSecondary].Net.Equal(key)
}

// Flag bits handed over by the provisioning configuration.
const (
	// FlagKeyRefresh marks a key refresh in progress at bootstrap.
	FlagKeyRefresh uint8 = 0x01
	// FlagIVUpdate marks an IV update in progress at bootstrap.
	FlagIVUpdate uint8 = 0x02
)

// LocalNetworkConfig parameterizes the initial local network bootstrap.
type LocalNetworkConfig struct {
	// PrimaryAddr is the provisioner's own primary element address.
	PrimaryAddr mesh.Address

	// Flags carries FlagKeyRefresh and FlagIVUpdate.
	Flags uint8

	// IVIndex is the initial IV index.
	IVIndex uint32
}

// CreateLocalNetwork bootstraps the provisioner's own network: generates the
// primary subnet from random material, assigns the local elements their
// unicast addresses and seeds the index allocation cursors. Idempotent;
// a second call (or a call after subnets were restored) is a no-op.
func (s *Store) CreateLocalNetwork(cfg LocalNetworkConfig) error {
	if s.comp == nil {
		return fmt.Errorf("%w: no composition", ErrInvalidArgument)
	}
	if !cfg.PrimaryAddr.IsUnicast() {
		return fmt.Errorf("%w: primary address %s is not unicast", ErrInvalidArgument, cfg.PrimaryAddr)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.netCreated {
		return nil
	}

	s.comp.Provision(cfg.PrimaryAddr)

	// Keys restored from the persistence snapshot win over fresh material.
	for _, sub := range s.subnets {
		if sub != nil {
			s.netCreated = true
			return nil
		}
	}

	material, err := s.deriver.RandomKey()
	if err != nil {
		return fmt.Errorf("%w: primary network key: %v", ErrDerivation, err)
	}
	nid, err := s.deriver.NetworkID(material)
	if err != nil {
		return fmt.Errorf("%w: primary network key: %v", ErrDerivation, err)
	}

	sub := &Subnet{
		NetIdx: mesh.KeyPrimary,
		NodeID: NodeIdentityNotSupported,
	}
	if cfg.Flags&FlagKeyRefresh != 0 {
		sub.KRFlag = true
		sub.KRPhase = KRPhase2
		sub.Keys[GenSecondary] = SubnetKeys{Net: material, NID: nid}
	} else {
		sub.KRPhase = KRNormal
		sub.Keys[GenPrimary] = SubnetKeys{Net: material, NID: nid}
	}
	s.subnets[0] = sub

	s.appIdxNext = 0x0000
	s.netIdxNext = 0x0001
	s.ivIndex = cfg.IVIndex
	s.ivUpdate = cfg.Flags&FlagIVUpdate != 0
	s.netCreated = true

	s.sink.OnIndexCursorChanged(s.netIdxNext, s.appIdxNext)
	s.sink.OnSubnetUpsert(*sub)
	s.sink.OnIVChanged(s.ivIndex, s.ivUpdate)

	s.emit(log.CategoryNetKey, log.OpBootstrap, evNetKey(sub.NetIdx))
	return nil
}

// AddNetKey adds a network key. Pass nil key material to have the store
// generate random material; pass mesh.IndexAuto to auto-allocate the index.
//
// Material already present in any live subnet (either generation) is an
// idempotent success returning the existing index. An explicit index that is
// already in use fails with ErrAlreadyExists.
func (s *Store) AddNetKey(key *mesh.Key, idx mesh.KeyIndex) (mesh.KeyIndex, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addNetKeyLocked(key, idx)
}

func (s *Store) addNetKeyLocked(key *mesh.Key, idx mesh.KeyIndex) (mesh.KeyIndex, error) {
	if !s.netIdxNext.Valid() {
		return 0, fmt.Errorf("%w: network key index space", ErrNoIndexAvailable)
	}
	if idx != mesh.IndexAuto && !idx.Valid() {
		return 0, fmt.Errorf("%w: network key index %s", ErrInvalidArgument, idx)
	}

	if key != nil {
		for _, sub := range s.subnets {
			if sub != nil && sub.hasKey(*key) {
				// Duplicate material: idempotent success.
				return sub.NetIdx, nil
			}
		}
	}

	if idx != mesh.IndexAuto && s.subnetLocked(idx) != nil {
		return 0, fmt.Errorf("%w: network key index %s", ErrAlreadyExists, idx)
	}

	row := s.freeSubnetRowLocked()
	if row < 0 {
		return 0, fmt.Errorf("%w: subnet table", ErrStoreFull)
	}

	var material mesh.Key
	if key != nil {
		material = *key
	} else {
		var err error
		material, err = s.deriver.RandomKey()
		if err != nil {
			return 0, fmt.Errorf("%w: network key: %v", ErrDerivation, err)
		}
	}

	// Derivation runs before the row is published; a failure leaves no
	// partially-allocated row behind.
	nid, err := s.deriver.NetworkID(material)
	if err != nil {
		return 0, fmt.Errorf("%w: nid: %v", ErrDerivation, err)
	}

	if idx == mesh.IndexAuto {
		idx = s.netIdxNext
		for s.subnetLocked(idx) != nil {
			s.netIdxNext++
			idx = s.netIdxNext
			if !idx.Valid() {
				return 0, fmt.Errorf("%w: network key index space", ErrNoIndexAvailable)
			}
		}
	}

	sub := &Subnet{
		NetIdx:  idx,
		KRPhase: KRNormal,
		NodeID:  NodeIdentityNotSupported,
	}
	sub.Keys[GenPrimary] = SubnetKeys{Net: material, NID: nid}
	s.subnets[row] = sub

	s.sink.OnIndexCursorChanged(s.netIdxNext, s.appIdxNext)
	s.sink.OnSubnetUpsert(*sub)

	s.emit(log.CategoryNetKey, log.OpAdd, evNetKey(idx))
	return idx, nil
}

// ActiveNetKey returns the active-generation key material of a subnet.
func (s *Store) ActiveNetKey(idx mesh.KeyIndex) (mesh.Key, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub := s.subnetLocked(idx)
	if sub == nil {
		return mesh.Key{}, fmt.Errorf("%w: network key index %s", ErrNotFound, idx)
	}
	return sub.ActiveKeys().Net, nil
}

// Subnet returns a copy of the subnet row for idx. The wildcard mesh.KeyAny
// returns the default subnet (the first table row) so callers that have not
// yet negotiated an index still make progress.
func (s *Store) Subnet(idx mesh.KeyIndex) (Subnet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if idx == mesh.KeyAny {
		if s.subnets[0] == nil {
			return Subnet{}, fmt.Errorf("%w: no default subnet", ErrNotFound)
		}
		return *s.subnets[0], nil
	}

	sub := s.subnetLocked(idx)
	if sub == nil {
		return Subnet{}, fmt.Errorf("%w: network key index %s", ErrNotFound, idx)
	}
	return *sub, nil
}

// DeleteNetKey deletes a subnet, first cascading the deletion to every
// application key bound to it. The cascade completes before the subnet row
// is freed, and the whole sequence runs under the store lock: no caller can
// observe an application key whose subnet is gone, or the reverse.
func (s *Store) DeleteNetKey(idx mesh.KeyIndex) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var row = -1
	for i, sub := range s.subnets {
		if sub != nil && sub.NetIdx == idx {
			row = i
			break
		}
	}
	if row < 0 {
		return fmt.Errorf("%w: network key index %s", ErrNotFound, idx)
	}

	for _, key := range s.appKeys {
		if key == nil || key.NetIdx != idx {
			continue
		}
		// The existence checks above make a cascade failure unreachable;
		// anything else is an invariant violation.
		if err := s.deleteAppKeyLocked(key.NetIdx, key.AppIdx); err != nil {
			return fmt.Errorf("%w: cascade delete app key %s: %v", ErrInternal, key.AppIdx, err)
		}
		s.emit(log.CategoryAppKey, log.OpCascade, evAppKey(idx, key.AppIdx))
	}

	s.sink.OnSubnetErase(idx)
	s.subnets[row] = nil

	s.emit(log.CategoryNetKey, log.OpDelete, evNetKey(idx))
	return nil
}

// NetKeyCount returns the number of live subnets.
func (s *Store) NetKeyCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, sub := range s.subnets {
		if sub != nil {
			count++
		}
	}
	return count
}

// Subnets returns copies of all live subnet rows in table order.
func (s *Store) Subnets() []Subnet {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Subnet, 0, len(s.subnets))
	for _, sub := range s.subnets {
		if sub != nil {
			out = append(out, *sub)
		}
	}
	return out
}

func (s *Store) subnetLocked(idx mesh.KeyIndex) *Subnet {
	for _, sub := range s.subnets {
		if sub != nil && sub.NetIdx == idx {
			return sub
		}
	}
	return nil
}

func (s *Store) freeSubnetRowLocked() int {
	for i, sub := range s.subnets {
		if sub == nil {
			return i
		}
	}
	return -1
}
