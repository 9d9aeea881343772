package registry

import (
	"fmt"

	"github.com/meshprov/meshprov-go/pkg/log"
	"github.com/meshprov/meshprov-go/pkg/mesh"
)

// fastProvState is the fast-provisioning override: externally injected key
// material a secondary, not-yet-fully-synced provisioner consults in
// addition to its own tables.
type fastProvState struct {
	// netIdx is the index pinned by the primary provisioner; IndexAuto
	// until SetFastNetIdx is called.
	netIdx mesh.KeyIndex

	// netKey holds the pinned index's material once known.
	netKey *mesh.Key

	// devKeys holds injected per-node device keys by primary address.
	devKeys map[mesh.Address]mesh.Key

	// subnets and appKeys are the small statically-provisioned fast
	// tables consulted before the main store.
	subnets []Subnet
	appKeys []AppKey
}

func newFastProvState() *fastProvState {
	return &fastProvState{
		netIdx:  mesh.IndexAuto,
		devKeys: make(map[mesh.Address]mesh.Key),
	}
}

func (s *Store) fastEnabled() error {
	if s.fast == nil {
		return ErrFastProvDisabled
	}
	return nil
}

// InjectFastDeviceKey registers an override device key for a node admitted
// by the primary provisioner.
func (s *Store) InjectFastDeviceKey(addr mesh.Address, key mesh.Key) error {
	if err := s.fastEnabled(); err != nil {
		return err
	}
	if !addr.IsUnicast() {
		return fmt.Errorf("%w: %s is not unicast", ErrInvalidArgument, addr)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.fast.devKeys[addr] = key
	return nil
}

// InjectFastSubnet places a subnet row into the static fast table.
func (s *Store) InjectFastSubnet(sub Subnet) error {
	if err := s.fastEnabled(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.fast.subnets = append(s.fast.subnets, sub)
	return nil
}

// InjectFastAppKey places an application key row into the static fast table.
func (s *Store) InjectFastAppKey(key AppKey) error {
	if err := s.fastEnabled(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.fast.appKeys = append(s.fast.appKeys, key)
	return nil
}

// FastDeviceKey resolves a device key with the override lookup order:
// the provisioner's own primary element, then injected override keys, then
// the full node table.
func (s *Store) FastDeviceKey(addr mesh.Address) (mesh.Key, error) {
	if err := s.fastEnabled(); err != nil {
		return mesh.Key{}, err
	}
	if !addr.IsUnicast() {
		return mesh.Key{}, fmt.Errorf("%w: %s is not unicast", ErrInvalidArgument, addr)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.comp != nil && s.comp.PrimaryAddr() == addr {
		return s.localDevKey, nil
	}
	if key, ok := s.fast.devKeys[addr]; ok {
		return key, nil
	}
	for _, n := range s.nodes {
		if n != nil && n.UnicastAddr == addr {
			return n.DevKey, nil
		}
	}
	return mesh.Key{}, fmt.Errorf("%w: no device key for %s", ErrNotFound, addr)
}

// FastSubnet resolves a subnet with the override lookup order: the static
// fast table first, then the main subnet table.
func (s *Store) FastSubnet(netIdx mesh.KeyIndex) (Subnet, error) {
	if err := s.fastEnabled(); err != nil {
		return Subnet{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sub := range s.fast.subnets {
		if sub.NetIdx == netIdx {
			return sub, nil
		}
	}
	if sub := s.subnetLocked(netIdx); sub != nil {
		return *sub, nil
	}
	return Subnet{}, fmt.Errorf("%w: network key index %s", ErrNotFound, netIdx)
}

// FastAppKey resolves an application key with the override lookup order:
// the static fast table first, then the main application key table.
func (s *Store) FastAppKey(netIdx, appIdx mesh.KeyIndex) (AppKey, error) {
	if err := s.fastEnabled(); err != nil {
		return AppKey{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range s.fast.appKeys {
		if key.NetIdx == netIdx && key.AppIdx == appIdx {
			return key, nil
		}
	}
	for _, key := range s.appKeys {
		if key != nil && key.NetIdx == netIdx && key.AppIdx == appIdx {
			return *key, nil
		}
	}
	return AppKey{}, fmt.Errorf("%w: application key %s/%s", ErrNotFound, netIdx, appIdx)
}

// SetFastNetIdx pins the network key index the primary provisioner assigned.
// Returns true when the key material for the index is already known locally;
// false when the store must wait for AddFastNetKey.
func (s *Store) SetFastNetIdx(netIdx mesh.KeyIndex) (bool, error) {
	if err := s.fastEnabled(); err != nil {
		return false, err
	}
	if !netIdx.Valid() {
		return false, fmt.Errorf("%w: network key index %s", ErrInvalidArgument, netIdx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.fast.netIdx = netIdx

	if sub := s.fastSubnetLocked(netIdx); sub != nil {
		keys := sub.ActiveKeys()
		s.fast.netKey = &keys.Net
		return true, nil
	}

	// Index pinned before the primary provisioner delivered the key.
	s.fast.netKey = nil
	return false, nil
}

// AddFastNetKey adds the network key delivered by the primary provisioner
// under the previously pinned index, delegating to the regular add path.
func (s *Store) AddFastNetKey(key mesh.Key) (mesh.KeyIndex, error) {
	if err := s.fastEnabled(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Pin the auto-allocation cursor so a wildcard pin still lands on the
	// primary provisioner's index.
	idx := s.fast.netIdx
	if idx != mesh.IndexAuto {
		s.netIdxNext = idx
	}

	got, err := s.addNetKeyLocked(&key, idx)
	if err != nil {
		return 0, err
	}

	material, err := s.netKeyLocked(got)
	if err != nil {
		return 0, err
	}
	s.fast.netIdx = got
	s.fast.netKey = &material

	s.emit(log.CategoryFastProv, log.OpAdd, evNetKey(got))
	return got, nil
}

// FastNetKey returns the active key material for a subnet through the fast
// lookup order.
func (s *Store) FastNetKey(netIdx mesh.KeyIndex) (mesh.Key, error) {
	sub, err := s.FastSubnet(netIdx)
	if err != nil {
		return mesh.Key{}, err
	}
	return sub.ActiveKeys().Net, nil
}

func (s *Store) fastSubnetLocked(netIdx mesh.KeyIndex) *Subnet {
	for i := range s.fast.subnets {
		if s.fast.subnets[i].NetIdx == netIdx {
			return &s.fast.subnets[i]
		}
	}
	return s.subnetLocked(netIdx)
}

func (s *Store) netKeyLocked(netIdx mesh.KeyIndex) (mesh.Key, error) {
	sub := s.subnetLocked(netIdx)
	if sub == nil {
		return mesh.Key{}, fmt.Errorf("%w: network key index %s", ErrNotFound, netIdx)
	}
	return sub.ActiveKeys().Net, nil
}
