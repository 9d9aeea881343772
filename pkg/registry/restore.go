package registry

import (
	"fmt"

	"github.com/meshprov/meshprov-go/pkg/composition"
	"github.com/meshprov/meshprov-go/pkg/mesh"
)

// Restore operations repopulate the store from a persistence snapshot at
// startup, before any regular operation runs. They bypass allocation logic,
// place rows at their recorded positions and deliberately do not notify the
// sink: the snapshot is the sink's own data coming back.

// RestoreNode places a node at its recorded table index.
func (s *Store) RestoreNode(index int, rec Node) error {
	if index < 0 || index >= s.cfg.MaxNodes {
		return fmt.Errorf("%w: node index %d", ErrInvalidArgument, index)
	}
	if err := checkNodeRecord(rec); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.nodes[index] != nil {
		return fmt.Errorf("%w: node index %d occupied", ErrAlreadyExists, index)
	}

	n := rec
	s.nodes[index] = &n
	s.nodeCount++
	if index < s.cfg.MaxProvisionedNodes {
		s.provCount++
	}
	return nil
}

// RestoreSubnet places a subnet row in the first free slot.
func (s *Store) RestoreSubnet(sub Subnet) error {
	if !sub.NetIdx.Valid() {
		return fmt.Errorf("%w: network key index %s", ErrInvalidArgument, sub.NetIdx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.subnetLocked(sub.NetIdx) != nil {
		return fmt.Errorf("%w: network key index %s", ErrAlreadyExists, sub.NetIdx)
	}
	row := s.freeSubnetRowLocked()
	if row < 0 {
		return fmt.Errorf("%w: subnet table", ErrStoreFull)
	}

	copyOf := sub
	s.subnets[row] = &copyOf
	return nil
}

// RestoreAppKey places an application key row in the first free slot.
func (s *Store) RestoreAppKey(key AppKey) error {
	if !key.AppIdx.Valid() || !key.NetIdx.Valid() {
		return fmt.Errorf("%w: key indices %s/%s", ErrInvalidArgument, key.NetIdx, key.AppIdx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.appKeyLocked(key.AppIdx) != nil {
		return fmt.Errorf("%w: application key index %s", ErrAlreadyExists, key.AppIdx)
	}
	row := s.freeAppKeyRowLocked()
	if row < 0 {
		return fmt.Errorf("%w: application key table", ErrStoreFull)
	}

	copyOf := key
	s.appKeys[row] = &copyOf
	return nil
}

// RestoreCursors restores the auto-allocation cursors.
func (s *Store) RestoreCursors(netIdxNext, appIdxNext mesh.KeyIndex) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.netIdxNext = netIdxNext
	s.appIdxNext = appIdxNext
}

// RestoreIV restores the IV index and IV update flag.
func (s *Store) RestoreIV(ivIndex uint32, ivUpdate bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ivIndex = ivIndex
	s.ivUpdate = ivUpdate
}

// RestoreModelBinding restores a model's binding slots.
func (s *Store) RestoreModelBinding(elemAddr mesh.Address, company, modelID uint16, keys [composition.ModelKeySlots]mesh.KeyIndex) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	model, err := s.findModelLocked(elemAddr, company, modelID)
	if err != nil {
		return err
	}
	model.Keys = keys
	return nil
}
