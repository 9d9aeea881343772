package registry

import (
	"fmt"

	"github.com/meshprov/meshprov-go/pkg/log"
	"github.com/meshprov/meshprov-go/pkg/mesh"
)

// AppKeys is one application key generation: the raw material plus its
// derived AID.
type AppKeys struct {
	Val mesh.Key
	AID uint8
}

// AppKey is one application key row, bound to exactly one subnet.
type AppKey struct {
	// NetIdx is the owning subnet's key index. Valid at creation; subnet
	// deletion cascades into this row rather than re-validating.
	NetIdx mesh.KeyIndex

	// AppIdx is the application key index.
	AppIdx mesh.KeyIndex

	// Keys holds the two key generations, indexed by Generation.
	Keys [2]AppKeys

	// Updated selects the active generation: GenSecondary when set.
	Updated bool
}

// ActiveGeneration returns the generation selected by the updated flag.
func (k *AppKey) ActiveGeneration() Generation {
	if k.Updated {
		return GenSecondary
	}
	return GenPrimary
}

// ActiveKeys returns the active key generation.
func (k *AppKey) ActiveKeys() AppKeys {
	return k.Keys[k.ActiveGeneration()]
}

func (k *AppKey) hasKey(key mesh.Key) bool {
	return k.Keys[GenPrimary].Val.Equal(key) || k.Keys[GenSecondary].Val.Equal(key)
}

// AddAppKey adds an application key bound to the subnet at netIdx. Pass nil
// key material to generate random material; pass mesh.IndexAuto to
// auto-allocate the index.
//
// Duplicate key material is an idempotent success returning the existing
// index, checked before index availability. The owning subnet must be live.
func (s *Store) AddAppKey(key *mesh.Key, netIdx, idx mesh.KeyIndex) (mesh.KeyIndex, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.appIdxNext.Valid() {
		return 0, fmt.Errorf("%w: application key index space", ErrNoIndexAvailable)
	}
	if idx != mesh.IndexAuto && !idx.Valid() {
		return 0, fmt.Errorf("%w: application key index %s", ErrInvalidArgument, idx)
	}

	if key != nil {
		for _, k := range s.appKeys {
			if k != nil && k.hasKey(*key) {
				// Duplicate material: idempotent success.
				return k.AppIdx, nil
			}
		}
	}

	if s.subnetLocked(netIdx) == nil {
		return 0, fmt.Errorf("%w: network key index %s", ErrNotFound, netIdx)
	}

	if idx != mesh.IndexAuto && s.appKeyLocked(idx) != nil {
		return 0, fmt.Errorf("%w: application key index %s", ErrAlreadyExists, idx)
	}

	row := s.freeAppKeyRowLocked()
	if row < 0 {
		return 0, fmt.Errorf("%w: application key table", ErrStoreFull)
	}

	var material mesh.Key
	if key != nil {
		material = *key
	} else {
		var err error
		material, err = s.deriver.RandomKey()
		if err != nil {
			return 0, fmt.Errorf("%w: application key: %v", ErrDerivation, err)
		}
	}

	// Derivation runs before the row is published; a failure leaves no
	// partially-allocated row behind.
	aid, err := s.deriver.ApplicationID(material)
	if err != nil {
		return 0, fmt.Errorf("%w: aid: %v", ErrDerivation, err)
	}

	if idx == mesh.IndexAuto {
		idx = s.appIdxNext
		for s.appKeyLocked(idx) != nil {
			s.appIdxNext++
			idx = s.appIdxNext
			if !idx.Valid() {
				return 0, fmt.Errorf("%w: application key index space", ErrNoIndexAvailable)
			}
		}
	}

	k := &AppKey{
		NetIdx: netIdx,
		AppIdx: idx,
	}
	k.Keys[GenPrimary] = AppKeys{Val: material, AID: aid}
	s.appKeys[row] = k

	s.sink.OnIndexCursorChanged(s.netIdxNext, s.appIdxNext)
	s.sink.OnAppKeyUpsert(*k)

	s.emit(log.CategoryAppKey, log.OpAdd, evAppKey(netIdx, idx))
	return idx, nil
}

// ActiveAppKey returns the active-generation key material of an application
// key. Both indices must reference live rows.
func (s *Store) ActiveAppKey(netIdx, appIdx mesh.KeyIndex) (mesh.Key, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.subnetLocked(netIdx) == nil {
		return mesh.Key{}, fmt.Errorf("%w: network key index %s", ErrNotFound, netIdx)
	}

	for _, k := range s.appKeys {
		if k != nil && k.NetIdx == netIdx && k.AppIdx == appIdx {
			return k.ActiveKeys().Val, nil
		}
	}
	return mesh.Key{}, fmt.Errorf("%w: application key index %s", ErrNotFound, appIdx)
}

// AppKey returns a copy of the application key row for appIdx.
func (s *Store) AppKey(appIdx mesh.KeyIndex) (AppKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := s.appKeyLocked(appIdx)
	if k == nil {
		return AppKey{}, fmt.Errorf("%w: application key index %s", ErrNotFound, appIdx)
	}
	return *k, nil
}

// DeleteAppKey deletes an application key, unbinding it from every model of
// the local directory first so no binding slot outlives the key.
func (s *Store) DeleteAppKey(netIdx, appIdx mesh.KeyIndex) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.subnetLocked(netIdx) == nil {
		return fmt.Errorf("%w: network key index %s", ErrNotFound, netIdx)
	}
	if s.appKeyLocked(appIdx) == nil {
		return fmt.Errorf("%w: application key index %s", ErrNotFound, appIdx)
	}

	if err := s.deleteAppKeyLocked(netIdx, appIdx); err != nil {
		return err
	}

	s.emit(log.CategoryAppKey, log.OpDelete, evAppKey(netIdx, appIdx))
	return nil
}

// deleteAppKeyLocked performs the unbind-before-erase sequence. Called with
// the lock held, after existence checks; also the net-key cascade entry
// point.
func (s *Store) deleteAppKeyLocked(netIdx, appIdx mesh.KeyIndex) error {
	for i, k := range s.appKeys {
		if k == nil || k.NetIdx != netIdx || k.AppIdx != appIdx {
			continue
		}

		s.unbindAllModelsLocked(appIdx)

		s.sink.OnAppKeyErase(netIdx, appIdx)
		s.appKeys[i] = nil
		return nil
	}

	// Existence was checked by every caller; an unmatched row is an
	// invariant violation.
	return fmt.Errorf("%w: application key %s vanished", ErrInternal, appIdx)
}

// RebindAppKey re-homes an application key onto another live subnet.
func (s *Store) RebindAppKey(netIdx, appIdx mesh.KeyIndex) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.subnetLocked(netIdx) == nil {
		return fmt.Errorf("%w: network key index %s", ErrNotFound, netIdx)
	}

	k := s.appKeyLocked(appIdx)
	if k == nil {
		return fmt.Errorf("%w: application key index %s", ErrNotFound, appIdx)
	}

	k.NetIdx = netIdx
	s.sink.OnAppKeyUpsert(*k)
	return nil
}

// AppKeyCount returns the number of live application keys.
func (s *Store) AppKeyCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, k := range s.appKeys {
		if k != nil {
			count++
		}
	}
	return count
}

// AppKeys returns copies of all live application key rows in table order.
func (s *Store) AppKeys() []AppKey {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]AppKey, 0, len(s.appKeys))
	for _, k := range s.appKeys {
		if k != nil {
			out = append(out, *k)
		}
	}
	return out
}

func (s *Store) appKeyLocked(appIdx mesh.KeyIndex) *AppKey {
	for _, k := range s.appKeys {
		if k != nil && k.AppIdx == appIdx {
			return k
		}
	}
	return nil
}

func (s *Store) freeAppKeyRowLocked() int {
	for i, k := range s.appKeys {
		if k == nil {
			return i
		}
	}
	return -1
}
