package registry

import (
	"fmt"

	"github.com/meshprov/meshprov-go/pkg/log"
	"github.com/meshprov/meshprov-go/pkg/mesh"
)

// MaxNodeNameLen is the maximum stored length of a node name.
const MaxNodeNameLen = 31

// Node is one admitted device.
type Node struct {
	// Addr is the device's link-layer address.
	Addr mesh.BDAddr

	// UUID is the 16-byte device UUID, unique across all live records.
	UUID mesh.DeviceUUID

	// OOBInfo carries the out-of-band information advertised by the
	// device before provisioning.
	OOBInfo uint16

	// UnicastAddr is the primary element address. The node owns the
	// half-open range [UnicastAddr, UnicastAddr+ElementCount).
	UnicastAddr mesh.Address

	// ElementCount is the number of elements the device exposes.
	ElementCount uint8

	// NetIdx is the node's home network key index.
	NetIdx mesh.KeyIndex

	// Flags carries the key-refresh and IV-update flags handed over
	// during provisioning.
	Flags uint8

	// IVIndex is the IV index the node was provisioned with.
	IVIndex uint32

	// DevKey secures configuration traffic to the node's primary element.
	DevKey mesh.Key

	// Name is an optional caller-assigned display name.
	Name string
}

// Contains reports whether addr falls inside the node's element range.
func (n *Node) Contains(addr mesh.Address) bool {
	return addr >= n.UnicastAddr &&
		addr < n.UnicastAddr+mesh.Address(n.ElementCount)
}

// AddNode admits a node into the selected partition and returns its table
// index. No duplicate-UUID check is performed; callers that need one use
// AddNodeChecked. Returns ErrStoreFull when the partition has no free slot.
//
// The registry stores the caller-validated address allocation faithfully;
// the provisioning collaborator guarantees range non-overlap.
func (s *Store) AddNode(rec Node, selfProvisioned bool) (int, error) {
	if err := checkNodeRecord(rec); err != nil {
		return -1, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.storeNodeLocked(rec, selfProvisioned)
}

// AddNodeChecked is AddNode with a duplicate-UUID scan over all live
// records first. Returns ErrAlreadyExists when the UUID is already admitted.
func (s *Store) AddNodeChecked(rec Node, selfProvisioned bool) (int, error) {
	if err := checkNodeRecord(rec); err != nil {
		return -1, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, n := range s.nodes {
		if n != nil && n.UUID == rec.UUID {
			return -1, fmt.Errorf("%w: device uuid %s", ErrAlreadyExists, rec.UUID)
		}
	}
	return s.storeNodeLocked(rec, selfProvisioned)
}

func checkNodeRecord(rec Node) error {
	if !rec.UnicastAddr.IsUnicast() {
		return fmt.Errorf("%w: primary address %s is not unicast", ErrInvalidArgument, rec.UnicastAddr)
	}
	if rec.ElementCount == 0 {
		return fmt.Errorf("%w: zero element count", ErrInvalidArgument)
	}
	return nil
}

// storeNodeLocked scans the selected partition for a free slot and commits
// the record. Called with the lock held.
func (s *Store) storeNodeLocked(rec Node, selfProvisioned bool) (int, error) {
	min, max := s.partition(selfProvisioned)

	for i := min; i < max; i++ {
		if s.nodes[i] != nil {
			continue
		}

		n := rec
		n.Name = truncateName(rec.Name)
		s.nodes[i] = &n

		s.nodeCount++
		if selfProvisioned {
			s.provCount++
		}

		s.sink.OnNodeUpsert(i, n, selfProvisioned)
		s.emit(log.CategoryNode, log.OpAdd, evNode(i, n.UnicastAddr))
		return i, nil
	}

	return -1, fmt.Errorf("%w: node partition", ErrStoreFull)
}

// partition returns the half-open index range of the selected partition.
func (s *Store) partition(selfProvisioned bool) (int, int) {
	if selfProvisioned {
		return 0, s.cfg.MaxProvisionedNodes
	}
	return s.cfg.MaxProvisionedNodes, s.cfg.MaxNodes
}

// ResetNode frees the node slot at index. Idempotent: an already-empty slot
// succeeds with no effect. Resetting purges the node's duplicate-message
// cache entries and replay-protection entries before the slot is freed.
func (s *Store) ResetNode(index int) error {
	if index < 0 || index >= s.cfg.MaxNodes {
		return fmt.Errorf("%w: node index %d", ErrInvalidArgument, index)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetNodeLocked(index)
	return nil
}

// ResetAllNodes resets every node slot. Sparse tables are handled: empty
// slots are skipped, not treated as the end of the table.
func (s *Store) ResetAllNodes() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.nodes {
		s.resetNodeLocked(i)
	}
}

func (s *Store) resetNodeLocked(index int) {
	node := s.nodes[index]
	if node == nil {
		return
	}

	if s.msgCache != nil {
		s.msgCache.Invalidate(node.UnicastAddr, node.ElementCount)
	}
	if s.replay != nil {
		for _, src := range s.replay.ClearRange(node.UnicastAddr, node.ElementCount) {
			s.sink.OnReplayErase(src)
		}
	}

	selfProvisioned := index < s.cfg.MaxProvisionedNodes
	s.sink.OnNodeErase(node.UnicastAddr, selfProvisioned)

	s.nodes[index] = nil
	if s.nodeCount > 0 {
		s.nodeCount--
	}
	if selfProvisioned && s.provCount > 0 {
		s.provCount--
	}

	s.emit(log.CategoryNode, log.OpReset, evNode(index, node.UnicastAddr))
}

// FindNodeByUUID reports whether a self-provisioned node with the given UUID
// exists, optionally resetting the match before returning.
func (s *Store) FindNodeByUUID(uuid mesh.DeviceUUID, reset bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := 0; i < s.cfg.MaxProvisionedNodes; i++ {
		if s.nodes[i] != nil && s.nodes[i].UUID == uuid {
			if reset {
				s.resetNodeLocked(i)
			}
			return true
		}
	}
	return false
}

// FindNodeByAddr reports whether a self-provisioned node with the given
// link-layer address exists, optionally resetting the match.
func (s *Store) FindNodeByAddr(addr mesh.BDAddr, reset bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := 0; i < s.cfg.MaxProvisionedNodes; i++ {
		if s.nodes[i] != nil && s.nodes[i].Addr.Equal(addr) {
			if reset {
				s.resetNodeLocked(i)
			}
			return true
		}
	}
	return false
}

// NodeByUnicast returns a copy of the node whose element range contains
// addr, scanning both partitions.
func (s *Store) NodeByUnicast(addr mesh.Address) (Node, error) {
	if !addr.IsUnicast() {
		return Node{}, fmt.Errorf("%w: %s is not unicast", ErrInvalidArgument, addr)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, n := range s.nodes {
		if n != nil && n.Contains(addr) {
			return *n, nil
		}
	}
	return Node{}, fmt.Errorf("%w: no node owns %s", ErrNotFound, addr)
}

// IsDestinationKnown reports whether addr is a reachable destination.
// Non-unicast addresses are always considered known; group and broadcast
// semantics live elsewhere. A unicast address is known iff some live node's
// element range contains it.
func (s *Store) IsDestinationKnown(addr mesh.Address) bool {
	if !addr.IsUnicast() {
		return true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, n := range s.nodes {
		if n != nil && n.Contains(addr) {
			return true
		}
	}
	return false
}

// DeviceKey returns the device key of the node whose primary element address
// is exactly addr. Device keys secure configuration traffic, which only the
// primary element handles.
func (s *Store) DeviceKey(addr mesh.Address) (mesh.Key, error) {
	if !addr.IsUnicast() {
		return mesh.Key{}, fmt.Errorf("%w: %s is not unicast", ErrInvalidArgument, addr)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, n := range s.nodes {
		if n != nil && n.UnicastAddr == addr {
			return n.DevKey, nil
		}
	}
	return mesh.Key{}, fmt.Errorf("%w: no node at %s", ErrNotFound, addr)
}

// SetNodeName assigns a display name to the node at index. Names are
// truncated to MaxNodeNameLen and must be unique across live nodes.
func (s *Store) SetNodeName(index int, name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	node, err := s.nodeAtLocked(index)
	if err != nil {
		return err
	}

	name = truncateName(name)
	for i, n := range s.nodes {
		if n != nil && i != index && n.Name == name {
			return fmt.Errorf("%w: name %q", ErrAlreadyExists, name)
		}
	}

	node.Name = name
	s.sink.OnNodeUpsert(index, *node, index < s.cfg.MaxProvisionedNodes)
	s.emit(log.CategoryNode, log.OpRename, func(ev *log.Event) {
		evNode(index, node.UnicastAddr)(ev)
		ev.Detail = name
	})
	return nil
}

// NodeName returns the display name of the node at index.
func (s *Store) NodeName(index int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, err := s.nodeAtLocked(index)
	if err != nil {
		return "", err
	}
	return node.Name, nil
}

// NodeIndexByName returns the table index of the node with the given name.
func (s *Store) NodeIndexByName(name string) (int, error) {
	if name == "" {
		return -1, fmt.Errorf("%w: empty name", ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	name = truncateName(name)
	for i, n := range s.nodes {
		if n != nil && n.Name == name {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: name %q", ErrNotFound, name)
}

// NodeAt returns a copy of the node at the given table index.
func (s *Store) NodeAt(index int) (Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	node, err := s.nodeAtLocked(index)
	if err != nil {
		return Node{}, err
	}
	return *node, nil
}

// FirstNode returns a copy of the first live node in table order.
func (s *Store) FirstNode() (Node, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, n := range s.nodes {
		if n != nil {
			return *n, true
		}
	}
	return Node{}, false
}

// NodeCount returns the number of live nodes across both partitions.
func (s *Store) NodeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nodeCount
}

// ProvisionedNodeCount returns the number of live self-provisioned nodes.
func (s *Store) ProvisionedNodeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.provCount
}

// Nodes returns copies of all live nodes with their table indices, in table
// order.
func (s *Store) Nodes() map[int]Node {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[int]Node, s.nodeCount)
	for i, n := range s.nodes {
		if n != nil {
			out[i] = *n
		}
	}
	return out
}

func (s *Store) nodeAtLocked(index int) (*Node, error) {
	if index < 0 || index >= s.cfg.MaxNodes {
		return nil, fmt.Errorf("%w: node index %d", ErrInvalidArgument, index)
	}
	if s.nodes[index] == nil {
		return nil, fmt.Errorf("%w: node index %d", ErrNotFound, index)
	}
	return s.nodes[index], nil
}

func truncateName(name string) string {
	if len(name) > MaxNodeNameLen {
		return name[:MaxNodeNameLen]
	}
	return name
}
