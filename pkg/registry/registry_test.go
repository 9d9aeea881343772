package registry

import (
	"errors"

	"github.com/google/uuid"

	"github.com/meshprov/meshprov-go/pkg/composition"
	"github.com/meshprov/meshprov-go/pkg/mesh"
)

// Shared test fixtures for the registry package.

// testConfig is small enough to exercise full-table paths quickly.
func testConfig() Config {
	return Config{
		MaxNodes:            6,
		MaxProvisionedNodes: 3,
		MaxSubnets:          3,
		MaxAppKeys:          3,
	}
}

// testComposition builds a two-element directory: a SIG model 0x1000 on the
// primary element and a vendor model 0x005E/0x0001 on the second.
func testComposition() *composition.Composition {
	return &composition.Composition{
		CID: 0x02E5,
		PID: 0x0001,
		VID: 0x0001,
		Elements: []*composition.Element{
			{Models: []*composition.Model{composition.NewModel(0x1000)}},
			{VendorModels: []*composition.Model{composition.NewVendorModel(0x005E, 0x0001)}},
		},
	}
}

func newTestStore() *Store {
	s, err := New(testComposition(), testConfig())
	if err != nil {
		panic(err)
	}
	s.SetDeriver(&seqDeriver{})
	return s
}

func keyOf(b byte) mesh.Key {
	var k mesh.Key
	for i := range k {
		k[i] = b
	}
	return k
}

func uuidOf(b byte) mesh.DeviceUUID {
	var raw [16]byte
	for i := range raw {
		raw[i] = b
	}
	return uuid.UUID(raw)
}

func testNode(b byte, unicast mesh.Address, elems uint8) Node {
	return Node{
		Addr:         mesh.BDAddr{Val: [6]byte{b, b, b, b, b, b}},
		UUID:         uuidOf(b),
		UnicastAddr:  unicast,
		ElementCount: elems,
		NetIdx:       mesh.KeyPrimary,
		DevKey:       keyOf(b),
	}
}

// seqDeriver is a deterministic KeyDeriver. Random keys are filled with an
// incrementing byte; identifiers come straight from the first key byte.
type seqDeriver struct {
	next     byte
	failNID  bool
	failAID  bool
	failRand bool
}

var errDeriverDown = errors.New("deriver down")

func (d *seqDeriver) NetworkID(key mesh.Key) (uint8, error) {
	if d.failNID {
		return 0, errDeriverDown
	}
	return key[0] & 0x7F, nil
}

func (d *seqDeriver) ApplicationID(key mesh.Key) (uint8, error) {
	if d.failAID {
		return 0, errDeriverDown
	}
	return key[0] & 0x3F, nil
}

func (d *seqDeriver) RandomKey() (mesh.Key, error) {
	if d.failRand {
		return mesh.Key{}, errDeriverDown
	}
	d.next++
	return keyOf(d.next), nil
}

// recordingSink captures every notification for assertions.
type recordingSink struct {
	NoopSink

	nodeUpserts    []int
	nodeErases     []mesh.Address
	subnetUpserts  []mesh.KeyIndex
	subnetErases   []mesh.KeyIndex
	appKeyUpserts  []mesh.KeyIndex
	appKeyErases   [][2]mesh.KeyIndex
	bindingChanges []mesh.Address
	replayErases   []mesh.Address
	cursorMoves    int
	ivChanges      int
}

func (r *recordingSink) OnNodeUpsert(index int, _ Node, _ bool) {
	r.nodeUpserts = append(r.nodeUpserts, index)
}

func (r *recordingSink) OnNodeErase(unicast mesh.Address, _ bool) {
	r.nodeErases = append(r.nodeErases, unicast)
}

func (r *recordingSink) OnSubnetUpsert(sub Subnet) {
	r.subnetUpserts = append(r.subnetUpserts, sub.NetIdx)
}

func (r *recordingSink) OnSubnetErase(netIdx mesh.KeyIndex) {
	r.subnetErases = append(r.subnetErases, netIdx)
}

func (r *recordingSink) OnAppKeyUpsert(key AppKey) {
	r.appKeyUpserts = append(r.appKeyUpserts, key.AppIdx)
}

func (r *recordingSink) OnAppKeyErase(netIdx, appIdx mesh.KeyIndex) {
	r.appKeyErases = append(r.appKeyErases, [2]mesh.KeyIndex{netIdx, appIdx})
}

func (r *recordingSink) OnModelBindingChanged(elemAddr mesh.Address, _ composition.Model) {
	r.bindingChanges = append(r.bindingChanges, elemAddr)
}

func (r *recordingSink) OnIndexCursorChanged(_, _ mesh.KeyIndex) {
	r.cursorMoves++
}

func (r *recordingSink) OnReplayErase(src mesh.Address) {
	r.replayErases = append(r.replayErases, src)
}

func (r *recordingSink) OnIVChanged(_ uint32, _ bool) {
	r.ivChanges++
}

// fakeMessageCache records invalidated ranges.
type fakeMessageCache struct {
	invalidated []mesh.Address
}

func (c *fakeMessageCache) Invalidate(start mesh.Address, count uint8) {
	for i := uint8(0); i < count; i++ {
		c.invalidated = append(c.invalidated, start+mesh.Address(i))
	}
}

// fakeReplayList holds per-source entries and reports which it dropped.
type fakeReplayList struct {
	entries []mesh.Address
}

func (r *fakeReplayList) ClearRange(start mesh.Address, count uint8) []mesh.Address {
	var cleared []mesh.Address
	kept := r.entries[:0]
	for _, src := range r.entries {
		if src >= start && src < start+mesh.Address(count) {
			cleared = append(cleared, src)
			continue
		}
		kept = append(kept, src)
	}
	r.entries = kept
	return cleared
}
