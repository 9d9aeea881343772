package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshprov/meshprov-go/pkg/composition"
	"github.com/meshprov/meshprov-go/pkg/mesh"
)

func TestRestoreNode_ExactIndexPlacement(t *testing.T) {
	s := newTestStore()
	sink := &recordingSink{}
	s.SetSink(sink)

	require.NoError(t, s.RestoreNode(4, testNode(1, 0x0100, 1)))

	got, err := s.NodeAt(4)
	require.NoError(t, err)
	assert.Equal(t, mesh.Address(0x0100), got.UnicastAddr)
	assert.Equal(t, 1, s.NodeCount())
	assert.Equal(t, 0, s.ProvisionedNodeCount(), "index 4 is in the external partition")

	assert.Empty(t, sink.nodeUpserts, "restore must not write back through the sink")
}

func TestRestoreNode_CountsProvisionedPartition(t *testing.T) {
	s := newTestStore()

	require.NoError(t, s.RestoreNode(0, testNode(1, 0x0005, 1)))
	assert.Equal(t, 1, s.ProvisionedNodeCount())
}

func TestRestoreNode_Validation(t *testing.T) {
	s := newTestStore()

	assert.ErrorIs(t, s.RestoreNode(-1, testNode(1, 0x0005, 1)), ErrInvalidArgument)
	assert.ErrorIs(t, s.RestoreNode(testConfig().MaxNodes, testNode(1, 0x0005, 1)), ErrInvalidArgument)
	assert.ErrorIs(t, s.RestoreNode(0, testNode(1, 0xC000, 1)), ErrInvalidArgument)

	require.NoError(t, s.RestoreNode(0, testNode(1, 0x0005, 1)))
	assert.ErrorIs(t, s.RestoreNode(0, testNode(2, 0x0010, 1)), ErrAlreadyExists)
}

func TestRestoreSubnet(t *testing.T) {
	s := newTestStore()
	sink := &recordingSink{}
	s.SetSink(sink)

	sub := Subnet{NetIdx: 0x0002}
	sub.Keys[GenPrimary] = SubnetKeys{Net: keyOf(0x11), NID: 0x11}
	require.NoError(t, s.RestoreSubnet(sub))

	got, err := s.Subnet(0x0002)
	require.NoError(t, err)
	assert.True(t, got.Keys[GenPrimary].Net.Equal(keyOf(0x11)))
	assert.Empty(t, sink.subnetUpserts)

	assert.ErrorIs(t, s.RestoreSubnet(sub), ErrAlreadyExists)
	assert.ErrorIs(t, s.RestoreSubnet(Subnet{NetIdx: mesh.IndexAuto}), ErrInvalidArgument)
}

func TestRestoreAppKey(t *testing.T) {
	s := newTestStore()

	k := AppKey{NetIdx: mesh.KeyPrimary, AppIdx: 0x0003}
	k.Keys[GenPrimary] = AppKeys{Val: keyOf(0x21), AID: 0x21}
	require.NoError(t, s.RestoreAppKey(k))

	got, err := s.AppKey(0x0003)
	require.NoError(t, err)
	assert.True(t, got.Keys[GenPrimary].Val.Equal(keyOf(0x21)))

	assert.ErrorIs(t, s.RestoreAppKey(k), ErrAlreadyExists)
	assert.ErrorIs(t, s.RestoreAppKey(AppKey{NetIdx: mesh.KeyPrimary, AppIdx: mesh.IndexAuto}), ErrInvalidArgument)
}

func TestRestoreCursors_ResumeAllocation(t *testing.T) {
	s := newTestStore()
	s.RestoreCursors(0x0010, 0x0020)

	key := keyOf(0x11)
	idx, err := s.AddNetKey(&key, mesh.IndexAuto)
	require.NoError(t, err)
	assert.Equal(t, mesh.KeyIndex(0x0010), idx)

	appKey := keyOf(0x21)
	appIdx, err := s.AddAppKey(&appKey, idx, mesh.IndexAuto)
	require.NoError(t, err)
	assert.Equal(t, mesh.KeyIndex(0x0020), appIdx)
}

func TestRestoreIV(t *testing.T) {
	s := newTestStore()
	s.RestoreIV(42, true)

	iv, update := s.IVIndex()
	assert.Equal(t, uint32(42), iv)
	assert.True(t, update)
}

func TestRestoreModelBinding(t *testing.T) {
	s := newTestStore()
	require.NoError(t, s.CreateLocalNetwork(LocalNetworkConfig{PrimaryAddr: 0x0001}))

	keys := [composition.ModelKeySlots]mesh.KeyIndex{0x0002, mesh.KeyUnused, mesh.KeyUnused}
	require.NoError(t, s.RestoreModelBinding(0x0001, composition.CompanyNone, sigModelID, keys))

	m := modelAt(t, s, 0x0001, composition.CompanyNone, sigModelID)
	assert.True(t, m.IsBound(0x0002))

	err := s.RestoreModelBinding(0x0099, composition.CompanyNone, sigModelID, keys)
	assert.ErrorIs(t, err, ErrNotFound)
}
