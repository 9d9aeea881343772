package registry

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meshprov/meshprov-go/pkg/mesh"
)

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	bad := DefaultConfig()
	bad.MaxNodes = 0
	assert.ErrorIs(t, bad.Validate(), ErrInvalidArgument)

	bad = DefaultConfig()
	bad.MaxProvisionedNodes = 0
	assert.ErrorIs(t, bad.Validate(), ErrInvalidArgument)

	bad = DefaultConfig()
	bad.MaxProvisionedNodes = bad.MaxNodes + 1
	assert.ErrorIs(t, bad.Validate(), ErrInvalidArgument)

	bad = DefaultConfig()
	bad.MaxSubnets = -1
	assert.ErrorIs(t, bad.Validate(), ErrInvalidArgument)
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	_, err := New(testComposition(), Config{})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestStoreCapacities(t *testing.T) {
	s := newTestStore()
	cfg := testConfig()

	assert.Equal(t, cfg.MaxNodes, s.NodeCapacity())
	assert.Equal(t, cfg.MaxSubnets, s.NetKeyCapacity())
	assert.Equal(t, cfg.MaxAppKeys, s.AppKeyCapacity())
}

func TestOwnUnicastInfo_NoComposition(t *testing.T) {
	s, err := New(nil, testConfig())
	require.NoError(t, err)

	_, _, err = s.OwnUnicastInfo()
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestCreateLocalNetwork_NoComposition(t *testing.T) {
	s, err := New(nil, testConfig())
	require.NoError(t, err)

	err = s.CreateLocalNetwork(LocalNetworkConfig{PrimaryAddr: 0x0001})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestBindModel_NoComposition(t *testing.T) {
	s, err := New(nil, testConfig())
	require.NoError(t, err)

	err = s.BindModel(0x0001, 0xFFFF, 0x1000, 0x0000)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestDescribeComposition(t *testing.T) {
	s := newTestStore()
	require.NoError(t, s.CreateLocalNetwork(LocalNetworkConfig{PrimaryAddr: 0x0001}))

	out := s.DescribeComposition()
	assert.Contains(t, out, "0x1000")
}

// Concurrent mixed traffic must not race or deadlock; correctness of the
// interleavings is covered by the sequential tests.
func TestStore_ConcurrentAccess(t *testing.T) {
	s := newTestStore()
	require.NoError(t, s.CreateLocalNetwork(LocalNetworkConfig{PrimaryAddr: 0x0001}))

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				switch g {
				case 0:
					idx, err := s.AddNode(testNode(byte(i+1), mesh.Address(0x0100+i*4), 2), false)
					if err == nil {
						_ = s.ResetNode(idx)
					}
				case 1:
					key := keyOf(byte(0x40 + i))
					if idx, err := s.AddNetKey(&key, mesh.IndexAuto); err == nil {
						_ = s.DeleteNetKey(idx)
					}
				case 2:
					key := keyOf(byte(0x80 + i))
					if idx, err := s.AddAppKey(&key, mesh.KeyPrimary, mesh.IndexAuto); err == nil {
						_ = s.DeleteAppKey(mesh.KeyPrimary, idx)
					}
				case 3:
					s.NodeCount()
					s.Subnets()
					s.AppKeys()
					s.IsDestinationKnown(0x0102)
				}
			}
		}(g)
	}
	wg.Wait()
}
