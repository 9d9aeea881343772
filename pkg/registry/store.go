package registry

import (
	"fmt"
	"sync"
	"time"

	"github.com/meshprov/meshprov-go/pkg/composition"
	"github.com/meshprov/meshprov-go/pkg/log"
	"github.com/meshprov/meshprov-go/pkg/mesh"
)

// Config holds the store's fixed table capacities.
type Config struct {
	// MaxNodes is the total node table capacity across both partitions.
	MaxNodes int

	// MaxProvisionedNodes is the capacity of the self-provisioned
	// partition, occupying table indices [0, MaxProvisionedNodes).
	// Externally registered nodes use [MaxProvisionedNodes, MaxNodes).
	MaxProvisionedNodes int

	// MaxSubnets is the subnet (network key) table capacity.
	MaxSubnets int

	// MaxAppKeys is the application key table capacity.
	MaxAppKeys int

	// FastProv enables the fast-provisioning override subsystem.
	FastProv bool
}

// DefaultConfig returns the default table capacities.
func DefaultConfig() Config {
	return Config{
		MaxNodes:            16,
		MaxProvisionedNodes: 8,
		MaxSubnets:          3,
		MaxAppKeys:          3,
	}
}

// Validate checks the configuration for consistency.
func (c Config) Validate() error {
	if c.MaxNodes <= 0 || c.MaxSubnets <= 0 || c.MaxAppKeys <= 0 {
		return fmt.Errorf("%w: capacities must be positive", ErrInvalidArgument)
	}
	if c.MaxProvisionedNodes <= 0 || c.MaxProvisionedNodes > c.MaxNodes {
		return fmt.Errorf("%w: self-provisioned partition must fit the node table", ErrInvalidArgument)
	}
	return nil
}

// Store is the provisioner's credential and node registry. It owns the node
// table, the subnet table, the application key table and the model binding
// state of the local composition.
//
// One mutex serializes all operations, including the multi-table cascade of
// a network key deletion. Create a Store once at startup with New and share
// it; the zero value is not usable.
type Store struct {
	mu  sync.Mutex
	cfg Config

	deriver  KeyDeriver
	sink     Sink
	logger   log.Logger
	comp     *composition.Composition
	msgCache MessageCache
	replay   ReplayList

	nodes     []*Node
	nodeCount int
	provCount int

	subnets []*Subnet
	appKeys []*AppKey

	netIdxNext mesh.KeyIndex
	appIdxNext mesh.KeyIndex

	ivIndex    uint32
	ivUpdate   bool
	netCreated bool

	// localDevKey secures configuration traffic to the provisioner's own
	// primary element; consulted by the fast-provisioning override.
	localDevKey mesh.Key

	fast *fastProvState
}

// New creates a Store with the given local element/model directory and
// configuration. The directory may be nil when model binding is not used.
//
// Collaborators default to a LocalDeriver, a NoopSink and a NoopLogger;
// replace them with the Set methods before issuing operations.
func New(comp *composition.Composition, cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Store{
		cfg:        cfg,
		deriver:    NewLocalDeriver(),
		sink:       NoopSink{},
		logger:     log.NoopLogger{},
		comp:       comp,
		nodes:      make([]*Node, cfg.MaxNodes),
		subnets:    make([]*Subnet, cfg.MaxSubnets),
		appKeys:    make([]*AppKey, cfg.MaxAppKeys),
		netIdxNext: 0x0001,
		appIdxNext: 0x0000,
	}
	if cfg.FastProv {
		s.fast = newFastProvState()
	}
	return s, nil
}

// SetDeriver replaces the key derivation collaborator.
func (s *Store) SetDeriver(d KeyDeriver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d != nil {
		s.deriver = d
	}
}

// SetSink replaces the persistence write-through sink.
func (s *Store) SetSink(sink Sink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sink == nil {
		s.sink = NoopSink{}
		return
	}
	s.sink = sink
}

// SetLogger replaces the event logger.
func (s *Store) SetLogger(l log.Logger) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l == nil {
		s.logger = log.NoopLogger{}
		return
	}
	s.logger = l
}

// SetMessageCache attaches the network-layer duplicate-message cache.
func (s *Store) SetMessageCache(c MessageCache) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgCache = c
}

// SetReplayList attaches the replay-protection list.
func (s *Store) SetReplayList(r ReplayList) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replay = r
}

// SetLocalDeviceKey records the device key of the provisioner's own primary
// element, consulted by the fast-provisioning device key lookup.
func (s *Store) SetLocalDeviceKey(k mesh.Key) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.localDevKey = k
}

// NodeCapacity returns the total node table capacity.
func (s *Store) NodeCapacity() int { return s.cfg.MaxNodes }

// NetKeyCapacity returns the subnet table capacity.
func (s *Store) NetKeyCapacity() int { return s.cfg.MaxSubnets }

// AppKeyCapacity returns the application key table capacity.
func (s *Store) AppKeyCapacity() int { return s.cfg.MaxAppKeys }

// IVIndex returns the current IV index and IV update flag.
func (s *Store) IVIndex() (uint32, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ivIndex, s.ivUpdate
}

// Composition returns the local element/model directory.
func (s *Store) Composition() *composition.Composition {
	return s.comp
}

// DescribeComposition returns a diagnostic dump of the local elements and
// their models with current binding state.
func (s *Store) DescribeComposition() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.comp == nil {
		return "no composition"
	}
	return s.comp.Describe()
}

// OwnUnicastInfo returns the provisioner's own primary element address and
// element count.
func (s *Store) OwnUnicastInfo() (mesh.Address, int, error) {
	if s.comp == nil {
		return mesh.AddrUnassigned, 0, fmt.Errorf("%w: no composition", ErrInvalidArgument)
	}
	return s.comp.PrimaryAddr(), s.comp.ElementCount(), nil
}

// emit builds and logs a registry event. Called with the lock held.
func (s *Store) emit(cat log.Category, op log.Op, mut func(*log.Event)) {
	ev := log.Event{
		Timestamp: time.Now(),
		Category:  cat,
		Op:        op,
	}
	if mut != nil {
		mut(&ev)
	}
	s.logger.Log(ev)
}

func evNode(index int, unicast mesh.Address) func(*log.Event) {
	return func(ev *log.Event) {
		i := index
		u := uint16(unicast)
		ev.NodeIndex = &i
		ev.Unicast = &u
	}
}

func evNetKey(netIdx mesh.KeyIndex) func(*log.Event) {
	return func(ev *log.Event) {
		n := uint16(netIdx)
		ev.NetIdx = &n
	}
}

func evAppKey(netIdx, appIdx mesh.KeyIndex) func(*log.Event) {
	return func(ev *log.Event) {
		n := uint16(netIdx)
		a := uint16(appIdx)
		ev.NetIdx = &n
		ev.AppIdx = &a
	}
}
