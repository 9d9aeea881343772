package composition

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/meshprov/meshprov-go/pkg/mesh"
)

// Composition errors.
var (
	ErrElementNotFound = errors.New("element not found")
	ErrModelNotFound   = errors.New("model not found")
)

// ModelKeySlots is the number of application key binding slots per model.
const ModelKeySlots = 3

// CompanyNone selects SIG (non-vendor) models in lookups.
const CompanyNone uint16 = 0xFFFF

// Composition is the local element/model directory.
type Composition struct {
	// CID, PID and VID identify the company, product and version.
	CID uint16
	PID uint16
	VID uint16

	// Elements holds the device's elements in address order.
	Elements []*Element
}

// Element is one addressable element of the local device.
type Element struct {
	// Addr is the element's unicast address, assigned by Provision.
	Addr mesh.Address

	// Loc is the element's location descriptor.
	Loc uint16

	// Models holds the SIG models of this element.
	Models []*Model

	// VendorModels holds the vendor models of this element.
	VendorModels []*Model
}

// Model is one model instance hosted on an element.
type Model struct {
	// ID is the model identifier.
	ID uint16

	// Company is the company identifier for vendor models, CompanyNone
	// for SIG models.
	Company uint16

	// Keys holds the application key binding slots. Unused slots carry
	// mesh.KeyUnused.
	Keys [ModelKeySlots]mesh.KeyIndex

	// Pub is the model's publication state, nil if the model does not
	// support publishing.
	Pub *Publication
}

// Publication is a model's publish configuration plus its periodic timer.
type Publication struct {
	Addr       mesh.Address
	Key        mesh.KeyIndex
	Cred       uint8
	TTL        uint8
	Period     uint8
	Retransmit uint8
	Count      uint8

	mu    sync.Mutex
	timer *time.Timer
}

// IsSet reports whether the publication has a configured destination.
func (p *Publication) IsSet() bool {
	return p.Addr != mesh.AddrUnassigned
}

// SchedulePeriodic arms the periodic publish timer.
func (p *Publication) SchedulePeriodic(d time.Duration, fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.timer != nil {
		p.timer.Stop()
	}
	p.timer = time.AfterFunc(d, fn)
}

// Clear zeroes the publication state and cancels any pending periodic
// publish.
func (p *Publication) Clear() {
	p.Addr = mesh.AddrUnassigned
	p.Key = 0
	p.Cred = 0
	p.TTL = 0
	p.Period = 0
	p.Retransmit = 0
	p.Count = 0

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}

// NewModel creates a SIG model with all binding slots free.
func NewModel(id uint16) *Model {
	return newModel(id, CompanyNone)
}

// NewVendorModel creates a vendor model with all binding slots free.
func NewVendorModel(company, id uint16) *Model {
	return newModel(id, company)
}

func newModel(id, company uint16) *Model {
	m := &Model{ID: id, Company: company, Pub: &Publication{}}
	for i := range m.Keys {
		m.Keys[i] = mesh.KeyUnused
	}
	return m
}

// IsVendor reports whether the model is a vendor model.
func (m *Model) IsVendor() bool {
	return m.Company != CompanyNone
}

// IsBound reports whether appIdx occupies one of the model's binding slots.
func (m *Model) IsBound(appIdx mesh.KeyIndex) bool {
	for _, k := range m.Keys {
		if k == appIdx {
			return true
		}
	}
	return false
}

// Provision assigns consecutive unicast addresses to the elements, starting
// at primary. Called once before the composition is handed to the registry.
func (c *Composition) Provision(primary mesh.Address) {
	for i, elem := range c.Elements {
		elem.Addr = primary + mesh.Address(i)
	}
}

// ElementCount returns the number of elements.
func (c *Composition) ElementCount() int {
	return len(c.Elements)
}

// PrimaryAddr returns the address of the first element, AddrUnassigned if
// the composition is empty or not yet provisioned.
func (c *Composition) PrimaryAddr() mesh.Address {
	if len(c.Elements) == 0 {
		return mesh.AddrUnassigned
	}
	return c.Elements[0].Addr
}

// ElementByAddr returns the element with the given unicast address.
func (c *Composition) ElementByAddr(addr mesh.Address) (*Element, error) {
	for _, elem := range c.Elements {
		if elem.Addr == addr {
			return elem, nil
		}
	}
	return nil, ErrElementNotFound
}

// FindModel returns the model with the given identifier on the element.
// Pass CompanyNone to look up SIG models.
func (e *Element) FindModel(company, id uint16) (*Model, error) {
	models := e.Models
	if company != CompanyNone {
		models = e.VendorModels
	}
	for _, m := range models {
		if m.ID == id && m.Company == company {
			return m, nil
		}
	}
	return nil, ErrModelNotFound
}

// ForEachModel calls fn for every model of every element, SIG models first.
func (c *Composition) ForEachModel(fn func(elem *Element, m *Model)) {
	for _, elem := range c.Elements {
		for _, m := range elem.Models {
			fn(elem, m)
		}
		for _, m := range elem.VendorModels {
			fn(elem, m)
		}
	}
}

// Describe returns a human-readable dump of the composition for diagnostics.
func (c *Composition) Describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "cid: 0x%04x  pid: 0x%04x  vid: 0x%04x\n", c.CID, c.PID, c.VID)
	fmt.Fprintf(&b, "elements: %d\n", len(c.Elements))
	for i, elem := range c.Elements {
		fmt.Fprintf(&b, "  element %d: %s  loc: 0x%04x  sig: %d  vnd: %d\n",
			i, elem.Addr, elem.Loc, len(elem.Models), len(elem.VendorModels))
		for _, m := range elem.Models {
			fmt.Fprintf(&b, "    sig model 0x%04x  keys: %s\n", m.ID, describeKeys(m))
		}
		for _, m := range elem.VendorModels {
			fmt.Fprintf(&b, "    vnd model 0x%04x  cid: 0x%04x  keys: %s\n",
				m.ID, m.Company, describeKeys(m))
		}
	}
	return b.String()
}

func describeKeys(m *Model) string {
	parts := make([]string, 0, len(m.Keys))
	for _, k := range m.Keys {
		if k == mesh.KeyUnused {
			parts = append(parts, "-")
			continue
		}
		parts = append(parts, k.String())
	}
	return strings.Join(parts, " ")
}
