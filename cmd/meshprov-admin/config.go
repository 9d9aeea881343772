package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/meshprov/meshprov-go/pkg/composition"
	"github.com/meshprov/meshprov-go/pkg/mesh"
	"github.com/meshprov/meshprov-go/pkg/registry"
)

// Config holds the admin tool configuration, loadable from a YAML file.
type Config struct {
	// StatePath is the registry snapshot file. Empty disables persistence.
	StatePath string `yaml:"state"`

	// EventLog is the CBOR event log file. Empty disables event logging.
	EventLog string `yaml:"events"`

	LogLevel string `yaml:"log_level"`

	// PrimaryAddr is the provisioner's own primary element address.
	PrimaryAddr uint16 `yaml:"primary_addr"`

	IVIndex uint32 `yaml:"iv_index"`

	FastProv bool `yaml:"fast_prov"`

	Capacities CapacityConfig  `yaml:"capacities"`
	Elements   []ElementConfig `yaml:"elements"`
}

// CapacityConfig sets the registry table sizes.
type CapacityConfig struct {
	Nodes       int `yaml:"nodes"`
	Provisioned int `yaml:"provisioned"`
	Subnets     int `yaml:"subnets"`
	AppKeys     int `yaml:"app_keys"`
}

// ElementConfig describes one local element.
type ElementConfig struct {
	Location     uint16              `yaml:"location"`
	Models       []uint16            `yaml:"models"`
	VendorModels []VendorModelConfig `yaml:"vendor_models"`
}

// VendorModelConfig describes one vendor model on an element.
type VendorModelConfig struct {
	Company uint16 `yaml:"company"`
	ID      uint16 `yaml:"id"`
}

func defaultConfig() Config {
	return Config{
		StatePath:   "meshprov-state.cbor",
		LogLevel:    "info",
		PrimaryAddr: 0x0001,
		Capacities: CapacityConfig{
			Nodes:       16,
			Provisioned: 8,
			Subnets:     3,
			AppKeys:     3,
		},
		Elements: []ElementConfig{
			{Models: []uint16{0x0000, 0x0001}},
		},
	}
}

// loadConfig reads path over the defaults. An empty path returns defaults.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// registryConfig converts the capacity section.
func (c Config) registryConfig() registry.Config {
	return registry.Config{
		MaxNodes:            c.Capacities.Nodes,
		MaxProvisionedNodes: c.Capacities.Provisioned,
		MaxSubnets:          c.Capacities.Subnets,
		MaxAppKeys:          c.Capacities.AppKeys,
		FastProv:            c.FastProv,
	}
}

// buildComposition converts the element section into the local directory.
func (c Config) buildComposition() (*composition.Composition, error) {
	if len(c.Elements) == 0 {
		return nil, fmt.Errorf("at least one element is required")
	}

	comp := &composition.Composition{CID: 0x02E5, PID: 0x0001, VID: 0x0001}
	for _, ec := range c.Elements {
		elem := &composition.Element{Loc: ec.Location}
		for _, id := range ec.Models {
			elem.Models = append(elem.Models, composition.NewModel(id))
		}
		for _, vm := range ec.VendorModels {
			elem.VendorModels = append(elem.VendorModels, composition.NewVendorModel(vm.Company, vm.ID))
		}
		comp.Elements = append(comp.Elements, elem)
	}
	return comp, nil
}

func (c Config) primaryAddr() (mesh.Address, error) {
	addr := mesh.Address(c.PrimaryAddr)
	if !addr.IsUnicast() {
		return 0, fmt.Errorf("primary_addr %s is not unicast", addr)
	}
	return addr, nil
}
