package flashloan

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Manifest describes the contracts the module watches, in the style of a
// subgraph manifest. The context block carries module configuration.
type Manifest struct {
	Name        string                 `yaml:"name"`
	Version     string                 `yaml:"version"`
	Description string                 `yaml:"description,omitempty"`
	DataSources []DataSource           `yaml:"dataSources"`
	Context     map[string]interface{} `yaml:"context,omitempty"`
}

// DataSource is one watched contract or contract template.
type DataSource struct {
	Kind    string           `yaml:"kind"`
	Name    string           `yaml:"name"`
	Network string           `yaml:"network"`
	Source  DataSourceSource `yaml:"source"`
}

type DataSourceSource struct {
	Address    *string `yaml:"address,omitempty"`
	ABI        string  `yaml:"abi"`
	StartBlock *uint64 `yaml:"startBlock,omitempty"`
}

// Config is the module configuration carried in the manifest context.
type Config struct {
	FactoryAddress string           `yaml:"factoryAddress"`
	WethAddress    string           `yaml:"wethAddress"`
	RPCEndpoint    string           `yaml:"rpcEndpoint"`
	Whitelist      []WhitelistToken `yaml:"whitelist"`
}

// WhitelistToken is a price-trustworthy token with its ETH-denominated price
// seed. The oracle refines prices at runtime; the seed covers the window
// before the first refresh.
type WhitelistToken struct {
	Address    string `yaml:"address"`
	DerivedETH string `yaml:"derivedETH"`
}

// LoadManifest reads and validates a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest file %s: %w", path, err)
	}

	var manifest Manifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse YAML manifest: %w", err)
	}
	if err := manifest.Validate(); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	return &manifest, nil
}

// Validate checks the structural requirements of a manifest.
func (m *Manifest) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("manifest name is required")
	}
	if m.Version == "" {
		return fmt.Errorf("manifest version is required")
	}
	if len(m.DataSources) == 0 {
		return fmt.Errorf("at least one data source is required")
	}
	for _, ds := range m.DataSources {
		if ds.Source.ABI == "" {
			return fmt.Errorf("data source %s: ABI is required", ds.Name)
		}
	}
	return nil
}

// ModuleConfig extracts the module configuration from the manifest context.
// Addresses are normalized to lowercase.
func (m *Manifest) ModuleConfig() (*Config, error) {
	var config Config
	if m.Context != nil {
		contextBytes, err := yaml.Marshal(m.Context)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize manifest context: %w", err)
		}
		if err := yaml.Unmarshal(contextBytes, &config); err != nil {
			return nil, fmt.Errorf("failed to parse module config: %w", err)
		}
	}

	config.FactoryAddress = strings.ToLower(config.FactoryAddress)
	config.WethAddress = strings.ToLower(config.WethAddress)
	for i := range config.Whitelist {
		config.Whitelist[i].Address = strings.ToLower(config.Whitelist[i].Address)
	}
	return &config, nil
}

// StartBlock returns the earliest start block across all data sources.
func (m *Manifest) StartBlock() uint64 {
	var start uint64
	first := true
	for _, ds := range m.DataSources {
		if ds.Source.StartBlock == nil {
			continue
		}
		if first || *ds.Source.StartBlock < start {
			start = *ds.Source.StartBlock
			first = false
		}
	}
	return start
}
