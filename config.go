package webcrypto

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// ProviderConfig holds provider configuration information.
//
// Supply this to a registered ProviderLoader, or alternatively use
// LoadRegistry with config file locations.
type ProviderConfig interface {
	// Loader is the name of the registered provider loader.
	Loader() string

	// Label is a human-readable instance label.
	Label() string

	// Seed is optional entropy for software providers.
	// If it's prefixed with `file:`, then it will be loaded from the file.
	Seed() string

	// Comma separated key=value pair of attributes(e.g. "Region=x,Endpoint=y")
	Attributes() string
}

type providerConfig struct {
	Ldr   string `json:"Loader"     yaml:"loader"`
	Lbl   string `json:"Label"      yaml:"label"`
	Sd    string `json:"Seed"       yaml:"seed"`
	Attrs string `json:"Attributes" yaml:"attributes"`
}

// Loader is the name of the registered provider loader
func (c *providerConfig) Loader() string {
	return c.Ldr
}

// Label is a human-readable instance label
func (c *providerConfig) Label() string {
	return c.Lbl
}

// Seed is optional entropy for software providers
func (c *providerConfig) Seed() string {
	return c.Sd
}

// Attributes is list of additional key=value pairs
func (c *providerConfig) Attributes() string {
	return c.Attrs
}

// LoadProviderConfig loads provider configuration from a JSON or YAML file.
func LoadProviderConfig(filename string) (ProviderConfig, error) {
	cfr, err := os.Open(filename)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer cfr.Close()
	cfg := new(providerConfig)

	if strings.HasSuffix(filename, ".json") {
		err = json.NewDecoder(cfr).Decode(cfg)
		if err != nil {
			return nil, errors.WithMessagef(err, "failed to decode file: %s", filename)
		}
	} else {
		err = yaml.NewDecoder(cfr).Decode(cfg)
		if err != nil {
			return nil, errors.WithMessagef(err, "failed to decode file: %s", filename)
		}
	}

	seed := cfg.Seed()
	if strings.HasPrefix(seed, "file:") {
		sb, err := os.ReadFile(seed[5:])
		if err != nil {
			return nil, errors.WithMessagef(err, "unable to load seed for configuration: %s", filename)
		}
		cfg.Sd = strings.TrimSpace(string(sb))
	}

	return cfg, nil
}

// LoadProvider loads a single provider from a config location.
func LoadProvider(configLocation string) (Provider, error) {
	cfg, err := LoadProviderConfig(configLocation)
	if err != nil {
		return nil, err
	}

	lockLoaders.RLock()
	loader, ok := loaders[cfg.Loader()]
	lockLoaders.RUnlock()
	if !ok {
		return nil, errors.Errorf("provider not registered: %s", cfg.Loader())
	}

	prov, err := loader(cfg)
	if err != nil {
		return nil, err
	}

	return prov, nil
}

// LoadRegistry returns a Registry with providers loaded from the given
// config locations.
func LoadRegistry(configLocations ...string) (*Registry, error) {
	provs := make([]Provider, 0, len(configLocations))
	for _, configLocation := range configLocations {
		p, err := LoadProvider(configLocation)
		if err != nil {
			return nil, err
		}
		provs = append(provs, p)
	}
	return NewRegistry(provs...)
}
