// Package config encapsulates connector configuration options & details.
// Configuration is generally stored as a YAML file, or provided at CLI
// runtime via command line flags / environment variables layered on top.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"reflect"

	"github.com/ghodss/yaml"
	"github.com/qri-io/jsonschema"
)

// Config encapsulates all configuration details for one connector process.
type Config struct {
	path string

	Extractor  *Extractor
	Host       *Host
	Broker     *Broker
	Mount      *Mount
	Automation *Automation
}

// DefaultConfig gives a new configuration with simple, default settings.
// It is insufficient, as is, to run against a real host: Extractor.Name
// and Host.URL must still be supplied by the operator.
func DefaultConfig() *Config {
	return &Config{
		Extractor:  DefaultExtractor(),
		Host:       DefaultHost(),
		Broker:     DefaultBroker(),
		Mount:      DefaultMount(),
		Automation: DefaultAutomation(),
	}
}

// ReadFromFile reads a YAML configuration file from path.
func ReadFromFile(path string) (*Config, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.path = path
	return cfg, nil
}

// SetPath assigns the unexported filepath this config was loaded from / will
// be written to.
func (cfg *Config) SetPath(path string) { cfg.path = path }

// Path gives the filepath this config was loaded from, if any.
func (cfg Config) Path() string { return cfg.path }

// WriteToFile encodes a configuration to YAML and writes it to path.
func (cfg Config) WriteToFile(path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return ioutil.WriteFile(path, data, 0o644)
}

// validate wraps json.Marshal and jsonschema.ValidateBytes; used by
// Config.Validate for the top-level schema check.
func validate(rs *jsonschema.Schema, s interface{}) error {
	ctx := context.Background()
	strct, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("error marshaling %T to json: %w", s, err)
	}
	if errs, err := rs.ValidateBytes(ctx, strct); len(errs) > 0 {
		return fmt.Errorf("%s", errs[0])
	} else if err != nil {
		return err
	}
	return nil
}

type validator interface {
	Validate() error
}

// Validate validates each section of the config struct, returning the
// first error encountered.
func (cfg Config) Validate() error {
	schema := jsonschema.Must(`{
    "$schema": "http://json-schema.org/draft-06/schema#",
    "title": "config",
    "description": "extractor connector configuration",
    "type": "object",
    "required": ["Extractor", "Host", "Broker", "Mount", "Automation"],
    "properties" : {
			"Extractor" : { "type":"object" },
			"Host" : { "type":"object" },
			"Broker" : { "type":"object" },
			"Mount" : { "type":"object" },
			"Automation" : { "type":"object" }
    }
  }`)
	if err := validate(schema, &cfg); err != nil {
		return fmt.Errorf("config validation error: %s", err)
	}

	validators := []validator{cfg.Extractor, cfg.Host, cfg.Broker, cfg.Mount, cfg.Automation}
	for _, val := range validators {
		if reflect.ValueOf(val).IsNil() {
			continue
		}
		if err := val.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Copy returns a deep copy of the Config struct.
func (cfg *Config) Copy() *Config {
	res := &Config{path: cfg.path}
	if cfg.Extractor != nil {
		res.Extractor = cfg.Extractor.Copy()
	}
	if cfg.Host != nil {
		res.Host = cfg.Host.Copy()
	}
	if cfg.Broker != nil {
		res.Broker = cfg.Broker.Copy()
	}
	if cfg.Mount != nil {
		res.Mount = cfg.Mount.Copy()
	}
	if cfg.Automation != nil {
		res.Automation = cfg.Automation.Copy()
	}
	return res
}
