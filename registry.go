package main

import (
	"errors"
	"io/fs"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// ModuleRegistry is a named lookup table of module definitions. It is
// passed explicitly to whoever needs it; there is no process-wide instance.
type ModuleRegistry struct {
	modules map[string]ModuleConfig
}

func NewModuleRegistry() *ModuleRegistry {
	return &ModuleRegistry{modules: make(map[string]ModuleConfig)}
}

// Add validates and stores a definition, replacing any with the same name.
func (r *ModuleRegistry) Add(cfg ModuleConfig) error {
	if err := cfg.validate(); err != nil {
		return err
	}
	r.modules[cfg.Name] = cfg
	return nil
}

// Lookup returns the stored definition.
func (r *ModuleRegistry) Lookup(name string) (ModuleConfig, bool) {
	cfg, ok := r.modules[name]
	return cfg, ok
}

func (r *ModuleRegistry) Names() []string {
	names := make([]string, 0, len(r.modules))
	for n := range r.modules {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Save writes the registry as a YAML mapping name -> definition.
func (r *ModuleRegistry) Save(path string) error {
	out, err := yaml.Marshal(r.modules)
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0644)
}

func LoadRegistry(path string) (*ModuleRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, configErrorf("read module registry: %w", err)
	}
	raw := map[string]ModuleConfig{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, configErrorf("decode module registry: %w", err)
	}
	r := NewModuleRegistry()
	for name, cfg := range raw {
		cfg.Name = name
		if err := r.Add(cfg); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// useRegistry swaps the module section for the registered definition of the
// same name. An unknown name is validated, added and the file saved.
func (c *Config) useRegistry(log *zap.SugaredLogger) error {
	path := c.Simulation.Registry
	reg := NewModuleRegistry()
	if _, err := os.Stat(path); err == nil {
		if reg, err = LoadRegistry(path); err != nil {
			return err
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return configErrorf("module registry %s: %w", path, err)
	}

	if mc, ok := reg.Lookup(c.Module.Name); ok {
		log.Infof("module %s loaded from registry %s", mc.Name, path)
		c.Module = mc
		return nil
	}
	if err := reg.Add(c.Module); err != nil {
		return err
	}
	log.Infof("module %s added to registry %s, now holding %s", c.Module.Name, path, strings.Join(reg.Names(), ", "))
	if err := reg.Save(path); err != nil {
		return configErrorf("save module registry: %w", err)
	}
	return nil
}
