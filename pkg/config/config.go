package config

import "fmt"

// Config bundles the registered sections behind one manager. It is built
// once in main and passed to the components that need it.
type Config struct {
	manager       *Manager
	LLM           *LLMSection
	Storage       *StorageSection
	Capabilities  *CapabilitiesSection
	Orchestration *OrchestrationSection
}

// New registers the default sections on a manager backed by store and
// loads their values.
func New(store Store) (*Config, error) {
	c := &Config{
		manager:       NewManager(store),
		LLM:           NewLLMSection(),
		Storage:       NewStorageSection(),
		Capabilities:  NewCapabilitiesSection(),
		Orchestration: NewOrchestrationSection(),
	}

	for _, section := range []Section{c.LLM, c.Storage, c.Capabilities, c.Orchestration} {
		if err := c.manager.RegisterSection(section); err != nil {
			return nil, err
		}
	}

	if err := c.manager.LoadAll(); err != nil {
		return nil, err
	}
	return c, nil
}

// Load opens the config file at path (DefaultConfigPath when empty).
func Load(path string) (*Config, error) {
	store, err := NewFileStore(path)
	if err != nil {
		return nil, err
	}
	return New(store)
}

// Manager returns the section manager.
func (c *Config) Manager() *Manager {
	return c.manager
}

// Validate checks every section.
func (c *Config) Validate() error {
	for _, section := range c.manager.GetSections() {
		if err := section.Validate(); err != nil {
			return fmt.Errorf("%s: %w", section.ID(), err)
		}
	}
	return nil
}

// Save writes all sections back to the store.
func (c *Config) Save() error {
	return c.manager.SaveAll()
}
