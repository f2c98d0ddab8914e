package catalog

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/adam0307a/yurts-laundry-tracker/internal/model"
)

// Catalog is the static definition of blocks and the machines inside them.
// It is loaded once at startup; a malformed catalog is a fatal condition.
type Catalog struct {
	Blocks []BlockDef `yaml:"blocks"`
}

// BlockDef declares one block and its machines.
type BlockDef struct {
	ID       string       `yaml:"id"`
	Name     string       `yaml:"name"`
	Machines []MachineDef `yaml:"machines"`
}

// MachineDef declares one machine inside a block.
type MachineDef struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

// Load reads and validates the catalog file at the given path.
func Load(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cat Catalog
	if err := yaml.NewDecoder(f).Decode(&cat); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := cat.validate(); err != nil {
		return nil, err
	}
	return &cat, nil
}

func (c *Catalog) validate() error {
	if len(c.Blocks) == 0 {
		return fmt.Errorf("catalog declares no blocks")
	}
	seenBlocks := make(map[string]bool)
	seenMachines := make(map[string]bool)
	for _, b := range c.Blocks {
		if b.ID == "" || b.Name == "" {
			return fmt.Errorf("block %q: id and name are required", b.ID)
		}
		if seenBlocks[b.ID] {
			return fmt.Errorf("duplicate block id %q", b.ID)
		}
		seenBlocks[b.ID] = true
		for _, m := range b.Machines {
			if m.ID == "" || m.Name == "" {
				return fmt.Errorf("block %q: machine id and name are required", b.ID)
			}
			if seenMachines[m.ID] {
				return fmt.Errorf("duplicate machine id %q", m.ID)
			}
			seenMachines[m.ID] = true
			switch model.MachineType(m.Type) {
			case model.TypeWasher, model.TypeDryer:
			default:
				return fmt.Errorf("machine %q: unknown type %q", m.ID, m.Type)
			}
		}
	}
	return nil
}

// BlockModels returns the catalog's blocks as persistence models, ordered by name.
func (c *Catalog) BlockModels() []model.Block {
	blocks := make([]model.Block, 0, len(c.Blocks))
	for _, b := range c.Blocks {
		blocks = append(blocks, model.Block{ID: b.ID, Name: b.Name})
	}
	sort.Slice(blocks, func(i, j int) bool { return blocks[i].Name < blocks[j].Name })
	return blocks
}

// MachineModels returns all machines across all blocks as persistence
// models, ordered by name. Every machine starts out available.
func (c *Catalog) MachineModels() []model.Machine {
	var machines []model.Machine
	for _, b := range c.Blocks {
		for _, m := range b.Machines {
			machines = append(machines, model.Machine{
				ID:      m.ID,
				BlockID: b.ID,
				Name:    m.Name,
				Type:    model.MachineType(m.Type),
				Status:  model.StatusAvailable,
			})
		}
	}
	sort.Slice(machines, func(i, j int) bool { return machines[i].Name < machines[j].Name })
	return machines
}
