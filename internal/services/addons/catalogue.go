package addons

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed modules.yaml
var defaultCatalogue []byte

// ModuleSpec describes one add-on module in the catalogue.
type ModuleSpec struct {
	ID           string   `yaml:"id"`
	Name         string   `yaml:"name"`
	Description  string   `yaml:"description"`
	Flags        []string `yaml:"flags"`
	Instructions string   `yaml:"instructions"`
}

type catalogueFile struct {
	Modules []ModuleSpec `yaml:"modules"`
}

// LoadCatalogue parses a module catalogue. Duplicate or empty ids are rejected.
func LoadCatalogue(data []byte) ([]ModuleSpec, error) {
	var file catalogueFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse module catalogue: %w", err)
	}

	seen := make(map[string]bool, len(file.Modules))
	for _, m := range file.Modules {
		if m.ID == "" {
			return nil, fmt.Errorf("module catalogue entry %q has no id", m.Name)
		}
		if seen[m.ID] {
			return nil, fmt.Errorf("duplicate module id %q in catalogue", m.ID)
		}
		seen[m.ID] = true
	}
	return file.Modules, nil
}

// DefaultCatalogue returns the embedded module catalogue.
func DefaultCatalogue() []ModuleSpec {
	modules, err := LoadCatalogue(defaultCatalogue)
	if err != nil {
		panic(err)
	}
	return modules
}
