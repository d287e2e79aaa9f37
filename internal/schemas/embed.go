package schemas

import (
	"bytes"
	"embed"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed *.json
var fs embed.FS

// Embedded schema names
const (
	AddonSelection = "addon_selection.schema.json"
	ModuleDelta    = "module_delta.schema.json"
)

var (
	compiled   = map[string]*jsonschema.Schema{}
	compiledMu sync.Mutex
)

func readSchema(name string) ([]byte, error) {
	return fs.ReadFile(name)
}

// Compile returns the compiled schema for name. Results are cached.
func Compile(name string) (*jsonschema.Schema, error) {
	compiledMu.Lock()
	defer compiledMu.Unlock()

	if s, ok := compiled[name]; ok {
		return s, nil
	}

	b, err := readSchema(name)
	if err != nil {
		return nil, fmt.Errorf("read schema %s: %w", name, err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, bytes.NewReader(b)); err != nil {
		return nil, fmt.Errorf("add schema %s: %w", name, err)
	}
	s, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}

	compiled[name] = s
	return s, nil
}

// Validate checks a decoded JSON value against the named schema.
func Validate(name string, v any) error {
	s, err := Compile(name)
	if err != nil {
		return err
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("json does not match %s: %w", name, err)
	}
	return nil
}
