// internal/profile/loader.go
package profile

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema/device-profile-v1.json
var profileSchemaJSON string

const schemaName = "device-profile-v1.json"

// Validator checks raw profile documents against the embedded schema.
type Validator struct {
	schema *jsonschema.Schema
}

func NewValidator() (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaName, strings.NewReader(profileSchemaJSON)); err != nil {
		return nil, fmt.Errorf("profile: add schema: %w", err)
	}
	schema, err := compiler.Compile(schemaName)
	if err != nil {
		return nil, fmt.Errorf("profile: compile schema: %w", err)
	}
	return &Validator{schema: schema}, nil
}

func (v *Validator) Validate(data []byte) error {
	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("profile: invalid JSON: %w", err)
	}
	if err := v.schema.Validate(doc); err != nil {
		return fmt.Errorf("profile: schema: %w", err)
	}
	return nil
}

// Parse validates data and decodes it.
func (v *Validator) Parse(data []byte) (*Profile, error) {
	if err := v.Validate(data); err != nil {
		return nil, err
	}
	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("profile: decode: %w", err)
	}
	return &p, nil
}

// Loader finds profiles by name in a list of directories and caches them.
type Loader struct {
	cache     sync.Map
	validator *Validator
	dirs      []string
}

func NewLoader(dirs ...string) (*Loader, error) {
	v, err := NewValidator()
	if err != nil {
		return nil, err
	}
	return &Loader{validator: v, dirs: dirs}, nil
}

// Load resolves name as a path when it ends in .json, otherwise as
// <dir>/<name>.json in the search directories.
func (l *Loader) Load(name string) (*Profile, error) {
	if cached, ok := l.cache.Load(name); ok {
		return cached.(*Profile), nil
	}

	var candidates []string
	if strings.HasSuffix(name, ".json") {
		candidates = append(candidates, name)
	}
	for _, dir := range l.dirs {
		candidates = append(candidates, filepath.Join(dir, name+".json"))
	}

	var (
		data  []byte
		found string
	)
	for _, path := range candidates {
		b, err := os.ReadFile(path)
		if err == nil {
			data, found = b, path
			break
		}
	}
	if data == nil {
		return nil, fmt.Errorf("profile: %s not found (searched %v)", name, candidates)
	}

	p, err := l.validator.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", found, err)
	}

	l.cache.Store(name, p)
	return p, nil
}
