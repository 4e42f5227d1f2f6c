package registry

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aescanero/dago-node-prompt/pkg/prompt"
	"gopkg.in/yaml.v3"
)

// Manifest is the YAML description of a named prompt
type Manifest struct {
	Name        string          `yaml:"name"`
	Description string          `yaml:"description,omitempty"`
	Params      []ParamManifest `yaml:"params,omitempty"`
	// Template is handled like a doc comment and cleaned before compilation
	Template string `yaml:"template"`
}

// ParamManifest describes one parameter. Default is kept as a YAML node so an
// explicit `default: null` can be told apart from no default.
type ParamManifest struct {
	Name    string    `yaml:"name"`
	Kind    string    `yaml:"kind,omitempty"`
	Default yaml.Node `yaml:"default,omitempty"`
	Check   string    `yaml:"check,omitempty"`
}

// HasDefault reports whether the manifest sets a default, null included
func (p *ParamManifest) HasDefault() bool {
	return p.Default.Kind != 0
}

// ParseManifest decodes a YAML manifest. Unknown fields are rejected.
func ParseManifest(data []byte) (*Manifest, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var m Manifest
	if err := dec.Decode(&m); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty manifest")
		}
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}

	return &m, nil
}

// Marshal encodes the manifest as YAML
func (m *Manifest) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal manifest %s: %w", m.Name, err)
	}
	return data, nil
}

// Declaration converts the manifest into a prompt declaration
func (m *Manifest) Declaration() (prompt.Declaration, error) {
	params := make([]prompt.Param, 0, len(m.Params))

	for _, p := range m.Params {
		kind, err := prompt.ParseKind(p.Kind)
		if err != nil {
			return prompt.Declaration{}, fmt.Errorf("manifest %s: parameter %s: %w", m.Name, p.Name, err)
		}

		param := prompt.Param{Name: p.Name, Kind: kind, Check: p.Check}
		if p.HasDefault() {
			var value interface{}
			if err := p.Default.Decode(&value); err != nil {
				return prompt.Declaration{}, fmt.Errorf("manifest %s: parameter %s: invalid default: %w", m.Name, p.Name, err)
			}
			param.Default = value
			param.HasDefault = true
		}

		params = append(params, param)
	}

	return prompt.Declaration{
		Name:   m.Name,
		Doc:    m.Template,
		Params: params,
	}, nil
}

// LoadFile reads a manifest. The name defaults to the file name without extension.
func LoadFile(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	m, err := ParseManifest(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if m.Name == "" {
		base := filepath.Base(path)
		m.Name = strings.TrimSuffix(base, filepath.Ext(base))
	}

	return m, nil
}

// LoadDir reads every *.yaml and *.yml manifest in dir, sorted by file name
func LoadDir(dir string) ([]*Manifest, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read template dir: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch filepath.Ext(entry.Name()) {
		case ".yaml", ".yml":
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(paths)

	manifests := make([]*Manifest, 0, len(paths))
	for _, path := range paths {
		m, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		manifests = append(manifests, m)
	}

	return manifests, nil
}
