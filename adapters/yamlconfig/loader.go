package yamlconfig

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/goliatone/go-integrations/core"
	"gopkg.in/yaml.v3"
)

// Loader reads integration settings from a YAML document. ${VAR} references
// are expanded from the environment before parsing. When Section is set only
// that top-level key is returned.
type Loader struct {
	Path    string
	Section string
	Getenv  func(string) string
	read    func(string) ([]byte, error)
}

func NewLoader(path string, section string) *Loader {
	return &Loader{
		Path:    strings.TrimSpace(path),
		Section: strings.TrimSpace(section),
		Getenv:  os.Getenv,
		read:    os.ReadFile,
	}
}

func (l *Loader) LoadRaw(ctx context.Context) (map[string]any, error) {
	if l == nil || l.Path == "" {
		return nil, fmt.Errorf("yamlconfig: config path is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	read := l.read
	if read == nil {
		read = os.ReadFile
	}
	content, err := read(l.Path)
	if err != nil {
		return nil, fmt.Errorf("yamlconfig: read %s: %w", l.Path, err)
	}
	return l.Parse(content)
}

// Parse decodes a YAML document into the raw map consumed by the config provider.
func (l *Loader) Parse(content []byte) (map[string]any, error) {
	getenv := os.Getenv
	section := ""
	if l != nil {
		if l.Getenv != nil {
			getenv = l.Getenv
		}
		section = l.Section
	}
	expanded := os.Expand(string(content), getenv)

	root := map[string]any{}
	if err := yaml.Unmarshal([]byte(expanded), &root); err != nil {
		return nil, fmt.Errorf("yamlconfig: decode: %w", err)
	}
	if section == "" {
		return root, nil
	}
	scoped, ok := root[section]
	if !ok || scoped == nil {
		return map[string]any{}, nil
	}
	values, ok := scoped.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("yamlconfig: section %q must be a mapping", section)
	}
	return values, nil
}

// Load resolves a core.Config from path layered over the defaults.
func Load(ctx context.Context, path string, section string) (core.Config, error) {
	provider := core.NewCfgxConfigProvider(NewLoader(path, section))
	return provider.Load(ctx, core.DefaultConfig())
}

var _ core.RawConfigLoader = (*Loader)(nil)
