package catalog

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

//go:embed scenes.yaml
var builtinScenes []byte

//go:embed catalog.schema.json
var catalogSchema []byte

const schemaURL = "catalog.schema.json"

// File is the on-disk catalog layout.
type File struct {
	Version string      `yaml:"version"`
	Groups  []FileGroup `yaml:"groups"`
}

type FileGroup struct {
	Name    string      `yaml:"name"`
	Title   string      `yaml:"title"`
	Series  string      `yaml:"series,omitempty"`
	WorkDir string      `yaml:"workdir"`
	Scenes  []FileScene `yaml:"scenes"`
}

type FileScene struct {
	ID     string `yaml:"id"`
	Module string `yaml:"module"`
	Symbol string `yaml:"symbol,omitempty"`
	Title  string `yaml:"title,omitempty"`
}

var compileSchema = sync.OnceValues(func() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(catalogSchema))
	if err != nil {
		return nil, err
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaURL, doc); err != nil {
		return nil, err
	}
	return c.Compile(schemaURL)
})

// Builtin returns the catalog compiled into the binary.
func Builtin() (*Catalog, error) {
	cat, err := Parse(builtinScenes)
	if err != nil {
		return nil, fmt.Errorf("builtin catalog: %w", err)
	}
	return cat, nil
}

// Load reads and validates a catalog YAML file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	cat, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return cat, nil
}

// Parse validates data against the catalog schema and builds a Catalog.
func Parse(data []byte) (*Catalog, error) {
	if err := validate(data); err != nil {
		return nil, err
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	groups := make([]Group, 0, len(f.Groups))
	var entries []SceneEntry
	for _, g := range f.Groups {
		groups = append(groups, Group{
			Name:    g.Name,
			Title:   g.Title,
			Series:  g.Series,
			WorkDir: g.WorkDir,
		})
		for _, s := range g.Scenes {
			entries = append(entries, SceneEntry{
				ID:          s.ID,
				ModulePath:  s.Module,
				Symbol:      s.Symbol,
				Group:       g.Name,
				DisplayName: s.Title,
			})
		}
	}
	return New(groups, entries)
}

// validate checks the raw document against the embedded JSON Schema. The YAML
// is round-tripped through JSON so the validator sees plain JSON values.
func validate(data []byte) error {
	sch, err := compileSchema()
	if err != nil {
		return fmt.Errorf("compile catalog schema: %w", err)
	}

	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}
	js, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("catalog is not JSON-compatible: %w", err)
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(js))
	if err != nil {
		return err
	}
	if err := sch.Validate(inst); err != nil {
		return fmt.Errorf("invalid catalog: %w", err)
	}
	return nil
}

// Marshal renders c in the on-disk layout, e.g. to seed a custom catalog.
func Marshal(c *Catalog) ([]byte, error) {
	f := File{Version: "1.0"}
	for _, g := range c.groups {
		fg := FileGroup{Name: g.Name, Title: g.Title, Series: g.Series, WorkDir: g.WorkDir}
		for _, e := range c.entries {
			if e.Group != g.Name {
				continue
			}
			fs := FileScene{ID: e.ID, Module: e.ModulePath}
			if e.Symbol != e.ID {
				fs.Symbol = e.Symbol
			}
			if e.DisplayName != e.ID {
				fs.Title = e.DisplayName
			}
			fg.Scenes = append(fg.Scenes, fs)
		}
		f.Groups = append(f.Groups, fg)
	}
	return yaml.Marshal(&f)
}
