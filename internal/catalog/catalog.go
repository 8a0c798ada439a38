// Package catalog holds the static registry of renderable scenes and the
// filters the batch renderer selects from it.
package catalog

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Group is a named cluster of scenes (a module, chapter or part) that share a
// working directory.
type Group struct {
	Name    string
	Title   string
	Series  string
	WorkDir string
}

// SceneEntry identifies one renderable scene.
type SceneEntry struct {
	ID          string
	ModulePath  string
	Symbol      string
	Group       string
	DisplayName string
}

// ModuleName is the module path's file stem; the renderer names its output
// directory after it.
func (e SceneEntry) ModuleName() string {
	base := filepath.Base(filepath.FromSlash(e.ModulePath))
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Filter selects catalog entries. Empty fields match everything.
type Filter struct {
	Group string
	ID    string
}

// NotFoundError reports a filter that names no catalog entry or group.
type NotFoundError struct {
	Kind      string // "scene" or "group"
	Name      string
	Available []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("unknown %s %q", e.Kind, e.Name)
}

// Catalog is an ordered, immutable collection of scene entries.
type Catalog struct {
	groups  []Group
	entries []SceneEntry
	byID    map[string]int
	byGroup map[string]int
}

// New builds a catalog, enforcing unique ids, declared groups, non-empty
// groups and collision-free output names.
func New(groups []Group, entries []SceneEntry) (*Catalog, error) {
	c := &Catalog{
		groups:  make([]Group, len(groups)),
		entries: make([]SceneEntry, len(entries)),
		byID:    make(map[string]int, len(entries)),
		byGroup: make(map[string]int, len(groups)),
	}
	copy(c.groups, groups)
	copy(c.entries, entries)

	for i, g := range c.groups {
		if g.Name == "" {
			return nil, fmt.Errorf("group %d has no name", i)
		}
		if _, dup := c.byGroup[g.Name]; dup {
			return nil, fmt.Errorf("duplicate group %q", g.Name)
		}
		c.byGroup[g.Name] = i
	}

	members := make(map[string]int, len(c.groups))
	outputs := make(map[string]string, len(c.entries))
	for i := range c.entries {
		e := &c.entries[i]
		if e.ID == "" {
			return nil, fmt.Errorf("scene %d has no id", i)
		}
		if e.ModulePath == "" {
			return nil, fmt.Errorf("scene %q has no module path", e.ID)
		}
		if e.Symbol == "" {
			e.Symbol = e.ID
		}
		if e.DisplayName == "" {
			e.DisplayName = e.ID
		}
		if _, dup := c.byID[e.ID]; dup {
			return nil, fmt.Errorf("duplicate scene id %q", e.ID)
		}
		if _, ok := c.byGroup[e.Group]; !ok {
			return nil, fmt.Errorf("scene %q references undeclared group %q", e.ID, e.Group)
		}
		out := e.ModuleName() + "/" + e.Symbol
		if other, dup := outputs[out]; dup {
			return nil, fmt.Errorf("scenes %q and %q would write the same output %s", other, e.ID, out)
		}
		outputs[out] = e.ID
		c.byID[e.ID] = i
		members[e.Group]++
	}

	for _, g := range c.groups {
		if members[g.Name] == 0 {
			return nil, fmt.Errorf("group %q has no scenes", g.Name)
		}
	}
	return c, nil
}

// List returns the entries matching f in declaration order. An ID that
// matches nothing, or a group that is not declared, yields *NotFoundError.
func (c *Catalog) List(f Filter) ([]SceneEntry, error) {
	if f.Group != "" {
		if _, ok := c.byGroup[f.Group]; !ok {
			return nil, &NotFoundError{Kind: "group", Name: f.Group, Available: c.GroupNames()}
		}
	}

	if f.ID != "" {
		i, ok := c.byID[f.ID]
		if !ok || (f.Group != "" && c.entries[i].Group != f.Group) {
			return nil, &NotFoundError{Kind: "scene", Name: f.ID, Available: c.ids(f.Group)}
		}
		return []SceneEntry{c.entries[i]}, nil
	}

	var out []SceneEntry
	for _, e := range c.entries {
		if f.Group == "" || e.Group == f.Group {
			out = append(out, e)
		}
	}
	return out, nil
}

// Group looks up a group by name.
func (c *Catalog) Group(name string) (Group, bool) {
	i, ok := c.byGroup[name]
	if !ok {
		return Group{}, false
	}
	return c.groups[i], true
}

func (c *Catalog) Groups() []Group {
	out := make([]Group, len(c.groups))
	copy(out, c.groups)
	return out
}

func (c *Catalog) GroupNames() []string {
	names := make([]string, len(c.groups))
	for i, g := range c.groups {
		names[i] = g.Name
	}
	return names
}

func (c *Catalog) Entries() []SceneEntry {
	out := make([]SceneEntry, len(c.entries))
	copy(out, c.entries)
	return out
}

func (c *Catalog) Len() int { return len(c.entries) }

func (c *Catalog) ids(group string) []string {
	var ids []string
	for _, e := range c.entries {
		if group == "" || e.Group == group {
			ids = append(ids, e.ID)
		}
	}
	return ids
}
