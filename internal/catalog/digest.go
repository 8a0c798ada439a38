package catalog

import (
	"strconv"

	"github.com/twmb/murmur3"
)

// Digest fingerprints the catalog content so two catalogs can be told apart
// in listings and reports.
func (c *Catalog) Digest() string {
	hasher := murmur3.New64()
	field := func(s string) {
		hasher.Write([]byte(s))
		hasher.Write([]byte{0})
	}
	for _, g := range c.groups {
		field(g.Name)
		field(g.Title)
		field(g.Series)
		field(g.WorkDir)
	}
	for _, e := range c.entries {
		field(e.ID)
		field(e.ModulePath)
		field(e.Symbol)
		field(e.Group)
		field(e.DisplayName)
	}
	return strconv.FormatUint(hasher.Sum64(), 16)
}
