// Package doctype holds the reference list of canonical document types the
// classifier may report, together with their aliases and validity windows.
package doctype

import (
	"sort"
	"strings"

	"docverify/internal/identity/namematch"
	"docverify/internal/validity"
)

// Type is one canonical document type.
type Type struct {
	Code         string   `yaml:"code" json:"code"`
	Title        string   `yaml:"title" json:"title"`
	Aliases      []string `yaml:"aliases" json:"aliases,omitempty"`
	ValidityDays int      `yaml:"validity_days" json:"validity_days,omitempty"`
}

// Catalog is immutable after construction and safe for concurrent use.
type Catalog struct {
	types               map[string]Type
	aliases             map[string]string
	defaultValidityDays int
}

// NewCatalog indexes types by code and by every normalized alias. Types with
// an empty code are skipped; a later duplicate code replaces an earlier one.
func NewCatalog(types []Type, defaultValidityDays int) *Catalog {
	if defaultValidityDays <= 0 {
		defaultValidityDays = validity.DefaultWindowDays
	}
	c := &Catalog{
		types:               make(map[string]Type, len(types)),
		aliases:             make(map[string]string),
		defaultValidityDays: defaultValidityDays,
	}
	for _, t := range types {
		t.Code = strings.TrimSpace(t.Code)
		if t.Code == "" {
			continue
		}
		c.types[t.Code] = t
		c.aliases[labelKey(t.Code)] = t.Code
		if t.Title != "" {
			c.aliases[labelKey(t.Title)] = t.Code
		}
		for _, a := range t.Aliases {
			if k := labelKey(a); k != "" {
				c.aliases[k] = t.Code
			}
		}
	}
	return c
}

// Canonicalize maps a raw classifier label to a canonical code. Matching
// ignores case, spacing, underscores and Latin look-alike letters.
func (c *Catalog) Canonicalize(label string) (string, bool) {
	code, ok := c.aliases[labelKey(label)]
	return code, ok
}

// Known reports whether code is a canonical type.
func (c *Catalog) Known(code string) bool {
	_, ok := c.types[code]
	return ok
}

func (c *Catalog) Get(code string) (Type, bool) {
	t, ok := c.types[code]
	return t, ok
}

// Types lists the catalog sorted by code.
func (c *Catalog) Types() []Type {
	out := make([]Type, 0, len(c.types))
	for _, t := range c.types {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// ValidityEngine builds the validity engine for the catalog's windows.
func (c *Catalog) ValidityEngine() *validity.Engine {
	overrides := make(map[string]validity.Policy)
	for code, t := range c.types {
		if t.ValidityDays > 0 {
			overrides[code] = validity.Policy{Kind: validity.PolicyFixedWindow, WindowDays: t.ValidityDays}
		}
	}
	return validity.NewEngine(overrides, validity.WithDefaultWindow(c.defaultValidityDays))
}

func labelKey(label string) string {
	label = strings.NewReplacer("_", " ", "-", " ", ".", " ").Replace(label)
	return namematch.Normalize(label)
}
