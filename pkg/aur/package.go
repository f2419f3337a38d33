package aur

import (
	"slices"
	"strings"
)

// Package is one AUR package record.
type Package struct {
	ID            int      `json:"id"`
	Name          string   `json:"name"`
	PackageBaseID int      `json:"package_base_id,omitempty"`
	PackageBase   string   `json:"package_base,omitempty"`
	Version       string   `json:"version"`
	Description   string   `json:"description,omitempty"`
	URL           string   `json:"url,omitempty"`
	URLPath       string   `json:"url_path,omitempty"`
	Maintainer    string   `json:"maintainer,omitempty"`
	License       []string `json:"license,omitempty"`
	Keywords      []string `json:"keywords,omitempty"`
	NumVotes      int      `json:"votes"`
	Popularity    float64  `json:"popularity,omitempty"`
	CategoryID    int      `json:"category_id,omitempty"`

	OutOfDate      bool  `json:"out_of_date"`
	OutOfDateSince int64 `json:"out_of_date_since,omitempty"` // unix seconds, 0 if unknown
	FirstSubmitted int64 `json:"first_submitted,omitempty"`
	LastModified   int64 `json:"last_modified,omitempty"`

	Depends      []string `json:"depends,omitempty"`
	MakeDepends  []string `json:"makedepends,omitempty"`
	CheckDepends []string `json:"checkdepends,omitempty"`
	OptDepends   []string `json:"optdepends,omitempty"`
	Provides     []string `json:"provides,omitempty"`
	Conflicts    []string `json:"conflicts,omitempty"`
	Replaces     []string `json:"replaces,omitempty"`

	// LocalVersion is the installed version, set by update checks.
	LocalVersion string `json:"local_version,omitempty"`
}

// Base returns the package base, falling back to the name for records from
// RPC versions that predate split packages.
func (p *Package) Base() string {
	if p.PackageBase != "" {
		return p.PackageBase
	}
	return p.Name
}

// Field selects one of a record's dependency lists. Fields combine as a bit set.
type Field uint

const (
	FieldDepends Field = 1 << iota
	FieldMakeDepends
	FieldCheckDepends
	FieldOptDepends
	FieldProvides
	FieldConflicts
	FieldReplaces

	// FieldsBuild are the lists chased during dependency resolution.
	FieldsBuild = FieldDepends | FieldMakeDepends | FieldCheckDepends
	// FieldsAll selects every dependency list.
	FieldsAll = FieldsBuild | FieldOptDepends | FieldProvides | FieldConflicts | FieldReplaces
)

var fieldNames = []struct {
	field Field
	name  string
}{
	{FieldDepends, "depends"},
	{FieldMakeDepends, "makedepends"},
	{FieldCheckDepends, "checkdepends"},
	{FieldOptDepends, "optdepends"},
	{FieldProvides, "provides"},
	{FieldConflicts, "conflicts"},
	{FieldReplaces, "replaces"},
}

// String returns the PKGBUILD array name of a single field.
func (f Field) String() string {
	for _, fn := range fieldNames {
		if fn.field == f {
			return fn.name
		}
	}
	return "unknown"
}

// List returns a pointer to the record's list for a single field, or nil for
// combined or unknown fields.
func (p *Package) List(f Field) *[]string {
	switch f {
	case FieldDepends:
		return &p.Depends
	case FieldMakeDepends:
		return &p.MakeDepends
	case FieldCheckDepends:
		return &p.CheckDepends
	case FieldOptDepends:
		return &p.OptDepends
	case FieldProvides:
		return &p.Provides
	case FieldConflicts:
		return &p.Conflicts
	case FieldReplaces:
		return &p.Replaces
	}
	return nil
}

// StripVersion removes a trailing version constraint ("=", "<", ">" and
// everything after) from a dependency string.
func StripVersion(dep string) string {
	if i := strings.IndexAny(dep, "<>="); i >= 0 {
		return dep[:i]
	}
	return dep
}

func compareName(p *Package, name string) int {
	return strings.Compare(p.Name, name)
}

// Insert places p into the name-sorted list, replacing an existing record with
// the same name.
func Insert(list []*Package, p *Package) []*Package {
	i, found := slices.BinarySearchFunc(list, p.Name, compareName)
	if found {
		list[i] = p
		return list
	}
	return slices.Insert(list, i, p)
}

// Find returns the record named name from a name-sorted list.
func Find(list []*Package, name string) (*Package, bool) {
	i, found := slices.BinarySearchFunc(list, name, compareName)
	if !found {
		return nil, false
	}
	return list[i], true
}
