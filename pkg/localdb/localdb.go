// Package localdb answers questions about the local pacman database.
//
// It reads the installed-package entries under <dbpath>/local and the sync
// repository archives under <dbpath>/sync, and tells callers whether a name is
// installed, whether an official repository already provides it, and which
// installed packages are foreign (present in no sync repository).
//
// A [DB] is loaded once and is read-only afterwards, so it is safe for
// concurrent use by every engine worker.
package localdb

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/matzehuels/aurgrab/pkg/archive"
	"github.com/matzehuels/aurgrab/pkg/aur"
	"github.com/matzehuels/aurgrab/pkg/errors"
)

// DefaultDBPath is pacman's default database location.
const DefaultDBPath = "/var/lib/pacman"

// Entry is one package as recorded by pacman.
type Entry struct {
	Name     string
	Version  string
	Provides []string // bare names, versions stripped
	Repo     string   // empty for local entries
}

// Options configures which databases are read.
type Options struct {
	// DBPath is the pacman database root. Defaults to [DefaultDBPath].
	DBPath string
	// Repos lists sync repositories to read, in priority order. When empty,
	// every <name>.db under <DBPath>/sync is read in name order.
	Repos []string
	// IgnoreRepos are skipped entirely: packages only they provide count as
	// not provided, and installed packages only they carry count as foreign.
	IgnoreRepos []string
}

// DB is a loaded pacman database.
type DB struct {
	local         map[string]*Entry
	localProvides map[string]string

	repos []repo
}

type repo struct {
	name     string
	pkgs     map[string]*Entry
	provides map[string]string
}

// Open loads the local database and the selected sync repositories.
// A missing local directory is not an error: it reads as "nothing installed".
// A listed repo whose database file is missing is skipped.
func Open(opts Options) (*DB, error) {
	if opts.DBPath == "" {
		opts.DBPath = DefaultDBPath
	}

	db := &DB{
		local:         make(map[string]*Entry),
		localProvides: make(map[string]string),
	}
	if err := db.loadLocal(filepath.Join(opts.DBPath, "local")); err != nil {
		return nil, err
	}

	names := opts.Repos
	if len(names) == 0 {
		var err error
		if names, err = listRepos(filepath.Join(opts.DBPath, "sync")); err != nil {
			return nil, err
		}
	}
	for _, name := range names {
		if slices.Contains(opts.IgnoreRepos, name) {
			continue
		}
		r, err := loadRepo(filepath.Join(opts.DBPath, "sync", name+".db"), name)
		if errors.Is(err, errors.ErrCodeNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		db.repos = append(db.repos, r)
	}
	return db, nil
}

// Installed reports the installed version of name, either as a package of
// that name or as a name an installed package provides.
func (db *DB) Installed(name string) (string, bool) {
	if e, ok := db.local[name]; ok {
		return e.Version, true
	}
	if owner, ok := db.localProvides[name]; ok {
		return db.local[owner].Version, true
	}
	return "", false
}

// Provider returns the first sync repository, in priority order, that has a
// package named name or one providing it.
func (db *DB) Provider(name string) (string, bool) {
	for _, r := range db.repos {
		if _, ok := r.pkgs[name]; ok {
			return r.name, true
		}
		if _, ok := r.provides[name]; ok {
			return r.name, true
		}
	}
	return "", false
}

// Satisfied reports whether name needs no download: it is installed or a sync
// repository provides it.
func (db *DB) Satisfied(name string) bool {
	if _, ok := db.Installed(name); ok {
		return true
	}
	_, ok := db.Provider(name)
	return ok
}

// Foreign returns installed packages that no sync repository carries, sorted
// by name.
func (db *DB) Foreign() []Entry {
	var out []Entry
	for name, e := range db.local {
		found := false
		for _, r := range db.repos {
			if _, ok := r.pkgs[name]; ok {
				found = true
				break
			}
		}
		if !found {
			out = append(out, *e)
		}
	}
	slices.SortFunc(out, func(a, b Entry) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// Repos returns the names of the loaded sync repositories in priority order.
func (db *DB) Repos() []string {
	out := make([]string, len(db.repos))
	for i, r := range db.repos {
		out[i] = r.name
	}
	return out
}

func (db *DB) loadLocal(dir string) error {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrap(errors.ErrCodeFilesystem, err, "read %s", dir)
	}

	for _, de := range entries {
		if !de.IsDir() {
			continue
		}
		f, err := os.Open(filepath.Join(dir, de.Name(), "desc"))
		if err != nil {
			continue
		}
		e, err := parseDesc(f)
		f.Close()
		if err != nil {
			return errors.Wrap(errors.ErrCodeFilesystem, err, "read %s", de.Name())
		}
		if e.Name == "" {
			continue
		}
		db.local[e.Name] = e
		for _, p := range e.Provides {
			if _, taken := db.localProvides[p]; !taken {
				db.localProvides[p] = e.Name
			}
		}
	}
	return nil
}

func listRepos(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFilesystem, err, "read %s", dir)
	}
	var names []string
	for _, de := range entries {
		if name, ok := strings.CutSuffix(de.Name(), ".db"); ok && !de.IsDir() {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names, nil
}

func loadRepo(path, name string) (repo, error) {
	r := repo{name: name, pkgs: make(map[string]*Entry), provides: make(map[string]string)}

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return r, errors.Wrap(errors.ErrCodeNotFound, err, "sync database %s", name)
	}
	if err != nil {
		return r, errors.Wrap(errors.ErrCodeFilesystem, err, "open %s", path)
	}
	defer f.Close()

	tr, closer, err := archive.NewReader(f)
	if err != nil {
		return r, errors.Wrap(errors.ErrCodeFilesystem, err, "read sync database %s", name)
	}
	defer closer.Close()

	// Entries are "<name>-<version>/desc"; older databases split provides
	// into a sibling "depends" file, so both are folded into one entry per
	// directory.
	byDir := make(map[string]*Entry)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return r, errors.Wrap(errors.ErrCodeMalformed, err, "read sync database %s", name)
		}
		dir, file := filepath.Split(hdr.Name)
		if file != "desc" && file != "depends" {
			continue
		}
		e, err := parseDesc(tr)
		if err != nil {
			return r, errors.Wrap(errors.ErrCodeMalformed, err, "read sync database %s", name)
		}
		if prev, ok := byDir[dir]; ok {
			prev.merge(e)
		} else {
			byDir[dir] = e
		}
	}

	for _, e := range byDir {
		if e.Name == "" {
			continue
		}
		e.Repo = name
		r.pkgs[e.Name] = e
		for _, p := range e.Provides {
			if _, taken := r.provides[p]; !taken {
				r.provides[p] = e.Name
			}
		}
	}
	return r, nil
}

func (e *Entry) merge(o *Entry) {
	if e.Name == "" {
		e.Name = o.Name
	}
	if e.Version == "" {
		e.Version = o.Version
	}
	for _, p := range o.Provides {
		if !slices.Contains(e.Provides, p) {
			e.Provides = append(e.Provides, p)
		}
	}
}

// parseDesc reads pacman's "%KEY%\nvalue\n...\n\n" format.
func parseDesc(r io.Reader) (*Entry, error) {
	e := &Entry{}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var key string
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case line == "":
			key = ""
		case strings.HasPrefix(line, "%") && strings.HasSuffix(line, "%") && len(line) > 1:
			key = line
		default:
			switch key {
			case "%NAME%":
				e.Name = line
			case "%VERSION%":
				e.Version = line
			case "%PROVIDES%":
				if p := aur.StripVersion(line); p != "" && !slices.Contains(e.Provides, p) {
					e.Provides = append(e.Provides, p)
				}
			}
		}
	}
	return e, sc.Err()
}
