// Package aurtest runs an in-process fake of the aurweb endpoints aurgrab
// talks to: the v5 RPC, raw PKGBUILD text and snapshot tarballs.
//
// Tests register packages with [Server.Add] and read request counters with
// [Server.Hits] to assert what was (or was not) fetched.
package aurtest

import (
	"archive/tar"
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/klauspost/compress/gzip"

	"github.com/matzehuels/aurgrab/pkg/aur"
)

// Package is a fake AUR package. When Recipe is empty a PKGBUILD is
// generated from the record's dependency lists.
type Package struct {
	aur.Package
	Recipe string
}

// Hit kinds counted by [Server.Hits].
const (
	HitSearch   = "search"
	HitInfo     = "info"
	HitRecipe   = "recipe"
	HitSnapshot = "snapshot"
)

// Server is a fake aurweb.
type Server struct {
	*httptest.Server

	// Latency is added to every response.
	Latency time.Duration
	// MaxResults makes larger searches fail like aurweb's result cap.
	MaxResults int

	mu        sync.Mutex
	pkgs      map[string]*Package
	hits      map[string]int
	requests  map[string]int
	status    map[string]int
	overrides map[string]http.HandlerFunc
}

// New starts a fake aurweb that is closed when the test ends.
func New(t testing.TB) *Server {
	s := &Server{
		MaxResults: 5000,
		pkgs:       make(map[string]*Package),
		hits:       make(map[string]int),
		requests:   make(map[string]int),
		status:     make(map[string]int),
		overrides:  make(map[string]http.HandlerFunc),
	}

	r := chi.NewRouter()
	r.Use(s.intercept)
	r.Get("/rpc", s.handleRPC)
	r.Get("/rpc/", s.handleRPC)
	r.Get("/cgit/aur.git/plain/PKGBUILD", s.handleRecipe)
	r.Get("/cgit/aur.git/snapshot/{file}", s.handleSnapshot)

	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

// Add registers packages. Missing package bases default to the name, and
// URLPath points at this server's snapshot route.
func (s *Server) Add(pkgs ...Package) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range pkgs {
		p := pkgs[i]
		if p.PackageBase == "" {
			p.PackageBase = p.Name
		}
		if p.URLPath == "" {
			p.URLPath = "/cgit/aur.git/snapshot/" + p.PackageBase + ".tar.gz"
		}
		if p.ID == 0 {
			p.ID = len(s.pkgs) + 1
		}
		s.pkgs[p.Name] = &p
	}
}

// Hits returns how many requests of kind touched name. For searches, name is
// the search argument.
func (s *Server) Hits(kind, name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[kind+":"+name]
}

// TotalHits returns the number of requests of kind across all names.
func (s *Server) TotalHits(kind string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, v := range s.hits {
		if strings.HasPrefix(k, kind+":") {
			n += v
		}
	}
	return n
}

// Requests returns how many requests reached path, including failed ones.
func (s *Server) Requests(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[path]
}

// FailPath makes every request to path answer with code.
func (s *Server) FailPath(path string, code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status[path] = code
}

// Handle replaces the handler for path.
func (s *Server) Handle(path string, h http.HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides[path] = h
}

func (s *Server) hit(kind, name string) {
	s.mu.Lock()
	s.hits[kind+":"+name]++
	s.mu.Unlock()
}

func (s *Server) intercept(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Latency > 0 {
			time.Sleep(s.Latency)
		}
		s.mu.Lock()
		s.requests[r.URL.Path]++
		code, fail := s.status[r.URL.Path]
		override := s.overrides[r.URL.Path]
		s.mu.Unlock()

		switch {
		case fail:
			http.Error(w, http.StatusText(code), code)
		case override != nil:
			override(w, r)
		default:
			next.ServeHTTP(w, r)
		}
	})
}

func (s *Server) lookup(name string) (*Package, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.pkgs[name]
	return p, ok
}

func (s *Server) byBase(base string) (*Package, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.pkgs {
		if p.PackageBase == base {
			return p, true
		}
	}
	return nil, false
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	typ := q.Get("type")

	switch typ {
	case "search", "msearch":
		by := q.Get("by")
		if typ == "msearch" {
			by = "maintainer"
		}
		arg := q.Get("arg")
		s.hit(HitSearch, arg)
		if len(arg) < 2 && by != "maintainer" {
			writeError(w, "Query arg too small.")
			return
		}
		results := s.search(by, arg)
		if len(results) > s.MaxResults {
			writeError(w, "Too many package results.")
			return
		}
		writeResults(w, "search", results, false)

	case "info", "multiinfo":
		names := q["arg[]"]
		if len(names) == 0 {
			names = q["arg"]
		}
		var results []*Package
		for _, n := range names {
			s.hit(HitInfo, n)
			if p, ok := s.lookup(n); ok {
				results = append(results, p)
			}
		}
		writeResults(w, "multiinfo", results, true)

	default:
		writeError(w, "Incorrect request type specified.")
	}
}

func (s *Server) search(by, arg string) []*Package {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*Package
	for _, p := range s.pkgs {
		var match bool
		switch by {
		case "name":
			match = strings.Contains(p.Name, arg)
		case "maintainer":
			match = p.Maintainer == arg
		case "depends":
			match = containsDep(p.Depends, arg)
		case "makedepends":
			match = containsDep(p.MakeDepends, arg)
		case "checkdepends":
			match = containsDep(p.CheckDepends, arg)
		case "optdepends":
			match = containsDep(p.OptDepends, arg)
		default:
			match = strings.Contains(p.Name, arg) || strings.Contains(p.Description, arg)
		}
		if match {
			out = append(out, p)
		}
	}
	slices.SortFunc(out, func(a, b *Package) int { return a.ID - b.ID })
	return out
}

func containsDep(deps []string, name string) bool {
	for _, d := range deps {
		bare, _, _ := strings.Cut(d, ":")
		if aur.StripVersion(bare) == name {
			return true
		}
	}
	return false
}

func (s *Server) handleRecipe(w http.ResponseWriter, r *http.Request) {
	base := r.URL.Query().Get("h")
	s.hit(HitRecipe, base)
	p, ok := s.byBase(base)
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=UTF-8")
	fmt.Fprint(w, p.recipe())
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	base, ok := strings.CutSuffix(chi.URLParam(r, "file"), ".tar.gz")
	s.hit(HitSnapshot, base)
	if !ok {
		http.NotFound(w, r)
		return
	}
	p, ok := s.byBase(base)
	if !ok {
		http.NotFound(w, r)
		return
	}

	data, err := Snapshot(base, map[string]string{
		"PKGBUILD": p.recipe(),
		".SRCINFO": "pkgbase = " + base + "\n\tpkgver = " + p.Version + "\n",
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/x-gzip")
	w.Write(data)
}

// Snapshot builds a gzip'd tarball holding files under a base/ directory,
// shaped like the ones cgit serves.
func Snapshot(base string, files map[string]string) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(zw)
	mtime := time.Unix(1700000000, 0)

	if err := tw.WriteHeader(&tar.Header{Name: base + "/", Mode: 0o755, Typeflag: tar.TypeDir, ModTime: mtime}); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		body := files[name]
		hdr := &tar.Header{Name: base + "/" + name, Mode: 0o644, Size: int64(len(body)), Typeflag: tar.TypeReg, ModTime: mtime}
		if err := tw.WriteHeader(hdr); err != nil {
			return nil, err
		}
		if _, err := tw.Write([]byte(body)); err != nil {
			return nil, err
		}
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (p *Package) recipe() string {
	if p.Recipe != "" {
		return p.Recipe
	}
	var b strings.Builder
	fmt.Fprintf(&b, "pkgname=%s\n", p.Name)
	ver, rel, _ := strings.Cut(p.Version, "-")
	fmt.Fprintf(&b, "pkgver=%s\npkgrel=%s\n", ver, rel)
	arrays := []struct {
		name string
		list []string
	}{
		{"depends", p.Depends},
		{"makedepends", p.MakeDepends},
		{"checkdepends", p.CheckDepends},
		{"optdepends", p.OptDepends},
		{"provides", p.Provides},
		{"conflicts", p.Conflicts},
		{"replaces", p.Replaces},
	}
	for _, a := range arrays {
		if len(a.list) == 0 {
			continue
		}
		quoted := make([]string, len(a.list))
		for i, e := range a.list {
			quoted[i] = "'" + e + "'"
		}
		fmt.Fprintf(&b, "%s=(%s)\n", a.name, strings.Join(quoted, " "))
	}
	return b.String()
}

func writeError(w http.ResponseWriter, msg string) {
	writeJSON(w, map[string]any{
		"version":     5,
		"type":        "error",
		"resultcount": 0,
		"results":     []any{},
		"error":       msg,
	})
}

func writeResults(w http.ResponseWriter, typ string, pkgs []*Package, detailed bool) {
	results := make([]map[string]any, len(pkgs))
	for i, p := range pkgs {
		results[i] = p.rpc(detailed)
	}
	writeJSON(w, map[string]any{
		"version":     5,
		"type":        typ,
		"resultcount": len(results),
		"results":     results,
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// rpc renders the record with aurweb's field names. Search results omit the
// dependency arrays, as aurweb does.
func (p *Package) rpc(detailed bool) map[string]any {
	m := map[string]any{
		"ID":             p.ID,
		"Name":           p.Name,
		"PackageBaseID":  p.PackageBaseID,
		"PackageBase":    p.PackageBase,
		"Version":        p.Version,
		"Description":    p.Description,
		"URL":            p.URL,
		"URLPath":        p.URLPath,
		"NumVotes":       p.NumVotes,
		"Popularity":     p.Popularity,
		"OutOfDate":      nil,
		"Maintainer":     nil,
		"FirstSubmitted": p.FirstSubmitted,
		"LastModified":   p.LastModified,
	}
	if p.OutOfDate {
		m["OutOfDate"] = max(p.OutOfDateSince, 1)
	}
	if p.Maintainer != "" {
		m["Maintainer"] = p.Maintainer
	}
	if !detailed {
		return m
	}
	for key, list := range map[string][]string{
		"Depends":      p.Depends,
		"MakeDepends":  p.MakeDepends,
		"CheckDepends": p.CheckDepends,
		"OptDepends":   p.OptDepends,
		"Provides":     p.Provides,
		"Conflicts":    p.Conflicts,
		"Replaces":     p.Replaces,
		"License":      p.License,
		"Keywords":     p.Keywords,
	} {
		if len(list) > 0 {
			m[key] = list
		}
	}
	return m
}
