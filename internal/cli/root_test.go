package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matzehuels/aurgrab/internal/aurtest"
	"github.com/matzehuels/aurgrab/pkg/aur"
	"github.com/matzehuels/aurgrab/pkg/engine"
	aurerrors "github.com/matzehuels/aurgrab/pkg/errors"
)

// env is an isolated aurgrab invocation against a fake aurweb.
type env struct {
	srv    *aurtest.Server
	dbPath string
	config string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	t.Setenv("XDG_CACHE_HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	return &env{
		srv:    aurtest.New(t),
		dbPath: t.TempDir(),
		config: filepath.Join(t.TempDir(), "config.toml"),
	}
}

// install records name as installed in the pacman local database.
func (e *env) install(t *testing.T, name, version string) {
	t.Helper()
	dir := filepath.Join(e.dbPath, "local", name+"-"+version)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	desc := "%NAME%\n" + name + "\n\n%VERSION%\n" + version + "\n\n"
	if err := os.WriteFile(filepath.Join(dir, "desc"), []byte(desc), 0o644); err != nil {
		t.Fatal(err)
	}
}

func (e *env) run(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	c := New(&out, &errOut, LogInfo)
	root := c.RootCommand()
	root.SetArgs(append(args,
		"--config", e.config,
		"--aur-url", e.srv.URL,
		"--dbpath", e.dbPath,
		"--color", "never",
	))
	err = root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func pkgRecord(name, version string, depends ...string) aurtest.Package {
	return aurtest.Package{Package: aur.Package{Name: name, Version: version, Depends: depends}}
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exit *ExitError
	if errors.As(err, &exit) {
		return exit.Code
	}
	return -1
}

func TestExitError(t *testing.T) {
	if got := (&ExitError{Code: 3}).Error(); got != "exit status 3" {
		t.Errorf("Error() = %q", got)
	}
	cause := errors.New("boom")
	e := &ExitError{Code: 2, Err: cause}
	if e.Error() != "boom" {
		t.Errorf("Error() = %q, want cause message", e.Error())
	}
	if !errors.Is(e, cause) {
		t.Error("ExitError should unwrap to its cause")
	}
}

func TestStatus(t *testing.T) {
	tests := []struct {
		name string
		res  engine.Result
		want int
	}{
		{"clean", engine.Result{Packages: []*aur.Package{{Name: "a"}}}, 0},
		{"failed", engine.Result{Failed: []string{"a"}}, 1},
		{"empty", engine.Result{Empty: []string{"a"}}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := tt.res
			if got := exitCode(status(&res)); got != tt.want {
				t.Errorf("status() exit code = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSearchCommand(t *testing.T) {
	e := newEnv(t)
	e.srv.Add(
		aurtest.Package{Package: aur.Package{Name: "cower", Version: "17-2", Description: "A simple AUR agent", NumVotes: 900}},
		aurtest.Package{Package: aur.Package{Name: "auracle-git", Version: "r1-1", Description: "Successor of cower", OutOfDate: true}},
	)
	e.install(t, "cower", "16-1")

	out, _, err := e.run(t, "search", "cower")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	for _, want := range []string{"aur/auracle-git r1-1", "<!>", "aur/cower 17-2 (900, 0.00) [installed: 16-1]", "    A simple AUR agent"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Index(out, "auracle-git") > strings.Index(out, "cower 17-2") {
		t.Error("results should be sorted by name")
	}
}

func TestSearchNoResults(t *testing.T) {
	e := newEnv(t)
	e.srv.Add(aurtest.Package{Package: aur.Package{Name: "cower", Version: "17-2"}})

	out, stderr, err := e.run(t, "search", "cower", "nothing-here")
	if exitCode(err) != 1 {
		t.Fatalf("exit code = %d (%v), want 1", exitCode(err), err)
	}
	if !strings.Contains(out, "cower") {
		t.Errorf("matching target should still print: %q", out)
	}
	if !strings.Contains(stderr, "nothing-here") {
		t.Errorf("empty target should be logged: %q", stderr)
	}
}

func TestSearchUnknownField(t *testing.T) {
	e := newEnv(t)
	_, _, err := e.run(t, "search", "--by", "bogus", "cower")
	if !aurerrors.Is(err, aurerrors.ErrCodeInvalidInput) {
		t.Fatalf("err = %v, want INVALID_INPUT", err)
	}
	if e.srv.TotalHits(aurtest.HitSearch) != 0 {
		t.Error("no request should be sent")
	}
}

func TestMSearchCommand(t *testing.T) {
	e := newEnv(t)
	e.srv.Add(aurtest.Package{Package: aur.Package{Name: "cower", Version: "17-2", Maintainer: "falconindy"}})

	out, _, err := e.run(t, "msearch", "falconindy", "--format", "%n %m")
	if err != nil {
		t.Fatalf("msearch: %v", err)
	}
	if out != "cower falconindy\n" {
		t.Errorf("output = %q", out)
	}
}

func TestInfoCommand(t *testing.T) {
	e := newEnv(t)
	e.srv.Add(aurtest.Package{Package: aur.Package{
		Name: "cower", Version: "17-2", Depends: []string{"curl", "yajl"}, License: []string{"MIT"},
	}})

	out, _, err := e.run(t, "info", "cower")
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	for _, want := range []string{"Name", "cower", "Depends On", "curl  yajl", "Maintainer", "(orphan)", e.srv.URL + "/packages/cower"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	out, _, err = e.run(t, "info", "cower", "--format", `%n\t%v\t%D`, "--list-delim", ",")
	if err != nil {
		t.Fatalf("info --format: %v", err)
	}
	if out != "cower\t17-2\tcurl,yajl\n" {
		t.Errorf("formatted output = %q", out)
	}
}

func TestInfoMissingPackage(t *testing.T) {
	e := newEnv(t)
	_, _, err := e.run(t, "info", "ghost")
	if exitCode(err) != 1 {
		t.Fatalf("exit code = %d (%v), want 1", exitCode(err), err)
	}
}

func TestDownloadCommand(t *testing.T) {
	e := newEnv(t)
	e.srv.Add(
		aurtest.Package{Package: aur.Package{Name: "app", Version: "1-1", Depends: []string{"lib>=2", "glibc"}}},
		aurtest.Package{Package: aur.Package{Name: "lib", Version: "2-1"}},
	)
	e.install(t, "glibc", "2.40-1")
	dir := t.TempDir()

	out, _, err := e.run(t, "download", "app", "-d", "-t", dir)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	for _, name := range []string{"app", "lib"} {
		if _, err := os.Stat(filepath.Join(dir, name, "PKGBUILD")); err != nil {
			t.Errorf("%s not unpacked: %v", name, err)
		}
		if !strings.Contains(out, filepath.Join(dir, name)) {
			t.Errorf("output should name %s's directory:\n%s", name, out)
		}
	}
	if e.srv.Hits(aurtest.HitInfo, "glibc") != 0 {
		t.Error("installed dependency should not be looked up")
	}

	_, _, err = e.run(t, "download", "app", "-t", dir)
	if exitCode(err) != 1 {
		t.Fatalf("second download exit code = %d (%v), want 1", exitCode(err), err)
	}

	_, _, err = e.run(t, "download", "app", "-f", "-t", dir)
	if err != nil {
		t.Fatalf("download --force: %v", err)
	}
}

func TestDownloadIgnoreFlag(t *testing.T) {
	e := newEnv(t)
	e.srv.Add(
		aurtest.Package{Package: aur.Package{Name: "app", Version: "1-1", Depends: []string{"lib"}}},
		aurtest.Package{Package: aur.Package{Name: "lib", Version: "1-1"}},
	)
	dir := t.TempDir()

	if _, _, err := e.run(t, "download", "app", "-d", "-t", dir, "--ignore", "lib"); err != nil {
		t.Fatalf("download: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "lib")); !os.IsNotExist(err) {
		t.Error("ignored dependency should not be downloaded")
	}
}

func TestUpdateCommand(t *testing.T) {
	e := newEnv(t)
	e.srv.Add(
		aurtest.Package{Package: aur.Package{Name: "cower", Version: "17-2"}},
		aurtest.Package{Package: aur.Package{Name: "yay", Version: "12.0-1"}},
	)
	e.install(t, "cower", "16-1")
	e.install(t, "yay", "12.0-1")
	e.install(t, "local-only", "1-1")

	out, _, err := e.run(t, "update")
	if exitCode(err) != 1 {
		t.Fatalf("exit code = %d (%v), want 1 with pending updates", exitCode(err), err)
	}
	if !strings.Contains(out, ":: cower 16-1 → 17-2") {
		t.Errorf("output = %q", out)
	}
	if strings.Contains(out, "yay") {
		t.Errorf("up-to-date package listed: %q", out)
	}

	out, _, err = e.run(t, "update", "yay")
	if err != nil || out != "" {
		t.Fatalf("update yay = %q, %v; want no output and success", out, err)
	}

	dir := t.TempDir()
	if _, _, err := e.run(t, "update", "--download", "-t", dir); err != nil {
		t.Fatalf("update --download: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "cower", "PKGBUILD")); err != nil {
		t.Errorf("outdated package not downloaded: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "yay")); !os.IsNotExist(err) {
		t.Error("up-to-date package should not be downloaded")
	}
}

func TestInvalidConfig(t *testing.T) {
	e := newEnv(t)
	if err := os.WriteFile(e.config, []byte("max_thread = 4\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, _, err := e.run(t, "search", "cower")
	if !aurerrors.Is(err, aurerrors.ErrCodeInvalidConfig) {
		t.Fatalf("err = %v, want INVALID_CONFIG", err)
	}
}

func TestFlagsOverrideConfig(t *testing.T) {
	e := newEnv(t)
	if err := os.WriteFile(e.config, []byte("max_threads = 4\ncolor = \"always\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	c := New(&bytes.Buffer{}, &bytes.Buffer{}, LogInfo)
	root := c.RootCommand()
	root.SetArgs([]string{"cache", "path", "--config", e.config, "--threads", "2", "--color", "never"})
	if err := root.Execute(); err != nil {
		t.Fatal(err)
	}
	if c.cfg.MaxThreads != 2 {
		t.Errorf("MaxThreads = %d, want flag value 2", c.cfg.MaxThreads)
	}
	if c.cfg.Color != "never" {
		t.Errorf("Color = %q, want flag value never", c.cfg.Color)
	}
}
