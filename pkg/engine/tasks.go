package engine

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"regexp"
	"regexp/syntax"
	"slices"
	"strings"

	"github.com/matzehuels/aurgrab/pkg/archive"
	"github.com/matzehuels/aurgrab/pkg/aur"
	"github.com/matzehuels/aurgrab/pkg/errors"
	"github.com/matzehuels/aurgrab/pkg/localdb"
)

// SearchTask searches the AUR, one query per target.
//
// Targets are regular expressions unless Literal is set. aurweb only does
// substring matching, so the longest literal run of the pattern is sent as
// the query and the results are filtered locally. The match is case
// insensitive and runs against the name, plus the description when
// searching by "name-desc".
type SearchTask struct {
	By      string // aurweb search field; empty means name-desc
	Literal bool
}

// Name implements Task.
func (t *SearchTask) Name() string { return "search" }

// Run implements Task.
func (t *SearchTask) Run(ctx context.Context, w *Worker, target string) ([]*aur.Package, error) {
	if t.Literal || !regexFields(t.By) {
		return w.Client.Search(ctx, t.By, target)
	}

	re, err := regexp.Compile("(?i)" + target)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid pattern %q", target)
	}
	term := LongestLiteral(target)
	if len(term) < 2 {
		return nil, errors.New(errors.ErrCodeInvalidInput, "pattern %q has no literal run of at least 2 characters", target)
	}

	pkgs, err := w.Client.Search(ctx, t.By, term)
	if err != nil {
		return nil, err
	}
	withDesc := t.By == "" || t.By == "name-desc"
	return slices.DeleteFunc(pkgs, func(p *aur.Package) bool {
		return !re.MatchString(p.Name) && !(withDesc && re.MatchString(p.Description))
	}), nil
}

func regexFields(by string) bool {
	return by == "" || by == "name" || by == "name-desc"
}

// LongestLiteral returns the longest run of characters every match of
// pattern must contain, or "" if there is none or the pattern is invalid.
func LongestLiteral(pattern string) string {
	re, err := syntax.Parse(pattern, syntax.Perl)
	if err != nil {
		return ""
	}
	return longestLiteral(re.Simplify())
}

func longestLiteral(re *syntax.Regexp) string {
	r := literals(re)
	return longest(r.best, r.prefix, r.suffix)
}

// literalRuns describes the fixed text of a subexpression. exact means it
// only ever matches best; otherwise prefix and suffix are what every match
// starts and ends with, and best is the longest run every match contains.
type literalRuns struct {
	exact                bool
	prefix, suffix, best string
}

func exactRun(s string) literalRuns {
	return literalRuns{exact: true, prefix: s, suffix: s, best: s}
}

func literals(re *syntax.Regexp) literalRuns {
	switch re.Op {
	case syntax.OpLiteral:
		return exactRun(string(re.Rune))
	case syntax.OpEmptyMatch, syntax.OpBeginLine, syntax.OpEndLine,
		syntax.OpBeginText, syntax.OpEndText, syntax.OpWordBoundary, syntax.OpNoWordBoundary:
		return exactRun("")
	case syntax.OpCapture:
		return literals(re.Sub[0])
	case syntax.OpPlus:
		r := literals(re.Sub[0])
		r.exact = false
		return r
	case syntax.OpRepeat:
		if re.Min == 0 {
			break
		}
		r := literals(re.Sub[0])
		if r.exact {
			s := strings.Repeat(r.best, re.Min)
			r = exactRun(s)
			r.exact = re.Min == re.Max
		}
		return r
	case syntax.OpConcat:
		acc := exactRun("")
		for _, sub := range re.Sub {
			acc = joinRuns(acc, literals(sub))
		}
		return acc
	}
	return literalRuns{}
}

// joinRuns describes a followed by b: the suffix of a and the prefix of b
// are adjacent in every match.
func joinRuns(a, b literalRuns) literalRuns {
	if a.exact && b.exact {
		return exactRun(a.best + b.best)
	}
	r := literalRuns{prefix: a.prefix, suffix: b.suffix}
	if a.exact {
		r.prefix = a.best + b.prefix
	}
	if b.exact {
		r.suffix = a.suffix + b.best
	}
	r.best = longest(a.best, b.best, a.suffix+b.prefix, r.prefix, r.suffix)
	return r
}

func longest(candidates ...string) string {
	best := ""
	for _, s := range candidates {
		if len(s) > len(best) {
			best = s
		}
	}
	return best
}

// MSearchTask lists packages by maintainer.
type MSearchTask struct{}

// Name implements Task.
func (MSearchTask) Name() string { return "msearch" }

// Run implements Task.
func (MSearchTask) Run(ctx context.Context, w *Worker, target string) ([]*aur.Package, error) {
	return w.Client.MSearch(ctx, target)
}

// InfoTask fetches the full record of each target. With Recipe set the
// package's PKGBUILD is fetched too and its arrays replace the dependency
// lists, versions kept, for display.
type InfoTask struct {
	Recipe bool
}

// Name implements Task.
func (t *InfoTask) Name() string { return "info" }

// Run implements Task.
func (t *InfoTask) Run(ctx context.Context, w *Worker, target string) ([]*aur.Package, error) {
	p, err := lookup(ctx, w, target)
	if err != nil {
		return nil, err
	}
	if t.Recipe {
		text, err := w.Client.Recipe(ctx, p.Base())
		if err != nil {
			w.Logger.Warn("could not fetch recipe", "package", target, "err", errors.UserMessage(err))
		} else {
			p.ApplyRecipe(text, aur.FieldsAll, false)
		}
	}
	return []*aur.Package{p}, nil
}

// lookup fetches the record named exactly name.
func lookup(ctx context.Context, w *Worker, name string) (*aur.Package, error) {
	pkgs, err := w.Client.Info(ctx, name)
	if err != nil {
		return nil, err
	}
	p, ok := aur.Find(pkgs, name)
	if !ok {
		return nil, errors.New(errors.ErrCodePackageNotFound, "%s: no results found", name)
	}
	return p, nil
}

// DownloadTask downloads and unpacks snapshots into TargetDir, one
// directory per package base.
type DownloadTask struct {
	TargetDir string
	// Force overwrites existing directories and downloads packages a sync
	// repository already provides.
	Force bool
	// GetDeps chases the build dependencies of every download.
	GetDeps bool
	// DB is consulted for repo-provided targets and satisfied
	// dependencies. Nil means nothing is installed or provided.
	DB LocalDB
	// Ignore lists names that are never downloaded.
	Ignore []string
}

// Name implements Task.
func (t *DownloadTask) Name() string { return "download" }

// Run implements Task.
func (t *DownloadTask) Run(ctx context.Context, w *Worker, target string) ([]*aur.Package, error) {
	return t.fetch(ctx, w, target)
}

func (t *DownloadTask) fetch(ctx context.Context, w *Worker, name string) ([]*aur.Package, error) {
	if slices.Contains(t.Ignore, name) {
		w.Logger.Info("ignoring package", "package", name)
		return nil, nil
	}

	p, err := lookup(ctx, w, name)
	if err != nil {
		return nil, err
	}
	if t.DB != nil && !t.Force {
		if repo, ok := t.DB.Provider(name); ok {
			w.Logger.Warn("package is available in a sync repository, skipping", "package", name, "repo", repo)
			return nil, nil
		}
	}

	base := p.Base()
	if err := errors.ValidatePackageName(base); err != nil {
		return nil, err
	}
	dir := filepath.Join(t.TargetDir, base)
	// Split packages share a base; only the first to claim it downloads.
	if w.List != nil && !w.List.Claim("pkgbase:"+base) {
		return nil, errors.New(errors.ErrCodeFileExists, "%s: package base %s already downloaded in this run", name, base)
	}
	if !t.Force {
		if _, err := os.Stat(dir); err == nil {
			return nil, errors.New(errors.ErrCodeFileExists, "%s: directory exists (use --force to overwrite)", dir)
		} else if !stderrors.Is(err, os.ErrNotExist) {
			return nil, errors.Wrap(errors.ErrCodeFilesystem, err, "stat %s", dir)
		}
	}

	if err := t.unpack(ctx, w, p); err != nil {
		return nil, err
	}
	w.Logger.Info("downloaded", "package", name, "dir", dir)

	out := []*aur.Package{p}
	if !t.GetDeps {
		return out, nil
	}

	text, err := os.ReadFile(filepath.Join(dir, "PKGBUILD"))
	if err != nil {
		w.Logger.Warn("cannot read PKGBUILD, skipping dependencies", "package", name, "err", err)
		return out, nil
	}
	p.ApplyRecipe(string(text), aur.FieldsBuild, true)

	deps := slices.Concat(p.Depends, p.MakeDepends, p.CheckDepends)
	r := &Resolver{DB: t.DB, Ignore: t.Ignore, Fetch: t.fetch}
	return aur.Merge(out, r.Resolve(ctx, w, deps)), nil
}

func (t *DownloadTask) unpack(ctx context.Context, w *Worker, p *aur.Package) error {
	body, err := w.Client.Snapshot(ctx, p.URLPath)
	if err != nil {
		return err
	}
	defer body.Close()

	status, err := archive.ExtractUnder(body, t.TargetDir, p.Base())
	switch status {
	case archive.StatusFatal:
		return err
	case archive.StatusWarn:
		w.Logger.Warn("extracted with warnings", "package", p.Name, "err", err)
	}
	return nil
}

// UpdateTask checks installed packages against the AUR. Each target is an
// installed package name; the result holds the targets with a newer AUR
// version, LocalVersion set. With Download set, outdated packages are also
// downloaded through it.
type UpdateTask struct {
	DB       LocalDB
	Ignore   []string
	Download *DownloadTask
}

// Name implements Task.
func (t *UpdateTask) Name() string { return "update" }

// Run implements Task.
func (t *UpdateTask) Run(ctx context.Context, w *Worker, target string) ([]*aur.Package, error) {
	if slices.Contains(t.Ignore, target) {
		w.Logger.Debug("ignoring package", "package", target)
		return nil, nil
	}

	local, ok := t.DB.Installed(target)
	if !ok {
		return nil, errors.New(errors.ErrCodePackageNotFound, "%s: not installed", target)
	}

	pkgs, err := w.Client.Info(ctx, target)
	if err != nil {
		return nil, err
	}
	p, ok := aur.Find(pkgs, target)
	if !ok {
		w.Logger.Debug("not in the AUR", "package", target)
		return nil, nil
	}
	if localdb.Vercmp(p.Version, local) <= 0 {
		return nil, nil
	}
	p.LocalVersion = local

	out := []*aur.Package{p}
	if t.Download == nil {
		return out, nil
	}
	dl, err := t.Download.fetch(ctx, w, target)
	if err != nil {
		return nil, err
	}
	// The update record carries LocalVersion, so it goes on the right.
	return aur.Merge(dl, out), nil
}
