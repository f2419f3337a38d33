package engine

import (
	"context"
	"slices"

	"github.com/matzehuels/aurgrab/pkg/aur"
	"github.com/matzehuels/aurgrab/pkg/errors"
)

// FetchFunc retrieves one package, and whatever it pulls in, inside the
// calling worker.
type FetchFunc func(ctx context.Context, w *Worker, name string) ([]*aur.Package, error)

// Resolver decides which dependencies of a downloaded package still need
// fetching and fetches them.
type Resolver struct {
	// DB answers "already installed or repo-provided". Nil means nothing is.
	DB LocalDB
	// Ignore lists names that are never fetched.
	Ignore []string
	// Fetch is called synchronously for every dependency that needs it.
	Fetch FetchFunc
}

// Resolve walks deps in order and returns the merged records of every
// dependency it fetched.
//
// For each dependency the version constraint is stripped and the bare name
// is claimed in the worker's worklist. A name that was already claimed, by
// this job or any other, is skipped outright even if it is not satisfied:
// that is what breaks dependency cycles. Claimed names that are ignored or
// satisfied locally need no fetch. A failed fetch is logged and does not
// stop the siblings.
func (r *Resolver) Resolve(ctx context.Context, w *Worker, deps []string) []*aur.Package {
	var out []*aur.Package
	for _, dep := range deps {
		if ctx.Err() != nil {
			break
		}
		name := aur.StripVersion(dep)
		if name == "" {
			continue
		}
		if !w.List.Claim(name) {
			w.Logger.Debug("dependency already seen", "dep", name)
			continue
		}
		if slices.Contains(r.Ignore, name) {
			w.Logger.Debug("ignoring dependency", "dep", name)
			continue
		}
		if r.DB != nil && r.DB.Satisfied(name) {
			w.Logger.Debug("dependency satisfied locally", "dep", name)
			continue
		}

		pkgs, err := r.Fetch(ctx, w, name)
		if err != nil {
			if ctx.Err() == nil {
				w.Logger.Warn(errors.UserMessage(err), "dep", name)
			}
			continue
		}
		out = aur.Merge(out, pkgs)
	}
	return out
}
