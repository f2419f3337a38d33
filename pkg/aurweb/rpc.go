package aurweb

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"slices"
	"strings"

	"github.com/matzehuels/aurgrab/pkg/aur"
	"github.com/matzehuels/aurgrab/pkg/cache"
	"github.com/matzehuels/aurgrab/pkg/errors"
	"github.com/matzehuels/aurgrab/pkg/observability"
)

// SearchBy names the fields aurweb can search on.
var SearchBy = []string{
	"name",
	"name-desc",
	"maintainer",
	"depends",
	"makedepends",
	"optdepends",
	"checkdepends",
}

// maxInfoQuery bounds the encoded query of one info request; aurweb rejects
// overly long URIs, so larger lookups are split into batches.
const maxInfoQuery = 4000

// Search runs an RPC search on field by ("name-desc" when empty).
func (c *Client) Search(ctx context.Context, by, term string) ([]*aur.Package, error) {
	if by == "" {
		by = "name-desc"
	}
	if !slices.Contains(SearchBy, by) {
		return nil, errors.New(errors.ErrCodeInvalidInput, "unknown search field %q", by)
	}

	q := url.Values{}
	q.Set("v", "5")
	q.Set("type", "search")
	q.Set("by", by)
	q.Set("arg", term)
	return c.rpc(ctx, "search-"+by, term, q)
}

// MSearch lists the packages maintained by maintainer.
func (c *Client) MSearch(ctx context.Context, maintainer string) ([]*aur.Package, error) {
	return c.Search(ctx, "maintainer", maintainer)
}

// Info fetches full records for names. Unknown names are simply absent from
// the result. Large lookups are split across several requests and merged.
func (c *Client) Info(ctx context.Context, names ...string) ([]*aur.Package, error) {
	var out []*aur.Package
	for _, batch := range batchNames(names, maxInfoQuery) {
		q := url.Values{}
		q.Set("v", "5")
		q.Set("type", "info")
		q["arg[]"] = batch

		sorted := slices.Clone(batch)
		slices.Sort(sorted)
		pkgs, err := c.rpc(ctx, "info", strings.Join(sorted, "\x00"), q)
		if err != nil {
			return nil, err
		}
		out = aur.Merge(out, pkgs)
	}
	return out, nil
}

// Recipe returns the PKGBUILD text of a package base.
func (c *Client) Recipe(ctx context.Context, pkgbase string) (string, error) {
	q := url.Values{}
	q.Set("h", pkgbase)
	u := c.endpoint("/cgit/aur.git/plain/PKGBUILD", q)

	data, _, err := c.cached(ctx, c.keyer.RecipeKey(pkgbase), "recipe", func() ([]byte, error) {
		return c.getBytes(ctx, u)
	})
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Snapshot opens the tarball at urlPath, a record's URLPath. The caller
// closes the returned body.
func (c *Client) Snapshot(ctx context.Context, urlPath string) (io.ReadCloser, error) {
	if urlPath == "" {
		return nil, errors.New(errors.ErrCodeInvalidInput, "package has no snapshot path")
	}
	if !strings.HasPrefix(urlPath, "/") {
		urlPath = "/" + urlPath
	}

	var body io.ReadCloser
	err := cache.RetryWithBackoff(ctx, func() error {
		var err error
		body, err = c.get(ctx, c.baseURL+urlPath)
		return err
	})
	return body, err
}

// rpc runs one RPC request and decodes the envelope while it streams in.
// The raw bytes are teed aside and cached only if decoding succeeded.
func (c *Client) rpc(ctx context.Context, queryType, arg string, q url.Values) ([]*aur.Package, error) {
	key := c.keyer.RPCKey(queryType, arg)
	hooks := observability.Cache()

	if !c.refresh {
		if data, ok, _ := c.cache.Get(ctx, key); ok {
			hooks.OnCacheHit(ctx, "rpc")
			return aur.Decode(bytes.NewReader(data))
		}
		hooks.OnCacheMiss(ctx, "rpc")
	}

	u := c.endpoint("/rpc", q)
	var pkgs []*aur.Package
	err := cache.RetryWithBackoff(ctx, func() error {
		body, err := c.get(ctx, u)
		if err != nil {
			return err
		}
		defer body.Close()

		var raw bytes.Buffer
		pkgs, err = aur.Decode(io.TeeReader(body, &raw))
		if err != nil {
			return err
		}
		if err := c.cache.Set(ctx, key, raw.Bytes(), c.ttl); err == nil {
			hooks.OnCacheSet(ctx, "rpc", raw.Len())
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pkgs, nil
}

// batchNames splits names so that each batch's encoded arg[] parameters stay
// under limit bytes. A single oversized name still gets its own batch.
func batchNames(names []string, limit int) [][]string {
	var (
		out  [][]string
		cur  []string
		size int
	)
	for _, n := range names {
		cost := len("&arg%5B%5D=") + len(url.QueryEscape(n))
		if len(cur) > 0 && size+cost > limit {
			out = append(out, cur)
			cur, size = nil, 0
		}
		cur = append(cur, n)
		size += cost
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}
