package cache

// ScopedKeyer wraps a Keyer with a prefix. The CLI scopes keys by aurweb host
// so that switching `aur_url` between a mirror and the main instance never
// serves one host's answers for the other.
//
// Example usage:
//
//	keyer := NewScopedKeyer(NewDefaultKeyer(), "aur.archlinux.org:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix.
// The prefix is prepended to all generated keys.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{
		inner:  inner,
		prefix: prefix,
	}
}

// RPCKey generates a prefixed key for an RPC query.
func (k *ScopedKeyer) RPCKey(queryType, arg string) string {
	return k.prefix + k.inner.RPCKey(queryType, arg)
}

// RecipeKey generates a prefixed key for a build recipe.
func (k *ScopedKeyer) RecipeKey(pkgbase string) string {
	return k.prefix + k.inner.RecipeKey(pkgbase)
}
