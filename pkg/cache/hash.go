package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"

	"github.com/cespare/xxhash/v2"
)

// Hash computes a SHA-256 hash of the input data.
// Returns the full 64-character hex string.
func Hash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// shortHash returns a 16-character hex xxhash of s. It keeps keys for long
// search arguments bounded without paying for a cryptographic hash.
func shortHash(s string) string {
	return strconv.FormatUint(xxhash.Sum64String(s), 16)
}

// DefaultKeyer produces keys of the form "rpc:<type>:<hash>" and
// "recipe:<pkgbase>".
type DefaultKeyer struct{}

// NewDefaultKeyer creates the default keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// RPCKey generates a key for an RPC query.
func (DefaultKeyer) RPCKey(queryType, arg string) string {
	return "rpc:" + queryType + ":" + shortHash(arg)
}

// RecipeKey generates a key for a build recipe.
func (DefaultKeyer) RecipeKey(pkgbase string) string {
	return "recipe:" + pkgbase
}
