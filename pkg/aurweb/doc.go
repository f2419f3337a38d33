// Package aurweb is the client for the AUR web service.
//
// It covers the three endpoints aurgrab needs:
//   - the v5 JSON RPC (search, msearch and info queries), decoded as a stream
//     by [aur.Decode]
//   - raw PKGBUILD text from cgit, for dependency extraction
//   - snapshot tarballs, handed to the caller as a stream for extraction
//
// # Caching
//
// RPC responses and recipes are stored in a [cache.Cache] under keys built by
// a [cache.Keyer]. The raw response bytes are cached, not the decoded records,
// and only after they decoded cleanly: aurweb error envelopes and malformed
// bodies are never cached. Snapshots are not cached.
//
// # Concurrency
//
// Each [Client] owns its own [http.Client]. The engine builds one Client per
// worker so that no transport state is shared between workers. A single
// Client is still safe for concurrent use.
//
// # Errors
//
// Failures are coded with [errors.Code]: NETWORK_ERROR and TIMEOUT for
// transport failures (5xx and connection errors are retried first),
// NOT_FOUND for 404s, and the codes returned by [aur.Decode] for bad bodies.
package aurweb
