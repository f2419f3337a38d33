// Package pkg provides the core libraries for aurgrab.
//
// # Overview
//
// aurgrab queries the Arch User Repository and downloads build snapshots
// together with the AUR dependencies they need. The libraries split into
// the record model, the scheduling engine and the capabilities the engine
// is given.
//
// # Architecture
//
// The typical data flow of a download:
//
//	targets
//	   ↓
//	[engine] worklist (one job per unique target, shared by all workers)
//	   ↓
//	[aurweb] info lookup → snapshot → [archive] extract
//	   ↓
//	[aur] recipe extraction → [engine] resolver → [localdb] satisfied?
//	   ↓
//	[aur] merge (per worker, then across workers)
//	   ↓
//	sorted, de-duplicated result list
//
// # Main Packages
//
// [aur] - Package records, the streaming RPC decoder, PKGBUILD dependency
// extraction and the sorted merge used to aggregate results.
//
// [engine] - The shared worklist, the worker pool and the dependency
// resolver, plus the search, msearch, info, download and update tasks.
//
// [aurweb] - HTTP client for aurweb's RPC, PKGBUILD and snapshot endpoints
// with response caching and retries.
//
// [archive] - Extraction of gzip or zstd compressed tarballs.
//
// [localdb] - Read-only access to pacman's local and sync databases, and
// version comparison.
//
// [cache] - Response cache backends (file, memory, redis, none).
//
// [config] - The TOML configuration file.
//
// [errors] - Coded errors and input validation.
//
// [observability] - Hooks for engine, cache and HTTP events.
//
// [aur]: https://pkg.go.dev/github.com/matzehuels/aurgrab/pkg/aur
// [engine]: https://pkg.go.dev/github.com/matzehuels/aurgrab/pkg/engine
// [aurweb]: https://pkg.go.dev/github.com/matzehuels/aurgrab/pkg/aurweb
// [archive]: https://pkg.go.dev/github.com/matzehuels/aurgrab/pkg/archive
// [localdb]: https://pkg.go.dev/github.com/matzehuels/aurgrab/pkg/localdb
// [cache]: https://pkg.go.dev/github.com/matzehuels/aurgrab/pkg/cache
// [config]: https://pkg.go.dev/github.com/matzehuels/aurgrab/pkg/config
// [errors]: https://pkg.go.dev/github.com/matzehuels/aurgrab/pkg/errors
// [observability]: https://pkg.go.dev/github.com/matzehuels/aurgrab/pkg/observability
package pkg
