// Package aur holds the package record model of the Arch User Repository and
// the pure, allocation-only algorithms that operate on it.
//
// # Records
//
// A [Package] is one remote package as described by the aurweb RPC: identity
// fields plus the dependency lists (depends, makedepends, checkdepends,
// optdepends, provides, conflicts, replaces). Records are identified by Name,
// compared case-sensitively.
//
// # Algorithms
//
//   - [Decode] streams an RPC JSON envelope into a name-sorted record list.
//   - [ExtractRecipe] pulls array assignments out of PKGBUILD text.
//   - [Merge] combines two name-sorted lists; on equal names the right
//     operand wins.
//
// None of these functions perform I/O beyond reading the io.Reader they are
// handed, so they are safe to call from any number of goroutines.
package aur
