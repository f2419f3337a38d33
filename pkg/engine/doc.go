// Package engine runs aurgrab's concurrent fetch and resolve jobs.
//
// A run takes a list of targets and a [Task] (search, msearch, info,
// download or update). Targets go into a shared [Worklist]; a [Pool] of
// workers pops them, runs the task against each one, and keeps the records
// it produced in a private, name-sorted partial result. After every worker
// has been joined the partials are merged, one after another, into the final
// aggregate with [aur.Merge].
//
// # Shared state
//
// The worklist is the only structure workers share. It doubles as the run's
// visited set: a name enters it at most once, whether it was a top-level
// target or a dependency found in a recipe. Each worker owns its own aurweb
// client, so no transport state crosses workers.
//
// # Dependency resolution
//
// When a download task is asked to chase dependencies, its [Resolver] walks
// the recipe's build dependencies inside the same worker: it claims each
// bare name in the visited set, skips names that were already claimed or are
// satisfied by the local pacman database, and downloads the rest by calling
// the download procedure recursively. Claiming before fetching is what makes
// cyclic dependency graphs terminate, and what keeps any package from being
// downloaded twice in one run.
//
// # Termination
//
// A worker only stops when the queue is empty and no other worker is in the
// middle of a job, since a running job is the only thing that could still
// add work. See [Worklist.Pop].
//
// # Errors
//
// Transport failures, malformed responses and filesystem errors end the
// current job only: the target is recorded as failed and the worker moves on.
// Internal errors (see [errors.JobFatal]) cancel the whole run.
package engine
