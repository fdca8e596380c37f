// Package lazyloading provides resilient on-demand loading of code units.
//
// It offers:
// - Loader: a bounded in-process retry loop with a fixed delay, escalating to a
//   full environment reload guarded by a session-scoped failure count
// - Lazy: a memoizing supplier hosts await before rendering
// - Registry: import operations keyed by explicit stable ids
// - ArtifactStore: an in-memory deployment simulator whose fetches fail when the
//   client's version went stale while the fetch was in flight
//
// The reload primitive itself lives in exp/reload; persisted storage backends
// live in sessionkv.
package lazyloading
