// Package reload provides an in-process environment reload host.
//
// Host is the core type and performs:
// 1. build a fresh environment generation from a factory
// 2. run the entry point under a generation context
// 3. on a reload request, cancel that context, abandoning pending work
// 4. close the discarded environment
// 5. start the next generation from the entry point
//
// Only state held outside the factory (typically a sessionkv.Store) survives a
// reload.
//
// This package is EXPERIMENTAL and its API may change before v1.
package reload
