package lazyloading

import (
	"fmt"
)

// StaleVersionError means a fetch resolved after the deployed version moved
// past the version the client requested.
type StaleVersionError struct {
	Name      string
	Requested VersionTag
	Deployed  VersionTag
}

func (e StaleVersionError) Error() string {
	return fmt.Sprintf("stale chunk: %s-%s (deployed=%s)", e.Name, e.Requested, e.Deployed)
}

// DuplicateImportError means the same import id is registered twice.
type DuplicateImportError struct {
	ID string
}

func (e DuplicateImportError) Error() string {
	return fmt.Sprintf("duplicate import id: %q", e.ID)
}

// ImportNotFoundError means looking up an id that was never registered.
type ImportNotFoundError struct {
	ID string
}

func (e ImportNotFoundError) Error() string {
	return fmt.Sprintf("import not found: %q", e.ID)
}

// TypeMismatchError means Lookup[T] found an import producing another type.
type TypeMismatchError struct {
	ID       string
	Expected string
	Actual   string
}

func (e TypeMismatchError) Error() string {
	return fmt.Sprintf("import type mismatch for %q: expected=%s actual=%s", e.ID, e.Expected, e.Actual)
}

// InvalidOptionsError means a loader option is out of range.
type InvalidOptionsError struct {
	Field  string
	Reason string
}

func (e InvalidOptionsError) Error() string {
	return fmt.Sprintf("invalid loader options: %s %s", e.Field, e.Reason)
}
