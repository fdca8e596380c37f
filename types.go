package lazyloading

import (
	"context"
	"strconv"
	"time"
)

// Import fetches one loadable unit. It may be invoked several times per load
// request, so it must be safe to repeat.
type Import[T any] func(ctx context.Context) (T, error)

// Supplier is what a host awaits before rendering a unit.
type Supplier[T any] interface {
	ID() string
	Load(ctx context.Context) (T, error)
}

// ReloadRequest describes one reload escalation.
// Attempt is the persisted failure count after the increment (1-based).
type ReloadRequest struct {
	ID      string `json:"id" yaml:"id"`
	Attempt int    `json:"attempt" yaml:"attempt"`
	Cause   error  `json:"-" yaml:"-"`
}

// Reloader discards the in-memory environment and restarts the host from its
// entry point. Reload must not block on the caller's completion.
type Reloader interface {
	Reload(ctx context.Context, req ReloadRequest)
}

// ReloaderFunc adapts a function to Reloader.
type ReloaderFunc func(ctx context.Context, req ReloadRequest)

func (f ReloaderFunc) Reload(ctx context.Context, req ReloadRequest) {
	f(ctx, req)
}

// VersionTag identifies one deployment generation. Tags strictly increase and
// are never reused.
type VersionTag uint64

func (v VersionTag) String() string {
	return strconv.FormatUint(uint64(v), 10)
}

// Artifact is a materialized unit for one (name, version) pair.
// It is immutable once created; compare pointers for identity.
type Artifact struct {
	Name      string     `json:"name" yaml:"name"`
	Version   VersionTag `json:"version" yaml:"version"`
	CreatedAt time.Time  `json:"createdAt" yaml:"createdAt"`
	Body      []byte     `json:"body,omitempty" yaml:"body,omitempty"`
}

// Key returns the catalog key, "<name>-<version>".
func (a *Artifact) Key() string {
	return artifactKey(a.Name, a.Version)
}

// Render returns the textual form of the unit.
func (a *Artifact) Render() string {
	out := "Component: " + a.Name + "\nHash: " + a.Version.String() + "\n" + a.CreatedAt.Format(time.TimeOnly)
	if len(a.Body) > 0 {
		out += "\n" + string(a.Body)
	}
	return out
}

func artifactKey(name string, version VersionTag) string {
	return name + "-" + version.String()
}

// Deployment is the outcome of one deploy.
type Deployment struct {
	Previous VersionTag `json:"previous" yaml:"previous"`
	Current  VersionTag `json:"current" yaml:"current"`
}

// Status is a read-only snapshot of the deployment state.
type Status struct {
	ClientKnown VersionTag `json:"clientKnown" yaml:"clientKnown"`
	Deployed    VersionTag `json:"deployed" yaml:"deployed"`
	Stale       bool       `json:"stale" yaml:"stale"`
}

// Deployer triggers a deployment. Hosts receive it by injection so any action
// (navigation, debug command) can simulate a deploy at an arbitrary time.
type Deployer interface {
	Deploy() Deployment
}
