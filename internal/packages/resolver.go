// Package packages downloads, unpacks and caches published packages and
// feeds their files into the source store.
package packages

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/tliron/commonlog"
	"golang.org/x/sync/singleflight"

	"github.com/wolframe-project/wolframe-typstcore/internal/diag"
	"github.com/wolframe-project/wolframe-typstcore/internal/source"
)

var log = commonlog.GetLogger("typstcore.packages")

// Cache persists extracted archives between sessions.
type Cache interface {
	Load(spec source.PackageSpec) (*Archive, bool, error)
	Store(spec source.PackageSpec, archive *Archive) error
	Delete(spec source.PackageSpec) error
}

type entry struct {
	files    []source.FileID
	manifest *Manifest
}

// Resolver resolves package specs into store entries. Each spec is fetched
// at most once per Resolver; concurrent requests for the same spec share a
// single download.
type Resolver struct {
	store    *source.Store
	fetcher  Fetcher
	registry string
	cache    Cache

	group   singleflight.Group
	mu      sync.RWMutex
	done    map[source.PackageSpec]*entry
	fetches atomic.Int64
}

type Option func(*Resolver)

func WithRegistry(url string) Option { return func(r *Resolver) { r.registry = url } }

func WithCache(c Cache) Option { return func(r *Resolver) { r.cache = c } }

func NewResolver(store *source.Store, fetcher Fetcher, opts ...Option) *Resolver {
	r := &Resolver{
		store:    store,
		fetcher:  fetcher,
		registry: DefaultRegistry,
		done:     make(map[source.PackageSpec]*entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve makes the files of spec available in the store and returns their
// ids. Once a spec is resolved, later calls perform no I/O.
func (r *Resolver) Resolve(ctx context.Context, spec source.PackageSpec) ([]source.FileID, error) {
	if e, ok := r.lookup(spec); ok {
		return e.files, nil
	}

	v, err, shared := r.group.Do(spec.String(), func() (any, error) {
		if e, ok := r.lookup(spec); ok {
			return e, nil
		}
		return r.load(ctx, spec)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		log.Debugf("shared resolution of %s", spec)
	}
	return v.(*entry).files, nil
}

func (r *Resolver) lookup(spec source.PackageSpec) (*entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.done[spec]
	return e, ok
}

func (r *Resolver) load(ctx context.Context, spec source.PackageSpec) (*entry, error) {
	archive, err := r.archive(ctx, spec)
	if err != nil {
		return nil, withSpec(err, spec)
	}
	manifest, err := archive.Manifest()
	if err != nil {
		return nil, &diag.PackageError{Kind: diag.MalformedArchive, Spec: spec.String(), Err: err}
	}
	if err := manifest.Validate(spec); err != nil {
		log.Warningf("%s: %v", spec, err)
	}

	buffers := archive.Buffers(spec)
	r.store.ReplacePackage(spec, buffers...)

	e := &entry{manifest: manifest, files: make([]source.FileID, 0, len(buffers))}
	for _, b := range buffers {
		e.files = append(e.files, b.ID())
	}
	sort.Slice(e.files, func(i, j int) bool { return e.files[i].Path < e.files[j].Path })

	r.mu.Lock()
	r.done[spec] = e
	r.mu.Unlock()
	log.Infof("resolved %s (%d files)", spec, len(e.files))
	return e, nil
}

func (r *Resolver) archive(ctx context.Context, spec source.PackageSpec) (*Archive, error) {
	if r.cache != nil {
		archive, ok, err := r.cache.Load(spec)
		if err != nil {
			log.Warningf("package cache: %v", err)
		} else if ok {
			log.Debugf("package cache hit for %s", spec)
			return archive, nil
		}
	}
	if r.fetcher == nil {
		return nil, &diag.PackageError{Kind: diag.NetworkFailed, Message: "no fetcher configured"}
	}

	r.fetches.Add(1)
	data, err := r.fetcher.Fetch(ctx, URL(r.registry, spec))
	if err != nil {
		if errors.Is(err, diag.ErrPackageNotFound) {
			return nil, r.classifyMissing(ctx, spec, err)
		}
		var perr *diag.PackageError
		if errors.As(err, &perr) {
			return nil, err
		}
		return nil, &diag.PackageError{Kind: diag.NetworkFailed, Err: err}
	}
	if len(data) == 0 {
		return nil, &diag.PackageError{Kind: diag.NetworkFailed, Message: "empty response"}
	}

	archive, err := Extract(data)
	if err != nil {
		return nil, err
	}
	if r.cache != nil {
		if err := r.cache.Store(spec, archive); err != nil {
			log.Warningf("package cache: %v", err)
		}
	}
	return archive, nil
}

// classifyMissing tells a missing version apart from a missing package by
// looking at the namespace index. Any failure keeps the original error.
func (r *Resolver) classifyMissing(ctx context.Context, spec source.PackageSpec, cause error) error {
	data, err := r.fetcher.Fetch(ctx, IndexURL(r.registry, spec.Namespace))
	if err != nil {
		return cause
	}
	index, err := ParseIndex(data)
	if err != nil {
		return cause
	}
	if versions := index.Versions(spec.Name); len(versions) > 0 {
		return &diag.PackageError{Kind: diag.VersionNotFound, Message: fmt.Sprintf(
			"version %s of %s (published: %s)", spec.Version, spec.Name, strings.Join(versions, ", "))}
	}
	return cause
}

func withSpec(err error, spec source.PackageSpec) error {
	var perr *diag.PackageError
	if errors.As(err, &perr) && perr.Spec == "" {
		cp := *perr
		cp.Spec = spec.String()
		return &cp
	}
	return err
}

func (r *Resolver) IsResolved(spec source.PackageSpec) bool {
	_, ok := r.lookup(spec)
	return ok
}

// Manifest returns the manifest of a resolved package.
func (r *Resolver) Manifest(spec source.PackageSpec) (*Manifest, bool) {
	e, ok := r.lookup(spec)
	if !ok {
		return nil, false
	}
	return e.manifest, true
}

// Entrypoint returns the file that importing spec evaluates, resolving the
// package first if needed.
func (r *Resolver) Entrypoint(ctx context.Context, spec source.PackageSpec) (source.FileID, error) {
	if _, err := r.Resolve(ctx, spec); err != nil {
		return source.FileID{}, err
	}
	m, _ := r.Manifest(spec)
	return m.EntrypointID(spec), nil
}

// Purge forgets spec: its files leave the store and its archive leaves the
// cache, so the next Resolve downloads it again.
func (r *Resolver) Purge(spec source.PackageSpec) error {
	r.mu.Lock()
	delete(r.done, spec)
	r.mu.Unlock()
	n := r.store.RemovePackage(spec)
	log.Infof("purged %s (%d files)", spec, n)
	if r.cache == nil {
		return nil
	}
	return r.cache.Delete(spec)
}

// Resolved lists the resolved specs in sorted order.
func (r *Resolver) Resolved() []source.PackageSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]source.PackageSpec, 0, len(r.done))
	for spec := range r.done {
		out = append(out, spec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// Fetches counts archive downloads issued so far.
func (r *Resolver) Fetches() int64 {
	return r.fetches.Load()
}
