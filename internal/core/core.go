// Package core is the facade editors and tools drive. It owns the source
// store and the package resolver, and it is the environment the compiler
// runs in: sources, raw files, fonts, the standard library and the clock
// all come from a Core.
package core

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tliron/commonlog"

	"github.com/wolframe-project/wolframe-typstcore/internal/compiler"
	"github.com/wolframe-project/wolframe-typstcore/internal/definition"
	"github.com/wolframe-project/wolframe-typstcore/internal/diag"
	"github.com/wolframe-project/wolframe-typstcore/internal/fonts"
	"github.com/wolframe-project/wolframe-typstcore/internal/packages"
	"github.com/wolframe-project/wolframe-typstcore/internal/position"
	"github.com/wolframe-project/wolframe-typstcore/internal/source"
	"github.com/wolframe-project/wolframe-typstcore/internal/stdlib"
)

var log = commonlog.GetLogger("typstcore.core")

const defaultFetchTimeout = 30 * time.Second

type Options struct {
	// Fetcher downloads package archives. Defaults to HTTP.
	Fetcher  packages.Fetcher
	Registry string
	// Cache persists extracted packages between sessions. Optional.
	Cache packages.Cache
	// Now reports the instant Today is derived from. It is called once.
	Now func() time.Time
}

// Core is safe for concurrent use. The library and the font book are built
// once, on first use. The instant Today reports is captured by New.
type Core struct {
	store    *source.Store
	resolver *packages.Resolver
	now      time.Time

	library func() *stdlib.Library
	book    func() *fonts.Book

	mu     sync.Mutex
	root   source.FileID
	extra  []*fonts.Font
	sealed bool
	last   *Output
}

func New(opts Options) *Core {
	if opts.Fetcher == nil {
		opts.Fetcher = packages.NewHTTPFetcher(defaultFetchTimeout)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	c := &Core{
		store: source.NewStore(),
		now:   opts.Now(),
	}
	var ropts []packages.Option
	if opts.Registry != "" {
		ropts = append(ropts, packages.WithRegistry(opts.Registry))
	}
	if opts.Cache != nil {
		ropts = append(ropts, packages.WithCache(opts.Cache))
	}
	c.resolver = packages.NewResolver(c.store, opts.Fetcher, ropts...)
	c.library = sync.OnceValue(stdlib.Build)
	c.book = sync.OnceValue(c.buildBook)
	return c
}

func (c *Core) buildBook() *fonts.Book {
	embedded, err := fonts.Embedded()
	if err != nil {
		log.Errorf("embedded fonts: %s", err)
	}
	c.mu.Lock()
	c.sealed = true
	all := append(embedded, c.extra...)
	c.mu.Unlock()
	log.Infof("font book built with %d faces", len(all))
	return fonts.NewBook(all)
}

// Store exposes the underlying source store.
func (c *Core) Store() *source.Store { return c.store }

// AddSource creates or replaces a source file.
func (c *Core) AddSource(id source.FileID, text string) {
	c.store.Add(id, text)
}

// RemoveSource deletes a source file and reports whether it existed.
func (c *Core) RemoveSource(id source.FileID) bool {
	return c.store.Remove(id)
}

// EditSource replaces an editor range of id with text and returns the byte
// range the new text occupies.
func (c *Core) EditSource(id source.FileID, rng position.Range, text string) (source.ByteRange, error) {
	return c.store.Edit(id, source.CoordRange(rng), text)
}

// EditSourceBytes is EditSource for a byte range.
func (c *Core) EditSourceBytes(id source.FileID, start, end int, text string) (source.ByteRange, error) {
	return c.store.Edit(id, source.ByteRange{Start: start, End: end}, text)
}

func (c *Core) GetSource(id source.FileID) (string, error) {
	return c.store.Text(id)
}

// SetRoot designates the file compilation starts from. It must exist.
func (c *Core) SetRoot(id source.FileID) error {
	if !c.store.Has(id) {
		return diag.NewFileError(diag.NotFound, id.String())
	}
	c.mu.Lock()
	c.root = id
	c.mu.Unlock()
	log.Infof("root set to %s", id)
	return nil
}

// Root returns the root file, which is zero until SetRoot succeeds.
func (c *Core) Root() source.FileID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.root
}

// RegisterFont adds the faces in data to the font book. Fonts can only be
// registered before the book is first used.
func (c *Core) RegisterFont(data []byte) error {
	faces, err := fonts.Parse(data)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sealed {
		return diag.Errorf("font book is already built")
	}
	c.extra = append(c.extra, faces...)
	return nil
}

// Resolve makes the files of a package available.
func (c *Core) Resolve(ctx context.Context, spec source.PackageSpec) ([]source.FileID, error) {
	return c.resolver.Resolve(ctx, spec)
}

func (c *Core) Packages() *packages.Resolver { return c.resolver }

// Definition describes the declaration of the name at pos.
func (c *Core) Definition(id source.FileID, pos position.Position) (*definition.Result, error) {
	return definition.NewResolver(c.store, c).ResolveAt(id, pos)
}

// Complete lists the names visible at pos.
func (c *Core) Complete(id source.FileID, pos position.Position) ([]compiler.Completion, error) {
	buf, ok := c.store.Get(id)
	if !ok {
		return nil, diag.NewFileError(diag.NotFound, id.String())
	}
	offset, err := buf.Index().Offset(pos)
	if err != nil {
		return nil, diag.NewFileError(diag.NotFound, id.String())
	}
	return compiler.Complete(c, id, offset)
}

// LastDocument returns the output of the last successful compilation.
func (c *Core) LastDocument() *Output {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Library implements compiler.World.
func (c *Core) Library() *stdlib.Library { return c.library() }

// Book implements compiler.World.
func (c *Core) Book() *fonts.Book { return c.book() }

// Main implements compiler.World.
func (c *Core) Main() source.FileID { return c.Root() }

// Source implements compiler.World. Files of packages that are not resolved
// yet are fetched first.
func (c *Core) Source(id source.FileID) (*source.Buffer, error) {
	return c.source(context.Background(), id)
}

// File implements compiler.World.
func (c *Core) File(id source.FileID) ([]byte, error) {
	return c.file(context.Background(), id)
}

// Font implements compiler.World.
func (c *Core) Font(index int) (*fonts.Font, bool) { return c.book().Font(index) }

// Today implements compiler.World. The date is derived from the instant
// captured when c was created.
func (c *Core) Today(offset *int) (compiler.Date, bool) {
	t := c.now
	if offset == nil {
		t = t.Local()
	} else {
		t = t.UTC().Add(time.Duration(*offset) * time.Hour)
	}
	return compiler.Date{Year: t.Year(), Month: int(t.Month()), Day: t.Day()}, true
}

func (c *Core) source(ctx context.Context, id source.FileID) (*source.Buffer, error) {
	if buf, ok := c.store.Get(id); ok {
		return buf, nil
	}
	if id.InPackage() && !c.resolver.IsResolved(id.Package) {
		if _, err := c.resolver.Resolve(ctx, id.Package); err != nil {
			return nil, packageFailed(id, err)
		}
		if buf, ok := c.store.Get(id); ok {
			return buf, nil
		}
	}
	return nil, diag.NewFileError(diag.NotFound, id.Path)
}

func (c *Core) file(ctx context.Context, id source.FileID) ([]byte, error) {
	buf, err := c.source(ctx, id)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func packageFailed(id source.FileID, err error) error {
	var pe *diag.PackageError
	if !errors.As(err, &pe) {
		pe = &diag.PackageError{Kind: diag.PackageOther, Spec: id.Package.String(), Err: err}
	}
	return &diag.FileError{Kind: diag.PackageFailed, Path: id.Path, Package: pe}
}

// session is the world of one compilation: package fetches it triggers
// are bound to the caller's context.
type session struct {
	*Core
	ctx context.Context
}

func (s session) Source(id source.FileID) (*source.Buffer, error) { return s.source(s.ctx, id) }

func (s session) File(id source.FileID) ([]byte, error) { return s.file(s.ctx, id) }
