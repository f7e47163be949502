// Package source holds the identifier-keyed collection of source buffers
// shared by the compiler adapter, the package resolver and navigation.
package source

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/tliron/commonlog"
	"github.com/wolframe-project/wolframe-typstcore/internal/diag"
)

var log = commonlog.GetLogger("typstcore.source")

// Store maps FileIDs to buffers.
//
// The lock is held only for the duration of one map operation and nothing
// is called out to while it is held, so callers may freely read or write
// the store from within any callback, including package fetch hooks.
type Store struct {
	mu    sync.RWMutex
	files map[FileID]*Buffer
}

func NewStore() *Store {
	return &Store{files: make(map[FileID]*Buffer)}
}

// Add creates or replaces the buffer for id.
func (s *Store) Add(id FileID, text string) *Buffer {
	b := NewBuffer(id, text)
	s.Insert(b)
	return b
}

// Insert stores all buffers in one critical section, replacing existing
// entries with the same id.
func (s *Store) Insert(buffers ...*Buffer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range buffers {
		s.files[b.ID()] = b
	}
}

// Remove deletes id and reports whether it was present.
func (s *Store) Remove(id FileID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.files[id]
	delete(s.files, id)
	return ok
}

// RemovePackage deletes every file of spec and returns how many were removed.
func (s *Store) RemovePackage(spec PackageSpec) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id := range s.files {
		if id.Package == spec {
			delete(s.files, id)
			n++
		}
	}
	return n
}

// ReplacePackage swaps the files of spec for buffers in one critical
// section, so readers see either the old file set or the new one. Buffers
// that belong to another package are stored as given.
func (s *Store) ReplacePackage(spec PackageSpec, buffers ...*Buffer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.files {
		if id.Package == spec {
			delete(s.files, id)
		}
	}
	for _, b := range buffers {
		s.files[b.ID()] = b
	}
}

func (s *Store) Get(id FileID) (*Buffer, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.files[id]
	return b, ok
}

func (s *Store) Has(id FileID) bool {
	_, ok := s.Get(id)
	return ok
}

// Text returns the current text of id.
func (s *Store) Text(id FileID) (string, error) {
	b, ok := s.Get(id)
	if !ok {
		return "", diag.NewFileError(diag.NotFound, id.String())
	}
	return b.Text(), nil
}

// Edit replaces region of id's text with text. The region is resolved
// against the text as it is at the moment the edit is applied, and the
// returned range addresses the inserted text in the new state.
func (s *Store) Edit(id FileID, region Region, text string) (ByteRange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.files[id]
	if !ok {
		return ByteRange{}, diag.NewFileError(diag.NotFound, id.String())
	}
	start, end, err := region.Resolve(b.Index())
	if err != nil {
		return ByteRange{}, fmt.Errorf("edit %s: %w", id, err)
	}
	next, err := b.Replace(start, end, text)
	if err != nil {
		return ByteRange{}, fmt.Errorf("edit %s: %w", id, err)
	}
	s.files[id] = next

	// Replace sanitises invalid UTF-8, which can change the inserted length.
	inserted := next.Len() - (b.Len() - (end - start))
	log.Debugf("edited %s at %d..%d (+%d bytes)", id, start, end, inserted)
	return ByteRange{Start: start, End: start + inserted}, nil
}

// IDs returns all identifiers, project files first, each group sorted by
// path.
func (s *Store) IDs() []FileID {
	s.mu.RLock()
	ids := make([]FileID, 0, len(s.files))
	for id := range s.files {
		ids = append(ids, id)
	}
	s.mu.RUnlock()

	slices.SortFunc(ids, func(a, b FileID) int {
		if c := strings.Compare(a.Package.String(), b.Package.String()); c != 0 {
			return c
		}
		return strings.Compare(a.Path, b.Path)
	})
	return ids
}

// PackageFiles returns the ids that belong to spec.
func (s *Store) PackageFiles(spec PackageSpec) []FileID {
	var out []FileID
	for _, id := range s.IDs() {
		if id.Package == spec {
			out = append(out, id)
		}
	}
	return out
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.files)
}
