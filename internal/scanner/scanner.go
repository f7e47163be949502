// scanner is used to scan a workspace directory for source files.
package scanner

import (
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/tliron/commonlog"

	"github.com/wolframe-project/wolframe-typstcore/internal/source"
)

var log = commonlog.GetLogger("typstcore.scanner")

// IgnoreDir reports whether a directory is skipped: every directory whose
// name begins with "." except the root itself.
func IgnoreDir(root, path string) bool {
	if filepath.Clean(path) == filepath.Clean(root) {
		return false
	}
	return strings.HasPrefix(filepath.Base(path), ".")
}

// Scan walks the entire subtree under root. Any file or directory
// whose name begins with “.” is skipped entirely. For each remaining
// file, we apply the skip() predicate, and if that returns false
// we read the file and invoke callback(relPath, contents) with a
// slash-separated path relative to root.
// Scan will only return once all callbacks have completed.
func Scan(
	root string,
	skip func(relPath string, info fs.FileInfo) bool,
	callback func(relPath string, document []byte),
) {
	type file struct{ path, rel string }
	fileCh := make(chan file, 100)
	var wg sync.WaitGroup

	// worker goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		for f := range fileCh {
			data, err := os.ReadFile(f.path)
			if err != nil {
				log.Warningf("read error: %s: %s", f.path, err)
				continue
			}
			callback(f.rel, data)
		}
	}()

	log.Debugf("starting WalkDir at %q", root)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			log.Warningf("walk error: %s", err)
			return nil
		}

		if d.IsDir() {
			if IgnoreDir(root, path) {
				log.Debugf("skipping %q", path)
				return fs.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if skip(rel, info) {
			return nil
		}

		// enqueue for reading
		fileCh <- file{path: path, rel: rel}
		return nil
	})
	if err != nil {
		log.Warningf("WalkDir finished with error: %s", err)
	}

	// no more files to send
	close(fileCh)
	// wait for the worker to finish consuming and calling back
	wg.Wait()
}

// Feed adds every regular file under root whose extension is in exts to
// store, addressed by its path relative to root, and returns the ids added.
func Feed(store *source.Store, root string, exts []string) []source.FileID {
	var ids []source.FileID
	Scan(root,
		func(rel string, info fs.FileInfo) bool {
			return !info.Mode().IsRegular() || !slices.Contains(exts, filepath.Ext(rel))
		},
		func(rel string, data []byte) {
			id := source.ID(rel)
			store.Add(id, string(data))
			ids = append(ids, id)
		},
	)
	slices.SortFunc(ids, func(a, b source.FileID) int { return strings.Compare(a.Path, b.Path) })
	log.Infof("loaded %d files from %s", len(ids), root)
	return ids
}
