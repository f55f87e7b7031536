package database

import (
	"fmt"
	"log"
	"path"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/dnswlt/skycat/internal/store"
)

// Watcher drops cached tables when their backing files change on disk.
type Watcher struct {
	fsw  *fsnotify.Watcher
	done chan struct{}
}

// Watch starts watching the directories of all registered catalogs under
// the given disk store, including the base catalog directory. Callers
// must Close the returned Watcher when done.
func (db *Database) Watch(ds *store.DiskStore) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	for _, dir := range db.watchDirs() {
		abs := filepath.Join(ds.RootDir(), filepath.FromSlash(dir))
		if err := fsw.Add(abs); err != nil {
			// Directories can be absent until the first download.
			log.Printf("Cannot watch %s: %v", abs, err)
		}
	}
	w := &Watcher{fsw: fsw, done: make(chan struct{})}
	go w.run(db, ds.RootDir())
	return w, nil
}

// watchDirs returns the store-relative directories holding catalog files.
func (db *Database) watchDirs() []string {
	db.mut.Lock()
	defer db.mut.Unlock()
	seen := map[string]bool{path.Dir(fmt.Sprintf(db.basePat, 0)): true}
	for _, e := range db.entries {
		seen[path.Dir(e.Path)] = true
	}
	dirs := make([]string, 0, len(seen))
	for d := range seen {
		dirs = append(dirs, d)
	}
	return dirs
}

func (w *Watcher) run(db *Database, root string) {
	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			rel, err := filepath.Rel(root, ev.Name)
			if err != nil {
				continue
			}
			db.invalidatePath(filepath.ToSlash(rel))
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Printf("Watcher error: %v", err)
		case <-w.done:
			return
		}
	}
}

// invalidatePath drops any cached catalog backed by the given
// store-relative path.
func (db *Database) invalidatePath(relPath string) {
	db.mut.Lock()
	defer db.mut.Unlock()
	for name, e := range db.entries {
		if e.Path == relPath {
			if db.cache.Remove(name) {
				log.Printf("Catalog %q changed on disk, dropped from cache", name)
			}
		}
	}
}

func (w *Watcher) Close() error {
	close(w.done)
	return w.fsw.Close()
}
