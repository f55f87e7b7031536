// Package database maps catalog names to file-backed tables.
// Tables are read through a store.Store, parsed from (optionally gzipped)
// CSV, and kept in an LRU cache. Entries may carry a remote URL that is
// used as a fallback when the file is missing locally.
package database

import (
	"context"
	"fmt"
	"log"
	"path"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dnswlt/skycat/internal/fetch"
	"github.com/dnswlt/skycat/internal/store"
	"github.com/dnswlt/skycat/internal/table"
)

// Entry describes one named catalog.
type Entry struct {
	// Path of the catalog file, relative to the store root.
	Path string `yaml:"path"`
	// URL to download the catalog from when it is missing locally.
	// Optional.
	URL string `yaml:"url,omitempty"`
	// Schema optionally pins column kinds ("int", "float", "bool",
	// "string") instead of inferring them from the data.
	Schema map[string]string `yaml:"schema,omitempty"`
}

// Config configures a Database.
type Config struct {
	// Entries maps catalog names to their file locations.
	Entries map[string]Entry `yaml:"entries"`
	// BasePattern is the path of per-host base catalogs, with a single
	// %d verb for the host ID.
	BasePattern string `yaml:"base-pattern"`
	// CacheSize is the maximum number of tables kept in memory.
	CacheSize int `yaml:"cache-size"`
}

const (
	DefaultBasePattern = "base_catalogs/base_nsa%d.csv.gz"
	DefaultCacheSize   = 64
)

// DefaultConfig returns the canonical catalog layout: the master host
// list with and without photometric flag columns, plus the curated list
// of host names.
func DefaultConfig() Config {
	return Config{
		Entries: map[string]Entry{
			"hosts_no_flags":      {Path: "hosts/host_catalog_no_flags.csv"},
			"hosts_no_sdss_flags": {Path: "hosts/host_catalog_no_sdss_flags.csv"},
			"hosts_named":         {Path: "hosts/host_catalog_named.csv"},
		},
		BasePattern: DefaultBasePattern,
		CacheSize:   DefaultCacheSize,
	}
}

// Database resolves catalog names to tables.
type Database struct {
	mut     sync.Mutex
	st      store.Store
	entries map[string]Entry
	basePat string
	cache   *lru.Cache[string, *table.Table]
	client  *fetch.Client
}

// Open creates a Database reading from the given store.
// Zero-valued config fields fall back to the defaults.
func Open(st store.Store, cfg Config) (*Database, error) {
	if cfg.BasePattern == "" {
		cfg.BasePattern = DefaultBasePattern
	}
	if !strings.Contains(cfg.BasePattern, "%d") {
		return nil, fmt.Errorf("base pattern %q has no %%d host ID verb", cfg.BasePattern)
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultCacheSize
	}
	entries := DefaultConfig().Entries
	for name, e := range cfg.Entries {
		entries[name] = e
	}
	cache, err := lru.New[string, *table.Table](cfg.CacheSize)
	if err != nil {
		return nil, err
	}
	return &Database{
		st:      st,
		entries: entries,
		basePat: cfg.BasePattern,
		cache:   cache,
		client:  fetch.NewClient(),
	}, nil
}

// Names returns the names of all registered catalogs.
func (db *Database) Names() []string {
	db.mut.Lock()
	defer db.mut.Unlock()
	names := make([]string, 0, len(db.entries))
	for name := range db.entries {
		names = append(names, name)
	}
	return names
}

// Register adds or replaces a catalog entry.
func (db *Database) Register(name string, e Entry) {
	db.mut.Lock()
	defer db.mut.Unlock()
	db.entries[name] = e
	db.cache.Remove(name)
}

// Table returns the catalog with the given name, reading it from the
// store on a cache miss.
func (db *Database) Table(name string) (*table.Table, error) {
	return db.table(name, false)
}

// TableReload is like Table, but bypasses the cache and re-reads the
// catalog from the store.
func (db *Database) TableReload(name string) (*table.Table, error) {
	return db.table(name, true)
}

func (db *Database) table(name string, reload bool) (*table.Table, error) {
	db.mut.Lock()
	defer db.mut.Unlock()
	if !reload {
		if t, ok := db.cache.Get(name); ok {
			return t, nil
		}
	}
	e, ok := db.entries[name]
	if !ok {
		return nil, fmt.Errorf("no catalog named %q", name)
	}
	t, err := db.readEntry(name, e)
	if err != nil {
		return nil, err
	}
	db.cache.Add(name, t)
	return t, nil
}

func (db *Database) readEntry(name string, e Entry) (*table.Table, error) {
	schema, err := parseSchema(e.Schema)
	if err != nil {
		return nil, fmt.Errorf("catalog %q: %w", name, err)
	}
	data, err := db.st.ReadFile(e.Path)
	if err != nil {
		if e.URL == "" {
			return nil, fmt.Errorf("reading catalog %q: %w", name, err)
		}
		data, err = db.download(name, e)
		if err != nil {
			return nil, err
		}
	}
	t, err := table.ReadBytesNamed(data, e.Path, schema)
	if err != nil {
		return nil, fmt.Errorf("parsing catalog %q: %w", name, err)
	}
	return t, nil
}

// download fetches a missing catalog from its URL and writes it through
// the store so subsequent reads are local. Stores that cannot be written
// (git revisions) only get the in-memory copy.
func (db *Database) download(name string, e Entry) ([]byte, error) {
	log.Printf("Catalog %q not found locally, downloading from %s", name, e.URL)
	data, err := db.client.Get(context.Background(), e.URL)
	if err != nil {
		return nil, fmt.Errorf("downloading catalog %q: %w", name, err)
	}
	if strings.HasSuffix(e.Path, ".gz") {
		data, err = fetch.GzipCompress(data)
		if err != nil {
			return nil, err
		}
	}
	if err := db.st.WriteFile(e.Path, data); err != nil {
		if err == store.ErrReadOnly {
			log.Printf("Store is read-only, keeping catalog %q in memory only", name)
		} else {
			return nil, fmt.Errorf("writing catalog %q: %w", name, err)
		}
	}
	return data, nil
}

// BaseTable returns the per-host base catalog for the given host ID.
func (db *Database) BaseTable(hostID int64) (*table.Table, error) {
	name := baseName(hostID)
	db.mut.Lock()
	if _, ok := db.entries[name]; !ok {
		db.entries[name] = Entry{Path: fmt.Sprintf(db.basePat, hostID)}
	}
	db.mut.Unlock()
	return db.table(name, false)
}

// HasBaseTable reports whether the base catalog file for the given host
// exists in the store.
func (db *Database) HasBaseTable(hostID int64) bool {
	db.mut.Lock()
	pat := db.basePat
	db.mut.Unlock()
	p := fmt.Sprintf(pat, hostID)
	files, err := store.DataFiles(db.st, path.Dir(p), path.Ext(p))
	if err != nil {
		return false
	}
	for _, f := range files {
		if f == p {
			return true
		}
	}
	return false
}

// Invalidate drops the named catalog from the cache.
func (db *Database) Invalidate(name string) {
	db.mut.Lock()
	defer db.mut.Unlock()
	db.cache.Remove(name)
}

func baseName(hostID int64) string {
	return fmt.Sprintf("base_nsa%d", hostID)
}

func parseSchema(m map[string]string) (table.Schema, error) {
	if len(m) == 0 {
		return nil, nil
	}
	schema := make(table.Schema, len(m))
	for col, kind := range m {
		switch kind {
		case "string":
			schema[col] = table.String
		case "int":
			schema[col] = table.Int
		case "float":
			schema[col] = table.Float
		case "bool":
			schema[col] = table.Bool
		default:
			return nil, fmt.Errorf("invalid kind %q for column %q", kind, col)
		}
	}
	return schema, nil
}
