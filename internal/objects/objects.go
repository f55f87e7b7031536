// Package objects loads per-host object catalogs, applies cuts, and
// combines the results across hosts.
package objects

import (
	"fmt"
	"log"

	"github.com/dnswlt/skycat/internal/cuts"
	"github.com/dnswlt/skycat/internal/database"
	"github.com/dnswlt/skycat/internal/hosts"
	"github.com/dnswlt/skycat/internal/table"
)

// HostIDColumn is added to stacked results to tell rows of different
// hosts apart.
const HostIDColumn = "HOST_NSAID"

// Catalog provides access to the per-host object catalogs.
type Catalog struct {
	db    *database.Database
	hosts *hosts.Catalog
}

func New(db *database.Database, hc *hosts.Catalog) *Catalog {
	return &Catalog{db: db, hosts: hc}
}

// LoadOptions control which objects are loaded.
type LoadOptions struct {
	// Hosts selects the hosts whose catalogs to load; see
	// hosts.Catalog.ResolveIDs for the selector syntax.
	// Defaults to "all".
	Hosts string
	// Cut filters the object rows. Optional.
	Cut cuts.Cut
	// Columns restricts the result to the given columns. Optional.
	Columns []string
	// SkipMissing logs and skips hosts without a base catalog instead
	// of failing.
	SkipMissing bool
}

// HostTable is the filtered object catalog of one host.
type HostTable struct {
	HostID int64
	Table  *table.Table
}

// ForEach loads each selected host's object catalog, applies the cut and
// column selection, and calls fn with the result. Iteration stops at the
// first error from fn.
func (c *Catalog) ForEach(opts LoadOptions, fn func(hostID int64, t *table.Table) error) error {
	selector := opts.Hosts
	if selector == "" {
		selector = "all"
	}
	ids, err := c.hosts.ResolveIDs(selector)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return fmt.Errorf("selector %q matches no hosts", selector)
	}
	for _, id := range ids {
		t, err := c.loadHost(id, opts)
		if err != nil {
			if opts.SkipMissing {
				log.Printf("Skipping host %d: %v", id, err)
				continue
			}
			return err
		}
		if err := fn(id, t); err != nil {
			return err
		}
	}
	return nil
}

func (c *Catalog) loadHost(id int64, opts LoadOptions) (*table.Table, error) {
	t, err := c.db.BaseTable(id)
	if err != nil {
		return nil, err
	}
	t, err = cuts.Filter(t, opts.Cut)
	if err != nil {
		return nil, fmt.Errorf("host %d: %w", id, err)
	}
	if len(opts.Columns) > 0 {
		t, err = t.SelectColumns(opts.Columns...)
		if err != nil {
			return nil, fmt.Errorf("host %d: %w", id, err)
		}
	}
	return t, nil
}

// Load returns the filtered object catalog of each selected host.
func (c *Catalog) Load(opts LoadOptions) ([]HostTable, error) {
	var results []HostTable
	err := c.ForEach(opts, func(hostID int64, t *table.Table) error {
		results = append(results, HostTable{HostID: hostID, Table: t})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// LoadStacked returns the filtered object catalogs of all selected hosts
// stacked into a single table, with a HOST_NSAID column identifying the
// host of each row. All per-host catalogs must have identical columns.
func (c *Catalog) LoadStacked(opts LoadOptions) (*table.Table, error) {
	var parts []*table.Table
	err := c.ForEach(opts, func(hostID int64, t *table.Table) error {
		t = t.Clone()
		if err := t.AddConstColumn(HostIDColumn, hostID); err != nil {
			return err
		}
		parts = append(parts, t)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("no object catalogs loaded")
	}
	return table.Stack(parts...)
}

// Count returns the number of objects passing the cut per selected host.
func (c *Catalog) Count(opts LoadOptions) (map[int64]int, error) {
	counts := make(map[int64]int)
	err := c.ForEach(opts, func(hostID int64, t *table.Table) error {
		counts[hostID] = t.NumRows()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return counts, nil
}
