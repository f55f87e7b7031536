// Package hosts loads the host catalog and resolves host selectors.
package hosts

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dnswlt/skycat/internal/cuts"
	"github.com/dnswlt/skycat/internal/database"
	"github.com/dnswlt/skycat/internal/table"
)

// Host list variants. The flag columns of the master list come from
// different photometric pipelines; the variants differ in which of those
// columns they carry.
const (
	ListNoFlags     = "no_flags"
	ListNoSDSSFlags = "no_sdss_flags"
)

// IDColumn is the host identifier column of all host lists.
const IDColumn = "NSAID"

// Host sets for the flagship paper, split by spectroscopic completeness.
var (
	paper1Complete   = []int64{166313, 147100, 165536, 61945, 132339, 149781, 33446, 150887}
	paper1Incomplete = []int64{161174, 85746, 145729, 140594, 126115, 13927, 137625, 129237}
)

// Catalog provides access to the host lists.
type Catalog struct {
	db *database.Database
}

func New(db *database.Database) *Catalog {
	return &Catalog{db: db}
}

// LoadOptions control which hosts Load returns.
type LoadOptions struct {
	// List selects the host list variant; defaults to ListNoFlags.
	List string
	// Cut filters the host rows. Optional.
	Cut cuts.Cut
	// Reload bypasses the table cache.
	Reload bool
}

// Load returns the host list, optionally filtered by a cut.
func (c *Catalog) Load(opts LoadOptions) (*table.Table, error) {
	list := opts.List
	if list == "" {
		list = ListNoFlags
	}
	name := "hosts_" + list
	var t *table.Table
	var err error
	if opts.Reload {
		t, err = c.db.TableReload(name)
	} else {
		t, err = c.db.Table(name)
	}
	if err != nil {
		return nil, err
	}
	return cuts.Filter(t, opts.Cut)
}

// ResolveIDs expands a host selector into a list of host IDs.
// A selector is a comma-separated list of tokens, each of which is a
// numeric host ID, a curated host name (case-insensitive), or one of the
// shorthands "all", "paper1", "paper1_complete", "paper1_incomplete".
func (c *Catalog) ResolveIDs(selector string) ([]int64, error) {
	var ids []int64
	seen := make(map[int64]bool)
	add := func(more ...int64) {
		for _, id := range more {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	for _, tok := range strings.Split(selector, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		switch strings.ToLower(tok) {
		case "all":
			all, err := c.allIDs()
			if err != nil {
				return nil, err
			}
			add(all...)
		case "paper1":
			add(paper1Complete...)
			add(paper1Incomplete...)
		case "paper1_complete":
			add(paper1Complete...)
		case "paper1_incomplete":
			add(paper1Incomplete...)
		default:
			if id, err := strconv.ParseInt(tok, 10, 64); err == nil {
				add(id)
				continue
			}
			id, err := c.idByName(tok)
			if err != nil {
				return nil, err
			}
			add(id)
		}
	}
	return ids, nil
}

func (c *Catalog) allIDs() ([]int64, error) {
	t, err := c.Load(LoadOptions{})
	if err != nil {
		return nil, err
	}
	col, err := t.Column(IDColumn)
	if err != nil {
		return nil, err
	}
	vals, err := col.AsInts()
	if err != nil {
		return nil, err
	}
	// Copy: callers may append to the result.
	ids := make([]int64, len(vals))
	copy(ids, vals)
	return ids, nil
}

// namedList returns the curated host name list with NAME and NSAID columns.
func (c *Catalog) namedList() (names []string, ids []int64, err error) {
	t, err := c.db.Table("hosts_named")
	if err != nil {
		return nil, nil, err
	}
	nameCol, err := t.Column("NAME")
	if err != nil {
		return nil, nil, err
	}
	idCol, err := t.Column(IDColumn)
	if err != nil {
		return nil, nil, err
	}
	if nameCol.Kind() != table.String {
		return nil, nil, fmt.Errorf("column NAME has kind %s, want string", nameCol.Kind())
	}
	ids, err = idCol.AsInts()
	if err != nil {
		return nil, nil, err
	}
	return nameCol.Strings(), ids, nil
}

func (c *Catalog) idByName(name string) (int64, error) {
	names, ids, err := c.namedList()
	if err != nil {
		return 0, err
	}
	for i, n := range names {
		if strings.EqualFold(n, name) {
			return ids[i], nil
		}
	}
	return 0, fmt.Errorf("no host named %q", name)
}

// IDToName returns the curated name of a host, or the empty string if
// the host has no name.
func (c *Catalog) IDToName(id int64) (string, error) {
	names, ids, err := c.namedList()
	if err != nil {
		return "", err
	}
	for i, n := range ids {
		if n == id {
			return names[i], nil
		}
	}
	return "", nil
}

// LoadIDs returns the host list restricted to the hosts named by the
// selector, in list order.
func (c *Catalog) LoadIDs(selector string, opts LoadOptions) (*table.Table, error) {
	ids, err := c.ResolveIDs(selector)
	if err != nil {
		return nil, err
	}
	t, err := c.Load(opts)
	if err != nil {
		return nil, err
	}
	col, err := t.Column(IDColumn)
	if err != nil {
		return nil, err
	}
	rowIDs, err := col.AsInts()
	if err != nil {
		return nil, err
	}
	want := make(map[int64]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	mask := make([]bool, t.NumRows())
	for i, id := range rowIDs {
		mask[i] = want[id]
	}
	return t.Filter(mask)
}
