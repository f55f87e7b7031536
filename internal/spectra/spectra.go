// Package spectra reads redshift catalogs produced by the spectroscopic
// follow-up telescopes. Each telescope delivers its own ad-hoc text
// format; the readers normalize them all to a single canonical schema so
// the results can be stacked.
package spectra

import (
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dnswlt/skycat/internal/cuts"
	"github.com/dnswlt/skycat/internal/table"
)

// Canonical columns of a normalized spectra table, in stacking order.
var canonicalColumns = []table.ColumnSpec{
	{Name: "SPECOBJID", Kind: table.String},
	{Name: "RA", Kind: table.Float},
	{Name: "DEC", Kind: table.Float},
	{Name: "SPEC_Z", Kind: table.Float},
	{Name: "SPEC_Z_ERR", Kind: table.Float},
	{Name: "ZQUALITY", Kind: table.Int},
	{Name: "MASKNAME", Kind: table.String},
	{Name: "TELNAME", Kind: table.String},
	{Name: "HELIO_CORR", Kind: table.Bool},
}

// speedOfLight in km/s, for converting velocity errors to redshift errors.
const speedOfLight = 299792.458

// readerSpec describes how to parse one telescope's files.
type readerSpec struct {
	// TelName is stored in the TELNAME column of every row.
	TelName string
	// Ext is the file extension to read; other files are skipped.
	Ext string
	// Comma switches from whitespace-separated to comma-separated fields.
	Comma bool
	// NCols is the expected number of fields per line.
	NCols int
	// Columns maps 1-based field indexes to the columns they populate.
	Columns map[int]table.ColumnSpec
	// Cut drops rows right after parsing. Optional.
	Cut cuts.Cut
	// Post adjusts units or fills derived columns. Optional.
	Post func(t *table.Table) error
}

// readDir parses all matching files in dir and returns their rows
// stacked into one canonical table. Files that cannot be parsed are
// logged and skipped; an empty result is returned as a zero-row table.
func readDir(dir string, spec readerSpec) (*table.Table, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading spectra directory %s: %w", dir, err)
	}
	var parts []*table.Table
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), spec.Ext) {
			continue
		}
		// Sync tools leave behind duplicates that must not be counted twice.
		if strings.Contains(e.Name(), "conflicted copy") {
			log.Printf("Skipping conflicted copy %s", e.Name())
			continue
		}
		t, err := readFile(filepath.Join(dir, e.Name()), spec)
		if err != nil {
			log.Printf("Cannot parse %s: %v", e.Name(), err)
			continue
		}
		parts = append(parts, t)
	}
	if len(parts) == 0 {
		return emptyCanonical()
	}
	return table.Stack(parts...)
}

func readFile(path string, spec readerSpec) (*table.Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	indexes := make([]int, 0, len(spec.Columns))
	for i := range spec.Columns {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)
	specs := make([]table.ColumnSpec, len(indexes))
	for j, i := range indexes {
		specs[j] = spec.Columns[i]
	}
	b := table.NewBuilder(specs)
	for lineno, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		var fields []string
		if spec.Comma {
			fields = strings.Split(line, ",")
		} else {
			fields = strings.Fields(line)
		}
		if len(fields) != spec.NCols {
			return nil, fmt.Errorf("line %d has %d fields, want %d", lineno+1, len(fields), spec.NCols)
		}
		cells := make([]string, len(indexes))
		for j, i := range indexes {
			cells[j] = strings.TrimSpace(fields[i-1])
		}
		if err := b.AppendRow(cells); err != nil {
			return nil, fmt.Errorf("line %d: %v", lineno+1, err)
		}
	}
	t, err := b.Build()
	if err != nil {
		return nil, err
	}
	if spec.Cut != nil {
		t, err = cuts.Filter(t, spec.Cut)
		if err != nil {
			return nil, err
		}
	}
	if spec.Post != nil {
		if err := spec.Post(t); err != nil {
			return nil, err
		}
	}
	return normalize(t, filepath.Base(path), spec.TelName)
}

// normalize brings a parsed table into the canonical schema: missing
// columns are added with defaults (MASKNAME defaults to the file name),
// kinds are checked, and columns are put in canonical order.
func normalize(t *table.Table, maskname, telname string) (*table.Table, error) {
	defaults := map[string]any{
		"SPECOBJID":  "",
		"RA":         math.NaN(),
		"DEC":        math.NaN(),
		"SPEC_Z":     math.NaN(),
		"SPEC_Z_ERR": math.NaN(),
		"ZQUALITY":   int64(-1),
		"MASKNAME":   maskname,
		"TELNAME":    telname,
		"HELIO_CORR": false,
	}
	names := make([]string, len(canonicalColumns))
	for i, spec := range canonicalColumns {
		names[i] = spec.Name
		if !t.HasColumn(spec.Name) {
			if err := t.AddConstColumn(spec.Name, defaults[spec.Name]); err != nil {
				return nil, err
			}
			continue
		}
		col, err := t.Column(spec.Name)
		if err != nil {
			return nil, err
		}
		if col.Kind() != spec.Kind {
			return nil, fmt.Errorf("column %s has kind %s, want %s", spec.Name, col.Kind(), spec.Kind)
		}
	}
	return t.SelectColumns(names...)
}

func emptyCanonical() (*table.Table, error) {
	b := table.NewBuilder(canonicalColumns)
	return b.Build()
}

// scaleColumn multiplies a float column in place.
func scaleColumn(t *table.Table, name string, factor float64) error {
	col, err := t.Column(name)
	if err != nil {
		return err
	}
	vals := col.Floats()
	for i := range vals {
		vals[i] *= factor
	}
	return nil
}

// ReadMMT reads MMT Hectospec redshift logs (.zlog). Coordinates come in
// decimal hours and are converted to degrees.
func ReadMMT(dir string) (*table.Table, error) {
	return readDir(dir, readerSpec{
		TelName: "MMT",
		Ext:     ".zlog",
		NCols:   7,
		Columns: map[int]table.ColumnSpec{
			1: {Name: "RA", Kind: table.Float},
			2: {Name: "DEC", Kind: table.Float},
			// The fiber magnitude is only parsed for the cut below;
			// it is not part of the canonical schema.
			3: {Name: "mag", Kind: table.Float},
			4: {Name: "SPEC_Z", Kind: table.Float},
			5: {Name: "SPEC_Z_ERR", Kind: table.Float},
			6: {Name: "ZQUALITY", Kind: table.Int},
			7: {Name: "SPECOBJID", Kind: table.String},
		},
		// Rows without a magnitude are sky fibers; ID "0" marks
		// unassigned fibers.
		Cut: cuts.MustParse("mag != 0 ZQUALITY >= 0 SPECOBJID != '0'"),
		Post: func(t *table.Table) error {
			return scaleColumn(t, "RA", 15) // hours to degrees
		},
	})
}

// ReadAAT reads AAT 2dF redshift logs (.zlog). The logs carry no
// per-object redshift error; a fixed 10 km/s velocity error is assumed.
func ReadAAT(dir string) (*table.Table, error) {
	return readDir(dir, readerSpec{
		TelName: "AAT",
		Ext:     ".zlog",
		NCols:   6,
		Columns: map[int]table.ColumnSpec{
			1: {Name: "RA", Kind: table.Float},
			2: {Name: "DEC", Kind: table.Float},
			4: {Name: "SPEC_Z", Kind: table.Float},
			5: {Name: "ZQUALITY", Kind: table.Int},
			6: {Name: "SPECOBJID", Kind: table.String},
		},
		Cut: cuts.MustParse("ZQUALITY >= 0 SPECOBJID != '0'"),
		Post: func(t *table.Table) error {
			return t.AddConstColumn("SPEC_Z_ERR", 10/speedOfLight)
		},
	})
}

// ReadAATmz reads AAT marz output files (.mz, comma-separated).
// Coordinates come in radians and are converted to degrees.
func ReadAATmz(dir string) (*table.Table, error) {
	return readDir(dir, readerSpec{
		TelName: "AAT",
		Ext:     ".mz",
		Comma:   true,
		NCols:   14,
		Columns: map[int]table.ColumnSpec{
			1:  {Name: "SPECOBJID", Kind: table.String},
			4:  {Name: "RA", Kind: table.Float},
			5:  {Name: "DEC", Kind: table.Float},
			13: {Name: "SPEC_Z", Kind: table.Float},
			14: {Name: "ZQUALITY", Kind: table.Int},
		},
		Cut: cuts.MustParse("ZQUALITY >= 0"),
		Post: func(t *table.Table) error {
			if err := scaleColumn(t, "RA", 180/math.Pi); err != nil {
				return err
			}
			if err := scaleColumn(t, "DEC", 180/math.Pi); err != nil {
				return err
			}
			return t.AddConstColumn("SPEC_Z_ERR", 10/speedOfLight)
		},
	})
}

// ReadIMACS reads IMACS redshift logs (.zlog). Rows below quality 1 are
// dropped.
func ReadIMACS(dir string) (*table.Table, error) {
	return readDir(dir, readerSpec{
		TelName: "IMACS",
		Ext:     ".zlog",
		NCols:   6,
		Columns: map[int]table.ColumnSpec{
			1: {Name: "SPECOBJID", Kind: table.String},
			2: {Name: "RA", Kind: table.Float},
			3: {Name: "DEC", Kind: table.Float},
			4: {Name: "SPEC_Z", Kind: table.Float},
			5: {Name: "SPEC_Z_ERR", Kind: table.Float},
			6: {Name: "ZQUALITY", Kind: table.Int},
		},
		Cut: cuts.MustParse("ZQUALITY >= 1 SPECOBJID != '0'"),
	})
}

// palomarSchema pins the kinds of the Palomar CSVs, which carry the full
// canonical schema already.
var palomarSchema = table.Schema{
	"SPECOBJID":  table.String,
	"RA":         table.Float,
	"DEC":        table.Float,
	"SPEC_Z":     table.Float,
	"SPEC_Z_ERR": table.Float,
	"ZQUALITY":   table.Int,
	"MASKNAME":   table.String,
	"HELIO_CORR": table.Bool,
}

// ReadPalomar reads Palomar double-spectrograph results, delivered as
// CSV files with the canonical columns.
func ReadPalomar(dir string) (*table.Table, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading spectra directory %s: %w", dir, err)
	}
	var parts []*table.Table
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".csv") {
			continue
		}
		if strings.Contains(e.Name(), "conflicted copy") {
			log.Printf("Skipping conflicted copy %s", e.Name())
			continue
		}
		t, err := table.ReadFile(filepath.Join(dir, e.Name()), palomarSchema)
		if err != nil {
			log.Printf("Cannot parse %s: %v", e.Name(), err)
			continue
		}
		t, err = normalize(t, e.Name(), "PAL")
		if err != nil {
			log.Printf("Cannot parse %s: %v", e.Name(), err)
			continue
		}
		parts = append(parts, t)
	}
	if len(parts) == 0 {
		return emptyCanonical()
	}
	return table.Stack(parts...)
}

// ReadDEIMOS returns the handful of DEIMOS redshifts. They were never
// delivered as files, so the values are built in.
func ReadDEIMOS() (*table.Table, error) {
	t, err := table.New(
		table.NewStringColumn("SPECOBJID", []string{"1", "1", "1"}),
		table.NewFloatColumn("RA", []float64{247.825839103498, 221.86742, 150.12470}),
		table.NewFloatColumn("DEC", []float64{20.210825313885, -0.28144459, 32.561687}),
		// The 2014 redshift was reported as a velocity of 2375 km/s.
		table.NewFloatColumn("SPEC_Z", []float64{2375 / speedOfLight, 0.056, 1.08}),
		table.NewFloatColumn("SPEC_Z_ERR", []float64{0.001, 0.001, 0.001}),
		table.NewIntColumn("ZQUALITY", []int64{4, 4, 4}),
		table.NewStringColumn("MASKNAME", []string{"deimos2014", "deimos2016-DN1", "deimos2016-MD1"}),
	)
	if err != nil {
		return nil, err
	}
	return normalize(t, "", "DEIMOS")
}

// Dirs names the spectra directories of all telescopes. Empty entries
// are skipped.
type Dirs struct {
	MMT     string
	AAT     string
	AATmz   string
	IMACS   string
	Palomar string
}

// ReadAll reads all configured spectra directories plus the built-in
// DEIMOS redshifts and stacks them into one table.
func ReadAll(dirs Dirs) (*table.Table, error) {
	readers := []struct {
		dir  string
		read func(string) (*table.Table, error)
	}{
		{dirs.MMT, ReadMMT},
		{dirs.AAT, ReadAAT},
		{dirs.AATmz, ReadAATmz},
		{dirs.IMACS, ReadIMACS},
		{dirs.Palomar, ReadPalomar},
	}
	var parts []*table.Table
	for _, r := range readers {
		if r.dir == "" {
			continue
		}
		t, err := r.read(r.dir)
		if err != nil {
			return nil, err
		}
		parts = append(parts, t)
	}
	deimos, err := ReadDEIMOS()
	if err != nil {
		return nil, err
	}
	parts = append(parts, deimos)
	return table.Stack(parts...)
}
