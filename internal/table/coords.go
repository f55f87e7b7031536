package table

import (
	"fmt"
	"math"
)

// MatchOptions controls MatchByCoord.
type MatchOptions struct {
	// Columns to copy from the other table. If empty, all of its columns
	// (except its coordinate columns) are copied.
	Columns []string
	// Rename maps source column names to target names.
	Rename map[string]string
	// MaxSeparation is the maximum angular separation in degrees for a match.
	// Defaults to 1 arcsecond (1/3600 deg).
	MaxSeparation float64
	// Coordinate column names. Default "RA" and "DEC" on both sides.
	RAColumn      string
	DECColumn     string
	OtherRAColumn string
	OtherDECColumn string
}

const arcsecDeg = 1.0 / 3600.0

// angularSeparation returns the angular separation in degrees between two
// points given in degrees, using the haversine formula.
func angularSeparation(ra1, dec1, ra2, dec2 float64) float64 {
	const d2r = math.Pi / 180.0
	sdRA := math.Sin((ra2 - ra1) * d2r / 2)
	sdDec := math.Sin((dec2 - dec1) * d2r / 2)
	a := sdDec*sdDec + math.Cos(dec1*d2r)*math.Cos(dec2*d2r)*sdRA*sdRA
	return 2 * math.Asin(math.Min(1, math.Sqrt(a))) / d2r
}

// MatchByCoord joins columns from other into t by matching sky coordinates.
// For each row of t, the nearest row of other within MaxSeparation is used;
// unmatched rows keep a missing value (NaN for float columns, zero values
// otherwise). It returns the number of matched rows of t.
func (t *Table) MatchByCoord(other *Table, opts MatchOptions) (int, error) {
	if opts.MaxSeparation <= 0 {
		opts.MaxSeparation = arcsecDeg
	}
	if opts.RAColumn == "" {
		opts.RAColumn = "RA"
	}
	if opts.DECColumn == "" {
		opts.DECColumn = "DEC"
	}
	if opts.OtherRAColumn == "" {
		opts.OtherRAColumn = opts.RAColumn
	}
	if opts.OtherDECColumn == "" {
		opts.OtherDECColumn = opts.DECColumn
	}

	ra, dec, err := coordColumns(t, opts.RAColumn, opts.DECColumn)
	if err != nil {
		return 0, err
	}
	ra2, dec2, err := coordColumns(other, opts.OtherRAColumn, opts.OtherDECColumn)
	if err != nil {
		return 0, err
	}

	cols := opts.Columns
	if len(cols) == 0 {
		for _, name := range other.Names() {
			if name == opts.OtherRAColumn || name == opts.OtherDECColumn {
				continue
			}
			cols = append(cols, name)
		}
	}

	// Find the nearest counterpart per row. Candidate rows outside the
	// declination band cannot be within MaxSeparation.
	match := make([]int, len(ra))
	nMatched := 0
	for i := range ra {
		match[i] = -1
		best := opts.MaxSeparation
		for j := range ra2 {
			if math.Abs(dec2[j]-dec[i]) > opts.MaxSeparation {
				continue
			}
			if sep := angularSeparation(ra[i], dec[i], ra2[j], dec2[j]); sep <= best {
				best = sep
				match[i] = j
			}
		}
		if match[i] >= 0 {
			nMatched++
		}
	}
	if nMatched == 0 {
		return 0, nil
	}

	for _, src := range cols {
		sc, err := other.Column(src)
		if err != nil {
			return 0, err
		}
		dst := src
		if r, ok := opts.Rename[src]; ok {
			dst = r
		}
		dc, err := t.Column(dst)
		if err != nil {
			// Target column does not exist yet: create it with missing values.
			dc = missingColumn(dst, sc.Kind(), t.NumRows())
			if err := t.AddColumn(dc); err != nil {
				return 0, err
			}
		} else if dc.Kind() != sc.Kind() {
			return 0, fmt.Errorf("column %q is %s, source column %q is %s", dst, dc.Kind(), src, sc.Kind())
		}
		for i, j := range match {
			if j >= 0 {
				if err := dc.Set(i, sc.Value(j)); err != nil {
					return 0, err
				}
			}
		}
	}
	return nMatched, nil
}

func coordColumns(t *Table, raName, decName string) ([]float64, []float64, error) {
	ra, err := t.Column(raName)
	if err != nil {
		return nil, nil, err
	}
	dec, err := t.Column(decName)
	if err != nil {
		return nil, nil, err
	}
	ras, err := ra.AsFloats()
	if err != nil {
		return nil, nil, fmt.Errorf("coordinate column: %v", err)
	}
	decs, err := dec.AsFloats()
	if err != nil {
		return nil, nil, fmt.Errorf("coordinate column: %v", err)
	}
	return ras, decs, nil
}

func missingColumn(name string, kind Kind, n int) *Column {
	switch kind {
	case String:
		return NewStringColumn(name, make([]string, n))
	case Int:
		return NewIntColumn(name, make([]int64, n))
	case Float:
		vals := make([]float64, n)
		for i := range vals {
			vals[i] = math.NaN()
		}
		return NewFloatColumn(name, vals)
	case Bool:
		return NewBoolColumn(name, make([]bool, n))
	}
	return nil
}
