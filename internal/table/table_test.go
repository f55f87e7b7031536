package table

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func mustTable(t *testing.T, cols ...*Column) *Table {
	t.Helper()
	tbl, err := New(cols...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return tbl
}

func TestColumn_AsFloats(t *testing.T) {
	got, err := NewIntColumn("RA", []int64{10, -1, 150}).AsFloats()
	if err != nil {
		t.Fatalf("AsFloats() error = %v", err)
	}
	if diff := cmp.Diff([]float64{10, -1, 150}, got); diff != "" {
		t.Errorf("AsFloats() mismatch (-want +got):\n%s", diff)
	}
	got, err = NewFloatColumn("RA", []float64{10.5}).AsFloats()
	if err != nil {
		t.Fatalf("AsFloats() error = %v", err)
	}
	if got[0] != 10.5 {
		t.Errorf("AsFloats()[0] = %v, want 10.5", got[0])
	}
	if _, err := NewStringColumn("NAME", []string{"AnaK"}).AsFloats(); err == nil {
		t.Error("AsFloats() on string column: error = nil, want error")
	}
}

func TestColumn_AsInts(t *testing.T) {
	got, err := NewFloatColumn("NSAID", []float64{61945, 132339}).AsInts()
	if err != nil {
		t.Fatalf("AsInts() error = %v", err)
	}
	if diff := cmp.Diff([]int64{61945, 132339}, got); diff != "" {
		t.Errorf("AsInts() mismatch (-want +got):\n%s", diff)
	}
	// An empty CSV cell reads as NaN; that is not a valid ID.
	if _, err := NewFloatColumn("NSAID", []float64{61945, math.NaN()}).AsInts(); err == nil {
		t.Error("AsInts() with NaN: error = nil, want error")
	}
	if _, err := NewFloatColumn("NSAID", []float64{61945.5}).AsInts(); err == nil {
		t.Error("AsInts() with fractional value: error = nil, want error")
	}
	if _, err := NewBoolColumn("HELIO_CORR", []bool{true}).AsInts(); err == nil {
		t.Error("AsInts() on bool column: error = nil, want error")
	}
}

func TestTable_New(t *testing.T) {
	tbl := mustTable(t,
		NewIntColumn("OBJID", []int64{1, 2, 3}),
		NewFloatColumn("RA", []float64{10.0, 20.0, 30.0}),
		NewStringColumn("TELNAME", []string{"MMT", "AAT", "MMT"}),
	)
	if got := tbl.NumRows(); got != 3 {
		t.Errorf("NumRows() = %d, want 3", got)
	}
	if got := tbl.NumCols(); got != 3 {
		t.Errorf("NumCols() = %d, want 3", got)
	}
	if diff := cmp.Diff([]string{"OBJID", "RA", "TELNAME"}, tbl.Names()); diff != "" {
		t.Errorf("Names() mismatch (-want +got):\n%s", diff)
	}
}

func TestTable_NewErrors(t *testing.T) {
	tests := []struct {
		name string
		cols []*Column
	}{
		{
			name: "length mismatch",
			cols: []*Column{
				NewIntColumn("A", []int64{1, 2}),
				NewIntColumn("B", []int64{1}),
			},
		},
		{
			name: "duplicate name",
			cols: []*Column{
				NewIntColumn("A", []int64{1}),
				NewFloatColumn("A", []float64{1}),
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cols...); err == nil {
				t.Error("New() error = nil, want error")
			}
		})
	}
}

func TestTable_Filter(t *testing.T) {
	tbl := mustTable(t,
		NewIntColumn("OBJID", []int64{1, 2, 3, 4}),
		NewFloatColumn("SPEC_Z", []float64{0.01, 0.2, 0.03, 0.4}),
	)
	out, err := tbl.Filter([]bool{true, false, true, false})
	if err != nil {
		t.Fatalf("Filter() error = %v", err)
	}
	ids, _ := out.Column("OBJID")
	if diff := cmp.Diff([]int64{1, 3}, ids.Ints()); diff != "" {
		t.Errorf("filtered OBJID mismatch (-want +got):\n%s", diff)
	}
	// Column order and kinds are preserved.
	if diff := cmp.Diff(tbl.Names(), out.Names()); diff != "" {
		t.Errorf("Names() mismatch (-want +got):\n%s", diff)
	}
	if _, err := tbl.Filter([]bool{true}); err == nil {
		t.Error("Filter() with short mask: error = nil, want error")
	}
}

func TestTable_SelectColumns(t *testing.T) {
	tbl := mustTable(t,
		NewIntColumn("OBJID", []int64{1, 2}),
		NewFloatColumn("RA", []float64{10, 20}),
		NewFloatColumn("DEC", []float64{-1, -2}),
	)
	out, err := tbl.SelectColumns("DEC", "OBJID")
	if err != nil {
		t.Fatalf("SelectColumns() error = %v", err)
	}
	if diff := cmp.Diff([]string{"DEC", "OBJID"}, out.Names()); diff != "" {
		t.Errorf("Names() mismatch (-want +got):\n%s", diff)
	}
	if _, err := tbl.SelectColumns("BOGUS"); err == nil {
		t.Error("SelectColumns(BOGUS) error = nil, want error")
	}
}

func TestTable_Stack(t *testing.T) {
	t1 := mustTable(t,
		NewIntColumn("OBJID", []int64{1, 2}),
		NewStringColumn("TELNAME", []string{"MMT", "MMT"}),
	)
	t2 := mustTable(t,
		NewIntColumn("OBJID", []int64{3}),
		NewStringColumn("TELNAME", []string{"AAT"}),
	)
	out, err := Stack(t1, t2)
	if err != nil {
		t.Fatalf("Stack() error = %v", err)
	}
	if out.NumRows() != 3 {
		t.Errorf("NumRows() = %d, want 3", out.NumRows())
	}
	ids, _ := out.Column("OBJID")
	if diff := cmp.Diff([]int64{1, 2, 3}, ids.Ints()); diff != "" {
		t.Errorf("stacked OBJID mismatch (-want +got):\n%s", diff)
	}
	// Stacking must not modify the inputs.
	if t1.NumRows() != 2 {
		t.Errorf("input table modified: NumRows() = %d, want 2", t1.NumRows())
	}
}

func TestTable_StackErrors(t *testing.T) {
	base := mustTable(t, NewIntColumn("OBJID", []int64{1}))
	tests := []struct {
		name  string
		other *Table
	}{
		{
			name:  "different column name",
			other: mustTable(t, NewIntColumn("ID", []int64{1})),
		},
		{
			name:  "different column kind",
			other: mustTable(t, NewFloatColumn("OBJID", []float64{1})),
		},
		{
			name: "different column count",
			other: mustTable(t,
				NewIntColumn("OBJID", []int64{1}),
				NewIntColumn("EXTRA", []int64{1}),
			),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Stack(base, tt.other); err == nil {
				t.Error("Stack() error = nil, want error")
			}
		})
	}
}

func TestTable_AddConstColumn(t *testing.T) {
	tbl := mustTable(t, NewIntColumn("OBJID", []int64{1, 2, 3}))
	if err := tbl.AddConstColumn("TELNAME", "WIYN"); err != nil {
		t.Fatalf("AddConstColumn() error = %v", err)
	}
	if err := tbl.AddConstColumn("HELIO_CORR", false); err != nil {
		t.Fatalf("AddConstColumn() error = %v", err)
	}
	c, _ := tbl.Column("TELNAME")
	if diff := cmp.Diff([]string{"WIYN", "WIYN", "WIYN"}, c.Strings()); diff != "" {
		t.Errorf("TELNAME mismatch (-want +got):\n%s", diff)
	}
}

func TestTable_RenameColumn(t *testing.T) {
	tbl := mustTable(t,
		NewFloatColumn("Z", []float64{0.1}),
		NewFloatColumn("Z_ERR", []float64{0.01}),
	)
	if err := tbl.RenameColumn("Z", "SPEC_Z"); err != nil {
		t.Fatalf("RenameColumn() error = %v", err)
	}
	if !tbl.HasColumn("SPEC_Z") || tbl.HasColumn("Z") {
		t.Errorf("rename not applied, columns: %v", tbl.Names())
	}
	if err := tbl.RenameColumn("SPEC_Z", "Z_ERR"); err == nil {
		t.Error("RenameColumn() to existing name: error = nil, want error")
	}
}

func TestTable_MatchByCoord(t *testing.T) {
	base := mustTable(t,
		NewFloatColumn("RA", []float64{10.0, 20.0, 30.0}),
		NewFloatColumn("DEC", []float64{5.0, -5.0, 0.0}),
	)
	// One exact match, one within 0.5 arcsec, one far away.
	wise := mustTable(t,
		NewFloatColumn("RA", []float64{10.0, 20.0001}),
		NewFloatColumn("DEC", []float64{5.0, -5.0}),
		NewFloatColumn("W1_MAG", []float64{15.5, 16.5}),
	)
	n, err := base.MatchByCoord(wise, MatchOptions{
		Columns:       []string{"W1_MAG"},
		Rename:        map[string]string{"W1_MAG": "W1"},
		MaxSeparation: 1.0 / 3600.0,
	})
	if err != nil {
		t.Fatalf("MatchByCoord() error = %v", err)
	}
	if n != 2 {
		t.Errorf("MatchByCoord() matched %d rows, want 2", n)
	}
	w1, err := base.Column("W1")
	if err != nil {
		t.Fatalf("Column(W1) error = %v", err)
	}
	vals := w1.Floats()
	if vals[0] != 15.5 || vals[1] != 16.5 {
		t.Errorf("W1 = %v, want [15.5 16.5 NaN]", vals)
	}
	if !math.IsNaN(vals[2]) {
		t.Errorf("unmatched row W1 = %v, want NaN", vals[2])
	}
}

func TestAngularSeparation(t *testing.T) {
	tests := []struct {
		name                   string
		ra1, dec1, ra2, dec2   float64
		want                   float64
		tol                    float64
	}{
		{name: "identical", ra1: 10, dec1: 10, ra2: 10, dec2: 10, want: 0, tol: 1e-12},
		{name: "one degree dec", ra1: 0, dec1: 0, ra2: 0, dec2: 1, want: 1, tol: 1e-9},
		{name: "one degree ra at equator", ra1: 0, dec1: 0, ra2: 1, dec2: 0, want: 1, tol: 1e-9},
		{name: "ra shrinks at high dec", ra1: 0, dec1: 60, ra2: 1, dec2: 60, want: 0.5, tol: 1e-3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := angularSeparation(tt.ra1, tt.dec1, tt.ra2, tt.dec2)
			if math.Abs(got-tt.want) > tt.tol {
				t.Errorf("angularSeparation() = %v, want %v (tol %v)", got, tt.want, tt.tol)
			}
		})
	}
}
