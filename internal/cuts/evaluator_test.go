package cuts

import (
	"math"
	"testing"

	"github.com/dnswlt/skycat/internal/table"
	"github.com/google/go-cmp/cmp"
)

func specsTable(t *testing.T) *table.Table {
	t.Helper()
	tbl, err := table.New(
		table.NewIntColumn("OBJID", []int64{1237668367995568266, 2, 3, 4}),
		table.NewIntColumn("ZQUALITY", []int64{4, 2, 3, -1}),
		table.NewFloatColumn("SPEC_Z", []float64{0.21068, 0.005, math.NaN(), 1.08}),
		table.NewStringColumn("TELNAME", []string{"SDSS", "MMT", "AAT", "DEIMOS"}),
		table.NewStringColumn("MASKNAME", []string{"SDSS", "mmt2014a.zlog", "aat_2016.zlog", "deimos2016-DN1"}),
		table.NewBoolColumn("HELIO_CORR", []bool{false, true, true, false}),
	)
	if err != nil {
		t.Fatalf("table.New() error = %v", err)
	}
	return tbl
}

func TestCut_Mask(t *testing.T) {
	tbl := specsTable(t)

	tests := []struct {
		name string
		cut  string
		want []bool
	}{
		{
			name: "int greater or equal",
			cut:  "ZQUALITY >= 3",
			want: []bool{true, false, true, false},
		},
		{
			name: "int equality with negative value",
			cut:  "ZQUALITY == -1",
			want: []bool{false, false, false, true},
		},
		{
			name: "large int equality keeps precision",
			cut:  "OBJID == 1237668367995568266",
			want: []bool{true, false, false, false},
		},
		{
			name: "int compared against float value",
			cut:  "ZQUALITY > 2.5",
			want: []bool{true, false, true, false},
		},
		{
			name: "float less than skips NaN",
			cut:  "SPEC_Z < 0.5",
			want: []bool{true, true, false, false},
		},
		{
			name: "float not equal is true for NaN",
			cut:  "SPEC_Z != 1.08",
			want: []bool{true, true, true, false},
		},
		{
			name: "string equality",
			cut:  "TELNAME == AAT",
			want: []bool{false, false, true, false},
		},
		{
			name: "string inequality",
			cut:  "TELNAME != SDSS",
			want: []bool{false, true, true, true},
		},
		{
			name: "regex is case-insensitive",
			cut:  "MASKNAME ~ '^deimos'",
			want: []bool{false, false, false, true},
		},
		{
			name: "bool equality",
			cut:  "HELIO_CORR == true",
			want: []bool{false, true, true, false},
		},
		{
			name: "AND",
			cut:  "ZQUALITY >= 3 AND TELNAME != SDSS",
			want: []bool{false, false, true, false},
		},
		{
			name: "OR",
			cut:  "TELNAME == MMT OR TELNAME == AAT",
			want: []bool{false, true, true, false},
		},
		{
			name: "negation",
			cut:  "!(ZQUALITY >= 3)",
			want: []bool{false, true, false, true},
		},
		{
			name: "implicit AND with grouping",
			cut:  "ZQUALITY >= 2 (TELNAME == MMT OR TELNAME == AAT)",
			want: []bool{false, true, true, false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cut, err := Parse(tt.cut)
			if err != nil {
				t.Fatalf("Parse(%q) error = %v", tt.cut, err)
			}
			got, err := cut.Mask(tbl)
			if err != nil {
				t.Fatalf("Mask() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Mask(%q) mismatch (-want +got):\n%s", tt.cut, diff)
			}
		})
	}
}

func TestCut_MaskErrors(t *testing.T) {
	tbl := specsTable(t)

	tests := []struct {
		name string
		cut  string
	}{
		{name: "unknown column", cut: "BOGUS == 1"},
		{name: "ordering on string column", cut: "TELNAME < MMT"},
		{name: "regex on int column", cut: "ZQUALITY ~ '3+'"},
		{name: "non-numeric value for int column", cut: "ZQUALITY == three"},
		{name: "ordering on bool column", cut: "HELIO_CORR >= true"},
		{name: "invalid regex", cut: "MASKNAME ~ '['"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cut, err := Parse(tt.cut)
			if err != nil {
				t.Fatalf("Parse(%q) error = %v", tt.cut, err)
			}
			if _, err := cut.Mask(tbl); err == nil {
				t.Errorf("Mask(%q) error = nil, want error", tt.cut)
			}
		})
	}
}

func TestCombinators(t *testing.T) {
	tbl := specsTable(t)

	good := MustParse("ZQUALITY >= 3")
	nearby := MustParse("SPEC_Z < 0.5")

	tests := []struct {
		name string
		cut  Cut
		want []bool
	}{
		{
			name: "And",
			cut:  And(good, nearby),
			want: []bool{true, false, false, false},
		},
		{
			name: "And of none passes all",
			cut:  And(),
			want: []bool{true, true, true, true},
		},
		{
			name: "Or",
			cut:  Or(good, nearby),
			want: []bool{true, true, true, false},
		},
		{
			name: "Not",
			cut:  Not(good),
			want: []bool{false, true, false, true},
		},
		{
			name: "double negation",
			cut:  Not(Not(good)),
			want: []bool{true, false, true, false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cut.Mask(tbl)
			if err != nil {
				t.Fatalf("Mask() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Mask() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFilterAndCount(t *testing.T) {
	tbl := specsTable(t)
	cut := MustParse("ZQUALITY >= 3")

	out, err := Filter(tbl, cut)
	if err != nil {
		t.Fatalf("Filter() error = %v", err)
	}
	if out.NumRows() != 2 {
		t.Errorf("Filter() rows = %d, want 2", out.NumRows())
	}
	n, err := Count(tbl, cut)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 2 {
		t.Errorf("Count() = %d, want 2", n)
	}

	// A nil cut passes everything.
	all, err := Filter(tbl, nil)
	if err != nil {
		t.Fatalf("Filter(nil) error = %v", err)
	}
	if all.NumRows() != tbl.NumRows() {
		t.Errorf("Filter(nil) rows = %d, want %d", all.NumRows(), tbl.NumRows())
	}
}

func TestFillValues(t *testing.T) {
	tbl := specsTable(t)

	n, err := FillValues(tbl, MustParse("OBJID == 1237668367995568266"), map[string]any{
		"SPEC_Z":  0.21068,
		"TELNAME": "SDSS",
	})
	if err != nil {
		t.Fatalf("FillValues() error = %v", err)
	}
	if n != 1 {
		t.Errorf("FillValues() = %d, want 1", n)
	}
	z, _ := tbl.Column("SPEC_Z")
	if z.Floats()[0] != 0.21068 {
		t.Errorf("SPEC_Z[0] = %v, want 0.21068", z.Floats()[0])
	}
	// Unmatched rows are untouched.
	if z.Floats()[1] != 0.005 {
		t.Errorf("SPEC_Z[1] = %v, want 0.005", z.Floats()[1])
	}

	// No matches: report zero, touch nothing.
	n, err = FillValues(tbl, MustParse("ZQUALITY == 99"), map[string]any{"TELNAME": "NONE"})
	if err != nil {
		t.Fatalf("FillValues() error = %v", err)
	}
	if n != 0 {
		t.Errorf("FillValues() = %d, want 0", n)
	}
}

func TestRegistry(t *testing.T) {
	reg, err := NewRegistryFromConfig(map[string]string{
		"good_spec": "ZQUALITY >= 3",
		"nearby":    "SPEC_Z < 0.05",
	})
	if err != nil {
		t.Fatalf("NewRegistryFromConfig() error = %v", err)
	}
	if diff := cmp.Diff([]string{"good_spec", "nearby"}, reg.Names()); diff != "" {
		t.Errorf("Names() mismatch (-want +got):\n%s", diff)
	}
	if _, err := reg.Lookup("good_spec"); err != nil {
		t.Errorf("Lookup(good_spec) error = %v", err)
	}
	if _, err := reg.Lookup("bogus"); err == nil {
		t.Error("Lookup(bogus) error = nil, want error")
	}

	if _, err := NewRegistryFromConfig(map[string]string{"bad": "ZQUALITY >="}); err == nil {
		t.Error("NewRegistryFromConfig() with invalid expression: error = nil, want error")
	}
}
