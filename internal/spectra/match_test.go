package spectra

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dnswlt/skycat/internal/table"
)

func TestMatchToObjects(t *testing.T) {
	objs, err := table.New(
		table.NewIntColumn("OBJID", []int64{1, 2, 3}),
		table.NewFloatColumn("RA", []float64{150.0, 150.1, 150.2}),
		table.NewFloatColumn("DEC", []float64{-1.5, -1.5, -1.5}),
	)
	if err != nil {
		t.Fatal(err)
	}
	dir := writeFiles(t, map[string]string{
		// Within 1 arcsec of object 2, far from the others.
		"m2014a.zlog": "10.006668 -1.5001 18.2 0.0213 0.0001 4 obj-x\n",
	})
	specs, err := ReadMMT(dir)
	if err != nil {
		t.Fatal(err)
	}
	n, err := MatchToObjects(objs, specs, 0)
	if err != nil {
		t.Fatalf("MatchToObjects failed: %v", err)
	}
	if n != 1 {
		t.Errorf("matched %d objects, want 1", n)
	}
	zq, err := objs.Column("ZQUALITY")
	if err != nil {
		t.Fatalf("objects have no ZQUALITY column: %v", err)
	}
	if diff := cmp.Diff([]int64{0, 4, 0}, zq.Ints()); diff != "" {
		t.Errorf("ZQUALITY mismatch (-want +got):\n%s", diff)
	}
	z, err := objs.Column("SPEC_Z")
	if err != nil {
		t.Fatal(err)
	}
	if got := z.Floats()[1]; got != 0.0213 {
		t.Errorf("SPEC_Z[1] = %g, want 0.0213", got)
	}
	if !math.IsNaN(z.Floats()[0]) || !math.IsNaN(z.Floats()[2]) {
		t.Errorf("unmatched SPEC_Z values = %v, want NaN", z.Floats())
	}
}
