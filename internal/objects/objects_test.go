package objects

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dnswlt/skycat/internal/cuts"
	"github.com/dnswlt/skycat/internal/database"
	"github.com/dnswlt/skycat/internal/hosts"
	"github.com/dnswlt/skycat/internal/store"
	"github.com/dnswlt/skycat/internal/table"
)

const hostList = `NSAID,RA,DEC
61945,10.5,-1.0
132339,20.0,0.5
166313,30.0,1.0
`

func newTestCatalog(t *testing.T, baseCatalogs map[int64]string) *Catalog {
	t.Helper()
	ds := store.NewDiskStore(t.TempDir())
	if err := ds.WriteFile("hosts/host_catalog_no_flags.csv", []byte(hostList)); err != nil {
		t.Fatal(err)
	}
	if err := ds.WriteFile("hosts/host_catalog_named.csv", []byte("NAME,NSAID\nAnaK,61945\n")); err != nil {
		t.Fatal(err)
	}
	for id, content := range baseCatalogs {
		path := fmt.Sprintf("base_catalogs/base_nsa%d.csv", id)
		if err := ds.WriteFile(path, []byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	db, err := database.Open(ds, database.Config{BasePattern: "base_catalogs/base_nsa%d.csv"})
	if err != nil {
		t.Fatal(err)
	}
	hc := hosts.New(db)
	return New(db, hc)
}

var testBases = map[int64]string{
	61945:  "OBJID,RA,r_mag\n1,10.50,17.2\n2,10.51,21.5\n",
	132339: "OBJID,RA,r_mag\n3,20.00,18.0\n",
	166313: "OBJID,RA,r_mag\n4,30.00,22.1\n5,30.01,16.4\n6,30.02,19.9\n",
}

func TestForEach(t *testing.T) {
	c := newTestCatalog(t, testBases)
	var order []int64
	rows := 0
	err := c.ForEach(LoadOptions{}, func(hostID int64, tbl *table.Table) error {
		order = append(order, hostID)
		rows += tbl.NumRows()
		return nil
	})
	if err != nil {
		t.Fatalf("ForEach failed: %v", err)
	}
	if diff := cmp.Diff([]int64{61945, 132339, 166313}, order); diff != "" {
		t.Errorf("host order mismatch (-want +got):\n%s", diff)
	}
	if rows != 6 {
		t.Errorf("total rows = %d, want 6", rows)
	}
}

func TestLoadWithCutAndColumns(t *testing.T) {
	c := newTestCatalog(t, testBases)
	results, err := c.Load(LoadOptions{
		Hosts:   "61945,166313",
		Cut:     cuts.MustParse("r_mag < 20.75"),
		Columns: []string{"OBJID"},
	})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	got := make(map[int64][]int64)
	for _, r := range results {
		if r.Table.NumCols() != 1 {
			t.Errorf("host %d: NumCols = %d, want 1", r.HostID, r.Table.NumCols())
		}
		col, err := r.Table.Column("OBJID")
		if err != nil {
			t.Fatal(err)
		}
		got[r.HostID] = col.Ints()
	}
	want := map[int64][]int64{
		61945:  {1},
		166313: {5, 6},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Load mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadStacked(t *testing.T) {
	c := newTestCatalog(t, testBases)
	tbl, err := c.LoadStacked(LoadOptions{Columns: []string{"OBJID"}})
	if err != nil {
		t.Fatalf("LoadStacked failed: %v", err)
	}
	if got := tbl.NumRows(); got != 6 {
		t.Errorf("NumRows = %d, want 6", got)
	}
	col, err := tbl.Column(HostIDColumn)
	if err != nil {
		t.Fatalf("stacked table has no %s column: %v", HostIDColumn, err)
	}
	want := []int64{61945, 61945, 132339, 166313, 166313, 166313}
	if diff := cmp.Diff(want, col.Ints()); diff != "" {
		t.Errorf("%s mismatch (-want +got):\n%s", HostIDColumn, diff)
	}
}

func TestLoadMissingHost(t *testing.T) {
	bases := map[int64]string{
		61945: testBases[61945],
	}
	c := newTestCatalog(t, bases)
	if _, err := c.Load(LoadOptions{}); err == nil {
		t.Fatal("Load succeeded despite missing base catalogs")
	}
	results, err := c.Load(LoadOptions{SkipMissing: true})
	if err != nil {
		t.Fatalf("Load with SkipMissing failed: %v", err)
	}
	if len(results) != 1 || results[0].HostID != 61945 {
		t.Errorf("results = %+v, want single host 61945", results)
	}
}

func TestCount(t *testing.T) {
	c := newTestCatalog(t, testBases)
	counts, err := c.Count(LoadOptions{Cut: cuts.MustParse("r_mag < 20")})
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	want := map[int64]int{61945: 1, 132339: 1, 166313: 2}
	if diff := cmp.Diff(want, counts); diff != "" {
		t.Errorf("Count mismatch (-want +got):\n%s", diff)
	}
}

func TestForEachBadSelector(t *testing.T) {
	c := newTestCatalog(t, testBases)
	err := c.ForEach(LoadOptions{Hosts: "Atlantis"}, func(int64, *table.Table) error { return nil })
	if err == nil {
		t.Fatal("ForEach succeeded for unknown host name")
	}
}
