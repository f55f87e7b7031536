package config

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/dnswlt/skycat/internal/database"
	"github.com/dnswlt/skycat/internal/store"
)

func TestParse(t *testing.T) {
	data := []byte(`
database:
  base-pattern: "base/base_nsa%d.csv.gz"
  cache-size: 8
  entries:
    hosts_no_flags:
      path: hosts/master.csv
      url: https://example.org/master.csv
cuts:
  bright: "r_mag < 20"
  good_spec: "ZQUALITY >= 3"
report:
  title: My survey
spectra:
  mmt: spectra/mmt
`)
	b, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	wantDB := database.Config{
		BasePattern: "base/base_nsa%d.csv.gz",
		CacheSize:   8,
		Entries: map[string]database.Entry{
			"hosts_no_flags": {Path: "hosts/master.csv", URL: "https://example.org/master.csv"},
		},
	}
	if diff := cmp.Diff(wantDB, b.Database); diff != "" {
		t.Errorf("Database mismatch (-want +got):\n%s", diff)
	}
	if got, want := b.Cuts["bright"], "r_mag < 20"; got != want {
		t.Errorf("Cuts[bright] = %q, want %q", got, want)
	}
	if got, want := b.Report.Title, "My survey"; got != want {
		t.Errorf("Report.Title = %q, want %q", got, want)
	}
	if got, want := b.Spectra.MMT, "spectra/mmt"; got != want {
		t.Errorf("Spectra.MMT = %q, want %q", got, want)
	}
}

func TestParseUnknownField(t *testing.T) {
	if _, err := Parse([]byte("databose:\n  cache-size: 8\n")); err == nil {
		t.Fatal("Parse succeeded with unknown field")
	}
}

func TestLoadMissingFile(t *testing.T) {
	st := store.NewDiskStore(t.TempDir())
	b, err := Load(st, DefaultPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if b.Database.CacheSize != 0 || len(b.Cuts) != 0 {
		t.Errorf("missing file did not yield zero bundle: %+v", b)
	}
}

func TestLoadFromStore(t *testing.T) {
	st := store.NewDiskStore(t.TempDir())
	if err := st.WriteFile(DefaultPath, []byte("report:\n  title: Stored\n")); err != nil {
		t.Fatal(err)
	}
	b, err := Load(st, DefaultPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if b.Report.Title != "Stored" {
		t.Errorf("Report.Title = %q, want Stored", b.Report.Title)
	}
}
