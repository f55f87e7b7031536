package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterbourgon/ff/v3"

	"github.com/dnswlt/skycat/internal/config"
	"github.com/dnswlt/skycat/internal/cuts"
	"github.com/dnswlt/skycat/internal/database"
	"github.com/dnswlt/skycat/internal/fetch"
	"github.com/dnswlt/skycat/internal/gitclient"
	"github.com/dnswlt/skycat/internal/hosts"
	"github.com/dnswlt/skycat/internal/objects"
	"github.com/dnswlt/skycat/internal/report"
	"github.com/dnswlt/skycat/internal/spectra"
	"github.com/dnswlt/skycat/internal/store"
	"github.com/dnswlt/skycat/internal/table"
)

var (
	// Version is the application version.
	// It is set at build time via -ldflags "-X main.Version=...".
	Version = "dev"
)

// Options contains program options that can be set via command-line flags or environment variables.
type Options struct {
	RootDir    string
	GitURL     string
	GitRef     string
	ConfigFile string
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	switch os.Args[1] {
	case "hosts":
		runHosts(os.Args[2:])
	case "objects":
		runObjects(os.Args[2:])
	case "fetch":
		runFetch(os.Args[2:])
	case "spectra":
		runSpectra(os.Args[2:])
	case "report":
		runReport(os.Args[2:])
	case "version":
		fmt.Println(Version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command %q.\n", os.Args[1])
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: skycat <command> [flags]")
	fmt.Fprintln(os.Stderr, "Available commands: hosts, objects, fetch, spectra, report, version")
}

// storeFlags registers the flags shared by all subcommands.
func storeFlags(fs *flag.FlagSet, opts *Options) {
	fs.StringVar(&opts.RootDir, "root-dir", ".", "Root directory of the local data store")
	fs.StringVar(&opts.GitURL, "git-url", "", "URL of the git repository to use as the data store")
	fs.StringVar(&opts.GitRef, "git-ref", "", "Git ref (branch or tag) to use")
	fs.StringVar(&opts.ConfigFile, "config", config.DefaultPath, "Path to the configuration YAML file (relative to git root or local -root-dir)")
}

func parseFlags(fs *flag.FlagSet, args []string) {
	if err := ff.Parse(fs, args, ff.WithEnvVarPrefix("SKYCAT")); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		os.Exit(1)
	}
}

func gitClientAuthFromEnv() *gitclient.Auth {
	user := os.Getenv("SKYCAT_GIT_USER")
	if user == "" {
		return nil
	}
	pass := os.Getenv("SKYCAT_GIT_PASSWORD")
	return &gitclient.Auth{
		Username: user,
		Password: pass,
	}
}

func createStore(opts Options) store.Store {
	if opts.GitURL != "" {
		auth := gitClientAuthFromEnv()
		log.Printf("Retrieving catalogs from git URL %s", opts.GitURL)
		client, err := gitclient.New(opts.GitURL, auth)
		if err != nil {
			log.Fatalf("Failed to retrieve git repo: %v", err)
		}
		ref := opts.GitRef
		if ref == "" {
			ref, err = client.DefaultBranch()
			if err != nil {
				log.Fatalf("No git-ref specified and no default branch found: %v", err)
			}
			log.Printf("Using default git branch %q", ref)
		}
		src := store.NewGitSource(client, ref)
		st, err := src.Store(ref)
		if err != nil {
			log.Fatalf("Cannot open git store at ref %q: %v", ref, err)
		}
		return st
	}
	if opts.RootDir != "" {
		log.Printf("Using local store at %s", opts.RootDir)
		return store.NewDiskStore(opts.RootDir)
	}
	log.Fatalf("Neither -root-dir nor -git-url specified")
	return nil
}

// env bundles everything a subcommand needs to access the catalogs.
type env struct {
	store   store.Store
	bundle  *config.Bundle
	db      *database.Database
	hosts   *hosts.Catalog
	objects *objects.Catalog
	cuts    *cuts.Registry
}

func newEnv(opts Options) *env {
	return newEnvWithStore(opts, createStore(opts))
}

func newEnvWithStore(opts Options, st store.Store) *env {
	bundle, err := config.Load(st, opts.ConfigFile)
	if err != nil {
		log.Fatalf("Cannot load config: %v", err)
	}
	db, err := database.Open(st, bundle.Database)
	if err != nil {
		log.Fatalf("Cannot open database: %v", err)
	}
	reg, err := cuts.NewRegistryFromConfig(bundle.Cuts)
	if err != nil {
		log.Fatalf("Invalid cut in config: %v", err)
	}
	hc := hosts.New(db)
	return &env{
		store:   st,
		bundle:  bundle,
		db:      db,
		hosts:   hc,
		objects: objects.New(db, hc),
		cuts:    reg,
	}
}

// resolveCut parses a cut expression, looking up names in the config
// registry first. Empty means no cut.
func (e *env) resolveCut(expr string) cuts.Cut {
	if expr == "" {
		return nil
	}
	if c, err := e.cuts.Lookup(expr); err == nil {
		return c
	}
	c, err := cuts.Parse(expr)
	if err != nil {
		log.Fatalf("Invalid cut %q: %v", expr, err)
	}
	return c
}

// writeTable writes a table as CSV to stdout or, if out is non-empty,
// to the given file.
func writeTable(t *table.Table, out string) {
	if out == "" {
		if err := table.WriteCSV(os.Stdout, t); err != nil {
			log.Fatalf("Cannot write table: %v", err)
		}
		return
	}
	if err := table.WriteFile(out, t); err != nil {
		log.Fatalf("Cannot write %s: %v", out, err)
	}
	log.Printf("Wrote %d rows to %s", t.NumRows(), out)
}

func runHosts(args []string) {
	var opts Options
	fs := flag.NewFlagSet("skycat hosts", flag.ExitOnError)
	storeFlags(fs, &opts)
	list := fs.String("list", hosts.ListNoFlags, "Host list variant (no_flags or no_sdss_flags)")
	cutExpr := fs.String("cut", "", "Cut expression or named cut to filter hosts")
	selector := fs.String("hosts", "", "Host selector (IDs, names, all, paper1, ...); empty means the full list")
	out := fs.String("out", "", "Output CSV file; empty writes to stdout")
	parseFlags(fs, args)

	e := newEnv(opts)
	lopts := hosts.LoadOptions{List: *list, Cut: e.resolveCut(*cutExpr)}
	var t *table.Table
	var err error
	if *selector == "" {
		t, err = e.hosts.Load(lopts)
	} else {
		t, err = e.hosts.LoadIDs(*selector, lopts)
	}
	if err != nil {
		log.Fatalf("Cannot load hosts: %v", err)
	}
	writeTable(t, *out)
}

func runObjects(args []string) {
	var opts Options
	fs := flag.NewFlagSet("skycat objects", flag.ExitOnError)
	storeFlags(fs, &opts)
	selector := fs.String("hosts", "all", "Host selector (IDs, names, all, paper1, ...)")
	cutExpr := fs.String("cut", "", "Cut expression or named cut to filter objects")
	columns := fs.String("columns", "", "Comma-separated list of columns to keep; empty keeps all")
	skipMissing := fs.Bool("skip-missing", false, "Skip hosts without a base catalog instead of failing")
	stacked := fs.Bool("stacked", true, "Stack all hosts into one table with a HOST_NSAID column")
	matchSpectra := fs.Bool("match-spectra", false, "Join redshifts from the configured spectra directories by sky coordinates (stacked output only)")
	out := fs.String("out", "", "Output CSV file (stacked) or file pattern with %d (per host); empty writes to stdout")
	parseFlags(fs, args)

	e := newEnv(opts)
	lopts := objects.LoadOptions{
		Hosts:       *selector,
		Cut:         e.resolveCut(*cutExpr),
		SkipMissing: *skipMissing,
	}
	if *columns != "" {
		lopts.Columns = strings.Split(*columns, ",")
	}
	if *stacked {
		t, err := e.objects.LoadStacked(lopts)
		if err != nil {
			log.Fatalf("Cannot load objects: %v", err)
		}
		if *matchSpectra {
			specs, err := readSpectra(opts, e)
			if err != nil {
				log.Fatalf("Cannot read spectra: %v", err)
			}
			n, err := spectra.MatchToObjects(t, specs, 0)
			if err != nil {
				log.Fatalf("Cannot match spectra: %v", err)
			}
			log.Printf("Matched spectra to %d of %d objects", n, t.NumRows())
		}
		writeTable(t, *out)
		return
	}
	if *matchSpectra {
		log.Fatalf("-match-spectra requires -stacked")
	}
	if *out != "" && !strings.Contains(*out, "%d") {
		log.Fatalf("Per-host output requires a %%d verb in -out")
	}
	err := e.objects.ForEach(lopts, func(hostID int64, t *table.Table) error {
		path := ""
		if *out != "" {
			path = fmt.Sprintf(*out, hostID)
		}
		writeTable(t, path)
		return nil
	})
	if err != nil {
		log.Fatalf("Cannot load objects: %v", err)
	}
}

func runFetch(args []string) {
	var opts Options
	fs := flag.NewFlagSet("skycat fetch", flag.ExitOnError)
	storeFlags(fs, &opts)
	selector := fs.String("hosts", "all", "Host selector for the downloads")
	source := fs.String("source", "sdss", "Catalog source (sdss or wise)")
	baseURL := fs.String("base-url", "", "Base URL of the query service")
	radius := fs.Float64("radius", 1.0, "Search radius around each host, in degrees")
	overwrite := fs.Bool("overwrite", false, "Replace existing catalog files")
	compress := fs.Bool("compress", true, "Gzip downloaded catalogs")
	minSize := fs.Int64("min-size", fetch.DefaultMinSize, "Treat smaller downloads as corrupt (0 disables)")
	pattern := fs.String("pattern", "", "Local file pattern with a %d verb for the host ID; defaults to the database base pattern")
	parseFlags(fs, args)

	if *baseURL == "" {
		log.Fatalf("-base-url is required")
	}
	ds, ok := createStore(opts).(*store.DiskStore)
	if !ok {
		log.Fatalf("fetch requires a writable local store (-root-dir)")
	}
	e := newEnvWithStore(opts, ds)
	hostTable, err := e.hosts.LoadIDs(*selector, hosts.LoadOptions{})
	if err != nil {
		log.Fatalf("Cannot load hosts: %v", err)
	}
	pat := *pattern
	if pat == "" {
		pat = e.bundle.Database.BasePattern
		if pat == "" {
			pat = database.DefaultBasePattern
		}
	}
	if *compress && !strings.HasSuffix(pat, ".gz") {
		pat += ".gz"
	}
	if *source != "sdss" && *source != "wise" {
		log.Fatalf("Unknown source %q (want sdss or wise)", *source)
	}
	newQuery := func(ra, dec float64) fetch.Query {
		if *source == "wise" {
			return &fetch.WISEQuery{BaseURL: *baseURL, RA: ra, Dec: dec, Radius: *radius}
		}
		return &fetch.SDSSQuery{BaseURL: *baseURL, RA: ra, Dec: dec, Radius: *radius}
	}
	fopts := fetch.Options{Overwrite: *overwrite, Compress: *compress, MinSize: *minSize}
	failed, err := fetch.DownloadForHosts(context.Background(), fetch.NewClient(), hostTable,
		newQuery, filepath.Join(ds.RootDir(), filepath.FromSlash(pat)), fetch.DefaultHostColumns, fopts)
	if len(failed) > 0 {
		log.Printf("Downloads failed for %d hosts: %v", len(failed), failed)
	}
	if err != nil {
		log.Fatalf("Fetch finished with errors: %v", err)
	}
	log.Printf("Downloaded catalogs for %d hosts", hostTable.NumRows())
}

func runSpectra(args []string) {
	var opts Options
	fs := flag.NewFlagSet("skycat spectra", flag.ExitOnError)
	storeFlags(fs, &opts)
	cutExpr := fs.String("cut", "", "Cut expression or named cut to filter the stacked spectra")
	out := fs.String("out", "", "Output CSV file; empty writes to stdout")
	parseFlags(fs, args)

	e := newEnv(opts)
	t, err := readSpectra(opts, e)
	if err != nil {
		log.Fatalf("Cannot read spectra: %v", err)
	}
	t, err = cuts.Filter(t, e.resolveCut(*cutExpr))
	if err != nil {
		log.Fatalf("Cannot apply cut: %v", err)
	}
	writeTable(t, *out)
}

// readSpectra stacks all spectra from the directories configured in the
// config bundle, resolved relative to the local root dir.
func readSpectra(opts Options, e *env) (*table.Table, error) {
	sd := e.bundle.Spectra
	abs := func(dir string) string {
		if dir == "" {
			return ""
		}
		return filepath.Join(opts.RootDir, filepath.FromSlash(dir))
	}
	return spectra.ReadAll(spectra.Dirs{
		MMT:     abs(sd.MMT),
		AAT:     abs(sd.AAT),
		AATmz:   abs(sd.AATmz),
		IMACS:   abs(sd.IMACS),
		Palomar: abs(sd.Palomar),
	})
}

func runReport(args []string) {
	var opts Options
	fs := flag.NewFlagSet("skycat report", flag.ExitOnError)
	storeFlags(fs, &opts)
	outDir := fs.String("out-dir", "report", "Output directory for the report")
	parseFlags(fs, args)

	e := newEnv(opts)
	gen := report.New(e.hosts, e.objects, e.cuts, e.bundle.Report)
	if err := gen.Generate(*outDir); err != nil {
		log.Fatalf("Failed to generate report: %v", err)
	}
	log.Printf("Report generated in %q", *outDir)
}
