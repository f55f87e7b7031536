// Package report generates a static HTML report of the survey data:
// an index of all hosts plus one page per host with object counts for
// each configured cut.
package report

import (
	"bytes"
	"fmt"
	"html/template"
	"log"
	"os"
	"path/filepath"

	"github.com/yuin/goldmark"

	"github.com/dnswlt/skycat/internal/cuts"
	"github.com/dnswlt/skycat/internal/hosts"
	"github.com/dnswlt/skycat/internal/objects"
	"github.com/dnswlt/skycat/internal/table"
)

// Config controls the generated report.
type Config struct {
	// Title of the index page.
	Title string `yaml:"title"`
	// List selects the host list variant; see the hosts package.
	List string `yaml:"list"`
}

// Generator renders the report pages.
type Generator struct {
	hosts    *hosts.Catalog
	objects  *objects.Catalog
	registry *cuts.Registry
	cfg      Config
}

func New(hc *hosts.Catalog, oc *objects.Catalog, reg *cuts.Registry, cfg Config) *Generator {
	if cfg.Title == "" {
		cfg.Title = "Survey report"
	}
	return &Generator{hosts: hc, objects: oc, registry: reg, cfg: cfg}
}

type hostInfo struct {
	ID      int64
	Name    string
	RA, Dec float64
	Notes   template.HTML
	Counts  []cutCount
}

type cutCount struct {
	Cut   string
	Count int
}

// Generate writes index.html and one page per host into outDir.
// Hosts whose base catalog is missing are listed on the index but get
// no detail page.
func (g *Generator) Generate(outDir string) error {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return err
	}
	infos, err := g.collectHosts()
	if err != nil {
		return err
	}
	var detailed []hostInfo
	for i := range infos {
		counts, err := g.countObjects(infos[i].ID)
		if err != nil {
			log.Printf("No detail page for host %d: %v", infos[i].ID, err)
			continue
		}
		infos[i].Counts = counts
		if err := g.writePage(outDir, hostPage(infos[i].ID), hostTmpl, infos[i]); err != nil {
			return err
		}
		detailed = append(detailed, infos[i])
	}
	return g.writePage(outDir, "index.html", indexTmpl, map[string]any{
		"Title": g.cfg.Title,
		"Hosts": detailed,
	})
}

func (g *Generator) collectHosts() ([]hostInfo, error) {
	t, err := g.hosts.Load(hosts.LoadOptions{List: g.cfg.List})
	if err != nil {
		return nil, err
	}
	idCol, err := t.Column(hosts.IDColumn)
	if err != nil {
		return nil, err
	}
	ids, err := idCol.AsInts()
	if err != nil {
		return nil, err
	}
	raCol, err := t.Column("RA")
	if err != nil {
		return nil, err
	}
	ra, err := raCol.AsFloats()
	if err != nil {
		return nil, err
	}
	decCol, err := t.Column("DEC")
	if err != nil {
		return nil, err
	}
	dec, err := decCol.AsFloats()
	if err != nil {
		return nil, err
	}
	var notes *table.Column
	if t.HasColumn("NOTES") {
		notes, _ = t.Column("NOTES")
	}
	infos := make([]hostInfo, t.NumRows())
	for i := range infos {
		id := ids[i]
		name, err := g.hosts.IDToName(id)
		if err != nil {
			return nil, err
		}
		infos[i] = hostInfo{
			ID:   id,
			Name: name,
			RA:   ra[i],
			Dec:  dec[i],
		}
		if notes != nil {
			md, err := renderMarkdown(notes.Strings()[i])
			if err != nil {
				return nil, err
			}
			infos[i].Notes = md
		}
	}
	return infos, nil
}

// countObjects returns the per-cut object counts for one host, with a
// leading "total" entry for the unfiltered catalog.
func (g *Generator) countObjects(hostID int64) ([]cutCount, error) {
	sel := fmt.Sprintf("%d", hostID)
	counts, err := g.objects.Count(objects.LoadOptions{Hosts: sel})
	if err != nil {
		return nil, err
	}
	result := []cutCount{{Cut: "total", Count: counts[hostID]}}
	for _, name := range g.registry.Names() {
		cut, _ := g.registry.Lookup(name)
		counts, err := g.objects.Count(objects.LoadOptions{Hosts: sel, Cut: cut})
		if err != nil {
			return nil, err
		}
		result = append(result, cutCount{Cut: name, Count: counts[hostID]})
	}
	return result, nil
}

func (g *Generator) writePage(outDir, name string, tmpl *template.Template, data any) error {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("rendering %s: %w", name, err)
	}
	return os.WriteFile(filepath.Join(outDir, name), buf.Bytes(), 0644)
}

func hostPage(id int64) string {
	return fmt.Sprintf("host_%d.html", id)
}

// renderMarkdown converts markdown notes to HTML. The notes are curated
// data, not untrusted input.
func renderMarkdown(src string) (template.HTML, error) {
	if src == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(src), &buf); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

var indexTmpl = template.Must(template.New("index").Funcs(tmplFuncs).Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body>
<h1>{{.Title}}</h1>
<table border="1">
<tr><th>Host</th><th>Name</th><th>RA</th><th>Dec</th><th>Objects</th></tr>
{{range .Hosts}}
<tr>
  <td><a href="{{hostpage .ID}}">{{.ID}}</a></td>
  <td>{{.Name}}</td>
  <td>{{printf "%.4f" .RA}}</td>
  <td>{{printf "%.4f" .Dec}}</td>
  <td>{{(index .Counts 0).Count}}</td>
</tr>
{{end}}
</table>
</body>
</html>
`))

var hostTmpl = template.Must(template.New("host").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>Host {{.ID}}</title></head>
<body>
<h1>Host {{.ID}}{{if .Name}} ({{.Name}}){{end}}</h1>
<p>RA {{printf "%.4f" .RA}}, Dec {{printf "%.4f" .Dec}}</p>
{{if .Notes}}<div class="notes">{{.Notes}}</div>{{end}}
<h2>Object counts</h2>
<table border="1">
<tr><th>Cut</th><th>Count</th></tr>
{{range .Counts}}
<tr><td>{{.Cut}}</td><td>{{.Count}}</td></tr>
{{end}}
</table>
<p><a href="index.html">Back to index</a></p>
</body>
</html>
`))

var tmplFuncs = template.FuncMap{
	"hostpage": hostPage,
}
