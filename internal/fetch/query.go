package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"text/template"

	"github.com/cenkalti/backoff/v4"
)

// A Query produces the raw bytes of one catalog, typically for a single host.
type Query interface {
	// Run executes the query and returns the downloaded payload.
	Run(ctx context.Context, c *Client) ([]byte, error)
	// String returns a short description for log messages.
	String() string
}

// WISEQuery downloads a cone-search catalog from a WISE-style service
// that returns the result directly in the HTTP response.
type WISEQuery struct {
	// BaseURL of the query service, without trailing slash.
	BaseURL string
	// RA and Dec of the search center, in degrees.
	RA  float64
	Dec float64
	// Radius of the search cone, in degrees.
	Radius float64
}

func (q *WISEQuery) URL() string {
	v := url.Values{}
	v.Set("ra", fmt.Sprintf("%.6f", q.RA))
	v.Set("dec", fmt.Sprintf("%.6f", q.Dec))
	v.Set("radius", fmt.Sprintf("%.6f", q.Radius))
	return q.BaseURL + "/query?" + v.Encode()
}

func (q *WISEQuery) Run(ctx context.Context, c *Client) ([]byte, error) {
	return c.Get(ctx, q.URL())
}

func (q *WISEQuery) String() string {
	return fmt.Sprintf("wise(ra=%.4f, dec=%.4f, r=%.4f)", q.RA, q.Dec, q.Radius)
}

// sdssTemplate is the cone-search query run per host against the SDSS
// photometric and spectroscopic tables.
const sdssTemplate = `
SELECT p.objid AS OBJID, p.ra AS RA, p.dec AS DEC,
       p.modelMag_r AS r_mag, p.modelMagErr_r AS r_err,
       p.modelMag_g AS g_mag, p.modelMagErr_g AS g_err,
       p.modelMag_i AS i_mag, p.modelMagErr_i AS i_err,
       p.petroRad_r AS PETRORAD_R, p.flags AS FLAGS,
       ISNULL(s.z, -1) AS SPEC_Z, ISNULL(s.zErr, -1) AS SPEC_Z_ERR,
       ISNULL(s.zWarning, -1) AS SPEC_Z_WARN
FROM PhotoPrimary p
LEFT JOIN SpecObj s ON p.objid = s.bestObjID
WHERE p.ra BETWEEN {{.RAMin}} AND {{.RAMax}}
  AND p.dec BETWEEN {{.DecMin}} AND {{.DecMax}}
`

var whitespaceRE = regexp.MustCompile(`\s+`)

// SDSS CasJobs job status codes.
const (
	sdssJobCancelled = 3
	sdssJobFailed    = 4
	sdssJobDone      = 5
)

// SDSSQuery runs a SQL query as an asynchronous CasJobs-style job:
// submit the query, poll the job status until it is done, then download
// the output.
type SDSSQuery struct {
	// BaseURL of the job service, without trailing slash.
	BaseURL string
	// RA and Dec of the search center, in degrees.
	RA  float64
	Dec float64
	// Radius of the search box half-width, in degrees.
	Radius float64
}

// SQL returns the query text with whitespace collapsed, as the job
// service expects a single-line query.
func (q *SDSSQuery) SQL() (string, error) {
	tmpl, err := template.New("sdss").Parse(sdssTemplate)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	err = tmpl.Execute(&sb, map[string]float64{
		"RAMin":  q.RA - q.Radius,
		"RAMax":  q.RA + q.Radius,
		"DecMin": q.Dec - q.Radius,
		"DecMax": q.Dec + q.Radius,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(whitespaceRE.ReplaceAllString(sb.String(), " ")), nil
}

type sdssJob struct {
	JobID string `json:"jobId"`
}

type sdssStatus struct {
	Code   int    `json:"code"`
	Status string `json:"status"`
}

func (q *SDSSQuery) Run(ctx context.Context, c *Client) ([]byte, error) {
	sql, err := q.SQL()
	if err != nil {
		return nil, err
	}
	body, err := c.Post(ctx, q.BaseURL+"/jobs/submit", "text/plain", []byte(sql))
	if err != nil {
		return nil, fmt.Errorf("submitting query job: %w", err)
	}
	var job sdssJob
	if err := json.Unmarshal(body, &job); err != nil {
		return nil, fmt.Errorf("invalid job submission response: %v", err)
	}
	if job.JobID == "" {
		return nil, fmt.Errorf("job submission returned no job ID")
	}
	if err := q.awaitJob(ctx, c, job.JobID); err != nil {
		return nil, err
	}
	return c.Get(ctx, q.BaseURL+"/jobs/output?id="+url.QueryEscape(job.JobID))
}

// awaitJob polls the job status with exponential backoff until the job
// reaches a terminal state.
func (q *SDSSQuery) awaitJob(ctx context.Context, c *Client, jobID string) error {
	statusURL := q.BaseURL + "/jobs/status?id=" + url.QueryEscape(jobID)
	op := func() error {
		body, err := c.Get(ctx, statusURL)
		if err != nil {
			return backoff.Permanent(err)
		}
		var st sdssStatus
		if err := json.Unmarshal(body, &st); err != nil {
			return backoff.Permanent(fmt.Errorf("invalid job status response: %v", err))
		}
		switch st.Code {
		case sdssJobDone:
			return nil
		case sdssJobCancelled, sdssJobFailed:
			return backoff.Permanent(fmt.Errorf("query job %s ended with status %q", jobID, st.Status))
		default:
			return fmt.Errorf("query job %s still pending (%q)", jobID, st.Status)
		}
	}
	return backoff.Retry(op, backoff.WithContext(backoff.NewExponentialBackOff(), ctx))
}

func (q *SDSSQuery) String() string {
	return fmt.Sprintf("sdss(ra=%.4f, dec=%.4f, r=%.4f)", q.RA, q.Dec, q.Radius)
}
