package cdn

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"go.uber.org/multierr"
)

// Result is the outcome of one upload task.
type Result struct {
	Path     string // relative to the uploaded root
	Key      string
	Size     int64
	Skipped  bool // unchanged since the last recorded upload
	Err      error
	Duration time.Duration
}

// OK reports whether the remote object now matches the local file.
func (r Result) OK() bool { return r.Err == nil }

// Report aggregates the results of one or more upload batches.
type Report struct {
	Results  []Result
	Uploaded int
	Skipped  int
	Failed   int
	Bytes    int64 // bytes actually sent
	Duration time.Duration
}

func newReport(results []Result) Report {
	r := Report{Results: results}
	for _, res := range results {
		r.count(res)
	}
	return r
}

func (r *Report) count(res Result) {
	switch {
	case res.Err != nil:
		r.Failed++
	case res.Skipped:
		r.Skipped++
	default:
		r.Uploaded++
		r.Bytes += res.Size
	}
}

// Merge appends the results of other into r.
func (r *Report) Merge(other Report) {
	for _, res := range other.Results {
		r.Results = append(r.Results, res)
		r.count(res)
	}
	r.Duration += other.Duration
}

// Total is the number of attempted files.
func (r Report) Total() int { return len(r.Results) }

// Succeeded returns the paths whose remote copy is current, keyed by their
// root-relative path.
func (r Report) Succeeded() map[string]bool {
	ok := make(map[string]bool, len(r.Results))
	for _, res := range r.Results {
		if res.OK() {
			ok[res.Path] = true
		}
	}
	return ok
}

// Failures returns the failed results.
func (r Report) Failures() []Result {
	var out []Result
	for _, res := range r.Results {
		if res.Err != nil {
			out = append(out, res)
		}
	}
	return out
}

// Err combines every failure into one error, nil when all succeeded.
func (r Report) Err() error {
	var err error
	for _, res := range r.Results {
		err = multierr.Append(err, res.Err)
	}
	return err
}

// Summary renders the report as a table of failures followed by totals.
func (r Report) Summary() string {
	var b strings.Builder
	if failures := r.Failures(); len(failures) > 0 {
		tw := table.NewWriter()
		tw.SetStyle(table.StyleRounded)
		tw.AppendHeader(table.Row{"Key", "Status", "Error"})
		for _, f := range failures {
			status := "-"
			msg := f.Err.Error()
			var ue *UploadError
			if errors.As(f.Err, &ue) {
				if ue.Status != 0 {
					status = strconv.Itoa(ue.Status)
				}
				msg = ue.Body
				if msg == "" && ue.Err != nil {
					msg = ue.Err.Error()
				}
			}
			tw.AppendRow(table.Row{f.Key, status, text.Trim(msg, 60)})
		}
		tw.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})
		b.WriteString(tw.Render())
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "%d uploaded (%s), %d unchanged, %d failed of %d files in %s",
		r.Uploaded, humanize.Bytes(uint64(r.Bytes)), r.Skipped, r.Failed, r.Total(),
		r.Duration.Round(time.Millisecond))
	return b.String()
}
