package cleaner

import (
	"fmt"
	"io"
	"sort"
)

// Report counts what a stage did. It is written next to the checkpoint and
// is the oracle the stage tests assert against.
type Report struct {
	Stage       string
	InputRows   int
	OutputRows  int
	RowsDeleted int
	// Rules counts rows affected per rule.
	Rules map[string]int
	// Deleted lists source URLs of deleted rows.
	Deleted []string
	Notes   []string
}

// NewReport starts a report for stage.
func NewReport(stage string) *Report {
	return &Report{Stage: stage, Rules: map[string]int{}}
}

// Count adds one to rule.
func (r *Report) Count(rule string) {
	r.Rules[rule]++
}

// Delete records a deleted row.
func (r *Report) Delete(rule, sourceURL string) {
	r.Rules[rule]++
	if sourceURL != "" {
		r.Deleted = append(r.Deleted, sourceURL)
	}
}

// Note appends a free-form line.
func (r *Report) Note(format string, args ...any) {
	r.Notes = append(r.Notes, fmt.Sprintf(format, args...))
}

// WriteTo renders the report as sorted "key: value" lines.
func (r *Report) WriteTo(w io.Writer) (int64, error) {
	var n int64
	write := func(format string, args ...any) error {
		c, err := fmt.Fprintf(w, format, args...)
		n += int64(c)
		return err
	}
	if err := write("stage: %s\ninput_rows: %d\noutput_rows: %d\nrows_deleted: %d\n",
		r.Stage, r.InputRows, r.OutputRows, r.RowsDeleted); err != nil {
		return n, err
	}

	rules := make([]string, 0, len(r.Rules))
	for k := range r.Rules {
		rules = append(rules, k)
	}
	sort.Strings(rules)
	for _, k := range rules {
		if err := write("rule.%s: %d\n", k, r.Rules[k]); err != nil {
			return n, err
		}
	}
	for _, u := range r.Deleted {
		if err := write("deleted: %s\n", u); err != nil {
			return n, err
		}
	}
	for _, note := range r.Notes {
		if err := write("note: %s\n", note); err != nil {
			return n, err
		}
	}
	return n, nil
}
