package cleaner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/user/strain-pipeline/internal/table"
	"github.com/user/strain-pipeline/pkg/metrics"
	"go.uber.org/zap"
)

// ErrUnknownStage is returned for a stage id that is not in the pipeline.
var ErrUnknownStage = errors.New("unknown stage")

// CleanFile is the final artifact written after the last stage.
const CleanFile = "master_strains_clean.csv"

// Runner executes a range of stages with on-disk checkpoints in dir.
type Runner struct {
	env    *Env
	dir    string
	stages []Stage
	logger *zap.Logger
}

// NewRunner creates a runner writing checkpoints and reports into dir.
func NewRunner(env *Env, dir string) *Runner {
	metrics.Init()
	return &Runner{env: env, dir: dir, stages: Stages(), logger: env.Logger}
}

// CheckpointPath returns the CSV checkpoint of s.
func (r *Runner) CheckpointPath(s Stage) string {
	return filepath.Join(r.dir, s.File()+".csv")
}

// ReportPath returns the report file of s.
func (r *Runner) ReportPath(s Stage) string {
	return filepath.Join(r.dir, s.File()+"_report.txt")
}

// Stage returns the stage with id.
func (r *Runner) Stage(id string) (Stage, bool) {
	i, err := r.index(id, 0)
	if err != nil {
		return Stage{}, false
	}
	return r.stages[i], true
}

func (r *Runner) index(id string, def int) (int, error) {
	if id == "" {
		return def, nil
	}
	for i, s := range r.stages {
		if s.ID == id || s.File() == id {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%q: %w", id, ErrUnknownStage)
}

func (r *Runner) bounds(from, to string) (int, int, error) {
	lo, err := r.index(from, 0)
	if err != nil {
		return 0, 0, err
	}
	hi, err := r.index(to, len(r.stages)-1)
	if err != nil {
		return 0, 0, err
	}
	if lo > hi {
		return 0, 0, fmt.Errorf("stage %s runs after %s: %w", from, to, ErrUnknownStage)
	}
	return lo, hi, nil
}

func (r *Runner) apply(ctx context.Context, s Stage, in *table.Table) (*table.Table, *Report, error) {
	rep := NewReport(s.File())
	rep.InputRows = in.Len()
	start := time.Now()
	out, err := s.Apply(ctx, r.env, in, rep)
	if err != nil {
		return nil, nil, fmt.Errorf("stage %s: %w", s.File(), err)
	}
	rep.OutputRows = out.Len()
	rep.RowsDeleted = rep.InputRows - rep.OutputRows

	metrics.StageRowsTotal.WithLabelValues(s.File(), "in").Add(float64(rep.InputRows))
	metrics.StageRowsTotal.WithLabelValues(s.File(), "out").Add(float64(rep.OutputRows))
	r.logger.Info("Stage finished",
		zap.String("stage", s.File()),
		zap.Int("input_rows", rep.InputRows),
		zap.Int("output_rows", rep.OutputRows),
		zap.Duration("duration", time.Since(start)),
	)
	return out, rep, nil
}

// Apply runs stages from..to (inclusive, by id) in memory.
func (r *Runner) Apply(ctx context.Context, in *table.Table, from, to string) (*table.Table, []*Report, error) {
	lo, hi, err := r.bounds(from, to)
	if err != nil {
		return nil, nil, err
	}
	var reports []*Report
	for _, s := range r.stages[lo : hi+1] {
		out, rep, err := r.apply(ctx, s, in)
		if err != nil {
			return nil, reports, err
		}
		reports = append(reports, rep)
		in = out
	}
	return in, reports, nil
}

// Run executes stages from..to. The first stage of the pipeline reads
// rawPath; any other stage reads its predecessor's checkpoint. Each stage
// overwrites its checkpoint and report. Finishing the last stage also
// writes CleanFile.
func (r *Runner) Run(ctx context.Context, rawPath, from, to string) ([]*Report, error) {
	lo, hi, err := r.bounds(from, to)
	if err != nil {
		return nil, err
	}

	inPath := rawPath
	if lo > 0 {
		inPath = r.CheckpointPath(r.stages[lo-1])
	}
	in, err := table.Load(inPath, "unify")
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", inPath, ErrMissingInput)
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", inPath, err)
	}

	var reports []*Report
	for _, s := range r.stages[lo : hi+1] {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		out, rep, err := r.apply(ctx, s, in)
		if err != nil {
			return reports, err
		}
		if err := out.Save(r.CheckpointPath(s)); err != nil {
			return reports, err
		}
		if err := table.WriteFileAtomic(r.ReportPath(s), func(w io.Writer) error {
			_, err := rep.WriteTo(w)
			return err
		}); err != nil {
			return reports, fmt.Errorf("write report of %s: %w", s.File(), err)
		}
		reports = append(reports, rep)
		in = out
	}

	if hi == len(r.stages)-1 {
		if err := in.Save(filepath.Join(r.dir, CleanFile)); err != nil {
			return reports, err
		}
	}
	return reports, nil
}

// ReadDeleted returns the source URLs listed as deleted in a stage report.
func ReadDeleted(path string) ([]string, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", path, ErrMissingInput)
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var urls []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if u, ok := strings.CutPrefix(sc.Text(), "deleted: "); ok {
			urls = append(urls, u)
		}
	}
	return urls, sc.Err()
}
