package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/contact-intel/internal/model"
	"github.com/sells-group/contact-intel/internal/report"
)

// tracker records stage results on the output and, when a store is
// configured, on the run. Store errors while tracking are logged only.
type tracker struct {
	p   *Pipeline
	out *Output
	log *zap.Logger
}

func (t *tracker) setStatus(ctx context.Context, status model.RunStatus) {
	t.out.Status = status
	if t.p.store == nil {
		return
	}
	if err := t.p.store.UpdateRunStatus(ctx, t.out.RunID, status); err != nil {
		t.log.Warn("pipeline: failed to update status", zap.String("status", string(status)), zap.Error(err))
	}
}

func (t *tracker) record(ctx context.Context, res model.StageResult) {
	t.out.Stages = append(t.out.Stages, res)
	if t.p.store == nil {
		return
	}
	if err := t.p.store.SaveStage(ctx, t.out.RunID, res); err != nil {
		t.log.Warn("pipeline: failed to save stage", zap.String("stage", res.Name), zap.Error(err))
	}
}

// stage runs fn and records how it went. fn reports processed and failed
// item counts.
func (t *tracker) stage(ctx context.Context, name string, status model.RunStatus, fn func() (int, int, error)) {
	t.setStatus(ctx, status)

	start := time.Now()
	processed, failed, err := fn()
	res := model.StageResult{
		Name:       name,
		Status:     model.StageComplete,
		Processed:  processed,
		Failed:     failed,
		DurationMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		res.Status = model.StageFailed
		res.Error = err.Error()
		t.log.Error("pipeline: stage failed",
			zap.String("stage", name),
			zap.Int64("duration_ms", res.DurationMs),
			zap.Error(err),
		)
	} else {
		t.log.Info("pipeline: stage complete",
			zap.String("stage", name),
			zap.Int("processed", processed),
			zap.Int("failed", failed),
			zap.Int64("duration_ms", res.DurationMs),
		)
	}
	t.record(ctx, res)
}

func (t *tracker) skip(ctx context.Context, name string) {
	t.record(ctx, model.StageResult{Name: name, Status: model.StageSkipped})
}

// checkpoint stops the run when ctx is done, marking the remaining stages
// skipped and the run interrupted.
func (t *tracker) checkpoint(ctx context.Context, after string) error {
	if ctx.Err() == nil {
		return nil
	}
	err := eris.Wrapf(ctx.Err(), "pipeline: interrupted after %s", after)
	remaining := false
	for _, name := range stageOrder {
		if remaining {
			t.skip(context.WithoutCancel(ctx), name)
		}
		if name == after {
			remaining = true
		}
	}
	t.out.Stats = report.Compute(t.out.ReportInput())
	t.finish(ctx, model.RunStatusInterrupted, err)
	return err
}

// finish closes the run record. It uses a context detached from
// cancellation so an interrupted run can still be marked as such.
func (t *tracker) finish(ctx context.Context, status model.RunStatus, runErr error) {
	t.out.Status = status
	if t.p.store == nil {
		return
	}
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	if err := t.p.store.CompleteRun(context.WithoutCancel(ctx), t.out.RunID, status, &t.out.Stats, msg); err != nil {
		t.log.Warn("pipeline: failed to complete run", zap.Error(err))
	}
}
