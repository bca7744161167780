package reconcile

import (
	"context"
	"log/slog"

	"github.com/riverqueue/river"
)

// SweepArgs is the periodic reconciliation job payload.
type SweepArgs struct{}

func (SweepArgs) Kind() string { return "reconcile_sweep" }

// SweepWorker runs the drift-correction pass over all wallets.
type SweepWorker struct {
	river.WorkerDefaults[SweepArgs]
	svc *Service
	log *slog.Logger
}

func NewSweepWorker(svc *Service, log *slog.Logger) *SweepWorker {
	if log == nil {
		log = slog.Default()
	}
	return &SweepWorker{svc: svc, log: log}
}

func (w *SweepWorker) Work(ctx context.Context, _ *river.Job[SweepArgs]) error {
	corrected, err := w.svc.ReconcileAll(ctx)
	if err != nil {
		return err
	}
	if corrected > 0 {
		w.log.Info("reconciliation sweep corrected wallets", "count", corrected)
	}
	return nil
}
