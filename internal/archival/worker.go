package archival

import (
	"context"
	"log/slog"

	"github.com/riverqueue/river"
)

// SweepArgs is the periodic archival job payload.
type SweepArgs struct{}

func (SweepArgs) Kind() string { return "conversation_archival_sweep" }

// SweepWorker fires closing warnings and archives due conversations. It is
// restart-safe: everything it acts on is persisted state.
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
	if err := w.svc.SweepWarnings(ctx); err != nil {
		w.log.Error("closing warnings sweep", "error", err)
	}
	archived, err := w.svc.Sweep(ctx)
	if err != nil {
		return err
	}
	if archived > 0 {
		w.log.Info("archival sweep closed conversations", "count", archived)
	}
	return nil
}
