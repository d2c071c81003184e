package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/JojoWeyn/transcriber/internal/domain/entity"
)

type StaleLister interface {
	ListByStatusBefore(ctx context.Context, status entity.JobStatus, before time.Time, limit int) ([]entity.Transcription, error)
	Touch(ctx context.Context, id string) error
}

// ReconcileUseCase re-enqueues records stuck in queued. It is run on demand only.
type ReconcileUseCase struct {
	Records StaleLister
	Queue   QueuePusher

	now func() time.Time
}

func NewReconcileUseCase(r StaleLister, q QueuePusher) *ReconcileUseCase {
	return &ReconcileUseCase{Records: r, Queue: q, now: time.Now}
}

// RequeueStale pushes a fresh entry for every queued record not updated within olderThan.
// A record whose entry is still waiting in the queue will be delivered twice.
func (u *ReconcileUseCase) RequeueStale(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	if olderThan <= 0 {
		return 0, errors.New("older-than must be positive")
	}

	stale, err := u.Records.ListByStatusBefore(ctx, entity.StatusQueued, u.now().Add(-olderThan), limit)
	if err != nil {
		return 0, fmt.Errorf("list stale transcriptions: %w", err)
	}

	requeued := 0
	for i := range stale {
		t := &stale[i]
		if err := u.Queue.Push(ctx, entity.NewQueueEntry(t)); err != nil {
			return requeued, fmt.Errorf("requeue %s: %w", t.ID, err)
		}
		if err := u.Records.Touch(ctx, t.ID); err != nil {
			slog.Warn("requeued record not touched", "id", t.ID, "error", err)
		}
		requeued++
		slog.Info("requeued stale transcription", "id", t.ID, "updatedAt", t.UpdatedAt)
	}
	return requeued, nil
}
