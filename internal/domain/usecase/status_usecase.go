package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/JojoWeyn/transcriber/internal/domain/entity"
)

const (
	DefaultGracePeriod = time.Second

	pendingMessage = "Waiting for worker to process"
)

// Subscription is one live attachment to a job's Progress Channel.
type Subscription interface {
	Events() <-chan entity.ProgressEvent
	Close() error
}

type ProgressSubscriber interface {
	Subscribe(ctx context.Context, jobID string) (Subscription, error)
	// LastEvent returns nil, nil when no status has been cached for the job.
	LastEvent(ctx context.Context, jobID string) (*entity.ProgressEvent, error)
}

type TranscriptionReader interface {
	GetTranscription(ctx context.Context, id string) (*entity.Transcription, error)
}

// StatusUseCase relays Progress Channel events for one job to one client.
type StatusUseCase struct {
	Progress    ProgressSubscriber
	Records     TranscriptionReader
	GracePeriod time.Duration
}

func NewStatusUseCase(p ProgressSubscriber, r TranscriptionReader, grace time.Duration) *StatusUseCase {
	if grace <= 0 {
		grace = DefaultGracePeriod
	}
	return &StatusUseCase{
		Progress:    p,
		Records:     r,
		GracePeriod: grace,
	}
}

// GetTranscription returns the record only if it belongs to userID.
func (u *StatusUseCase) GetTranscription(ctx context.Context, id, userID string) (*entity.Transcription, error) {
	t, err := u.Records.GetTranscription(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.UserID != userID {
		return nil, entity.ErrNotFound
	}
	return t, nil
}

// Watch starts relaying events for jobID. The first event is always the last known status.
// The returned channel is closed after a terminal event plus the grace period, or as soon
// as ctx is done; the subscription is released in both cases.
func (u *StatusUseCase) Watch(ctx context.Context, jobID, userID string) (<-chan entity.ProgressEvent, error) {
	record, err := u.Records.GetTranscription(ctx, jobID)
	switch {
	case errors.Is(err, entity.ErrNotFound):
		record = nil
	case err != nil:
		slog.Warn("status read-through failed, falling back", "id", jobID, "error", err)
		record = nil
	case record.UserID != userID:
		return nil, entity.ErrNotFound
	}

	// Subscribe before reading the cached status so nothing published in between is lost.
	sub, err := u.Progress.Subscribe(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("subscribe to progress: %w", err)
	}

	initial := u.initialEvent(ctx, jobID, record)

	out := make(chan entity.ProgressEvent, 1)
	go u.relay(ctx, sub, initial, out)
	return out, nil
}

func (u *StatusUseCase) initialEvent(ctx context.Context, jobID string, record *entity.Transcription) entity.ProgressEvent {
	cached, err := u.Progress.LastEvent(ctx, jobID)
	if err != nil {
		slog.Warn("cached status unavailable", "id", jobID, "error", err)
		cached = nil
	}

	if record != nil && (cached == nil || cached.Status.Precedes(record.Status)) {
		ev := entity.NewProgressEvent(jobID, record.Status, "")
		ev.Timestamp = record.UpdatedAt.UnixMilli()
		return ev
	}
	if cached != nil {
		ev := *cached
		ev.ID = jobID
		return ev
	}
	return entity.NewProgressEvent(jobID, entity.StatusPending, pendingMessage)
}

func (u *StatusUseCase) relay(ctx context.Context, sub Subscription, initial entity.ProgressEvent, out chan<- entity.ProgressEvent) {
	defer close(out)
	defer func() {
		if err := sub.Close(); err != nil {
			slog.Debug("unsubscribe failed", "id", initial.ID, "error", err)
		}
	}()

	if !send(ctx, out, initial) {
		return
	}
	if initial.IsTerminal() {
		u.linger(ctx)
		return
	}

	// Events published between Subscribe and the initial read are already buffered in the
	// subscription; anything not newer than what the client has seen is dropped.
	last := initial
	events := sub.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if ev.ID == "" {
				ev.ID = initial.ID
			}
			if !ev.Supersedes(last) {
				slog.Debug("dropping stale progress event", "id", ev.ID, "status", ev.Status)
				continue
			}
			if !send(ctx, out, ev) {
				return
			}
			last = ev
			if ev.IsTerminal() {
				u.linger(ctx)
				return
			}
		}
	}
}

// linger holds the stream open so the terminal event reaches the client before close.
func (u *StatusUseCase) linger(ctx context.Context) {
	t := time.NewTimer(u.GracePeriod)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

func send(ctx context.Context, out chan<- entity.ProgressEvent, ev entity.ProgressEvent) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
