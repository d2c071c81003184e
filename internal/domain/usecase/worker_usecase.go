package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/JojoWeyn/transcriber/internal/domain/entity"
)

type Transcriber interface {
	Transcribe(ctx context.Context, audio io.Reader, entry entity.QueueEntry) (*entity.TranscriptResult, error)
}

type ArtifactReader interface {
	GetFileReader(ctx context.Context, key string) (io.ReadCloser, error)
}

type StatusWriter interface {
	UpdateStatus(ctx context.Context, id string, status entity.JobStatus) error
	Complete(ctx context.Context, id string, result entity.TranscriptResult) error
}

type ProgressPublisher interface {
	Publish(ctx context.Context, ev entity.ProgressEvent) error
}

type QueueConsumer interface {
	// PopWait blocks up to timeout and returns nil, nil when nothing arrived.
	PopWait(ctx context.Context, timeout time.Duration) (*entity.QueueEntry, error)
}

// WorkerUseCase drives one queue entry through processing to a terminal status.
type WorkerUseCase struct {
	Records     StatusWriter
	Artifacts   ArtifactReader
	Progress    ProgressPublisher
	Transcriber Transcriber
	PollTimeout time.Duration
}

func NewWorkerUseCase(r StatusWriter, a ArtifactReader, p ProgressPublisher, t Transcriber, pollTimeout time.Duration) *WorkerUseCase {
	if pollTimeout <= 0 {
		pollTimeout = 5 * time.Second
	}
	return &WorkerUseCase{
		Records:     r,
		Artifacts:   a,
		Progress:    p,
		Transcriber: t,
		PollTimeout: pollTimeout,
	}
}

// Run pops entries until ctx is done. An entry popped here is gone from the queue,
// so a crash between pop and the terminal status loses the job.
func (u *WorkerUseCase) Run(ctx context.Context, q QueueConsumer) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		entry, err := q.PopWait(ctx, u.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Error("queue pop failed", "error", err)
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return nil
			}
			continue
		}
		if entry == nil {
			continue
		}

		if err := u.ProcessEntry(ctx, *entry); err != nil {
			slog.Error("transcription failed", "id", entry.TranscriptionID, "error", err)
		}
	}
}

func (u *WorkerUseCase) ProcessEntry(ctx context.Context, entry entity.QueueEntry) error {
	id := entry.TranscriptionID
	log := slog.With("id", id)
	log.Info("processing transcription", "model", entry.Model, "language", entry.Language)

	if err := u.Records.UpdateStatus(ctx, id, entity.StatusProcessing); err != nil {
		if errors.Is(err, entity.ErrInvalidTransition) {
			log.Warn("skipping entry for job that already left queued")
			return nil
		}
		return fmt.Errorf("mark processing: %w", err)
	}
	u.publish(ctx, entity.NewProgressEvent(id, entity.StatusProcessing, "Transcription started").WithProgress(0))

	audio, err := u.Artifacts.GetFileReader(ctx, entry.Filename)
	if err != nil {
		return u.fail(ctx, id, fmt.Errorf("load audio: %w", err))
	}
	defer audio.Close()
	u.publish(ctx, entity.NewProgressEvent(id, entity.StatusProcessing, "Audio loaded").WithProgress(10))

	result, err := u.Transcriber.Transcribe(ctx, audio, entry)
	if err != nil {
		return u.fail(ctx, id, fmt.Errorf("transcribe: %w", err))
	}
	u.publish(ctx, entity.NewProgressEvent(id, entity.StatusProcessing, "Saving transcript").WithProgress(90))

	if err := u.Records.Complete(ctx, id, *result); err != nil {
		return u.fail(ctx, id, fmt.Errorf("save transcript: %w", err))
	}
	u.publish(ctx, entity.NewProgressEvent(id, entity.StatusCompleted, "Transcription completed").WithProgress(100))

	log.Info("transcription completed", "segments", len(result.Segments))
	return nil
}

// fail marks the job failed even when ctx is already canceled, then returns cause.
// A record that already reached a terminal status keeps it and no failure is published.
func (u *WorkerUseCase) fail(ctx context.Context, id string, cause error) error {
	ctx = context.WithoutCancel(ctx)
	if err := u.Records.UpdateStatus(ctx, id, entity.StatusFailed); err != nil {
		if errors.Is(err, entity.ErrInvalidTransition) {
			slog.Warn("job already terminal, failure not published", "id", id, "cause", cause)
			return cause
		}
		slog.Error("mark failed", "id", id, "error", err)
	}
	u.publish(ctx, entity.NewProgressEvent(id, entity.StatusFailed, cause.Error()))
	return cause
}

// publish is best-effort: the Job Record is the durable source of truth.
func (u *WorkerUseCase) publish(ctx context.Context, ev entity.ProgressEvent) {
	if err := u.Progress.Publish(ctx, ev); err != nil {
		slog.Warn("progress publish failed", "id", ev.ID, "status", ev.Status, "error", err)
	}
}
