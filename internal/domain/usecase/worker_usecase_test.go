package usecase

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/JojoWeyn/transcriber/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubTranscriber struct {
	result *entity.TranscriptResult
	err    error
	got    []byte
}

func (s *stubTranscriber) Transcribe(_ context.Context, audio io.Reader, _ entity.QueueEntry) (*entity.TranscriptResult, error) {
	s.got, _ = io.ReadAll(audio)
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func newWorkerFixture(tr Transcriber) (*WorkerUseCase, *fakeRecords, *fakeArtifacts, *fakeProgress, entity.QueueEntry) {
	records := newFakeRecords()
	artifacts := newFakeArtifacts()
	progress := newFakeProgress()

	job := &entity.Transcription{ID: "job-1", UserID: "u", AudioRef: "u/job-1.wav", Model: entity.ModelSmall, Language: "en", Status: entity.StatusQueued}
	records.rows[job.ID] = job
	artifacts.objects[job.AudioRef] = []byte("audio")

	return NewWorkerUseCase(records, artifacts, progress, tr, 10*time.Millisecond), records, artifacts, progress, entity.NewQueueEntry(job)
}

func statuses(events []entity.ProgressEvent) []entity.JobStatus {
	out := make([]entity.JobStatus, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Status)
	}
	return out
}

func TestProcessEntryCompletes(t *testing.T) {
	tr := &stubTranscriber{result: &entity.TranscriptResult{Segments: []entity.TranscriptSegment{{Speaker: "SPEAKER_00", Text: "hello", End: 1.5}}}}
	uc, records, _, progress, entry := newWorkerFixture(tr)

	require.NoError(t, uc.ProcessEntry(context.Background(), entry))

	assert.Equal(t, entity.StatusCompleted, records.status("job-1"))
	assert.Equal(t, []byte("audio"), tr.got)

	events := progress.published()
	require.NotEmpty(t, events)
	assert.Equal(t, entity.StatusProcessing, events[0].Status)
	last := events[len(events)-1]
	assert.Equal(t, entity.StatusCompleted, last.Status)
	assert.Equal(t, 100, *last.Progress)
}

func TestProcessEntryMarksFailure(t *testing.T) {
	tr := &stubTranscriber{err: errors.New("model crashed")}
	uc, records, _, progress, entry := newWorkerFixture(tr)

	err := uc.ProcessEntry(context.Background(), entry)
	require.Error(t, err)

	assert.Equal(t, entity.StatusFailed, records.status("job-1"))
	events := progress.published()
	last := events[len(events)-1]
	assert.Equal(t, entity.StatusFailed, last.Status)
	assert.Contains(t, last.Message, "model crashed")
	assert.Equal(t, []entity.JobStatus{entity.StatusProcessing, entity.StatusProcessing, entity.StatusFailed}, statuses(events))
}

func TestProcessEntryMissingArtifactFails(t *testing.T) {
	uc, records, artifacts, _, entry := newWorkerFixture(&stubTranscriber{})
	delete(artifacts.objects, entry.Filename)

	require.Error(t, uc.ProcessEntry(context.Background(), entry))
	assert.Equal(t, entity.StatusFailed, records.status("job-1"))
}

func TestProcessEntrySkipsRedelivery(t *testing.T) {
	uc, records, _, progress, entry := newWorkerFixture(&stubTranscriber{})
	records.rows["job-1"].Status = entity.StatusCompleted

	require.NoError(t, uc.ProcessEntry(context.Background(), entry))
	assert.Equal(t, entity.StatusCompleted, records.status("job-1"))
	assert.Empty(t, progress.published())
}

func TestFailLeavesTerminalRecordAlone(t *testing.T) {
	uc, records, _, progress, _ := newWorkerFixture(&stubTranscriber{})
	records.rows["job-1"].Status = entity.StatusCompleted

	cause := errors.New("late failure")
	assert.Equal(t, cause, uc.fail(context.Background(), "job-1", cause))

	assert.Equal(t, entity.StatusCompleted, records.status("job-1"))
	assert.Empty(t, progress.published())
	last, err := progress.LastEvent(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Nil(t, last)
}

func TestRunDrainsQueueUntilCanceled(t *testing.T) {
	tr := &stubTranscriber{result: &entity.TranscriptResult{}}
	uc, records, _, _, entry := newWorkerFixture(tr)
	q := &fakeQueue{entries: []entity.QueueEntry{entry}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- uc.Run(ctx, q) }()

	require.Eventually(t, func() bool {
		return records.status("job-1") == entity.StatusCompleted
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}
