package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/JojoWeyn/transcriber/internal/domain/entity"
)

type fakeArtifacts struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
	calls   *[]string
}

func newFakeArtifacts() *fakeArtifacts {
	return &fakeArtifacts{objects: map[string][]byte{}}
}

func (f *fakeArtifacts) Upload(_ context.Context, key string, data []byte, _ string) error {
	if f.calls != nil {
		*f.calls = append(*f.calls, "upload")
	}
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = append([]byte(nil), data...)
	return nil
}

func (f *fakeArtifacts) GetFileReader(_ context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, errors.New("no such key")
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

type fakeRecords struct {
	mu        sync.Mutex
	rows      map[string]*entity.Transcription
	createErr error
	getErr    error
	calls     *[]string
}

func newFakeRecords() *fakeRecords {
	return &fakeRecords{rows: map[string]*entity.Transcription{}}
}

func (f *fakeRecords) CreateTranscription(_ context.Context, t *entity.Transcription) error {
	if f.calls != nil {
		*f.calls = append(*f.calls, "insert")
	}
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *t
	f.rows[t.ID] = &cp
	return nil
}

func (f *fakeRecords) GetTranscription(_ context.Context, id string) (*entity.Transcription, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.rows[id]
	if !ok {
		return nil, entity.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeRecords) UpdateStatus(_ context.Context, id string, status entity.JobStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.rows[id]
	if !ok {
		return entity.ErrNotFound
	}
	if !entity.CanTransition(t.Status, status) {
		return entity.ErrInvalidTransition
	}
	t.Status = status
	t.UpdatedAt = time.Now()
	return nil
}

func (f *fakeRecords) Complete(ctx context.Context, id string, _ entity.TranscriptResult) error {
	return f.UpdateStatus(ctx, id, entity.StatusCompleted)
}

func (f *fakeRecords) status(id string) entity.JobStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[id].Status
}

func (f *fakeRecords) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

type fakeQueue struct {
	mu       sync.Mutex
	entries  []entity.QueueEntry
	failures int
	err      error
	calls    *[]string
}

func (f *fakeQueue) Push(_ context.Context, e entity.QueueEntry) error {
	if f.calls != nil {
		*f.calls = append(*f.calls, "push")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return errors.New("queue unavailable")
	}
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, e)
	return nil
}

func (f *fakeQueue) PopWait(ctx context.Context, timeout time.Duration) (*entity.QueueEntry, error) {
	f.mu.Lock()
	if len(f.entries) > 0 {
		e := f.entries[0]
		f.entries = f.entries[1:]
		f.mu.Unlock()
		return &e, nil
	}
	f.mu.Unlock()

	select {
	case <-time.After(timeout):
	case <-ctx.Done():
	}
	return nil, nil
}

func (f *fakeQueue) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

type fakeSubscription struct {
	ch     chan entity.ProgressEvent
	closed chan struct{}
	once   sync.Once
}

func (s *fakeSubscription) Events() <-chan entity.ProgressEvent { return s.ch }

func (s *fakeSubscription) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

// fakeProgress is an in-process pub/sub that drops events nobody is subscribed to.
type fakeProgress struct {
	mu     sync.Mutex
	subs   map[string][]*fakeSubscription
	last   map[string]entity.ProgressEvent
	events []entity.ProgressEvent
}

func newFakeProgress() *fakeProgress {
	return &fakeProgress{
		subs: map[string][]*fakeSubscription{},
		last: map[string]entity.ProgressEvent{},
	}
}

func (f *fakeProgress) Subscribe(_ context.Context, jobID string) (Subscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := &fakeSubscription{ch: make(chan entity.ProgressEvent, 16), closed: make(chan struct{})}
	f.subs[jobID] = append(f.subs[jobID], s)
	return s, nil
}

func (f *fakeProgress) LastEvent(_ context.Context, jobID string) (*entity.ProgressEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ev, ok := f.last[jobID]
	if !ok {
		return nil, nil
	}
	return &ev, nil
}

func (f *fakeProgress) Publish(_ context.Context, ev entity.ProgressEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last[ev.ID] = ev
	f.events = append(f.events, ev)
	for _, s := range f.subs[ev.ID] {
		select {
		case <-s.closed:
		default:
			s.ch <- ev
		}
	}
	return nil
}

func (f *fakeProgress) published() []entity.ProgressEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]entity.ProgressEvent(nil), f.events...)
}

func (f *fakeProgress) subscription(jobID string, i int) *fakeSubscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subs[jobID][i]
}
