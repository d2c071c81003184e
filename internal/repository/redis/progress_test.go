package redis

import (
	"context"
	"testing"
	"time"

	"github.com/JojoWeyn/transcriber/internal/domain/entity"
	"github.com/JojoWeyn/transcriber/internal/domain/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressFanOut(t *testing.T) {
	client, _ := newTestClient(t)
	pc := NewProgressChannel(client, 0)
	ctx := context.Background()

	a, err := pc.Subscribe(ctx, "job-1")
	require.NoError(t, err)
	defer a.Close()
	b, err := pc.Subscribe(ctx, "job-1")
	require.NoError(t, err)
	defer b.Close()
	other, err := pc.Subscribe(ctx, "job-2")
	require.NoError(t, err)
	defer other.Close()

	ev := entity.NewProgressEvent("job-1", entity.StatusProcessing, "").WithProgress(10)
	require.NoError(t, pc.Publish(ctx, ev))

	assert.Equal(t, ev, receive(t, a.Events()))
	assert.Equal(t, ev, receive(t, b.Events()))

	select {
	case got := <-other.Events():
		t.Fatalf("job-2 subscriber got %+v", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestProgressPreservesOrder(t *testing.T) {
	client, _ := newTestClient(t)
	pc := NewProgressChannel(client, 0)
	ctx := context.Background()

	sub, err := pc.Subscribe(ctx, "job-1")
	require.NoError(t, err)
	defer sub.Close()

	var want []entity.ProgressEvent
	for p := 0; p <= 100; p += 10 {
		ev := entity.NewProgressEvent("job-1", entity.StatusProcessing, "").WithProgress(p)
		want = append(want, ev)
		require.NoError(t, pc.Publish(ctx, ev))
	}

	for _, w := range want {
		assert.Equal(t, w, receive(t, sub.Events()))
	}
}

func TestProgressWithoutSubscribersOnlyUpdatesStatus(t *testing.T) {
	client, mr := newTestClient(t)
	pc := NewProgressChannel(client, time.Hour)
	ctx := context.Background()

	last, err := pc.LastEvent(ctx, "job-1")
	require.NoError(t, err)
	assert.Nil(t, last)

	first := entity.NewProgressEvent("job-1", entity.StatusProcessing, "early")
	require.NoError(t, pc.Publish(ctx, first))

	sub, err := pc.Subscribe(ctx, "job-1")
	require.NoError(t, err)
	defer sub.Close()

	select {
	case got := <-sub.Events():
		t.Fatalf("late subscriber replayed %+v", got)
	case <-time.After(50 * time.Millisecond):
	}

	last, err = pc.LastEvent(ctx, "job-1")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, first, *last)
	assert.Equal(t, time.Hour, mr.TTL(statusKey("job-1")))
}

func TestProgressSubscriptionClose(t *testing.T) {
	client, _ := newTestClient(t)
	pc := NewProgressChannel(client, 0)

	sub, err := pc.Subscribe(context.Background(), "job-1")
	require.NoError(t, err)

	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())

	select {
	case _, ok := <-sub.Events():
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("events channel not closed")
	}
}

func TestPublishRequiresJobID(t *testing.T) {
	client, _ := newTestClient(t)
	assert.Error(t, NewProgressChannel(client, 0).Publish(context.Background(), entity.ProgressEvent{Status: entity.StatusQueued}))
}

type noRecords struct{}

func (noRecords) GetTranscription(context.Context, string) (*entity.Transcription, error) {
	return nil, entity.ErrNotFound
}

// publishingProgress publishes to the real channel between Subscribe and the status read.
type publishingProgress struct {
	*ProgressChannel
	racing []entity.ProgressEvent
}

func (p publishingProgress) Subscribe(ctx context.Context, jobID string) (usecase.Subscription, error) {
	sub, err := p.ProgressChannel.Subscribe(ctx, jobID)
	for _, ev := range p.racing {
		if perr := p.Publish(ctx, ev); perr != nil {
			return nil, perr
		}
	}
	return sub, err
}

func TestStatusStreamNeverGoesBackwards(t *testing.T) {
	client, _ := newTestClient(t)
	pc := NewProgressChannel(client, 0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	p10 := entity.NewProgressEvent("job-1", entity.StatusProcessing, "").WithProgress(10)
	p20 := entity.NewProgressEvent("job-1", entity.StatusProcessing, "").WithProgress(20)
	uc := usecase.NewStatusUseCase(publishingProgress{ProgressChannel: pc, racing: []entity.ProgressEvent{p10, p20}}, noRecords{}, 20*time.Millisecond)

	events, err := uc.Watch(ctx, "job-1", "user-1")
	require.NoError(t, err)

	done := entity.NewProgressEvent("job-1", entity.StatusCompleted, "").WithProgress(100)
	require.NoError(t, pc.Publish(ctx, done))

	var got []entity.ProgressEvent
	timeout := time.After(2 * time.Second)
	for collecting := true; collecting; {
		select {
		case ev, ok := <-events:
			if !ok {
				collecting = false
				break
			}
			got = append(got, ev)
		case <-timeout:
			t.Fatal("stream not closed after terminal event")
		}
	}
	assert.Equal(t, []entity.ProgressEvent{p20, done}, got)
}
