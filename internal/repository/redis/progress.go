package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/JojoWeyn/transcriber/internal/domain/entity"
	"github.com/JojoWeyn/transcriber/internal/domain/usecase"
	"github.com/redis/go-redis/v9"
)

const (
	statusKeyPrefix   = "transcription:status:"
	progressKeyPrefix = "transcription:progress:"

	DefaultStatusTTL = 24 * time.Hour
)

// ProgressChannel fans progress events out over Redis pub/sub and keeps the latest
// event per job under a status key for late subscribers.
type ProgressChannel struct {
	client    *redis.Client
	statusTTL time.Duration
}

func NewProgressChannel(client *redis.Client, statusTTL time.Duration) *ProgressChannel {
	if statusTTL <= 0 {
		statusTTL = DefaultStatusTTL
	}
	return &ProgressChannel{client: client, statusTTL: statusTTL}
}

func statusKey(jobID string) string   { return statusKeyPrefix + jobID }
func progressKey(jobID string) string { return progressKeyPrefix + jobID }

// Publish never waits for subscribers; with none attached the event is dropped
// and only the status key remembers it.
func (p *ProgressChannel) Publish(ctx context.Context, ev entity.ProgressEvent) error {
	if ev.ID == "" {
		return errors.New("progress event without job id")
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode progress event: %w", err)
	}

	_, err = p.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, statusKey(ev.ID), body, p.statusTTL)
		pipe.Publish(ctx, progressKey(ev.ID), body)
		return nil
	})
	if err != nil {
		return fmt.Errorf("publish progress for %s: %w", ev.ID, err)
	}
	return nil
}

func (p *ProgressChannel) LastEvent(ctx context.Context, jobID string) (*entity.ProgressEvent, error) {
	raw, err := p.client.Get(ctx, statusKey(jobID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get status for %s: %w", jobID, err)
	}

	var ev entity.ProgressEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, fmt.Errorf("decode status for %s: %w", jobID, err)
	}
	return &ev, nil
}

func (p *ProgressChannel) Subscribe(ctx context.Context, jobID string) (usecase.Subscription, error) {
	ps := p.client.Subscribe(ctx, progressKey(jobID))
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", progressKey(jobID), err)
	}

	sub := &subscription{
		ps:     ps,
		events: make(chan entity.ProgressEvent),
		done:   make(chan struct{}),
	}
	go sub.decode(ps.Channel())
	return sub, nil
}

type subscription struct {
	ps     *redis.PubSub
	events chan entity.ProgressEvent
	done   chan struct{}
	once   sync.Once
}

func (s *subscription) Events() <-chan entity.ProgressEvent {
	return s.events
}

func (s *subscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.ps.Close()
	})
	return err
}

func (s *subscription) decode(msgs <-chan *redis.Message) {
	defer close(s.events)
	for {
		select {
		case <-s.done:
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			var ev entity.ProgressEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				slog.Warn("dropping malformed progress event", "channel", msg.Channel, "error", err)
				continue
			}
			select {
			case s.events <- ev:
			case <-s.done:
				return
			}
		}
	}
}
