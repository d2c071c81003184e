package usecase

import (
	"context"
	"log/slog"
	"mime"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/JojoWeyn/transcriber/internal/domain/entity"
	"github.com/google/uuid"
)

type ArtifactUploader interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) error
}

type TranscriptionCreator interface {
	CreateTranscription(ctx context.Context, t *entity.Transcription) error
}

type QueuePusher interface {
	Push(ctx context.Context, entry entity.QueueEntry) error
}

// Submission is one validated-on-arrival upload request.
type Submission struct {
	Audio        []byte
	OriginalName string
	ContentType  string

	Title             string
	Language          string
	Model             entity.Model
	IsSpeakerDiarized bool
	NumberOfSpeaker   int

	UserID string
}

type IntakeUseCase struct {
	Artifacts     ArtifactUploader
	Records       TranscriptionCreator
	Queue         QueuePusher
	MaxAudioBytes int64
	Retry         RetryPolicy

	newID func() string
	now   func() time.Time
}

func NewIntakeUseCase(a ArtifactUploader, r TranscriptionCreator, q QueuePusher, maxAudioBytes int64, retry RetryPolicy) *IntakeUseCase {
	return &IntakeUseCase{
		Artifacts:     a,
		Records:       r,
		Queue:         q,
		MaxAudioBytes: maxAudioBytes,
		Retry:         retry,
		newID:         uuid.NewString,
		now:           time.Now,
	}
}

// Submit stores the audio, inserts the record and enqueues the work ticket, in that order.
// Nothing is rolled back: an artifact without a record, or a record without a queue entry,
// is left behind when a later step fails.
func (u *IntakeUseCase) Submit(ctx context.Context, s Submission) (*entity.Transcription, error) {
	if verr := ValidateSubmission(s, u.MaxAudioBytes); verr != nil {
		return nil, verr
	}

	jobID := u.newID()
	contentType := s.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	key := ArtifactKey(s.UserID, jobID, audioExtension(s.OriginalName, s.ContentType))

	if err := u.Artifacts.Upload(ctx, key, s.Audio, contentType); err != nil {
		return nil, &StorageError{Stage: StageArtifact, Err: err}
	}

	numberOfSpeaker := 0
	if s.IsSpeakerDiarized {
		numberOfSpeaker = s.NumberOfSpeaker
	}

	now := u.now().UTC()
	job := &entity.Transcription{
		ID:                jobID,
		UserID:            s.UserID,
		Title:             strings.TrimSpace(s.Title),
		Language:          strings.TrimSpace(s.Language),
		Model:             s.Model,
		IsSpeakerDiarized: s.IsSpeakerDiarized,
		NumberOfSpeaker:   numberOfSpeaker,
		AudioRef:          key,
		OriginalName:      s.OriginalName,
		ContentType:       contentType,
		Size:              int64(len(s.Audio)),
		Status:            entity.StatusQueued,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := u.Records.CreateTranscription(ctx, job); err != nil {
		slog.Warn("audio artifact left without a record", "key", key, "error", err)
		return nil, &StorageError{Stage: StageRecord, Err: err}
	}

	entry := entity.NewQueueEntry(job)
	err := withRetry(ctx, u.Retry, func(ctx context.Context) error {
		return u.Queue.Push(ctx, entry)
	})
	if err != nil {
		slog.Error("transcription record left queued without a queue entry", "id", jobID, "error", err)
		return nil, &StorageError{Stage: StageEnqueue, Err: err}
	}

	slog.Info("transcription queued", "id", jobID, "user", s.UserID, "model", s.Model, "size", job.Size)
	return job, nil
}

var unsafeExt = regexp.MustCompile(`[^a-z0-9]`)

// ArtifactKey builds the Artifact Store key for an upload.
func ArtifactKey(userID, randomID, ext string) string {
	return userID + "/" + randomID + "." + ext
}

// audioExtension prefers the uploaded file's extension, then the MIME subtype, then webm.
func audioExtension(name, contentType string) string {
	if ext := cleanExt(filepath.Ext(name)); ext != "" {
		return ext
	}
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		if _, sub, ok := strings.Cut(mt, "/"); ok {
			if ext := cleanExt(sub); ext != "" {
				return ext
			}
		}
	}
	return "webm"
}

func cleanExt(ext string) string {
	ext = unsafeExt.ReplaceAllString(strings.ToLower(strings.TrimPrefix(ext, ".")), "")
	if len(ext) > 10 {
		return ""
	}
	return ext
}
