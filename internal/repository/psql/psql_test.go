package psql

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/JojoWeyn/transcriber/internal/domain/entity"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestRepo(t *testing.T) *GormTranscriptionRepo {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	repo := NewGormTranscriptionRepo(db)
	require.NoError(t, repo.Migrate(context.Background()))
	return repo
}

func seed(t *testing.T, repo *GormTranscriptionRepo, status entity.JobStatus) *entity.Transcription {
	t.Helper()
	now := time.Now().UTC()
	tr := &entity.Transcription{
		ID:        uuid.NewString(),
		UserID:    "user-1",
		Title:     "Standup",
		Language:  "en",
		Model:     entity.ModelMedium,
		AudioRef:  "user-1/x.webm",
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, repo.CreateTranscription(context.Background(), tr))
	return tr
}

func TestCreateAndGet(t *testing.T) {
	repo := newTestRepo(t)
	tr := seed(t, repo, entity.StatusQueued)

	got, err := repo.GetTranscription(context.Background(), tr.ID)
	require.NoError(t, err)
	assert.Equal(t, tr.Title, got.Title)
	assert.Equal(t, entity.StatusQueued, got.Status)
	assert.Empty(t, got.Metadata)

	_, err = repo.GetTranscription(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestUpdateStatusIsForwardOnly(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	tr := seed(t, repo, entity.StatusQueued)

	require.NoError(t, repo.UpdateStatus(ctx, tr.ID, entity.StatusProcessing))
	assert.ErrorIs(t, repo.UpdateStatus(ctx, tr.ID, entity.StatusProcessing), entity.ErrInvalidTransition)
	require.NoError(t, repo.UpdateStatus(ctx, tr.ID, entity.StatusFailed))
	assert.ErrorIs(t, repo.UpdateStatus(ctx, tr.ID, entity.StatusQueued), entity.ErrInvalidTransition)
	assert.ErrorIs(t, repo.UpdateStatus(ctx, tr.ID, entity.StatusCompleted), entity.ErrInvalidTransition)

	got, err := repo.GetTranscription(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusFailed, got.Status)

	assert.ErrorIs(t, repo.UpdateStatus(ctx, uuid.NewString(), entity.StatusProcessing), entity.ErrNotFound)
}

func TestCompleteStoresMetadata(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	tr := seed(t, repo, entity.StatusProcessing)

	result := entity.TranscriptResult{
		Segments: []entity.TranscriptSegment{{Speaker: "SPEAKER_00", Text: "hi", Start: 0, End: 1.2}},
		Summary:  "greeting",
	}
	require.NoError(t, repo.Complete(ctx, tr.ID, result))

	got, err := repo.GetTranscription(ctx, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusCompleted, got.Status)

	var decoded entity.TranscriptResult
	require.NoError(t, json.Unmarshal(got.Metadata, &decoded))
	assert.Equal(t, result, decoded)
}

func TestListByStatusBeforeAndTouch(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	stale := seed(t, repo, entity.StatusQueued)
	seed(t, repo, entity.StatusProcessing)

	require.NoError(t, repo.DB.Model(&entity.Transcription{}).Where("id = ?", stale.ID).
		Update("updated_at", time.Now().UTC().Add(-2*time.Hour)).Error)
	seed(t, repo, entity.StatusQueued)

	got, err := repo.ListByStatusBefore(ctx, entity.StatusQueued, time.Now().UTC().Add(-time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, stale.ID, got[0].ID)

	require.NoError(t, repo.Touch(ctx, stale.ID))
	got, err = repo.ListByStatusBefore(ctx, entity.StatusQueued, time.Now().UTC().Add(-time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}
