package psql

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/JojoWeyn/transcriber/internal/domain/entity"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type GormTranscriptionRepo struct {
	DB *gorm.DB
}

func NewGormTranscriptionRepo(db *gorm.DB) *GormTranscriptionRepo {
	return &GormTranscriptionRepo{DB: db}
}

func (r *GormTranscriptionRepo) Migrate(ctx context.Context) error {
	return r.DB.WithContext(ctx).AutoMigrate(&entity.Transcription{})
}

func (r *GormTranscriptionRepo) CreateTranscription(ctx context.Context, t *entity.Transcription) error {
	if err := r.DB.WithContext(ctx).Create(t).Error; err != nil {
		return fmt.Errorf("insert transcription: %w", err)
	}
	return nil
}

func (r *GormTranscriptionRepo) GetTranscription(ctx context.Context, id string) (*entity.Transcription, error) {
	t := &entity.Transcription{}
	if err := r.DB.WithContext(ctx).First(t, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, entity.ErrNotFound
		}
		return nil, fmt.Errorf("get transcription: %w", err)
	}
	return t, nil
}

// UpdateStatus moves the record forward. The guard is in the WHERE clause so concurrent
// writers cannot move a record backwards.
func (r *GormTranscriptionRepo) UpdateStatus(ctx context.Context, id string, status entity.JobStatus) error {
	return r.transition(ctx, id, status, map[string]any{})
}

func (r *GormTranscriptionRepo) Complete(ctx context.Context, id string, result entity.TranscriptResult) error {
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode transcript: %w", err)
	}
	return r.transition(ctx, id, entity.StatusCompleted, map[string]any{
		"metadata": datatypes.JSON(raw),
	})
}

func (r *GormTranscriptionRepo) transition(ctx context.Context, id string, status entity.JobStatus, fields map[string]any) error {
	from := entity.PredecessorsOf(status)
	if len(from) == 0 {
		return fmt.Errorf("%w: nothing moves to %s", entity.ErrInvalidTransition, status)
	}

	fields["status"] = status
	fields["updated_at"] = time.Now().UTC()

	res := r.DB.WithContext(ctx).Model(&entity.Transcription{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("update transcription status: %w", res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}

	current, err := r.GetTranscription(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %s -> %s", entity.ErrInvalidTransition, current.Status, status)
}

func (r *GormTranscriptionRepo) ListByStatusBefore(ctx context.Context, status entity.JobStatus, before time.Time, limit int) ([]entity.Transcription, error) {
	var out []entity.Transcription
	q := r.DB.WithContext(ctx).
		Where("status = ? AND updated_at < ?", status, before).
		Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("list transcriptions: %w", err)
	}
	return out, nil
}

func (r *GormTranscriptionRepo) Touch(ctx context.Context, id string) error {
	return r.DB.WithContext(ctx).Model(&entity.Transcription{}).
		Where("id = ?", id).
		Update("updated_at", time.Now().UTC()).Error
}
