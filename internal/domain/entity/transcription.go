package entity

import (
	"time"

	"gorm.io/datatypes"
)

type Model string

const (
	ModelSmall  Model = "small"
	ModelMedium Model = "medium"
	ModelLarge  Model = "large"
)

func (m Model) Valid() bool {
	switch m {
	case ModelSmall, ModelMedium, ModelLarge:
		return true
	default:
		return false
	}
}

const (
	MinSpeakers = 1
	MaxSpeakers = 10
)

// Transcription is the Job Record: one row per submitted audio artifact.
type Transcription struct {
	ID                string         `gorm:"primaryKey;type:uuid" json:"id"`
	UserID            string         `gorm:"not null;index" json:"userId"`
	Title             string         `gorm:"not null;size:255" json:"title"`
	Language          string         `gorm:"not null;size:50;default:en" json:"language"`
	Model             Model          `gorm:"not null;type:text" json:"model"`
	IsSpeakerDiarized bool           `gorm:"not null;default:false" json:"isSpeakerDiarized"`
	NumberOfSpeaker   int            `json:"numberOfSpeaker,omitempty"`
	AudioRef          string         `gorm:"not null" json:"audioRef"`
	OriginalName      string         `json:"originalName,omitempty"`
	ContentType       string         `json:"contentType,omitempty"`
	Size              int64          `json:"size"`
	Status            JobStatus      `gorm:"not null;type:text;index" json:"status"`
	Metadata          datatypes.JSON `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt         time.Time      `json:"createdAt"`
	UpdatedAt         time.Time      `json:"updatedAt"`
}

// TranscriptSegment is one diarized utterance; times are in seconds.
type TranscriptSegment struct {
	Speaker string  `json:"speaker,omitempty"`
	Text    string  `json:"text"`
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
}

// TranscriptResult is written to Transcription.Metadata on completion.
type TranscriptResult struct {
	Segments []TranscriptSegment `json:"segments"`
	Summary  string              `json:"summary,omitempty"`
	Language string              `json:"language,omitempty"`
	Duration float64             `json:"duration,omitempty"`
}
