package usecase

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/JojoWeyn/transcriber/internal/domain/entity"
)

const (
	DefaultMaxAudioBytes = 50 << 20

	maxTitleLen    = 255
	maxLanguageLen = 50
)

// ValidateSubmission checks the submission without touching any store.
// It returns nil when s is acceptable.
func ValidateSubmission(s Submission, maxAudioBytes int64) *ValidationError {
	if maxAudioBytes <= 0 {
		maxAudioBytes = DefaultMaxAudioBytes
	}
	verr := &ValidationError{}

	switch {
	case len(s.Audio) == 0:
		verr.Add("file", "No file uploaded.")
	case int64(len(s.Audio)) >= maxAudioBytes:
		verr.Add("file", FileSizeMessage(maxAudioBytes))
	}

	title := strings.TrimSpace(s.Title)
	switch {
	case title == "":
		verr.Add("title", "Title is required")
	case utf8.RuneCountInString(title) > maxTitleLen:
		verr.Add("title", fmt.Sprintf("Title must be at most %d characters", maxTitleLen))
	}

	lang := strings.TrimSpace(s.Language)
	switch {
	case lang == "":
		verr.Add("language", "Language is required")
	case len(lang) > maxLanguageLen:
		verr.Add("language", fmt.Sprintf("Language must be at most %d characters", maxLanguageLen))
	}

	if !s.Model.Valid() {
		verr.Add("model", fmt.Sprintf("Model must be one of %s, %s, %s", entity.ModelSmall, entity.ModelMedium, entity.ModelLarge))
	}

	if s.IsSpeakerDiarized {
		switch {
		case s.NumberOfSpeaker == 0:
			verr.Add("numberOfSpeaker", "Speaker count is required when speaker diarization is enabled")
		case s.NumberOfSpeaker < entity.MinSpeakers || s.NumberOfSpeaker > entity.MaxSpeakers:
			verr.Add("numberOfSpeaker", fmt.Sprintf("Speaker count must be between %d and %d", entity.MinSpeakers, entity.MaxSpeakers))
		}
	}

	if strings.TrimSpace(s.UserID) == "" {
		verr.Add("user", "Not authenticated")
	}

	if verr.Empty() {
		return nil
	}
	return verr
}

func FileSizeMessage(maxAudioBytes int64) string {
	if maxAudioBytes >= 1<<20 {
		return fmt.Sprintf("File size must be less than %dMB", maxAudioBytes>>20)
	}
	return fmt.Sprintf("File size must be less than %d bytes", maxAudioBytes)
}
