package entity

// QueueEntry is the self-contained work ticket handed to the transcription worker.
type QueueEntry struct {
	TranscriptionID   string `json:"transcriptionId"`
	Filename          string `json:"filename"`
	Language          string `json:"language"`
	Model             Model  `json:"model"`
	IsSpeakerDiarized bool   `json:"isSpeakerDiarized"`
	NumberOfSpeaker   int    `json:"numberOfSpeaker"`
}

func NewQueueEntry(t *Transcription) QueueEntry {
	return QueueEntry{
		TranscriptionID:   t.ID,
		Filename:          t.AudioRef,
		Language:          t.Language,
		Model:             t.Model,
		IsSpeakerDiarized: t.IsSpeakerDiarized,
		NumberOfSpeaker:   t.NumberOfSpeaker,
	}
}
