package v1

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/JojoWeyn/transcriber/internal/domain/entity"
	"github.com/JojoWeyn/transcriber/internal/domain/usecase"
	"github.com/JojoWeyn/transcriber/pkg/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// multipartSlack covers form fields and multipart framing around the audio part.
const multipartSlack = 1 << 20

type IntakeUseCase interface {
	Submit(ctx context.Context, s usecase.Submission) (*entity.Transcription, error)
}

type StatusUseCase interface {
	Watch(ctx context.Context, jobID, userID string) (<-chan entity.ProgressEvent, error)
	GetTranscription(ctx context.Context, id, userID string) (*entity.Transcription, error)
}

type AudioURLSigner interface {
	GetPresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}

type TranscriptionHandler struct {
	Intake        IntakeUseCase
	Status        StatusUseCase
	Signer        AudioURLSigner
	URLExpiry     time.Duration
	MaxAudioBytes int64
}

func NewTranscriptionHandler(i IntakeUseCase, s StatusUseCase, signer AudioURLSigner, urlExpiry time.Duration, maxAudioBytes int64) *TranscriptionHandler {
	if maxAudioBytes <= 0 {
		maxAudioBytes = usecase.DefaultMaxAudioBytes
	}
	return &TranscriptionHandler{
		Intake:        i,
		Status:        s,
		Signer:        signer,
		URLExpiry:     urlExpiry,
		MaxAudioBytes: maxAudioBytes,
	}
}

func (h *TranscriptionHandler) CreateTranscription(c *gin.Context) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Not authenticated"})
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxAudioBytes+multipartSlack)

	parseErrs := &usecase.ValidationError{}
	sub := usecase.Submission{UserID: userID}

	file, err := c.FormFile("file")
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge), err != nil && strings.Contains(err.Error(), "request body too large"):
		// The rest of the form was never parsed, so no other field can be judged.
		parseErrs.Add("file", usecase.FileSizeMessage(h.MaxAudioBytes))
		validationFailed(c, parseErrs)
		return
	case err != nil:
		parseErrs.Add("file", "No file uploaded.")
	case file.Size >= h.MaxAudioBytes:
		parseErrs.Add("file", usecase.FileSizeMessage(h.MaxAudioBytes))
	default:
		f, err := file.Open()
		if err != nil {
			slog.Error("open uploaded file", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Internal server error."})
			return
		}
		sub.Audio, err = io.ReadAll(io.LimitReader(f, h.MaxAudioBytes))
		_ = f.Close()
		if err != nil {
			slog.Error("read uploaded file", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Internal server error."})
			return
		}
		sub.OriginalName = file.Filename
		sub.ContentType = file.Header.Get("Content-Type")
	}

	sub.Title = c.PostForm("title")
	sub.Language = c.PostForm("language")
	sub.Model = entity.Model(strings.ToLower(strings.TrimSpace(c.PostForm("model"))))
	sub.IsSpeakerDiarized = parseFormBool(c.PostForm("isSpeakerDiarized"))
	if raw := strings.TrimSpace(c.PostForm("numberOfSpeaker")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			parseErrs.Add("numberOfSpeaker", "Speaker count must be a whole number")
		}
		sub.NumberOfSpeaker = n
	}

	if !parseErrs.Empty() {
		parseErrs.Merge(usecase.ValidateSubmission(sub, h.MaxAudioBytes))
		if !sub.IsSpeakerDiarized {
			delete(parseErrs.Fields, "numberOfSpeaker")
		}
		if !parseErrs.Empty() {
			validationFailed(c, parseErrs)
			return
		}
	}

	job, err := h.Intake.Submit(c.Request.Context(), sub)
	if err != nil {
		var verr *usecase.ValidationError
		if errors.As(err, &verr) {
			validationFailed(c, verr)
			return
		}
		slog.Error("submit transcription", "user", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Internal server error."})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"success": true, "id": job.ID, "status": job.Status})
}

func (h *TranscriptionHandler) GetTranscription(c *gin.Context) {
	userID, _ := middleware.UserID(c)
	id, ok := transcriptionID(c)
	if !ok {
		return
	}

	t, err := h.Status.GetTranscription(c.Request.Context(), id, userID)
	if errors.Is(err, entity.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "transcription not found"})
		return
	}
	if err != nil {
		slog.Error("get transcription", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Internal server error."})
		return
	}

	resp := gin.H{"success": true, "transcription": t}
	if h.Signer != nil && t.AudioRef != "" {
		audioURL, err := h.Signer.GetPresignedURL(c.Request.Context(), t.AudioRef, h.URLExpiry)
		if err != nil {
			slog.Warn("presign audio url", "id", id, "error", err)
		} else {
			resp["audioUrl"] = audioURL
		}
	}
	c.JSON(http.StatusOK, resp)
}

// StreamEvents is the server-sent events relay for one job. It returns when the
// use case closes the event channel: after a terminal event or on client disconnect.
func (h *TranscriptionHandler) StreamEvents(c *gin.Context) {
	userID, _ := middleware.UserID(c)
	id, ok := transcriptionID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	events, err := h.Status.Watch(ctx, id, userID)
	if errors.Is(err, entity.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "transcription not found"})
		return
	}
	if err != nil {
		slog.Error("watch transcription", "id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Internal server error."})
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache, no-transform")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	for ev := range events {
		c.SSEvent("", ev)
		c.Writer.Flush()
	}

	if ctx.Err() != nil {
		slog.Debug("status stream closed by client", "id", id)
	}
}

func transcriptionID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid transcription ID"})
		return "", false
	}
	return id, true
}

func validationFailed(c *gin.Context, verr *usecase.ValidationError) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error":   "validation failed",
		"fields":  verr.Fields,
	})
}

func parseFormBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1", "on", "yes":
		return true
	default:
		return false
	}
}
