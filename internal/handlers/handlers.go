package handlers

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Brownie44l1/ningapi/internal/journal"
	"github.com/Brownie44l1/ningapi/internal/model"
	"github.com/Brownie44l1/ningapi/internal/session"
)

// DefaultMaxUploadSize bounds image uploads.
const DefaultMaxUploadSize = 10 << 20

const defaultHistoryLimit = 20

// Classifier labels uploaded images outside of any session.
type Classifier interface {
	Classify(ctx context.Context, img *model.CapturedImage) (*model.ClassificationResult, error)
	Ready() bool
}

// History lists recorded results, newest first.
type History interface {
	Recent(ctx context.Context, limit int) ([]journal.Entry, error)
}

type Handler struct {
	classifier    Classifier
	sessions      *session.Registry
	history       History
	logger        *zap.Logger
	maxUploadSize int64

	analyses sync.WaitGroup
}

// NewHandler builds the HTTP surface. history may be nil when the journal
// is disabled; maxUploadSize <= 0 selects DefaultMaxUploadSize.
func NewHandler(classifier Classifier, sessions *session.Registry, history History, logger *zap.Logger, maxUploadSize int64) *Handler {
	if maxUploadSize <= 0 {
		maxUploadSize = DefaultMaxUploadSize
	}
	return &Handler{
		classifier:    classifier,
		sessions:      sessions,
		history:       history,
		logger:        logger.Named("http"),
		maxUploadSize: maxUploadSize,
	}
}

// RegisterRoutes wires the handlers to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(EnableCORS())

	router.GET("/health", h.Health)
	router.POST("/predict/image", h.PredictFromImage)
	router.GET("/history", h.History)

	s := router.Group("/sessions")
	s.POST("", h.CreateSession)
	s.GET("/:id", h.withSession(h.GetSession))
	s.DELETE("/:id", h.DeleteSession)
	s.POST("/:id/capture", h.withSession(h.Capture))
	s.POST("/:id/capture/abort", h.withSession(h.AbortCapture))
	s.POST("/:id/image", h.withSession(h.SubmitImage))
	s.POST("/:id/repeat", h.withSession(h.Repeat))
	s.POST("/:id/rescan", h.withSession(h.Rescan))
	s.POST("/:id/cancel", h.withSession(h.Cancel))
}

// Wait blocks until background analyses have returned.
func (h *Handler) Wait() {
	h.analyses.Wait()
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "healthy",
		"model_ready": h.classifier.Ready(),
		"sessions":    h.sessions.Len(),
	})
}

// readImage returns the bytes of the multipart "image" field.
func (h *Handler) readImage(c *gin.Context) ([]byte, string, bool) {
	file, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No image file provided. Use 'image' as the form field name"})
		return nil, "", false
	}
	if file.Size > h.maxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image too large"})
		return nil, "", false
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unable to open image"})
		return nil, "", false
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, h.maxUploadSize+1))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read image"})
		return nil, "", false
	}
	if int64(len(data)) > h.maxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image too large"})
		return nil, "", false
	}

	h.logger.Debug("received file",
		zap.String("filename", file.Filename),
		zap.Int64("size", file.Size))
	return data, file.Filename, true
}

// PredictFromImage classifies one upload without a session or speech.
func (h *Handler) PredictFromImage(c *gin.Context) {
	data, name, ok := h.readImage(c)
	if !ok {
		return
	}

	img, err := model.Decode(bytes.NewReader(data), name)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid image format. Supported: JPEG, PNG, WebP"})
		return
	}

	result, err := h.classifier.Classify(c.Request.Context(), img)
	if err != nil {
		h.logger.Error("prediction failed", zap.Error(err))
		status := http.StatusInternalServerError
		var loadErr *model.ModelLoadError
		if errors.As(err, &loadErr) {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"error": "Prediction failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"denomination":          result.Denomination,
		"currency":              result.Currency,
		"confidence":            result.Confidence,
		"confidence_percentage": result.ConfidencePercentage(),
		"high_confidence":       result.IsHighConfidence(),
		"unknown":               result.IsUnknown(),
		"message":               result.SpeakableResult(),
		"probabilities":         result.Probabilities,
		"timestamp":             result.Timestamp,
	})
}

func (h *Handler) History(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "journal disabled"})
		return
	}
	limit := defaultHistoryLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	entries, err := h.history.Recent(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("failed to read journal", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read history"})
		return
	}
	if entries == nil {
		entries = []journal.Entry{}
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (h *Handler) CreateSession(c *gin.Context) {
	o := h.sessions.Create()
	o.Welcome()
	c.JSON(http.StatusCreated, o.Snapshot())
}

func (h *Handler) DeleteSession(c *gin.Context) {
	if !h.sessions.Remove(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

type sessionHandler func(*gin.Context, *session.Orchestrator)

func (h *Handler) withSession(next sessionHandler) gin.HandlerFunc {
	return func(c *gin.Context) {
		o, ok := h.sessions.Get(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		next(c, o)
	}
}

// reply writes the session snapshot, or 409 for a gesture the current
// state does not accept.
func reply(c *gin.Context, o *session.Orchestrator, status int, err error) {
	if err != nil {
		if errors.Is(err, session.ErrInvalidTransition) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "state": o.State()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(status, o.Snapshot())
}

func (h *Handler) GetSession(c *gin.Context, o *session.Orchestrator) {
	reply(c, o, http.StatusOK, nil)
}

func (h *Handler) Capture(c *gin.Context, o *session.Orchestrator) {
	reply(c, o, http.StatusOK, o.RequestCapture())
}

func (h *Handler) AbortCapture(c *gin.Context, o *session.Orchestrator) {
	reply(c, o, http.StatusOK, o.CaptureAborted())
}

// SubmitImage starts the analysis and answers 202 while it runs.
func (h *Handler) SubmitImage(c *gin.Context, o *session.Orchestrator) {
	data, _, ok := h.readImage(c)
	if !ok {
		return
	}

	id := o.ID()
	h.analyses.Add(1)
	err := o.Start(context.WithoutCancel(c.Request.Context()), model.BytesSource(data),
		func(result *model.ClassificationResult, err error) {
			defer h.analyses.Done()
			if err != nil {
				h.logger.Info("analysis ended", zap.String("session_id", id), zap.Error(err))
			}
		})
	if err != nil {
		h.analyses.Done()
	}
	reply(c, o, http.StatusAccepted, err)
}

func (h *Handler) Repeat(c *gin.Context, o *session.Orchestrator) {
	reply(c, o, http.StatusOK, o.Repeat())
}

func (h *Handler) Rescan(c *gin.Context, o *session.Orchestrator) {
	reply(c, o, http.StatusOK, o.Rescan())
}

func (h *Handler) Cancel(c *gin.Context, o *session.Orchestrator) {
	o.Cancel()
	reply(c, o, http.StatusOK, nil)
}
