package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"vidsentry/internal/broadcast"
	"vidsentry/internal/models"
	"vidsentry/internal/pipeline"
	"vidsentry/internal/security"
	"vidsentry/internal/service/chat"
	"vidsentry/internal/worker"
)

const maxVideoBytes = 100 << 20 // 100 MB

// Analyzer runs one video analysis end to end and returns the raw analysis
// text. Satisfied by worker.Dispatcher.
type Analyzer interface {
	Analyze(ctx context.Context, data []byte, originalName, mimeType string) (string, error)
}

// ChatService answers one stateless chat turn. Satisfied by chat.Service.
type ChatService interface {
	Respond(ctx context.Context, text string, history []models.ChatTurn) (string, error)
}

// Handler wires HTTP routes to the analysis pipeline and the chat service.
type Handler struct {
	analyzer Analyzer
	chat     ChatService
	hub      *broadcast.Hub
	upgrader websocket.Upgrader
}

// NewHandler constructs a Handler instance.
func NewHandler(analyzer Analyzer, chatSvc ChatService, hub *broadcast.Hub) *Handler {
	return &Handler{
		analyzer: analyzer,
		chat:     chatSvc,
		hub:      hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The frontend is served from a different origin in development.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	api.POST("/analyze-video", h.analyzeVideo)
	api.POST("/research-chat", h.researchChat)
	router.GET("/ws", h.liveUpdates)
}

func (h *Handler) analyzeVideo(c *gin.Context) {
	var (
		data []byte
		name string
		mime string
	)
	file, err := c.FormFile("video")
	if err == nil {
		if file.Size > maxVideoBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "video file too large"})
			return
		}
		name = filepath.Base(file.Filename)
		mime = file.Header.Get("Content-Type")
		f, openErr := file.Open()
		if openErr != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Error processing video", "details": openErr.Error()})
			return
		}
		data, err = io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Error processing video", "details": err.Error()})
			return
		}
	}

	// A missing file still enters the pipeline so websocket subscribers see
	// the started and error events for the invocation.
	analysis, err := h.analyzer.Analyze(c.Request.Context(), data, name, mime)
	if err != nil {
		switch {
		case errors.Is(err, pipeline.ErrNoVideo):
			c.JSON(http.StatusBadRequest, gin.H{"error": "No video file provided"})
		case errors.Is(err, worker.ErrQueueFull):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "server is busy, please retry"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Error processing video", "details": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"analysis": analysis,
		"security": security.Scan(analysis),
		"status":   "success",
	})
}

type chatRequest struct {
	Text    string            `json:"text"`
	History []models.ChatTurn `json:"history"`
}

func (h *Handler) researchChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Text is required"})
		return
	}
	reply, err := h.chat.Respond(c.Request.Context(), req.Text, req.History)
	if err != nil {
		if errors.Is(err, chat.ErrEmptyText) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Text is required"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error processing request", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"response": reply,
		"status":   "success",
	})
}

type statusMessage struct {
	Event string          `json:"event"`
	Data  broadcast.Event `json:"data"`
}

// liveUpdates upgrades the connection and forwards analysis status events
// until either side goes away.
func (h *Handler) liveUpdates(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	sub := h.hub.Subscribe()
	defer sub.Close()

	// Drain the client side so close frames are noticed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				sub.Close()
				return
			}
		}
	}()

	for event := range sub.Events() {
		if err := conn.WriteJSON(statusMessage{Event: "analysisStatus", Data: event}); err != nil {
			log.Debug().Err(err).Msg("websocket write failed, dropping subscriber")
			return
		}
	}
}
