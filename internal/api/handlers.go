package api

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"vaanigo/internal/models"
	"vaanigo/internal/redis"
	"vaanigo/internal/service/chat"
	"vaanigo/internal/service/registry"
	"vaanigo/internal/service/upload"
)

const maxUploadBytes = 10 << 20 // 10 MB

// voiceSystemPrompt is injected ahead of the conversation on the voice-chat
// endpoint.
const voiceSystemPrompt = "You are a voice assistant. Keep responses brief, " +
	"conversational, and easy to speak aloud. Avoid markdown, lists, and code blocks."

const defaultModel = "gpt-4o-mini"

// Handler wires HTTP routes to the dispatch layer.
type Handler struct {
	registry *registry.Registry
	direct   *chat.DirectDispatcher
	agent    *chat.AgentDispatcher
	research *chat.ResearchDispatcher
	streamer *chat.Streamer
	uploads  *upload.Service
	cache    *redis.Client

	deployment  string
	environment string
}

// NewHandler constructs a Handler instance.
func NewHandler(reg *registry.Registry, direct *chat.DirectDispatcher, agent *chat.AgentDispatcher,
	research *chat.ResearchDispatcher, streamer *chat.Streamer, uploads *upload.Service,
	cache *redis.Client, deployment, environment string) *Handler {
	return &Handler{
		registry:    reg,
		direct:      direct,
		agent:       agent,
		research:    research,
		streamer:    streamer,
		uploads:     uploads,
		cache:       cache,
		deployment:  deployment,
		environment: environment,
	}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	api.POST("/upload", h.uploadFile)
	api.GET("/uploads", h.listUploads)
	api.POST("/chat", h.chatHandler(false))
	api.POST("/voice-chat", h.chatHandler(true))
	api.GET("/models", h.listModels)
	api.POST("/react-search", h.reactSearch)
	api.POST("/react-search-streaming", h.reactSearchStreaming)
	api.GET("/health", h.health)
}

type chatRequest struct {
	Messages     []models.Message `json:"messages"`
	Model        string           `json:"model"`
	ThreadID     string           `json:"thread_id"`
	FileURL      string           `json:"file_url"`
	UseAgent     bool             `json:"use_agent"`
	DeepResearch bool             `json:"deep_research"`
	Stream       bool             `json:"stream"`
}

type reactRequest struct {
	Messages         []models.Message `json:"messages"`
	Model            string           `json:"model"`
	ThreadID         string           `json:"thread_id"`
	FileURL          string           `json:"file_url"`
	MaxSearchResults int              `json:"max_search_results"`
}

// chatHandler serves /api/chat and /api/voice-chat; the voice variant
// injects the brevity system prompt and flags results for speech.
func (h *Handler) chatHandler(voice bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req chatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}
		if req.Model == "" {
			req.Model = defaultModel
		}
		threadID := req.ThreadID
		if threadID == "" {
			threadID = uuid.NewString()
		}
		defer h.recoverToResponse(c, threadID, voice)

		conv := chat.Normalize(req.Messages)
		if voice {
			conv = chat.PrependSystem(conv, voiceSystemPrompt)
		}
		h.cache.TouchThread(c.Request.Context(), threadID, req.Model)

		log.Printf("chat request: model=%s thread=%s use_agent=%t deep_research=%t stream=%t voice=%t",
			req.Model, threadID, req.UseAgent, req.DeepResearch, req.Stream, voice)

		in := chat.AgentInput{
			Conversation: conv,
			Model:        req.Model,
			ThreadID:     threadID,
			FileURL:      req.FileURL,
			DeepResearch: req.DeepResearch,
		}

		if req.Stream {
			sink, ok := h.eventSink(c)
			if !ok {
				return
			}
			if err := h.streamer.StreamChat(c.Request.Context(), in, req.UseAgent, voice, sink); err != nil {
				log.Printf("chat stream aborted for thread %s: %v", threadID, err)
			}
			return
		}

		var content string
		if req.UseAgent {
			content = h.agent.Dispatch(c.Request.Context(), in)
		} else {
			content = h.direct.Dispatch(c.Request.Context(), req.Model, conv)
		}

		resp := gin.H{
			"message":   models.Message{Role: models.RoleAssistant, Content: content},
			"thread_id": threadID,
		}
		if voice {
			resp["should_speak"] = true
		}
		c.JSON(http.StatusOK, resp)
	}
}

func (h *Handler) reactSearch(c *gin.Context) {
	var req reactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Model == "" {
		req.Model = defaultModel
	}
	threadID := req.ThreadID
	if threadID == "" {
		threadID = uuid.NewString()
	}
	defer h.recoverToResponse(c, threadID, false)

	h.cache.TouchThread(c.Request.Context(), threadID, req.Model)
	log.Printf("react-search request: model=%s thread=%s max_results=%d", req.Model, threadID, req.MaxSearchResults)

	content := h.research.Dispatch(c.Request.Context(), chat.ResearchInput{
		Conversation:     chat.Normalize(req.Messages),
		Model:            req.Model,
		ThreadID:         threadID,
		MaxSearchResults: req.MaxSearchResults,
	})
	c.JSON(http.StatusOK, gin.H{
		"message":   models.Message{Role: models.RoleAssistant, Content: content},
		"thread_id": threadID,
	})
}

func (h *Handler) reactSearchStreaming(c *gin.Context) {
	var req reactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Model == "" {
		req.Model = defaultModel
	}
	threadID := req.ThreadID
	if threadID == "" {
		threadID = uuid.NewString()
	}

	h.cache.TouchThread(c.Request.Context(), threadID, req.Model)

	sink, ok := h.eventSink(c)
	if !ok {
		return
	}
	err := h.streamer.StreamResearch(c.Request.Context(), chat.ResearchInput{
		Conversation:     chat.Normalize(req.Messages),
		Model:            req.Model,
		ThreadID:         threadID,
		MaxSearchResults: req.MaxSearchResults,
	}, sink)
	if err != nil {
		log.Printf("research stream aborted for thread %s: %v", threadID, err)
	}
}

// eventSink prepares the response for newline-delimited JSON streaming and
// returns a sink writing one event per line.
func (h *Handler) eventSink(c *gin.Context) (chat.EventSink, bool) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming not supported"})
		return nil, false
	}
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	return func(ev *models.StreamEvent) error {
		data, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(c.Writer, "%s\n", data); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}, true
}

func (h *Handler) listModels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"models": h.registry.Models()})
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "ok",
		"timestamp":   time.Now().Unix(),
		"deployment":  h.deployment,
		"environment": h.environment,
	})
}

func (h *Handler) uploadFile(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}
	if file.Size > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}
	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "open file failed"})
		return
	}
	data, err := io.ReadAll(f)
	_ = f.Close()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read file failed"})
		return
	}

	contentType := file.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}

	location, err := h.uploads.Store(c.Request.Context(), file.Filename, data, contentType)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("failed to process file: %v", err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"file_path": location})
}

func (h *Handler) listUploads(c *gin.Context) {
	records, err := h.uploads.ListRecent(c.Request.Context(), 50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if records == nil {
		records = []*models.UploadRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"uploads": records})
}

// recoverToResponse converts a panic anywhere below the handler into a
// well-formed chat body, so no endpoint ever returns a bare transport error.
func (h *Handler) recoverToResponse(c *gin.Context, threadID string, voice bool) {
	r := recover()
	if r == nil {
		return
	}
	log.Printf("recovered in handler for thread %s: %v", threadID, r)
	if c.Writer.Written() {
		return
	}
	resp := gin.H{
		"message":   models.Message{Role: models.RoleAssistant, Content: fmt.Sprintf("I encountered an error: %v", r)},
		"thread_id": threadID,
	}
	if voice {
		resp["should_speak"] = true
	}
	c.JSON(http.StatusOK, resp)
}
