package generation

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"studyai-backend/internal/llm"
	"studyai-backend/internal/shared/server/middleware"
	"studyai-backend/internal/shared/server/respond"
	"studyai-backend/internal/shared/telemetry"
	"studyai-backend/internal/study"
)

const maxChatMessages = 100

// Handler exposes generation and chat over HTTP.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches generation routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/study-materials", h.studyMaterials)
	rg.POST("/pyq/analysis", h.pyqAnalysis)
	rg.POST("/chat", h.chat)
}

type materialsRequest struct {
	Type string `json:"type"`
}

func (r materialsRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Type, validation.Required.Error("type is required")),
	)
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (m chatMessage) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Role, validation.Required, validation.In("user", "assistant")),
		validation.Field(&m.Content, validation.Required),
	)
}

type chatRequest struct {
	Messages []chatMessage `json:"messages"`
	Category string        `json:"category"`
}

func (r chatRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Messages, validation.Required.Error("messages are required"), validation.Length(1, maxChatMessages)),
	)
}

type generationResponse struct {
	Success bool   `json:"success"`
	Type    string `json:"type"`
	Data    any    `json:"data,omitempty"`
	Content string `json:"content,omitempty"`
}

func (h *Handler) studyMaterials(c *gin.Context) {
	var req materialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid JSON body", nil)
		return
	}
	if err := req.Validate(); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		return
	}
	kind, err := study.ParseKind(req.Type)
	if err != nil || !kind.IsMaterial() {
		respond.Error(c, http.StatusBadRequest, "validation_error", study.ErrUnknownKind.Error(), nil)
		return
	}
	h.generate(c, kind)
}

func (h *Handler) pyqAnalysis(c *gin.Context) {
	h.generate(c, study.KindPYQAnalysis)
}

func (h *Handler) generate(c *gin.Context, kind study.Kind) {
	c.Set("generationKind", string(kind))

	out, err := h.Svc.Generate(c.Request.Context(), middleware.UserIDFromContext(c), kind)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, generationResponse{
		Success: true,
		Type:    string(out.Kind),
		Data:    out.Data,
		Content: out.Content,
	})
}

func (h *Handler) chat(c *gin.Context) {
	c.Set("generationKind", "chat")

	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid JSON body", nil)
		return
	}
	if err := req.Validate(); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		return
	}

	messages := make([]llm.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, llm.Message{Role: m.Role, Content: m.Content})
	}

	body, err := h.Svc.Chat(c.Request.Context(), middleware.UserIDFromContext(c), req.Category, messages)
	if err != nil {
		writeError(c, err)
		return
	}
	defer body.Close()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Status(http.StatusOK)
	if _, err := io.Copy(flushWriter{c.Writer}, body); err != nil {
		telemetry.Warn("chat.stream_interrupted", map[string]any{
			"request_id": c.GetString("requestId"),
			"error":      err.Error(),
		})
	}
}

// flushWriter pushes every chunk to the client as soon as it is written.
type flushWriter struct {
	w gin.ResponseWriter
}

func (f flushWriter) Write(p []byte) (int, error) {
	n, err := f.w.Write(p)
	f.w.Flush()
	return n, err
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, study.ErrNoDocuments), errors.Is(err, study.ErrUnknownKind):
		respond.Error(c, http.StatusBadRequest, "validation_error", noDocumentsMessage(err), nil)
	case errors.Is(err, llm.ErrRateLimited):
		respond.Error(c, http.StatusTooManyRequests, "rate_limited", "Rate limit exceeded. Please try again later.", nil)
	case errors.Is(err, llm.ErrQuotaExhausted):
		respond.Error(c, http.StatusPaymentRequired, "quota_exhausted", "AI credits exhausted. Please add credits to continue.", nil)
	case errors.Is(err, ErrNoAnalysis):
		respond.Error(c, http.StatusInternalServerError, "upstream_error", ErrNoAnalysis.Error(), nil)
	case errors.Is(err, llm.ErrGateway), errors.Is(err, llm.ErrNotConfigured), errors.Is(err, study.ErrMalformedOutput):
		respond.Error(c, http.StatusInternalServerError, "upstream_error", "AI service error", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "persistence_error", "Failed to fetch documents", nil)
	}
}

func noDocumentsMessage(err error) string {
	var nd *study.NoDocumentsError
	if errors.As(err, &nd) {
		return nd.Error()
	}
	return study.ErrUnknownKind.Error()
}
