package documents

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"studyai-backend/internal/shared/server/middleware"
	"studyai-backend/internal/shared/server/respond"
)

const defaultMaxRequestBytes = 55 << 20 // file limit plus multipart overhead

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc             *Service
	MaxRequestBytes int64
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, maxRequestBytes int64) *Handler {
	if maxRequestBytes <= 0 {
		maxRequestBytes = defaultMaxRequestBytes
	}
	return &Handler{Svc: svc, MaxRequestBytes: maxRequestBytes}
}

// RegisterRoutes attaches document routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/documents", h.upload)
	rg.POST("/documents/batch", h.uploadBatch)
	rg.GET("/documents", h.list)
	rg.DELETE("/documents/:id", h.delete)
}

func (h *Handler) upload(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxRequestBytes)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", formError(err), nil)
		return
	}

	pyq, err := pyqFromForm(c)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file", nil)
		return
	}
	defer file.Close()

	doc, err := h.Svc.Upload(c.Request.Context(), userID, toInput(fileHeader, file, c.PostForm("category"), pyq))
	if err != nil {
		writeError(c, err)
		return
	}

	c.Set("documentId", doc.ID)
	respond.Created(c, toResponse(doc))
}

// uploadBatch streams one server-sent event per progress step.
func (h *Handler) uploadBatch(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.MaxRequestBytes)

	form, err := c.MultipartForm()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", formError(err), nil)
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		respond.Error(c, http.StatusBadRequest, "validation_error", "files are required", nil)
		return
	}
	pyq, err := pyqFromForm(c)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
		return
	}

	category := c.PostForm("category")
	inputs := make([]UploadInput, 0, len(headers))
	for _, fh := range headers {
		file, err := fh.Open()
		if err != nil {
			respond.Error(c, http.StatusBadRequest, "validation_error", "unable to read file "+fh.Filename, nil)
			return
		}
		defer file.Close()
		inputs = append(inputs, toInput(fh, file, category, pyq))
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Status(http.StatusOK)
	for ev := range h.Svc.UploadBatch(c.Request.Context(), userID, inputs) {
		c.SSEvent(string(ev.Kind), toEventResponse(ev))
		c.Writer.Flush()
	}
}

func (h *Handler) list(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	var (
		docs []Document
		err  error
	)
	if raw, ok := c.GetQuery("category"); ok && strings.TrimSpace(raw) != "" {
		docs, err = h.Svc.List(c.Request.Context(), userID, ParseCategory(raw))
	} else {
		docs, err = h.Svc.ListAll(c.Request.Context(), userID)
	}
	if err != nil {
		writeError(c, err)
		return
	}

	resp := make([]DocumentResponse, 0, len(docs))
	for _, doc := range docs {
		resp = append(resp, toResponse(doc))
	}
	respond.OK(c, resp)
}

func (h *Handler) delete(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	documentID := c.Param("id")
	c.Set("documentId", documentID)

	if err := h.Svc.Delete(c.Request.Context(), userID, documentID); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "document not found", nil)
	case errors.Is(err, ErrStorage):
		respond.Error(c, http.StatusInternalServerError, "storage_error", publicMessage(err), nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "persistence_error", publicMessage(err), nil)
	}
}

func toInput(fh *multipart.FileHeader, file io.Reader, category string, pyq PYQMetadata) UploadInput {
	return UploadInput{
		FileName:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Body:        file,
		Category:    category,
		PYQ:         pyq,
	}
}

func pyqFromForm(c *gin.Context) (PYQMetadata, error) {
	meta := PYQMetadata{
		Subject:      c.PostForm("subject"),
		AcademicYear: c.PostForm("academic_year"),
	}
	if ParseCategory(c.PostForm("category")) != CategoryPYQ {
		return meta, nil
	}
	if raw := strings.TrimSpace(c.PostForm("semester")); raw != "" {
		semester, err := strconv.Atoi(raw)
		if err != nil {
			return PYQMetadata{}, errors.New("semester must be a number")
		}
		meta.Semester = semester
	}
	return meta, nil
}

func formError(err error) string {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return "file exceeds the 50MB limit"
	}
	if errors.Is(err, http.ErrMissingFile) {
		return "file is required"
	}
	return "invalid multipart form"
}
