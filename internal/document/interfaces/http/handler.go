// Package http 资料服务 HTTP 接口
package http

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/loancollateral/internal/document/application"
	"github.com/wyfcoding/loancollateral/internal/document/domain"
)

type Handler struct {
	service *application.DocumentService
}

func NewHandler(service *application.DocumentService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	g := r.Group("/documents")
	{
		g.POST("", h.Register)
		g.GET("/:id", h.Get)
		g.POST("/:id/extraction", h.ProcessExtraction)
		g.POST("/:id/transition", h.Transition)
		g.POST("/:id/review", h.CompleteReview)
		g.GET("/:id/fields", h.ListFields)
		g.PUT("/:id/fields/:name", h.UpsertField)
	}
}

type RegisterReq struct {
	DocumentID   string `json:"document_id" binding:"required"`
	DocumentType string `json:"document_type" binding:"required"`
	ContractID   string `json:"contract_id"`
}

func (h *Handler) Register(c *gin.Context) {
	var req RegisterReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	doc, err := h.service.RegisterDocument(c.Request.Context(), req.DocumentID, domain.DocumentType(req.DocumentType), req.ContractID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, doc)
}

func (h *Handler) Get(c *gin.Context) {
	doc, err := h.service.GetDocument(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

// ProcessExtraction 接收供应商 OCR 回调原始载荷
func (h *Handler) ProcessExtraction(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil || len(payload) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty vendor payload"})
		return
	}
	result, err := h.service.ProcessExtraction(c.Request.Context(), c.Param("id"), payload)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type TransitionReq struct {
	Event string `json:"event" binding:"required"`
}

func (h *Handler) Transition(c *gin.Context) {
	var req TransitionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	doc, err := h.service.TransitionDocument(c.Request.Context(), c.Param("id"), req.Event)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

type ReviewReq struct {
	Corrections []struct {
		Name    string `json:"name" binding:"required"`
		Value   string `json:"value"`
		Confirm bool   `json:"confirm"`
	} `json:"corrections" binding:"required"`
}

func (h *Handler) CompleteReview(c *gin.Context) {
	var req ReviewReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	corrections := make([]application.FieldCorrection, 0, len(req.Corrections))
	for _, item := range req.Corrections {
		corrections = append(corrections, application.FieldCorrection{
			Name:    item.Name,
			Value:   item.Value,
			Confirm: item.Confirm,
		})
	}
	doc, err := h.service.CompleteReview(c.Request.Context(), c.Param("id"), corrections)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, doc)
}

func (h *Handler) ListFields(c *gin.Context) {
	fields, err := h.service.ListFields(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"fields": fields})
}

type UpsertFieldReq struct {
	Value     string `json:"value" binding:"required"`
	Corrected bool   `json:"corrected"`
}

func (h *Handler) UpsertField(c *gin.Context) {
	var req UpsertFieldReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	field, err := h.service.UpsertField(c.Request.Context(), c.Param("id"), c.Param("name"), req.Value, req.Corrected)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, field)
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrDocumentNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrReviewRequired),
		errors.Is(err, domain.ErrNoFields),
		errors.Is(err, domain.ErrExtractionRequired):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
