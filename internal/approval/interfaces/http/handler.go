// Package http 审批服务 HTTP 接口
package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/wyfcoding/loancollateral/internal/approval/application"
	"github.com/wyfcoding/loancollateral/internal/approval/domain"
)

type Handler struct {
	service *application.ApprovalService
}

func NewHandler(service *application.ApprovalService) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	g := r.Group("/contracts")
	{
		g.POST("", h.CreateContract)
		g.POST("/:no/workflow", h.InitializeWorkflow)
		g.GET("/:no/workflow", h.GetWorkflow)
		g.POST("/:no/stages/:stage", h.ActOnStage)
		g.GET("/:no/progress", h.GetProgress)
	}
	// 授权表与引擎共用同一份 StageRoles，展示层据此渲染可执行动作
	r.GET("/workflow/roles", h.GetStageRoles)
}

type CreateContractReq struct {
	ContractNo   string `json:"contract_no" binding:"required"`
	CustomerName string `json:"customer_name" binding:"required"`
	LoanAmount   string `json:"loan_amount" binding:"required"`
}

func (h *Handler) CreateContract(c *gin.Context) {
	var req CreateContractReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	amount, err := decimal.NewFromString(req.LoanAmount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid loan_amount"})
		return
	}
	contract, err := h.service.CreateContract(c.Request.Context(), application.CreateContractCommand{
		ContractNo:   req.ContractNo,
		CustomerName: req.CustomerName,
		LoanAmount:   amount,
	})
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, contract)
}

func (h *Handler) InitializeWorkflow(c *gin.Context) {
	records, err := h.service.InitializeWorkflow(c.Request.Context(), c.Param("no"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stages": records})
}

func (h *Handler) GetWorkflow(c *gin.Context) {
	workflow, err := h.service.GetWorkflow(c.Request.Context(), c.Param("no"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"contract": workflow.Contract,
		"stages":   workflow.Records,
	})
}

type ActReq struct {
	Action    string `json:"action" binding:"required"`
	ActorID   string `json:"actor_id" binding:"required"`
	ActorRole string `json:"actor_role" binding:"required"`
	Comments  string `json:"comments"`
}

func (h *Handler) ActOnStage(c *gin.Context) {
	var req ActReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	record, err := h.service.ActOnStage(c.Request.Context(), application.ActCommand{
		ContractNo: c.Param("no"),
		Stage:      domain.Stage(c.Param("stage")),
		Action:     domain.Action(req.Action),
		ActorID:    req.ActorID,
		ActorRole:  domain.Role(req.ActorRole),
		Comments:   req.Comments,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (h *Handler) GetProgress(c *gin.Context) {
	progress, err := h.service.ComputeProgress(c.Request.Context(), c.Param("no"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"contract_no": c.Param("no"), "progress": progress})
}

func (h *Handler) GetStageRoles(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"stage_order": domain.StageOrder,
		"stage_roles": domain.StageRoles,
	})
}

// writeError 映射领域错误。冲突时附带最新权威状态，调用方据此重试。
func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrContractNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrEmptyComments):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrInvalidStage):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrStageConflict):
		body := gin.H{"error": err.Error()}
		if workflow, wfErr := h.service.GetWorkflow(c.Request.Context(), c.Param("no")); wfErr == nil {
			body["contract"] = workflow.Contract
			body["stages"] = workflow.Records
		}
		c.JSON(http.StatusConflict, body)
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
