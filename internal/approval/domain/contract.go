// Package domain 合同审批工作流领域模型
package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrContractNotFound = errors.New("contract not found")
	ErrInvalidStage     = errors.New("stage is not the current active stage")
	ErrPermissionDenied = errors.New("actor role not authorized for this stage")
	ErrEmptyComments    = errors.New("comments are required")
	ErrStageConflict    = errors.New("stage modified concurrently, retry with fresh state")

	// ErrWorkflowTerminated 终态后的动作属于无效阶段的特例
	ErrWorkflowTerminated = fmt.Errorf("workflow already reached a terminal decision: %w", ErrInvalidStage)
)

// ContractStatus 合同状态
type ContractStatus string

const (
	ContractStatusStarted          ContractStatus = "STARTED"           // 已建立，资料未齐
	ContractStatusPendingDocuments ContractStatus = "PENDING_DOCUMENTS" // 等待有效资料
	ContractStatusProcessing       ContractStatus = "PROCESSING"        // 审批流转中
	ContractStatusApproved         ContractStatus = "APPROVED"          // 审批通过（终态）
	ContractStatusRejected         ContractStatus = "REJECTED"          // 审批驳回（终态）
)

// Contract 贷款合同聚合根
type Contract struct {
	gorm.Model
	// ContractNo 合同编号，外部系统生成，全局唯一
	ContractNo   string          `gorm:"column:contract_no;type:varchar(64);uniqueIndex;not null" json:"contract_no"`
	CustomerName string          `gorm:"column:customer_name;type:varchar(100);not null" json:"customer_name"`
	LoanAmount   decimal.Decimal `gorm:"column:loan_amount;type:decimal(20,2);not null" json:"loan_amount"`
	Status       ContractStatus  `gorm:"column:status;type:varchar(20);index;not null;default:'STARTED'" json:"status"`
	// CurrentStage 当前待审批阶段，初始化前与终态下为空
	CurrentStage *Stage     `gorm:"column:current_stage;type:varchar(32)" json:"current_stage,omitempty"`
	ApprovedAt   *time.Time `gorm:"column:approved_at;type:datetime" json:"approved_at,omitempty"`
}

func (Contract) TableName() string { return "contracts" }

// NewContract 创建合同，初始无任何阶段记录
func NewContract(contractNo, customerName string, loanAmount decimal.Decimal) *Contract {
	return &Contract{
		ContractNo:   contractNo,
		CustomerName: customerName,
		LoanAmount:   loanAmount,
		Status:       ContractStatusStarted,
	}
}

// Terminal 是否已进入终态
func (c *Contract) Terminal() bool {
	return c.Status == ContractStatusApproved || c.Status == ContractStatusRejected
}
