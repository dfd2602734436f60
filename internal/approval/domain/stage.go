package domain

import (
	"time"

	"gorm.io/gorm"
)

// Stage 审批阶段，顺序固定且全序，不存在并行或分支审批
type Stage string

const (
	StageDocumentReview Stage = "DOCUMENT_REVIEW"
	StageCreditAnalysis Stage = "CREDIT_ANALYSIS"
	StageLegalReview    Stage = "LEGAL_REVIEW"
	StageRiskAssessment Stage = "RISK_ASSESSMENT"
	StageFinalApproval  Stage = "FINAL_APPROVAL"
)

// StageOrder 阶段全序
var StageOrder = []Stage{
	StageDocumentReview,
	StageCreditAnalysis,
	StageLegalReview,
	StageRiskAssessment,
	StageFinalApproval,
}

// Index 阶段在全序中的位置，未知阶段返回 -1
func (s Stage) Index() int {
	for i, stage := range StageOrder {
		if stage == s {
			return i
		}
	}
	return -1
}

// Valid 是否为已定义阶段
func (s Stage) Valid() bool { return s.Index() >= 0 }

// Role 审批角色
type Role string

const (
	RoleCreditOfficer Role = "CREDIT_OFFICER"
	RoleCreditAnalyst Role = "CREDIT_ANALYST"
	RoleLegalOfficer  Role = "LEGAL_OFFICER"
	RoleRiskOfficer   Role = "RISK_OFFICER"
	RoleManager       Role = "MANAGER"
)

// StageRoles 阶段到角色的静态授权表。引擎做校验，展示层用同一张表
// 渲染“我能做什么”，避免两处各维护一份漂移。
var StageRoles = map[Stage]Role{
	StageDocumentReview: RoleCreditOfficer,
	StageCreditAnalysis: RoleCreditAnalyst,
	StageLegalReview:    RoleLegalOfficer,
	StageRiskAssessment: RoleRiskOfficer,
	StageFinalApproval:  RoleManager,
}

// StageStatus 阶段记录状态
type StageStatus string

const (
	StagePending  StageStatus = "PENDING"
	StageApproved StageStatus = "APPROVED"
	StageRejected StageStatus = "REJECTED"
)

// Action 审批动作
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

// Actor 审批人
type Actor struct {
	ID   string
	Role Role
}

// ApprovalStageRecord 合同审批阶段记录，(contract_id, stage) 唯一
type ApprovalStageRecord struct {
	gorm.Model
	ContractID string      `gorm:"column:contract_id;type:varchar(64);uniqueIndex:uk_contract_stage;not null" json:"contract_id"`
	Stage      Stage       `gorm:"column:stage;type:varchar(32);uniqueIndex:uk_contract_stage;not null" json:"stage"`
	Status     StageStatus `gorm:"column:status;type:varchar(20);index;not null;default:'PENDING'" json:"status"`
	// ApproverID 与 Comments 在动作发生后必填
	ApproverID string     `gorm:"column:approver_id;type:varchar(64)" json:"approver_id,omitempty"`
	Comments   string     `gorm:"column:comments;type:text" json:"comments,omitempty"`
	ApprovedAt *time.Time `gorm:"column:approved_at;type:datetime" json:"approved_at,omitempty"`
}

func (ApprovalStageRecord) TableName() string { return "approval_stage_records" }
