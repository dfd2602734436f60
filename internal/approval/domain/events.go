package domain

import (
	"time"
)

// 集成事件 topic
const (
	TopicWorkflowInitialized = "approval.workflow.initialized"
	TopicStageApproved       = "approval.stage.approved"
	TopicStageRejected       = "approval.stage.rejected"
	TopicContractApproved    = "approval.contract.approved"
	TopicContractRejected    = "approval.contract.rejected"
)

// WorkflowInitializedEvent 阶段记录惰性创建完成
type WorkflowInitializedEvent struct {
	ContractNo string    `json:"contract_no"`
	StageCount int       `json:"stage_count"`
	FirstStage Stage     `json:"first_stage"`
	OccurredOn time.Time `json:"occurred_on"`
}

// StageActedEvent 单个阶段审批动作完成
type StageActedEvent struct {
	ContractNo string    `json:"contract_no"`
	Stage      Stage     `json:"stage"`
	Action     Action    `json:"action"`
	ApproverID string    `json:"approver_id"`
	Comments   string    `json:"comments"`
	NextStage  *Stage    `json:"next_stage,omitempty"`
	OccurredOn time.Time `json:"occurred_on"`
}

// ContractDecidedEvent 合同进入终态
type ContractDecidedEvent struct {
	ContractNo string         `json:"contract_no"`
	Status     ContractStatus `json:"status"`
	Progress   int            `json:"progress"`
	OccurredOn time.Time      `json:"occurred_on"`
}
