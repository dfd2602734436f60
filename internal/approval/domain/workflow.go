package domain

import (
	"sort"
	"time"
)

// Workflow 单个合同的审批工作流视图：合同 + 按阶段全序排序的记录。
// 不变量：任一时刻最多一个阶段 PENDING 且为活动阶段；活动阶段之前的所有
// 阶段均 APPROVED；出现 REJECTED 后不再有任何后续动作。
type Workflow struct {
	Contract *Contract
	Records  []*ApprovalStageRecord
}

// NewWorkflow 组装工作流视图，记录按阶段全序排序
func NewWorkflow(contract *Contract, records []*ApprovalStageRecord) *Workflow {
	sorted := make([]*ApprovalStageRecord, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Stage.Index() < sorted[j].Stage.Index()
	})
	return &Workflow{Contract: contract, Records: sorted}
}

// NewStageRecords 为合同生成全量 PENDING 阶段记录（惰性初始化用）
func NewStageRecords(contractNo string) []*ApprovalStageRecord {
	records := make([]*ApprovalStageRecord, 0, len(StageOrder))
	for _, stage := range StageOrder {
		records = append(records, &ApprovalStageRecord{
			ContractID: contractNo,
			Stage:      stage,
			Status:     StagePending,
		})
	}
	return records
}

// ActiveStage 活动阶段：按序第一个状态不是 APPROVED 的记录。全部通过、
// 已出现驳回或合同已终态时返回 nil。
func (w *Workflow) ActiveStage() *ApprovalStageRecord {
	if w.Contract != nil && w.Contract.Terminal() {
		return nil
	}
	for _, rec := range w.Records {
		if rec.Status == StageApproved {
			continue
		}
		if rec.Status == StageRejected {
			return nil
		}
		return rec
	}
	return nil
}

// Act 在活动阶段上执行审批动作。只做领域校验与内存变更，持久化与
// 并发冲突检测由应用层在事务内完成。返回被作用的阶段记录。
func (w *Workflow) Act(stage Stage, action Action, actor Actor, comments string, now time.Time) (*ApprovalStageRecord, error) {
	if w.Contract != nil && w.Contract.Terminal() {
		return nil, ErrWorkflowTerminated
	}
	active := w.ActiveStage()
	if active == nil || active.Stage != stage {
		return nil, ErrInvalidStage
	}
	if StageRoles[stage] != actor.Role {
		return nil, ErrPermissionDenied
	}
	if comments == "" {
		return nil, ErrEmptyComments
	}

	switch action {
	case ActionApprove:
		active.Status = StageApproved
		active.ApproverID = actor.ID
		active.Comments = comments
		approvedAt := now
		active.ApprovedAt = &approvedAt

		if next := w.nextPending(active); next != nil {
			w.Contract.CurrentStage = &next.Stage
		} else {
			w.Contract.Status = ContractStatusApproved
			w.Contract.CurrentStage = nil
			w.Contract.ApprovedAt = &approvedAt
		}
		return active, nil
	case ActionReject:
		active.Status = StageRejected
		active.ApproverID = actor.ID
		active.Comments = comments

		w.Contract.Status = ContractStatusRejected
		w.Contract.CurrentStage = nil
		return active, nil
	default:
		return nil, ErrInvalidStage
	}
}

func (w *Workflow) nextPending(after *ApprovalStageRecord) *ApprovalStageRecord {
	for _, rec := range w.Records {
		if rec.Stage.Index() > after.Stage.Index() && rec.Status == StagePending {
			return rec
		}
	}
	return nil
}
