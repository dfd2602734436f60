// Package application 审批工作流应用服务
package application

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/loancollateral/internal/approval/domain"
	"github.com/wyfcoding/pkg/contextx"
)

// ApprovalService 审批工作流引擎的应用层入口
type ApprovalService struct {
	contracts domain.ContractRepository
	stages    domain.StageRepository
	publisher domain.EventPublisher
	logger    *slog.Logger
}

func NewApprovalService(
	contracts domain.ContractRepository,
	stages domain.StageRepository,
	publisher domain.EventPublisher,
	logger *slog.Logger,
) *ApprovalService {
	return &ApprovalService{
		contracts: contracts,
		stages:    stages,
		publisher: publisher,
		logger:    logger.With("module", "approval_service"),
	}
}

// CreateContractCommand 建立合同
type CreateContractCommand struct {
	ContractNo   string
	CustomerName string
	LoanAmount   decimal.Decimal
}

func (s *ApprovalService) CreateContract(ctx context.Context, cmd CreateContractCommand) (*domain.Contract, error) {
	contract := domain.NewContract(cmd.ContractNo, cmd.CustomerName, cmd.LoanAmount)
	if err := s.contracts.Create(ctx, contract); err != nil {
		return nil, err
	}
	return contract, nil
}

// InitializeWorkflow 惰性创建全量 PENDING 阶段记录。幂等：已存在记录时
// 原样返回，不做任何写入。
func (s *ApprovalService) InitializeWorkflow(ctx context.Context, contractNo string) ([]*domain.ApprovalStageRecord, error) {
	var records []*domain.ApprovalStageRecord
	err := s.contracts.WithTx(ctx, func(txCtx context.Context) error {
		contract, err := s.mustGet(txCtx, contractNo)
		if err != nil {
			return err
		}
		existing, err := s.stages.ListByContract(txCtx, contractNo)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			records = domain.NewWorkflow(contract, existing).Records
			return nil
		}

		records = domain.NewStageRecords(contractNo)
		if err := s.stages.CreateBatch(txCtx, records); err != nil {
			return err
		}
		first := domain.StageOrder[0]
		contract.CurrentStage = &first
		if contract.Status == domain.ContractStatusStarted || contract.Status == domain.ContractStatusPendingDocuments {
			contract.Status = domain.ContractStatusProcessing
		}
		if err := s.contracts.Save(txCtx, contract); err != nil {
			return err
		}
		return s.publisher.PublishInTx(ctx, contextx.GetTx(txCtx), domain.TopicWorkflowInitialized, contractNo,
			domain.WorkflowInitializedEvent{
				ContractNo: contractNo,
				StageCount: len(records),
				FirstStage: first,
				OccurredOn: time.Now(),
			})
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

// ActCommand 阶段审批动作
type ActCommand struct {
	ContractNo string
	Stage      domain.Stage
	Action     domain.Action
	ActorID    string
	ActorRole  domain.Role
	Comments   string
}

// ActOnStage 在活动阶段上执行审批动作。整个动作在一个事务内：领域校验、
// 条件更新（乐观检查，提交前状态必须仍为 PENDING）、合同状态推进、outbox
// 落消息。并发修改返回 ErrStageConflict，由调用方携带最新状态重试，
// 绝不静默覆盖，也不自动重试。
func (s *ApprovalService) ActOnStage(ctx context.Context, cmd ActCommand) (*domain.ApprovalStageRecord, error) {
	var acted *domain.ApprovalStageRecord
	now := time.Now()
	err := s.contracts.WithTx(ctx, func(txCtx context.Context) error {
		contract, err := s.mustGet(txCtx, cmd.ContractNo)
		if err != nil {
			return err
		}
		records, err := s.stages.ListByContract(txCtx, cmd.ContractNo)
		if err != nil {
			return err
		}
		workflow := domain.NewWorkflow(contract, records)
		actor := domain.Actor{ID: cmd.ActorID, Role: cmd.ActorRole}
		acted, err = workflow.Act(cmd.Stage, cmd.Action, actor, cmd.Comments, now)
		if err != nil {
			return err
		}

		affected, err := s.stages.UpdateIfStatus(txCtx, acted, domain.StagePending)
		if err != nil {
			return err
		}
		if affected == 0 {
			return domain.ErrStageConflict
		}
		if err := s.contracts.Save(txCtx, contract); err != nil {
			return err
		}

		event := domain.StageActedEvent{
			ContractNo: cmd.ContractNo,
			Stage:      cmd.Stage,
			Action:     cmd.Action,
			ApproverID: cmd.ActorID,
			Comments:   cmd.Comments,
			NextStage:  contract.CurrentStage,
			OccurredOn: now,
		}
		topic := domain.TopicStageApproved
		if cmd.Action == domain.ActionReject {
			topic = domain.TopicStageRejected
		}
		if err := s.publisher.PublishInTx(ctx, contextx.GetTx(txCtx), topic, cmd.ContractNo, event); err != nil {
			return err
		}

		if contract.Terminal() {
			decided := domain.ContractDecidedEvent{
				ContractNo: cmd.ContractNo,
				Status:     contract.Status,
				Progress:   domain.Progress(workflow.Records, contract.Status, contract.ApprovedAt),
				OccurredOn: now,
			}
			terminalTopic := domain.TopicContractApproved
			if contract.Status == domain.ContractStatusRejected {
				terminalTopic = domain.TopicContractRejected
			}
			return s.publisher.PublishInTx(ctx, contextx.GetTx(txCtx), terminalTopic, cmd.ContractNo, decided)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return acted, nil
}

// GetWorkflow 查询合同工作流（记录按阶段全序）
func (s *ApprovalService) GetWorkflow(ctx context.Context, contractNo string) (*domain.Workflow, error) {
	contract, err := s.mustGet(ctx, contractNo)
	if err != nil {
		return nil, err
	}
	records, err := s.stages.ListByContract(ctx, contractNo)
	if err != nil {
		return nil, err
	}
	return domain.NewWorkflow(contract, records), nil
}

// ComputeProgress 推导合同完成度
func (s *ApprovalService) ComputeProgress(ctx context.Context, contractNo string) (int, error) {
	workflow, err := s.GetWorkflow(ctx, contractNo)
	if err != nil {
		return 0, err
	}
	return domain.Progress(workflow.Records, workflow.Contract.Status, workflow.Contract.ApprovedAt), nil
}

// MarkPendingDocuments 工作流尚未初始化且无有效资料时由资料服务回调标记
func (s *ApprovalService) MarkPendingDocuments(ctx context.Context, contractNo string) error {
	return s.contracts.WithTx(ctx, func(txCtx context.Context) error {
		contract, err := s.mustGet(txCtx, contractNo)
		if err != nil {
			return err
		}
		if contract.Status != domain.ContractStatusStarted {
			return nil
		}
		contract.Status = domain.ContractStatusPendingDocuments
		return s.contracts.Save(txCtx, contract)
	})
}

func (s *ApprovalService) mustGet(ctx context.Context, contractNo string) (*domain.Contract, error) {
	contract, err := s.contracts.GetByContractNo(ctx, contractNo)
	if err != nil {
		return nil, err
	}
	if contract == nil {
		return nil, domain.ErrContractNotFound
	}
	return contract, nil
}
