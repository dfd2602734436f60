package domain

import (
	"context"
)

// ContractRepository 合同仓储
type ContractRepository interface {
	Create(ctx context.Context, contract *Contract) error
	Save(ctx context.Context, contract *Contract) error
	GetByContractNo(ctx context.Context, contractNo string) (*Contract, error)
	// WithTx 在单个事务中执行 fn，事务通过 context 传递给同库仓储
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// StageRepository 审批阶段记录仓储
type StageRepository interface {
	CreateBatch(ctx context.Context, records []*ApprovalStageRecord) error
	ListByContract(ctx context.Context, contractNo string) ([]*ApprovalStageRecord, error)
	// UpdateIfStatus 条件更新：仅当记录当前状态仍等于 expected 时写入，
	// 返回受影响行数。0 行表示并发修改，调用方据此返回 ErrStageConflict。
	UpdateIfStatus(ctx context.Context, record *ApprovalStageRecord, expected StageStatus) (int64, error)
}

// EventPublisher 集成事件发布，PublishInTx 用于 Outbox 模式在业务事务内落消息
type EventPublisher interface {
	Publish(ctx context.Context, topic string, key string, event any) error
	PublishInTx(ctx context.Context, tx any, topic string, key string, event any) error
}
