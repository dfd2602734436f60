// Package mysql 审批服务 MySQL 仓储实现
package mysql

import (
	"context"
	"errors"

	"github.com/wyfcoding/loancollateral/internal/approval/domain"
	"github.com/wyfcoding/pkg/contextx"
	"gorm.io/gorm"
)

type contractRepository struct {
	db *gorm.DB
}

// NewContractRepository 创建合同仓储
func NewContractRepository(db *gorm.DB) domain.ContractRepository {
	return &contractRepository{db: db}
}

func (r *contractRepository) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := contextx.GetTx(ctx).(*gorm.DB); ok && tx != nil {
		return tx
	}
	return r.db
}

func (r *contractRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(contextx.WithTx(ctx, tx))
	})
}

func (r *contractRepository) Create(ctx context.Context, contract *domain.Contract) error {
	return r.getDB(ctx).WithContext(ctx).Create(contract).Error
}

func (r *contractRepository) Save(ctx context.Context, contract *domain.Contract) error {
	return r.getDB(ctx).WithContext(ctx).Save(contract).Error
}

func (r *contractRepository) GetByContractNo(ctx context.Context, contractNo string) (*domain.Contract, error) {
	var contract domain.Contract
	err := r.getDB(ctx).WithContext(ctx).Where("contract_no = ?", contractNo).First(&contract).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &contract, nil
}

type stageRepository struct {
	db *gorm.DB
}

// NewStageRepository 创建阶段记录仓储
func NewStageRepository(db *gorm.DB) domain.StageRepository {
	return &stageRepository{db: db}
}

func (r *stageRepository) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := contextx.GetTx(ctx).(*gorm.DB); ok && tx != nil {
		return tx
	}
	return r.db
}

func (r *stageRepository) CreateBatch(ctx context.Context, records []*domain.ApprovalStageRecord) error {
	return r.getDB(ctx).WithContext(ctx).Create(&records).Error
}

func (r *stageRepository) ListByContract(ctx context.Context, contractNo string) ([]*domain.ApprovalStageRecord, error) {
	var records []*domain.ApprovalStageRecord
	err := r.getDB(ctx).WithContext(ctx).
		Where("contract_id = ?", contractNo).
		Find(&records).Error
	return records, err
}

// UpdateIfStatus 乐观并发检查：提交前状态必须仍等于 expected，否则 0 行。
func (r *stageRepository) UpdateIfStatus(ctx context.Context, record *domain.ApprovalStageRecord, expected domain.StageStatus) (int64, error) {
	result := r.getDB(ctx).WithContext(ctx).
		Model(&domain.ApprovalStageRecord{}).
		Where("contract_id = ? AND stage = ? AND status = ?", record.ContractID, record.Stage, expected).
		Updates(map[string]any{
			"status":      record.Status,
			"approver_id": record.ApproverID,
			"comments":    record.Comments,
			"approved_at": record.ApprovedAt,
		})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
