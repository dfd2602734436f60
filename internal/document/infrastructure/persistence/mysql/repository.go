// Package mysql 资料服务 MySQL 仓储实现
package mysql

import (
	"context"
	"errors"
	"time"

	"github.com/wyfcoding/loancollateral/internal/document/domain"
	"github.com/wyfcoding/pkg/contextx"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type documentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository 创建资料仓储
func NewDocumentRepository(db *gorm.DB) domain.DocumentRepository {
	return &documentRepository{db: db}
}

func (r *documentRepository) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := contextx.GetTx(ctx).(*gorm.DB); ok && tx != nil {
		return tx
	}
	return r.db
}

func (r *documentRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(contextx.WithTx(ctx, tx))
	})
}

func (r *documentRepository) Save(ctx context.Context, doc *domain.Document) error {
	return r.getDB(ctx).WithContext(ctx).Save(doc).Error
}

func (r *documentRepository) GetByDocumentID(ctx context.Context, documentID string) (*domain.Document, error) {
	var doc domain.Document
	err := r.getDB(ctx).WithContext(ctx).Where("document_id = ?", documentID).First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	doc.InitFSM()
	return &doc, nil
}

func (r *documentRepository) ListByContract(ctx context.Context, contractID string) ([]*domain.Document, error) {
	var docs []*domain.Document
	err := r.getDB(ctx).WithContext(ctx).Where("contract_id = ?", contractID).Find(&docs).Error
	if err != nil {
		return nil, err
	}
	for _, d := range docs {
		d.InitFSM()
	}
	return docs, nil
}

type fieldRepository struct {
	db *gorm.DB
}

// NewFieldRepository 创建提取字段仓储
func NewFieldRepository(db *gorm.DB) domain.FieldRepository {
	return &fieldRepository{db: db}
}

func (r *fieldRepository) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := contextx.GetTx(ctx).(*gorm.DB); ok && tx != nil {
		return tx
	}
	return r.db
}

// Upsert 以 (document_id, field_name) 为冲突键覆盖值/置信度/确认标记，
// 并刷新 validated_at，保证重复回调与并发写的幂等性。
func (r *fieldRepository) Upsert(ctx context.Context, field *domain.ExtractedField) error {
	now := time.Now()
	if field.Validated && field.ValidatedAt == nil {
		field.ValidatedAt = &now
	}
	return r.getDB(ctx).WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "document_id"}, {Name: "field_name"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"field_value", "confidence_score", "validated", "manually_corrected", "validated_at", "updated_at",
		}),
	}).Create(field).Error
}

func (r *fieldRepository) Get(ctx context.Context, documentID, fieldName string) (*domain.ExtractedField, error) {
	var field domain.ExtractedField
	err := r.getDB(ctx).WithContext(ctx).
		Where("document_id = ? AND field_name = ?", documentID, fieldName).
		First(&field).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &field, nil
}

func (r *fieldRepository) ListByDocument(ctx context.Context, documentID string) ([]*domain.ExtractedField, error) {
	var fields []*domain.ExtractedField
	err := r.getDB(ctx).WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("field_name").
		Find(&fields).Error
	return fields, err
}
