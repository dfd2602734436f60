package domain

import (
	"context"
)

// DocumentRepository 资料仓储
type DocumentRepository interface {
	Save(ctx context.Context, doc *Document) error
	GetByDocumentID(ctx context.Context, documentID string) (*Document, error)
	ListByContract(ctx context.Context, contractID string) ([]*Document, error)
	// WithTx 在单个事务中执行 fn，事务通过 context 传递给同库仓储
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// FieldRepository 提取字段仓储，Upsert 以 (document_id, field_name) 为冲突键
type FieldRepository interface {
	Upsert(ctx context.Context, field *ExtractedField) error
	Get(ctx context.Context, documentID, fieldName string) (*ExtractedField, error)
	ListByDocument(ctx context.Context, documentID string) ([]*ExtractedField, error)
}

// EventPublisher 集成事件发布，PublishInTx 用于 Outbox 模式在业务事务内落消息
type EventPublisher interface {
	Publish(ctx context.Context, topic string, key string, event any) error
	PublishInTx(ctx context.Context, tx any, topic string, key string, event any) error
}
