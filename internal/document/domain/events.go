package domain

import (
	"time"
)

// 集成事件 topic
const (
	TopicDocumentExtracted     = "document.extracted"
	TopicDocumentReviewFlagged = "document.review_flagged"
	TopicDocumentValidated     = "document.validated"
	TopicDocumentRejected      = "document.rejected"
)

// DocumentExtractedEvent 提取完成且置信度达标
type DocumentExtractedEvent struct {
	DocumentID      string       `json:"document_id"`
	DocumentType    DocumentType `json:"document_type"`
	ConfidenceScore float64      `json:"confidence_score"`
	FieldCount      int          `json:"field_count"`
	OccurredOn      time.Time    `json:"occurred_on"`
}

// DocumentReviewFlaggedEvent 置信度不足或解析失败，转人工复核
type DocumentReviewFlaggedEvent struct {
	DocumentID      string       `json:"document_id"`
	DocumentType    DocumentType `json:"document_type"`
	ConfidenceScore float64      `json:"confidence_score"`
	ParseFailed     bool         `json:"parse_failed"`
	OccurredOn      time.Time    `json:"occurred_on"`
}

// DocumentValidatedEvent 资料确认有效
type DocumentValidatedEvent struct {
	DocumentID      string       `json:"document_id"`
	DocumentType    DocumentType `json:"document_type"`
	ContractID      string       `json:"contract_id,omitempty"`
	ConfidenceScore float64      `json:"confidence_score"`
	OccurredOn      time.Time    `json:"occurred_on"`
}

// DocumentRejectedEvent 资料驳回
type DocumentRejectedEvent struct {
	DocumentID string    `json:"document_id"`
	ContractID string    `json:"contract_id,omitempty"`
	OccurredOn time.Time `json:"occurred_on"`
}
