// Package application 资料提取应用服务，负责协调解析器、仓储与事件发布
package application

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/wyfcoding/loancollateral/internal/document/domain"
	"github.com/wyfcoding/pkg/contextx"
)

// DocumentService 资料应用服务
type DocumentService struct {
	docs      domain.DocumentRepository
	fields    domain.FieldRepository
	parser    *domain.ExtractionParser
	publisher domain.EventPublisher
	logger    *slog.Logger
}

func NewDocumentService(
	docs domain.DocumentRepository,
	fields domain.FieldRepository,
	parser *domain.ExtractionParser,
	publisher domain.EventPublisher,
	logger *slog.Logger,
) *DocumentService {
	return &DocumentService{
		docs:      docs,
		fields:    fields,
		parser:    parser,
		publisher: publisher,
		logger:    logger.With("module", "document_service"),
	}
}

// RegisterDocument 登记已上传资料
func (s *DocumentService) RegisterDocument(ctx context.Context, documentID string, docType domain.DocumentType, contractID string) (*domain.Document, error) {
	doc := domain.NewDocument(documentID, docType)
	if contractID != "" {
		doc.ContractID = &contractID
	}
	if err := s.docs.Save(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// ProcessExtraction 消化一次供应商 OCR 响应：解析、字段落库、状态迁移、
// 发事件，全部在一个事务内。解析失败不报错：文档降级为待人工复核
// （置信度 0），结果以 Success=false 返回。
func (s *DocumentService) ProcessExtraction(ctx context.Context, documentID string, payload []byte) (*domain.ExtractionResult, error) {
	result, parseErr := s.parser.Parse(payload)
	if parseErr != nil {
		var pe *domain.ParseError
		if !errors.As(parseErr, &pe) {
			return nil, parseErr
		}
		s.logger.WarnContext(ctx, "extraction parse failed, degrading to manual review",
			"document_id", documentID, "reason", pe.Reason)
		if err := s.degradeToReview(ctx, documentID, payload); err != nil {
			return nil, err
		}
		return &domain.ExtractionResult{
			Success:           false,
			NeedsManualReview: true,
			Warnings:          []string{pe.Reason},
			Raw:               payload,
		}, nil
	}

	now := time.Now()
	err := s.docs.WithTx(ctx, func(txCtx context.Context) error {
		doc, err := s.mustGet(txCtx, documentID)
		if err != nil {
			return err
		}
		// 兼容未显式标记 PROCESSING 的直接回调
		if doc.Status == domain.DocStatusUploaded {
			if err := doc.StartProcessing(txCtx); err != nil {
				return err
			}
		}
		if err := doc.ApplyExtraction(txCtx, result); err != nil {
			return err
		}
		for _, parsed := range result.Fields {
			field := domain.NewFieldFromExtraction(documentID, parsed, now)
			if err := s.fields.Upsert(txCtx, field); err != nil {
				return err
			}
		}
		if err := s.docs.Save(txCtx, doc); err != nil {
			return err
		}
		if result.NeedsManualReview {
			return s.publisher.PublishInTx(ctx, contextx.GetTx(txCtx), domain.TopicDocumentReviewFlagged, documentID,
				domain.DocumentReviewFlaggedEvent{
					DocumentID:      documentID,
					DocumentType:    doc.Type,
					ConfidenceScore: result.ConfidenceScore,
					OccurredOn:      now,
				})
		}
		return s.publisher.PublishInTx(ctx, contextx.GetTx(txCtx), domain.TopicDocumentExtracted, documentID,
			domain.DocumentExtractedEvent{
				DocumentID:      documentID,
				DocumentType:    doc.Type,
				ConfidenceScore: result.ConfidenceScore,
				FieldCount:      len(result.Fields),
				OccurredOn:      now,
			})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *DocumentService) degradeToReview(ctx context.Context, documentID string, payload []byte) error {
	return s.docs.WithTx(ctx, func(txCtx context.Context) error {
		doc, err := s.mustGet(txCtx, documentID)
		if err != nil {
			return err
		}
		if doc.Status == domain.DocStatusUploaded {
			if err := doc.StartProcessing(txCtx); err != nil {
				return err
			}
		}
		if err := doc.FlagReviewAfterParseFailure(txCtx, payload); err != nil {
			return err
		}
		if err := s.docs.Save(txCtx, doc); err != nil {
			return err
		}
		return s.publisher.PublishInTx(ctx, contextx.GetTx(txCtx), domain.TopicDocumentReviewFlagged, documentID,
			domain.DocumentReviewFlaggedEvent{
				DocumentID:   documentID,
				DocumentType: doc.Type,
				ParseFailed:  true,
				OccurredOn:   time.Now(),
			})
	})
}

// FieldCorrection 人工复核的单字段输入
type FieldCorrection struct {
	Name string
	// Value 非空表示人工改写；为空且 Confirm 为 true 表示原值再确认
	Value   string
	Confirm bool
}

// CompleteReview 人工复核通过：应用修正/再确认，文档置信度取复核后字段
// 置信度的最大值（人工修正按 100 计），随后 VALIDATED 并发事件。
func (s *DocumentService) CompleteReview(ctx context.Context, documentID string, corrections []FieldCorrection) (*domain.Document, error) {
	if len(corrections) == 0 {
		return nil, domain.ErrReviewRequired
	}
	var doc *domain.Document
	now := time.Now()
	err := s.docs.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		doc, err = s.mustGet(txCtx, documentID)
		if err != nil {
			return err
		}
		for _, c := range corrections {
			field, err := s.fields.Get(txCtx, documentID, c.Name)
			if err != nil {
				return err
			}
			if field == nil {
				// 复核中补录的新字段视为人工录入
				field = &domain.ExtractedField{DocumentID: documentID, FieldName: c.Name}
			}
			if c.Value != "" {
				field.ApplyCorrection(c.Value, now)
			} else if c.Confirm {
				field.Confirm(now)
			}
			if err := s.fields.Upsert(txCtx, field); err != nil {
				return err
			}
		}
		all, err := s.fields.ListByDocument(txCtx, documentID)
		if err != nil {
			return err
		}
		if err := doc.CompleteReview(txCtx, all); err != nil {
			return err
		}
		if err := s.docs.Save(txCtx, doc); err != nil {
			return err
		}
		return s.publishValidated(ctx, txCtx, doc, now)
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// TransitionDocument 通用生命周期操作（HTTP 层透传事件名）
func (s *DocumentService) TransitionDocument(ctx context.Context, documentID, event string) (*domain.Document, error) {
	var doc *domain.Document
	now := time.Now()
	err := s.docs.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		doc, err = s.mustGet(txCtx, documentID)
		if err != nil {
			return err
		}
		switch event {
		case domain.EventStartProcessing:
			err = doc.StartProcessing(txCtx)
		case domain.EventValidate:
			switch doc.Status {
			case domain.DocStatusExtracted:
				err = doc.ValidateAuto(txCtx)
			default:
				// 纯手工流程：要求已有人工录入字段
				var all []*domain.ExtractedField
				all, err = s.fields.ListByDocument(txCtx, documentID)
				if err != nil {
					return err
				}
				err = doc.ValidateManual(txCtx, len(all))
			}
		case domain.EventReject:
			err = doc.Reject(txCtx)
		default:
			return domain.ErrExtractionRequired
		}
		if err != nil {
			return err
		}
		if err := s.docs.Save(txCtx, doc); err != nil {
			return err
		}
		switch doc.Status {
		case domain.DocStatusValidated:
			return s.publishValidated(ctx, txCtx, doc, now)
		case domain.DocStatusRejected:
			contractID := ""
			if doc.ContractID != nil {
				contractID = *doc.ContractID
			}
			return s.publisher.PublishInTx(ctx, contextx.GetTx(txCtx), domain.TopicDocumentRejected, documentID,
				domain.DocumentRejectedEvent{DocumentID: documentID, ContractID: contractID, OccurredOn: now})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// UpsertField 手工录入或修正单个字段（幂等）
func (s *DocumentService) UpsertField(ctx context.Context, documentID, name, value string, corrected bool) (*domain.ExtractedField, error) {
	now := time.Now()
	field, err := s.fields.Get(ctx, documentID, name)
	if err != nil {
		return nil, err
	}
	if field == nil {
		field = &domain.ExtractedField{DocumentID: documentID, FieldName: name}
	}
	if corrected {
		field.ApplyCorrection(value, now)
	} else {
		field.FieldValue = value
		field.ConfidenceScore = 100
		field.Validated = true
		field.ValidatedAt = &now
	}
	if err := s.fields.Upsert(ctx, field); err != nil {
		return nil, err
	}
	return field, nil
}

// GetDocument 查询资料
func (s *DocumentService) GetDocument(ctx context.Context, documentID string) (*domain.Document, error) {
	return s.mustGet(ctx, documentID)
}

// ListFields 查询资料字段
func (s *DocumentService) ListFields(ctx context.Context, documentID string) ([]*domain.ExtractedField, error) {
	return s.fields.ListByDocument(ctx, documentID)
}

func (s *DocumentService) publishValidated(ctx, txCtx context.Context, doc *domain.Document, now time.Time) error {
	contractID := ""
	if doc.ContractID != nil {
		contractID = *doc.ContractID
	}
	confidence := 0.0
	if doc.ConfidenceScore != nil {
		confidence = *doc.ConfidenceScore
	}
	return s.publisher.PublishInTx(ctx, contextx.GetTx(txCtx), domain.TopicDocumentValidated, doc.DocumentID,
		domain.DocumentValidatedEvent{
			DocumentID:      doc.DocumentID,
			DocumentType:    doc.Type,
			ContractID:      contractID,
			ConfidenceScore: confidence,
			OccurredOn:      now,
		})
}

func (s *DocumentService) mustGet(ctx context.Context, documentID string) (*domain.Document, error) {
	doc, err := s.docs.GetByDocumentID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, domain.ErrDocumentNotFound
	}
	return doc, nil
}
