package domain

import (
	"context"
	"errors"

	"github.com/wyfcoding/pkg/fsm"
	"gorm.io/gorm"
)

var (
	ErrDocumentNotFound   = errors.New("document not found")
	ErrExtractionRequired = errors.New("extraction result required for this transition")
	ErrReviewRequired     = errors.New("at least one field must be reviewed before validation")
	ErrNoFields           = errors.New("document has no fields to validate")
)

// DocumentType 资料类型
type DocumentType string

const (
	DocTypeIDCard               DocumentType = "ID_CARD"
	DocTypePassport             DocumentType = "PASSPORT"
	DocTypeLegalRegistration    DocumentType = "LEGAL_REGISTRATION"
	DocTypeBusinessRegistration DocumentType = "BUSINESS_REGISTRATION"
	DocTypeFinancialStatement   DocumentType = "FINANCIAL_STATEMENT"
)

// DocumentStatus 资料生命周期状态
type DocumentStatus string

const (
	DocStatusUploaded    DocumentStatus = "UPLOADED"     // 已上传，未触发提取
	DocStatusProcessing  DocumentStatus = "PROCESSING"   // OCR 提取中
	DocStatusExtracted   DocumentStatus = "EXTRACTED"    // 提取完成，置信度达标
	DocStatusNeedsReview DocumentStatus = "NEEDS_REVIEW" // 置信度不足，待人工复核
	DocStatusValidated   DocumentStatus = "VALIDATED"    // 已确认有效（终态之一）
	DocStatusRejected    DocumentStatus = "REJECTED"     // 已驳回（终态）
)

// 生命周期事件
const (
	EventStartProcessing = "START_PROCESSING"
	EventMarkExtracted   = "MARK_EXTRACTED"
	EventFlagReview      = "FLAG_REVIEW"
	EventValidate        = "VALIDATE"
	EventReject          = "REJECT"
)

// Document 抵押资料聚合根
type Document struct {
	gorm.Model
	DocumentID string         `gorm:"column:document_id;type:varchar(64);uniqueIndex;not null" json:"document_id"`
	ContractID *string        `gorm:"column:contract_id;type:varchar(64);index" json:"contract_id,omitempty"`
	Type       DocumentType   `gorm:"column:document_type;type:varchar(32);not null" json:"document_type"`
	Status     DocumentStatus `gorm:"column:status;type:varchar(20);index;not null;default:'UPLOADED'" json:"status"`
	// ConfidenceScore 文档级置信度 0-100，未提取时为空
	ConfidenceScore   *float64 `gorm:"column:confidence_score;type:decimal(5,1)" json:"confidence_score,omitempty"`
	NeedsManualReview bool     `gorm:"column:needs_manual_review;not null;default:false" json:"needs_manual_review"`
	// OCRExtractedJSON 原始供应商响应，仅作审计留存
	OCRExtractedJSON string `gorm:"column:ocr_extracted_json;type:mediumtext" json:"-"`

	machine *fsm.Machine[string, string] `gorm:"-"`
}

func (Document) TableName() string { return "documents" }

// NewDocument 创建已上传资料
func NewDocument(documentID string, docType DocumentType) *Document {
	d := &Document{
		DocumentID: documentID,
		Type:       docType,
		Status:     DocStatusUploaded,
	}
	d.initFSM()
	return d
}

func (d *Document) initFSM() {
	m := fsm.NewMachine[string, string](string(d.Status))
	m.AddTransition(string(DocStatusUploaded), EventStartProcessing, string(DocStatusProcessing))
	m.AddTransition(string(DocStatusProcessing), EventMarkExtracted, string(DocStatusExtracted))
	m.AddTransition(string(DocStatusProcessing), EventFlagReview, string(DocStatusNeedsReview))
	m.AddTransition(string(DocStatusExtracted), EventValidate, string(DocStatusValidated))
	m.AddTransition(string(DocStatusNeedsReview), EventValidate, string(DocStatusValidated))
	// 纯手工录入流程：未经 OCR 直接确认
	m.AddTransition(string(DocStatusUploaded), EventValidate, string(DocStatusValidated))
	// VALIDATED 之外的任意状态都可驳回
	m.AddTransition(string(DocStatusUploaded), EventReject, string(DocStatusRejected))
	m.AddTransition(string(DocStatusProcessing), EventReject, string(DocStatusRejected))
	m.AddTransition(string(DocStatusExtracted), EventReject, string(DocStatusRejected))
	m.AddTransition(string(DocStatusNeedsReview), EventReject, string(DocStatusRejected))
	d.machine = m
}

// InitFSM 确保从存储加载后状态机已初始化
func (d *Document) InitFSM() {
	if d.machine == nil {
		d.initFSM()
	}
}

func (d *Document) trigger(ctx context.Context, event string, next DocumentStatus) error {
	d.InitFSM()
	if err := d.machine.Trigger(ctx, event); err != nil {
		return err
	}
	d.Status = next
	return nil
}

// StartProcessing OCR 调用发起
func (d *Document) StartProcessing(ctx context.Context) error {
	return d.trigger(ctx, EventStartProcessing, DocStatusProcessing)
}

// ApplyExtraction 提取完成。结果为 nil 时拒绝迁移；由置信度闸门决定
// 进入 EXTRACTED 还是 NEEDS_REVIEW。
func (d *Document) ApplyExtraction(ctx context.Context, result *ExtractionResult) error {
	if result == nil {
		return ErrExtractionRequired
	}
	event, next := EventMarkExtracted, DocStatusExtracted
	if result.NeedsManualReview {
		event, next = EventFlagReview, DocStatusNeedsReview
	}
	if err := d.trigger(ctx, event, next); err != nil {
		return err
	}
	score := result.ConfidenceScore
	d.ConfidenceScore = &score
	d.NeedsManualReview = result.NeedsManualReview
	d.OCRExtractedJSON = string(result.Raw)
	return nil
}

// FlagReviewAfterParseFailure 解析失败降级：置信度 0、转入人工复核，
// 不让文档卡死在 PROCESSING。
func (d *Document) FlagReviewAfterParseFailure(ctx context.Context, raw []byte) error {
	if err := d.trigger(ctx, EventFlagReview, DocStatusNeedsReview); err != nil {
		return err
	}
	zero := 0.0
	d.ConfidenceScore = &zero
	d.NeedsManualReview = true
	d.OCRExtractedJSON = string(raw)
	return nil
}

// CompleteReview 人工复核通过。fields 为复核后的字段全集：必须至少有一个
// 字段被人工修正或显式再确认；文档置信度取字段置信度的最大值（人工修正
// 字段按 100 计）。
func (d *Document) CompleteReview(ctx context.Context, fields []*ExtractedField) error {
	if len(fields) == 0 {
		return ErrNoFields
	}
	reviewed := false
	maxConfidence := 0.0
	for _, f := range fields {
		if f.ManuallyCorrected || f.Validated {
			reviewed = true
		}
		if f.ConfidenceScore > maxConfidence {
			maxConfidence = f.ConfidenceScore
		}
	}
	if !reviewed {
		return ErrReviewRequired
	}
	if err := d.trigger(ctx, EventValidate, DocStatusValidated); err != nil {
		return err
	}
	d.ConfidenceScore = &maxConfidence
	d.NeedsManualReview = false
	return nil
}

// ValidateAuto 置信度达标的自动确认（EXTRACTED → VALIDATED）
func (d *Document) ValidateAuto(ctx context.Context) error {
	return d.trigger(ctx, EventValidate, DocStatusValidated)
}

// ValidateManual 纯手工流程确认：按约定置信度记 100
func (d *Document) ValidateManual(ctx context.Context, fieldCount int) error {
	if fieldCount == 0 {
		return ErrNoFields
	}
	if err := d.trigger(ctx, EventValidate, DocStatusValidated); err != nil {
		return err
	}
	full := 100.0
	d.ConfidenceScore = &full
	d.NeedsManualReview = false
	return nil
}

// Reject 驳回（终态）
func (d *Document) Reject(ctx context.Context) error {
	return d.trigger(ctx, EventReject, DocStatusRejected)
}
