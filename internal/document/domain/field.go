package domain

import (
	"time"

	"gorm.io/gorm"
)

// ExtractedField 提取字段实体，(document_id, field_name) 唯一。
// 冲突时覆盖值/置信度/确认标记并刷新 validated_at，保证幂等落库。
type ExtractedField struct {
	gorm.Model
	DocumentID string `gorm:"column:document_id;type:varchar(64);uniqueIndex:uk_doc_field;not null" json:"document_id"`
	FieldName  string `gorm:"column:field_name;type:varchar(64);uniqueIndex:uk_doc_field;not null" json:"field_name"`
	FieldValue string `gorm:"column:field_value;type:text" json:"field_value"`
	// ConfidenceScore 0-100；人工修正字段按约定记 100
	ConfidenceScore   float64    `gorm:"column:confidence_score;type:decimal(5,1);not null" json:"confidence_score"`
	Validated         bool       `gorm:"column:validated;not null;default:false" json:"validated"`
	ManuallyCorrected bool       `gorm:"column:manually_corrected;not null;default:false" json:"manually_corrected"`
	ValidatedAt       *time.Time `gorm:"column:validated_at;type:datetime" json:"validated_at,omitempty"`
}

func (ExtractedField) TableName() string { return "extracted_fields" }

// NewFieldFromExtraction 由机器提取结果生成字段（provenance: machine）
func NewFieldFromExtraction(documentID string, parsed ParsedField, now time.Time) *ExtractedField {
	f := &ExtractedField{
		DocumentID:      documentID,
		FieldName:       parsed.Name,
		FieldValue:      parsed.Value,
		ConfidenceScore: parsed.ConfidenceScore,
		Validated:       parsed.Validated,
	}
	if parsed.Validated {
		f.ValidatedAt = &now
	}
	return f
}

// ApplyCorrection 人工修正：覆盖值，置信度按约定记 100，标记人工来源
func (f *ExtractedField) ApplyCorrection(value string, now time.Time) {
	f.FieldValue = value
	f.ConfidenceScore = 100
	f.Validated = true
	f.ManuallyCorrected = true
	f.ValidatedAt = &now
}

// Confirm 人工再确认：值不变，仅确认有效
func (f *ExtractedField) Confirm(now time.Time) {
	f.Validated = true
	f.ValidatedAt = &now
}
