// Package domain 贷款抵押资料服务领域模型
package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

// DefaultReviewThreshold 低于该置信度的提取结果必须人工复核
const DefaultReviewThreshold = 95.0

// probSuffix 供应商对单字段置信度使用的兄弟键后缀，如 id_number_prob
const probSuffix = "_prob"

// metadataKeys 供应商响应中的元数据键，不会成为提取字段
var metadataKeys = map[string]struct{}{
	"type_new":         {},
	"address_entities": {},
	"overall_score":    {},
	"request_id":       {},
	"errorCode":        {},
	"errorMessage":     {},
}

// ParseError 供应商响应不完整或格式非法
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("extraction parse failed: %s", e.Reason)
}

// NewParseError 创建解析错误
func NewParseError(format string, args ...any) *ParseError {
	return &ParseError{Reason: fmt.Sprintf(format, args...)}
}

// vendorEnvelope 供应商响应外层结构。data 可能是数组也可能是单个对象，
// overall_score 可能在根上、在 data[0] 内，或完全缺失，在此解一次后
// 下游不再接触原始形态。
type vendorEnvelope struct {
	ErrorCode    int             `json:"errorCode"`
	ErrorMessage string          `json:"errorMessage"`
	Data         json.RawMessage `json:"data"`
	OverallScore json.RawMessage `json:"overall_score"`
}

// ParsedField 规范化后的单个提取字段
type ParsedField struct {
	Name            string  `json:"name"`
	Value           string  `json:"value"`
	ConfidenceScore float64 `json:"confidence_score"`
	Validated       bool    `json:"validated"`
}

// ExtractionResult 提取结果，包含文档级置信度与规范化字段列表
type ExtractionResult struct {
	Success           bool          `json:"success"`
	ConfidenceScore   float64       `json:"confidence_score"`
	NeedsManualReview bool          `json:"needs_manual_review"`
	Fields            []ParsedField `json:"extracted_fields"`
	Warnings          []string      `json:"warnings,omitempty"`
	// Raw 原始供应商响应，用于审计与落库
	Raw []byte `json:"-"`
}

// ExtractionParser 将供应商 OCR 响应解析为规范化结果并做置信度闸门判断
type ExtractionParser struct {
	reviewThreshold float64
}

// NewExtractionParser 创建解析器，threshold <= 0 时使用默认阈值
func NewExtractionParser(threshold float64) *ExtractionParser {
	if threshold <= 0 {
		threshold = DefaultReviewThreshold
	}
	return &ExtractionParser{reviewThreshold: threshold}
}

// ReviewThreshold 当前人工复核阈值
func (p *ExtractionParser) ReviewThreshold() float64 {
	return p.reviewThreshold
}

// Parse 解析供应商响应。返回 *ParseError 表示载荷不可用，调用方应将文档
// 降级为待人工复核而不是中断流水线。
func (p *ExtractionParser) Parse(raw []byte) (*ExtractionResult, error) {
	var envelope vendorEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, NewParseError("malformed vendor payload: %v", err)
	}
	if envelope.ErrorCode != 0 {
		return nil, NewParseError("vendor errorCode=%d message=%q", envelope.ErrorCode, envelope.ErrorMessage)
	}

	record, err := decodeFirstRecord(envelope.Data)
	if err != nil {
		return nil, err
	}

	result := &ExtractionResult{Raw: raw}

	confidence, ok := resolveOverallScore(envelope.OverallScore, record)
	if !ok {
		confidence, ok = p.meanFieldConfidence(record, result)
	}
	if !ok {
		return nil, NewParseError("no confidence signal in payload")
	}
	confidence = clampConfidence(confidence, "overall", result)
	confidence = round1(confidence)

	result.Success = true
	result.ConfidenceScore = confidence
	result.NeedsManualReview = confidence < p.reviewThreshold
	result.Fields = p.canonicalFields(record, confidence, !result.NeedsManualReview, result)
	return result, nil
}

// decodeFirstRecord 归一 data 的两种形态：对象数组或单个对象。供应商在本
// 域内每份文档只返回一条逻辑记录，数组形态下只取第一条。
func decodeFirstRecord(data json.RawMessage) (map[string]any, error) {
	if len(data) == 0 {
		return nil, NewParseError("vendor payload has no data")
	}

	var records []map[string]any
	if err := json.Unmarshal(data, &records); err == nil {
		if len(records) == 0 {
			return nil, NewParseError("vendor payload data is empty")
		}
		return records[0], nil
	}

	var record map[string]any
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, NewParseError("vendor data is neither object nor array: %v", err)
	}
	if len(record) == 0 {
		return nil, NewParseError("vendor payload data is empty")
	}
	return record, nil
}

// resolveOverallScore 按优先级定位文档级置信度：根 overall_score 优先，
// 其次取第一条记录内嵌的 overall_score。
func resolveOverallScore(rootScore json.RawMessage, record map[string]any) (float64, bool) {
	if v, ok := scoreFromRaw(rootScore); ok {
		return v, true
	}
	if nested, exists := record["overall_score"]; exists {
		if v, ok := toFloat(nested); ok {
			return v, true
		}
	}
	return 0, false
}

// meanFieldConfidence 无 overall_score 时回退为所有 <field>_prob 的算术平均
func (p *ExtractionParser) meanFieldConfidence(record map[string]any, result *ExtractionResult) (float64, bool) {
	var sum float64
	var count int
	for key, value := range record {
		if !strings.HasSuffix(key, probSuffix) {
			continue
		}
		v, ok := toFloat(value)
		if !ok {
			result.Warnings = append(result.Warnings, fmt.Sprintf("unparsable confidence %q ignored", key))
			continue
		}
		sum += v
		count++
	}
	if count == 0 {
		return 0, false
	}
	return sum / float64(count), true
}

// canonicalFields 构建规范化字段列表：排除 _prob 键与元数据键，字段置信度
// 取对应 _prob 值，缺失时回退为文档级置信度。
func (p *ExtractionParser) canonicalFields(record map[string]any, docConfidence float64, validated bool, result *ExtractionResult) []ParsedField {
	names := make([]string, 0, len(record))
	for key := range record {
		if strings.HasSuffix(key, probSuffix) {
			continue
		}
		if _, isMeta := metadataKeys[key]; isMeta {
			continue
		}
		names = append(names, key)
	}
	sort.Strings(names)

	fields := make([]ParsedField, 0, len(names))
	for _, name := range names {
		confidence := docConfidence
		if prob, exists := record[name+probSuffix]; exists {
			if v, ok := toFloat(prob); ok {
				confidence = round1(clampConfidence(v, name, result))
			}
		}
		fields = append(fields, ParsedField{
			Name:            name,
			Value:           stringify(record[name]),
			ConfidenceScore: confidence,
			Validated:       validated,
		})
	}
	return fields
}

// clampConfidence 将越界置信度收敛到 [0,100] 并记录告警，不拒绝整个结果
func clampConfidence(v float64, field string, result *ExtractionResult) float64 {
	switch {
	case v < 0:
		result.Warnings = append(result.Warnings, fmt.Sprintf("confidence %.2f for %s clamped to 0", v, field))
		return 0
	case v > 100:
		result.Warnings = append(result.Warnings, fmt.Sprintf("confidence %.2f for %s clamped to 100", v, field))
		return 100
	default:
		return v
	}
}

func scoreFromRaw(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var any any
	if err := json.Unmarshal(raw, &any); err != nil {
		return 0, false
	}
	return toFloat(any)
}

// toFloat 供应商以字符串编码百分比（"98.08"），偶尔也会给原生数字
func toFloat(v any) (float64, bool) {
	switch value := v.(type) {
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	case float64:
		return value, true
	case json.Number:
		f, err := value.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func stringify(v any) string {
	switch value := v.(type) {
	case string:
		return value
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(value)
	default:
		b, err := json.Marshal(value)
		if err != nil {
			return fmt.Sprint(value)
		}
		return string(b)
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
