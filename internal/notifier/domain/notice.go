// Package domain 通知中继的领域模型：把上游集成事件翻译成可投递的通知
package domain

import (
	"context"
	"encoding/json"
	"fmt"
)

// Channel 通知渠道
type Channel string

const (
	ChannelEmail Channel = "EMAIL"
	ChannelSMS   Channel = "SMS"
)

// Sender 通知发送器
type Sender interface {
	Send(ctx context.Context, target, subject, content string) error
}

// Notice 一条待投递通知
type Notice struct {
	Channel Channel `json:"channel"`
	Target  string  `json:"target"`
	Subject string  `json:"subject"`
	Content string  `json:"content"`
}

// 上游事件的消费侧视图。只取渲染需要的字段，其余字段忽略，
// 生产者后续加字段不影响本服务。

type documentReviewFlagged struct {
	DocumentID      string  `json:"document_id"`
	ConfidenceScore float64 `json:"confidence_score"`
	ParseFailed     bool    `json:"parse_failed"`
}

type documentValidated struct {
	DocumentID      string  `json:"document_id"`
	ConfidenceScore float64 `json:"confidence_score"`
}

type stageActed struct {
	ContractNo string `json:"contract_no"`
	Stage      string `json:"stage"`
	ApproverID string `json:"approver_id"`
	Comments   string `json:"comments"`
}

type contractDecided struct {
	ContractNo string `json:"contract_no"`
	Status     string `json:"status"`
	Progress   int    `json:"progress"`
}

// 上游主题名，与生产侧保持一致
const (
	TopicDocumentReviewFlagged = "document.review_flagged"
	TopicDocumentValidated     = "document.validated"
	TopicStageApproved         = "approval.stage.approved"
	TopicStageRejected         = "approval.stage.rejected"
	TopicContractApproved      = "approval.contract.approved"
	TopicContractRejected      = "approval.contract.rejected"
)

// Topics 本服务订阅的全部主题
func Topics() []string {
	return []string{
		TopicDocumentReviewFlagged,
		TopicDocumentValidated,
		TopicStageApproved,
		TopicStageRejected,
		TopicContractApproved,
		TopicContractRejected,
	}
}

// Render 按主题把事件负载翻译成通知列表。未知主题返回空列表而不报错，
// 便于灰度新增主题。
func Render(topic string, payload []byte) ([]Notice, error) {
	switch topic {
	case TopicDocumentReviewFlagged:
		var ev documentReviewFlagged
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", topic, err)
		}
		reason := fmt.Sprintf("置信度 %.1f 低于阈值", ev.ConfidenceScore)
		if ev.ParseFailed {
			reason = "提取结果解析失败"
		}
		return []Notice{{
			Channel: ChannelEmail,
			Target:  "review-team",
			Subject: fmt.Sprintf("单据 %s 待人工复核", ev.DocumentID),
			Content: reason,
		}}, nil

	case TopicDocumentValidated:
		var ev documentValidated
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", topic, err)
		}
		return []Notice{{
			Channel: ChannelEmail,
			Target:  "loan-ops",
			Subject: fmt.Sprintf("单据 %s 校验通过", ev.DocumentID),
			Content: fmt.Sprintf("置信度 %.1f", ev.ConfidenceScore),
		}}, nil

	case TopicStageApproved, TopicStageRejected:
		var ev stageActed
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", topic, err)
		}
		verdict := "通过"
		if topic == TopicStageRejected {
			verdict = "拒绝"
		}
		return []Notice{{
			Channel: ChannelEmail,
			Target:  "loan-ops",
			Subject: fmt.Sprintf("合同 %s 阶段 %s 审批%s", ev.ContractNo, ev.Stage, verdict),
			Content: fmt.Sprintf("审批人 %s：%s", ev.ApproverID, ev.Comments),
		}}, nil

	case TopicContractApproved, TopicContractRejected:
		var ev contractDecided
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", topic, err)
		}
		subject := fmt.Sprintf("合同 %s 审批终态：%s", ev.ContractNo, ev.Status)
		content := fmt.Sprintf("完成度 %d%%", ev.Progress)
		return []Notice{
			{Channel: ChannelEmail, Target: "loan-ops", Subject: subject, Content: content},
			{Channel: ChannelSMS, Target: "customer", Subject: subject, Content: content},
		}, nil
	}
	return nil, nil
}
