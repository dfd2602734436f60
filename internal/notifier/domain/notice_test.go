package domain

import (
	"strings"
	"testing"
)

func TestRenderReviewFlagged(t *testing.T) {
	payload := []byte(`{"document_id":"DOC-1","confidence_score":85.5,"parse_failed":false}`)
	notices, err := Render(TopicDocumentReviewFlagged, payload)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if len(notices) != 1 {
		t.Fatalf("Expected 1 notice, got %d", len(notices))
	}
	if notices[0].Channel != ChannelEmail || notices[0].Target != "review-team" {
		t.Errorf("Unexpected routing: %+v", notices[0])
	}
	if !strings.Contains(notices[0].Subject, "DOC-1") {
		t.Errorf("Subject must reference the document, got %q", notices[0].Subject)
	}
	if !strings.Contains(notices[0].Content, "85.5") {
		t.Errorf("Content must carry the confidence, got %q", notices[0].Content)
	}
}

func TestRenderParseFailureReason(t *testing.T) {
	payload := []byte(`{"document_id":"DOC-2","parse_failed":true}`)
	notices, err := Render(TopicDocumentReviewFlagged, payload)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !strings.Contains(notices[0].Content, "解析失败") {
		t.Errorf("Expected parse failure reason, got %q", notices[0].Content)
	}
}

func TestRenderContractDecidedFansOut(t *testing.T) {
	payload := []byte(`{"contract_no":"HT-1","status":"APPROVED","progress":100}`)
	notices, err := Render(TopicContractApproved, payload)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if len(notices) != 2 {
		t.Fatalf("Expected email + sms fan-out, got %d", len(notices))
	}
	channels := map[Channel]bool{}
	for _, n := range notices {
		channels[n.Channel] = true
	}
	if !channels[ChannelEmail] || !channels[ChannelSMS] {
		t.Errorf("Expected both channels, got %+v", notices)
	}
}

func TestRenderStageActedVerdict(t *testing.T) {
	payload := []byte(`{"contract_no":"HT-2","stage":"LEGAL_REVIEW","approver_id":"u1","comments":"条款有瑕疵"}`)
	notices, err := Render(TopicStageRejected, payload)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !strings.Contains(notices[0].Subject, "拒绝") {
		t.Errorf("Expected rejection verdict in subject, got %q", notices[0].Subject)
	}
}

func TestRenderUnknownTopicIgnored(t *testing.T) {
	notices, err := Render("some.other.topic", []byte(`{}`))
	if err != nil || notices != nil {
		t.Errorf("Unknown topic must be ignored, got %v %v", notices, err)
	}
}

func TestRenderMalformedPayload(t *testing.T) {
	if _, err := Render(TopicDocumentValidated, []byte(`{broken`)); err == nil {
		t.Error("Expected decode error for malformed payload")
	}
}
