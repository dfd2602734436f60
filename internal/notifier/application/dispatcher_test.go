package application

import (
	"context"
	"errors"
	"testing"

	"github.com/wyfcoding/loancollateral/internal/notifier/domain"
	"github.com/wyfcoding/loancollateral/pkg/mq"
)

type recordingSender struct {
	sent []string
	fail bool
}

func (s *recordingSender) Send(ctx context.Context, target, subject, content string) error {
	if s.fail {
		return errors.New("downstream unavailable")
	}
	s.sent = append(s.sent, target+": "+subject)
	return nil
}

func TestHandleMessageDispatchesToChannels(t *testing.T) {
	email := &recordingSender{}
	sms := &recordingSender{}
	d := NewDispatcher(map[domain.Channel]domain.Sender{
		domain.ChannelEmail: email,
		domain.ChannelSMS:   sms,
	}, nil)

	msg := &mq.Message{
		Topic: domain.TopicContractApproved,
		Key:   "HT-1",
		Value: []byte(`{"contract_no":"HT-1","status":"APPROVED","progress":100}`),
	}
	if err := d.HandleMessage(context.Background(), msg); err != nil {
		t.Fatalf("HandleMessage failed: %v", err)
	}
	if len(email.sent) != 1 || len(sms.sent) != 1 {
		t.Errorf("Expected one notice per channel, email=%d sms=%d", len(email.sent), len(sms.sent))
	}
}

func TestHandleMessageSenderFailure(t *testing.T) {
	email := &recordingSender{fail: true}
	d := NewDispatcher(map[domain.Channel]domain.Sender{
		domain.ChannelEmail: email,
	}, nil)

	msg := &mq.Message{
		Topic: domain.TopicDocumentValidated,
		Key:   "DOC-1",
		Value: []byte(`{"document_id":"DOC-1","confidence_score":98.1}`),
	}
	if err := d.HandleMessage(context.Background(), msg); err == nil {
		t.Error("Expected error when sender fails")
	}
}

func TestHandleMessageMissingChannel(t *testing.T) {
	d := NewDispatcher(map[domain.Channel]domain.Sender{}, nil)
	msg := &mq.Message{
		Topic: domain.TopicDocumentValidated,
		Key:   "DOC-2",
		Value: []byte(`{"document_id":"DOC-2","confidence_score":97.0}`),
	}
	if err := d.HandleMessage(context.Background(), msg); err == nil {
		t.Error("Expected error for unconfigured channel")
	}
}

func TestHandleMessageUnknownTopicNoop(t *testing.T) {
	email := &recordingSender{}
	d := NewDispatcher(map[domain.Channel]domain.Sender{domain.ChannelEmail: email}, nil)
	msg := &mq.Message{Topic: "unrelated.topic", Value: []byte(`{}`)}
	if err := d.HandleMessage(context.Background(), msg); err != nil {
		t.Fatalf("Unknown topic must be a no-op, got %v", err)
	}
	if len(email.sent) != 0 {
		t.Errorf("Expected no sends, got %v", email.sent)
	}
}
