package application

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/wyfcoding/loancollateral/internal/document/domain"
)

type fakeDocRepo struct {
	docs map[string]*domain.Document
}

func newFakeDocRepo() *fakeDocRepo {
	return &fakeDocRepo{docs: make(map[string]*domain.Document)}
}

func (r *fakeDocRepo) Save(ctx context.Context, doc *domain.Document) error {
	r.docs[doc.DocumentID] = doc
	return nil
}

func (r *fakeDocRepo) GetByDocumentID(ctx context.Context, documentID string) (*domain.Document, error) {
	doc := r.docs[documentID]
	if doc != nil {
		doc.InitFSM()
	}
	return doc, nil
}

func (r *fakeDocRepo) ListByContract(ctx context.Context, contractID string) ([]*domain.Document, error) {
	var out []*domain.Document
	for _, doc := range r.docs {
		if doc.ContractID != nil && *doc.ContractID == contractID {
			out = append(out, doc)
		}
	}
	return out, nil
}

func (r *fakeDocRepo) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeFieldRepo struct {
	fields map[string]*domain.ExtractedField
}

func newFakeFieldRepo() *fakeFieldRepo {
	return &fakeFieldRepo{fields: make(map[string]*domain.ExtractedField)}
}

func (r *fakeFieldRepo) key(documentID, name string) string { return documentID + "/" + name }

func (r *fakeFieldRepo) Upsert(ctx context.Context, field *domain.ExtractedField) error {
	r.fields[r.key(field.DocumentID, field.FieldName)] = field
	return nil
}

func (r *fakeFieldRepo) Get(ctx context.Context, documentID, fieldName string) (*domain.ExtractedField, error) {
	return r.fields[r.key(documentID, fieldName)], nil
}

func (r *fakeFieldRepo) ListByDocument(ctx context.Context, documentID string) ([]*domain.ExtractedField, error) {
	var out []*domain.ExtractedField
	for _, f := range r.fields {
		if f.DocumentID == documentID {
			out = append(out, f)
		}
	}
	return out, nil
}

type publishedEvent struct {
	Topic string
	Key   string
	Event any
}

type fakePublisher struct {
	events []publishedEvent
}

func (p *fakePublisher) Publish(ctx context.Context, topic, key string, event any) error {
	p.events = append(p.events, publishedEvent{topic, key, event})
	return nil
}

func (p *fakePublisher) PublishInTx(ctx context.Context, tx any, topic, key string, event any) error {
	return p.Publish(ctx, topic, key, event)
}

func (p *fakePublisher) lastTopic() string {
	if len(p.events) == 0 {
		return ""
	}
	return p.events[len(p.events)-1].Topic
}

func newTestService() (*DocumentService, *fakeDocRepo, *fakeFieldRepo, *fakePublisher) {
	docs := newFakeDocRepo()
	fields := newFakeFieldRepo()
	publisher := &fakePublisher{}
	svc := NewDocumentService(docs, fields, domain.NewExtractionParser(0), publisher, slog.Default())
	return svc, docs, fields, publisher
}

func TestProcessExtractionHighConfidence(t *testing.T) {
	ctx := context.Background()
	svc, docs, fields, publisher := newTestService()
	if _, err := svc.RegisterDocument(ctx, "DOC-1", domain.DocTypeIDCard, "HT-1"); err != nil {
		t.Fatal(err)
	}

	payload := []byte(`{"errorCode":0,"data":[{"name":"张三","name_prob":"98.5","id":"110","id_prob":"97.2"}],"overall_score":"98.08"}`)
	result, err := svc.ProcessExtraction(ctx, "DOC-1", payload)
	if err != nil {
		t.Fatalf("ProcessExtraction failed: %v", err)
	}
	if !result.Success || result.NeedsManualReview {
		t.Errorf("Expected confident success, got %+v", result)
	}

	doc := docs.docs["DOC-1"]
	if doc.Status != domain.DocStatusExtracted {
		t.Errorf("Expected EXTRACTED, got %s", doc.Status)
	}
	stored, _ := fields.ListByDocument(ctx, "DOC-1")
	if len(stored) != 2 {
		t.Errorf("Expected 2 stored fields, got %d", len(stored))
	}
	if publisher.lastTopic() != domain.TopicDocumentExtracted {
		t.Errorf("Expected %s event, got %s", domain.TopicDocumentExtracted, publisher.lastTopic())
	}
}

func TestProcessExtractionLowConfidence(t *testing.T) {
	ctx := context.Background()
	svc, docs, _, publisher := newTestService()
	if _, err := svc.RegisterDocument(ctx, "DOC-2", domain.DocTypeIDCard, ""); err != nil {
		t.Fatal(err)
	}

	payload := []byte(`{"errorCode":0,"data":[{"id":"1","id_prob":"85.08"}],"overall_score":"85.5"}`)
	result, err := svc.ProcessExtraction(ctx, "DOC-2", payload)
	if err != nil {
		t.Fatalf("ProcessExtraction failed: %v", err)
	}
	if !result.NeedsManualReview {
		t.Error("Expected manual review below threshold")
	}
	if docs.docs["DOC-2"].Status != domain.DocStatusNeedsReview {
		t.Errorf("Expected NEEDS_REVIEW, got %s", docs.docs["DOC-2"].Status)
	}
	if publisher.lastTopic() != domain.TopicDocumentReviewFlagged {
		t.Errorf("Expected %s event, got %s", domain.TopicDocumentReviewFlagged, publisher.lastTopic())
	}
}

func TestProcessExtractionParseFailureDegrades(t *testing.T) {
	ctx := context.Background()
	svc, docs, _, publisher := newTestService()
	if _, err := svc.RegisterDocument(ctx, "DOC-3", domain.DocTypePassport, ""); err != nil {
		t.Fatal(err)
	}

	result, err := svc.ProcessExtraction(ctx, "DOC-3", []byte(`{"errorCode":500,"errorMessage":"boom"}`))
	if err != nil {
		t.Fatalf("Parse failure must not surface as error: %v", err)
	}
	if result.Success {
		t.Error("Expected Success=false after parse failure")
	}
	if !result.NeedsManualReview || len(result.Warnings) == 0 {
		t.Errorf("Expected degraded result with warnings, got %+v", result)
	}

	doc := docs.docs["DOC-3"]
	if doc.Status != domain.DocStatusNeedsReview {
		t.Errorf("Expected NEEDS_REVIEW, got %s", doc.Status)
	}
	if doc.ConfidenceScore == nil || *doc.ConfidenceScore != 0 {
		t.Errorf("Expected confidence 0, got %v", doc.ConfidenceScore)
	}
	if len(publisher.events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(publisher.events))
	}
	ev, ok := publisher.events[0].Event.(domain.DocumentReviewFlaggedEvent)
	if !ok || !ev.ParseFailed {
		t.Errorf("Expected review_flagged event with ParseFailed, got %+v", publisher.events[0])
	}
}

func TestProcessExtractionUnknownDocument(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newTestService()
	payload := []byte(`{"errorCode":0,"data":{"name":"x"},"overall_score":"99"}`)
	if _, err := svc.ProcessExtraction(ctx, "MISSING", payload); !errors.Is(err, domain.ErrDocumentNotFound) {
		t.Errorf("Expected ErrDocumentNotFound, got %v", err)
	}
}

func TestCompleteReviewFlow(t *testing.T) {
	ctx := context.Background()
	svc, docs, _, publisher := newTestService()
	if _, err := svc.RegisterDocument(ctx, "DOC-4", domain.DocTypeIDCard, "HT-9"); err != nil {
		t.Fatal(err)
	}
	payload := []byte(`{"errorCode":0,"data":[{"name":"张三","name_prob":"82","id":"110","id_prob":"88"}],"overall_score":"85"}`)
	if _, err := svc.ProcessExtraction(ctx, "DOC-4", payload); err != nil {
		t.Fatal(err)
	}

	doc, err := svc.CompleteReview(ctx, "DOC-4", []FieldCorrection{
		{Name: "name", Value: "李四"},
		{Name: "id", Confirm: true},
	})
	if err != nil {
		t.Fatalf("CompleteReview failed: %v", err)
	}
	if doc.Status != domain.DocStatusValidated {
		t.Fatalf("Expected VALIDATED, got %s", doc.Status)
	}
	if doc.ConfidenceScore == nil || *doc.ConfidenceScore != 100 {
		t.Errorf("Expected confidence 100 (corrected field counts as 100), got %v", doc.ConfidenceScore)
	}
	if docs.docs["DOC-4"].Status != domain.DocStatusValidated {
		t.Error("Document must be persisted as VALIDATED")
	}
	if publisher.lastTopic() != domain.TopicDocumentValidated {
		t.Errorf("Expected %s event, got %s", domain.TopicDocumentValidated, publisher.lastTopic())
	}
}

func TestCompleteReviewWithoutCorrections(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newTestService()
	if _, err := svc.CompleteReview(ctx, "DOC-5", nil); !errors.Is(err, domain.ErrReviewRequired) {
		t.Errorf("Expected ErrReviewRequired, got %v", err)
	}
}

func TestTransitionDocumentRejectPublishesEvent(t *testing.T) {
	ctx := context.Background()
	svc, _, _, publisher := newTestService()
	if _, err := svc.RegisterDocument(ctx, "DOC-6", domain.DocTypeIDCard, "HT-7"); err != nil {
		t.Fatal(err)
	}

	doc, err := svc.TransitionDocument(ctx, "DOC-6", domain.EventReject)
	if err != nil {
		t.Fatalf("TransitionDocument failed: %v", err)
	}
	if doc.Status != domain.DocStatusRejected {
		t.Fatalf("Expected REJECTED, got %s", doc.Status)
	}
	if publisher.lastTopic() != domain.TopicDocumentRejected {
		t.Errorf("Expected %s event, got %s", domain.TopicDocumentRejected, publisher.lastTopic())
	}
}

func TestTransitionDocumentManualValidateRequiresFields(t *testing.T) {
	ctx := context.Background()
	svc, _, _, _ := newTestService()
	if _, err := svc.RegisterDocument(ctx, "DOC-7", domain.DocTypeIDCard, ""); err != nil {
		t.Fatal(err)
	}

	if _, err := svc.TransitionDocument(ctx, "DOC-7", domain.EventValidate); !errors.Is(err, domain.ErrNoFields) {
		t.Errorf("Expected ErrNoFields without manual fields, got %v", err)
	}

	if _, err := svc.UpsertField(ctx, "DOC-7", "name", "张三", false); err != nil {
		t.Fatal(err)
	}
	doc, err := svc.TransitionDocument(ctx, "DOC-7", domain.EventValidate)
	if err != nil {
		t.Fatalf("Manual validate failed: %v", err)
	}
	if doc.Status != domain.DocStatusValidated {
		t.Fatalf("Expected VALIDATED, got %s", doc.Status)
	}
	if doc.ConfidenceScore == nil || *doc.ConfidenceScore != 100 {
		t.Errorf("Expected confidence 100 by convention, got %v", doc.ConfidenceScore)
	}
}
