package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func newTestWorkflow() *Workflow {
	contract := NewContract("HT-2026-001", "张三", decimal.NewFromInt(500000))
	return NewWorkflow(contract, NewStageRecords(contract.ContractNo))
}

func actorFor(stage Stage) Actor {
	return Actor{ID: "u-" + string(StageRoles[stage]), Role: StageRoles[stage]}
}

func TestNewStageRecords(t *testing.T) {
	records := NewStageRecords("HT-1")
	if len(records) != len(StageOrder) {
		t.Fatalf("Expected %d records, got %d", len(StageOrder), len(records))
	}
	for i, rec := range records {
		if rec.Stage != StageOrder[i] {
			t.Errorf("Expected stage %s at %d, got %s", StageOrder[i], i, rec.Stage)
		}
		if rec.Status != StagePending {
			t.Errorf("Expected PENDING, got %s", rec.Status)
		}
	}
}

func TestActiveStageIsFirstPending(t *testing.T) {
	w := newTestWorkflow()
	active := w.ActiveStage()
	if active == nil || active.Stage != StageDocumentReview {
		t.Fatalf("Expected first active stage DOCUMENT_REVIEW, got %+v", active)
	}
}

func TestActOutOfOrderStage(t *testing.T) {
	w := newTestWorkflow()
	_, err := w.Act(StageLegalReview, ActionApprove, actorFor(StageLegalReview), "ok", time.Now())
	if !errors.Is(err, ErrInvalidStage) {
		t.Errorf("Expected ErrInvalidStage acting on non-active stage, got %v", err)
	}
}

func TestActPermissionDenied(t *testing.T) {
	w := newTestWorkflow()
	wrongActor := Actor{ID: "u1", Role: RoleManager}
	_, err := w.Act(StageDocumentReview, ActionApprove, wrongActor, "ok", time.Now())
	if !errors.Is(err, ErrPermissionDenied) {
		t.Errorf("Expected ErrPermissionDenied, got %v", err)
	}
}

func TestActEmptyComments(t *testing.T) {
	w := newTestWorkflow()
	_, err := w.Act(StageDocumentReview, ActionApprove, actorFor(StageDocumentReview), "", time.Now())
	if !errors.Is(err, ErrEmptyComments) {
		t.Errorf("Expected ErrEmptyComments, got %v", err)
	}
}

func TestApproveAdvancesCurrentStage(t *testing.T) {
	w := newTestWorkflow()
	now := time.Now()

	rec, err := w.Act(StageDocumentReview, ActionApprove, actorFor(StageDocumentReview), "资料齐全", now)
	if err != nil {
		t.Fatalf("Act failed: %v", err)
	}
	if rec.Status != StageApproved || rec.ApprovedAt == nil {
		t.Errorf("Unexpected record after approve: %+v", rec)
	}
	if w.Contract.CurrentStage == nil || *w.Contract.CurrentStage != StageCreditAnalysis {
		t.Errorf("Expected current stage CREDIT_ANALYSIS, got %v", w.Contract.CurrentStage)
	}
	if active := w.ActiveStage(); active == nil || active.Stage != StageCreditAnalysis {
		t.Errorf("Expected active stage CREDIT_ANALYSIS, got %+v", active)
	}
}

func TestApproveAllStagesApprovesContract(t *testing.T) {
	w := newTestWorkflow()
	now := time.Now()
	for _, stage := range StageOrder {
		if _, err := w.Act(stage, ActionApprove, actorFor(stage), "通过", now); err != nil {
			t.Fatalf("Act on %s failed: %v", stage, err)
		}
	}
	if w.Contract.Status != ContractStatusApproved {
		t.Fatalf("Expected APPROVED, got %s", w.Contract.Status)
	}
	if w.Contract.ApprovedAt == nil {
		t.Error("Expected ApprovedAt set")
	}
	if w.Contract.CurrentStage != nil {
		t.Errorf("Expected no current stage, got %v", w.Contract.CurrentStage)
	}
	if w.ActiveStage() != nil {
		t.Error("Terminal contract must have no active stage")
	}
	if _, err := w.Act(StageFinalApproval, ActionApprove, actorFor(StageFinalApproval), "ok", now); !errors.Is(err, ErrInvalidStage) {
		t.Errorf("Expected ErrInvalidStage acting on approved contract, got %v", err)
	}
}

func TestRejectIsTerminal(t *testing.T) {
	w := newTestWorkflow()
	now := time.Now()

	if _, err := w.Act(StageDocumentReview, ActionApprove, actorFor(StageDocumentReview), "ok", now); err != nil {
		t.Fatal(err)
	}
	rec, err := w.Act(StageCreditAnalysis, ActionReject, actorFor(StageCreditAnalysis), "负债率过高", now)
	if err != nil {
		t.Fatalf("Reject failed: %v", err)
	}
	if rec.Status != StageRejected {
		t.Errorf("Expected REJECTED record, got %s", rec.Status)
	}
	if w.Contract.Status != ContractStatusRejected {
		t.Fatalf("Expected contract REJECTED, got %s", w.Contract.Status)
	}

	// 驳回后任何后续动作都不可接受，且仍按无效阶段归类
	_, err = w.Act(StageLegalReview, ActionApprove, actorFor(StageLegalReview), "ok", now)
	if !errors.Is(err, ErrWorkflowTerminated) {
		t.Errorf("Expected ErrWorkflowTerminated after rejection, got %v", err)
	}
	if !errors.Is(err, ErrInvalidStage) {
		t.Errorf("ErrWorkflowTerminated must wrap ErrInvalidStage, got %v", err)
	}
}

func TestActUnknownAction(t *testing.T) {
	w := newTestWorkflow()
	_, err := w.Act(StageDocumentReview, Action("defer"), actorFor(StageDocumentReview), "ok", time.Now())
	if !errors.Is(err, ErrInvalidStage) {
		t.Errorf("Expected ErrInvalidStage for unknown action, got %v", err)
	}
}

func TestNewWorkflowSortsRecords(t *testing.T) {
	contract := NewContract("HT-2", "李四", decimal.NewFromInt(100000))
	records := NewStageRecords(contract.ContractNo)
	// 打乱顺序模拟数据库无序返回
	shuffled := []*ApprovalStageRecord{records[3], records[0], records[4], records[2], records[1]}

	w := NewWorkflow(contract, shuffled)
	for i, rec := range w.Records {
		if rec.Stage != StageOrder[i] {
			t.Fatalf("Expected sorted order, position %d has %s", i, rec.Stage)
		}
	}
}

func TestStageIndex(t *testing.T) {
	if StageDocumentReview.Index() != 0 || StageFinalApproval.Index() != 4 {
		t.Error("Unexpected stage ordering")
	}
	if Stage("UNKNOWN").Index() != -1 || Stage("UNKNOWN").Valid() {
		t.Error("Unknown stage must be invalid")
	}
}
