package domain

import (
	"testing"
	"time"
)

func stageRecords(statuses ...StageStatus) []*ApprovalStageRecord {
	records := make([]*ApprovalStageRecord, 0, len(statuses))
	for i, status := range statuses {
		records = append(records, &ApprovalStageRecord{
			ContractID: "HT-1",
			Stage:      StageOrder[i],
			Status:     status,
		})
	}
	return records
}

func TestProgressStatusFallback(t *testing.T) {
	cases := []struct {
		status ContractStatus
		want   int
	}{
		{ContractStatusStarted, 0},
		{ContractStatusPendingDocuments, 10},
		{ContractStatusProcessing, 40},
		{ContractStatusApproved, 100},
		{ContractStatusRejected, 0},
	}
	for _, tc := range cases {
		if got := Progress(nil, tc.status, nil); got != tc.want {
			t.Errorf("Progress(nil, %s) = %d, want %d", tc.status, got, tc.want)
		}
	}
}

func TestProgressFromStageRecords(t *testing.T) {
	cases := []struct {
		name     string
		statuses []StageStatus
		status   ContractStatus
		want     int
	}{
		{"none approved", []StageStatus{StagePending, StagePending, StagePending, StagePending, StagePending}, ContractStatusProcessing, 0},
		{"one of five", []StageStatus{StageApproved, StagePending, StagePending, StagePending, StagePending}, ContractStatusProcessing, 20},
		{"three of five", []StageStatus{StageApproved, StageApproved, StageApproved, StagePending, StagePending}, ContractStatusProcessing, 60},
		{"all approved", []StageStatus{StageApproved, StageApproved, StageApproved, StageApproved, StageApproved}, ContractStatusApproved, 100},
		{"rejected stage wins", []StageStatus{StageApproved, StageApproved, StageRejected, StagePending, StagePending}, ContractStatusRejected, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Progress(stageRecords(tc.statuses...), tc.status, nil); got != tc.want {
				t.Errorf("Progress = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestProgressRejectedContractOverridesRecords(t *testing.T) {
	records := stageRecords(StageApproved, StageApproved, StageApproved, StageApproved, StagePending)
	if got := Progress(records, ContractStatusRejected, nil); got != 0 {
		t.Errorf("Rejected contract must report 0, got %d", got)
	}
}

func TestProgressIgnoresApprovedAt(t *testing.T) {
	now := time.Now()
	records := stageRecords(StageApproved, StagePending, StagePending, StagePending, StagePending)
	with := Progress(records, ContractStatusProcessing, &now)
	without := Progress(records, ContractStatusProcessing, nil)
	if with != without {
		t.Errorf("approvedAt must not affect the result: %d vs %d", with, without)
	}
}
