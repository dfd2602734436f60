package domain

import (
	"math"
	"time"
)

// statusProgress 无阶段记录时的粗粒度回退表。阶段记录是惰性创建的，
// 合同早期只有状态可用。
var statusProgress = map[ContractStatus]int{
	ContractStatusStarted:          0,
	ContractStatusPendingDocuments: 10,
	ContractStatusProcessing:       40,
	ContractStatusApproved:         100,
	ContractStatusRejected:         0,
}

// Progress 推导 0-100 完成度。规则：
//   - 有阶段记录：round(100 * 已通过阶段数 / 总阶段数)；任一阶段驳回或
//     合同 REJECTED 一律 0；合同 APPROVED 一律 100。
//   - 无阶段记录：按状态回退表。
//
// approvedAt 为对外操作签名的一部分，计算本身不消费它。
func Progress(records []*ApprovalStageRecord, status ContractStatus, approvedAt *time.Time) int {
	if len(records) == 0 {
		return statusProgress[status]
	}
	if status == ContractStatusRejected {
		return 0
	}
	approved := 0
	for _, rec := range records {
		switch rec.Status {
		case StageRejected:
			return 0
		case StageApproved:
			approved++
		}
	}
	if status == ContractStatusApproved {
		return 100
	}
	return int(math.Round(100 * float64(approved) / float64(len(records))))
}
