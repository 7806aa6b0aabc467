package state

import (
	"fmt"

	"contesthub-server/common/constant"
)

// NextStatus 根据当前审核状态与管理员动作计算下一个状态，非法转换报错
// delete 不产生新状态（直接删除记录），不经过此函数
//
//	pending  --confirm--> approved
//	pending  --reject-->  rejected
//	approved --reject-->  rejected
func NextStatus(cur, action string) (string, error) {
	switch cur {
	case constant.ContestPending:
		switch action {
		case constant.ActionConfirm:
			return constant.ContestApproved, nil
		case constant.ActionReject:
			return constant.ContestRejected, nil
		}
	case constant.ContestApproved:
		if action == constant.ActionReject {
			return constant.ContestRejected, nil
		}
	}
	return cur, fmt.Errorf("invalid transition: %s --%s--> ?", cur, action)
}

// Editable 创建者只能在审核通过前修改或删除
func Editable(status string) bool {
	return status == constant.ContestPending
}
