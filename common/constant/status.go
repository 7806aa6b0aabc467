package constant

// 比赛状态（contests.status）
const (
	ContestPending  = "pending"  // 待审核（创建者提交后的初始状态）
	ContestApproved = "approved" // 已通过，对外可见可报名
	ContestRejected = "rejected" // 已驳回
)

// 用户角色（users.role）
const (
	RoleUser    = "user"
	RoleCreator = "creator"
	RoleAdmin   = "admin"
)

// 支付状态（payments.status），其余取值原样保存支付渠道返回的状态
const (
	PaymentPaid = "paid"
)

// 管理员审核动作（PATCH /contests/action/:id）
const (
	ActionConfirm = "confirm"
	ActionReject  = "reject"
	ActionDelete  = "delete"
)

// IsValidRole 判断角色是否合法
func IsValidRole(role string) bool {
	switch role {
	case RoleUser, RoleCreator, RoleAdmin:
		return true
	}
	return false
}
