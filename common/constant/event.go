package constant

// Outbox 主题（RocketMQ topic 与 outbox.topic 一致）
const (
	TopicPaymentRecorded      = "payment_recorded"
	TopicWinnerDeclared       = "winner_declared"
	TopicContestStatusChanged = "contest_status_changed"
)

// contest_audit.event_type
const (
	AuditStatusAction   = 1 // 管理员审核动作
	AuditWinnerDeclared = 2 // 创建者宣布获胜者
	AuditContentUpdated = 3 // 创建者修改内容
)
