package redis

// Redis Key 定义与构造器
// 统一管理业务使用的 Redis Key，避免散落的魔法字符串。

const (
	// PrefixSettleResult 结算结果缓存：session_id -> 首次结算结果 JSON，重复确认直接返回
	PrefixSettleResult = "settle:result:"
	// PrefixUserRole 角色缓存：email -> role，改角色时删除
	PrefixUserRole = "user:role:"
	// PrefixTokenBlacklist 注销令牌黑名单：token 摘要 -> 1，TTL 为令牌剩余有效期
	PrefixTokenBlacklist = "auth:blacklist:"
	// PrefixPopularContests 首页热门比赛缓存
	PrefixPopularContests = "contest:popular"
	// PrefixRateLimit 滑动窗口限流：ratelimit:{dimension}:{key}
	PrefixRateLimit = "ratelimit:"
)

// SettleResultKey 形如：settle:result:{session_id}
func SettleResultKey(sessionID string) string { return PrefixSettleResult + sessionID }

// UserRoleKey 形如：user:role:{email}
func UserRoleKey(email string) string { return PrefixUserRole + email }

// TokenBlacklistKey 形如：auth:blacklist:{digest}
func TokenBlacklistKey(digest string) string { return PrefixTokenBlacklist + digest }

// PopularContestsKey 首页热门比赛缓存 Key
func PopularContestsKey() string { return PrefixPopularContests }

// RateLimitKey 形如：ratelimit:ip:10.0.0.1
func RateLimitKey(dimension, key string) string { return PrefixRateLimit + dimension + ":" + key }
