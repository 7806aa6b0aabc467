package config

import (
	"sync/atomic"
)

// 原子存储当前生效的配置，热更新时整体替换
var current atomic.Pointer[Config]

func SetCurrent(c *Config) {
	current.Store(c)
}

// GetCurrent 返回当前配置，未初始化时为 nil
func GetCurrent() *Config {
	return current.Load()
}

// GetFeatureFlag 返回功能开关（默认 false）
func GetFeatureFlag(name string) bool {
	cfg := GetCurrent()
	if cfg == nil || cfg.FeatureFlags == nil {
		return false
	}
	return cfg.FeatureFlags[name]
}

// GetThreshold 返回业务阈值（支持默认值）
func GetThreshold(name string, def int64) int64 {
	cfg := GetCurrent()
	if cfg == nil || cfg.Thresholds == nil {
		return def
	}
	if v, ok := cfg.Thresholds[name]; ok {
		return v
	}
	return def
}

// 业务阈值名称
const (
	// ThresholdMinPriceCents 报名费最小值（最小货币单位）
	ThresholdMinPriceCents = "checkout_min_price_cents"
	// ThresholdPopularLimit 首页热门比赛数量
	ThresholdPopularLimit = "popular_contest_limit"
)

// 功能开关名称
const (
	// FlagAllowUnpaidSubmit 允许未支付用户提交作品（默认关闭）
	FlagAllowUnpaidSubmit = "allow_unpaid_submit"
)
