package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 结算结果标签
const (
	SettleFirst     = "first"
	SettleDuplicate = "duplicate"
	SettleFail      = "fail"
)

var (
	checkoutTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_sessions_total",
			Help: "Checkout session requests by result",
		},
		[]string{"result"},
	)

	settleTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_total",
			Help: "Payment confirmations by outcome (first|duplicate|fail)",
		},
		[]string{"result"},
	)

	settleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "settlement_duration_ms",
			Help:    "Payment confirmation duration in milliseconds",
			Buckets: prometheus.ExponentialBuckets(5, 2, 10),
		},
		[]string{"result"},
	)

	winnerTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "winner_declarations_total",
			Help: "Winner declarations by result (declared|already_declared|fail)",
		},
		[]string{"result"},
	)

	contestActionTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contest_actions_total",
			Help: "Admin contest actions by action and result",
		},
		[]string{"action", "result"},
	)
)

// RecordCheckout result: success | rejected | fail
func RecordCheckout(result string) {
	checkoutTotal.WithLabelValues(result).Inc()
}

// RecordSettlement 记录结算结果与耗时
func RecordSettlement(result string, started time.Time) {
	settleTotal.WithLabelValues(result).Inc()
	settleDuration.WithLabelValues(result).Observe(float64(time.Since(started).Milliseconds()))
}

func RecordWinner(result string) {
	winnerTotal.WithLabelValues(result).Inc()
}

func RecordContestAction(action, result string) {
	contestActionTotal.WithLabelValues(action, result).Inc()
}
