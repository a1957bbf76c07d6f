// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はPrometheusメトリクスを収集する実装。
// auth.MetricsRecorderとloan.MetricsRecorderを満たす。
type Collector struct {
	loginAttempts    *prometheus.CounterVec
	repayments       prometheus.Counter
	loansSettled     prometheus.Counter
	remindersSent    prometheus.Counter
	reminderFailures prometheus.Counter
	repayLatency     prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		loginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kashinote_login_attempts_total",
			Help: "結果別のログイン試行の合計数",
		}, []string{"result"}),
		repayments: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kashinote_repayments_total",
			Help: "適用された返済の合計数",
		}),
		loansSettled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kashinote_loans_settled_total",
			Help: "完済に到達した貸付の合計数",
		}),
		remindersSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kashinote_reminders_sent_total",
			Help: "送信された期日リマインダーの合計数",
		}),
		reminderFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kashinote_reminder_failures_total",
			Help: "送信に失敗した期日リマインダーの合計数",
		}),
		repayLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "kashinote_repayment_latency_seconds",
			Help:    "返済トランザクションのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.loginAttempts,
		c.repayments,
		c.loansSettled,
		c.remindersSent,
		c.reminderFailures,
		c.repayLatency,
	)

	return c
}

// RecordLoginAttempt はログイン試行の結果を記録する。
// resultはsuccess、failure、rate_limitedのいずれか。
func (c *Collector) RecordLoginAttempt(result string) {
	c.loginAttempts.WithLabelValues(result).Inc()
}

// RecordRepayment は返済の適用を記録する。
func (c *Collector) RecordRepayment() {
	c.repayments.Inc()
}

// RecordLoanSettled は貸付の完済を記録する。
func (c *Collector) RecordLoanSettled() {
	c.loansSettled.Inc()
}

// RecordReminderSent はリマインダー送信成功を記録する。
func (c *Collector) RecordReminderSent() {
	c.remindersSent.Inc()
}

// RecordReminderFailure はリマインダー送信失敗を記録する。
func (c *Collector) RecordReminderFailure() {
	c.reminderFailures.Inc()
}

// RecordRepaymentLatency は返済トランザクションのレイテンシを記録する。
func (c *Collector) RecordRepaymentLatency(duration time.Duration) {
	c.repayLatency.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
