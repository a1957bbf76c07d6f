// Package remind は返済期日リマインダーのバックグラウンド送信を提供する。
// 期日を過ぎたACTIVEな貸付ごとにメールを1通送信し、送信済みフラグを立てる。
package remind

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/kashinote/internal/mailer"
	"github.com/hitoshi/kashinote/internal/repository"
)

// MetricsRecorder はリマインダーワーカーが記録するメトリクスのインターフェース。
type MetricsRecorder interface {
	RecordReminderSent()
	RecordReminderFailure()
}

// Reminder は期日リマインダーの送信ワーカー。
// 各貸付につきリマインダーは1回だけ送信される（reminder_sentフラグで冪等化）。
type Reminder struct {
	loanRepo repository.LoanRepository
	mailer   mailer.Mailer
	to       string // リマインダーの宛先（貸し手本人のメールアドレス）
	logger   *slog.Logger
	metrics  MetricsRecorder
}

// NewReminder はReminderを生成する。
// metricsはnilでもよい（記録なしで動作する）。
func NewReminder(
	loanRepo repository.LoanRepository,
	m mailer.Mailer,
	to string,
	logger *slog.Logger,
	metrics MetricsRecorder,
) *Reminder {
	return &Reminder{
		loanRepo: loanRepo,
		mailer:   m,
		to:       to,
		logger:   logger,
		metrics:  metrics,
	}
}

// Start は指定間隔のティッカーでリマインダーワーカーを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (r *Reminder) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.Info("リマインダーワーカーを開始しました",
		slog.Duration("interval", interval),
	)

	// 起動直後に1回実行
	if err := r.RunOnce(ctx); err != nil {
		r.logger.Error("リマインダーサイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("リマインダーワーカーを停止しました")
			return
		case <-ticker.C:
			if err := r.RunOnce(ctx); err != nil {
				r.logger.Error("リマインダーサイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce は期日到来済みの貸付を1回取得し、リマインダーを送信する。
// 個々の送信失敗はログに記録して続行し、フラグは送信成功時のみ立てる。
func (r *Reminder) RunOnce(ctx context.Context) error {
	start := time.Now()

	dueLoans, err := r.loanRepo.ListDueForReminder(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("リマインダー対象の取得に失敗: %w", err)
	}

	var sent, failed int
	for _, loan := range dueLoans {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		subject := fmt.Sprintf("返済期日のお知らせ: %s", loan.BorrowerName)
		body := fmt.Sprintf(
			"%sさんへの貸付の返済期日（%s）を過ぎています。\n残高: %s %s\n",
			loan.BorrowerName,
			loan.DueDate.Format("2006-01-02"),
			loan.Amount.StringFixed(2),
			loan.Currency,
		)

		if err := r.mailer.Send(r.to, subject, body); err != nil {
			failed++
			r.recordFailure()
			r.logger.Error("リマインダーの送信に失敗しました",
				slog.Int64("loan_id", loan.ID),
				slog.String("error", err.Error()),
			)
			continue
		}

		if err := r.loanRepo.MarkReminderSent(ctx, loan.ID); err != nil {
			// フラグ更新に失敗すると次サイクルで再送されうる
			r.logger.Error("リマインダーフラグの更新に失敗しました",
				slog.Int64("loan_id", loan.ID),
				slog.String("error", err.Error()),
			)
			continue
		}

		sent++
		r.recordSent()
	}

	r.logger.Info("リマインダーサイクルが完了しました",
		slog.Int("due", len(dueLoans)),
		slog.Int("sent", sent),
		slog.Int("failed", failed),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return nil
}

func (r *Reminder) recordSent() {
	if r.metrics != nil {
		r.metrics.RecordReminderSent()
	}
}

func (r *Reminder) recordFailure() {
	if r.metrics != nil {
		r.metrics.RecordReminderFailure()
	}
}
