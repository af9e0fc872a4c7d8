// Package cleanup は期限切れブラウザセッションの定期削除ジョブを提供する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Sweeper は期限切れエントリを削除し、削除件数を返す。
// websession.Storeが実装する。
type Sweeper interface {
	Sweep(ctx context.Context) (int64, error)
}

// Recorder は削除件数をメトリクスとして記録する。
type Recorder interface {
	RecordSessionsSwept(count int64)
}

// SessionSweepJob は期限切れセッションを定期的に削除するジョブ。
type SessionSweepJob struct {
	target   Sweeper
	logger   *slog.Logger
	Interval time.Duration // 実行間隔（デフォルト: 5分）
	Recorder Recorder      // nilの場合は記録しない
}

// NewSessionSweepJob は新しいSessionSweepJobを生成する。
func NewSessionSweepJob(target Sweeper, logger *slog.Logger) *SessionSweepJob {
	return &SessionSweepJob{
		target:   target,
		logger:   logger,
		Interval: 5 * time.Minute,
	}
}

// Run は期限切れセッションを1回削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *SessionSweepJob) Run(ctx context.Context) error {
	start := time.Now()

	deletedCount, err := j.target.Sweep(ctx)
	if err != nil {
		j.logger.Error("セッションクリーンアップの実行に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("セッションクリーンアップの実行に失敗: %w", err)
	}

	if j.Recorder != nil {
		j.Recorder.RecordSessionsSwept(deletedCount)
	}

	j.logger.Info("セッションクリーンアップが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return nil
}

// Start はctxがキャンセルされるまでInterval毎にRunを実行する。
// 失敗はログに記録して次回の実行を待つ。
func (j *SessionSweepJob) Start(ctx context.Context) {
	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = j.Run(ctx)
		case <-ctx.Done():
			return
		}
	}
}
