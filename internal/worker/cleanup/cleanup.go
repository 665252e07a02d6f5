// Package cleanup は孤児写真の自動削除ジョブを提供する。
// スポット作成の途中失敗などでplacesテーブルから参照されなくなった
// アップロードディレクトリ内のファイルを日次バッチで削除する。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// PhotoRefSource は参照中の写真キー集合を提供するインターフェース。
type PhotoRefSource interface {
	// ReferencedPhotoKeys はスポットから参照されている写真キーの集合を返す。
	ReferencedPhotoKeys(ctx context.Context) (map[string]bool, error)
}

// Querier はSQLのQueryContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// SQLPhotoRefSource はplacesテーブルからphoto_pathを読むPhotoRefSourceの実装。
type SQLPhotoRefSource struct {
	db Querier
}

// コンパイル時のインターフェース実装チェック
var _ PhotoRefSource = (*SQLPhotoRefSource)(nil)

// NewSQLPhotoRefSource はSQLPhotoRefSourceを生成する。
func NewSQLPhotoRefSource(db Querier) *SQLPhotoRefSource {
	return &SQLPhotoRefSource{db: db}
}

// ReferencedPhotoKeys はplacesテーブルが参照している写真キーの集合を返す。
func (s *SQLPhotoRefSource) ReferencedPhotoKeys(ctx context.Context) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT photo_path FROM places WHERE photo_path IS NOT NULL`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	referenced := make(map[string]bool)
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, err
		}
		referenced[key] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return referenced, nil
}

// MetricsRecorder は削除件数のメトリクス記録のインターフェース。nil可。
type MetricsRecorder interface {
	RecordPhotoCleanup(count int)
}

// CleanupJob は参照されなくなった写真ファイルの自動削除ジョブ。
// 日次実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
// 書き込み完了からDB登録までの間のファイルを誤削除しないよう、
// 更新時刻がGracePeriod以内のファイルは削除対象から除外する。
type CleanupJob struct {
	refs        PhotoRefSource
	uploadDir   string
	logger      *slog.Logger
	metrics     MetricsRecorder
	GracePeriod time.Duration // この期間より新しいファイルは削除しない（デフォルト: 24h）
}

// NewCleanupJob は新しいCleanupJobを生成する。
// デフォルトの猶予期間は24時間。metricsはnil可。
func NewCleanupJob(refs PhotoRefSource, uploadDir string, logger *slog.Logger, metrics MetricsRecorder) *CleanupJob {
	return &CleanupJob{
		refs:        refs,
		uploadDir:   uploadDir,
		logger:      logger,
		metrics:     metrics,
		GracePeriod: 24 * time.Hour,
	}
}

// Run はどのスポットからも参照されていない写真ファイルを削除する。
// 参照されておらず、かつ更新時刻がGracePeriodより古いファイルのみ削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	referenced, err := j.refs.ReferencedPhotoKeys(ctx)
	if err != nil {
		j.logger.Error("参照中写真の一覧取得に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("参照中写真の一覧取得に失敗: %w", err)
	}

	entries, err := os.ReadDir(j.uploadDir)
	if err != nil {
		if os.IsNotExist(err) {
			// ディレクトリ未作成 = 削除対象なし
			return nil
		}
		return fmt.Errorf("アップロードディレクトリの読み取りに失敗: %w", err)
	}

	cutoff := time.Now().Add(-j.GracePeriod)
	deletedCount := 0

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if referenced[entry.Name()] {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		path := filepath.Join(j.uploadDir, entry.Name())
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			j.logger.Warn("孤児写真の削除に失敗しました",
				slog.String("file", entry.Name()),
				slog.String("error", err.Error()),
			)
			continue
		}
		deletedCount++
	}

	if j.metrics != nil && deletedCount > 0 {
		j.metrics.RecordPhotoCleanup(deletedCount)
	}

	duration := time.Since(start)
	j.logger.Info("孤児写真クリーンアップジョブが完了しました",
		slog.Int("deleted_count", deletedCount),
		slog.Int("scanned_count", len(entries)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}
