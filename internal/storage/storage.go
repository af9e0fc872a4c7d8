// Package storage は射撃記録と測定プロフィールの永続化を提供する。
// 実装はローカルのSQLite blobストアとPostgreSQLのドキュメントストアの2つで、
// 起動時の設定でどちらか一方を選択する。
package storage

import (
	"context"
	"fmt"

	"github.com/hitoshi/riflelog/internal/config"
	"github.com/hitoshi/riflelog/internal/database"
	"github.com/hitoshi/riflelog/internal/model"
)

// Backend はユーザー（subject）単位の永続化を抽象化する。
// 同一subjectへの並行書き込みは後勝ちとなる。
type Backend interface {
	// Load はプロフィールと記録を返す。記録はID昇順。未保存の場合は空を返す。
	Load(ctx context.Context, subject string) (model.MeasurementProfile, []model.Shoot, error)
	SaveProfile(ctx context.Context, subject string, profile model.MeasurementProfile) error
	AppendShoot(ctx context.Context, subject string, shoot model.Shoot) error
	// DeleteShoot は記録を削除する。該当がなければfalseを返す。
	DeleteShoot(ctx context.Context, subject string, id int64) (bool, error)
	Ping(ctx context.Context) error
	Close() error
}

// Open は設定に応じたBackendを開く。
func Open(ctx context.Context, cfg *config.Config) (Backend, error) {
	switch cfg.StorageBackend {
	case config.StorageLocal:
		db, err := database.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		return NewSQLiteBlobStore(db), nil

	case config.StorageHosted:
		db, err := database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		return NewPostgresDocumentStore(db), nil
	}

	return nil, fmt.Errorf("unsupported storage backend %q", cfg.StorageBackend)
}
