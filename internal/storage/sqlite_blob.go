package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/hitoshi/riflelog/internal/model"
)

// blobキーの接頭辞
const (
	shootsKeyPrefix       = "rifleLog_shoots_"
	measurementsKeyPrefix = "rifleLog_measurements_"
)

// ShootsKey はsubjectの記録一覧を保存するキーを返す。
func ShootsKey(subject string) string { return shootsKeyPrefix + subject }

// MeasurementsKey はsubjectの測定プロフィールを保存するキーを返す。
func MeasurementsKey(subject string) string { return measurementsKeyPrefix + subject }

// SQLiteBlobStore はキー単位のJSON blobをSQLiteに保存するBackend。
// 記録一覧は1つのJSON配列として丸ごと読み書きする。
type SQLiteBlobStore struct {
	db *sql.DB
}

// NewSQLiteBlobStore はSQLiteBlobStoreを生成する。
// dbはdatabase.OpenSQLiteで開いたものを渡すこと。
func NewSQLiteBlobStore(db *sql.DB) *SQLiteBlobStore {
	return &SQLiteBlobStore{db: db}
}

// Load はプロフィールと記録を読み込む。
func (s *SQLiteBlobStore) Load(ctx context.Context, subject string) (model.MeasurementProfile, []model.Shoot, error) {
	profile := model.MeasurementProfile{}
	if _, err := getBlob(ctx, s.db, MeasurementsKey(subject), &profile); err != nil {
		return nil, nil, fmt.Errorf("loading measurements: %w", err)
	}

	shoots := []model.Shoot{}
	if _, err := getBlob(ctx, s.db, ShootsKey(subject), &shoots); err != nil {
		return nil, nil, fmt.Errorf("loading shoots: %w", err)
	}
	sortShoots(shoots)

	return profile, shoots, nil
}

// SaveProfile はプロフィールを上書き保存する。
func (s *SQLiteBlobStore) SaveProfile(ctx context.Context, subject string, profile model.MeasurementProfile) error {
	if profile == nil {
		profile = model.MeasurementProfile{}
	}
	if err := putBlob(ctx, s.db, MeasurementsKey(subject), profile); err != nil {
		return fmt.Errorf("saving measurements: %w", err)
	}
	return nil
}

// AppendShoot は記録一覧に1件追加する。
func (s *SQLiteBlobStore) AppendShoot(ctx context.Context, subject string, shoot model.Shoot) error {
	return s.updateShoots(ctx, subject, func(shoots []model.Shoot) ([]model.Shoot, bool) {
		return append(shoots, shoot), true
	})
}

// DeleteShoot は指定IDの記録をすべて削除する。
func (s *SQLiteBlobStore) DeleteShoot(ctx context.Context, subject string, id int64) (bool, error) {
	var found bool
	err := s.updateShoots(ctx, subject, func(shoots []model.Shoot) ([]model.Shoot, bool) {
		kept := slices.DeleteFunc(shoots, func(sh model.Shoot) bool { return sh.ID == id })
		found = len(kept) != len(shoots)
		return kept, found
	})
	if err != nil {
		return false, err
	}
	return found, nil
}

// updateShoots は記録一覧をトランザクション内で読み込み、変更があれば書き戻す。
func (s *SQLiteBlobStore) updateShoots(ctx context.Context, subject string, fn func([]model.Shoot) ([]model.Shoot, bool)) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	key := ShootsKey(subject)
	shoots := []model.Shoot{}
	if _, err := getBlob(ctx, tx, key, &shoots); err != nil {
		return fmt.Errorf("loading shoots: %w", err)
	}

	updated, changed := fn(shoots)
	if !changed {
		return nil
	}
	if err := putBlob(ctx, tx, key, updated); err != nil {
		return fmt.Errorf("saving shoots: %w", err)
	}

	return tx.Commit()
}

// Ping はデータベースへの接続を確認する。
func (s *SQLiteBlobStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close はデータベースを閉じる。
func (s *SQLiteBlobStore) Close() error {
	return s.db.Close()
}

// queryer は*sql.DBと*sql.Txの共通部分。
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// getBlob はkeyの値をdstにデコードする。キーが存在しない場合はfalseを返し、dstは変更しない。
func getBlob(ctx context.Context, q queryer, key string, dst any) (bool, error) {
	var raw string
	err := q.QueryRowContext(ctx, `SELECT value FROM blobs WHERE key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return false, fmt.Errorf("decoding blob %s: %w", key, err)
	}
	return true, nil
}

func putBlob(ctx context.Context, q queryer, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding blob %s: %w", key, err)
	}
	_, err = q.ExecContext(ctx,
		`INSERT INTO blobs (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, string(data),
	)
	return err
}

func sortShoots(shoots []model.Shoot) {
	slices.SortStableFunc(shoots, func(a, b model.Shoot) int {
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
}

var _ Backend = (*SQLiteBlobStore)(nil)
