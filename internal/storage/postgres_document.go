package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hitoshi/riflelog/internal/model"
)

// PostgresDocumentStore はユーザー単位のドキュメントをPostgreSQLに保存するBackend。
// プロフィールはshooter_profiles、記録はshootsテーブルにJSONBで保持する。
// スキーマはdatabase.RunMigrationsで作成する。
type PostgresDocumentStore struct {
	db *sql.DB
}

// NewPostgresDocumentStore はPostgresDocumentStoreを生成する。
func NewPostgresDocumentStore(db *sql.DB) *PostgresDocumentStore {
	return &PostgresDocumentStore{db: db}
}

// Load はプロフィールと記録をID昇順で読み込む。同じIDの記録は保存順に並ぶ。
func (s *PostgresDocumentStore) Load(ctx context.Context, subject string) (model.MeasurementProfile, []model.Shoot, error) {
	profile := model.MeasurementProfile{}

	var raw []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT measurements FROM shooter_profiles WHERE subject = $1`, subject,
	).Scan(&raw)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, nil, fmt.Errorf("loading measurements: %w", err)
	default:
		if err := json.Unmarshal(raw, &profile); err != nil {
			return nil, nil, fmt.Errorf("decoding measurements: %w", err)
		}
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT document FROM shoots WHERE subject = $1 ORDER BY id, seq`, subject,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("loading shoots: %w", err)
	}
	defer rows.Close()

	shoots := []model.Shoot{}
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, nil, fmt.Errorf("scanning shoot: %w", err)
		}
		var shoot model.Shoot
		if err := json.Unmarshal(doc, &shoot); err != nil {
			return nil, nil, fmt.Errorf("decoding shoot: %w", err)
		}
		shoots = append(shoots, shoot)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterating shoots: %w", err)
	}

	return profile, shoots, nil
}

// SaveProfile はプロフィールをUPSERTする。
func (s *PostgresDocumentStore) SaveProfile(ctx context.Context, subject string, profile model.MeasurementProfile) error {
	if profile == nil {
		profile = model.MeasurementProfile{}
	}
	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("encoding measurements: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO shooter_profiles (subject, measurements, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (subject) DO UPDATE SET measurements = EXCLUDED.measurements, updated_at = now()`,
		subject, string(data),
	)
	if err != nil {
		return fmt.Errorf("saving measurements: %w", err)
	}
	return nil
}

// AppendShoot は記録を1件追加する。同じIDの記録があっても上書きせず両方を保持する。
func (s *PostgresDocumentStore) AppendShoot(ctx context.Context, subject string, shoot model.Shoot) error {
	data, err := json.Marshal(shoot)
	if err != nil {
		return fmt.Errorf("encoding shoot: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO shoots (subject, id, document, created_at)
		 VALUES ($1, $2, $3, $4)`,
		subject, shoot.ID, string(data), shoot.CreatedAt(),
	)
	if err != nil {
		return fmt.Errorf("saving shoot: %w", err)
	}
	return nil
}

// DeleteShoot は指定IDの記録をすべて削除する。
func (s *PostgresDocumentStore) DeleteShoot(ctx context.Context, subject string, id int64) (bool, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM shoots WHERE subject = $1 AND id = $2`, subject, id,
	)
	if err != nil {
		return false, fmt.Errorf("deleting shoot: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deleting shoot: %w", err)
	}
	return n > 0, nil
}

// Ping はデータベースへの接続を確認する。
func (s *PostgresDocumentStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close はデータベース接続を閉じる。
func (s *PostgresDocumentStore) Close() error {
	return s.db.Close()
}

var _ Backend = (*PostgresDocumentStore)(nil)
