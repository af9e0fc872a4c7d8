// Package logbook は射撃記録と測定プロフィールのドメインロジックを提供する。
// 記録の作成時検証はここで行い、集計側には検証済みの記録のみを渡す。
package logbook

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hitoshi/riflelog/internal/config"
	"github.com/hitoshi/riflelog/internal/model"
	"github.com/hitoshi/riflelog/internal/security"
	"github.com/hitoshi/riflelog/internal/stats"
	"github.com/hitoshi/riflelog/internal/storage"
)

// 自由入力欄の最大文字数
const (
	MaxNoteLength       = 2000
	MaxAmmunitionLength = 100
	MaxMeasurementValue = 100
)

// CreateInput はフォームから送信された記録作成の入力。
// 合計点はフォームの入力値をそのまま文字列で受け取る。
type CreateInput struct {
	ShotCount   int
	TotalScore  string
	UseDecimals bool
	Ammunition  string
	Feedback    string
	Comments    string
}

// Recorder は記録の作成・削除のメトリクスを記録する。
type Recorder interface {
	RecordShootCreated(shotCount int)
	RecordShootDeleted()
}

type noopRecorder struct{}

func (noopRecorder) RecordShootCreated(int) {}
func (noopRecorder) RecordShootDeleted()    {}

// Service は記録管理のサービス層。
type Service struct {
	backend    storage.Backend
	vocab      config.Vocabulary
	fields     model.MeasurementFields
	sanitizer  security.TextSanitizer
	summaryCfg stats.SummaryConfig
	recorder   Recorder
	now        func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。recorderはnilでもよい。
func NewService(
	backend storage.Backend,
	vocab config.Vocabulary,
	summaryCfg stats.SummaryConfig,
	sanitizer security.TextSanitizer,
	recorder Recorder,
) *Service {
	if recorder == nil {
		recorder = noopRecorder{}
	}
	return &Service{
		backend:    backend,
		vocab:      vocab,
		fields:     vocab.Fields(),
		sanitizer:  sanitizer,
		summaryCfg: summaryCfg,
		recorder:   recorder,
		now:        time.Now,
	}
}

// Vocabulary はフォームの選択肢を返す。
func (s *Service) Vocabulary() config.Vocabulary {
	return s.vocab
}

// Create は入力を検証して記録を追加する。
// IDには現在時刻（エポックミリ秒）を使う。同一ミリ秒での作成は区別しない。
func (s *Service) Create(ctx context.Context, subject string, in CreateInput) (*model.Shoot, error) {
	if !slices.Contains(s.vocab.ShotCounts, in.ShotCount) {
		return nil, model.NewInvalidShotCountError(in.ShotCount)
	}

	score, err := strconv.ParseFloat(strings.TrimSpace(in.TotalScore), 64)
	if err != nil {
		return nil, model.NewInvalidScoreError(in.ShotCount, in.UseDecimals)
	}

	ammunition := s.sanitizer.Sanitize(in.Ammunition)
	if utf8.RuneCountInString(ammunition) > MaxAmmunitionLength {
		return nil, model.NewInvalidNoteError("弾薬", MaxAmmunitionLength)
	}
	if ammunition != "" && len(s.vocab.Ammunition) > 0 && !slices.Contains(s.vocab.Ammunition, ammunition) {
		return nil, model.NewInvalidAmmunitionError(ammunition)
	}

	feedback := s.sanitizer.Sanitize(in.Feedback)
	if utf8.RuneCountInString(feedback) > MaxNoteLength {
		return nil, model.NewInvalidNoteError("フィードバック", MaxNoteLength)
	}
	comments := s.sanitizer.Sanitize(in.Comments)
	if utf8.RuneCountInString(comments) > MaxNoteLength {
		return nil, model.NewInvalidNoteError("コメント", MaxNoteLength)
	}

	shoot := model.Shoot{
		ID:          s.now().UnixMilli(),
		ShotCount:   in.ShotCount,
		TotalScore:  score,
		UseDecimals: in.UseDecimals,
		Ammunition:  ammunition,
		Feedback:    feedback,
		Comments:    comments,
	}
	if err := shoot.Validate(); err != nil {
		return nil, err
	}

	if err := s.backend.AppendShoot(ctx, subject, shoot); err != nil {
		return nil, fmt.Errorf("記録の保存に失敗しました: %w", err)
	}
	s.recorder.RecordShootCreated(shoot.ShotCount)

	return &shoot, nil
}

// Delete は記録を1件削除する。
func (s *Service) Delete(ctx context.Context, subject string, id int64) error {
	found, err := s.backend.DeleteShoot(ctx, subject, id)
	if err != nil {
		return fmt.Errorf("記録の削除に失敗しました: %w", err)
	}
	if !found {
		return model.NewShootNotFoundError(id)
	}
	s.recorder.RecordShootDeleted()
	return nil
}

// List は記録を新しい順で返す。
func (s *Service) List(ctx context.Context, subject string) ([]model.Shoot, error) {
	_, shoots, err := s.backend.Load(ctx, subject)
	if err != nil {
		return nil, fmt.Errorf("記録の取得に失敗しました: %w", err)
	}
	slices.Reverse(shoots)
	return shoots, nil
}

// Profile は測定プロフィールを返す。語彙にない古いフィールドは含めない。
func (s *Service) Profile(ctx context.Context, subject string) (model.MeasurementProfile, error) {
	profile, _, err := s.backend.Load(ctx, subject)
	if err != nil {
		return nil, fmt.Errorf("測定プロフィールの取得に失敗しました: %w", err)
	}
	return profile.Restrict(s.fields), nil
}

// UpdateMeasurement は測定プロフィールの1項目を更新し、更新後のプロフィールを返す。
func (s *Service) UpdateMeasurement(ctx context.Context, subject, field, value string) (model.MeasurementProfile, error) {
	if !s.fields.Has(field) {
		return nil, model.NewUnknownMeasurementError(field)
	}

	clean := s.sanitizer.Sanitize(value)
	if utf8.RuneCountInString(clean) > MaxMeasurementValue {
		return nil, model.NewInvalidNoteError(field, MaxMeasurementValue)
	}

	profile, err := s.Profile(ctx, subject)
	if err != nil {
		return nil, err
	}
	if err := profile.Set(s.fields, field, clean); err != nil {
		return nil, err
	}

	if err := s.backend.SaveProfile(ctx, subject, profile); err != nil {
		return nil, fmt.Errorf("測定プロフィールの保存に失敗しました: %w", err)
	}
	return profile, nil
}

// Summary は記録の集計結果を返す。
func (s *Service) Summary(ctx context.Context, subject string) (stats.Summary, error) {
	_, shoots, err := s.backend.Load(ctx, subject)
	if err != nil {
		return stats.Summary{}, fmt.Errorf("記録の取得に失敗しました: %w", err)
	}
	return stats.Summarize(shoots, s.summaryCfg)
}
