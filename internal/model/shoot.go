// Package model はドメインモデルを定義する。
package model

import (
	"math"
	"time"
)

const (
	// MaxPerShotDecimal は小数点採点時の1発あたりの最高点。
	MaxPerShotDecimal = 10.9
	// MaxPerShotInteger は整数採点時の1発あたりの最高点。
	MaxPerShotInteger = 10.0

	// UnknownAmmunition は弾薬ラベル未設定の記録に使う値。
	UnknownAmmunition = "unknown"
)

// Shoot は1回分の射撃練習記録を表す。
// IDは作成時刻（エポックミリ秒）で、一意キーと並び順を兼ねる。
type Shoot struct {
	ID          int64   `json:"id"`
	ShotCount   int     `json:"shotCount"`
	TotalScore  float64 `json:"totalScore"`
	UseDecimals bool    `json:"useDecimals"`
	Ammunition  string  `json:"ammunition,omitempty"` // 旧スキーマの記録には存在しない
	Feedback    string  `json:"feedback,omitempty"`
	Comments    string  `json:"comments,omitempty"`
}

// MaxPerShot は採点方式に応じた1発あたりの最高点を返す。
func MaxPerShot(useDecimals bool) float64 {
	if useDecimals {
		return MaxPerShotDecimal
	}
	return MaxPerShotInteger
}

// MaxScore は記録の発数と採点方式から取り得る最高合計点を返す。
func (s Shoot) MaxScore() float64 {
	return float64(s.ShotCount) * MaxPerShot(s.UseDecimals)
}

// CreatedAt はIDから作成時刻を復元する。
func (s Shoot) CreatedAt() time.Time {
	return time.UnixMilli(s.ID)
}

// AmmunitionLabel は弾薬ラベルを返す。未設定の場合はUnknownAmmunition。
func (s Shoot) AmmunitionLabel() string {
	if s.Ammunition == "" {
		return UnknownAmmunition
	}
	return s.Ammunition
}

// Validate は記録が不変条件を満たすか検証する。
// 0 <= TotalScore <= ShotCount * MaxPerShot かつ ShotCount > 0。
func (s Shoot) Validate() error {
	if s.ShotCount <= 0 {
		return NewInvalidShotCountError(s.ShotCount)
	}
	if math.IsNaN(s.TotalScore) || math.IsInf(s.TotalScore, 0) {
		return NewInvalidScoreError(s.ShotCount, s.UseDecimals)
	}
	if s.TotalScore < 0 || s.TotalScore > s.MaxScore() {
		return NewInvalidScoreError(s.ShotCount, s.UseDecimals)
	}
	return nil
}
