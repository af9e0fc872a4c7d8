// Package stats は射撃記録から集計値とチャート用の系列を計算する。
// 全ての関数は入力のみに依存し、I/Oを行わない。
package stats

import (
	"cmp"
	"math"
	"slices"
	"time"

	"github.com/hitoshi/riflelog/internal/model"
)

// 軸範囲
const (
	DefaultAxisMin = 5.0
	DefaultAxisMax = 10.5

	axisLowerPad = 1.0
	axisUpperPad = 0.5
)

// Best は指定発数での最高記録。
type Best struct {
	ShootID int64   `json:"shootId"`
	Average float64 `json:"average"`
	Total   float64 `json:"total"`
}

// Point はチャートの1点。
type Point struct {
	Timestamp  time.Time `json:"timestamp"`
	Average    float64   `json:"average"`
	Total      float64   `json:"total"`
	ShotCount  int       `json:"shotCount"`
	Ammunition string    `json:"ammunition"`
}

// Bounds はY軸の推奨範囲。
type Bounds struct {
	Min float64 `json:"suggestedMin"`
	Max float64 `json:"suggestedMax"`
}

// PerShotAverage は1発あたりの平均点を返す。
func PerShotAverage(s model.Shoot) float64 {
	return s.TotalScore / float64(s.ShotCount)
}

// chronological はIDの昇順（作成順）に並べたコピーを返す。
// 同じIDの記録は入力順を保つ。
func chronological(shoots []model.Shoot) []model.Shoot {
	sorted := slices.Clone(shoots)
	slices.SortStableFunc(sorted, func(a, b model.Shoot) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return sorted
}

// RollingAverage は直近n発の平均点を返す。
// 各記録をshotCount個の「1発平均」に展開した時系列の末尾n個を平均する。
// 展開結果が空、またはnが0以下の場合はfalseを返す。
func RollingAverage(shoots []model.Shoot, n int) (float64, bool) {
	if n <= 0 {
		return 0, false
	}

	sorted := chronological(shoots)
	remaining := n
	var sum float64
	var count int

	for i := len(sorted) - 1; i >= 0 && remaining > 0; i-- {
		s := sorted[i]
		if s.ShotCount <= 0 {
			continue
		}
		take := min(s.ShotCount, remaining)
		sum += PerShotAverage(s) * float64(take)
		count += take
		remaining -= take
	}

	if count == 0 {
		return 0, false
	}
	return sum / float64(count), true
}

// BestSession はshotCountがlengthに一致する記録のうち合計点が最大のものを返す。
// 同点の場合は先に作成された記録を採用する。該当がなければfalseを返す。
func BestSession(shoots []model.Shoot, length int) (Best, bool) {
	var best *model.Shoot
	for _, s := range chronological(shoots) {
		if s.ShotCount != length {
			continue
		}
		if best == nil || s.TotalScore > best.TotalScore {
			best = &s
		}
	}
	if best == nil {
		return Best{}, false
	}
	return Best{
		ShootID: best.ID,
		Average: PerShotAverage(*best),
		Total:   best.TotalScore,
	}, true
}

// ChartSeries は記録を古い順のチャート系列に変換する。
// 入力の並び順（表示用の新しい順など）には依存しない。
func ChartSeries(shoots []model.Shoot) []Point {
	sorted := chronological(shoots)
	points := make([]Point, 0, len(sorted))
	for _, s := range sorted {
		points = append(points, Point{
			Timestamp:  s.CreatedAt(),
			Average:    PerShotAverage(s),
			Total:      s.TotalScore,
			ShotCount:  s.ShotCount,
			Ammunition: s.AmmunitionLabel(),
		})
	}
	return points
}

// AxisBounds は系列の最小・最大平均点に余白を加えたY軸範囲を返す。
// 結果は[0, 10.9]に収める。系列が空の場合は既定値を返す。
func AxisBounds(points []Point) Bounds {
	if len(points) == 0 {
		return Bounds{Min: DefaultAxisMin, Max: DefaultAxisMax}
	}

	lo, hi := points[0].Average, points[0].Average
	for _, p := range points[1:] {
		lo = min(lo, p.Average)
		hi = max(hi, p.Average)
	}

	return Bounds{
		Min: clampScore(math.Floor(lo - axisLowerPad)),
		Max: clampScore(hi + axisUpperPad),
	}
}

func clampScore(v float64) float64 {
	return math.Min(math.Max(v, 0), model.MaxPerShotDecimal)
}
