package stats

import (
	"errors"
	"fmt"

	"github.com/hitoshi/riflelog/internal/model"
)

// NotAvailable は値を計算できない場合の表示文字列。
const NotAvailable = "N/A"

// ErrMalformedShoot は集計対象に不変条件を満たさない記録が含まれていることを示す。
// 作成時の検証を通った記録のみが渡される前提のため、発生した場合はプログラムの欠陥として扱う。
var ErrMalformedShoot = errors.New("malformed shoot record")

// SummaryConfig は集計のパラメータ。
type SummaryConfig struct {
	Windows    []int // 移動平均の発数
	BestLength int   // 最高記録の対象発数
}

// DefaultSummaryConfig は直近60発・300発の平均と10発の最高記録を集計する。
func DefaultSummaryConfig() SummaryConfig {
	return SummaryConfig{
		Windows:    []int{60, 300},
		BestLength: 10,
	}
}

// WindowAverage は直近Window発の平均点。計算できない場合Averageはnil。
type WindowAverage struct {
	Window  int      `json:"window"`
	Average *float64 `json:"average"`
	Display string   `json:"display"`
}

// BestSummary は最高記録。該当記録がない場合Bestはnil。
type BestSummary struct {
	Length  int    `json:"length"`
	Best    *Best  `json:"best"`
	Display string `json:"display"`
}

// Summary は1ユーザー分の集計結果。
type Summary struct {
	ShootCount int             `json:"shootCount"`
	Rolling    []WindowAverage `json:"rolling"`
	Best       BestSummary     `json:"best"`
	Series     []Point         `json:"series"`
	Bounds     Bounds          `json:"bounds"`
}

// Summarize は記録を検証したうえで全ての集計値を計算する。
func Summarize(shoots []model.Shoot, cfg SummaryConfig) (Summary, error) {
	for _, s := range shoots {
		if err := s.Validate(); err != nil {
			return Summary{}, fmt.Errorf("%w: id %d: %v", ErrMalformedShoot, s.ID, err)
		}
	}

	summary := Summary{
		ShootCount: len(shoots),
		Rolling:    make([]WindowAverage, 0, len(cfg.Windows)),
	}

	for _, n := range cfg.Windows {
		avg, ok := RollingAverage(shoots, n)
		w := WindowAverage{Window: n, Display: FormatAverage(avg, ok)}
		if ok {
			w.Average = &avg
		}
		summary.Rolling = append(summary.Rolling, w)
	}

	best, ok := BestSession(shoots, cfg.BestLength)
	summary.Best = BestSummary{Length: cfg.BestLength, Display: FormatBest(best, ok)}
	if ok {
		summary.Best.Best = &best
	}

	summary.Series = ChartSeries(shoots)
	summary.Bounds = AxisBounds(summary.Series)

	return summary, nil
}

// FormatAverage は平均点を小数点以下2桁で返す。
func FormatAverage(v float64, ok bool) string {
	if !ok {
		return NotAvailable
	}
	return fmt.Sprintf("%.2f", v)
}

// FormatTotal は合計点を小数点以下1桁で返す。
func FormatTotal(v float64) string {
	return fmt.Sprintf("%.1f", v)
}

// FormatBest は最高記録を "9.50 (Total: 95.0)" の形式で返す。
func FormatBest(b Best, ok bool) string {
	if !ok {
		return NotAvailable
	}
	return fmt.Sprintf("%s (Total: %s)", FormatAverage(b.Average, true), FormatTotal(b.Total))
}
