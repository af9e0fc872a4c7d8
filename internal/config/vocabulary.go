package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hitoshi/riflelog/internal/model"
)

// Vocabulary はフォームの選択肢（発数、測定項目、弾薬）を定義する。
// 集計ロジックはこれらの値を前提にしない。
type Vocabulary struct {
	ShotCounts        []int    `yaml:"shot_counts"`
	MeasurementFields []string `yaml:"measurement_fields"`
	Ammunition        []string `yaml:"ammunition"`
}

// DefaultVocabulary は設定ファイルがない場合の語彙を返す。
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		ShotCounts: []int{10, 20, 30, 40, 60},
		MeasurementFields: []string{
			"sling_length",
			"sling_position",
			"hand_stop",
			"butt_plate_height",
			"butt_plate_length",
			"cheek_piece_height",
			"rear_sight_clicks",
			"jacket_size",
		},
		Ammunition: nil, // 空の場合は自由入力
	}
}

// LoadVocabulary はYAMLファイルから語彙を読み込む。
// pathが空の場合はデフォルト語彙を返す。ファイルで省略された項目もデフォルトで補う。
func LoadVocabulary(path string) (Vocabulary, error) {
	def := DefaultVocabulary()
	if path == "" {
		return def, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Vocabulary{}, fmt.Errorf("reading vocabulary file: %w", err)
	}

	var v Vocabulary
	if err := yaml.Unmarshal(data, &v); err != nil {
		return Vocabulary{}, fmt.Errorf("parsing vocabulary file: %w", err)
	}

	if len(v.ShotCounts) == 0 {
		v.ShotCounts = def.ShotCounts
	}
	if len(v.MeasurementFields) == 0 {
		v.MeasurementFields = def.MeasurementFields
	}

	if err := v.validate(); err != nil {
		return Vocabulary{}, fmt.Errorf("vocabulary validation: %w", err)
	}
	return v, nil
}

func (v Vocabulary) validate() error {
	for _, n := range v.ShotCounts {
		if n <= 0 {
			return fmt.Errorf("shot_counts must be positive, got %d", n)
		}
	}
	for _, f := range v.MeasurementFields {
		if f == "" {
			return fmt.Errorf("measurement_fields must not contain empty names")
		}
	}
	return nil
}

// Fields は測定項目の許可集合を返す。
func (v Vocabulary) Fields() model.MeasurementFields {
	return model.NewMeasurementFields(v.MeasurementFields...)
}
