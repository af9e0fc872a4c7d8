package model

import "sort"

// MeasurementFields は測定プロファイルで許可されるフィールド名の集合。
type MeasurementFields map[string]struct{}

// NewMeasurementFields はフィールド名の一覧から集合を生成する。
func NewMeasurementFields(names ...string) MeasurementFields {
	f := make(MeasurementFields, len(names))
	for _, n := range names {
		f[n] = struct{}{}
	}
	return f
}

// Has はフィールド名が許可されているかを返す。
func (f MeasurementFields) Has(name string) bool {
	_, ok := f[name]
	return ok
}

// Names はフィールド名をソート済みで返す。
func (f MeasurementFields) Names() []string {
	names := make([]string, 0, len(f))
	for n := range f {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// MeasurementProfile はフィールド名から値への対応を保持する。
// 値の検証は行わず、表示と復元にのみ使う。
type MeasurementProfile map[string]string

// Set は許可されたフィールドの値を更新する。
// 許可されていないフィールドはエラーになる。
func (p MeasurementProfile) Set(fields MeasurementFields, name, value string) error {
	if !fields.Has(name) {
		return NewUnknownMeasurementError(name)
	}
	p[name] = value
	return nil
}

// Restrict は許可されたフィールドのみを残したコピーを返す。
// 語彙の変更前に保存された古いキーを読み込み時に落とすために使う。
func (p MeasurementProfile) Restrict(fields MeasurementFields) MeasurementProfile {
	out := make(MeasurementProfile, len(p))
	for k, v := range p {
		if fields.Has(k) {
			out[k] = v
		}
	}
	return out
}
