package model

// Identity はIdPから取得したログインユーザーを表す。
// Subjectのみがストレージのパーティションキーとして使われる。
type Identity struct {
	Subject     string `json:"id"`
	DisplayName string `json:"name"`
}
