// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, logbook, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeNotConfigured      = "OAUTH_NOT_CONFIGURED"
	ErrCodeLoginFailed        = "LOGIN_FAILED"
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeInvalidScore       = "INVALID_SCORE"
	ErrCodeInvalidShotCount   = "INVALID_SHOT_COUNT"
	ErrCodeInvalidAmmunition  = "INVALID_AMMUNITION"
	ErrCodeUnknownMeasurement = "UNKNOWN_MEASUREMENT"
	ErrCodeInvalidNote        = "INVALID_NOTE"
	ErrCodeShootNotFound      = "SHOOT_NOT_FOUND"
)

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewNotConfiguredError はOAuthクライアントIDが未設定の場合のエラーを生成する。
func NewNotConfiguredError() *APIError {
	return &APIError{
		Code:     ErrCodeNotConfigured,
		Message:  "OAuthクライアントIDが設定されていません。",
		Category: "system",
		Action:   "管理者に連絡し、正しい設定で再デプロイしてください。",
	}
}

// NewLoginFailedError はログイン処理やプロフィール取得に失敗した場合のエラーを生成する。
// messageは認証フローが決めたユーザー向けメッセージ。
func NewLoginFailedError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeLoginFailed,
		Message:  message,
		Category: "auth",
		Action:   "もう一度ログインしてください。",
	}
}

// NewInvalidRequestError はリクエストボディの解析失敗エラーを生成する。
func NewInvalidRequestError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}

// NewInvalidScoreError は合計点が範囲外または数値でない場合のエラーを生成する。
func NewInvalidScoreError(shotCount int, useDecimals bool) *APIError {
	mode := "OFF"
	if useDecimals {
		mode = "ON"
	}
	return &APIError{
		Code:     ErrCodeInvalidScore,
		Message:  fmt.Sprintf("無効な点数です。%d発・小数点採点%sの場合、0から%.1fの範囲で入力してください。", shotCount, mode, float64(shotCount)*MaxPerShot(useDecimals)),
		Category: "validation",
		Action:   "合計点を確認して再入力してください。",
	}
}

// NewInvalidShotCountError は発数が許可されていない場合のエラーを生成する。
func NewInvalidShotCountError(shotCount int) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidShotCount,
		Message:  fmt.Sprintf("無効な発数です: %d", shotCount),
		Category: "validation",
		Action:   "選択肢にある発数を指定してください。",
	}
}

// NewInvalidAmmunitionError は弾薬ラベルが語彙にない場合のエラーを生成する。
func NewInvalidAmmunitionError(label string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidAmmunition,
		Message:  fmt.Sprintf("無効な弾薬ラベルです: %s", label),
		Category: "validation",
		Action:   "選択肢にある弾薬を指定するか、空欄にしてください。",
	}
}

// NewUnknownMeasurementError は測定フィールド名が許可されていない場合のエラーを生成する。
func NewUnknownMeasurementError(field string) *APIError {
	return &APIError{
		Code:     ErrCodeUnknownMeasurement,
		Message:  fmt.Sprintf("不明な測定項目です: %s", field),
		Category: "validation",
		Action:   "フォームにある測定項目のみ更新できます。",
	}
}

// NewInvalidNoteError は自由入力欄が長すぎる場合のエラーを生成する。
func NewInvalidNoteError(field string, maxLen int) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidNote,
		Message:  fmt.Sprintf("%sは%d文字以内で入力してください。", field, maxLen),
		Category: "validation",
		Action:   "入力内容を短くして再送信してください。",
	}
}

// NewShootNotFoundError は記録が見つからない場合のエラーを生成する。
func NewShootNotFoundError(id int64) *APIError {
	return &APIError{
		Code:     ErrCodeShootNotFound,
		Message:  fmt.Sprintf("指定された記録が見つかりません: %d", id),
		Category: "logbook",
		Action:   "記録一覧を再読み込みしてください。",
	}
}
