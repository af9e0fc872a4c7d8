package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/riflelog/internal/config"
	"github.com/hitoshi/riflelog/internal/logbook"
	"github.com/hitoshi/riflelog/internal/middleware"
	"github.com/hitoshi/riflelog/internal/model"
	"github.com/hitoshi/riflelog/internal/stats"
)

// LogbookService は記録関連のハンドラーが必要とするサービスインターフェース。
type LogbookService interface {
	Vocabulary() config.Vocabulary
	Create(ctx context.Context, subject string, in logbook.CreateInput) (*model.Shoot, error)
	Delete(ctx context.Context, subject string, id int64) error
	List(ctx context.Context, subject string) ([]model.Shoot, error)
	Profile(ctx context.Context, subject string) (model.MeasurementProfile, error)
	UpdateMeasurement(ctx context.Context, subject, field, value string) (model.MeasurementProfile, error)
	Summary(ctx context.Context, subject string) (stats.Summary, error)
}

// ShootHandler は射撃記録のHTTPハンドラー。
type ShootHandler struct {
	service LogbookService
}

// NewShootHandler はShootHandlerを生成する。
func NewShootHandler(service LogbookService) *ShootHandler {
	return &ShootHandler{service: service}
}

// createShootRequest は記録作成リクエストのボディ。
// totalScoreはフォーム入力をそのまま送れるよう数値と文字列のどちらも受け付ける。
type createShootRequest struct {
	ShotCount   int             `json:"shotCount"`
	TotalScore  json.RawMessage `json:"totalScore"`
	UseDecimals bool            `json:"useDecimals"`
	Ammunition  string          `json:"ammunition"`
	Feedback    string          `json:"feedback"`
	Comments    string          `json:"comments"`
}

// shootResponse は一覧表示用の記録。
type shootResponse struct {
	model.Shoot
	CreatedAt      time.Time `json:"createdAt"`
	Average        float64   `json:"average"`
	AverageDisplay string    `json:"averageDisplay"`
	TotalDisplay   string    `json:"totalDisplay"`
}

func toShootResponse(s model.Shoot) shootResponse {
	avg := stats.PerShotAverage(s)
	return shootResponse{
		Shoot:          s,
		CreatedAt:      s.CreatedAt().UTC(),
		Average:        avg,
		AverageDisplay: stats.FormatAverage(avg, true),
		TotalDisplay:   stats.FormatTotal(s.TotalScore),
	}
}

// List は記録を新しい順で返す。
// GET /api/shoots
func (h *ShootHandler) List(w http.ResponseWriter, r *http.Request) {
	subject, err := middleware.SubjectFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	shoots, err := h.service.List(r.Context(), subject)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	resp := make([]shootResponse, 0, len(shoots))
	for _, s := range shoots {
		resp = append(resp, toShootResponse(s))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Create は記録を追加する。
// POST /api/shoots
func (h *ShootHandler) Create(w http.ResponseWriter, r *http.Request) {
	subject, err := middleware.SubjectFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req createShootRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	shoot, err := h.service.Create(r.Context(), subject, logbook.CreateInput{
		ShotCount:   req.ShotCount,
		TotalScore:  rawScore(req.TotalScore),
		UseDecimals: req.UseDecimals,
		Ammunition:  req.Ammunition,
		Feedback:    req.Feedback,
		Comments:    req.Comments,
	})
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toShootResponse(*shoot))
}

// Delete は記録を1件削除する。
// DELETE /api/shoots/{id}
func (h *ShootHandler) Delete(w http.ResponseWriter, r *http.Request) {
	subject, err := middleware.SubjectFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	if err := h.service.Delete(r.Context(), subject, id); err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// rawScore はJSONの数値または文字列を、検証前の入力文字列として取り出す。
// 数値でも文字列でもない値は数値として解釈できない文字列になる。
func rawScore(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) > 0 && raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	return string(raw)
}
