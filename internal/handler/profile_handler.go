package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/riflelog/internal/middleware"
	"github.com/hitoshi/riflelog/internal/model"
)

// ProfileHandler は測定プロフィールと集計のHTTPハンドラー。
type ProfileHandler struct {
	service LogbookService
}

// NewProfileHandler はProfileHandlerを生成する。
func NewProfileHandler(service LogbookService) *ProfileHandler {
	return &ProfileHandler{service: service}
}

type measurementsResponse struct {
	Fields []string                 `json:"fields"`
	Values model.MeasurementProfile `json:"values"`
}

type updateMeasurementRequest struct {
	Value string `json:"value"`
}

type vocabularyResponse struct {
	ShotCounts        []int    `json:"shotCounts"`
	MeasurementFields []string `json:"measurementFields"`
	Ammunition        []string `json:"ammunition"`
}

// GetMeasurements は測定プロフィールを返す。
// GET /api/profile/measurements
func (h *ProfileHandler) GetMeasurements(w http.ResponseWriter, r *http.Request) {
	subject, err := middleware.SubjectFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	profile, err := h.service.Profile(r.Context(), subject)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, h.measurements(profile))
}

// UpdateMeasurement は測定プロフィールの1項目を更新する。
// PUT /api/profile/measurements/{field}
func (h *ProfileHandler) UpdateMeasurement(w http.ResponseWriter, r *http.Request) {
	subject, err := middleware.SubjectFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	var req updateMeasurementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError())
		return
	}

	profile, err := h.service.UpdateMeasurement(r.Context(), subject, chi.URLParam(r, "field"), req.Value)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, h.measurements(profile))
}

// Summary は移動平均、最高記録、チャート系列、Y軸範囲をまとめて返す。
// GET /api/stats/summary
func (h *ProfileHandler) Summary(w http.ResponseWriter, r *http.Request) {
	subject, err := middleware.SubjectFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return
	}

	summary, err := h.service.Summary(r.Context(), subject)
	if err != nil {
		middleware.WriteError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// Vocabulary はフォームの選択肢を返す。
// GET /api/vocabulary
func (h *ProfileHandler) Vocabulary(w http.ResponseWriter, r *http.Request) {
	v := h.service.Vocabulary()
	writeJSON(w, http.StatusOK, vocabularyResponse{
		ShotCounts:        v.ShotCounts,
		MeasurementFields: v.MeasurementFields,
		Ammunition:        nonNil(v.Ammunition),
	})
}

func (h *ProfileHandler) measurements(profile model.MeasurementProfile) measurementsResponse {
	if profile == nil {
		profile = model.MeasurementProfile{}
	}
	return measurementsResponse{
		Fields: h.service.Vocabulary().MeasurementFields,
		Values: profile,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
