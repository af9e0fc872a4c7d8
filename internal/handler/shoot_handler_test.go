package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/riflelog/internal/config"
	"github.com/hitoshi/riflelog/internal/logbook"
	"github.com/hitoshi/riflelog/internal/middleware"
	"github.com/hitoshi/riflelog/internal/model"
	"github.com/hitoshi/riflelog/internal/stats"
)

// --- モック定義 ---

type mockLogbookService struct {
	vocabulary          config.Vocabulary
	createFn            func(ctx context.Context, subject string, in logbook.CreateInput) (*model.Shoot, error)
	deleteFn            func(ctx context.Context, subject string, id int64) error
	listFn              func(ctx context.Context, subject string) ([]model.Shoot, error)
	profileFn           func(ctx context.Context, subject string) (model.MeasurementProfile, error)
	updateMeasurementFn func(ctx context.Context, subject, field, value string) (model.MeasurementProfile, error)
	summaryFn           func(ctx context.Context, subject string) (stats.Summary, error)
}

func (m *mockLogbookService) Vocabulary() config.Vocabulary { return m.vocabulary }

func (m *mockLogbookService) Create(ctx context.Context, subject string, in logbook.CreateInput) (*model.Shoot, error) {
	if m.createFn != nil {
		return m.createFn(ctx, subject, in)
	}
	return nil, errors.New("not implemented")
}

func (m *mockLogbookService) Delete(ctx context.Context, subject string, id int64) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, subject, id)
	}
	return nil
}

func (m *mockLogbookService) List(ctx context.Context, subject string) ([]model.Shoot, error) {
	if m.listFn != nil {
		return m.listFn(ctx, subject)
	}
	return nil, nil
}

func (m *mockLogbookService) Profile(ctx context.Context, subject string) (model.MeasurementProfile, error) {
	if m.profileFn != nil {
		return m.profileFn(ctx, subject)
	}
	return nil, nil
}

func (m *mockLogbookService) UpdateMeasurement(ctx context.Context, subject, field, value string) (model.MeasurementProfile, error) {
	if m.updateMeasurementFn != nil {
		return m.updateMeasurementFn(ctx, subject, field, value)
	}
	return nil, nil
}

func (m *mockLogbookService) Summary(ctx context.Context, subject string) (stats.Summary, error) {
	if m.summaryFn != nil {
		return m.summaryFn(ctx, subject)
	}
	return stats.Summary{}, nil
}

// --- ヘルパー ---

const testSubject = "shooter-1"

// authedRequest はログイン済みユーザーのリクエストを作成する。
func authedRequest(method, target, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	ctx := middleware.ContextWithIdentity(req.Context(), &model.Identity{Subject: testSubject})
	return req.WithContext(ctx)
}

// withURLParam はchiのURLパラメータをリクエストに設定する。
func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func decodeErrorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body middleware.ErrorResponseBody
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body.Code
}

// --- List ---

func TestShootHandler_List(t *testing.T) {
	svc := &mockLogbookService{
		listFn: func(_ context.Context, subject string) ([]model.Shoot, error) {
			if subject != testSubject {
				t.Errorf("subject = %q, want %q", subject, testSubject)
			}
			return []model.Shoot{
				{ID: 1772357400000, ShotCount: 60, TotalScore: 570, Ammunition: "RWS R50"},
				{ID: 1772271000000, ShotCount: 10, TotalScore: 95.5, UseDecimals: true},
			}, nil
		},
	}
	h := NewShootHandler(svc)

	rec := httptest.NewRecorder()
	h.List(rec, authedRequest(http.MethodGet, "/api/shoots", ""))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	var got []shootResponse
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].AverageDisplay != "9.50" || got[0].TotalDisplay != "570.0" {
		t.Errorf("first = %+v", got[0])
	}
	if got[1].AverageDisplay != "9.55" {
		t.Errorf("second average = %q, want 9.55", got[1].AverageDisplay)
	}
	if got[0].CreatedAt.UnixMilli() != got[0].ID {
		t.Errorf("createdAt should be derived from id")
	}
}

func TestShootHandler_List_EmptyIsArray(t *testing.T) {
	h := NewShootHandler(&mockLogbookService{})

	rec := httptest.NewRecorder()
	h.List(rec, authedRequest(http.MethodGet, "/api/shoots", ""))

	if body := strings.TrimSpace(rec.Body.String()); body != "[]" {
		t.Errorf("body = %q, want []", body)
	}
}

func TestShootHandler_List_Unauthenticated(t *testing.T) {
	h := NewShootHandler(&mockLogbookService{})

	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/shoots", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

// --- Create ---

func TestShootHandler_Create(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantScore string
	}{
		{name: "数値の合計点", body: `{"shotCount":10,"totalScore":95,"ammunition":"RWS R50"}`, wantScore: "95"},
		{name: "文字列の合計点", body: `{"shotCount":10,"totalScore":"95.5","useDecimals":true}`, wantScore: "95.5"},
		{name: "合計点なし", body: `{"shotCount":10}`, wantScore: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got logbook.CreateInput
			svc := &mockLogbookService{
				createFn: func(_ context.Context, _ string, in logbook.CreateInput) (*model.Shoot, error) {
					got = in
					return &model.Shoot{ID: 1772357400000, ShotCount: 10, TotalScore: 95}, nil
				},
			}
			h := NewShootHandler(svc)

			rec := httptest.NewRecorder()
			h.Create(rec, authedRequest(http.MethodPost, "/api/shoots", tt.body))

			if rec.Code != http.StatusCreated {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusCreated)
			}
			if got.TotalScore != tt.wantScore {
				t.Errorf("TotalScore = %q, want %q", got.TotalScore, tt.wantScore)
			}
			if got.ShotCount != 10 {
				t.Errorf("ShotCount = %d, want 10", got.ShotCount)
			}
		})
	}
}

func TestShootHandler_Create_InvalidJSON(t *testing.T) {
	h := NewShootHandler(&mockLogbookService{})

	rec := httptest.NewRecorder()
	h.Create(rec, authedRequest(http.MethodPost, "/api/shoots", `{"shotCount":`))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if code := decodeErrorCode(t, rec); code != model.ErrCodeInvalidRequest {
		t.Errorf("code = %q, want %q", code, model.ErrCodeInvalidRequest)
	}
}

func TestShootHandler_Create_ValidationError(t *testing.T) {
	svc := &mockLogbookService{
		createFn: func(context.Context, string, logbook.CreateInput) (*model.Shoot, error) {
			return nil, model.NewInvalidScoreError(10, false)
		},
	}
	h := NewShootHandler(svc)

	rec := httptest.NewRecorder()
	h.Create(rec, authedRequest(http.MethodPost, "/api/shoots", `{"shotCount":10,"totalScore":"abc"}`))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if code := decodeErrorCode(t, rec); code != model.ErrCodeInvalidScore {
		t.Errorf("code = %q, want %q", code, model.ErrCodeInvalidScore)
	}
}

func TestShootHandler_Create_BackendError(t *testing.T) {
	svc := &mockLogbookService{
		createFn: func(context.Context, string, logbook.CreateInput) (*model.Shoot, error) {
			return nil, errors.New("disk full")
		},
	}
	h := NewShootHandler(svc)

	rec := httptest.NewRecorder()
	h.Create(rec, authedRequest(http.MethodPost, "/api/shoots", `{"shotCount":10,"totalScore":90}`))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
	if strings.Contains(rec.Body.String(), "disk full") {
		t.Error("internal error detail should not leak")
	}
}

// --- Delete ---

func TestShootHandler_Delete(t *testing.T) {
	var gotID int64
	svc := &mockLogbookService{
		deleteFn: func(_ context.Context, _ string, id int64) error {
			gotID = id
			return nil
		},
	}
	h := NewShootHandler(svc)

	req := withURLParam(authedRequest(http.MethodDelete, "/api/shoots/1772357400000", ""), "id", "1772357400000")
	rec := httptest.NewRecorder()
	h.Delete(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
	}
	if gotID != 1772357400000 {
		t.Errorf("id = %d, want 1772357400000", gotID)
	}
}

func TestShootHandler_Delete_NotFound(t *testing.T) {
	svc := &mockLogbookService{
		deleteFn: func(_ context.Context, _ string, id int64) error {
			return model.NewShootNotFoundError(id)
		},
	}
	h := NewShootHandler(svc)

	req := withURLParam(authedRequest(http.MethodDelete, "/api/shoots/42", ""), "id", "42")
	rec := httptest.NewRecorder()
	h.Delete(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestShootHandler_Delete_InvalidID(t *testing.T) {
	h := NewShootHandler(&mockLogbookService{})

	req := withURLParam(authedRequest(http.MethodDelete, "/api/shoots/abc", ""), "id", "abc")
	rec := httptest.NewRecorder()
	h.Delete(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestRawScore(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{raw: `95`, want: "95"},
		{raw: `95.5`, want: "95.5"},
		{raw: `"95.5"`, want: "95.5"},
		{raw: `" 90 "`, want: " 90 "},
		{raw: `null`, want: ""},
		{raw: ``, want: ""},
		{raw: `true`, want: "true"},
	}
	for _, tt := range tests {
		if got := rawScore(json.RawMessage(tt.raw)); got != tt.want {
			t.Errorf("rawScore(%s) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}
