package workouts_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/atarokh82/rep-track-analyze/internal/analysis"
	"github.com/atarokh82/rep-track-analyze/internal/auth"
	"github.com/atarokh82/rep-track-analyze/internal/workouts"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newTestHandler(t *testing.T) (*workouts.Handler, *MockworkoutsRepo, *MockweightClassAnalyzer) {
	ctrl := gomock.NewController(t)
	repoMock := NewMockworkoutsRepo(ctrl)
	analyzerMock := NewMockweightClassAnalyzer(ctrl)
	h := workouts.NewHandler(workouts.NewService(repoMock, nil), analyzerMock)
	return h, repoMock, analyzerMock
}

func authedRequest(method, target, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	return req.WithContext(auth.WithUserID(req.Context(), testUserID))
}

func TestHandler_Unauthorized(t *testing.T) {
	h, _, _ := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.HandleDashboard(rec, httptest.NewRequest("GET", "/workouts/lineages", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	h.HandleAdd(rec, httptest.NewRequest("POST", "/workouts", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandler_HandleAdd(t *testing.T) {
	h, repoMock, _ := newTestHandler(t)

	repoMock.EXPECT().
		Add(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, w workouts.Workout) (*workouts.Workout, error) {
			return &w, nil
		})

	rec := httptest.NewRecorder()
	h.HandleAdd(rec, authedRequest("POST", "/workouts", `{"title":"Squat","description":"paused","weight":100,"reps":5}`))
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var added workouts.Workout
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &added))
	assert.Equal(t, "Squat", added.Title)
	require.NotNil(t, added.Description)
	assert.Equal(t, "paused", *added.Description)
	assert.Equal(t, testUserID, added.UserID)

	rec = httptest.NewRecorder()
	h.HandleAdd(rec, authedRequest("POST", "/workouts", `{"title":"","weight":100,"reps":5}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "title is required")

	rec = httptest.NewRecorder()
	h.HandleAdd(rec, authedRequest("POST", "/workouts", `{"title":"Squat","weight":"heavy"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_HandleList(t *testing.T) {
	h, repoMock, _ := newTestHandler(t)

	records := []workouts.Workout{squatSet(100, 5, testNow)}
	repoMock.EXPECT().ListByUser(gomock.Any(), testUserID).Return(records, nil)

	rec := httptest.NewRecorder()
	h.HandleList(rec, authedRequest("GET", "/workouts", ""))
	require.Equal(t, http.StatusOK, rec.Code)

	var got []workouts.Workout
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, records[0].ID, got[0].ID)
}

func TestHandler_HandleDashboard_Empty(t *testing.T) {
	h, repoMock, _ := newTestHandler(t)
	repoMock.EXPECT().ListByUser(gomock.Any(), testUserID).Return([]workouts.Workout{}, nil)

	rec := httptest.NewRecorder()
	h.HandleDashboard(rec, authedRequest("GET", "/workouts/lineages", ""))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", rec.Body.String())
}

func TestHandler_HandleTitles(t *testing.T) {
	h, repoMock, _ := newTestHandler(t)
	repoMock.EXPECT().ListByUser(gomock.Any(), gomock.Any()).Return(nil, assert.AnError)

	rec := httptest.NewRecorder()
	h.HandleTitles(rec, authedRequest("GET", "/workouts/titles", ""))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHandler_HandleDelete(t *testing.T) {
	h, repoMock, _ := newTestHandler(t)
	id := uuid.New()

	repoMock.EXPECT().Delete(gomock.Any(), testUserID, id).Return(nil)
	rec := httptest.NewRecorder()
	req := mux.SetURLVars(authedRequest("DELETE", "/workouts/"+id.String(), ""), map[string]string{"id": id.String()})
	h.HandleDelete(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"deletedId":"`+id.String()+`"}`, rec.Body.String())

	repoMock.EXPECT().Delete(gomock.Any(), testUserID, id).Return(workouts.ErrWorkoutNotFound)
	rec = httptest.NewRecorder()
	req = mux.SetURLVars(authedRequest("DELETE", "/workouts/"+id.String(), ""), map[string]string{"id": id.String()})
	h.HandleDelete(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	req = mux.SetURLVars(authedRequest("DELETE", "/workouts/123", ""), map[string]string{"id": "123"})
	h.HandleDelete(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_HandleLineage(t *testing.T) {
	h, repoMock, _ := newTestHandler(t)

	described := workouts.LineageKey{UserID: testUserID, Title: "Squat", Description: strPtr("paused")}
	paused := squatSet(80, 6, testNow)
	paused.Description = strPtr("paused")
	repoMock.EXPECT().ListLineage(gomock.Any(), described).Return([]workouts.Workout{paused}, nil)

	rec := httptest.NewRecorder()
	h.HandleLineage(rec, authedRequest("GET", "/workouts/lineage?title=Squat&description=paused", ""))
	require.Equal(t, http.StatusOK, rec.Code)

	var detail workouts.LineageDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	assert.Equal(t, paused.ID, detail.Latest.ID)
	require.Len(t, detail.WeightClasses, 1)
	assert.Equal(t, 480.0, detail.WeightClasses[0].TotalVolume)

	// blank description selects the lineage without description
	plain := workouts.LineageKey{UserID: testUserID, Title: "Squat"}
	repoMock.EXPECT().ListLineage(gomock.Any(), plain).Return([]workouts.Workout{}, nil)
	rec = httptest.NewRecorder()
	h.HandleLineage(rec, authedRequest("GET", "/workouts/lineage?title=Squat&description=", ""))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.HandleLineage(rec, authedRequest("GET", "/workouts/lineage", ""))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_HandleDeleteLineage(t *testing.T) {
	h, repoMock, _ := newTestHandler(t)

	key := workouts.LineageKey{UserID: testUserID, Title: "Bench Press"}
	repoMock.EXPECT().DeleteLineage(gomock.Any(), key).Return(int64(3), nil)

	rec := httptest.NewRecorder()
	h.HandleDeleteLineage(rec, authedRequest("DELETE", "/workouts/lineage?title=Bench+Press", ""))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"deleted":3}`, rec.Body.String())
}

func TestHandler_HandleWeightClass(t *testing.T) {
	h, repoMock, _ := newTestHandler(t)
	key := workouts.LineageKey{UserID: testUserID, Title: "Squat"}
	repoMock.EXPECT().
		ListLineage(gomock.Any(), key).
		Return([]workouts.Workout{squatSet(62.5, 5, testNow)}, nil)

	rec := httptest.NewRecorder()
	req := mux.SetURLVars(authedRequest("GET", "/workouts/lineage/weight/62.5?title=Squat", ""), map[string]string{"weight": "62.5"})
	h.HandleWeightClass(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var detail workouts.WeightClassDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	assert.Equal(t, 62.5, detail.Stats.Weight)
	assert.Equal(t, 312.5, detail.Stats.TotalVolume)
	assert.Len(t, detail.Progress, 1)
	assert.Len(t, detail.History, 1)

	rec = httptest.NewRecorder()
	req = mux.SetURLVars(authedRequest("GET", "/workouts/lineage/weight/abc?title=Squat", ""), map[string]string{"weight": "abc"})
	h.HandleWeightClass(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_HandleAnalyze(t *testing.T) {
	h, repoMock, analyzerMock := newTestHandler(t)
	key := workouts.LineageKey{UserID: testUserID, Title: "Squat"}
	records := []workouts.Workout{
		squatSet(100, 7, testNow),
		squatSet(100, 5, testNow.Add(-48*time.Hour)),
	}
	repoMock.EXPECT().ListLineage(gomock.Any(), key).Return(records, nil).Times(2)

	analyzerMock.EXPECT().
		Analyze(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, input analysis.Input) (*analysis.Result, error) {
			assert.Equal(t, testUserID.String(), input.UserID)
			assert.Equal(t, "Squat", input.Title)
			assert.Equal(t, 7, input.MaxReps)
			assert.Equal(t, 5, input.MinReps)
			assert.Equal(t, 6, input.AvgReps)
			assert.Equal(t, 2, input.Count)
			assert.Equal(t, 1200.0, input.TotalVolume)
			require.Len(t, input.History, 2)
			assert.Equal(t, 7, input.History[0].Reps)
			return &analysis.Result{
				ProgressTrends:  "Up.",
				Strengths:       "Consistency.",
				Weaknesses:      "Depth.",
				Recommendations: "Add a set.",
			}, nil
		})

	rec := httptest.NewRecorder()
	req := mux.SetURLVars(authedRequest("POST", "/workouts/lineage/weight/100/analysis?title=Squat", ""), map[string]string{"weight": "100"})
	h.HandleAnalyze(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t,
		`{"progressTrends":"Up.","strengths":"Consistency.","weaknesses":"Depth.","recommendations":"Add a set."}`,
		rec.Body.String(),
	)

	analyzerMock.EXPECT().Analyze(gomock.Any(), gomock.Any()).Return(nil, analysis.ErrAnalysisFailed)
	rec = httptest.NewRecorder()
	req = mux.SetURLVars(authedRequest("POST", "/workouts/lineage/weight/100/analysis?title=Squat", ""), map[string]string{"weight": "100"})
	h.HandleAnalyze(rec, req)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.JSONEq(t, `{"error":"failed to analyze workout"}`, rec.Body.String())
}
