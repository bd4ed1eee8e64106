package workouts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/atarokh82/rep-track-analyze/internal/analysis"
	"github.com/atarokh82/rep-track-analyze/internal/auth"
	"github.com/atarokh82/rep-track-analyze/internal/telemetry/tracing"
	"github.com/atarokh82/rep-track-analyze/pkg"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

//go:generate mockgen -source=$GOFILE -destination=handler_mocks_test.go -package=workouts_test

type weightClassAnalyzer interface {
	Analyze(ctx context.Context, input analysis.Input) (*analysis.Result, error)
}

type DeleteWorkoutResponse struct {
	DeletedID uuid.UUID `json:"deletedId"`
}

type DeleteLineageResponse struct {
	Deleted int64 `json:"deleted"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type Handler struct {
	service  *Service
	analyzer weightClassAnalyzer
}

func NewHandler(service *Service, analyzer weightClassAnalyzer) *Handler {
	return &Handler{
		service:  service,
		analyzer: analyzer,
	}
}

func (handler *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.list")
	defer span.End()

	userID, ok := sessionUser(w, r)
	if !ok {
		return
	}

	records, err := handler.service.Records(ctx, userID)
	if err != nil {
		log.Errorf("list workouts for %s: %s", userID, err)
		http.Error(w, "error, failed to get workouts", http.StatusInternalServerError)
		return
	}

	writeJSON(w, records, http.StatusOK)
}

func (handler *Handler) HandleAdd(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.add")
	defer span.End()

	userID, ok := sessionUser(w, r)
	if !ok {
		return
	}

	var input NewWorkout
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		log.Tracef("new workout, unmarshal json params: %s", err)
		http.Error(w, "add workout failed", http.StatusBadRequest)
		return
	}

	added, err := handler.service.Log(ctx, userID, input)
	if err != nil {
		if errors.Is(err, ErrInvalidWorkout) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		log.Errorf("failed to add new workout [%s]: %s", input.Title, err)
		http.Error(w, "error, failed to add new workout", http.StatusInternalServerError)
		return
	}
	span.SetAttributes(attribute.String("workout.id", added.ID.String()))

	writeJSON(w, added, http.StatusCreated)
}

func (handler *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.delete")
	defer span.End()

	userID, ok := sessionUser(w, r)
	if !ok {
		return
	}

	vars := mux.Vars(r)
	id, err := uuid.Parse(vars["id"])
	if err != nil {
		http.Error(w, "error, invalid workout id", http.StatusBadRequest)
		return
	}

	if err := handler.service.Remove(ctx, userID, id); err != nil {
		if errors.Is(err, ErrWorkoutNotFound) {
			http.Error(w, "error, workout not found", http.StatusNotFound)
			return
		}
		log.Errorf("failed to delete workout %s: %s", id, err)
		http.Error(w, "error, failed to delete workout", http.StatusInternalServerError)
		return
	}

	writeJSON(w, DeleteWorkoutResponse{DeletedID: id}, http.StatusOK)
}

func (handler *Handler) HandleTitles(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.titles")
	defer span.End()

	userID, ok := sessionUser(w, r)
	if !ok {
		return
	}

	titles, err := handler.service.Titles(ctx, userID)
	if err != nil {
		log.Errorf("get titles for %s: %s", userID, err)
		http.Error(w, "error, failed to get titles", http.StatusInternalServerError)
		return
	}

	writeJSON(w, titles, http.StatusOK)
}

func (handler *Handler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.dashboard")
	defer span.End()

	userID, ok := sessionUser(w, r)
	if !ok {
		return
	}

	lineages, err := handler.service.Dashboard(ctx, userID)
	if err != nil {
		log.Errorf("get dashboard for %s: %s", userID, err)
		http.Error(w, "error, failed to get workouts", http.StatusInternalServerError)
		return
	}

	writeJSON(w, lineages, http.StatusOK)
}

func (handler *Handler) HandleLineage(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.lineage")
	defer span.End()

	key, ok := lineageKey(w, r)
	if !ok {
		return
	}

	detail, err := handler.service.Lineage(ctx, key)
	if err != nil {
		if errors.Is(err, ErrWorkoutNotFound) {
			http.Error(w, "error, exercise not found", http.StatusNotFound)
			return
		}
		log.Errorf("get lineage %s: %s", key, err)
		http.Error(w, "error, failed to get exercise", http.StatusInternalServerError)
		return
	}

	writeJSON(w, detail, http.StatusOK)
}

func (handler *Handler) HandleDeleteLineage(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.delete-lineage")
	defer span.End()

	key, ok := lineageKey(w, r)
	if !ok {
		return
	}

	deleted, err := handler.service.RemoveLineage(ctx, key)
	if err != nil {
		if errors.Is(err, ErrWorkoutNotFound) {
			http.Error(w, "error, exercise not found", http.StatusNotFound)
			return
		}
		log.Errorf("delete lineage %s: %s", key, err)
		http.Error(w, "error, failed to delete exercise", http.StatusInternalServerError)
		return
	}

	writeJSON(w, DeleteLineageResponse{Deleted: deleted}, http.StatusOK)
}

func (handler *Handler) HandleWeightClass(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.weight-class")
	defer span.End()

	key, weight, ok := weightClassKey(w, r)
	if !ok {
		return
	}

	detail, err := handler.service.WeightClass(ctx, key, weight)
	if err != nil {
		if errors.Is(err, ErrWorkoutNotFound) {
			http.Error(w, "error, weight class not found", http.StatusNotFound)
			return
		}
		log.Errorf("get weight class %s @ %v: %s", key, weight, err)
		http.Error(w, "error, failed to get weight class", http.StatusInternalServerError)
		return
	}

	writeJSON(w, detail, http.StatusOK)
}

func (handler *Handler) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.workouts.analyze")
	defer span.End()

	key, weight, ok := weightClassKey(w, r)
	if !ok {
		return
	}

	detail, err := handler.service.WeightClass(ctx, key, weight)
	if err != nil {
		if errors.Is(err, ErrWorkoutNotFound) {
			http.Error(w, "error, weight class not found", http.StatusNotFound)
			return
		}
		log.Errorf("analyze, get weight class %s @ %v: %s", key, weight, err)
		http.Error(w, "error, failed to get weight class", http.StatusInternalServerError)
		return
	}

	result, err := handler.analyzer.Analyze(ctx, analysisInput(key, detail))
	if err != nil {
		log.Errorf("analyze weight class %s @ %v: %s", key, weight, err)
		writeJSON(w, ErrorResponse{Error: analysis.ErrAnalysisFailed.Error()}, http.StatusBadGateway)
		return
	}

	writeJSON(w, result, http.StatusOK)
}

func analysisInput(key LineageKey, detail *WeightClassDetail) analysis.Input {
	history := make([]analysis.Set, 0, len(detail.History))
	for _, record := range detail.History {
		history = append(history, analysis.Set{
			Reps:      record.Reps,
			CreatedAt: record.CreatedAt,
		})
	}
	return analysis.Input{
		UserID:      key.UserID.String(),
		Title:       detail.Title,
		Description: detail.Description,
		Weight:      detail.Stats.Weight,
		MaxReps:     detail.Stats.MaxReps,
		AvgReps:     detail.Stats.AvgReps,
		MinReps:     detail.Stats.MinReps,
		Count:       detail.Stats.Count,
		TotalVolume: detail.Stats.TotalVolume,
		History:     history,
	}
}

func sessionUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		http.Error(w, "no can do", http.StatusUnauthorized)
		return uuid.Nil, false
	}
	return userID, true
}

// lineageKey reads the lineage from the title and description query params.
// An absent or blank description selects the lineage without a description.
func lineageKey(w http.ResponseWriter, r *http.Request) (LineageKey, bool) {
	userID, ok := sessionUser(w, r)
	if !ok {
		return LineageKey{}, false
	}

	query := r.URL.Query()
	title := NewWorkout{Title: query.Get("title")}.Normalize().Title
	if title == "" {
		http.Error(w, "error, title empty", http.StatusBadRequest)
		return LineageKey{}, false
	}

	var description *string
	if query.Has("description") {
		d := query.Get("description")
		description = NormalizeDescription(&d)
	}

	return LineageKey{
		UserID:      userID,
		Title:       title,
		Description: description,
	}, true
}

func weightClassKey(w http.ResponseWriter, r *http.Request) (LineageKey, float64, bool) {
	key, ok := lineageKey(w, r)
	if !ok {
		return LineageKey{}, 0, false
	}

	vars := mux.Vars(r)
	weight, err := strconv.ParseFloat(vars["weight"], 64)
	if err != nil || weight < 0 {
		http.Error(w, "error, invalid weight", http.StatusBadRequest)
		return LineageKey{}, 0, false
	}

	return key, weight, true
}

func writeJSON(w http.ResponseWriter, v any, statusCode int) {
	respBytes, err := json.Marshal(v)
	if err != nil {
		log.Errorf("failed to marshal response: %s", err)
		http.Error(w, "error, failed to marshal response", http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, respBytes, statusCode)
}
