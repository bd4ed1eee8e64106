package workouts

import (
	"context"
	"fmt"
	"time"

	"github.com/atarokh82/rep-track-analyze/internal/telemetry/metrics"
	"github.com/atarokh82/rep-track-analyze/internal/telemetry/tracing"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

//go:generate mockgen -source=$GOFILE -destination=service_mocks_test.go -package=workouts_test

type workoutsRepo interface {
	Add(ctx context.Context, workout Workout) (*Workout, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]Workout, error)
	ListLineage(ctx context.Context, key LineageKey) ([]Workout, error)
	Get(ctx context.Context, userID, id uuid.UUID) (*Workout, error)
	Delete(ctx context.Context, userID, id uuid.UUID) error
	DeleteLineage(ctx context.Context, key LineageKey) (int64, error)
}

// LineageDetail is the exercise detail view: the lineage plus its weight classes.
type LineageDetail struct {
	Lineage
	WeightClasses []WeightClass `json:"weightClasses"`
}

// WeightClassDetail is the weight class view of a lineage.
type WeightClassDetail struct {
	Title       string          `json:"title"`
	Description *string         `json:"description"`
	Stats       WeightClass     `json:"stats"`
	Progress    []ProgressPoint `json:"progress"`
	History     []Workout       `json:"history"`
}

type Service struct {
	repo           workoutsRepo
	metricsManager *metrics.Manager
	now            func() time.Time
}

func NewService(repo workoutsRepo, metricsManager *metrics.Manager) *Service {
	return &Service{
		repo:           repo,
		metricsManager: metricsManager,
		now:            time.Now,
	}
}

// Log validates and stores a new set for the user.
func (s *Service) Log(ctx context.Context, userID uuid.UUID, input NewWorkout) (_ *Workout, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.workouts.log")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	input = input.Normalize()
	if err := input.Validate(); err != nil {
		return nil, err
	}

	added, err := s.repo.Add(ctx, Workout{
		ID:          uuid.New(),
		UserID:      userID,
		Title:       input.Title,
		Description: input.Description,
		Weight:      input.Weight,
		Reps:        input.Reps,
		CreatedAt:   s.now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("add workout: %w", err)
	}

	if s.metricsManager != nil {
		s.metricsManager.CounterWorkoutsAdded.Inc()
	}
	log.Debugf("workout added [%s]: %s %v x %d", added.ID, added.Title, added.Weight, added.Reps)

	return added, nil
}

func (s *Service) Records(ctx context.Context, userID uuid.UUID) ([]Workout, error) {
	return s.repo.ListByUser(ctx, userID)
}

// Dashboard returns all lineages of the user, most recently trained first.
func (s *Service) Dashboard(ctx context.Context, userID uuid.UUID) (_ []Lineage, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.workouts.dashboard")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	records, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list workouts: %w", err)
	}

	lineages := GroupByLineage(records)
	span.SetAttributes(attribute.Int("lineages", len(lineages)))
	return lineages, nil
}

func (s *Service) Titles(ctx context.Context, userID uuid.UUID) ([]string, error) {
	records, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list workouts: %w", err)
	}
	return UniqueTitles(records), nil
}

func (s *Service) Lineage(ctx context.Context, key LineageKey) (_ *LineageDetail, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.workouts.lineage")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("lineage", key.String()))

	records, err := s.repo.ListLineage(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("list lineage: %w", err)
	}

	lineages := GroupByLineage(records)
	if len(lineages) == 0 {
		return nil, ErrWorkoutNotFound
	}

	return &LineageDetail{
		Lineage:       lineages[0],
		WeightClasses: GroupByWeight(records),
	}, nil
}

func (s *Service) WeightClass(ctx context.Context, key LineageKey, weight float64) (_ *WeightClassDetail, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "service.workouts.weight-class")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("lineage", key.String()))
	span.SetAttributes(attribute.Float64("weight", weight))

	records, err := s.repo.ListLineage(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("list lineage: %w", err)
	}

	stats, ok := WeightClassStats(records, weight)
	if !ok {
		return nil, ErrWorkoutNotFound
	}

	history := FilterByWeight(records, weight)
	sortNewestFirst(history)

	return &WeightClassDetail{
		Title:       key.Title,
		Description: key.Description,
		Stats:       *stats,
		Progress:    ProgressPoints(history),
		History:     history,
	}, nil
}

func (s *Service) Remove(ctx context.Context, userID, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, userID, id); err != nil {
		return fmt.Errorf("delete workout %s: %w", id, err)
	}
	return nil
}

// RemoveLineage deletes every record of the lineage.
func (s *Service) RemoveLineage(ctx context.Context, key LineageKey) (int64, error) {
	deleted, err := s.repo.DeleteLineage(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("delete lineage %s: %w", key, err)
	}
	if deleted == 0 {
		return 0, ErrWorkoutNotFound
	}
	log.Debugf("lineage %s removed, %d records", key, deleted)
	return deleted, nil
}
