package workouts

import (
	"context"
	"fmt"
	"time"

	"github.com/atarokh82/rep-track-analyze/internal/telemetry/tracing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
)

const workoutColumns = `id, user_id, title, description, weight, reps, created_at`

type Repo struct {
	db *pgxpool.Pool
}

func NewRepo(db *pgxpool.Pool) *Repo {
	return &Repo{
		db: db,
	}
}

func (r *Repo) Add(ctx context.Context, workout Workout) (_ *Workout, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.add")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if workout.ID == uuid.Nil {
		workout.ID = uuid.New()
	}
	if workout.CreatedAt.IsZero() {
		workout.CreatedAt = time.Now()
	}
	span.SetAttributes(attribute.String("workout.id", workout.ID.String()))

	_, err = r.db.Exec(
		ctx,
		`INSERT INTO workout
				(id, user_id, title, description, weight, reps, created_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7);`,
		workout.ID, workout.UserID, workout.Title, workout.Description,
		workout.Weight, workout.Reps, workout.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert workout: %w", err)
	}

	return &workout, nil
}

// ListByUser returns all records of the user, newest first.
func (r *Repo) ListByUser(ctx context.Context, userID uuid.UUID) (_ []Workout, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.list-by-user")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("user.id", userID.String()))

	rows, err := r.db.Query(
		ctx,
		`SELECT `+workoutColumns+`
			FROM workout
			WHERE user_id = $1
			ORDER BY created_at DESC, id;`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	workouts, err := rows2workouts(rows)
	if err != nil {
		return nil, fmt.Errorf("rows2workouts: %w", err)
	}
	return workouts, nil
}

// ListLineage returns the records of one lineage, newest first.
func (r *Repo) ListLineage(ctx context.Context, key LineageKey) (_ []Workout, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.list-lineage")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("user.id", key.UserID.String()))
	span.SetAttributes(attribute.String("lineage", key.String()))

	rows, err := r.db.Query(
		ctx,
		`SELECT `+workoutColumns+`
			FROM workout
			WHERE user_id = $1
				AND title = $2
				AND description IS NOT DISTINCT FROM $3::varchar
			ORDER BY created_at DESC, id;`,
		key.UserID, key.Title, key.Description,
	)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	workouts, err := rows2workouts(rows)
	if err != nil {
		return nil, fmt.Errorf("rows2workouts: %w", err)
	}
	return workouts, nil
}

func (r *Repo) Get(ctx context.Context, userID, id uuid.UUID) (_ *Workout, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("workout.id", id.String()))

	rows, err := r.db.Query(
		ctx,
		`SELECT `+workoutColumns+` FROM workout WHERE id = $1 AND user_id = $2;`,
		id, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	workouts, err := rows2workouts(rows)
	if err != nil {
		return nil, fmt.Errorf("rows2workouts: %w", err)
	}
	if len(workouts) != 1 {
		return nil, ErrWorkoutNotFound
	}

	return &workouts[0], nil
}

func (r *Repo) Delete(ctx context.Context, userID, id uuid.UUID) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.delete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("workout.id", id.String()))

	tag, err := r.db.Exec(
		ctx,
		`DELETE FROM workout WHERE id = $1 AND user_id = $2;`,
		id, userID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrWorkoutNotFound
	}
	return nil
}

// DeleteLineage removes every record of the lineage and returns how many were deleted.
func (r *Repo) DeleteLineage(ctx context.Context, key LineageKey) (_ int64, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "repo.workouts.delete-lineage")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("user.id", key.UserID.String()))
	span.SetAttributes(attribute.String("lineage", key.String()))

	tag, err := r.db.Exec(
		ctx,
		`DELETE FROM workout
			WHERE user_id = $1
				AND title = $2
				AND description IS NOT DISTINCT FROM $3::varchar;`,
		key.UserID, key.Title, key.Description,
	)
	if err != nil {
		return 0, err
	}

	span.SetAttributes(attribute.Int64("deleted", tag.RowsAffected()))
	return tag.RowsAffected(), nil
}

func rows2workouts(rows pgx.Rows) ([]Workout, error) {
	workouts := make([]Workout, 0)
	for rows.Next() {
		var w Workout
		if err := rows.Scan(
			&w.ID, &w.UserID, &w.Title, &w.Description,
			&w.Weight, &w.Reps, &w.CreatedAt,
		); err != nil {
			return nil, err
		}
		workouts = append(workouts, w)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return workouts, nil
}
