package workouts

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrWorkoutNotFound = errors.New("workout not found")
	ErrInvalidWorkout  = errors.New("invalid workout")
)

// Workout is a single logged set of an exercise.
type Workout struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"userId"`
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	Weight      float64   `json:"weight"`
	Reps        int       `json:"reps"`
	CreatedAt   time.Time `json:"createdAt"`
}

// LineageKey identifies one exercise lineage of a user. A nil Description
// is its own lineage, distinct from every described variation.
type LineageKey struct {
	UserID      uuid.UUID
	Title       string
	Description *string
}

func (k LineageKey) String() string {
	if k.Description == nil {
		return k.Title
	}
	return k.Title + " (" + *k.Description + ")"
}

// NewWorkout is the user input for logging a set.
type NewWorkout struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`
	Weight      float64 `json:"weight"`
	Reps        int     `json:"reps"`
}

// Normalize trims the text fields and turns an empty description into nil.
func (w NewWorkout) Normalize() NewWorkout {
	w.Title = strings.TrimSpace(w.Title)
	w.Description = NormalizeDescription(w.Description)
	return w
}

func (w NewWorkout) Validate() error {
	if w.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidWorkout)
	}
	if math.IsNaN(w.Weight) || math.IsInf(w.Weight, 0) || w.Weight < 0 {
		return fmt.Errorf("%w: weight must be a non-negative number", ErrInvalidWorkout)
	}
	if w.Reps <= 0 {
		return fmt.Errorf("%w: reps must be greater than 0", ErrInvalidWorkout)
	}
	return nil
}

func NormalizeDescription(description *string) *string {
	if description == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*description)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
