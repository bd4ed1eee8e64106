package workouts

import (
	"math"
	"sort"
)

// Lineage groups every record sharing a title and description.
type Lineage struct {
	Title       string    `json:"title"`
	Description *string   `json:"description"`
	Latest      Workout   `json:"latest"`
	Records     []Workout `json:"records"`
}

// WeightClass holds the statistics of all records of a lineage done with the same weight.
type WeightClass struct {
	Weight      float64 `json:"weight"`
	MaxReps     int     `json:"maxReps"`
	MinReps     int     `json:"minReps"`
	AvgReps     int     `json:"avgReps"`
	Count       int     `json:"count"`
	TotalVolume float64 `json:"totalVolume"`
}

type ProgressPoint struct {
	Date      string `json:"date"`
	Reps      int    `json:"reps"`
	Timestamp int64  `json:"timestamp"`
}

const progressDateLayout = "01/02/2006"

type lineageGroupKey struct {
	title          string
	hasDescription bool
	description    string
}

func groupKeyOf(w Workout) lineageGroupKey {
	key := lineageGroupKey{title: w.Title}
	if w.Description != nil {
		key.hasDescription = true
		key.description = *w.Description
	}
	return key
}

// GroupByLineage partitions the records by (title, description). Lineages are
// ordered by their latest record, newest first; records inside a lineage too.
func GroupByLineage(records []Workout) []Lineage {
	indexByKey := make(map[lineageGroupKey]int)
	lineages := make([]Lineage, 0)
	for _, record := range records {
		key := groupKeyOf(record)
		idx, ok := indexByKey[key]
		if !ok {
			idx = len(lineages)
			indexByKey[key] = idx
			lineages = append(lineages, Lineage{
				Title:       record.Title,
				Description: record.Description,
			})
		}
		lineages[idx].Records = append(lineages[idx].Records, record)
	}

	for i := range lineages {
		sortNewestFirst(lineages[i].Records)
		lineages[i].Latest = lineages[i].Records[0]
	}

	sort.SliceStable(lineages, func(i, j int) bool {
		a, b := lineages[i], lineages[j]
		if !a.Latest.CreatedAt.Equal(b.Latest.CreatedAt) {
			return a.Latest.CreatedAt.After(b.Latest.CreatedAt)
		}
		if a.Title != b.Title {
			return a.Title < b.Title
		}
		return descriptionLess(a.Description, b.Description)
	})

	return lineages
}

// GroupByWeight computes one WeightClass per distinct weight, heaviest first.
func GroupByWeight(records []Workout) []WeightClass {
	indexByWeight := make(map[float64]int)
	classes := make([]WeightClass, 0)
	sums := make([]int, 0)
	for _, record := range records {
		idx, ok := indexByWeight[record.Weight]
		if !ok {
			idx = len(classes)
			indexByWeight[record.Weight] = idx
			classes = append(classes, WeightClass{
				Weight:  record.Weight,
				MaxReps: record.Reps,
				MinReps: record.Reps,
			})
			sums = append(sums, 0)
		}

		class := &classes[idx]
		class.Count++
		sums[idx] += record.Reps
		if record.Reps > class.MaxReps {
			class.MaxReps = record.Reps
		}
		if record.Reps < class.MinReps {
			class.MinReps = record.Reps
		}
	}

	for i := range classes {
		classes[i].AvgReps = int(math.Round(float64(sums[i]) / float64(classes[i].Count)))
		classes[i].TotalVolume = classes[i].Weight * float64(sums[i])
	}

	sort.Slice(classes, func(i, j int) bool {
		return classes[i].Weight > classes[j].Weight
	})

	return classes
}

// WeightClassStats returns the statistics for a single weight, false if no record used it.
func WeightClassStats(records []Workout, weight float64) (*WeightClass, bool) {
	filtered := FilterByWeight(records, weight)
	if len(filtered) == 0 {
		return nil, false
	}
	classes := GroupByWeight(filtered)
	return &classes[0], true
}

func FilterByWeight(records []Workout, weight float64) []Workout {
	filtered := make([]Workout, 0)
	for _, record := range records {
		if record.Weight == weight {
			filtered = append(filtered, record)
		}
	}
	return filtered
}

// UniqueTitles returns the distinct titles in the order they first appear.
func UniqueTitles(records []Workout) []string {
	seen := make(map[string]bool)
	titles := make([]string, 0)
	for _, record := range records {
		if seen[record.Title] {
			continue
		}
		seen[record.Title] = true
		titles = append(titles, record.Title)
	}
	return titles
}

// ProgressPoints maps records to chart points, oldest first.
func ProgressPoints(records []Workout) []ProgressPoint {
	sorted := make([]Workout, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.Before(sorted[j].CreatedAt)
	})

	points := make([]ProgressPoint, 0, len(sorted))
	for _, record := range sorted {
		points = append(points, ProgressPoint{
			Date:      record.CreatedAt.UTC().Format(progressDateLayout),
			Reps:      record.Reps,
			Timestamp: record.CreatedAt.UnixMilli(),
		})
	}
	return points
}

func sortNewestFirst(records []Workout) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID.String() < b.ID.String()
	})
}

func descriptionLess(a, b *string) bool {
	switch {
	case a == nil:
		return b != nil
	case b == nil:
		return false
	default:
		return *a < *b
	}
}
