package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/atarokh82/rep-track-analyze/internal/anthropic"
	"github.com/atarokh82/rep-track-analyze/internal/telemetry/metrics"
	"github.com/atarokh82/rep-track-analyze/internal/telemetry/tracing"

	"github.com/coocood/freecache"
	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

const (
	oneHour             = 60 * 60
	analysisCacheExpire = oneHour * 1
	megabyte            = 1024 * 1024
)

var ErrAnalysisFailed = errors.New("failed to analyze workout")

type Completer interface {
	Complete(ctx context.Context, messages []anthropic.Message, maxTokens int) ([]byte, error)
}

// Set is one entry of the weight class history.
type Set struct {
	Reps      int
	CreatedAt time.Time
}

// Input describes the weight class of a lineage to analyze.
type Input struct {
	UserID      string
	Title       string
	Description *string
	Weight      float64
	MaxReps     int
	AvgReps     int
	MinReps     int
	Count       int
	TotalVolume float64
	// History is ordered newest first.
	History []Set
}

type Result struct {
	ProgressTrends  string `json:"progressTrends"`
	Strengths       string `json:"strengths"`
	Weaknesses      string `json:"weaknesses"`
	Recommendations string `json:"recommendations"`
}

type Analyzer struct {
	completer      Completer
	cache          *freecache.Cache
	maxTokens      int
	metricsManager *metrics.Manager
}

func NewAnalyzer(
	completer Completer,
	cacheSizeMB int,
	maxTokens int,
	metricsManager *metrics.Manager,
) *Analyzer {
	if cacheSizeMB <= 0 {
		cacheSizeMB = 1
	}
	return &Analyzer{
		completer:      completer,
		cache:          freecache.NewCache(cacheSizeMB * megabyte),
		maxTokens:      maxTokens,
		metricsManager: metricsManager,
	}
}

// Analyze asks the completion API for a coach style analysis of the weight class.
// Every failure is reported as ErrAnalysisFailed.
func (a *Analyzer) Analyze(ctx context.Context, input Input) (_ *Result, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "analysis.analyze")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()
	span.SetAttributes(attribute.String("title", input.Title))
	span.SetAttributes(attribute.Float64("weight", input.Weight))

	cacheKey := []byte(input.cacheKey())
	if cachedBytes, err := a.cache.Get(cacheKey); err == nil {
		var cached Result
		if err := json.Unmarshal(cachedBytes, &cached); err == nil {
			log.Tracef("found analysis for %s in cache", input.Title)
			a.countResult("cached")
			return &cached, nil
		} else {
			log.Errorf("failed to unmarshal cached analysis for %s: %s", input.Title, err)
		}
	}

	payload, err := a.completer.Complete(ctx, []anthropic.Message{
		{Role: anthropic.RoleUser, Content: BuildPrompt(input)},
	}, a.maxTokens)
	if err != nil {
		a.countResult("failed")
		return nil, fmt.Errorf("%w: complete: %w", ErrAnalysisFailed, err)
	}

	result, err := ParseCompletion(payload)
	if err != nil {
		a.countResult("failed")
		log.Errorf("analysis parse failed: %s, payload: %s", err, payload)
		return nil, err
	}

	if resultBytes, err := json.Marshal(result); err == nil {
		if err := a.cache.Set(cacheKey, resultBytes, analysisCacheExpire); err != nil {
			log.Errorf("failed to cache analysis for %s: %s", input.Title, err)
		}
	}

	a.countResult("ok")
	return result, nil
}

func (a *Analyzer) countResult(result string) {
	if a.metricsManager == nil {
		return
	}
	a.metricsManager.CounterAnalyses.WithLabelValues(result).Inc()
}

// cacheKey changes whenever a record is added to or removed from the weight class.
func (i Input) cacheKey() string {
	var latest time.Time
	for _, set := range i.History {
		if set.CreatedAt.After(latest) {
			latest = set.CreatedAt
		}
	}
	description := ""
	if i.Description != nil {
		description = *i.Description
	}
	return fmt.Sprintf("analysis::%s::%s::%s::%s::%d::%d",
		i.UserID, i.Title, description, formatNumber(i.Weight), len(i.History), latest.UnixNano(),
	)
}

func BuildPrompt(input Input) string {
	var sb strings.Builder
	sb.WriteString(`You are a professional fitness coach analyzing workout data for the exercise "`)
	sb.WriteString(input.Title)
	sb.WriteString(`"`)
	if input.Description != nil && *input.Description != "" {
		sb.WriteString(" (" + *input.Description + ")")
	}
	sb.WriteString(" at " + formatNumber(input.Weight) + " lbs.\n\n")

	sb.WriteString("Here are the stats for this weight class:\n")
	fmt.Fprintf(&sb, "- Max reps: %d\n", input.MaxReps)
	fmt.Fprintf(&sb, "- Average reps: %d\n", input.AvgReps)
	fmt.Fprintf(&sb, "- Min reps: %d\n", input.MinReps)
	fmt.Fprintf(&sb, "- Number of sets: %d\n", input.Count)
	fmt.Fprintf(&sb, "- Total volume: %s lbs\n\n", formatNumber(input.TotalVolume))

	sb.WriteString("Workout history (from newest to oldest):\n")
	for _, set := range input.History {
		fmt.Fprintf(&sb, "- %d reps on %s\n", set.Reps, set.CreatedAt.UTC().Format("Jan 2, 2006"))
	}

	sb.WriteString(`
Please analyze this data and provide:
1. Progress trends: Analyze how the performance has changed over time
2. Strengths: What aspects show good performance
3. Weaknesses: Areas that need improvement
4. Recommendations: Specific, actionable advice for improvement

Format your response as a JSON object with these keys: progressTrends, strengths, weaknesses, recommendations.
Keep each section concise (1-2 sentences).`)

	return sb.String()
}

func formatNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}
