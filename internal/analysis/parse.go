package analysis

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

var resultFields = []string{"progressTrends", "strengths", "weaknesses", "recommendations"}

// ParseCompletion extracts the analysis from a raw messages API payload.
func ParseCompletion(payload []byte) (*Result, error) {
	text := gjson.GetBytes(payload, "content.0.text")
	if text.Type != gjson.String {
		return nil, fmt.Errorf("%w: no text content in completion", ErrAnalysisFailed)
	}
	return ParseAnalysisText(text.Str)
}

// ParseAnalysisText parses the model answer into a Result. Array values are joined.
func ParseAnalysisText(text string) (*Result, error) {
	cleaned := Sanitize(text)
	if !gjson.Valid(cleaned) {
		return nil, fmt.Errorf("%w: answer is not valid json", ErrAnalysisFailed)
	}

	values := make(map[string]string, len(resultFields))
	for _, field := range resultFields {
		value := gjson.Get(cleaned, field)
		var str string
		switch {
		case value.Type == gjson.String:
			str = value.Str
		case value.IsArray():
			var parts []string
			for _, item := range value.Array() {
				if s := strings.TrimSpace(item.String()); s != "" {
					parts = append(parts, s)
				}
			}
			str = strings.Join(parts, " ")
		default:
			return nil, fmt.Errorf("%w: field %s missing", ErrAnalysisFailed, field)
		}

		str = strings.TrimSpace(str)
		if str == "" {
			return nil, fmt.Errorf("%w: field %s empty", ErrAnalysisFailed, field)
		}
		values[field] = str
	}

	return &Result{
		ProgressTrends:  values["progressTrends"],
		Strengths:       values["strengths"],
		Weaknesses:      values["weaknesses"],
		Recommendations: values["recommendations"],
	}, nil
}

// Sanitize strips markdown fences, stray wrapping quotes and leading or
// trailing prose around the JSON object of a model answer.
func Sanitize(text string) string {
	s := stripFences(strings.TrimSpace(text))

	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		var unquoted string
		if err := json.Unmarshal([]byte(s), &unquoted); err == nil {
			s = unquoted
		} else {
			s = s[1 : len(s)-1]
		}
		s = stripFences(strings.TrimSpace(s))
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return s
	}
	return s[start : end+1]
}

func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// language tag, e.g. ```json
	if nl := strings.Index(s, "\n"); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
