package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/atarokh82/rep-track-analyze/internal/telemetry/metrics"
	"github.com/atarokh82/rep-track-analyze/internal/telemetry/tracing"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

const (
	DefaultApiURL    = "https://api.anthropic.com/v1/messages"
	DefaultModel     = "claude-3-5-sonnet-20241022"
	DefaultMaxTokens = 1024

	apiVersion = "2023-06-01"
	apiBeta    = "messages-2023-12-15"

	RoleUser      = "user"
	RoleAssistant = "assistant"
)

var ErrMissingAPIKey = errors.New("anthropic api key not set")

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []Message `json:"messages"`
}

// APIError is returned when the messages API answers with a non 2xx status.
type APIError struct {
	StatusCode int
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("anthropic api responded with status %d: %s", e.StatusCode, e.Body)
}

type NewClientParams struct {
	ApiURL         string
	ApiKey         string
	Model          string
	HttpClient     *http.Client
	MetricsManager *metrics.Manager
}

type Client struct {
	apiURL         string
	apiKey         string
	model          string
	httpClient     *http.Client
	metricsManager *metrics.Manager
}

func NewClient(params NewClientParams) *Client {
	c := &Client{
		apiURL:         params.ApiURL,
		apiKey:         params.ApiKey,
		model:          params.Model,
		httpClient:     params.HttpClient,
		metricsManager: params.MetricsManager,
	}
	if c.apiURL == "" {
		c.apiURL = DefaultApiURL
	}
	if c.model == "" {
		c.model = DefaultModel
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return c
}

// HasAPIKey reports whether the server credential is configured.
func (c *Client) HasAPIKey() bool {
	return c.apiKey != ""
}

// Complete sends the messages to the messages API and returns the raw response payload.
// A maxTokens <= 0 means DefaultMaxTokens.
func (c *Client) Complete(ctx context.Context, messages []Message, maxTokens int) (_ []byte, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "anthropic.complete")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	span.SetAttributes(attribute.String("model", c.model))
	span.SetAttributes(attribute.Int("max_tokens", maxTokens))
	span.SetAttributes(attribute.Int("messages", len(messages)))

	reqBody, err := json.Marshal(messagesRequest{
		Model:     c.model,
		MaxTokens: maxTokens,
		Messages:  messages,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)
	req.Header.Set("anthropic-beta", apiBeta)

	begin := time.Now()
	resp, err := c.httpClient.Do(req)
	if c.metricsManager != nil {
		c.metricsManager.HistogramUpstreamLatency.Observe(time.Since(begin).Seconds())
	}
	if err != nil {
		return nil, fmt.Errorf("http client do: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	span.SetAttributes(attribute.String("status", strconv.Itoa(resp.StatusCode)))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Errorf("anthropic api error, status %d: %s", resp.StatusCode, respBytes)
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Body:       respBytes,
		}
	}

	return respBytes, nil
}
