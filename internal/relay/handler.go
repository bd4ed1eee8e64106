package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"

	"github.com/atarokh82/rep-track-analyze/internal/anthropic"
	"github.com/atarokh82/rep-track-analyze/internal/telemetry/metrics"
	"github.com/atarokh82/rep-track-analyze/internal/telemetry/tracing"
	"github.com/atarokh82/rep-track-analyze/pkg"

	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/attribute"
)

//go:generate mockgen -source=$GOFILE -destination=handler_mocks_test.go -package=relay_test

const (
	maxBodyBytes = 1 << 20

	errInvalidBody = `Invalid request body. Expected { messages: Array<{ role: "user" | "assistant", content: string }>, max_tokens?: number }`
	errInternal    = "Internal server error"
	errUpstream    = "Error calling Anthropic API"
	errMethod      = "Method not allowed"
	errTooLarge    = "Request body too large"
)

type completer interface {
	HasAPIKey() bool
	Complete(ctx context.Context, messages []anthropic.Message, maxTokens int) ([]byte, error)
}

type errorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
	Message string `json:"message,omitempty"`
}

type Handler struct {
	completer      completer
	metricsManager *metrics.Manager
}

func NewHandler(completer completer, metricsManager *metrics.Manager) *Handler {
	return &Handler{
		completer:      completer,
		metricsManager: metricsManager,
	}
}

// HandleRelay forwards a chat request to the messages API with the server held credential.
func (handler *Handler) HandleRelay(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "handler.relay")
	defer span.End()

	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
		return
	case http.MethodPost:
	default:
		w.Header().Set("Allow", http.MethodPost)
		handler.writeError(w, errorResponse{Error: errMethod}, http.StatusMethodNotAllowed)
		return
	}

	if !handler.completer.HasAPIKey() {
		log.Errorln("relay: anthropic api key is not set")
		handler.writeError(w, errorResponse{Error: errInternal}, http.StatusInternalServerError)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			handler.writeError(w, errorResponse{Error: errTooLarge}, http.StatusRequestEntityTooLarge)
			return
		}
		log.Errorf("relay: read body: %s", err)
		handler.writeError(w, errorResponse{Error: errInternal, Message: err.Error()}, http.StatusInternalServerError)
		return
	}

	messages, maxTokens, ok := parseRelayRequest(body)
	if !ok {
		handler.writeError(w, errorResponse{Error: errInvalidBody}, http.StatusBadRequest)
		return
	}
	span.SetAttributes(attribute.Int("messages", len(messages)))

	payload, err := handler.completer.Complete(ctx, messages, maxTokens)
	if err != nil {
		var apiErr *anthropic.APIError
		if errors.As(err, &apiErr) {
			handler.writeError(w, errorResponse{
				Error:   errUpstream,
				Details: upstreamDetails(apiErr.Body),
			}, apiErr.StatusCode)
			return
		}
		log.Errorf("relay: complete: %s", err)
		handler.writeError(w, errorResponse{Error: errInternal, Message: err.Error()}, http.StatusInternalServerError)
		return
	}

	handler.countCall(http.StatusOK)
	w.Header().Set("Cache-Control", "no-store")
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, payload, http.StatusOK)
}

// parseRelayRequest validates the body shape: a non empty messages array of
// user or assistant turns with string content, and an optional numeric max_tokens.
// A missing, null or zero max_tokens yields 0, meaning the client default.
func parseRelayRequest(body []byte) ([]anthropic.Message, int, bool) {
	if !gjson.ValidBytes(body) {
		return nil, 0, false
	}

	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return nil, 0, false
	}

	rawMessages := root.Get("messages")
	if !rawMessages.IsArray() {
		return nil, 0, false
	}

	items := rawMessages.Array()
	if len(items) == 0 {
		return nil, 0, false
	}

	messages := make([]anthropic.Message, 0, len(items))
	for _, item := range items {
		if !item.IsObject() {
			return nil, 0, false
		}
		role := item.Get("role")
		if role.Type != gjson.String || (role.Str != anthropic.RoleUser && role.Str != anthropic.RoleAssistant) {
			return nil, 0, false
		}
		content := item.Get("content")
		if content.Type != gjson.String {
			return nil, 0, false
		}
		messages = append(messages, anthropic.Message{Role: role.Str, Content: content.Str})
	}

	maxTokens := 0
	if rawMaxTokens := root.Get("max_tokens"); rawMaxTokens.Exists() && rawMaxTokens.Type != gjson.Null {
		if rawMaxTokens.Type != gjson.Number {
			return nil, 0, false
		}
		n := rawMaxTokens.Num
		if n < 0 || n != math.Trunc(n) || n > math.MaxInt32 {
			return nil, 0, false
		}
		maxTokens = int(n)
	}

	return messages, maxTokens, true
}

func upstreamDetails(body []byte) any {
	if json.Valid(body) {
		return json.RawMessage(body)
	}
	return string(body)
}

func (handler *Handler) writeError(w http.ResponseWriter, resp errorResponse, statusCode int) {
	handler.countCall(statusCode)

	// keep the < and > of the body hint readable
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(resp); err != nil {
		log.Errorf("relay: marshal error response: %s", err)
		http.Error(w, errInternal, http.StatusInternalServerError)
		return
	}
	pkg.WriteResponseBytes(w, pkg.ContentType.JSON, bytes.TrimRight(buf.Bytes(), "\n"), statusCode)
}

func (handler *Handler) countCall(statusCode int) {
	if handler.metricsManager == nil {
		return
	}
	handler.metricsManager.CounterRelayCalls.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}
