// Package emotionclient classifies utterances through a remote emotion detection service.
package emotionclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sony/gobreaker"

	"github.com/pscheid92/emofusion/internal/adapter/metrics"
	"github.com/pscheid92/emofusion/internal/domain"
	"github.com/pscheid92/emofusion/internal/fusion"
	"github.com/pscheid92/emofusion/internal/platform/correlation"
	"github.com/pscheid92/emofusion/internal/platform/retry"
)

const (
	maxErrorBody     = 4096
	defaultAttempts  = 3
	initialBackoff   = 200 * time.Millisecond
	rateLimitBackoff = 2 * time.Second
	maxBackoff       = 5 * time.Second
	breakerTimeout   = 30 * time.Second
	breakerTrips     = 5
)

type Config struct {
	BaseURL     string
	Timeout     time.Duration
	MaxAttempts int
	Clock       clockwork.Clock
}

type detectRequest struct {
	Text string `json:"text"`
}

type labelScore struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

type detectResponse struct {
	Emotions        []labelScore `json:"emotions"`
	DominantEmotion string       `json:"dominant_emotion"`
}

// StatusError is a non-200 reply from the service.
type StatusError struct {
	Code       int
	Body       string
	retryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("emotion service %d: %s", e.Code, e.Body)
}

func (e *StatusError) RetryAfter() time.Duration { return e.retryAfter }

// Client calls POST {BaseURL}/detect. Transient failures are retried; repeated failures open a
// circuit breaker so a dead service costs one fast error per tick. It satisfies app.TextClassifier.
type Client struct {
	baseURL string
	http    *http.Client
	clock   clockwork.Clock
	policy  retry.Policy
	breaker *gobreaker.CircuitBreaker
	metrics *metrics.ExternalMetrics
}

// New creates a client. m may be nil.
func New(cfg Config, m *metrics.ExternalMetrics) *Client {
	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = defaultAttempts
	}

	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
		clock:   clock,
		metrics: m,
	}
	c.policy = retry.Policy{
		MaxAttempts:      attempts,
		InitialBackoff:   initialBackoff,
		RateLimitBackoff: rateLimitBackoff,
		MaxBackoff:       maxBackoff,
		Clock:            clock,
		OnRetry: func(attempt int, err error, backoff time.Duration) {
			slog.Warn("Emotion service call failed, retrying", "attempt", attempt, "backoff", backoff, "error", err)
		},
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "emotion-service",
		Timeout: breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerTrips
		},
		IsSuccessful: isHealthyOutcome,
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Circuit breaker state changed", "component", name, "from", from.String(), "to", to.String())
			if c.metrics != nil {
				c.metrics.CircuitState.Set(float64(to))
			}
		},
	})
	return c
}

// isHealthyOutcome keeps client-side mistakes, empty detections and caller cancellation from
// tripping the breaker.
func isHealthyOutcome(err error) bool {
	if err == nil || errors.Is(err, domain.ErrNoDetection) || errors.Is(err, context.Canceled) {
		return true
	}
	var se *StatusError
	return errors.As(err, &se) && se.Code >= 400 && se.Code < 500 && se.Code != http.StatusTooManyRequests
}

func classify(err error) retry.Action {
	var se *StatusError
	if errors.As(err, &se) {
		switch {
		case se.Code == http.StatusTooManyRequests:
			return retry.After
		case se.Code >= 500:
			return retry.Retry
		default:
			return retry.Stop
		}
	}
	if errors.Is(err, domain.ErrNoDetection) || errors.Is(err, context.Canceled) {
		return retry.Stop
	}
	return retry.Retry
}

// Classify returns the emotion vector for one utterance.
func (c *Client) Classify(ctx context.Context, text string) (domain.EmotionVector, error) {
	start := c.clock.Now()
	result, err := c.breaker.Execute(func() (any, error) {
		return retry.Do(ctx, c.policy, classify, func(ctx context.Context) (detectResponse, error) {
			return c.detect(ctx, text)
		})
	})
	c.observe(start, err)
	if err != nil {
		return domain.EmotionVector{}, fmt.Errorf("classify text: %w", err)
	}
	return toVector(result.(detectResponse), c.clock.Now())
}

func (c *Client) observe(start time.Time, err error) {
	if c.metrics == nil {
		return
	}
	c.metrics.RequestDuration.Observe(c.clock.Since(start).Seconds())

	result := "success"
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		result = "circuit_open"
	case errors.Is(err, domain.ErrNoDetection):
		result = "no_detection"
	case errors.Is(err, context.Canceled):
		result = "canceled"
	case err != nil:
		result = "error"
	}
	c.metrics.Requests.WithLabelValues(result).Inc()
}

func (c *Client) detect(ctx context.Context, text string) (detectResponse, error) {
	body, err := json.Marshal(detectRequest{Text: text})
	if err != nil {
		return detectResponse{}, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/detect", bytes.NewReader(body))
	if err != nil {
		return detectResponse{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if id, ok := correlation.ID(ctx); ok {
		req.Header.Set(correlation.Header, id)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return detectResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return detectResponse{}, &StatusError{
			Code:       resp.StatusCode,
			Body:       strings.TrimSpace(string(msg)),
			retryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	var out detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return detectResponse{}, fmt.Errorf("decode response: %w", err)
	}
	if len(out.Emotions) == 0 {
		return detectResponse{}, domain.ErrNoDetection
	}
	return out, nil
}

func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// serviceLabels maps the service's vocabulary onto ours. Labels outside it (fear, disgust) are dropped.
var serviceLabels = map[string]domain.Label{
	"joy":       domain.Happy,
	"happy":     domain.Happy,
	"happiness": domain.Happy,
	"sadness":   domain.Sad,
	"sad":       domain.Sad,
	"anger":     domain.Angry,
	"angry":     domain.Angry,
	"surprise":  domain.Surprised,
	"surprised": domain.Surprised,
	"neutral":   domain.Neutral,
}

func toVector(resp detectResponse, at time.Time) (domain.EmotionVector, error) {
	var raw domain.Scores
	mapped := false
	for _, e := range resp.Emotions {
		label, ok := serviceLabels[strings.ToLower(e.Label)]
		if !ok {
			continue
		}
		raw[label] += e.Score
		mapped = true
	}
	if !mapped {
		return domain.EmotionVector{}, fmt.Errorf("%w: no supported labels in response", domain.ErrNoDetection)
	}

	scores := fusion.Normalize(raw)
	_, confidence := fusion.Dominant(raw)
	if confidence > 1 {
		confidence = 1
	}
	return domain.EmotionVector{Timestamp: at, Confidence: confidence, Emotions: scores}, nil
}

// ErrCircuitOpen is reported by Check while calls are being short-circuited.
var ErrCircuitOpen = errors.New("emotion service circuit breaker is open")

// Check reports whether the client is currently willing to call the service.
func (c *Client) Check(context.Context) error {
	if c.breaker.State() == gobreaker.StateOpen {
		return ErrCircuitOpen
	}
	return nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}
