package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/inacomp/submission-judge/internal/logger"
	"github.com/inacomp/submission-judge/internal/types"
)

const (
	DefaultPollInterval = time.Second
	authHeader          = "X-Auth-Token"
	// Upper bound on a judge response body
	maxResponseBytes = 16 << 20
)

// Ensure HTTPClient implements Client interface.
var _ Client = (*HTTPClient)(nil)

type HTTPClient struct {
	client       *http.Client
	baseURL      string
	authToken    string
	pollInterval time.Duration

	submissions  metric.Int64Counter
	pollAttempts metric.Int64Counter
}

type Option func(*HTTPClient)

func WithAuthToken(token string) Option {
	return func(c *HTTPClient) {
		c.authToken = token
	}
}

func WithPollInterval(interval time.Duration) Option {
	return func(c *HTTPClient) {
		if interval > 0 {
			c.pollInterval = interval
		}
	}
}

func NewHTTPClient(client *http.Client, baseURL string, opts ...Option) (*HTTPClient, error) {
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid judge url: %w", err)
	}

	submissions, err := meter.Int64Counter(
		"judge.submissions",
		metric.WithDescription("Programs submitted to the judge"),
	)
	if err != nil {
		return nil, err
	}
	pollAttempts, err := meter.Int64Counter(
		"judge.poll.attempts",
		metric.WithDescription("Result polls sent to the judge"),
	)
	if err != nil {
		return nil, err
	}

	c := &HTTPClient{
		client:       client,
		baseURL:      strings.TrimRight(baseURL, "/"),
		pollInterval: DefaultPollInterval,
		submissions:  submissions,
		pollAttempts: pollAttempts,
	}
	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

type submissionRequest struct {
	SourceCode string `json:"source_code"`
	LanguageID int    `json:"language_id"`
	Stdin      string `json:"stdin"`
}

type submissionResponse struct {
	Token string `json:"token"`
}

type resultResponse struct {
	Stdout        *string `json:"stdout"`
	Stderr        *string `json:"stderr"`
	CompileOutput *string `json:"compile_output"`
	Time          *string `json:"time"`
	Memory        *int    `json:"memory"`
	Status        *struct {
		ID          int    `json:"id"`
		Description string `json:"description"`
	} `json:"status"`
}

func (c *HTTPClient) Submit(ctx context.Context, program string, languageID string) (string, error) {
	ctx, span := tracer.Start(ctx, "HTTPClient.Submit", trace.WithAttributes(
		attribute.String("language.id", languageID),
		attribute.Int("program.bytes", len(program)),
	))
	defer span.End()

	id, err := strconv.Atoi(strings.TrimSpace(languageID))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid language id")
		return "", fmt.Errorf("invalid language id %q: %w", languageID, err)
	}

	body, err := json.Marshal(submissionRequest{
		SourceCode: program,
		LanguageID: id,
		Stdin:      "",
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to encode submission")
		return "", err
	}

	var resp submissionResponse
	err = c.do(ctx, http.MethodPost, "/submissions/?base64_encoded=false&wait=false", body, &resp)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to submit program")
		return "", err
	}

	if resp.Token == "" {
		err = fmt.Errorf("%w: empty submission token", ErrMalformedResponse)
		span.RecordError(err)
		span.SetStatus(codes.Error, "judge returned no token")
		return "", err
	}

	c.submissions.Add(ctx, 1, metric.WithAttributes(attribute.String("language.id", languageID)))
	span.SetAttributes(attribute.String("judge.token", resp.Token))

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "submitted program")
	return resp.Token, nil
}

func (c *HTTPClient) AwaitResult(ctx context.Context, token string) (*types.ExecutionOutcome, error) {
	ctx, span := tracer.Start(ctx, "HTTPClient.AwaitResult", trace.WithAttributes(
		attribute.String("judge.token", token),
	))
	defer span.End()

	for attempt := 1; ; attempt++ {
		outcome, err := c.result(ctx, token)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to fetch result")
			return nil, err
		}
		c.pollAttempts.Add(ctx, 1)

		if outcome.Status.Terminal() {
			span.SetAttributes(
				attribute.Int("judge.attempts", attempt),
				attribute.String("judge.status", string(outcome.Status)),
			)
			span.RecordError(nil)
			span.SetStatus(codes.Ok, "judge reached terminal status")
			return outcome, nil
		}

		logger.Logger.DebugContext(ctx, "judge submission pending",
			"token", token,
			"status", outcome.Status,
			"attempt", attempt,
		)

		timer := time.NewTimer(c.pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			err := ctx.Err()
			span.RecordError(err)
			span.SetStatus(codes.Error, "stopped waiting for judge")
			return nil, err
		case <-timer.C:
		}
	}
}

func (c *HTTPClient) result(ctx context.Context, token string) (*types.ExecutionOutcome, error) {
	var resp resultResponse
	path := "/submissions/" + url.PathEscape(token) + "?base64_encoded=false"
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}

	return resp.outcome()
}

func (r *resultResponse) outcome() (*types.ExecutionOutcome, error) {
	if r.Status == nil {
		return nil, fmt.Errorf("%w: missing status", ErrMalformedResponse)
	}

	outcome := &types.ExecutionOutcome{
		Status:        StatusFromID(r.Status.ID),
		StatusID:      r.Status.ID,
		Description:   r.Status.Description,
		Stdout:        trimmed(r.Stdout),
		Stderr:        trimmed(r.Stderr),
		CompileOutput: trimmed(r.CompileOutput),
	}

	if r.Time != nil && *r.Time != "" {
		seconds, err := strconv.ParseFloat(*r.Time, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid time %q", ErrMalformedResponse, *r.Time)
		}
		outcome.Time = seconds
	}
	if r.Memory != nil {
		outcome.Memory = *r.Memory
	}

	return outcome, nil
}

func trimmed(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.authToken != "" {
		req.Header.Set(authHeader, c.authToken)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("judge request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("failed to read judge response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: status code %d", ErrMalformedResponse, resp.StatusCode)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	return nil
}
