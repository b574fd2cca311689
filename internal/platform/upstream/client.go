// Package upstream talks to the hospital backend that owns patients, bills,
// appointments and reassignment billing requests.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ehr/console/pkg/consolemodels"
)

var (
	// ErrUnavailable means the backend could not be reached or failed.
	ErrUnavailable = errors.New("hospital backend unavailable")
	// ErrNotFound means the backend answered 404.
	ErrNotFound = errors.New("not found in hospital backend")
)

// StatusError carries a non-2xx answer. It unwraps to ErrNotFound for 404
// and ErrUnavailable for 5xx.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: backend returned status %d", e.Method, e.Path, e.Code)
}

func (e *StatusError) Unwrap() error {
	switch {
	case e.Code == http.StatusNotFound:
		return ErrNotFound
	case e.Code >= 500:
		return ErrUnavailable
	}
	return nil
}

// PatientQuery narrows the patient list. Zero values are not sent.
type PatientQuery struct {
	DoctorID          string
	SuperconsultantID string
	CenterID          string
	From              time.Time
	To                time.Time
}

// RequestQuery narrows the reassignment billing request list.
type RequestQuery struct {
	Status   string
	DoctorID string
}

// Config configures a Client.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Client is a JSON client for the hospital backend.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     zerolog.Logger
	tracer     trace.Tracer
}

func NewClient(cfg Config, logger zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With().Str("component", "upstream").Logger(),
		tracer:     otel.Tracer("github.com/ehr/console/internal/platform/upstream"),
	}
}

func (c *Client) ListPatients(ctx context.Context, q PatientQuery) ([]consolemodels.Patient, error) {
	params := url.Values{}
	setParam(params, "doctorId", q.DoctorID)
	setParam(params, "superconsultantId", q.SuperconsultantID)
	setParam(params, "centerId", q.CenterID)
	setTime(params, "from", q.From)
	setTime(params, "to", q.To)

	var out []consolemodels.Patient
	if err := c.getList(ctx, "/patients", params, "patients", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetPatient(ctx context.Context, id string) (*consolemodels.Patient, error) {
	var out consolemodels.Patient
	if err := c.getOne(ctx, "/patients/"+url.PathEscape(id), "patient", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListBillingRequests(ctx context.Context, q RequestQuery) ([]consolemodels.BillingRequest, error) {
	params := url.Values{}
	setParam(params, "status", q.Status)
	setParam(params, "doctorId", q.DoctorID)

	var out []consolemodels.BillingRequest
	if err := c.getList(ctx, "/reassignment-billing-requests", params, "requests", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Ping checks the backend's health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/health", nil)
	return err
}

// getList decodes a list answered either as a bare array or wrapped in an
// envelope under "data" or key.
func (c *Client) getList(ctx context.Context, path string, params url.Values, key string, out interface{}) error {
	if len(params) > 0 {
		path += "?" + params.Encode()
	}
	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	raw := unwrap(body, key, '[')
	if raw == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) getOne(ctx context.Context, path, key string, out interface{}) error {
	body, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	raw := unwrap(body, key, '{')
	if raw == nil {
		return fmt.Errorf("GET %s: %w", path, ErrNotFound)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func unwrap(body []byte, key string, want byte) json.RawMessage {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return nil
	}
	if body[0] == want && want == '[' {
		return body
	}
	if body[0] != '{' {
		return nil
	}
	var env map[string]json.RawMessage
	if err := json.Unmarshal(body, &env); err != nil {
		return nil
	}
	for _, k := range []string{"data", key} {
		if v, ok := env[k]; ok {
			v = bytes.TrimSpace(v)
			if len(v) > 0 && v[0] == want {
				return v
			}
		}
	}
	if want == '{' {
		return body
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, payload io.Reader) ([]byte, error) {
	ctx, span := c.tracer.Start(ctx, "upstream "+method+" "+spanPath(path), trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", method),
		attribute.String("http.url", c.baseURL+path),
	)

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		c.logger.Warn().Err(err).Str("method", method).Str("path", path).Msg("backend request failed")
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%s %s: %w: %v", method, path, ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("backend request")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read body")
		return nil, fmt.Errorf("%s %s: read body: %w: %v", method, path, ErrUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		serr := &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: snippet(body)}
		span.SetStatus(codes.Error, "status "+strconv.Itoa(resp.StatusCode))
		if resp.StatusCode >= 500 {
			c.logger.Warn().Int("status", resp.StatusCode).Str("path", path).Msg("backend error")
		}
		return nil, serr
	}
	return body, nil
}

func spanPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if strings.HasPrefix(path, "/patients/") {
		return "/patients/{id}"
	}
	return path
}

func snippet(b []byte) string {
	const max = 256
	s := strings.TrimSpace(string(b))
	if len(s) > max {
		return s[:max]
	}
	return s
}

func setParam(v url.Values, key, val string) {
	if val != "" {
		v.Set(key, val)
	}
}

func setTime(v url.Values, key string, t time.Time) {
	if !t.IsZero() {
		v.Set(key, t.UTC().Format(time.RFC3339))
	}
}
