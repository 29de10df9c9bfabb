// Package practicum talks to the homework_statuses endpoint of the Practicum API.
package practicum

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

	"hwbot/internal/homework"
	logx "hwbot/pkg/logx"
)

const DefaultEndpoint = "https://practicum.yandex.ru/api/user_api/homework_statuses/"

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 1 << 20

// FetchError reports a transport failure or a non-200 response.
type FetchError struct {
	StatusCode int // 0 on transport failure
	Diagnostic string
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("сбой при запросе к эндпоинту: http %d: %s", e.StatusCode, e.Diagnostic)
	}
	if e.Err != nil {
		return fmt.Sprintf("сбой при запросе к эндпоинту: %s: %v", e.Diagnostic, e.Err)
	}
	return "сбой при запросе к эндпоинту: " + e.Diagnostic
}

func (e *FetchError) Unwrap() error { return e.Err }

type Config struct {
	Endpoint string
	Token    string
	// Timeout of 0 keeps the transport default (no client-side deadline).
	Timeout time.Duration
}

// Client fetches homework statuses. One request per call, no retries.
type Client struct {
	cfg  Config
	http *http.Client
	log  logx.Logger
}

func New(cfg Config, log logx.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("practicum token is empty")
	}
	if strings.TrimSpace(cfg.Endpoint) == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if _, err := url.Parse(cfg.Endpoint); err != nil {
		return nil, fmt.Errorf("practicum endpoint: %w", err)
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}, log: log}, nil
}

// Fetch requests statuses updated since the given unix timestamp and returns the
// decoded JSON body unmodified.
func (c *Client) Fetch(ctx context.Context, since int64) (map[string]any, error) {
	u, err := url.Parse(c.cfg.Endpoint)
	if err != nil {
		return nil, &FetchError{Diagnostic: "invalid endpoint", Err: err}
	}
	q := u.Query()
	q.Set("from_date", strconv.FormatInt(since, 10))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return nil, &FetchError{Diagnostic: "build request", Err: err}
	}
	req.Header.Set("Authorization", "OAuth "+strings.TrimSpace(c.cfg.Token))
	req.Header.Set("Accept", "application/json")

	c.log.Debug("requesting homework statuses", logx.String("endpoint", c.cfg.Endpoint), logx.Int64("from_date", since))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &FetchError{Diagnostic: "GET " + c.cfg.Endpoint, Err: err}
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &FetchError{StatusCode: resp.StatusCode, Diagnostic: "read body", Err: err}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{StatusCode: resp.StatusCode, Diagnostic: apiErrorDetail(b)}
	}

	var body map[string]any
	dec := json.NewDecoder(bytes.NewReader(b))
	if err := dec.Decode(&body); err != nil {
		return nil, &homework.InvalidResponseError{Reason: "тело ответа не является JSON-объектом", Err: err}
	}
	if body == nil {
		return nil, &homework.InvalidResponseError{Reason: "тело ответа пустое"}
	}
	return body, nil
}

// apiErrorDetail extracts "code"/"message" from an API error body, falling back to a trimmed snippet.
func apiErrorDetail(b []byte) string {
	var out struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(b, &out); err == nil && (out.Code != "" || out.Message != "") {
		switch {
		case out.Code != "" && out.Message != "":
			return fmt.Sprintf("%s (code=%s)", out.Message, out.Code)
		case out.Message != "":
			return out.Message
		default:
			return "code=" + out.Code
		}
	}
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		s = s[:197] + "..."
	}
	if s == "" {
		s = "empty body"
	}
	return s
}
