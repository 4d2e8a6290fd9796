// Package playerclient reports lesson playback to the learning API. A
// *Client is a progress.Reporter, so players drive it through a
// progress.ReportingSession.
package playerclient

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"lms/services/progress"

	"github.com/go-resty/resty/v2"
)

type Option func(*resty.Client)

// WithRetry retries transport failures and 5xx responses.
func WithRetry(count int, wait time.Duration) Option {
	return func(c *resty.Client) {
		c.SetRetryCount(count).
			SetRetryWaitTime(wait).
			SetRetryMaxWaitTime(4 * wait)
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *resty.Client) { c.SetTimeout(d) }
}

type Client struct {
	http *resty.Client
}

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// APIError is a non-2xx answer from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("learning api: %d %s", e.StatusCode, e.Message)
}

// Temporary reports whether resending the same report may succeed.
func (e *APIError) Temporary() bool { return e.StatusCode >= 500 }

func New(baseURL, token string, opts ...Option) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetAuthToken(token).
		SetHeader("Content-Type", "application/json").
		SetTimeout(10 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= 500
		})
	for _, opt := range opts {
		opt(c)
	}
	return &Client{http: c}
}

// ReportProgress posts a video progress report.
func (c *Client) ReportProgress(ctx context.Context, rep progress.Report) error {
	return c.post(ctx, "/enrollment/{enrollmentID}/lesson/{lessonID}/progress", rep.EnrollmentID, rep.LessonID,
		map[string]interface{}{
			"position":         rep.Position,
			"watched_percent":  rep.WatchedPercent,
			"time_spent_delta": rep.TimeSpentDelta,
		})
}

// Complete marks a non-video lesson done.
func (c *Client) Complete(ctx context.Context, enrollmentID, lessonID uint, timeSpentDelta int64) error {
	return c.post(ctx, "/enrollment/{enrollmentID}/lesson/{lessonID}/complete", enrollmentID, lessonID,
		map[string]interface{}{"time_spent_delta": timeSpentDelta})
}

// Resume fetches the position a player should seek to.
func (c *Client) Resume(ctx context.Context, enrollmentID, lessonID uint) (*progress.Resume, error) {
	var env envelope
	var failure envelope
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParams(ids(enrollmentID, lessonID)).
		SetResult(&env).
		SetError(&failure).
		Get("/enrollment/{enrollmentID}/lesson/{lessonID}/resume")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, &APIError{StatusCode: resp.StatusCode(), Message: failure.Message}
	}

	var resume progress.Resume
	if err := json.Unmarshal(env.Data, &resume); err != nil {
		return nil, fmt.Errorf("decode resume point: %w", err)
	}
	return &resume, nil
}

func (c *Client) post(ctx context.Context, path string, enrollmentID, lessonID uint, body interface{}) error {
	var failure envelope
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParams(ids(enrollmentID, lessonID)).
		SetBody(body).
		SetError(&failure).
		Post(path)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return &APIError{StatusCode: resp.StatusCode(), Message: failure.Message}
	}
	return nil
}

func ids(enrollmentID, lessonID uint) map[string]string {
	return map[string]string{
		"enrollmentID": strconv.FormatUint(uint64(enrollmentID), 10),
		"lessonID":     strconv.FormatUint(uint64(lessonID), 10),
	}
}
