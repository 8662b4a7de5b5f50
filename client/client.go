// Package client talks to the Agenda action endpoint on behalf of a single user.
//
// A Client keeps the assignments of its last listing in a read-through cache.
// Every mutating call invalidates it and refetches the last filter, so the
// server always stays the source of truth.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/agenda/core/homework"
)

const actionPath = "/v1/homework"

// Error is a non 2xx response of the API.
// Fields is set for validation errors, Message otherwise.
type Error struct {
	StatusCode int
	Message    string
	Fields     map[string]string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("agenda: %d %s", e.StatusCode, e.Message)
	}
	flds := make([]string, 0, len(e.Fields))
	for fld, msg := range e.Fields {
		flds = append(flds, fld+": "+msg)
	}
	sort.Strings(flds)
	return fmt.Sprintf("agenda: %d %s", e.StatusCode, strings.Join(flds, ", "))
}

// IsNotFound reports whether err is a 404 response.
func IsNotFound(err error) bool {
	e, ok := errors.Cause(err).(*Error)
	return ok && e.StatusCode == http.StatusNotFound
}

type Option func(*Client)

// WithToken authenticates every request with a JWT, as required in session mode.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

type Client struct {
	baseURL string
	userID  string
	token   string
	http    *http.Client

	mu       sync.Mutex
	filter   *homework.QueryFilter // last fetched filter
	cached   []homework.Assignment
	cacheKey string
}

// New returns a client acting as userID against the API at baseURL.
func New(baseURL, userID string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		userID:  userID,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type listResponse struct {
	Assignments []homework.Assignment `json:"assignments"`
	UserID      string                `json:"user_id"`
}

// List returns the assignments selected by filter, from the cache when filter is the last one fetched.
func (c *Client) List(ctx context.Context, filter homework.QueryFilter) ([]homework.Assignment, error) {
	filter.Clean()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.filter != nil && c.cacheKey == filter.Key() {
		return copyAssignments(c.cached), nil
	}
	return c.fetch(ctx, filter)
}

// Cached returns the assignments of the last listing, if any.
func (c *Client) Cached() ([]homework.Assignment, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.filter == nil {
		return nil, false
	}
	return copyAssignments(c.cached), true
}

// Invalidate drops the cache; the next List hits the server.
func (c *Client) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filter, c.cached, c.cacheKey = nil, nil, ""
}

// fetch lists filter from the server and caches the result. c.mu must be held.
func (c *Client) fetch(ctx context.Context, filter homework.QueryFilter) ([]homework.Assignment, error) {
	body := struct {
		homework.QueryFilter
		Action string `json:"action"`
		UserID string `json:"user_id"`
	}{filter, "list_assignments", c.userID}

	var resp listResponse
	if err := c.do(ctx, body, &resp); err != nil {
		return nil, errors.Wrap(err, "listing assignments")
	}
	if resp.Assignments == nil {
		resp.Assignments = []homework.Assignment{}
	}
	c.filter, c.cached, c.cacheKey = &filter, resp.Assignments, filter.Key()
	return copyAssignments(c.cached), nil
}

// copyAssignments deep copies as so callers cannot alter the cache.
func copyAssignments(as []homework.Assignment) []homework.Assignment {
	res := make([]homework.Assignment, len(as))
	for i, a := range as {
		a.Tasks = append([]homework.Task(nil), a.Tasks...)
		res[i] = a
	}
	return res
}

// refresh invalidates the cache then refetches the last filter, if there was one.
// It runs after every mutation, whether it succeeded or not.
func (c *Client) refresh(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	last := c.filter
	c.filter, c.cached, c.cacheKey = nil, nil, ""
	if last == nil {
		return nil
	}
	_, err := c.fetch(ctx, *last)
	return err
}

// mutate sends a mutating action then refreshes the cache.
// The action error wins over the refresh one.
func (c *Client) mutate(ctx context.Context, body, dest interface{}) error {
	err := c.do(ctx, body, dest)
	if rErr := c.refresh(ctx); err == nil && rErr != nil {
		return errors.Wrap(rErr, "refreshing assignments")
	}
	return err
}

// Create creates an assignment & its tasks and returns its id.
func (c *Client) Create(ctx context.Context, na homework.NewAssignment) (int64, error) {
	body := struct {
		homework.NewAssignment
		Action string `json:"action"`
		UserID string `json:"user_id"`
	}{na, "create_assignment", c.userID}

	var resp struct {
		ID int64 `json:"id"`
	}
	if err := c.mutate(ctx, body, &resp); err != nil {
		return 0, errors.Wrap(err, "creating assignment")
	}
	return resp.ID, nil
}

// Update replaces the fields & task list of assignment id.
func (c *Client) Update(ctx context.Context, id int64, ua homework.UpdateAssignment) error {
	body := struct {
		homework.UpdateAssignment
		Action string `json:"action"`
		ID     int64  `json:"id"`
	}{ua, "update_assignment", id}

	if err := c.mutate(ctx, body, nil); err != nil {
		return errors.Wrap(err, "updating assignment")
	}
	return nil
}

// Delete deletes assignment id with its tasks.
func (c *Client) Delete(ctx context.Context, id int64) error {
	body := struct {
		Action string `json:"action"`
		ID     int64  `json:"id"`
	}{"delete_assignment", id}

	if err := c.mutate(ctx, body, nil); err != nil {
		return errors.Wrap(err, "deleting assignment")
	}
	return nil
}

// Toggle sets the completion of task taskID for the client's user.
func (c *Client) Toggle(ctx context.Context, taskID int64, isCompleted bool) (homework.CompletionMark, error) {
	body := struct {
		Action      string `json:"action"`
		UserID      string `json:"user_id"`
		TaskID      int64  `json:"task_id"`
		IsCompleted bool   `json:"is_completed"`
	}{"toggle_task", c.userID, taskID, isCompleted}

	var mark homework.CompletionMark
	if err := c.mutate(ctx, body, &mark); err != nil {
		return homework.CompletionMark{}, errors.Wrap(err, "toggling task")
	}
	mark.UserID = c.userID
	return mark, nil
}

// do posts body to the action endpoint and decodes a successful response into dest (when not nil).
func (c *Client) do(ctx context.Context, body, dest interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return errors.Wrap(err, "encoding request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+actionPath, bytes.NewReader(data))
	if err != nil {
		return errors.Wrap(err, "building request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "sending request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if dest == nil {
		return nil
	}
	if err = json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return errors.Wrap(err, "decoding response")
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &Error{StatusCode: resp.StatusCode}

	var payload map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		apiErr.Message = http.StatusText(resp.StatusCode)
		return apiErr
	}
	if msg, ok := payload["error"]; ok && len(payload) == 1 {
		apiErr.Message = msg
	} else {
		apiErr.Fields = payload
	}
	return apiErr
}
