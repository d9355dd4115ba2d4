package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const defaultTimeout = 30 * time.Second

// Client talks to the estate-chat service over HTTP. All methods return a
// typed payload or an *Error classified per the taxonomy in errors.go.
type Client struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
}

type ClientOption func(*Client)

// WithHTTPClient replaces the underlying http.Client, mostly for tests and
// custom transports.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// NewClient creates a client for the service rooted at baseURL. The
// /api/v1 prefix is appended by the client, not the caller.
func NewClient(baseURL string, options ...ClientOption) *Client {
	ret := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/") + "/api/v1",
		httpClient: &http.Client{Timeout: defaultTimeout},
		userAgent:  "estatechat-go",
	}

	for _, o := range options {
		o(ret)
	}

	return ret
}

type createSessionRequest struct {
	Language string `json:"language,omitempty"`
}

// CreateSession opens a new conversation session. An empty language lets the
// server pick its default.
func (c *Client) CreateSession(ctx context.Context, lang string) (*Session, error) {
	var session Session
	err := c.do(ctx, http.MethodPost, "/sessions", createSessionRequest{Language: lang}, &session)
	if err != nil {
		return nil, errors.Wrap(err, "create session")
	}
	return &session, nil
}

// GetSession fetches the current session record.
func (c *Client) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	var session Session
	err := c.do(ctx, http.MethodGet, "/sessions/"+url.PathEscape(sessionID), nil, &session)
	if err != nil {
		return nil, errors.Wrap(err, "get session")
	}
	return &session, nil
}

// DeleteSession ends a session server-side.
func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	err := c.do(ctx, http.MethodDelete, "/sessions/"+url.PathEscape(sessionID), nil, nil)
	return errors.Wrap(err, "delete session")
}

// FetchMessages returns the full authoritative message list for a session.
func (c *Client) FetchMessages(ctx context.Context, sessionID string) (*MessagesPage, error) {
	var page MessagesPage
	err := c.do(ctx, http.MethodGet, "/sessions/"+url.PathEscape(sessionID)+"/messages", nil, &page)
	if err != nil {
		return nil, errors.Wrap(err, "fetch messages")
	}
	return &page, nil
}

// SendMessage submits a user message and returns the assistant's reply with
// its derived annotations.
func (c *Client) SendMessage(ctx context.Context, sessionID, content, lang string) (*SendMessageResponse, error) {
	var resp SendMessageResponse
	req := SendMessageRequest{Message: content, Language: lang}
	err := c.do(ctx, http.MethodPost, "/sessions/"+url.PathEscape(sessionID)+"/messages", req, &resp)
	if err != nil {
		return nil, errors.Wrap(err, "send message")
	}
	return &resp, nil
}

// GetBrief fetches a property brief.
func (c *Client) GetBrief(ctx context.Context, briefID string) (*Brief, error) {
	var brief Brief
	err := c.do(ctx, http.MethodGet, "/briefs/"+url.PathEscape(briefID), nil, &brief)
	if err != nil {
		return nil, errors.Wrap(err, "get brief")
	}
	return &brief, nil
}

// UpdateBrief patches a brief with the non-nil fields of update.
func (c *Client) UpdateBrief(ctx context.Context, briefID string, update BriefUpdate) (*Brief, error) {
	var brief Brief
	err := c.do(ctx, http.MethodPatch, "/briefs/"+url.PathEscape(briefID), update, &brief)
	if err != nil {
		return nil, errors.Wrap(err, "update brief")
	}
	return &brief, nil
}

// SubmitBrief hands the brief over for agent follow-up.
func (c *Client) SubmitBrief(ctx context.Context, briefID string) (*Brief, error) {
	var brief Brief
	err := c.do(ctx, http.MethodPost, "/briefs/"+url.PathEscape(briefID)+"/submit", nil, &brief)
	if err != nil {
		return nil, errors.Wrap(err, "submit brief")
	}
	return &brief, nil
}

// SearchGlossary looks up real-estate terms matching query.
func (c *Client) SearchGlossary(ctx context.Context, query, lang string) (*GlossarySearchResult, error) {
	q := url.Values{}
	q.Set("query", query)
	if lang != "" {
		q.Set("language", lang)
	}
	var result GlossarySearchResult
	err := c.do(ctx, http.MethodGet, "/glossary/search?"+q.Encode(), nil, &result)
	if err != nil {
		return nil, errors.Wrap(err, "search glossary")
	}
	return &result, nil
}

// GetTerm fetches a single glossary entry.
func (c *Client) GetTerm(ctx context.Context, termID string) (*GlossaryTerm, error) {
	var term GlossaryTerm
	err := c.do(ctx, http.MethodGet, "/glossary/terms/"+url.PathEscape(termID), nil, &term)
	if err != nil {
		return nil, errors.Wrap(err, "get term")
	}
	return &term, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "marshal request")
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Debug().Str("method", method).Str("path", path).Err(err).Msg("request failed before response")
		return networkError(err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return networkError(err)
	}

	log.Trace().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("request complete")

	if resp.StatusCode >= http.StatusBadRequest {
		return statusError(resp.StatusCode, respBody)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return &Error{
			Status:  resp.StatusCode,
			Message: fmt.Sprintf("malformed response body: %v", err),
			cause:   err,
		}
	}

	return nil
}
