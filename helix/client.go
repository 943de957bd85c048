// Package helix is a minimal Twitch Helix client covering the chat roster and
// user lookup endpoints.
package helix

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/jrsteele09/go-chatter-roster/internal/errors"
	"github.com/pkg/errors"
	"golang.org/x/oauth2"
)

const (
	// PageSize is the largest chatters page Helix returns.
	PageSize = 100

	// MaxUsersPerLookup is the Helix limit on login filters per /users call.
	MaxUsersPerLookup = 100

	defaultTimeout = 30 * time.Second
)

// User is a Helix user record.
type User struct {
	ID          string `json:"id"`
	Login       string `json:"login"`
	DisplayName string `json:"display_name"`
}

// ChattersPage is one page of the chat roster.
type ChattersPage struct {
	Total  int
	Cursor string
	Logins []string
}

// APIError is a non-2xx Helix response.
type APIError struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Err     string `json:"error"`
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Err
	}
	return fmt.Sprintf("helix: status %d: %s", e.Status, msg)
}

func (e *APIError) Unwrap() error {
	return apperrors.ErrUnexpectedStatus
}

// Client calls Helix with the bearer token supplied by a TokenSource and the
// Client-Id header Twitch requires alongside it.
type Client struct {
	httpClient *http.Client
	baseURL    string
	clientID   string
}

// ClientOption configures a Client.
type ClientOption func(*clientOptions)

type clientOptions struct {
	base    http.RoundTripper
	timeout time.Duration
}

// WithTransport sets the transport underneath the OAuth2 bearer transport.
func WithTransport(rt http.RoundTripper) ClientOption {
	return func(o *clientOptions) {
		o.base = rt
	}
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(o *clientOptions) {
		o.timeout = d
	}
}

// NewClient creates a Helix client. The token source is consulted on every
// request, so a refreshed access token is picked up without rebuilding the client.
func NewClient(baseURL, clientID string, ts oauth2.TokenSource, opts ...ClientOption) *Client {
	o := clientOptions{timeout: defaultTimeout}
	for _, opt := range opts {
		opt(&o)
	}

	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		clientID: clientID,
		httpClient: &http.Client{
			Timeout:   o.timeout,
			Transport: &oauth2.Transport{Source: ts, Base: o.base},
		},
	}
}

// Chatters fetches one page of the chat roster for broadcasterID as seen by
// moderatorID. An empty after starts from the first page.
func (c *Client) Chatters(ctx context.Context, broadcasterID, moderatorID, after string) (*ChattersPage, error) {
	q := url.Values{}
	q.Set("broadcaster_id", broadcasterID)
	q.Set("moderator_id", moderatorID)
	q.Set("first", strconv.Itoa(PageSize))
	if after != "" {
		q.Set("after", after)
	}

	var resp struct {
		Data []struct {
			UserID    string `json:"user_id"`
			UserLogin string `json:"user_login"`
			UserName  string `json:"user_name"`
		} `json:"data"`
		Pagination struct {
			Cursor string `json:"cursor"`
		} `json:"pagination"`
		Total int `json:"total"`
	}
	if err := c.get(ctx, "/chat/chatters", q, &resp); err != nil {
		return nil, errors.Wrap(err, "Client.Chatters")
	}

	page := &ChattersPage{
		Total:  resp.Total,
		Cursor: resp.Pagination.Cursor,
		Logins: make([]string, 0, len(resp.Data)),
	}
	for _, d := range resp.Data {
		page.Logins = append(page.Logins, d.UserLogin)
	}
	return page, nil
}

// UsersByLogin looks up at most MaxUsersPerLookup users. Unknown logins are
// silently absent from the result.
func (c *Client) UsersByLogin(ctx context.Context, logins []string) ([]User, error) {
	if len(logins) == 0 {
		return nil, nil
	}
	if len(logins) > MaxUsersPerLookup {
		return nil, errors.Errorf("Client.UsersByLogin: %d logins exceeds limit of %d", len(logins), MaxUsersPerLookup)
	}

	q := url.Values{}
	for _, l := range logins {
		q.Add("login", l)
	}

	users, err := c.users(ctx, q)
	if err != nil {
		return nil, errors.Wrap(err, "Client.UsersByLogin")
	}
	return users, nil
}

// CurrentUser returns the user that owns the access token.
func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	users, err := c.users(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "Client.CurrentUser")
	}
	if len(users) == 0 {
		return nil, errors.Wrap(apperrors.ErrEmptyResponse, "Client.CurrentUser")
	}
	return &users[0], nil
}

func (c *Client) users(ctx context.Context, q url.Values) ([]User, error) {
	var resp struct {
		Data []User `json:"data"`
	}
	if err := c.get(ctx, "/users", q, &resp); err != nil {
		return nil, err
	}
	return resp.Data, nil
}

func (c *Client) get(ctx context.Context, path string, q url.Values, result any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Client-Id", c.clientID)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "request failed")
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "failed to read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{}
		if jsonErr := json.Unmarshal(body, apiErr); jsonErr != nil || (apiErr.Message == "" && apiErr.Err == "") {
			apiErr.Message = strings.TrimSpace(string(body))
		}
		apiErr.Status = resp.StatusCode
		return apiErr
	}

	if err := json.Unmarshal(body, result); err != nil {
		return errors.Wrap(err, "failed to decode response")
	}
	return nil
}
