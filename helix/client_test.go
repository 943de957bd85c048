package helix_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jrsteele09/go-chatter-roster/helix"
	apperrors "github.com/jrsteele09/go-chatter-roster/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

const (
	testClientID = "client-123"
	testToken    = "token-abc"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *helix.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: testToken, TokenType: "Bearer"})
	return helix.NewClient(srv.URL+"/", testClientID, ts)
}

func assertAuthHeaders(t *testing.T, r *http.Request) {
	t.Helper()
	assert.Equal(t, "Bearer "+testToken, r.Header.Get("Authorization"))
	assert.Equal(t, testClientID, r.Header.Get("Client-Id"))
}

func TestClient_Chatters(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assertAuthHeaders(t, r)
		assert.Equal(t, "/chat/chatters", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "b1", q.Get("broadcaster_id"))
		assert.Equal(t, "m1", q.Get("moderator_id"))
		assert.Equal(t, "100", q.Get("first"))

		if q.Get("after") == "" {
			fmt.Fprint(w, `{"data":[{"user_id":"1","user_login":"alice","user_name":"Alice"},{"user_id":"2","user_login":"bob","user_name":"Bob"}],"pagination":{"cursor":"next-1"},"total":3}`)
			return
		}
		assert.Equal(t, "next-1", q.Get("after"))
		fmt.Fprint(w, `{"data":[{"user_id":"3","user_login":"carol","user_name":"Carol"}],"pagination":{},"total":3}`)
	})

	page, err := c.Chatters(context.Background(), "b1", "m1", "")
	require.NoError(t, err)
	require.Equal(t, 3, page.Total)
	require.Equal(t, "next-1", page.Cursor)
	require.Equal(t, []string{"alice", "bob"}, page.Logins)

	page, err = c.Chatters(context.Background(), "b1", "m1", "next-1")
	require.NoError(t, err)
	require.Empty(t, page.Cursor)
	require.Equal(t, []string{"carol"}, page.Logins)
}

func TestClient_UsersByLogin(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assertAuthHeaders(t, r)
		assert.Equal(t, "/users", r.URL.Path)
		assert.Equal(t, []string{"alice", "ghost"}, r.URL.Query()["login"])
		fmt.Fprint(w, `{"data":[{"id":"1","login":"alice","display_name":"Alice"}]}`)
	})

	users, err := c.UsersByLogin(context.Background(), []string{"alice", "ghost"})
	require.NoError(t, err)
	require.Equal(t, []helix.User{{ID: "1", Login: "alice", DisplayName: "Alice"}}, users)

	t.Run("empty input makes no call", func(t *testing.T) {
		users, err := c.UsersByLogin(context.Background(), nil)
		require.NoError(t, err)
		require.Nil(t, users)
	})

	t.Run("over the lookup limit", func(t *testing.T) {
		_, err := c.UsersByLogin(context.Background(), make([]string, helix.MaxUsersPerLookup+1))
		require.Error(t, err)
		require.Contains(t, err.Error(), "exceeds limit")
	})
}

func TestClient_CurrentUser(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Empty(t, r.URL.RawQuery)
			fmt.Fprint(w, `{"data":[{"id":"777","login":"streamer","display_name":"Streamer"}]}`)
		})
		u, err := c.CurrentUser(context.Background())
		require.NoError(t, err)
		require.Equal(t, "777", u.ID)
	})

	t.Run("empty data", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"data":[]}`)
		})
		_, err := c.CurrentUser(context.Background())
		require.ErrorIs(t, err, apperrors.ErrEmptyResponse)
	})
}

func TestClient_ErrorStatus(t *testing.T) {
	t.Run("json error body", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"error":"Unauthorized","status":401,"message":"Invalid OAuth token"}`)
		})

		_, err := c.Chatters(context.Background(), "b", "m", "")
		require.ErrorIs(t, err, apperrors.ErrUnexpectedStatus)

		var apiErr *helix.APIError
		require.True(t, errors.As(err, &apiErr))
		require.Equal(t, http.StatusUnauthorized, apiErr.Status)
		require.Contains(t, err.Error(), "Invalid OAuth token")
	})

	t.Run("plain text body", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "upstream unavailable", http.StatusBadGateway)
		})

		_, err := c.UsersByLogin(context.Background(), []string{"a"})
		var apiErr *helix.APIError
		require.True(t, errors.As(err, &apiErr))
		require.Equal(t, http.StatusBadGateway, apiErr.Status)
		require.Equal(t, "upstream unavailable", apiErr.Message)
	})

	t.Run("malformed success body", func(t *testing.T) {
		c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"data":`)
		})
		_, err := c.CurrentUser(context.Background())
		require.Error(t, err)
		require.Contains(t, err.Error(), "failed to decode response")
	})
}

func TestClient_TokenSourceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request must not reach the server without a token")
	}))
	defer srv.Close()

	c := helix.NewClient(srv.URL, testClientID, failingSource{})
	_, err := c.CurrentUser(context.Background())
	require.ErrorIs(t, err, apperrors.ErrNotAuthorized)
}

type failingSource struct{}

func (failingSource) Token() (*oauth2.Token, error) {
	return nil, apperrors.ErrNotAuthorized
}
