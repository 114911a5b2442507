package github

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGetFileFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/repos/octo/demo/contents/docs/streak.md", r.URL.Path)
		require.Equal(t, "main", r.URL.Query().Get("ref"))
		require.Equal(t, "token secret", r.Header.Get("Authorization"))
		require.Equal(t, "application/vnd.github.v3+json", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"path":"docs/streak.md","sha":"abc123","content":"aGVs\nbG8="}`))
	}))
	defer server.Close()

	client := &Client{BaseURL: server.URL, Token: "secret", HTTPClient: server.Client()}
	file, err := client.GetFile(context.Background(), "octo/demo", "docs/streak.md", "main")
	require.NoError(t, err)
	require.NotNil(t, file)
	require.Equal(t, "abc123", file.SHA)

	decoded, err := file.Decoded()
	require.NoError(t, err)
	require.Equal(t, "hello", string(decoded))
}

func TestGetFileMissing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := &Client{BaseURL: server.URL, HTTPClient: server.Client()}
	file, err := client.GetFile(context.Background(), "octo/demo", "README.md", "main")
	require.NoError(t, err)
	require.Nil(t, file)
}

func TestGetFileServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"message":"upstream"}`))
	}))
	defer server.Close()

	client := &Client{BaseURL: server.URL, HTTPClient: server.Client()}
	_, err := client.GetFile(context.Background(), "octo/demo", "README.md", "main")
	statusErr, ok := AsStatusError(err)
	require.True(t, ok)
	require.Equal(t, http.StatusBadGateway, statusErr.Status)
	require.Equal(t, "upstream", statusErr.Message)
}

func TestPutFile(t *testing.T) {
	var got PutFileRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"commit":{"sha":"deadbeef","html_url":"https://github.com/octo/demo/commit/deadbeef"}}`))
	}))
	defer server.Close()

	client := &Client{BaseURL: server.URL, HTTPClient: server.Client()}
	result, err := client.PutFile(context.Background(), "octo/demo", "README.md", PutFileRequest{
		Message: "docs: update README",
		Content: EncodeContent([]byte("hi")),
		SHA:     "abc",
		Branch:  "main",
	})
	require.NoError(t, err)
	require.Equal(t, "deadbeef", result.CommitSHA)
	require.Equal(t, "https://github.com/octo/demo/commit/deadbeef", result.HTMLURL)
	require.Equal(t, "abc", got.SHA)
	require.Equal(t, "main", got.Branch)
	require.Equal(t, "aGk=", got.Content)
}

func TestPutFileConflict(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "5")
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"message":"README.md does not match abc"}`))
	}))
	defer server.Close()

	client := &Client{BaseURL: server.URL, HTTPClient: server.Client()}
	_, err := client.PutFile(context.Background(), "octo/demo", "README.md", PutFileRequest{Message: "m", Content: "aGk="})
	statusErr, ok := AsStatusError(err)
	require.True(t, ok)
	require.True(t, statusErr.IsConflict())
	require.Equal(t, 5*time.Second, statusErr.RetryAfter)
}

func TestStatusErrorConflictClassification(t *testing.T) {
	tests := []struct {
		name string
		err  StatusError
		want bool
	}{
		{name: "conflict", err: StatusError{Status: http.StatusConflict}, want: true},
		{name: "stale sha", err: StatusError{Status: http.StatusUnprocessableEntity, Message: `"sha" wasn't supplied.`}, want: true},
		{name: "bad path", err: StatusError{Status: http.StatusUnprocessableEntity, Message: "Invalid request"}, want: false},
		{name: "forbidden", err: StatusError{Status: http.StatusForbidden}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.err.IsConflict())
		})
	}
}

func TestContentsURLRejectsBadRepo(t *testing.T) {
	client := &Client{}
	_, err := client.GetFile(context.Background(), "not-a-repo", "README.md", "")
	require.Error(t, err)
}

func TestStatusMessage(t *testing.T) {
	require.Contains(t, StatusMessage(http.StatusForbidden), `"repo"`)
	require.Contains(t, StatusMessage(http.StatusNotFound), "Check repository name")
	require.Contains(t, StatusMessage(418), "GitHub request failed")
}
