package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is the public GitHub REST endpoint.
	DefaultBaseURL = "https://api.github.com"

	// DefaultTimeout bounds a single request.
	DefaultTimeout = 20 * time.Second

	acceptHeader = "application/vnd.github.v3+json"
)

// Client talks to the repository contents API.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	UserAgent  string
}

// File is the current state of a repository file.
type File struct {
	Path    string `json:"path"`
	SHA     string `json:"sha"`
	Size    int    `json:"size"`
	Content string `json:"content"`
	HTMLURL string `json:"html_url"`
}

// Decoded returns the file body decoded from its transport encoding.
func (f *File) Decoded() ([]byte, error) {
	if f == nil {
		return nil, nil
	}
	return DecodeContent(f.Content)
}

// PutFileRequest is the body of a contents write.
type PutFileRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	SHA     string `json:"sha,omitempty"`
	Branch  string `json:"branch,omitempty"`
}

// PutFileResult identifies the revision produced by a write.
type PutFileResult struct {
	CommitSHA string
	HTMLURL   string
}

// NewClient builds a client for token against the default endpoint.
func NewClient(token string) *Client {
	return &Client{
		BaseURL:    DefaultBaseURL,
		Token:      token,
		HTTPClient: &http.Client{Timeout: DefaultTimeout},
	}
}

// GetFile fetches path at ref. A missing file returns (nil, nil).
func (c *Client) GetFile(ctx context.Context, repo, path, ref string) (*File, error) {
	endpoint, err := c.contentsURL(repo, path)
	if err != nil {
		return nil, err
	}
	if ref = strings.TrimSpace(ref); ref != "" {
		endpoint += "?" + url.Values{"ref": []string{ref}}.Encode()
	}

	req, err := c.newRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, newStatusError(resp)
	}

	var file File
	if err := json.NewDecoder(resp.Body).Decode(&file); err != nil {
		return nil, fmt.Errorf("decode contents response: %w", err)
	}
	return &file, nil
}

// PutFile creates or updates path with the already encoded content.
func (c *Client) PutFile(ctx context.Context, repo, path string, body PutFileRequest) (*PutFileResult, error) {
	endpoint, err := c.contentsURL(repo, path)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode contents request: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPut, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, newStatusError(resp)
	}

	var result struct {
		Commit struct {
			SHA     string `json:"sha"`
			HTMLURL string `json:"html_url"`
		} `json:"commit"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode contents response: %w", err)
	}

	return &PutFileResult{CommitSHA: result.Commit.SHA, HTMLURL: result.Commit.HTMLURL}, nil
}

func (c *Client) contentsURL(repo, path string) (string, error) {
	owner, name, ok := SplitRepo(repo)
	if !ok {
		return "", fmt.Errorf("repository must be owner/name, got %q", repo)
	}
	path = strings.Trim(strings.TrimSpace(path), "/")
	if path == "" {
		return "", errors.New("path is required")
	}

	segments := strings.Split(path, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}

	base := strings.TrimRight(c.baseURL(), "/")
	return fmt.Sprintf("%s/repos/%s/%s/contents/%s", base, url.PathEscape(owner), url.PathEscape(name), strings.Join(segments, "/")), nil
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", acceptHeader)
	if token := strings.TrimSpace(c.Token); token != "" {
		req.Header.Set("Authorization", "token "+token)
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	return req, nil
}

func (c *Client) baseURL() string {
	if c != nil && strings.TrimSpace(c.BaseURL) != "" {
		return c.BaseURL
	}
	return DefaultBaseURL
}

func (c *Client) httpClient() *http.Client {
	if c != nil && c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: DefaultTimeout}
}

// SplitRepo splits "owner/name" into its parts.
func SplitRepo(repo string) (owner, name string, ok bool) {
	owner, name, found := strings.Cut(strings.TrimSpace(repo), "/")
	if !found || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", false
	}
	return owner, name, true
}
