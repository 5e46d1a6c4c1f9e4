// client/client.go
package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"twig/internal/branch"
	twigerrors "twig/internal/errors"
	"twig/internal/graph"
	"twig/internal/object"
	"twig/internal/repo"

	"github.com/klauspost/compress/zstd"
)

// Client reads a repository through a running `twig serve`.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: time.Second * 10,
		},
	}
}

// get decodes a JSON response into out. Error bodies produced by the
// server's error taxonomy come back as *twigerrors.Error.
func (c *Client) get(path string, out interface{}) error {
	req, err := http.NewRequest(http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept-Encoding", "zstd")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("requesting %s: %w", path, err)
	}
	defer resp.Body.Close()

	var body io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "zstd" {
		dec, err := zstd.NewReader(resp.Body, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return fmt.Errorf("creating decoder: %w", err)
		}
		defer dec.Close()
		body = dec
	}

	if resp.StatusCode != http.StatusOK {
		var e twigerrors.Error
		if resp.Header.Get("Content-Type") == "application/json" &&
			json.NewDecoder(body).Decode(&e) == nil && e.Type != "" {
			return &e
		}
		return fmt.Errorf("unexpected status: %s", resp.Status)
	}

	if err := json.NewDecoder(body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}

func (c *Client) Health() error {
	var body map[string]string
	if err := c.get("/health", &body); err != nil {
		return err
	}
	if body["status"] != "healthy" {
		return fmt.Errorf("server reported %q", body["status"])
	}
	return nil
}

func (c *Client) ListBranches() ([]*branch.Branch, error) {
	var branches []*branch.Branch
	if err := c.get("/api/branches", &branches); err != nil {
		return nil, err
	}
	return branches, nil
}

func (c *Client) Log() ([]graph.LogEntry, error) {
	var entries []graph.LogEntry
	if err := c.get("/api/log", &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// ResolveCommit fetches a commit by full or abbreviated id.
func (c *Client) ResolveCommit(id string) (*object.Commit, error) {
	var commit object.Commit
	if err := c.get("/api/commits/"+url.PathEscape(id), &commit); err != nil {
		return nil, err
	}
	return &commit, nil
}

func (c *Client) Status() (*repo.Status, error) {
	var st repo.Status
	if err := c.get("/api/status", &st); err != nil {
		return nil, err
	}
	return &st, nil
}
