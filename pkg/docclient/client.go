// Package docclient is an HTTP client for the document service. The
// dialogue actions and the ragctl CLI reach the knowledge base through it.
package docclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/yassine-youcefi/rasa-rag-chatbot/engine/domain"
)

const DefaultTimeout = 30 * time.Second

// APIError is a non-2xx reply from the document service.
type APIError struct {
	Code   int
	Detail string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("docclient: status %d: %s", e.Code, e.Detail)
}

// Is lets a 404 match domain.ErrNotFound.
func (e *APIError) Is(target error) bool {
	return target == domain.ErrNotFound && e.Code == http.StatusNotFound
}

// Client talks to the document service at BaseURL.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client. A zero timeout means DefaultTimeout.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the service root the client targets.
func (c *Client) BaseURL() string { return c.baseURL }

// Search returns up to k hits for query, best first. It satisfies
// rag.Searcher so the orchestrator can run against a remote service.
func (c *Client) Search(ctx context.Context, query string, k int) ([]domain.SearchHit, error) {
	q := url.Values{"query": {query}, "max_results": {strconv.Itoa(k)}}
	var out SearchResponse
	if err := c.do(ctx, http.MethodGet, "/search?"+q.Encode(), nil, "", &out); err != nil {
		return nil, err
	}
	hits := make([]domain.SearchHit, len(out.Results))
	for i, r := range out.Results {
		hits[i] = r.Hit()
	}
	return hits, nil
}

func (c *Client) List(ctx context.Context) ([]DocumentInfo, error) {
	var out DocumentsResponse
	if err := c.do(ctx, http.MethodGet, "/documents", nil, "", &out); err != nil {
		return nil, err
	}
	if out.Documents == nil {
		out.Documents = []DocumentInfo{}
	}
	return out.Documents, nil
}

// Status returns the full record of one document.
func (c *Client) Status(ctx context.Context, id string) (domain.Document, error) {
	var out domain.Document
	err := c.do(ctx, http.MethodGet, "/status/"+url.PathEscape(id), nil, "", &out)
	return out, err
}

func (c *Client) Delete(ctx context.Context, id string) (string, error) {
	var out MessageResponse
	err := c.do(ctx, http.MethodDelete, "/documents/"+url.PathEscape(id), nil, "", &out)
	return out.Message, err
}

// Clear removes every document from the knowledge base.
func (c *Client) Clear(ctx context.Context) (string, error) {
	var out MessageResponse
	err := c.do(ctx, http.MethodDelete, "/documents", nil, "", &out)
	return out.Message, err
}

// Upload sends the file at path as a multipart upload.
func (c *Client) Upload(ctx context.Context, path string) (UploadResponse, error) {
	f, err := os.Open(path)
	if err != nil {
		return UploadResponse{}, fmt.Errorf("docclient: open %s: %w", path, err)
	}
	defer f.Close()
	return c.UploadReader(ctx, filepath.Base(path), f)
}

// UploadReader uploads r under filename.
func (c *Client) UploadReader(ctx context.Context, filename string, r io.Reader) (UploadResponse, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return UploadResponse{}, err
	}
	if _, err := io.Copy(part, r); err != nil {
		return UploadResponse{}, fmt.Errorf("docclient: read %s: %w", filename, err)
	}
	if err := mw.Close(); err != nil {
		return UploadResponse{}, err
	}
	var out UploadResponse
	err = c.do(ctx, http.MethodPost, "/upload-pdf", &buf, mw.FormDataContentType(), &out)
	return out, err
}

// Ask runs the full question-answering flow on the server.
func (c *Client) Ask(ctx context.Context, question string) (AskResponse, error) {
	body, err := json.Marshal(AskRequest{Question: question})
	if err != nil {
		return AskResponse{}, err
	}
	var out AskResponse
	err = c.do(ctx, http.MethodPost, "/api/ask", bytes.NewReader(body), "application/json", &out)
	return out, err
}

func (c *Client) Health(ctx context.Context) (HealthResponse, error) {
	var out HealthResponse
	err := c.do(ctx, http.MethodGet, "/health", nil, "", &out)
	return out, err
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("docclient: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var e ErrorResponse
		if json.Unmarshal(data, &e) != nil || e.Detail == "" {
			e.Detail = strings.TrimSpace(string(data))
		}
		return &APIError{Code: resp.StatusCode, Detail: e.Detail}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("docclient: decode %s: %w", path, err)
	}
	return nil
}
