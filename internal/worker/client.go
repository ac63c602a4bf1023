package worker

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

	"github.com/sallandpioneers/docflow/internal/model"
	"github.com/sallandpioneers/docflow/internal/retry"
)

// Client is the coordinator HTTP client used by workers and the CLI.
//
// The coordinator replies 200 with an {"error": ...} body for business
// rejections; when the body names a kind those surface as classified
// model errors, otherwise as plain errors. Transport failures and
// non-200 statuses surface as retryable errors.
type Client struct {
	baseURL string
	httpc   *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpc:   &http.Client{Timeout: 30 * time.Second},
	}
}

// RegisterInfo is the outcome of a successful registration.
type RegisterInfo struct {
	WorkerID string `json:"worker_id"`
	Warning  string `json:"warning"`
}

func (c *Client) Register(ctx context.Context, name, apiURL, modelName, apiKey, processID string) (*RegisterInfo, error) {
	body := map[string]string{
		"worker_name": name,
		"api_url":     apiURL,
		"model":       modelName,
		"api_key":     apiKey,
		"process_id":  processID,
	}
	var info RegisterInfo
	if err := c.do(ctx, http.MethodPost, "/api/register-worker", nil, body, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Heartbeat reports status and returns the coordinator's command, if
// any. A coordinator that no longer knows the worker id yields a
// KindUnknownWorker error.
func (c *Client) Heartbeat(ctx context.Context, workerID string, status model.WorkerState, documentID string) (string, error) {
	body := map[string]string{
		"worker_id":   workerID,
		"status":      string(status),
		"document_id": documentID,
	}
	var resp struct {
		Command string `json:"command"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/worker-heartbeat", nil, body, &resp); err != nil {
		return "", err
	}
	return resp.Command, nil
}

// NextDocument asks for work. (nil, nil) means nothing to do right
// now, either because the queue is empty or the worker is not active.
func (c *Client) NextDocument(ctx context.Context, workerID string) (*model.Document, error) {
	var resp struct {
		Status   string          `json:"status"`
		Document *model.Document `json:"document"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/next-document/"+url.PathEscape(workerID), nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Document, nil
}

// CompleteDocument reports the outcome of one document.
func (c *Client) CompleteDocument(ctx context.Context, workerID, documentID string, isError bool, filePath, schemaName string, result any) error {
	q := url.Values{}
	q.Set("worker_id", workerID)
	q.Set("document_id", documentID)

	body := map[string]any{
		"is_error":    isError,
		"file_path":   filePath,
		"schema_name": schemaName,
		"result":      result,
	}
	return c.do(ctx, http.MethodPost, "/api/document-processed", q, body, nil)
}

// GetWorker fetches a worker record, used to resume an existing
// registration.
func (c *Client) GetWorker(ctx context.Context, workerID string) (*model.Worker, error) {
	var resp struct {
		Worker *model.Worker `json:"worker"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/worker/"+url.PathEscape(workerID), nil, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Worker == nil {
		return nil, fmt.Errorf("empty worker record for %s", workerID)
	}
	return resp.Worker, nil
}

// SchemaContent fetches schema content by name. A missing schema is a
// KindNotFound error, which lets the resolver fall back to disk.
func (c *Client) SchemaContent(ctx context.Context, name string) (map[string]any, error) {
	var resp struct {
		Content map[string]any `json:"content"`
	}
	err := c.do(ctx, http.MethodGet, "/api/schema/"+url.PathEscape(name), nil, nil, &resp)
	if err != nil {
		var statusErr *retry.StatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound {
			return nil, model.Errorf(model.KindNotFound, "Schema not found")
		}
		return nil, err
	}
	return resp.Content, nil
}

// EnqueueResult is the coordinator's reply to a single-file enqueue.
type EnqueueResult struct {
	DocumentID    string `json:"document_id"`
	QueuePosition int64  `json:"queue_position"`
	Schema        string `json:"schema"`
}

func (c *Client) EnqueueFile(ctx context.Context, filePath, schemaName string) (*EnqueueResult, error) {
	q := url.Values{}
	q.Set("file_path", filePath)
	if schemaName != "" {
		q.Set("schema_name", schemaName)
	}
	var res EnqueueResult
	if err := c.do(ctx, http.MethodPost, "/api/enqueue", q, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// FolderResult is the coordinator's reply to a folder enqueue.
type FolderResult struct {
	Count  int    `json:"count"`
	Folder string `json:"folder"`
	Schema string `json:"schema"`
}

func (c *Client) EnqueueFolder(ctx context.Context, folderPath, schemaName string) (*FolderResult, error) {
	q := url.Values{}
	q.Set("folder_path", folderPath)
	if schemaName != "" {
		q.Set("schema_name", schemaName)
	}
	var res FolderResult
	if err := c.do(ctx, http.MethodPost, "/api/enqueue-folder", q, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// QueueStatus mirrors the coordinator's queue counters.
type QueueStatus struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Processed  int64 `json:"processed"`
	Errors     int64 `json:"errors"`
}

// WorkerSummary is one row of the system status worker table.
type WorkerSummary struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	Status             string `json:"status"`
	Model              string `json:"model"`
	ProcessedDocuments int64  `json:"processed_documents"`
	Errors             int64  `json:"errors"`
	Stale              bool   `json:"stale"`
}

// SystemStatus is the full coordinator status report.
type SystemStatus struct {
	Queue   QueueStatus     `json:"queue_status"`
	Workers []WorkerSummary `json:"workers"`
}

func (c *Client) SystemStatus(ctx context.Context) (*SystemStatus, error) {
	var status SystemStatus
	if err := c.do(ctx, http.MethodGet, "/api/system-status", nil, nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("coordinator request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return &retry.StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	var envelope struct {
		Error string `json:"error"`
		Kind  string `json:"kind"`
	}
	if err := json.Unmarshal(data, &envelope); err == nil && envelope.Error != "" {
		if envelope.Kind != "" {
			return model.Errorf(model.ErrorKind(envelope.Kind), "%s", envelope.Error)
		}
		return errors.New(envelope.Error)
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
