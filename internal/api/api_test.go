package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/sallandpioneers/docflow/internal/queue"
	"github.com/sallandpioneers/docflow/internal/registry"
	"github.com/sallandpioneers/docflow/internal/results"
	"github.com/sallandpioneers/docflow/internal/schema"
)

type testEnv struct {
	ts  *httptest.Server
	res *results.MemoryStore
	q   *queue.Store
	reg *registry.Registry
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	q := queue.NewStore(rdb)
	reg := registry.New(rdb, 30*time.Second)
	res := results.NewMemoryStore()
	logger := log.New(io.Discard, "", 0)

	server := NewServer(q, reg, schema.NewRegistry(rdb), res, 50*time.Millisecond, logger)
	ts := httptest.NewServer(server.Router())
	t.Cleanup(ts.Close)

	return &testEnv{ts: ts, res: res, q: q, reg: reg}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, e.ts.URL+path, reader)
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	var decoded map[string]any
	if len(data) > 0 {
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("response to %s %s is not JSON: %s", method, path, data)
		}
	}
	return resp.StatusCode, decoded
}

func (e *testEnv) registerWorker(t *testing.T, name string) string {
	t.Helper()
	_, body := e.do(t, http.MethodPost, "/api/register-worker", map[string]string{
		"worker_name": name,
		"api_url":     "http://llm.local/v1",
		"model":       "gpt-4o",
		"api_key":     "key",
	})
	workerID, _ := body["worker_id"].(string)
	if workerID == "" {
		t.Fatalf("registration failed: %+v", body)
	}
	return workerID
}

func (e *testEnv) enqueue(t *testing.T, filePath, schemaName string) string {
	t.Helper()
	q := url.Values{}
	q.Set("file_path", filePath)
	if schemaName != "" {
		q.Set("schema_name", schemaName)
	}
	_, body := e.do(t, http.MethodPost, "/api/enqueue?"+q.Encode(), nil)
	docID, _ := body["document_id"].(string)
	if docID == "" {
		t.Fatalf("enqueue failed: %+v", body)
	}
	return docID
}

func (e *testEnv) claim(t *testing.T, workerID string) map[string]any {
	t.Helper()
	_, body := e.do(t, http.MethodGet, "/api/next-document/"+workerID, nil)
	return body
}

func TestRootOnline(t *testing.T) {
	e := newTestEnv(t)

	status, body := e.do(t, http.MethodGet, "/", nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if body["status"] != "Document Processing System Online" {
		t.Errorf("unexpected root reply: %+v", body)
	}
}

func TestDocumentLifecycle(t *testing.T) {
	e := newTestEnv(t)
	workerID := e.registerWorker(t, "alpha")
	docID := e.enqueue(t, "/data/inv-001.jpg", "invoice")

	claim := e.claim(t, workerID)
	if claim["status"] != "Document assigned" {
		t.Fatalf("expected an assignment, got %+v", claim)
	}
	doc := claim["document"].(map[string]any)
	if doc["id"] != docID || doc["path"] != "/data/inv-001.jpg" {
		t.Errorf("unexpected document: %+v", doc)
	}

	q := url.Values{}
	q.Set("worker_id", workerID)
	q.Set("document_id", docID)
	_, body := e.do(t, http.MethodPost, "/api/document-processed?"+q.Encode(), map[string]any{
		"is_error":    false,
		"file_path":   "/data/inv-001.jpg",
		"schema_name": "invoice",
		"result":      map[string]any{"total": 10},
	})
	if body["status"] != "Document processed and result saved" {
		t.Fatalf("unexpected completion reply: %+v", body)
	}

	if got := e.res.Results(); len(got) != 1 || got[0].WorkerID != workerID {
		t.Errorf("expected one saved result for %s, got %+v", workerID, got)
	}

	_, status := e.do(t, http.MethodGet, "/api/system-status", nil)
	qs := status["queue_status"].(map[string]any)
	if qs["pending"] != float64(0) || qs["processing"] != float64(0) || qs["processed"] != float64(1) {
		t.Errorf("unexpected queue status: %+v", qs)
	}

	_, workerBody := e.do(t, http.MethodGet, "/api/worker/"+workerID, nil)
	stats := workerBody["stats"].(map[string]any)
	if stats["processed_documents"] != float64(1) {
		t.Errorf("expected worker processed count 1, got %+v", stats)
	}
	worker := workerBody["worker"].(map[string]any)
	if worker["status"] != "idle" {
		t.Errorf("expected worker back to idle, got %+v", worker)
	}
}

func TestErrorOutcomeAccounting(t *testing.T) {
	e := newTestEnv(t)
	workerID := e.registerWorker(t, "alpha")
	docID := e.enqueue(t, "/data/broken.jpg", "")
	e.claim(t, workerID)

	q := url.Values{}
	q.Set("worker_id", workerID)
	q.Set("document_id", docID)
	e.do(t, http.MethodPost, "/api/document-processed?"+q.Encode(), map[string]any{
		"is_error": true,
		"result":   map[string]any{"error": "file not found", "success": false},
	})

	if got := e.res.Errors(); len(got) != 1 {
		t.Fatalf("expected one error record, got %d", len(got))
	}
	if got := e.res.Results(); len(got) != 0 {
		t.Errorf("error outcome must not land in the result stream")
	}

	_, status := e.do(t, http.MethodGet, "/api/system-status", nil)
	qs := status["queue_status"].(map[string]any)
	// Completions count as processed regardless of outcome
	if qs["errors"] != float64(1) || qs["processed"] != float64(1) {
		t.Errorf("unexpected counters: %+v", qs)
	}
	if qs["processing"] != float64(0) {
		t.Errorf("error outcome must still clear the processing list: %+v", qs)
	}
}

func TestNextDocumentUnregisteredWorker(t *testing.T) {
	e := newTestEnv(t)

	_, body := e.do(t, http.MethodGet, "/api/next-document/ghost", nil)
	if body["error"] != "Worker not registered" {
		t.Errorf("expected rejection, got %+v", body)
	}
}

func TestNextDocumentEmptyQueue(t *testing.T) {
	e := newTestEnv(t)
	workerID := e.registerWorker(t, "alpha")

	body := e.claim(t, workerID)
	if body["status"] != "No documents in queue" {
		t.Errorf("expected empty queue reply, got %+v", body)
	}
}

func TestStopStartRoundTrip(t *testing.T) {
	e := newTestEnv(t)
	workerID := e.registerWorker(t, "alpha")
	e.enqueue(t, "/data/a.jpg", "")

	e.do(t, http.MethodPost, "/api/worker/stop/"+workerID, nil)

	body := e.claim(t, workerID)
	if body["status"] != "Worker is not in active state" {
		t.Fatalf("stopped worker must not claim, got %+v", body)
	}
	// The rejected poll must not consume the document
	_, status := e.do(t, http.MethodGet, "/api/system-status", nil)
	qs := status["queue_status"].(map[string]any)
	if qs["pending"] != float64(1) {
		t.Errorf("document leaked out of pending: %+v", qs)
	}

	e.do(t, http.MethodPost, "/api/worker/start/"+workerID, nil)
	body = e.claim(t, workerID)
	if body["status"] != "Document assigned" {
		t.Errorf("restarted worker should claim, got %+v", body)
	}
}

func TestStartFromIdleRejected(t *testing.T) {
	e := newTestEnv(t)
	workerID := e.registerWorker(t, "alpha")

	_, body := e.do(t, http.MethodPost, "/api/worker/start/"+workerID, nil)
	if body["error"] != "Worker cannot be started from idle state" {
		t.Errorf("expected state rejection, got %+v", body)
	}
}

func TestGracefulRemove(t *testing.T) {
	e := newTestEnv(t)
	workerID := e.registerWorker(t, "alpha")

	_, body := e.do(t, http.MethodPost, "/api/remove-worker/"+workerID, nil)
	if body["status"] != "Worker removal requested" {
		t.Fatalf("unexpected removal reply: %+v", body)
	}

	_, hb := e.do(t, http.MethodPost, "/api/worker-heartbeat", map[string]string{
		"worker_id": workerID,
		"status":    "idle",
	})
	if hb["command"] != "shutdown" {
		t.Errorf("expected shutdown command, got %+v", hb)
	}
}

func TestForceRemoveDuringProcessing(t *testing.T) {
	e := newTestEnv(t)
	workerID := e.registerWorker(t, "alpha")
	e.enqueue(t, "/data/a.jpg", "")
	claim := e.claim(t, workerID)
	if claim["status"] != "Document assigned" {
		t.Fatalf("claim failed: %+v", claim)
	}

	_, body := e.do(t, http.MethodDelete, "/api/force-remove-worker/"+workerID, nil)
	if body["status"] != "Worker forcefully removed" {
		t.Fatalf("unexpected removal reply: %+v", body)
	}

	_, hb := e.do(t, http.MethodPost, "/api/worker-heartbeat", map[string]string{
		"worker_id": workerID,
		"status":    "processing",
	})
	if hb["error"] != "Worker not registered" {
		t.Errorf("expected heartbeat rejection after force remove, got %+v", hb)
	}

	// The in-flight document stays on the processing list
	_, status := e.do(t, http.MethodGet, "/api/system-status", nil)
	qs := status["queue_status"].(map[string]any)
	if qs["processing"] != float64(1) {
		t.Errorf("expected orphaned document in processing, got %+v", qs)
	}
}

func TestDuplicateCompletion(t *testing.T) {
	e := newTestEnv(t)
	workerID := e.registerWorker(t, "alpha")
	docID := e.enqueue(t, "/data/a.jpg", "")
	e.claim(t, workerID)

	q := url.Values{}
	q.Set("worker_id", workerID)
	q.Set("document_id", docID)
	payload := map[string]any{"is_error": false, "result": map[string]any{}}

	e.do(t, http.MethodPost, "/api/document-processed?"+q.Encode(), payload)
	_, second := e.do(t, http.MethodPost, "/api/document-processed?"+q.Encode(), payload)
	if second["status"] != "Document processed and result saved" {
		t.Fatalf("duplicate completion should be accepted, got %+v", second)
	}

	// At-least-once: the duplicate counts again
	_, status := e.do(t, http.MethodGet, "/api/system-status", nil)
	qs := status["queue_status"].(map[string]any)
	if qs["processed"] != float64(2) {
		t.Errorf("expected processed=2 after duplicate, got %+v", qs)
	}
	if qs["processing"] != float64(0) {
		t.Errorf("processing list should stay empty, got %+v", qs)
	}
}

func TestCompletionValidation(t *testing.T) {
	e := newTestEnv(t)

	_, body := e.do(t, http.MethodPost, "/api/document-processed", map[string]any{})
	if body["error"] != "Missing required parameters: worker_id and document_id" {
		t.Errorf("expected parameter rejection, got %+v", body)
	}
}

func TestEnqueueRequiresFilePath(t *testing.T) {
	e := newTestEnv(t)

	_, body := e.do(t, http.MethodPost, "/api/enqueue", nil)
	if body["error"] != "file_path is required" {
		t.Errorf("expected rejection, got %+v", body)
	}
}

func TestEnqueueDefaultSchema(t *testing.T) {
	e := newTestEnv(t)

	q := url.Values{}
	q.Set("file_path", "/data/a.jpg")
	_, body := e.do(t, http.MethodPost, "/api/enqueue?"+q.Encode(), nil)
	if body["schema"] != "default" {
		t.Errorf("expected default schema label, got %+v", body)
	}
}

func TestEnqueueFolder(t *testing.T) {
	e := newTestEnv(t)

	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "a.jpg"), []byte("x"), 0o644)
	os.MkdirAll(filepath.Join(dir, "nested"), 0o755)
	os.WriteFile(filepath.Join(dir, "nested", "b.jpg"), []byte("x"), 0o644)

	q := url.Values{}
	q.Set("folder_path", dir)
	q.Set("schema_name", "invoice")
	_, body := e.do(t, http.MethodPost, "/api/enqueue-folder?"+q.Encode(), nil)
	if body["count"] != float64(2) {
		t.Fatalf("expected 2 enqueued documents, got %+v", body)
	}

	pending, _ := e.q.PendingLen(context.Background())
	if pending != 2 {
		t.Errorf("expected pending=2, got %d", pending)
	}
}

func TestEnqueueFolderMissing(t *testing.T) {
	e := newTestEnv(t)

	q := url.Values{}
	q.Set("folder_path", "/no/such/folder")
	_, body := e.do(t, http.MethodPost, "/api/enqueue-folder?"+q.Encode(), nil)
	if body["error"] != "Folder not found or not a directory: /no/such/folder" {
		t.Errorf("expected folder rejection, got %+v", body)
	}
}

func TestEnqueueFolderEmpty(t *testing.T) {
	e := newTestEnv(t)

	dir := t.TempDir()
	q := url.Values{}
	q.Set("folder_path", dir)
	_, body := e.do(t, http.MethodPost, "/api/enqueue-folder?"+q.Encode(), nil)
	if body["count"] != float64(0) {
		t.Errorf("expected zero documents from empty folder, got %+v", body)
	}
}

func TestRegisterValidationAndConflict(t *testing.T) {
	e := newTestEnv(t)

	_, body := e.do(t, http.MethodPost, "/api/register-worker", map[string]string{
		"api_url": "http://x/v1", "model": "m",
	})
	if body["error"] != "Worker name is required" {
		t.Errorf("expected validation rejection, got %+v", body)
	}

	e.registerWorker(t, "alpha")
	_, body = e.do(t, http.MethodPost, "/api/register-worker", map[string]string{
		"worker_name": "alpha", "api_url": "http://x/v1", "model": "m",
	})
	if body["error"] != "Worker name already in use: alpha" {
		t.Errorf("expected conflict rejection, got %+v", body)
	}
}

func TestRejectionsCarryErrorKind(t *testing.T) {
	e := newTestEnv(t)

	_, body := e.do(t, http.MethodPost, "/api/worker-heartbeat", map[string]string{
		"worker_id": "ghost",
		"status":    "idle",
	})
	if body["error"] != "Worker not registered" || body["kind"] != "unknown_worker" {
		t.Errorf("expected unknown_worker kind, got %+v", body)
	}

	workerID := e.registerWorker(t, "alpha")
	_, body = e.do(t, http.MethodPost, "/api/worker/start/"+workerID, nil)
	if body["kind"] != "state" {
		t.Errorf("expected state kind on illegal start, got %+v", body)
	}

	_, body = e.do(t, http.MethodPost, "/api/register-worker", map[string]string{
		"api_url": "http://x/v1", "model": "m",
	})
	if body["kind"] != "validation" {
		t.Errorf("expected validation kind, got %+v", body)
	}
}

func TestHeartbeatRequiresWorkerID(t *testing.T) {
	e := newTestEnv(t)

	_, body := e.do(t, http.MethodPost, "/api/worker-heartbeat", map[string]string{"status": "idle"})
	if body["error"] != "Worker ID is required" {
		t.Errorf("expected rejection, got %+v", body)
	}
}

func TestHeartbeatAccepted(t *testing.T) {
	e := newTestEnv(t)
	workerID := e.registerWorker(t, "alpha")

	_, body := e.do(t, http.MethodPost, "/api/worker-heartbeat", map[string]string{
		"worker_id": workerID,
		"status":    "idle",
	})
	if body["status"] != "Heartbeat received" {
		t.Errorf("expected plain ack, got %+v", body)
	}
}

func TestSchemaLifecycle(t *testing.T) {
	e := newTestEnv(t)

	_, body := e.do(t, http.MethodPost, "/api/schema", map[string]any{
		"name":    "invoice",
		"content": map[string]any{"total": "number"},
	})
	if body["status"] != "Schema added successfully" {
		t.Fatalf("add failed: %+v", body)
	}

	_, body = e.do(t, http.MethodPost, "/api/schema", map[string]any{
		"name":    "invoice",
		"content": map[string]any{"total": "string"},
	})
	if body["error"] != "Schema already exists: invoice" {
		t.Errorf("expected conflict, got %+v", body)
	}

	status, body := e.do(t, http.MethodGet, "/api/schema/invoice", nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	content := body["content"].(map[string]any)
	if content["total"] != "number" {
		t.Errorf("unexpected schema content: %+v", content)
	}

	status, _ = e.do(t, http.MethodGet, "/api/schema/ghost", nil)
	if status != http.StatusNotFound {
		t.Errorf("missing schema must be a 404, got %d", status)
	}

	_, body = e.do(t, http.MethodGet, "/api/schemas", nil)
	schemas := body["schemas"].([]any)
	if len(schemas) != 1 {
		t.Errorf("expected one schema, got %+v", schemas)
	}

	_, body = e.do(t, http.MethodDelete, "/api/schema/invoice", nil)
	if body["status"] != "Schema deleted successfully" {
		t.Errorf("delete failed: %+v", body)
	}
	status, _ = e.do(t, http.MethodDelete, "/api/schema/invoice", nil)
	if status != http.StatusNotFound {
		t.Errorf("double delete must be a 404, got %d", status)
	}
}

func TestSchemaContentMustBeObject(t *testing.T) {
	e := newTestEnv(t)

	_, body := e.do(t, http.MethodPost, "/api/schema", map[string]any{
		"name":    "broken",
		"content": []any{"not", "an", "object"},
	})
	if body["error"] != "Schema content must be a JSON object" {
		t.Errorf("expected content rejection, got %+v", body)
	}
}
