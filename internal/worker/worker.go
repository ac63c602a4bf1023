package worker

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/sallandpioneers/docflow/internal/extractor"
	"github.com/sallandpioneers/docflow/internal/model"
	"github.com/sallandpioneers/docflow/internal/retry"
	"github.com/sallandpioneers/docflow/internal/schema"
)

// Extractor turns a document file into a structured result.
type Extractor interface {
	Extract(ctx context.Context, filePath string, schema map[string]any) (map[string]any, error)
}

// StatusWriter writes a worker status directly to the registry store,
// bypassing the coordinator. Wired only when the worker is given a
// store address; used as a best-effort second channel on interrupt.
type StatusWriter interface {
	UpdateStatus(ctx context.Context, workerID string, status model.WorkerState) error
}

// consecutive transient failures before the worker declares itself in
// error state
const errorThreshold = 3

// Options configures a worker run.
type Options struct {
	Client    *Client
	Extractor Extractor
	Resolver  *schema.Resolver
	Logger    *log.Logger

	// Registration identity. WorkerID set means resume an existing
	// registration instead of creating one.
	Name      string
	APIURL    string
	Model     string
	APIKey    string
	ProcessID string
	WorkerID  string

	HeartbeatInterval time.Duration
	IdleSleep         time.Duration
	ErrorSleep        time.Duration
	Retry             retry.Options

	StatusWriter StatusWriter
}

// Worker is the single-threaded processing loop. One worker claims,
// extracts and reports one document at a time; all coordination runs
// over the coordinator HTTP API.
type Worker struct {
	opts Options

	id            string
	status        model.WorkerState
	currentDoc    string
	paused        bool
	failures      int
	lastHeartbeat time.Time
}

func New(opts Options) *Worker {
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = 10 * time.Second
	}
	if opts.IdleSleep <= 0 {
		opts.IdleSleep = 1 * time.Second
	}
	if opts.ErrorSleep <= 0 {
		opts.ErrorSleep = 5 * time.Second
	}
	if opts.Retry.Classifier == nil {
		opts.Retry.Classifier = retry.ClassifyTransient
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry.MaxAttempts = 3
	}
	if opts.Retry.BackoffBase <= 0 {
		opts.Retry.BackoffBase = 2 * time.Second
	}
	if opts.Retry.RateLimitRetry <= 0 {
		opts.Retry.RateLimitRetry = time.Minute
	}
	return &Worker{opts: opts, status: model.StateIdle}
}

// ID returns the worker id once registered.
func (w *Worker) ID() string {
	return w.id
}

// Run registers (or resumes) and processes documents until the context
// is cancelled, a shutdown command arrives, or the coordinator no
// longer knows the worker.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.register(ctx); err != nil {
		return err
	}

	for {
		if ctx.Err() != nil {
			return w.shutdown()
		}

		command, beat, err := w.heartbeatIfDue(ctx)
		if err != nil {
			if model.IsKind(err, model.KindUnknownWorker) {
				w.logf("Coordinator no longer knows this worker, exiting")
				return err
			}
			w.noteFailure("heartbeat", err)
		} else if beat {
			w.noteSuccess()
		}

		switch command {
		case model.CommandShutdown:
			w.logf("Shutdown command received, exiting")
			w.status = model.StateStopped
			return nil
		case model.CommandStop:
			if !w.paused {
				w.logf("Stop command received, pausing")
			}
			w.paused = true
		default:
			if beat && w.paused {
				w.logf("Stop lifted, resuming")
				w.paused = false
			}
		}

		if w.paused || w.status == model.StateError {
			sleepDur := w.opts.IdleSleep
			if w.status == model.StateError {
				sleepDur = w.opts.ErrorSleep
			}
			_ = sleepCtx(ctx, sleepDur)
			continue
		}

		// Transient poll failures are retried before they count toward
		// the error threshold.
		doc, err := retry.DoWithResult(ctx, w.opts.Retry, func() (*model.Document, error) {
			return w.opts.Client.NextDocument(ctx, w.id)
		})
		if err != nil {
			w.noteFailure("poll", err)
			_ = sleepCtx(ctx, w.opts.ErrorSleep)
			continue
		}
		if doc == nil {
			_ = sleepCtx(ctx, w.opts.IdleSleep)
			continue
		}

		w.process(ctx, doc)
	}
}

func (w *Worker) register(ctx context.Context) error {
	if w.opts.WorkerID != "" {
		worker, err := w.opts.Client.GetWorker(ctx, w.opts.WorkerID)
		if err != nil {
			return fmt.Errorf("cannot resume worker %s: %w", w.opts.WorkerID, err)
		}
		w.id = worker.ID
		w.logf("Resumed worker %s (%s)", worker.Name, worker.ID)
		return nil
	}

	info, err := w.opts.Client.Register(ctx, w.opts.Name, w.opts.APIURL, w.opts.Model, w.opts.APIKey, w.opts.ProcessID)
	if err != nil {
		return fmt.Errorf("registration failed: %w", err)
	}
	w.id = info.WorkerID
	w.logf("Registered as %s (%s)", w.opts.Name, w.id)
	if info.Warning != "" {
		w.logf("%s", info.Warning)
	}
	return nil
}

// heartbeatIfDue sends a heartbeat when the interval elapsed. beat
// reports whether one was actually sent.
func (w *Worker) heartbeatIfDue(ctx context.Context) (command string, beat bool, err error) {
	if time.Since(w.lastHeartbeat) < w.opts.HeartbeatInterval {
		return "", false, nil
	}
	command, err = w.heartbeatNow(ctx)
	return command, true, err
}

// heartbeatNow always sends. A paused worker reports idle so that a
// coordinator-side start is picked up as soon as the stop command
// stops coming back.
func (w *Worker) heartbeatNow(ctx context.Context) (string, error) {
	reported := w.status
	if w.paused {
		reported = model.StateIdle
	}
	w.lastHeartbeat = time.Now()
	return w.opts.Client.Heartbeat(ctx, w.id, reported, w.currentDoc)
}

func (w *Worker) process(ctx context.Context, doc *model.Document) {
	w.status = model.StateProcessing
	w.currentDoc = doc.ID
	w.logf("Processing document %s (%s)", doc.ID, doc.Path)

	// Announce the claim right away; commands in the reply are picked
	// up again by the next due heartbeat.
	if _, err := w.heartbeatNow(ctx); err != nil {
		w.logf("Heartbeat during claim failed: %v", err)
	}

	result, isError := w.extract(ctx, doc)

	err := retry.Do(ctx, w.opts.Retry, func() error {
		return w.opts.Client.CompleteDocument(ctx, w.id, doc.ID, isError, doc.Path, doc.SchemaName, result)
	})
	if err != nil {
		w.noteFailure("completion", err)
	} else {
		w.noteSuccess()
		if isError {
			w.logf("Document %s finished with an error outcome", doc.ID)
		} else {
			w.logf("Document %s processed", doc.ID)
		}
	}

	if w.status == model.StateProcessing {
		w.status = model.StateIdle
	}
	w.currentDoc = ""
}

func (w *Worker) extract(ctx context.Context, doc *model.Document) (map[string]any, bool) {
	schemaContent, err := w.opts.Resolver.Resolve(ctx, doc.SchemaName)
	if err != nil {
		w.logf("Schema resolution failed for %s: %v", doc.ID, err)
		return errorResult(err), true
	}

	result, err := w.opts.Extractor.Extract(ctx, doc.Path, schemaContent)
	if err != nil {
		w.logf("Extraction failed for %s: %v", doc.ID, err)
		return errorResult(err), true
	}
	return result, extractor.IsErrorOutcome(result)
}

// noteFailure counts consecutive coordinator failures; past the
// threshold the worker reports error state and backs off until the
// coordinator is reachable again.
func (w *Worker) noteFailure(op string, err error) {
	w.failures++
	w.logf("Coordinator %s failed (%d consecutive): %v", op, w.failures, err)
	if w.failures >= errorThreshold && w.status != model.StateError {
		w.status = model.StateError
		w.logf("Entering error state after %d consecutive failures", w.failures)
	}
}

func (w *Worker) noteSuccess() {
	if w.status == model.StateError {
		w.status = model.StateIdle
		w.logf("Coordinator reachable again, recovering from error state")
	}
	w.failures = 0
}

// shutdown runs on interrupt: mark stopped, write the status through
// both channels, exit cleanly. A document in flight stays on the
// processing list for operators to inspect or requeue.
func (w *Worker) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	w.status = model.StateStopped
	if w.opts.StatusWriter != nil {
		if err := w.opts.StatusWriter.UpdateStatus(ctx, w.id, model.StateStopped); err != nil {
			w.logf("Direct status write failed: %v", err)
		}
	}
	if _, err := w.opts.Client.Heartbeat(ctx, w.id, model.StateStopped, w.currentDoc); err != nil {
		w.logf("Final heartbeat failed: %v", err)
	}
	w.logf("Worker stopped")
	return nil
}

func (w *Worker) logf(format string, args ...any) {
	if w.opts.Logger != nil {
		w.opts.Logger.Printf(format, args...)
	}
}

func errorResult(err error) map[string]any {
	return map[string]any{
		"error":   err.Error(),
		"success": false,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
