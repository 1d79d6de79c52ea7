package arkv

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultChunkSize is the buffer size for streaming file content.
const DefaultChunkSize = 256 * 1024

// DefaultChunkTimeout bounds a single remote write. A write that neither
// completes nor fails within this window indicates a stalled transport
// rather than a slow entry.
const DefaultChunkTimeout = 30 * time.Second

// consecutiveRemoteLimit is how many remote I/O failures in a row are
// taken as evidence that the session itself is broken rather than the
// individual entries.
const consecutiveRemoteLimit = 2

// Engine executes an upload plan against one session, emitting progress
// events to its sink. One bad file never aborts the whole plan; only an
// unrecoverable session failure does.
type Engine struct {
	sm           *SessionManager
	sink         ProgressSink
	log          logrus.FieldLogger
	chunkSize    int
	chunkTimeout time.Duration
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithSink sets the progress sink. Defaults to DiscardSink.
func WithSink(sink ProgressSink) EngineOption {
	return func(e *Engine) {
		e.sink = sink
	}
}

// WithLogger sets the engine logger. Defaults to a discard logger so the
// library produces no output of its own.
func WithLogger(log logrus.FieldLogger) EngineOption {
	return func(e *Engine) {
		e.log = log
	}
}

// WithChunkSize overrides the streaming buffer size.
func WithChunkSize(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.chunkSize = n
		}
	}
}

// WithChunkTimeout overrides the per-write deadline.
func WithChunkTimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.chunkTimeout = d
		}
	}
}

// NewEngine creates an engine bound to one SessionManager.
func NewEngine(sm *SessionManager, opts ...EngineOption) *Engine {
	e := &Engine{
		sm:           sm,
		sink:         DiscardSink{},
		log:          discardLogger(),
		chunkSize:    DefaultChunkSize,
		chunkTimeout: DefaultChunkTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute processes plan entries strictly in order and returns the
// aggregate summary.
//
// Connection-establishment failures abort before any event is emitted.
// Per-entry failures are recorded and execution continues. A transport
// failure mid-plan triggers exactly one reconnect attempt; if that fails,
// every remaining entry is recorded as failed with ErrSessionLost and
// Execute returns the partial summary together with the session error.
//
// Cancellation is cooperative: it is checked before each entry, between
// chunks of an in-flight file, and interrupts a chunk write that is still
// in flight. A cancelled run returns the partial summary and a nil error,
// with unattempted entries recorded as skipped. Each chunk write is also
// bounded by the chunk timeout; expiry is treated as a transport failure.
//
// The session is exclusively owned by the engine for the duration of the
// call and closed before returning.
func (e *Engine) Execute(ctx context.Context, plan *UploadPlan) (*UploadSummary, error) {
	start := time.Now()

	session, err := e.sm.Connect(ctx)
	if err != nil {
		return nil, err
	}
	defer e.sm.Close()

	e.sink.PlanReady(plan)

	summary := &UploadSummary{}
	ensured := make(map[string]bool, plan.TotalDirs)

	var (
		reconnected       bool
		sessionDead       bool
		consecutiveRemote int
	)

	record := func(entry UploadEntry, oc Outcome) {
		switch entry.Kind {
		case KindDir:
			switch oc.Status {
			case OutcomeSucceeded:
				summary.DirsEnsured++
			case OutcomeSkipped:
				summary.DirsSkipped++
			case OutcomeFailed:
				summary.DirsFailed++
			}
		default:
			switch oc.Status {
			case OutcomeSucceeded:
				summary.FilesSucceeded++
			case OutcomeSkipped:
				summary.FilesSkipped++
			case OutcomeFailed:
				summary.FilesFailed++
			}
		}
		e.sink.EntryCompleted(entry, oc)
	}

	// tryRecover performs the one automatic reconnect. It reports whether
	// a fresh session is available.
	tryRecover := func() bool {
		if reconnected {
			sessionDead = true
			return false
		}
		reconnected = true

		fresh, err := e.sm.Reconnect(ctx)
		if err != nil {
			e.log.WithError(err).Error("reconnect failed")
			sessionDead = true
			return false
		}

		session = fresh
		consecutiveRemote = 0
		// Directory knowledge survives a reconnect; the remote filesystem
		// did not change.
		return true
	}

	for _, entry := range plan.Entries {
		if sessionDead {
			record(entry, failed(ErrSessionLost))
			continue
		}
		if ctx.Err() != nil {
			record(entry, skipped(SkipCancelled))
			continue
		}

		switch entry.Kind {
		case KindSymlink:
			record(entry, skipped(SkipSymlink))

		case KindDir:
			err := e.ensureEntry(session, entry, ensured)
			if err != nil && errors.Is(err, ErrSessionLost) && tryRecover() {
				err = e.ensureEntry(session, entry, ensured)
			}

			switch {
			case err == nil:
				record(entry, succeeded())
				consecutiveRemote = 0
			case errors.Is(err, ErrPathConflict):
				record(entry, failed(err))
				consecutiveRemote = 0
			case errors.Is(err, ErrSessionLost):
				record(entry, failed(err))
				sessionDead = true
			default:
				record(entry, failed(err))
				consecutiveRemote++
			}

		case KindFile:
			written, err := e.transferFile(ctx, session, entry, ensured)
			if err != nil && errors.Is(err, ErrSessionLost) && tryRecover() {
				written, err = e.transferFile(ctx, session, entry, ensured)
			}

			switch {
			case err == nil:
				summary.BytesTransferred += written
				record(entry, succeeded())
				consecutiveRemote = 0
			case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
				record(entry, skipped(SkipCancelled))
			case errors.Is(err, ErrSessionLost):
				record(entry, failed(err))
				sessionDead = true
			case errors.Is(err, ErrRemoteIO) || errors.Is(err, ErrPathConflict):
				e.log.WithError(err).WithField("path", entry.LocalPath).Warn("entry failed")
				record(entry, failed(err))
				consecutiveRemote++
			default:
				// Local read failures do not implicate the session.
				e.log.WithError(err).WithField("path", entry.LocalPath).Warn("entry failed")
				record(entry, failed(err))
				consecutiveRemote = 0
			}
		}

		if !sessionDead && consecutiveRemote >= consecutiveRemoteLimit {
			// Repeated remote failures across entries look like a broken
			// channel, not broken entries.
			tryRecover()
		}
	}

	summary.Elapsed = time.Since(start)

	if sessionDead {
		return summary, fmt.Errorf("upload aborted: %w", ErrSessionLost)
	}
	return summary, nil
}

// ensureEntry materializes one directory entry and emits its event.
func (e *Engine) ensureEntry(session *Session, entry UploadEntry, ensured map[string]bool) error {
	if err := EnsureDir(session.FS(), entry.RemotePath); err != nil {
		if errors.Is(err, ErrPathConflict) {
			return err
		}
		if isTransportError(err) {
			return fmt.Errorf("%w: %v", ErrSessionLost, err)
		}
		return fmt.Errorf("%w: %v", ErrRemoteIO, err)
	}
	ensured[entry.RemotePath] = true
	e.sink.DirectoryEnsured(entry.RemotePath)
	return nil
}

// transferFile streams one file entry and returns the bytes written. On an
// internal retry after reconnect the transfer restarts from zero and
// re-emits EntryStarted; sinks tracking per-entry progress reset on a
// repeated EntryStarted.
func (e *Engine) transferFile(ctx context.Context, session *Session, entry UploadEntry, ensured map[string]bool) (int64, error) {
	e.sink.EntryStarted(entry)

	// Plans rooted at a directory ensure parents via their own entries;
	// a single-file plan has none, so materialize the base path here.
	parent := path.Dir(entry.RemotePath)
	if parent != "/" && parent != "." && !ensured[parent] {
		if err := EnsureDir(session.FS(), parent); err != nil {
			if errors.Is(err, ErrPathConflict) {
				return 0, err
			}
			if isTransportError(err) {
				return 0, fmt.Errorf("%w: %v", ErrSessionLost, err)
			}
			return 0, fmt.Errorf("%w: %v", ErrRemoteIO, err)
		}
		ensured[parent] = true
		e.sink.DirectoryEnsured(parent)
	}

	local, err := os.Open(entry.LocalPath)
	if err != nil {
		return 0, fmt.Errorf("%w: open %s: %v", ErrLocalIO, entry.LocalPath, err)
	}
	defer local.Close()

	remote, err := session.FS().Create(entry.RemotePath)
	if err != nil {
		return 0, wrapRemoteErr("create", entry.RemotePath, err)
	}

	buf := make([]byte, e.chunkSize)
	var written int64

	for {
		if err := ctx.Err(); err != nil {
			remote.Close()
			return written, err
		}

		n, readErr := local.Read(buf)
		if n > 0 {
			wn, writeErr := e.writeChunk(ctx, remote, buf[:n])
			if wn > 0 {
				written += int64(wn)
				e.sink.BytesWritten(entry, int64(wn))
			}
			if writeErr != nil {
				remote.Close()
				switch {
				case errors.Is(writeErr, context.Canceled), errors.Is(writeErr, context.DeadlineExceeded):
					return written, writeErr
				case errors.Is(writeErr, ErrSessionLost):
					return written, fmt.Errorf("write %s: %w", entry.RemotePath, writeErr)
				default:
					return written, wrapRemoteErr("write", entry.RemotePath, writeErr)
				}
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			remote.Close()
			return written, fmt.Errorf("%w: read %s: %v", ErrLocalIO, entry.LocalPath, readErr)
		}
	}

	if err := remote.Close(); err != nil {
		return written, wrapRemoteErr("close", entry.RemotePath, err)
	}

	return written, nil
}

// writeChunk performs one remote write bounded by the chunk timeout and by
// caller cancellation. SFTP writes carry no deadline of their own, so a
// half-open connection can leave Write blocked indefinitely; the write runs
// in its own goroutine and is abandoned once the deadline expires. An
// expired write reports ErrSessionLost so the caller's reconnect logic
// applies; closing the remote handle afterwards invalidates any write that
// is still in flight.
func (e *Engine) writeChunk(ctx context.Context, remote RemoteFile, p []byte) (int, error) {
	type result struct {
		n   int
		err error
	}

	done := make(chan result, 1)
	go func() {
		n, err := remote.Write(p)
		done <- result{n: n, err: err}
	}()

	timer := time.NewTimer(e.chunkTimeout)
	defer timer.Stop()

	select {
	case res := <-done:
		return res.n, res.err
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-timer.C:
		return 0, fmt.Errorf("%w: write stalled for %s", ErrSessionLost, e.chunkTimeout)
	}
}

func wrapRemoteErr(op, remotePath string, err error) error {
	if isTransportError(err) {
		return fmt.Errorf("%w: %s %s: %v", ErrSessionLost, op, remotePath, err)
	}
	return fmt.Errorf("%w: %s %s: %v", ErrRemoteIO, op, remotePath, err)
}
