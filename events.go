package arkv

import (
	"fmt"
	"time"
)

// OutcomeStatus is the terminal state of one plan entry.
type OutcomeStatus uint8

const (
	// OutcomeSucceeded means the entry was transferred or ensured.
	OutcomeSucceeded OutcomeStatus = iota
	// OutcomeSkipped means the entry was deliberately not attempted.
	OutcomeSkipped
	// OutcomeFailed means the entry was attempted and failed.
	OutcomeFailed
)

func (s OutcomeStatus) String() string {
	switch s {
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// SkipReason explains a skipped entry.
type SkipReason uint8

const (
	SkipNone SkipReason = iota
	// SkipSymlink marks a symbolic link, which the engine never follows.
	SkipSymlink
	// SkipCancelled marks an entry not attempted because the caller
	// cancelled the run.
	SkipCancelled
)

func (r SkipReason) String() string {
	switch r {
	case SkipSymlink:
		return "symlink not followed"
	case SkipCancelled:
		return "cancelled"
	default:
		return ""
	}
}

// Outcome is the terminal result of one plan entry. It is assigned exactly
// once per entry, regardless of retries internal to the engine.
type Outcome struct {
	Status OutcomeStatus

	// Reason is set when Status is OutcomeSkipped.
	Reason SkipReason

	// Err is the failure cause when Status is OutcomeFailed. It wraps one
	// of the package error kinds (ErrLocalIO, ErrRemoteIO, ErrPathConflict,
	// ErrSessionLost).
	Err error
}

func succeeded() Outcome           { return Outcome{Status: OutcomeSucceeded} }
func skipped(r SkipReason) Outcome { return Outcome{Status: OutcomeSkipped, Reason: r} }
func failed(err error) Outcome     { return Outcome{Status: OutcomeFailed, Err: err} }

// ProgressSink receives transfer events from the engine as the plan
// executes. Rendering is entirely the sink's concern; the engine performs
// no console output of its own.
//
// Events for a given entry arrive in order: EntryStarted, zero or more
// BytesWritten, then exactly one EntryCompleted. No event for an entry is
// delivered after its EntryCompleted. Directory entries produce a
// DirectoryEnsured before their EntryCompleted; skipped entries produce
// only an EntryCompleted.
//
// Sink methods are called from the goroutine running Execute and must not
// block for long.
type ProgressSink interface {
	// PlanReady is called once, after the session is established and
	// before the first entry is processed.
	PlanReady(plan *UploadPlan)

	// EntryStarted is called before a file entry's bytes are streamed.
	EntryStarted(entry UploadEntry)

	// BytesWritten reports one chunk written to the remote file.
	BytesWritten(entry UploadEntry, delta int64)

	// DirectoryEnsured reports that a remote directory now exists.
	DirectoryEnsured(remotePath string)

	// EntryCompleted reports the terminal outcome of an entry.
	EntryCompleted(entry UploadEntry, outcome Outcome)
}

// DiscardSink is a ProgressSink that ignores all events.
type DiscardSink struct{}

var _ ProgressSink = DiscardSink{}

func (DiscardSink) PlanReady(*UploadPlan)               {}
func (DiscardSink) EntryStarted(UploadEntry)            {}
func (DiscardSink) BytesWritten(UploadEntry, int64)     {}
func (DiscardSink) DirectoryEnsured(string)             {}
func (DiscardSink) EntryCompleted(UploadEntry, Outcome) {}

// UploadSummary aggregates the outcomes of one Execute call. File and
// directory counts are reported separately.
type UploadSummary struct {
	FilesSucceeded int
	FilesFailed    int
	FilesSkipped   int

	DirsEnsured int
	DirsFailed  int
	DirsSkipped int

	// BytesTransferred is the number of bytes written for entries that
	// completed successfully.
	BytesTransferred int64

	// Elapsed is the wall-clock duration of the run, including connection
	// establishment.
	Elapsed time.Duration
}

// HasFailures reports whether any entry failed.
func (s *UploadSummary) HasFailures() bool {
	return s.FilesFailed > 0 || s.DirsFailed > 0
}

// ThroughputMBps returns the average transfer rate in megabytes per second.
func (s *UploadSummary) ThroughputMBps() float64 {
	secs := s.Elapsed.Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(s.BytesTransferred) / 1048576.0 / secs
}

func (s *UploadSummary) String() string {
	return fmt.Sprintf("%.2f MB in %.1fs (%.2f MB/s)",
		float64(s.BytesTransferred)/1048576.0, s.Elapsed.Seconds(), s.ThroughputMBps())
}
