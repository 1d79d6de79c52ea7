// Package ui renders upload progress to a terminal. Every renderer
// implements arkv.ProgressSink; the engine stays unaware of presentation.
//
// Sinks are driven from a single goroutine per upload and are not safe for
// shared use across uploads.
package ui

import (
	"fmt"
	"io"
	"path"

	"github.com/ehamiter/arkv"
)

// NewSink picks a renderer for a plan. Interactive terminals get a spinner
// for a single file and a bar for trees; everything else gets line output.
func NewSink(out io.Writer, name string, plan *arkv.UploadPlan, interactive bool) arkv.ProgressSink {
	if !interactive {
		return NewPlainSink(out, name)
	}
	if plan.TotalFiles == 1 && plan.TotalDirs == 0 {
		return NewSpinnerSink(out)
	}
	return NewBarSink(out)
}

// FormatSummary renders one destination's transfer statistics.
func FormatSummary(name string, summary *arkv.UploadSummary) string {
	return fmt.Sprintf("%s: %s", name, summary)
}

const spinnerFrames = `|/-\`

// SpinnerSink shows a single-file upload as a spinner with a running byte
// count.
type SpinnerSink struct {
	out   io.Writer
	label string
	frame int
	bytes int64
}

// NewSpinnerSink creates a spinner writing to out.
func NewSpinnerSink(out io.Writer) *SpinnerSink {
	return &SpinnerSink{out: out}
}

func (s *SpinnerSink) PlanReady(*arkv.UploadPlan) {}

func (s *SpinnerSink) EntryStarted(entry arkv.UploadEntry) {
	s.label = path.Base(entry.RemotePath)
	s.bytes = 0
	fmt.Fprintf(s.out, "\r%c Uploading %s", spinnerFrames[0], s.label)
}

func (s *SpinnerSink) BytesWritten(entry arkv.UploadEntry, delta int64) {
	s.bytes += delta
	s.frame++
	fmt.Fprintf(s.out, "\r%c Uploading %s (%s)",
		spinnerFrames[s.frame%len(spinnerFrames)], s.label, formatBytes(s.bytes))
}

func (s *SpinnerSink) DirectoryEnsured(string) {}

func (s *SpinnerSink) EntryCompleted(entry arkv.UploadEntry, outcome arkv.Outcome) {
	name := path.Base(entry.RemotePath)
	switch outcome.Status {
	case arkv.OutcomeSucceeded:
		fmt.Fprintf(s.out, "\r✓ Uploaded %s (%s)\n", name, formatBytes(s.bytes))
	case arkv.OutcomeSkipped:
		fmt.Fprintf(s.out, "\r- Skipped %s (%s)\n", name, outcome.Reason)
	case arkv.OutcomeFailed:
		fmt.Fprintf(s.out, "\r✗ Failed %s: %v\n", name, outcome.Err)
	}
}

const barWidth = 40

// BarSink shows tree uploads as a pos/len file counter with a bar and the
// name of the file in flight.
type BarSink struct {
	out     io.Writer
	total   int
	done    int
	current string
}

// NewBarSink creates a progress bar writing to out.
func NewBarSink(out io.Writer) *BarSink {
	return &BarSink{out: out}
}

func (b *BarSink) PlanReady(plan *arkv.UploadPlan) {
	b.total = plan.TotalFiles + plan.TotalSymlinks
	b.render()
}

func (b *BarSink) EntryStarted(entry arkv.UploadEntry) {
	b.current = path.Base(entry.RemotePath)
	b.render()
}

func (b *BarSink) BytesWritten(arkv.UploadEntry, int64) {}

func (b *BarSink) DirectoryEnsured(string) {}

func (b *BarSink) EntryCompleted(entry arkv.UploadEntry, outcome arkv.Outcome) {
	if entry.Kind == arkv.KindDir {
		return
	}
	b.done++
	if outcome.Status == arkv.OutcomeFailed {
		fmt.Fprintf(b.out, "\r✗ %s: %v%s\n", entry.RemotePath, outcome.Err, clearToEOL)
	}
	b.render()
	if b.done == b.total {
		fmt.Fprintln(b.out)
	}
}

const clearToEOL = "\x1b[K"

func (b *BarSink) render() {
	filled := 0
	if b.total > 0 {
		filled = barWidth * b.done / b.total
	}

	bar := make([]byte, barWidth)
	for i := range bar {
		switch {
		case i < filled:
			bar[i] = '#'
		case i == filled:
			bar[i] = '>'
		default:
			bar[i] = '-'
		}
	}

	fmt.Fprintf(b.out, "\r[%s] %d/%d files %s%s", bar, b.done, b.total, b.current, clearToEOL)
}

// PlainSink prints one line per completed entry. Suitable for non-terminal
// output and for interleaved multi-destination uploads, where each line is
// prefixed with the destination name.
type PlainSink struct {
	out    io.Writer
	prefix string
}

// NewPlainSink creates a line-per-entry sink. prefix may be empty.
func NewPlainSink(out io.Writer, prefix string) *PlainSink {
	p := &PlainSink{out: out}
	if prefix != "" {
		p.prefix = "[" + prefix + "] "
	}
	return p
}

func (p *PlainSink) PlanReady(plan *arkv.UploadPlan) {
	fmt.Fprintf(p.out, "%suploading %d files (%s)\n",
		p.prefix, plan.TotalFiles, formatBytes(plan.TotalBytes))
}

func (p *PlainSink) EntryStarted(arkv.UploadEntry) {}

func (p *PlainSink) BytesWritten(arkv.UploadEntry, int64) {}

func (p *PlainSink) DirectoryEnsured(string) {}

func (p *PlainSink) EntryCompleted(entry arkv.UploadEntry, outcome arkv.Outcome) {
	switch outcome.Status {
	case arkv.OutcomeSucceeded:
		if entry.Kind == arkv.KindFile {
			fmt.Fprintf(p.out, "%suploaded %s\n", p.prefix, entry.RemotePath)
		}
	case arkv.OutcomeSkipped:
		fmt.Fprintf(p.out, "%sskipped %s (%s)\n", p.prefix, entry.RemotePath, outcome.Reason)
	case arkv.OutcomeFailed:
		fmt.Fprintf(p.out, "%sfailed %s: %v\n", p.prefix, entry.RemotePath, outcome.Err)
	}
}

func formatBytes(n int64) string {
	return fmt.Sprintf("%.2f MB", float64(n)/1048576.0)
}
