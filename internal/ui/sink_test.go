package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ehamiter/arkv"
)

func fileEntry(remote string) arkv.UploadEntry {
	return arkv.UploadEntry{RemotePath: remote, Kind: arkv.KindFile}
}

func TestNewSink(t *testing.T) {
	var out bytes.Buffer

	singleFile := &arkv.UploadPlan{TotalFiles: 1}
	tree := &arkv.UploadPlan{TotalFiles: 3, TotalDirs: 2}

	assert.IsType(t, &SpinnerSink{}, NewSink(&out, "vps", singleFile, true))
	assert.IsType(t, &BarSink{}, NewSink(&out, "vps", tree, true))
	assert.IsType(t, &PlainSink{}, NewSink(&out, "vps", singleFile, false))
}

func TestSpinnerSink(t *testing.T) {
	var out bytes.Buffer
	s := NewSpinnerSink(&out)

	entry := fileEntry("/uploads/report.pdf")
	s.EntryStarted(entry)
	s.BytesWritten(entry, 1048576)
	s.EntryCompleted(entry, arkv.Outcome{Status: arkv.OutcomeSucceeded})

	output := out.String()
	assert.Contains(t, output, "Uploading report.pdf")
	assert.Contains(t, output, "1.00 MB")
	assert.Contains(t, output, "✓ Uploaded report.pdf")
}

func TestSpinnerSink_Failure(t *testing.T) {
	var out bytes.Buffer
	s := NewSpinnerSink(&out)

	entry := fileEntry("/uploads/report.pdf")
	s.EntryStarted(entry)
	s.EntryCompleted(entry, arkv.Outcome{Status: arkv.OutcomeFailed, Err: errors.New("disk full")})

	assert.Contains(t, out.String(), "✗ Failed report.pdf: disk full")
}

func TestBarSink(t *testing.T) {
	var out bytes.Buffer
	b := NewBarSink(&out)

	plan := &arkv.UploadPlan{TotalFiles: 2, TotalDirs: 1}
	b.PlanReady(plan)

	dir := arkv.UploadEntry{RemotePath: "/u/d", Kind: arkv.KindDir}
	b.EntryCompleted(dir, arkv.Outcome{Status: arkv.OutcomeSucceeded})
	assert.Contains(t, out.String(), "0/2 files")

	a := fileEntry("/u/d/a.txt")
	b.EntryStarted(a)
	b.EntryCompleted(a, arkv.Outcome{Status: arkv.OutcomeSucceeded})
	assert.Contains(t, out.String(), "1/2 files")
	assert.Contains(t, out.String(), "a.txt")

	c := fileEntry("/u/d/b.txt")
	b.EntryStarted(c)
	b.EntryCompleted(c, arkv.Outcome{Status: arkv.OutcomeSucceeded})
	assert.Contains(t, out.String(), "2/2 files")

	// Finished bar is fully filled.
	assert.Contains(t, out.String(), strings.Repeat("#", 40))
}

func TestBarSink_FailureLine(t *testing.T) {
	var out bytes.Buffer
	b := NewBarSink(&out)
	b.PlanReady(&arkv.UploadPlan{TotalFiles: 2})

	entry := fileEntry("/u/bad.txt")
	b.EntryStarted(entry)
	b.EntryCompleted(entry, arkv.Outcome{Status: arkv.OutcomeFailed, Err: errors.New("no space")})

	assert.Contains(t, out.String(), "✗ /u/bad.txt: no space")
	assert.Contains(t, out.String(), "1/2 files")
}

func TestPlainSink(t *testing.T) {
	var out bytes.Buffer
	p := NewPlainSink(&out, "vps")

	p.PlanReady(&arkv.UploadPlan{TotalFiles: 2, TotalBytes: 3145728})

	p.EntryCompleted(fileEntry("/u/a.txt"), arkv.Outcome{Status: arkv.OutcomeSucceeded})
	p.EntryCompleted(fileEntry("/u/bad.txt"), arkv.Outcome{Status: arkv.OutcomeFailed, Err: errors.New("boom")})
	p.EntryCompleted(
		arkv.UploadEntry{RemotePath: "/u/link", Kind: arkv.KindSymlink},
		arkv.Outcome{Status: arkv.OutcomeSkipped, Reason: arkv.SkipSymlink},
	)
	// Directory successes stay quiet in plain mode.
	p.EntryCompleted(
		arkv.UploadEntry{RemotePath: "/u/d", Kind: arkv.KindDir},
		arkv.Outcome{Status: arkv.OutcomeSucceeded},
	)

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	assert.Len(t, lines, 4)
	assert.Equal(t, "[vps] uploading 2 files (3.00 MB)", lines[0])
	assert.Equal(t, "[vps] uploaded /u/a.txt", lines[1])
	assert.Equal(t, "[vps] failed /u/bad.txt: boom", lines[2])
	assert.Contains(t, lines[3], "skipped /u/link")
}

func TestPlainSink_NoPrefix(t *testing.T) {
	var out bytes.Buffer
	p := NewPlainSink(&out, "")

	p.EntryCompleted(fileEntry("/u/a.txt"), arkv.Outcome{Status: arkv.OutcomeSucceeded})
	assert.Equal(t, "uploaded /u/a.txt\n", out.String())
}

func TestFormatSummary(t *testing.T) {
	summary := &arkv.UploadSummary{BytesTransferred: 2097152, Elapsed: 2e9}
	got := FormatSummary("vps", summary)
	assert.Equal(t, "vps: 2.00 MB in 2.0s (1.00 MB/s)", got)
}
