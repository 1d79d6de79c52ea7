package arkv

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"
)

// errConnLost simulates a transport failure. The message matches the
// substrings isTransportError looks for.
var errConnLost = errors.New("connection lost")

// fakeFileInfo implements os.FileInfo for the fake remote filesystem.
type fakeFileInfo struct {
	name  string
	size  int64
	isDir bool
}

func (f *fakeFileInfo) Name() string       { return f.name }
func (f *fakeFileInfo) Size() int64        { return f.size }
func (f *fakeFileInfo) Mode() os.FileMode  { return 0644 }
func (f *fakeFileInfo) ModTime() time.Time { return time.Time{} }
func (f *fakeFileInfo) IsDir() bool        { return f.isDir }
func (f *fakeFileInfo) Sys() any           { return nil }

// fakeRemoteFS is an in-memory RemoteFS for testing the engine without a
// network endpoint. Errors can be injected per operation and per path, and
// the whole filesystem can be switched into a "connection lost" state.
type fakeRemoteFS struct {
	mu    sync.Mutex
	dirs  map[string]bool
	files map[string][]byte

	statErr   map[string]error
	mkdirErr  map[string]error
	createErr map[string]error

	// failWriteAfter makes writes to a path fail once this many bytes
	// have been accepted. -1 (or absent) means never.
	failWriteAfter map[string]int64

	// stallWrite blocks writes to a path until the channel is closed,
	// simulating a half-open connection that stops acknowledging data.
	stallWrite map[string]chan struct{}

	// broken makes every subsequent operation fail with errConnLost.
	broken bool

	mkdirCalls []string
	closed     bool
}

func newFakeRemoteFS() *fakeRemoteFS {
	return &fakeRemoteFS{
		dirs:           map[string]bool{"/": true},
		files:          make(map[string][]byte),
		statErr:        make(map[string]error),
		mkdirErr:       make(map[string]error),
		createErr:      make(map[string]error),
		failWriteAfter: make(map[string]int64),
		stallWrite:     make(map[string]chan struct{}),
	}
}

func (f *fakeRemoteFS) addDir(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dirs[path] = true
}

func (f *fakeRemoteFS) addFile(path string, content []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[path] = content
}

func (f *fakeRemoteFS) breakConnection() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.broken = true
}

func (f *fakeRemoteFS) fileContent(path string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	content, ok := f.files[path]
	return content, ok
}

func (f *fakeRemoteFS) hasDir(path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dirs[path]
}

func (f *fakeRemoteFS) Stat(path string) (os.FileInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.broken {
		return nil, errConnLost
	}
	if err, ok := f.statErr[path]; ok {
		return nil, err
	}
	if f.dirs[path] {
		return &fakeFileInfo{name: path, isDir: true}, nil
	}
	if content, ok := f.files[path]; ok {
		return &fakeFileInfo{name: path, size: int64(len(content))}, nil
	}
	return nil, fs.ErrNotExist
}

func (f *fakeRemoteFS) Mkdir(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.mkdirCalls = append(f.mkdirCalls, path)

	if f.broken {
		return errConnLost
	}
	if err, ok := f.mkdirErr[path]; ok {
		return err
	}
	if f.dirs[path] || f.files[path] != nil {
		return fs.ErrExist
	}
	f.dirs[path] = true
	return nil
}

func (f *fakeRemoteFS) Create(path string) (RemoteFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.broken {
		return nil, errConnLost
	}
	if err, ok := f.createErr[path]; ok {
		return nil, err
	}
	if f.dirs[path] {
		return nil, fmt.Errorf("%s is a directory", path)
	}

	f.files[path] = nil
	limit := int64(-1)
	if n, ok := f.failWriteAfter[path]; ok {
		limit = n
	}
	return &fakeRemoteFile{fs: f, path: path, limit: limit}, nil
}

func (f *fakeRemoteFS) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// fakeRemoteFile accumulates written bytes into the fake filesystem.
type fakeRemoteFile struct {
	fs      *fakeRemoteFS
	path    string
	limit   int64
	written int64
}

func (w *fakeRemoteFile) Write(p []byte) (int, error) {
	w.fs.mu.Lock()
	stall := w.fs.stallWrite[w.path]
	w.fs.mu.Unlock()
	if stall != nil {
		<-stall
	}

	w.fs.mu.Lock()
	defer w.fs.mu.Unlock()

	if w.fs.broken {
		return 0, errConnLost
	}
	if w.limit >= 0 && w.written+int64(len(p)) > w.limit {
		return 0, errors.New("write failed: no space left on device")
	}

	w.fs.files[w.path] = append(w.fs.files[w.path], p...)
	w.written += int64(len(p))
	return len(p), nil
}

func (w *fakeRemoteFile) Close() error {
	w.fs.mu.Lock()
	defer w.fs.mu.Unlock()
	if w.fs.broken {
		return errConnLost
	}
	return nil
}

// recordingSink captures the event stream for assertions.
type recordingSink struct {
	mu       sync.Mutex
	events   []string
	bytes    map[string]int64
	outcomes map[string]Outcome

	// duplicates records remote paths that received more than one
	// EntryCompleted, which the engine must never produce.
	duplicates []string
}

func newRecordingSink() *recordingSink {
	return &recordingSink{
		bytes:    make(map[string]int64),
		outcomes: make(map[string]Outcome),
	}
}

func (s *recordingSink) PlanReady(plan *UploadPlan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, fmt.Sprintf("plan %d", len(plan.Entries)))
}

func (s *recordingSink) EntryStarted(entry UploadEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, "started "+entry.RemotePath)
}

func (s *recordingSink) BytesWritten(entry UploadEntry, delta int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, fmt.Sprintf("bytes %s %d", entry.RemotePath, delta))
	s.bytes[entry.RemotePath] += delta
}

func (s *recordingSink) DirectoryEnsured(remotePath string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, "dir "+remotePath)
}

func (s *recordingSink) EntryCompleted(entry UploadEntry, outcome Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, fmt.Sprintf("completed %s %s", entry.RemotePath, outcome.Status))
	if _, ok := s.outcomes[entry.RemotePath]; ok {
		s.duplicates = append(s.duplicates, entry.RemotePath)
	}
	s.outcomes[entry.RemotePath] = outcome
}

func (s *recordingSink) eventList() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.events))
	copy(out, s.events)
	return out
}

func (s *recordingSink) outcome(remotePath string) (Outcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	oc, ok := s.outcomes[remotePath]
	return oc, ok
}
