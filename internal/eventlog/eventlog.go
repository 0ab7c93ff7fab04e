package eventlog

import (
	"fmt"
	"os"
	"sync"
)

// FileMode is the permission used when a log file is created
const FileMode os.FileMode = 0600

// Sink is a durable, append-only destination for formatted event lines
type Sink interface {
	Append(line string) error
}

// IOError reports a failed append. It is the only failure the event log
// surfaces.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("event log %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// pathLocks serializes writers inside this process; flock covers other
// processes appending to the same file.
var pathLocks sync.Map // map[string]*sync.Mutex

func pathLock(path string) *sync.Mutex {
	mu, _ := pathLocks.LoadOrStore(path, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// Append writes line plus a newline to the file at destination, creating the
// file if absent. The parent directory must already exist. The whole line
// goes out in one write under an exclusive lock and is fsynced before Append
// returns.
func Append(line, destination string) error {
	mu := pathLock(destination)
	mu.Lock()
	defer mu.Unlock()

	f, err := os.OpenFile(destination, os.O_APPEND|os.O_CREATE|os.O_WRONLY, FileMode)
	if err != nil {
		return &IOError{Op: "open", Path: destination, Err: err}
	}
	defer f.Close()

	if err := lockFile(f); err != nil {
		return &IOError{Op: "lock", Path: destination, Err: err}
	}
	defer unlockFile(f)

	buf := make([]byte, 0, len(line)+1)
	buf = append(buf, line...)
	buf = append(buf, '\n')
	if _, err := f.Write(buf); err != nil {
		return &IOError{Op: "write", Path: destination, Err: err}
	}

	if err := f.Sync(); err != nil {
		return &IOError{Op: "sync", Path: destination, Err: err}
	}

	return nil
}

// FileSink appends to a fixed file path
type FileSink struct {
	Path string
}

// NewFileSink creates a sink bound to path
func NewFileSink(path string) *FileSink {
	return &FileSink{Path: path}
}

// Append implements Sink
func (s *FileSink) Append(line string) error {
	return Append(line, s.Path)
}

// MemorySink keeps lines in memory. Setting Err makes every Append fail
// with it, which lets tests exercise storage failures.
type MemorySink struct {
	mu    sync.Mutex
	lines []string
	Err   error
}

// NewMemorySink creates an empty in-memory sink
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Append implements Sink
func (s *MemorySink) Append(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Err != nil {
		return &IOError{Op: "write", Path: "memory", Err: s.Err}
	}
	s.lines = append(s.lines, line)
	return nil
}

// Lines returns a copy of the appended lines
func (s *MemorySink) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, len(s.lines))
	copy(out, s.lines)
	return out
}
