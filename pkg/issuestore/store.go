// Package issuestore keeps scan issues in a bounded in-memory list backed by a
// durable NDJSON issue log that always holds every issue.
package issuestore

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/Sumatoshi-tech/prescan/pkg/model"
)

// FileName is the issue log's default name.
const FileName = "issues.ndjson"

// DefaultCap is the default number of issues kept in memory.
const DefaultCap = 10000

// ErrLogShort is returned when an issue log is shorter than a checkpoint recorded.
var ErrLogShort = errors.New("issue log shorter than checkpoint")

// Position is the issue-log state stored in a checkpoint.
type Position struct {
	Offset    int64 `json:"offset"`
	Count     int64 `json:"count"`
	Truncated bool  `json:"truncated,omitempty"`
}

// Store holds issues. It is safe for concurrent use; the issues of one Emit
// call are written as a contiguous group.
type Store struct {
	mu        sync.Mutex
	capacity  int
	issues    []model.Issue
	truncated bool
	count     int64

	path   string
	f      *os.File
	w      *bufio.Writer
	offset int64
}

// Open creates a store. An empty path keeps issues in memory only. With a
// resume position the log is cut back to the recorded offset and the
// in-memory list is reloaded from it.
func Open(path string, capacity int, resume *Position) (*Store, error) {
	if capacity <= 0 {
		capacity = DefaultCap
	}

	s := &Store{capacity: capacity, path: path}

	if path == "" {
		return s, nil
	}

	if resume == nil {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, fmt.Errorf("create issue log: %w", err)
		}

		s.f = f
		s.w = bufio.NewWriter(f)

		return s, nil
	}

	err := s.reopen(resume)
	if err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Store) reopen(pos *Position) error {
	f, err := os.OpenFile(s.path, os.O_RDWR, 0o600)
	if err != nil {
		return fmt.Errorf("open issue log: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()

		return fmt.Errorf("stat issue log: %w", err)
	}

	if info.Size() < pos.Offset {
		f.Close()

		return fmt.Errorf("%w: %d bytes, checkpoint at %d", ErrLogShort, info.Size(), pos.Offset)
	}

	err = f.Truncate(pos.Offset)
	if err != nil {
		f.Close()

		return fmt.Errorf("truncate issue log: %w", err)
	}

	loaded, err := readIssues(io.NewSectionReader(f, 0, pos.Offset), s.capacity)
	if err != nil {
		f.Close()

		return err
	}

	_, err = f.Seek(pos.Offset, io.SeekStart)
	if err != nil {
		f.Close()

		return fmt.Errorf("seek issue log: %w", err)
	}

	s.f = f
	s.w = bufio.NewWriter(f)
	s.offset = pos.Offset
	s.count = pos.Count
	s.issues = loaded
	s.truncated = pos.Truncated || pos.Count > int64(len(loaded))

	return nil
}

func readIssues(r io.Reader, limit int) ([]model.Issue, error) {
	var out []model.Issue

	err := scan(r, func(issue *model.Issue) bool {
		out = append(out, *issue)

		return len(out) < limit
	})

	return out, err
}

// Emit records a group of issues. The log lines are flushed to the operating
// system before Emit returns.
func (s *Store) Emit(issues []model.Issue) error {
	if len(issues) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range issues {
		s.count++

		if len(s.issues) < s.capacity {
			s.issues = append(s.issues, issues[i])
		} else {
			s.truncated = true
		}
	}

	if s.w == nil {
		return nil
	}

	for i := range issues {
		line, err := json.Marshal(&issues[i])
		if err != nil {
			return fmt.Errorf("encode issue: %w", err)
		}

		line = append(line, '\n')

		n, err := s.w.Write(line)
		s.offset += int64(n)

		if err != nil {
			return fmt.Errorf("write issue log: %w", err)
		}
	}

	err := s.w.Flush()
	if err != nil {
		return fmt.Errorf("flush issue log: %w", err)
	}

	return nil
}

// Sync fsyncs the issue log.
func (s *Store) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.f == nil {
		return nil
	}

	err := s.w.Flush()
	if err != nil {
		return fmt.Errorf("flush issue log: %w", err)
	}

	err = s.f.Sync()
	if err != nil {
		return fmt.Errorf("sync issue log: %w", err)
	}

	return nil
}

// Position returns the current log position for a checkpoint.
func (s *Store) Position() Position {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Position{Offset: s.offset, Count: s.count, Truncated: s.truncated}
}

// Issues returns a copy of the in-memory issues in emission order.
func (s *Store) Issues() []model.Issue {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]model.Issue(nil), s.issues...)
}

// Count returns the total number of issues emitted, including those only in the log.
func (s *Store) Count() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.count
}

// Truncated reports whether any issue was kept only in the log.
func (s *Store) Truncated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.truncated
}

// Path returns the issue log path, or "" for a memory-only store.
func (s *Store) Path() string {
	return s.path
}

// Close flushes and closes the log.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.f == nil {
		return nil
	}

	flushErr := s.w.Flush()
	closeErr := s.f.Close()
	s.f = nil
	s.w = nil

	return errors.Join(flushErr, closeErr)
}
