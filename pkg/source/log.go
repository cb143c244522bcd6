package source

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/Sumatoshi-tech/prescan/pkg/model"
)

// LogFileName is the enumeration log's name inside a checkpoint directory.
const LogFileName = "enumeration.log"

const (
	logHeader   = "#prescan-enumeration v1\n"
	logComplete = "#complete"

	tagFile  = "F"
	tagDir   = "D"
	tagDone  = "C"
	tagError = "E"

	logBufferSize = 64 * 1024
)

// Identity pins an enumeration log so a resume can tell whether it changed.
type Identity struct {
	Size    int64 `json:"size"`
	ModTime int64 `json:"modTime"`
}

// StatLog returns the current identity of the log at path.
func StatLog(path string) (Identity, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Identity{}, fmt.Errorf("stat enumeration log: %w", err)
	}

	return Identity{Size: info.Size(), ModTime: info.ModTime().UnixNano()}, nil
}

// VerifyLog checks that the log at path still has the recorded identity.
func VerifyLog(path string, want Identity) error {
	got, err := StatLog(path)
	if err != nil {
		return err
	}

	if got != want {
		return fmt.Errorf("%w: size %d/%d, mtime %s/%s", ErrLogChanged,
			got.Size, want.Size,
			time.Unix(0, got.ModTime).UTC().Format(time.RFC3339Nano),
			time.Unix(0, want.ModTime).UTC().Format(time.RFC3339Nano))
	}

	return nil
}

// LogWriter appends events to an enumeration log. It is safe for concurrent
// use. The first write error is sticky: every later call returns it.
type LogWriter struct {
	mu       sync.Mutex
	f        *os.File
	w        *bufio.Writer
	offset   int64
	err      error
	complete bool
}

// CreateLog starts a new, empty log at path.
func CreateLog(path string) (*LogWriter, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create enumeration log: %w", err)
	}

	lw := &LogWriter{f: f, w: bufio.NewWriterSize(f, logBufferSize)}

	n, writeErr := lw.w.WriteString(logHeader)
	if writeErr != nil {
		f.Close()

		return nil, fmt.Errorf("write enumeration log header: %w", writeErr)
	}

	lw.offset = int64(n)

	return lw, nil
}

// AppendLog reopens the log at path, discarding everything after offset.
func AppendLog(path string, offset int64) (*LogWriter, error) {
	if offset <= 0 {
		return CreateLog(path)
	}

	f, err := os.OpenFile(path, os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open enumeration log: %w", err)
	}

	info, statErr := f.Stat()
	if statErr != nil {
		f.Close()

		return nil, fmt.Errorf("stat enumeration log: %w", statErr)
	}

	if info.Size() < offset {
		f.Close()

		return nil, fmt.Errorf("%w: %d bytes, cursor at %d", ErrLogCorrupt, info.Size(), offset)
	}

	truncErr := f.Truncate(offset)
	if truncErr != nil {
		f.Close()

		return nil, fmt.Errorf("truncate enumeration log: %w", truncErr)
	}

	_, seekErr := f.Seek(offset, io.SeekStart)
	if seekErr != nil {
		f.Close()

		return nil, fmt.Errorf("seek enumeration log: %w", seekErr)
	}

	return &LogWriter{f: f, w: bufio.NewWriterSize(f, logBufferSize), offset: offset}, nil
}

// Offset returns the byte offset after the last written line.
func (l *LogWriter) Offset() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.offset
}

// Write appends ev and returns the offsets where its line starts and ends.
func (l *LogWriter) Write(ev *Event) (start, end int64, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	start = l.offset
	if l.err != nil {
		return start, start, l.err
	}

	n, err := l.w.WriteString(encodeEvent(ev))
	l.offset += int64(n)

	if err != nil {
		l.err = fmt.Errorf("write enumeration log: %w", err)

		return start, l.offset, l.err
	}

	return start, l.offset, nil
}

// Complete appends the completion marker and syncs the log.
func (l *LogWriter) Complete() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.err != nil {
		return l.err
	}

	n, err := l.w.WriteString(logComplete + "\n")
	l.offset += int64(n)

	if err != nil {
		l.err = fmt.Errorf("write enumeration log: %w", err)

		return l.err
	}

	err = l.syncLocked()
	if err != nil {
		return err
	}

	l.complete = true

	return nil
}

// Completed reports whether the completion marker is durable.
func (l *LogWriter) Completed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.complete
}

// Sync flushes buffered lines and fsyncs the file.
func (l *LogWriter) Sync() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.syncLocked()
}

func (l *LogWriter) syncLocked() error {
	if l.err != nil {
		return l.err
	}

	err := l.w.Flush()
	if err != nil {
		l.err = fmt.Errorf("flush enumeration log: %w", err)

		return l.err
	}

	err = l.f.Sync()
	if err != nil {
		l.err = fmt.Errorf("sync enumeration log: %w", err)

		return l.err
	}

	return nil
}

// Close flushes and closes the file.
func (l *LogWriter) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	flushErr := l.w.Flush()
	closeErr := l.f.Close()

	return errors.Join(flushErr, closeErr)
}

func encodeEvent(ev *Event) string {
	var b strings.Builder

	switch ev.Kind {
	case EventItem:
		tag := tagFile
		if ev.Item.IsDir {
			tag = tagDir
		}

		b.WriteString(tag)
		b.WriteByte('\t')
		b.WriteString(strconv.FormatInt(ev.Item.Size, 10))
		b.WriteByte('\t')
		b.WriteString(strconv.FormatUint(uint64(ev.Item.Attrs), 10))
		b.WriteByte('\t')
		b.WriteString(strconv.Quote(ev.Item.RelPath))
	case EventDirDone:
		b.WriteString(tagDone)
		b.WriteByte('\t')
		b.WriteString(strconv.Quote(ev.Path))
	case EventError:
		b.WriteString(tagError)
		b.WriteByte('\t')
		b.WriteString(strconv.Quote(ev.Path))
		b.WriteByte('\t')
		b.WriteString(strconv.Quote(ev.Err.Message))
	}

	b.WriteByte('\n')

	return b.String()
}

// decodeEvent parses one log line without its trailing newline. root is used
// to rebuild absolute paths.
func decodeEvent(line, root string) (Event, error) {
	fields := strings.Split(line, "\t")

	switch fields[0] {
	case tagFile, tagDir:
		if len(fields) != 4 {
			return Event{}, fmt.Errorf("%w: %q", ErrLogCorrupt, line)
		}

		size, sizeErr := strconv.ParseInt(fields[1], 10, 64)
		attrs, attrErr := strconv.ParseUint(fields[2], 10, 8)
		rel, relErr := strconv.Unquote(fields[3])

		if err := errors.Join(sizeErr, attrErr, relErr); err != nil {
			return Event{}, fmt.Errorf("%w: %q: %w", ErrLogCorrupt, line, err)
		}

		item := model.Item{
			Path:    absPath(root, rel),
			Name:    path.Base(rel),
			RelPath: rel,
			IsDir:   fields[0] == tagDir,
			Size:    size,
			Attrs:   model.Attribute(attrs),
		}

		return Event{Kind: EventItem, Item: item}, nil
	case tagDone:
		if len(fields) != 2 {
			return Event{}, fmt.Errorf("%w: %q", ErrLogCorrupt, line)
		}

		rel, err := strconv.Unquote(fields[1])
		if err != nil {
			return Event{}, fmt.Errorf("%w: %q: %w", ErrLogCorrupt, line, err)
		}

		return Event{Kind: EventDirDone, Path: rel}, nil
	case tagError:
		if len(fields) != 3 {
			return Event{}, fmt.Errorf("%w: %q", ErrLogCorrupt, line)
		}

		rel, relErr := strconv.Unquote(fields[1])
		msg, msgErr := strconv.Unquote(fields[2])

		if err := errors.Join(relErr, msgErr); err != nil {
			return Event{}, fmt.Errorf("%w: %q: %w", ErrLogCorrupt, line, err)
		}

		return Event{
			Kind: EventError,
			Path: rel,
			Err:  model.EnumerationError{Path: absPath(root, rel), Message: msg},
		}, nil
	default:
		return Event{}, fmt.Errorf("%w: %q", ErrLogCorrupt, line)
	}
}

func absPath(root, rel string) string {
	if rel == "" {
		return root
	}

	return filepath.Join(root, filepath.FromSlash(rel))
}
