package source

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Sumatoshi-tech/prescan/pkg/model"
)

// Replayer yields events from a complete enumeration log.
type Replayer struct {
	f      *os.File
	r      *bufio.Reader
	root   string
	offset int64
	track  tracker
	done   bool
}

// OpenReplay opens the log at logPath and positions it at cursor. When the
// cursor points inside a sibling group, the already-consumed siblings are
// passed to onSkip before OpenReplay returns.
func OpenReplay(logPath, root string, cursor Cursor, onSkip SkipFunc) (*Replayer, error) {
	f, err := os.Open(logPath)
	if err != nil {
		return nil, fmt.Errorf("open enumeration log: %w", err)
	}

	rp := &Replayer{
		f:     f,
		r:     bufio.NewReaderSize(f, logBufferSize),
		root:  root,
		track: newTracker(cursor),
	}

	start := cursor.Offset
	if !cursor.LastDone && cursor.LastPath != "" && onSkip != nil {
		start = cursor.GroupOffset
	}

	seekErr := rp.seek(start)
	if seekErr != nil {
		f.Close()

		return nil, seekErr
	}

	if start < cursor.Offset {
		parent := model.ParentOf(cursor.LastPath)

		feedErr := rp.feed(cursor.Offset, parent, onSkip)
		if feedErr != nil {
			f.Close()

			return nil, feedErr
		}
	}

	return rp, nil
}

func (rp *Replayer) seek(offset int64) error {
	if offset == 0 {
		header, err := rp.r.ReadString('\n')
		if err != nil || header != logHeader {
			return fmt.Errorf("%w: bad header", ErrLogCorrupt)
		}

		rp.offset = int64(len(header))

		return nil
	}

	_, err := rp.f.Seek(offset, io.SeekStart)
	if err != nil {
		return fmt.Errorf("seek enumeration log: %w", err)
	}

	rp.r.Reset(rp.f)
	rp.offset = offset

	return nil
}

// feed reads lines up to end, passing items whose parent is parent to onSkip.
func (rp *Replayer) feed(end int64, parent string, onSkip SkipFunc) error {
	for rp.offset < end {
		line, err := rp.readLine()
		if err != nil {
			return err
		}

		ev, decodeErr := decodeEvent(line, rp.root)
		if decodeErr != nil {
			return decodeErr
		}

		if ev.Kind == EventItem && ev.Item.Parent() == parent {
			onSkip(&ev.Item)
		}
	}

	if rp.offset != end {
		return fmt.Errorf("%w: cursor offset %d is not a line boundary", ErrLogCorrupt, end)
	}

	return nil
}

func (rp *Replayer) readLine() (string, error) {
	line, err := rp.r.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) {
			return "", ErrLogIncomplete
		}

		return "", fmt.Errorf("read enumeration log: %w", err)
	}

	rp.offset += int64(len(line))

	return strings.TrimSuffix(line, "\n"), nil
}

// Next implements Source.
func (rp *Replayer) Next(ctx context.Context) (Event, error) {
	if rp.done {
		return Event{}, io.EOF
	}

	err := ctx.Err()
	if err != nil {
		return Event{}, err
	}

	start := rp.offset

	line, err := rp.readLine()
	if err != nil {
		return Event{}, err
	}

	if line == logComplete {
		rp.done = true

		return Event{}, io.EOF
	}

	ev, err := decodeEvent(line, rp.root)
	if err != nil {
		return Event{}, err
	}

	ev.start, ev.end = start, rp.offset
	rp.track.advance(&ev, start, rp.offset)

	return ev, nil
}

// Cursor implements Source.
func (rp *Replayer) Cursor() Cursor {
	return rp.track.cur
}

// Sync implements Source; a replayed log is already durable.
func (rp *Replayer) Sync() error {
	return nil
}

// LogComplete implements LogCompleter; only complete logs are replayed.
func (rp *Replayer) LogComplete() bool {
	return true
}

// Close implements Source.
func (rp *Replayer) Close() error {
	return rp.f.Close()
}
