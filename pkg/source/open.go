package source

import (
	"errors"
	"fmt"
	"log/slog"
)

// Position is the enumeration state stored in a checkpoint.
type Position struct {
	Cursor      Cursor   `json:"cursor"`
	LogComplete bool     `json:"logComplete,omitempty"`
	LogIdentity Identity `json:"logIdentity,omitempty"`
}

// Options selects how Open builds a Source.
type Options struct {
	Root string
	// LogPath is the enumeration log; empty disables recording and replay.
	LogPath   string
	Exclude   []string
	Resume    *Position
	Processed func(rel string) bool
	OnSkip    SkipFunc
	Logger    *slog.Logger
}

// Mode tells how Open positioned the source.
type Mode string

// Source modes.
const (
	ModeFresh  Mode = "fresh"
	ModeReplay Mode = "replay"
	ModeRewalk Mode = "rewalk"
)

// ErrCannotResume reports that a stored position could not be honoured; the
// caller should discard its checkpoint and start fresh.
var ErrCannotResume = errors.New("cannot resume enumeration")

// Open returns a Source for opts. With a Resume position it replays a
// complete, unchanged log, or truncates an incomplete log to the cursor and
// walks live from there.
func Open(opts Options) (Source, Mode, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	walkOpts := WalkerOptions{
		Exclude:   opts.Exclude,
		Processed: opts.Processed,
		Logger:    logger,
	}

	if opts.Resume == nil || opts.LogPath == "" {
		return openFresh(opts, walkOpts)
	}

	pos := opts.Resume

	// The root must still be there before any log is touched.
	probe, rootErr := NewWalker(opts.Root, walkOpts)
	if rootErr != nil {
		return nil, "", rootErr
	}

	if pos.LogComplete {
		verifyErr := VerifyLog(opts.LogPath, pos.LogIdentity)
		if verifyErr != nil {
			return nil, "", fmt.Errorf("%w: %w", ErrCannotResume, verifyErr)
		}

		rp, err := OpenReplay(opts.LogPath, probe.Root(), pos.Cursor, opts.OnSkip)
		if err != nil {
			return nil, "", fmt.Errorf("%w: %w", ErrCannotResume, err)
		}

		return rp, ModeReplay, nil
	}

	lw, err := AppendLog(opts.LogPath, pos.Cursor.Offset)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrCannotResume, err)
	}

	walkOpts.Log = lw
	walkOpts.Resume = pos.Cursor
	walkOpts.OnSkip = opts.OnSkip

	w, err := NewWalker(opts.Root, walkOpts)
	if err != nil {
		lw.Close()

		return nil, "", err
	}

	return w, ModeRewalk, nil
}

func openFresh(opts Options, walkOpts WalkerOptions) (Source, Mode, error) {
	w, err := NewWalker(opts.Root, walkOpts)
	if err != nil {
		return nil, "", err
	}

	if opts.LogPath == "" {
		return w, ModeFresh, nil
	}

	lw, err := CreateLog(opts.LogPath)
	if err != nil {
		return nil, "", err
	}

	w.opts.Log = lw
	w.track.cur.Offset = lw.Offset()

	return w, ModeFresh, nil
}
