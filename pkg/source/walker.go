package source

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Sumatoshi-tech/prescan/pkg/model"
)

// WalkerOptions configures a live walk.
type WalkerOptions struct {
	// Exclude lists directory names or glob patterns skipped with their subtree.
	Exclude []string
	// Log, when set, receives every event. The walker owns it from then on.
	Log *LogWriter
	// Resume continues after this cursor instead of from the beginning.
	Resume Cursor
	// Processed reports directories whose subtree is already fully handled.
	Processed func(rel string) bool
	// OnSkip receives already-consumed siblings of Resume.LastPath.
	OnSkip SkipFunc
	Logger *slog.Logger
}

// Walker enumerates a directory tree live.
//
// For every directory it yields all direct children sorted by name, then
// descends into the child directories in the same order, then yields an
// EventDirDone for the directory. Symbolic links and reparse points are
// reported but never followed.
type Walker struct {
	root    string
	opts    WalkerOptions
	exclude *Excluder
	logger  *slog.Logger

	stack   []*frame
	pending []Event
	track   tracker
	done    bool

	resume     []string
	resumeDone bool
}

type frame struct {
	rel     string
	abs     string
	depth   int
	onPath  bool
	loaded  bool
	entries []fs.DirEntry
	next    int
	subdirs []string
	descend int

	// skipThrough suppresses children named up to and including it.
	skipThrough string
}

// NewWalker prepares a walk of root. The root itself is never yielded.
func NewWalker(root string, opts WalkerOptions) (*Walker, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRootInaccessible, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRootInaccessible, err)
	}

	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrRootInaccessible, abs)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	w := &Walker{
		root:    abs,
		opts:    opts,
		exclude: NewExcluder(opts.Exclude),
		logger:  logger,
		track:   newTracker(opts.Resume),
	}

	if opts.Log != nil && opts.Resume.Offset == 0 {
		w.track.cur.Offset = opts.Log.Offset()
	}

	if opts.Resume.LastPath != "" {
		w.resume = strings.Split(opts.Resume.LastPath, "/")
		w.resumeDone = opts.Resume.LastDone
	}

	w.stack = append(w.stack, &frame{abs: abs, onPath: len(w.resume) > 0})

	return w, nil
}

// Root returns the absolute scan root.
func (w *Walker) Root() string {
	return w.root
}

// Next implements Source.
func (w *Walker) Next(ctx context.Context) (Event, error) {
	for {
		if len(w.pending) > 0 {
			ev := w.pending[0]
			w.pending = w.pending[1:]

			return w.emit(ev), nil
		}

		if w.done {
			return Event{}, io.EOF
		}

		err := ctx.Err()
		if err != nil {
			return Event{}, err
		}

		if len(w.stack) == 0 {
			w.finish()

			return Event{}, io.EOF
		}

		top := w.stack[len(w.stack)-1]

		if !top.loaded {
			loadErr := w.load(top)
			if loadErr != nil {
				return Event{}, loadErr
			}

			continue
		}

		if top.next < len(top.entries) {
			entry := top.entries[top.next]
			top.next++

			ev, ok := w.child(top, entry)
			if ok {
				return w.emit(ev), nil
			}

			continue
		}

		top.entries = nil

		if top.descend < len(top.subdirs) {
			w.push(top, top.subdirs[top.descend])
			top.descend++

			continue
		}

		w.stack = w.stack[:len(w.stack)-1]

		if top.rel != "" {
			return w.emit(Event{Kind: EventDirDone, Path: top.rel}), nil
		}
	}
}

func (w *Walker) push(parent *frame, name string) {
	rel := joinRel(parent.rel, name)

	onPath := false

	if parent.onPath {
		last := parent.depth == len(w.resume)-1
		onPath = !last && w.resume[parent.depth] == name
	}

	if !onPath && w.opts.Processed != nil && w.opts.Processed(rel) {
		return
	}

	w.stack = append(w.stack, &frame{
		rel:    rel,
		abs:    filepath.Join(parent.abs, name),
		depth:  parent.depth + 1,
		onPath: onPath,
	})
}

// load reads a directory and applies resume positioning.
func (w *Walker) load(f *frame) error {
	f.loaded = true

	entries, err := os.ReadDir(f.abs)
	if err != nil {
		if f.rel == "" {
			return fmt.Errorf("%w: %w", ErrRootInaccessible, err)
		}

		w.pending = append(w.pending, Event{
			Kind: EventError,
			Path: f.rel,
			Err:  model.EnumerationError{Path: f.abs, Message: err.Error()},
		})

		return nil
	}

	f.entries = entries

	if !f.onPath {
		return nil
	}

	target := w.resume[f.depth]
	last := f.depth == len(w.resume)-1

	if last && !w.resumeDone {
		f.skipThrough = target

		return nil
	}

	// Every child of an ancestor of the cursor was already yielded; only the
	// directories at or after the cursor still need descending.
	for _, entry := range entries {
		name := entry.Name()

		if name < target || (last && name == target) {
			continue
		}

		if entry.IsDir() && !w.exclude.Match(name) {
			f.subdirs = append(f.subdirs, name)
		}
	}

	f.entries = nil

	return nil
}

func (w *Walker) child(f *frame, entry fs.DirEntry) (Event, bool) {
	name := entry.Name()
	rel := joinRel(f.rel, name)
	skipping := f.skipThrough != "" && name <= f.skipThrough

	if entry.IsDir() && w.exclude.Match(name) {
		if !skipping {
			w.logger.Debug("source: skipping excluded directory", "path", rel)
		}

		return Event{}, false
	}

	item, err := w.item(f, entry, rel)
	if err != nil {
		if skipping {
			return Event{}, false
		}

		return Event{
			Kind: EventError,
			Path: rel,
			Err:  model.EnumerationError{Path: item.Path, Message: err.Error()},
		}, true
	}

	if item.IsDir && !item.Attrs.Has(model.AttrReparse) {
		f.subdirs = append(f.subdirs, name)
	}

	if skipping {
		if w.opts.OnSkip != nil {
			w.opts.OnSkip(&item)
		}

		return Event{}, false
	}

	return Event{Kind: EventItem, Item: item}, true
}

func (w *Walker) item(f *frame, entry fs.DirEntry, rel string) (model.Item, error) {
	abs := filepath.Join(f.abs, entry.Name())
	item := model.Item{Path: abs, Name: entry.Name(), RelPath: rel, IsDir: entry.IsDir()}

	info, err := entry.Info()
	if err != nil {
		return item, fmt.Errorf("stat: %w", err)
	}

	item.Attrs = platformAttrs(abs, info)

	if info.Mode()&fs.ModeSymlink != 0 {
		item.Attrs |= model.AttrReparse
		item.IsDir = false
	}

	if !item.IsDir {
		item.Size = info.Size()
	}

	return item, nil
}

func (w *Walker) emit(ev Event) Event {
	if w.opts.Log != nil {
		// Write errors are sticky in the log and surface from Sync.
		ev.start, ev.end, _ = w.opts.Log.Write(&ev)
	}

	w.track.advance(&ev, ev.start, ev.end)

	return ev
}

func (w *Walker) finish() {
	w.done = true

	if w.opts.Log != nil {
		_ = w.opts.Log.Complete()
	}
}

// Cursor implements Source.
func (w *Walker) Cursor() Cursor {
	return w.track.cur
}

// Sync implements Source. It fails once any log write has failed, since the
// log no longer matches the cursor.
func (w *Walker) Sync() error {
	if w.opts.Log == nil {
		return nil
	}

	return w.opts.Log.Sync()
}

// LogComplete implements LogCompleter.
func (w *Walker) LogComplete() bool {
	return w.opts.Log != nil && w.opts.Log.Completed()
}

// Close implements Source.
func (w *Walker) Close() error {
	if w.opts.Log == nil {
		return nil
	}

	return w.opts.Log.Close()
}

func joinRel(parent, name string) string {
	if parent == "" {
		return name
	}

	return parent + "/" + name
}
