package source

import (
	"context"
	"errors"
	"io"
	"sync"
)

// DefaultPrefetch is the default number of events enumerated ahead of the consumer.
const DefaultPrefetch = 4096

type prefetched struct {
	ev  Event
	err error
}

// Prefetcher runs a Source in its own goroutine so enumeration proceeds ahead
// of validation. Its cursor follows what the consumer has taken, not what the
// inner source has produced.
type Prefetcher struct {
	inner  Source
	ch     chan prefetched
	cancel context.CancelFunc
	wg     sync.WaitGroup
	track  tracker
	eof    bool
	once   sync.Once

	// stopped is set before ch closes when the producer was cancelled.
	stopped error
}

// Prefetch starts enumerating inner in the background, buffering up to depth events.
func Prefetch(ctx context.Context, inner Source, depth int) *Prefetcher {
	if depth <= 0 {
		depth = DefaultPrefetch
	}

	ctx, cancel := context.WithCancel(ctx)

	p := &Prefetcher{
		inner:  inner,
		ch:     make(chan prefetched, depth),
		cancel: cancel,
		track:  newTracker(inner.Cursor()),
	}

	p.wg.Add(1)

	go p.produce(ctx)

	return p
}

func (p *Prefetcher) produce(ctx context.Context) {
	defer p.wg.Done()
	defer close(p.ch)

	for {
		ev, err := p.inner.Next(ctx)

		select {
		case p.ch <- prefetched{ev: ev, err: err}:
		case <-ctx.Done():
			p.stopped = ctx.Err()

			return
		}

		if err != nil {
			return
		}
	}
}

// Next implements Source.
func (p *Prefetcher) Next(ctx context.Context) (Event, error) {
	if p.eof {
		return Event{}, io.EOF
	}

	err := ctx.Err()
	if err != nil {
		return Event{}, err
	}

	select {
	case <-ctx.Done():
		return Event{}, ctx.Err()
	case r, ok := <-p.ch:
		if !ok {
			if p.stopped != nil {
				return Event{}, p.stopped
			}

			p.eof = true

			return Event{}, io.EOF
		}

		if r.err != nil {
			if errors.Is(r.err, io.EOF) {
				p.eof = true
			}

			return Event{}, r.err
		}

		p.track.advance(&r.ev, r.ev.start, r.ev.end)

		return r.ev, nil
	}
}

// Cursor implements Source.
func (p *Prefetcher) Cursor() Cursor {
	return p.track.cur
}

// Sync implements Source. The inner source may be ahead of Cursor; that is
// harmless because a resume truncates the log to the cursor.
func (p *Prefetcher) Sync() error {
	return p.inner.Sync()
}

// LogComplete implements LogCompleter.
func (p *Prefetcher) LogComplete() bool {
	lc, ok := p.inner.(LogCompleter)

	return ok && lc.LogComplete()
}

// Close stops the producer and closes the inner source.
func (p *Prefetcher) Close() error {
	var err error

	p.once.Do(func() {
		p.cancel()

		for range p.ch {
		}

		p.wg.Wait()
		err = p.inner.Close()
	})

	return err
}
