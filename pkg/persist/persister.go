package persist

import (
	"errors"
	"io/fs"
	"os"
)

// Persister handles I/O for a specific state type using a Codec.
type Persister[T any] struct {
	basename string
	codec    Codec
}

// NewPersister creates a persister with the given basename and codec.
func NewPersister[T any](basename string, codec Codec) *Persister[T] {
	return &Persister[T]{
		basename: basename,
		codec:    codec,
	}
}

// Path returns the file the persister writes inside dir.
func (p *Persister[T]) Path(dir string) string {
	return Path(dir, p.basename, p.codec)
}

// Exists reports whether a state file is present in dir.
func (p *Persister[T]) Exists(dir string) bool {
	_, err := os.Stat(p.Path(dir))

	return err == nil
}

// Save atomically writes state to the given directory.
func (p *Persister[T]) Save(dir string, state *T) error {
	return SaveState(dir, p.basename, p.codec, state)
}

// Load reads state from the given directory. A missing file is reported as
// an error wrapping fs.ErrNotExist.
func (p *Persister[T]) Load(dir string) (*T, error) {
	var state T

	err := LoadState(dir, p.basename, p.codec, &state)
	if err != nil {
		return nil, err
	}

	return &state, nil
}

// IsNotExist reports whether err means the state file was absent.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
