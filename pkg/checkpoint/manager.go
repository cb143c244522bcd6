package checkpoint

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Sumatoshi-tech/prescan/pkg/issuestore"
	"github.com/Sumatoshi-tech/prescan/pkg/persist"
	"github.com/Sumatoshi-tech/prescan/pkg/source"
)

// Sentinel errors for checkpoint validation.
var (
	ErrNoCheckpoint        = errors.New("no checkpoint")
	ErrCorrupt             = errors.New("checkpoint corrupt")
	ErrSchemaVersion       = errors.New("checkpoint schema version unsupported")
	ErrSourceMismatch      = errors.New("source root mismatch")
	ErrDestinationMismatch = errors.New("destination mismatch")
)

const (
	basename = "checkpoint"
	dirPerm  = 0o750
)

// DefaultDir returns the default checkpoint directory (~/.prescan/checkpoints).
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	return filepath.Join(home, ".prescan", "checkpoints")
}

// SourceHash computes a short hash of the source root for use as directory name.
func SourceHash(root string) string {
	h := sha256.Sum256([]byte(root))

	return hex.EncodeToString(h[:8])
}

// Manager locates and validates the checkpoint of one source root.
type Manager struct {
	BaseDir    string
	SourceHash string

	primary   *persist.Persister[Record]
	secondary *persist.Persister[Record]
}

// NewManager creates a manager. With compress set the record is written as
// lz4-framed JSON; either encoding is accepted on load.
func NewManager(baseDir, sourceRoot string, compress bool) *Manager {
	plain := persist.NewPersister[Record](basename, persist.NewJSONCodec())
	packed := persist.NewPersister[Record](basename, persist.NewLZ4Codec(persist.NewJSONCodec()))

	m := &Manager{BaseDir: baseDir, SourceHash: SourceHash(sourceRoot), primary: plain, secondary: packed}
	if compress {
		m.primary, m.secondary = packed, plain
	}

	return m
}

// Dir returns the directory holding this source's checkpoint artifacts.
func (m *Manager) Dir() string {
	return filepath.Join(m.BaseDir, m.SourceHash)
}

// Path returns the checkpoint record path.
func (m *Manager) Path() string {
	return m.primary.Path(m.Dir())
}

// EnumerationLogPath returns the enumeration log path.
func (m *Manager) EnumerationLogPath() string {
	return filepath.Join(m.Dir(), source.LogFileName)
}

// IssueLogPath returns the default issue log path.
func (m *Manager) IssueLogPath() string {
	return filepath.Join(m.Dir(), issuestore.FileName)
}

// Exists reports whether a checkpoint record is present.
func (m *Manager) Exists() bool {
	return m.primary.Exists(m.Dir()) || m.secondary.Exists(m.Dir())
}

// Prepare creates the checkpoint directory.
func (m *Manager) Prepare() error {
	err := os.MkdirAll(m.Dir(), dirPerm)
	if err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}

	return nil
}

// Save atomically writes rec.
func (m *Manager) Save(rec *Record) error {
	err := m.Prepare()
	if err != nil {
		return err
	}

	err = m.primary.Save(m.Dir(), rec)
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}

	// Drop a record left behind in the other encoding.
	_ = os.Remove(m.secondary.Path(m.Dir()))

	return nil
}

// Load reads the record. A missing record yields ErrNoCheckpoint and an
// unreadable one ErrCorrupt.
func (m *Manager) Load() (*Record, error) {
	for _, p := range []*persist.Persister[Record]{m.primary, m.secondary} {
		rec, err := p.Load(m.Dir())
		if persist.IsNotExist(err) {
			continue
		}

		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
		}

		return rec, nil
	}

	return nil, ErrNoCheckpoint
}

// Validate checks that rec may resume a scan of sourceRoot into destination.
func Validate(rec *Record, sourceRoot, destination string) error {
	if rec.Version > SchemaVersion || rec.Version <= 0 {
		return fmt.Errorf("%w: %d (supported %d)", ErrSchemaVersion, rec.Version, SchemaVersion)
	}

	if rec.SourceRoot != sourceRoot {
		return fmt.Errorf("%w: checkpoint has %q, got %q", ErrSourceMismatch, rec.SourceRoot, sourceRoot)
	}

	if rec.Destination != destination {
		return fmt.Errorf("%w: checkpoint has %q, got %q", ErrDestinationMismatch, rec.Destination, destination)
	}

	return nil
}

// Resolve loads and validates the checkpoint for a new scan.
func (m *Manager) Resolve(sourceRoot, destination string) (*Record, error) {
	rec, err := m.Load()
	if err != nil {
		return nil, err
	}

	err = Validate(rec, sourceRoot, destination)
	if err != nil {
		return nil, err
	}

	return rec, nil
}

// Clear removes the checkpoint directory and everything in it.
func (m *Manager) Clear() error {
	err := os.RemoveAll(m.Dir())
	if err != nil {
		return fmt.Errorf("remove checkpoint dir: %w", err)
	}

	return nil
}
