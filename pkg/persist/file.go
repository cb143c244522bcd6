package persist

import (
	"fmt"
	"os"
	"path/filepath"
)

const filePerm = 0o600

// Path returns the file path SaveState and LoadState use for basename.
func Path(dir, basename string, codec Codec) string {
	return filepath.Join(dir, basename+codec.Extension())
}

// SaveState atomically writes state to dir/basename<ext>. The state is
// encoded into a temporary file in the same directory, synced, and renamed
// over the target, so readers never observe a partially written file.
func SaveState(dir, basename string, codec Codec, state any) error {
	target := Path(dir, basename, codec)

	tmp, err := os.CreateTemp(dir, "."+basename+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create state file: %w", err)
	}

	tmpName := tmp.Name()

	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}

	err = codec.Encode(tmp, state)
	if err != nil {
		cleanup()

		return fmt.Errorf("encode state: %w", err)
	}

	err = tmp.Sync()
	if err != nil {
		cleanup()

		return fmt.Errorf("sync state file: %w", err)
	}

	err = tmp.Chmod(filePerm)
	if err != nil {
		cleanup()

		return fmt.Errorf("chmod state file: %w", err)
	}

	err = tmp.Close()
	if err != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("close state file: %w", err)
	}

	err = os.Rename(tmpName, target)
	if err != nil {
		_ = os.Remove(tmpName)

		return fmt.Errorf("rename state file: %w", err)
	}

	return nil
}

// LoadState loads state from dir/basename<ext>.
// The state parameter must be a pointer to the target struct.
func LoadState(dir, basename string, codec Codec, state any) error {
	file, err := os.Open(Path(dir, basename, codec))
	if err != nil {
		return fmt.Errorf("open state file: %w", err)
	}
	defer file.Close()

	err = codec.Decode(file, state)
	if err != nil {
		return fmt.Errorf("decode state: %w", err)
	}

	return nil
}
