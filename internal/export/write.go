package export

import (
	"fmt"
	"os"
	"path/filepath"
)

// FilePerms for the artifact. It holds no secrets.
const FilePerms = 0o644

// WriteFile encodes doc and replaces path atomically: readers see either the
// previous artifact or the complete new one.
func WriteFile(path string, doc *Document) error {
	data, err := Encode(doc)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)

	f, err := os.CreateTemp(dir, ".gears-*.tmp")
	if err != nil {
		return fmt.Errorf("export: creating temp file: %w", err)
	}

	tempPath := f.Name()

	succeeded := false
	defer func() {
		if !succeeded {
			_ = os.Remove(tempPath)
		}
	}()

	if err := os.Chmod(tempPath, FilePerms); err != nil {
		f.Close()

		return fmt.Errorf("export: setting file permissions: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()

		return fmt.Errorf("export: writing temp file: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()

		return fmt.Errorf("export: syncing temp file: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("export: closing temp file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("export: renaming temp file: %w", err)
	}

	succeeded = true

	return nil
}
