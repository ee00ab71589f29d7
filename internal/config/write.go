package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// FilePerms restricts the config file to owner-only read/write; it holds
// the session credential.
const FilePerms = 0o600

// DirPerms is used when creating the config directory.
const DirPerms = 0o700

// fileHeader precedes the encoded keys in every written file.
const fileHeader = `# s3gear configuration
# Rewritten by s3gear whenever tokens are regenerated. Set session_token to
# "skip" to enter gtoken and bullettoken by hand instead of logging in.

`

// encode renders cfg as the on-disk TOML document.
func encode(cfg *Config) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fileHeader)

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}

	return buf.Bytes(), nil
}

// atomicWriteFile writes data to a temporary file in the same directory as
// path, then renames it to the target path. A crash mid-write leaves either
// the old file or the new one, never a truncated mix. Parent directories are
// created as needed.
func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, DirPerms); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	// Same directory guarantees same filesystem for rename(2).
	f, err := os.CreateTemp(dir, ".config-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	tempPath := f.Name()

	// Clean up the temp file on any error path.
	succeeded := false
	defer func() {
		if !succeeded {
			_ = os.Remove(tempPath)
		}
	}()

	if err := os.Chmod(tempPath, FilePerms); err != nil {
		f.Close()

		return fmt.Errorf("setting file permissions: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()

		return fmt.Errorf("writing temp file: %w", err)
	}

	// Flush before rename so a power loss cannot leave an empty file at path.
	if err := f.Sync(); err != nil {
		f.Close()

		return fmt.Errorf("syncing temp file: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}

	succeeded = true

	return nil
}
